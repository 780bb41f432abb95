// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package transcript

import (
	"fmt"
	"strings"

	"github.com/openclaw/openclaw-storage/storage"
)

// Scheme prefixes transcript URIs that point at the event-memory store.
const Scheme = "agentcore://"

// Location identifies one transcript inside an AgentCore Memory resource.
type Location struct {
	MemoryARN string
	SessionID string
}

// IsAgentCoreURI reports whether s names an event-memory transcript rather
// than a local file.
func IsAgentCoreURI(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseURI splits an agentcore:// URI into its memory ARN and session id.
// The split is at the last slash: ARNs contain slashes, session ids do not.
func ParseURI(s string) (Location, error) {
	if !IsAgentCoreURI(s) {
		return Location{}, fmt.Errorf("%w: not an agentcore transcript uri: %q", storage.ErrInvalidArgument, s)
	}
	rest := strings.TrimPrefix(s, Scheme)
	idx := strings.LastIndex(rest, "/")
	if idx <= 0 || idx == len(rest)-1 {
		return Location{}, fmt.Errorf("%w: transcript uri needs <memoryArn>/<sessionId>: %q", storage.ErrInvalidArgument, s)
	}
	return Location{MemoryARN: rest[:idx], SessionID: rest[idx+1:]}, nil
}

// BuildAgentCoreURI composes the inverse of ParseURI.
func BuildAgentCoreURI(memoryARN, sessionID string) string {
	return Scheme + memoryARN + "/" + sessionID
}
