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


package agentcore

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"

	"github.com/openclaw/openclaw-storage/storage"
)

// MemoryClient is the slice of the AgentCore Memory data-plane API the
// backend uses. *bedrockagentcore.Client satisfies it; tests substitute an
// in-memory implementation.
type MemoryClient interface {
	CreateEvent(ctx context.Context, params *bedrockagentcore.CreateEventInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CreateEventOutput, error)
	ListEvents(ctx context.Context, params *bedrockagentcore.ListEventsInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListEventsOutput, error)
	ListSessions(ctx context.Context, params *bedrockagentcore.ListSessionsInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListSessionsOutput, error)
}

// newMemoryClient builds the real data-plane client from the ambient AWS
// credential chain.
func newMemoryClient(ctx context.Context, region string) (MemoryClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", storage.ErrBackendUnavailable, err)
	}
	return bedrockagentcore.NewFromConfig(cfg), nil
}

// memoryIDFromARN extracts the memory id, the final path segment of the
// resource ARN.
func memoryIDFromARN(arn string) (string, error) {
	idx := strings.LastIndex(arn, "/")
	if idx < 0 || idx == len(arn)-1 {
		return "", fmt.Errorf("%w: memory ARN %q has no resource id", storage.ErrInvalidArgument, arn)
	}
	return arn[idx+1:], nil
}

// resolveRegion picks the region for the memory client: an explicit value,
// then the AWS_REGION environment variable, then the region segment of the
// memory ARN.
func resolveRegion(explicit, memoryARN string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv("AWS_REGION"); env != "" {
		return env, nil
	}
	// arn:aws:bedrock-agentcore:<region>:<account>:memory/<id>
	parts := strings.Split(memoryARN, ":")
	if len(parts) > 3 && parts[3] != "" {
		return parts[3], nil
	}
	return "", fmt.Errorf("%w: no region configured; set agentcore.region or AWS_REGION", storage.ErrInvalidArgument)
}
