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


// Package agentcore implements the event-memory storage backend on AWS
// Bedrock AgentCore Memory.
//
// The service is append-only and keyed by (memoryId, actorId, sessionId).
// Key-value semantics are layered on top: each namespace maps to one actor,
// each key to a "kv-" session whose newest event carries the current value,
// and deletion writes a tombstone event that shadows everything before it.
// Transcripts map to "tr-" sessions with one event per appended line.
//
// The API has no delete-session operation, so Delete here is a soft delete
// and Update is read-then-write without a concurrency guard. Consumers that
// need atomic session updates route the sessions namespace to DynamoDB via
// hybrid mode instead.
//
// Blob payloads written as JSON sometimes come back reshaped into a
// Python-dict-like text form; reads go through the pydict decode ladder to
// recover the original line. See the pydict package.
package agentcore
