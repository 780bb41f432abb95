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


// Package openclaw routes the four storage namespaces (sessions,
// transcripts, auth, config) to concrete backends according to a validated
// service configuration.
//
// Three modes exist. In file mode everything stays on the local
// filesystem. In agentcore mode cloud-classified namespaces go to the
// AgentCore Memory event store. In hybrid mode sessions go to DynamoDB and
// transcripts to AgentCore Memory, each falling back down the chain when
// unconfigured. The auth namespace is diverted to Secrets Manager whenever
// a secret ARN is configured, regardless of mode.
//
// Backends are constructed lazily and memoized per service. A process-wide
// singleton is available through Shared; tests reset it with
// ResetSharedForTesting.
package openclaw
