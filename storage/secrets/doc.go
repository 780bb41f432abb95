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


// Package secrets implements the credential storage backend on AWS Secrets
// Manager.
//
// Each (namespace, key) maps to one secret named
// openclaw-auth/<namespace>/<key>; slashes in keys are preserved so callers
// can organize credentials hierarchically. String values are stored as-is,
// everything else as compact JSON. Delete schedules a forced immediate
// deletion, and reads of a secret pending deletion count as absent.
//
// Append and ReadLines are not supported; the vault stores credentials, not
// logs.
package secrets
