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


// Package file implements the local filesystem storage backend.
//
// Values live at <baseDir>/<namespace>/<sanitizedKey>.json, transcripts at
// <sanitizedKey>.jsonl. Set writes through a temp file and rename so a
// reader never observes a torn value. Update takes a cooperative .lock file
// that serializes read-modify-write cycles across processes on the same
// host, with stale-lock eviction for holders that died. Append relies on
// O_APPEND, which keeps lines intact up to PIPE_BUF on POSIX.
//
// A per-process TTL cache keyed by (path, mtime) makes repeated Gets of a
// warm key free; any mutation through the backend invalidates it, and an
// mtime mismatch catches mutations made by other processes.
package file
