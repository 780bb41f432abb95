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


// Package dynamodb implements the document-database storage backend on AWS
// DynamoDB.
//
// Items live under PK "<namespace>#<key>" / SK "DATA" with the value in the
// data attribute, an updatedAt timestamp, a rev counter (Set writes 1, each
// Update increments it), and an optional ttl. A global secondary index on (namespace, key) backs
// List. Unlike the event-memory backend, Delete here removes the item for
// real and Update is a conditional write, which is why hybrid mode routes
// the sessions namespace to this backend.
//
// Append and ReadLines are not supported; transcripts belong on the
// event-memory backend.
package dynamodb
