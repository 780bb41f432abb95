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


// Package storage defines the backend abstraction for the OpenClaw storage
// layer.
//
// This package defines the Backend interface that decouples consumers from
// concrete storage implementations. It allows heterogeneous backends (local
// filesystem, AWS Bedrock AgentCore Memory, DynamoDB, Secrets Manager) to be
// used interchangeably behind one namespaced key-value and append-log
// contract.
//
// # Constructor Return Type Pattern
//
// Implementation packages follow a strict "return interface" pattern for
// their public constructors to enforce abstraction and keep backends
// swappable:
//
//	backend, err := file.NewBackend(opts)  // returns storage.Backend
//
// Internal constructors may return concrete types since they are only used
// within the implementation package.
//
// # Namespaces
//
// All data lives in one of four logical keyspaces: sessions, transcripts,
// auth, and config. Keys within a namespace are opaque strings; SanitizeKey
// reduces arbitrary input to a backend-safe identifier.
//
// # Error Model
//
// Missing keys are not errors: Get returns found=false and Delete returns
// existed=false. The sentinel errors in this package classify the failures
// that do surface; match them with errors.Is. Backends that lack an
// operation (Append on a secrets vault, for example) return ErrUnsupported
// rather than being modeled as a narrower interface, to keep routing simple.
//
// # Thread Safety
//
// All backend implementations must be safe for concurrent use from multiple
// goroutines.
//
// # Context Support
//
// Every operation accepts a context.Context and must honor cancellation at
// each I/O boundary. Network backends impose their own per-call deadlines on
// top of the caller's context.
package storage
