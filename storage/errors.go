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


package storage

import "errors"

var (
	// ErrBackendUnavailable indicates a transport-level failure talking to
	// the backing store (network error, throttling, service outage).
	// Retrying is the caller's responsibility.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidArgument indicates a malformed input: a bad transcript URI,
	// an unknown namespace, or an invalid configuration value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported indicates the backend does not implement the requested
	// operation (for example Append on the secrets vault).
	ErrUnsupported = errors.New("operation not supported by backend")

	// ErrLockTimeout indicates the cooperative file lock could not be
	// acquired within the configured timeout.
	ErrLockTimeout = errors.New("timed out waiting for file lock")

	// ErrCorruption indicates stored data could not be decoded and no
	// recovery strategy applied.
	ErrCorruption = errors.New("stored data is corrupt")

	// ErrClosed indicates the backend or service has been closed.
	ErrClosed = errors.New("storage is closed")
)
