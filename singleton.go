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


package openclaw

import (
	"context"
	"log/slog"
	"sync"
)

var (
	sharedMu sync.Mutex
	shared   *Service
)

// Shared returns the process-wide service, creating and initializing it
// from cfg on first call. Later calls return the existing instance and
// ignore cfg.
func Shared(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return shared, nil
	}

	service, err := NewService(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := service.Initialize(ctx); err != nil {
		service.Close()
		return nil, err
	}
	shared = service
	return shared, nil
}

// CloseShared closes and discards the process-wide service, if any.
func CloseShared() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		return nil
	}
	err := shared.Close()
	shared = nil
	return err
}

// ResetSharedForTesting discards the singleton without closing it, so a
// test can install a fresh one. Production code uses CloseShared.
func ResetSharedForTesting() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = nil
}
