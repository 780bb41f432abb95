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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/openclaw/openclaw-storage/storage"
	"github.com/openclaw/openclaw-storage/storage/agentcore"
	"github.com/openclaw/openclaw-storage/storage/dynamodb"
	"github.com/openclaw/openclaw-storage/storage/file"
	"github.com/openclaw/openclaw-storage/storage/secrets"
)

// NamespaceStatus describes where one namespace's data lives.
type NamespaceStatus struct {
	Backend        string                 `json:"backend"`
	Classification storage.Classification `json:"classification"`
	Distributed    bool                   `json:"distributed"`
}

// Service routes each namespace to the backend the configuration selects.
// Backends are constructed lazily on first demand and memoized; the service
// owns their lifecycle.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	backends map[string]storage.Backend
	closed   bool
}

// NewService creates an unstarted service for cfg. Call Initialize before
// issuing operations.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		backends: make(map[string]storage.Backend),
	}, nil
}

// backendTag resolves the backend for a namespace without constructing it.
func (s *Service) backendTag(ns storage.Namespace) string {
	if ns == storage.NamespaceAuth && s.cfg.hasSecrets() {
		return storage.TypeSecretsManager
	}

	classification := s.cfg.Classification(ns)
	if classification == storage.ClassificationLocal {
		return storage.TypeFile
	}

	switch s.cfg.Type {
	case ModeHybrid:
		switch ns {
		case storage.NamespaceSessions:
			if s.cfg.hasDynamoDB() {
				return storage.TypeDynamoDB
			}
			if s.cfg.hasAgentCore() {
				return storage.TypeAgentCore
			}
		case storage.NamespaceTranscripts:
			if s.cfg.hasAgentCore() {
				return storage.TypeAgentCore
			}
		}
	case ModeAgentCore:
		return storage.TypeAgentCore
	}
	return storage.TypeFile
}

// newBackend constructs the backend for a tag from the service config.
func (s *Service) newBackend(tag string) (storage.Backend, error) {
	switch tag {
	case storage.TypeFile:
		return file.NewBackend(file.Options{
			BaseDir:      s.cfg.BaseDir,
			CacheEnabled: s.cfg.cacheEnabled(),
			CacheTTL:     time.Duration(s.cfg.CacheTTLMs) * time.Millisecond,
			Logger:       s.logger,
		})
	case storage.TypeAgentCore:
		ac := s.cfg.AgentCore
		if ac == nil {
			return nil, fmt.Errorf("%w: agentcore backend demanded but agentcore.memoryArn is not set", storage.ErrInvalidArgument)
		}
		return agentcore.NewBackend(agentcore.Options{
			MemoryARN:       ac.MemoryARN,
			Region:          ac.Region,
			NamespacePrefix: ac.NamespacePrefix,
			Logger:          s.logger,
		})
	case storage.TypeDynamoDB:
		ddb := s.cfg.DynamoDB
		if ddb == nil {
			return nil, fmt.Errorf("%w: dynamodb backend demanded but dynamodb.tableName is not set", storage.ErrInvalidArgument)
		}
		return dynamodb.NewBackend(dynamodb.Options{
			TableName:  ddb.TableName,
			Region:     ddb.Region,
			TTLSeconds: s.cfg.dynamoTTLSeconds(),
			IndexName:  ddb.NamespaceIndexName,
			Logger:     s.logger,
		})
	case storage.TypeSecretsManager:
		sm := s.cfg.SecretsManager
		if sm == nil {
			return nil, fmt.Errorf("%w: secrets backend demanded but secretsManager.secretArn is not set", storage.ErrInvalidArgument)
		}
		return secrets.NewBackend(secrets.Options{
			Region:   sm.Region,
			KMSKeyID: sm.KMSKeyID,
			Logger:   s.logger,
		})
	}
	return nil, fmt.Errorf("%w: unknown backend tag %q", storage.ErrInvalidArgument, tag)
}

// backendFor returns the memoized backend for a tag, constructing and
// initializing it on first demand. Failed construction is not memoized, so
// a later demand retries.
func (s *Service) backendFor(ctx context.Context, tag string) (storage.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: storage service", storage.ErrClosed)
	}
	if backend, ok := s.backends[tag]; ok {
		return backend, nil
	}

	backend, err := s.newBackend(tag)
	if err != nil {
		return nil, err
	}
	if err := backend.Initialize(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	s.backends[tag] = backend
	return backend, nil
}

// GetBackend resolves and returns the backend serving a namespace.
func (s *Service) GetBackend(ctx context.Context, ns storage.Namespace) (storage.Backend, error) {
	if _, err := storage.ParseNamespace(string(ns)); err != nil {
		return nil, err
	}
	return s.backendFor(ctx, s.backendTag(ns))
}

// Initialize eagerly brings up the file backend and attempts every
// configured cloud backend. A cloud backend that fails to come up is logged
// and skipped; the first operation that demands it will surface the error.
func (s *Service) Initialize(ctx context.Context) error {
	if _, err := s.backendFor(ctx, storage.TypeFile); err != nil {
		return err
	}

	tags := map[string]bool{}
	for _, ns := range storage.Namespaces() {
		tags[s.backendTag(ns)] = true
	}
	for _, tag := range []string{storage.TypeDynamoDB, storage.TypeAgentCore, storage.TypeSecretsManager} {
		if !tags[tag] {
			continue
		}
		if _, err := s.backendFor(ctx, tag); err != nil {
			s.logger.Warn("storage backend unavailable at startup",
				"backend", tag, "error", err)
		}
	}
	return nil
}

// Close shuts down every materialized backend. The service is unusable
// afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for tag, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s backend: %w", tag, err)
		}
	}
	s.backends = nil
	return firstErr
}

// HealthCheck probes the backend behind every namespace concurrently and
// returns the per-namespace results. A backend serving several namespaces
// is probed once per namespace; probes are individually bounded.
func (s *Service) HealthCheck(ctx context.Context) map[storage.Namespace]storage.HealthStatus {
	namespaces := storage.Namespaces()
	results := make([]storage.HealthStatus, len(namespaces))

	pool, err := ants.NewPool(len(namespaces))
	if err != nil {
		// Pool creation only fails on nonsensical sizes; degrade to serial.
		for i, ns := range namespaces {
			results[i] = s.probe(ctx, ns)
		}
	} else {
		defer pool.Release()
		var wg sync.WaitGroup
		for i, ns := range namespaces {
			wg.Add(1)
			if submitErr := pool.Submit(func() {
				defer wg.Done()
				results[i] = s.probe(ctx, ns)
			}); submitErr != nil {
				results[i] = storage.HealthStatus{Err: submitErr.Error()}
				wg.Done()
			}
		}
		wg.Wait()
	}

	out := make(map[storage.Namespace]storage.HealthStatus, len(namespaces))
	for i, ns := range namespaces {
		out[ns] = results[i]
	}
	return out
}

func (s *Service) probe(ctx context.Context, ns storage.Namespace) storage.HealthStatus {
	backend, err := s.backendFor(ctx, s.backendTag(ns))
	if err != nil {
		return storage.HealthStatus{OK: false, Err: err.Error()}
	}
	return backend.HealthCheck(ctx)
}

// ConfigSummary reports the resolved backend and classification for every
// namespace, for diagnostics. It does not construct backends.
func (s *Service) ConfigSummary() map[storage.Namespace]NamespaceStatus {
	out := make(map[storage.Namespace]NamespaceStatus, len(storage.Namespaces()))
	for _, ns := range storage.Namespaces() {
		tag := s.backendTag(ns)
		out[ns] = NamespaceStatus{
			Backend:        tag,
			Classification: s.cfg.Classification(ns),
			Distributed:    tag != storage.TypeFile,
		}
	}
	return out
}

// Config returns a copy of the service configuration.
func (s *Service) Config() Config { return s.cfg }
