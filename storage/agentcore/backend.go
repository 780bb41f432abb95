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
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/openclaw/openclaw-storage/storage"
)

const (
	actorNamespaceRoot = "openclaw-storage"

	kvSessionPrefix         = "kv-"
	transcriptSessionPrefix = "tr-"

	callTimeout   = 10 * time.Second
	healthTimeout = 2 * time.Second

	listPageSize = 100
)

// Options configures the event-memory backend.
type Options struct {
	// MemoryARN identifies the AgentCore Memory resource.
	MemoryARN string

	// Region for the data-plane client. Optional; falls back to AWS_REGION
	// and then the ARN's region segment.
	Region string

	// NamespacePrefix isolates tenants sharing one memory resource. It
	// becomes a path segment of every actor id.
	NamespacePrefix string

	// Client overrides the AWS client, for tests.
	Client MemoryClient

	Logger *slog.Logger
}

// Backend layers namespaced key-value and append-log semantics on the
// append-only AgentCore Memory event API.
type Backend struct {
	memoryARN string
	memoryID  string
	region    string
	prefix    string
	client    MemoryClient
	logger    *slog.Logger

	// lastStamp monotonizes event timestamps issued by this instance so
	// same-instant writes keep their order.
	stampMu   sync.Mutex
	lastStamp time.Time
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend creates an event-memory backend for the given memory resource.
func NewBackend(opts Options) (storage.Backend, error) {
	if opts.MemoryARN == "" {
		return nil, fmt.Errorf("%w: agentcore.memoryArn is required", storage.ErrInvalidArgument)
	}
	memoryID, err := memoryIDFromARN(opts.MemoryARN)
	if err != nil {
		return nil, err
	}
	region, err := resolveRegion(opts.Region, opts.MemoryARN)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		memoryARN: opts.MemoryARN,
		memoryID:  memoryID,
		region:    region,
		prefix:    opts.NamespacePrefix,
		client:    opts.Client,
		logger:    logger,
	}, nil
}

func (b *Backend) Type() string      { return storage.TypeAgentCore }
func (b *Backend) Distributed() bool { return true }

// Initialize constructs the AWS client unless one was injected.
func (b *Backend) Initialize(ctx context.Context) error {
	if b.client != nil {
		return nil
	}
	client, err := newMemoryClient(ctx, b.region)
	if err != nil {
		return err
	}
	b.client = client
	return nil
}

// Close is a no-op; the AWS client holds no connection state of its own.
func (b *Backend) Close() error { return nil }

// actorID scopes a namespace under this application (and tenant prefix).
func (b *Backend) actorID(ns storage.Namespace) string {
	if b.prefix != "" {
		return actorNamespaceRoot + "/" + b.prefix + "/" + string(ns)
	}
	return actorNamespaceRoot + "/" + string(ns)
}

func kvSessionID(key string) string {
	return kvSessionPrefix + storage.SanitizeKey(key)
}

func transcriptSessionID(key string) string {
	return transcriptSessionPrefix + storage.SanitizeKey(key)
}

// eventStamp returns a wall-clock timestamp that is strictly increasing
// within this backend instance.
func (b *Backend) eventStamp() time.Time {
	b.stampMu.Lock()
	defer b.stampMu.Unlock()
	now := time.Now()
	if !now.After(b.lastStamp) {
		now = b.lastStamp.Add(time.Millisecond)
	}
	b.lastStamp = now
	return now
}

func (b *Backend) createEvent(ctx context.Context, actorID, sessionID string, payloads ...types.PayloadType) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := b.client.CreateEvent(ctx, &bedrockagentcore.CreateEventInput{
		MemoryId:       aws.String(b.memoryID),
		ActorId:        aws.String(actorID),
		SessionId:      aws.String(sessionID),
		EventTimestamp: aws.Time(b.eventStamp()),
		ClientToken:    aws.String(uuid.NewString()),
		Payload:        payloads,
	})
	if err != nil {
		return fmt.Errorf("%w: create event in %s/%s: %v", storage.ErrBackendUnavailable, actorID, sessionID, err)
	}
	return nil
}

// isNotFound matches the service's ResourceNotFoundException, which event
// listings return for an actor or session that has never been written.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}

// latestRecord returns the newest decoded event in a session, or ok=false
// for a session with no events.
func (b *Backend) latestRecord(ctx context.Context, actorID, sessionID string) (eventRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := b.client.ListEvents(ctx, &bedrockagentcore.ListEventsInput{
		MemoryId:        aws.String(b.memoryID),
		ActorId:         aws.String(actorID),
		SessionId:       aws.String(sessionID),
		MaxResults:      aws.Int32(1),
		IncludePayloads: aws.Bool(true),
	})
	if err != nil {
		if isNotFound(err) {
			return eventRecord{}, false, nil
		}
		return eventRecord{}, false, fmt.Errorf("%w: list events in %s/%s: %v", storage.ErrBackendUnavailable, actorID, sessionID, err)
	}
	if len(out.Events) == 0 {
		return eventRecord{}, false, nil
	}
	record, ok := decodeEvent(out.Events[0])
	return record, ok, nil
}

func (b *Backend) Get(ctx context.Context, ns storage.Namespace, key string) (any, bool, error) {
	record, ok, err := b.latestRecord(ctx, b.actorID(ns), kvSessionID(key))
	if err != nil || !ok {
		return nil, false, err
	}
	if record.blobType != blobTypeKV {
		return nil, false, nil
	}
	return record.value, true, nil
}

func (b *Backend) Set(ctx context.Context, ns storage.Namespace, key string, value any) error {
	clone, err := storage.CloneValue(value)
	if err != nil {
		return err
	}
	return b.createEvent(ctx, b.actorID(ns), kvSessionID(key), kvPayload(clone))
}

// Delete writes a tombstone event that shadows all prior values. The
// upstream API cannot remove a session, so this is a soft delete; a later
// Set resurrects the key because the latest event always wins.
func (b *Backend) Delete(ctx context.Context, ns storage.Namespace, key string) (bool, error) {
	actorID := b.actorID(ns)
	sessionID := kvSessionID(key)

	record, ok, err := b.latestRecord(ctx, actorID, sessionID)
	if err != nil {
		return false, err
	}
	existed := ok && record.blobType == blobTypeKV
	if !existed {
		return false, nil
	}
	if err := b.createEvent(ctx, actorID, sessionID, tombstonePayload(time.Now())); err != nil {
		return false, err
	}
	return true, nil
}

// List enumerates the namespace's kv sessions, skipping tombstoned keys.
func (b *Backend) List(ctx context.Context, ns storage.Namespace, prefix string) ([]string, error) {
	actorID := b.actorID(ns)

	var keys []string
	var nextToken *string
	for {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		out, err := b.client.ListSessions(callCtx, &bedrockagentcore.ListSessionsInput{
			MemoryId:   aws.String(b.memoryID),
			ActorId:    aws.String(actorID),
			MaxResults: aws.Int32(listPageSize),
			NextToken:  nextToken,
		})
		cancel()
		if err != nil {
			if isNotFound(err) {
				return keys, nil
			}
			return nil, fmt.Errorf("%w: list sessions for %s: %v", storage.ErrBackendUnavailable, actorID, err)
		}

		for _, summary := range out.SessionSummaries {
			sessionID := aws.ToString(summary.SessionId)
			if !strings.HasPrefix(sessionID, kvSessionPrefix) {
				continue
			}
			key := strings.TrimPrefix(sessionID, kvSessionPrefix)
			if prefix != "" && !strings.HasPrefix(key, prefix) {
				continue
			}

			record, ok, err := b.latestRecord(ctx, actorID, sessionID)
			if err != nil {
				return nil, err
			}
			if ok && record.blobType == blobTypeKV {
				keys = append(keys, key)
			}
		}

		nextToken = out.NextToken
		if nextToken == nil {
			return keys, nil
		}
	}
}

// Update is read-then-write. Two concurrent updates can interleave and the
// later event wins; sessions that need stronger guarantees belong on the
// DynamoDB backend.
func (b *Backend) Update(ctx context.Context, ns storage.Namespace, key string, fn storage.UpdateFunc) (any, bool, error) {
	current, found, err := b.Get(ctx, ns, key)
	if err != nil {
		return nil, false, err
	}

	next, keep, err := fn(current, found)
	if err != nil {
		return nil, false, err
	}
	if !keep {
		_, err := b.Delete(ctx, ns, key)
		return nil, false, err
	}
	if err := b.Set(ctx, ns, key, next); err != nil {
		return nil, false, err
	}
	return next, true, nil
}

// Append writes one line event. When the line parses as a conversational
// message the event also carries the service's native message shape so
// long-term memory extraction can consume it; the blob stays authoritative
// for recovery.
func (b *Backend) Append(ctx context.Context, ns storage.Namespace, key string, line string) error {
	payloads := []types.PayloadType{linePayload(line)}
	if conv := conversationalPayload(line); conv != nil {
		payloads = append(payloads, conv)
	}
	return b.createEvent(ctx, b.actorID(ns), transcriptSessionID(key), payloads...)
}

// ReadLines pages through the session's events. The API returns pages
// newest-first; lines are buffered and yielded in chronological order.
func (b *Backend) ReadLines(ctx context.Context, ns storage.Namespace, key string) iter.Seq2[string, error] {
	actorID := b.actorID(ns)
	sessionID := transcriptSessionID(key)

	return func(yield func(string, error) bool) {
		var newestFirst []string
		var nextToken *string

		for {
			callCtx, cancel := context.WithTimeout(ctx, callTimeout)
			out, err := b.client.ListEvents(callCtx, &bedrockagentcore.ListEventsInput{
				MemoryId:        aws.String(b.memoryID),
				ActorId:         aws.String(actorID),
				SessionId:       aws.String(sessionID),
				MaxResults:      aws.Int32(listPageSize),
				NextToken:       nextToken,
				IncludePayloads: aws.Bool(true),
			})
			cancel()
			if err != nil {
				if isNotFound(err) {
					break
				}
				yield("", fmt.Errorf("%w: list events in %s/%s: %v", storage.ErrBackendUnavailable, actorID, sessionID, err))
				return
			}

			for _, event := range out.Events {
				record, ok := decodeEvent(event)
				if !ok || record.blobType != blobTypeLine {
					continue
				}
				newestFirst = append(newestFirst, record.line)
			}

			nextToken = out.NextToken
			if nextToken == nil {
				break
			}
		}

		slices.Reverse(newestFirst)
		for _, line := range newestFirst {
			if !yield(line, nil) {
				return
			}
		}
	}
}

// HealthCheck lists at most one session under the sessions actor.
func (b *Backend) HealthCheck(ctx context.Context) storage.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	_, err := b.client.ListSessions(ctx, &bedrockagentcore.ListSessionsInput{
		MemoryId:   aws.String(b.memoryID),
		ActorId:    aws.String(b.actorID(storage.NamespaceSessions)),
		MaxResults: aws.Int32(1),
	})
	status := storage.HealthStatus{OK: err == nil, Latency: time.Since(start)}
	if err != nil {
		status.Err = err.Error()
	}
	return status
}
