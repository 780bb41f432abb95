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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"

	"github.com/openclaw/openclaw-storage/storage"
)

type memoryEvent struct {
	id        string
	timestamp time.Time
	payload   []types.PayloadType
}

type memorySession struct {
	events []memoryEvent
}

// MemoryClientMock is an in-memory MemoryClient for tests. Events are
// ordered by timestamp and ListEvents returns them newest-first, matching
// the live service. SeedRawBlob injects a string-form blob to exercise the
// Python-dict decode path.
type MemoryClientMock struct {
	mu       sync.Mutex
	sessions map[string]*memorySession // actorID "\x00" sessionID
	nextID   int

	// Err, when set, is returned by every call. Simulates an outage.
	Err error
}

var _ MemoryClient = (*MemoryClientMock)(nil)

// NewMemoryClientMock creates an empty in-memory event store.
func NewMemoryClientMock() *MemoryClientMock {
	return &MemoryClientMock{sessions: make(map[string]*memorySession)}
}

// NewBackendWithMock creates a backend wired to a fresh mock client.
func NewBackendWithMock() (storage.Backend, *MemoryClientMock, error) {
	mock := NewMemoryClientMock()
	backend, err := NewBackend(Options{
		MemoryARN: "arn:aws:bedrock-agentcore:us-east-1:000000000000:memory/mock",
		Client:    mock,
	})
	if err != nil {
		return nil, nil, err
	}
	return backend, mock, nil
}

func sessionKey(actorID, sessionID string) string {
	return actorID + "\x00" + sessionID
}

// SeedRawBlob appends an event whose blob payload is a raw string, the form
// the live API produces when it reshapes a document.
func (m *MemoryClientMock) SeedRawBlob(actorID, sessionID, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(actorID, sessionID, []types.PayloadType{
		&types.PayloadTypeMemberBlob{Value: document.NewLazyDocument(raw)},
	}, time.Now())
}

func (m *MemoryClientMock) appendLocked(actorID, sessionID string, payload []types.PayloadType, stamp time.Time) {
	key := sessionKey(actorID, sessionID)
	session := m.sessions[key]
	if session == nil {
		session = &memorySession{}
		m.sessions[key] = session
	}
	m.nextID++
	session.events = append(session.events, memoryEvent{
		id:        fmt.Sprintf("event-%d", m.nextID),
		timestamp: stamp,
		payload:   payload,
	})
	sort.SliceStable(session.events, func(i, j int) bool {
		return session.events[i].timestamp.Before(session.events[j].timestamp)
	})
}

func (m *MemoryClientMock) CreateEvent(ctx context.Context, params *bedrockagentcore.CreateEventInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.CreateEventOutput, error) {
	if err := m.Err; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stamp := time.Now()
	if params.EventTimestamp != nil {
		stamp = *params.EventTimestamp
	}
	m.appendLocked(aws.ToString(params.ActorId), aws.ToString(params.SessionId), params.Payload, stamp)
	return &bedrockagentcore.CreateEventOutput{}, nil
}

func (m *MemoryClientMock) ListEvents(ctx context.Context, params *bedrockagentcore.ListEventsInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListEventsOutput, error) {
	if err := m.Err; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(aws.ToString(params.ActorId), aws.ToString(params.SessionId))
	session := m.sessions[key]
	if session == nil {
		return &bedrockagentcore.ListEventsOutput{}, nil
	}

	limit := len(session.events)
	if params.MaxResults != nil && int(*params.MaxResults) < limit {
		limit = int(*params.MaxResults)
	}

	// Newest-first, like the live service.
	out := &bedrockagentcore.ListEventsOutput{}
	for i := len(session.events) - 1; i >= 0 && len(out.Events) < limit; i-- {
		event := session.events[i]
		entry := types.Event{
			EventId:        aws.String(event.id),
			ActorId:        params.ActorId,
			SessionId:      params.SessionId,
			MemoryId:       params.MemoryId,
			EventTimestamp: aws.Time(event.timestamp),
		}
		if params.IncludePayloads == nil || *params.IncludePayloads {
			entry.Payload = event.payload
		}
		out.Events = append(out.Events, entry)
	}
	return out, nil
}

func (m *MemoryClientMock) ListSessions(ctx context.Context, params *bedrockagentcore.ListSessionsInput, _ ...func(*bedrockagentcore.Options)) (*bedrockagentcore.ListSessionsOutput, error) {
	if err := m.Err; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	actorID := aws.ToString(params.ActorId)
	var ids []string
	for key := range m.sessions {
		if len(key) > len(actorID) && key[:len(actorID)] == actorID && key[len(actorID)] == 0 {
			ids = append(ids, key[len(actorID)+1:])
		}
	}
	sort.Strings(ids)

	out := &bedrockagentcore.ListSessionsOutput{}
	for _, id := range ids {
		out.SessionSummaries = append(out.SessionSummaries, types.SessionSummary{
			SessionId: aws.String(id),
		})
	}
	return out, nil
}
