package dynamodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw-storage/storage"
)

func newTestBackend(t *testing.T, ttlSeconds int64) (storage.Backend, *ClientMock) {
	t.Helper()
	backend, mock, err := NewBackendWithMock(ttlSeconds)
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(context.Background()))
	t.Cleanup(func() { backend.Close() })
	return backend, mock
}

func TestNewBackendRequiresTable(t *testing.T) {
	_, err := NewBackend(Options{})
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestRoundTrip(t *testing.T) {
	backend, _ := newTestBackend(t, 0)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "abc", map[string]any{"a": 1}))

	value, found, err := backend.Get(ctx, storage.NamespaceSessions, "abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]any{"a": float64(1)}, value)
}

func TestDeleteReportsExistence(t *testing.T) {
	backend, _ := newTestBackend(t, 0)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "k", "v"))

	existed, err := backend.Delete(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	_, found, err := backend.Get(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	assert.False(t, found)

	existed, err = backend.Delete(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestListWithPrefix(t *testing.T) {
	backend, _ := newTestBackend(t, 0)
	ctx := context.Background()

	for _, key := range []string{"sess-1", "sess-2", "other"} {
		require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, key, key))
	}
	require.NoError(t, backend.Set(ctx, storage.NamespaceConfig, "sess-x", "wrong namespace"))

	keys, err := backend.List(ctx, storage.NamespaceSessions, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sess-1", "sess-2", "other"}, keys)

	keys, err = backend.List(ctx, storage.NamespaceSessions, "sess-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sess-1", "sess-2"}, keys)
}

func TestConcurrentUpdates(t *testing.T) {
	backend, _ := newTestBackend(t, 0)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, _, err := backend.Update(ctx, storage.NamespaceSessions, "counter", func(current any, found bool) (any, bool, error) {
					n := float64(0)
					if found {
						n = current.(map[string]any)["n"].(float64)
					}
					return map[string]any{"n": n + 1}, true, nil
				})
				if err == nil {
					return
				}
				// Contended beyond the retry budget; try again.
				require.ErrorIs(t, err, storage.ErrBackendUnavailable)
			}
		}()
	}
	wg.Wait()

	value, found, err := backend.Get(ctx, storage.NamespaceSessions, "counter")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(workers), value.(map[string]any)["n"])
}

func TestUpdateDeletesWhenNotKept(t *testing.T) {
	backend, _ := newTestBackend(t, 0)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "k", "v"))

	_, kept, err := backend.Update(ctx, storage.NamespaceSessions, "k", func(any, bool) (any, bool, error) {
		return nil, false, nil
	})
	require.NoError(t, err)
	assert.False(t, kept)

	_, found, err := backend.Get(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiredItemsAbsentOnRead(t *testing.T) {
	backend, mock := newTestBackend(t, 0)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "k", "v"))

	// Backdate the ttl as if the 30 days elapsed and DynamoDB has not
	// reaped the item yet.
	mock.mu.Lock()
	item := mock.items["sessions#k"]
	expiredTTL, err := attributevalue.Marshal(time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)
	item["ttl"] = expiredTTL
	mock.mu.Unlock()

	_, found, err := backend.Get(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	assert.False(t, found)

	keys, err := backend.List(ctx, storage.NamespaceSessions, "")
	require.NoError(t, err)
	assert.NotContains(t, keys, "k")
}

func TestSetStampsTTL(t *testing.T) {
	backend, mock := newTestBackend(t, 60)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "k", "v"))

	mock.mu.Lock()
	ttl := attrNumber(mock.items["sessions#k"], "ttl")
	mock.mu.Unlock()
	assert.NotEmpty(t, ttl)

	_, found, err := backend.Get(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestAppendUnsupported(t *testing.T) {
	backend, _ := newTestBackend(t, 0)

	err := backend.Append(context.Background(), storage.NamespaceTranscripts, "k", "line")
	require.ErrorIs(t, err, storage.ErrUnsupported)

	for _, err := range backend.ReadLines(context.Background(), storage.NamespaceTranscripts, "k") {
		require.ErrorIs(t, err, storage.ErrUnsupported)
	}
}

func TestBackendUnavailableSurfaces(t *testing.T) {
	backend, mock := newTestBackend(t, 0)
	mock.Err = assert.AnError

	err := backend.Set(context.Background(), storage.NamespaceSessions, "k", "v")
	require.ErrorIs(t, err, storage.ErrBackendUnavailable)
}

func TestHealthCheck(t *testing.T) {
	backend, mock := newTestBackend(t, 0)

	status := backend.HealthCheck(context.Background())
	assert.True(t, status.OK)

	mock.Err = assert.AnError
	status = backend.HealthCheck(context.Background())
	assert.False(t, status.OK)
}

func TestTypeAndDistributed(t *testing.T) {
	backend, _ := newTestBackend(t, 0)
	assert.Equal(t, storage.TypeDynamoDB, backend.Type())
	assert.True(t, backend.Distributed())
}
