package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw-storage/storage"
)

func newTestBackend(t *testing.T, cacheEnabled bool) storage.Backend {
	t.Helper()
	backend, err := NewBackend(Options{
		BaseDir:      t.TempDir(),
		CacheEnabled: cacheEnabled,
		CacheTTL:     45 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(context.Background()))
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestRoundTrip(t *testing.T) {
	backend := newTestBackend(t, true)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "abc", map[string]any{"a": 1}))

	value, found, err := backend.Get(ctx, storage.NamespaceSessions, "abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]any{"a": float64(1)}, value)

	existed, err := backend.Delete(ctx, storage.NamespaceSessions, "abc")
	require.NoError(t, err)
	assert.True(t, existed)

	_, found, err = backend.Get(ctx, storage.NamespaceSessions, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	existed, err = backend.Delete(ctx, storage.NamespaceSessions, "abc")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestGetMissingKey(t *testing.T) {
	backend := newTestBackend(t, true)

	value, found, err := backend.Get(context.Background(), storage.NamespaceConfig, "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestSetSanitizesKey(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBackend(Options{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "a/b c", "v"))

	_, statErr := os.Stat(filepath.Join(dir, "sessions", "a_b_c.json"))
	require.NoError(t, statErr)

	value, found, err := backend.Get(ctx, storage.NamespaceSessions, "a/b c")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestListWithPrefix(t *testing.T) {
	backend := newTestBackend(t, false)
	ctx := context.Background()

	for _, key := range []string{"sess-1", "sess-2", "other"} {
		require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, key, key))
	}
	existed, err := backend.Delete(ctx, storage.NamespaceSessions, "sess-2")
	require.NoError(t, err)
	require.True(t, existed)

	keys, err := backend.List(ctx, storage.NamespaceSessions, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sess-1", "other"}, keys)

	keys, err = backend.List(ctx, storage.NamespaceSessions, "sess-")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, keys)
}

func TestListMissingNamespaceDir(t *testing.T) {
	backend := newTestBackend(t, false)

	keys, err := backend.List(context.Background(), storage.NamespaceAuth, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestConcurrentUpdates(t *testing.T) {
	backend := newTestBackend(t, true)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := backend.Update(ctx, storage.NamespaceSessions, "k", func(current any, found bool) (any, bool, error) {
				n := float64(0)
				if found {
					n = current.(map[string]any)["n"].(float64)
				}
				return map[string]any{"n": n + 1}, true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, found, err := backend.Get(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(workers), value.(map[string]any)["n"])
}

func TestUpdateDeletesWhenNotKept(t *testing.T) {
	backend := newTestBackend(t, true)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "k", "v"))

	next, kept, err := backend.Update(ctx, storage.NamespaceSessions, "k", func(any, bool) (any, bool, error) {
		return nil, false, nil
	})
	require.NoError(t, err)
	assert.False(t, kept)
	assert.Nil(t, next)

	_, found, err := backend.Get(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateErrorAborts(t *testing.T) {
	backend := newTestBackend(t, true)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "k", "v"))

	_, _, err := backend.Update(ctx, storage.NamespaceSessions, "k", func(any, bool) (any, bool, error) {
		return nil, false, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	value, found, err := backend.Get(ctx, storage.NamespaceSessions, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestAppendOrder(t *testing.T) {
	backend := newTestBackend(t, false)
	ctx := context.Background()

	lines := []string{`{"seq":1}`, `{"seq":2}`, `{"seq":3}`}
	for _, line := range lines {
		require.NoError(t, backend.Append(ctx, storage.NamespaceTranscripts, "conv", line))
	}

	var got []string
	for line, err := range backend.ReadLines(ctx, storage.NamespaceTranscripts, "conv") {
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, lines, got)
}

func TestReadLinesMissingKey(t *testing.T) {
	backend := newTestBackend(t, false)

	count := 0
	for _, err := range backend.ReadLines(context.Background(), storage.NamespaceTranscripts, "nope") {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)
}

func TestReadLinesSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBackend(Options{BaseDir: dir})
	require.NoError(t, err)

	path := filepath.Join(dir, "transcripts", "conv.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("a\n\nb\r\n\nc\n"), 0o600))

	var got []string
	for line, lineErr := range backend.ReadLines(context.Background(), storage.NamespaceTranscripts, "conv") {
		require.NoError(t, lineErr)
		got = append(got, line)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCacheInvalidatedByMutation(t *testing.T) {
	backend := newTestBackend(t, true)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceConfig, "k", "v1"))
	_, _, err := backend.Get(ctx, storage.NamespaceConfig, "k")
	require.NoError(t, err)

	require.NoError(t, backend.Set(ctx, storage.NamespaceConfig, "k", "v2"))

	value, found, err := backend.Get(ctx, storage.NamespaceConfig, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", value)
}

func TestCacheObservesExternalWrite(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBackend(Options{BaseDir: dir, CacheEnabled: true, CacheTTL: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceConfig, "k", "v1"))
	_, _, err = backend.Get(ctx, storage.NamespaceConfig, "k")
	require.NoError(t, err)

	// Simulate another process rewriting the file with a different mtime.
	path := filepath.Join(dir, "config", "k.json")
	require.NoError(t, os.WriteFile(path, []byte(`"v2"`), 0o600))
	future := time.Now().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	value, found, err := backend.Get(ctx, storage.NamespaceConfig, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", value)
}

func TestCachedValueIsNotAliased(t *testing.T) {
	backend := newTestBackend(t, true)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, storage.NamespaceConfig, "k", map[string]any{"n": 1}))

	first, _, err := backend.Get(ctx, storage.NamespaceConfig, "k")
	require.NoError(t, err)
	first.(map[string]any)["n"] = 99

	second, _, err := backend.Get(ctx, storage.NamespaceConfig, "k")
	require.NoError(t, err)
	assert.Equal(t, float64(1), second.(map[string]any)["n"])
}

func TestLockTimeout(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBackend(Options{
		BaseDir:        dir,
		LockTimeout:    300 * time.Millisecond,
		LockStaleAfter: time.Hour,
	})
	require.NoError(t, err)
	ctx := context.Background()

	lockPath := filepath.Join(dir, "sessions", "k.json.lock")
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0o700))
	require.NoError(t, os.WriteFile(lockPath, []byte("other-owner"), 0o600))

	_, _, err = backend.Update(ctx, storage.NamespaceSessions, "k", func(any, bool) (any, bool, error) {
		return "v", true, nil
	})
	require.ErrorIs(t, err, storage.ErrLockTimeout)
}

func TestStaleLockEvicted(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewBackend(Options{
		BaseDir:        dir,
		LockTimeout:    5 * time.Second,
		LockStaleAfter: time.Second,
	})
	require.NoError(t, err)
	ctx := context.Background()

	lockPath := filepath.Join(dir, "sessions", "k.json.lock")
	require.NoError(t, os.MkdirAll(filepath.Dir(lockPath), 0o700))
	require.NoError(t, os.WriteFile(lockPath, []byte("dead-owner"), 0o600))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	next, kept, err := backend.Update(ctx, storage.NamespaceSessions, "k", func(any, bool) (any, bool, error) {
		return "v", true, nil
	})
	require.NoError(t, err)
	assert.True(t, kept)
	assert.Equal(t, "v", next)
}

func TestUpdateHonorsCancellation(t *testing.T) {
	backend := newTestBackend(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := backend.Update(ctx, storage.NamespaceSessions, "k", func(any, bool) (any, bool, error) {
		return "v", true, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestHealthCheck(t *testing.T) {
	backend := newTestBackend(t, false)

	status := backend.HealthCheck(context.Background())
	assert.True(t, status.OK)
	assert.Empty(t, status.Err)
}

func TestTypeAndDistributed(t *testing.T) {
	backend := newTestBackend(t, false)
	assert.Equal(t, storage.TypeFile, backend.Type())
	assert.False(t, backend.Distributed())
}
