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


package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/apparentlymart/go-userdirs/userdirs"

	"github.com/openclaw/openclaw-storage/storage"
)

const (
	valueExt      = ".json"
	transcriptExt = ".jsonl"
	lockExt       = ".lock"

	dirPerm  = 0o700
	filePerm = 0o600
)

// Options configures the file backend.
type Options struct {
	// BaseDir is the root of the on-disk layout. When empty the user state
	// directory for the application is used.
	BaseDir string

	// CacheEnabled turns the per-process value cache on. Zero-value Options
	// disable it; the service layer sets it from its config default.
	CacheEnabled bool

	// CacheTTL bounds how long a cached value may be served without a disk
	// check. Defaults to 45 seconds when zero.
	CacheTTL time.Duration

	// LockTimeout bounds how long Update waits for the cooperative file
	// lock. Defaults to 10 seconds when zero.
	LockTimeout time.Duration

	// LockStaleAfter is the age past which an abandoned lock file is
	// evicted. Defaults to 30 seconds when zero.
	LockStaleAfter time.Duration

	Logger *slog.Logger
}

// Backend stores namespaced values and transcripts on the local filesystem.
type Backend struct {
	baseDir string
	cache   *valueCache
	locks   lockConfig
	logger  *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend creates a file backend rooted at opts.BaseDir. The directory
// tree is created lazily on first write.
func NewBackend(opts Options) (storage.Backend, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = defaultBaseDir()
	}
	if baseDir == "" {
		return nil, fmt.Errorf("%w: no base directory and no resolvable user state dir", storage.ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cache *valueCache
	if opts.CacheEnabled {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = 45 * time.Second
		}
		cache = newValueCache(ttl)
	}

	return &Backend{
		baseDir: baseDir,
		cache:   cache,
		locks:   newLockConfig(opts.LockTimeout, opts.LockStaleAfter),
		logger:  logger,
	}, nil
}

// defaultBaseDir resolves the per-user state directory for openclaw.
func defaultBaseDir() string {
	dirs := userdirs.ForApp("openclaw", "openclaw", "io.openclaw")
	if len(dirs.DataDirs) == 0 {
		return ""
	}
	return filepath.Join(dirs.DataDirs[0], "storage")
}

func (b *Backend) Type() string      { return storage.TypeFile }
func (b *Backend) Distributed() bool { return false }

// Initialize creates the base directory.
func (b *Backend) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(b.baseDir, dirPerm); err != nil {
		return fmt.Errorf("%w: create base dir %s: %v", storage.ErrBackendUnavailable, b.baseDir, err)
	}
	return nil
}

// Close drops the value cache. The backend holds no other resources.
func (b *Backend) Close() error {
	if b.cache != nil {
		b.cache.purge()
	}
	return nil
}

// valuePath returns the on-disk location for a key-value entry.
func (b *Backend) valuePath(ns storage.Namespace, key string) string {
	return filepath.Join(b.baseDir, string(ns), storage.SanitizeKey(key)+valueExt)
}

// transcriptPath returns the on-disk location for an append log.
func (b *Backend) transcriptPath(ns storage.Namespace, key string) string {
	return filepath.Join(b.baseDir, string(ns), storage.SanitizeKey(key)+transcriptExt)
}

func (b *Backend) Get(ctx context.Context, ns storage.Namespace, key string) (any, bool, error) {
	path := b.valuePath(ns, key)

	if b.cache != nil {
		if value, ok := b.cache.get(path); ok {
			return value, true, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: read %s: %v", storage.ErrBackendUnavailable, path, err)
	}

	value, err := storage.DecodeValue(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}

	if b.cache != nil {
		b.cache.put(path, value, mtimeOf(path))
	}
	return value, true, nil
}

func (b *Backend) Set(ctx context.Context, ns storage.Namespace, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := b.valuePath(ns, key)
	data, err := storage.EncodeValue(value)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	if b.cache != nil {
		b.cache.invalidate(path)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, ns storage.Namespace, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path := b.valuePath(ns, key)
	if b.cache != nil {
		b.cache.invalidate(path)
	}

	err := os.Remove(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: remove %s: %v", storage.ErrBackendUnavailable, path, err)
	}
	return true, nil
}

func (b *Backend) List(ctx context.Context, ns storage.Namespace, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(b.baseDir, string(ns))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", storage.ErrBackendUnavailable, dir, err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var key string
		switch {
		case strings.HasSuffix(name, valueExt):
			key = strings.TrimSuffix(name, valueExt)
		case strings.HasSuffix(name, transcriptExt):
			key = strings.TrimSuffix(name, transcriptExt)
		default:
			continue
		}
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Update performs a read-modify-write under the cooperative file lock, so
// concurrent updates on the same key from any process on this host
// serialize.
func (b *Backend) Update(ctx context.Context, ns storage.Namespace, key string, fn storage.UpdateFunc) (any, bool, error) {
	path := b.valuePath(ns, key)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, false, fmt.Errorf("%w: create dir for %s: %v", storage.ErrBackendUnavailable, path, err)
	}

	release, err := acquireLock(ctx, path+lockExt, b.locks)
	if err != nil {
		return nil, false, err
	}
	defer release()

	// Re-read under the lock; the cached value may predate another
	// process's write.
	if b.cache != nil {
		b.cache.invalidate(path)
	}
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

// Append adds one line to the key's transcript file. O_APPEND keeps each
// write atomic per line on POSIX for writes up to PIPE_BUF.
func (b *Backend) Append(ctx context.Context, ns storage.Namespace, key string, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := b.transcriptPath(ns, key)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("%w: create dir for %s: %v", storage.ErrBackendUnavailable, path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", storage.ErrBackendUnavailable, path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%w: append to %s: %v", storage.ErrBackendUnavailable, path, err)
	}
	return nil
}

// ReadLines reads the whole transcript file once and yields its non-blank
// lines in file order. A missing file yields nothing.
func (b *Backend) ReadLines(ctx context.Context, ns storage.Namespace, key string) iter.Seq2[string, error] {
	path := b.transcriptPath(ns, key)
	return func(yield func(string, error) bool) {
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return
			}
			yield("", fmt.Errorf("%w: read %s: %v", storage.ErrBackendUnavailable, path, err))
			return
		}

		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSuffix(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// HealthCheck writes and removes a probe file under the base directory.
func (b *Backend) HealthCheck(ctx context.Context) storage.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	status := storage.HealthStatus{OK: true}

	if err := ctx.Err(); err != nil {
		return storage.HealthStatus{Err: err.Error()}
	}

	probe := filepath.Join(b.baseDir, ".health")
	if err := os.MkdirAll(b.baseDir, dirPerm); err != nil {
		return storage.HealthStatus{Err: err.Error(), Latency: time.Since(start)}
	}
	if err := os.WriteFile(probe, []byte("ok"), filePerm); err != nil {
		return storage.HealthStatus{Err: err.Error(), Latency: time.Since(start)}
	}
	os.Remove(probe)

	status.Latency = time.Since(start)
	return status
}

// writeFileAtomic writes data to path through a temp file and rename on
// POSIX. Windows gets a plain write: replace-on-rename is not reliable
// there and the degraded mode is accepted.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("%w: create dir for %s: %v", storage.ErrBackendUnavailable, path, err)
	}

	if runtime.GOOS == "windows" {
		if err := os.WriteFile(path, data, filePerm); err != nil {
			return fmt.Errorf("%w: write %s: %v", storage.ErrBackendUnavailable, path, err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", storage.ErrBackendUnavailable, path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: chmod %s: %v", storage.ErrBackendUnavailable, tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", storage.ErrBackendUnavailable, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", storage.ErrBackendUnavailable, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", storage.ErrBackendUnavailable, path, err)
	}
	return nil
}

func mtimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
