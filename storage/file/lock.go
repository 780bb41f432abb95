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
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw-storage/storage"
)

const lockPollInterval = 100 * time.Millisecond

type lockConfig struct {
	timeout    time.Duration
	staleAfter time.Duration
}

func newLockConfig(timeout, staleAfter time.Duration) lockConfig {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return lockConfig{timeout: timeout, staleAfter: staleAfter}
}

// acquireLock takes the cooperative lock at lockPath: an exclusive create
// that other processes on the host honor. While the file exists the lock is
// held. Locks older than the stale threshold are treated as abandoned and
// evicted. The returned release function removes the lock file.
func acquireLock(ctx context.Context, lockPath string, cfg lockConfig) (release func(), err error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(cfg.timeout)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err == nil {
			f.WriteString(owner)
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: create lock %s: %v", storage.ErrBackendUnavailable, lockPath, err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil {
			if time.Since(info.ModTime()) > cfg.staleAfter {
				// The holder died without releasing. Removal races with
				// other waiters; whoever wins the next create gets the lock.
				os.Remove(lockPath)
				continue
			}
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s held for more than %s", storage.ErrLockTimeout, lockPath, cfg.timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
