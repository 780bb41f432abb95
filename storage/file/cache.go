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
	"os"
	"sync"
	"time"

	"github.com/openclaw/openclaw-storage/storage"
)

type cacheEntry struct {
	value    any
	loadedAt time.Time
	mtime    time.Time
}

// valueCache is a per-process cache of decoded values keyed by file path.
// An entry is valid only while its TTL has not elapsed and the on-disk
// mtime still matches, so out-of-process writes are observed within one
// read. Values are deep-cloned on both put and get.
type valueCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newValueCache(ttl time.Duration) *valueCache {
	return &valueCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *valueCache) get(path string) (any, bool) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	if time.Since(entry.loadedAt) > c.ttl {
		c.invalidate(path)
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.ModTime().Equal(entry.mtime) {
		c.invalidate(path)
		return nil, false
	}

	clone, err := storage.CloneValue(entry.value)
	if err != nil {
		return nil, false
	}
	return clone, true
}

func (c *valueCache) put(path string, value any, mtime time.Time) {
	clone, err := storage.CloneValue(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.entries[path] = cacheEntry{value: clone, loadedAt: time.Now(), mtime: mtime}
	c.mu.Unlock()
}

func (c *valueCache) invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

func (c *valueCache) purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
