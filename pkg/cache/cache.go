// Package cache stores extraction results on disk keyed by a content
// hash of the header set and directive configuration. The cache is
// advisory: a miss re-runs extraction, and anything unreadable or
// from another envelope version is treated as a miss, never trusted.
// Writers take a per-key lockfile so concurrent invocations do not
// interleave writes; losing the race just means skipping the write.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bindweld/bindweld/pkg/extract"
)

// envelopeVersion is bumped whenever the serialized declaration model
// changes shape; older envelopes then read as misses.
const envelopeVersion = 2

const memEntries = 64

type envelope struct {
	Version int             `json:"version"`
	Key     string          `json:"key"`
	Result  *extract.Result `json:"result"`
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	WriteSkip int64 `json:"write_skips"`
}

// Cache is a two-level extraction cache: a small in-process LRU in
// front of the on-disk store.
type Cache struct {
	dir    string
	mem    *lru.Cache[string, *extract.Result]
	logger *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	writeSkip atomic.Int64
}

// New opens (creating if needed) a cache rooted at dir.
func New(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	mem, err := lru.New[string, *extract.Result](memEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir, mem: mem, logger: logger}, nil
}

// Header is one input header in include order.
type Header struct {
	Path    string
	Content []byte
}

// Key derives the cache key: a hash over header contents in include
// order plus the directive fingerprint. Include order matters because
// it changes what the extractor sees; directive order does not,
// because the fingerprint is already order-insensitive.
func Key(headers []Header, fingerprint string) string {
	h := sha256.New()
	for _, hd := range headers {
		h.Write([]byte(hd.Path))
		h.Write([]byte{0})
		h.Write(hd.Content)
		h.Write([]byte{0})
	}
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached extraction result for key, or a miss.
func (c *Cache) Get(key string) (*extract.Result, bool) {
	if res, ok := c.mem.Get(key); ok {
		c.hits.Add(1)
		return res, true
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Corruption reads as a miss.
		c.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if env.Version != envelopeVersion || env.Key != key || env.Result == nil {
		c.misses.Add(1)
		return nil, false
	}

	c.mem.Add(key, env.Result)
	c.hits.Add(1)
	return env.Result, true
}

// Put stores an extraction result. At most one writer proceeds per
// key; a concurrent writer holding the lock makes Put a silent no-op,
// since both writers would store identical content anyway.
func (c *Cache) Put(key string, res *extract.Result) error {
	c.mem.Add(key, res)

	lockPath := c.path(key) + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			c.writeSkip.Add(1)
			return nil
		}
		return fmt.Errorf("taking cache lock: %w", err)
	}
	defer func() {
		lock.Close()
		os.Remove(lockPath)
	}()

	data, err := json.Marshal(envelope{Version: envelopeVersion, Key: key, Result: res})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		WriteSkip: c.writeSkip.Load(),
	}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
