// Header files are read many times per invocation: once for content
// hashing (the extraction cache key) and again for parsing. HeaderCache
// memory-maps each header on first access so repeated reads are O(1)
// page lookups rather than full file reads, with a graceful fallback to
// os.ReadFile when mmap fails (e.g. on exotic filesystems).
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// MappedHeader is one memory-mapped header file.
type MappedHeader struct {
	// Path is the absolute path to the header.
	Path string

	// Data is the mapped region, directly sliceable. Nil for empty files
	// and for fallback entries, whose bytes live in Fallback instead.
	Data mmap.MMap

	// Fallback holds the file contents when mmap failed.
	Fallback []byte

	file *os.File
	Size int64
}

// Bytes returns the header contents regardless of how they were loaded.
func (m *MappedHeader) Bytes() []byte {
	if m.Data != nil {
		return m.Data
	}
	return m.Fallback
}

// HeaderCacheStats tracks cache behavior over one process lifetime.
type HeaderCacheStats struct {
	Hits         int64
	Misses       int64
	MmapFailures int64
}

// HeaderCache lazily maps header files and keeps them mapped until
// Close. Thread-safe: watch mode re-reads headers from rebuild
// goroutines while the MCP server may be serving a report.
type HeaderCache struct {
	mu      sync.RWMutex
	mapped  map[string]*MappedHeader
	logger  *slog.Logger
	stats   HeaderCacheStats
	statsMu sync.Mutex
}

// NewHeaderCache creates an empty cache. Close must be called to
// release mapped regions.
func NewHeaderCache(logger *slog.Logger) *HeaderCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeaderCache{
		mapped: make(map[string]*MappedHeader),
		logger: logger,
	}
}

// Get returns the mapped header, loading it on first access.
func (hc *HeaderCache) Get(path string) (*MappedHeader, error) {
	hc.mu.RLock()
	if mh, ok := hc.mapped[path]; ok {
		hc.mu.RUnlock()
		hc.recordHit()
		return mh, nil
	}
	hc.mu.RUnlock()

	hc.mu.Lock()
	defer hc.mu.Unlock()

	// Another goroutine may have loaded it while we waited.
	if mh, ok := hc.mapped[path]; ok {
		hc.recordHit()
		return mh, nil
	}

	mh, err := hc.load(path)
	if err != nil {
		hc.recordMiss()
		return nil, err
	}
	hc.mapped[path] = mh
	hc.recordMiss()
	return mh, nil
}

// Invalidate drops a single path from the cache. Watch mode calls this
// when fsnotify reports a header change, so the next Get remaps.
func (hc *HeaderCache) Invalidate(path string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if mh, ok := hc.mapped[path]; ok {
		hc.unmap(mh)
		delete(hc.mapped, path)
	}
}

// Stats returns a copy of the current counters.
func (hc *HeaderCache) Stats() HeaderCacheStats {
	hc.statsMu.Lock()
	defer hc.statsMu.Unlock()
	return hc.stats
}

// Size returns the number of currently cached headers.
func (hc *HeaderCache) Size() int {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return len(hc.mapped)
}

// Close unmaps everything. The cache is unusable afterwards.
func (hc *HeaderCache) Close() error {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	var firstErr error
	for path, mh := range hc.mapped {
		if err := hc.unmap(mh); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmap %q: %w", path, err)
		}
	}
	hc.mapped = make(map[string]*MappedHeader)
	return firstErr
}

func (hc *HeaderCache) load(path string) (*MappedHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open header %q: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat header %q: %w", path, err)
	}

	// Zero-byte files cannot be mapped.
	if stat.Size() == 0 {
		return &MappedHeader{Path: path, file: file, Size: 0}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		hc.recordMmapFailure()
		hc.logger.Warn("mmap failed, falling back to ReadFile",
			"path", path, "error", err)
		file.Close()
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, fmt.Errorf("read header %q: %w", path, rerr)
		}
		return &MappedHeader{Path: path, Fallback: raw, Size: int64(len(raw))}, nil
	}

	return &MappedHeader{Path: path, Data: data, file: file, Size: stat.Size()}, nil
}

func (hc *HeaderCache) unmap(mh *MappedHeader) error {
	var err error
	if mh.Data != nil {
		err = mh.Data.Unmap()
	}
	if mh.file != nil {
		if cerr := mh.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (hc *HeaderCache) recordHit() {
	hc.statsMu.Lock()
	hc.stats.Hits++
	hc.statsMu.Unlock()
}

func (hc *HeaderCache) recordMiss() {
	hc.statsMu.Lock()
	hc.stats.Misses++
	hc.statsMu.Unlock()
}

func (hc *HeaderCache) recordMmapFailure() {
	hc.statsMu.Lock()
	hc.stats.MmapFailures++
	hc.statsMu.Unlock()
}
