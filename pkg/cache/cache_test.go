package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bindweld/bindweld/pkg/extract"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return c
}

func sampleResult() *extract.Result {
	return &extract.Result{
		Records: []extract.RawRecord{
			{Name: "zoo::Goat", Kind: extract.RecordClass, DeclOrder: 0},
		},
		Functions: []extract.RawFunction{
			{Name: "zoo::feed", Kind: extract.KindFunction, DeclOrder: 1},
		},
	}
}

func TestCache_RoundTrip(t *testing.T) {
	c := newCache(t)
	key := Key([]Header{{Path: "zoo.h", Content: []byte("class Goat;")}}, "fp")

	_, ok := c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, sampleResult()))

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "zoo::Goat", got.Records[0].Name)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	key := Key([]Header{{Path: "zoo.h", Content: []byte("x")}}, "fp")

	c1, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, c1.Put(key, sampleResult()))

	c2, err := New(dir, nil)
	require.NoError(t, err)
	got, ok := c2.Get(key)
	require.True(t, ok)
	assert.Equal(t, 2, got.DeclCount())
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil)
	require.NoError(t, err)

	key := Key([]Header{{Path: "zoo.h", Content: []byte("x")}}, "fp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("{truncated"), 0o644))

	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCache_VersionMismatchIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil)
	require.NoError(t, err)

	key := Key([]Header{{Path: "zoo.h", Content: []byte("x")}}, "fp")
	stale, err := json.Marshal(envelope{Version: envelopeVersion - 1, Key: key, Result: sampleResult()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), stale, 0o644))

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestCache_MismatchedKeyIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil)
	require.NoError(t, err)

	key := Key([]Header{{Path: "zoo.h", Content: []byte("x")}}, "fp")
	wrong, err := json.Marshal(envelope{Version: envelopeVersion, Key: "other", Result: sampleResult()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), wrong, 0o644))

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestKey_Sensitivity(t *testing.T) {
	a := []Header{{Path: "a.h", Content: []byte("int x;")}}
	b := []Header{{Path: "a.h", Content: []byte("int y;")}}

	assert.NotEqual(t, Key(a, "fp"), Key(b, "fp"), "content change must change the key")
	assert.NotEqual(t, Key(a, "fp"), Key(a, "fp2"), "directive change must change the key")

	two := []Header{
		{Path: "a.h", Content: []byte("int x;")},
		{Path: "b.h", Content: []byte("int y;")},
	}
	swapped := []Header{two[1], two[0]}
	assert.NotEqual(t, Key(two, "fp"), Key(swapped, "fp"), "include order must change the key")

	assert.Equal(t, Key(a, "fp"), Key(a, "fp"))
}

func TestCache_PutSkipsWhenLockHeld(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil)
	require.NoError(t, err)

	key := Key([]Header{{Path: "zoo.h", Content: []byte("x")}}, "fp")
	lockPath := filepath.Join(dir, key+".json.lock")
	require.NoError(t, os.WriteFile(lockPath, nil, 0o644))

	// The concurrent writer would store identical content; skipping is
	// harmless and keeps Put non-blocking.
	require.NoError(t, c.Put(key, sampleResult()))
	assert.Equal(t, int64(1), c.Stats().WriteSkip)

	require.NoError(t, os.Remove(lockPath))
	_, onDisk := os.Stat(filepath.Join(dir, key+".json"))
	assert.True(t, os.IsNotExist(onDisk), "skipped write must not leave a disk entry")

	// The in-memory level still serves the result for this process.
	_, ok := c.Get(key)
	assert.True(t, ok)
}
