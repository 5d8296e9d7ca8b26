package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderCache_GetAndHit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zoo.h")
	require.NoError(t, os.WriteFile(path, []byte("class Goat;"), 0o644))

	hc := NewHeaderCache(nil)
	defer hc.Close()

	mh, err := hc.Get(path)
	require.NoError(t, err)
	assert.Equal(t, "class Goat;", string(mh.Bytes()))
	assert.Equal(t, int64(11), mh.Size)

	again, err := hc.Get(path)
	require.NoError(t, err)
	assert.Same(t, mh, again)

	stats := hc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, hc.Size())
}

func TestHeaderCache_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.h")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	hc := NewHeaderCache(nil)
	defer hc.Close()

	mh, err := hc.Get(path)
	require.NoError(t, err)
	assert.Empty(t, mh.Bytes())
}

func TestHeaderCache_MissingFile(t *testing.T) {
	hc := NewHeaderCache(nil)
	defer hc.Close()

	_, err := hc.Get(filepath.Join(t.TempDir(), "nope.h"))
	assert.Error(t, err)
}

func TestHeaderCache_InvalidateRemaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zoo.h")
	require.NoError(t, os.WriteFile(path, []byte("int a;"), 0o644))

	hc := NewHeaderCache(nil)
	defer hc.Close()

	_, err := hc.Get(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("int b;"), 0o644))
	hc.Invalidate(path)

	mh, err := hc.Get(path)
	require.NoError(t, err)
	assert.Equal(t, "int b;", string(mh.Bytes()))
}
