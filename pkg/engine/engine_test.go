package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zooHeader = `#pragma once

namespace zoo {

class Goat {
 public:
  Goat();
  ~Goat();
  int bark() const;

 private:
  int age_;
};

int feed(const Goat& g);

}
`

const zooDirectives = `include "zoo.h"
name "zoo"
safety unsafe
generate "zoo::Goat"
generate "zoo::feed"
`

func writeProject(t *testing.T, directives string) (dir, directivePath string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zoo.h"), []byte(zooHeader), 0o644))
	directivePath = filepath.Join(dir, "zoo.weld")
	require.NoError(t, os.WriteFile(directivePath, []byte(directives), 0o644))
	return dir, directivePath
}

func newEngine(t *testing.T, cacheDir string) *Engine {
	t.Helper()
	e, err := New(nil, cacheDir)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestRun_EndToEnd(t *testing.T) {
	dir, directivePath := writeProject(t, zooDirectives)
	outDir := filepath.Join(dir, "out")
	e := newEngine(t, filepath.Join(dir, "cache"))

	report, err := e.Run(directivePath, Options{OutDir: outDir})
	require.NoError(t, err)

	assert.Equal(t, "zoo", report.ModName)
	assert.False(t, report.Stats.CacheHit)

	q := NewQueryService(report)
	goat, ok := q.Lookup("zoo::Goat")
	require.True(t, ok)
	assert.Equal(t, "record", goat.Kind)
	assert.Equal(t, "non-trivial", goat.Verdict)

	bridge, err := os.ReadFile(report.Artifacts.Bridge)
	require.NoError(t, err)
	assert.Contains(t, string(bridge), "package zoo")
	assert.Contains(t, string(bridge), "type OwnedGoat struct {")
	assert.Contains(t, string(bridge), "func Feed(")

	_, err = os.Stat(report.Artifacts.ShimHeader)
	require.NoError(t, err)
	_, err = os.Stat(report.Artifacts.ShimSource)
	require.NoError(t, err)
}

func TestRun_SecondRunHitsCache(t *testing.T) {
	dir, directivePath := writeProject(t, zooDirectives)
	cacheDir := filepath.Join(dir, "cache")

	e1 := newEngine(t, cacheDir)
	first, err := e1.Run(directivePath, Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, first.Stats.CacheHit)

	e2 := newEngine(t, cacheDir)
	second, err := e2.Run(directivePath, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, second.Stats.CacheHit)
	assert.Equal(t, len(first.Entities), len(second.Entities))
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir, directivePath := writeProject(t, zooDirectives)
	outDir := filepath.Join(dir, "out")
	e := newEngine(t, "")

	report, err := e.Run(directivePath, Options{OutDir: outDir, DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, report.Artifacts.Bridge)

	_, err = os.Stat(outDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MissingHeaderIsConfigError(t *testing.T) {
	_, directivePath := writeProject(t, `include "missing.h"
name "zoo"
generate "zoo::Goat"
`)
	e := newEngine(t, "")

	_, err := e.Run(directivePath, Options{})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "missing.h")
}

func TestRun_MissingSymbolIsConfigError(t *testing.T) {
	_, directivePath := writeProject(t, `include "zoo.h"
name "zoo"
generate "zoo::Unicorn"
`)
	e := newEngine(t, "")

	_, err := e.Run(directivePath, Options{DryRun: true})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestRun_ParseOnlyStopsAfterExtraction(t *testing.T) {
	_, directivePath := writeProject(t, `include "zoo.h"
name "zoo"
generate "zoo::Goat"
parse_only
`)
	e := newEngine(t, "")

	report, err := e.Run(directivePath, Options{DryRun: true})
	require.NoError(t, err)
	require.NotEmpty(t, report.Entities)

	var names []string
	for _, en := range report.Entities {
		names = append(names, en.Name)
	}
	assert.Contains(t, names, "zoo::Goat")
	// Extraction-level rows carry no flat names or verdicts.
	for _, en := range report.Entities {
		assert.Empty(t, en.FlatName)
	}
}
