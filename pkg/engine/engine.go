// Package engine orchestrates the generation pipeline: directive
// parsing, header loading, extraction (cached), model building,
// classification, name resolution and codegen, as one sequential
// pass per invocation.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bindweld/bindweld/pkg/cache"
	"github.com/bindweld/bindweld/pkg/classify"
	"github.com/bindweld/bindweld/pkg/codegen"
	"github.com/bindweld/bindweld/pkg/directive"
	"github.com/bindweld/bindweld/pkg/extract"
	"github.com/bindweld/bindweld/pkg/model"
	"github.com/bindweld/bindweld/pkg/names"
	"github.com/bindweld/bindweld/pkg/parser"
	"github.com/bindweld/bindweld/pkg/util"
)

// Options configures one generation run.
type Options struct {
	// IncludeDirs are searched, in order, for each include directive.
	IncludeDirs []string
	// OutDir receives the artifact pair. Defaults to the current
	// directory.
	OutDir string
	// CacheDir holds extraction results keyed by content hash. Empty
	// disables the on-disk cache.
	CacheDir string
	// DryRun runs the full pipeline but writes nothing.
	DryRun bool
}

// Engine runs the pipeline. Safe to reuse across runs; not safe for
// concurrent use.
type Engine struct {
	pm      *parser.Manager
	ext     *extract.Extractor
	headers *util.HeaderCache
	store   *cache.Cache
	log     *slog.Logger
}

// New creates an engine with all pipeline dependencies.
func New(logger *slog.Logger, cacheDir string) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pm := parser.NewManager(logger)

	var store *cache.Cache
	if cacheDir != "" {
		var err error
		store, err = cache.New(cacheDir, logger)
		if err != nil {
			return nil, fmt.Errorf("opening extraction cache: %w", err)
		}
	}

	return &Engine{
		pm:      pm,
		ext:     extract.New(pm, logger),
		headers: util.NewHeaderCache(logger),
		store:   store,
		log:     logger,
	}, nil
}

// Close releases parser and header resources.
func (e *Engine) Close() error {
	err := e.pm.Close()
	if herr := e.headers.Close(); err == nil {
		err = herr
	}
	return err
}

// Run executes the pipeline for one directive file and returns the
// generation report. Configuration and resolution errors are fatal;
// unsupported constructs degrade to stubs listed in the report.
func (e *Engine) Run(directivePath string, opts Options) (*Report, error) {
	totalStart := time.Now()
	stats := Stats{}

	// Phase 1: directives.
	phaseStart := time.Now()
	cfg, err := directive.ParseFile(directivePath)
	if err != nil {
		return nil, err
	}
	stats.DirectiveTimeMs = time.Since(phaseStart).Milliseconds()
	e.log.Info("directives parsed",
		"includes", len(cfg.Includes), "requests", len(cfg.Generate)+len(cfg.GeneratePOD)+len(cfg.GenerateNS),
		"ms", stats.DirectiveTimeMs)

	// Phase 2: header loading.
	phaseStart = time.Now()
	headers, err := e.loadHeaders(cfg, opts.IncludeDirs, filepath.Dir(directivePath))
	if err != nil {
		return nil, err
	}
	stats.LoadTimeMs = time.Since(phaseStart).Milliseconds()

	// Phase 3: extraction, through the cache when one is configured.
	phaseStart = time.Now()
	decls, hit, err := e.extractAll(headers, cfg)
	if err != nil {
		return nil, err
	}
	stats.ExtractionTimeMs = time.Since(phaseStart).Milliseconds()
	stats.CacheHit = hit
	e.log.Info("extraction complete",
		"decls", decls.DeclCount(), "cached", hit, "ms", stats.ExtractionTimeMs)

	report := &Report{
		ModName:    cfg.ModName,
		Directives: directivePath,
		Stats:      stats,
	}

	if cfg.ParseOnly {
		report.Stats.TotalTimeMs = time.Since(totalStart).Milliseconds()
		report.fillEntitiesFromRaw(decls)
		e.log.Info("parse_only set, stopping after extraction")
		return report, nil
	}

	// Phase 4: model closure.
	phaseStart = time.Now()
	api, err := model.Build(decls, cfg, e.log)
	if err != nil {
		return nil, err
	}
	report.Stats.ModelTimeMs = time.Since(phaseStart).Milliseconds()

	// Phase 5: classification.
	phaseStart = time.Now()
	classes, err := classify.Classify(api, e.log)
	if err != nil {
		return nil, err
	}
	report.Stats.ClassifyTimeMs = time.Since(phaseStart).Milliseconds()

	// Phase 6: name resolution.
	phaseStart = time.Now()
	table, err := names.Build(api, e.log)
	if err != nil {
		return nil, err
	}
	report.Stats.NamingTimeMs = time.Since(phaseStart).Milliseconds()

	// Phase 7: codegen.
	phaseStart = time.Now()
	arts, err := codegen.New(api, classes, table, e.log).Generate()
	if err != nil {
		return nil, err
	}
	report.Stats.CodegenTimeMs = time.Since(phaseStart).Milliseconds()

	report.fillEntities(api, classes, table)
	report.Stubs = arts.Stubs

	if !opts.DryRun {
		paths, err := e.writeArtifacts(arts, cfg.ModName, opts.OutDir)
		if err != nil {
			return nil, err
		}
		report.Artifacts = paths
	}

	report.Stats.TotalTimeMs = time.Since(totalStart).Milliseconds()
	e.log.Info("generation complete",
		"entities", api.Len(),
		"stubs", len(report.Stubs),
		"ms", report.Stats.TotalTimeMs)
	return report, nil
}

// loadHeaders resolves each include directive against the include
// directories and reads its contents through the mmap cache.
func (e *Engine) loadHeaders(cfg *directive.Config, includeDirs []string, directiveDir string) ([]cache.Header, error) {
	search := append([]string{directiveDir}, includeDirs...)

	var out []cache.Header
	for _, inc := range cfg.Includes {
		path, err := resolveHeader(inc, search)
		if err != nil {
			return nil, err
		}
		mh, err := e.headers.Get(path)
		if err != nil {
			return nil, fmt.Errorf("reading header %s: %w", path, err)
		}
		out = append(out, cache.Header{Path: inc, Content: mh.Bytes()})
	}
	return out, nil
}

func resolveHeader(include string, search []string) (string, error) {
	if filepath.IsAbs(include) {
		if _, err := os.Stat(include); err == nil {
			return include, nil
		}
		return "", &directive.ConfigError{Msg: fmt.Sprintf("included header %s does not exist", include)}
	}
	for _, dir := range search {
		cand := filepath.Join(dir, include)
		if _, err := os.Stat(cand); err == nil {
			return cand, nil
		}
	}
	return "", &directive.ConfigError{Msg: fmt.Sprintf("included header %s was not found in any include directory", include)}
}

// extractAll parses every header, consulting the cache first. The key
// covers header contents in include order plus the directive
// fingerprint, so any change to either re-extracts.
func (e *Engine) extractAll(headers []cache.Header, cfg *directive.Config) (*extract.Result, bool, error) {
	key := cache.Key(headers, cfg.Fingerprint())
	if e.store != nil {
		if res, ok := e.store.Get(key); ok {
			return res, true, nil
		}
	}

	merged := &extract.Result{}
	for _, h := range headers {
		res, err := e.ext.ExtractHeader(h.Path, h.Content)
		if err != nil {
			return nil, false, fmt.Errorf("extraction failed for %s: %w", h.Path, err)
		}
		merged.Merge(res)
	}

	if e.store != nil {
		if err := e.store.Put(key, merged); err != nil {
			// Advisory cache: a failed write is logged, never fatal.
			e.log.Warn("caching extraction result failed", "error", err)
		}
	}
	return merged, false, nil
}

// writeArtifacts commits the pair atomically enough for a build tool:
// temp file plus rename per artifact.
func (e *Engine) writeArtifacts(arts *codegen.Artifacts, mod, outDir string) (ArtifactPaths, error) {
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return ArtifactPaths{}, fmt.Errorf("creating output directory: %w", err)
	}

	paths := ArtifactPaths{
		Bridge:     filepath.Join(outDir, mod+".go"),
		ShimHeader: filepath.Join(outDir, mod+"_shim.h"),
		ShimSource: filepath.Join(outDir, mod+"_shim.cc"),
	}
	files := []struct {
		path string
		data []byte
	}{
		{paths.Bridge, arts.BridgeGo},
		{paths.ShimHeader, arts.ShimHeader},
		{paths.ShimSource, arts.ShimSource},
	}
	for _, f := range files {
		tmp := f.path + ".tmp"
		if err := os.WriteFile(tmp, f.data, 0o644); err != nil {
			return ArtifactPaths{}, fmt.Errorf("writing %s: %w", f.path, err)
		}
		if err := os.Rename(tmp, f.path); err != nil {
			os.Remove(tmp)
			return ArtifactPaths{}, fmt.Errorf("committing %s: %w", f.path, err)
		}
	}
	return paths, nil
}
