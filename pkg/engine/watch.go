package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	bwparser "github.com/bindweld/bindweld/pkg/parser"
)

// WatchOptions tunes the regeneration watcher.
type WatchOptions struct {
	// DebounceMs groups rapid successive changes into one rerun.
	DebounceMs int
	// Patterns restricts which changed files trigger a rerun, as
	// doublestar globs relative to the watched directories. Empty
	// means every header plus the directive file.
	Patterns []string
}

// DefaultWatchOptions returns the standard debounce and patterns.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{DebounceMs: 200}
}

// Watcher reruns the pipeline whenever a watched header or the
// directive file changes. Changes are debounced so editor save
// bursts produce a single regeneration.
type Watcher struct {
	engine  *Engine
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	options WatchOptions

	directivePath string
	runOpts       Options

	debounce   *time.Timer
	debounceMu sync.Mutex

	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

// NewWatcher creates a watcher over an engine.
func NewWatcher(e *Engine, options WatchOptions, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if options.DebounceMs == 0 {
		options.DebounceMs = 200
	}
	return &Watcher{
		engine:   e,
		watcher:  fsw,
		logger:   logger,
		options:  options,
		stopChan: make(chan struct{}),
	}, nil
}

// Start runs one generation immediately, then watches the directive
// file's directory and every include directory for changes. It blocks
// until Stop is called or the watcher fails.
func (w *Watcher) Start(directivePath string, runOpts Options) error {
	w.directivePath = directivePath
	w.runOpts = runOpts

	dirs := map[string]struct{}{filepath.Dir(directivePath): {}}
	for _, d := range runOpts.IncludeDirs {
		dirs[d] = struct{}{}
	}
	for d := range dirs {
		if _, err := os.Stat(d); err != nil {
			continue
		}
		if err := w.watcher.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
		w.logger.Debug("watching directory", "dir", d)
	}

	w.rerun()

	for {
		select {
		case <-w.stopChan:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.logger.Debug("change detected", "file", ev.Name, "op", ev.Op.String())
			w.engine.headers.Invalidate(ev.Name)
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Stop shuts the watcher down. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopChan)
	w.watcher.Close()
}

// relevant filters events down to headers, the directive file, and
// any user-supplied patterns.
func (w *Watcher) relevant(path string) bool {
	if path == w.directivePath {
		return true
	}
	if len(w.options.Patterns) == 0 {
		return bwparser.IsHeaderFile(path)
	}
	base := filepath.Base(path)
	for _, pat := range w.options.Patterns {
		if ok, err := doublestar.Match(pat, base); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pat, path); err == nil && ok {
			return true
		}
	}
	return false
}

// schedule arms (or re-arms) the debounce timer.
func (w *Watcher) schedule() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(time.Duration(w.options.DebounceMs)*time.Millisecond, w.rerun)
}

func (w *Watcher) rerun() {
	start := time.Now()
	report, err := w.engine.Run(w.directivePath, w.runOpts)
	if err != nil {
		// Watch mode keeps running through config errors; the user is
		// mid-edit and the next save may fix it.
		w.logger.Error("regeneration failed", "error", err, "config_error", IsConfigError(err))
		return
	}
	w.logger.Info("regenerated",
		"entities", len(report.Entities),
		"stubs", len(report.Stubs),
		"ms", time.Since(start).Milliseconds())
}
