package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"github.com/bindweld/bindweld/pkg/util"
)

// Manager owns a pool of tree-sitter C++ parsers.
//
// Memory management: Manager owns the pool and must be closed via
// Close(); callers own returned Trees and must call tree.Close().
//
// Example:
//
//	manager := parser.NewManager(logger)
//	defer manager.Close()
//
//	tree, err := manager.Parse(headerBytes)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type Manager struct {
	pool  *parserPool
	mutex sync.Mutex

	logger *slog.Logger

	stats struct {
		parsesCalled int
	}
}

// NewManager creates a Manager with a CPU-sized parser pool.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		pool:   newParserPool(languagePointer(), util.GetOptimalPoolSize(), logger),
		logger: logger,
	}
}

// Parse parses C++ source using the tree-sitter C++ grammar.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
// A tree containing ERROR nodes is still returned: the extractor
// degrades unparseable declarations to diagnostics rather than failing
// the whole header.
func (m *Manager) Parse(source []byte) (*ts.Tree, error) {
	m.mutex.Lock()
	m.stats.parsesCalled++
	m.mutex.Unlock()

	parser, err := m.pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}

	tree := parser.Parse(source, nil)
	m.pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser.Parse returned nil tree")
	}

	if tree.RootNode().HasError() {
		m.logger.Warn("parse tree contains errors; affected declarations degrade to stubs")
	}

	return tree, nil
}

// Stats returns parser usage statistics.
func (m *Manager) Stats() Stats {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return Stats{
		ParsersCreated: m.pool.getCreatedCount(),
		ParsesCalled:   m.stats.parsesCalled,
	}
}

// Close releases all pooled parsers. The Manager cannot be used afterwards.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.logger.Debug("closing parser manager",
		"parsers_created", m.pool.getCreatedCount(),
		"parses_called", m.stats.parsesCalled)

	m.pool.close()
	return nil
}

// Stats contains parser usage statistics.
type Stats struct {
	ParsersCreated int
	ParsesCalled   int
}

func languagePointer() unsafe.Pointer {
	return ts_cpp.Language()
}
