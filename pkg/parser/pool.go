package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool manages a pool of tree-sitter C++ parsers for concurrent use.
//
// Channel-based pooling: acquire pulls a parser from the channel or
// lazily creates one up to maxSize; release pushes it back. Watch mode
// rebuilds can parse while the previous run's report is still being
// served, so the pool must be safe for concurrent access.
type parserPool struct {
	pool    chan *ts.Parser
	langPtr unsafe.Pointer
	maxSize int

	mutex   sync.Mutex
	created int

	logger *slog.Logger
}

func newParserPool(langPtr unsafe.Pointer, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		pool:    make(chan *ts.Parser, maxSize),
		langPtr: langPtr,
		maxSize: maxSize,
		logger:  logger,
	}
}

// acquire returns a parser from the pool, creating one if needed.
// Blocks when all maxSize parsers are in use.
func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.pool:
		return parser, nil
	default:
		return p.createParserIfNeeded()
	}
}

func (p *parserPool) createParserIfNeeded() (*ts.Parser, error) {
	p.mutex.Lock()

	if p.created < p.maxSize {
		parser := ts.NewParser()
		if parser == nil {
			p.mutex.Unlock()
			return nil, fmt.Errorf("failed to create parser")
		}

		tsLang := ts.NewLanguage(p.langPtr)
		if err := parser.SetLanguage(tsLang); err != nil {
			parser.Close()
			p.mutex.Unlock()
			return nil, fmt.Errorf("failed to set language: %w", err)
		}

		p.created++
		p.logger.Debug("created parser in pool", "pool_size", p.created)

		p.mutex.Unlock()
		return parser, nil
	}

	// Max size reached: wait for a release.
	p.mutex.Unlock()
	parser := <-p.pool
	return parser, nil
}

// release returns a parser to the pool. Never blocks: the channel is
// sized to maxSize and only created parsers are released.
func (p *parserPool) release(parser *ts.Parser) {
	select {
	case p.pool <- parser:
	default:
		// Should not happen; close the excess parser rather than leak it.
		parser.Close()
	}
}

func (p *parserPool) getCreatedCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.created
}

// close drains and closes all pooled parsers.
func (p *parserPool) close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for {
		select {
		case parser := <-p.pool:
			parser.Close()
		default:
			return
		}
	}
}
