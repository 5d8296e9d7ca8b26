package extract

import (
	"fmt"
	"log/slog"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/bindweld/bindweld/pkg/parser"
)

// Extractor walks tree-sitter C++ parse trees and produces raw
// declarations. Each header is parsed exactly once; all declaration
// kinds are pulled from the same tree.
type Extractor struct {
	manager *parser.Manager
	logger  *slog.Logger

	// declOrder is the global declaration counter. It spans the whole
	// extraction run so overload suffixes are stable across headers.
	declOrder int
}

// New creates an extractor backed by the given parser manager.
func New(manager *parser.Manager, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{manager: manager, logger: logger}
}

// ExtractHeader parses one header and extracts every top-level
// declaration. A tree containing errors still yields a Result: the
// regions that failed to parse degrade to RawUnparsed entries.
func (e *Extractor) ExtractHeader(path string, source []byte) (*Result, error) {
	tree, err := e.manager.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse header %s: %w", path, err)
	}
	defer tree.Close()

	w := &walker{
		src:    source,
		file:   path,
		ext:    e,
		out:    &Result{},
		logger: e.logger,
	}
	w.walkScope(tree.RootNode(), nil)

	e.logger.Debug("extracted header",
		"path", path,
		"functions", len(w.out.Functions),
		"records", len(w.out.Records),
		"enums", len(w.out.Enums),
		"typedefs", len(w.out.Typedefs),
		"unparsed", len(w.out.Unparsed))

	return w.out, nil
}

type walker struct {
	src    []byte
	file   string
	ext    *Extractor
	out    *Result
	logger *slog.Logger
}

func (w *walker) nextOrder() int {
	o := w.ext.declOrder
	w.ext.declOrder++
	return o
}

func (w *walker) loc(node *ts.Node) Location {
	return Location{File: w.file, Line: uint32(node.StartPosition().Row) + 1}
}

// walkScope processes the declarations directly inside a translation
// unit, namespace body, or extern "C" block.
func (w *walker) walkScope(node *ts.Node, ns []string) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		w.walkDecl(child, ns)
	}
}

func (w *walker) walkDecl(node *ts.Node, ns []string) {
	switch node.Kind() {
	case "namespace_definition":
		w.walkNamespace(node, ns)

	case "linkage_specification":
		// extern "C" { ... }: declarations keep the enclosing namespace.
		if body := node.ChildByFieldName("body"); body != nil {
			w.walkScope(body, ns)
		}

	case "declaration", "function_definition":
		w.walkDeclaration(node, ns)

	case "class_specifier", "struct_specifier", "union_specifier":
		w.extractRecord(node, ns)

	case "enum_specifier":
		w.extractEnum(node, ns)

	case "alias_declaration":
		w.extractAlias(node, ns)

	case "type_definition":
		w.extractTypedef(node, ns)

	case "template_declaration":
		w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
			Name:      qualify(ns, w.templateName(node)),
			Reason:    "templated declarations cannot be bound directly; name a concrete instantiation with a concrete directive",
			DeclOrder: w.nextOrder(),
			Loc:       w.loc(node),
		})

	case "preproc_if", "preproc_ifdef":
		w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
			Reason:    "declarations under preprocessor conditionals are not supported",
			DeclOrder: w.nextOrder(),
			Loc:       w.loc(node),
		})

	case "preproc_include", "preproc_define", "preproc_call",
		"comment", "using_declaration", "namespace_alias_definition":
		// Not declarations we bind. Includes are handled by the
		// directive file; using-declarations only affect lookup.

	case "ERROR":
		w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
			Reason:    "region failed to parse",
			DeclOrder: w.nextOrder(),
			Loc:       w.loc(node),
		})

	default:
		w.logger.Debug("skipping unhandled node kind",
			"kind", node.Kind(), "line", node.StartPosition().Row+1)
	}
}

func (w *walker) walkNamespace(node *ts.Node, ns []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous namespaces have internal linkage; nothing inside is
		// bindable from another translation unit.
		w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
			Reason:    "anonymous namespace contents have internal linkage",
			DeclOrder: w.nextOrder(),
			Loc:       w.loc(node),
		})
		return
	}

	// "namespace a::b" arrives as a nested_namespace_specifier.
	parts := strings.Split(nameNode.Utf8Text(w.src), "::")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if body := node.ChildByFieldName("body"); body != nil {
		w.walkScope(body, append(append([]string{}, ns...), parts...))
	}
}

// walkDeclaration handles a top-level declaration node, which is
// either a function declaration/definition or global data.
func (w *walker) walkDeclaration(node *ts.Node, ns []string) {
	if fd := findFunctionDeclarator(node); fd != nil {
		if fn, ok := w.extractFunction(node, fd, ns, ""); ok {
			w.out.Functions = append(w.out.Functions, fn)
		}
		return
	}

	// Global variables are out of scope for binding.
	name := ""
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		name = qualify(ns, identifierOf(decl, w.src))
	}
	w.out.Unparsed = append(w.out.Unparsed, RawUnparsed{
		Name:      name,
		Reason:    "global data cannot be bound",
		DeclOrder: w.nextOrder(),
		Loc:       w.loc(node),
	})
}

// templateName digs out a best-effort name for a template declaration,
// for use in the stub diagnostic.
func (w *walker) templateName(node *ts.Node) string {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "class_specifier", "struct_specifier", "union_specifier":
			if name := child.ChildByFieldName("name"); name != nil {
				return name.Utf8Text(w.src)
			}
		case "function_definition", "declaration":
			if fd := findFunctionDeclarator(child); fd != nil {
				return identifierOf(fd, w.src)
			}
		case "alias_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				return name.Utf8Text(w.src)
			}
		}
	}
	return ""
}

// qualify joins a namespace path and a name into a qualified C++ name.
func qualify(ns []string, name string) string {
	if name == "" {
		return ""
	}
	if len(ns) == 0 {
		return name
	}
	return strings.Join(ns, "::") + "::" + name
}

// findFunctionDeclarator locates the function_declarator under a
// declaration, looking through pointer/reference declarators that wrap
// it when the return type has indirection.
func findFunctionDeclarator(node *ts.Node) *ts.Node {
	decl := node.ChildByFieldName("declarator")
	for decl != nil {
		switch decl.Kind() {
		case "function_declarator":
			return decl
		case "pointer_declarator", "reference_declarator":
			// reference_declarator exposes its inner declarator as a
			// plain child, not a field.
			decl = declaratorChild(decl)
			if decl == nil {
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

// identifierOf returns the identifier text inside a declarator.
func identifierOf(node *ts.Node, src []byte) string {
	switch node.Kind() {
	case "identifier", "field_identifier", "type_identifier",
		"qualified_identifier", "destructor_name", "operator_name":
		return node.Utf8Text(src)
	}
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		return identifierOf(decl, src)
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if name := identifierOf(node.NamedChild(i), src); name != "" {
			return name
		}
	}
	return ""
}
