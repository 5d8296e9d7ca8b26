// Package codegen walks the classified, named API model and emits the
// artifact pair: a cgo bridge file with safe Go wrappers, and a C++
// shim translation unit (header plus source) defining the extern "C"
// entry points the bridge calls. Generation is best-effort per
// entity: an unsupported construct degrades to a documented stub
// fragment and the rest of the surface still generates.
package codegen

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bindweld/bindweld/pkg/classify"
	"github.com/bindweld/bindweld/pkg/extract"
	"github.com/bindweld/bindweld/pkg/model"
	"github.com/bindweld/bindweld/pkg/policy"
)

// Stub documents one symbol that was deliberately not bound.
type Stub struct {
	Name   string           `json:"name"`
	Reason string           `json:"reason"`
	Loc    extract.Location `json:"loc"`
}

// Artifacts is the generated output pair plus the stub report.
type Artifacts struct {
	BridgeGo   []byte
	ShimHeader []byte
	ShimSource []byte
	Stubs      []Stub
}

// fragment is the output of generating one entity. Fragments are
// aggregated in declaration order so output is deterministic.
type fragment struct {
	order int

	goDecl []string
	hDecl  []string
	ccDef  []string

	stub *Stub

	// symbolsUsed are the C symbols the Go side of this fragment
	// calls; symbolsDefined are the ones the shim side defines. The
	// two sets must match across the whole artifact pair.
	symbolsUsed    []string
	symbolsDefined []string
}

// Generator emits the artifact pair for one model.
type Generator struct {
	api     *model.API
	classes *classify.Table
	names   nameTable
	pol     policy.Policy
	logger  *slog.Logger
	lw      *lowerer
}

// New builds a Generator over the finished analysis phases.
func New(api *model.API, classes *classify.Table, names nameTable, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		api:     api,
		classes: classes,
		names:   names,
		pol:     api.Config.Safety,
		logger:  logger,
		lw:      &lowerer{api: api, classes: classes, names: names},
	}
}

// Generate produces the artifact pair. Only internal invariant
// violations return an error; unsupported constructs become stubs.
func (g *Generator) Generate() (*Artifacts, error) {
	var frags []*fragment

	for _, e := range g.api.All() {
		var f *fragment
		switch e.Kind {
		case model.EntityRecord:
			f = g.recordFragment(e)
		case model.EntityEnum:
			f = g.enumFragment(e)
		case model.EntityTypedef:
			f = g.typedefFragment(e)
		case model.EntityConcrete:
			f = g.handleSetFragment(e, g.names.TypeName(e.ID), e.Concrete.CppType, true)
		case model.EntityExtern:
			f = g.handleSetFragment(e, g.names.TypeName(e.ID), "", !e.ExternOpaque)
		case model.EntityFunction:
			f = g.functionFragment(e)
		case model.EntityUnparsed:
			f = g.unparsedFragment(e)
		}
		if f != nil {
			f.order = e.DeclOrder
			frags = append(frags, f)
		}
	}

	sort.SliceStable(frags, func(i, j int) bool { return frags[i].order < frags[j].order })

	arts := g.aggregate(frags)
	verifyArtifacts(frags)

	g.logger.Info("artifacts generated",
		"fragments", len(frags),
		"stubs", len(arts.Stubs),
		"policy", g.pol.String())
	return arts, nil
}

// stubFragment wraps a refusal into a documented placeholder. The
// diagnostic rides on the generated declaration itself so a consumer
// of the bridge file sees it without reading logs.
func (g *Generator) stubFragment(name string, loc extract.Location, reason string) *fragment {
	f := &fragment{stub: &Stub{Name: name, Reason: reason, Loc: loc}}
	ident := sanitizeStubIdent(name)
	f.goDecl = append(f.goDecl,
		fmt.Sprintf("// %s was not generated.", name),
		"//",
		fmt.Sprintf("// Reason: %s", reason),
		fmt.Sprintf("const Unsupported_%s = %q", ident, reason),
		"")
	return f
}

func (g *Generator) unparsedFragment(e *model.Entity) *fragment {
	name := e.Name.String()
	if name == "" {
		name = fmt.Sprintf("declaration at %s:%d", e.Unparsed.Loc.File, e.Unparsed.Loc.Line)
	}
	return g.stubFragment(name, e.Loc, e.Unparsed.Reason)
}

// aggregate assembles the fragments into the three output files.
func (g *Generator) aggregate(frags []*fragment) *Artifacts {
	mod := g.api.Config.ModName

	var goBuf, hBuf, ccBuf bytes.Buffer
	writeBridgePrelude(&goBuf, mod, g.api.Config.Includes)
	writeHeaderPrelude(&hBuf, mod)
	writeSourcePrelude(&ccBuf, mod, g.api.Config.Includes)

	if !g.api.Config.ExcludeUtilities {
		util := g.utilitiesFragment()
		frags = append([]*fragment{util}, frags...)
	}

	var stubs []Stub
	for _, f := range frags {
		for _, ln := range f.goDecl {
			goBuf.WriteString(ln)
			goBuf.WriteByte('\n')
		}
		for _, ln := range f.hDecl {
			hBuf.WriteString(ln)
			hBuf.WriteByte('\n')
		}
		for _, ln := range f.ccDef {
			ccBuf.WriteString(ln)
			ccBuf.WriteByte('\n')
		}
		if f.stub != nil {
			stubs = append(stubs, *f.stub)
		}
	}

	writeHeaderEpilogue(&hBuf)

	return &Artifacts{
		BridgeGo:   goBuf.Bytes(),
		ShimHeader: hBuf.Bytes(),
		ShimSource: ccBuf.Bytes(),
		Stubs:      stubs,
	}
}

// utilitiesFragment emits the shared allocation helpers used for
// in-place construction targets. Suppressed by exclude_utilities.
func (g *Generator) utilitiesFragment() *fragment {
	mod := g.api.Config.ModName
	alloc := mod + "_alloc"
	free := mod + "_free"

	f := &fragment{order: -1}
	f.goDecl = append(f.goDecl,
		"// Alloc reserves uninitialized storage suitable for in-place",
		"// construction. Pair every Alloc with exactly one Free.",
		"func Alloc(_ Unsafe, size uintptr) unsafe.Pointer {",
		fmt.Sprintf("\treturn C.%s(C.size_t(size))", alloc),
		"}",
		"",
		"// Free releases storage obtained from Alloc. The object inside",
		"// must already have been destroyed.",
		"func Free(_ Unsafe, p unsafe.Pointer) {",
		fmt.Sprintf("\tC.%s(p)", free),
		"}",
		"")
	f.hDecl = append(f.hDecl,
		fmt.Sprintf("void* %s(size_t size);", alloc),
		fmt.Sprintf("void %s(void* p);", free),
		"")
	f.ccDef = append(f.ccDef,
		fmt.Sprintf("void* %s(size_t size) { return ::operator new(size); }", alloc),
		fmt.Sprintf("void %s(void* p) { ::operator delete(p); }", free),
		"")
	f.symbolsUsed = append(f.symbolsUsed, alloc, free)
	f.symbolsDefined = append(f.symbolsDefined, alloc, free)
	return f
}

func sanitizeStubIdent(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
