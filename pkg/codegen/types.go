package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/bindweld/bindweld/pkg/classify"
	"github.com/bindweld/bindweld/pkg/model"
)

func (g *Generator) recordFragment(e *model.Entity) *fragment {
	r := g.classes.Of(e.ID)
	flat := g.names.TypeName(e.ID)

	switch r.Verdict {
	case classify.VerdictTrivial:
		return g.podFragment(e, flat)
	case classify.VerdictForwardOnly:
		return g.handleSetFragment(e, flat, "", false)
	case classify.VerdictAbstract:
		f := g.handleSetFragment(e, flat, cppSpelling(e.Name), true)
		// Constructor synthesis is barred for abstract types; the
		// handles alone let it appear behind pointers and references.
		return f
	default:
		f := g.handleSetFragment(e, flat, cppSpelling(e.Name), true)
		g.synthesizeCtors(e, flat, r, f)
		return f
	}
}

// podFragment emits a trivially relocatable struct: a Go struct and a
// C mirror with identical layout, plus compile-time layout checks in
// the shim. No wrapper indirection is ever added.
func (g *Generator) podFragment(e *model.Entity, flat string) *fragment {
	mod := g.api.Config.ModName
	cName := shimStructName(mod, flat)
	cpp := cppSpelling(e.Name)
	f := &fragment{}

	fields := g.api.Fields[e.ID]
	type fieldPlan struct {
		goName, goType, cName, cType string
	}
	var plans []fieldPlan
	for _, fd := range fields {
		l, err := g.lw.lowerValue(fd.Type)
		if err != nil {
			return g.stubFragment(e.Name.String(), e.Loc, err.Error())
		}
		goName := fd.Name
		if fd.Access == "public" {
			goName = exportIdent(fd.Name)
		}
		plans = append(plans, fieldPlan{
			goName: goName,
			goType: l.goType,
			cName:  fd.Name,
			cType:  g.fieldCType(l),
		})
	}

	f.goDecl = append(f.goDecl,
		fmt.Sprintf("// %s mirrors the C++ type %s. It is trivially relocatable, so", flat, cpp),
		"// values cross the boundary by plain copy with no indirection.",
		fmt.Sprintf("type %s struct {", flat))
	for _, p := range plans {
		f.goDecl = append(f.goDecl, fmt.Sprintf("\t%s %s", p.goName, p.goType))
	}
	f.goDecl = append(f.goDecl, "}", "")

	f.hDecl = append(f.hDecl, "typedef struct {")
	for _, p := range plans {
		f.hDecl = append(f.hDecl, fmt.Sprintf("\t%s %s;", p.cType, p.cName))
	}
	f.hDecl = append(f.hDecl, fmt.Sprintf("} %s;", cName), "")

	f.ccDef = append(f.ccDef,
		fmt.Sprintf("static_assert(sizeof(%s) == sizeof(%s), \"layout mismatch for %s\");", cName, cpp, flat),
		fmt.Sprintf("static_assert(std::is_trivially_destructible<%s>::value, \"%s must be trivially destructible\");", cpp, flat),
		"")
	return f
}

// fieldCType spells a lowered field type for the C mirror struct.
func (g *Generator) fieldCType(l lowered) string {
	if l.byCopyStruct {
		return strings.TrimSuffix(l.cType, "*")
	}
	return l.cType
}

// handleSetFragment emits the handle family for a type that must not
// cross by value: an owned heap-box handle plus immutable and mutable
// borrow handles. owned controls whether the heap box (and its
// teardown shim) is emitted; forward-declared and extern-opaque types
// get borrows only.
func (g *Generator) handleSetFragment(e *model.Entity, flat, cpp string, owned bool) *fragment {
	mod := g.api.Config.ModName
	f := &fragment{}
	described := cpp
	if described == "" {
		described = e.Name.String()
	}

	if owned && cpp != "" {
		del := fmt.Sprintf("%s_%s_delete", mod, flat)
		f.goDecl = append(f.goDecl,
			fmt.Sprintf("// Owned%s owns a heap-allocated %s. Lifetime ends at Free;", flat, described),
			"// there is no other teardown path.",
			fmt.Sprintf("type Owned%s struct {", flat),
			"\tptr unsafe.Pointer",
			"}",
			"",
			"// Free destroys the owned object and voids the handle. Calling it",
			"// again is a no-op.",
			fmt.Sprintf("func (o *Owned%s) Free() {", flat),
			"\tif o.ptr == nil {",
			"\t\treturn",
			"\t}",
			fmt.Sprintf("\tC.%s(o.ptr)", del),
			"\to.ptr = nil",
			"}",
			"",
			"// release transfers ownership to a callee.",
			fmt.Sprintf("func (o *Owned%s) release() unsafe.Pointer {", flat),
			"\tp := o.ptr",
			"\to.ptr = nil",
			"\treturn p",
			"}",
			"",
			fmt.Sprintf("// AsRef borrows the owned %s immutably.", flat),
			fmt.Sprintf("func (o *Owned%s) AsRef() %sRef { return %sRef{ptr: o.ptr} }", flat, flat, flat),
			"",
			fmt.Sprintf("// AsRefMut borrows the owned %s mutably.", flat),
			fmt.Sprintf("func (o *Owned%s) AsRefMut() %sRefMut { return %sRefMut{ptr: o.ptr} }", flat, flat, flat),
			"")
		f.hDecl = append(f.hDecl, fmt.Sprintf("void %s(void* p);", del))
		f.ccDef = append(f.ccDef,
			fmt.Sprintf("void %s(void* p) { delete static_cast<%s*>(p); }", del, cpp))
		f.symbolsUsed = append(f.symbolsUsed, del)
		f.symbolsDefined = append(f.symbolsDefined, del)
	}

	f.goDecl = append(f.goDecl,
		fmt.Sprintf("// %sRef is an immutable borrow of a %s.", flat, described),
		fmt.Sprintf("type %sRef struct {", flat),
		"\tptr unsafe.Pointer",
		"}",
		"",
		fmt.Sprintf("// %sRefMut is a mutable borrow of a %s.", flat, described),
		fmt.Sprintf("type %sRefMut struct {", flat),
		"\tptr unsafe.Pointer",
		"}",
		"",
		"// AsRef reborrows immutably.",
		fmt.Sprintf("func (r %sRefMut) AsRef() %sRef { return %sRef{ptr: r.ptr} }", flat, flat, flat),
		"")
	return f
}

// synthesizeCtors adds the constructor entry points the inventory
// allows: the owned-box form and the in-place form for the default
// constructor, and Clone over the copy constructor.
func (g *Generator) synthesizeCtors(e *model.Entity, flat string, r classify.Result, f *fragment) {
	cfg := g.api.Config
	name := e.Name.String()

	dependencyOnly := e.Prov == model.ProvDependency && !cfg.IsInstantiable(name)
	if dependencyOnly || cfg.ConstructorsBlocked(name) {
		return
	}

	mod := cfg.ModName
	cpp := cppSpelling(e.Name)

	if r.Inventory.DefaultCtor.Usable() {
		newSym := fmt.Sprintf("%s_%s_new", mod, flat)
		placeSym := fmt.Sprintf("%s_%s_place", mod, flat)
		sizeSym := fmt.Sprintf("%s_%s_sizeof", mod, flat)

		f.goDecl = append(f.goDecl,
			fmt.Sprintf("// New%s default-constructs a %s on the native heap.", flat, cpp),
			fmt.Sprintf("func New%s(%s) *Owned%s {", flat, g.gateDecl(false), flat),
			fmt.Sprintf("\treturn &Owned%s{ptr: C.%s()}", flat, newSym),
			"}",
			"",
			fmt.Sprintf("// Place%s default-constructs a %s into caller-provided storage.", flat, cpp),
			fmt.Sprintf("// dst must hold at least Sizeof%s() suitably aligned bytes.", flat),
			fmt.Sprintf("func Place%s(_ Unsafe, dst unsafe.Pointer) {", flat),
			fmt.Sprintf("\tC.%s(dst)", placeSym),
			"}",
			"",
			fmt.Sprintf("// Sizeof%s reports the native object size, for use with Alloc", flat),
			fmt.Sprintf("// and Place%s.", flat),
			fmt.Sprintf("func Sizeof%s() uintptr {", flat),
			fmt.Sprintf("\treturn uintptr(C.%s())", sizeSym),
			"}",
			"")
		f.hDecl = append(f.hDecl,
			fmt.Sprintf("void* %s(void);", newSym),
			fmt.Sprintf("void %s(void* dst);", placeSym),
			fmt.Sprintf("size_t %s(void);", sizeSym))
		f.ccDef = append(f.ccDef,
			fmt.Sprintf("void* %s(void) { return new %s(); }", newSym, cpp),
			fmt.Sprintf("void %s(void* dst) { new (dst) %s(); }", placeSym, cpp),
			fmt.Sprintf("size_t %s(void) { return sizeof(%s); }", sizeSym, cpp))
		f.symbolsUsed = append(f.symbolsUsed, newSym, placeSym, sizeSym)
		f.symbolsDefined = append(f.symbolsDefined, newSym, placeSym, sizeSym)
	}

	if r.Inventory.CopyCtor.Usable() {
		cloneSym := fmt.Sprintf("%s_%s_clone", mod, flat)
		f.goDecl = append(f.goDecl,
			fmt.Sprintf("// Clone copy-constructs a new owned %s from the borrow.", cpp),
			fmt.Sprintf("func (b %sRef) Clone(%s) *Owned%s {", flat, g.gateDecl(false), flat),
			fmt.Sprintf("\treturn &Owned%s{ptr: C.%s(b.ptr)}", flat, cloneSym),
			"}",
			"")
		f.hDecl = append(f.hDecl, fmt.Sprintf("void* %s(void* p);", cloneSym))
		f.ccDef = append(f.ccDef,
			fmt.Sprintf("void* %s(void* p) { return new %s(*static_cast<const %s*>(p)); }", cloneSym, cpp, cpp))
		f.symbolsUsed = append(f.symbolsUsed, cloneSym)
		f.symbolsDefined = append(f.symbolsDefined, cloneSym)
	}

	f.ccDef = append(f.ccDef, "")
	f.hDecl = append(f.hDecl, "")
}

// gateDecl renders the wrapper's leading parameter list fragment for
// the safety gate. touchesRaw forces the token regardless of policy.
func (g *Generator) gateDecl(touchesRaw bool) string {
	if g.pol.Gated(touchesRaw) {
		return "_ Unsafe"
	}
	return ""
}

func (g *Generator) enumFragment(e *model.Entity) *fragment {
	flat := g.names.TypeName(e.ID)
	cpp := cppSpelling(e.Name)
	f := &fragment{}

	f.goDecl = append(f.goDecl,
		fmt.Sprintf("// %s mirrors the C++ enum %s.", flat, cpp),
		fmt.Sprintf("type %s %s", flat, enumRepr(e.Enum.Underlying).Go),
		"")

	if len(e.Enum.Enumerators) > 0 {
		f.goDecl = append(f.goDecl, "const (")
		next := int64(0)
		for _, en := range e.Enum.Enumerators {
			val := en.Value
			if val == "" {
				val = strconv.FormatInt(next, 10)
			}
			if n, err := strconv.ParseInt(strings.TrimSpace(val), 0, 64); err == nil {
				next = n + 1
			} else {
				next++
			}
			f.goDecl = append(f.goDecl,
				fmt.Sprintf("\t%s%s %s = %s", flat, exportIdent(en.Name), flat, val))
		}
		f.goDecl = append(f.goDecl, ")", "")
	}
	return f
}

func (g *Generator) typedefFragment(e *model.Entity) *fragment {
	flat := g.names.TypeName(e.ID)
	target := g.api.TypedefTargets[e.ID]

	l, err := g.lw.lowerParamOrValue(target)
	if err != nil {
		return g.stubFragment(e.Name.String(), e.Loc, err.Error())
	}
	underlying := l.goType
	if l.mode == passOwned || l.mode == passBorrow {
		// Aliases of handle-backed types would duplicate the handle
		// family; alias the base type and let callers pick the handle.
		underlying = g.names.TypeName(l.entity) + "Ref"
		f := &fragment{}
		f.goDecl = append(f.goDecl,
			fmt.Sprintf("// %s aliases the borrow handle of %s.", flat, g.names.TypeName(l.entity)),
			fmt.Sprintf("type %s = %s", flat, underlying),
			"")
		return f
	}

	f := &fragment{}
	f.goDecl = append(f.goDecl,
		fmt.Sprintf("// %s mirrors the C++ alias %s.", flat, cppSpelling(e.Name)),
		fmt.Sprintf("type %s = %s", flat, underlying),
		"")
	return f
}

func exportIdent(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
