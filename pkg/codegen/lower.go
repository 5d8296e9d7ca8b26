package codegen

import (
	"fmt"

	"github.com/bindweld/bindweld/pkg/classify"
	"github.com/bindweld/bindweld/pkg/model"
)

// stubError marks a construct codegen refuses to bind. It degrades
// the enclosing function or type to a documented stub; it never
// aborts the run.
type stubError struct {
	reason string
}

func (e *stubError) Error() string { return e.reason }

func stubf(format string, args ...any) *stubError {
	return &stubError{reason: fmt.Sprintf(format, args...)}
}

// passMode says how a lowered value crosses the boundary.
type passMode int

const (
	// passDirect values cross by plain value (primitives, enums,
	// trivially relocatable structs).
	passDirect passMode = iota
	// passOwned values cross as owned heap boxes; a by-value input
	// consumes the caller's box.
	passOwned
	// passBorrow values cross as borrowed reference handles.
	passBorrow
	// passRaw values cross as raw pointers; always gated.
	passRaw
)

// lowered is the boundary plan for one parameter or return value.
type lowered struct {
	mode passMode

	// goType is the type spelled in the generated Go wrapper
	// signature.
	goType string
	// cType is the type spelled in the shim's extern "C" signature.
	cType string
	// cgoType is the C.<name> spelling used when converting a Go
	// value to the cgo call argument.
	cgoType string

	// cppType is the real C++ type the shim casts to, for owned and
	// borrowed handles.
	cppType string

	// mutable distinguishes FooRefMut from FooRef borrows.
	mutable bool

	// byCopyStruct marks trivially relocatable structs, which cross
	// the C ABI by pointer with the shim copying bytes, so no cgo
	// struct value conversion is ever needed.
	byCopyStruct bool

	// isEnum marks enum values; the shim casts between the C++ enum
	// type and its integer representation.
	isEnum bool

	// entity is set for record-backed lowerings.
	entity model.EntityID
}

// gated reports whether this value alone forces the unsafe token onto
// the wrapper. Raw pointers always do.
func (l lowered) gated() bool { return l.mode == passRaw }

// lowerer resolves TypeRefs against the classification and name
// tables.
type lowerer struct {
	api     *model.API
	classes *classify.Table
	names   nameTable
}

// nameTable is the slice of the name resolution output codegen needs.
type nameTable interface {
	TypeName(model.EntityID) string
	FunctionName(model.EntityID) string
	ShimSymbol(model.EntityID) string
}

// lowerParam lowers one input position.
func (lw *lowerer) lowerParam(tr model.TypeRef) (lowered, error) {
	switch tr.Indirection {
	case model.IndirValue:
		return lw.lowerValue(tr)
	case model.IndirPointer:
		return lw.lowerPointer(tr)
	case model.IndirLValueRef:
		return lw.lowerRef(tr)
	case model.IndirRValueRef:
		return lowered{}, stubf("rvalue reference parameters are not supported")
	}
	return lowered{}, stubf("unsupported parameter indirection")
}

// lowerReturn lowers the output position. refInputs counts how many
// inputs (receiver included) are borrowed references; a returned
// reference is only generated when exactly one input reference exists
// to tie its lifetime to.
func (lw *lowerer) lowerReturn(tr model.TypeRef, refInputs int) (lowered, error) {
	switch tr.Indirection {
	case model.IndirValue:
		return lw.lowerValue(tr)
	case model.IndirPointer:
		return lw.lowerPointer(tr)
	case model.IndirLValueRef:
		if refInputs != 1 {
			return lowered{}, stubf(
				"returns a reference but takes %d reference inputs, so the returned lifetime cannot be tied to a single input", refInputs)
		}
		return lw.lowerRef(tr)
	case model.IndirRValueRef:
		return lowered{}, stubf("rvalue reference returns are not supported")
	}
	return lowered{}, stubf("unsupported return indirection")
}

func (lw *lowerer) lowerValue(tr model.TypeRef) (lowered, error) {
	switch tr.Kind {
	case model.RefPrimitive:
		p := tr.Primitive
		if p.Cpp == "void" {
			return lowered{mode: passDirect, goType: "", cType: "void"}, nil
		}
		return lowered{mode: passDirect, goType: p.Go, cType: p.C, cgoType: cgoSpelling(p.C)}, nil

	case model.RefOpaque:
		return lowered{}, stubf("%s cannot cross by value: %s", tr.OpaqueName, tr.OpaqueReason)

	case model.RefEntity:
		return lw.lowerEntityValue(tr)
	}
	return lowered{}, stubf("unresolvable value type")
}

func (lw *lowerer) lowerEntityValue(tr model.TypeRef) (lowered, error) {
	e := lw.api.Entity(tr.Entity)
	flat := lw.names.TypeName(e.ID)

	switch e.Kind {
	case model.EntityEnum:
		repr := enumRepr(e.Enum.Underlying)
		return lowered{
			mode:    passDirect,
			goType:  flat,
			cType:   repr.C,
			cgoType: cgoSpelling(repr.C),
			cppType: cppSpelling(e.Name),
			entity:  e.ID,
			isEnum:  true,
		}, nil

	case model.EntityTypedef:
		target := lw.api.TypedefTargets[e.ID]
		l, err := lw.lowerParamOrValue(target)
		if err != nil {
			return lowered{}, err
		}
		// The alias name survives on the Go side for value aliases.
		if l.mode == passDirect && target.Indirection == model.IndirValue {
			l.goType = flat
		}
		return l, nil

	case model.EntityRecord:
		r := lw.classes.Of(e.ID)
		switch r.Verdict {
		case classify.VerdictTrivial:
			return lowered{
				mode:         passDirect,
				goType:       flat,
				cType:        shimStructName(lw.api.Config.ModName, flat) + "*",
				cppType:      cppSpelling(e.Name),
				entity:       e.ID,
				byCopyStruct: true,
			}, nil
		case classify.VerdictNonTrivial:
			return lowered{
				mode:    passOwned,
				goType:  "*Owned" + flat,
				cType:   "void*",
				cppType: cppSpelling(e.Name),
				entity:  e.ID,
			}, nil
		case classify.VerdictAbstract:
			return lowered{}, stubf("%s is abstract and cannot cross by value", e.Name)
		case classify.VerdictForwardOnly:
			return lowered{}, stubf("%s is only forward declared and cannot cross by value", e.Name)
		}

	case model.EntityConcrete:
		return lowered{
			mode:    passOwned,
			goType:  "*Owned" + flat,
			cType:   "void*",
			cppType: e.Concrete.CppType,
			entity:  e.ID,
		}, nil

	case model.EntityExtern:
		return lowered{}, stubf("%s is generated by another invocation and is opaque here; pass it by pointer or reference", e.Name)

	case model.EntityUnparsed:
		return lowered{}, stubf("%s could not be analyzed: %s", e.Name, e.Unparsed.Reason)
	}
	return lowered{}, stubf("unsupported entity kind in value position")
}

func (lw *lowerer) lowerParamOrValue(tr model.TypeRef) (lowered, error) {
	if tr.Indirection == model.IndirValue {
		return lw.lowerValue(tr)
	}
	return lw.lowerParam(tr)
}

func (lw *lowerer) lowerPointer(tr model.TypeRef) (lowered, error) {
	// No ownership or liveness can be inferred for a raw pointer, so
	// the handle is raw and the call is gated no matter the policy.
	// The shim still needs the pointee's C++ spelling for the cast.
	l := lowered{mode: passRaw, goType: "unsafe.Pointer", cType: "void*", mutable: !tr.Const}
	switch tr.Kind {
	case model.RefPrimitive:
		l.cppType = tr.Primitive.Cpp
	case model.RefOpaque:
		// Best effort: the name as written in the source.
		l.cppType = tr.OpaqueName
	case model.RefEntity:
		e := lw.api.Entity(tr.Entity)
		switch e.Kind {
		case model.EntityConcrete:
			l.cppType = e.Concrete.CppType
		default:
			l.cppType = cppSpelling(e.Name)
		}
		l.entity = e.ID
	}
	if l.cppType == "" || l.cppType == "?" {
		return lowered{}, stubf("pointer pointee type could not be named")
	}
	return l, nil
}

func (lw *lowerer) lowerRef(tr model.TypeRef) (lowered, error) {
	switch tr.Kind {
	case model.RefPrimitive:
		if tr.Const {
			// A const primitive reference is indistinguishable from a
			// value at the call site; the shim materializes the
			// temporary.
			p := tr.Primitive
			return lowered{mode: passDirect, goType: p.Go, cType: p.C, cgoType: cgoSpelling(p.C)}, nil
		}
		return lowered{}, stubf("mutable references to primitives are not supported")

	case model.RefOpaque:
		// Opaque behind a reference is legal; it degrades to a raw
		// handle since nothing is known about the pointee.
		return lowered{mode: passRaw, goType: "unsafe.Pointer", cType: "void*"}, nil

	case model.RefEntity:
		e := lw.api.Entity(tr.Entity)
		flat := lw.names.TypeName(e.ID)
		switch e.Kind {
		case model.EntityRecord, model.EntityConcrete, model.EntityExtern:
			goType := flat + "Ref"
			if !tr.Const {
				goType = flat + "RefMut"
			}
			cpp := ""
			switch {
			case e.Kind == model.EntityConcrete:
				cpp = e.Concrete.CppType
			case e.Kind == model.EntityRecord:
				cpp = cppSpelling(e.Name)
			}
			return lowered{
				mode:    passBorrow,
				goType:  goType,
				cType:   "void*",
				cppType: cpp,
				mutable: !tr.Const,
				entity:  e.ID,
			}, nil
		case model.EntityEnum:
			if tr.Const {
				repr := enumRepr(e.Enum.Underlying)
				return lowered{
					mode:    passDirect,
					goType:  flat,
					cType:   repr.C,
					cgoType: cgoSpelling(repr.C),
					cppType: cppSpelling(e.Name),
					entity:  e.ID,
					isEnum:  true,
				}, nil
			}
			return lowered{}, stubf("mutable references to enums are not supported")
		case model.EntityTypedef:
			target := lw.api.TypedefTargets[e.ID]
			if target.Indirection != model.IndirValue {
				return lowered{}, stubf("references to pointer aliases are not supported")
			}
			target.Indirection = model.IndirLValueRef
			target.Const = tr.Const
			return lw.lowerRef(target)
		}
		return lowered{}, stubf("unsupported entity kind behind a reference")
	}
	return lowered{}, stubf("unresolvable reference type")
}

// enumRepr picks the bridge representation for an enum from its
// declared underlying type. Enums without one take the int width.
func enumRepr(underlying string) model.Primitive {
	if underlying != "" {
		if p, ok := model.LookupPrimitive(underlying); ok && p.Go != "" {
			return p
		}
	}
	p, _ := model.LookupPrimitive("int32_t")
	return p
}

// cgoSpelling maps a C type name to its cgo identifier.
func cgoSpelling(c string) string {
	switch c {
	case "void*":
		return "unsafe.Pointer"
	case "unsigned char":
		return "C.uchar"
	case "signed char":
		return "C.schar"
	case "unsigned short":
		return "C.ushort"
	case "unsigned int":
		return "C.uint"
	case "unsigned long":
		return "C.ulong"
	case "long long":
		return "C.longlong"
	case "unsigned long long":
		return "C.ulonglong"
	case "_Bool":
		return "C.bool"
	default:
		return "C." + c
	}
}

// shimStructName is the C mirror struct name for a trivial type.
func shimStructName(mod, flat string) string {
	return mod + "_" + flat
}

// cppSpelling renders a qualified name back to C++ source form,
// anchored at the global namespace.
func cppSpelling(q model.QualifiedName) string {
	return "::" + q.String()
}
