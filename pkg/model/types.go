package model

import (
	"fmt"

	"github.com/bindweld/bindweld/pkg/directive"
	"github.com/bindweld/bindweld/pkg/extract"
)

// EntityID is a stable index into the API's entity arena. Later phases
// key their side tables by EntityID rather than holding pointers.
type EntityID int

// NoEntity marks the absence of an entity (e.g. a free function's
// receiver).
const NoEntity EntityID = -1

// Kind tags what a model entity represents.
type Kind int

const (
	EntityFunction Kind = iota
	EntityRecord
	EntityEnum
	EntityTypedef
	// EntityConcrete is a named concrete template instantiation from a
	// concrete directive, always treated as an opaque non-trivial type.
	EntityConcrete
	// EntityExtern is a type generated by another invocation
	// (extern_type directive); referenced, never defined here.
	EntityExtern
	// EntityUnparsed is a requested declaration the extractor could not
	// model; it exists solely to become a documented stub.
	EntityUnparsed
)

func (k Kind) String() string {
	switch k {
	case EntityFunction:
		return "function"
	case EntityRecord:
		return "record"
	case EntityEnum:
		return "enum"
	case EntityTypedef:
		return "typedef"
	case EntityConcrete:
		return "concrete"
	case EntityExtern:
		return "extern"
	case EntityUnparsed:
		return "unparsed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Provenance records why an entity is in the model. The codegen engine
// generates full method sets only for explicitly requested entities.
type Provenance int

const (
	// ProvRequested came from a generate or generate_ns/generate_all
	// directive.
	ProvRequested Provenance = iota
	// ProvRequestedPOD came from generate_pod and must prove trivially
	// relocatable.
	ProvRequestedPOD
	// ProvDependency was pulled in transitively by a signature or
	// field; it gets a declaration but no methods.
	ProvDependency
	// ProvExtern came from an extern_type directive.
	ProvExtern
)

func (p Provenance) String() string {
	switch p {
	case ProvRequested:
		return "requested"
	case ProvRequestedPOD:
		return "requested-pod"
	case ProvDependency:
		return "dependency"
	case ProvExtern:
		return "extern"
	default:
		return fmt.Sprintf("provenance(%d)", int(p))
	}
}

// Entity is one node of the API model. Exactly one of the raw pointers
// is set, matching Kind.
type Entity struct {
	ID   EntityID
	Name QualifiedName
	Kind Kind
	Prov Provenance

	Fun      *extract.RawFunction
	Rec      *extract.RawRecord
	Enum     *extract.RawEnum
	Tdef     *extract.RawTypedef
	Unparsed *extract.RawUnparsed
	Concrete *directive.ConcreteAlias

	// ExternOpaque is set for extern_opaque_type entities.
	ExternOpaque bool

	// DeclOrder is the extractor's global declaration index; synthetic
	// entities (concrete, extern) are ordered after all extracted ones.
	DeclOrder int
	Loc       extract.Location
}

// Indirection is the outermost structural form of a type reference.
type Indirection int

const (
	IndirValue Indirection = iota
	IndirPointer
	IndirLValueRef
	IndirRValueRef
)

func (i Indirection) String() string {
	switch i {
	case IndirValue:
		return "value"
	case IndirPointer:
		return "pointer"
	case IndirLValueRef:
		return "lvalue-ref"
	case IndirRValueRef:
		return "rvalue-ref"
	default:
		return fmt.Sprintf("indirection(%d)", int(i))
	}
}

// RefKind says what a TypeRef ultimately points at.
type RefKind int

const (
	RefPrimitive RefKind = iota
	RefEntity
	// RefOpaque marks a type the model could not resolve. Legal behind
	// a pointer or reference; a by-value use degrades to a stub.
	RefOpaque
)

// TypeRef is a resolved typed edge out of an entity. Invariant: when
// Kind is RefEntity, Entity indexes a live arena slot; dangling names
// become RefOpaque at resolution time, never a panic later.
type TypeRef struct {
	Indirection Indirection
	Const       bool
	Kind        RefKind

	// Primitive is set for RefPrimitive.
	Primitive Primitive
	// Entity is set for RefEntity.
	Entity EntityID
	// OpaqueName/OpaqueReason are set for RefOpaque.
	OpaqueName   string
	OpaqueReason string
}

// IsVoid reports a plain void (function with no return value).
func (t TypeRef) IsVoid() bool {
	return t.Kind == RefPrimitive && t.Indirection == IndirValue && t.Primitive.Cpp == "void"
}

// Describe renders the reference for diagnostics.
func (t TypeRef) Describe(api *API) string {
	var base string
	switch t.Kind {
	case RefPrimitive:
		base = t.Primitive.Cpp
	case RefEntity:
		base = api.Entity(t.Entity).Name.String()
	case RefOpaque:
		base = t.OpaqueName
	}
	if t.Const {
		base = "const " + base
	}
	switch t.Indirection {
	case IndirPointer:
		return base + "*"
	case IndirLValueRef:
		return base + "&"
	case IndirRValueRef:
		return base + "&&"
	default:
		return base
	}
}

// FunSig is the resolved signature of a function entity.
type FunSig struct {
	// Receiver is the method's record entity, or NoEntity.
	Receiver EntityID
	Params   []TypeRef
	// ParamNames parallels Params; empty strings mean unnamed.
	ParamNames []string
	// Ret is nil for void.
	Ret *TypeRef
}

// Field is one resolved data member of a record entity.
type Field struct {
	Name   string
	Type   TypeRef
	Access extract.Access
}

// BaseRef is one resolved base class edge.
type BaseRef struct {
	// Name is the base as written in the source.
	Name string
	// Entity is the resolved base, or NoEntity when the base was not
	// analyzed (opaque). Classification then defaults conservatively.
	Entity EntityID
}

// API is the closed entity graph plus the per-phase side tables the
// model builder fills in. It is immutable once Build returns.
type API struct {
	Config *directive.Config

	entities  []*Entity
	byName    map[string]EntityID
	funByName map[string][]EntityID

	// Funcs, Fields, Bases, TypedefTargets are resolved side tables
	// keyed by entity ID.
	Funcs          map[EntityID]*FunSig
	Fields         map[EntityID][]Field
	Bases          map[EntityID][]BaseRef
	TypedefTargets map[EntityID]TypeRef

	// MethodsOf lists the method function entities generated for each
	// requested record, in declaration order.
	MethodsOf map[EntityID][]EntityID
}

// Entity returns the arena slot for id. Callers obtain IDs only from
// this API, so an out-of-range id is an internal invariant violation.
func (a *API) Entity(id EntityID) *Entity {
	if id < 0 || int(id) >= len(a.entities) {
		panic(fmt.Sprintf("entity id %d out of range (arena size %d): internal invariant violated", id, len(a.entities)))
	}
	return a.entities[id]
}

// Lookup finds a type entity by qualified C++ name.
func (a *API) Lookup(qualified string) (EntityID, bool) {
	id, ok := a.byName[qualified]
	return id, ok
}

// FunctionsNamed returns all function entities sharing a qualified
// name, in declaration order (overloads).
func (a *API) FunctionsNamed(qualified string) []EntityID {
	return a.funByName[qualified]
}

// All returns every entity in arena order.
func (a *API) All() []*Entity {
	return a.entities
}

// Len returns the number of entities.
func (a *API) Len() int {
	return len(a.entities)
}
