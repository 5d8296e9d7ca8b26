// Package extract turns parsed C++ headers into raw declarations: a
// mechanically-extracted, best-effort model of the API surface before
// any safety classification. Everything downstream of this package
// consumes only the Result type; tree-sitter never leaks past it.
package extract

import "strings"

// Location records where a declaration was found, for diagnostics.
type Location struct {
	File string `json:"file"`
	Line uint32 `json:"line"`
}

// TypeShape distinguishes the structural forms a RawType can take.
type TypeShape string

const (
	ShapeNamed     TypeShape = "named"
	ShapePointer   TypeShape = "pointer"
	ShapeLValueRef TypeShape = "lvalue_ref"
	ShapeRValueRef TypeShape = "rvalue_ref"
)

// RawType is a parsed C++ type. Named types carry the name exactly as
// written in the source; qualification against the surrounding
// namespace happens during model building, not here.
type RawType struct {
	Shape TypeShape `json:"shape"`
	// Const applies to the named type or pointee, C++-style west-const
	// and east-const both normalize here.
	Const bool `json:"const,omitempty"`
	// Name is set for ShapeNamed, e.g. "int", "std::string", "Goat".
	Name string `json:"name,omitempty"`
	// Inner is the pointee or referent for pointer/reference shapes.
	Inner *RawType `json:"inner,omitempty"`
	// TemplateArgs is set for template instances such as vector<int>.
	TemplateArgs []RawType `json:"template_args,omitempty"`
	// Unparsed carries a reason when the extractor could not model the
	// type. Downstream phases degrade uses of such a type to stubs.
	Unparsed string `json:"unparsed,omitempty"`
}

// Named builds a by-value named type.
func Named(name string) RawType {
	return RawType{Shape: ShapeNamed, Name: name}
}

// ConstRefTo builds a const lvalue reference to t.
func ConstRefTo(t RawType) RawType {
	t.Const = true
	return RawType{Shape: ShapeLValueRef, Inner: &t}
}

// RefTo builds a mutable lvalue reference to t.
func RefTo(t RawType) RawType {
	return RawType{Shape: ShapeLValueRef, Inner: &t}
}

// PointerTo builds a pointer to t.
func PointerTo(t RawType) RawType {
	return RawType{Shape: ShapePointer, Inner: &t}
}

// IsVoid reports whether the type is the literal void.
func (t RawType) IsVoid() bool {
	return t.Shape == ShapeNamed && t.Name == "void"
}

// String renders the type approximately as C++ for diagnostics.
func (t RawType) String() string {
	if t.Unparsed != "" {
		return "<unparsed: " + t.Unparsed + ">"
	}
	var b strings.Builder
	switch t.Shape {
	case ShapeNamed:
		if t.Const {
			b.WriteString("const ")
		}
		b.WriteString(t.Name)
		if len(t.TemplateArgs) > 0 {
			b.WriteString("<")
			for i, a := range t.TemplateArgs {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(a.String())
			}
			b.WriteString(">")
		}
	case ShapePointer:
		b.WriteString(t.Inner.String())
		b.WriteString("*")
	case ShapeLValueRef:
		b.WriteString(t.Inner.String())
		b.WriteString("&")
	case ShapeRValueRef:
		b.WriteString(t.Inner.String())
		b.WriteString("&&")
	}
	return b.String()
}

// Presence records whether a special member function was seen, and how.
type Presence string

const (
	PresenceNone      Presence = ""
	PresenceDeclared  Presence = "declared"
	PresenceDefaulted Presence = "defaulted"
	PresenceDeleted   Presence = "deleted"
)

// Declared reports whether the member exists and is usable
// (user-declared or explicitly defaulted, but not deleted).
func (p Presence) Declared() bool {
	return p == PresenceDeclared || p == PresenceDefaulted
}

// SpecialMembers holds the explicitly declared special member functions
// of a record. Implicit members are inferred later by the classifier;
// the extractor only reports what the source says.
type SpecialMembers struct {
	DefaultCtor Presence `json:"default_ctor,omitempty"`
	CopyCtor    Presence `json:"copy_ctor,omitempty"`
	MoveCtor    Presence `json:"move_ctor,omitempty"`
	Destructor  Presence `json:"destructor,omitempty"`
	CopyAssign  Presence `json:"copy_assign,omitempty"`
	MoveAssign  Presence `json:"move_assign,omitempty"`
	// OtherCtor is true when any user-declared constructor exists that
	// is not the default/copy/move constructor.
	OtherCtor bool `json:"other_ctor,omitempty"`
}

// AnyCtor reports whether any constructor at all was user-declared.
func (s SpecialMembers) AnyCtor() bool {
	return s.OtherCtor ||
		s.DefaultCtor != PresenceNone ||
		s.CopyCtor != PresenceNone ||
		s.MoveCtor != PresenceNone
}

// FunctionKind tags what sort of callable a RawFunction is.
type FunctionKind string

const (
	KindFunction    FunctionKind = "function"
	KindConstructor FunctionKind = "constructor"
	KindDestructor  FunctionKind = "destructor"
	KindOperator    FunctionKind = "operator"
)

// RawParam is one function parameter.
type RawParam struct {
	Name       string  `json:"name,omitempty"`
	Type       RawType `json:"type"`
	HasDefault bool    `json:"has_default,omitempty"`
}

// RawFunction is an extracted free function or method.
type RawFunction struct {
	// Name is the fully qualified name, e.g. "zoo::feed".
	Name string       `json:"name"`
	Kind FunctionKind `json:"kind"`
	// MethodOf is the qualified record name for methods, "" otherwise.
	MethodOf string     `json:"method_of,omitempty"`
	Params   []RawParam `json:"params,omitempty"`
	// Returns is nil for void (and for constructors/destructors).
	Returns     *RawType `json:"returns,omitempty"`
	Const       bool     `json:"const,omitempty"`
	Static      bool     `json:"static,omitempty"`
	Virtual     bool     `json:"virtual,omitempty"`
	PureVirtual bool     `json:"pure_virtual,omitempty"`
	Variadic    bool     `json:"variadic,omitempty"`
	// DeclOrder is the global declaration index across the whole
	// extraction run. Overload suffix assignment depends on it.
	DeclOrder int      `json:"decl_order"`
	Loc       Location `json:"loc"`
}

// Access is a C++ member access level.
type Access string

const (
	AccessPublic    Access = "public"
	AccessProtected Access = "protected"
	AccessPrivate   Access = "private"
)

// RawField is one non-static data member.
type RawField struct {
	Name   string   `json:"name"`
	Type   RawType  `json:"type"`
	Access Access   `json:"access"`
	Loc    Location `json:"loc"`
}

// RecordKind distinguishes struct/class/union declarations.
type RecordKind string

const (
	RecordStruct RecordKind = "struct"
	RecordClass  RecordKind = "class"
	RecordUnion  RecordKind = "union"
)

// RawRecord is an extracted struct, class, or union.
type RawRecord struct {
	Name   string     `json:"name"`
	Kind   RecordKind `json:"kind"`
	Fields []RawField `json:"fields,omitempty"`
	// Bases holds base class names as written in the source.
	Bases    []string       `json:"bases,omitempty"`
	Specials SpecialMembers `json:"specials"`
	// HasVirtual is true when any member function is virtual, which
	// implies a vtable and rules out trivial relocation.
	HasVirtual bool `json:"has_virtual,omitempty"`
	// Abstract is true when any member function is pure virtual.
	Abstract bool `json:"abstract,omitempty"`
	// ForwardOnly is true for declarations without a body. Such types
	// may only ever appear behind a pointer or reference.
	ForwardOnly bool     `json:"forward_only,omitempty"`
	DeclOrder   int      `json:"decl_order"`
	Loc         Location `json:"loc"`
}

// Enumerator is one enum constant.
type Enumerator struct {
	Name string `json:"name"`
	// Value is the initializer text as written, "" when implicit.
	Value string `json:"value,omitempty"`
}

// RawEnum is an extracted enum or enum class.
type RawEnum struct {
	Name string `json:"name"`
	// Underlying is the declared underlying type, "" when unspecified.
	Underlying  string       `json:"underlying,omitempty"`
	Scoped      bool         `json:"scoped,omitempty"`
	Enumerators []Enumerator `json:"enumerators,omitempty"`
	DeclOrder   int          `json:"decl_order"`
	Loc         Location     `json:"loc"`
}

// RawTypedef is an extracted typedef or using-alias.
type RawTypedef struct {
	Name      string   `json:"name"`
	Target    RawType  `json:"target"`
	DeclOrder int      `json:"decl_order"`
	Loc       Location `json:"loc"`
}

// RawUnparsed records a declaration the extractor could not model.
// The model builder turns these into documented stubs so the rest of
// the run proceeds.
type RawUnparsed struct {
	// Name is best-effort; may be "" when no identifier was found.
	Name      string   `json:"name,omitempty"`
	Reason    string   `json:"reason"`
	DeclOrder int      `json:"decl_order"`
	Loc       Location `json:"loc"`
}

// Result is the extractor output for one or more headers.
type Result struct {
	Functions []RawFunction `json:"functions,omitempty"`
	Records   []RawRecord   `json:"records,omitempty"`
	Enums     []RawEnum     `json:"enums,omitempty"`
	Typedefs  []RawTypedef  `json:"typedefs,omitempty"`
	Unparsed  []RawUnparsed `json:"unparsed,omitempty"`
}

// Merge appends other's declarations. Declaration order fields are
// already globally assigned by the extractor, so ordering survives.
func (r *Result) Merge(other *Result) {
	r.Functions = append(r.Functions, other.Functions...)
	r.Records = append(r.Records, other.Records...)
	r.Enums = append(r.Enums, other.Enums...)
	r.Typedefs = append(r.Typedefs, other.Typedefs...)
	r.Unparsed = append(r.Unparsed, other.Unparsed...)
}

// DeclCount returns the total number of declarations extracted.
func (r *Result) DeclCount() int {
	return len(r.Functions) + len(r.Records) + len(r.Enums) +
		len(r.Typedefs) + len(r.Unparsed)
}
