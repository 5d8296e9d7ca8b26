// Package classify assigns every type in the model a relocation
// verdict and a special member inventory. The analysis is transitive
// over bases and by-value fields and is deliberately conservative:
// whenever a dependency could not be analyzed, the type is treated as
// not trivially relocatable and as owning a destructor, because
// claiming triviality wrongly would let generated code byte-copy an
// object that needed its copy or move constructor to run.
package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bindweld/bindweld/pkg/extract"
	"github.com/bindweld/bindweld/pkg/model"
)

// Verdict is the per-type relocation classification.
type Verdict int

const (
	// VerdictTrivial types may be freely byte-copied across the
	// boundary; no special member ever needs to run.
	VerdictTrivial Verdict = iota
	// VerdictNonTrivial types must live behind owned or borrowed
	// handles; by-value crossings are lowered to heap boxes.
	VerdictNonTrivial
	// VerdictAbstract types can be referenced but never constructed.
	VerdictAbstract
	// VerdictForwardOnly types were only ever forward declared; legal
	// solely behind a pointer or reference.
	VerdictForwardOnly
)

func (v Verdict) String() string {
	switch v {
	case VerdictTrivial:
		return "trivial"
	case VerdictNonTrivial:
		return "non-trivial"
	case VerdictAbstract:
		return "abstract"
	case VerdictForwardOnly:
		return "forward-declared"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Availability describes one special member of a type.
type Availability int

const (
	// AvailAbsent means the member is neither declared nor implicitly
	// provided.
	AvailAbsent Availability = iota
	// AvailImplicit means the compiler provides the member and every
	// analyzed dependency also provides its corresponding member.
	AvailImplicit
	// AvailExplicit means the member is user-declared or defaulted.
	AvailExplicit
	// AvailDeleted means the member is explicitly deleted, or
	// suppressed by another user-declared member per the language
	// rules.
	AvailDeleted
	// AvailUnknown means a dependency was unanalyzed so the implicit
	// determination could not be completed. Consumers must treat
	// unknown as unavailable when deciding what to synthesize.
	AvailUnknown
)

func (a Availability) String() string {
	switch a {
	case AvailAbsent:
		return "absent"
	case AvailImplicit:
		return "implicit"
	case AvailExplicit:
		return "explicit"
	case AvailDeleted:
		return "deleted"
	case AvailUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("availability(%d)", int(a))
	}
}

// Usable reports whether a wrapper may be synthesized over this
// member. Unknown deliberately says no.
func (a Availability) Usable() bool {
	return a == AvailImplicit || a == AvailExplicit
}

// Inventory is the special member inventory of one type.
type Inventory struct {
	DefaultCtor Availability
	CopyCtor    Availability
	MoveCtor    Availability
	Destructor  Availability
}

// Result is the immutable classification of one type.
type Result struct {
	Verdict   Verdict
	Inventory Inventory
	// Reasons explains a non-trivial verdict, outermost cause first.
	// Empty for trivial types.
	Reasons []string
}

// Table holds the classification of every type entity, keyed by
// entity ID. Built once; read-only afterward.
type Table struct {
	results map[model.EntityID]Result
}

// Of returns the classification for a type entity. Enums are always
// trivial; concrete template instantiations and extern types are
// opaque and therefore non-trivial with an assumed destructor.
func (t *Table) Of(id model.EntityID) Result {
	if r, ok := t.results[id]; ok {
		return r
	}
	return Result{
		Verdict:   VerdictNonTrivial,
		Inventory: Inventory{Destructor: AvailUnknown},
		Reasons:   []string{"type was not analyzed"},
	}
}

// PODViolationError is fatal: a generate_pod directive named a type
// that cannot be proven trivially relocatable.
type PODViolationError struct {
	Name    string
	Reasons []string
}

func (e *PODViolationError) Error() string {
	return fmt.Sprintf("%s was requested with generate_pod but cannot be safely passed by value: %s",
		e.Name, strings.Join(e.Reasons, "; "))
}

// Classify walks every type entity and computes its verdict and
// inventory, then verifies each generate_pod request against its
// verdict. POD verification failure is the only fatal outcome.
func Classify(api *model.API, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &classifier{
		api:        api,
		memo:       make(map[model.EntityID]Result),
		inProgress: make(map[model.EntityID]bool),
	}

	trivial, nonTrivial := 0, 0
	for _, e := range api.All() {
		if e.Kind != model.EntityRecord {
			continue
		}
		r := c.record(e)
		switch r.Verdict {
		case VerdictTrivial:
			trivial++
		default:
			nonTrivial++
		}
	}

	for _, e := range api.All() {
		if e.Prov != model.ProvRequestedPOD {
			continue
		}
		r := c.memo[e.ID]
		if r.Verdict != VerdictTrivial {
			return nil, &PODViolationError{Name: e.Name.String(), Reasons: r.Reasons}
		}
	}

	logger.Info("types classified", "trivial", trivial, "other", nonTrivial)
	return &Table{results: c.memo}, nil
}

type classifier struct {
	api        *model.API
	memo       map[model.EntityID]Result
	inProgress map[model.EntityID]bool
}

func (c *classifier) record(e *model.Entity) Result {
	if r, ok := c.memo[e.ID]; ok {
		return r
	}
	if c.inProgress[e.ID] {
		// A by-value cycle is not valid C++; it can only be observed
		// here if the source was malformed. Refuse triviality rather
		// than recurse forever.
		return Result{
			Verdict:   VerdictNonTrivial,
			Inventory: Inventory{Destructor: AvailUnknown},
			Reasons:   []string{fmt.Sprintf("%s contains itself by value", e.Name)},
		}
	}
	c.inProgress[e.ID] = true
	defer delete(c.inProgress, e.ID)

	r := c.analyze(e)
	c.memo[e.ID] = r
	return r
}

func (c *classifier) analyze(e *model.Entity) Result {
	rec := e.Rec

	if rec.ForwardOnly {
		return Result{
			Verdict:   VerdictForwardOnly,
			Inventory: Inventory{Destructor: AvailUnknown},
			Reasons:   []string{fmt.Sprintf("%s is only forward declared", e.Name)},
		}
	}

	var reasons []string

	if rec.HasVirtual {
		reasons = append(reasons, fmt.Sprintf("%s has virtual member functions", e.Name))
	}
	reasons = append(reasons, declaredMemberReasons(e.Name.String(), rec.Specials)...)

	depUnknown := false
	for _, base := range c.api.Bases[e.ID] {
		if base.Entity == model.NoEntity {
			reasons = append(reasons, fmt.Sprintf(
				"%s has a base class %s which was not analyzed; assuming it has a destructor", e.Name, base.Name))
			depUnknown = true
			continue
		}
		br := c.record(c.api.Entity(base.Entity))
		if br.Verdict != VerdictTrivial {
			reasons = append(reasons, fmt.Sprintf(
				"%s has a base class %s which cannot be safely passed by value", e.Name, base.Name))
			reasons = append(reasons, br.Reasons...)
		}
	}

	for _, f := range c.api.Fields[e.ID] {
		ok, unknown, fieldReasons := c.field(e, f)
		if !ok {
			reasons = append(reasons, fieldReasons...)
		}
		if unknown {
			depUnknown = true
		}
	}

	inv := c.inventory(e, rec.Specials, depUnknown)

	verdict := VerdictTrivial
	if len(reasons) > 0 {
		verdict = VerdictNonTrivial
	}
	if rec.Abstract {
		verdict = VerdictAbstract
		reasons = append(reasons, fmt.Sprintf("%s has pure virtual member functions", e.Name))
	}

	return Result{Verdict: verdict, Inventory: inv, Reasons: reasons}
}

// field checks one member field. Pointer and reference fields never
// affect relocation; only by-value storage does.
func (c *classifier) field(e *model.Entity, f model.Field) (ok, unknown bool, reasons []string) {
	if f.Type.Indirection != model.IndirValue {
		return true, false, nil
	}
	switch f.Type.Kind {
	case model.RefPrimitive:
		return true, false, nil
	case model.RefOpaque:
		return false, true, []string{fmt.Sprintf(
			"%s has a field %s of type %s which was not analyzed (%s); assuming it has a destructor",
			e.Name, f.Name, f.Type.OpaqueName, f.Type.OpaqueReason)}
	case model.RefEntity:
		return c.valueDep(e, f.Name, f.Type.Entity, make(map[model.EntityID]bool))
	}
	return false, true, []string{fmt.Sprintf("%s has a field %s with an unresolvable type", e.Name, f.Name)}
}

// valueDep classifies a by-value dependency, following typedef chains.
func (c *classifier) valueDep(e *model.Entity, fieldName string, dep model.EntityID, seen map[model.EntityID]bool) (ok, unknown bool, reasons []string) {
	if seen[dep] {
		return false, false, []string{fmt.Sprintf(
			"%s has a field %s whose type alias chain is circular", e.Name, fieldName)}
	}
	seen[dep] = true

	target := c.api.Entity(dep)
	switch target.Kind {
	case model.EntityEnum:
		return true, false, nil
	case model.EntityTypedef:
		tr := c.api.TypedefTargets[dep]
		if tr.Indirection != model.IndirValue {
			return true, false, nil
		}
		switch tr.Kind {
		case model.RefPrimitive:
			return true, false, nil
		case model.RefEntity:
			return c.valueDep(e, fieldName, tr.Entity, seen)
		default:
			return false, true, []string{fmt.Sprintf(
				"%s has a field %s whose aliased type %s was not analyzed; assuming it has a destructor",
				e.Name, fieldName, tr.OpaqueName)}
		}
	case model.EntityRecord:
		dr := c.record(target)
		if dr.Verdict == VerdictTrivial {
			return true, false, nil
		}
		out := []string{fmt.Sprintf(
			"%s has a field %s of type %s which cannot be safely passed by value", e.Name, fieldName, target.Name)}
		return false, false, append(out, dr.Reasons...)
	case model.EntityConcrete, model.EntityExtern:
		return false, true, []string{fmt.Sprintf(
			"%s has a field %s of opaque type %s; assuming it has a destructor", e.Name, fieldName, target.Name)}
	}
	return false, true, []string{fmt.Sprintf(
		"%s has a field %s of unsupported type %s", e.Name, fieldName, target.Name)}
}

// declaredMemberReasons lists the user-declared members that rule out
// trivial relocation. A defaulted member keeps the member trivial; a
// declared or deleted one does not.
func declaredMemberReasons(name string, sp extract.SpecialMembers) []string {
	var out []string
	add := func(p extract.Presence, what string) {
		switch p {
		case extract.PresenceDeclared:
			out = append(out, fmt.Sprintf("%s has a user-declared %s", name, what))
		case extract.PresenceDeleted:
			if what == "destructor" {
				out = append(out, fmt.Sprintf("%s has a deleted destructor", name))
			}
		}
	}
	add(sp.Destructor, "destructor")
	add(sp.CopyCtor, "copy constructor")
	add(sp.MoveCtor, "move constructor")
	add(sp.CopyAssign, "copy assignment operator")
	add(sp.MoveAssign, "move assignment operator")
	return out
}

// inventory applies the implicit special member rules: which members
// the compiler provides given what the user declared. depUnknown
// poisons every implicit determination to unknown, because an
// unanalyzed base or field could delete the member.
func (c *classifier) inventory(e *model.Entity, sp extract.SpecialMembers, depUnknown bool) Inventory {
	userDeclared := func(p extract.Presence) bool { return p != extract.PresenceNone }
	explicitOf := func(p extract.Presence) (Availability, bool) {
		switch p {
		case extract.PresenceDeclared, extract.PresenceDefaulted:
			return AvailExplicit, true
		case extract.PresenceDeleted:
			return AvailDeleted, true
		}
		return AvailAbsent, false
	}
	implicit := func(suppressed bool) Availability {
		if suppressed {
			return AvailDeleted
		}
		if depUnknown {
			return AvailUnknown
		}
		return AvailImplicit
	}

	var inv Inventory

	if a, ok := explicitOf(sp.DefaultCtor); ok {
		inv.DefaultCtor = a
	} else if userDeclared(sp.CopyCtor) || userDeclared(sp.MoveCtor) || sp.OtherCtor {
		// Any user-declared constructor suppresses the implicit
		// default constructor.
		inv.DefaultCtor = AvailAbsent
	} else {
		inv.DefaultCtor = implicit(false)
	}

	if a, ok := explicitOf(sp.CopyCtor); ok {
		inv.CopyCtor = a
	} else {
		inv.CopyCtor = implicit(userDeclared(sp.MoveCtor) || userDeclared(sp.MoveAssign))
	}

	if a, ok := explicitOf(sp.MoveCtor); ok {
		inv.MoveCtor = a
	} else {
		inv.MoveCtor = implicit(userDeclared(sp.CopyCtor) ||
			userDeclared(sp.CopyAssign) ||
			userDeclared(sp.MoveAssign) ||
			userDeclared(sp.Destructor))
	}

	if a, ok := explicitOf(sp.Destructor); ok {
		inv.Destructor = a
	} else {
		inv.Destructor = implicit(false)
	}

	return inv
}
