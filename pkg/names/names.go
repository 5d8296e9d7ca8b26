// Package names maps hierarchical C++ names onto the flat identifier
// space of the generated artifacts. Types keep their bare identifier
// unless two distinct types would collide, in which case both switch
// to their fully qualified flattened form. Function overloads are
// deconflicted with numeric suffixes assigned in declaration order,
// first occurrence unsuffixed. The resulting table is injective and
// deterministic: it is built in two passes ordered by declaration
// order, never by map iteration order.
package names

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/bindweld/bindweld/pkg/extract"
	"github.com/bindweld/bindweld/pkg/model"
)

// ConflictError is fatal: two distinct types need the same flat
// identifier and types cannot be suffix-disambiguated.
type ConflictError struct {
	Flat   string
	First  string
	Second string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("types %s and %s would both be generated as %q; rename one with a concrete or extern directive or block one of them",
		e.First, e.Second, e.Flat)
}

// Table is the finished name assignment. Read-only after Build.
type Table struct {
	typeNames map[model.EntityID]string
	funNames  map[model.EntityID]string
	shims     map[model.EntityID]string
}

// TypeName returns the flat identifier chosen for a type entity.
func (t *Table) TypeName(id model.EntityID) string { return t.typeNames[id] }

// FunctionName returns the generated wrapper name for a function
// entity, overload suffix included.
func (t *Table) FunctionName(id model.EntityID) string { return t.funNames[id] }

// ShimSymbol returns the extern "C" symbol the shim defines and the
// bridge declares for a function entity.
func (t *Table) ShimSymbol(id model.EntityID) string { return t.shims[id] }

// Build assigns every type and function entity its flat name.
func Build(api *model.API, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Table{
		typeNames: make(map[model.EntityID]string),
		funNames:  make(map[model.EntityID]string),
		shims:     make(map[model.EntityID]string),
	}

	if err := t.assignTypes(api); err != nil {
		return nil, err
	}
	t.assignFunctions(api)

	logger.Debug("name table built", "types", len(t.typeNames), "functions", len(t.funNames))
	return t, nil
}

// assignTypes runs the two-pass type naming: collect bare-identifier
// candidates first, then qualify exactly the colliding ones.
func (t *Table) assignTypes(api *model.API) error {
	types := typeEntities(api)

	bare := make(map[string]int)
	for _, e := range types {
		bare[e.Name.Name]++
	}

	taken := make(map[string]*model.Entity)
	for _, e := range types {
		flat := sanitize(e.Name.Name)
		if bare[e.Name.Name] > 1 {
			flat = sanitize(e.Name.Flat("_"))
		}
		if prev, dup := taken[flat]; dup {
			return &ConflictError{Flat: flat, First: prev.Name.String(), Second: e.Name.String()}
		}
		taken[flat] = e
		t.typeNames[e.ID] = flat
	}
	return nil
}

// assignFunctions groups function entities into overload sets by
// their qualified name, picks a base identifier per set (qualified
// only when two sets would collide), and suffixes within each set by
// declaration order.
func (t *Table) assignFunctions(api *model.API) {
	type group struct {
		qualified string
		members   []*model.Entity
	}

	var groups []*group
	byQual := make(map[string]*group)
	for _, e := range api.All() {
		if e.Kind != model.EntityFunction {
			continue
		}
		g, ok := byQual[e.Name.String()]
		if !ok {
			g = &group{qualified: e.Name.String()}
			byQual[e.Name.String()] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, e)
	}

	for _, g := range groups {
		sort.SliceStable(g.members, func(i, j int) bool {
			return g.members[i].DeclOrder < g.members[j].DeclOrder
		})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].members[0].DeclOrder < groups[j].members[0].DeclOrder
	})

	base := func(g *group, qualify bool) string {
		lead := g.members[0]
		if lead.Fun.Kind == extract.KindConstructor {
			recv := lead.Fun.MethodOf
			if id, ok := api.Lookup(recv); ok {
				return "New" + t.typeNames[id]
			}
			return "New" + sanitize(model.ParseQualifiedName(recv).Flat("_"))
		}
		if qualify {
			return sanitize(g.qualified)
		}
		return sanitize(g.members[0].Name.Name)
	}

	bareCount := make(map[string]int)
	for _, g := range groups {
		bareCount[base(g, false)]++
	}

	// taken holds every assigned name keyed by its scope (the receiver
	// for methods, the package for everything else), so a suffixed
	// overload can never shadow a distinct function that happens to
	// carry the same spelling, e.g. overloaded foo next to foo1.
	taken := make(map[string]bool)
	for _, g := range groups {
		b := base(g, false)
		if bareCount[b] > 1 && g.members[0].Fun.Kind != extract.KindConstructor {
			b = base(g, true)
		}
		n := 0
		for _, e := range g.members {
			var goName string
			for {
				suffix := ""
				if n > 0 {
					suffix = fmt.Sprintf("%d", n)
				}
				n++
				goName = exportName(b) + suffix
				if !taken[funScope(e)+goName] {
					break
				}
			}
			taken[funScope(e)+goName] = true
			t.funNames[e.ID] = goName
			t.shims[e.ID] = shimSymbol(api.Config.ModName, e, t, goName)
		}
	}
}

// funScope keys the namespace a generated function name lives in:
// methods are scoped by their receiver, free functions and
// constructors share the package scope.
func funScope(e *model.Entity) string {
	if recv := e.Fun.MethodOf; recv != "" && e.Fun.Kind != extract.KindConstructor {
		return recv + "."
	}
	return ""
}

func typeEntities(api *model.API) []*model.Entity {
	var out []*model.Entity
	for _, e := range api.All() {
		switch e.Kind {
		case model.EntityRecord, model.EntityEnum, model.EntityTypedef,
			model.EntityConcrete, model.EntityExtern, model.EntityUnparsed:
			// Anonymous unparsed declarations have no name to assign.
			if e.Name.Empty() {
				continue
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeclOrder < out[j].DeclOrder })
	return out
}

// shimSymbol builds the extern "C" symbol. The receiver's flat name
// is folded in so free functions and same-named methods on different
// types never collide in the C symbol space.
func shimSymbol(mod string, e *model.Entity, t *Table, goName string) string {
	parts := []string{sanitize(mod)}
	if recv := e.Fun.MethodOf; recv != "" && e.Fun.Kind != extract.KindConstructor {
		parts = append(parts, sanitize(model.ParseQualifiedName(recv).Flat("_")))
	}
	parts = append(parts, goName)
	return strings.Join(parts, "_")
}

// sanitize makes a C++ identifier fragment safe as a flat identifier:
// scope separators and any other non-identifier runes become
// underscores.
func sanitize(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r) && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	// "::" flattens to a single separator, not two.
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return out
}

// exportName capitalizes the leading rune so the generated Go wrapper
// is exported.
func exportName(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
