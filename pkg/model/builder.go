package model

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bindweld/bindweld/pkg/directive"
	"github.com/bindweld/bindweld/pkg/extract"
)

// MissingSymbolError is a fatal configuration error: a generation
// request named a symbol absent from the extractor output.
type MissingSymbolError struct {
	Name string
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("the generate directive for %q matched nothing in the included headers; check the spelling and namespace qualification", e.Name)
}

// EmptyNamespaceError is a fatal configuration error: a generate_ns
// directive matched no declarations.
type EmptyNamespaceError struct {
	Namespace string
}

func (e *EmptyNamespaceError) Error() string {
	return fmt.Sprintf("the generate_ns directive for %q matched no declarations", e.Namespace)
}

// NotARecordError is a fatal configuration error: generate_pod was
// applied to something that is not a struct/class.
type NotARecordError struct {
	Name string
	Kind string
}

func (e *NotARecordError) Error() string {
	return fmt.Sprintf("generate_pod requires a struct or class, but %q is a %s", e.Name, e.Kind)
}

// Build closes the entity graph over the allowlisted declarations:
// starting from the generation requests it pulls in, breadth-first,
// every type transitively referenced by a generated signature or
// field, marking those as dependencies. The returned API is complete:
// every TypeRef resolves to an entity, a primitive, or an explicit
// opaque marker.
func Build(decls *extract.Result, cfg *directive.Config, logger *slog.Logger) (*API, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := &builder{
		api: &API{
			Config:         cfg,
			byName:         make(map[string]EntityID),
			funByName:      make(map[string][]EntityID),
			Funcs:          make(map[EntityID]*FunSig),
			Fields:         make(map[EntityID][]Field),
			Bases:          make(map[EntityID][]BaseRef),
			TypedefTargets: make(map[EntityID]TypeRef),
			MethodsOf:      make(map[EntityID][]EntityID),
		},
		cfg:    cfg,
		logger: logger,

		records:  make(map[string]*extract.RawRecord),
		enums:    make(map[string]*extract.RawEnum),
		typedefs: make(map[string]*extract.RawTypedef),
		freeFuns: make(map[string][]*extract.RawFunction),
		methods:  make(map[string][]*extract.RawFunction),
		unparsed: make(map[string]*extract.RawUnparsed),
	}
	b.index(decls)
	b.addSynthetics(decls)

	if err := b.seed(decls); err != nil {
		return nil, err
	}
	b.close()

	logger.Info("model built",
		"entities", len(b.api.entities),
		"requested", b.requestedCount,
		"dependencies", len(b.api.entities)-b.requestedCount)

	return b.api, nil
}

type builder struct {
	api    *API
	cfg    *directive.Config
	logger *slog.Logger

	records  map[string]*extract.RawRecord
	enums    map[string]*extract.RawEnum
	typedefs map[string]*extract.RawTypedef
	freeFuns map[string][]*extract.RawFunction
	methods  map[string][]*extract.RawFunction
	unparsed map[string]*extract.RawUnparsed

	queue          []EntityID
	maxOrder       int
	requestedCount int
}

func (b *builder) index(decls *extract.Result) {
	for i := range decls.Records {
		rec := &decls.Records[i]
		// A definition supersedes any forward declaration of the same
		// name; a forward declaration never hides a definition.
		if prev, ok := b.records[rec.Name]; ok && !prev.ForwardOnly {
			continue
		}
		b.records[rec.Name] = rec
		b.bumpOrder(rec.DeclOrder)
	}
	for i := range decls.Enums {
		en := &decls.Enums[i]
		b.enums[en.Name] = en
		b.bumpOrder(en.DeclOrder)
	}
	for i := range decls.Typedefs {
		td := &decls.Typedefs[i]
		b.typedefs[td.Name] = td
		b.bumpOrder(td.DeclOrder)
	}
	for i := range decls.Functions {
		fn := &decls.Functions[i]
		b.bumpOrder(fn.DeclOrder)
		if fn.MethodOf != "" {
			b.methods[fn.MethodOf] = append(b.methods[fn.MethodOf], fn)
			continue
		}
		b.freeFuns[fn.Name] = append(b.freeFuns[fn.Name], fn)
	}
	for i := range decls.Unparsed {
		u := &decls.Unparsed[i]
		if u.Name != "" {
			b.unparsed[u.Name] = u
		}
		b.bumpOrder(u.DeclOrder)
	}
}

func (b *builder) bumpOrder(order int) {
	if order >= b.maxOrder {
		b.maxOrder = order + 1
	}
}

// addSynthetics creates entities for concrete template aliases and
// extern types. Neither carries structure; both stay opaque.
func (b *builder) addSynthetics(decls *extract.Result) {
	for i := range b.cfg.Concretes {
		ca := &b.cfg.Concretes[i]
		e := b.newEntity(QualifiedName{Name: ca.FlatName}, EntityConcrete, ProvRequested)
		e.Concrete = ca
	}
	for _, et := range b.cfg.ExternTypes {
		e := b.newEntity(ParseQualifiedName(et.Name), EntityExtern, ProvExtern)
		e.ExternOpaque = et.Opaque
	}
}

func (b *builder) newEntity(name QualifiedName, kind Kind, prov Provenance) *Entity {
	id := EntityID(len(b.api.entities))
	e := &Entity{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Prov:      prov,
		DeclOrder: b.maxOrder,
	}
	b.maxOrder++
	b.api.entities = append(b.api.entities, e)
	if kind != EntityFunction {
		b.api.byName[name.String()] = id
	}
	b.queue = append(b.queue, id)
	return e
}

// seed turns every generation request into one or more entities,
// failing fast on requests that match nothing.
func (b *builder) seed(decls *extract.Result) error {
	for _, name := range b.cfg.GeneratePOD {
		if rec, ok := b.lookupRecord(name); ok {
			b.addRecord(rec, ProvRequestedPOD)
			b.requestedCount++
			continue
		}
		if _, ok := b.enums[name]; ok {
			return &NotARecordError{Name: name, Kind: "enum"}
		}
		if _, ok := b.freeFuns[name]; ok {
			return &NotARecordError{Name: name, Kind: "function"}
		}
		return &MissingSymbolError{Name: name}
	}

	for _, name := range b.cfg.Generate {
		if err := b.seedOne(name); err != nil {
			return err
		}
		b.requestedCount++
	}

	for _, ns := range b.cfg.GenerateNS {
		matched := 0
		for name, rec := range b.records {
			if ParseQualifiedName(name).InNamespace(ns) && !b.cfg.Blocked(name) {
				b.addRecord(rec, ProvRequested)
				matched++
			}
		}
		for name, en := range b.enums {
			if ParseQualifiedName(name).InNamespace(ns) && !b.cfg.Blocked(name) {
				b.addEnum(en)
				matched++
			}
		}
		for name, td := range b.typedefs {
			if ParseQualifiedName(name).InNamespace(ns) && !b.cfg.Blocked(name) {
				b.addTypedef(td)
				matched++
			}
		}
		for name, fns := range b.freeFuns {
			if ParseQualifiedName(name).InNamespace(ns) && !b.cfg.Blocked(name) {
				b.addFunctions(fns)
				matched += len(fns)
			}
		}
		if matched == 0 {
			return &EmptyNamespaceError{Namespace: ns}
		}
		b.requestedCount += matched
	}

	if b.cfg.GenerateAll {
		for _, rec := range b.records {
			if !b.cfg.Blocked(rec.Name) {
				b.addRecord(rec, ProvRequested)
				b.requestedCount++
			}
		}
		for _, en := range b.enums {
			if !b.cfg.Blocked(en.Name) {
				b.addEnum(en)
				b.requestedCount++
			}
		}
		for _, td := range b.typedefs {
			if !b.cfg.Blocked(td.Name) {
				b.addTypedef(td)
				b.requestedCount++
			}
		}
		for name, fns := range b.freeFuns {
			if b.cfg.Blocked(name) {
				continue
			}
			b.addFunctions(fns)
			b.requestedCount += len(fns)
		}
		for i := range decls.Unparsed {
			b.addUnparsed(&decls.Unparsed[i])
		}
	}

	// Subclass directives are accepted but unsupported: surface each
	// as a documented stub rather than an error.
	for _, name := range b.cfg.Subclasses {
		b.addSubclassStub(name)
	}

	return nil
}

func (b *builder) seedOne(name string) error {
	if rec, ok := b.lookupRecord(name); ok {
		b.addRecord(rec, ProvRequested)
		return nil
	}
	if en, ok := b.enums[name]; ok {
		b.addEnum(en)
		return nil
	}
	if td, ok := b.typedefs[name]; ok {
		b.addTypedef(td)
		return nil
	}
	if fns, ok := b.freeFuns[name]; ok {
		b.addFunctions(fns)
		return nil
	}
	if u, ok := b.unparsed[name]; ok {
		b.addUnparsed(u)
		return nil
	}
	return &MissingSymbolError{Name: name}
}

func (b *builder) lookupRecord(name string) (*extract.RawRecord, bool) {
	rec, ok := b.records[name]
	return rec, ok
}

func (b *builder) addRecord(rec *extract.RawRecord, prov Provenance) EntityID {
	qual := rec.Name
	if id, ok := b.api.byName[qual]; ok {
		// Already present; an explicit request upgrades a dependency.
		e := b.api.Entity(id)
		if e.Prov == ProvDependency && prov != ProvDependency {
			e.Prov = prov
			b.queue = append(b.queue, id)
		}
		return id
	}
	e := b.newEntity(ParseQualifiedName(qual), EntityRecord, prov)
	e.Rec = rec
	e.DeclOrder = rec.DeclOrder
	e.Loc = rec.Loc
	return e.ID
}

func (b *builder) addEnum(en *extract.RawEnum) EntityID {
	if id, ok := b.api.byName[en.Name]; ok {
		return id
	}
	e := b.newEntity(ParseQualifiedName(en.Name), EntityEnum, ProvRequested)
	e.Enum = en
	e.DeclOrder = en.DeclOrder
	e.Loc = en.Loc
	return e.ID
}

func (b *builder) addTypedef(td *extract.RawTypedef) EntityID {
	if id, ok := b.api.byName[td.Name]; ok {
		return id
	}
	e := b.newEntity(ParseQualifiedName(td.Name), EntityTypedef, ProvRequested)
	e.Tdef = td
	e.DeclOrder = td.DeclOrder
	e.Loc = td.Loc
	return e.ID
}

func (b *builder) addFunctions(fns []*extract.RawFunction) {
	for _, fn := range fns {
		b.addFunction(fn, NoEntity)
	}
}

func (b *builder) addFunction(fn *extract.RawFunction, receiver EntityID) EntityID {
	e := b.newEntity(ParseQualifiedName(fn.Name), EntityFunction, ProvRequested)
	e.Fun = fn
	e.DeclOrder = fn.DeclOrder
	e.Loc = fn.Loc
	b.api.funByName[fn.Name] = append(b.api.funByName[fn.Name], e.ID)
	if receiver != NoEntity {
		b.api.MethodsOf[receiver] = append(b.api.MethodsOf[receiver], e.ID)
	}
	return e.ID
}

func (b *builder) addUnparsed(u *extract.RawUnparsed) EntityID {
	name := ParseQualifiedName(u.Name)
	e := b.newEntity(name, EntityUnparsed, ProvRequested)
	e.Unparsed = u
	e.DeclOrder = u.DeclOrder
	e.Loc = u.Loc
	return e.ID
}

func (b *builder) addSubclassStub(name string) {
	u := &extract.RawUnparsed{
		Name:   name,
		Reason: "subclass directives are not supported; only direct bindings are generated",
	}
	e := b.newEntity(ParseQualifiedName(name), EntityUnparsed, ProvRequested)
	e.Unparsed = u
}

// close drains the worklist, resolving every signature, field, base
// and typedef target. New dependency entities found during resolution
// join the queue; termination is guaranteed because each qualified
// name creates at most one entity.
func (b *builder) close() {
	for len(b.queue) > 0 {
		id := b.queue[0]
		b.queue = b.queue[1:]
		e := b.api.Entity(id)

		switch e.Kind {
		case EntityFunction:
			b.resolveFunction(e)
		case EntityRecord:
			b.resolveRecord(e)
		case EntityTypedef:
			if _, done := b.api.TypedefTargets[e.ID]; !done {
				b.api.TypedefTargets[e.ID] = b.resolveType(e.Tdef.Target, e.Name.Namespace)
			}
		}
	}
}

func (b *builder) resolveFunction(e *Entity) {
	if _, done := b.api.Funcs[e.ID]; done {
		return
	}
	sig := &FunSig{Receiver: NoEntity}

	if e.Fun.MethodOf != "" {
		if rec, ok := b.lookupRecord(e.Fun.MethodOf); ok {
			sig.Receiver = b.addRecord(rec, ProvDependency)
		}
	}

	for _, p := range e.Fun.Params {
		sig.Params = append(sig.Params, b.resolveType(p.Type, e.Name.Namespace))
		sig.ParamNames = append(sig.ParamNames, p.Name)
	}
	if e.Fun.Returns != nil {
		ret := b.resolveType(*e.Fun.Returns, e.Name.Namespace)
		if !ret.IsVoid() {
			sig.Ret = &ret
		}
	}

	b.api.Funcs[e.ID] = sig
}

func (b *builder) resolveRecord(e *Entity) {
	rec := e.Rec

	if _, done := b.api.Fields[e.ID]; !done && len(rec.Fields) > 0 {
		fields := make([]Field, 0, len(rec.Fields))
		for _, f := range rec.Fields {
			fields = append(fields, Field{
				Name:   f.Name,
				Type:   b.resolveType(f.Type, e.Name.Namespace),
				Access: f.Access,
			})
		}
		b.api.Fields[e.ID] = fields
	}

	if _, done := b.api.Bases[e.ID]; !done && len(rec.Bases) > 0 {
		bases := make([]BaseRef, 0, len(rec.Bases))
		for _, baseName := range rec.Bases {
			ref := BaseRef{Name: baseName, Entity: NoEntity}
			if resolved, ok := b.lookupScoped(baseName, e.Name.Namespace); ok {
				if base, found := b.lookupRecord(resolved); found {
					ref.Entity = b.addRecord(base, ProvDependency)
				}
			}
			bases = append(bases, ref)
		}
		b.api.Bases[e.ID] = bases
	}

	// Dependencies get declarations only; methods are generated solely
	// for explicitly requested records.
	if e.Prov == ProvDependency || e.Prov == ProvExtern {
		return
	}
	if _, done := b.api.MethodsOf[e.ID]; done {
		return
	}
	for _, m := range b.methods[rec.Name] {
		switch m.Kind {
		case extract.KindDestructor:
			// Never exposed: teardown rides on the owned handle.
			continue
		case extract.KindConstructor:
			if b.cfg.ConstructorsBlocked(rec.Name) {
				continue
			}
		}
		b.addFunction(m, e.ID)
	}
	if len(b.api.MethodsOf[e.ID]) == 0 {
		// Distinguish "resolved, no methods" from "not yet resolved".
		b.api.MethodsOf[e.ID] = []EntityID{}
	}
}

// resolveType converts a raw extracted type into a resolved TypeRef,
// creating dependency entities as needed.
func (b *builder) resolveType(raw extract.RawType, refNS []string) TypeRef {
	if raw.Unparsed != "" {
		return TypeRef{Kind: RefOpaque, OpaqueName: "?", OpaqueReason: raw.Unparsed}
	}

	switch raw.Shape {
	case extract.ShapePointer:
		inner := b.resolveType(*raw.Inner, refNS)
		if inner.Indirection != IndirValue {
			return TypeRef{Kind: RefOpaque, OpaqueName: raw.String(),
				OpaqueReason: "multi-level indirection is not supported"}
		}
		inner.Indirection = IndirPointer
		return inner

	case extract.ShapeLValueRef, extract.ShapeRValueRef:
		inner := b.resolveType(*raw.Inner, refNS)
		if inner.Indirection != IndirValue {
			return TypeRef{Kind: RefOpaque, OpaqueName: raw.String(),
				OpaqueReason: "reference to pointer is not supported"}
		}
		if raw.Shape == extract.ShapeLValueRef {
			inner.Indirection = IndirLValueRef
		} else {
			inner.Indirection = IndirRValueRef
		}
		return inner
	}

	// Named type.
	if len(raw.TemplateArgs) > 0 {
		return b.resolveTemplate(raw)
	}

	if prim, ok := LookupPrimitive(raw.Name); ok {
		return TypeRef{Kind: RefPrimitive, Primitive: prim, Const: raw.Const}
	}

	resolved, ok := b.lookupScoped(raw.Name, refNS)
	if !ok {
		return TypeRef{Kind: RefOpaque, Const: raw.Const, OpaqueName: raw.Name,
			OpaqueReason: fmt.Sprintf("type %s was not found in any analyzed header", raw.Name)}
	}
	if b.cfg.Blocked(resolved) {
		return TypeRef{Kind: RefOpaque, Const: raw.Const, OpaqueName: resolved,
			OpaqueReason: fmt.Sprintf("type %s is blocked by directive", resolved)}
	}

	if id, ok := b.api.byName[resolved]; ok {
		return TypeRef{Kind: RefEntity, Entity: id, Const: raw.Const}
	}
	if rec, ok := b.lookupRecord(resolved); ok {
		return TypeRef{Kind: RefEntity, Entity: b.addRecord(rec, ProvDependency), Const: raw.Const}
	}
	if en, ok := b.enums[resolved]; ok {
		return TypeRef{Kind: RefEntity, Entity: b.addEnum(en), Const: raw.Const}
	}
	if td, ok := b.typedefs[resolved]; ok {
		return TypeRef{Kind: RefEntity, Entity: b.addTypedef(td), Const: raw.Const}
	}

	return TypeRef{Kind: RefOpaque, Const: raw.Const, OpaqueName: resolved,
		OpaqueReason: fmt.Sprintf("type %s was not found in any analyzed header", resolved)}
}

// resolveTemplate matches a template instance against the concrete
// directives; any unmatched instance stays opaque.
func (b *builder) resolveTemplate(raw extract.RawType) TypeRef {
	// The directive names the bare instantiation; const qualification
	// must not keep it from matching.
	bare := raw
	bare.Const = false
	want := canonicalType(bare.String())
	for i := range b.cfg.Concretes {
		ca := &b.cfg.Concretes[i]
		if canonicalType(ca.CppType) == want {
			if id, ok := b.api.byName[ca.FlatName]; ok {
				return TypeRef{Kind: RefEntity, Entity: id, Const: raw.Const}
			}
		}
	}
	return TypeRef{Kind: RefOpaque, Const: raw.Const, OpaqueName: raw.String(),
		OpaqueReason: fmt.Sprintf("templated type %s has no concrete directive naming this instantiation", raw.String())}
}

// lookupScoped resolves a possibly-unqualified name the way C++ name
// lookup approximately would: innermost enclosing namespace first,
// then outward to the global namespace. Already-qualified names that
// resolve directly win immediately.
func (b *builder) lookupScoped(name string, refNS []string) (string, bool) {
	exists := func(qual string) bool {
		if _, ok := b.records[qual]; ok {
			return true
		}
		if _, ok := b.enums[qual]; ok {
			return true
		}
		if _, ok := b.typedefs[qual]; ok {
			return true
		}
		if _, ok := b.api.byName[qual]; ok {
			return true
		}
		return false
	}

	for i := len(refNS); i >= 0; i-- {
		var cand string
		if i == 0 {
			cand = name
		} else {
			cand = strings.Join(refNS[:i], "::") + "::" + name
		}
		if exists(cand) {
			return cand, true
		}
	}
	return "", false
}

func canonicalType(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
