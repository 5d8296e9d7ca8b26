package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bindweld/bindweld/pkg/directive"
	"github.com/bindweld/bindweld/pkg/extract"
)

func testConfig() *directive.Config {
	return &directive.Config{
		Includes: []string{"zoo.h"},
		ModName:  "zoo",
	}
}

func retOf(t extract.RawType) *extract.RawType { return &t }

// zooDecls is a small extracted surface shared by the builder tests:
// a record, a dependency record, a free function and a method.
func zooDecls() *extract.Result {
	return &extract.Result{
		Records: []extract.RawRecord{
			{Name: "zoo::Goat", Kind: extract.RecordClass, DeclOrder: 0,
				Fields: []extract.RawField{
					{Name: "pen", Type: extract.Named("Pen"), Access: "private"},
				},
				Specials: extract.SpecialMembers{Destructor: extract.PresenceDeclared}},
			{Name: "zoo::Pen", Kind: extract.RecordClass, DeclOrder: 1},
			{Name: "zoo::Arena", Kind: extract.RecordClass, DeclOrder: 2},
		},
		Functions: []extract.RawFunction{
			{Name: "zoo::feed", Kind: extract.KindFunction, DeclOrder: 3,
				Params: []extract.RawParam{{Name: "g", Type: extract.ConstRefTo(extract.Named("Goat"))}}},
			{Name: "zoo::Goat::bark", Kind: extract.KindFunction, MethodOf: "zoo::Goat",
				Const: true, DeclOrder: 4},
			{Name: "zoo::Pen::clean", Kind: extract.KindFunction, MethodOf: "zoo::Pen",
				DeclOrder: 5},
			{Name: "zoo::Goat::Goat", Kind: extract.KindConstructor, MethodOf: "zoo::Goat",
				DeclOrder: 6,
				Params:    []extract.RawParam{{Name: "age", Type: extract.Named("int")}}},
			{Name: "zoo::Goat::~Goat", Kind: extract.KindDestructor, MethodOf: "zoo::Goat",
				DeclOrder: 7},
		},
	}
}

func TestBuild_ClosurePullsDependencies(t *testing.T) {
	cfg := testConfig()
	cfg.Generate = []string{"zoo::feed"}

	api, err := Build(zooDecls(), cfg, nil)
	require.NoError(t, err)

	// The parameter type Goat resolves through the function's
	// namespace and is pulled in as a dependency, as is Pen through
	// Goat's field.
	goatID, ok := api.Lookup("zoo::Goat")
	require.True(t, ok)
	assert.Equal(t, ProvDependency, api.Entity(goatID).Prov)

	penID, ok := api.Lookup("zoo::Pen")
	require.True(t, ok)
	assert.Equal(t, ProvDependency, api.Entity(penID).Prov)

	fns := api.FunctionsNamed("zoo::feed")
	require.Len(t, fns, 1)
	sig := api.Funcs[fns[0]]
	require.NotNil(t, sig)
	require.Len(t, sig.Params, 1)
	assert.Equal(t, RefEntity, sig.Params[0].Kind)
	assert.Equal(t, goatID, sig.Params[0].Entity)
	assert.Equal(t, IndirLValueRef, sig.Params[0].Indirection)
	assert.True(t, sig.Params[0].Const)
}

func TestBuild_MethodsOnlyForRequestedRecords(t *testing.T) {
	cfg := testConfig()
	cfg.Generate = []string{"zoo::Goat"}

	api, err := Build(zooDecls(), cfg, nil)
	require.NoError(t, err)

	goatID, ok := api.Lookup("zoo::Goat")
	require.True(t, ok)
	assert.Equal(t, ProvRequested, api.Entity(goatID).Prov)

	// bark and the constructor, never the destructor.
	methods := api.MethodsOf[goatID]
	var names []string
	for _, id := range methods {
		names = append(names, api.Entity(id).Fun.Name)
	}
	assert.ElementsMatch(t, []string{"zoo::Goat::bark", "zoo::Goat::Goat"}, names)

	// Pen came in only as a dependency: declarations, no methods.
	penID, ok := api.Lookup("zoo::Pen")
	require.True(t, ok)
	assert.Empty(t, api.MethodsOf[penID])
}

func TestBuild_BlockedConstructors(t *testing.T) {
	cfg := testConfig()
	cfg.Generate = []string{"zoo::Goat"}
	cfg.BlockConstructors = []string{"zoo::Goat"}

	api, err := Build(zooDecls(), cfg, nil)
	require.NoError(t, err)

	goatID, _ := api.Lookup("zoo::Goat")
	for _, id := range api.MethodsOf[goatID] {
		assert.NotEqual(t, extract.KindConstructor, api.Entity(id).Fun.Kind)
	}
}

func TestBuild_MissingSymbol(t *testing.T) {
	cfg := testConfig()
	cfg.Generate = []string{"zoo::Unicorn"}

	_, err := Build(zooDecls(), cfg, nil)
	var missing *MissingSymbolError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "zoo::Unicorn", missing.Name)
}

func TestBuild_EmptyNamespace(t *testing.T) {
	cfg := testConfig()
	cfg.GenerateNS = []string{"aquarium"}

	_, err := Build(zooDecls(), cfg, nil)
	var empty *EmptyNamespaceError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "aquarium", empty.Namespace)
}

func TestBuild_NamespaceRequestHonorsBlockedFunctions(t *testing.T) {
	decls := &extract.Result{
		Functions: []extract.RawFunction{
			{Name: "zoo::feed", Kind: extract.KindFunction, DeclOrder: 0},
			{Name: "zoo::cull", Kind: extract.KindFunction, DeclOrder: 1},
		},
	}
	cfg := testConfig()
	cfg.GenerateNS = []string{"zoo"}
	cfg.Block = []string{"zoo::cull"}

	api, err := Build(decls, cfg, nil)
	require.NoError(t, err)

	assert.Len(t, api.FunctionsNamed("zoo::feed"), 1)
	assert.Empty(t, api.FunctionsNamed("zoo::cull"))
}

func TestBuild_GenerateAllHonorsBlockedFunctions(t *testing.T) {
	decls := &extract.Result{
		Functions: []extract.RawFunction{
			{Name: "zoo::feed", Kind: extract.KindFunction, DeclOrder: 0},
			{Name: "zoo::cull", Kind: extract.KindFunction, DeclOrder: 1},
		},
	}
	cfg := testConfig()
	cfg.GenerateAll = true
	cfg.Block = []string{"zoo::cull"}

	api, err := Build(decls, cfg, nil)
	require.NoError(t, err)

	assert.Len(t, api.FunctionsNamed("zoo::feed"), 1)
	assert.Empty(t, api.FunctionsNamed("zoo::cull"))
}

func TestBuild_PODRequestMustBeRecord(t *testing.T) {
	cfg := testConfig()
	cfg.GeneratePOD = []string{"zoo::feed"}

	_, err := Build(zooDecls(), cfg, nil)
	var notRec *NotARecordError
	require.ErrorAs(t, err, &notRec)
	assert.Equal(t, "function", notRec.Kind)
}

func TestBuild_BlockedTypeStaysOpaque(t *testing.T) {
	decls := zooDecls()
	decls.Functions = append(decls.Functions, extract.RawFunction{
		Name: "zoo::fight", Kind: extract.KindFunction, DeclOrder: 10,
		Params: []extract.RawParam{{Name: "a", Type: extract.ConstRefTo(extract.Named("Arena"))}},
	})
	cfg := testConfig()
	cfg.Generate = []string{"zoo::fight"}
	cfg.Block = []string{"zoo::Arena"}

	api, err := Build(decls, cfg, nil)
	require.NoError(t, err)

	fns := api.FunctionsNamed("zoo::fight")
	require.Len(t, fns, 1)
	p := api.Funcs[fns[0]].Params[0]
	assert.Equal(t, RefOpaque, p.Kind)
	assert.Contains(t, p.OpaqueReason, "blocked")

	_, ok := api.Lookup("zoo::Arena")
	assert.False(t, ok, "blocked types must not join the model")
}

func TestBuild_MultiLevelPointerIsOpaque(t *testing.T) {
	decls := &extract.Result{
		Functions: []extract.RawFunction{
			{Name: "grid", Kind: extract.KindFunction, DeclOrder: 0,
				Params: []extract.RawParam{{
					Name: "cells",
					Type: extract.PointerTo(extract.PointerTo(extract.Named("int"))),
				}}},
		},
	}
	cfg := testConfig()
	cfg.Generate = []string{"grid"}

	api, err := Build(decls, cfg, nil)
	require.NoError(t, err)

	p := api.Funcs[api.FunctionsNamed("grid")[0]].Params[0]
	assert.Equal(t, RefOpaque, p.Kind)
	assert.Contains(t, p.OpaqueReason, "multi-level")
}

func TestBuild_ConcreteTemplateInstance(t *testing.T) {
	vec := extract.RawType{
		Shape: extract.ShapeNamed, Name: "std::vector",
		TemplateArgs: []extract.RawType{extract.Named("int")},
	}
	decls := &extract.Result{
		Functions: []extract.RawFunction{
			{Name: "sum", Kind: extract.KindFunction, DeclOrder: 0,
				Params:  []extract.RawParam{{Name: "v", Type: extract.ConstRefTo(vec)}},
				Returns: retOf(extract.Named("int"))},
		},
	}
	cfg := testConfig()
	cfg.Generate = []string{"sum"}
	cfg.Concretes = []directive.ConcreteAlias{{CppType: "std::vector<int>", FlatName: "IntVec"}}

	api, err := Build(decls, cfg, nil)
	require.NoError(t, err)

	vecID, ok := api.Lookup("IntVec")
	require.True(t, ok)
	assert.Equal(t, EntityConcrete, api.Entity(vecID).Kind)

	p := api.Funcs[api.FunctionsNamed("sum")[0]].Params[0]
	assert.Equal(t, RefEntity, p.Kind)
	assert.Equal(t, vecID, p.Entity)
}

func TestBuild_UnmatchedTemplateIsOpaque(t *testing.T) {
	vec := extract.RawType{
		Shape: extract.ShapeNamed, Name: "std::vector",
		TemplateArgs: []extract.RawType{extract.Named("long")},
	}
	decls := &extract.Result{
		Functions: []extract.RawFunction{
			{Name: "sum", Kind: extract.KindFunction, DeclOrder: 0,
				Params: []extract.RawParam{{Name: "v", Type: extract.ConstRefTo(vec)}}},
		},
	}
	cfg := testConfig()
	cfg.Generate = []string{"sum"}

	api, err := Build(decls, cfg, nil)
	require.NoError(t, err)

	p := api.Funcs[api.FunctionsNamed("sum")[0]].Params[0]
	assert.Equal(t, RefOpaque, p.Kind)
	assert.Contains(t, p.OpaqueReason, "concrete")
}

func TestBuild_GenerateAll(t *testing.T) {
	cfg := testConfig()
	cfg.GenerateAll = true

	api, err := Build(zooDecls(), cfg, nil)
	require.NoError(t, err)

	for _, name := range []string{"zoo::Goat", "zoo::Pen", "zoo::Arena"} {
		id, ok := api.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, ProvRequested, api.Entity(id).Prov)
	}
	assert.Len(t, api.FunctionsNamed("zoo::feed"), 1)
}

func TestBuild_ForwardDeclarationSupersededByDefinition(t *testing.T) {
	decls := &extract.Result{
		Records: []extract.RawRecord{
			{Name: "zoo::Goat", Kind: extract.RecordClass, ForwardOnly: true, DeclOrder: 0},
			{Name: "zoo::Goat", Kind: extract.RecordClass, DeclOrder: 1},
		},
	}
	cfg := testConfig()
	cfg.Generate = []string{"zoo::Goat"}

	api, err := Build(decls, cfg, nil)
	require.NoError(t, err)

	id, _ := api.Lookup("zoo::Goat")
	assert.False(t, api.Entity(id).Rec.ForwardOnly)
}
