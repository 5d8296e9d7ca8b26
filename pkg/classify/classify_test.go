package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bindweld/bindweld/pkg/directive"
	"github.com/bindweld/bindweld/pkg/extract"
	"github.com/bindweld/bindweld/pkg/model"
)

func buildAPI(t *testing.T, decls *extract.Result, mutate func(*directive.Config)) *model.API {
	t.Helper()
	cfg := &directive.Config{Includes: []string{"zoo.h"}, ModName: "zoo", GenerateAll: true}
	if mutate != nil {
		mutate(cfg)
	}
	api, err := model.Build(decls, cfg, nil)
	require.NoError(t, err)
	return api
}

func classOf(t *testing.T, api *model.API, name string) Result {
	t.Helper()
	tbl, err := Classify(api, nil)
	require.NoError(t, err)
	id, ok := api.Lookup(name)
	require.True(t, ok, name)
	return tbl.Of(id)
}

func TestClassify_PlainStructIsTrivial(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Point", Kind: extract.RecordStruct, Fields: []extract.RawField{
				{Name: "x", Type: extract.Named("int"), Access: extract.AccessPublic},
				{Name: "y", Type: extract.Named("int"), Access: extract.AccessPublic},
			}},
		},
	}, nil)

	r := classOf(t, api, "Point")
	assert.Equal(t, VerdictTrivial, r.Verdict)
	assert.Empty(t, r.Reasons)
	assert.Equal(t, AvailImplicit, r.Inventory.DefaultCtor)
	assert.Equal(t, AvailImplicit, r.Inventory.CopyCtor)
	assert.Equal(t, AvailImplicit, r.Inventory.MoveCtor)
	assert.Equal(t, AvailImplicit, r.Inventory.Destructor)
}

func TestClassify_UserDestructorSuppressesImplicitMove(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "File", Kind: extract.RecordClass,
				Specials: extract.SpecialMembers{Destructor: extract.PresenceDeclared}},
		},
	}, nil)

	r := classOf(t, api, "File")
	assert.Equal(t, VerdictNonTrivial, r.Verdict)
	require.NotEmpty(t, r.Reasons)
	assert.Contains(t, r.Reasons[0], "user-declared destructor")

	assert.Equal(t, AvailExplicit, r.Inventory.Destructor)
	assert.Equal(t, AvailImplicit, r.Inventory.CopyCtor)
	assert.Equal(t, AvailDeleted, r.Inventory.MoveCtor)
	assert.Equal(t, AvailImplicit, r.Inventory.DefaultCtor)
}

func TestClassify_UserCtorSuppressesImplicitDefault(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Goat", Kind: extract.RecordClass,
				Specials: extract.SpecialMembers{OtherCtor: true}},
		},
	}, nil)

	r := classOf(t, api, "Goat")
	// A converting constructor alone does not make the type unsafe to
	// relocate; it only removes the implicit default constructor.
	assert.Equal(t, VerdictTrivial, r.Verdict)
	assert.Equal(t, AvailAbsent, r.Inventory.DefaultCtor)
	assert.Equal(t, AvailImplicit, r.Inventory.CopyCtor)
}

func TestClassify_DeletedCopyCtor(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Pinned", Kind: extract.RecordClass,
				Specials: extract.SpecialMembers{CopyCtor: extract.PresenceDeleted}},
		},
	}, nil)

	r := classOf(t, api, "Pinned")
	assert.Equal(t, AvailDeleted, r.Inventory.CopyCtor)
	assert.Equal(t, AvailDeleted, r.Inventory.MoveCtor)
	assert.Equal(t, AvailAbsent, r.Inventory.DefaultCtor)
}

func TestClassify_DefaultedMembersStayTrivial(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Plain", Kind: extract.RecordStruct,
				Specials: extract.SpecialMembers{
					DefaultCtor: extract.PresenceDefaulted,
					Destructor:  extract.PresenceDefaulted,
				}},
		},
	}, nil)

	r := classOf(t, api, "Plain")
	assert.Equal(t, VerdictTrivial, r.Verdict)
	assert.Equal(t, AvailExplicit, r.Inventory.DefaultCtor)
	assert.Equal(t, AvailExplicit, r.Inventory.Destructor)
}

func TestClassify_NonTrivialFieldPropagates(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Name", Kind: extract.RecordClass,
				Specials: extract.SpecialMembers{Destructor: extract.PresenceDeclared}},
			{Name: "Goat", Kind: extract.RecordStruct, Fields: []extract.RawField{
				{Name: "name", Type: extract.Named("Name"), Access: extract.AccessPublic},
			}},
		},
	}, nil)

	r := classOf(t, api, "Goat")
	assert.Equal(t, VerdictNonTrivial, r.Verdict)
	require.GreaterOrEqual(t, len(r.Reasons), 2)
	assert.Contains(t, r.Reasons[0], "has a field name of type Name which cannot be safely passed by value")
	assert.Contains(t, r.Reasons[1], "user-declared destructor")
}

func TestClassify_PointerFieldDoesNotPropagate(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Name", Kind: extract.RecordClass,
				Specials: extract.SpecialMembers{Destructor: extract.PresenceDeclared}},
			{Name: "Goat", Kind: extract.RecordStruct, Fields: []extract.RawField{
				{Name: "name", Type: extract.PointerTo(extract.Named("Name")), Access: extract.AccessPublic},
			}},
		},
	}, nil)

	r := classOf(t, api, "Goat")
	assert.Equal(t, VerdictTrivial, r.Verdict)
}

func TestClassify_UnresolvedBasePoisonsInventory(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Derived", Kind: extract.RecordClass, Bases: []string{"mystery::Base"}},
		},
	}, nil)

	r := classOf(t, api, "Derived")
	assert.Equal(t, VerdictNonTrivial, r.Verdict)
	require.NotEmpty(t, r.Reasons)
	assert.Contains(t, r.Reasons[0], "base class mystery::Base which was not analyzed")
	assert.Contains(t, r.Reasons[0], "assuming it has a destructor")

	// No synthesized wrappers over members we cannot verify exist.
	assert.Equal(t, AvailUnknown, r.Inventory.DefaultCtor)
	assert.Equal(t, AvailUnknown, r.Inventory.Destructor)
	assert.False(t, r.Inventory.DefaultCtor.Usable())
}

func TestClassify_VirtualAndAbstract(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Animal", Kind: extract.RecordClass, HasVirtual: true, Abstract: true},
			{Name: "Dog", Kind: extract.RecordClass, HasVirtual: true, Bases: []string{"Animal"}},
		},
	}, nil)

	tbl, err := Classify(api, nil)
	require.NoError(t, err)

	animalID, _ := api.Lookup("Animal")
	assert.Equal(t, VerdictAbstract, tbl.Of(animalID).Verdict)

	dogID, _ := api.Lookup("Dog")
	dog := tbl.Of(dogID)
	assert.Equal(t, VerdictNonTrivial, dog.Verdict)
	assert.Contains(t, dog.Reasons[0], "virtual member functions")
}

func TestClassify_ForwardOnly(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Handle", Kind: extract.RecordClass, ForwardOnly: true},
		},
	}, nil)

	r := classOf(t, api, "Handle")
	assert.Equal(t, VerdictForwardOnly, r.Verdict)
	assert.Equal(t, AvailUnknown, r.Inventory.Destructor)
}

func TestClassify_TypedefChainToTrivial(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Goat", Kind: extract.RecordStruct, Fields: []extract.RawField{
				{Name: "age", Type: extract.Named("Age"), Access: extract.AccessPublic},
			}},
		},
		Typedefs: []extract.RawTypedef{
			{Name: "Age", Target: extract.Named("Years")},
			{Name: "Years", Target: extract.Named("int")},
		},
	}, nil)

	r := classOf(t, api, "Goat")
	assert.Equal(t, VerdictTrivial, r.Verdict)
}

func TestClassify_TypedefChainToNonTrivial(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "Name", Kind: extract.RecordClass,
				Specials: extract.SpecialMembers{Destructor: extract.PresenceDeclared}},
			{Name: "Goat", Kind: extract.RecordStruct, Fields: []extract.RawField{
				{Name: "name", Type: extract.Named("Label"), Access: extract.AccessPublic},
			}},
		},
		Typedefs: []extract.RawTypedef{
			{Name: "Label", Target: extract.Named("Name")},
		},
	}, nil)

	r := classOf(t, api, "Goat")
	assert.Equal(t, VerdictNonTrivial, r.Verdict)
}

func TestClassify_PODViolationIsFatal(t *testing.T) {
	api := buildAPI(t, &extract.Result{
		Records: []extract.RawRecord{
			{Name: "File", Kind: extract.RecordClass,
				Specials: extract.SpecialMembers{Destructor: extract.PresenceDeclared}},
		},
	}, func(cfg *directive.Config) {
		cfg.GenerateAll = false
		cfg.GeneratePOD = []string{"File"}
	})

	_, err := Classify(api, nil)
	var viol *PODViolationError
	require.ErrorAs(t, err, &viol)
	assert.Equal(t, "File", viol.Name)
	assert.Contains(t, viol.Error(), "cannot be safely passed by value")
}

func TestClassify_UnanalyzedDefaultsConservative(t *testing.T) {
	api := buildAPI(t, &extract.Result{}, func(cfg *directive.Config) {
		cfg.GenerateAll = false
		cfg.Concretes = []directive.ConcreteAlias{{CppType: "std::vector<int>", FlatName: "IntVec"}}
	})

	tbl, err := Classify(api, nil)
	require.NoError(t, err)

	id, ok := api.Lookup("IntVec")
	require.True(t, ok)
	r := tbl.Of(id)
	assert.Equal(t, VerdictNonTrivial, r.Verdict)
	assert.Equal(t, AvailUnknown, r.Inventory.Destructor)
}
