package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bindweld/bindweld/pkg/parser"
)

func extractSource(t *testing.T, src string) *Result {
	t.Helper()

	pm := parser.NewManager(nil)
	t.Cleanup(func() { _ = pm.Close() })

	res, err := New(pm, nil).ExtractHeader("test.h", []byte(src))
	require.NoError(t, err)
	return res
}

func recordNamed(t *testing.T, res *Result, name string) RawRecord {
	t.Helper()
	for _, r := range res.Records {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("record %s not extracted", name)
	return RawRecord{}
}

func functionNamed(t *testing.T, res *Result, name string) RawFunction {
	t.Helper()
	for _, f := range res.Functions {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("function %s not extracted", name)
	return RawFunction{}
}

func TestExtract_StructFields(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
struct Point {
  int x;
  double y;
  const char* label;
};
}
`)

	rec := recordNamed(t, res, "zoo::Point")
	assert.Equal(t, RecordStruct, rec.Kind)
	assert.False(t, rec.ForwardOnly)
	require.Len(t, rec.Fields, 3)

	assert.Equal(t, "x", rec.Fields[0].Name)
	assert.Equal(t, Named("int"), rec.Fields[0].Type)
	assert.Equal(t, AccessPublic, rec.Fields[0].Access)

	assert.Equal(t, "y", rec.Fields[1].Name)
	assert.Equal(t, Named("double"), rec.Fields[1].Type)

	assert.Equal(t, "label", rec.Fields[2].Name)
	assert.Equal(t, ShapePointer, rec.Fields[2].Type.Shape)
	require.NotNil(t, rec.Fields[2].Type.Inner)
	assert.Equal(t, "char", rec.Fields[2].Type.Inner.Name)
	assert.True(t, rec.Fields[2].Type.Inner.Const)
}

func TestExtract_ClassSpecialMembers(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
class Goat {
 public:
  Goat();
  Goat(const Goat& other);
  Goat(Goat&&) = default;
  Goat& operator=(const Goat&) = delete;
  ~Goat();

 private:
  int age_;
};
}
`)

	rec := recordNamed(t, res, "zoo::Goat")
	assert.Equal(t, RecordClass, rec.Kind)

	assert.Equal(t, PresenceDeclared, rec.Specials.DefaultCtor)
	assert.Equal(t, PresenceDeclared, rec.Specials.CopyCtor)
	assert.Equal(t, PresenceDefaulted, rec.Specials.MoveCtor)
	assert.Equal(t, PresenceDeleted, rec.Specials.CopyAssign)
	assert.Equal(t, PresenceDeclared, rec.Specials.Destructor)
	assert.False(t, rec.Specials.OtherCtor)

	require.Len(t, rec.Fields, 1)
	assert.Equal(t, "age_", rec.Fields[0].Name)
	assert.Equal(t, AccessPrivate, rec.Fields[0].Access)

	// The deleted assignment operator is inventory-only.
	for _, fn := range res.Functions {
		assert.NotEqual(t, "zoo::Goat::operator=", fn.Name)
	}
}

func TestExtract_Methods(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
class Goat {
 public:
  int bark() const;
  void rename(int n);
  static int herd();
};
}
`)

	bark := functionNamed(t, res, "zoo::Goat::bark")
	assert.Equal(t, KindFunction, bark.Kind)
	assert.Equal(t, "zoo::Goat", bark.MethodOf)
	assert.True(t, bark.Const)
	require.NotNil(t, bark.Returns)
	assert.Equal(t, Named("int"), *bark.Returns)
	assert.Empty(t, bark.Params)

	rename := functionNamed(t, res, "zoo::Goat::rename")
	assert.False(t, rename.Const)
	assert.Nil(t, rename.Returns)
	require.Len(t, rename.Params, 1)
	assert.Equal(t, "n", rename.Params[0].Name)
	assert.Equal(t, Named("int"), rename.Params[0].Type)

	herd := functionNamed(t, res, "zoo::Goat::herd")
	assert.True(t, herd.Static)
}

func TestExtract_VirtualAndAbstract(t *testing.T) {
	res := extractSource(t, `
class Animal {
 public:
  virtual ~Animal();
  virtual int legs() const = 0;
};

class Dog : public Animal {
 public:
  int legs() const;
};
`)

	animal := recordNamed(t, res, "Animal")
	assert.True(t, animal.HasVirtual)
	assert.True(t, animal.Abstract)
	assert.Equal(t, PresenceDeclared, animal.Specials.Destructor)

	legs := functionNamed(t, res, "Animal::legs")
	assert.True(t, legs.Virtual)
	assert.True(t, legs.PureVirtual)

	dog := recordNamed(t, res, "Dog")
	assert.Equal(t, []string{"Animal"}, dog.Bases)
	assert.False(t, dog.Abstract)
}

func TestExtract_FreeFunctions(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
int feed(const Goat& g);
void print(const char* fmt, ...);
void reset();
}
`)

	feed := functionNamed(t, res, "zoo::feed")
	assert.Equal(t, KindFunction, feed.Kind)
	assert.Empty(t, feed.MethodOf)
	require.NotNil(t, feed.Returns)
	assert.Equal(t, Named("int"), *feed.Returns)
	require.Len(t, feed.Params, 1)
	assert.Equal(t, "g", feed.Params[0].Name)
	assert.Equal(t, ShapeLValueRef, feed.Params[0].Type.Shape)
	require.NotNil(t, feed.Params[0].Type.Inner)
	assert.Equal(t, "Goat", feed.Params[0].Type.Inner.Name)
	assert.True(t, feed.Params[0].Type.Inner.Const)

	print := functionNamed(t, res, "zoo::print")
	assert.True(t, print.Variadic)
	assert.Nil(t, print.Returns)
	require.Len(t, print.Params, 1)
	assert.Equal(t, ShapePointer, print.Params[0].Type.Shape)

	reset := functionNamed(t, res, "zoo::reset")
	assert.Nil(t, reset.Returns)
	assert.Empty(t, reset.Params)
}

func TestExtract_ReferenceReturningFunctions(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
const Goat& pick(const Goat& a, const Goat& b);
Goat& tag(Goat& g);

class Herd {
 public:
  const Goat& leader() const;
};
}
`)

	pick := functionNamed(t, res, "zoo::pick")
	require.NotNil(t, pick.Returns)
	assert.Equal(t, ShapeLValueRef, pick.Returns.Shape)
	require.NotNil(t, pick.Returns.Inner)
	assert.Equal(t, "Goat", pick.Returns.Inner.Name)
	assert.True(t, pick.Returns.Inner.Const)
	require.Len(t, pick.Params, 2)

	tag := functionNamed(t, res, "zoo::tag")
	require.NotNil(t, tag.Returns)
	assert.Equal(t, ShapeLValueRef, tag.Returns.Shape)
	require.NotNil(t, tag.Returns.Inner)
	assert.False(t, tag.Returns.Inner.Const)

	leader := functionNamed(t, res, "zoo::Herd::leader")
	assert.True(t, leader.Const)
	require.NotNil(t, leader.Returns)
	assert.Equal(t, ShapeLValueRef, leader.Returns.Shape)

	// None of these degrade to diagnostics.
	assert.Empty(t, res.Unparsed)
}

func TestExtract_ScopedEnum(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
enum class Color : int {
  kRed,
  kGreen = 5,
  kBlue
};
enum Legacy { A, B };
}
`)

	require.Len(t, res.Enums, 2)

	color := res.Enums[0]
	assert.Equal(t, "zoo::Color", color.Name)
	assert.True(t, color.Scoped)
	assert.Equal(t, "int", color.Underlying)
	require.Len(t, color.Enumerators, 3)
	assert.Equal(t, Enumerator{Name: "kRed"}, color.Enumerators[0])
	assert.Equal(t, Enumerator{Name: "kGreen", Value: "5"}, color.Enumerators[1])
	assert.Equal(t, Enumerator{Name: "kBlue"}, color.Enumerators[2])

	legacy := res.Enums[1]
	assert.Equal(t, "zoo::Legacy", legacy.Name)
	assert.False(t, legacy.Scoped)
	assert.Empty(t, legacy.Underlying)
}

func TestExtract_Aliases(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
using GoatPtr = Goat*;
typedef unsigned int GoatId;
}
`)

	require.Len(t, res.Typedefs, 2)

	ptr := res.Typedefs[0]
	assert.Equal(t, "zoo::GoatPtr", ptr.Name)
	assert.Equal(t, ShapePointer, ptr.Target.Shape)
	require.NotNil(t, ptr.Target.Inner)
	assert.Equal(t, "Goat", ptr.Target.Inner.Name)

	id := res.Typedefs[1]
	assert.Equal(t, "zoo::GoatId", id.Name)
	assert.Equal(t, Named("unsigned int"), id.Target)
}

func TestExtract_ForwardDeclaration(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
class Pen;
}
`)

	rec := recordNamed(t, res, "zoo::Pen")
	assert.True(t, rec.ForwardOnly)
	assert.Empty(t, rec.Fields)
}

func TestExtract_TemplateBecomesUnparsed(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
template <typename T>
class Box {
 public:
  T value;
};
}
`)

	assert.Empty(t, res.Records)
	require.Len(t, res.Unparsed, 1)
	assert.Equal(t, "zoo::Box", res.Unparsed[0].Name)
	assert.Contains(t, res.Unparsed[0].Reason, "concrete")
}

func TestExtract_GlobalDataIsUnparsed(t *testing.T) {
	res := extractSource(t, `
namespace zoo {
extern int herd_size;
}
`)

	require.Len(t, res.Unparsed, 1)
	assert.Equal(t, "zoo::herd_size", res.Unparsed[0].Name)
	assert.Contains(t, res.Unparsed[0].Reason, "global data")
}

func TestExtract_NestedNamespaceAndType(t *testing.T) {
	res := extractSource(t, `
namespace zoo::alpine {
struct Goat {
  struct Horn {
    int length;
  };
  int age;
};
}
`)

	outer := recordNamed(t, res, "zoo::alpine::Goat")
	require.Len(t, outer.Fields, 1)
	assert.Equal(t, "age", outer.Fields[0].Name)

	inner := recordNamed(t, res, "zoo::alpine::Goat::Horn")
	require.Len(t, inner.Fields, 1)
	assert.Equal(t, "length", inner.Fields[0].Name)
}

func TestExtract_DeclOrderIsGlobal(t *testing.T) {
	pm := parser.NewManager(nil)
	t.Cleanup(func() { _ = pm.Close() })
	ext := New(pm, nil)

	first, err := ext.ExtractHeader("a.h", []byte("void a();"))
	require.NoError(t, err)
	second, err := ext.ExtractHeader("b.h", []byte("void b();"))
	require.NoError(t, err)

	require.Len(t, first.Functions, 1)
	require.Len(t, second.Functions, 1)
	assert.Greater(t, second.Functions[0].DeclOrder, first.Functions[0].DeclOrder)
}
