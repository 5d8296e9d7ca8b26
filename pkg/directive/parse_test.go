package directive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bindweld/bindweld/pkg/policy"
)

func parseString(t *testing.T, src string) (*Config, error) {
	t.Helper()
	return Parse(strings.NewReader(src), "test.weld")
}

func TestParse_FullDirectiveSet(t *testing.T) {
	cfg, err := parseString(t, `
# zoo bindings
include "zoo.h"
include "extra/sounds.h"
name "zoo"
safety trusted
generate "zoo::Goat"
generate_pod "zoo::Point"
generate_ns "zoo::sounds"
block "zoo::detail::Arena"
block_constructors "zoo::Keeper"
instantiable "zoo::Pen"
concrete "std::vector<zoo::Goat>" as "GoatVec"
extern_type "base::Time"
extern_opaque_type "base::Blob"
subclass "zoo::Visitor"
exclude_utilities
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"zoo.h", "extra/sounds.h"}, cfg.Includes)
	assert.Equal(t, "zoo", cfg.ModName)
	assert.Equal(t, policy.TrustedBlock, cfg.Safety)
	assert.Equal(t, []string{"zoo::Goat"}, cfg.Generate)
	assert.Equal(t, []string{"zoo::Point"}, cfg.GeneratePOD)
	assert.Equal(t, []string{"zoo::sounds"}, cfg.GenerateNS)
	assert.Equal(t, []string{"zoo::detail::Arena"}, cfg.Block)
	assert.Equal(t, []string{"zoo::Keeper"}, cfg.BlockConstructors)
	assert.Equal(t, []string{"zoo::Pen"}, cfg.Instantiable)
	require.Len(t, cfg.Concretes, 1)
	assert.Equal(t, "std::vector<zoo::Goat>", cfg.Concretes[0].CppType)
	assert.Equal(t, "GoatVec", cfg.Concretes[0].FlatName)
	require.Len(t, cfg.ExternTypes, 2)
	assert.False(t, cfg.ExternTypes[0].Opaque)
	assert.True(t, cfg.ExternTypes[1].Opaque)
	assert.Equal(t, []string{"zoo::Visitor"}, cfg.Subclasses)
	assert.True(t, cfg.ExcludeUtilities)
	assert.False(t, cfg.ParseOnly)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parseString(t, `include "a.h"`)
	require.NoError(t, err)
	assert.Equal(t, DefaultModName, cfg.ModName)
	assert.Equal(t, policy.PerCallUnsafe, cfg.Safety)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown directive", `include "a.h"` + "\nfrobnicate \"x\"", "unknown directive"},
		{"unquoted argument", `include a.h`, "expected a quoted argument"},
		{"unterminated quote", `include "a.h`, "unterminated"},
		{"trailing garbage", `include "a.h" extra`, "trailing content"},
		{"duplicate name", "include \"a.h\"\nname \"x\"\nname \"y\"", "name declared more than once"},
		{"duplicate safety", "include \"a.h\"\nsafety trusted\nsafety unsafe", "safety declared more than once"},
		{"bad safety", "include \"a.h\"\nsafety casual", "safety"},
		{"generate_all with arg", "include \"a.h\"\ngenerate_all \"x\"", "takes no argument"},
		{"concrete missing as", `concrete "std::vector<int>" "IntVec"`, "expected `as"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_NoIncludes(t *testing.T) {
	_, err := parseString(t, `generate "zoo::Goat"`)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "no include directive")
}

func TestValidate_ConflictingRequests(t *testing.T) {
	_, err := parseString(t, "include \"a.h\"\ngenerate \"zoo::Goat\"\nblock \"zoo::Goat\"")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested by both")

	_, err = parseString(t, "include \"a.h\"\ngenerate \"zoo::Goat\"\ngenerate \"zoo::Goat\"")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate generate")
}

func TestValidate_DuplicateConcreteNames(t *testing.T) {
	_, err := parseString(t, "include \"a.h\"\n"+
		`concrete "std::vector<int>" as "Vec"`+"\n"+
		`concrete "std::vector<long>" as "Vec"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `concrete name "Vec"`)
}

func TestFingerprint_OrderInsensitive(t *testing.T) {
	a, err := parseString(t, "include \"a.h\"\ngenerate \"X\"\ngenerate \"Y\"\nblock \"Z\"")
	require.NoError(t, err)
	b, err := parseString(t, "include \"a.h\"\nblock \"Z\"\ngenerate \"Y\"\ngenerate \"X\"")
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_IncludeOrderMatters(t *testing.T) {
	a, err := parseString(t, "include \"a.h\"\ninclude \"b.h\"")
	require.NoError(t, err)
	b, err := parseString(t, "include \"b.h\"\ninclude \"a.h\"")
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_ChangesWithSafety(t *testing.T) {
	a, err := parseString(t, "include \"a.h\"")
	require.NoError(t, err)
	b, err := parseString(t, "include \"a.h\"\nsafety trusted")
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
