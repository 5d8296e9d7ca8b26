package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse("unsafe")
	require.NoError(t, err)
	assert.Equal(t, PerCallUnsafe, p)

	p, err = Parse("trusted")
	require.NoError(t, err)
	assert.Equal(t, TrustedBlock, p)

	_, err = Parse("casual")
	assert.Error(t, err)
}

func TestGated_RawPointersAlwaysGated(t *testing.T) {
	assert.True(t, PerCallUnsafe.Gated(false))
	assert.True(t, PerCallUnsafe.Gated(true))
	assert.False(t, TrustedBlock.Gated(false))
	assert.True(t, TrustedBlock.Gated(true), "trusted mode must not cover raw pointers")
}
