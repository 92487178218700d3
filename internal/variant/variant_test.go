package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := map[string]Variant{
		"reference": Reference,
		"debug":     Debug,
		"optimized": Optimized,
		"sancho":    Reference,
		"dbg":       Debug,
		"opt":       Optimized,
		" OPT ":     Optimized,
	}
	for in, want := range tests {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("extra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown variant "extra"`)
}

func TestParseSet_CanonicalOrder(t *testing.T) {
	set, err := ParseSet([]string{"opt", "dbg", "sancho"})
	require.NoError(t, err)
	assert.Equal(t, Set{Reference, Debug, Optimized}, set)
	assert.Equal(t, "{reference, debug, optimized}", set.String())
}

func TestParseSet_Errors(t *testing.T) {
	_, err := ParseSet([]string{"debug", "optimized", "extra"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra")

	_, err = ParseSet([]string{"debug", "dbg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listed twice")
}

func TestSet_EqualAndHas(t *testing.T) {
	a := NewSet(Optimized, Debug)
	b := NewSet(Debug, Optimized, Debug)
	assert.True(t, a.Equal(b))
	assert.True(t, a.Has(Debug))
	assert.False(t, a.Has(Reference))
	assert.False(t, a.Equal(NewSet(Debug)))
	assert.False(t, a.Equal(NewSet(Debug, Reference)))
}
