package shadercombo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComboGeneratorCardinalities(t *testing.T) {
	defines := []Define{
		{Name: "A", Min: 0, Max: 1, Static: true},
		{Name: "B", Min: 0, Max: 2, Static: true},
		{Name: "C", Min: 0, Max: 1, Static: false},
		{Name: "D", Min: 0, Max: 3, Static: false},
	}
	g := NewComboGenerator(defines)
	require.EqualValues(t, 6, g.NumStaticCombos())
	require.EqualValues(t, 8, g.NumDynamicCombos())
	require.EqualValues(t, 48, g.NumCombos())
}

// TestComboAtFirstDeclaredIsLeastSignificant pins down the digit
// convention: within a group, the first-declared variable is the
// least-significant digit, so incrementing the combo index by one changes
// only the first-declared variable's value until it wraps.
func TestComboAtFirstDeclaredIsLeastSignificant(t *testing.T) {
	defines := []Define{
		{Name: "A", Min: 0, Max: 2, Static: true}, // first declared, should be LSB
		{Name: "B", Min: 0, Max: 1, Static: true},
		{Name: "X", Min: 0, Max: 0, Static: false},
	}
	g := NewComboGenerator(defines)

	c0 := g.ComboAt(0)
	require.Equal(t, []int64{0, 0, 0}, c0.Values)

	c1 := g.ComboAt(1)
	require.Equal(t, []int64{1, 0, 0}, c1.Values, "incrementing by 1 should advance the first-declared variable A, not B")

	c3 := g.ComboAt(3)
	require.Equal(t, []int64{0, 1, 0}, c3.Values, "A should have wrapped and carried into B")
}

func TestComboAtStaticDynamicSplit(t *testing.T) {
	defines := []Define{
		{Name: "A", Min: 0, Max: 1, Static: true},
		{Name: "B", Min: 0, Max: 1, Static: false},
	}
	g := NewComboGenerator(defines)

	for k := uint64(0); k < g.NumCombos(); k++ {
		c := g.ComboAt(k)
		require.Equal(t, k/g.NumDynamicCombos(), c.StaticIndex)
		require.Equal(t, k%g.NumDynamicCombos(), c.DynamicIndex)
		require.Equal(t, k, c.ComboIndex)
	}
}

// TestComboFromPartsMatchesComboAt checks the mixed-radix round-trip:
// decomposing by flattened index and decomposing by the explicit
// (static, dynamic) pair must agree for every combo.
func TestComboFromPartsMatchesComboAt(t *testing.T) {
	defines := []Define{
		{Name: "A", Min: 0, Max: 2, Static: true},
		{Name: "B", Min: 1, Max: 2, Static: true},
		{Name: "C", Min: 0, Max: 3, Static: false},
		{Name: "D", Min: 0, Max: 1, Static: false},
	}
	g := NewComboGenerator(defines)
	for k := uint64(0); k < g.NumCombos(); k++ {
		byCommand := g.ComboAt(k)
		byParts := g.ComboFromParts(byCommand.StaticIndex, byCommand.DynamicIndex)
		require.Equal(t, byCommand, byParts)
	}
}

// TestComboAtEveryValueInRangeAndUnique checks every decomposed value stays within
// its define's declared [min, max] inclusive range, and that the full
// space is a bijection (no two command numbers decompose to the same
// value vector).
func TestComboAtEveryValueInRangeAndUnique(t *testing.T) {
	defines := []Define{
		{Name: "A", Min: -2, Max: 1, Static: true},
		{Name: "B", Min: 0, Max: 2, Static: false},
	}
	g := NewComboGenerator(defines)
	seen := make(map[string]bool)
	for k := uint64(0); k < g.NumCombos(); k++ {
		c := g.ComboAt(k)
		for i, d := range defines {
			require.GreaterOrEqual(t, c.Values[i], d.Min)
			require.LessOrEqual(t, c.Values[i], d.Max)
		}
		key := formatInt(c.Values[0]) + "," + formatInt(c.Values[1])
		require.False(t, seen[key], "duplicate value vector for distinct command numbers")
		seen[key] = true
	}
	require.Len(t, seen, int(g.NumCombos()))
}

func TestComboEnvResolvesSkipExpression(t *testing.T) {
	defines := []Define{
		{Name: "A", Min: 0, Max: 1, Static: true},
		{Name: "B", Min: 0, Max: 1, Static: false},
	}
	g := NewComboGenerator(defines)
	expr := ParseExpression("$B == 1", defaultEnv{g: g})

	kept := 0
	for k := uint64(0); k < g.NumCombos(); k++ {
		c := g.ComboAt(k)
		if expr.Evaluate(g.envFor(c)) == 0 {
			kept++
		}
	}
	require.Equal(t, 2, kept, "only combos with B==0 should survive the skip expression")
}
