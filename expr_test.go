package shadercombo

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// mapEnv is a test Env backed by a name -> value map, with slots assigned
// in sorted name order so resolution is deterministic.
type mapEnv map[string]int64

func (e mapEnv) names() []string {
	names := make([]string, 0, len(e))
	for n := range e {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e mapEnv) Slot(name string) int {
	for i, n := range e.names() {
		if n == name {
			return i
		}
	}
	return -1
}

func (e mapEnv) Value(slot int) int64 {
	names := e.names()
	if slot < 0 || slot >= len(names) {
		return 0
	}
	return e[names[slot]]
}

func TestExpressionLiteralsAndUnknownVars(t *testing.T) {
	require.Equal(t, int64(1), ParseExpression("1", nil).Evaluate(nil))
	require.Equal(t, int64(0), ParseExpression("0", nil).Evaluate(nil))
	require.Equal(t, int64(0), ParseExpression("$nope", mapEnv{}).Evaluate(mapEnv{}))
}

func TestExpressionComparisonsAndLogic(t *testing.T) {
	env := mapEnv{"B": 1}
	require.Equal(t, int64(1), ParseExpression("$B == 1", env).Evaluate(env))
	require.Equal(t, int64(0), ParseExpression("$B != 1", env).Evaluate(env))
	require.Equal(t, int64(1), ParseExpression("$B >= 1 && $B <= 1", env).Evaluate(env))
	require.Equal(t, int64(1), ParseExpression("0 || $B", env).Evaluate(env))
}

func TestExpressionNegationAndParens(t *testing.T) {
	require.Equal(t, int64(1), ParseExpression("!0", nil).Evaluate(nil))
	require.Equal(t, int64(0), ParseExpression("!(1 && 1)", nil).Evaluate(nil))
}

func TestExpressionPrecedence(t *testing.T) {
	// && binds tighter than ||, comparisons tighter than both.
	require.Equal(t, int64(1), ParseExpression("1 && 0 || 1", nil).Evaluate(nil))
	require.Equal(t, int64(0), ParseExpression("0 && (1 || 1)", nil).Evaluate(nil))
	require.Equal(t, int64(1), ParseExpression("2 > 1 && 1 < 2", nil).Evaluate(nil))
}

func TestExpressionDefinedBakesConstantAtParseTime(t *testing.T) {
	env := mapEnv{"B": 1}
	expr := ParseExpression("defined $B", env)
	require.Equal(t, int64(1), expr.Evaluate(nil))
}

func TestExpressionMalformedParsesAsFalse(t *testing.T) {
	require.Equal(t, int64(0), ParseExpression("$", nil).Evaluate(nil))
	require.Equal(t, int64(0), ParseExpression("(1", nil).Evaluate(nil))
	require.Equal(t, int64(0), ParseExpression("1 &", nil).Evaluate(nil))
	require.Equal(t, int64(0), ParseExpression("1 ) 2", nil).Evaluate(nil))
}

func TestExpressionEmptyIsFalse(t *testing.T) {
	require.Equal(t, int64(0), ParseExpression("", nil).Evaluate(nil))
}
