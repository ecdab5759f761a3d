package simeval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalArithmetic(t *testing.T) {
	v, err := Eval("1 + 2 * 3", &Env{})
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestEvalParenthesesAndUnaryMinus(t *testing.T) {
	v, err := Eval("-(2 + 3) * 2", &Env{})
	require.NoError(t, err)
	assert.Equal(t, -10.0, v)
}

func TestEvalGroupsAndState(t *testing.T) {
	env := &Env{
		Groups: map[string]string{"ch": "2"},
		State:  map[string]any{"voltage": 5.0},
	}
	v, err := Eval("float(groups.ch) + state.voltage", env)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestEvalFunctionWhitelist(t *testing.T) {
	v, err := Eval("abs(-4)", &Env{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	_, err = Eval("os.Exit(1)", &Env{})
	assert.Error(t, err, "unsandboxed identifiers must be rejected")
}

func TestEvalRandomUniformIsSeedable(t *testing.T) {
	env := &Env{Rand: rand.New(rand.NewSource(42))}
	a, err := Eval("random.uniform(0, 1)", env)
	require.NoError(t, err)

	env2 := &Env{Rand: rand.New(rand.NewSource(42))}
	b, err := Eval("random.uniform(0, 1)", env2)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same seed must reproduce the same draw")
}

func TestEvalDivisionByZero(t *testing.T) {
	_, err := Eval("1 / 0", &Env{})
	assert.Error(t, err)
}

func TestEvalUnknownStateKey(t *testing.T) {
	_, err := Eval("state.missing", &Env{State: map[string]any{}})
	assert.Error(t, err)
}

func TestEvalFloatFormatting(t *testing.T) {
	f, err := EvalFloat("3.5 + 0.5", &Env{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, f)
}
