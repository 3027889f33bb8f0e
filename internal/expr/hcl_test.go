package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHCLParseVars(t *testing.T) {
	h := NewHCL()
	tests := []struct {
		text string
		vars []string
	}{
		{"5", nil},
		{"fuel * 2", []string{"fuel"}},
		{"hull + armor * hull", []string{"hull", "armor"}},
		{"max(speed, 10) / mass", []string{"speed", "mass"}},
		{"boost > 0 ? thrust * boost : thrust", []string{"boost", "thrust"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, err := h.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.vars, e.Vars())
			assert.Equal(t, tt.text, e.String())
		})
	}
}

func TestHCLParseErrors(t *testing.T) {
	h := NewHCL()
	for _, text := range []string{"fuel *", "ship.hull + 1", "(1 + 2"} {
		_, err := h.Parse(text)
		var perr *ParseError
		assert.True(t, errors.As(err, &perr), "text %q: %v", text, err)
	}
}

func TestHCLRejectsDashedNames(t *testing.T) {
	h := NewHCL()
	_, err := h.Parse("hull-damage")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.ErrorContains(t, err, `"hull-damage"`)
	assert.ErrorContains(t, err, "a - b")

	e, err := h.Parse("hull - damage")
	require.NoError(t, err)
	assert.Equal(t, []string{"hull", "damage"}, e.Vars())
	v, err := e.Eval([]float64{10, 3})
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestHCLEval(t *testing.T) {
	h := NewHCL()

	e, err := h.Parse("fuel * 2")
	require.NoError(t, err)
	v, err := e.Eval([]float64{10})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)

	e, err = h.Parse("min(a, b) + floor(c)")
	require.NoError(t, err)
	v, err = e.Eval([]float64{3, 7, 1.9})
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	e, err = h.Parse("1.5")
	require.NoError(t, err)
	v, err = e.Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestHCLEvalErrors(t *testing.T) {
	h := NewHCL()

	e, err := h.Parse("fuel * 2")
	require.NoError(t, err)
	_, err = e.Eval(nil)
	var arity *ArityError
	require.True(t, errors.As(err, &arity))
	assert.Equal(t, 1, arity.Want)

	e, err = h.Parse("explode(fuel)")
	require.NoError(t, err, "unknown functions are only detected when evaluating")
	_, err = e.Eval([]float64{1})
	var eval *EvalError
	assert.True(t, errors.As(err, &eval))

	e, err = h.Parse(`"fast"`)
	require.NoError(t, err)
	_, err = e.Eval(nil)
	assert.ErrorContains(t, err, "not a number")
}
