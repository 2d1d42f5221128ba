package fn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pql/internal/value"
)

func sig(name string, returns value.Kind, params ...value.Kind) *Function {
	return &Function{Name: name, Params: params, Returns: returns}
}

var (
	plusII = sig("plus", value.KindInt, value.KindInt, value.KindInt)
	plusDD = sig("plus", value.KindDecimal, value.KindDecimal, value.KindDecimal)
	plusFF = sig("plus", value.KindFloat, value.KindFloat, value.KindFloat)
)

func TestResolveExactMatch(t *testing.T) {
	m, err := Resolve([]*Function{plusII, plusDD}, []value.Kind{value.KindInt, value.KindInt}, DefaultCoercions())
	require.NoError(t, err)

	s, ok := m.(*Static)
	require.True(t, ok)
	assert.Same(t, plusII, s.Fn)
	assert.Equal(t, []*Coercion{nil, nil}, s.Coercions)
	assert.Zero(t, s.CoercionCount())
}

func TestResolveCoercion(t *testing.T) {
	m, err := Resolve([]*Function{plusII, plusDD}, []value.Kind{value.KindInt, value.KindDecimal}, DefaultCoercions())
	require.NoError(t, err)

	s := m.(*Static)
	assert.Same(t, plusDD, s.Fn)
	require.Len(t, s.Coercions, 2)
	require.NotNil(t, s.Coercions[0])
	assert.Equal(t, value.KindInt, s.Coercions[0].From)
	assert.Equal(t, value.KindDecimal, s.Coercions[0].To)
	assert.Nil(t, s.Coercions[1])
	assert.Equal(t, 1, s.CoercionCount())
}

func TestResolvePrefersMostExactPositions(t *testing.T) {
	// INT, FLOAT: plusFF keeps one exact position, plusDD none.
	m, err := Resolve([]*Function{plusII, plusDD, plusFF}, []value.Kind{value.KindInt, value.KindFloat}, DefaultCoercions())
	require.NoError(t, err)
	assert.Same(t, plusFF, m.(*Static).Fn)
}

func TestResolvePrecedenceTieBreak(t *testing.T) {
	// Both need two coercions; DECIMAL precedes FLOAT.
	upIF := sig("f", value.KindDecimal, value.KindDecimal, value.KindDecimal)
	upFF := sig("f", value.KindFloat, value.KindFloat, value.KindFloat)

	m, err := Resolve([]*Function{upFF, upIF}, []value.Kind{value.KindInt, value.KindInt}, DefaultCoercions())
	require.NoError(t, err)
	assert.Same(t, upIF, m.(*Static).Fn)
}

func TestResolveUnknownArguments(t *testing.T) {
	m, err := Resolve([]*Function{plusII, plusDD}, []value.Kind{value.KindNull, value.KindInt}, DefaultCoercions())
	require.NoError(t, err)
	assert.Same(t, plusII, m.(*Static).Fn, "NULL is accepted anywhere; INT stays exact")

	m, err = Resolve([]*Function{plusII}, []value.Kind{value.KindMissing, value.KindMissing}, DefaultCoercions())
	require.NoError(t, err)
	assert.Same(t, plusII, m.(*Static).Fn)
}

func TestResolveDynamic(t *testing.T) {
	args := []value.Kind{value.KindDynamic, value.KindInt}
	m, err := Resolve([]*Function{plusII, plusDD, plusFF}, args, DefaultCoercions())
	require.NoError(t, err)

	// plusII keeps one exact position and is the only survivor at that
	// count, so even a DYNAMIC argument resolves statically.
	assert.Same(t, plusII, m.(*Static).Fn)

	m, err = Resolve([]*Function{plusDD, plusFF}, args, DefaultCoercions())
	require.NoError(t, err)
	d, ok := m.(*Dynamic)
	require.True(t, ok)
	assert.Equal(t, []*Function{plusDD, plusFF}, d.Candidates)

	s, err := ResolveDynamic(d, []value.Kind{value.KindFloat, value.KindInt}, DefaultCoercions())
	require.NoError(t, err)
	assert.Same(t, plusFF, s.Fn)
	assert.Equal(t, value.KindFloat, s.Coercions[1].To)
}

func TestResolveDynamicParameter(t *testing.T) {
	eq := sig("eq", value.KindBool, value.KindDynamic, value.KindDynamic)
	m, err := Resolve([]*Function{eq}, []value.Kind{value.KindString, value.KindDynamic}, DefaultCoercions())
	require.NoError(t, err)
	assert.Same(t, eq, m.(*Static).Fn)
}

func TestResolveNoViableCandidate(t *testing.T) {
	tests := []struct {
		name string
		args []value.Kind
	}{
		{"wrong arity", []value.Kind{value.KindInt}},
		{"no coercion", []value.Kind{value.KindInt, value.KindString}},
		{"narrowing", []value.Kind{value.KindFloat, value.KindFloat}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve([]*Function{plusII, plusDD}, tt.args, DefaultCoercions())
			require.Error(t, err)
			assert.True(t, IsNoViableCandidate(err))
			assert.Contains(t, err.Error(), "no viable candidate for plus(")
		})
	}

	_, err := Resolve(nil, nil, nil)
	assert.True(t, IsNoViableCandidate(err))
}

func TestResolveWithoutCoercions(t *testing.T) {
	_, err := Resolve([]*Function{plusDD}, []value.Kind{value.KindInt, value.KindDecimal}, nil)
	assert.True(t, IsNoViableCandidate(err))
}

func TestNoViableCandidateErrorMessage(t *testing.T) {
	err := &NoViableCandidateError{Name: "upper", Args: []value.Kind{value.KindInt}, Site: "upper(x@0)"}
	assert.Equal(t, "no viable candidate for upper(INT) at upper(x@0)", err.Error())
}
