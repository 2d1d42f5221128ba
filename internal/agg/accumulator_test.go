package agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

func fold(t *testing.T, name string, q plan.Quantifier, vals ...value.Value) value.Value {
	t.Helper()
	acc, err := New(name, q)
	require.NoError(t, err)
	for _, v := range vals {
		require.NoError(t, acc.Next(v))
	}
	out, err := acc.Compute()
	require.NoError(t, err)
	return out
}

func TestSumDistinctSkipsDuplicatesAndNulls(t *testing.T) {
	got := fold(t, "sum", plan.QuantifierDistinct, value.Int(1), value.Int(1), value.Int(2), value.NullValue)
	assert.Equal(t, value.Int(3), got)

	got = fold(t, "sum", plan.QuantifierAll, value.Int(1), value.Int(1), value.Int(2), value.NullValue)
	assert.Equal(t, value.Int(4), got)
}

func TestDistinctUsesStructuralEquality(t *testing.T) {
	got := fold(t, "count", plan.QuantifierDistinct,
		value.Int(1), value.MustDecimal("1.0"), value.Float(1),
		value.Bag{value.Int(1), value.Int(2)}, value.Bag{value.Int(2), value.Int(1)},
	)
	assert.Equal(t, value.Int(2), got)
}

func TestAccumulators(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		in   []value.Value
		want value.Value
	}{
		{"sum empty", "sum", nil, value.NullValue},
		{"sum only nulls", "sum", []value.Value{value.NullValue, value.MissingValue}, value.NullValue},
		{"sum mixed", "sum", []value.Value{value.Int(1), value.MustDecimal("0.5")}, value.MustDecimal("1.5")},
		{"avg", "avg", []value.Value{value.Int(1), value.Int(2)}, value.MustDecimal("1.5")},
		{"avg empty", "avg", nil, value.NullValue},
		{"avg float", "avg", []value.Value{value.Float(1), value.Float(2)}, value.Float(1.5)},
		{"min", "min", []value.Value{value.Int(3), value.NullValue, value.Int(1), value.Int(2)}, value.Int(1)},
		{"max", "max", []value.Value{value.Int(3), value.MissingValue, value.Int(5)}, value.Int(5)},
		{"max across kinds", "max", []value.Value{value.Int(9), value.String("a")}, value.String("a")},
		{"min empty", "min", nil, value.NullValue},
		{"count", "count", []value.Value{value.Int(1), value.NullValue, value.String("x")}, value.Int(2)},
		{"count empty", "count", nil, value.Int(0)},
		{"count_star", "count_star", []value.Value{value.Int(1), value.NullValue, value.MissingValue}, value.Int(3)},
		{"every", "every", []value.Value{value.True, value.NullValue, value.False}, value.False},
		{"every true", "every", []value.Value{value.True}, value.True},
		{"any", "any", []value.Value{value.False, value.True}, value.True},
		{"some empty", "some", []value.Value{value.NullValue}, value.NullValue},
		{"group_as", "group_as", []value.Value{value.Int(1), value.NullValue, value.Int(1)}, value.Bag{value.Int(1), value.Int(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fold(t, tt.fn, plan.QuantifierAll, tt.in...)
			assert.Equal(t, tt.want.Kind(), got.Kind(), "got %s", value.Format(got))
			assert.True(t, value.Equal(tt.want, got), "want %s, got %s", value.Format(tt.want), value.Format(got))
		})
	}
}

func TestComputeIsRepeatable(t *testing.T) {
	acc, err := New("group_as", plan.QuantifierAll)
	require.NoError(t, err)
	require.NoError(t, acc.Next(value.Int(1)))

	first, err := acc.Compute()
	require.NoError(t, err)
	second, err := acc.Compute()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, acc.Next(value.Int(2)))
	assert.Equal(t, value.Bag{value.Int(1)}, first, "computed results do not alias the state")
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		fn  string
		arg value.Value
	}{
		{"sum", value.String("a")},
		{"avg", value.True},
		{"every", value.Int(1)},
		{"any", value.String("true")},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			acc, err := New(tt.fn, plan.QuantifierAll)
			require.NoError(t, err)
			err = acc.Next(tt.arg)
			require.Error(t, err)
			assert.Equal(t, eval.ErrCodeInvalidArgument, eval.CodeOf(err))
			assert.True(t, eval.IsDataError(err))
		})
	}
}

func TestLookup(t *testing.T) {
	_, err := Lookup("median")
	assert.Error(t, err)

	f, err := Lookup("SUM")
	require.NoError(t, err)
	assert.NotNil(t, f(plan.QuantifierAll))

	assert.Equal(t, []string{"any", "avg", "count", "count_star", "every", "group_as", "max", "min", "some", "sum"}, Names())
}
