package window

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/value"
)

func slot0(st *eval.State) (value.Value, error) { return st.Load(0), nil }

func constant(v value.Value) eval.Expr {
	return func(*eval.State) (value.Value, error) { return v, nil }
}

func partition(vals ...value.Value) []Row {
	rows := make([]Row, len(vals))
	for i, v := range vals {
		rows[i] = Row{v}
	}
	return rows
}

// run processes every row of the partition and returns the outputs.
func run(t *testing.T, nav *Navigation, rows []Row, mode eval.Mode) []value.Value {
	t.Helper()
	st := eval.NewState(context.Background(), 1, mode, nil, nil)
	nav.Reset(rows)
	var out []value.Value
	for i := 0; !nav.Done(); i++ {
		v, err := nav.ProcessRow(st)
		require.NoError(t, err)
		assert.Equal(t, rows[i][0], st.Load(0), "current row is restored")
		out = append(out, v)
	}
	return out
}

func TestLag(t *testing.T) {
	nav, err := New("lag", slot0, nil, nil, []int{0})
	require.NoError(t, err)

	got := run(t, nav, partition(value.Int(10), value.Int(20), value.Int(30)), eval.Legacy)
	assert.Equal(t, []value.Value{value.NullValue, value.Int(10), value.Int(20)}, got)
}

func TestLeadWithOffsetAndDefault(t *testing.T) {
	nav, err := New("LEAD", slot0, constant(value.Int(2)), constant(value.Int(99)), []int{0})
	require.NoError(t, err)

	got := run(t, nav, partition(value.Int(10), value.Int(20), value.Int(30)), eval.Legacy)
	assert.Equal(t, []value.Value{value.Int(30), value.Int(99), value.Int(99)}, got)
}

func TestDefaultSeesCurrentRow(t *testing.T) {
	nav, err := New("lag", slot0, nil, slot0, []int{0})
	require.NoError(t, err)

	got := run(t, nav, partition(value.Int(7), value.Int(8)), eval.Legacy)
	assert.Equal(t, []value.Value{value.Int(7), value.Int(7)}, got)
}

func TestZeroOffsetIsCurrentRow(t *testing.T) {
	nav, err := New("lag", slot0, constant(value.Int(0)), nil, []int{0})
	require.NoError(t, err)

	got := run(t, nav, partition(value.Int(1), value.Int(2)), eval.Legacy)
	assert.Equal(t, []value.Value{value.Int(1), value.Int(2)}, got)
}

func TestResetStartsEachPartition(t *testing.T) {
	nav, err := New("lag", slot0, nil, nil, []int{0})
	require.NoError(t, err)

	assert.Equal(t, []value.Value{value.NullValue, value.Int(1)}, run(t, nav, partition(value.Int(1), value.Int(2)), eval.Legacy))
	assert.Equal(t, []value.Value{value.NullValue}, run(t, nav, partition(value.Int(5)), eval.Legacy))
}

func TestInvalidOffsetAlwaysPropagates(t *testing.T) {
	for _, offset := range []value.Value{value.Int(-1), value.String("1"), value.NullValue} {
		for _, mode := range []eval.Mode{eval.Legacy, eval.Permissive} {
			nav, err := New("lead", slot0, constant(offset), nil, []int{0})
			require.NoError(t, err)
			nav.Reset(partition(value.Int(1)))

			_, err = nav.ProcessRow(eval.NewState(context.Background(), 1, mode, nil, nil))
			require.Error(t, err)
			assert.Equal(t, eval.ErrCodeInvalidWindowOffset, eval.CodeOf(err))
			assert.False(t, eval.IsDataError(err))
		}
	}
}

func TestExhaustedPartition(t *testing.T) {
	nav, err := New("lag", slot0, nil, nil, []int{0})
	require.NoError(t, err)
	nav.Reset(nil)
	assert.True(t, nav.Done())

	_, err = nav.ProcessRow(eval.NewState(context.Background(), 1, eval.Legacy, nil, nil))
	assert.Error(t, err)
}

func TestUnknownFunction(t *testing.T) {
	_, err := New("first_value", slot0, nil, nil, nil)
	assert.Error(t, err)
}
