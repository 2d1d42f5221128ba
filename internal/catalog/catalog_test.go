package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/testutil"
	"github.com/roach88/pql/internal/value"
)

const topOrdersPlan = `
query:
  select:
    from:
      limit:
        count: 2
        input:
          sort:
            specs: [{expr: {path: {root: {id: o}, steps: [qty]}}, desc: true}]
            input:
              filter:
                input: {scan: {expr: {id: orders}, as: o}}
                predicate: {call: {name: gt, args: [{path: {root: {id: o}, steps: [qty]}}, 1]}}
    value: {path: {root: {id: o}, steps: [name]}}
`

const deleteSmallPlan = `
delete:
  target: {id: orders}
  as: o
  where: {call: {name: lt, args: [{path: {root: {id: o}, steps: [qty]}}, 4]}}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func order(name string, qty int64) value.Value {
	return value.NewStruct(value.F("name", value.String(name)), value.F("qty", value.Int(qty)))
}

func orders() value.Bag {
	return value.Bag{order("a", 5), order("b", 1), order("c", 3), order("d", 7)}
}

func compile(t *testing.T, globals binder.GlobalBindings, doc string, opts ...compiler.Option) *compiler.Statement {
	t.Helper()
	stmt, err := plan.DecodeStatement([]byte(doc))
	require.NoError(t, err)
	res, err := binder.Resolve(context.Background(), stmt, globals, binder.WithLogger(quietLogger()))
	require.NoError(t, err)

	c, err := compiler.New(append([]compiler.Option{compiler.WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	out, err := c.Compile(context.Background(), res)
	require.NoError(t, err)
	return out
}

func TestDefine(t *testing.T) {
	c := New(WithIDGenerator(NewSequentialGenerator("g")))

	id, err := c.Define("orders", orders())
	require.NoError(t, err)
	assert.Equal(t, "g1", id)

	_, err = c.Define("orders", value.Bag{})
	assert.True(t, errors.Is(err, ErrDuplicateName))

	id, err = c.Define("Orders", value.List{})
	require.NoError(t, err)
	assert.Equal(t, "g2", id)

	assert.Equal(t, []string{"Orders", "orders"}, c.Names())

	v, ok := c.Get("Orders")
	require.True(t, ok)
	assert.Equal(t, value.List{}, v)
	_, ok = c.Get("ORDERS")
	assert.False(t, ok)
}

func TestSessionKeepsRegistrationOrder(t *testing.T) {
	c := New(WithIDGenerator(NewSequentialGenerator("g")))
	for i, name := range []string{"zeta", "ZETA", "alpha"} {
		_, err := c.Define(name, value.Int(int64(i)))
		require.NoError(t, err)
	}

	assert.Equal(t, binder.Global{ID: "g1", Name: "zeta", Candidates: 2}, c.Resolve(plan.Insensitive("Zeta")))

	session := c.Session(time.Time{})
	assert.Equal(t, []string{"zeta", "ZETA", "alpha"}, session.Order)
	assert.Len(t, session.Globals, 3)
}

func TestResolve(t *testing.T) {
	c := New(WithIDGenerator(NewSequentialGenerator("g")))
	_, err := c.Define("orders", orders())
	require.NoError(t, err)
	_, err = c.Define("Orders", value.Bag{})
	require.NoError(t, err)

	tests := []struct {
		name string
		ref  plan.BindingName
		want binder.Resolution
	}{
		{"insensitive takes first registered", plan.Insensitive("ORDERS"), binder.Global{ID: "g1", Name: "orders", Candidates: 2}},
		{"sensitive exact", plan.Sensitive("Orders"), binder.Global{ID: "g2", Name: "Orders", Candidates: 1}},
		{"sensitive miss", plan.Sensitive("ORDERS"), binder.Undefined{}},
		{"unknown", plan.Insensitive("customers"), binder.Undefined{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Resolve(tt.ref))
		})
	}
}

func TestSessionSnapshot(t *testing.T) {
	c := New()
	id, err := c.Define("orders", value.Bag{value.Int(1)})
	require.NoError(t, err)

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := c.Session(now)
	assert.Equal(t, now, s.Now)

	_, err = c.Insert(context.Background(), compiler.Target{ID: id, Name: "orders"}, []value.Value{value.Int(2)})
	require.NoError(t, err)

	assert.Equal(t, value.Bag{value.Int(1)}, s.Globals["orders"])
	assert.Equal(t, value.Bag{value.Int(1), value.Int(2)}, c.Session(now).Globals["orders"])
}

func TestMutations(t *testing.T) {
	ctx := context.Background()
	c := New(WithIDGenerator(testutil.NewFixedIDs("events-id", "limit-id")))
	listID, err := c.Define("events", value.List{value.Int(1), value.Int(2), value.Int(3)})
	require.NoError(t, err)
	scalarID, err := c.Define("limit", value.Int(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"events-id", "limit-id"}, []string{listID, scalarID})

	events := compiler.Target{ID: listID, Name: "events"}
	n, err := c.Insert(ctx, events, []value.Value{value.Int(4)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Delete(ctx, events, func(v value.Value) (bool, error) {
		return value.Compare(v, value.Int(2)) > 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, _ := c.Get("events")
	assert.Equal(t, value.List{value.Int(1), value.Int(2)}, v)

	boom := errors.New("boom")
	_, err = c.Delete(ctx, events, func(value.Value) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
	v, _ = c.Get("events")
	assert.Equal(t, value.List{value.Int(1), value.Int(2)}, v)

	_, err = c.Insert(ctx, compiler.Target{ID: scalarID, Name: "limit"}, []value.Value{value.Int(1)})
	assert.True(t, errors.Is(err, ErrNotCollection))

	_, err = c.Delete(ctx, compiler.Target{ID: "nope", Name: "nope"}, nil)
	assert.True(t, errors.Is(err, ErrUnknownGlobal))
}

func TestCatalogStatements(t *testing.T) {
	c := New()
	_, err := c.Define("orders", orders())
	require.NoError(t, err)
	clock := testutil.NewDeterministicClock(time.Time{})

	query := compile(t, c, topOrdersPlan)
	res := query.Execute(context.Background(), c.Session(clock.Tick()))
	require.NoError(t, compiler.ResultErr(res))
	assert.Equal(t, value.List{value.String("d"), value.String("a")}, res.(*compiler.ValueResult).Value)

	del := compile(t, c, deleteSmallPlan, compiler.WithMutator(c))
	res = del.Execute(context.Background(), c.Session(clock.Tick()))
	require.NoError(t, compiler.ResultErr(res))
	assert.Equal(t, 2, res.(*compiler.DeleteResult).Count)

	v, _ := c.Get("orders")
	assert.Equal(t, value.Bag{order("a", 5), order("d", 7)}, v)
}
