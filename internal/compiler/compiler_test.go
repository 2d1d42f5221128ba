package compiler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/operator"
	"github.com/roach88/pql/internal/plan"
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

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testGlobals = binder.GlobalsFunc(func(name plan.BindingName) binder.Resolution {
	if name.Matches("orders") {
		return binder.Global{ID: "uid-orders", Name: "orders", Candidates: 1}
	}
	return binder.Undefined{}
})

func order(name, cust string, qty int64) value.Struct {
	return value.NewStruct(
		value.F("name", value.String(name)),
		value.F("cust", value.String(cust)),
		value.F("qty", value.Int(qty)),
	)
}

func orders() value.Bag {
	a := append(order("a", "x", 5), value.F("secret", value.String("s")))
	return value.Bag{a, order("b", "y", 1), order("c", "x", 3), order("d", "y", 7)}
}

func session(orders value.Value) *eval.Session {
	return &eval.Session{Globals: map[string]value.Value{"orders": orders}}
}

func resolve(t *testing.T, doc string) *binder.Resolved {
	t.Helper()
	stmt, err := plan.DecodeStatement([]byte(doc))
	require.NoError(t, err)
	res, err := binder.Resolve(context.Background(), stmt, testGlobals, binder.WithLogger(quietLogger()))
	require.NoError(t, err)
	return res
}

func compile(t *testing.T, doc string, opts ...Option) *Statement {
	t.Helper()
	c, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	stmt, err := c.Compile(context.Background(), resolve(t, doc))
	require.NoError(t, err)
	return stmt
}

func execute(t *testing.T, stmt *Statement, s *eval.Session) value.Value {
	t.Helper()
	res := stmt.Execute(context.Background(), s)
	require.NoError(t, ResultErr(res))
	require.IsType(t, &ValueResult{}, res)
	return res.(*ValueResult).Value
}

func TestCompileTopK(t *testing.T) {
	stmt := compile(t, topOrdersPlan)

	want := `query $sq1
  subquery $sq1 value=o@0.name
    limit[default] count=2
      sort[topk] specs=[o@0.qty desc nulls last] fetch=2
        filter[default] predicate=gt(o@0.qty, 1)
          scan[default] expr=global:orders as=o@0
`
	assert.Equal(t, want, stmt.Explain())
	assert.Equal(t, value.List{value.String("d"), value.String("a")}, execute(t, stmt, session(orders())))
}

func TestWithoutBuiltinStrategies(t *testing.T) {
	plain := compile(t, topOrdersPlan, WithoutBuiltinStrategies())
	topk := compile(t, topOrdersPlan)

	assert.Contains(t, plain.Explain(), "sort[default] specs=[o@0.qty desc nulls last]\n")
	assert.NotEqual(t, plain.Fingerprint(), topk.Fingerprint())
	assert.Equal(t, topk.Fingerprint(), compile(t, topOrdersPlan).Fingerprint())
	assert.Equal(t, execute(t, topk, session(orders())), execute(t, plain, session(orders())))
}

func TestRetagRoutesToCustomFactory(t *testing.T) {
	var opened []string
	mem := operator.NewFactory(plan.KindScan, "mem", func(s operator.Spec) (eval.Rows, error) {
		spec := s.(*operator.ScanSpec)
		return rowsFunc(func(st *eval.State) (eval.Cursor, error) {
			opened = append(opened, plan.FormatRex(spec.Node.Expr))
			return &sliceCursor{st: st, slot: spec.AsSlot, elems: []value.Value{order("m", "z", 9)}}, nil
		}), nil
	})

	stmt := compile(t, topOrdersPlan,
		WithFactories(mem),
		WithStrategies(Retag(plan.KindScan, "mem")),
	)

	assert.Contains(t, stmt.Explain(), "scan[mem] expr=global:orders")
	assert.Equal(t, value.List{value.String("m")}, execute(t, stmt, session(orders())))
	assert.Equal(t, []string{"global:orders"}, opened)
}

const subqueryArgPlan = `
query:
  select:
    from:
      aggregate:
        input: {scan: {expr: {id: orders}, as: o}}
        calls:
          - name: count
            args: [{select: {from: {scan: {expr: {id: orders}, as: p}}, value: {id: p}}}]
            as: n
    value: {id: n}
`

func TestRetagReachesAggregateArguments(t *testing.T) {
	var opened int
	mem := operator.NewFactory(plan.KindScan, "mem", func(s operator.Spec) (eval.Rows, error) {
		spec := s.(*operator.ScanSpec)
		return rowsFunc(func(st *eval.State) (eval.Cursor, error) {
			opened++
			return &sliceCursor{st: st, slot: spec.AsSlot, elems: []value.Value{order("m", "z", 9)}}, nil
		}), nil
	})

	stmt := compile(t, subqueryArgPlan,
		WithFactories(mem),
		WithStrategies(Retag(plan.KindScan, "mem")),
	)

	explain := stmt.Explain()
	assert.Equal(t, 2, strings.Count(explain, "scan[mem]"), explain)
	assert.NotContains(t, explain, "scan[default]")

	got := execute(t, stmt, session(orders()))
	assert.True(t, value.Equal(value.Bag{value.Int(1)}, got), "got %s", value.Format(got))
	assert.Equal(t, 2, opened)
}

type rowsFunc func(st *eval.State) (eval.Cursor, error)

func (f rowsFunc) Open(st *eval.State) (eval.Cursor, error) { return f(st) }

type sliceCursor struct {
	st    *eval.State
	slot  int
	elems []value.Value
	pos   int
}

func (c *sliceCursor) Next() (bool, error) {
	if c.pos >= len(c.elems) {
		return false, nil
	}
	c.st.Store(c.slot, c.elems[c.pos])
	c.pos++
	return true, nil
}

func (c *sliceCursor) Close() error { return nil }

func TestConfigurationErrors(t *testing.T) {
	dup := operator.NewFactory(plan.KindSort, operator.TopKImpl, func(operator.Spec) (eval.Rows, error) { return nil, nil })
	_, err := New(WithFactories(dup))
	require.Error(t, err)
	assert.True(t, operator.IsConfigError(err), "duplicate factories fail before compilation")

	c, err := New(WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), resolve(t, `
query:
  select:
    from: {distinct: {input: {scan: {expr: {id: orders}, as: o}}, impl: gpu}}
    value: {id: o}
`))
	var ce *operator.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, operator.ErrCodeUnknownImpl, ce.Code)
}

func TestCompileRefusesPlanningErrors(t *testing.T) {
	c, err := New(WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), resolve(t, `query: {id: nowhere}`))
	var pe *binder.PlanningError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{binder.ProblemUndefinedVariable}, pe.Problems.Codes())
}

func TestNoViableCandidate(t *testing.T) {
	const doc = `query: {call: {name: upper, args: [1]}}`

	legacy := compile(t, doc)
	require.Len(t, legacy.Problems(), 1)
	p := legacy.Problems()[0]
	assert.Equal(t, binder.ProblemNoViableCandidate, p.Code)
	assert.Equal(t, binder.Warning, p.Severity)
	assert.Equal(t, "upper(1)", p.Name)

	err := ResultErr(legacy.Execute(context.Background(), nil))
	assert.Equal(t, eval.ErrCodeTypeMismatch, eval.CodeOf(err))

	permissive := compile(t, doc, WithTypingMode(eval.Permissive))
	assert.Equal(t, value.MissingValue, execute(t, permissive, nil))

	c, err := New(WithStrictFunctions(true), WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), resolve(t, doc))
	var pe *binder.PlanningError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, binder.Error, pe.Problems[0].Severity)
	assert.Equal(t, binder.ProblemNoViableCandidate, pe.Problems[0].Code)
}

func TestTypingModes(t *testing.T) {
	const doc = `query: {call: {name: plus, args: [1, a]}}`

	err := ResultErr(compile(t, doc).Execute(context.Background(), nil))
	assert.Equal(t, eval.ErrCodeTypeMismatch, eval.CodeOf(err))

	assert.Equal(t, value.MissingValue, execute(t, compile(t, doc, WithTypingMode(eval.Permissive)), nil))
}

func TestAggregateQuery(t *testing.T) {
	stmt := compile(t, `
query:
  select:
    from:
      aggregate:
        input: {scan: {expr: {id: orders}, as: o}}
        groups: {k: {path: {root: {id: o}, steps: [cust]}}}
        calls:
          - {name: sum, args: [{path: {root: {id: o}, steps: [qty]}}], as: total}
          - {name: count_star, as: n}
    value: {struct: {cust: {id: k}, total: {id: total}, n: {id: n}}}
`)

	assert.Equal(t, value.Bag{
		value.NewStruct(value.F("cust", value.String("x")), value.F("total", value.Int(8)), value.F("n", value.Int(2))),
		value.NewStruct(value.F("cust", value.String("y")), value.F("total", value.Int(8)), value.F("n", value.Int(2))),
	}, execute(t, stmt, session(orders())))
}

func TestWindowExcludeQuery(t *testing.T) {
	stmt := compile(t, `
query:
  select:
    from:
      exclude:
        paths: [{root: o, steps: [secret]}]
        input:
          window:
            input: {scan: {expr: {id: orders}, as: o}}
            partition: [{path: {root: {id: o}, steps: [cust]}}]
            order: [{expr: {path: {root: {id: o}, steps: [qty]}}}]
            calls: [{name: lag, expr: {path: {root: {id: o}, steps: [name]}}, as: prev}]
    value: {struct: {name: {path: {root: {id: o}, steps: [name]}}, prev: {id: prev}, o: {id: o}}}
`)

	row := func(o value.Struct, prev value.Value) value.Value {
		name, _ := o.Get("name", true)
		return value.NewStruct(value.F("name", name), value.F("prev", prev), value.F("o", o))
	}
	assert.Equal(t, value.Bag{
		row(order("c", "x", 3), value.NullValue),
		row(order("a", "x", 5), value.String("c")),
		row(order("b", "y", 1), value.NullValue),
		row(order("d", "y", 7), value.String("b")),
	}, execute(t, stmt, session(orders())))
}

func TestExecuteAll(t *testing.T) {
	stmt := compile(t, topOrdersPlan)

	sessions := make([]*eval.Session, 32)
	for i := range sessions {
		sessions[i] = session(value.Bag{order("only", "x", int64(i+2))})
	}
	results, err := stmt.ExecuteAll(context.Background(), sessions, 4)
	require.NoError(t, err)
	require.Len(t, results, len(sessions))
	for _, r := range results {
		assert.Equal(t, &ValueResult{Value: value.List{value.String("only")}}, r)
	}

	// A session without the global fails on its own.
	results, err = stmt.ExecuteAll(context.Background(), []*eval.Session{session(orders()), {}}, 0)
	require.NoError(t, err)
	assert.NoError(t, ResultErr(results[0]))
	assert.Equal(t, eval.ErrCodeUnboundGlobal, eval.CodeOf(ResultErr(results[1])))
}

func TestExecuteCancelled(t *testing.T) {
	stmt := compile(t, topOrdersPlan)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ResultErr(stmt.Execute(ctx, session(orders())))
	assert.True(t, eval.IsCancelled(err))

	_, err = stmt.ExecuteAll(ctx, []*eval.Session{session(orders())}, 1)
	assert.True(t, eval.IsCancelled(err))
}

// memMutator is an in-memory Mutator over named bags.
type memMutator struct {
	mu   sync.Mutex
	data map[string]value.Bag
}

func (m *memMutator) Insert(_ context.Context, target Target, rows []value.Value) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[target.Name] = append(m.data[target.Name], rows...)
	return len(rows), nil
}

func (m *memMutator) Delete(_ context.Context, target Target, match func(value.Value) (bool, error)) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept value.Bag
	for _, v := range m.data[target.Name] {
		ok, err := match(v)
		if err != nil {
			return 0, err
		}
		if !ok {
			kept = append(kept, v)
		}
	}
	n := len(m.data[target.Name]) - len(kept)
	m.data[target.Name] = kept
	return n, nil
}

func TestDML(t *testing.T) {
	m := &memMutator{data: map[string]value.Bag{"orders": {value.Int(1)}}}

	ins := compile(t, `insert: {target: {id: orders}, source: {bag: [2, 3]}}`, WithMutator(m))
	res := ins.Execute(context.Background(), nil)
	assert.Equal(t, &InsertResult{Target: Target{ID: "uid-orders", Name: "orders"}, Count: 2}, res)

	del := compile(t, `
delete:
  target: {id: orders}
  as: o
  where: {call: {name: gt, args: [{id: o}, 1]}}
`, WithMutator(m))
	res = del.Execute(context.Background(), nil)
	assert.Equal(t, &DeleteResult{Target: Target{ID: "uid-orders", Name: "orders"}, Count: 2}, res)
	assert.Equal(t, value.Bag{value.Int(1)}, m.data["orders"])

	bad := compile(t, `insert: {target: {id: orders}, source: 5}`, WithMutator(m))
	err := ResultErr(bad.Execute(context.Background(), nil))
	assert.Equal(t, eval.ErrCodeTypeMismatch, eval.CodeOf(err))
}

func TestDMLRequiresMutator(t *testing.T) {
	c, err := New(WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = c.Compile(context.Background(), resolve(t, `insert: {target: {id: orders}, source: {bag: []}}`))
	assert.True(t, errors.Is(err, ErrNoMutator))
}

func TestPattern(t *testing.T) {
	scan := &plan.Scan{Expr: plan.NewId("t"), As: "t"}
	sort := &plan.Sort{Input: scan}
	limit := &plan.Limit{Input: sort, Count: plan.NewLit(value.Int(1))}

	p := TopK().Pattern()
	assert.True(t, p.Matches(limit))
	assert.False(t, p.Matches(sort))
	assert.False(t, p.Matches(&plan.Limit{Input: scan}))
	assert.False(t, p.Matches(&plan.Limit{Input: &plan.Sort{Input: scan, Impl: "custom"}}))

	out := TopK().Apply(limit).(*plan.Limit)
	assert.Equal(t, operator.TopKImpl, plan.ImplOf(out.Input))
	assert.Equal(t, plan.DefaultImpl, plan.ImplOf(sort), "rewrites copy nodes")
	assert.Nil(t, sort.Fetch)
}
