package agg

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"

	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// Accumulator is the fold state of one aggregate over one group.
type Accumulator interface {
	// Next folds one value. Unknown values and values rejected by the
	// quantifier filter are ignored.
	Next(v value.Value) error

	// Compute returns the current result. It has no side effects and may
	// be called repeatedly.
	Compute() (value.Value, error)
}

// Factory creates a fresh accumulator.
type Factory func(q plan.Quantifier) Accumulator

// folder is the kind-specific part of an accumulator.
type folder interface {
	nextValue(v value.Value) error
	compute() (value.Value, error)
}

var factories = map[string]func() folder{
	"sum":      func() folder { return &sum{} },
	"avg":      func() folder { return &avg{} },
	"min":      func() folder { return &extreme{name: "min", keep: func(c int) bool { return c < 0 }} },
	"max":      func() folder { return &extreme{name: "max", keep: func(c int) bool { return c > 0 }} },
	"count":    func() folder { return &count{} },
	"every":    func() folder { return &logical{name: "every", and: true} },
	"any":      func() folder { return &logical{name: "any"} },
	"some":     func() folder { return &logical{name: "some"} },
	"group_as": func() folder { return &groupAs{} },
}

// CountStar is the name of the accumulator counting every row.
const CountStar = "count_star"

// Lookup returns the factory for an aggregate name.
func Lookup(name string) (Factory, error) {
	name = strings.ToLower(name)
	if name == CountStar {
		return func(plan.Quantifier) Accumulator { return &countStar{} }, nil
	}
	newFolder, ok := factories[name]
	if !ok {
		return nil, errors.Newf("unknown aggregate function %q", name)
	}
	return func(q plan.Quantifier) Accumulator {
		a := &accumulator{fold: newFolder()}
		if q == plan.QuantifierDistinct {
			a.filter = newDistinctFilter()
		}
		return a
	}, nil
}

// New creates an accumulator by name.
func New(name string, q plan.Quantifier) (Accumulator, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return f(q), nil
}

// Names returns every aggregate name, sorted.
func Names() []string {
	names := []string{CountStar}
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type accumulator struct {
	filter *distinctFilter // nil for ALL
	fold   folder
}

func (a *accumulator) Next(v value.Value) error {
	if value.IsUnknown(v) {
		return nil
	}
	if a.filter != nil && !a.filter.accept(v) {
		return nil
	}
	return a.fold.nextValue(v)
}

func (a *accumulator) Compute() (value.Value, error) {
	return a.fold.compute()
}

// distinctFilter accepts each structurally distinct value once.
type distinctFilter struct {
	seen *btree.BTreeG[value.Value]
}

func newDistinctFilter() *distinctFilter {
	return &distinctFilter{seen: btree.NewG(16, func(a, b value.Value) bool {
		return value.Compare(a, b) < 0
	})}
}

func (f *distinctFilter) accept(v value.Value) bool {
	_, found := f.seen.ReplaceOrInsert(v)
	return !found
}

func invalidArgument(name string, v value.Value, want string) error {
	return eval.NewError(eval.ErrCodeInvalidArgument, "%s requires %s arguments, got %s", name, want, v.Kind()).
		WithDetail("function", name).
		WithDetail("kind", v.Kind().String())
}

type sum struct {
	total value.Value
}

func (s *sum) nextValue(v value.Value) error {
	if !v.Kind().IsNumeric() {
		return invalidArgument("sum", v, "numeric")
	}
	if s.total == nil {
		s.total = v
		return nil
	}
	total, err := value.Arith(value.OpAdd, s.total, v)
	if err != nil {
		return eval.Classify(err)
	}
	s.total = total
	return nil
}

func (s *sum) compute() (value.Value, error) {
	if s.total == nil {
		return value.NullValue, nil
	}
	return s.total, nil
}

type avg struct {
	sum   sum
	count int64
}

func (a *avg) nextValue(v value.Value) error {
	if !v.Kind().IsNumeric() {
		return invalidArgument("avg", v, "numeric")
	}
	if err := a.sum.nextValue(v); err != nil {
		return err
	}
	a.count++
	return nil
}

func (a *avg) compute() (value.Value, error) {
	if a.count == 0 {
		return value.NullValue, nil
	}
	out, err := value.DivideByCount(a.sum.total, a.count)
	if err != nil {
		return nil, eval.Classify(err)
	}
	return out, nil
}

// extreme is MIN or MAX under the value total order.
type extreme struct {
	name string
	keep func(cmp int) bool
	best value.Value
}

func (e *extreme) nextValue(v value.Value) error {
	if e.best == nil || e.keep(value.Compare(v, e.best)) {
		e.best = v
	}
	return nil
}

func (e *extreme) compute() (value.Value, error) {
	if e.best == nil {
		return value.NullValue, nil
	}
	return e.best, nil
}

type count struct {
	n int64
}

func (c *count) nextValue(value.Value) error {
	c.n++
	return nil
}

func (c *count) compute() (value.Value, error) {
	return value.Int(c.n), nil
}

// countStar counts rows, unknown or not.
type countStar struct {
	n int64
}

func (c *countStar) Next(value.Value) error {
	c.n++
	return nil
}

func (c *countStar) Compute() (value.Value, error) {
	return value.Int(c.n), nil
}

// logical is EVERY (and) or ANY/SOME (or).
type logical struct {
	name   string
	and    bool
	folded bool
	result bool
}

func (l *logical) nextValue(v value.Value) error {
	b, ok := v.(value.Bool)
	if !ok {
		return invalidArgument(l.name, v, "boolean")
	}
	switch {
	case !l.folded:
		l.result = bool(b)
	case l.and:
		l.result = l.result && bool(b)
	default:
		l.result = l.result || bool(b)
	}
	l.folded = true
	return nil
}

func (l *logical) compute() (value.Value, error) {
	if !l.folded {
		return value.NullValue, nil
	}
	return value.Bool(l.result), nil
}

type groupAs struct {
	vals []value.Value
}

func (g *groupAs) nextValue(v value.Value) error {
	g.vals = append(g.vals, v)
	return nil
}

func (g *groupAs) compute() (value.Value, error) {
	out := make(value.Bag, len(g.vals))
	copy(out, g.vals)
	return out, nil
}
