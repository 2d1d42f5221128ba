package compiler

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/agg"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/exclude"
	"github.com/roach88/pql/internal/operator"
	"github.com/roach88/pql/internal/plan"
)

// builder compiles one statement.
type builder struct {
	ctx       context.Context
	registry  *operator.Registry
	exprs     *eval.Compiler
	logger    *slog.Logger
	operators int
}

func (b *builder) statement(stmt *Statement) error {
	switch s := stmt.plan.(type) {
	case *plan.Query:
		root, err := b.exprs.Compile(s.Root)
		if err != nil {
			return err
		}
		stmt.query = root
		return nil

	case *plan.Insert:
		target, err := dmlTarget(s.Target)
		if err != nil {
			return err
		}
		src, err := b.exprs.Compile(s.Source)
		if err != nil {
			return err
		}
		stmt.target, stmt.source = target, src
		return stmt.requireMutator()

	case *plan.Delete:
		target, err := dmlTarget(s.Target)
		if err != nil {
			return err
		}
		stmt.target, stmt.asSlot = target, s.AsSlot
		if s.Where != nil {
			if stmt.where, err = b.exprs.Compile(s.Where); err != nil {
				return err
			}
		}
		return stmt.requireMutator()
	}
	return errors.AssertionFailedf("unknown statement %T", stmt.plan)
}

func dmlTarget(rex plan.Rex) (Target, error) {
	g, ok := rex.(*plan.VarGlobal)
	if !ok {
		return Target{}, errors.AssertionFailedf("DML target is %T, not a resolved global", rex)
	}
	return Target{ID: g.ID, Name: g.Name}, nil
}

// rel compiles a relational subtree. It is also the eval.SubqueryFunc for
// Select expressions.
func (b *builder) rel(rel plan.Rel) (eval.Rows, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "compile")
	}
	kind, impl := plan.KindOf(rel), plan.ImplOf(rel)
	factory, err := b.registry.Lookup(kind, impl)
	if err != nil {
		return nil, err
	}
	spec, err := b.spec(rel)
	if err != nil {
		return nil, err
	}
	rows, err := factory.Create(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "%s[%s]", kind, impl)
	}
	b.operators++
	b.logger.Debug("operator compiled", "kind", kind.String(), "impl", impl)
	return rows, nil
}

func (b *builder) spec(rel plan.Rel) (operator.Spec, error) {
	switch r := rel.(type) {
	case *plan.Scan:
		expr, err := b.exprs.Compile(r.Expr)
		if err != nil {
			return nil, err
		}
		return &operator.ScanSpec{Node: r, Expr: expr, AsSlot: r.AsSlot, AtSlot: r.AtSlot, HasAt: r.At != ""}, nil

	case *plan.Filter:
		in, err := b.rel(r.Input)
		if err != nil {
			return nil, err
		}
		pred, err := b.exprs.Compile(r.Predicate)
		if err != nil {
			return nil, err
		}
		return &operator.FilterSpec{Input: in, Predicate: pred}, nil

	case *plan.Project:
		in, err := b.rel(r.Input)
		if err != nil {
			return nil, err
		}
		items := make([]operator.Assignment, len(r.Items))
		for i, it := range r.Items {
			expr, err := b.exprs.Compile(it.Expr)
			if err != nil {
				return nil, err
			}
			items[i] = operator.Assignment{Slot: it.Slot, Expr: expr}
		}
		return &operator.ProjectSpec{Input: in, Items: items}, nil

	case *plan.Join:
		left, err := b.rel(r.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.rel(r.Right)
		if err != nil {
			return nil, err
		}
		on, err := b.optional(r.On)
		if err != nil {
			return nil, err
		}
		return &operator.JoinSpec{Left: left, Right: right, Kind: r.Kind, On: on, RightSlots: plan.Slots(r.Right)}, nil

	case *plan.Aggregate:
		return b.aggregate(r)

	case *plan.Sort:
		in, err := b.rel(r.Input)
		if err != nil {
			return nil, err
		}
		keys, err := b.sortKeys(r.Specs)
		if err != nil {
			return nil, err
		}
		fetch, err := b.optional(r.Fetch)
		if err != nil {
			return nil, err
		}
		return &operator.SortSpec{Input: in, Keys: keys, Fetch: fetch, Slots: plan.Slots(r.Input)}, nil

	case *plan.Limit:
		in, err := b.rel(r.Input)
		if err != nil {
			return nil, err
		}
		count, err := b.exprs.Compile(r.Count)
		if err != nil {
			return nil, err
		}
		return &operator.LimitSpec{Input: in, Count: count}, nil

	case *plan.Offset:
		in, err := b.rel(r.Input)
		if err != nil {
			return nil, err
		}
		count, err := b.exprs.Compile(r.Count)
		if err != nil {
			return nil, err
		}
		return &operator.OffsetSpec{Input: in, Count: count}, nil

	case *plan.Distinct:
		in, err := b.rel(r.Input)
		if err != nil {
			return nil, err
		}
		return &operator.DistinctSpec{Input: in, Slots: plan.Slots(r.Input)}, nil

	case *plan.Exclude:
		in, err := b.rel(r.Input)
		if err != nil {
			return nil, err
		}
		return &operator.ExcludeSpec{Input: in, Exclusions: exclusions(r.Paths)}, nil

	case *plan.Window:
		return b.window(r)
	}
	return nil, errors.AssertionFailedf("unknown relational node %T", rel)
}

func (b *builder) optional(rex plan.Rex) (eval.Expr, error) {
	if rex == nil {
		return nil, nil
	}
	return b.exprs.Compile(rex)
}

func (b *builder) sortKeys(specs []plan.SortSpec) ([]operator.SortKey, error) {
	keys := make([]operator.SortKey, len(specs))
	for i, s := range specs {
		expr, err := b.exprs.Compile(s.Expr)
		if err != nil {
			return nil, err
		}
		keys[i] = operator.SortKey{Expr: expr, Desc: s.Desc, NullsFirst: s.NullsFirstFor()}
	}
	return keys, nil
}

func (b *builder) aggregate(r *plan.Aggregate) (operator.Spec, error) {
	in, err := b.rel(r.Input)
	if err != nil {
		return nil, err
	}
	groups := make([]operator.Assignment, len(r.Groups))
	for i, g := range r.Groups {
		expr, err := b.exprs.Compile(g.Expr)
		if err != nil {
			return nil, err
		}
		groups[i] = operator.Assignment{Slot: g.Slot, Expr: expr}
	}
	calls := make([]operator.AggregateCall, len(r.Calls))
	for i, c := range r.Calls {
		factory, err := agg.Lookup(c.Name)
		if err != nil {
			return nil, err
		}
		call := operator.AggregateCall{Name: c.Name, Slot: c.Slot, Factory: factory, Quantifier: c.Quantifier}
		switch len(c.Args) {
		case 0:
		case 1:
			if call.Arg, err = b.exprs.Compile(c.Args[0]); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Newf("aggregate %s takes at most one argument, got %d", c.Name, len(c.Args))
		}
		calls[i] = call
	}
	return &operator.AggregateSpec{Input: in, Groups: groups, Calls: calls}, nil
}

func (b *builder) window(r *plan.Window) (operator.Spec, error) {
	in, err := b.rel(r.Input)
	if err != nil {
		return nil, err
	}
	partition, err := b.exprs.CompileAll(r.PartitionBy)
	if err != nil {
		return nil, err
	}
	order, err := b.sortKeys(r.OrderBy)
	if err != nil {
		return nil, err
	}
	calls := make([]operator.WindowCall, len(r.Calls))
	for i, c := range r.Calls {
		call := operator.WindowCall{Name: c.Name, Slot: c.Slot}
		if call.Expr, err = b.exprs.Compile(c.Expr); err != nil {
			return nil, err
		}
		if call.Offset, err = b.optional(c.Offset); err != nil {
			return nil, err
		}
		if call.Default, err = b.optional(c.Default); err != nil {
			return nil, err
		}
		calls[i] = call
	}
	return &operator.WindowSpec{Input: in, Slots: plan.Slots(r.Input), Partition: partition, Order: order, Calls: calls}, nil
}

// exclusions builds one compacted tree per excluded column, in the order
// the columns first appear.
func exclusions(paths []plan.ExcludePath) []operator.Exclusion {
	var out []operator.Exclusion
	index := make(map[int]int)
	for _, p := range paths {
		i, ok := index[p.RootSlot]
		if !ok {
			i = len(out)
			index[p.RootSlot] = i
			out = append(out, operator.Exclusion{Slot: p.RootSlot, Tree: exclude.NewNode()})
		}
		out[i].Tree.Insert(exclude.FromPlan(p.Steps))
	}
	return out
}
