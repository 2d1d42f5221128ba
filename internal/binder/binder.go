package binder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/plan"
)

// checkInterval is how many visited nodes pass between cancellation
// checks.
const checkInterval = 256

// Resolved is a plan whose identifiers have all been rewritten.
type Resolved struct {
	Statement plan.Statement

	// Slots is the number of register slots the statement declares.
	Slots int

	// Globals maps each referenced global id to the name it was referenced
	// by, so an execution can bind session values to ids.
	Globals map[string]string

	// Problems lists every diagnostic found. The plan is safe to compile
	// only when Problems.HasErrors is false.
	Problems Problems
}

// Valid reports whether the plan has no Error-severity problems.
func (r *Resolved) Valid() bool {
	return !r.Problems.HasErrors()
}

// Option configures a Binder.
type Option func(*Binder)

// WithAllowUndefined rewrites unresolvable identifiers into dynamic
// lookups instead of reporting them.
func WithAllowUndefined(allow bool) Option {
	return func(b *Binder) {
		b.allowUndefined = allow
	}
}

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		b.logger = logger
	}
}

// Binder resolves one statement. It is not safe for concurrent use; create
// one per statement.
type Binder struct {
	globals        GlobalBindings
	allowUndefined bool
	logger         *slog.Logger

	ctx         context.Context
	ticks       int
	nextSlot    int
	current     *scope
	problems    Problems
	globalNames map[string]string
}

// New creates a Binder over the given catalog.
func New(globals GlobalBindings, opts ...Option) *Binder {
	if globals == nil {
		globals = NoGlobals
	}
	b := &Binder{
		globals:     globals,
		logger:      slog.Default(),
		ctx:         context.Background(),
		globalNames: make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Resolve is a shorthand for New(globals, opts...).Resolve(ctx, stmt).
func Resolve(ctx context.Context, stmt plan.Statement, globals GlobalBindings, opts ...Option) (*Resolved, error) {
	return New(globals, opts...).Resolve(ctx, stmt)
}

// cancelled unwinds the traversal when the context is done.
type cancelled struct{ err error }

// Resolve rewrites every identifier in stmt. The returned error is non-nil
// only when ctx is cancelled; all other issues are reported as Problems.
func (b *Binder) Resolve(ctx context.Context, stmt plan.Statement) (res *Resolved, err error) {
	b.ctx = ctx
	verrs, err := plan.ValidateContext(ctx, stmt)
	if err != nil {
		return nil, errors.Wrap(err, "resolve")
	}
	if len(verrs) > 0 {
		for _, ve := range verrs {
			b.problems = append(b.problems, Problem{
				Code:     ProblemInvalidPlan,
				Severity: Error,
				Message:  ve.Error(),
				Name:     ve.Field,
			})
		}
		return &Resolved{Statement: stmt, Globals: b.globalNames, Problems: b.problems}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(cancelled)
			if !ok {
				panic(r)
			}
			res, err = nil, errors.Wrap(c.err, "resolve")
		}
	}()

	out := b.statement(stmt)

	b.logger.Debug("statement resolved",
		"slots", b.nextSlot,
		"globals", len(b.globalNames),
		"problems", len(b.problems))

	return &Resolved{
		Statement: out,
		Slots:     b.nextSlot,
		Globals:   b.globalNames,
		Problems:  b.problems,
	}, nil
}

// Declare allocates the next slot for name in the current scope and
// returns it.
func (b *Binder) Declare(name string) int {
	slot := b.allocate()
	if b.current == nil {
		b.current = &scope{}
	}
	b.current.decls = append(b.current.decls, plan.Column{Name: name, Slot: slot})
	return slot
}

// Lookup resolves name against the visible locals and the catalog in the
// given order. It records a problem only when the catalog lookup fails.
func (b *Binder) Lookup(name plan.BindingName, order Order) Resolution {
	local := func() Resolution {
		if d, ok := b.current.lookup(name); ok {
			return Local{Index: d.Slot}
		}
		return Undefined{}
	}
	global := func() Resolution {
		return b.resolveGlobal(name)
	}

	first, second := local, global
	if order == GlobalsFirst {
		first, second = global, local
	}
	if r := first(); !isUndefined(r) {
		return r
	}
	return second()
}

func (b *Binder) resolveGlobal(name plan.BindingName) Resolution {
	cb, ok := b.globals.(ContextBindings)
	if !ok {
		return b.globals.Resolve(name)
	}
	r, err := cb.ResolveContext(b.ctx, name)
	if err == nil {
		return r
	}
	if cerr := b.ctx.Err(); cerr != nil {
		panic(cancelled{err: cerr})
	}
	b.logger.Warn("catalog lookup failed", "name", name.Name, "error", err)
	b.report(Problem{
		Code:     ProblemCatalogFailure,
		Severity: Error,
		Message:  fmt.Sprintf("resolve %s: %v", name, err),
		Name:     name.Name,
	})
	return Undefined{}
}

func isUndefined(r Resolution) bool {
	_, ok := r.(Undefined)
	return ok || r == nil
}

func (b *Binder) allocate() int {
	slot := b.nextSlot
	b.nextSlot++
	return slot
}

func (b *Binder) push(decls []plan.Column) {
	b.current = &scope{parent: b.current, decls: decls}
}

func (b *Binder) pop() {
	b.current = b.current.parent
}

func (b *Binder) tick() {
	b.ticks++
	if b.ticks%checkInterval == 0 {
		if err := b.ctx.Err(); err != nil {
			panic(cancelled{err: err})
		}
	}
}

func (b *Binder) report(p Problem) {
	b.problems = append(b.problems, p)
}

func (b *Binder) statement(stmt plan.Statement) plan.Statement {
	switch s := stmt.(type) {
	case *plan.Query:
		return &plan.Query{Root: b.rex(s.Root)}
	case *plan.Insert:
		return &plan.Insert{Target: b.target(s.Target), Source: b.rex(s.Source)}
	case *plan.Delete:
		out := &plan.Delete{Target: b.target(s.Target), As: s.As}
		out.AsSlot = b.allocate()
		if s.Where != nil {
			b.push([]plan.Column{{Name: s.As, Slot: out.AsSlot}})
			out.Where = b.rex(s.Where)
			b.pop()
		}
		return out
	}
	panic(errors.AssertionFailedf("unknown statement type %T", stmt))
}

// target resolves a DML target, which must name a global.
func (b *Binder) target(rex plan.Rex) plan.Rex {
	id, ok := rex.(*plan.Id)
	if !ok {
		b.report(Problem{
			Code:     ProblemInvalidTarget,
			Severity: Error,
			Message:  fmt.Sprintf("DML target must be a global variable, got %s", plan.FormatRex(rex)),
		})
		return rex
	}
	out := b.id(id, GlobalsFirst)
	if _, ok := out.(*plan.VarGlobal); !ok {
		b.report(Problem{
			Code:     ProblemInvalidTarget,
			Severity: Error,
			Message:  fmt.Sprintf("DML target %s is not a global variable", id.Name),
			Name:     id.Name.Name,
		})
	}
	return out
}

// rel resolves a relational node and returns it with the columns it makes
// visible to its parent.
func (b *Binder) rel(rel plan.Rel) (plan.Rel, []plan.Column) {
	b.tick()
	switch r := rel.(type) {
	case *plan.Scan:
		out := *r
		out.Expr = b.fromSource(r.Expr)
		out.AsSlot = b.allocate()
		if r.At != "" {
			out.AtSlot = b.allocate()
		}
		return &out, plan.Schema(&out)

	case *plan.Filter:
		in, cols := b.rel(r.Input)
		b.push(cols)
		pred := b.rex(r.Predicate)
		b.pop()
		return &plan.Filter{Input: in, Predicate: pred, Impl: r.Impl}, cols

	case *plan.Project:
		in, cols := b.rel(r.Input)
		b.push(cols)
		items := make([]plan.ProjectItem, len(r.Items))
		for i, it := range r.Items {
			items[i] = plan.ProjectItem{Name: it.Name, Expr: b.rex(it.Expr)}
		}
		b.pop()
		for i := range items {
			items[i].Slot = b.allocate()
		}
		out := &plan.Project{Input: in, Items: items, Impl: r.Impl}
		return out, plan.Schema(out)

	case *plan.Join:
		left, lcols := b.rel(r.Left)
		// The right side may reference left declarations (lateral).
		b.push(lcols)
		right, rcols := b.rel(r.Right)
		b.pop()
		cols := append(lcols[:len(lcols):len(lcols)], rcols...)
		out := &plan.Join{Left: left, Right: right, Kind: r.Kind, Impl: r.Impl}
		if r.On != nil {
			b.push(cols)
			out.On = b.rex(r.On)
			b.pop()
		}
		return out, cols

	case *plan.Aggregate:
		in, cols := b.rel(r.Input)
		b.push(cols)
		groups := make([]plan.GroupKey, len(r.Groups))
		for i, g := range r.Groups {
			groups[i] = plan.GroupKey{Name: g.Name, Expr: b.rex(g.Expr)}
		}
		calls := make([]plan.AggCall, len(r.Calls))
		for i, c := range r.Calls {
			calls[i] = plan.AggCall{Name: c.Name, Quantifier: c.Quantifier, Args: b.rexList(c.Args), Output: c.Output}
		}
		b.pop()
		for i := range groups {
			groups[i].Slot = b.allocate()
		}
		for i := range calls {
			calls[i].Slot = b.allocate()
		}
		out := &plan.Aggregate{Input: in, Groups: groups, Calls: calls, Impl: r.Impl}
		return out, plan.Schema(out)

	case *plan.Sort:
		in, cols := b.rel(r.Input)
		b.push(cols)
		specs := b.sortSpecs(r.Specs)
		b.pop()
		out := &plan.Sort{Input: in, Specs: specs, Impl: r.Impl}
		if r.Fetch != nil {
			out.Fetch = b.rex(r.Fetch)
		}
		return out, cols

	case *plan.Limit:
		in, cols := b.rel(r.Input)
		return &plan.Limit{Input: in, Count: b.rex(r.Count), Impl: r.Impl}, cols

	case *plan.Offset:
		in, cols := b.rel(r.Input)
		return &plan.Offset{Input: in, Count: b.rex(r.Count), Impl: r.Impl}, cols

	case *plan.Distinct:
		in, cols := b.rel(r.Input)
		return &plan.Distinct{Input: in, Impl: r.Impl}, cols

	case *plan.Exclude:
		in, cols := b.rel(r.Input)
		inner := &scope{decls: cols}
		paths := make([]plan.ExcludePath, len(r.Paths))
		for i, p := range r.Paths {
			paths[i] = p
			d, ok := inner.lookup(p.Root)
			if !ok {
				b.report(UndefinedVariable(p.Root.Name, p.Root.Case == plan.CaseSensitive))
				paths[i].RootSlot = b.allocate()
				continue
			}
			paths[i].RootSlot = d.Slot
		}
		return &plan.Exclude{Input: in, Paths: paths, Impl: r.Impl}, cols

	case *plan.Window:
		in, cols := b.rel(r.Input)
		b.push(cols)
		partition := b.rexList(r.PartitionBy)
		order := b.sortSpecs(r.OrderBy)
		calls := make([]plan.WindowCall, len(r.Calls))
		for i, c := range r.Calls {
			calls[i] = plan.WindowCall{Name: c.Name, Expr: b.rex(c.Expr), Output: c.Output}
			if c.Offset != nil {
				calls[i].Offset = b.rex(c.Offset)
			}
			if c.Default != nil {
				calls[i].Default = b.rex(c.Default)
			}
		}
		b.pop()
		for i := range calls {
			calls[i].Slot = b.allocate()
		}
		out := &plan.Window{Input: in, PartitionBy: partition, OrderBy: order, Calls: calls, Impl: r.Impl}
		return out, plan.Schema(out)
	}
	panic(errors.AssertionFailedf("unknown relational node %T", rel))
}

func (b *Binder) sortSpecs(specs []plan.SortSpec) []plan.SortSpec {
	out := make([]plan.SortSpec, len(specs))
	for i, s := range specs {
		out[i] = plan.SortSpec{Expr: b.rex(s.Expr), Desc: s.Desc, Nulls: s.Nulls}
	}
	return out
}

// fromSource resolves a FROM source. A bare identifier, or the root
// identifier of a path, resolves globals-then-locals unless it is marked
// lexical.
func (b *Binder) fromSource(rex plan.Rex) plan.Rex {
	switch x := rex.(type) {
	case *plan.Id:
		return b.id(x, b.orderFor(x, GlobalsFirst))
	case *plan.Path:
		if id, ok := x.Root.(*plan.Id); ok {
			b.tick()
			return &plan.Path{Root: b.id(id, b.orderFor(id, GlobalsFirst)), Steps: b.pathSteps(x.Steps)}
		}
	}
	return b.rex(rex)
}

func (b *Binder) orderFor(id *plan.Id, ambient Order) Order {
	if id.Scoping == plan.ScopeLexical {
		return LocalsFirst
	}
	return ambient
}

func (b *Binder) rexList(list []plan.Rex) []plan.Rex {
	if list == nil {
		return nil
	}
	out := make([]plan.Rex, len(list))
	for i, r := range list {
		out[i] = b.rex(r)
	}
	return out
}

func (b *Binder) pathSteps(steps []plan.PathStep) []plan.PathStep {
	out := make([]plan.PathStep, len(steps))
	for i, s := range steps {
		if is, ok := s.(*plan.IndexStep); ok {
			out[i] = &plan.IndexStep{Index: b.rex(is.Index)}
			continue
		}
		out[i] = s
	}
	return out
}

func (b *Binder) rex(rex plan.Rex) plan.Rex {
	b.tick()
	switch x := rex.(type) {
	case *plan.Lit, *plan.VarLocal, *plan.VarGlobal, *plan.Dynamic:
		return x
	case *plan.Id:
		return b.id(x, LocalsFirst)
	case *plan.Path:
		return &plan.Path{Root: b.rex(x.Root), Steps: b.pathSteps(x.Steps)}
	case *plan.Call:
		return &plan.Call{Name: x.Name, Args: b.rexList(x.Args)}
	case *plan.Struct:
		fields := make([]plan.StructField, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = plan.StructField{Name: f.Name, Value: b.rex(f.Value)}
		}
		return &plan.Struct{Fields: fields}
	case *plan.Collection:
		return &plan.Collection{Kind: x.Kind, Elems: b.rexList(x.Elems)}
	case *plan.Select:
		in, cols := b.rel(x.Input)
		b.push(cols)
		ctor := b.rex(x.Constructor)
		b.pop()
		return &plan.Select{Input: in, Constructor: ctor, Scalar: x.Scalar}
	case *plan.Cast:
		return &plan.Cast{Operand: b.rex(x.Operand), Kind: x.Kind}
	case *plan.Case:
		branches := make([]plan.Branch, len(x.Branches))
		for i, br := range x.Branches {
			branches[i] = plan.Branch{When: b.rex(br.When), Then: b.rex(br.Then)}
		}
		out := &plan.Case{Branches: branches}
		if x.Else != nil {
			out.Else = b.rex(x.Else)
		}
		return out
	}
	panic(errors.AssertionFailedf("unknown expression node %T", rex))
}

// id resolves one identifier. ambient is the order used unless the
// identifier is explicitly lexical.
func (b *Binder) id(id *plan.Id, ambient Order) plan.Rex {
	order := b.orderFor(id, ambient)
	switch r := b.Lookup(id.Name, order).(type) {
	case Local:
		return &plan.VarLocal{Slot: r.Index, Name: id.Name.Name}
	case Global:
		if r.Candidates > 1 {
			b.report(Problem{
				Code:     ProblemAmbiguousBinding,
				Severity: Warning,
				Message:  fmt.Sprintf("%s matches %d globals; using the first registered", id.Name, r.Candidates),
				Name:     id.Name.Name,
			})
		}
		name := r.Name
		if name == "" {
			name = id.Name.Name
		}
		b.globalNames[r.ID] = name
		return &plan.VarGlobal{ID: r.ID, Name: name}
	}

	if b.allowUndefined {
		visible := b.current.visible()
		locals := make([]*plan.VarLocal, len(visible))
		for i, d := range visible {
			locals[i] = &plan.VarLocal{Slot: d.Slot, Name: d.Name}
		}
		return &plan.Dynamic{Name: id.Name, Locals: locals}
	}

	b.report(UndefinedVariable(id.Name.Name, id.Name.Case == plan.CaseSensitive))
	b.logger.Debug("undefined variable", "name", id.Name.Name)
	return &plan.VarLocal{Slot: b.allocate(), Name: id.Name.Name}
}
