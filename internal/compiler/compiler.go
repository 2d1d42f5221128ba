package compiler

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/fn"
	"github.com/roach88/pql/internal/operator"
	"github.com/roach88/pql/internal/plan"
)

// Option configures a Compiler.
type Option func(*Compiler)

// WithTypingMode sets the typing mode statements execute in.
//
// Default: eval.Legacy
func WithTypingMode(mode eval.Mode) Option {
	return func(c *Compiler) {
		c.mode = mode
	}
}

// WithFactories registers operator factories next to the defaults. A
// factory whose (kind, impl) is already registered makes New fail.
func WithFactories(factories ...operator.Factory) Option {
	return func(c *Compiler) {
		c.factories = append(c.factories, factories...)
	}
}

// WithStrategies appends rewrite strategies. They run after the built-in
// ones, in order.
func WithStrategies(strategies ...Strategy) Option {
	return func(c *Compiler) {
		c.strategies = append(c.strategies, strategies...)
	}
}

// WithoutBuiltinStrategies disables the built-in rewrites.
func WithoutBuiltinStrategies() Option {
	return func(c *Compiler) {
		c.builtins = false
	}
}

// WithFunctions replaces the function library.
//
// Default: fn.Builtins()
func WithFunctions(functions *fn.Registry) Option {
	return func(c *Compiler) {
		c.functions = functions
	}
}

// WithCoercions replaces the implicit coercion table.
func WithCoercions(coercions *fn.Coercions) Option {
	return func(c *Compiler) {
		c.coercions = coercions
	}
}

// WithStrictFunctions makes a call with no viable candidate a planning
// error instead of a warning.
func WithStrictFunctions(strict bool) Option {
	return func(c *Compiler) {
		c.strict = strict
	}
}

// WithMutator sets the store that Insert and Delete statements modify.
func WithMutator(m Mutator) Option {
	return func(c *Compiler) {
		c.mutator = m
	}
}

// WithLogger sets the logger for compilation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// Compiler holds the validated configuration shared by every compilation.
// It is safe for concurrent use.
type Compiler struct {
	mode       eval.Mode
	factories  []operator.Factory
	registry   *operator.Registry
	strategies []Strategy
	builtins   bool
	functions  *fn.Registry
	coercions  *fn.Coercions
	strict     bool
	mutator    Mutator
	logger     *slog.Logger
}

// New builds a Compiler. Configuration errors such as a duplicate
// operator factory are reported here, before anything is compiled.
func New(opts ...Option) (*Compiler, error) {
	c := &Compiler{
		mode:      eval.Legacy,
		builtins:  true,
		coercions: fn.DefaultCoercions(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	reg, err := operator.NewRegistry(c.factories...)
	if err != nil {
		return nil, err
	}
	c.registry = reg

	if c.functions == nil {
		c.functions = fn.Builtins()
	}
	if c.builtins {
		c.strategies = append(BuiltinStrategies(), c.strategies...)
	}
	return c, nil
}

// Mode returns the configured typing mode.
func (c *Compiler) Mode() eval.Mode { return c.mode }

// Registry returns the operator factory registry.
func (c *Compiler) Registry() *operator.Registry { return c.registry }

// Compile turns a resolved plan into a Statement. A plan carrying
// Error-severity problems is refused with a *binder.PlanningError.
//
// Calls with no viable candidate are added to the statement's problems
// as warnings, or returned as a planning error in strict mode.
func (c *Compiler) Compile(ctx context.Context, res *binder.Resolved) (*Statement, error) {
	if err := res.Problems.Err(); err != nil {
		return nil, err
	}

	rewritten, applied := c.rewrite(res.Statement)
	if len(applied) > 0 {
		c.logger.Debug("rewrites applied", "strategies", applied)
	}

	b := &builder{ctx: ctx, registry: c.registry, logger: c.logger}
	b.exprs = eval.NewCompiler(c.functions, c.coercions,
		eval.WithSubqueries(b.rel),
		eval.WithStrictFunctions(c.strict),
	)

	stmt := &Statement{
		plan:     rewritten,
		slots:    res.Slots,
		globals:  res.Globals,
		mode:     c.mode,
		problems: append(binder.Problems(nil), res.Problems...),
		mutator:  c.mutator,
		logger:   c.logger,
	}
	if err := b.statement(stmt); err != nil {
		var nv *fn.NoViableCandidateError
		if errors.As(err, &nv) {
			p := noViableProblem(nv, binder.Error)
			return nil, &binder.PlanningError{Problems: binder.Problems{p}}
		}
		return nil, err
	}
	for _, w := range b.exprs.Warnings() {
		stmt.problems = append(stmt.problems, noViableProblem(w, binder.Warning))
	}

	c.logger.Debug("statement compiled",
		"slots", stmt.slots,
		"operators", b.operators,
		"problems", len(stmt.problems))
	return stmt, nil
}

func noViableProblem(err *fn.NoViableCandidateError, sev binder.Severity) binder.Problem {
	return binder.Problem{
		Code:     binder.ProblemNoViableCandidate,
		Severity: sev,
		Message:  err.Error(),
		Name:     err.Site,
	}
}

// rewrite applies the strategies to every relational node of stmt.
func (c *Compiler) rewrite(stmt plan.Statement) (plan.Statement, []string) {
	if len(c.strategies) == 0 {
		return stmt, nil
	}
	var applied []string
	visit := func(rel plan.Rel) plan.Rel {
		for _, s := range c.strategies {
			if s.Pattern().Matches(rel) {
				rel = s.Apply(rel)
				applied = append(applied, s.Name())
			}
		}
		return rel
	}
	switch s := stmt.(type) {
	case *plan.Query:
		if root := plan.TransformRex(s.Root, visit); root != s.Root {
			stmt = &plan.Query{Root: root}
		}
	case *plan.Insert:
		if src := plan.TransformRex(s.Source, visit); src != s.Source {
			stmt = &plan.Insert{Target: s.Target, Source: src}
		}
	case *plan.Delete:
		if s.Where != nil {
			if where := plan.TransformRex(s.Where, visit); where != s.Where {
				d := *s
				d.Where = where
				stmt = &d
			}
		}
	}
	return stmt, applied
}
