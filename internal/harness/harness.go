package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/catalog"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/config"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/operator"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/testutil"
	"github.com/roach88/pql/internal/value"
)

// Option configures a harness run.
type Option func(*Harness)

// WithLogger sets the logger. Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithFactories registers extra operator factories, for scenarios whose
// configuration routes a kind to a non-default impl.
func WithFactories(factories ...operator.Factory) Option {
	return func(h *Harness) {
		h.factories = append(h.factories, factories...)
	}
}

// Harness executes scenarios against a fresh catalog per run.
type Harness struct {
	catalog   *catalog.Catalog
	clock     *testutil.DeterministicClock
	binderOps []binder.Option
	compiler  *compiler.Compiler
	factories []operator.Factory
	logger    *slog.Logger
}

// Run executes a scenario and returns its result. A returned error means
// the scenario could not be set up; failed expectations are reported in
// the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.setup(scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "scenario cancelled")
		}
		h.runStep(ctx, i, step, result)
	}

	for _, msg := range EvaluateAssertions(h.catalog, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"steps", len(result.Steps),
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) setup(s *Scenario) error {
	cfg := config.Default()
	if s.Config != "" {
		loaded, err := config.Load(s.Config)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = loaded
	}
	if s.Mode != "" {
		if _, err := eval.ParseMode(s.Mode); err != nil {
			return err
		}
		cfg.TypingMode = s.Mode
	}

	var start time.Time
	if s.Now != "" {
		var err error
		if start, err = time.Parse(time.RFC3339Nano, s.Now); err != nil {
			return errors.Wrap(err, "now")
		}
	}
	h.clock = testutil.NewDeterministicClock(start)

	h.catalog = catalog.New(catalog.WithIDGenerator(catalog.NewSequentialGenerator("g")))
	if err := defineGlobals(h.catalog, &s.Globals); err != nil {
		return err
	}

	compilerOpts, err := cfg.CompilerOptions()
	if err != nil {
		return err
	}
	compilerOpts = append(compilerOpts,
		compiler.WithFactories(h.factories...),
		compiler.WithMutator(h.catalog),
		compiler.WithLogger(h.logger),
	)
	if h.compiler, err = compiler.New(compilerOpts...); err != nil {
		return errors.Wrap(err, "build compiler")
	}
	h.binderOps = append(cfg.BinderOptions(), binder.WithLogger(h.logger))
	return nil
}

func defineGlobals(c *catalog.Catalog, node *yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		v, err := value.FromYAML(node.Content[i+1])
		if err != nil {
			return errors.Wrapf(err, "global %q", name)
		}
		if _, err := c.Define(name, v); err != nil {
			return err
		}
	}
	return nil
}

// runStep compiles and executes one step, recording its outcome and any
// failed expectation.
func (h *Harness) runStep(ctx context.Context, i int, step Step, result *Result) {
	sr := StepResult{Name: step.Name}
	if sr.Name == "" {
		sr.Name = fmt.Sprintf("step %d", i+1)
	}
	fail := func(format string, args ...any) {
		result.AddError(sr.Name + ": " + fmt.Sprintf(format, args...))
	}
	defer func() { result.Steps = append(result.Steps, sr) }()

	var (
		got      value.Value
		errCode  string
		count    = -1
		problems binder.Problems
	)

	stmt, err := h.compile(ctx, step, &problems)
	if err != nil {
		var pe *binder.PlanningError
		if !errors.As(err, &pe) {
			fail("compile: %v", err)
			return
		}
		errCode = pe.Problems[0].Code
		sr.Outcome = "error " + errCode
	} else {
		sr.Explain = stmt.Explain()
		sr.Fingerprint = stmt.Fingerprint()
		problems = stmt.Problems()

		res := stmt.Execute(ctx, h.catalog.Session(h.clock.Tick()))
		switch r := res.(type) {
		case *compiler.ValueResult:
			got = r.Value
			sr.Outcome = value.Format(r.Value)
		case *compiler.InsertResult:
			count = r.Count
			sr.Outcome = fmt.Sprintf("inserted %d into %s", r.Count, r.Target.Name)
		case *compiler.DeleteResult:
			count = r.Count
			sr.Outcome = fmt.Sprintf("deleted %d from %s", r.Count, r.Target.Name)
		case *compiler.ErrorResult:
			errCode = string(eval.CodeOf(r.Err))
			sr.Outcome = "error " + errCode
		}
	}
	sr.Problems = problems.Codes()

	h.logger.Debug("step executed", "step", sr.Name, "outcome", sr.Outcome)

	e := step.Expect
	if e == nil {
		if errCode != "" {
			fail("unexpected error %s", errCode)
		}
		return
	}

	switch {
	case e.Error != "":
		if errCode != e.Error {
			fail("expected error %s, got %s", e.Error, sr.Outcome)
		}
	case errCode != "":
		fail("unexpected error %s", errCode)
	case e.Value.Kind != 0:
		want, err := value.FromYAML(&e.Value)
		if err != nil {
			fail("expected value: %v", err)
			break
		}
		if got == nil || !SameValue(want, got) {
			fail("expected %s, got %s", value.Format(want), sr.Outcome)
		}
	case e.Count != nil:
		if count != *e.Count {
			fail("expected count %d, got %s", *e.Count, sr.Outcome)
		}
	}

	if e.Problems != nil && !slices.Equal(e.Problems, sr.Problems) {
		fail("expected problems %v, got %v", e.Problems, sr.Problems)
	}
	for _, fragment := range e.Explain {
		if !strings.Contains(sr.Explain, fragment) {
			fail("EXPLAIN does not contain %q:\n%s", fragment, sr.Explain)
		}
	}
}

// compile resolves and compiles a step. Problems from a failed resolution
// are stored in problems.
func (h *Harness) compile(ctx context.Context, step Step, problems *binder.Problems) (*compiler.Statement, error) {
	doc, err := plan.DecodeStatementNode(&step.Plan)
	if err != nil {
		return nil, errors.Wrap(err, "decode plan")
	}
	res, err := binder.Resolve(ctx, doc, h.catalog, h.binderOps...)
	if err != nil {
		return nil, errors.Wrap(err, "resolve")
	}
	*problems = res.Problems
	return h.compiler.Compile(ctx, res)
}

// SameValue reports whether two values are structurally equal and of the
// same kind, so NULL and MISSING stay distinct at the top level.
func SameValue(want, got value.Value) bool {
	return want.Kind() == got.Kind() && value.Equal(want, got)
}
