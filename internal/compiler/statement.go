package compiler

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// PlanDomain separates statement fingerprints from value fingerprints.
const PlanDomain = "pql/plan/v1"

// ErrNoMutator is returned when compiling an Insert or Delete without
// WithMutator.
var ErrNoMutator = errors.New("statement modifies data but no mutator is configured")

// Target is the global variable a DML statement modifies.
type Target struct {
	ID   string
	Name string
}

// Mutator applies data modifications to the store behind the catalog.
type Mutator interface {
	// Insert appends rows to target and returns how many were added.
	Insert(ctx context.Context, target Target, rows []value.Value) (int, error)

	// Delete removes every element of target for which match is true and
	// returns how many were removed.
	Delete(ctx context.Context, target Target, match func(value.Value) (bool, error)) (int, error)
}

// Statement is a compiled, immutable statement.
type Statement struct {
	plan     plan.Statement
	slots    int
	globals  map[string]string
	mode     eval.Mode
	problems binder.Problems
	mutator  Mutator
	logger   *slog.Logger

	query  eval.Expr
	target Target
	source eval.Expr
	where  eval.Expr
	asSlot int
}

func (s *Statement) requireMutator() error {
	if s.mutator == nil {
		return ErrNoMutator
	}
	return nil
}

// Plan returns the statement's plan after rewrites.
func (s *Statement) Plan() plan.Statement { return s.plan }

// Problems returns the warnings found while resolving and compiling.
func (s *Statement) Problems() binder.Problems {
	return append(binder.Problems(nil), s.problems...)
}

// Explain renders the rewritten plan.
func (s *Statement) Explain() string { return plan.Explain(s.plan) }

// Fingerprint identifies the statement's physical plan.
func (s *Statement) Fingerprint() string {
	return value.HashWithDomain(PlanDomain, []byte(s.Explain()))
}

// Execute runs the statement once against session. Each call allocates
// its own evaluation state.
func (s *Statement) Execute(ctx context.Context, session *eval.Session) Result {
	st := eval.NewState(ctx, s.slots, s.mode, session, s.globals)
	if err := st.Interrupted(); err != nil {
		return &ErrorResult{Err: err}
	}

	var (
		res Result
		err error
	)
	switch s.plan.(type) {
	case *plan.Query:
		var v value.Value
		if v, err = s.query(st); err == nil {
			res = &ValueResult{Value: v}
		}
	case *plan.Insert:
		res, err = s.insert(st)
	case *plan.Delete:
		res, err = s.delete(st)
	default:
		err = errors.AssertionFailedf("unknown statement %T", s.plan)
	}
	if err != nil {
		err = eval.Classify(err)
		s.logger.Debug("execution failed", "code", string(eval.CodeOf(err)), "error", err)
		return &ErrorResult{Err: err}
	}
	return res
}

func (s *Statement) insert(st *eval.State) (Result, error) {
	v, err := s.source(st)
	if err != nil {
		return nil, err
	}
	var rows []value.Value
	switch c := v.(type) {
	case value.List:
		rows = c
	case value.Bag:
		rows = c
	default:
		err := eval.NewError(eval.ErrCodeTypeMismatch, "INSERT source must be a collection, got %s", v.Kind())
		if _, err := st.Recover(err); err != nil {
			return nil, err
		}
	}
	n, err := s.mutator.Insert(st.Context(), s.target, rows)
	if err != nil {
		return nil, errors.Wrapf(err, "insert into %s", s.target.Name)
	}
	return &InsertResult{Target: s.target, Count: n}, nil
}

func (s *Statement) delete(st *eval.State) (Result, error) {
	match := func(v value.Value) (bool, error) {
		if err := st.Checkpoint(); err != nil {
			return false, err
		}
		if s.where == nil {
			return true, nil
		}
		st.Store(s.asSlot, v)
		ok, err := s.where(st)
		if err != nil {
			return false, err
		}
		return value.Truth(ok), nil
	}
	n, err := s.mutator.Delete(st.Context(), s.target, match)
	if err != nil {
		return nil, errors.Wrapf(err, "delete from %s", s.target.Name)
	}
	return &DeleteResult{Target: s.target, Count: n}, nil
}

// ExecuteAll runs the statement once per session with at most parallelism
// executions in flight (unbounded when parallelism <= 0). Results are in
// session order. A cancellation stops the remaining executions and is
// returned as the error; other failures are reported per session as
// ErrorResults.
func (s *Statement) ExecuteAll(ctx context.Context, sessions []*eval.Session, parallelism int) ([]Result, error) {
	results := make([]Result, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, session := range sessions {
		g.Go(func() error {
			results[i] = s.Execute(gctx, session)
			if err := ResultErr(results[i]); eval.IsCancelled(err) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
