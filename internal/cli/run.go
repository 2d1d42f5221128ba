package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/harness"
	"github.com/roach88/pql/internal/plan"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	PipelineOptions

	// Repeat executes a query this many times concurrently and checks
	// that every execution agrees.
	Repeat int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Compile and execute a plan",
		Long: `Compile a plan document and execute it once against the globals.

Globals come from a YAML mapping (--globals) or a SQLite store (--db).
With --db, scans of globals stream rows from the database and INSERT and
DELETE statements modify it.

Exit codes:
  0 - Statement executed
  1 - Planning or evaluation error
  2 - Command error (unreadable files, database errors, etc.)

Examples:
  pql run --globals data.yaml query.yaml
  pql run --db ./pql.db --mode permissive query.yaml
  pql run --globals data.yaml --repeat 16 --format json query.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVar(&opts.Repeat, "repeat", 1, "execute a query N times concurrently and compare results")

	return cmd
}

func runPlan(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openPipeline(&opts.PipelineOptions, logger)
	if err != nil {
		return reportError(formatter, err, nil)
	}
	defer func() {
		if closeErr := p.close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	stmt, problems, err := p.compileFile(ctx, path)
	if err != nil {
		return reportError(formatter, err, problemDetails(problems))
	}
	for _, pr := range problems {
		formatter.VerboseLog("%s", pr.Error())
	}

	session, err := p.session(ctx)
	if err != nil {
		return reportError(formatter, &pipelineError{code: ErrCodeDatabase, err: err}, nil)
	}

	if opts.Repeat > 1 {
		return runRepeated(ctx, opts, p, stmt, session, formatter)
	}
	return outputResult(formatter, stmt.Execute(ctx, session))
}

// runRepeated executes a query concurrently and fails unless every
// execution produced the same result.
func runRepeated(ctx context.Context, opts *RunOptions, p *pipeline, stmt *compiler.Statement, session *eval.Session, f *OutputFormatter) error {
	if _, isQuery := stmt.Plan().(*plan.Query); !isQuery {
		return reportError(f, &pipelineError{code: ErrCodeGeneric, err: errors.New("--repeat applies to queries only")}, nil)
	}
	sessions := make([]*eval.Session, opts.Repeat)
	for i := range sessions {
		sessions[i] = session
	}
	results, err := stmt.ExecuteAll(ctx, sessions, p.cfg.Parallelism)
	if err != nil {
		return reportError(f, &pipelineError{code: ErrCodeExecution, err: err}, nil)
	}
	first := results[0]
	for i, r := range results[1:] {
		if !sameResult(first, r) {
			_ = f.Error(ErrCodeExecution, fmt.Sprintf("execution %d disagrees with execution 1", i+2), nil)
			return NewExitError(ExitFailure, "nondeterministic result")
		}
	}
	f.VerboseLog("%d executions agree", len(results))
	return outputResult(f, first)
}

func sameResult(a, b compiler.Result) bool {
	switch ra := a.(type) {
	case *compiler.ValueResult:
		rb, ok := b.(*compiler.ValueResult)
		return ok && harness.SameValue(ra.Value, rb.Value)
	case *compiler.ErrorResult:
		rb, ok := b.(*compiler.ErrorResult)
		return ok && eval.CodeOf(ra.Err) == eval.CodeOf(rb.Err)
	}
	return false
}

// outputResult writes a statement result. Evaluation errors exit with
// ExitFailure.
func outputResult(f *OutputFormatter, res compiler.Result) error {
	switch r := res.(type) {
	case *compiler.ValueResult:
		return f.Value(r.Value)
	case *compiler.InsertResult:
		return f.Success(dmlSummary{Operation: "insert", Target: r.Target.Name, Count: r.Count})
	case *compiler.DeleteResult:
		return f.Success(dmlSummary{Operation: "delete", Target: r.Target.Name, Count: r.Count})
	case *compiler.ErrorResult:
		var details map[string]string
		var evalErr *eval.Error
		if errors.As(r.Err, &evalErr) {
			details = evalErr.Details
		}
		code := string(eval.CodeOf(r.Err))
		if err := f.Error(code, r.Err.Error(), details); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, code, r.Err)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("unexpected result %T", res))
}

// dmlSummary is the output of an INSERT or DELETE.
type dmlSummary struct {
	Operation string `json:"operation"`
	Target    string `json:"target"`
	Count     int    `json:"count"`
}

func (s dmlSummary) String() string {
	if s.Operation == "insert" {
		return fmt.Sprintf("inserted %d into %s", s.Count, s.Target)
	}
	return fmt.Sprintf("deleted %d from %s", s.Count, s.Target)
}
