package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/catalog"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/config"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// PipelineOptions are the flags shared by commands that compile plans.
type PipelineOptions struct {
	Config   string // CUE configuration file
	Mode     string // typing mode override
	Globals  string // YAML file of global values
	Database string // SQLite store
	Now      string // RFC 3339 session time
}

func (o *PipelineOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Config, "config", "", "CUE configuration file")
	cmd.Flags().StringVar(&o.Mode, "mode", "", "typing mode (legacy|permissive), overrides the config")
	cmd.Flags().StringVar(&o.Globals, "globals", "", "YAML file mapping global names to values")
	cmd.Flags().StringVar(&o.Database, "db", "", "SQLite database holding the globals")
	cmd.Flags().StringVar(&o.Now, "now", "", "session time (RFC 3339), default: current time")
	cmd.MarkFlagsMutuallyExclusive("globals", "db")
}

// pipeline is a configured compiler plus the globals it binds against.
type pipeline struct {
	cfg      *config.Config
	bindings binder.GlobalBindings
	binderOp []binder.Option
	compiler *compiler.Compiler
	session  func(ctx context.Context) (*eval.Session, error)
	close    func() error
}

// pipelineError reports a failure to assemble the pipeline with the CLI
// error code it maps to.
type pipelineError struct {
	code string
	err  error
}

func (e *pipelineError) Error() string { return e.err.Error() }
func (e *pipelineError) Unwrap() error { return e.err }

func openPipeline(opts *PipelineOptions, logger *slog.Logger) (*pipeline, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, &pipelineError{code: ErrCodeConfig, err: err}
		}
		cfg = loaded
	}
	if opts.Mode != "" {
		if _, err := eval.ParseMode(opts.Mode); err != nil {
			return nil, &pipelineError{code: ErrCodeConfig, err: err}
		}
		cfg.TypingMode = opts.Mode
	}

	now := time.Now().UTC()
	if opts.Now != "" {
		t, err := time.Parse(time.RFC3339Nano, opts.Now)
		if err != nil {
			return nil, &pipelineError{code: ErrCodeConfig, err: errors.Wrap(err, "--now")}
		}
		now = t
	}

	compilerOpts, err := cfg.CompilerOptions()
	if err != nil {
		return nil, &pipelineError{code: ErrCodeConfig, err: err}
	}
	compilerOpts = append(compilerOpts, compiler.WithLogger(logger))

	p := &pipeline{
		cfg:      cfg,
		binderOp: append(cfg.BinderOptions(), binder.WithLogger(logger)),
		close:    func() error { return nil },
	}

	if opts.Database != "" {
		store, err := catalog.Open(opts.Database, catalog.WithLogger(logger))
		if err != nil {
			return nil, &pipelineError{code: ErrCodeDatabase, err: err}
		}
		p.bindings = store
		p.close = store.Close
		p.session = func(ctx context.Context) (*eval.Session, error) {
			return store.Session(ctx, now)
		}
		// Global scans read the tables directly.
		compilerOpts = append(compilerOpts,
			compiler.WithFactories(store.ScanFactory()),
			compiler.WithStrategies(compiler.Retag(plan.KindScan, catalog.SQLiteImpl)),
			compiler.WithMutator(store),
		)
	} else {
		cat := catalog.New()
		if opts.Globals != "" {
			if err := loadGlobals(opts.Globals, cat); err != nil {
				return nil, err
			}
		}
		p.bindings = cat
		p.session = func(context.Context) (*eval.Session, error) {
			return cat.Session(now), nil
		}
		compilerOpts = append(compilerOpts, compiler.WithMutator(cat))
	}

	if p.compiler, err = compiler.New(compilerOpts...); err != nil {
		p.close()
		return nil, &pipelineError{code: ErrCodeConfig, err: err}
	}
	return p, nil
}

// loadGlobals defines every global of a YAML mapping, in document order.
func loadGlobals(path string, cat *catalog.Catalog) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &pipelineError{code: ErrCodeRead, err: err}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &pipelineError{code: ErrCodeDecode, err: errors.Wrapf(err, "parse %s", path)}
	}
	if len(doc.Content) == 0 {
		return nil
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return &pipelineError{code: ErrCodeDecode, err: errors.Newf("%s: globals must be a mapping", path)}
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		name := m.Content[i].Value
		v, err := value.FromYAML(m.Content[i+1])
		if err != nil {
			return &pipelineError{code: ErrCodeDecode, err: errors.Wrapf(err, "global %q", name)}
		}
		if _, err := cat.Define(name, v); err != nil {
			return &pipelineError{code: ErrCodeDecode, err: err}
		}
	}
	return nil
}

// compileFile decodes, resolves and compiles a plan document. The
// resolution's problems are returned even when compilation fails.
func (p *pipeline) compileFile(ctx context.Context, path string) (*compiler.Statement, binder.Problems, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &pipelineError{code: ErrCodeRead, err: err}
	}
	stmt, err := plan.DecodeStatement(data)
	if err != nil {
		return nil, nil, &pipelineError{code: ErrCodeDecode, err: err}
	}
	res, err := binder.Resolve(ctx, stmt, p.bindings, p.binderOp...)
	if err != nil {
		return nil, nil, &pipelineError{code: ErrCodeGeneric, err: err}
	}
	out, err := p.compiler.Compile(ctx, res)
	if err != nil {
		var pe *binder.PlanningError
		if errors.As(err, &pe) {
			ps := res.Problems
			if !ps.HasErrors() {
				ps = append(ps, pe.Problems...)
			}
			return nil, ps, &pipelineError{code: ErrCodePlanning, err: err}
		}
		return nil, res.Problems, &pipelineError{code: ErrCodeGeneric, err: err}
	}
	return out, out.Problems(), nil
}

// reportError writes err through the formatter and converts it to an
// ExitError. Pipeline errors keep their code; anything else is E001.
func reportError(f *OutputFormatter, err error, details any) error {
	code := ErrCodeGeneric
	exit := ExitCommandError
	var pe *pipelineError
	if errors.As(err, &pe) {
		code = pe.code
		if code == ErrCodePlanning || code == ErrCodeConfig {
			exit = ExitFailure
		}
	}
	if outErr := f.Error(code, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, code, err)
}

// problemDetails renders problems for structured output.
func problemDetails(ps binder.Problems) []map[string]string {
	if len(ps) == 0 {
		return nil
	}
	out := make([]map[string]string, len(ps))
	for i, p := range ps {
		out[i] = map[string]string{
			"code":     p.Code,
			"severity": p.Severity.String(),
			"message":  p.Message,
		}
	}
	return out
}
