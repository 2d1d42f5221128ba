package cli

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/pql/internal/catalog"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/config"
	"github.com/roach88/pql/internal/plan"
)

// CheckResult is the output of a successful check.
type CheckResult struct {
	Valid    bool           `json:"valid"`
	Config   *config.Config `json:"config"`
	Warnings []string       `json:"warnings,omitempty"`
}

func (r CheckResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ configuration is valid (typing mode %s)", r.Config.TypingMode)
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\n  warning: %s", w)
	}
	return b.String()
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <config.cue>",
		Short: "Validate a configuration file",
		Long: `Validate a CUE configuration file against the configuration schema.

Implementation routes naming an implementation that no built-in factory
provides are reported as warnings: a program embedding the compiler may
register them.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		return outputCheckError(formatter, err)
	}
	compilerOpts, err := cfg.CompilerOptions()
	if err != nil {
		return outputCheckError(formatter, err)
	}
	c, err := compiler.New(compilerOpts...)
	if err != nil {
		return outputCheckError(formatter, err)
	}

	result := CheckResult{Valid: true, Config: cfg}
	for _, impl := range cfg.Impls {
		kind, _ := plan.ParseRelKind(impl.Kind)
		if kind == plan.KindScan && impl.Impl == catalog.SQLiteImpl {
			continue // provided by --db
		}
		if _, err := c.Registry().Lookup(kind, impl.Impl); err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
	}
	formatter.VerboseLog("%d implementation route(s)", len(cfg.Impls))
	return formatter.Success(result)
}

func outputCheckError(f *OutputFormatter, err error) error {
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		return reportError(f, &pipelineError{code: ErrCodeConfig, err: err}, nil)
	}
	details := map[string]any{"config_code": cfgErr.Code}
	if cfgErr.Pos.IsValid() {
		details["file"] = cfgErr.Pos.Filename()
		details["line"] = cfgErr.Pos.Line()
		details["column"] = cfgErr.Pos.Column()
	}
	if cfgErr.Code == config.ErrCodeRead {
		return reportError(f, &pipelineError{code: ErrCodeRead, err: err}, details)
	}
	return reportError(f, &pipelineError{code: ErrCodeConfig, err: err}, details)
}
