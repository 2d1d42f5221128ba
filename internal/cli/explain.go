package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pql/internal/binder"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	PipelineOptions
}

// ExplainResult is the output of the explain command.
type ExplainResult struct {
	Explain     string          `json:"explain"`
	Fingerprint string          `json:"fingerprint"`
	Problems    binder.Problems `json:"problems,omitempty"`
}

func (r ExplainResult) String() string {
	var b strings.Builder
	b.WriteString(r.Explain)
	fmt.Fprintf(&b, "fingerprint: %s", r.Fingerprint)
	for _, p := range r.Problems {
		fmt.Fprintf(&b, "\n%s", p.Error())
	}
	return b.String()
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <plan.yaml>",
		Short: "Show the physical plan without executing it",
		Long: `Resolve and compile a plan document and print the chosen operator
implementations, the plan fingerprint and any planning warnings.

Exit codes:
  0 - Plan compiled
  1 - Planning errors
  2 - Command error

Examples:
  pql explain --globals data.yaml query.yaml
  pql explain --config pql.cue --format json query.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	p, err := openPipeline(&opts.PipelineOptions, logger)
	if err != nil {
		return reportError(formatter, err, nil)
	}
	defer p.close()

	stmt, problems, err := p.compileFile(cmd.Context(), path)
	if err != nil {
		return reportError(formatter, err, problemDetails(problems))
	}

	return formatter.Success(ExplainResult{
		Explain:     stmt.Explain(),
		Fingerprint: stmt.Fingerprint(),
		Problems:    problems,
	})
}
