package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/catalog"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database string
}

// LoadResult is the output of the load command.
type LoadResult struct {
	Table   string `json:"table"`
	ID      string `json:"id"`
	Created bool   `json:"created"`
	Count   int    `json:"count"`
}

func (r LoadResult) String() string {
	if r.Created {
		return fmt.Sprintf("created %s, loaded %d value(s)", r.Table, r.Count)
	}
	return fmt.Sprintf("loaded %d value(s) into %s", r.Count, r.Table)
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load --db <path> <table> <values.yaml>",
		Short: "Append values to a table of a SQLite store",
		Long: `Append the elements of a YAML list or bag to a table of a SQLite store,
creating the store and the table when they do not exist.

Examples:
  pql load --db ./pql.db orders orders.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runLoad(opts *LoadOptions, table, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := readValues(path)
	if err != nil {
		return reportError(formatter, err, nil)
	}

	store, err := catalog.Open(opts.Database, catalog.WithLogger(newLogger(opts.RootOptions, cmd)))
	if err != nil {
		return reportError(formatter, &pipelineError{code: ErrCodeDatabase, err: err}, nil)
	}
	defer store.Close()

	result, err := loadTable(ctx, store, table, rows)
	if err != nil {
		return reportError(formatter, &pipelineError{code: ErrCodeDatabase, err: err}, nil)
	}
	formatter.VerboseLog("table %s has id %s", result.Table, result.ID)
	return formatter.Success(result)
}

// readValues decodes a YAML collection into its elements.
func readValues(path string) ([]value.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &pipelineError{code: ErrCodeRead, err: err}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &pipelineError{code: ErrCodeDecode, err: errors.Wrapf(err, "parse %s", path)}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	v, err := value.FromYAML(doc.Content[0])
	if err != nil {
		return nil, &pipelineError{code: ErrCodeDecode, err: errors.Wrapf(err, "decode %s", path)}
	}
	elems, ok := value.Elements(v)
	if !ok {
		return nil, &pipelineError{
			code: ErrCodeDecode,
			err:  errors.Newf("%s: expected a list or bag, got %s", path, v.Kind()),
		}
	}
	return elems, nil
}

// loadTable appends rows to the exactly named table, creating it first
// if needed.
func loadTable(ctx context.Context, store *catalog.SQLiteStore, table string, rows []value.Value) (LoadResult, error) {
	result := LoadResult{Table: table}
	if g, ok := store.Resolve(plan.Sensitive(table)).(binder.Global); ok {
		result.ID = g.ID
	} else {
		id, err := store.CreateTable(ctx, table)
		if err != nil {
			return result, err
		}
		result.ID, result.Created = id, true
	}
	if len(rows) == 0 {
		return result, nil
	}
	n, err := store.Insert(ctx, compiler.Target{ID: result.ID, Name: table}, rows)
	if err != nil {
		return result, err
	}
	result.Count = n
	return result, nil
}
