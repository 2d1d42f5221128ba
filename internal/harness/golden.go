package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as golden text: each step's name, EXPLAIN
// output and outcome.
func Snapshot(result *Result) []byte {
	var b strings.Builder
	for i, s := range result.Steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("-- " + s.Name + " --\n")
		b.WriteString(s.Explain)
		if len(s.Problems) > 0 {
			b.WriteString("problems: " + strings.Join(s.Problems, ", ") + "\n")
		}
		b.WriteString("=> " + s.Outcome + "\n")
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(result))
}
