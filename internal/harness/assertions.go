package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pql/internal/catalog"
	"github.com/roach88/pql/internal/value"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Global   string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s on %s\n", e.Type, e.Global)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the catalog and
// returns the failure messages.
func EvaluateAssertions(c *catalog.Catalog, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalState:
			err = assertFinalState(c, a)
		case AssertGlobalCount:
			err = assertGlobalCount(c, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertFinalState(c *catalog.Catalog, a Assertion) error {
	want, err := value.FromYAML(&a.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", a.Global, err)
	}
	got, ok := c.Get(a.Global)
	if !ok {
		return &AssertionError{Type: a.Type, Global: a.Global, Expected: value.Format(want), Actual: "no such global"}
	}
	if !SameValue(want, got) {
		return &AssertionError{Type: a.Type, Global: a.Global, Expected: value.Format(want), Actual: value.Format(got)}
	}
	return nil
}

func assertGlobalCount(c *catalog.Catalog, a Assertion) error {
	got, ok := c.Get(a.Global)
	if !ok {
		return &AssertionError{Type: a.Type, Global: a.Global, Expected: fmt.Sprint(a.Count), Actual: "no such global"}
	}
	var n int
	switch coll := got.(type) {
	case value.Bag:
		n = len(coll)
	case value.List:
		n = len(coll)
	default:
		return &AssertionError{Type: a.Type, Global: a.Global, Expected: fmt.Sprint(a.Count), Actual: got.Kind().String()}
	}
	if n != a.Count {
		return &AssertionError{Type: a.Type, Global: a.Global, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprint(n)}
	}
	return nil
}
