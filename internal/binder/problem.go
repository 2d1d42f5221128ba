package binder

import (
	"fmt"
	"strings"
)

// Problem codes (P100-P199)
const (
	ProblemUndefinedVariable = "P100" // identifier matched neither a local nor a global
	ProblemAmbiguousBinding  = "P101" // case-insensitive name matched several globals
	ProblemInvalidPlan       = "P102" // plan failed structural validation
	ProblemNoViableCandidate = "P103" // no function overload accepts the argument kinds
	ProblemInvalidTarget     = "P104" // DML target is not a global variable
	ProblemCatalogFailure    = "P105" // catalog lookup returned an error
)

// Severity classifies a problem. Compilation must not proceed past an
// Error.
type Severity uint8

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes "error" or "warning".
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Problem is one planning diagnostic.
type Problem struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`

	// Name is the identifier or call site the problem is about.
	Name string `json:"name,omitempty"`

	// CaseSensitive records how Name was compared, for UndefinedVariable.
	CaseSensitive bool `json:"case_sensitive,omitempty"`
}

// Error implements the error interface.
func (p Problem) Error() string {
	return fmt.Sprintf("[%s] %s: %s", p.Code, p.Severity, p.Message)
}

// Problems is an ordered list of diagnostics.
type Problems []Problem

// HasErrors reports whether any problem has Error severity.
func (ps Problems) HasErrors() bool {
	for _, p := range ps {
		if p.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the Error-severity problems.
func (ps Problems) Errors() Problems {
	var out Problems
	for _, p := range ps {
		if p.Severity == Error {
			out = append(out, p)
		}
	}
	return out
}

// Codes returns the problem codes in order.
func (ps Problems) Codes() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Code
	}
	return out
}

// Err returns the Error-severity problems as a single error, or nil.
func (ps Problems) Err() error {
	errs := ps.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &PlanningError{Problems: errs}
}

// PlanningError carries the Error-severity problems that stopped a
// compilation.
type PlanningError struct {
	Problems Problems
}

func (e *PlanningError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("%d planning error(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// UndefinedVariable builds the problem recorded for an unresolved name.
func UndefinedVariable(name string, caseSensitive bool) Problem {
	quoted := name
	if caseSensitive {
		quoted = `"` + name + `"`
	}
	return Problem{
		Code:          ProblemUndefinedVariable,
		Severity:      Error,
		Message:       fmt.Sprintf("undefined variable %s", quoted),
		Name:          name,
		CaseSensitive: caseSensitive,
	}
}
