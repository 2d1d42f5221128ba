package fn

import (
	"strings"
	"time"

	"github.com/roach88/pql/internal/value"
)

// Env is the evaluation context a function may read. The evaluator's
// per-execution state implements it.
type Env interface {
	// Now is the session's deterministic current time.
	Now() time.Time
}

// Invoker computes a function result from already-coerced arguments.
type Invoker func(env Env, args []value.Value) (value.Value, error)

// Function is one typed routine. Functions sharing a Name form an overload
// set; arity is part of a routine's identity.
type Function struct {
	Name    string
	Params  []value.Kind
	Returns value.Kind
	Invoke  Invoker

	// HandlesUnknowns means Invoke receives NULL and MISSING arguments as
	// they are. Otherwise the evaluator returns MISSING when any argument
	// is MISSING, NULL when any is NULL, and never calls Invoke.
	HandlesUnknowns bool
}

// Arity returns the number of parameters.
func (f *Function) Arity() int {
	return len(f.Params)
}

// String renders the signature, e.g. "plus(INT, INT) -> INT".
func (f *Function) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(signature(f.Params))
	b.WriteString(" -> ")
	b.WriteString(f.Returns.String())
	return b.String()
}

func signature(kinds []value.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// sameParams reports whether two functions have identical parameter kinds.
func sameParams(a, b []value.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
