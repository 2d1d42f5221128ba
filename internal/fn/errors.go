package fn

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/value"
)

// Sentinel errors returned by built-in functions. The evaluator maps them
// to typed evaluation errors.
var (
	// ErrTypeMismatch reports an argument whose runtime kind the routine
	// cannot handle.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidArgument reports a well-typed argument with an unusable
	// value.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NoViableCandidateError reports a call that no registered routine
// accepts.
type NoViableCandidateError struct {
	Name string
	Args []value.Kind

	// Site is a rendering of the call expression, when known.
	Site string
}

func (e *NoViableCandidateError) Error() string {
	msg := fmt.Sprintf("no viable candidate for %s%s", e.Name, signature(e.Args))
	if e.Site != "" {
		msg += " at " + e.Site
	}
	return msg
}

// IsNoViableCandidate reports whether err is a *NoViableCandidateError.
func IsNoViableCandidate(err error) bool {
	var nv *NoViableCandidateError
	return errors.As(err, &nv)
}

// DuplicateFunctionError reports two registrations with one signature.
type DuplicateFunctionError struct {
	Signature string
}

func (e *DuplicateFunctionError) Error() string {
	return "duplicate function " + e.Signature
}
