package value

import "github.com/cockroachdb/errors"

// Sentinel errors raised by value operations. The evaluator classifies
// them into typed evaluation errors with errors.Is.
var (
	// ErrInvalidCast reports a value that cannot be converted to the
	// requested kind.
	ErrInvalidCast = errors.New("invalid cast")

	// ErrDivisionByZero reports an integer or decimal division by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrOverflow reports a numeric result outside the representable range.
	ErrOverflow = errors.New("numeric overflow")

	// ErrNotNumeric reports a non-numeric operand to an arithmetic routine.
	ErrNotNumeric = errors.New("operand is not numeric")
)
