package eval

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/fn"
	"github.com/roach88/pql/internal/value"
)

// ErrorCode categorizes evaluation errors.
type ErrorCode string

const (
	// ErrCodeTypeMismatch indicates a value of the wrong kind for an
	// operation.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeDivisionByZero indicates an exact division or modulo by zero.
	ErrCodeDivisionByZero ErrorCode = "DIVISION_BY_ZERO"

	// ErrCodeInvalidArgument indicates a well-typed argument with an
	// unusable value, such as a non-numeric SUM operand.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeNumericOverflow indicates a result outside the representable
	// range.
	ErrCodeNumericOverflow ErrorCode = "NUMERIC_OVERFLOW"

	// ErrCodeCardinalityViolation indicates a scalar subquery that
	// produced more than one row.
	ErrCodeCardinalityViolation ErrorCode = "CARDINALITY_VIOLATION"

	// ErrCodeUndefinedVariable indicates a dynamic lookup that matched no
	// local field and no global.
	ErrCodeUndefinedVariable ErrorCode = "UNDEFINED_VARIABLE"

	// ErrCodeUnboundGlobal indicates a resolved global with no value in
	// the session.
	ErrCodeUnboundGlobal ErrorCode = "UNBOUND_GLOBAL"

	// ErrCodeInvalidWindowOffset indicates a LAG/LEAD offset that is not a
	// non-negative integer.
	ErrCodeInvalidWindowOffset ErrorCode = "INVALID_WINDOW_OFFSET"

	// ErrCodeInvalidLimit indicates a LIMIT, OFFSET or FETCH count that is
	// not a non-negative integer.
	ErrCodeInvalidLimit ErrorCode = "INVALID_LIMIT"

	// ErrCodeCancelled indicates the execution context was cancelled.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error is a typed evaluation error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains structured context such as operand kinds.
	Details map[string]string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates an Error with the given code.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail adds one detail and returns e.
func (e *Error) WithDetail(key, val string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = val
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDataError reports whether err is caused by the shape of a value
// rather than by the plan or its configuration. Permissive mode converts
// data errors to MISSING.
func IsDataError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeTypeMismatch, ErrCodeDivisionByZero, ErrCodeInvalidArgument,
		ErrCodeNumericOverflow, ErrCodeCardinalityViolation, ErrCodeUndefinedVariable:
		return true
	}
	return false
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	if CodeOf(err) == ErrCodeCancelled {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Classify converts err into an *Error. Errors that already carry a code
// are returned unchanged; sentinel errors from value and fn are mapped to
// their codes; anything else is INTERNAL.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	code := ErrCodeInternal
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeCancelled
	case errors.Is(err, value.ErrDivisionByZero):
		code = ErrCodeDivisionByZero
	case errors.Is(err, value.ErrOverflow):
		code = ErrCodeNumericOverflow
	case errors.Is(err, value.ErrInvalidCast), errors.Is(err, value.ErrNotNumeric), errors.Is(err, fn.ErrTypeMismatch):
		code = ErrCodeTypeMismatch
	case errors.Is(err, fn.ErrInvalidArgument):
		code = ErrCodeInvalidArgument
	}
	return &Error{Code: code, Message: err.Error(), cause: err}
}

func typeMismatch(format string, args ...any) *Error {
	return NewError(ErrCodeTypeMismatch, format, args...)
}
