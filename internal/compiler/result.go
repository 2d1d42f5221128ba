package compiler

import (
	"github.com/roach88/pql/internal/value"
)

// Result is the outcome of one execution.
//
// This is a sealed interface - only types in this package implement it.
type Result interface {
	result() // Marker method - seals interface to this package
}

// ValueResult is the value a query produced.
type ValueResult struct {
	Value value.Value
}

// ErrorResult is a failed execution. Err is an *eval.Error.
type ErrorResult struct {
	Err error
}

func (r *ErrorResult) Error() string { return r.Err.Error() }
func (r *ErrorResult) Unwrap() error { return r.Err }

// InsertResult reports the rows an Insert added.
type InsertResult struct {
	Target Target
	Count  int
}

// DeleteResult reports the rows a Delete removed.
type DeleteResult struct {
	Target Target
	Count  int
}

func (*ValueResult) result()  {}
func (*ErrorResult) result()  {}
func (*InsertResult) result() {}
func (*DeleteResult) result() {}

// ResultErr returns the error of an ErrorResult and nil otherwise.
func ResultErr(r Result) error {
	if e, ok := r.(*ErrorResult); ok {
		return e.Err
	}
	return nil
}
