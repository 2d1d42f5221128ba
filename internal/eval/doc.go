// Package eval is the expression runtime: the per-execution register file,
// compiled expression thunks, three-valued logic and the two typing modes.
//
// Every scalar expression of a resolved plan is compiled exactly once into
// an Expr, a closure over its children's closures:
//
//	expr, err := compiler.Compile(rex)
//	v, err := expr(state)
//
// Compiled Exprs are immutable and may be shared by concurrent executions.
// Each execution owns its State.
//
// TYPING MODES:
//
// Legacy returns a typed *Error when a value's runtime kind does not fit
// an operation. Permissive turns the same data errors into MISSING and
// keeps going. Configuration errors (for example a negative window
// offset) and cancellation propagate in both modes.
//
// CANCELLATION:
//
// Long loops call State.Checkpoint, which polls the execution context at a
// fixed interval and fails with code CANCELLED once it is done.
package eval
