// Package fn holds function signatures, the implicit coercion table, the
// overload resolver and the built-in function library.
//
// A call site is resolved once at compile time:
//
//	candidates := registry.Lookup("plus")
//	m, err := fn.Resolve(candidates, []value.Kind{value.KindInt, value.KindDecimal}, coercions)
//
// The result is a Match. A *Static match names one Function and, per
// argument position, the coercion to apply before invoking it (nil for an
// exact position). A *Dynamic match keeps every surviving candidate; the
// evaluator resolves it again per row once the runtime argument kinds are
// known.
//
// The resolver never invents a function. A call that no candidate accepts
// fails with *NoViableCandidateError.
package fn
