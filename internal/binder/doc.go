// Package binder resolves the identifiers of a logical plan.
//
// Every *plan.Id becomes one of:
//
//	*plan.VarLocal   a register slot declared by an enclosing FROM alias,
//	                 projection, aggregate or window output
//	*plan.VarGlobal  a catalog variable, by unique id
//	*plan.Dynamic    a lookup deferred to evaluation time (only when
//	                 undefined variables are allowed)
//
// Slots are allocated in declaration order, starting at 0, and are never
// reused within a statement. The total slot count sizes the register file
// of every execution.
//
// Resolution never fails on a bad identifier. Problems are accumulated
// with a severity and returned alongside the rewritten plan; callers must
// check Problems.HasErrors before compiling. Only cancellation of the
// context aborts a resolution.
package binder
