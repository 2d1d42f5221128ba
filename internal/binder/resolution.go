package binder

import (
	"context"

	"github.com/roach88/pql/internal/plan"
)

// Resolution is the outcome of looking up a BindingName.
//
// This is a sealed interface - only Global, Local and Undefined implement
// it. GlobalBindings implementations return Global or Undefined; Local is
// produced only by the binder's own scope lookup.
type Resolution interface {
	resolution() // Marker method - seals interface to this package
}

// Global is a catalog variable.
type Global struct {
	// ID is the variable's unique id in the catalog.
	ID string

	// Name is the name the variable was registered under. Session values
	// are bound by this name.
	Name string

	// Candidates is how many globals matched the name. A value above 1
	// means a case-insensitive reference was ambiguous and ID is the
	// catalog's deterministic pick.
	Candidates int
}

// Local is a register slot.
type Local struct {
	Index int
}

// Undefined means no binding matched.
type Undefined struct{}

func (Global) resolution()    {}
func (Local) resolution()     {}
func (Undefined) resolution() {}

// GlobalBindings resolves names against the catalog. Implementations must
// be side-effect free and deterministic.
type GlobalBindings interface {
	Resolve(name plan.BindingName) Resolution
}

// ContextBindings is implemented by catalogs whose lookups can block or
// fail. The binder prefers ResolveContext over Resolve when it is present.
type ContextBindings interface {
	GlobalBindings
	ResolveContext(ctx context.Context, name plan.BindingName) (Resolution, error)
}

// GlobalsFunc adapts a function to GlobalBindings.
type GlobalsFunc func(name plan.BindingName) Resolution

// Resolve calls f(name).
func (f GlobalsFunc) Resolve(name plan.BindingName) Resolution { return f(name) }

// NoGlobals resolves every name to Undefined.
var NoGlobals GlobalBindings = GlobalsFunc(func(plan.BindingName) Resolution { return Undefined{} })

// Order is the scope search order for one lookup.
type Order uint8

const (
	LocalsFirst Order = iota
	GlobalsFirst
)
