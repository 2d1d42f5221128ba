package fn

import (
	"sort"
	"strings"
)

// Registry groups functions into overload sets by lower-cased name.
// Registration order within a set is preserved. A Registry must not be
// modified once a compiler is using it.
type Registry struct {
	byName map[string][]*Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string][]*Function)}
}

// Register adds functions. Registering a second routine with the same name
// and parameter kinds fails and leaves the registry unchanged from that
// point on.
func (r *Registry) Register(fns ...*Function) error {
	for _, f := range fns {
		name := strings.ToLower(f.Name)
		for _, existing := range r.byName[name] {
			if sameParams(existing.Params, f.Params) {
				return &DuplicateFunctionError{Signature: f.String()}
			}
		}
		r.byName[name] = append(r.byName[name], f)
	}
	return nil
}

// Lookup returns the overload set for name, in registration order.
func (r *Registry) Lookup(name string) []*Function {
	return r.byName[strings.ToLower(name)]
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a registry with the same overload sets that can be
// extended independently.
func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	for name, fns := range r.byName {
		out.byName[name] = append([]*Function(nil), fns...)
	}
	return out
}
