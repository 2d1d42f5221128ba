package binder

import "github.com/roach88/pql/internal/plan"

// scope is one level of lexically visible declarations. Scopes form a
// chain through parent; lookups walk from the innermost scope outwards.
type scope struct {
	parent *scope
	decls  []plan.Column
}

// lookup returns the first declaration matching name, searching the
// innermost scope first and each scope in declaration order.
func (s *scope) lookup(name plan.BindingName) (plan.Column, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		for _, d := range sc.decls {
			if name.Matches(d.Name) {
				return d, true
			}
		}
	}
	return plan.Column{}, false
}

// visible lists every declaration in lookup order.
func (s *scope) visible() []plan.Column {
	var out []plan.Column
	for sc := s; sc != nil; sc = sc.parent {
		out = append(out, sc.decls...)
	}
	return out
}
