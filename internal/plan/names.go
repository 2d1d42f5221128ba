package plan

import "github.com/roach88/pql/internal/value"

// Casing selects exact or case-folded identifier comparison.
type Casing uint8

const (
	// CaseInsensitive compares identifiers after Unicode case folding.
	// It is the zero value because unquoted SQL identifiers fold.
	CaseInsensitive Casing = iota

	// CaseSensitive compares identifiers byte for byte (quoted identifiers).
	CaseSensitive
)

func (c Casing) String() string {
	if c == CaseSensitive {
		return "sensitive"
	}
	return "insensitive"
}

// BindingName is an identifier reference together with its casing.
type BindingName struct {
	Name string
	Case Casing
}

// Sensitive returns a case-sensitive binding name.
func Sensitive(name string) BindingName {
	return BindingName{Name: name, Case: CaseSensitive}
}

// Insensitive returns a case-insensitive binding name.
func Insensitive(name string) BindingName {
	return BindingName{Name: name, Case: CaseInsensitive}
}

// Matches reports whether a declared name satisfies this reference.
func (b BindingName) Matches(declared string) bool {
	return value.NamesEqual(b.Name, declared, b.Case == CaseSensitive)
}

// String renders the name the way EXPLAIN and problems show it: quoted
// when case-sensitive.
func (b BindingName) String() string {
	if b.Case == CaseSensitive {
		return `"` + b.Name + `"`
	}
	return b.Name
}

// Scoping selects the lookup order for an unresolved identifier.
type Scoping uint8

const (
	// ScopeDefault uses the ambient order for the identifier's syntactic
	// position: globals first when the identifier is a FROM source,
	// locals first everywhere else.
	ScopeDefault Scoping = iota

	// ScopeLexical always searches locals first. It marks references that
	// must bind to an enclosing FROM alias, such as the head of "@x.a".
	ScopeLexical
)
