package plan

import "github.com/roach88/pql/internal/value"

// Rex is a scalar expression node.
//
// This is a sealed interface - only types in this package implement it.
//
// Rex types:
//   - Lit: a constant value
//   - Id: an unresolved identifier (pre-resolution only)
//   - VarLocal, VarGlobal, Dynamic: resolved references (post-resolution only)
//   - Path: field or index navigation
//   - Call: a function or operator call, resolved against overloads at compile time
//   - Struct, Collection: value constructors
//   - Select: a subquery
//   - Cast: an explicit or inserted conversion
//   - Case: a searched CASE expression
type Rex interface {
	rexNode() // Marker method - seals interface to this package
}

// Lit is a constant.
type Lit struct {
	Value value.Value
}

// Id is an unresolved variable reference. The binder replaces every Id.
type Id struct {
	Name    BindingName
	Scoping Scoping
}

// VarLocal reads a register slot allocated by the binder.
// Name is kept for EXPLAIN output only.
type VarLocal struct {
	Slot int
	Name string
}

// VarGlobal reads a catalog variable by its unique id.
type VarGlobal struct {
	ID   string
	Name string
}

// Dynamic defers resolution of an identifier to evaluation time. At
// runtime the captured locals are searched first, in order, for a struct
// value carrying a field named Name; then the session globals are
// consulted by name.
type Dynamic struct {
	Name   BindingName
	Locals []*VarLocal
}

// PathStep is one navigation step of a Path.
type PathStep interface {
	pathStep() // Marker method - seals interface to this package
}

// FieldStep navigates into a struct field.
type FieldStep struct {
	Name BindingName
}

// IndexStep navigates into a list element, or into a struct field when the
// index evaluates to a string.
type IndexStep struct {
	Index Rex
}

func (*FieldStep) pathStep() {}
func (*IndexStep) pathStep() {}

// Path navigates from Root through Steps. Navigation through an absent
// field or out-of-range index yields MISSING.
type Path struct {
	Root  Rex
	Steps []PathStep
}

// Call invokes the function or operator Name. Overload resolution happens
// during physical compilation, when argument kinds are known.
//
// The names "and", "or" and "not" are compiled with three-valued
// short-circuit semantics rather than through the function library.
type Call struct {
	Name string
	Args []Rex
}

// StructField is one field of a Struct constructor.
type StructField struct {
	Name  string
	Value Rex
}

// Struct constructs a struct. Fields whose value is MISSING are omitted.
type Struct struct {
	Fields []StructField
}

// Collection constructs a LIST or a BAG.
type Collection struct {
	Kind  value.Kind
	Elems []Rex
}

// Select evaluates Constructor once per row of Input and collects the
// results. The result is a LIST when Input is ordered, otherwise a BAG.
//
// A Scalar select must produce at most one row: zero rows give NULL, one
// row gives the constructed value, more raise CARDINALITY_VIOLATION.
type Select struct {
	Input       Rel
	Constructor Rex
	Scalar      bool
}

// Cast converts Operand to Kind.
type Cast struct {
	Operand Rex
	Kind    value.Kind
}

// Branch is one WHEN ... THEN arm of a Case.
type Branch struct {
	When Rex
	Then Rex
}

// Case is a searched CASE. A branch is taken only when its condition is
// true; NULL and MISSING conditions fall through. Else is NULL when nil.
type Case struct {
	Branches []Branch
	Else     Rex
}

func (*Lit) rexNode()        {}
func (*Id) rexNode()         {}
func (*VarLocal) rexNode()   {}
func (*VarGlobal) rexNode()  {}
func (*Dynamic) rexNode()    {}
func (*Path) rexNode()       {}
func (*Call) rexNode()       {}
func (*Struct) rexNode()     {}
func (*Collection) rexNode() {}
func (*Select) rexNode()     {}
func (*Cast) rexNode()       {}
func (*Case) rexNode()       {}

// NewLit wraps a value as a literal node.
func NewLit(v value.Value) *Lit { return &Lit{Value: v} }

// NewId is a shorthand for a case-insensitive default-scoped identifier.
func NewId(name string) *Id { return &Id{Name: Insensitive(name)} }

// NewCall is a shorthand for a Call node.
func NewCall(name string, args ...Rex) *Call { return &Call{Name: name, Args: args} }
