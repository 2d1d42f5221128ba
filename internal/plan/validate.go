package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/value"
)

// Plan validation error codes (E200-E299)
const (
	ErrNilNode          = "E200" // required node is missing
	ErrEmptyName        = "E201" // alias or output name is empty
	ErrDuplicateColumn  = "E202" // two columns of one node share a name
	ErrUnknownWindowFn  = "E203" // window function is not lag or lead
	ErrMissingCount     = "E204" // LIMIT or OFFSET without a count
	ErrCollectionKind   = "E205" // collection constructor is not LIST or BAG
	ErrEmptyExcludePath = "E206" // EXCLUDE path without steps
	ErrUnsupportedNode  = "E207" // node type not valid at this position
)

// ValidationError is a structural problem in a plan.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the structural rules of a plan: required children are
// present, declared names are non-empty and unique within a node, and
// node-specific shapes are well formed.
//
// Returns all errors found (does not fail-fast). Name resolution is the
// binder's job and is not checked here.
func Validate(stmt Statement) []ValidationError {
	errs, _ := ValidateContext(context.Background(), stmt)
	return errs
}

// ValidateContext is Validate with cancellation. It checks ctx every
// validateCheckInterval nodes and returns ctx's error once it is done.
func ValidateContext(ctx context.Context, stmt Statement) ([]ValidationError, error) {
	v := &validator{ctx: ctx}
	switch s := stmt.(type) {
	case *Query:
		v.rex("query", s.Root)
	case *Insert:
		v.rex("insert.target", s.Target)
		v.rex("insert.source", s.Source)
	case *Delete:
		v.rex("delete.target", s.Target)
		if s.As == "" {
			v.add("delete.as", ErrEmptyName, "delete requires an alias")
		}
		if s.Where != nil {
			v.rex("delete.where", s.Where)
		}
	case nil:
		v.add("statement", ErrNilNode, "statement is required")
	default:
		v.add("statement", ErrUnsupportedNode, fmt.Sprintf("unsupported statement type %T", stmt))
	}
	if v.err != nil {
		return nil, errors.Wrap(v.err, "validate plan")
	}
	return v.errs, nil
}

// ValidateRel checks a relational subtree. See Validate.
func ValidateRel(rel Rel) []ValidationError {
	v := &validator{ctx: context.Background()}
	v.rel("rel", rel)
	return v.errs
}

// validateCheckInterval is how many visited nodes pass between
// cancellation checks.
const validateCheckInterval = 256

type validator struct {
	ctx     context.Context
	visited int
	err     error
	errs    []ValidationError
}

// stopped counts a visited node and reports whether validation was
// cancelled.
func (v *validator) stopped() bool {
	if v.err != nil {
		return true
	}
	v.visited++
	if v.visited%validateCheckInterval == 0 {
		v.err = v.ctx.Err()
	}
	return v.err != nil
}

func (v *validator) add(field, code, msg string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: msg, Code: code})
}

func (v *validator) rel(field string, rel Rel) {
	if v.stopped() {
		return
	}
	if rel == nil {
		v.add(field, ErrNilNode, "relational input is required")
		return
	}
	field = field + "." + KindOf(rel).String()

	switch r := rel.(type) {
	case *Scan:
		v.rex(field+".expr", r.Expr)
		if r.As == "" {
			v.add(field+".as", ErrEmptyName, "scan requires an AS alias")
		}
	case *Filter:
		v.rel(field, r.Input)
		v.rex(field+".predicate", r.Predicate)
	case *Project:
		v.rel(field, r.Input)
		for i, it := range r.Items {
			f := fmt.Sprintf("%s.items[%d]", field, i)
			if it.Name == "" {
				v.add(f, ErrEmptyName, "projection item requires a name")
			}
			v.rex(f, it.Expr)
		}
	case *Join:
		v.rel(field+".left", r.Left)
		v.rel(field+".right", r.Right)
		if r.On != nil {
			v.rex(field+".on", r.On)
		}
	case *Aggregate:
		v.rel(field, r.Input)
		for i, g := range r.Groups {
			f := fmt.Sprintf("%s.groups[%d]", field, i)
			if g.Name == "" {
				v.add(f, ErrEmptyName, "group key requires a name")
			}
			v.rex(f, g.Expr)
		}
		for i, c := range r.Calls {
			f := fmt.Sprintf("%s.calls[%d]", field, i)
			if c.Output == "" {
				v.add(f, ErrEmptyName, fmt.Sprintf("aggregate %s requires an output name", c.Name))
			}
			for j, a := range c.Args {
				v.rex(fmt.Sprintf("%s.args[%d]", f, j), a)
			}
		}
	case *Sort:
		v.rel(field, r.Input)
		for i, s := range r.Specs {
			v.rex(fmt.Sprintf("%s.specs[%d]", field, i), s.Expr)
		}
	case *Limit:
		v.rel(field, r.Input)
		if r.Count == nil {
			v.add(field+".count", ErrMissingCount, "limit requires a count")
		}
	case *Offset:
		v.rel(field, r.Input)
		if r.Count == nil {
			v.add(field+".count", ErrMissingCount, "offset requires a count")
		}
	case *Distinct:
		v.rel(field, r.Input)
	case *Exclude:
		v.rel(field, r.Input)
		for i, p := range r.Paths {
			if len(p.Steps) == 0 {
				v.add(fmt.Sprintf("%s.paths[%d]", field, i), ErrEmptyExcludePath,
					fmt.Sprintf("exclude path rooted at %s has no steps", p.Root))
			}
		}
	case *Window:
		v.rel(field, r.Input)
		for i, e := range r.PartitionBy {
			v.rex(fmt.Sprintf("%s.partition[%d]", field, i), e)
		}
		for i, s := range r.OrderBy {
			v.rex(fmt.Sprintf("%s.order[%d]", field, i), s.Expr)
		}
		for i, c := range r.Calls {
			f := fmt.Sprintf("%s.calls[%d]", field, i)
			switch strings.ToLower(c.Name) {
			case "lag", "lead":
			default:
				v.add(f, ErrUnknownWindowFn, fmt.Sprintf("unknown window function %q", c.Name))
			}
			if c.Output == "" {
				v.add(f, ErrEmptyName, "window call requires an output name")
			}
			v.rex(f+".expr", c.Expr)
		}
	}

	v.uniqueColumns(field, rel)
}

// uniqueColumns checks that the columns a node declares do not collide
// with each other or, for joins and windows, with the columns they extend.
// Collisions inside an input are reported once, at the input.
func (v *validator) uniqueColumns(field string, rel Rel) {
	var inherited, declared []Column
	switch r := rel.(type) {
	case *Scan, *Project, *Aggregate:
		declared = Schema(rel)
	case *Join:
		inherited = Schema(r.Left)
		declared = Schema(r.Right)
	case *Window:
		inherited = Schema(r.Input)
		declared = Schema(rel)[len(inherited):]
	default:
		return
	}

	seen := make(map[string]bool)
	for _, c := range inherited {
		seen[c.Name] = true
	}
	local := make(map[string]bool)
	for _, c := range declared {
		if c.Name == "" {
			continue
		}
		if seen[c.Name] || local[c.Name] {
			v.add(field, ErrDuplicateColumn, fmt.Sprintf("duplicate column name %q", c.Name))
		}
		local[c.Name] = true
	}
}

func (v *validator) rex(field string, rex Rex) {
	if v.stopped() {
		return
	}
	if rex == nil {
		v.add(field, ErrNilNode, "expression is required")
		return
	}
	switch x := rex.(type) {
	case *Path:
		v.rex(field+".root", x.Root)
		for i, s := range x.Steps {
			if is, ok := s.(*IndexStep); ok {
				v.rex(fmt.Sprintf("%s.steps[%d]", field, i), is.Index)
			}
		}
	case *Call:
		for i, a := range x.Args {
			v.rex(fmt.Sprintf("%s.%s[%d]", field, x.Name, i), a)
		}
	case *Struct:
		for _, f := range x.Fields {
			v.rex(field+"."+f.Name, f.Value)
		}
	case *Collection:
		if x.Kind != value.KindList && x.Kind != value.KindBag {
			v.add(field, ErrCollectionKind, fmt.Sprintf("collection kind must be LIST or BAG, got %s", x.Kind))
		}
		for i, e := range x.Elems {
			v.rex(fmt.Sprintf("%s[%d]", field, i), e)
		}
	case *Select:
		v.rel(field+".select", x.Input)
		v.rex(field+".constructor", x.Constructor)
	case *Cast:
		v.rex(field+".operand", x.Operand)
	case *Case:
		for i, b := range x.Branches {
			v.rex(fmt.Sprintf("%s.when[%d]", field, i), b.When)
			v.rex(fmt.Sprintf("%s.then[%d]", field, i), b.Then)
		}
		if x.Else != nil {
			v.rex(field+".else", x.Else)
		}
	}
}
