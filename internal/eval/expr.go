package eval

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/fn"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// Expr is a compiled scalar expression.
type Expr func(st *State) (value.Value, error)

// SubqueryFunc compiles the relational input of a Select expression.
type SubqueryFunc func(rel plan.Rel) (Rows, error)

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithSubqueries sets the hook used to compile Select inputs. Without it
// a Select fails to compile.
func WithSubqueries(f SubqueryFunc) CompilerOption {
	return func(c *Compiler) {
		c.subquery = f
	}
}

// WithStrictFunctions makes a call with no viable candidate a compile
// error. By default it compiles to an expression that raises
// TYPE_MISMATCH, and the call is reported through Warnings.
func WithStrictFunctions(strict bool) CompilerOption {
	return func(c *Compiler) {
		c.strict = strict
	}
}

// Compiler turns resolved Rex trees into Exprs. A Compiler is used for one
// statement and is not safe for concurrent use; the Exprs it returns are.
type Compiler struct {
	functions *fn.Registry
	coercions *fn.Coercions
	subquery  SubqueryFunc
	strict    bool
	warnings  []*fn.NoViableCandidateError
}

// NewCompiler creates a Compiler resolving calls against functions.
func NewCompiler(functions *fn.Registry, coercions *fn.Coercions, opts ...CompilerOption) *Compiler {
	c := &Compiler{functions: functions, coercions: coercions}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warnings returns the calls that compiled without a viable candidate.
func (c *Compiler) Warnings() []*fn.NoViableCandidateError {
	return c.warnings
}

// Compile compiles one expression.
func (c *Compiler) Compile(rex plan.Rex) (Expr, error) {
	switch x := rex.(type) {
	case *plan.Lit:
		v := x.Value
		if v == nil {
			v = value.MissingValue
		}
		return func(*State) (value.Value, error) { return v, nil }, nil

	case *plan.VarLocal:
		slot := x.Slot
		return func(st *State) (value.Value, error) { return st.Load(slot), nil }, nil

	case *plan.VarGlobal:
		id, name := x.ID, x.Name
		return func(st *State) (value.Value, error) { return st.Global(id, name) }, nil

	case *plan.Dynamic:
		return compileDynamic(x), nil

	case *plan.Path:
		return c.compilePath(x)

	case *plan.Call:
		return c.compileCall(x)

	case *plan.Struct:
		return c.compileStruct(x)

	case *plan.Collection:
		return c.compileCollection(x)

	case *plan.Select:
		return c.compileSelect(x)

	case *plan.Cast:
		operand, err := c.Compile(x.Operand)
		if err != nil {
			return nil, err
		}
		kind := x.Kind
		return func(st *State) (value.Value, error) {
			v, err := operand(st)
			if err != nil {
				return nil, err
			}
			out, err := value.Cast(v, kind)
			if err != nil {
				return st.Recover(err)
			}
			return out, nil
		}, nil

	case *plan.Case:
		return c.compileCase(x)

	case *plan.Id:
		return nil, errors.AssertionFailedf("unresolved identifier %s", x.Name)
	}
	return nil, errors.AssertionFailedf("unknown expression node %T", rex)
}

// CompileAll compiles a list of expressions.
func (c *Compiler) CompileAll(rexs []plan.Rex) ([]Expr, error) {
	out := make([]Expr, len(rexs))
	for i, r := range rexs {
		e, err := c.Compile(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// compileDynamic looks the name up as a field of each captured local in
// order, then among the session globals.
func compileDynamic(x *plan.Dynamic) Expr {
	name := x.Name
	sensitive := name.Case == plan.CaseSensitive
	slots := make([]int, len(x.Locals))
	for i, l := range x.Locals {
		slots[i] = l.Slot
	}
	return func(st *State) (value.Value, error) {
		for _, slot := range slots {
			if s, ok := st.Load(slot).(value.Struct); ok {
				if v, ok := s.Get(name.Name, sensitive); ok {
					return v, nil
				}
			}
		}
		if v, ok := st.lookupSession(name); ok {
			return v, nil
		}
		return st.Recover(NewError(ErrCodeUndefinedVariable, "undefined variable %s", name))
	}
}

type stepFunc func(st *State, v value.Value) (value.Value, error)

func (c *Compiler) compilePath(x *plan.Path) (Expr, error) {
	root, err := c.Compile(x.Root)
	if err != nil {
		return nil, err
	}
	steps := make([]stepFunc, len(x.Steps))
	for i, s := range x.Steps {
		switch step := s.(type) {
		case *plan.FieldStep:
			name := step.Name
			steps[i] = func(_ *State, v value.Value) (value.Value, error) {
				return fieldOf(v, name)
			}
		case *plan.IndexStep:
			index, err := c.Compile(step.Index)
			if err != nil {
				return nil, err
			}
			steps[i] = func(st *State, v value.Value) (value.Value, error) {
				idx, err := index(st)
				if err != nil {
					return nil, err
				}
				return indexOf(v, idx)
			}
		default:
			return nil, errors.AssertionFailedf("unknown path step %T", s)
		}
	}
	return func(st *State) (value.Value, error) {
		v, err := root(st)
		if err != nil {
			return nil, err
		}
		for _, step := range steps {
			if value.IsUnknown(v) {
				return value.MissingValue, nil
			}
			if v, err = step(st, v); err != nil {
				return st.Recover(err)
			}
		}
		return v, nil
	}, nil
}

func fieldOf(v value.Value, name plan.BindingName) (value.Value, error) {
	s, ok := v.(value.Struct)
	if !ok {
		return nil, typeMismatch("cannot read field %s of %s", name, v.Kind())
	}
	if f, ok := s.Get(name.Name, name.Case == plan.CaseSensitive); ok {
		return f, nil
	}
	return value.MissingValue, nil
}

func indexOf(v, idx value.Value) (value.Value, error) {
	if value.IsUnknown(idx) {
		return value.MissingValue, nil
	}
	switch c := v.(type) {
	case value.List:
		i, ok := idx.(value.Int)
		if !ok {
			return nil, typeMismatch("list index must be INT, got %s", idx.Kind())
		}
		if i < 0 || int64(i) >= int64(len(c)) {
			return value.MissingValue, nil
		}
		return c[i], nil
	case value.Struct:
		name, ok := idx.(value.String)
		if !ok {
			return nil, typeMismatch("struct key must be STRING, got %s", idx.Kind())
		}
		if f, ok := c.Get(string(name), true); ok {
			return f, nil
		}
		return value.MissingValue, nil
	}
	return nil, typeMismatch("cannot index %s", v.Kind())
}

func (c *Compiler) compileStruct(x *plan.Struct) (Expr, error) {
	names := make([]string, len(x.Fields))
	vals := make([]Expr, len(x.Fields))
	for i, f := range x.Fields {
		e, err := c.Compile(f.Value)
		if err != nil {
			return nil, err
		}
		names[i], vals[i] = f.Name, e
	}
	return func(st *State) (value.Value, error) {
		out := make(value.Struct, 0, len(vals))
		for i, e := range vals {
			v, err := e(st)
			if err != nil {
				return nil, err
			}
			// A MISSING field value omits the field.
			if v.Kind() == value.KindMissing {
				continue
			}
			out = append(out, value.Field{Name: names[i], Value: v})
		}
		return out, nil
	}, nil
}

func (c *Compiler) compileCollection(x *plan.Collection) (Expr, error) {
	elems, err := c.CompileAll(x.Elems)
	if err != nil {
		return nil, err
	}
	bag := x.Kind == value.KindBag
	return func(st *State) (value.Value, error) {
		out := make([]value.Value, len(elems))
		for i, e := range elems {
			v, err := e(st)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		if bag {
			return value.Bag(out), nil
		}
		return value.List(out), nil
	}, nil
}

func (c *Compiler) compileSelect(x *plan.Select) (Expr, error) {
	if c.subquery == nil {
		return nil, errors.AssertionFailedf("subqueries are not supported by this compiler")
	}
	rows, err := c.subquery(x.Input)
	if err != nil {
		return nil, err
	}
	ctor, err := c.Compile(x.Constructor)
	if err != nil {
		return nil, err
	}
	ordered := plan.Ordered(x.Input)
	scalar := x.Scalar
	return func(st *State) (value.Value, error) {
		out, err := collect(st, rows, ctor, !scalar)
		if err != nil {
			return nil, err
		}
		if scalar {
			switch len(out) {
			case 0:
				return value.NullValue, nil
			case 1:
				return out[0], nil
			}
			return st.Recover(NewError(ErrCodeCardinalityViolation,
				"scalar subquery produced %d rows", len(out)))
		}
		if ordered {
			return value.List(out), nil
		}
		return value.Bag(out), nil
	}, nil
}

// collect drains rows, evaluating ctor for each row.
func collect(st *State, rows Rows, ctor Expr, dropMissing bool) ([]value.Value, error) {
	cur, err := rows.Open(st)
	if err != nil {
		return nil, err
	}
	out := []value.Value{}
	for {
		ok, err := cur.Next()
		if err != nil {
			_ = cur.Close()
			return nil, err
		}
		if !ok {
			break
		}
		v, err := ctor(st)
		if err != nil {
			_ = cur.Close()
			return nil, err
		}
		if dropMissing && v.Kind() == value.KindMissing {
			continue
		}
		out = append(out, v)
	}
	return out, cur.Close()
}

func (c *Compiler) compileCase(x *plan.Case) (Expr, error) {
	whens := make([]Expr, len(x.Branches))
	thens := make([]Expr, len(x.Branches))
	for i, br := range x.Branches {
		w, err := c.Compile(br.When)
		if err != nil {
			return nil, err
		}
		t, err := c.Compile(br.Then)
		if err != nil {
			return nil, err
		}
		whens[i], thens[i] = w, t
	}
	var els Expr
	if x.Else != nil {
		e, err := c.Compile(x.Else)
		if err != nil {
			return nil, err
		}
		els = e
	}
	return func(st *State) (value.Value, error) {
		for i, w := range whens {
			cond, err := w(st)
			if err != nil {
				return nil, err
			}
			if value.Truth(cond) {
				return thens[i](st)
			}
		}
		if els == nil {
			return value.NullValue, nil
		}
		return els(st)
	}, nil
}

// staticKind is the kind of rex known before evaluation.
func staticKind(rex plan.Rex) value.Kind {
	switch x := rex.(type) {
	case *plan.Lit:
		if x.Value == nil {
			return value.KindMissing
		}
		return x.Value.Kind()
	case *plan.Cast:
		return x.Kind
	case *plan.Struct:
		return value.KindStruct
	case *plan.Collection:
		return x.Kind
	case *plan.Select:
		if x.Scalar {
			return value.KindDynamic
		}
		if plan.Ordered(x.Input) {
			return value.KindList
		}
		return value.KindBag
	case *plan.Call:
		switch strings.ToLower(x.Name) {
		case "and", "or", "not":
			return value.KindBool
		}
	}
	return value.KindDynamic
}
