package eval

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/fn"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

func (c *Compiler) compileCall(x *plan.Call) (Expr, error) {
	args, err := c.CompileAll(x.Args)
	if err != nil {
		return nil, err
	}

	name := strings.ToLower(x.Name)
	switch name {
	case "and", "or":
		if len(args) != 2 {
			return nil, errors.Newf("%s takes 2 arguments, got %d", name, len(args))
		}
		if name == "and" {
			return and(args[0], args[1]), nil
		}
		return or(args[0], args[1]), nil
	case "not":
		if len(args) != 1 {
			return nil, errors.Newf("not takes 1 argument, got %d", len(args))
		}
		return not(args[0]), nil
	}

	kinds := make([]value.Kind, len(x.Args))
	for i, a := range x.Args {
		kinds[i] = staticKind(a)
	}
	candidates := c.functions.Lookup(name)
	m, err := fn.Resolve(candidates, kinds, c.coercions)
	if err != nil {
		nv := &fn.NoViableCandidateError{Name: name, Args: kinds, Site: plan.FormatRex(x)}
		if c.strict {
			return nil, nv
		}
		c.warnings = append(c.warnings, nv)
		msg := nv.Error()
		return func(st *State) (value.Value, error) {
			return st.Recover(typeMismatch("%s", msg))
		}, nil
	}
	return c.callThunk(name, candidates, m, args), nil
}

// callThunk evaluates the arguments, propagates unknowns, applies the
// planned coercions and invokes the routine. A Dynamic match, or runtime
// kinds that no longer fit the static match, resolve again against the
// runtime kinds.
func (c *Compiler) callThunk(name string, candidates []*fn.Function, m fn.Match, args []Expr) Expr {
	var static *fn.Static
	handles := true
	switch mm := m.(type) {
	case *fn.Static:
		static = mm
		handles = mm.Fn.HandlesUnknowns
	case *fn.Dynamic:
		candidates = mm.Candidates
		for _, f := range mm.Candidates {
			handles = handles && f.HandlesUnknowns
		}
	}
	coercions := c.coercions

	return func(st *State) (value.Value, error) {
		vals := make([]value.Value, len(args))
		for i, a := range args {
			v, err := a(st)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		if !handles {
			if u := unknownOf(vals...); u != nil {
				return u, nil
			}
		}

		s := static
		if s == nil || !fits(s, vals) {
			kinds := make([]value.Kind, len(vals))
			for i, v := range vals {
				kinds[i] = v.Kind()
			}
			resolved, err := fn.ResolveDynamic(&fn.Dynamic{Candidates: candidates}, kinds, coercions)
			if err != nil {
				return st.Recover(typeMismatch("no viable candidate for %s with argument kinds %v", name, kinds))
			}
			s = resolved
		}

		for i, co := range s.Coercions {
			if co == nil || value.IsUnknown(vals[i]) {
				continue
			}
			v, err := co.Apply(vals[i])
			if err != nil {
				return st.Recover(err)
			}
			vals[i] = v
		}
		out, err := s.Fn.Invoke(st, vals)
		if err != nil {
			return st.Recover(err)
		}
		return out, nil
	}
}

// fits reports whether runtime values match the kinds a static match was
// resolved for.
func fits(s *fn.Static, vals []value.Value) bool {
	for i, v := range vals {
		param := s.Fn.Params[i]
		if param == value.KindDynamic || value.IsUnknown(v) {
			continue
		}
		k := v.Kind()
		if co := s.Coercions[i]; co != nil {
			if k != co.From {
				return false
			}
			continue
		}
		if k != param {
			return false
		}
	}
	return true
}

// unknownOf returns MISSING if any value is MISSING, NULL if any is NULL,
// and nil otherwise.
func unknownOf(vals ...value.Value) value.Value {
	var out value.Value
	for _, v := range vals {
		switch {
		case v == nil, v.Kind() == value.KindMissing:
			return value.MissingValue
		case v.Kind() == value.KindNull:
			out = value.NullValue
		}
	}
	return out
}

// logical reads an operand of a connective.
func logical(v value.Value) (b, known bool, err error) {
	if value.IsUnknown(v) {
		return false, false, nil
	}
	bv, ok := v.(value.Bool)
	if !ok {
		return false, false, typeMismatch("logical operand must be BOOL, got %s", v.Kind())
	}
	return bool(bv), true, nil
}

// and is false when either side is false, even if the other is unknown.
// The right side is not evaluated when the left is false.
func and(left, right Expr) Expr {
	return connective(left, right, false)
}

// or is true when either side is true, even if the other is unknown.
func or(left, right Expr) Expr {
	return connective(left, right, true)
}

// connective implements and (dominant false) and or (dominant true).
func connective(left, right Expr, dominant bool) Expr {
	result := value.Bool(dominant)
	return func(st *State) (value.Value, error) {
		l, err := left(st)
		if err != nil {
			return nil, err
		}
		lb, lknown, err := logical(l)
		if err != nil {
			return st.Recover(err)
		}
		if lknown && lb == dominant {
			return result, nil
		}
		r, err := right(st)
		if err != nil {
			return nil, err
		}
		rb, rknown, err := logical(r)
		if err != nil {
			return st.Recover(err)
		}
		if rknown && rb == dominant {
			return result, nil
		}
		if lknown && rknown {
			return value.Bool(!dominant), nil
		}
		return unknownOf(l, r), nil
	}
}

func not(operand Expr) Expr {
	return func(st *State) (value.Value, error) {
		v, err := operand(st)
		if err != nil {
			return nil, err
		}
		b, known, err := logical(v)
		if err != nil {
			return st.Recover(err)
		}
		if !known {
			return v, nil
		}
		return value.Bool(!b), nil
	}
}
