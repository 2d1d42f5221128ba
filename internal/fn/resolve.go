package fn

import "github.com/roach88/pql/internal/value"

// candidate is one routine surviving the coercion step.
type candidate struct {
	fn        *Function
	coercions []*Coercion
	exact     int

	// dynamic is set when a DYNAMIC argument meets a concretely typed
	// parameter, so the routine cannot be fixed before evaluation.
	dynamic bool
}

// Resolve selects a routine among candidates for the given static
// argument kinds.
//
// Resolution order:
//  1. Keep candidates of matching arity.
//  2. A candidate whose parameters equal args pointwise wins outright.
//  3. Every other candidate must accept each argument exactly, through a
//     registered coercion, or because the argument is unknown (NULL,
//     MISSING, DYNAMIC) or the parameter is DYNAMIC.
//  4. Keep the survivors with the most exact positions; one survivor wins.
//  5. If a DYNAMIC argument drives a typed parameter, the call stays
//     Dynamic over all survivors.
//  6. Otherwise prefer fewer parameters, then the lowest kind precedence
//     compared position by position.
func Resolve(candidates []*Function, args []value.Kind, coercions *Coercions) (Match, error) {
	var arity []*Function
	for _, f := range candidates {
		if f.Arity() == len(args) {
			arity = append(arity, f)
		}
	}
	if len(arity) == 0 {
		return nil, noViable(candidates, args)
	}

	for _, f := range arity {
		if sameParams(f.Params, args) {
			return &Static{Fn: f, Coercions: make([]*Coercion, len(args))}, nil
		}
	}

	var survivors []candidate
	best := -1
	for _, f := range arity {
		c, ok := accept(f, args, coercions)
		if !ok {
			continue
		}
		switch {
		case c.exact > best:
			best = c.exact
			survivors = append(survivors[:0], c)
		case c.exact == best:
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		return nil, noViable(candidates, args)
	}
	if len(survivors) == 1 {
		return survivors[0].static(), nil
	}

	for _, c := range survivors {
		if c.dynamic {
			fns := make([]*Function, len(survivors))
			for i, s := range survivors {
				fns[i] = s.fn
			}
			return &Dynamic{Candidates: fns}, nil
		}
	}

	winner := survivors[0]
	for _, c := range survivors[1:] {
		if precedes(c.fn, winner.fn) {
			winner = c
		}
	}
	return winner.static(), nil
}

// ResolveDynamic picks the routine for concrete runtime kinds among the
// candidates of a Dynamic match.
func ResolveDynamic(d *Dynamic, args []value.Kind, coercions *Coercions) (*Static, error) {
	m, err := Resolve(d.Candidates, args, coercions)
	if err != nil {
		return nil, err
	}
	if s, ok := m.(*Static); ok {
		return s, nil
	}
	// Runtime kinds are concrete unless an argument is unknown, which the
	// evaluator short-circuits before resolving.
	return nil, noViable(d.Candidates, args)
}

func accept(f *Function, args []value.Kind, coercions *Coercions) (candidate, bool) {
	c := candidate{fn: f, coercions: make([]*Coercion, len(args))}
	for i, arg := range args {
		param := f.Params[i]
		switch {
		case arg == param:
			c.exact++
		case param == value.KindDynamic:
		case arg.IsUnknown():
			if arg == value.KindDynamic {
				c.dynamic = true
			}
		default:
			co, ok := coercions.Get(arg, param)
			if !ok {
				return candidate{}, false
			}
			c.coercions[i] = co
		}
	}
	return c, true
}

func (c candidate) static() *Static {
	return &Static{Fn: c.fn, Coercions: c.coercions}
}

// precedes reports whether a wins a tie against b.
func precedes(a, b *Function) bool {
	if a.Arity() != b.Arity() {
		return a.Arity() < b.Arity()
	}
	for i := range a.Params {
		pa, pb := a.Params[i].Precedence(), b.Params[i].Precedence()
		if pa != pb {
			return pa < pb
		}
	}
	return false
}

func noViable(candidates []*Function, args []value.Kind) error {
	name := ""
	if len(candidates) > 0 {
		name = candidates[0].Name
	}
	return &NoViableCandidateError{Name: name, Args: args}
}
