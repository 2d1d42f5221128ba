package compiler

import (
	"github.com/roach88/pql/internal/operator"
	"github.com/roach88/pql/internal/plan"
)

// Pattern matches a node shape: a kind, optionally constrained inputs
// and an optional predicate on the node itself.
type Pattern struct {
	Kind plan.RelKind

	// Inputs, when non-nil, must match the node's inputs pointwise.
	Inputs []*Pattern

	// Where is an extra condition on the node. Nil accepts every node.
	Where func(plan.Rel) bool
}

// Matches reports whether rel has the pattern's shape.
func (p *Pattern) Matches(rel plan.Rel) bool {
	if plan.KindOf(rel) != p.Kind {
		return false
	}
	if p.Where != nil && !p.Where(rel) {
		return false
	}
	if p.Inputs == nil {
		return true
	}
	inputs := plan.Inputs(rel)
	if len(inputs) != len(p.Inputs) {
		return false
	}
	for i, in := range p.Inputs {
		if in != nil && !in.Matches(inputs[i]) {
			return false
		}
	}
	return true
}

// Strategy replaces a subtree whose root matched its Pattern. Apply must
// not modify rel; it returns a new node, or rel itself to decline.
type Strategy interface {
	Name() string
	Pattern() *Pattern
	Apply(rel plan.Rel) plan.Rel
}

type strategy struct {
	name    string
	pattern *Pattern
	apply   func(plan.Rel) plan.Rel
}

// NewStrategy builds a Strategy from a pattern and a rewrite function.
func NewStrategy(name string, pattern *Pattern, apply func(plan.Rel) plan.Rel) Strategy {
	return &strategy{name: name, pattern: pattern, apply: apply}
}

func (s *strategy) Name() string                { return s.name }
func (s *strategy) Pattern() *Pattern           { return s.pattern }
func (s *strategy) Apply(rel plan.Rel) plan.Rel { return s.apply(rel) }

// BuiltinStrategies returns the rewrites every Compiler runs unless
// WithoutBuiltinStrategies is given.
func BuiltinStrategies() []Strategy {
	return []Strategy{TopK()}
}

// TopK rewrites Limit(Sort) so that the sort only keeps the first Count
// rows, using the "topk" impl. Sorts already tagged with an impl are left
// alone.
func TopK() Strategy {
	untagged := func(rel plan.Rel) bool {
		s := rel.(*plan.Sort)
		return s.Fetch == nil && plan.ImplOf(s) == plan.DefaultImpl
	}
	pattern := &Pattern{
		Kind:   plan.KindLimit,
		Inputs: []*Pattern{{Kind: plan.KindSort, Where: untagged}},
	}
	return NewStrategy("topk", pattern, func(rel plan.Rel) plan.Rel {
		limit := rel.(*plan.Limit)
		sort := *limit.Input.(*plan.Sort)
		sort.Fetch = limit.Count
		sort.Impl = operator.TopKImpl
		out := *limit
		out.Input = &sort
		return &out
	})
}

// Retag tags every node of kind with impl, for example to route all scans
// through a store-backed factory. Nodes already tagged keep their impl.
func Retag(kind plan.RelKind, impl string) Strategy {
	pattern := &Pattern{
		Kind:  kind,
		Where: func(rel plan.Rel) bool { return plan.ImplOf(rel) == plan.DefaultImpl },
	}
	return NewStrategy("retag:"+kind.String()+"="+impl, pattern, func(rel plan.Rel) plan.Rel {
		return plan.WithImpl(rel, impl)
	})
}
