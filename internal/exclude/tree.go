// Package exclude compiles EXCLUDE paths into a compacted tree and applies
// it to values.
//
// Redundant paths are removed when they are inserted: a wildcard leaf
// subsumes every specific sibling of the same container kind, and a path
// below an excluded step is dropped. Insertion order does not matter:
//
//	a.b then a.*  ==  a.*  ==  a.* then a.b
package exclude

import (
	"sort"

	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// StepKind is the shape of one step.
type StepKind uint8

const (
	Field StepKind = iota
	FieldWildcard
	Index
	IndexWildcard
)

// Step is one level of an exclude path. Steps are comparable; a
// case-insensitive field step holds its folded name.
type Step struct {
	Kind      StepKind
	Name      string
	Sensitive bool
	Index     int
}

// FieldStep returns a struct field step.
func FieldStep(name plan.BindingName) Step {
	if name.Case == plan.CaseSensitive {
		return Step{Kind: Field, Name: name.Name, Sensitive: true}
	}
	return Step{Kind: Field, Name: value.FoldName(name.Name)}
}

// FromPlan converts plan steps.
func FromPlan(steps []plan.ExcludeStep) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		switch s.Kind {
		case plan.StepField:
			out[i] = FieldStep(s.Name)
		case plan.StepFieldWildcard:
			out[i] = Step{Kind: FieldWildcard}
		case plan.StepIndex:
			out[i] = Step{Kind: Index, Index: s.Index}
		case plan.StepIndexWildcard:
			out[i] = Step{Kind: IndexWildcard}
		}
	}
	return out
}

func (s Step) wildcard() bool {
	return s.Kind == FieldWildcard || s.Kind == IndexWildcard
}

// onStruct reports whether the step addresses struct fields.
func (s Step) onStruct() bool {
	return s.Kind == Field || s.Kind == FieldWildcard
}

func (s Step) less(o Step) bool {
	if s.Kind != o.Kind {
		return s.Kind < o.Kind
	}
	if s.Name != o.Name {
		return s.Name < o.Name
	}
	if s.Sensitive != o.Sensitive {
		return !s.Sensitive
	}
	return s.Index < o.Index
}

// Node is one level of the compacted tree.
type Node struct {
	Leaves   map[Step]struct{}
	Branches map[Step]*Node
}

// NewNode returns an empty node.
func NewNode() *Node {
	return &Node{Leaves: map[Step]struct{}{}, Branches: map[Step]*Node{}}
}

// Insert adds one path. An empty path is ignored.
func (n *Node) Insert(steps []Step) {
	if len(steps) == 0 {
		return
	}
	head, rest := steps[0], steps[1:]
	if n.subsumed(head) {
		return
	}
	if len(rest) > 0 {
		branch, ok := n.Branches[head]
		if !ok {
			branch = NewNode()
			n.Branches[head] = branch
		}
		branch.Insert(rest)
		return
	}

	if head.wildcard() {
		for s := range n.Leaves {
			if s.onStruct() == head.onStruct() {
				delete(n.Leaves, s)
			}
		}
		for s := range n.Branches {
			if s.onStruct() == head.onStruct() {
				delete(n.Branches, s)
			}
		}
	} else {
		delete(n.Branches, head)
		if head.Kind == Field && !head.Sensitive {
			// A case-insensitive field covers its case-sensitive spellings.
			for s := range n.Leaves {
				if s.Kind == Field && s.Sensitive && value.FoldName(s.Name) == head.Name {
					delete(n.Leaves, s)
				}
			}
			for s := range n.Branches {
				if s.Kind == Field && s.Sensitive && value.FoldName(s.Name) == head.Name {
					delete(n.Branches, s)
				}
			}
		}
	}
	n.Leaves[head] = struct{}{}
}

// subsumed reports whether a leaf already excludes everything below s.
func (n *Node) subsumed(s Step) bool {
	if _, ok := n.Leaves[s]; ok {
		return true
	}
	switch s.Kind {
	case Field:
		if _, ok := n.Leaves[Step{Kind: FieldWildcard}]; ok {
			return true
		}
		if s.Sensitive {
			_, ok := n.Leaves[Step{Kind: Field, Name: value.FoldName(s.Name)}]
			return ok
		}
	case Index:
		_, ok := n.Leaves[Step{Kind: IndexWildcard}]
		return ok
	}
	return false
}

// Empty reports whether the node excludes nothing.
func (n *Node) Empty() bool {
	return len(n.Leaves) == 0 && len(n.Branches) == 0
}

// Paths lists the compacted paths in a deterministic order.
func (n *Node) Paths() [][]Step {
	var out [][]Step
	for _, s := range sortedSteps(n.Leaves) {
		out = append(out, []Step{s})
	}
	for _, s := range sortedBranchSteps(n.Branches) {
		for _, p := range n.Branches[s].Paths() {
			out = append(out, append([]Step{s}, p...))
		}
	}
	return out
}

func sortedSteps(m map[Step]struct{}) []Step {
	out := make([]Step, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func sortedBranchSteps(m map[Step]*Node) []Step {
	out := make([]Step, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
