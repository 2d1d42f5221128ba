package exclude

import "github.com/roach88/pql/internal/value"

// Apply returns v without the values the tree excludes. v is not
// modified. Values of a kind a level does not address pass through.
func (n *Node) Apply(v value.Value) value.Value {
	if n.Empty() {
		return v
	}
	switch c := v.(type) {
	case value.Struct:
		return n.applyStruct(c)
	case value.List:
		return value.List(n.applyElems(c, true))
	case value.Bag:
		return value.Bag(n.applyElems(c, false))
	}
	return v
}

func (n *Node) applyStruct(s value.Struct) value.Value {
	if _, ok := n.Leaves[Step{Kind: FieldWildcard}]; ok {
		return value.Struct{}
	}
	wild := n.Branches[Step{Kind: FieldWildcard}]
	out := make(value.Struct, 0, len(s))
	for _, f := range s {
		sensitive := Step{Kind: Field, Name: f.Name, Sensitive: true}
		folded := Step{Kind: Field, Name: value.FoldName(f.Name)}
		if n.hasLeaf(sensitive) || n.hasLeaf(folded) {
			continue
		}
		fv := f.Value
		if b, ok := n.Branches[folded]; ok {
			fv = b.Apply(fv)
		}
		if b, ok := n.Branches[sensitive]; ok {
			fv = b.Apply(fv)
		}
		if wild != nil {
			fv = wild.Apply(fv)
		}
		out = append(out, value.Field{Name: f.Name, Value: fv})
	}
	return out
}

// applyElems filters collection elements. Index steps address list
// positions only; a bag has no positions.
func (n *Node) applyElems(elems []value.Value, positional bool) []value.Value {
	if _, ok := n.Leaves[Step{Kind: IndexWildcard}]; ok {
		return []value.Value{}
	}
	wild := n.Branches[Step{Kind: IndexWildcard}]
	out := make([]value.Value, 0, len(elems))
	for i, e := range elems {
		if positional {
			step := Step{Kind: Index, Index: i}
			if n.hasLeaf(step) {
				continue
			}
			if b, ok := n.Branches[step]; ok {
				e = b.Apply(e)
			}
		}
		if wild != nil {
			e = wild.Apply(e)
		}
		out = append(out, e)
	}
	return out
}

func (n *Node) hasLeaf(s Step) bool {
	_, ok := n.Leaves[s]
	return ok
}
