package plan

// Column is one entry of a node's output schema.
type Column struct {
	Name string
	Slot int
}

// KindOf returns the operator kind of rel.
func KindOf(rel Rel) RelKind {
	switch rel.(type) {
	case *Scan:
		return KindScan
	case *Filter:
		return KindFilter
	case *Project:
		return KindProject
	case *Join:
		return KindJoin
	case *Aggregate:
		return KindAggregate
	case *Sort:
		return KindSort
	case *Limit:
		return KindLimit
	case *Offset:
		return KindOffset
	case *Distinct:
		return KindDistinct
	case *Exclude:
		return KindExclude
	case *Window:
		return KindWindow
	}
	panic("plan: unknown Rel type")
}

// ImplOf returns rel's impl tag, or DefaultImpl when untagged.
func ImplOf(rel Rel) string {
	var impl string
	switch r := rel.(type) {
	case *Scan:
		impl = r.Impl
	case *Filter:
		impl = r.Impl
	case *Project:
		impl = r.Impl
	case *Join:
		impl = r.Impl
	case *Aggregate:
		impl = r.Impl
	case *Sort:
		impl = r.Impl
	case *Limit:
		impl = r.Impl
	case *Offset:
		impl = r.Impl
	case *Distinct:
		impl = r.Impl
	case *Exclude:
		impl = r.Impl
	case *Window:
		impl = r.Impl
	}
	if impl == "" {
		return DefaultImpl
	}
	return impl
}

// WithImpl returns a shallow copy of rel tagged with impl.
func WithImpl(rel Rel, impl string) Rel {
	switch r := rel.(type) {
	case *Scan:
		c := *r
		c.Impl = impl
		return &c
	case *Filter:
		c := *r
		c.Impl = impl
		return &c
	case *Project:
		c := *r
		c.Impl = impl
		return &c
	case *Join:
		c := *r
		c.Impl = impl
		return &c
	case *Aggregate:
		c := *r
		c.Impl = impl
		return &c
	case *Sort:
		c := *r
		c.Impl = impl
		return &c
	case *Limit:
		c := *r
		c.Impl = impl
		return &c
	case *Offset:
		c := *r
		c.Impl = impl
		return &c
	case *Distinct:
		c := *r
		c.Impl = impl
		return &c
	case *Exclude:
		c := *r
		c.Impl = impl
		return &c
	case *Window:
		c := *r
		c.Impl = impl
		return &c
	}
	return rel
}

// Inputs returns the child nodes of rel in order.
func Inputs(rel Rel) []Rel {
	switch r := rel.(type) {
	case *Scan:
		return nil
	case *Filter:
		return []Rel{r.Input}
	case *Project:
		return []Rel{r.Input}
	case *Join:
		return []Rel{r.Left, r.Right}
	case *Aggregate:
		return []Rel{r.Input}
	case *Sort:
		return []Rel{r.Input}
	case *Limit:
		return []Rel{r.Input}
	case *Offset:
		return []Rel{r.Input}
	case *Distinct:
		return []Rel{r.Input}
	case *Exclude:
		return []Rel{r.Input}
	case *Window:
		return []Rel{r.Input}
	}
	return nil
}

// WithInputs returns a shallow copy of rel with its children replaced.
// len(inputs) must equal len(Inputs(rel)).
func WithInputs(rel Rel, inputs []Rel) Rel {
	switch r := rel.(type) {
	case *Scan:
		return r
	case *Filter:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Project:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Join:
		c := *r
		c.Left, c.Right = inputs[0], inputs[1]
		return &c
	case *Aggregate:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Sort:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Limit:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Offset:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Distinct:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Exclude:
		c := *r
		c.Input = inputs[0]
		return &c
	case *Window:
		c := *r
		c.Input = inputs[0]
		return &c
	}
	return rel
}

// Schema returns the ordered output columns of rel. Slots are meaningful
// only after resolution.
func Schema(rel Rel) []Column {
	switch r := rel.(type) {
	case *Scan:
		cols := []Column{{Name: r.As, Slot: r.AsSlot}}
		if r.At != "" {
			cols = append(cols, Column{Name: r.At, Slot: r.AtSlot})
		}
		return cols
	case *Project:
		cols := make([]Column, len(r.Items))
		for i, it := range r.Items {
			cols[i] = Column{Name: it.Name, Slot: it.Slot}
		}
		return cols
	case *Join:
		left := Schema(r.Left)
		right := Schema(r.Right)
		return append(left[:len(left):len(left)], right...)
	case *Aggregate:
		cols := make([]Column, 0, len(r.Groups)+len(r.Calls))
		for _, g := range r.Groups {
			cols = append(cols, Column{Name: g.Name, Slot: g.Slot})
		}
		for _, c := range r.Calls {
			cols = append(cols, Column{Name: c.Output, Slot: c.Slot})
		}
		return cols
	case *Window:
		in := Schema(r.Input)
		cols := in[:len(in):len(in)]
		for _, c := range r.Calls {
			cols = append(cols, Column{Name: c.Output, Slot: c.Slot})
		}
		return cols
	}
	if in := Inputs(rel); len(in) == 1 {
		return Schema(in[0])
	}
	return nil
}

// Slots returns the register slots of rel's schema.
func Slots(rel Rel) []int {
	cols := Schema(rel)
	out := make([]int, len(cols))
	for i, c := range cols {
		out[i] = c.Slot
	}
	return out
}

// Ordered reports whether rel produces rows in a defined order: a Sort,
// possibly beneath order-preserving nodes.
func Ordered(rel Rel) bool {
	switch r := rel.(type) {
	case *Sort:
		return true
	case *Limit:
		return Ordered(r.Input)
	case *Offset:
		return Ordered(r.Input)
	case *Project:
		return Ordered(r.Input)
	case *Filter:
		return Ordered(r.Input)
	case *Exclude:
		return Ordered(r.Input)
	}
	return false
}

// Transform rebuilds rel bottom-up, calling fn on every relational node
// after its children have been transformed. Select subqueries inside a
// node's scalar operands are transformed too. Nodes are copied only when something below them
// changed or fn returns a different node.
func Transform(rel Rel, fn func(Rel) Rel) Rel {
	rel = transformOperands(rel, fn)
	inputs := Inputs(rel)
	if len(inputs) > 0 {
		changed := false
		next := make([]Rel, len(inputs))
		for i, in := range inputs {
			next[i] = Transform(in, fn)
			if next[i] != in {
				changed = true
			}
		}
		if changed {
			rel = WithInputs(rel, next)
		}
	}
	return fn(rel)
}

// TransformRex applies Transform to every Select input reachable from rex.
func TransformRex(rex Rex, fn func(Rel) Rel) Rex {
	switch x := rex.(type) {
	case *Select:
		in := Transform(x.Input, fn)
		ctor := TransformRex(x.Constructor, fn)
		if in == x.Input && ctor == x.Constructor {
			return x
		}
		return &Select{Input: in, Constructor: ctor, Scalar: x.Scalar}
	case *Path:
		root := TransformRex(x.Root, fn)
		changed := root != x.Root
		steps := make([]PathStep, len(x.Steps))
		for i, s := range x.Steps {
			steps[i] = s
			if is, ok := s.(*IndexStep); ok {
				idx := TransformRex(is.Index, fn)
				if idx != is.Index {
					steps[i] = &IndexStep{Index: idx}
					changed = true
				}
			}
		}
		if !changed {
			return x
		}
		return &Path{Root: root, Steps: steps}
	case *Call:
		args, changed := transformRexList(x.Args, fn)
		if !changed {
			return x
		}
		return &Call{Name: x.Name, Args: args}
	case *Struct:
		changed := false
		fields := make([]StructField, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = StructField{Name: f.Name, Value: TransformRex(f.Value, fn)}
			changed = changed || fields[i].Value != f.Value
		}
		if !changed {
			return x
		}
		return &Struct{Fields: fields}
	case *Collection:
		elems, changed := transformRexList(x.Elems, fn)
		if !changed {
			return x
		}
		return &Collection{Kind: x.Kind, Elems: elems}
	case *Cast:
		op := TransformRex(x.Operand, fn)
		if op == x.Operand {
			return x
		}
		return &Cast{Operand: op, Kind: x.Kind}
	case *Case:
		changed := false
		branches := make([]Branch, len(x.Branches))
		for i, b := range x.Branches {
			branches[i] = Branch{When: TransformRex(b.When, fn), Then: TransformRex(b.Then, fn)}
			changed = changed || branches[i].When != b.When || branches[i].Then != b.Then
		}
		var els Rex
		if x.Else != nil {
			els = TransformRex(x.Else, fn)
			changed = changed || els != x.Else
		}
		if !changed {
			return x
		}
		return &Case{Branches: branches, Else: els}
	}
	return rex
}

func transformRexList(list []Rex, fn func(Rel) Rel) ([]Rex, bool) {
	changed := false
	out := make([]Rex, len(list))
	for i, r := range list {
		out[i] = TransformRex(r, fn)
		changed = changed || out[i] != r
	}
	return out, changed
}

// transformOperands rewrites the Select subqueries inside rel's own
// scalar operands.
func transformOperands(rel Rel, fn func(Rel) Rel) Rel {
	switch r := rel.(type) {
	case *Scan:
		if e := TransformRex(r.Expr, fn); e != r.Expr {
			c := *r
			c.Expr = e
			return &c
		}
	case *Filter:
		if p := TransformRex(r.Predicate, fn); p != r.Predicate {
			c := *r
			c.Predicate = p
			return &c
		}
	case *Project:
		changed := false
		items := make([]ProjectItem, len(r.Items))
		for i, it := range r.Items {
			items[i] = it
			items[i].Expr = TransformRex(it.Expr, fn)
			changed = changed || items[i].Expr != it.Expr
		}
		if changed {
			c := *r
			c.Items = items
			return &c
		}
	case *Join:
		if r.On != nil {
			if on := TransformRex(r.On, fn); on != r.On {
				c := *r
				c.On = on
				return &c
			}
		}
	case *Aggregate:
		changed := false
		groups := make([]GroupKey, len(r.Groups))
		for i, g := range r.Groups {
			groups[i] = g
			groups[i].Expr = TransformRex(g.Expr, fn)
			changed = changed || groups[i].Expr != g.Expr
		}
		calls := make([]AggCall, len(r.Calls))
		for i, call := range r.Calls {
			calls[i] = call
			args, argsChanged := transformRexList(call.Args, fn)
			if argsChanged {
				calls[i].Args = args
				changed = true
			}
		}
		if changed {
			c := *r
			c.Groups, c.Calls = groups, calls
			return &c
		}
	case *Window:
		partition, changed := transformRexList(r.PartitionBy, fn)
		order, orderChanged := transformSortSpecs(r.OrderBy, fn)
		changed = changed || orderChanged
		calls := make([]WindowCall, len(r.Calls))
		for i, call := range r.Calls {
			calls[i] = call
			calls[i].Expr = TransformRex(call.Expr, fn)
			calls[i].Offset = TransformRex(call.Offset, fn)
			calls[i].Default = TransformRex(call.Default, fn)
			changed = changed || calls[i].Expr != call.Expr ||
				calls[i].Offset != call.Offset || calls[i].Default != call.Default
		}
		if changed {
			c := *r
			c.PartitionBy, c.OrderBy, c.Calls = partition, order, calls
			return &c
		}
	case *Sort:
		specs, changed := transformSortSpecs(r.Specs, fn)
		fetch := TransformRex(r.Fetch, fn)
		if changed || fetch != r.Fetch {
			c := *r
			c.Specs, c.Fetch = specs, fetch
			return &c
		}
	case *Limit:
		if n := TransformRex(r.Count, fn); n != r.Count {
			c := *r
			c.Count = n
			return &c
		}
	case *Offset:
		if n := TransformRex(r.Count, fn); n != r.Count {
			c := *r
			c.Count = n
			return &c
		}
	}
	return rel
}

func transformSortSpecs(specs []SortSpec, fn func(Rel) Rel) ([]SortSpec, bool) {
	changed := false
	out := make([]SortSpec, len(specs))
	for i, s := range specs {
		out[i] = s
		out[i].Expr = TransformRex(s.Expr, fn)
		changed = changed || out[i].Expr != s.Expr
	}
	return out, changed
}
