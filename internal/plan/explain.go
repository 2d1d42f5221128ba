package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pql/internal/value"
)

// Explain renders a statement as an indented operator tree, one node per
// line, with impl tags and register slots:
//
//	query $sq1
//	  subquery $sq1 value=o@0.name
//	    filter[default] predicate=gt(o@0.qty, 1)
//	      scan[default] expr=global:orders as=o@0
//
// The output is deterministic: it depends only on the plan, never on
// catalog ids, so it is suitable for golden files and fingerprints.
func Explain(stmt Statement) string {
	p := &printer{}
	switch s := stmt.(type) {
	case *Query:
		p.line(0, "query "+p.rex(s.Root))
	case *Insert:
		p.line(0, fmt.Sprintf("insert target=%s source=%s", p.rex(s.Target), p.rex(s.Source)))
	case *Delete:
		l := fmt.Sprintf("delete target=%s as=%s", p.rex(s.Target), slotName(s.As, s.AsSlot))
		if s.Where != nil {
			l += " where=" + p.rex(s.Where)
		}
		p.line(0, l)
	}
	p.flushSubqueries(1)
	return p.b.String()
}

// ExplainRel renders a relational subtree. See Explain.
func ExplainRel(rel Rel) string {
	p := &printer{}
	p.rel(0, rel)
	return p.b.String()
}

// FormatRex renders a scalar expression on one line. Subqueries are
// abbreviated as "select(...)".
func FormatRex(rex Rex) string {
	p := &printer{inline: true}
	return p.rex(rex)
}

type printer struct {
	b       strings.Builder
	inline  bool
	sq      int
	pending []pendingSubquery
}

type pendingSubquery struct {
	name string
	sel  *Select
}

func (p *printer) line(depth int, s string) {
	p.b.WriteString(strings.Repeat("  ", depth))
	p.b.WriteString(s)
	p.b.WriteByte('\n')
}

func (p *printer) flushSubqueries(depth int) {
	pending := p.pending
	p.pending = nil
	for _, sq := range pending {
		l := "subquery " + sq.name
		if sq.sel.Scalar {
			l += " scalar"
		}
		p.line(depth, l+" value="+p.rex(sq.sel.Constructor))
		p.flushSubqueries(depth + 1)
		p.rel(depth+1, sq.sel.Input)
	}
}

func (p *printer) rel(depth int, rel Rel) {
	if rel == nil {
		p.line(depth, "<nil>")
		return
	}
	head := KindOf(rel).String() + "[" + ImplOf(rel) + "]"
	var attrs []string
	switch r := rel.(type) {
	case *Scan:
		attrs = append(attrs, "expr="+p.rex(r.Expr), "as="+slotName(r.As, r.AsSlot))
		if r.At != "" {
			attrs = append(attrs, "at="+slotName(r.At, r.AtSlot))
		}
	case *Filter:
		attrs = append(attrs, "predicate="+p.rex(r.Predicate))
	case *Project:
		items := make([]string, len(r.Items))
		for i, it := range r.Items {
			items[i] = slotName(it.Name, it.Slot) + " := " + p.rex(it.Expr)
		}
		attrs = append(attrs, "items=["+strings.Join(items, ", ")+"]")
	case *Join:
		attrs = append(attrs, "kind="+r.Kind.String())
		if r.On != nil {
			attrs = append(attrs, "on="+p.rex(r.On))
		}
	case *Aggregate:
		groups := make([]string, len(r.Groups))
		for i, g := range r.Groups {
			groups[i] = slotName(g.Name, g.Slot) + " := " + p.rex(g.Expr)
		}
		calls := make([]string, len(r.Calls))
		for i, c := range r.Calls {
			args := p.rexList(c.Args)
			if c.Quantifier == QuantifierDistinct {
				args = "distinct " + args
			}
			calls[i] = slotName(c.Output, c.Slot) + " := " + c.Name + "(" + args + ")"
		}
		attrs = append(attrs, "groups=["+strings.Join(groups, ", ")+"]", "calls=["+strings.Join(calls, ", ")+"]")
	case *Sort:
		attrs = append(attrs, "specs=["+p.sortSpecs(r.Specs)+"]")
		if r.Fetch != nil {
			attrs = append(attrs, "fetch="+p.rex(r.Fetch))
		}
	case *Limit:
		attrs = append(attrs, "count="+p.rex(r.Count))
	case *Offset:
		attrs = append(attrs, "count="+p.rex(r.Count))
	case *Exclude:
		paths := make([]string, len(r.Paths))
		for i, path := range r.Paths {
			paths[i] = formatExcludePath(path)
		}
		attrs = append(attrs, "paths=["+strings.Join(paths, ", ")+"]")
	case *Window:
		calls := make([]string, len(r.Calls))
		for i, c := range r.Calls {
			args := []string{p.rex(c.Expr)}
			if c.Offset != nil {
				args = append(args, p.rex(c.Offset))
			}
			if c.Default != nil {
				args = append(args, p.rex(c.Default))
			}
			calls[i] = slotName(c.Output, c.Slot) + " := " + c.Name + "(" + strings.Join(args, ", ") + ")"
		}
		attrs = append(attrs,
			"partition=["+p.rexList(r.PartitionBy)+"]",
			"order=["+p.sortSpecs(r.OrderBy)+"]",
			"calls=["+strings.Join(calls, ", ")+"]")
	}
	if len(attrs) > 0 {
		head += " " + strings.Join(attrs, " ")
	}
	p.line(depth, head)
	p.flushSubqueries(depth + 1)
	for _, in := range Inputs(rel) {
		p.rel(depth+1, in)
	}
}

func (p *printer) sortSpecs(specs []SortSpec) string {
	out := make([]string, len(specs))
	for i, s := range specs {
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		nulls := "nulls last"
		if s.NullsFirstFor() {
			nulls = "nulls first"
		}
		out[i] = p.rex(s.Expr) + " " + dir + " " + nulls
	}
	return strings.Join(out, ", ")
}

func (p *printer) rexList(list []Rex) string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = p.rex(r)
	}
	return strings.Join(out, ", ")
}

func (p *printer) rex(rex Rex) string {
	switch x := rex.(type) {
	case nil:
		return "<nil>"
	case *Lit:
		return value.Format(x.Value)
	case *Id:
		s := "id:" + x.Name.String()
		if x.Scoping == ScopeLexical {
			s = "@" + x.Name.String()
		}
		return s
	case *VarLocal:
		return slotName(x.Name, x.Slot)
	case *VarGlobal:
		return "global:" + x.Name
	case *Dynamic:
		locals := make([]string, len(x.Locals))
		for i, l := range x.Locals {
			locals[i] = slotName(l.Name, l.Slot)
		}
		return "dynamic(" + x.Name.String() + "; " + strings.Join(locals, ", ") + ")"
	case *Path:
		var b strings.Builder
		b.WriteString(p.rex(x.Root))
		for _, s := range x.Steps {
			switch st := s.(type) {
			case *FieldStep:
				b.WriteString("." + st.Name.String())
			case *IndexStep:
				b.WriteString("[" + p.rex(st.Index) + "]")
			}
		}
		return b.String()
	case *Call:
		return x.Name + "(" + p.rexList(x.Args) + ")"
	case *Struct:
		fields := make([]string, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = strconv.Quote(f.Name) + ": " + p.rex(f.Value)
		}
		return "{" + strings.Join(fields, ", ") + "}"
	case *Collection:
		if x.Kind == value.KindBag {
			return "<<" + p.rexList(x.Elems) + ">>"
		}
		return "[" + p.rexList(x.Elems) + "]"
	case *Select:
		if p.inline {
			return "select(" + p.rex(x.Constructor) + ")"
		}
		p.sq++
		name := "$sq" + strconv.Itoa(p.sq)
		p.pending = append(p.pending, pendingSubquery{name: name, sel: x})
		return name
	case *Cast:
		return "cast(" + p.rex(x.Operand) + " AS " + x.Kind.String() + ")"
	case *Case:
		var b strings.Builder
		b.WriteString("case(")
		for i, br := range x.Branches {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("when " + p.rex(br.When) + " then " + p.rex(br.Then))
		}
		if x.Else != nil {
			b.WriteString(" else " + p.rex(x.Else))
		}
		b.WriteByte(')')
		return b.String()
	}
	return fmt.Sprintf("<%T>", rex)
}

func slotName(name string, slot int) string {
	return name + "@" + strconv.Itoa(slot)
}

func formatExcludePath(path ExcludePath) string {
	var b strings.Builder
	b.WriteString(slotName(path.Root.String(), path.RootSlot))
	for _, s := range path.Steps {
		switch s.Kind {
		case StepField:
			b.WriteString("." + s.Name.String())
		case StepFieldWildcard:
			b.WriteString(".*")
		case StepIndex:
			b.WriteString("[" + strconv.Itoa(s.Index) + "]")
		case StepIndexWildcard:
			b.WriteString("[*]")
		}
	}
	return b.String()
}
