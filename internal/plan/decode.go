package plan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pql/internal/value"
)

// Plan documents are YAML. Every node is a single-key mapping whose key
// names the node type:
//
//	query:
//	  select:
//	    from:
//	      filter:
//	        input: {scan: {expr: {id: orders}, as: o}}
//	        predicate: {call: {name: gt, args: [{path: {root: {id: o}, steps: [qty]}}, {lit: 1}]}}
//	    value: {id: o}
//
// Mapping keys are checked strictly: an unknown key is an error, the way
// scenario files are decoded with KnownFields(true).

// DecodeStatement parses a YAML plan document.
func DecodeStatement(data []byte) (Statement, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse plan document")
	}
	return DecodeStatementNode(&doc)
}

// DecodeStatementNode decodes a statement from an already parsed node.
func DecodeStatementNode(node *yaml.Node) (Statement, error) {
	node = deref(node)
	if node == nil {
		return nil, errors.New("empty plan document")
	}
	kind, body, err := single(node)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "query":
		root, err := DecodeRex(body)
		if err != nil {
			return nil, errors.Wrap(err, "query")
		}
		return &Query{Root: root}, nil
	case "insert":
		m, err := fields(body, "target", "source")
		if err != nil {
			return nil, err
		}
		target, err := requiredRex(body, m, "target")
		if err != nil {
			return nil, err
		}
		source, err := requiredRex(body, m, "source")
		if err != nil {
			return nil, err
		}
		return &Insert{Target: target, Source: source}, nil
	case "delete":
		m, err := fields(body, "target", "as", "where")
		if err != nil {
			return nil, err
		}
		target, err := requiredRex(body, m, "target")
		if err != nil {
			return nil, err
		}
		where, err := optionalRex(m, "where")
		if err != nil {
			return nil, err
		}
		return &Delete{Target: target, As: str(m, "as"), Where: where}, nil
	}
	return nil, lineErr(node, "unknown statement %q", kind)
}

// DecodeRel decodes a relational node.
func DecodeRel(node *yaml.Node) (Rel, error) {
	node = deref(node)
	kind, body, err := single(node)
	if err != nil {
		return nil, err
	}
	rel, err := decodeRel(kind, body)
	if err != nil {
		return nil, errors.Wrap(err, kind)
	}
	return rel, nil
}

func decodeRel(kind string, body *yaml.Node) (Rel, error) {
	switch kind {
	case "scan":
		m, err := fields(body, "expr", "as", "at", "impl")
		if err != nil {
			return nil, err
		}
		expr, err := requiredRex(body, m, "expr")
		if err != nil {
			return nil, err
		}
		return &Scan{Expr: expr, As: str(m, "as"), At: str(m, "at"), Impl: str(m, "impl")}, nil

	case "filter":
		m, err := fields(body, "input", "predicate", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		pred, err := requiredRex(body, m, "predicate")
		if err != nil {
			return nil, err
		}
		return &Filter{Input: in, Predicate: pred, Impl: str(m, "impl")}, nil

	case "project":
		m, err := fields(body, "input", "items", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		var items []ProjectItem
		err = eachPair(m["items"], func(name string, v *yaml.Node) error {
			e, err := DecodeRex(v)
			if err != nil {
				return errors.Wrapf(err, "item %s", name)
			}
			items = append(items, ProjectItem{Name: name, Expr: e})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &Project{Input: in, Items: items, Impl: str(m, "impl")}, nil

	case "join":
		m, err := fields(body, "left", "right", "kind", "on", "impl")
		if err != nil {
			return nil, err
		}
		left, err := requiredRel(body, m, "left")
		if err != nil {
			return nil, err
		}
		right, err := requiredRel(body, m, "right")
		if err != nil {
			return nil, err
		}
		on, err := optionalRex(m, "on")
		if err != nil {
			return nil, err
		}
		j := &Join{Left: left, Right: right, On: on, Impl: str(m, "impl")}
		switch str(m, "kind") {
		case "", "inner":
		case "left":
			j.Kind = JoinLeft
		default:
			return nil, lineErr(m["kind"], "unknown join kind %q", str(m, "kind"))
		}
		return j, nil

	case "aggregate":
		m, err := fields(body, "input", "groups", "calls", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		agg := &Aggregate{Input: in, Impl: str(m, "impl")}
		err = eachPair(m["groups"], func(name string, v *yaml.Node) error {
			e, err := DecodeRex(v)
			if err != nil {
				return errors.Wrapf(err, "group %s", name)
			}
			agg.Groups = append(agg.Groups, GroupKey{Name: name, Expr: e})
			return nil
		})
		if err != nil {
			return nil, err
		}
		err = eachItem(m["calls"], func(i int, n *yaml.Node) error {
			cm, err := fields(n, "name", "distinct", "args", "as")
			if err != nil {
				return err
			}
			args, err := rexList(cm["args"])
			if err != nil {
				return errors.Wrapf(err, "call %d", i)
			}
			call := AggCall{Name: strings.ToLower(str(cm, "name")), Args: args, Output: str(cm, "as")}
			if flag(cm, "distinct") {
				call.Quantifier = QuantifierDistinct
			}
			agg.Calls = append(agg.Calls, call)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return agg, nil

	case "sort":
		m, err := fields(body, "input", "specs", "fetch", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		specs, err := sortSpecs(m["specs"])
		if err != nil {
			return nil, err
		}
		fetch, err := optionalRex(m, "fetch")
		if err != nil {
			return nil, err
		}
		return &Sort{Input: in, Specs: specs, Fetch: fetch, Impl: str(m, "impl")}, nil

	case "limit", "offset":
		m, err := fields(body, "input", "count", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		count, err := optionalRex(m, "count")
		if err != nil {
			return nil, err
		}
		if kind == "limit" {
			return &Limit{Input: in, Count: count, Impl: str(m, "impl")}, nil
		}
		return &Offset{Input: in, Count: count, Impl: str(m, "impl")}, nil

	case "distinct":
		m, err := fields(body, "input", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		return &Distinct{Input: in, Impl: str(m, "impl")}, nil

	case "exclude":
		m, err := fields(body, "input", "paths", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		ex := &Exclude{Input: in, Impl: str(m, "impl")}
		err = eachItem(m["paths"], func(i int, n *yaml.Node) error {
			pm, err := fields(n, "root", "case", "steps")
			if err != nil {
				return err
			}
			path := ExcludePath{Root: BindingName{Name: str(pm, "root"), Case: casing(pm)}}
			err = eachItem(pm["steps"], func(_ int, sn *yaml.Node) error {
				step, err := excludeStep(sn)
				if err != nil {
					return err
				}
				path.Steps = append(path.Steps, step)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "path %d", i)
			}
			ex.Paths = append(ex.Paths, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ex, nil

	case "window":
		m, err := fields(body, "input", "partition", "order", "calls", "impl")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "input")
		if err != nil {
			return nil, err
		}
		part, err := rexList(m["partition"])
		if err != nil {
			return nil, errors.Wrap(err, "partition")
		}
		order, err := sortSpecs(m["order"])
		if err != nil {
			return nil, err
		}
		w := &Window{Input: in, PartitionBy: part, OrderBy: order, Impl: str(m, "impl")}
		err = eachItem(m["calls"], func(i int, n *yaml.Node) error {
			cm, err := fields(n, "name", "expr", "offset", "default", "as")
			if err != nil {
				return err
			}
			call := WindowCall{Name: strings.ToLower(str(cm, "name")), Output: str(cm, "as")}
			if call.Expr, err = requiredRex(n, cm, "expr"); err != nil {
				return err
			}
			if call.Offset, err = optionalRex(cm, "offset"); err != nil {
				return err
			}
			if call.Default, err = optionalRex(cm, "default"); err != nil {
				return err
			}
			w.Calls = append(w.Calls, call)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, lineErr(body, "unknown relational node %q", kind)
}

// DecodeRex decodes a scalar expression node. A bare scalar (not a
// mapping) is shorthand for a literal.
func DecodeRex(node *yaml.Node) (Rex, error) {
	node = deref(node)
	if node == nil {
		return nil, errors.New("expression is required")
	}
	if node.Kind != yaml.MappingNode {
		v, err := value.FromYAML(node)
		if err != nil {
			return nil, err
		}
		return &Lit{Value: v}, nil
	}
	kind, body, err := single(node)
	if err != nil {
		return nil, err
	}
	rex, err := decodeRex(kind, body)
	if err != nil {
		return nil, errors.Wrap(err, kind)
	}
	return rex, nil
}

func decodeRex(kind string, body *yaml.Node) (Rex, error) {
	switch kind {
	case "lit":
		v, err := value.FromYAML(body)
		if err != nil {
			return nil, err
		}
		return &Lit{Value: v}, nil

	case "id":
		if body.Kind == yaml.ScalarNode {
			return &Id{Name: Insensitive(body.Value)}, nil
		}
		m, err := fields(body, "name", "case", "lexical")
		if err != nil {
			return nil, err
		}
		id := &Id{Name: BindingName{Name: str(m, "name"), Case: casing(m)}}
		if flag(m, "lexical") {
			id.Scoping = ScopeLexical
		}
		return id, nil

	case "path":
		m, err := fields(body, "root", "steps")
		if err != nil {
			return nil, err
		}
		root, err := requiredRex(body, m, "root")
		if err != nil {
			return nil, err
		}
		p := &Path{Root: root}
		err = eachItem(m["steps"], func(i int, n *yaml.Node) error {
			step, err := pathStep(n)
			if err != nil {
				return errors.Wrapf(err, "step %d", i)
			}
			p.Steps = append(p.Steps, step)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case "call":
		m, err := fields(body, "name", "args")
		if err != nil {
			return nil, err
		}
		args, err := rexList(m["args"])
		if err != nil {
			return nil, err
		}
		return &Call{Name: strings.ToLower(str(m, "name")), Args: args}, nil

	case "struct":
		s := &Struct{}
		err := eachPair(body, func(name string, v *yaml.Node) error {
			e, err := DecodeRex(v)
			if err != nil {
				return errors.Wrapf(err, "field %s", name)
			}
			s.Fields = append(s.Fields, StructField{Name: name, Value: e})
			return nil
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case "list", "bag":
		elems, err := rexList(body)
		if err != nil {
			return nil, err
		}
		k := value.KindList
		if kind == "bag" {
			k = value.KindBag
		}
		return &Collection{Kind: k, Elems: elems}, nil

	case "select":
		m, err := fields(body, "from", "value", "scalar")
		if err != nil {
			return nil, err
		}
		in, err := requiredRel(body, m, "from")
		if err != nil {
			return nil, err
		}
		ctor, err := requiredRex(body, m, "value")
		if err != nil {
			return nil, err
		}
		return &Select{Input: in, Constructor: ctor, Scalar: flag(m, "scalar")}, nil

	case "cast":
		m, err := fields(body, "operand", "kind")
		if err != nil {
			return nil, err
		}
		op, err := requiredRex(body, m, "operand")
		if err != nil {
			return nil, err
		}
		k, err := value.ParseKind(str(m, "kind"))
		if err != nil {
			return nil, lineErr(m["kind"], "%v", err)
		}
		return &Cast{Operand: op, Kind: k}, nil

	case "case":
		m, err := fields(body, "branches", "else")
		if err != nil {
			return nil, err
		}
		c := &Case{}
		err = eachItem(m["branches"], func(i int, n *yaml.Node) error {
			bm, err := fields(n, "when", "then")
			if err != nil {
				return err
			}
			when, err := requiredRex(n, bm, "when")
			if err != nil {
				return err
			}
			then, err := requiredRex(n, bm, "then")
			if err != nil {
				return err
			}
			c.Branches = append(c.Branches, Branch{When: when, Then: then})
			return nil
		})
		if err != nil {
			return nil, err
		}
		if c.Else, err = optionalRex(m, "else"); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, lineErr(body, "unknown expression node %q", kind)
}

func pathStep(n *yaml.Node) (PathStep, error) {
	n = deref(n)
	if n.Kind == yaml.ScalarNode {
		return &FieldStep{Name: Insensitive(n.Value)}, nil
	}
	m, err := fields(n, "field", "case", "index")
	if err != nil {
		return nil, err
	}
	if idx, ok := m["index"]; ok {
		e, err := DecodeRex(idx)
		if err != nil {
			return nil, err
		}
		return &IndexStep{Index: e}, nil
	}
	return &FieldStep{Name: BindingName{Name: str(m, "field"), Case: casing(m)}}, nil
}

var indexStepRE = regexp.MustCompile(`^\[(\d+|\*)\]$`)

func excludeStep(n *yaml.Node) (ExcludeStep, error) {
	n = deref(n)
	if n.Kind == yaml.ScalarNode {
		s := n.Value
		if s == "*" {
			return ExcludeStep{Kind: StepFieldWildcard}, nil
		}
		if m := indexStepRE.FindStringSubmatch(s); m != nil {
			if m[1] == "*" {
				return ExcludeStep{Kind: StepIndexWildcard}, nil
			}
			i, err := strconv.Atoi(m[1])
			if err != nil {
				return ExcludeStep{}, lineErr(n, "invalid index %q", s)
			}
			return ExcludeStep{Kind: StepIndex, Index: i}, nil
		}
		return ExcludeStep{Kind: StepField, Name: Insensitive(s)}, nil
	}
	m, err := fields(n, "field", "case")
	if err != nil {
		return ExcludeStep{}, err
	}
	return ExcludeStep{Kind: StepField, Name: BindingName{Name: str(m, "field"), Case: casing(m)}}, nil
}

func sortSpecs(n *yaml.Node) ([]SortSpec, error) {
	var specs []SortSpec
	err := eachItem(n, func(i int, sn *yaml.Node) error {
		m, err := fields(sn, "expr", "desc", "nulls")
		if err != nil {
			return err
		}
		e, err := requiredRex(sn, m, "expr")
		if err != nil {
			return errors.Wrapf(err, "spec %d", i)
		}
		spec := SortSpec{Expr: e, Desc: flag(m, "desc")}
		switch str(m, "nulls") {
		case "":
		case "first":
			spec.Nulls = NullsFirst
		case "last":
			spec.Nulls = NullsLast
		default:
			return lineErr(m["nulls"], "nulls must be first or last")
		}
		specs = append(specs, spec)
		return nil
	})
	return specs, err
}

func rexList(n *yaml.Node) ([]Rex, error) {
	var out []Rex
	err := eachItem(n, func(i int, en *yaml.Node) error {
		e, err := DecodeRex(en)
		if err != nil {
			return errors.Wrapf(err, "[%d]", i)
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// YAML helpers

func deref(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func lineErr(n *yaml.Node, format string, args ...any) error {
	err := errors.Newf(format, args...)
	if n != nil && n.Line > 0 {
		return errors.Wrapf(err, "line %d", n.Line)
	}
	return err
}

// single unpacks a one-key mapping into its key and value.
func single(n *yaml.Node) (string, *yaml.Node, error) {
	if n == nil || n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, lineErr(n, "expected a single-key mapping")
	}
	return n.Content[0].Value, deref(n.Content[1]), nil
}

// fields returns the values of a mapping by key, rejecting keys outside
// allowed.
func fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, lineErr(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		ok := false
		for _, a := range allowed {
			if a == key {
				ok = true
				break
			}
		}
		if !ok {
			return nil, lineErr(n.Content[i], "field %s not allowed (expected one of %s)", key, strings.Join(allowed, ", "))
		}
		out[key] = deref(n.Content[i+1])
	}
	return out, nil
}

func eachItem(n *yaml.Node, fn func(int, *yaml.Node) error) error {
	n = deref(n)
	if n == nil {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return lineErr(n, "expected a sequence")
	}
	for i, c := range n.Content {
		if err := fn(i, c); err != nil {
			return err
		}
	}
	return nil
}

func eachPair(n *yaml.Node, fn func(string, *yaml.Node) error) error {
	n = deref(n)
	if n == nil {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return lineErr(n, "expected a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func str(m map[string]*yaml.Node, key string) string {
	if n, ok := m[key]; ok && n != nil {
		return n.Value
	}
	return ""
}

func flag(m map[string]*yaml.Node, key string) bool {
	b, _ := strconv.ParseBool(str(m, key))
	return b
}

func casing(m map[string]*yaml.Node) Casing {
	if str(m, "case") == "sensitive" {
		return CaseSensitive
	}
	return CaseInsensitive
}

func requiredRex(parent *yaml.Node, m map[string]*yaml.Node, key string) (Rex, error) {
	n, ok := m[key]
	if !ok {
		return nil, lineErr(parent, "field %s is required", key)
	}
	e, err := DecodeRex(n)
	if err != nil {
		return nil, errors.Wrap(err, key)
	}
	return e, nil
}

func optionalRex(m map[string]*yaml.Node, key string) (Rex, error) {
	n, ok := m[key]
	if !ok {
		return nil, nil
	}
	e, err := DecodeRex(n)
	if err != nil {
		return nil, errors.Wrap(err, key)
	}
	return e, nil
}

func requiredRel(parent *yaml.Node, m map[string]*yaml.Node, key string) (Rel, error) {
	n, ok := m[key]
	if !ok {
		return nil, lineErr(parent, "field %s is required", key)
	}
	r, err := DecodeRel(n)
	if err != nil {
		return nil, errors.Wrap(err, key)
	}
	return r, nil
}
