package plan

import "github.com/cockroachdb/errors"

// Rel is a relational-algebra node.
//
// This is a sealed interface - only types in this package implement it.
// Every Rel produces rows; a row is the set of register slots named by the
// node's Schema. Children are owned: a node is the only parent of its
// inputs.
type Rel interface {
	relNode() // Marker method - seals interface to this package
}

// RelKind identifies the operator kind of a Rel. Together with an impl
// name it keys the operator factory registry.
type RelKind uint8

const (
	KindScan RelKind = iota
	KindFilter
	KindProject
	KindJoin
	KindAggregate
	KindSort
	KindLimit
	KindOffset
	KindDistinct
	KindExclude
	KindWindow
)

var relKindNames = [...]string{
	KindScan:      "scan",
	KindFilter:    "filter",
	KindProject:   "project",
	KindJoin:      "join",
	KindAggregate: "aggregate",
	KindSort:      "sort",
	KindLimit:     "limit",
	KindOffset:    "offset",
	KindDistinct:  "distinct",
	KindExclude:   "exclude",
	KindWindow:    "window",
}

func (k RelKind) String() string {
	if int(k) < len(relKindNames) {
		return relKindNames[k]
	}
	return "unknown"
}

// ParseRelKind converts a lower-case kind name such as "sort" to a RelKind.
func ParseRelKind(s string) (RelKind, error) {
	for k, name := range relKindNames {
		if name == s {
			return RelKind(k), nil
		}
	}
	return 0, errors.Newf("unknown relational operator kind %q", s)
}

// RelKinds returns every relational kind in declaration order.
func RelKinds() []RelKind {
	out := make([]RelKind, len(relKindNames))
	for i := range relKindNames {
		out[i] = RelKind(i)
	}
	return out
}

// DefaultImpl is the impl name used for nodes without an explicit tag.
const DefaultImpl = "default"

// Scan iterates the elements of a collection-valued expression, binding
// each element to As and, for lists, its zero-based position to At.
//
// Expr is usually an Id naming a global table. Identifiers in this
// position resolve globals-then-locals.
type Scan struct {
	Expr   Rex
	As     string
	At     string // optional
	AsSlot int
	AtSlot int
	Impl   string
}

// Filter keeps rows for which Predicate is true.
type Filter struct {
	Input     Rel
	Predicate Rex
	Impl      string
}

// ProjectItem declares one output column of a Project.
type ProjectItem struct {
	Name string
	Expr Rex
	Slot int
}

// Project computes new columns. The input columns are not visible above a
// Project.
type Project struct {
	Input Rel
	Items []ProjectItem
	Impl  string
}

// JoinKind selects inner or left outer join semantics.
type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeft
)

func (k JoinKind) String() string {
	if k == JoinLeft {
		return "left"
	}
	return "inner"
}

// Join pairs each left row with the right rows for which On is true. The
// right input may reference the left input's columns (lateral join); it is
// re-opened for every left row. A nil On is true.
//
// For JoinLeft, a left row with no match is emitted once with every right
// column set to NULL.
type Join struct {
	Left  Rel
	Right Rel
	Kind  JoinKind
	On    Rex
	Impl  string
}

// GroupKey is one GROUP BY expression and its output column.
type GroupKey struct {
	Name string
	Expr Rex
	Slot int
}

// Quantifier selects whether an aggregate folds all values or only
// distinct ones.
type Quantifier uint8

const (
	QuantifierAll Quantifier = iota
	QuantifierDistinct
)

func (q Quantifier) String() string {
	if q == QuantifierDistinct {
		return "distinct"
	}
	return "all"
}

// AggCall is one aggregate function call and its output column.
type AggCall struct {
	Name       string
	Quantifier Quantifier
	Args       []Rex
	Output     string
	Slot       int
}

// Aggregate groups its input by Groups and folds Calls over each group.
// With no group keys it produces exactly one row, even for empty input.
type Aggregate struct {
	Input  Rel
	Groups []GroupKey
	Calls  []AggCall
	Impl   string
}

// NullOrder places unknowns before or after known values in a sort.
type NullOrder uint8

const (
	// NullsDefault is NULLS FIRST for ascending and NULLS LAST for
	// descending specs.
	NullsDefault NullOrder = iota
	NullsFirst
	NullsLast
)

// SortSpec is one ORDER BY key.
type SortSpec struct {
	Expr  Rex
	Desc  bool
	Nulls NullOrder
}

// NullsFirstFor resolves the default null placement of a spec.
func (s SortSpec) NullsFirstFor() bool {
	switch s.Nulls {
	case NullsFirst:
		return true
	case NullsLast:
		return false
	}
	return !s.Desc
}

// Sort orders its input stably by Specs. Fetch, when set by a rewrite,
// bounds the number of rows the sort must return.
type Sort struct {
	Input Rel
	Specs []SortSpec
	Fetch Rex
	Impl  string
}

// Limit passes at most Count rows.
type Limit struct {
	Input Rel
	Count Rex
	Impl  string
}

// Offset skips the first Count rows.
type Offset struct {
	Input Rel
	Count Rex
	Impl  string
}

// Distinct removes duplicate rows under structural equality.
type Distinct struct {
	Input Rel
	Impl  string
}

// ExcludeStepKind identifies the shape of an EXCLUDE path step.
type ExcludeStepKind uint8

const (
	StepField         ExcludeStepKind = iota // .name
	StepFieldWildcard                        // .*
	StepIndex                                // [i]
	StepIndexWildcard                        // [*]
)

// ExcludeStep is one step of an EXCLUDE path.
type ExcludeStep struct {
	Kind  ExcludeStepKind
	Name  BindingName // StepField only
	Index int         // StepIndex only
}

// ExcludePath removes the value at Steps below the column Root.
type ExcludePath struct {
	Root     BindingName
	RootSlot int
	Steps    []ExcludeStep
}

// Exclude rewrites the columns named by Paths, omitting the addressed
// fields and elements.
type Exclude struct {
	Input Rel
	Paths []ExcludePath
	Impl  string
}

// WindowCall is a navigation window function (lag or lead) and its output
// column. Offset defaults to 1 and Default to NULL when nil.
type WindowCall struct {
	Name    string
	Expr    Rex
	Offset  Rex
	Default Rex
	Output  string
	Slot    int
}

// Window partitions its input by PartitionBy, orders each partition by
// OrderBy and appends one column per call.
type Window struct {
	Input       Rel
	PartitionBy []Rex
	OrderBy     []SortSpec
	Calls       []WindowCall
	Impl        string
}

func (*Scan) relNode()      {}
func (*Filter) relNode()    {}
func (*Project) relNode()   {}
func (*Join) relNode()      {}
func (*Aggregate) relNode() {}
func (*Sort) relNode()      {}
func (*Limit) relNode()     {}
func (*Offset) relNode()    {}
func (*Distinct) relNode()  {}
func (*Exclude) relNode()   {}
func (*Window) relNode()    {}
