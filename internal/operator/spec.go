package operator

import (
	"github.com/roach88/pql/internal/agg"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/exclude"
	"github.com/roach88/pql/internal/plan"
)

// Spec is the compiled form of one relational node handed to a factory:
// its children are already operators and its expressions are thunks.
//
// This is a sealed interface - only the *XSpec types in this package
// implement it.
type Spec interface {
	spec() // Marker method - seals interface to this package
}

// ScanSpec iterates the collection Expr evaluates to.
type ScanSpec struct {
	// Node is the physical plan node, for factories that read its source
	// directly (for example a table scan keyed by global id).
	Node   *plan.Scan
	Expr   eval.Expr
	AsSlot int
	AtSlot int
	HasAt  bool
}

// FilterSpec passes the rows for which Predicate is true.
type FilterSpec struct {
	Input     eval.Rows
	Predicate eval.Expr
}

// Assignment writes one computed value into a slot.
type Assignment struct {
	Slot int
	Expr eval.Expr
}

// ProjectSpec computes one slot per item.
type ProjectSpec struct {
	Input eval.Rows
	Items []Assignment
}

// JoinSpec is a lateral nested-loop join. Right is opened once per left
// row. RightSlots are padded with NULL for unmatched rows of a LEFT join.
type JoinSpec struct {
	Left       eval.Rows
	Right      eval.Rows
	Kind       plan.JoinKind
	On         eval.Expr // nil means true
	RightSlots []int
}

// AggregateCall is one accumulator and its output slot.
type AggregateCall struct {
	Name       string
	Slot       int
	Factory    agg.Factory
	Quantifier plan.Quantifier
	Arg        eval.Expr // nil for COUNT(*)
}

// AggregateSpec groups its input and folds each call per group.
type AggregateSpec struct {
	Input  eval.Rows
	Groups []Assignment
	Calls  []AggregateCall
}

// SortKey is one compiled ordering key.
type SortKey struct {
	Expr       eval.Expr
	Desc       bool
	NullsFirst bool
}

// SortSpec orders its input. Slots are the input columns carried through.
type SortSpec struct {
	Input eval.Rows
	Keys  []SortKey
	Fetch eval.Expr // nil means all rows
	Slots []int
}

// LimitSpec passes at most Count rows.
type LimitSpec struct {
	Input eval.Rows
	Count eval.Expr
}

// OffsetSpec skips Count rows.
type OffsetSpec struct {
	Input eval.Rows
	Count eval.Expr
}

// DistinctSpec removes rows whose Slots are structurally equal to an
// earlier row.
type DistinctSpec struct {
	Input eval.Rows
	Slots []int
}

// Exclusion is the compacted exclude tree of one column.
type Exclusion struct {
	Slot int
	Tree *exclude.Node
}

// ExcludeSpec rewrites columns through their exclusion trees.
type ExcludeSpec struct {
	Input      eval.Rows
	Exclusions []Exclusion
}

// WindowCall is one compiled navigation function.
type WindowCall struct {
	Name    string
	Slot    int
	Expr    eval.Expr
	Offset  eval.Expr // nil means 1
	Default eval.Expr // nil means NULL
}

// WindowSpec partitions and orders its input and appends the call
// outputs. Slots are the input columns.
type WindowSpec struct {
	Input     eval.Rows
	Slots     []int
	Partition []eval.Expr
	Order     []SortKey
	Calls     []WindowCall
}

func (*ScanSpec) spec()      {}
func (*FilterSpec) spec()    {}
func (*ProjectSpec) spec()   {}
func (*JoinSpec) spec()      {}
func (*AggregateSpec) spec() {}
func (*SortSpec) spec()      {}
func (*LimitSpec) spec()     {}
func (*OffsetSpec) spec()    {}
func (*DistinctSpec) spec()  {}
func (*ExcludeSpec) spec()   {}
func (*WindowSpec) spec()    {}

// KindOf returns the relational kind a spec belongs to.
func KindOf(s Spec) plan.RelKind {
	switch s.(type) {
	case *ScanSpec:
		return plan.KindScan
	case *FilterSpec:
		return plan.KindFilter
	case *ProjectSpec:
		return plan.KindProject
	case *JoinSpec:
		return plan.KindJoin
	case *AggregateSpec:
		return plan.KindAggregate
	case *SortSpec:
		return plan.KindSort
	case *LimitSpec:
		return plan.KindLimit
	case *OffsetSpec:
		return plan.KindOffset
	case *DistinctSpec:
		return plan.KindDistinct
	case *ExcludeSpec:
		return plan.KindExclude
	case *WindowSpec:
		return plan.KindWindow
	}
	panic("unknown operator spec")
}
