package operator

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
)

// TopKImpl is the impl name of the bounded Sort used under a Limit.
const TopKImpl = "topk"

// Defaults returns the built-in factories: a "default" implementation for
// every kind plus the "topk" Sort.
func Defaults() []Factory {
	return []Factory{
		NewFactory(plan.KindScan, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return NewScan(s.(*ScanSpec)), nil
		}),
		NewFactory(plan.KindFilter, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &filter{spec: s.(*FilterSpec)}, nil
		}),
		NewFactory(plan.KindProject, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &project{spec: s.(*ProjectSpec)}, nil
		}),
		NewFactory(plan.KindJoin, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &join{spec: s.(*JoinSpec)}, nil
		}),
		NewFactory(plan.KindAggregate, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &aggregate{spec: s.(*AggregateSpec)}, nil
		}),
		NewFactory(plan.KindSort, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &sorter{spec: s.(*SortSpec)}, nil
		}),
		NewFactory(plan.KindSort, TopKImpl, func(s Spec) (eval.Rows, error) {
			spec := s.(*SortSpec)
			if spec.Fetch == nil {
				return nil, errors.New("topk sort requires a fetch count")
			}
			return &topK{spec: spec}, nil
		}),
		NewFactory(plan.KindLimit, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &limit{spec: s.(*LimitSpec)}, nil
		}),
		NewFactory(plan.KindOffset, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &offset{spec: s.(*OffsetSpec)}, nil
		}),
		NewFactory(plan.KindDistinct, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &distinct{spec: s.(*DistinctSpec)}, nil
		}),
		NewFactory(plan.KindExclude, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &excluder{spec: s.(*ExcludeSpec)}, nil
		}),
		NewFactory(plan.KindWindow, plan.DefaultImpl, func(s Spec) (eval.Rows, error) {
			return &windowOp{spec: s.(*WindowSpec)}, nil
		}),
	}
}
