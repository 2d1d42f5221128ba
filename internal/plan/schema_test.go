package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pql/internal/value"
)

func TestSchema(t *testing.T) {
	left := &Scan{Expr: NewId("a"), As: "x", AsSlot: 0, At: "i", AtSlot: 1}
	right := &Scan{Expr: NewId("b"), As: "y", AsSlot: 2}
	join := &Join{Left: left, Right: right}

	assert.Equal(t, []Column{{"x", 0}, {"i", 1}, {"y", 2}}, Schema(join))
	assert.Equal(t, []int{0, 1, 2}, Slots(&Filter{Input: join}))

	w := &Window{Input: join, Calls: []WindowCall{{Name: "lag", Output: "prev", Slot: 3}}}
	assert.Equal(t, []int{0, 1, 2, 3}, Slots(w))
	assert.Equal(t, []int{0, 1, 2}, Slots(join), "window schema must not alias its input")

	agg := &Aggregate{
		Input:  join,
		Groups: []GroupKey{{Name: "k", Slot: 4}},
		Calls:  []AggCall{{Name: "count", Output: "n", Slot: 5}},
	}
	assert.Equal(t, []Column{{"k", 4}, {"n", 5}}, Schema(agg))
}

func TestImplTags(t *testing.T) {
	s := &Sort{Input: &Scan{Expr: NewId("a"), As: "x"}}
	assert.Equal(t, DefaultImpl, ImplOf(s))

	tagged := WithImpl(s, "topk")
	assert.Equal(t, "topk", ImplOf(tagged))
	assert.Equal(t, DefaultImpl, ImplOf(s), "WithImpl copies")
	assert.Equal(t, KindSort, KindOf(tagged))
}

func TestParseRelKind(t *testing.T) {
	k, err := ParseRelKind("window")
	require.NoError(t, err)
	assert.Equal(t, KindWindow, k)

	_, err = ParseRelKind("teleport")
	assert.Error(t, err)
}

func TestOrdered(t *testing.T) {
	scan := &Scan{Expr: NewId("a"), As: "x"}
	assert.False(t, Ordered(scan))
	assert.True(t, Ordered(&Limit{Input: &Sort{Input: scan}}))
	assert.False(t, Ordered(&Distinct{Input: &Sort{Input: scan}}))
}

func TestTransformReachesSubqueries(t *testing.T) {
	inner := &Sort{Input: &Scan{Expr: NewId("b"), As: "y"}}
	outer := &Filter{
		Input: &Scan{Expr: NewId("a"), As: "x"},
		Predicate: NewCall("exists", &Select{
			Input:       inner,
			Constructor: NewId("y"),
		}),
	}

	var seen []RelKind
	out := Transform(outer, func(r Rel) Rel {
		seen = append(seen, KindOf(r))
		if s, ok := r.(*Sort); ok {
			return WithImpl(s, "topk")
		}
		return r
	})

	assert.Equal(t, []RelKind{KindScan, KindSort, KindScan, KindFilter}, seen)
	sel := out.(*Filter).Predicate.(*Call).Args[0].(*Select)
	assert.Equal(t, "topk", ImplOf(sel.Input))
	assert.Equal(t, DefaultImpl, ImplOf(inner), "original plan is untouched")
}

func TestTransformReachesEveryOperand(t *testing.T) {
	sub := func() Rex {
		return &Select{Input: &Scan{Expr: NewId("b"), As: "y", AsSlot: 9}, Constructor: NewId("y")}
	}
	input := func() Rel { return &Scan{Expr: NewId("a"), As: "x"} }

	tests := []struct {
		name string
		rel  Rel
	}{
		{"aggregate group", &Aggregate{Input: input(), Groups: []GroupKey{{Name: "k", Expr: sub()}}}},
		{"aggregate argument", &Aggregate{Input: input(), Calls: []AggCall{{Name: "count", Args: []Rex{sub()}}}}},
		{"window partition", &Window{Input: input(), PartitionBy: []Rex{sub()}}},
		{"window order", &Window{Input: input(), OrderBy: []SortSpec{{Expr: sub()}}}},
		{"window offset", &Window{Input: input(), Calls: []WindowCall{{Name: "lag", Expr: NewId("x"), Offset: sub()}}}},
		{"window default", &Window{Input: input(), Calls: []WindowCall{{Name: "lag", Expr: NewId("x"), Default: sub()}}}},
		{"sort spec", &Sort{Input: input(), Specs: []SortSpec{{Expr: sub()}}}},
		{"sort fetch", &Sort{Input: input(), Fetch: sub()}},
		{"limit", &Limit{Input: input(), Count: sub()}},
		{"offset", &Offset{Input: input(), Count: sub()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Transform(tt.rel, func(r Rel) Rel {
				if KindOf(r) == KindScan {
					return WithImpl(r, "mem")
				}
				return r
			})
			explain := ExplainRel(out)
			assert.NotContains(t, explain, "scan[default]", explain)
			assert.Contains(t, ExplainRel(tt.rel), "scan[default]", "original plan is untouched")
		})
	}
}

func TestTransformUnchangedKeepsIdentity(t *testing.T) {
	rel := &Filter{Input: &Scan{Expr: NewId("a"), As: "x"}, Predicate: NewLit(value.True)}
	out := Transform(rel, func(r Rel) Rel { return r })
	assert.Same(t, rel, out)
}
