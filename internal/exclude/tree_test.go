package exclude

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

var (
	a     = FieldStep(plan.Insensitive("a"))
	b     = FieldStep(plan.Insensitive("b"))
	c     = FieldStep(plan.Insensitive("c"))
	star  = Step{Kind: FieldWildcard}
	all   = Step{Kind: IndexWildcard}
	idx0  = Step{Kind: Index, Index: 0}
	idx1  = Step{Kind: Index, Index: 1}
	sensA = FieldStep(plan.Sensitive("A"))
)

func build(paths ...[]Step) *Node {
	n := NewNode()
	for _, p := range paths {
		n.Insert(p)
	}
	return n
}

func TestSubsumptionIsOrderIndependent(t *testing.T) {
	alone := build([]Step{a, star})
	forward := build([]Step{a, b}, []Step{a, star})
	reverse := build([]Step{a, star}, []Step{a, b})

	if diff := cmp.Diff(alone, forward); diff != "" {
		t.Errorf("a.b then a.* (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(alone, reverse); diff != "" {
		t.Errorf("a.* then a.b (-want +got):\n%s", diff)
	}
}

func TestInsert(t *testing.T) {
	tests := []struct {
		name  string
		paths [][]Step
		want  [][]Step
	}{
		{"duplicate leaf", [][]Step{{a}, {a}}, [][]Step{{a}}},
		{"leaf removes branch", [][]Step{{a, b}, {a}}, [][]Step{{a}}},
		{"below leaf dropped", [][]Step{{a}, {a, b, c}}, [][]Step{{a}}},
		{"wildcard keeps other container kind", [][]Step{{a, idx0}, {a, b}, {a, star}}, [][]Step{{a, star}, {a, idx0}}},
		{"index wildcard", [][]Step{{idx0}, {idx1, a}, {all}, {idx1}}, [][]Step{{all}}},
		{"insensitive covers sensitive", [][]Step{{sensA}, {a}, {sensA, b}}, [][]Step{{a}}},
		{"sensitive kept under other name", [][]Step{{sensA}, {b}}, [][]Step{{sensA}, {b}}},
		{"empty path ignored", [][]Step{{}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := build(tt.paths...).Paths()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Paths() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromPlan(t *testing.T) {
	steps := FromPlan([]plan.ExcludeStep{
		{Kind: plan.StepField, Name: plan.Insensitive("Name")},
		{Kind: plan.StepFieldWildcard},
		{Kind: plan.StepIndex, Index: 3},
		{Kind: plan.StepIndexWildcard},
		{Kind: plan.StepField, Name: plan.Sensitive("Name")},
	})
	assert.Equal(t, []Step{
		{Kind: Field, Name: "name"},
		{Kind: FieldWildcard},
		{Kind: Index, Index: 3},
		{Kind: IndexWildcard},
		{Kind: Field, Name: "Name", Sensitive: true},
	}, steps)
}

func TestApply(t *testing.T) {
	row := value.NewStruct(
		value.F("A", value.Int(1)),
		value.F("b", value.NewStruct(value.F("x", value.Int(2)), value.F("y", value.Int(3)))),
		value.F("items", value.List{
			value.NewStruct(value.F("id", value.Int(1)), value.F("tmp", value.True)),
			value.NewStruct(value.F("id", value.Int(2)), value.F("tmp", value.False)),
		}),
		value.F("tags", value.Bag{value.String("t")}),
	)
	items := FieldStep(plan.Insensitive("items"))
	tags := FieldStep(plan.Insensitive("tags"))
	tmp := FieldStep(plan.Insensitive("tmp"))
	x := FieldStep(plan.Insensitive("x"))

	tests := []struct {
		name  string
		paths [][]Step
		want  value.Value
	}{
		{
			"insensitive field",
			[][]Step{{a}},
			value.NewStruct(row[1], row[2], row[3]),
		},
		{
			"sensitive field miss",
			[][]Step{{FieldStep(plan.Sensitive("a"))}},
			row,
		},
		{
			"nested field and element wildcard",
			[][]Step{{b, x}, {items, all, tmp}},
			value.NewStruct(
				row[0],
				value.F("b", value.NewStruct(value.F("y", value.Int(3)))),
				value.F("items", value.List{
					value.NewStruct(value.F("id", value.Int(1))),
					value.NewStruct(value.F("id", value.Int(2))),
				}),
				row[3],
			),
		},
		{
			"list index",
			[][]Step{{items, idx0}},
			value.NewStruct(row[0], row[1], value.F("items", value.List{row[2].Value.(value.List)[1]}), row[3]),
		},
		{
			"bags have no positions",
			[][]Step{{tags, idx0}},
			row,
		},
		{
			"collection wildcard leaf",
			[][]Step{{tags, all}},
			value.NewStruct(row[0], row[1], row[2], value.F("tags", value.Bag{})),
		},
		{
			"struct wildcard leaf",
			[][]Step{{star}},
			value.Struct{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := build(tt.paths...).Apply(row)
			assert.True(t, value.Equal(tt.want, got), "want %s, got %s", value.Format(tt.want), value.Format(got))
		})
	}

	assert.Equal(t, value.Int(5), build([]Step{a}).Apply(value.Int(5)), "scalars pass through")
	assert.Equal(t, row, NewNode().Apply(row))
}
