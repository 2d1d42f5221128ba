package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pql/internal/value"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidPlan(t *testing.T) {
	stmt := &Query{Root: &Select{
		Input: &Filter{
			Input:     &Scan{Expr: NewId("t"), As: "x"},
			Predicate: NewLit(value.True),
		},
		Constructor: NewId("x"),
	}}
	assert.Empty(t, Validate(stmt))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	stmt := &Query{Root: &Select{
		Input: &Limit{
			Input: &Window{
				Input: &Project{
					Input: &Scan{Expr: NewId("t")},
					Items: []ProjectItem{
						{Name: "a", Expr: NewLit(value.Int(1))},
						{Name: "a", Expr: NewLit(value.Int(2))},
					},
				},
				Calls: []WindowCall{{Name: "rank", Expr: NewId("a"), Output: "r"}},
			},
		},
		Constructor: &Collection{Kind: value.KindStruct},
	}}

	errs := Validate(stmt)
	assert.ElementsMatch(t, []string{
		ErrEmptyName,       // scan without alias
		ErrDuplicateColumn, // project a, a
		ErrUnknownWindowFn, // rank
		ErrMissingCount,    // limit without count
		ErrCollectionKind,  // STRUCT collection
	}, codes(errs))
}

func TestValidateNilNodes(t *testing.T) {
	errs := Validate(&Insert{})
	assert.Equal(t, []string{ErrNilNode, ErrNilNode}, codes(errs))

	errs = Validate(nil)
	assert.Equal(t, []string{ErrNilNode}, codes(errs))

	errs = ValidateRel(&Join{Left: &Scan{Expr: NewId("a"), As: "x"}})
	assert.Equal(t, []string{ErrNilNode}, codes(errs))
}

func TestValidateExcludePath(t *testing.T) {
	errs := ValidateRel(&Exclude{
		Input: &Scan{Expr: NewId("t"), As: "x"},
		Paths: []ExcludePath{{Root: Insensitive("x")}},
	})
	assert.Equal(t, []string{ErrEmptyExcludePath}, codes(errs))
	assert.Contains(t, errs[0].Error(), "rooted at x")
}

func TestValidateContextCancelled(t *testing.T) {
	// A long filter chain ending in a scan without an alias.
	var rel Rel = &Scan{Expr: NewId("t")}
	for i := 0; i < 600; i++ {
		rel = &Filter{Input: rel, Predicate: NewLit(value.True)}
	}
	stmt := &Query{Root: &Select{Input: rel, Constructor: NewLit(value.Int(1))}}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		wantErr   bool
		wantCodes []string
	}{
		{name: "live context", ctx: context.Background(), wantCodes: []string{ErrEmptyName}},
		{name: "cancelled context", ctx: cancelled, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := ValidateContext(tt.ctx, stmt)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, context.Canceled)
				assert.Nil(t, errs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCodes, codes(errs))
		})
	}
	assert.Equal(t, []string{ErrEmptyName}, codes(Validate(stmt)))
}
