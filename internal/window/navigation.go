// Package window implements the LAG and LEAD navigation window functions.
package window

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/value"
)

// Row is a materialized input row: the values of the window's input slots.
type Row []value.Value

// Navigation evaluates LAG or LEAD over one partition at a time. Reset
// must be called before each partition, including the first; ProcessRow
// is then called once per row in partition order.
type Navigation struct {
	lead    bool
	expr    eval.Expr
	offset  eval.Expr // nil means 1
	deflt   eval.Expr // nil means NULL
	slots   []int
	rows    []Row
	current int
}

// New creates the navigation function name ("lag" or "lead"). slots are
// the register slots a Row is loaded into.
func New(name string, expr, offset, deflt eval.Expr, slots []int) (*Navigation, error) {
	switch strings.ToLower(name) {
	case "lag":
		return &Navigation{expr: expr, offset: offset, deflt: deflt, slots: slots}, nil
	case "lead":
		return &Navigation{lead: true, expr: expr, offset: offset, deflt: deflt, slots: slots}, nil
	}
	return nil, errors.Newf("unknown window function %q", name)
}

// Reset starts a new partition.
func (n *Navigation) Reset(partition []Row) {
	n.rows = partition
	n.current = 0
}

// Done reports whether every row of the partition has been processed.
func (n *Navigation) Done() bool {
	return n.current >= len(n.rows)
}

// ProcessRow computes the result for the current row and advances. The
// current row is loaded into st when it returns.
func (n *Navigation) ProcessRow(st *eval.State) (value.Value, error) {
	if n.Done() {
		return nil, errors.AssertionFailedf("window partition exhausted at row %d", n.current)
	}
	row := n.rows[n.current]
	st.Restore(n.slots, row)

	out, err := n.evaluate(st)
	st.Restore(n.slots, row)
	if err != nil {
		return nil, err
	}
	n.current++
	return out, nil
}

func (n *Navigation) evaluate(st *eval.State) (value.Value, error) {
	offset := int64(1)
	if n.offset != nil {
		v, err := n.offset(st)
		if err != nil {
			return nil, err
		}
		i, ok := v.(value.Int)
		if !ok || i < 0 {
			return nil, eval.NewError(eval.ErrCodeInvalidWindowOffset,
				"window offset must be a non-negative integer, got %s", value.Format(v))
		}
		offset = int64(i)
	}

	target := int64(n.current) - offset
	if n.lead {
		target = int64(n.current) + offset
	}
	if target >= 0 && target < int64(len(n.rows)) {
		st.Restore(n.slots, n.rows[target])
		return n.expr(st)
	}
	if n.deflt != nil {
		return n.deflt(st)
	}
	return value.NullValue, nil
}
