package operator

import (
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// scan iterates the elements of a collection.
type scan struct {
	spec *ScanSpec
}

// NewScan returns the default scan over the collection spec.Expr yields.
func NewScan(s *ScanSpec) eval.Rows { return &scan{spec: s} }

func (s *scan) Open(st *eval.State) (eval.Cursor, error) {
	v, err := s.spec.Expr(st)
	if err != nil {
		return nil, err
	}
	elems, positional, err := scanElements(st, v)
	if err != nil {
		return nil, err
	}
	return &scanCursor{spec: s.spec, st: st, elems: elems, positional: positional}, nil
}

// scanElements returns the rows of a FROM source. Legacy mode requires a
// collection. Permissive mode scans an unknown as empty and any other
// value as a single row.
func scanElements(st *eval.State, v value.Value) ([]value.Value, bool, error) {
	switch c := v.(type) {
	case value.List:
		return c, true, nil
	case value.Bag:
		return c, false, nil
	}
	if st.Mode == eval.Permissive {
		if value.IsUnknown(v) {
			return nil, false, nil
		}
		return []value.Value{v}, false, nil
	}
	return nil, false, eval.NewError(eval.ErrCodeTypeMismatch, "FROM source must be a collection, got %s", v.Kind()).
		WithDetail("kind", v.Kind().String())
}

type scanCursor struct {
	spec       *ScanSpec
	st         *eval.State
	elems      []value.Value
	positional bool
	pos        int
}

func (c *scanCursor) Next() (bool, error) {
	if err := c.st.Checkpoint(); err != nil {
		return false, err
	}
	if c.pos >= len(c.elems) {
		return false, nil
	}
	c.st.Store(c.spec.AsSlot, c.elems[c.pos])
	if c.spec.HasAt {
		// Bag elements have no position.
		var at value.Value = value.MissingValue
		if c.positional {
			at = value.Int(c.pos)
		}
		c.st.Store(c.spec.AtSlot, at)
	}
	c.pos++
	return true, nil
}

func (c *scanCursor) Close() error { return nil }

type filter struct {
	spec *FilterSpec
}

func (f *filter) Open(st *eval.State) (eval.Cursor, error) {
	in, err := f.spec.Input.Open(st)
	if err != nil {
		return nil, err
	}
	return &filterCursor{in: in, pred: f.spec.Predicate, st: st}, nil
}

type filterCursor struct {
	in   eval.Cursor
	pred eval.Expr
	st   *eval.State
}

func (c *filterCursor) Next() (bool, error) {
	for {
		ok, err := c.in.Next()
		if err != nil || !ok {
			return false, err
		}
		v, err := c.pred(c.st)
		if err != nil {
			return false, err
		}
		if value.Truth(v) {
			return true, nil
		}
	}
}

func (c *filterCursor) Close() error { return c.in.Close() }

type project struct {
	spec *ProjectSpec
}

func (p *project) Open(st *eval.State) (eval.Cursor, error) {
	in, err := p.spec.Input.Open(st)
	if err != nil {
		return nil, err
	}
	return &projectCursor{in: in, items: p.spec.Items, st: st, out: make([]value.Value, len(p.spec.Items))}, nil
}

type projectCursor struct {
	in    eval.Cursor
	items []Assignment
	st    *eval.State
	out   []value.Value
}

func (c *projectCursor) Next() (bool, error) {
	ok, err := c.in.Next()
	if err != nil || !ok {
		return false, err
	}
	// Every item reads the input row before any output slot is written.
	for i, it := range c.items {
		v, err := it.Expr(c.st)
		if err != nil {
			return false, err
		}
		c.out[i] = v
	}
	for i, it := range c.items {
		c.st.Store(it.Slot, c.out[i])
	}
	return true, nil
}

func (c *projectCursor) Close() error { return c.in.Close() }

type join struct {
	spec *JoinSpec
}

func (j *join) Open(st *eval.State) (eval.Cursor, error) {
	left, err := j.spec.Left.Open(st)
	if err != nil {
		return nil, err
	}
	return &joinCursor{spec: j.spec, st: st, left: left}, nil
}

type joinCursor struct {
	spec    *JoinSpec
	st      *eval.State
	left    eval.Cursor
	right   eval.Cursor
	matched bool
}

func (c *joinCursor) Next() (bool, error) {
	for {
		if c.right == nil {
			ok, err := c.left.Next()
			if err != nil || !ok {
				return false, err
			}
			// The right side is opened per left row so that it can read
			// the left row's slots.
			if c.right, err = c.spec.Right.Open(c.st); err != nil {
				return false, err
			}
			c.matched = false
		}

		ok, err := c.right.Next()
		if err != nil {
			return false, err
		}
		if ok {
			if c.spec.On != nil {
				v, err := c.spec.On(c.st)
				if err != nil {
					return false, err
				}
				if !value.Truth(v) {
					continue
				}
			}
			c.matched = true
			return true, nil
		}

		err = c.right.Close()
		c.right = nil
		if err != nil {
			return false, err
		}
		if c.spec.Kind == plan.JoinLeft && !c.matched {
			for _, slot := range c.spec.RightSlots {
				c.st.Store(slot, value.NullValue)
			}
			return true, nil
		}
	}
}

func (c *joinCursor) Close() error {
	var err error
	if c.right != nil {
		err = c.right.Close()
		c.right = nil
	}
	if lerr := c.left.Close(); err == nil {
		err = lerr
	}
	return err
}

// evalCount evaluates a LIMIT, OFFSET or FETCH count.
func evalCount(st *eval.State, expr eval.Expr, what string) (int64, error) {
	v, err := expr(st)
	if err != nil {
		return 0, err
	}
	n, ok := v.(value.Int)
	if !ok || n < 0 {
		return 0, eval.NewError(eval.ErrCodeInvalidLimit, "%s must be a non-negative integer, got %s", what, value.Format(v))
	}
	return int64(n), nil
}

type limit struct {
	spec *LimitSpec
}

func (l *limit) Open(st *eval.State) (eval.Cursor, error) {
	n, err := evalCount(st, l.spec.Count, "limit")
	if err != nil {
		return nil, err
	}
	in, err := l.spec.Input.Open(st)
	if err != nil {
		return nil, err
	}
	return &limitCursor{in: in, remaining: n}, nil
}

type limitCursor struct {
	in        eval.Cursor
	remaining int64
}

func (c *limitCursor) Next() (bool, error) {
	if c.remaining <= 0 {
		return false, nil
	}
	ok, err := c.in.Next()
	if err != nil || !ok {
		return false, err
	}
	c.remaining--
	return true, nil
}

func (c *limitCursor) Close() error { return c.in.Close() }

type offset struct {
	spec *OffsetSpec
}

func (o *offset) Open(st *eval.State) (eval.Cursor, error) {
	n, err := evalCount(st, o.spec.Count, "offset")
	if err != nil {
		return nil, err
	}
	in, err := o.spec.Input.Open(st)
	if err != nil {
		return nil, err
	}
	return &offsetCursor{in: in, skip: n}, nil
}

type offsetCursor struct {
	in   eval.Cursor
	skip int64
}

func (c *offsetCursor) Next() (bool, error) {
	for c.skip > 0 {
		ok, err := c.in.Next()
		if err != nil || !ok {
			return false, err
		}
		c.skip--
	}
	return c.in.Next()
}

func (c *offsetCursor) Close() error { return c.in.Close() }

type excluder struct {
	spec *ExcludeSpec
}

func (e *excluder) Open(st *eval.State) (eval.Cursor, error) {
	in, err := e.spec.Input.Open(st)
	if err != nil {
		return nil, err
	}
	return &excludeCursor{in: in, st: st, exclusions: e.spec.Exclusions}, nil
}

type excludeCursor struct {
	in         eval.Cursor
	st         *eval.State
	exclusions []Exclusion
}

func (c *excludeCursor) Next() (bool, error) {
	ok, err := c.in.Next()
	if err != nil || !ok {
		return false, err
	}
	for _, ex := range c.exclusions {
		c.st.Store(ex.Slot, ex.Tree.Apply(c.st.Load(ex.Slot)))
	}
	return true, nil
}

func (c *excludeCursor) Close() error { return c.in.Close() }
