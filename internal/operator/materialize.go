package operator

import (
	"sort"

	"github.com/google/btree"

	"github.com/roach88/pql/internal/agg"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/value"
	"github.com/roach88/pql/internal/window"
)

// drain reads every row of in and calls fn with the row loaded.
func drain(st *eval.State, rows eval.Rows, fn func() error) error {
	cur, err := rows.Open(st)
	if err != nil {
		return err
	}
	for {
		ok, err := cur.Next()
		if err != nil {
			_ = cur.Close()
			return err
		}
		if !ok {
			break
		}
		if err := st.Checkpoint(); err != nil {
			_ = cur.Close()
			return err
		}
		if err := fn(); err != nil {
			_ = cur.Close()
			return err
		}
	}
	return cur.Close()
}

// replay is a cursor over materialized rows.
type replay struct {
	st    *eval.State
	slots []int
	rows  [][]value.Value
	pos   int
}

func (c *replay) Next() (bool, error) {
	if c.pos >= len(c.rows) {
		return false, nil
	}
	c.st.Restore(c.slots, c.rows[c.pos])
	c.pos++
	return true, nil
}

func (c *replay) Close() error { return nil }

type aggregate struct {
	spec *AggregateSpec
}

type group struct {
	keys     []value.Value
	accs     []agg.Accumulator
	poisoned []bool
}

func (a *aggregate) newGroup(keys []value.Value) *group {
	g := &group{keys: keys, accs: make([]agg.Accumulator, len(a.spec.Calls)), poisoned: make([]bool, len(a.spec.Calls))}
	for i, c := range a.spec.Calls {
		g.accs[i] = c.Factory(c.Quantifier)
	}
	return g
}

func (a *aggregate) Open(st *eval.State) (eval.Cursor, error) {
	groups := make(map[string]*group)
	var order []*group

	err := drain(st, a.spec.Input, func() error {
		keys := make([]value.Value, len(a.spec.Groups))
		for i, g := range a.spec.Groups {
			v, err := g.Expr(st)
			if err != nil {
				return err
			}
			keys[i] = v
		}
		// NULL and MISSING keys share a group.
		fp := value.Fingerprint(value.List(keys))
		g, ok := groups[fp]
		if !ok {
			g = a.newGroup(keys)
			groups[fp] = g
			order = append(order, g)
		}
		for i, c := range a.spec.Calls {
			if g.poisoned[i] {
				continue
			}
			var arg value.Value
			if c.Arg != nil {
				v, err := c.Arg(st)
				if err != nil {
					return err
				}
				arg = v
			}
			if err := g.accs[i].Next(arg); err != nil {
				if st.Mode == eval.Permissive && eval.IsDataError(err) {
					g.poisoned[i] = true
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Without grouping keys an empty input still produces one row.
	if len(order) == 0 && len(a.spec.Groups) == 0 {
		order = append(order, a.newGroup(nil))
	}

	slots := make([]int, 0, len(a.spec.Groups)+len(a.spec.Calls))
	for _, g := range a.spec.Groups {
		slots = append(slots, g.Slot)
	}
	for _, c := range a.spec.Calls {
		slots = append(slots, c.Slot)
	}
	rows := make([][]value.Value, len(order))
	for i, g := range order {
		row := append([]value.Value(nil), g.keys...)
		for j, acc := range g.accs {
			if g.poisoned[j] {
				row = append(row, value.MissingValue)
				continue
			}
			v, err := acc.Compute()
			if err != nil {
				if _, rerr := st.Recover(err); rerr != nil {
					return nil, rerr
				}
				v = value.MissingValue
			}
			row = append(row, v)
		}
		rows[i] = row
	}
	return &replay{st: st, slots: slots, rows: rows}, nil
}

// sortRow is a materialized row and its key values.
type sortRow struct {
	seq  int
	row  []value.Value
	keys []value.Value
}

// compareKeys orders two key tuples.
func compareKeys(specs []SortKey, a, b []value.Value) int {
	for i, k := range specs {
		if c := compareKey(k, a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareKey(k SortKey, a, b value.Value) int {
	ua, ub := value.IsUnknown(a), value.IsUnknown(b)
	switch {
	case ua && ub:
		return 0
	case ua:
		if k.NullsFirst {
			return -1
		}
		return 1
	case ub:
		if k.NullsFirst {
			return 1
		}
		return -1
	}
	c := value.Compare(a, b)
	if k.Desc {
		return -c
	}
	return c
}

// materializeSorted reads rows with their key values.
func materializeSorted(st *eval.State, input eval.Rows, slots []int, keys []SortKey, fn func(sortRow)) error {
	seq := 0
	return drain(st, input, func() error {
		r := sortRow{seq: seq, row: st.Snapshot(slots), keys: make([]value.Value, len(keys))}
		for i, k := range keys {
			v, err := k.Expr(st)
			if err != nil {
				return err
			}
			r.keys[i] = v
		}
		seq++
		fn(r)
		return nil
	})
}

func fetchCount(st *eval.State, fetch eval.Expr) (int64, bool, error) {
	if fetch == nil {
		return 0, false, nil
	}
	n, err := evalCount(st, fetch, "fetch")
	return n, true, err
}

type sorter struct {
	spec *SortSpec
}

func (s *sorter) Open(st *eval.State) (eval.Cursor, error) {
	n, limited, err := fetchCount(st, s.spec.Fetch)
	if err != nil {
		return nil, err
	}
	var rows []sortRow
	if err := materializeSorted(st, s.spec.Input, s.spec.Slots, s.spec.Keys, func(r sortRow) {
		rows = append(rows, r)
	}); err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return compareKeys(s.spec.Keys, rows[i].keys, rows[j].keys) < 0
	})
	if limited && int64(len(rows)) > n {
		rows = rows[:n]
	}
	out := make([][]value.Value, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return &replay{st: st, slots: s.spec.Slots, rows: out}, nil
}

// topK keeps only the first Fetch rows in a bounded ordered tree. It
// requires a Fetch count.
type topK struct {
	spec *SortSpec
}

func (t *topK) Open(st *eval.State) (eval.Cursor, error) {
	n, limited, err := fetchCount(st, t.spec.Fetch)
	if err != nil {
		return nil, err
	}
	if !limited {
		return (&sorter{spec: t.spec}).Open(st)
	}
	tree := btree.NewG(8, func(a, b sortRow) bool {
		if c := compareKeys(t.spec.Keys, a.keys, b.keys); c != 0 {
			return c < 0
		}
		return a.seq < b.seq
	})
	if err := materializeSorted(st, t.spec.Input, t.spec.Slots, t.spec.Keys, func(r sortRow) {
		tree.ReplaceOrInsert(r)
		if int64(tree.Len()) > n {
			tree.DeleteMax()
		}
	}); err != nil {
		return nil, err
	}
	out := make([][]value.Value, 0, tree.Len())
	tree.Ascend(func(r sortRow) bool {
		out = append(out, r.row)
		return true
	})
	return &replay{st: st, slots: t.spec.Slots, rows: out}, nil
}

type distinct struct {
	spec *DistinctSpec
}

func (d *distinct) Open(st *eval.State) (eval.Cursor, error) {
	in, err := d.spec.Input.Open(st)
	if err != nil {
		return nil, err
	}
	seen := btree.NewG(16, func(a, b value.Value) bool { return value.Compare(a, b) < 0 })
	return &distinctCursor{in: in, st: st, slots: d.spec.Slots, seen: seen}, nil
}

type distinctCursor struct {
	in    eval.Cursor
	st    *eval.State
	slots []int
	seen  *btree.BTreeG[value.Value]
}

func (c *distinctCursor) Next() (bool, error) {
	for {
		ok, err := c.in.Next()
		if err != nil || !ok {
			return false, err
		}
		row := value.List(c.st.Snapshot(c.slots))
		if _, dup := c.seen.ReplaceOrInsert(row); !dup {
			return true, nil
		}
	}
}

func (c *distinctCursor) Close() error { return c.in.Close() }

type windowOp struct {
	spec *WindowSpec
}

func (w *windowOp) Open(st *eval.State) (eval.Cursor, error) {
	type partition struct{ rows []sortRow }
	parts := make(map[string]*partition)
	var order []*partition

	seq := 0
	err := drain(st, w.spec.Input, func() error {
		keys := make([]value.Value, len(w.spec.Partition))
		for i, p := range w.spec.Partition {
			v, err := p(st)
			if err != nil {
				return err
			}
			keys[i] = v
		}
		r := sortRow{seq: seq, row: st.Snapshot(w.spec.Slots), keys: make([]value.Value, len(w.spec.Order))}
		for i, k := range w.spec.Order {
			v, err := k.Expr(st)
			if err != nil {
				return err
			}
			r.keys[i] = v
		}
		seq++
		fp := value.Fingerprint(value.List(keys))
		p, ok := parts[fp]
		if !ok {
			p = &partition{}
			parts[fp] = p
			order = append(order, p)
		}
		p.rows = append(p.rows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	navs := make([]*window.Navigation, len(w.spec.Calls))
	for i, c := range w.spec.Calls {
		nav, err := window.New(c.Name, c.Expr, c.Offset, c.Default, w.spec.Slots)
		if err != nil {
			return nil, err
		}
		navs[i] = nav
	}

	slots := append(append([]int(nil), w.spec.Slots...), callSlots(w.spec.Calls)...)
	var out [][]value.Value
	for _, p := range order {
		sort.SliceStable(p.rows, func(i, j int) bool {
			return compareKeys(w.spec.Order, p.rows[i].keys, p.rows[j].keys) < 0
		})
		rows := make([]window.Row, len(p.rows))
		for i, r := range p.rows {
			rows[i] = r.row
		}
		for _, nav := range navs {
			nav.Reset(rows)
		}
		for _, r := range rows {
			if err := st.Checkpoint(); err != nil {
				return nil, err
			}
			full := append(append([]value.Value(nil), r...), make([]value.Value, len(navs))...)
			for j, nav := range navs {
				v, err := nav.ProcessRow(st)
				if err != nil {
					return nil, err
				}
				full[len(r)+j] = v
			}
			out = append(out, full)
		}
	}
	return &replay{st: st, slots: slots, rows: out}, nil
}

func callSlots(calls []WindowCall) []int {
	out := make([]int, len(calls))
	for i, c := range calls {
		out[i] = c.Slot
	}
	return out
}
