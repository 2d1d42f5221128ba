package fn

import "github.com/roach88/pql/internal/value"

// Coercion is an implicit conversion inserted ahead of a function
// argument.
type Coercion struct {
	From value.Kind
	To   value.Kind
}

// Apply converts v. Unknowns pass through unchanged.
func (c *Coercion) Apply(v value.Value) (value.Value, error) {
	return value.Cast(v, c.To)
}

func (c *Coercion) String() string {
	return c.From.String() + "->" + c.To.String()
}

// Coercions is the table of registered implicit conversions. The zero
// value has none. A Coercions is read-only once compilation starts.
type Coercions struct {
	table map[[2]value.Kind]*Coercion
}

// NewCoercions builds a table from (from, to) pairs.
func NewCoercions(pairs ...[2]value.Kind) *Coercions {
	c := &Coercions{table: make(map[[2]value.Kind]*Coercion, len(pairs))}
	for _, p := range pairs {
		c.table[p] = &Coercion{From: p[0], To: p[1]}
	}
	return c
}

// DefaultCoercions widens along the numeric tower: INT to DECIMAL or FLOAT
// and DECIMAL to FLOAT.
func DefaultCoercions() *Coercions {
	return NewCoercions(
		[2]value.Kind{value.KindInt, value.KindDecimal},
		[2]value.Kind{value.KindInt, value.KindFloat},
		[2]value.Kind{value.KindDecimal, value.KindFloat},
	)
}

// Get returns the registered coercion from one kind to another.
func (c *Coercions) Get(from, to value.Kind) (*Coercion, bool) {
	if c == nil || c.table == nil {
		return nil, false
	}
	co, ok := c.table[[2]value.Kind{from, to}]
	return co, ok
}
