package value

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/cases"
)

// Value is a sealed interface over the runtime values of the data model.
// Only the types in this package implement it.
type Value interface {
	Kind() Kind
	value() // Sealed - only these types implement it
}

// Missing is the absent-value marker, produced e.g. by navigating to a
// field that does not exist.
type Missing struct{}

// Null is the explicit null value.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int is a 64-bit signed integer value.
type Int int64

// Decimal is an exact arbitrary-precision decimal value.
// The wrapped *apd.Decimal is never mutated after construction.
type Decimal struct {
	d *apd.Decimal
}

// Float is an approximate IEEE-754 double value.
type Float float64

// String is a Unicode text value.
type String string

// Blob is an opaque binary value.
type Blob []byte

// Timestamp is an instant in time.
type Timestamp struct {
	time.Time
}

// List is an ordered collection.
type List []Value

// Bag is an unordered collection that permits duplicates.
type Bag []Value

// Field is one name/value pair of a Struct.
type Field struct {
	Name  string
	Value Value
}

// Struct is an ordered sequence of fields. Field names are not required
// to be unique; lookups return the first match.
type Struct []Field

func (Missing) Kind() Kind   { return KindMissing }
func (Null) Kind() Kind      { return KindNull }
func (Bool) Kind() Kind      { return KindBool }
func (Int) Kind() Kind       { return KindInt }
func (Decimal) Kind() Kind   { return KindDecimal }
func (Float) Kind() Kind     { return KindFloat }
func (String) Kind() Kind    { return KindString }
func (Blob) Kind() Kind      { return KindBlob }
func (Timestamp) Kind() Kind { return KindTimestamp }
func (List) Kind() Kind      { return KindList }
func (Bag) Kind() Kind       { return KindBag }
func (Struct) Kind() Kind    { return KindStruct }

func (Missing) value()   {}
func (Null) value()      {}
func (Bool) value()      {}
func (Int) value()       {}
func (Decimal) value()   {}
func (Float) value()     {}
func (String) value()    {}
func (Blob) value()      {}
func (Timestamp) value() {}
func (List) value()      {}
func (Bag) value()       {}
func (Struct) value()    {}

// Shared singletons for the two unknowns.
var (
	MissingValue Value = Missing{}
	NullValue    Value = Null{}
	True         Value = Bool(true)
	False        Value = Bool(false)
)

// IsUnknown reports whether v is NULL or MISSING. A nil Value is treated
// as MISSING.
func IsUnknown(v Value) bool {
	if v == nil {
		return true
	}
	k := v.Kind()
	return k == KindNull || k == KindMissing
}

// NewDecimal wraps d. The caller must not mutate d afterwards.
func NewDecimal(d *apd.Decimal) Decimal {
	return Decimal{d: d}
}

// DecimalFromInt converts an integer to an exact decimal.
func DecimalFromInt(i int64) Decimal {
	return Decimal{d: apd.New(i, 0)}
}

// ParseDecimal parses a decimal literal such as "1.50".
func ParseDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{d: d}, nil
}

// MustDecimal is ParseDecimal for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Apd returns a copy of the underlying decimal that the caller may mutate.
func (d Decimal) Apd() *apd.Decimal {
	out := new(apd.Decimal)
	if d.d != nil {
		out.Set(d.d)
	}
	return out
}

// ref returns the shared decimal for read-only use inside this package.
func (d Decimal) ref() *apd.Decimal {
	if d.d == nil {
		return apd.New(0, 0)
	}
	return d.d
}

// NewTimestamp wraps t, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// NewStruct builds a struct from fields, keeping their order.
func NewStruct(fields ...Field) Struct {
	return Struct(fields)
}

// F is a shorthand for Field for ergonomic construction.
// Example: NewStruct(F("name", String("cart")), F("count", Int(5)))
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// A cases.Caser is stateful, so concurrent executions each borrow one.
var folders = sync.Pool{New: func() any {
	c := cases.Fold()
	return &c
}}

// FoldName returns the case-folded form of an identifier, used for
// case-insensitive name comparison.
func FoldName(s string) string {
	c := folders.Get().(*cases.Caser)
	defer folders.Put(c)
	return c.String(s)
}

// NamesEqual compares two identifiers exactly or case-folded.
func NamesEqual(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	if a == b {
		return true
	}
	if strings.EqualFold(a, b) {
		return true
	}
	return FoldName(a) == FoldName(b)
}

// Get returns the first field named name.
func (s Struct) Get(name string, caseSensitive bool) (Value, bool) {
	for _, f := range s {
		if NamesEqual(f.Name, name, caseSensitive) {
			return f.Value, true
		}
	}
	return nil, false
}

// Elements returns the elements of a LIST or BAG and true, or nil and
// false for any other kind.
func Elements(v Value) ([]Value, bool) {
	switch c := v.(type) {
	case List:
		return c, true
	case Bag:
		return c, true
	default:
		return nil, false
	}
}

// Truth reports whether v is the boolean true. NULL, MISSING and
// non-booleans are not true.
func Truth(v Value) bool {
	b, ok := v.(Bool)
	return ok && bool(b)
}
