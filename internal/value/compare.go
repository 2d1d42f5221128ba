package value

import (
	"bytes"
	"math"
	"slices"

	"github.com/cockroachdb/apd/v3"
)

// kindOrder ranks kinds for cross-kind comparison:
//
//	unknowns < BOOL < numbers < TIMESTAMP < STRING < BLOB < LIST < STRUCT < BAG
//
// All numeric kinds share a rank and compare by numeric value.
func kindOrder(k Kind) int {
	switch k {
	case KindMissing, KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt, KindDecimal, KindFloat:
		return 2
	case KindTimestamp:
		return 3
	case KindString:
		return 4
	case KindBlob:
		return 5
	case KindList:
		return 6
	case KindStruct:
		return 7
	case KindBag:
		return 8
	default:
		return 9
	}
}

// Compare is a total order over values with unknowns sorted first.
// NULL and MISSING compare equal to each other. Numbers compare by
// numeric value across INT, DECIMAL and FLOAT, with NaN below every other
// number. Lists compare element-wise, structs compare as sorted field
// sequences, bags compare as sorted element sequences.
//
// Compare(a, b) == 0 is the structural equality used by DISTINCT,
// GROUP BY and the distinct aggregate filter.
func Compare(a, b Value) int {
	if a == nil {
		a = MissingValue
	}
	if b == nil {
		b = MissingValue
	}
	ra, rb := kindOrder(a.Kind()), kindOrder(b.Kind())
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch av := a.(type) {
	case Missing, Null:
		return 0
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Int, Decimal, Float:
		return compareNumeric(a, b)
	case Timestamp:
		return av.Compare(b.(Timestamp).Time)
	case String:
		return cmpString(string(av), string(b.(String)))
	case Blob:
		return bytes.Compare(av, b.(Blob))
	case List:
		return compareSeq(av, b.(List))
	case Struct:
		return compareSeq(sortedFieldSeq(av), sortedFieldSeq(b.(Struct)))
	case Bag:
		return compareSeq(sortedCopy(av), sortedCopy(b.(Bag)))
	}
	return 0
}

// CompareNullsLast is Compare with unknowns sorted after every known value.
func CompareNullsLast(a, b Value) int {
	ua, ub := IsUnknown(a), IsUnknown(b)
	switch {
	case ua && ub:
		return 0
	case ua:
		return 1
	case ub:
		return -1
	}
	return Compare(a, b)
}

// Equal reports structural equality (Compare(a, b) == 0).
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Comparable reports whether a and b may be ordered by the < family of
// operators: both numeric, or both of the same scalar kind.
func Comparable(a, b Value) bool {
	ka, kb := a.Kind(), b.Kind()
	if ka.IsNumeric() && kb.IsNumeric() {
		return true
	}
	if ka != kb {
		return false
	}
	switch ka {
	case KindBool, KindString, KindBlob, KindTimestamp:
		return true
	}
	return false
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareSeq(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func sortedCopy(vs []Value) []Value {
	out := slices.Clone(vs)
	slices.SortStableFunc(out, Compare)
	return out
}

// sortedFieldSeq flattens a struct into name, value, name, value, ...
// ordered by field name then value.
func sortedFieldSeq(s Struct) []Value {
	fields := slices.Clone(s)
	slices.SortStableFunc(fields, func(x, y Field) int {
		if c := compareKeysRFC8785(x.Name, y.Name); c != 0 {
			return c
		}
		return Compare(x.Value, y.Value)
	})
	out := make([]Value, 0, 2*len(fields))
	for _, f := range fields {
		out = append(out, String(f.Name), f.Value)
	}
	return out
}

// compareNumeric orders two numeric values. FLOAT NaN sorts below all
// numbers and infinities sort at the extremes.
func compareNumeric(a, b Value) int {
	if ai, ok := a.(Int); ok {
		if bi, ok := b.(Int); ok {
			return cmpInt64(int64(ai), int64(bi))
		}
	}
	fa, aIsFloat := a.(Float)
	fb, bIsFloat := b.(Float)
	if aIsFloat || bIsFloat {
		if r, ok := compareSpecialFloats(a, b, fa, fb, aIsFloat, bIsFloat); ok {
			return r
		}
		if aIsFloat && bIsFloat {
			return cmpFloat(float64(fa), float64(fb))
		}
	}
	da, ok1 := toApd(a)
	db, ok2 := toApd(b)
	if !ok1 || !ok2 {
		return 0
	}
	return da.Cmp(db)
}

func compareSpecialFloats(a, b Value, fa, fb Float, aIsFloat, bIsFloat bool) (int, bool) {
	rank := func(isFloat bool, f Float) int {
		if !isFloat {
			return 2
		}
		switch {
		case math.IsNaN(float64(f)):
			return 0
		case math.IsInf(float64(f), -1):
			return 1
		case math.IsInf(float64(f), 1):
			return 3
		}
		return 2
	}
	ra, rb := rank(aIsFloat, fa), rank(bIsFloat, fb)
	if ra == 2 && rb == 2 {
		return 0, false
	}
	return cmpInt(ra, rb), true
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// toApd converts a finite numeric value to a decimal for comparison.
func toApd(v Value) (*apd.Decimal, bool) {
	switch n := v.(type) {
	case Int:
		return apd.New(int64(n), 0), true
	case Decimal:
		return n.ref(), true
	case Float:
		d := new(apd.Decimal)
		if _, err := d.SetFloat64(float64(n)); err != nil {
			return nil, false
		}
		return d, true
	}
	return nil, false
}
