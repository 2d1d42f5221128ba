package value

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// Cast converts v to the kind to. Unknowns cast to themselves. Casting to
// DYNAMIC is the identity. Unsupported conversions return an error wrapping
// ErrInvalidCast.
func Cast(v Value, to Kind) (Value, error) {
	if IsUnknown(v) || to == KindDynamic || v.Kind() == to {
		return v, nil
	}
	switch to {
	case KindInt:
		return castToInt(v)
	case KindDecimal:
		return castToDecimal(v)
	case KindFloat:
		return castToFloat(v)
	case KindString:
		return castToString(v)
	case KindBool:
		return castToBool(v)
	case KindTimestamp:
		return castToTimestamp(v)
	case KindList:
		if b, ok := v.(Bag); ok {
			return List(b), nil
		}
	case KindBag:
		if l, ok := v.(List); ok {
			return Bag(l), nil
		}
	case KindNull:
		return NullValue, nil
	case KindMissing:
		return MissingValue, nil
	}
	return nil, invalidCast(v, to)
}

func invalidCast(v Value, to Kind) error {
	return errors.Wrapf(ErrInvalidCast, "cannot cast %s to %s", v.Kind(), to)
}

func castToInt(v Value) (Value, error) {
	switch n := v.(type) {
	case Bool:
		if n {
			return Int(1), nil
		}
		return Int(0), nil
	case Decimal:
		// Truncate toward zero as SQL casts do.
		var integ, frac apd.Decimal
		n.ref().Modf(&integ, &frac)
		i, err := integ.Int64()
		if err != nil {
			return nil, errors.Wrapf(ErrOverflow, "%s does not fit INT", n.ref())
		}
		return Int(i), nil
	case Float:
		f := math.Trunc(float64(n))
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, errors.Wrapf(ErrOverflow, "%v does not fit INT", float64(n))
		}
		return Int(int64(f)), nil
	case String:
		s := strings.TrimSpace(string(n))
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, invalidCast(v, KindInt)
		}
		return Int(i), nil
	}
	return nil, invalidCast(v, KindInt)
}

func castToDecimal(v Value) (Value, error) {
	switch n := v.(type) {
	case Bool:
		if n {
			return DecimalFromInt(1), nil
		}
		return DecimalFromInt(0), nil
	case Int:
		return DecimalFromInt(int64(n)), nil
	case Float:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalidCast(v, KindDecimal)
		}
		d := new(apd.Decimal)
		if _, err := d.SetFloat64(f); err != nil {
			return nil, invalidCast(v, KindDecimal)
		}
		return Decimal{d: d}, nil
	case String:
		d, err := ParseDecimal(strings.TrimSpace(string(n)))
		if err != nil {
			return nil, invalidCast(v, KindDecimal)
		}
		return d, nil
	}
	return nil, invalidCast(v, KindDecimal)
}

func castToFloat(v Value) (Value, error) {
	switch n := v.(type) {
	case Bool:
		if n {
			return Float(1), nil
		}
		return Float(0), nil
	case Int, Decimal:
		f, ok := ToFloat64(n)
		if !ok {
			return nil, invalidCast(v, KindFloat)
		}
		return Float(f), nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		if err != nil {
			return nil, invalidCast(v, KindFloat)
		}
		return Float(f), nil
	}
	return nil, invalidCast(v, KindFloat)
}

func castToString(v Value) (Value, error) {
	switch n := v.(type) {
	case Bool, Int, Decimal, Float:
		return String(Format(n)), nil
	case Timestamp:
		return String(n.UTC().Format(time.RFC3339Nano)), nil
	}
	return nil, invalidCast(v, KindString)
}

func castToBool(v Value) (Value, error) {
	switch n := v.(type) {
	case Int:
		return Bool(n != 0), nil
	case Decimal:
		return Bool(!n.ref().IsZero()), nil
	case Float:
		return Bool(n != 0), nil
	case String:
		switch strings.ToLower(strings.TrimSpace(string(n))) {
		case "true":
			return True, nil
		case "false":
			return False, nil
		}
	}
	return nil, invalidCast(v, KindBool)
}

func castToTimestamp(v Value) (Value, error) {
	if s, ok := v.(String); ok {
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(s)))
		if err != nil {
			return nil, invalidCast(v, KindTimestamp)
		}
		return NewTimestamp(t), nil
	}
	return nil, invalidCast(v, KindTimestamp)
}
