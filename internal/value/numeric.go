package value

import (
	"math"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// exactCtx performs addition, subtraction and multiplication without
// rounding. divCtx rounds quotients to 34 significant digits.
var (
	exactCtx = apd.BaseContext.WithPrecision(0)
	divCtx   = apd.BaseContext.WithPrecision(34)
)

// Op is a binary arithmetic operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

var opNames = [...]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%"}

func (o Op) String() string { return opNames[o] }

// Arith applies op to two numeric values. Operands of different numeric
// kinds are widened to the wider kind (INT < DECIMAL < FLOAT). INT results
// that overflow are promoted to DECIMAL.
func Arith(op Op, a, b Value) (Value, error) {
	if !a.Kind().IsNumeric() || !b.Kind().IsNumeric() {
		return nil, errors.Wrapf(ErrNotNumeric, "%s %s %s", a.Kind(), op, b.Kind())
	}
	switch widest(a.Kind(), b.Kind()) {
	case KindInt:
		return arithInt(op, int64(a.(Int)), int64(b.(Int)))
	case KindDecimal:
		da, _ := toApd(a)
		db, _ := toApd(b)
		return arithDecimal(op, da, db)
	default:
		fa, _ := ToFloat64(a)
		fb, _ := ToFloat64(b)
		return arithFloat(op, fa, fb)
	}
}

func widest(a, b Kind) Kind {
	if a > b {
		return a
	}
	return b
}

func arithInt(op Op, a, b int64) (Value, error) {
	switch op {
	case OpAdd:
		s := a + b
		if (a^s)&(b^s) < 0 {
			return arithDecimal(op, apd.New(a, 0), apd.New(b, 0))
		}
		return Int(s), nil
	case OpSub:
		s := a - b
		if (a^b)&(a^s) < 0 {
			return arithDecimal(op, apd.New(a, 0), apd.New(b, 0))
		}
		return Int(s), nil
	case OpMul:
		if a == 0 || b == 0 {
			return Int(0), nil
		}
		p := a * b
		if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return arithDecimal(op, apd.New(a, 0), apd.New(b, 0))
		}
		return Int(p), nil
	case OpDiv:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		if a == math.MinInt64 && b == -1 {
			return nil, errors.Wrapf(ErrOverflow, "%d / %d", a, b)
		}
		return Int(a / b), nil
	case OpMod:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		if b == -1 {
			return Int(0), nil
		}
		return Int(a % b), nil
	}
	return nil, errors.AssertionFailedf("unknown operator %d", op)
}

func arithDecimal(op Op, a, b *apd.Decimal) (Value, error) {
	res := new(apd.Decimal)
	var err error
	switch op {
	case OpAdd:
		_, err = exactCtx.Add(res, a, b)
	case OpSub:
		_, err = exactCtx.Sub(res, a, b)
	case OpMul:
		_, err = exactCtx.Mul(res, a, b)
	case OpDiv:
		if b.IsZero() {
			return nil, ErrDivisionByZero
		}
		_, err = divCtx.Quo(res, a, b)
	case OpMod:
		if b.IsZero() {
			return nil, ErrDivisionByZero
		}
		_, err = divCtx.Rem(res, a, b)
	}
	if err != nil {
		return nil, errors.Wrap(ErrOverflow, err.Error())
	}
	return Decimal{d: res}, nil
}

func arithFloat(op Op, a, b float64) (Value, error) {
	switch op {
	case OpAdd:
		return Float(a + b), nil
	case OpSub:
		return Float(a - b), nil
	case OpMul:
		return Float(a * b), nil
	case OpDiv:
		return Float(a / b), nil
	case OpMod:
		return Float(math.Mod(a, b)), nil
	}
	return nil, errors.AssertionFailedf("unknown operator %d", op)
}

// Negate returns -v for a numeric v.
func Negate(v Value) (Value, error) {
	switch n := v.(type) {
	case Int:
		if n == math.MinInt64 {
			d := new(apd.Decimal)
			d.Neg(apd.New(int64(n), 0))
			return Decimal{d: d}, nil
		}
		return -n, nil
	case Decimal:
		d := new(apd.Decimal)
		d.Neg(n.ref())
		return Decimal{d: d}, nil
	case Float:
		return -n, nil
	}
	return nil, errors.Wrapf(ErrNotNumeric, "-%s", v.Kind())
}

// Abs returns |v| for a numeric v.
func Abs(v Value) (Value, error) {
	switch n := v.(type) {
	case Int:
		if n < 0 {
			return Negate(n)
		}
		return n, nil
	case Decimal:
		d := new(apd.Decimal)
		d.Abs(n.ref())
		return Decimal{d: d}, nil
	case Float:
		return Float(math.Abs(float64(n))), nil
	}
	return nil, errors.Wrapf(ErrNotNumeric, "abs(%s)", v.Kind())
}

// ToFloat64 converts a numeric value to float64.
func ToFloat64(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Decimal:
		f, err := n.ref().Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// ToDecimal converts an INT or DECIMAL (or finite FLOAT) to a Decimal.
func ToDecimal(v Value) (Decimal, bool) {
	d, ok := toApd(v)
	if !ok {
		return Decimal{}, false
	}
	if dv, isDec := v.(Decimal); isDec {
		return dv, true
	}
	return Decimal{d: d}, true
}

// ToInt64 converts an INT, or an integral DECIMAL or FLOAT, to int64.
func ToInt64(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Decimal:
		i, err := n.ref().Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case Float:
		f := float64(n)
		if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// DivideByCount divides a numeric sum by a positive count, producing a
// DECIMAL for exact inputs and a FLOAT for FLOAT input.
func DivideByCount(sum Value, count int64) (Value, error) {
	if f, ok := sum.(Float); ok {
		return Float(float64(f) / float64(count)), nil
	}
	d, ok := toApd(sum)
	if !ok {
		return nil, errors.Wrapf(ErrNotNumeric, "avg over %s", sum.Kind())
	}
	return arithDecimal(OpDiv, d, apd.New(count, 0))
}
