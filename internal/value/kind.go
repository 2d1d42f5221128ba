package value

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind identifies the runtime kind of a Value, or the static kind of an
// expression during function resolution.
//
// The declaration order is significant: it is the fixed precedence used to
// break overload ties (narrow before wide, scalars before collections,
// DYNAMIC last).
type Kind uint8

const (
	KindMissing Kind = iota
	KindNull
	KindBool
	KindInt
	KindDecimal
	KindFloat
	KindString
	KindBlob
	KindTimestamp
	KindList
	KindBag
	KindStruct

	// KindDynamic is a static-only kind: the expression's runtime kind is
	// not known until evaluation. No Value reports it.
	KindDynamic
)

var kindNames = [...]string{
	KindMissing:   "MISSING",
	KindNull:      "NULL",
	KindBool:      "BOOL",
	KindInt:       "INT",
	KindDecimal:   "DECIMAL",
	KindFloat:     "FLOAT",
	KindString:    "STRING",
	KindBlob:      "BLOB",
	KindTimestamp: "TIMESTAMP",
	KindList:      "LIST",
	KindBag:       "BAG",
	KindStruct:    "STRUCT",
	KindDynamic:   "DYNAMIC",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind converts a kind name (case-insensitive) to a Kind.
func ParseKind(s string) (Kind, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == upper {
			return Kind(k), nil
		}
	}
	switch upper {
	case "INTEGER", "INT8", "BIGINT":
		return KindInt, nil
	case "DOUBLE", "REAL":
		return KindFloat, nil
	case "BOOLEAN":
		return KindBool, nil
	case "TEXT", "VARCHAR":
		return KindString, nil
	case "TUPLE", "ROW":
		return KindStruct, nil
	case "ANY":
		return KindDynamic, nil
	}
	return 0, errors.Newf("unknown kind %q", s)
}

// Precedence returns the tie-break rank of a kind. Lower ranks win.
func (k Kind) Precedence() int {
	return int(k)
}

// IsUnknown reports whether the static kind carries no type information
// usable for overload selection (NULL, MISSING or DYNAMIC).
func (k Kind) IsUnknown() bool {
	return k == KindNull || k == KindMissing || k == KindDynamic
}

// IsNumeric reports whether k is INT, DECIMAL or FLOAT.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindDecimal || k == KindFloat
}

// IsCollection reports whether k is LIST or BAG.
func (k Kind) IsCollection() bool {
	return k == KindList || k == KindBag
}
