package value

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Format renders v in the query language's literal syntax:
//
//	MISSING  NULL  true  42  1.50  1.5e+00  'text'  {{AQI=}}
//	TIMESTAMP '2024-01-02T03:04:05Z'  [1, 2]  <<1, 2>>  {'a': 1}
//
// Struct fields keep their order. Format is deterministic and is used for
// EXPLAIN output, CLI text output and golden snapshots.
func Format(v Value) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil, Missing:
		b.WriteString("MISSING")
	case Null:
		b.WriteString("NULL")
	case Bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case Decimal:
		b.WriteString(val.ref().Text('f'))
	case Float:
		b.WriteString(strconv.FormatFloat(float64(val), 'e', -1, 64))
	case String:
		writeQuoted(b, string(val))
	case Blob:
		b.WriteString("{{")
		b.WriteString(base64.StdEncoding.EncodeToString(val))
		b.WriteString("}}")
	case Timestamp:
		b.WriteString("TIMESTAMP '")
		b.WriteString(val.UTC().Format(time.RFC3339Nano))
		b.WriteByte('\'')
	case List:
		writeSeq(b, "[", "]", val)
	case Bag:
		writeSeq(b, "<<", ">>", val)
	case Struct:
		b.WriteByte('{')
		for i, f := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeQuoted(b, f.Name)
			b.WriteString(": ")
			writeValue(b, f.Value)
		}
		b.WriteByte('}')
	}
}

func writeSeq(b *strings.Builder, open, close string, elems []Value) {
	b.WriteString(open)
	for i, e := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		writeValue(b, e)
	}
	b.WriteString(close)
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('\'')
	b.WriteString(strings.ReplaceAll(s, "'", "''"))
	b.WriteByte('\'')
}
