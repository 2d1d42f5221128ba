package value

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/unicode/norm"
)

// FingerprintDomain separates value fingerprints from any other hash the
// process computes over the same bytes.
const FingerprintDomain = "pql/value/v1"

// Fingerprint returns a stable hex SHA-256 over the canonical encoding of v.
// Two values have the same fingerprint exactly when Compare reports them
// equal, modulo NFC normalization of strings and FLOAT NaN payloads.
//
// Fingerprints key GROUP BY partitions and the rows written to the SQLite
// catalog.
func Fingerprint(v Value) string {
	return HashWithDomain(FingerprintDomain, AppendCanonical(nil, v))
}

// HashWithDomain computes SHA-256 with domain separation. It also backs
// statement fingerprints.
// Format: SHA256(domain || 0x00 || data)
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AppendCanonical appends the canonical encoding of v to dst.
//
// Canonical form rules:
//  1. NULL and MISSING both encode as "u" (they group together)
//  2. Numbers encode by numeric value regardless of kind, so 1, 1.0 and
//     1e0 share an encoding
//  3. Strings are NFC normalized
//  4. Struct fields are sorted by RFC 8785 key order, then by value
//  5. Bag elements are sorted by Compare
func AppendCanonical(dst []byte, v Value) []byte {
	switch val := v.(type) {
	case nil, Missing, Null:
		return append(dst, 'u')
	case Bool:
		if val {
			return append(dst, 't')
		}
		return append(dst, 'f')
	case Int:
		return appendCanonicalNumber(dst, apd.New(int64(val), 0))
	case Decimal:
		return appendCanonicalNumber(dst, val.ref())
	case Float:
		if d, ok := toApd(val); ok && d.Form == apd.Finite {
			return appendCanonicalNumber(dst, d)
		}
		// NaN and the infinities have no decimal image.
		dst = append(dst, 'F')
		return strconv.AppendFloat(dst, float64(val), 'g', -1, 64)
	case String:
		dst = append(dst, 's')
		return appendCanonicalString(dst, string(val))
	case Blob:
		dst = append(dst, 'b')
		dst = strconv.AppendInt(dst, int64(len(val)), 10)
		dst = append(dst, ':')
		return append(dst, val...)
	case Timestamp:
		dst = append(dst, 'T')
		return val.UTC().AppendFormat(dst, time.RFC3339Nano)
	case List:
		return appendCanonicalSeq(dst, '[', ']', val)
	case Bag:
		return appendCanonicalSeq(dst, '<', '>', sortedCopy(val))
	case Struct:
		fields := slices.Clone(val)
		slices.SortStableFunc(fields, func(x, y Field) int {
			if c := compareKeysRFC8785(norm.NFC.String(x.Name), norm.NFC.String(y.Name)); c != 0 {
				return c
			}
			return Compare(x.Value, y.Value)
		})
		dst = append(dst, '{')
		for i, f := range fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendCanonicalString(dst, f.Name)
			dst = append(dst, ':')
			dst = AppendCanonical(dst, f.Value)
		}
		return append(dst, '}')
	}
	return dst
}

func appendCanonicalSeq(dst []byte, open, close byte, elems []Value) []byte {
	dst = append(dst, open)
	for i, e := range elems {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = AppendCanonical(dst, e)
	}
	return append(dst, close)
}

// appendCanonicalNumber writes the reduced decimal so trailing zeros and
// the source kind do not affect the encoding.
func appendCanonicalNumber(dst []byte, d *apd.Decimal) []byte {
	var r apd.Decimal
	r.Reduce(d)
	if r.IsZero() {
		r.Negative = false
	}
	dst = append(dst, 'n')
	return append(dst, r.String()...)
}

// appendCanonicalString writes a JSON string with NFC normalization.
// HTML characters are left unescaped.
func appendCanonicalString(dst []byte, s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a Go string cannot fail.
	_ = enc.Encode(norm.NFC.String(s))
	return append(dst, bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})...)
}

// compareKeysRFC8785 compares two strings by their UTF-16 code units,
// the ordering RFC 8785 prescribes for object keys.
//
// This differs from Go's native string comparison (UTF-8 bytes) for
// characters outside the Basic Multilingual Plane: surrogate pairs
// (0xD800-0xDFFF) sort below BMP characters in 0xE000-0xFFFF.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return cmpInt(len(a16), len(b16))
}
