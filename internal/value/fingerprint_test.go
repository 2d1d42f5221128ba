package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintEquivalentValues(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
	}{
		{"int and decimal", Int(1), MustDecimal("1.00")},
		{"int and float", Int(2), Float(2)},
		{"null and missing", NullValue, MissingValue},
		{"negative zero", Float(0), MustDecimal("-0")},
		{"struct field order", NewStruct(F("a", Int(1)), F("b", Int(2))), NewStruct(F("b", Int(2)), F("a", Int(1)))},
		{"bag element order", Bag{String("x"), String("y")}, Bag{String("y"), String("x")}},
		// precomposed vs e + combining acute
		{"nfc strings", String("\u00e9"), String("e\u0301")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Fingerprint(tt.a), Fingerprint(tt.b))
		})
	}
}

func TestFingerprintDistinguishes(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
	}{
		{"int vs string", Int(1), String("1")},
		{"list order", List{Int(1), Int(2)}, List{Int(2), Int(1)}},
		{"list vs bag", List{Int(1)}, Bag{Int(1)}},
		{"null vs false", NullValue, False},
		{"blob vs string", Blob("a"), String("a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, Fingerprint(tt.a), Fingerprint(tt.b))
		})
	}
}

func TestFingerprintStable(t *testing.T) {
	v := NewStruct(F("k", List{Int(1), MustDecimal("2.5")}))
	fp := Fingerprint(v)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(v))
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Negative(t, compareKeysRFC8785("a", "b"))
	assert.Negative(t, compareKeysRFC8785("a", "ab"))
	assert.Zero(t, compareKeysRFC8785("key", "key"))
	// U+10000 encodes as surrogate 0xD800 and sorts before U+E000.
	assert.Negative(t, compareKeysRFC8785("\U00010000", "\uE000"))
	assert.True(t, "\U00010000" > "\uE000", "UTF-8 byte order disagrees")
}

func TestAppendCanonical(t *testing.T) {
	got := string(AppendCanonical(nil, NewStruct(F("z", Int(1)), F("a", List{MustDecimal("1.50"), NullValue}))))
	assert.Equal(t, `{"a":[n1.5,u],"z":n1}`, got)
}
