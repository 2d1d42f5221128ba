package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeYAML(t *testing.T, src string) (Value, error) {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return FromYAML(&doc)
}

func TestFromYAML(t *testing.T) {
	dec, err := ParseDecimal("1.50")
	require.NoError(t, err)

	tests := []struct {
		name string
		src  string
		want Value
	}{
		{"int", "42", Int(42)},
		{"plain float is decimal", "1.50", dec},
		{"tagged float", "!float 1.5", Float(1.5)},
		{"string", "hello", String("hello")},
		{"bool", "true", Bool(true)},
		{"null", "~", NullValue},
		{"tagged null", "!null ~", NullValue},
		{"missing", "!missing ~", MissingValue},
		{"bag", "!bag [1, 2]", Bag{Int(1), Int(2)}},
		{"list", "[1, a]", List{Int(1), String("a")}},
		{"blob", `!blob "AQI="`, Blob{1, 2}},
		{"timestamp", `!timestamp "2024-05-01T12:00:00Z"`, NewTimestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))},
		{"struct keeps field order", "{b: 1, a: 2}", NewStruct(F("b", Int(1)), F("a", Int(2)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeYAML(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind(), got.Kind())
			assert.True(t, Equal(tt.want, got), "got %s", Format(got))
		})
	}
}

func TestFromYAMLNodeField(t *testing.T) {
	tests := []struct {
		src  string
		want Kind
	}{
		{"value: null", KindNull},
		{"value: !null ~", KindNull},
		{"value: !missing ~", KindMissing},
		{"value: !bag [1]", KindBag},
		{"value: [1, 2]", KindList},
		{"value: 1", KindInt},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			var doc struct {
				Value yaml.Node `yaml:"value"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(tt.src), &doc))
			require.NotZero(t, doc.Value.Kind)
			v, err := FromYAML(&doc.Value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Kind())
		})
	}
}

func TestFromYAMLErrors(t *testing.T) {
	for _, src := range []string{`!timestamp "yesterday"`, `!blob "%%%"`, `!weird 1`} {
		_, err := decodeYAML(t, src)
		assert.Error(t, err, src)
	}
}
