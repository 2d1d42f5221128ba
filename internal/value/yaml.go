package value

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// FromYAML converts a YAML node into a value. Plain YAML maps to the data
// model directly: null, booleans, integers, strings, sequences (LIST) and
// mappings (STRUCT, field order preserved). YAML floats become exact
// DECIMALs. Local tags select the other kinds:
//
//	!missing ~          MISSING
//	!null ~             NULL
//	!bag [1, 2]         BAG
//	!decimal "1.50"     DECIMAL
//	!float 1.5          FLOAT
//	!timestamp "..."    TIMESTAMP (RFC 3339)
//	!blob "AQI="        BLOB (base64)
func FromYAML(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return MissingValue, nil
		}
		return FromYAML(node.Content[0])
	case yaml.AliasNode:
		return FromYAML(node.Alias)
	case yaml.SequenceNode:
		elems := make([]Value, 0, len(node.Content))
		for i, c := range node.Content {
			v, err := FromYAML(c)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			elems = append(elems, v)
		}
		if node.Tag == "!bag" {
			return Bag(elems), nil
		}
		return List(elems), nil
	case yaml.MappingNode:
		fields := make(Struct, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, vn := node.Content[i], node.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, errors.Newf("line %d: struct keys must be scalars", k.Line)
			}
			v, err := FromYAML(vn)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", k.Value)
			}
			fields = append(fields, Field{Name: k.Value, Value: v})
		}
		return fields, nil
	case yaml.ScalarNode:
		v, err := scalarFromYAML(node)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", node.Line)
		}
		return v, nil
	}
	return nil, errors.Newf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
}

func scalarFromYAML(node *yaml.Node) (Value, error) {
	s := node.Value
	switch node.Tag {
	case "!missing":
		return MissingValue, nil
	case "!null", "!!null":
		return NullValue, nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case "!!int":
		if i, err := strconv.ParseInt(strings.ReplaceAll(s, "_", ""), 0, 64); err == nil {
			return Int(i), nil
		}
		return decimalValue(s)
	case "!!float":
		switch strings.ToLower(s) {
		case ".inf", "+.inf":
			return Float(math.Inf(1)), nil
		case "-.inf":
			return Float(math.Inf(-1)), nil
		case ".nan":
			return Float(math.NaN()), nil
		}
		return decimalValue(s)
	case "!decimal":
		return decimalValue(s)
	case "!float":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case "!timestamp", "!!timestamp":
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return NewTimestamp(t), nil
			}
		}
		return nil, errors.Newf("invalid timestamp %q", s)
	case "!blob":
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return Blob(b), nil
	case "!!str", "":
		return String(s), nil
	}
	return nil, errors.Newf("unsupported tag %s", node.Tag)
}

func decimalValue(s string) (Value, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return nil, err
	}
	return d, nil
}
