package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// JSON encoding of values is lossless. Kinds that plain JSON cannot carry
// are written as single-key tagged objects:
//
//	MISSING    {"$missing":true}
//	DECIMAL    {"$decimal":"1.50"}
//	FLOAT      {"$float":"1.5"}
//	BLOB       {"$blob":"AQI="}
//	TIMESTAMP  {"$timestamp":"2024-01-02T03:04:05Z"}
//	BAG        {"$bag":[...]}
//
// NULL, BOOL, INT, STRING and LIST use their natural JSON forms. Structs
// are JSON objects with field order preserved. A struct whose first field
// is named like a tag is wrapped as {"$struct":{...}} so it cannot be
// mistaken for one.
const (
	tagMissing   = "$missing"
	tagDecimal   = "$decimal"
	tagFloat     = "$float"
	tagBlob      = "$blob"
	tagTimestamp = "$timestamp"
	tagBag       = "$bag"
	tagStruct    = "$struct"
)

// MarshalJSON encodes v in the tagged JSON form.
func MarshalJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Missing:
		buf.WriteString(`{"` + tagMissing + `":true}`)
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Decimal:
		writeTagged(buf, tagDecimal, val.ref().String())
	case Float:
		writeTagged(buf, tagFloat, strconv.FormatFloat(float64(val), 'g', -1, 64))
	case String:
		writeJSONString(buf, string(val))
	case Blob:
		writeTagged(buf, tagBlob, base64.StdEncoding.EncodeToString(val))
	case Timestamp:
		writeTagged(buf, tagTimestamp, val.UTC().Format(time.RFC3339Nano))
	case List:
		return writeJSONArray(buf, val)
	case Bag:
		buf.WriteString(`{"` + tagBag + `":`)
		if err := writeJSONArray(buf, val); err != nil {
			return err
		}
		buf.WriteByte('}')
	case Struct:
		wrap := len(val) > 0 && isTag(val[0].Name)
		if wrap {
			buf.WriteString(`{"` + tagStruct + `":`)
		}
		buf.WriteByte('{')
		for i, f := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, f.Name)
			buf.WriteByte(':')
			if err := writeJSON(buf, f.Value); err != nil {
				return errors.Wrapf(err, "field %q", f.Name)
			}
		}
		buf.WriteByte('}')
		if wrap {
			buf.WriteByte('}')
		}
	default:
		return errors.Newf("unsupported value type %T", v)
	}
	return nil
}

func writeJSONArray(buf *bytes.Buffer, elems []Value) error {
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(buf, e); err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeTagged(buf *bytes.Buffer, tag, payload string) {
	buf.WriteString(`{"` + tag + `":`)
	writeJSONString(buf, payload)
	buf.WriteByte('}')
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// json.Encoder adds a trailing newline.
	buf.Truncate(buf.Len() - 1)
}

// UnmarshalJSON decodes a single value in the tagged JSON form.
// Untagged JSON numbers decode to INT when integral and in range,
// otherwise to DECIMAL.
func UnmarshalJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := DecodeJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// DecodeJSON reads the next value from dec. The decoder should have
// UseNumber enabled; float64 tokens are accepted but lose precision.
func DecodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return NullValue, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberValue(string(t))
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return Int(int64(t)), nil
		}
		return numberValue(strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			elems, err := decodeArrayBody(dec)
			if err != nil {
				return nil, err
			}
			return List(elems), nil
		case '{':
			return decodeObjectBody(dec)
		}
	}
	return nil, errors.Newf("unexpected JSON token %v", tok)
}

func numberValue(s string) (Value, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	d, err := ParseDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid number %q", s)
	}
	return d, nil
}

func decodeArrayBody(dec *json.Decoder) ([]Value, error) {
	elems := []Value{}
	for dec.More() {
		v, err := DecodeJSON(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", len(elems))
		}
		elems = append(elems, v)
	}
	if _, err := dec.Token(); err != nil { // ']'
		return nil, err
	}
	return elems, nil
}

// decodeObjectBody decodes an object after its opening brace. A
// single-key object whose key is a known tag decodes to the tagged kind.
func decodeObjectBody(dec *json.Decoder) (Value, error) {
	var fields Struct
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.Newf("object key must be a string, got %v", keyTok)
		}
		if len(fields) == 0 && isTag(key) {
			v, err := decodeTagged(dec, key)
			if err != nil {
				return nil, errors.Wrapf(err, "%s", key)
			}
			if dec.More() {
				return nil, errors.Newf("tagged object %s must have a single key", key)
			}
			if _, err := dec.Token(); err != nil { // '}'
				return nil, err
			}
			return v, nil
		}
		v, err := DecodeJSON(dec)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", key)
		}
		fields = append(fields, Field{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil { // '}'
		return nil, err
	}
	if fields == nil {
		fields = Struct{}
	}
	return fields, nil
}

func isTag(key string) bool {
	switch key {
	case tagMissing, tagDecimal, tagFloat, tagBlob, tagTimestamp, tagBag, tagStruct:
		return true
	}
	return false
}

func decodeTagged(dec *json.Decoder, tag string) (Value, error) {
	switch tag {
	case tagMissing:
		var b bool
		if err := dec.Decode(&b); err != nil {
			return nil, err
		}
		return MissingValue, nil
	case tagBag:
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); !ok || d != '[' {
			return nil, errors.New("bag payload must be an array")
		}
		elems, err := decodeArrayBody(dec)
		if err != nil {
			return nil, err
		}
		return Bag(elems), nil
	case tagStruct:
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, errors.New("struct payload must be an object")
		}
		var fields Struct
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			v, err := DecodeJSON(dec)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: keyTok.(string), Value: v})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return fields, nil
	}

	var payload string
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	switch tag {
	case tagDecimal:
		d, err := ParseDecimal(payload)
		if err != nil {
			return nil, err
		}
		return d, nil
	case tagFloat:
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case tagBlob:
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, err
		}
		return Blob(b), nil
	case tagTimestamp:
		t, err := time.Parse(time.RFC3339Nano, payload)
		if err != nil {
			return nil, err
		}
		return NewTimestamp(t), nil
	}
	return nil, errors.Newf("unknown tag %s", tag)
}
