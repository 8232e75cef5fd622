package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	cerr "github.com/Ap3pp3rs94/chartly-apex/pkg/errors"
)

// Member is one key/value of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps source key order.
type Object []Member

func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

func (o Object) Keys() []string {
	out := make([]string, len(o))
	for i, m := range o {
		out[i] = m.Key
	}
	return out
}

func (o Object) Values() []any {
	out := make([]any, len(o))
	for i, m := range o {
		out[i] = m.Value
	}
	return out
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeJSON decodes one JSON document. Objects become Object (order kept),
// arrays []any, numbers float64, and trailing data is an error.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after json value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Object{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", kt)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj = setMember(obj, key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, nil
		}
		return t.String(), nil
	default:
		// string, bool, nil
		return t, nil
	}
}

// setMember keeps first-seen position for duplicate keys, last value wins.
func setMember(o Object, key string, val any) Object {
	for i := range o {
		if o[i].Key == key {
			o[i].Value = val
			return o
		}
	}
	return append(o, Member{Key: key, Value: val})
}

// Shape is the structural class of a data payload.
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeScalars
	ShapePairs
	ShapePoints
	ShapeNamedSeries
	ShapeCategoryMap
)

func (s Shape) String() string {
	switch s {
	case ShapeScalars:
		return "scalars"
	case ShapePairs:
		return "pairs"
	case ShapePoints:
		return "points"
	case ShapeNamedSeries:
		return "named-series"
	case ShapeCategoryMap:
		return "category-map"
	default:
		return "empty"
	}
}

// Pair is one [x, y] entry.
type Pair struct {
	X any
	Y any
}

// NamedSeries is one {name, data, color?, dashed?} element; Body is the raw data value.
type NamedSeries struct {
	Name   string
	Body   any
	Color  string
	Dashed bool
}

// Payload is the classified data payload. Exactly one of the slices is set, per Shape.
type Payload struct {
	Shape      Shape
	Scalars    []any
	Pairs      []Pair
	Points     []Pair
	Series     []NamedSeries
	Categories Object
}

// ParsePayload decodes and classifies a data attribute value.
// An empty string is an empty payload; malformed JSON returns data.malformed
// together with an empty payload.
func ParsePayload(raw string) (Payload, error) {
	if strings.TrimSpace(raw) == "" {
		return Payload{}, nil
	}
	v, err := DecodeJSON([]byte(raw))
	if err != nil {
		return Payload{}, cerr.Wrap(cerr.DataMalformed, err, "invalid data json: "+err.Error())
	}
	return Classify(v), nil
}

// Classify inspects structure only: array-ness, a name on the first element,
// and array-vs-object nesting.
func Classify(v any) Payload {
	switch x := v.(type) {
	case []any:
		if len(x) == 0 {
			return Payload{}
		}
		if first, ok := x[0].(Object); ok {
			if name, ok := first.Get("name"); ok && truthy(name) {
				return Payload{Shape: ShapeNamedSeries, Series: namedSeries(x)}
			}
			if isPoint(first) {
				return Payload{Shape: ShapePoints, Points: points(x)}
			}
		}
		if _, ok := x[0].([]any); ok {
			return Payload{Shape: ShapePairs, Pairs: pairs(x)}
		}
		return Payload{Shape: ShapeScalars, Scalars: append([]any(nil), x...)}
	case Object:
		if len(x) == 0 {
			return Payload{}
		}
		return Payload{Shape: ShapeCategoryMap, Categories: append(Object(nil), x...)}
	default:
		return Payload{}
	}
}

func namedSeries(items []any) []NamedSeries {
	out := make([]NamedSeries, 0, len(items))
	for _, it := range items {
		obj, ok := it.(Object)
		if !ok {
			continue
		}
		ns := NamedSeries{}
		if n, ok := obj.Get("name"); ok {
			ns.Name = scalarString(n)
		}
		ns.Body, _ = obj.Get("data")
		if c, ok := obj.Get("color"); ok {
			ns.Color, _ = c.(string)
		}
		if d, ok := obj.Get("dashed"); ok {
			ns.Dashed = d == true || d == "true"
		}
		out = append(out, ns)
	}
	return out
}

func isPoint(o Object) bool {
	_, hasX := o.Get("x")
	_, hasY := o.Get("y")
	return hasX && hasY
}

func points(items []any) []Pair {
	out := make([]Pair, 0, len(items))
	for _, it := range items {
		obj, ok := it.(Object)
		if !ok {
			continue
		}
		x, _ := obj.Get("x")
		y, _ := obj.Get("y")
		out = append(out, Pair{X: x, Y: y})
	}
	return out
}

func pairs(items []any) []Pair {
	out := make([]Pair, 0, len(items))
	for _, it := range items {
		arr, ok := it.([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		p := Pair{X: arr[0]}
		if len(arr) > 1 {
			p.Y = arr[1]
		}
		out = append(out, p)
	}
	return out
}

// truthy follows loose boolean reading of decoded JSON values.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// ParseJSONObject decodes an options-style value into a plain map.
// Non-object JSON is reported as options.malformed.
func ParseJSONObject(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&v); err != nil {
		return map[string]any{}, cerr.Wrap(cerr.OptionsMalformed, err, "invalid options json: "+err.Error())
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, cerr.Newf(cerr.OptionsMalformed, "options must be a json object, got %T", v)
	}
	return m, nil
}

// ParseStringList decodes a JSON array attribute (categories, colors) into strings.
func ParseStringList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var v []any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, cerr.Wrap(cerr.AttributeInvalid, err, "invalid json array: "+err.Error())
	}
	out := make([]string, 0, len(v))
	for _, it := range v {
		out = append(out, scalarString(it))
	}
	return out, nil
}
