// Package value provides the typed property values stored on nodes, edges and
// attribute index entries.
//
// A Value is a closed variant: it is exactly one of null, string, number,
// bool, list or map. Maps are ordered (see Properties), so a record keeps the
// key order it was written with through encoding and decoding.
//
// Example:
//
//	props := value.NewProperties()
//	props.Set("title", value.String("Introduction"))
//	props.Set("level", value.Int(2))
//	props.Set("tags", value.List(value.String("intro"), value.String("draft")))
//
//	level, _ := props.Get("level")
//	n, _ := level.AsNumber() // 2
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable tagged property value. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	bln  bool
	list []Value
	obj  *Properties
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric value from an integer.
func Int(i int64) Value { return Value{kind: KindNumber, num: float64(i)} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, bln: b} }

// List returns a list value holding a copy of items.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Map returns a map value holding a copy of props. A nil props yields an
// empty map.
func Map(props *Properties) Value {
	if props == nil {
		return Value{kind: KindMap, obj: NewProperties()}
	}
	return Value{kind: KindMap, obj: props.Clone()}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.bln, v.kind == KindBool }

// AsList returns a copy of the list payload.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// AsMap returns a copy of the map payload.
func (v Value) AsMap() (*Properties, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.obj.Clone(), true
}

// Equal reports whether v and other hold the same variant and payload.
// Map equality is order-insensitive; list equality is positional.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num || (math.IsNaN(v.num) && math.IsNaN(other.num))
	case KindBool:
		return v.bln == other.bln
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.obj.Equal(other.obj)
	}
	return false
}

// Validate reports whether v survives a JSON round trip unchanged: every
// number must be finite and every string, including map keys, valid UTF-8.
func (v Value) Validate() error {
	switch v.kind {
	case KindString:
		if !utf8.ValidString(v.str) {
			return fmt.Errorf("value: invalid UTF-8 in string %q", v.str)
		}
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("value: non-finite number %v", v.num)
		}
	case KindList:
		for _, item := range v.list {
			if err := item.Validate(); err != nil {
				return err
			}
		}
	case KindMap:
		return v.obj.Validate()
	}
	return nil
}

// Key returns a canonical string form of v. Two values have the same key if
// and only if they are Equal, which makes Key suitable as a map key.
func (v Value) Key() string {
	var b strings.Builder
	v.writeKey(&b)
	return b.String()
}

func (v Value) writeKey(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("z")
	case KindString:
		b.WriteString("s")
		b.WriteString(strconv.Quote(v.str))
	case KindNumber:
		b.WriteString("n")
		num := v.num
		if num == 0 {
			num = 0 // -0 and 0 are Equal
		}
		b.WriteString(strconv.FormatFloat(num, 'g', -1, 64))
	case KindBool:
		if v.bln {
			b.WriteString("bt")
		} else {
			b.WriteString("bf")
		}
	case KindList:
		b.WriteString("l[")
		for i, item := range v.list {
			if i > 0 {
				b.WriteByte(',')
			}
			item.writeKey(b)
		}
		b.WriteByte(']')
	case KindMap:
		// Sorted keys: map equality ignores insertion order.
		b.WriteString("m{")
		for i, k := range v.obj.sortedKeys() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			item, _ := v.obj.Get(k)
			item.writeKey(b)
		}
		b.WriteByte('}')
	}
}

// String renders v for humans: strings unquoted, everything else as JSON.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(data)
}

// Interface converts v into plain Go values (nil, string, float64, bool,
// []any, map[string]any).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.bln
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.obj.Len())
		v.obj.Range(func(k string, item Value) bool {
			out[k] = item.Interface()
			return true
		})
		return out
	}
	return nil
}

// MarshalJSON encodes v in its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("value: cannot encode non-finite number %v", v.num)
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.bln)
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		return v.obj.MarshalJSON()
	}
	return nil, fmt.Errorf("value: unknown kind %d", v.kind)
}

// UnmarshalJSON decodes any JSON document into v, keeping object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	decoded, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("value: trailing data after JSON value")
	}
	*v = decoded
	return nil
}

// decodeValue reads one JSON value from the token stream.
func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("value: %w", err)
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '[':
			items := make([]Value, 0)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("value: %w", err)
			}
			return Value{kind: KindList, list: items}, nil
		case '{':
			props, err := decodeObjectBody(dec)
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindMap, obj: props}, nil
		}
	}
	return Value{}, fmt.Errorf("value: unexpected token %v", tok)
}

// decodeObjectBody reads the members of an object whose opening brace has
// already been consumed, including the closing brace.
func decodeObjectBody(dec *json.Decoder) (*Properties, error) {
	props := NewProperties()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("value: object key is %T, not string", keyTok)
		}
		item, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		props.Set(key, item)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return props, nil
}
