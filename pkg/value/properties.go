package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Properties is an insertion-ordered mapping from string keys to Values.
//
// Setting an existing key replaces its value in place and keeps its original
// position. Deleting a key removes it from the order.
//
// A nil *Properties behaves as an empty, read-only map for every read method.
//
// Thread Safety:
//
//	Properties is NOT thread-safe. The storage engines copy on the way in
//	and out, so records returned by an engine can be modified freely.
type Properties struct {
	keys   []string
	values map[string]Value
}

// NewProperties returns an empty property map.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]Value)}
}

// PropertiesOf builds a property map from alternating key/value pairs.
// It panics on an odd argument count or a non-string key; it is intended for
// literals in code and tests.
func PropertiesOf(kv ...any) *Properties {
	if len(kv)%2 != 0 {
		panic("value: PropertiesOf needs key/value pairs")
	}
	p := NewProperties()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("value: PropertiesOf key %v is not a string", kv[i]))
		}
		v, err := FromAny(kv[i+1])
		if err != nil {
			panic(err)
		}
		p.Set(key, v)
	}
	return p
}

// Set stores v under key.
func (p *Properties) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Delete removes key and reports whether it was present.
func (p *Properties) Delete(key string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.values[key]; !ok {
		return false
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of keys.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (p *Properties) Range(fn func(key string, v Value) bool) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		if !fn(k, p.values[k]) {
			return
		}
	}
}

// Validate checks every key and value the way Value.Validate does.
// A nil Properties is valid.
func (p *Properties) Validate() error {
	if p == nil {
		return nil
	}
	for _, k := range p.Keys() {
		if !utf8.ValidString(k) {
			return fmt.Errorf("value: invalid UTF-8 in key %q", k)
		}
		v, _ := p.Get(k)
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%q: %w", k, err)
		}
	}
	return nil
}

// Clone returns a copy of p. Values are immutable so the copy is deep.
func (p *Properties) Clone() *Properties {
	out := NewProperties()
	if p == nil {
		return out
	}
	out.keys = make([]string, len(p.keys))
	copy(out.keys, p.keys)
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether p and other hold the same keys with Equal values.
// Key order is ignored.
func (p *Properties) Equal(other *Properties) bool {
	if p.Len() != other.Len() {
		return false
	}
	equal := true
	p.Range(func(k string, v Value) bool {
		ov, ok := other.Get(k)
		if !ok || !v.Equal(ov) {
			equal = false
		}
		return equal
	})
	return equal
}

func (p *Properties) sortedKeys() []string {
	keys := p.Keys()
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes p as a JSON object in insertion order.
func (p *Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	var err error
	p.Range(func(k string, v Value) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var key, val []byte
		if key, err = json.Marshal(k); err != nil {
			return false
		}
		if val, err = v.MarshalJSON(); err != nil {
			err = fmt.Errorf("property %q: %w", k, err)
			return false
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into p, keeping key order. A JSON null
// yields an empty map.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if tok == nil {
		*p = *NewProperties()
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("value: properties must be a JSON object, got %v", tok)
	}
	decoded, err := decodeObjectBody(dec)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}
