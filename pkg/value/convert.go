package value

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FromAny converts a plain Go value into a Value.
//
// Supported inputs:
//   - nil
//   - Value, *Properties
//   - string, bool
//   - every built-in integer and float type, json.Number
//   - []any, []string, []Value and other slices of supported types via []any
//   - map[string]any (keys are sorted, since Go maps carry no order)
//
// Anything else is rejected with an error rather than stored loosely.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case *Properties:
		return Map(val), nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid number %q: %w", val.String(), err)
		}
		return Number(f), nil
	case []Value:
		return List(val...), nil
	case []string:
		items := make([]Value, len(val))
		for i, s := range val {
			items[i] = String(s)
		}
		return Value{kind: KindList, list: items}, nil
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("list item %d: %w", i, err)
			}
			items[i] = converted
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		props := NewProperties()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			converted, err := FromAny(val[k])
			if err != nil {
				return Value{}, fmt.Errorf("map key %q: %w", k, err)
			}
			props.Set(k, converted)
		}
		return Value{kind: KindMap, obj: props}, nil
	}
	if f, ok := toFloat64(v); ok {
		return Number(f), nil
	}
	return Value{}, fmt.Errorf("value: unsupported type %T", v)
}

// toFloat64 converts the built-in numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

// ParseLiteral interprets command-line text as a Value.
//
//	"true" / "false"   -> bool
//	"null"             -> null
//	"42", "-2.5"       -> number
//	"[...]" / "{...}"  -> list / map (JSON)
//	"\"quoted\""       -> string without the quotes
//	anything else      -> string as given
func ParseLiteral(s string) Value {
	trimmed := strings.TrimSpace(s)
	switch trimmed {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null":
		return Null()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && trimmed != "" &&
		!strings.EqualFold(trimmed, "nan") && !strings.HasSuffix(strings.ToLower(trimmed), "inf") &&
		!strings.HasSuffix(strings.ToLower(trimmed), "infinity") {
		return Number(f)
	}
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "\"") {
		var v Value
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return String(s)
}
