package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"null", Null(), KindNull},
		{"zero value", Value{}, KindNull},
		{"string", String("a"), KindString},
		{"number", Number(1.5), KindNumber},
		{"int", Int(2), KindNumber},
		{"bool", Bool(true), KindBool},
		{"list", List(String("a")), KindList},
		{"map", Map(PropertiesOf("k", "v")), KindMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
		})
	}
}

func TestValueEqualAndKey(t *testing.T) {
	t.Run("int and float are the same number", func(t *testing.T) {
		assert.True(t, Int(2).Equal(Number(2.0)))
		assert.Equal(t, Int(2).Key(), Number(2).Key())
	})

	t.Run("string and number differ", func(t *testing.T) {
		assert.False(t, String("2").Equal(Int(2)))
		assert.NotEqual(t, String("2").Key(), Int(2).Key())
	})

	t.Run("lists are positional", func(t *testing.T) {
		a := List(String("x"), String("y"))
		b := List(String("y"), String("x"))
		assert.False(t, a.Equal(b))
		assert.NotEqual(t, a.Key(), b.Key())
	})

	t.Run("maps ignore key order", func(t *testing.T) {
		a := Map(PropertiesOf("a", 1, "b", 2))
		b := Map(PropertiesOf("b", 2, "a", 1))
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("negative zero is zero", func(t *testing.T) {
		negZero := Number(math.Copysign(0, -1))
		assert.True(t, negZero.Equal(Int(0)))
		assert.Equal(t, Int(0).Key(), negZero.Key())
		assert.Equal(t, List(Int(0)).Key(), List(negZero).Key())
	})

	t.Run("quoting keeps keys unambiguous", func(t *testing.T) {
		a := List(String("a,b"))
		b := List(String("a"), String("b"))
		assert.NotEqual(t, a.Key(), b.Key())
	})
}

func TestValueJSONRoundTrip(t *testing.T) {
	nested := NewProperties()
	nested.Set("z", Int(1))
	nested.Set("a", List(Bool(false), Null(), String("s")))

	original := Map(nested)
	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":1,"a":[false,null,"s"]}`, string(data))
	// Order is preserved in the encoded bytes.
	assert.Equal(t, `{"z":1,"a":[false,null,"s"]}`, string(data))

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, original.Equal(decoded))

	m, ok := decoded.AsMap()
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a"}, m.Keys())
}

func TestValueMarshalRejectsNonFinite(t *testing.T) {
	_, err := json.Marshal(Number(math.Inf(1)))
	assert.Error(t, err)
}

func TestValueValidate(t *testing.T) {
	valid := []Value{
		Null(), String("héllo"), Int(3), Bool(true),
		List(String("a"), Number(1.5)),
		Map(PropertiesOf("k", "v", "n", 1)),
	}
	for _, v := range valid {
		assert.NoError(t, v.Validate(), v.String())
	}

	badKey := NewProperties()
	badKey.Set("k\xff", Int(1))

	invalid := map[string]Value{
		"bad utf-8 string":       String("a\xffb"),
		"nan":                    Number(math.NaN()),
		"inf in list":            List(Int(1), Number(math.Inf(-1))),
		"bad utf-8 in list":      List(String("ok"), String("\xfe")),
		"bad utf-8 map key":      Map(badKey),
		"bad utf-8 nested value": Map(PropertiesOf("k", List(String("\xc3")))),
	}
	for name, v := range invalid {
		assert.Error(t, v.Validate(), name)
	}

	var nilProps *Properties
	assert.NoError(t, nilProps.Validate())
}

func TestValueAccessors(t *testing.T) {
	s, ok := String("x").AsString()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = String("x").AsNumber()
	assert.False(t, ok)

	list, ok := List(Int(1), Int(2)).AsList()
	require.True(t, ok)
	list[0] = Int(99)
	again, _ := List(Int(1), Int(2)).AsList()
	assert.True(t, again[0].Equal(Int(1)))

	assert.Equal(t, "hello", String("hello").String())
	assert.Equal(t, "[1,true]", List(Int(1), Bool(true)).String())
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{"nil", nil, Null()},
		{"string", "s", String("s")},
		{"bool", true, Bool(true)},
		{"int", 3, Int(3)},
		{"uint8", uint8(7), Int(7)},
		{"float32", float32(0.5), Number(0.5)},
		{"json number", json.Number("12"), Int(12)},
		{"string slice", []string{"a", "b"}, List(String("a"), String("b"))},
		{"any slice", []any{1, "x"}, List(Int(1), String("x"))},
		{"map", map[string]any{"b": 1, "a": "x"}, Map(PropertiesOf("a", "x", "b", 1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := FromAny(struct{}{})
		assert.Error(t, err)
	})

	t.Run("map keys are sorted", func(t *testing.T) {
		got, err := FromAny(map[string]any{"b": 1, "a": 2, "c": 3})
		require.NoError(t, err)
		m, _ := got.AsMap()
		assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
	})
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"null", Null()},
		{"2", Int(2)},
		{"-2.5", Number(-2.5)},
		{"section", String("section")},
		{`"2"`, String("2")},
		{`["a",1]`, List(String("a"), Int(1))},
		{`{"k":"v"}`, Map(PropertiesOf("k", "v"))},
		{"NaN", String("NaN")},
		{"[not json", String("[not json")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseLiteral(tt.in)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}
