package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(math.MaxInt64), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"null", Null{}, "null"},
		{"float", Float(0.5), "0.5"},
		{"whole float", Float(60), "60"},
		{"zero float", Float(0), "0"},
		{"tiny float", Float(1e-7), "1e-7"},
		{"huge float", Float(1e21), "1e+21"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", Object{"a": Int(1)}, `{"a":1}`},
		{"plain map", map[string]any{"b": true, "a": "x"}, `{"a":"x","b":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"alpha": Int(2),
		"nested": Object{
			"b": Int(1),
			"a": Int(2),
		},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"nested":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	// A literal backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(Float(math.Inf(1)))
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(3), Float(3)))
	assert.True(t, Equal(Float(3), Int(3)))
	assert.False(t, Equal(Int(3), String("3")))
	assert.True(t, Equal(Null{}, Null{}))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, Null{}))
	assert.True(t, Equal(
		Object{"a": Array{Int(1), Bool(true)}},
		Object{"a": Array{Int(1), Bool(true)}},
	))
	assert.False(t, Equal(
		Object{"a": Array{Int(1)}},
		Object{"a": Array{Int(1), Int(2)}},
	))
	assert.False(t, Equal(Object{"a": Int(1)}, Object{"b": Int(1)}))
}

func TestCloneIsDeep(t *testing.T) {
	orig := Object{"list": Array{Int(1)}, "inner": Object{"x": Int(1)}}
	cp := orig.Clone()

	cp["list"].(Array)[0] = Int(99)
	cp["inner"].(Object)["x"] = Int(99)

	assert.Equal(t, Int(1), orig["list"].(Array)[0])
	assert.Equal(t, Int(1), orig["inner"].(Object)["x"])
}

func TestFromGoAndToGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"n":    1,
		"f":    1.5,
		"s":    "x",
		"b":    true,
		"nil":  nil,
		"list": []any{1, "two"},
	})
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Int(1), obj["n"])
	assert.Equal(t, Float(1.5), obj["f"])
	assert.Equal(t, Null{}, obj["nil"])
	assert.Equal(t, Array{Int(1), String("two")}, obj["list"])

	back := ToGo(v).(map[string]any)
	assert.Equal(t, int64(1), back["n"])
	assert.Equal(t, 1.5, back["f"])
	assert.Nil(t, back["nil"])

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"a":1,"b":1.25,"c":[true,null],"d":"s"}`))
	require.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, Int(1), obj["a"])
	assert.Equal(t, Float(1.25), obj["b"])
	assert.Equal(t, Array{Bool(true), Null{}}, obj["c"])
	assert.Equal(t, String("s"), obj["d"])

	var decoded Object
	require.NoError(t, decoded.UnmarshalJSON([]byte(`{"k":"v"}`)))
	assert.Equal(t, Object{"k": String("v")}, decoded)
	assert.Error(t, decoded.UnmarshalJSON([]byte(`[1]`)))
}

func TestLayoutHashStable(t *testing.T) {
	a := Object{"process": String("game"), "version": String("1.2")}
	b := Object{"version": String("1.2"), "process": String("game")}

	assert.Equal(t, MustLayoutHash(a), MustLayoutHash(b))
	assert.Len(t, MustLayoutHash(a), 64)

	c := Object{"process": String("game"), "version": String("1.3")}
	assert.NotEqual(t, MustLayoutHash(a), MustLayoutHash(c))

	s1, err := SnapshotHash(Object{"x": Int(1)})
	require.NoError(t, err)
	s2, err := SnapshotHash(Object{"x": Int(2)})
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
}
