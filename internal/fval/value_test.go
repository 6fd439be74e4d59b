package fval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual_NumericUnification(t *testing.T) {
	assert.True(t, Int(99).Equal(Float64(99.0)))
	assert.False(t, String("99").Equal(Int(99)))
}

func TestEqual_Arrays(t *testing.T) {
	a := Array(Int(1), String("x"))
	b := Array(Int(1), String("x"))
	c := Array(Int(1), String("y"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestIsInt(t *testing.T) {
	assert.True(t, Int(5).IsInt())
	assert.False(t, Float64(5.5).IsInt())
}

func TestFromInterface_RoundTrip(t *testing.T) {
	var raw interface{}
	data := []byte(`{"a":1,"b":[true,null,"s"]}`)
	require.NoError(t, json.Unmarshal(data, &raw))
	v := FromInterface(raw)
	assert.Equal(t, ObjectType, v.Type())
	assert.Equal(t, 1, v.GetByKey("a").IntValue())
	arr := v.GetByKey("b")
	assert.Equal(t, 3, arr.Count())
	assert.True(t, arr.AtIndex(0).BoolValue())
	assert.True(t, arr.AtIndex(1).IsNull())
	assert.Equal(t, "s", arr.AtIndex(2).StringValue())
}

func TestMarshalUnmarshalJSON(t *testing.T) {
	v := Object(map[string]Value{"x": Int(1), "y": Array(String("a"))})
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, v.Equal(back))
}

func TestParse_Malformed(t *testing.T) {
	assert.True(t, Parse("{not json").IsNull())
}

func TestKeys_Sorted(t *testing.T) {
	v := Object(map[string]Value{"b": Null(), "a": Null(), "c": Null()})
	assert.Equal(t, []string{"a", "b", "c"}, v.Keys())
}
