// Package fval implements a dynamic, JSON-shaped value type used throughout
// the evaluation engine: flag variations, clause operands, and context
// attributes are all represented with Value.
package fval

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Type is the discriminated type tag of a Value.
type Type int

const (
	NullType Type = iota
	BoolType
	NumberType
	StringType
	ArrayType
	ObjectType
)

func (t Type) String() string {
	switch t {
	case NullType:
		return "null"
	case BoolType:
		return "bool"
	case NumberType:
		return "number"
	case StringType:
		return "string"
	case ArrayType:
		return "array"
	case ObjectType:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable dynamic value: null, bool, number, string, array, or
// object. The zero Value is Null().
type Value struct {
	valueType Type
	boolVal   bool
	numVal    float64
	strVal    string
	arrayVal  []Value
	objectVal map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{valueType: NullType} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{valueType: BoolType, boolVal: b} }

// Float64 wraps a floating-point number.
func Float64(f float64) Value { return Value{valueType: NumberType, numVal: f} }

// Int wraps an integer number. Internally numbers are always stored as
// float64; IsInt() reports whether the stored value has no fractional
// part.
func Int(i int) Value { return Value{valueType: NumberType, numVal: float64(i)} }

// String wraps a string.
func String(s string) Value { return Value{valueType: StringType, strVal: s} }

// Array wraps an ordered sequence of values.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{valueType: ArrayType, arrayVal: cp}
}

// Object wraps a string-keyed map of values.
func Object(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{valueType: ObjectType, objectVal: cp}
}

func (v Value) Type() Type { return v.valueType }

func (v Value) IsNull() bool { return v.valueType == NullType }

func (v Value) BoolValue() bool { return v.valueType == BoolType && v.boolVal }

// Float64Value returns the numeric value, or 0 if v is not a number.
func (v Value) Float64Value() float64 {
	if v.valueType != NumberType {
		return 0
	}
	return v.numVal
}

// IntValue truncates a numeric value to int; non-numbers return 0.
func (v Value) IntValue() int {
	if v.valueType != NumberType {
		return 0
	}
	return int(v.numVal)
}

// IsInt reports whether this is a number with no fractional part.
func (v Value) IsInt() bool {
	return v.valueType == NumberType && v.numVal == float64(int64(v.numVal))
}

func (v Value) StringValue() string {
	if v.valueType != StringType {
		return ""
	}
	return v.strVal
}

func (v Value) Count() int {
	switch v.valueType {
	case ArrayType:
		return len(v.arrayVal)
	case ObjectType:
		return len(v.objectVal)
	default:
		return 0
	}
}

// AtIndex returns the i'th array element, or Null() if out of range or v is
// not an array.
func (v Value) AtIndex(i int) Value {
	if v.valueType != ArrayType || i < 0 || i >= len(v.arrayVal) {
		return Null()
	}
	return v.arrayVal[i]
}

// ForEach visits every element of an array value in order.
func (v Value) ForEach(fn func(Value)) {
	if v.valueType != ArrayType {
		return
	}
	for _, item := range v.arrayVal {
		fn(item)
	}
}

// GetByKey looks up a property of an object value; returns Null() for any
// other type or missing key.
func (v Value) GetByKey(key string) Value {
	if v.valueType != ObjectType {
		return Null()
	}
	if val, ok := v.objectVal[key]; ok {
		return val
	}
	return Null()
}

// Keys returns the sorted property names of an object value.
func (v Value) Keys() []string {
	if v.valueType != ObjectType {
		return nil
	}
	keys := make([]string, 0, len(v.objectVal))
	for k := range v.objectVal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal implements structural equality. Numeric equality unifies int and
// float representations (99 == 99.0); arrays/objects compare element-wise.
func (v Value) Equal(other Value) bool {
	if v.valueType != other.valueType {
		return false
	}
	switch v.valueType {
	case NullType:
		return true
	case BoolType:
		return v.boolVal == other.boolVal
	case NumberType:
		return v.numVal == other.numVal
	case StringType:
		return v.strVal == other.strVal
	case ArrayType:
		if len(v.arrayVal) != len(other.arrayVal) {
			return false
		}
		for i := range v.arrayVal {
			if !v.arrayVal[i].Equal(other.arrayVal[i]) {
				return false
			}
		}
		return true
	case ObjectType:
		if len(v.objectVal) != len(other.objectVal) {
			return false
		}
		for k, val := range v.objectVal {
			ov, ok := other.objectVal[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	data, _ := json.Marshal(v)
	return string(data)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.valueType {
	case NullType:
		return []byte("null"), nil
	case BoolType:
		return json.Marshal(v.boolVal)
	case NumberType:
		return json.Marshal(v.numVal)
	case StringType:
		return json.Marshal(v.strVal)
	case ArrayType:
		return json.Marshal(v.arrayVal)
	case ObjectType:
		return json.Marshal(v.objectVal)
	default:
		return nil, fmt.Errorf("fval: unknown value type %d", v.valueType)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromInterface(raw)
	return nil
}

// FromInterface converts a decoded `interface{}` (as produced by
// encoding/json's default decoding) into a Value.
func FromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Float64(t)
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromInterface(item)
		}
		return Value{valueType: ArrayType, arrayVal: items}
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromInterface(item)
		}
		return Value{valueType: ObjectType, objectVal: m}
	default:
		return Null()
	}
}

// Parse decodes a raw JSON string into a Value; malformed input yields Null().
func Parse(raw string) Value {
	var v Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Null()
	}
	return v
}
