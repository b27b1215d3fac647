package hook

import (
	"strconv"
)

// Value is one extracted argument, tagged with its declared type.
// The zero Value is "not provided".
type Value struct {
	Type     ParamType
	Provided bool
	Text     string
	Number   float64
	Bool     bool
}

// StringValue is a provided string argument.
func StringValue(s string) Value { return Value{Type: TypeString, Provided: true, Text: s} }

// NumberValue is a provided number argument.
func NumberValue(n float64) Value { return Value{Type: TypeNumber, Provided: true, Number: n} }

// BoolValue is a provided boolean argument.
func BoolValue(b bool) Value { return Value{Type: TypeBoolean, Provided: true, Bool: b} }

// EnumValue is a provided enum argument, already normalized to its declared spelling.
func EnumValue(s string) Value { return Value{Type: TypeEnum, Provided: true, Text: s} }

// Absent is the explicit "not provided" value for an optional parameter.
func Absent(t ParamType) Value { return Value{Type: t} }

// Raw returns the plain Go value; nil when the value was not provided.
func (v Value) Raw() any {
	if !v.Provided {
		return nil
	}
	switch v.Type {
	case TypeNumber:
		return v.Number
	case TypeBoolean:
		return v.Bool
	default:
		return v.Text
	}
}

// String renders the value for templates and logs. Absent values render empty.
func (v Value) String() string {
	if !v.Provided {
		return ""
	}
	switch v.Type {
	case TypeNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case TypeBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Text
	}
}

// Arguments maps parameter names to extracted values.
type Arguments map[string]Value

// Clone returns an independent copy.
func (a Arguments) Clone() Arguments {
	if a == nil {
		return Arguments{}
	}
	out := make(Arguments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// String returns the text of a provided string or enum argument.
func (a Arguments) String(name string) (string, bool) {
	v, ok := a[name]
	if !ok || !v.Provided || (v.Type != TypeString && v.Type != TypeEnum) {
		return "", false
	}
	return v.Text, true
}

// Number returns a provided number argument.
func (a Arguments) Number(name string) (float64, bool) {
	v, ok := a[name]
	if !ok || !v.Provided || v.Type != TypeNumber {
		return 0, false
	}
	return v.Number, true
}

// Bool returns a provided boolean argument.
func (a Arguments) Bool(name string) (bool, bool) {
	v, ok := a[name]
	if !ok || !v.Provided || v.Type != TypeBoolean {
		return false, false
	}
	return v.Bool, true
}

// Raw flattens the arguments for JSON and templates.
func (a Arguments) Raw() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v.Raw()
	}
	return out
}

// Strings renders every argument as text, absent values as "".
func (a Arguments) Strings() map[string]string {
	out := make(map[string]string, len(a))
	for k, v := range a {
		out[k] = v.String()
	}
	return out
}
