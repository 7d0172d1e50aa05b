package settings

import (
	"encoding/json"
	"math"

	"github.com/cuemby/tca/internal/errs"
)

// Value is the tagged union of JSON primitives spec.md §9 requires for
// dynamic settings: null | bool | int | float | string | list | map.
// Decoding goes through encoding/json's own type assertions rather than a
// hand-rolled token scanner, then typed accessors below reject anything
// that doesn't fit the caller's expected shape instead of silently
// coercing (e.g. truncating a float to an int).
type Value struct {
	raw any
}

// Decode parses one settings-table JSON value, rejecting NaN/±Inf (which
// encoding/json already refuses to marshal, but a value assembled in Go
// code before being stored must still be checked here).
func Decode(data json.RawMessage) (Value, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, errs.Validation("decode setting value: %v", err)
	}
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return Value{}, errs.Validation("setting value is NaN or infinite")
	}
	return Value{raw: v}, nil
}

// Encode is the inverse of Decode, used when writing a setting back.
func Encode(v any) (json.RawMessage, error) {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil, errs.Validation("setting value is NaN or infinite")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Validation("encode setting value: %v", err)
	}
	return b, nil
}

func (v Value) IsNull() bool { return v.raw == nil }

func (v Value) Int(key string) (int, error) {
	f, ok := v.raw.(float64)
	if !ok {
		return 0, errs.Validation("setting %q is not a number", key)
	}
	if f != math.Trunc(f) {
		return 0, errs.Validation("setting %q is not an integer", key)
	}
	return int(f), nil
}

func (v Value) Float(key string) (float64, error) {
	f, ok := v.raw.(float64)
	if !ok {
		return 0, errs.Validation("setting %q is not a number", key)
	}
	return f, nil
}

func (v Value) Bool(key string) (bool, error) {
	b, ok := v.raw.(bool)
	if !ok {
		return false, errs.Validation("setting %q is not a boolean", key)
	}
	return b, nil
}

func (v Value) String(key string) (string, error) {
	s, ok := v.raw.(string)
	if !ok {
		return "", errs.Validation("setting %q is not a string", key)
	}
	return s, nil
}

func (v Value) List(key string) ([]Value, error) {
	l, ok := v.raw.([]any)
	if !ok {
		return nil, errs.Validation("setting %q is not a list", key)
	}
	out := make([]Value, len(l))
	for i, e := range l {
		out[i] = Value{raw: e}
	}
	return out, nil
}

func (v Value) Map(key string) (map[string]Value, error) {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil, errs.Validation("setting %q is not a map", key)
	}
	out := make(map[string]Value, len(m))
	for k, e := range m {
		out[k] = Value{raw: e}
	}
	return out, nil
}
