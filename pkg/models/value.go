package models

import (
	"encoding/json"
	"fmt"
)

// ValueKind discriminates the variants of a parameter Value.
type ValueKind string

const (
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindString ValueKind = "string"
	KindBool   ValueKind = "bool"
)

// Value is the common currency for sampled hyperparameter values: a small
// tagged union over integer, real, string and boolean. The zero Value is an
// empty string value.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// IntValue builds an integer Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue builds a real Value.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// StringValue builds a string Value.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// BoolValue builds a boolean Value.
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Numeric converts an integer or real Value to float64. The second return
// is false for string and boolean values.
func (v Value) Numeric() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// Equal reports exact value-for-value equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindBool:
		return v.Bool == o.Bool
	}
	return false
}

// String renders the value for logs and diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return v.Str
	}
}

// valueWire is the persisted form of a Value.
type valueWire struct {
	Kind   ValueKind `json:"kind"`
	Int    *int64    `json:"int,omitempty"`
	Float  *float64  `json:"float,omitempty"`
	String *string   `json:"string,omitempty"`
	Bool   *bool     `json:"bool,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	w := valueWire{Kind: v.Kind}
	if w.Kind == "" {
		w.Kind = KindString
	}
	switch w.Kind {
	case KindInt:
		w.Int = &v.Int
	case KindFloat:
		w.Float = &v.Float
	case KindString:
		w.String = &v.Str
	case KindBool:
		w.Bool = &v.Bool
	default:
		return nil, fmt.Errorf("unknown value kind: %q", v.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case KindInt:
		v.Kind = KindInt
		if w.Int != nil {
			v.Int = *w.Int
		}
	case KindFloat:
		v.Kind = KindFloat
		if w.Float != nil {
			v.Float = *w.Float
		}
	case KindString:
		v.Kind = KindString
		if w.String != nil {
			v.Str = *w.String
		}
	case KindBool:
		v.Kind = KindBool
		if w.Bool != nil {
			v.Bool = *w.Bool
		}
	default:
		return fmt.Errorf("unknown value kind: %q", w.Kind)
	}
	return nil
}

// Assignment maps parameter names to sampled values, one entry per spec.
type Assignment map[string]Value

// Equal reports whether two assignments agree on every key of both maps.
func (a Assignment) Equal(o Assignment) bool {
	if len(a) != len(o) {
		return false
	}
	for k, v := range a {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no map storage with the receiver.
func (a Assignment) Clone() Assignment {
	if a == nil {
		return nil
	}
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
