// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package autopilot

import (
	"encoding/json"
	"fmt"

	"github.com/flightlog-foundation/flightlog/lib/codec"
)

// Meta bounds: at most 32 keys per level, string values at most 1 KiB,
// and at most one level of nesting below the top. The bag is small by
// contract; it carries operator context, not payload data.
const (
	maxMetaKeys      = 32
	maxMetaStringLen = 1024
)

// Meta is the opaque key/value bag attached to an event. It is a
// bounded tagged-value type rather than free-form JSON: every value is
// a string, number, bool, or a single level of nested map. The bounds
// leave no place in a Meta for unbounded payload data to hide, and the
// compact projection never carries it anyway.
type Meta map[string]Value

// Validate enforces the size and depth bounds. A nil Meta is valid.
func (m Meta) Validate() error {
	if len(m) > maxMetaKeys {
		return fmt.Errorf("autopilot: meta has %d keys, limit %d", len(m), maxMetaKeys)
	}
	for key, value := range m {
		if err := value.validate(false); err != nil {
			return fmt.Errorf("autopilot: meta key %q: %w", key, err)
		}
	}
	return nil
}

type valueKind uint8

const (
	kindInvalid valueKind = iota
	kindString
	kindNumber
	kindBool
	kindMap
)

// Value is one tagged meta value: string | number | bool | nested map
// of leaf values. Construct with String, Number, Bool, or Map; decode
// via JSON or CBOR unmarshalling.
type Value struct {
	kind  valueKind
	str   string
	num   float64
	flag  bool
	child map[string]Value
}

// String returns a string-tagged value.
func String(s string) Value { return Value{kind: kindString, str: s} }

// Number returns a number-tagged value.
func Number(f float64) Value { return Value{kind: kindNumber, num: f} }

// Bool returns a bool-tagged value.
func Bool(b bool) Value { return Value{kind: kindBool, flag: b} }

// Map returns a nested-map value. The nested level may only hold leaf
// values; Validate rejects deeper nesting.
func Map(m map[string]Value) Value { return Value{kind: kindMap, child: m} }

// Any converts the value to its plain Go representation (string,
// float64, bool, or map[string]any).
func (v Value) Any() any {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return v.num
	case kindBool:
		return v.flag
	case kindMap:
		out := make(map[string]any, len(v.child))
		for key, value := range v.child {
			out[key] = value.Any()
		}
		return out
	}
	return nil
}

func (v Value) validate(nested bool) error {
	switch v.kind {
	case kindString:
		if len(v.str) > maxMetaStringLen {
			return fmt.Errorf("string value of %d bytes exceeds limit %d", len(v.str), maxMetaStringLen)
		}
	case kindNumber, kindBool:
		// Always within bounds.
	case kindMap:
		if nested {
			return fmt.Errorf("nesting deeper than one level")
		}
		if len(v.child) > maxMetaKeys {
			return fmt.Errorf("nested map has %d keys, limit %d", len(v.child), maxMetaKeys)
		}
		for key, value := range v.child {
			if err := value.validate(true); err != nil {
				return fmt.Errorf("nested key %q: %w", key, err)
			}
		}
	default:
		return fmt.Errorf("uninitialized meta value")
	}
	return nil
}

// MarshalJSON encodes the value as its plain JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == kindInvalid {
		return nil, fmt.Errorf("autopilot: marshaling uninitialized meta value")
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes a JSON scalar or object into a tagged value.
// Arrays and null are rejected: they have no place in the bounded
// meta model.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("autopilot: empty meta value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{':
		var m map[string]Value
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = Map(m)
	case '[', 'n':
		return fmt.Errorf("autopilot: meta values must be string, number, bool, or object")
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	}
	return nil
}

// MarshalCBOR encodes the value as its plain CBOR form.
func (v Value) MarshalCBOR() ([]byte, error) {
	if v.kind == kindInvalid {
		return nil, fmt.Errorf("autopilot: marshaling uninitialized meta value")
	}
	return codec.Marshal(v.Any())
}

// UnmarshalCBOR decodes a CBOR scalar or map into a tagged value.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var decoded any
	if err := codec.Unmarshal(data, &decoded); err != nil {
		return err
	}
	value, err := valueFromAny(decoded)
	if err != nil {
		return err
	}
	*v = value
	return nil
}

func valueFromAny(decoded any) (Value, error) {
	switch typed := decoded.(type) {
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case float64:
		return Number(typed), nil
	case int64:
		return Number(float64(typed)), nil
	case uint64:
		return Number(float64(typed)), nil
	case map[string]any:
		child := make(map[string]Value, len(typed))
		for key, raw := range typed {
			value, err := valueFromAny(raw)
			if err != nil {
				return Value{}, fmt.Errorf("nested key %q: %w", key, err)
			}
			child[key] = value
		}
		return Map(child), nil
	}
	return Value{}, fmt.Errorf("autopilot: unsupported meta value type %T", decoded)
}
