package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Value is a sealed interface representing constrained field value types.
// Only String, Int, Bool, Time, and Null implement this.
// NO Float - floats are forbidden in records (CP-1, breaks determinism).
type Value interface {
	value() // Sealed - only these types implement it
}

// Type identifies the declared type of a schema field.
type Type string

const (
	// TypeText is a human-readable string field.
	TypeText Type = "text"

	// TypeInt is a 64-bit integer field.
	TypeInt Type = "int"

	// TypeBool is a boolean field.
	TypeBool Type = "bool"

	// TypeTime is a timestamp field, persisted as unix seconds.
	TypeTime Type = "time"
)

// Valid reports whether t is a known field type.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeInt, TypeBool, TypeTime:
		return true
	}
	return false
}

// Ordered reports whether values of this type support ordering
// comparisons (<, <=, >, >=) in predicates and sort keys.
// Text is ordered too: it sorts under the store's locale collation.
func (t Type) Ordered() bool {
	switch t {
	case TypeText, TypeInt, TypeTime:
		return true
	}
	return false
}

// String represents a text field value.
type String string

func (String) value() {}

// Int represents an integer field value.
// Always int64, never float64 (CP-1).
type Int int64

func (Int) value() {}

// Bool represents a boolean field value.
type Bool bool

func (Bool) value() {}

// Time represents a timestamp field value in unix seconds.
// Sub-second precision is deliberately dropped: integer seconds keep
// serialization and SQL comparison deterministic.
type Time int64

func (Time) value() {}

// NewTime creates a Time value from a time.Time, truncating to seconds.
func NewTime(t time.Time) Time {
	return Time(t.Unix())
}

// Std returns the value as a time.Time in UTC.
func (t Time) Std() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Null represents an absent field value.
// Using an explicit type ensures all Values satisfy the sealed interface.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// TypeOf returns the declared Type a value belongs to.
// Null has no type; ok is false.
func TypeOf(v Value) (Type, bool) {
	switch v.(type) {
	case String:
		return TypeText, true
	case Int:
		return TypeInt, true
	case Bool:
		return TypeBool, true
	case Time:
		return TypeTime, true
	default:
		return "", false
	}
}

// Param converts a Value to a Go native type usable as an SQL parameter.
// Time values become their unix-second integer representation.
func Param(v Value) (any, error) {
	switch val := v.(type) {
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Bool:
		return bool(val), nil
	case Time:
		return int64(val), nil
	case Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

// FromJSON converts a decoded JSON value into a Value of the declared type.
// JSON numbers must arrive as json.Number (use a decoder with UseNumber)
// to avoid float64 precision loss for values above 2^53.
func FromJSON(raw any, typ Type) (Value, error) {
	if raw == nil {
		return Null{}, nil
	}
	switch typ {
	case TypeText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected text, got %T", raw)
		}
		return String(s), nil
	case TypeInt:
		n, err := jsonInt(raw)
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	case TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return Bool(b), nil
	case TypeTime:
		n, err := jsonInt(raw)
		if err != nil {
			return nil, err
		}
		return Time(n), nil
	default:
		return nil, fmt.Errorf("unknown field type %q", typ)
	}
}

// jsonInt extracts an int64 from a decoded JSON value.
// Rejects fractional numbers rather than silently truncating.
func jsonInt(raw any) (int64, error) {
	switch n := raw.(type) {
	case json.Number:
		v, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q: %w", n.String(), err)
		}
		return v, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}
