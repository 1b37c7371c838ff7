package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Record is a persisted entity instance.
//
// Identity (ID) is assigned once at creation and never reassigned (CP-2).
// OwnerID and Position express the ownership edge: a record with a
// non-empty OwnerID is a child in its owner's collection, ordered by
// Position. The child-side back-reference and the owner-side collection
// are the same stored edge, so they cannot disagree.
type Record struct {
	// ID is the stable UUIDv7 identity.
	ID string

	// Kind names the schema kind this record belongs to (e.g. "User").
	Kind string

	// Fields holds the scalar field values declared by the kind.
	Fields map[string]Value

	// OwnerID is the owning record's ID, or "" when the record is not
	// owned by anything.
	OwnerID string

	// Position orders the record within its owner's collection.
	// Meaningless when OwnerID is empty.
	Position int64

	// Seq is the store's logical clock value at the record's last
	// mutation. Zero until the record is inserted.
	Seq int64
}

// New creates a Record of the given kind with a fresh UUIDv7 identity.
func New(kind string, fields map[string]Value) Record {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Record{
		ID:     NewID(),
		Kind:   kind,
		Fields: fields,
	}
}

// NewID generates a UUIDv7 record identity.
// UUIDv7 is time-ordered, so identity order roughly follows creation
// order, which keeps the deterministic id tiebreaker intuitive.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ValidateID reports whether id parses as a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid record id %q: %w", id, err)
	}
	return nil
}

// Clone returns a deep copy of the record.
// Callers that hand records to observers should clone first so observers
// cannot mutate store-owned state.
func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[string]Value, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

// Field returns the named field value, or Null if unset.
func (r Record) Field(name string) Value {
	if v, ok := r.Fields[name]; ok {
		return v
	}
	return Null{}
}

// MarshalFields serializes a field map to deterministic JSON TEXT (CP-3).
// Keys are sorted and HTML escaping is disabled so identical field sets
// always produce identical bytes.
func MarshalFields(fields map[string]Value) (string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalNoEscape(k)
		if err != nil {
			return "", fmt.Errorf("marshal field key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalValue(fields[k])
		if err != nil {
			return "", fmt.Errorf("marshal field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// marshalValue encodes a single Value as JSON.
func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return marshalNoEscape(string(val))
	case Int:
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Time:
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case Null:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// marshalNoEscape encodes a string without HTML escaping (CP-3).
func marshalNoEscape(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	// Encoder adds a trailing newline, remove it
	return []byte(strings.TrimSpace(buf.String())), nil
}

// UnmarshalFields parses field JSON TEXT back into typed values.
// The types map declares the expected type per field; fields absent from
// the map are rejected so schema drift surfaces as an error, not as
// silently retyped data.
func UnmarshalFields(data string, types map[string]Type) (map[string]Value, error) {
	if data == "" || data == "{}" {
		return map[string]Value{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber() // avoid float64 precision loss for large integers

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}

	fields := make(map[string]Value, len(raw))
	for name, rv := range raw {
		typ, ok := types[name]
		if !ok {
			return nil, fmt.Errorf("unmarshal fields: undeclared field %q", name)
		}
		v, err := FromJSON(rv, typ)
		if err != nil {
			return nil, fmt.Errorf("unmarshal field %q: %w", name, err)
		}
		fields[name] = v
	}
	return fields, nil
}
