package schema

import (
	"fmt"

	"github.com/roach88/bindery/internal/record"
)

// Relationship declares an ownership edge from one kind to another.
type Relationship struct {
	// Name is the relationship name on the owner (e.g. "jobs").
	Name string

	// Kind is the owned record kind (e.g. "Job").
	Kind string

	// Cascade controls deletion: when true, deleting the owner deletes
	// all currently-owned children; when false, children are detached
	// (orphaned) instead.
	Cascade bool
}

// Kind declares a record kind: its fields and the relationships it owns.
type Kind struct {
	// Name is the kind name (e.g. "User").
	Name string

	// Fields maps field name to declared type.
	Fields map[string]record.Type

	// Owns maps relationship name to its declaration.
	Owns map[string]Relationship
}

// RelationshipTo returns the relationship through which this kind owns
// records of childKind, if one is declared.
func (k Kind) RelationshipTo(childKind string) (Relationship, bool) {
	for _, rel := range k.Owns {
		if rel.Kind == childKind {
			return rel, true
		}
	}
	return Relationship{}, false
}

// Schema is a compiled set of record kinds.
type Schema struct {
	Kinds map[string]Kind
}

// Kind returns the named kind declaration.
func (s *Schema) Kind(name string) (Kind, bool) {
	k, ok := s.Kinds[name]
	return k, ok
}

// FieldType returns the declared type of a field on a kind.
func (s *Schema) FieldType(kind, field string) (record.Type, error) {
	k, ok := s.Kinds[kind]
	if !ok {
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	t, ok := k.Fields[field]
	if !ok {
		return "", fmt.Errorf("kind %q has no field %q", kind, field)
	}
	return t, nil
}

// ValidateRecord checks a record's kind, field names, and field value
// types against the schema. Null values are accepted for any declared
// field; undeclared fields are rejected.
func (s *Schema) ValidateRecord(rec record.Record) error {
	k, ok := s.Kinds[rec.Kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", rec.Kind)
	}
	for name, v := range rec.Fields {
		declared, ok := k.Fields[name]
		if !ok {
			return fmt.Errorf("kind %q has no field %q", rec.Kind, name)
		}
		if _, isNull := v.(record.Null); isNull {
			continue
		}
		actual, ok := record.TypeOf(v)
		if !ok {
			return fmt.Errorf("field %q: unsupported value type %T", name, v)
		}
		if actual != declared {
			return fmt.Errorf("field %q: expected %s, got %s", name, declared, actual)
		}
	}
	return nil
}

// ValidateField checks a single field assignment against the schema.
// Used by Update so a bad write is rejected before touching storage.
func (s *Schema) ValidateField(kind, field string, v record.Value) error {
	declared, err := s.FieldType(kind, field)
	if err != nil {
		return err
	}
	if _, isNull := v.(record.Null); isNull {
		return nil
	}
	actual, ok := record.TypeOf(v)
	if !ok {
		return fmt.Errorf("field %q: unsupported value type %T", field, v)
	}
	if actual != declared {
		return fmt.Errorf("field %q: expected %s, got %s", field, declared, actual)
	}
	return nil
}
