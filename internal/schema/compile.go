package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/bindery/internal/record"
)

//go:embed schema.cue
var defaultCUE string

var (
	defaultOnce   sync.Once
	defaultSchema *Schema
	defaultErr    error
)

// Default returns the embedded default schema (User/Job).
// Compiled once; subsequent calls return the cached result.
func Default() (*Schema, error) {
	defaultOnce.Do(func() {
		defaultSchema, defaultErr = CompileString(defaultCUE)
	})
	return defaultSchema, defaultErr
}

// MustDefault returns the embedded default schema or panics.
// The embedded schema is compiled at package build time verification
// in tests; a panic here means the binary itself is broken.
func MustDefault() *Schema {
	s, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded schema failed to compile: %v", err))
	}
	return s
}

// LoadFile compiles a schema from a .cue file on disk.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	s, err := CompileString(string(data))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return s, nil
}

// CompileString compiles CUE source text into a Schema.
func CompileString(src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Compile parses a CUE value into a Schema.
//
// The CUE value must contain a "kinds" struct mapping kind names to
// declarations:
//
//	kinds: {
//		User: {
//			fields: {name: "text", join_date: "time"}
//			owns: {jobs: {kind: "Job", cascade: true}}
//		}
//	}
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kindsVal := v.LookupPath(cue.ParsePath("kinds"))
	if !kindsVal.Exists() {
		return nil, &CompileError{
			Field:   "kinds",
			Message: "kinds is required",
			Pos:     v.Pos(),
		}
	}

	s := &Schema{Kinds: make(map[string]Kind)}

	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		kind, err := compileKind(name, iter.Value())
		if err != nil {
			return nil, err
		}
		s.Kinds[name] = kind
	}

	if len(s.Kinds) == 0 {
		return nil, &CompileError{
			Field:   "kinds",
			Message: "at least one kind is required",
			Pos:     kindsVal.Pos(),
		}
	}

	// Owned kinds must themselves be declared.
	for _, k := range s.Kinds {
		for _, rel := range k.Owns {
			if _, ok := s.Kinds[rel.Kind]; !ok {
				return nil, &CompileError{
					Field:   fmt.Sprintf("kinds.%s.owns.%s", k.Name, rel.Name),
					Message: fmt.Sprintf("owned kind %q is not declared", rel.Kind),
				}
			}
		}
	}

	return s, nil
}

// compileKind parses one kind declaration.
func compileKind(name string, v cue.Value) (Kind, error) {
	kind := Kind{
		Name:   name,
		Fields: make(map[string]record.Type),
		Owns:   make(map[string]Relationship),
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return kind, &CompileError{
			Field:   fmt.Sprintf("kinds.%s.fields", name),
			Message: "fields is required",
			Pos:     v.Pos(),
		}
	}
	fieldIter, err := fieldsVal.Fields()
	if err != nil {
		return kind, formatCUEError(err)
	}
	for fieldIter.Next() {
		fieldName := fieldIter.Label()
		typeStr, err := fieldIter.Value().String()
		if err != nil {
			return kind, formatCUEError(err)
		}
		typ := record.Type(typeStr)
		if !typ.Valid() {
			return kind, &CompileError{
				Field:   fmt.Sprintf("kinds.%s.fields.%s", name, fieldName),
				Message: fmt.Sprintf("invalid field type %q (want text, int, bool, or time)", typeStr),
				Pos:     fieldIter.Value().Pos(),
			}
		}
		kind.Fields[fieldName] = typ
	}
	if len(kind.Fields) == 0 {
		return kind, &CompileError{
			Field:   fmt.Sprintf("kinds.%s.fields", name),
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}

	ownsVal := v.LookupPath(cue.ParsePath("owns"))
	if ownsVal.Exists() {
		ownsIter, err := ownsVal.Fields()
		if err != nil {
			return kind, formatCUEError(err)
		}
		for ownsIter.Next() {
			relName := ownsIter.Label()
			rel, err := compileRelationship(name, relName, ownsIter.Value())
			if err != nil {
				return kind, err
			}
			kind.Owns[relName] = rel
		}
	}

	return kind, nil
}

// compileRelationship parses one ownership declaration.
func compileRelationship(kindName, relName string, v cue.Value) (Relationship, error) {
	rel := Relationship{Name: relName}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return rel, &CompileError{
			Field:   fmt.Sprintf("kinds.%s.owns.%s", kindName, relName),
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	owned, err := kindVal.String()
	if err != nil {
		return rel, formatCUEError(err)
	}
	rel.Kind = owned

	cascadeVal := v.LookupPath(cue.ParsePath("cascade"))
	if cascadeVal.Exists() {
		cascade, err := cascadeVal.Bool()
		if err != nil {
			return rel, formatCUEError(err)
		}
		rel.Cascade = cascade
	}

	return rel, nil
}

// CompileError represents a schema compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError converts a CUE error into a CompileError with position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	var pos token.Pos
	if cueErr, ok := err.(cueerrors.Error); ok {
		pos = cueErr.Position()
	}
	return &CompileError{
		Field:   "cue",
		Message: cueerrors.Details(err, nil),
		Pos:     pos,
	}
}
