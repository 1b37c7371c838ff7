package predicate

import (
	"errors"
	"fmt"

	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/schema"
)

// CodeInvalidPredicate is the error code carried by every ValidationError.
const CodeInvalidPredicate = "INVALID_PREDICATE"

// ValidationError reports a predicate or sort order that violates the
// closed-expression contract. Raised at construction/parse time, before
// any store access.
type ValidationError struct {
	// Field names the offending field or tree position, when known.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", CodeInvalidPredicate, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", CodeInvalidPredicate, e.Message)
}

// IsInvalid returns true if err is a predicate validation error.
// Uses errors.As to handle wrapped errors.
func IsInvalid(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// invalidf creates a ValidationError.
func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a predicate tree against a schema kind.
//
// A nil predicate is valid and means "match all". Everything else must
// be a closed tree of the sealed node types with:
//   - every referenced field declared on the kind
//   - Equal values matching the declared field type (and never Null)
//   - Contains applied to text fields only
//   - Compare applied to ordered fields only, with a known operator
//   - no nil combinator children (a hole in the tree means the caller
//     built it from multi-step control flow that didn't converge on a
//     single expression)
func Validate(kind schema.Kind, p Predicate) error {
	if p == nil {
		return nil
	}
	return validateNode(kind, p)
}

func validateNode(kind schema.Kind, p Predicate) error {
	if p == nil {
		return invalidf("", "nil expression node - a query body must be a single closed expression")
	}

	switch node := p.(type) {
	case *Equal:
		return validateEqual(kind, node)
	case *Contains:
		return validateContains(kind, node)
	case *Compare:
		return validateCompare(kind, node)
	case *And:
		for _, child := range node.Predicates {
			if err := validateNode(kind, child); err != nil {
				return err
			}
		}
		return nil
	case *Or:
		if len(node.Predicates) == 0 {
			return invalidf("", "or requires at least one child expression")
		}
		for _, child := range node.Predicates {
			if err := validateNode(kind, child); err != nil {
				return err
			}
		}
		return nil
	case *Not:
		return validateNode(kind, node.Predicate)
	default:
		return invalidf("", "unknown expression type %T", p)
	}
}

func validateEqual(kind schema.Kind, eq *Equal) error {
	declared, ok := kind.Fields[eq.Field]
	if !ok {
		return invalidf(eq.Field, "kind %q has no field %q", kind.Name, eq.Field)
	}
	if eq.Value == nil {
		return invalidf(eq.Field, "equality requires a literal value")
	}
	if _, isNull := eq.Value.(record.Null); isNull {
		return invalidf(eq.Field, "null never equals anything - equality against null is not expressible")
	}
	actual, ok := record.TypeOf(eq.Value)
	if !ok {
		return invalidf(eq.Field, "unsupported literal type %T", eq.Value)
	}
	if actual != declared {
		return invalidf(eq.Field, "expected %s literal, got %s", declared, actual)
	}
	return nil
}

func validateContains(kind schema.Kind, c *Contains) error {
	declared, ok := kind.Fields[c.Field]
	if !ok {
		return invalidf(c.Field, "kind %q has no field %q", kind.Name, c.Field)
	}
	if declared != record.TypeText {
		return invalidf(c.Field, "contains applies to text fields, %q is %s", c.Field, declared)
	}
	return nil
}

func validateCompare(kind schema.Kind, cmp *Compare) error {
	declared, ok := kind.Fields[cmp.Field]
	if !ok {
		return invalidf(cmp.Field, "kind %q has no field %q", kind.Name, cmp.Field)
	}
	if !cmp.Op.Valid() {
		return invalidf(cmp.Field, "unknown comparison operator %q", cmp.Op)
	}
	if !declared.Ordered() {
		return invalidf(cmp.Field, "comparison applies to ordered fields, %q is %s", cmp.Field, declared)
	}
	if cmp.Value == nil {
		return invalidf(cmp.Field, "comparison requires a literal value")
	}
	actual, ok := record.TypeOf(cmp.Value)
	if !ok {
		return invalidf(cmp.Field, "unsupported literal type %T", cmp.Value)
	}
	if actual != declared {
		return invalidf(cmp.Field, "expected %s literal, got %s", declared, actual)
	}
	return nil
}

// ValidateSort checks a sort order against a schema kind: every field
// must be declared and ordered, every direction known. An empty sort
// order is valid (the store's id tiebreaker still applies).
func ValidateSort(kind schema.Kind, sort SortOrder) error {
	for _, key := range sort {
		declared, ok := kind.Fields[key.Field]
		if !ok {
			return invalidf(key.Field, "kind %q has no field %q", kind.Name, key.Field)
		}
		if !declared.Ordered() {
			return invalidf(key.Field, "cannot sort by %s field %q", declared, key.Field)
		}
		if !key.Direction.Valid() {
			return invalidf(key.Field, "unknown sort direction %q", key.Direction)
		}
	}
	return nil
}
