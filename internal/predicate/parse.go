package predicate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/schema"
)

// Definition is a parsed query definition: which kind to query, an
// optional filter expression, and an optional sort order.
//
// YAML form:
//
//	kind: User
//	where:
//	  and:
//	    - eq: {field: city, value: London}
//	    - contains: {field: name, value: R}
//	sort:
//	  - {field: name, dir: asc}
//
// The where body must be exactly ONE expression node: a sequence of
// expressions at the top level (multiple statements) is rejected with
// INVALID_PREDICATE at parse time.
type Definition struct {
	Kind  string
	Where Predicate // nil means match all
	Sort  SortOrder
}

// rawDefinition is the YAML shape before expression parsing.
type rawDefinition struct {
	Kind  string       `yaml:"kind"`
	Where yaml.Node    `yaml:"where"`
	Sort  []rawSortKey `yaml:"sort"`
}

type rawSortKey struct {
	Field string `yaml:"field"`
	Dir   string `yaml:"dir"`
}

// ParseFile reads and parses a query definition from a YAML file.
func ParseFile(s *schema.Schema, path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query file: %w", err)
	}
	def, err := Parse(s, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}

// Parse parses a YAML query definition and validates the resulting
// expression tree against the schema. All violations surface here,
// before any store access.
func Parse(s *schema.Schema, data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalidf("", "malformed query document: %v", err)
	}
	if raw.Kind == "" {
		return nil, invalidf("kind", "kind is required")
	}
	kind, ok := s.Kind(raw.Kind)
	if !ok {
		return nil, invalidf("kind", "unknown kind %q", raw.Kind)
	}

	def := &Definition{Kind: raw.Kind}

	if !isZeroNode(&raw.Where) {
		where, err := parseExpr(kind, &raw.Where)
		if err != nil {
			return nil, err
		}
		def.Where = where
	}

	for _, key := range raw.Sort {
		def.Sort = append(def.Sort, SortKey{
			Field:     key.Field,
			Direction: Direction(key.Dir),
		})
	}

	if err := Validate(kind, def.Where); err != nil {
		return nil, err
	}
	if err := ValidateSort(kind, def.Sort); err != nil {
		return nil, err
	}
	return def, nil
}

// isZeroNode reports whether a yaml.Node was never populated.
func isZeroNode(n *yaml.Node) bool {
	return n.Kind == 0
}

// parseExpr parses one expression node.
//
// Enforces the single-expression contract structurally: a node must be
// a mapping with exactly one operator key. A sequence here means the
// caller wrote multiple top-level expressions, which does not reduce to
// a single evaluable tree.
func parseExpr(kind schema.Kind, node *yaml.Node) (Predicate, error) {
	if node.Kind == yaml.SequenceNode {
		return nil, invalidf("", "query body must be a single expression, got %d", len(node.Content))
	}
	if node.Kind != yaml.MappingNode {
		return nil, invalidf("", "expression must be a mapping with one operator key")
	}
	// Mapping content is [key1, val1, key2, val2, ...].
	if len(node.Content) != 2 {
		return nil, invalidf("", "query body must be a single expression, got %d", len(node.Content)/2)
	}

	op := node.Content[0].Value
	body := node.Content[1]

	switch op {
	case "and":
		children, err := parseExprList(kind, op, body)
		if err != nil {
			return nil, err
		}
		return &And{Predicates: children}, nil
	case "or":
		children, err := parseExprList(kind, op, body)
		if err != nil {
			return nil, err
		}
		return &Or{Predicates: children}, nil
	case "not":
		child, err := parseExpr(kind, body)
		if err != nil {
			return nil, err
		}
		return &Not{Predicate: child}, nil
	case "eq":
		field, value, err := parseLeaf(kind, op, body)
		if err != nil {
			return nil, err
		}
		return &Equal{Field: field, Value: value}, nil
	case "contains":
		field, substr, err := parseContains(kind, body)
		if err != nil {
			return nil, err
		}
		return &Contains{Field: field, Substr: substr}, nil
	case "lt", "le", "gt", "ge":
		field, value, err := parseLeaf(kind, op, body)
		if err != nil {
			return nil, err
		}
		return &Compare{Field: field, Op: CompareOp(op), Value: value}, nil
	default:
		return nil, invalidf("", "unknown operator %q", op)
	}
}

// parseExprList parses the children of an and/or combinator.
func parseExprList(kind schema.Kind, op string, node *yaml.Node) ([]Predicate, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, invalidf("", "%s expects a list of expressions", op)
	}
	children := make([]Predicate, 0, len(node.Content))
	for _, item := range node.Content {
		child, err := parseExpr(kind, item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// leafBody is the YAML shape of eq/contains/comparison bodies.
type leafBody struct {
	Field string    `yaml:"field"`
	Value yaml.Node `yaml:"value"`
}

// parseLeaf parses a {field, value} body and converts the literal to
// the field's declared type.
func parseLeaf(kind schema.Kind, op string, node *yaml.Node) (string, record.Value, error) {
	var body leafBody
	if err := node.Decode(&body); err != nil {
		return "", nil, invalidf("", "%s expects {field, value}: %v", op, err)
	}
	if body.Field == "" {
		return "", nil, invalidf("", "%s requires a field", op)
	}
	declared, ok := kind.Fields[body.Field]
	if !ok {
		return "", nil, invalidf(body.Field, "kind %q has no field %q", kind.Name, body.Field)
	}
	value, err := parseLiteral(body.Field, declared, &body.Value)
	if err != nil {
		return "", nil, err
	}
	return body.Field, value, nil
}

// parseContains parses a contains body; the literal is always text.
func parseContains(kind schema.Kind, node *yaml.Node) (string, string, error) {
	var body struct {
		Field string `yaml:"field"`
		Value string `yaml:"value"`
	}
	if err := node.Decode(&body); err != nil {
		return "", "", invalidf("", "contains expects {field, value}: %v", err)
	}
	if body.Field == "" {
		return "", "", invalidf("", "contains requires a field")
	}
	return body.Field, body.Value, nil
}

// parseLiteral converts a YAML scalar into a Value of the declared type.
// Time literals accept unix seconds or RFC 3339 text.
func parseLiteral(field string, typ record.Type, node *yaml.Node) (record.Value, error) {
	if isZeroNode(node) {
		return nil, invalidf(field, "missing literal value")
	}
	switch typ {
	case record.TypeText:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, invalidf(field, "expected text literal: %v", err)
		}
		return record.String(s), nil
	case record.TypeInt:
		var n int64
		if err := node.Decode(&n); err != nil {
			return nil, invalidf(field, "expected integer literal: %v", err)
		}
		return record.Int(n), nil
	case record.TypeBool:
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, invalidf(field, "expected bool literal: %v", err)
		}
		return record.Bool(b), nil
	case record.TypeTime:
		var n int64
		if err := node.Decode(&n); err == nil {
			return record.Time(n), nil
		}
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, invalidf(field, "expected unix seconds or RFC 3339 time literal")
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, invalidf(field, "invalid time literal %q: %v", s, err)
		}
		return record.NewTime(t), nil
	default:
		return nil, invalidf(field, "unknown field type %q", typ)
	}
}
