package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/bindery/internal/predicate"
	"github.com/roach88/bindery/internal/record"
)

// Compiler compiles predicate expression trees to parameterized SQL
// for SQLite.
//
// CRITICAL: ALL queries include ORDER BY with a deterministic
// tiebreaker (id COLLATE BINARY ASC) so repeated evaluation with
// unchanged inputs yields an identical sequence.
// CRITICAL: All literal values are parameterized (never interpolated).
//
// Field access goes through json_extract on the fields column; text
// ordering and comparison use the "locale" collation and containment
// uses the text_contains SQL function, both registered by the store's
// connection hook (see internal/store).
type Compiler struct {
	// FieldTypes declares the queried kind's fields. Text fields
	// compile with locale-aware collation; the compiler trusts the
	// names (predicates are schema-validated before compilation).
	FieldTypes map[string]record.Type
}

// NewCompiler creates a Compiler for a kind's declared field types.
func NewCompiler(fieldTypes map[string]record.Type) *Compiler {
	return &Compiler{FieldTypes: fieldTypes}
}

// Compile builds the full fetch statement for one kind: filter,
// sort order, and the mandatory deterministic tiebreaker.
// Returns (sql, params, error).
func (c *Compiler) Compile(kind string, p predicate.Predicate, sort predicate.SortOrder) (string, []any, error) {
	params := []any{kind}

	where := "kind = ?"
	if p != nil {
		filterSQL, filterParams, err := c.CompilePredicate(p)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		// Parenthesized: a top-level OR must not capture the kind check.
		where += " AND (" + filterSQL + ")"
		params = append(params, filterParams...)
	}

	orderBy, err := c.CompileSort(sort)
	if err != nil {
		return "", nil, fmt.Errorf("compile sort: %w", err)
	}

	sql := fmt.Sprintf(
		"SELECT id, kind, seq, fields, owner_id, position FROM records WHERE %s ORDER BY %s",
		where, orderBy)

	return sql, params, nil
}

// CompilePredicate compiles a predicate tree to a WHERE clause fragment.
// A nil predicate compiles to an always-true condition.
func (c *Compiler) CompilePredicate(p predicate.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case *predicate.Equal:
		return c.compileEqual(pred)
	case *predicate.Contains:
		return c.compileContains(pred)
	case *predicate.Compare:
		return c.compileCompare(pred)
	case *predicate.And:
		return c.compileList("AND", pred.Predicates, "1 = 1")
	case *predicate.Or:
		return c.compileList("OR", pred.Predicates, "1 = 0")
	case *predicate.Not:
		inner, params, err := c.CompilePredicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", inner), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEqual compiles Equal to "field = ?".
func (c *Compiler) compileEqual(eq *predicate.Equal) (string, []any, error) {
	param, err := record.Param(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", eq.Field, err)
	}
	return fmt.Sprintf("%s = ?", c.fieldExpr(eq.Field)), []any{param}, nil
}

// compileContains compiles Contains to the locale-aware text_contains
// SQL function registered by the store. coalesce keeps an unset field
// from passing NULL into the function.
func (c *Compiler) compileContains(pred *predicate.Contains) (string, []any, error) {
	return fmt.Sprintf("text_contains(coalesce(%s, ''), ?)", c.fieldExpr(pred.Field)), []any{pred.Substr}, nil
}

// compileCompare compiles Compare to "field <op> ?". Text fields
// compare under the locale collation.
func (c *Compiler) compileCompare(cmp *predicate.Compare) (string, []any, error) {
	op := cmp.Op.SQL()
	if op == "" {
		return "", nil, fmt.Errorf("field %q: unknown comparison operator %q", cmp.Field, cmp.Op)
	}
	param, err := record.Param(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", cmp.Field, err)
	}

	expr := c.fieldExpr(cmp.Field)
	if c.FieldTypes[cmp.Field] == record.TypeText {
		expr += " COLLATE locale"
	}
	return fmt.Sprintf("%s %s ?", expr, op), []any{param}, nil
}

// compileList compiles And/Or children joined by op, parenthesized so
// nesting never changes meaning. empty is the identity condition for
// a childless combinator.
func (c *Compiler) compileList(op string, children []predicate.Predicate, empty string) (string, []any, error) {
	if len(children) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(children))
	var allParams []any
	for _, child := range children {
		sql, params, err := c.CompilePredicate(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(parts, " "+op+" "), allParams, nil
}

// CompileSort compiles a sort order to an ORDER BY clause body.
// MANDATORY: always ends with the deterministic id tiebreaker.
func (c *Compiler) CompileSort(sort predicate.SortOrder) (string, error) {
	var parts []string
	for _, key := range sort {
		if !key.Direction.Valid() {
			return "", fmt.Errorf("field %q: unknown sort direction %q", key.Field, key.Direction)
		}
		expr := c.fieldExpr(key.Field)
		if c.FieldTypes[key.Field] == record.TypeText {
			expr += " COLLATE locale"
		}
		dir := "ASC"
		if key.Direction == predicate.Desc {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}

	// Deterministic tiebreaker: identical inputs must always produce
	// an identical sequence, regardless of insertion order.
	parts = append(parts, "id COLLATE BINARY ASC")

	return strings.Join(parts, ", "), nil
}

// fieldExpr returns the SQL expression extracting a field value.
// Field names come from the validated schema, not from user input.
func (c *Compiler) fieldExpr(field string) string {
	return fmt.Sprintf("json_extract(fields, '$.%s')", field)
}
