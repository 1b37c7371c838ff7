package predicate

import (
	"github.com/roach88/bindery/internal/record"
)

// Predicate represents a filter condition over record fields.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and
// enables exhaustive type switches in backend compilers.
//
// Predicate types:
//   - Equal: field = literal value
//   - Contains: text field contains substring (locale-aware)
//   - Compare: field <, <=, >, >= literal value (ordered fields)
//   - And: all children must be true (empty = always true)
//   - Or: at least one child must be true
//   - Not: child must be false
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Equal represents a field-equals-literal predicate.
//
// Semantics:
//
//	<field> = <value>
//
// Null never equals anything: Equal with a Null value is rejected by
// Validate (use an explicit presence check at the schema level instead).
type Equal struct {
	Field string       // Field name on the queried kind
	Value record.Value // Literal value (constrained to sealed Value types)
}

func (*Equal) predicateNode() {}

// Contains represents a locale-aware substring match on a text field.
//
// Semantics:
//
//	<field> contains <substr>
//
// Matching is performed by the store's language-aware matcher (see
// internal/store), not by byte comparison: "München contains Munchen"
// holds because diacritics compare equal. Case stays significant.
type Contains struct {
	Field  string // Text field name on the queried kind
	Substr string // Substring to search for
}

func (*Contains) predicateNode() {}

// CompareOp identifies an ordering comparison operator.
type CompareOp string

const (
	OpLT CompareOp = "lt"
	OpLE CompareOp = "le"
	OpGT CompareOp = "gt"
	OpGE CompareOp = "ge"
)

// Valid reports whether op is a known comparison operator.
func (op CompareOp) Valid() bool {
	switch op {
	case OpLT, OpLE, OpGT, OpGE:
		return true
	}
	return false
}

// SQL returns the SQL operator token for op.
func (op CompareOp) SQL() string {
	switch op {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	}
	return ""
}

// Compare represents an ordering comparison on an ordered field
// (int, time, or text under the locale collation).
//
// Semantics:
//
//	<field> <op> <value>
type Compare struct {
	Field string
	Op    CompareOp
	Value record.Value
}

func (*Compare) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty child list means "always true" (vacuous truth).
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// Or represents a disjunction of predicates (at least one true).
// An empty child list is rejected by Validate: an always-false
// disjunction is almost certainly a construction bug.
type Or struct {
	Predicates []Predicate
}

func (*Or) predicateNode() {}

// Not negates a single child predicate.
type Not struct {
	Predicate Predicate
}

func (*Not) predicateNode() {}

// Direction orders a sort key ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// SortKey is one (field, direction) pair in a sort order.
type SortKey struct {
	Field     string
	Direction Direction
}

// SortOrder is an ordered sequence of sort keys applied
// lexicographically: the first key is primary, ties break by the next
// key, and so on. The store always appends a final deterministic
// tiebreaker on record id, so an empty SortOrder is valid and yields
// id order.
type SortOrder []SortKey
