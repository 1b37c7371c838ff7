// Package predicate provides the closed expression tree used to filter
// and sort records.
//
// A predicate is a single evaluable expression over record fields:
// comparisons at the leaves (Equal, Contains, Compare) and boolean
// combinators above them (And, Or, Not). It is deliberately NOT
// arbitrary procedural code: a query body must reduce to exactly one
// expression tree so it can be compiled into an inspectable storage
// query (see internal/querysql). Multi-statement or multi-expression
// bodies are rejected at construction time with INVALID_PREDICATE,
// never at evaluation time.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern.
// Only types in this package can implement it. This enables exhaustive
// type switches in the SQL compiler and compile-time safety against
// external extensions.
//
// Example:
//
//	switch p := pred.(type) {
//	case *Equal:
//	    // field = value
//	case *And:
//	    // all children true
//	default:
//	    // Impossible - compiler knows all Predicate types
//	}
//
// VALIDATION:
//
// Validate checks a tree against a schema kind before any store access:
// fields must be declared, Contains applies to text only, Compare
// applies to ordered types only, and combinator children must be
// non-nil. A query is never left half-configured.
//
// Trees can also be parsed from YAML query definitions (see Parse),
// which enforce the single-expression contract structurally: the query
// body must be exactly one operator node.
package predicate
