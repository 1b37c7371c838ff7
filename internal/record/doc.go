// Package record defines the persisted record model for bindery.
//
// A Record is a typed entity with a stable identity, a set of scalar
// fields, and optionally an ownership edge to a parent record. Records
// are the only thing the store persists; relationships are expressed as
// owner edges on the child side (see internal/store).
//
// # Critical Patterns
//
// CP-1: Sealed Value Types
//   - Field values use the sealed Value interface (String, Int, Bool,
//     Time, Null). NO floats - floats break deterministic serialization
//     and deterministic query results.
//
// CP-2: Stable Identity
//   - Record IDs are UUIDv7 strings assigned exactly once at creation
//     and never reassigned. All deterministic orderings tiebreak on
//     id ASC COLLATE BINARY.
//
// CP-3: Deterministic Field Encoding
//   - Fields serialize to JSON with sorted keys and HTML escaping
//     disabled, so the same field set always produces the same bytes.
package record
