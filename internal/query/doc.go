// Package query keeps an ordered view of matching records current
// against a store.
//
// A Live query pairs a predicate with a sort order. Both are validated
// against the schema at construction, before any store access, so an
// invalid query is never left half-configured. The query subscribes to
// the store's change notifications and recomputes its result set
// synchronously inside each notification cycle: after a mutating call
// returns, every live query already reflects the store's new state.
//
// Predicate and sort order can be replaced at any time; replacement
// triggers an immediate re-evaluation.
//
// The store's single-writer discipline extends to live queries:
// mutation and reconfiguration happen on one goroutine. Internal
// locking protects bookkeeping, not concurrent writers.
package query
