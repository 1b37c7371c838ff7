// Package store provides SQLite-backed durable storage for bindery
// records, with relationship integrity and synchronous change
// notification.
//
// The store owns all records. Mutation goes through Insert, Update,
// Delete, Attach, and Detach; reads go through Get, Fetch, and
// Children. Every successful mutation durably persists before
// returning and then notifies all subscribers synchronously, so a
// completed notification cycle never exposes stale reads.
//
// # Critical Patterns
//
// CP-1: Single-Writer Discipline
//   - A store-level mutex serializes all mutations. Notification
//     callbacks run on the mutating goroutine while the writer lock is
//     held, so observers always see the store exactly as the mutation
//     left it.
//
// CP-2: Logical Time
//   - Every mutation stamps the affected record with a seq INTEGER
//     from a monotonic logical clock, NEVER a wall-clock timestamp.
//     The clock resumes from MAX(seq) on reopen.
//
// CP-3: Deterministic Query Results
//   - All queries include ORDER BY ... , id ASC COLLATE BINARY
//     (see internal/querysql). Identical inputs yield identical
//     sequences.
//
// CP-4: Relationship Integrity
//   - Ownership lives in one place: the child row's owner_id and
//     position columns. The owner-side collection and the child-side
//     back-reference are the same stored edge, so they cannot
//     disagree. Cascade deletion removes children depth-first in
//     position order inside the owner's transaction; non-cascade
//     relationships orphan children (owner_id cleared) instead.
//
// # Error Taxonomy
//
// All failures surface as *StoreError with a Code:
//   - DUPLICATE_IDENTITY: insert with an existing record id
//   - NOT_FOUND: operation on a record that was never inserted (or
//     was deleted)
//   - STORAGE_IO: the underlying database failed; the triggering
//     operation is rolled back and NOT retried
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// The driver is registered with a connection hook that installs the
// "locale" collation and the text_contains SQL function, both backed
// by golang.org/x/text, so text matching and ordering are
// locale-aware (see driver.go).
package store
