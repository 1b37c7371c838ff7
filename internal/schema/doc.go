// Package schema defines record kinds for bindery and compiles them
// from CUE definitions.
//
// A schema declares, per kind: the scalar fields (name → type) and the
// ownership relationships (name → owned kind + cascade flag). The store
// validates every insert and update against the schema, and the
// predicate layer validates field references at construction time.
//
// The default schema (schema.cue, embedded) declares two kinds:
//
//   - User: name (text), city (text), join_date (time); owns jobs
//     (kind Job, cascade delete)
//   - Job: name (text), priority (int)
//
// Callers may load a replacement schema from a .cue file via LoadFile.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
package schema
