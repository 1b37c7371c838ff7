// Package editor exposes one record's fields as write-through
// bindings.
//
// Reading a bound field yields the current persisted value; writing
// calls straight through to the store, with no staging buffer and no
// separate save step. A failed write leaves the bound value at the
// last persisted value and reports the failure to the registered
// error handler as well as the caller.
package editor
