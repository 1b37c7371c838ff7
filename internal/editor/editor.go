package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/store"
)

// ErrorHandler is called when a write-through fails. The field keeps
// its pre-write persisted value.
type ErrorHandler func(field string, err error)

// Editor binds the fields of a single record. It holds a non-owning
// reference: the store keeps owning the record, and deleting the
// record invalidates the editor's writes (they fail NOT_FOUND).
type Editor struct {
	store *store.Store
	id    string
	kind  string
	log   *slog.Logger

	mu      sync.Mutex
	fields  map[string]record.Value
	onError ErrorHandler

	unsubscribe func()
}

// New opens an edit session on an inserted record. Fails with
// NOT_FOUND if the record does not exist.
func New(ctx context.Context, s *store.Store, id string) (*Editor, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open editor: %w", err)
	}

	e := &Editor{
		store:  s,
		id:     id,
		kind:   rec.Kind,
		log:    slog.Default().With("component", "editor", "record", id),
		fields: rec.Fields,
	}

	// Track external writes so reads stay equal to the persisted
	// value even when someone else updates the record.
	e.unsubscribe = s.Subscribe(func(c store.Change) {
		if c.RecordID != e.id || c.Op != store.OpUpdate {
			return
		}
		fresh, err := s.Get(context.Background(), e.id)
		if err != nil {
			e.log.Error("refresh after external update failed", "error", err)
			return
		}
		e.mu.Lock()
		e.fields = fresh.Fields
		e.mu.Unlock()
	})
	return e, nil
}

// Close ends the edit session.
func (e *Editor) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// OnError registers a handler for failed writes. Only one handler is
// kept; passing nil clears it.
func (e *Editor) OnError(fn ErrorHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// RecordID returns the identity of the bound record.
func (e *Editor) RecordID() string { return e.id }

// Kind returns the bound record's kind.
func (e *Editor) Kind() string { return e.kind }

// Get returns the field's last persisted value, or nil if the field
// is unset.
func (e *Editor) Get(field string) record.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields[field]
}

// Set writes a field through to the store. On success the bound value
// is the new persisted value. On failure the bound value stays at the
// pre-write persisted value and the error handler fires.
func (e *Editor) Set(ctx context.Context, field string, value record.Value) error {
	if err := e.store.Update(ctx, e.id, field, value); err != nil {
		e.mu.Lock()
		handler := e.onError
		e.mu.Unlock()
		e.log.Warn("write-through failed", "field", field, "error", err)
		if handler != nil {
			handler(field, err)
		}
		return fmt.Errorf("set %s: %w", field, err)
	}

	e.mu.Lock()
	e.fields[field] = value
	e.mu.Unlock()
	return nil
}
