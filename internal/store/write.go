package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/roach88/bindery/internal/record"
)

// Insert adds a new record to the store. The record's fields are
// validated against the schema; an existing id fails with
// DUPLICATE_IDENTITY. A record carrying OwnerID is attached at the end
// of the owner's collection in the same transaction.
//
// Persists durably before returning, then notifies subscribers.
func (s *Store) Insert(ctx context.Context, rec record.Record) error {
	if err := record.ValidateID(rec.ID); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if err := s.schema.ValidateRecord(rec); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	fieldsJSON, err := record.MarshalFields(rec.Fields)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin insert", err)
	}
	defer tx.Rollback()

	ownerID := sql.NullString{}
	position := sql.NullInt64{}
	if rec.OwnerID != "" {
		pos, err := s.attachPosition(ctx, tx, rec.OwnerID, rec.Kind)
		if err != nil {
			return err
		}
		ownerID = sql.NullString{String: rec.OwnerID, Valid: true}
		position = sql.NullInt64{Int64: pos, Valid: true}
	}

	seq := s.clock.Next()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, kind, seq, fields, owner_id, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Kind, seq, fieldsJSON, ownerID, position)
	if err != nil {
		if isPrimaryKeyConflict(err) {
			return newDuplicateError(rec.ID)
		}
		return storageError("insert record", err)
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit insert", err)
	}

	s.log.Debug("record inserted", "id", rec.ID, "kind", rec.Kind, "seq", seq)
	s.notify([]Change{{Op: OpInsert, Seq: seq, RecordID: rec.ID, Kind: rec.Kind}})
	return nil
}

// Update applies a single field change to an already-inserted record
// and persists it durably before returning. Fails with NOT_FOUND if
// the record was never inserted.
func (s *Store) Update(ctx context.Context, id, field string, value record.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin update", err)
	}
	defer tx.Rollback()

	var kind, fieldsJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT kind, fields FROM records WHERE id = ?", id,
	).Scan(&kind, &fieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return newNotFoundError(id)
	}
	if err != nil {
		return storageError("read record for update", err)
	}

	if err := s.schema.ValidateField(kind, field, value); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	kindDecl, _ := s.schema.Kind(kind)
	fields, err := record.UnmarshalFields(fieldsJSON, kindDecl.Fields)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	fields[field] = value
	updated, err := record.MarshalFields(fields)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	seq := s.clock.Next()
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET fields = ?, seq = ? WHERE id = ?",
		updated, seq, id,
	); err != nil {
		return storageError("update record", err)
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit update", err)
	}

	s.log.Debug("record updated", "id", id, "kind", kind, "field", field, "seq", seq)
	s.notify([]Change{{Op: OpUpdate, Seq: seq, RecordID: id, Kind: kind, Field: field}})
	return nil
}

// Delete removes a record. Children reached through cascade
// relationships are deleted first, depth-first in position order;
// children of non-cascade relationships are detached (orphaned)
// instead. The whole removal is one transaction: either every affected
// record changes or none does. Fails with NOT_FOUND if absent.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin delete", err)
	}
	defer tx.Rollback()

	var kind string
	err = tx.QueryRowContext(ctx, "SELECT kind FROM records WHERE id = ?", id).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return newNotFoundError(id)
	}
	if err != nil {
		return storageError("read record for delete", err)
	}

	changes, err := s.deleteTree(ctx, tx, id, kind)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit delete", err)
	}

	s.log.Debug("record deleted", "id", id, "kind", kind, "cascaded", len(changes)-1)
	s.notify(changes)
	return nil
}

// deleteTree removes a record and, depth-first, everything it owns
// through cascade relationships. Returns the changes in deletion
// order: children first, owner last.
func (s *Store) deleteTree(ctx context.Context, tx *sql.Tx, id, kind string) ([]Change, error) {
	kindDecl, ok := s.schema.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("delete: stored record %s has undeclared kind %q", id, kind)
	}

	// Position order makes cascade deletion deterministic within a
	// store instance.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, kind FROM records
		WHERE owner_id = ?
		ORDER BY position ASC, id COLLATE BINARY ASC
	`, id)
	if err != nil {
		return nil, storageError("read children for delete", err)
	}

	type child struct{ id, kind string }
	var children []child
	for rows.Next() {
		var c child
		if err := rows.Scan(&c.id, &c.kind); err != nil {
			rows.Close()
			return nil, storageError("scan child for delete", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storageError("iterate children for delete", err)
	}
	rows.Close()

	var changes []Change
	for _, c := range children {
		rel, ok := kindDecl.RelationshipTo(c.kind)
		if ok && rel.Cascade {
			childChanges, err := s.deleteTree(ctx, tx, c.id, c.kind)
			if err != nil {
				return nil, err
			}
			changes = append(changes, childChanges...)
			continue
		}

		// Non-cascade ownership: orphan the child. Clearing owner_id
		// clears the back-reference, so no dangling edge survives.
		seq := s.clock.Next()
		if _, err := tx.ExecContext(ctx,
			"UPDATE records SET owner_id = NULL, position = NULL, seq = ? WHERE id = ?",
			seq, c.id,
		); err != nil {
			return nil, storageError("orphan child", err)
		}
		changes = append(changes, Change{Op: OpDetach, Seq: seq, RecordID: c.id, Kind: c.kind})
	}

	seq := s.clock.Next()
	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id); err != nil {
		return nil, storageError("delete record", err)
	}
	changes = append(changes, Change{Op: OpDelete, Seq: seq, RecordID: id, Kind: kind})
	return changes, nil
}

// Attach adds an existing record to an owner's collection, appended at
// the end. The owner's kind must declare a relationship owning the
// child's kind. A record already attached elsewhere must be detached
// first; attaching a record to its current owner is a no-op.
func (s *Store) Attach(ctx context.Context, ownerID, childID string) error {
	if ownerID == childID {
		return fmt.Errorf("attach: record cannot own itself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin attach", err)
	}
	defer tx.Rollback()

	var childKind string
	currentOwner := sql.NullString{}
	err = tx.QueryRowContext(ctx,
		"SELECT kind, owner_id FROM records WHERE id = ?", childID,
	).Scan(&childKind, &currentOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return newNotFoundError(childID)
	}
	if err != nil {
		return storageError("read child for attach", err)
	}

	if currentOwner.Valid {
		if currentOwner.String == ownerID {
			return nil // already attached here
		}
		return fmt.Errorf("attach: record %s is already owned by %s; detach it first", childID, currentOwner.String)
	}

	pos, err := s.attachPosition(ctx, tx, ownerID, childKind)
	if err != nil {
		return err
	}

	seq := s.clock.Next()
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET owner_id = ?, position = ?, seq = ? WHERE id = ?",
		ownerID, pos, seq, childID,
	); err != nil {
		return storageError("attach record", err)
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit attach", err)
	}

	s.log.Debug("record attached", "id", childID, "owner", ownerID, "position", pos, "seq", seq)
	s.notify([]Change{{Op: OpAttach, Seq: seq, RecordID: childID, Kind: childKind}})
	return nil
}

// Detach removes a record from its owner's collection, clearing the
// back-reference in the same statement so it can never dangle.
// The record itself survives as an orphan.
func (s *Store) Detach(ctx context.Context, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin detach", err)
	}
	defer tx.Rollback()

	var childKind string
	currentOwner := sql.NullString{}
	err = tx.QueryRowContext(ctx,
		"SELECT kind, owner_id FROM records WHERE id = ?", childID,
	).Scan(&childKind, &currentOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return newNotFoundError(childID)
	}
	if err != nil {
		return storageError("read child for detach", err)
	}
	if !currentOwner.Valid {
		return fmt.Errorf("detach: record %s is not attached to anything", childID)
	}

	seq := s.clock.Next()
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET owner_id = NULL, position = NULL, seq = ? WHERE id = ?",
		seq, childID,
	); err != nil {
		return storageError("detach record", err)
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit detach", err)
	}

	s.log.Debug("record detached", "id", childID, "owner", currentOwner.String, "seq", seq)
	s.notify([]Change{{Op: OpDetach, Seq: seq, RecordID: childID, Kind: childKind}})
	return nil
}

// attachPosition validates the ownership edge and returns the next
// free position in the owner's collection.
func (s *Store) attachPosition(ctx context.Context, tx *sql.Tx, ownerID, childKind string) (int64, error) {
	var ownerKind string
	err := tx.QueryRowContext(ctx,
		"SELECT kind FROM records WHERE id = ?", ownerID,
	).Scan(&ownerKind)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, newNotFoundError(ownerID)
	}
	if err != nil {
		return 0, storageError("read owner", err)
	}

	ownerDecl, ok := s.schema.Kind(ownerKind)
	if !ok {
		return 0, fmt.Errorf("attach: stored record %s has undeclared kind %q", ownerID, ownerKind)
	}
	if _, ok := ownerDecl.RelationshipTo(childKind); !ok {
		return 0, fmt.Errorf("attach: kind %q does not own kind %q", ownerKind, childKind)
	}

	var pos int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM records WHERE owner_id = ?", ownerID,
	).Scan(&pos)
	if err != nil {
		return 0, storageError("compute position", err)
	}
	return pos, nil
}

// isPrimaryKeyConflict reports whether err is the driver's primary key
// constraint violation.
func isPrimaryKeyConflict(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
