package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/bindery/internal/predicate"
	"github.com/roach88/bindery/internal/querysql"
	"github.com/roach88/bindery/internal/record"
)

// Get returns a single record by id. Fails with NOT_FOUND if absent.
func (s *Store) Get(ctx context.Context, id string) (record.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, seq, fields, owner_id, position
		FROM records WHERE id = ?
	`, id)

	rec, err := s.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, newNotFoundError(id)
	}
	if err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

// Fetch returns the ordered sequence of records of one kind matching a
// predicate. The predicate and sort order are validated against the
// schema before any query runs; results are deterministic per CP-3
// (ORDER BY always ends with id ASC COLLATE BINARY).
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Fetch(ctx context.Context, kind string, p predicate.Predicate, sort predicate.SortOrder) ([]record.Record, error) {
	kindDecl, ok := s.schema.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("fetch: unknown kind %q", kind)
	}
	if err := predicate.Validate(kindDecl, p); err != nil {
		return nil, err
	}
	if err := predicate.ValidateSort(kindDecl, sort); err != nil {
		return nil, err
	}

	query, params, err := querysql.NewCompiler(kindDecl.Fields).Compile(kind, p, sort)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, storageError("fetch records", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate records", err)
	}
	return records, nil
}

// Children returns the records owned by ownerID in collection order.
// Returns an empty slice (not nil) for an empty collection.
func (s *Store) Children(ctx context.Context, ownerID string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, seq, fields, owner_id, position
		FROM records
		WHERE owner_id = ?
		ORDER BY position ASC, id COLLATE BINARY ASC
	`, ownerID)
	if err != nil {
		return nil, storageError("fetch children", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterate children", err)
	}
	return records, nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one record row, decoding fields against the
// schema's declared types.
func (s *Store) scanRecord(row scanner) (record.Record, error) {
	var (
		rec        record.Record
		fieldsJSON string
		ownerID    sql.NullString
		position   sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Seq, &fieldsJSON, &ownerID, &position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record.Record{}, err
		}
		return record.Record{}, storageError("scan record", err)
	}

	kindDecl, ok := s.schema.Kind(rec.Kind)
	if !ok {
		return record.Record{}, fmt.Errorf("stored record %s has undeclared kind %q", rec.ID, rec.Kind)
	}
	fields, err := record.UnmarshalFields(fieldsJSON, kindDecl.Fields)
	if err != nil {
		return record.Record{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.Fields = fields

	if ownerID.Valid {
		rec.OwnerID = ownerID.String
	}
	if position.Valid {
		rec.Position = position.Int64
	}
	return rec, nil
}
