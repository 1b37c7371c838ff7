package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/schema"
)

// createTestStore creates a file-backed store in a temp dir with the
// default User/Job schema.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, schema.MustDefault())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newUser creates an unsaved User record.
func newUser(name, city string, joinDate int64) record.Record {
	return record.New("User", map[string]record.Value{
		"name":      record.String(name),
		"city":      record.String(city),
		"join_date": record.Time(joinDate),
	})
}

// newJob creates an unsaved Job record.
func newJob(name string, priority int64) record.Record {
	return record.New("Job", map[string]record.Value{
		"name":     record.String(name),
		"priority": record.Int(priority),
	})
}

// mustInsert inserts a record or fails the test.
func mustInsert(t *testing.T, s *Store, rec record.Record) {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), rec))
}
