package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/bindery/internal/schema"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, schema.MustDefault())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, schema.MustDefault())
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path, schema.MustDefault())
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='records'",
	).Scan(&name)
	if err != nil {
		t.Errorf("records table not found after idempotent opens: %v", err)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestOpen_RunsMigrations(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, expected %d", version, currentSchemaVersion)
	}

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_records_owner'",
	).Scan(&name)
	if err != nil {
		t.Errorf("owner index not found: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db", schema.MustDefault())
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_ClockResumesFromMaxSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path, schema.MustDefault())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.Insert(ctx, newUser("Piper", "London", 100)); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := s1.Insert(ctx, newUser("Rhea", "London", 200)); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	wantSeq := s1.Seq()
	s1.Close()

	s2, err := Open(path, schema.MustDefault())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	if got := s2.Seq(); got != wantSeq {
		t.Errorf("clock resumed at %d, expected %d", got, wantSeq)
	}

	// The next mutation must continue strictly after the old position.
	if err := s2.Insert(ctx, newUser("Ada", "Paris", 300)); err != nil {
		t.Fatalf("Insert() after reopen failed: %v", err)
	}
	if got := s2.Seq(); got != wantSeq+1 {
		t.Errorf("clock advanced to %d, expected %d", got, wantSeq+1)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, schema.MustDefault())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	// Second close must not panic (though it may error).
	_ = s.Close()
}
