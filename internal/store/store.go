package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"

	"github.com/roach88/bindery/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on records(owner_id, position)
const currentSchemaVersion = 1

// Config carries optional store settings.
type Config struct {
	// Language selects the locale for text collation and containment
	// matching. Defaults to English.
	Language language.Tag

	// Logger receives debug-level mutation logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Language == language.Und {
		c.Language = language.English
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Store provides durable storage for bindery records.
// Uses SQLite with WAL mode; a store-level mutex enforces the
// single-writer discipline (CP-1).
type Store struct {
	db     *sql.DB
	schema *schema.Schema
	clock  *Clock
	log    *slog.Logger

	mu sync.Mutex // serializes all mutations and their notifications

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int
}

// Open creates or opens a SQLite database at the given path with
// default configuration. Idempotent - safe to call multiple times.
func Open(path string, sch *schema.Schema) (*Store, error) {
	return OpenConfig(path, sch, Config{})
}

// OpenConfig creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically and resumes
// the logical clock from the highest persisted seq.
func OpenConfig(path string, sch *schema.Schema, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	db, err := sql.Open(driverFor(cfg.Language), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1) // Single writer to avoid SQLITE_BUSY errors
	db.SetMaxIdleConns(1) // Keep one connection ready

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var maxSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM records").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read clock position: %w", err)
	}

	return &Store{
		db:     db,
		schema: sch,
		clock:  NewClockAt(maxSeq),
		log:    cfg.Logger,
		subs:   map[int]Subscriber{},
	}, nil
}

// NewWithDB wraps an existing database handle. The caller owns the
// handle's lifecycle and schema; no pragmas or migrations are applied
// and the clock starts at zero. Intended for tests that need to
// inject failures (e.g. go-sqlmock).
func NewWithDB(db *sql.DB, sch *schema.Schema, cfg Config) *Store {
	cfg = cfg.withDefaults()
	return &Store{
		db:     db,
		schema: sch,
		clock:  NewClockAt(0),
		log:    cfg.Logger,
		subs:   map[int]Subscriber{},
	}
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Schema returns the schema the store validates against.
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// Seq returns the logical clock's current position.
func (s *Store) Seq() int64 {
	return s.clock.Current()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the owner/position index for existing databases.
// New databases get identical layout from schema.sql; CREATE INDEX IF
// NOT EXISTS is a no-op there.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_owner
		ON records(owner_id, position)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
