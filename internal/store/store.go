package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragmas are applied to every connection before the schema.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations upgrade a database from user_version i to i+1.
// Append only; the schema version is len(migrations).
var migrations = []struct {
	name string
	stmt string
}{
	{"fingerprint history index", `CREATE INDEX IF NOT EXISTS idx_calls_fingerprint ON calls(fingerprint, seq)`},
	{"block range index", `CREATE INDEX IF NOT EXISTS idx_calls_block ON calls(block, seq)`},
	{"caller index", `CREATE INDEX IF NOT EXISTS idx_calls_caller ON calls(caller, seq)`},
}

const metaMaxBytesInHash = "max_bytes_in_hash"

// ErrConfigMismatch is returned when a database is reopened with a different
// MaxBytesInHash than it was initialized with.
var ErrConfigMismatch = errors.New("configuration does not match initialized database")

// Store is the SQLite-backed journal and proof table.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path, applying pragmas, the
// schema and any pending migrations. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" databases
	// live only as long as their connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if err := setup(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func setup(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("failed to set pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return migrate(ctx, db)
}

// migrate runs every migration past the database's user_version.
func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		m := migrations[i]
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", i+1, m.name, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying connection for ad hoc queries and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureMaxBytesInHash records max on first use and afterwards verifies that
// the database is reopened with the same bound.
func (s *Store) EnsureMaxBytesInHash(ctx context.Context, max uint32) error {
	stored, ok, err := s.MaxBytesInHash(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)`,
			metaMaxBytesInHash, strconv.FormatUint(uint64(max), 10),
		)
		if err != nil {
			return fmt.Errorf("record max_bytes_in_hash: %w", err)
		}
		return nil
	}
	if stored != max {
		return fmt.Errorf("%w: max_bytes_in_hash is %d, got %d", ErrConfigMismatch, stored, max)
	}
	return nil
}

// MaxBytesInHash returns the bound the database was initialized with.
// ok is false for an uninitialized database.
func (s *Store) MaxBytesInHash(ctx context.Context) (max uint32, ok bool, err error) {
	var stored string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaMaxBytesInHash).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read max_bytes_in_hash: %w", err)
	}
	n, err := strconv.ParseUint(stored, 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("parse max_bytes_in_hash %q: %w", stored, err)
	}
	return uint32(n), true, nil
}
