package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite database.
// It is the embedded cache shared by every component of a session; there is
// no record-level locking and concurrent writes are last-write-wins.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations applies outstanding migrations store by store, recording
// each store's version independently in schema_versions.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			store   TEXT PRIMARY KEY,
			version INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating schema_versions table: %w", err)
	}

	for _, name := range storeOrder {
		current, err := s.SchemaVersion(ctx, name)
		if err != nil {
			return err
		}

		for _, m := range migrations[name] {
			if m.version <= current {
				continue
			}
			if err := s.applyMigration(ctx, name, m); err != nil {
				return err
			}
		}
	}

	return nil
}

// applyMigration runs one migration and bumps the store's version in the
// same transaction.
func (s *SQLiteStore) applyMigration(ctx context.Context, name string, m migration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("applying %s migration v%d: %w", name, m.version, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_versions (store, version) VALUES (?, ?)
		ON CONFLICT(store) DO UPDATE SET version = excluded.version`,
		name, m.version,
	); err != nil {
		return fmt.Errorf("recording %s schema version %d: %w", name, m.version, err)
	}

	return tx.Commit()
}

// SchemaVersion returns the applied schema version of a single store, or 0
// when it has never been migrated.
func (s *SQLiteStore) SchemaVersion(ctx context.Context, name string) (int, error) {
	var version int
	err := s.db.GetContext(ctx, &version,
		"SELECT COALESCE(MAX(version), 0) FROM schema_versions WHERE store = ?", name)
	if err != nil {
		return 0, fmt.Errorf("reading %s schema version: %w", name, err)
	}
	return version, nil
}

// likePattern lowercases q and wraps it for a case-insensitive substring
// match, escaping LIKE wildcards. Use together with ESCAPE '\'.
func likePattern(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

// searchClause builds "(LOWER(a) LIKE ? ESCAPE '\' OR ...)" with one
// argument per column.
func searchClause(query string, columns ...string) (string, []interface{}) {
	pattern := likePattern(query)
	parts := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col)
		args[i] = pattern
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// marshalColumn encodes a nested value for a TEXT JSON column.
func marshalColumn(field string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling %s: %w", field, err)
	}
	return string(data), nil
}

// unmarshalColumn decodes a TEXT JSON column into v.
func unmarshalColumn(field, raw string, v interface{}) error {
	if raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", field, err)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// utcPtr normalizes an optional timestamp read back from SQLite.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
