package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hadiqa-go/internal/database/migrations"
	"hadiqa-go/internal/hq"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStateStore implements hq.StateStore on a single SQLite table.
type SQLiteStateStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStateStore opens the database at path and brings its schema up to date.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStateStore(path string) (*SQLiteStateStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating state store: %w", err)
	}

	return &SQLiteStateStore{db: db, path: path}, nil
}

// NewSQLiteStateStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the schema is applied.
func NewSQLiteStateStoreFromDB(db *sql.DB) *SQLiteStateStore {
	return &SQLiteStateStore{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Each connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// CheckMigrations reports whether the schema is at the latest version.
func (s *SQLiteStateStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

func (s *SQLiteStateStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state_entries WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hq.ErrNotFound
		}
		return nil, fmt.Errorf("reading state %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStateStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing state %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM state_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting state %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in lexical order.
func (s *SQLiteStateStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM state_entries ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("listing state keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning state key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStateStore) Close() error {
	return s.db.Close()
}

var _ hq.StateStore = (*SQLiteStateStore)(nil)
