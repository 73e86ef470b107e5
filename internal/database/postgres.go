package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hadiqa-go/internal/hq"
)

// DBTX is the subset of pgxpool.Pool the postgres store needs.
// pgxmock pools satisfy it in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// PostgresStateStore implements hq.StateStore on a shared postgres table,
// letting several hadiqa servers serve the same user state.
type PostgresStateStore struct {
	db    DBTX
	close func()
}

// NewPostgresStateStore wraps db. closeFn may be nil.
func NewPostgresStateStore(db DBTX, closeFn func()) *PostgresStateStore {
	return &PostgresStateStore{db: db, close: closeFn}
}

func (s *PostgresStateStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, "SELECT value FROM state_entries WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, hq.ErrNotFound
		}
		return nil, fmt.Errorf("reading state %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStateStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO state_entries (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing state %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM state_entries WHERE key = $1", key); err != nil {
		return fmt.Errorf("deleting state %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in lexical order.
func (s *PostgresStateStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, "SELECT key FROM state_entries ORDER BY key")
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

func (s *PostgresStateStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

var _ hq.StateStore = (*PostgresStateStore)(nil)
