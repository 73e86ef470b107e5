package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hadiqa-go/internal/config"
	"hadiqa-go/internal/database/migrations"
	"hadiqa-go/internal/hq"
)

// StateFileName is the SQLite file created inside the configured data dir.
const StateFileName = "hadiqa.db"

// NewStateStoreFromConfig creates a StateStore implementation based on the store config type.
func NewStateStoreFromConfig(ctx context.Context, cfg config.StoreConfig) (hq.StateStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		s, err := NewSQLiteStateStore(filepath.Join(cfg.DataDir, StateFileName))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres store")
		}
		if err := migrations.MigratePostgresUp(cfg.DSN); err != nil {
			return nil, fmt.Errorf("migrating postgres store: %w", err)
		}
		pool, err := Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewPostgresStateStore(pool, pool.Close), nil
	case "memory":
		return NewMemoryStateStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
