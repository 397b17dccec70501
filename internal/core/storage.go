package core

import (
	"context"
	"fmt"

	"barcoder/internal/infra/persistence/memory"
	"barcoder/internal/infra/persistence/postgres"
	"barcoder/internal/infra/persistence/sqlite"
	"barcoder/pkg/domain"
)

// StorageDriver identifies a directory backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the directory backend. Driver defaults to sqlite.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// OpenDirectory opens and migrates the configured directory store.
func OpenDirectory(ctx context.Context, cfg StorageConfig) (domain.Directory, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case "", StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
