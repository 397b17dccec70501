// Package postgres opens the directory on a Postgres database through pgx.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/jmoiron/sqlx"

	"barcoder/internal/infra/persistence/sqlbundle"
	"barcoder/internal/infra/persistence/sqldir"
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/barcoder?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// NewStore connects to dsn, verifies the connection and applies the schema.
func NewStore(ctx context.Context, dsn string) (*sqldir.Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	raw, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := sqldir.New(sqlx.NewDb(raw, defaultDriver))
	if err := store.Migrate(ctx, sqlbundle.Postgres()); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return store, nil
}
