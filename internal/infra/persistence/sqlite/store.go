// Package sqlite opens the directory on an embedded SQLite file.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"barcoder/internal/infra/persistence/sqlbundle"
	"barcoder/internal/infra/persistence/sqldir"
)

const driverName = "sqlite"

// DefaultPath is used when no path is configured.
const DefaultPath = "barcoder.db"

// NewStore opens (creating if needed) the SQLite directory at path and
// applies the schema.
func NewStore(ctx context.Context, path string) (*sqldir.Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sqlx.Open(driverName, path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps concurrent label count updates from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	store := sqldir.New(db)
	if err := store.Migrate(ctx, sqlbundle.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
