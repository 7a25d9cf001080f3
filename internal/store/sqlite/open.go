// Package sqlite implements the fabot stores on a local SQLite file
// (standalone mode).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/nextlevelbuilder/fabot/internal/store"
)

const defaultBusyTimeout = 5000 // ms

// OpenDB opens the SQLite database at path, creating parent directories,
// enabling WAL and migrating the schema.
//
// A single connection is used since SQLite serialises writes.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewStores opens path and returns all stores backed by it.
func NewStores(path string) (*store.Stores, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return &store.Stores{
		Sessions:   NewSessionStore(db),
		Settings:   NewSettingsStore(db),
		DB:         db,
		SQLitePath: path,
	}, nil
}

// Snapshot writes a consistent copy of the database into dir and returns its
// path. The caller removes the file.
func Snapshot(ctx context.Context, db *sql.DB, dir string) (string, error) {
	f, err := os.CreateTemp(dir, "fabot-*.db")
	if err != nil {
		return "", fmt.Errorf("sqlite: create snapshot file: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	_ = os.Remove(path)

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("sqlite: snapshot: %w", err)
	}
	return path, nil
}
