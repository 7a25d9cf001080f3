package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Stores is the top-level container for all storage backends.
// Both standalone (SQLite) and managed (Postgres) modes fill every field.
type Stores struct {
	Sessions SessionStore
	Settings ChannelSettingsStore

	DB *sql.DB

	// SQLitePath is the database file in standalone mode, empty in managed mode.
	// Used by /dump_db.
	SQLitePath string
}

// Close releases the underlying database handle.
func (s *Stores) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// StoreConfig configures store creation.
type StoreConfig struct {
	PostgresDSN string // managed mode when non-empty
	SQLitePath  string // standalone mode
}
