// Package upgrade checks that a managed-mode Postgres schema matches this binary.
package upgrade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RequiredSchemaVersion is the golang-migrate version this binary expects.
// Bump together with a new migrations/NNNNNN_*.sql pair.
const RequiredSchemaVersion uint = 1

// SchemaStatus represents the result of a schema compatibility check.
type SchemaStatus struct {
	CurrentVersion  uint
	RequiredVersion uint
	Dirty           bool
	Compatible      bool
	NeedsMigration  bool
}

var (
	ErrSchemaOutdated = errors.New("database schema is outdated")
	ErrSchemaDirty    = errors.New("database schema is dirty (failed migration)")
	ErrSchemaAhead    = errors.New("database schema is newer than this binary")
)

// CheckSchema queries the schema_migrations table and compares
// against RequiredSchemaVersion to determine compatibility.
func CheckSchema(ctx context.Context, db *sql.DB) (*SchemaStatus, error) {
	var version uint
	var dirty bool

	err := db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&version, &dirty)
	if err != nil {
		// No rows or no table: fresh database.
		return &SchemaStatus{
			RequiredVersion: RequiredSchemaVersion,
			NeedsMigration:  true,
		}, nil
	}

	return evaluate(version, dirty), nil
}

func evaluate(version uint, dirty bool) *SchemaStatus {
	s := &SchemaStatus{
		CurrentVersion:  version,
		RequiredVersion: RequiredSchemaVersion,
		Dirty:           dirty,
	}

	if dirty {
		return s
	}

	switch {
	case version == RequiredSchemaVersion:
		s.Compatible = true
	case version < RequiredSchemaVersion:
		s.NeedsMigration = true
	default:
		// Schema is ahead: binary is too old.
	}

	return s
}

// Err maps a status to one of the sentinel errors, or nil when compatible.
func (s *SchemaStatus) Err() error {
	switch {
	case s.Dirty:
		return ErrSchemaDirty
	case s.Compatible:
		return nil
	case s.NeedsMigration:
		return ErrSchemaOutdated
	default:
		return ErrSchemaAhead
	}
}

// FormatError returns a user-friendly error message for the given status.
func FormatError(s *SchemaStatus) string {
	if s.Dirty {
		return fmt.Sprintf(
			"Database schema is in a dirty state (version %d).\n"+
				"This usually means a migration failed partway.\n\n"+
				"  Fix:  ./fabot migrate force %d\n"+
				"  Then: ./fabot migrate up\n",
			s.CurrentVersion, s.CurrentVersion-1,
		)
	}
	if s.CurrentVersion > s.RequiredVersion {
		return fmt.Sprintf(
			"Database schema (v%d) is newer than this binary (requires v%d).\n"+
				"You may be running an older version of fabot.\n\n"+
				"  Fix: upgrade your fabot binary to the latest version.\n",
			s.CurrentVersion, s.RequiredVersion,
		)
	}
	return fmt.Sprintf(
		"Database schema is outdated: current v%d, required v%d.\n\n"+
			"  Run:  ./fabot migrate up\n",
		s.CurrentVersion, s.RequiredVersion,
	)
}
