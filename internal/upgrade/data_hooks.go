package upgrade

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// HookFunc transforms data after the SQL migration of its schema version.
// It runs inside the transaction that also records the hook as applied.
type HookFunc func(ctx context.Context, tx *sql.Tx) error

// Hook is a named data hook bound to a schema version.
type Hook struct {
	Version uint
	Name    string
	Run     HookFunc
}

var hooks []Hook

// RegisterDataHook adds a hook. Names must be unique; hooks run in
// registration order.
func RegisterDataHook(version uint, name string, fn HookFunc) {
	hooks = append(hooks, Hook{Version: version, Name: name, Run: fn})
}

// PendingHooks lists hooks not yet recorded in data_hooks.
func PendingHooks(ctx context.Context, db *sql.DB) ([]string, error) {
	applied, err := appliedHooks(ctx, db)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, h := range hooks {
		if !applied[h.Name] {
			names = append(names, h.Name)
		}
	}
	return names, nil
}

// RunPendingHooks applies every pending hook, each in its own transaction,
// and returns how many ran. It stops at the first failure.
func RunPendingHooks(ctx context.Context, db *sql.DB) (int, error) {
	applied, err := appliedHooks(ctx, db)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, h := range hooks {
		if applied[h.Name] {
			continue
		}
		start := time.Now()
		if err := runHook(ctx, db, h); err != nil {
			return ran, err
		}
		slog.Info("data hook applied", "name", h.Name, "schema_version", h.Version, "duration", time.Since(start))
		ran++
	}
	return ran, nil
}

func runHook(ctx context.Context, db *sql.DB, h Hook) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("data hook %q: begin: %w", h.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := h.Run(ctx, tx); err != nil {
		return fmt.Errorf("data hook %q: %w", h.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO data_hooks (name, version) VALUES ($1, $2)", h.Name, h.Version,
	); err != nil {
		return fmt.Errorf("data hook %q: record: %w", h.Name, err)
	}
	return tx.Commit()
}

// appliedHooks creates the bookkeeping table on first use and returns the
// recorded hook names.
func appliedHooks(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS data_hooks (
		name       TEXT        PRIMARY KEY,
		version    INT         NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure data_hooks table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM data_hooks")
	if err != nil {
		return nil, fmt.Errorf("query data_hooks: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
