// Package pg implements the fabot stores on Postgres (managed mode).
// The schema is owned by golang-migrate (see migrations/).
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/nextlevelbuilder/fabot/internal/store"
)

// OpenDB opens a pooled Postgres connection via pgx's database/sql driver
// and verifies it with a ping.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPGStores creates all stores backed by Postgres (managed mode).
func NewPGStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &store.Stores{
		Sessions: NewPGSessionStore(db),
		Settings: NewPGSettingsStore(db),
		DB:       db,
	}, nil
}
