package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/upgrade"
	"github.com/nextlevelbuilder/fabot/migrations"
)

// migrationsDir overrides the embedded migrations (flag or FABOT_MIGRATIONS_DIR).
var migrationsDir string

// errNoDSN is returned by the schema commands when Postgres is not configured.
var errNoDSN = errors.New("FABOT_POSTGRES_DSN is not set (standalone SQLite migrates itself on open)")

// newMigrator reads migrations from disk when a directory is configured and
// from the binary otherwise.
func newMigrator(dsn string) (*migrate.Migrate, error) {
	dir := migrationsDir
	if dir == "" {
		dir = os.Getenv("FABOT_MIGRATIONS_DIR")
	}

	var (
		m   *migrate.Migrate
		err error
	)
	if dir != "" {
		m, err = migrate.New("file://"+dir, dsn)
	} else {
		src, srcErr := iofs.New(migrations.FS, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("load embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

func resolveDSN() (string, error) {
	// DSN comes from the environment only; config.Load copies
	// FABOT_POSTGRES_DSN into cfg.Database.PostgresDSN.
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.PostgresDSN == "" {
		return "", errNoDSN
	}
	return cfg.Database.PostgresDSN, nil
}

// withMigrator resolves the DSN, opens a migrator for the duration of fn and
// logs the resulting version.
func withMigrator(fn func(cmd *cobra.Command, args []string, dsn string, m *migrate.Migrate) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN()
		if err != nil {
			return err
		}
		m, err := newMigrator(dsn)
		if err != nil {
			return err
		}
		defer m.Close()

		if err := fn(cmd, args, dsn, m); err != nil {
			return err
		}
		if v, dirty, err := m.Version(); err == nil {
			slog.Info("schema version", "version", v, "dirty", dirty)
		}
		return nil
	}
}

// ignoreNoChange treats "already at target" as success.
func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Postgres schema migrations (managed mode)",
	}
	cmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "", "read migrations from this directory instead of the embedded set")

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (default: 1 step)",
		RunE: withMigrator(func(_ *cobra.Command, _ []string, _ string, m *migrate.Migrate) error {
			if steps <= 0 {
				steps = 1
			}
			if err := ignoreNoChange(m.Steps(-steps)); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			return nil
		}),
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "number of steps to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations and data hooks",
			RunE: withMigrator(func(cmd *cobra.Command, _ []string, dsn string, m *migrate.Migrate) error {
				if err := ignoreNoChange(m.Up()); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				db, err := sql.Open("pgx", dsn)
				if err != nil {
					return fmt.Errorf("connect for data hooks: %w", err)
				}
				defer db.Close()
				count, err := upgrade.RunPendingHooks(cmd.Context(), db)
				if err != nil {
					return err
				}
				if count > 0 {
					slog.Info("data hooks applied", "count", count)
				}
				return nil
			}),
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			RunE: withMigrator(func(_ *cobra.Command, _ []string, _ string, m *migrate.Migrate) error {
				v, dirty, err := m.Version()
				if err != nil {
					return fmt.Errorf("get version: %w", err)
				}
				fmt.Printf("version: %d, dirty: %v\n", v, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force set migration version (no migration applied)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(_ *cobra.Command, args []string, _ string, m *migrate.Migrate) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version: %w", err)
				}
				return m.Force(version)
			}),
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(_ *cobra.Command, args []string, _ string, m *migrate.Migrate) error {
				version, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version: %w", err)
				}
				return ignoreNoChange(m.Migrate(uint(version)))
			}),
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop all tables, including channel settings (DANGEROUS)",
			RunE: withMigrator(func(_ *cobra.Command, _ []string, _ string, m *migrate.Migrate) error {
				return m.Drop()
			}),
		},
	)
	return cmd
}
