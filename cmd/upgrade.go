package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/upgrade"
)

// ErrUpgradeFailed is returned when upgrade cannot proceed.
var ErrUpgradeFailed = errors.New("upgrade cannot proceed")

func upgradeCmd() *cobra.Command {
	var dryRun bool
	var status bool

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the Postgres schema and run data hooks",
		Long:  "Applies pending SQL migrations and settings data hooks in managed mode. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.IsManagedMode() {
				fmt.Println("Standalone mode (SQLite): the schema is created on startup, nothing to upgrade.")
				return nil
			}
			if status {
				return runUpgradeStatus(cmd.Context(), cfg.Database.PostgresDSN)
			}
			return runUpgrade(cmd.Context(), cfg.Database.PostgresDSN, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without applying changes")
	cmd.Flags().BoolVar(&status, "status", false, "show current upgrade status")

	return cmd
}

// upgradePlan is what `fabot upgrade` would do against the current database.
type upgradePlan struct {
	schema  *upgrade.SchemaStatus
	pending []string
}

func planUpgrade(ctx context.Context, db *sql.DB) (*upgradePlan, error) {
	s, err := upgrade.CheckSchema(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("check schema: %w", err)
	}
	plan := &upgradePlan{schema: s}
	if plan.pending, err = upgrade.PendingHooks(ctx, db); err != nil {
		slog.Debug("could not check pending data hooks", "error", err)
	}
	return plan, nil
}

func (p *upgradePlan) blocked() bool {
	return p.schema.Dirty || p.schema.CurrentVersion > p.schema.RequiredVersion
}

func (p *upgradePlan) print() {
	s := p.schema
	fmt.Printf("  App version:     %s\n", Version)
	fmt.Printf("  Schema:          v%d (required v%d)\n", s.CurrentVersion, s.RequiredVersion)

	state := "up to date"
	switch {
	case s.Dirty:
		state = "DIRTY (failed migration)"
	case s.CurrentVersion > s.RequiredVersion:
		state = "binary too old"
	case s.NeedsMigration:
		state = fmt.Sprintf("upgrade needed (v%d -> v%d)", s.CurrentVersion, s.RequiredVersion)
	}
	fmt.Printf("  Status:          %s\n", state)

	if len(p.pending) > 0 {
		fmt.Printf("  Data hooks:      %d pending\n", len(p.pending))
		for _, name := range p.pending {
			fmt.Printf("    - %s\n", name)
		}
	}
	if p.blocked() {
		fmt.Println()
		fmt.Print(upgrade.FormatError(s))
	}
}

func runUpgradeStatus(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	plan, err := planUpgrade(ctx, db)
	if err != nil {
		return err
	}
	plan.print()
	if plan.schema.NeedsMigration || len(plan.pending) > 0 {
		fmt.Println()
		fmt.Println("  Run 'fabot upgrade' to apply all pending changes.")
	}
	return nil
}

func runUpgrade(ctx context.Context, dsn string, dryRun bool) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	plan, err := planUpgrade(ctx, db)
	if err != nil {
		return err
	}
	plan.print()
	fmt.Println()
	if plan.blocked() {
		return ErrUpgradeFailed
	}
	if dryRun {
		fmt.Println("  Dry run: nothing applied.")
		return nil
	}

	if plan.schema.NeedsMigration {
		v, err := migrateUp(dsn)
		if err != nil {
			return err
		}
		fmt.Printf("  SQL migrations:  applied (now v%d)\n", v)
	}

	count, err := upgrade.RunPendingHooks(ctx, db)
	if err != nil {
		return fmt.Errorf("data hooks: %w", err)
	}
	fmt.Printf("  Data hooks:      %d applied\n", count)
	fmt.Println()
	fmt.Println("  Upgrade complete.")
	return nil
}

func migrateUp(dsn string) (uint, error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := ignoreNoChange(m.Up()); err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	v, _, _ := m.Version()
	return v, nil
}

// checkSchemaOrAutoUpgrade gates managed-mode startup on schema compatibility.
// With FABOT_AUTO_UPGRADE=true an outdated schema is upgraded inline.
func checkSchemaOrAutoUpgrade(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("schema check: connect: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("schema check: ping: %w", err)
	}

	s, err := upgrade.CheckSchema(ctx, db)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}

	if s.Compatible {
		slog.Info("schema check passed", "current", s.CurrentVersion, "required", s.RequiredVersion)
		return nil
	}
	if !s.NeedsMigration || os.Getenv("FABOT_AUTO_UPGRADE") != "true" {
		return errors.New(upgrade.FormatError(s))
	}

	slog.Info("auto-upgrade: applying migrations", "from", s.CurrentVersion, "to", s.RequiredVersion)
	v, err := migrateUp(dsn)
	if err != nil {
		return fmt.Errorf("auto-upgrade: %w", err)
	}
	slog.Info("auto-upgrade: SQL migrations applied", "version", v)

	count, err := upgrade.RunPendingHooks(ctx, db)
	if err != nil {
		return fmt.Errorf("auto-upgrade: data hooks: %w", err)
	}
	if count > 0 {
		slog.Info("auto-upgrade: data hooks applied", "count", count)
	}
	return nil
}
