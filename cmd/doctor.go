package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/fabot/internal/channels/telegram"
	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/store/pg"
	"github.com/nextlevelbuilder/fabot/internal/store/sqlite"
	"github.com/nextlevelbuilder/fabot/internal/upgrade"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, configuration, storage and Telegram connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) {
	fmt.Println("fabot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	fmt.Printf("  Hash:     %s\n", cfg.Hash())

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.IsManagedMode() {
		fmt.Printf("    %-12s managed (postgres)\n", "Mode:")
		checkPostgres(ctx, cfg.Database.PostgresDSN)
	} else {
		path := cfg.SQLitePath()
		fmt.Printf("    %-12s standalone (sqlite)\n", "Mode:")
		fmt.Printf("    %-12s %s\n", "Path:", path)
		if db, err := sqlite.OpenDB(path); err != nil {
			fmt.Printf("    %-12s OPEN FAILED (%s)\n", "Status:", err)
		} else {
			fmt.Printf("    %-12s OK\n", "Status:")
			db.Close()
		}
	}

	fmt.Println()
	fmt.Println("  Telegram:")
	checkTelegram(ctx, cfg.Telegram)

	fmt.Println()
	fmt.Println("  Moderation:")
	fmt.Printf("    %-12s %s\n", "Debounce:", cfg.Moderation.DebounceDuration())
	fmt.Printf("    %-12s %s (sweep %s)\n", "Group TTL:", cfg.Moderation.GroupTTLDuration(), cfg.Moderation.SweepIntervalDuration())
	fmt.Printf("    %-12s %s\n", "Timezone:", cfg.Moderation.Location())

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkPostgres(ctx context.Context, dsn string) {
	db, err := pg.OpenDB(dsn)
	if err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	defer db.Close()

	s, err := upgrade.CheckSchema(ctx, db)
	switch {
	case err != nil:
		fmt.Printf("    %-12s CHECK FAILED (%s)\n", "Schema:", err)
	case s.Dirty:
		fmt.Printf("    %-12s v%d (DIRTY, run: fabot migrate force %d)\n", "Schema:", s.CurrentVersion, s.CurrentVersion-1)
	case s.Compatible:
		fmt.Printf("    %-12s v%d (up to date)\n", "Schema:", s.CurrentVersion)
	case s.CurrentVersion > s.RequiredVersion:
		fmt.Printf("    %-12s v%d (binary too old, requires v%d)\n", "Schema:", s.CurrentVersion, s.RequiredVersion)
	default:
		fmt.Printf("    %-12s v%d (upgrade needed, run: fabot upgrade)\n", "Schema:", s.CurrentVersion)
	}

	pending, err := upgrade.PendingHooks(ctx, db)
	if err == nil && len(pending) > 0 {
		fmt.Printf("    %-12s %d pending\n", "Data hooks:", len(pending))
	} else if err == nil {
		fmt.Printf("    %-12s all applied\n", "Data hooks:")
	}
}

func checkTelegram(ctx context.Context, tg config.TelegramConfig) {
	if tg.Token == "" {
		fmt.Printf("    %-12s (not configured)\n", "Token:")
		return
	}
	fmt.Printf("    %-12s %s\n", "Token:", maskToken(tg.Token))

	mode := "per-user (/setchannel)"
	if tg.IsFixedChannelMode() {
		mode = "fixed " + tg.FixedChannel()
	}
	fmt.Printf("    %-12s %s\n", "Channel:", mode)
	if tg.OwnerID != 0 {
		fmt.Printf("    %-12s %d\n", "Owner:", tg.OwnerID)
	}

	bot, err := telegram.NewBot(tg)
	if err != nil {
		fmt.Printf("    %-12s INVALID (%s)\n", "Bot:", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	me, err := bot.GetMe(ctx)
	if err != nil {
		fmt.Printf("    %-12s UNREACHABLE (%s)\n", "Bot:", err)
		return
	}
	fmt.Printf("    %-12s @%s (id %d)\n", "Bot:", me.Username, me.ID)
}

// maskToken keeps the bot id prefix and hides the secret part.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***" + token[len(token)-4:]
}
