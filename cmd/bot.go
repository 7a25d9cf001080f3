package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/fabot/internal/channels"
	"github.com/nextlevelbuilder/fabot/internal/channels/telegram"
	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/gateway"
	"github.com/nextlevelbuilder/fabot/internal/mediagroup"
	"github.com/nextlevelbuilder/fabot/internal/metrics"
	"github.com/nextlevelbuilder/fabot/internal/moderation"
	"github.com/nextlevelbuilder/fabot/internal/store"
	"github.com/nextlevelbuilder/fabot/internal/store/pg"
	"github.com/nextlevelbuilder/fabot/internal/store/sqlite"
	"github.com/nextlevelbuilder/fabot/internal/telemetry"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot (default command)",
		Run: func(cmd *cobra.Command, args []string) {
			runBot()
		},
	}
}

func runBot() {
	cfgPath := resolveConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Telegram.Token == "" {
		if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) {
			fmt.Println("No configuration found. Run the setup wizard:  ./fabot onboard")
		} else {
			fmt.Println("Telegram bot token is not set. Export FABOT_TELEGRAM_TOKEN or set telegram.token in", cfgPath)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := serve(ctx, cfg, cancel); err != nil {
		slog.Error("fabot stopped with error", "error", err)
		os.Exit(1)
	}
}

// serve wires every component and blocks until a signal arrives or ctx ends.
func serve(ctx context.Context, cfg *config.Config, cancel context.CancelFunc) error {
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()
	reporter := telemetry.NewReporter(tp.Tracer())

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	bot, err := telegram.NewBot(cfg.Telegram)
	if err != nil {
		return err
	}
	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}

	groups := mediagroup.New(mediagroup.Options{
		Debounce:      cfg.Moderation.DebounceDuration(),
		TTL:           cfg.Moderation.GroupTTLDuration(),
		SweepInterval: cfg.Moderation.SweepIntervalDuration(),
	})
	defer groups.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry, groups.Pending)

	var resolver moderation.ChannelResolver = moderation.SessionResolver{Sessions: stores.Sessions}
	if cfg.Telegram.IsFixedChannelMode() {
		fixed := resolveFixedChannel(ctx, bot, cfg.Telegram.FixedChannel())
		resolver = moderation.FixedResolver{Channel: fixed}
		slog.Info("fixed channel mode", "channel_id", fixed.ChannelID, "title", fixed.ChannelTitle)
	}

	checker := moderation.NewChecker(bot, stores.Settings, me.ID)
	notifier := moderation.NewNotifier(moderation.NotifierConfig{
		Platform:   bot,
		Settings:   stores.Settings,
		Reporter:   reporter,
		Metrics:    m,
		Limiter:    notifyLimiter(cfg.Telegram),
		Location:   cfg.Moderation.Location(),
		TimeLayout: cfg.Moderation.TimeLayout,
	})
	dispatcher := moderation.NewDispatcher(moderation.DispatcherConfig{
		Platform: bot,
		Sessions: stores.Sessions,
		Settings: stores.Settings,
		Resolver: resolver,
		Groups:   groups,
		Notifier: notifier,
		Checker:  checker,
		Reporter: reporter,
		Metrics:  m,
		BotID:    me.ID,
	})

	var dumpDB func(context.Context) (string, error)
	if stores.SQLitePath != "" {
		dumpDB = func(ctx context.Context) (string, error) {
			return sqlite.Snapshot(ctx, stores.DB, os.TempDir())
		}
	}

	tg := telegram.New(telegram.Options{
		Bot:        bot,
		Config:     cfg.Telegram,
		Sessions:   stores.Sessions,
		Settings:   stores.Settings,
		Resolver:   resolver,
		Dispatcher: dispatcher,
		Checker:    checker,
		DumpDB:     dumpDB,
		Limiter:    channels.NewSenderRateLimiter(cfg.Telegram.RelayPerMinute, time.Minute),
	})

	channelMgr := channels.NewManager()
	channelMgr.RegisterChannel(tg.Name(), tg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := channelMgr.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case sig := <-sigCh:
			slog.Info("graceful shutdown initiated", "signal", sig)
		case <-ctx.Done():
		}
		_ = channelMgr.StopAll(context.Background())
		cancel()
	}()

	mode := "standalone"
	if cfg.IsManagedMode() {
		mode = "managed"
	}
	slog.Info("fabot starting",
		"version", Version,
		"mode", mode,
		"bot", me.Username,
		"fixed_channel", cfg.Telegram.FixedChannel(),
	)

	server := gateway.NewServer(cfg.Gateway, channelMgr, stores.DB, registry)
	err = server.Start(ctx)
	if err != nil {
		cancel()
	}
	// Stores and the coordinator close only after polling has stopped.
	<-stopped
	return err
}

// openStores opens Postgres in managed mode (after a schema gate) or the
// local SQLite file otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, error) {
	if !cfg.IsManagedMode() {
		path := cfg.SQLitePath()
		stores, err := sqlite.NewStores(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		slog.Info("storage: sqlite", "path", path)
		return stores, nil
	}

	if err := checkSchemaOrAutoUpgrade(ctx, cfg.Database.PostgresDSN); err != nil {
		return nil, err
	}
	stores, err := pg.NewPGStores(store.StoreConfig{PostgresDSN: cfg.Database.PostgresDSN})
	if err != nil {
		return nil, err
	}
	slog.Info("storage: postgres")
	return stores, nil
}

// resolveFixedChannel looks the configured channel up so settings are keyed
// by the numeric id channel posts carry. Falls back to the raw value.
func resolveFixedChannel(ctx context.Context, bot *telego.Bot, id string) store.ChannelConfig {
	chat, err := bot.GetChat(ctx, &telego.GetChatParams{ChatID: moderation.ChatID(id)})
	if err != nil {
		slog.Warn("fixed channel lookup failed; using configured id", "channel_id", id, "error", err)
		return store.ChannelConfig{ChannelID: id}
	}
	return store.ChannelConfig{
		ChannelID:    strconv.FormatInt(chat.ID, 10),
		ChannelTitle: chat.Title,
	}
}

func notifyLimiter(cfg config.TelegramConfig) *rate.Limiter {
	if cfg.NotifyRate <= 0 {
		return nil
	}
	burst := cfg.NotifyBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.NotifyRate), burst)
}
