// Package telegram runs the bot on the Telegram Bot API: long polling, update
// routing, and the settings commands around the moderation core.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/fabot/internal/channels"
	"github.com/nextlevelbuilder/fabot/internal/config"
	"github.com/nextlevelbuilder/fabot/internal/moderation"
	"github.com/nextlevelbuilder/fabot/internal/store"
)

// API is the Bot API surface used by the channel. *telego.Bot satisfies it.
type API interface {
	moderation.Platform
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
	SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error
	DeleteMyCommands(ctx context.Context, params *telego.DeleteMyCommandsParams) error
}

var _ API = (*telego.Bot)(nil)

// NewBot creates the telego client, routing through cfg.Proxy when set.
func NewBot(cfg config.TelegramConfig) (*telego.Bot, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

// Options wires a Channel.
type Options struct {
	Bot        *telego.Bot
	API        API // defaults to Bot
	Config     config.TelegramConfig
	Sessions   store.SessionStore
	Settings   store.ChannelSettingsStore
	Resolver   moderation.ChannelResolver
	Dispatcher *moderation.Dispatcher
	Checker    *moderation.Checker

	// DumpDB writes a database snapshot and returns its path. Nil disables
	// /dump_db (managed mode).
	DumpDB func(ctx context.Context) (path string, err error)

	// Limiter throttles private messages per sender. Nil disables throttling.
	Limiter *channels.SenderRateLimiter
}

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	bot        *telego.Bot
	api        API
	config     config.TelegramConfig
	sessions   store.SessionStore
	settings   store.ChannelSettingsStore
	resolver   moderation.ChannelResolver
	dispatcher *moderation.Dispatcher
	checker    *moderation.Checker
	dumpDB     func(ctx context.Context) (string, error)
	limiter    *channels.SenderRateLimiter

	running    atomic.Bool
	pollCancel context.CancelFunc // cancels the long polling context
	pollDone   chan struct{}      // closed when polling goroutine exits
}

func New(opts Options) *Channel {
	api := opts.API
	if api == nil {
		api = opts.Bot
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = moderation.SessionResolver{Sessions: opts.Sessions}
	}
	return &Channel{
		bot:        opts.Bot,
		api:        api,
		config:     opts.Config,
		sessions:   opts.Sessions,
		settings:   opts.Settings,
		resolver:   resolver,
		dispatcher: opts.Dispatcher,
		checker:    opts.Checker,
		dumpDB:     opts.DumpDB,
		limiter:    opts.Limiter,
	}
}

var _ channels.Channel = (*Channel)(nil)

// Name returns the channel identifier.
func (c *Channel) Name() string { return "telegram" }

// IsRunning reports whether long polling is active.
func (c *Channel) IsRunning() bool {
	return c.running.Load()
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	// Stop() cancels this context to cleanly shut down long polling.
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	timeout := c.config.PollTimeout
	if timeout <= 0 {
		timeout = 30
	}
	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout: timeout,
		AllowedUpdates: []string{
			"message",
			"channel_post",
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.running.Store(true)
	slog.Info("telegram bot connected", "username", c.bot.Username(), "fixed_channel", c.config.FixedChannel())

	// Register bot menu commands with retry.
	go func() {
		commands := MenuCommands(c.config.IsFixedChannelMode())
		for attempt := 1; attempt <= 3; attempt++ {
			if err := c.SyncMenuCommands(pollCtx, commands); err != nil {
				slog.Warn("failed to sync telegram menu commands", "error", err, "attempt", attempt)
				if attempt < 3 {
					select {
					case <-pollCtx.Done():
						return
					case <-time.After(time.Duration(attempt*5) * time.Second):
					}
				}
			} else {
				slog.Info("telegram menu commands synced")
				return
			}
		}
	}()

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				c.handleUpdate(pollCtx, update)
			}
		}
	}()

	return nil
}

// Stop shuts down the Telegram bot by cancelling the long polling context
// and waiting for the polling goroutine to exit.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.running.Store(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}

	// Telegram releases the getUpdates lock only after the goroutine exits.
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}

// SyncMenuCommands registers bot commands with Telegram via setMyCommands.
func (c *Channel) SyncMenuCommands(ctx context.Context, commands []telego.BotCommand) error {
	if err := c.api.DeleteMyCommands(ctx, nil); err != nil {
		slog.Debug("deleteMyCommands failed (may not exist)", "error", err)
	}

	if len(commands) == 0 {
		return nil
	}

	return c.api.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commands,
	})
}
