package moderation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/fabot/internal/store"
)

// Requirements is a snapshot of what a channel needs before the bot can
// relay into it.
type Requirements struct {
	ChannelExists   bool
	BotIsAdded      bool
	BotCanPost      bool
	BlurbConfigured bool
}

// AllSatisfied reports whether every requirement holds.
func (r Requirements) AllSatisfied() bool {
	return r.ChannelExists && r.BotIsAdded && r.BotCanPost && r.BlurbConfigured
}

// Checker computes Requirements from live Telegram state and stored settings.
type Checker struct {
	platform Platform
	settings store.ChannelSettingsStore
	botID    int64
}

func NewChecker(platform Platform, settings store.ChannelSettingsStore, botID int64) *Checker {
	return &Checker{platform: platform, settings: settings, botID: botID}
}

// Compute never fails: lookup errors turn into unmet requirements. When the
// channel is unreachable the bot checks are skipped.
func (c *Checker) Compute(ctx context.Context, channelID string) Requirements {
	var reqs Requirements

	settings, err := c.settings.GetSettings(ctx, channelID)
	switch {
	case err == nil:
		reqs.BlurbConfigured = settings.ForeignAgentBlurb != ""
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("requirements: load settings", "channel_id", channelID, "error", err)
	}

	chat, err := c.platform.GetChat(ctx, &telego.GetChatParams{ChatID: ChatID(channelID)})
	if err != nil {
		slog.Debug("requirements: channel unreachable", "channel_id", channelID, "error", err)
		return reqs
	}
	reqs.ChannelExists = true

	member, err := c.platform.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: ChatID(channelID),
		UserID: c.botID,
	})
	if err != nil {
		return reqs
	}

	perms := PermissionsFromMember(member)
	reqs.BotIsAdded = perms.IsMember
	reqs.BotCanPost = perms.CanPostMessages
	// Plain members may post in groups but never in broadcast channels.
	if perms.IsMember && !perms.IsAdmin && chat.Type != telego.ChatTypeChannel {
		reqs.BotCanPost = true
	}
	return reqs
}

// FormatRequirements renders one checkmark line per requirement.
func FormatRequirements(r Requirements) string {
	lines := []string{
		mark(r.ChannelExists, "Настроенный канал существует", "Канал не существует или бот не может получить к нему доступ"),
		mark(r.BotIsAdded, "🤖 Бот добавлен в канал", "🤖 Бот не добавлен в канал"),
		mark(r.BotCanPost, "🤖 Бот может публиковать сообщения в канал", "🤖 У бота нет разрешения на публикацию сообщений"),
		mark(r.BlurbConfigured, "🌍 Текст иностранного агента настроен", "🌍 Текст иностранного агента не настроен"),
	}
	return strings.Join(lines, "\n")
}

func mark(ok bool, yes, no string) string {
	if ok {
		return "✅ " + yes
	}
	return "❌ " + no
}
