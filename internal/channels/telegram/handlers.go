package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/fabot/internal/moderation"
	"github.com/nextlevelbuilder/fabot/internal/store"
)

// handleUpdate routes one update. Channel posts go straight to the
// moderation dispatcher; private messages are commands, keyboard replies or
// content to relay.
func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	switch {
	case update.ChannelPost != nil:
		c.dispatcher.HandleChannelPost(ctx, update.ChannelPost)
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	default:
		slog.Debug("telegram update skipped", "update_id", update.UpdateID)
	}
}

func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	if message.Chat.Type != telego.ChatTypePrivate {
		slog.Debug("telegram non-private message skipped", "chat_id", message.Chat.ID, "chat_type", message.Chat.Type)
		return
	}

	if message.From != nil && !c.limiter.Allow(strconv.FormatInt(message.From.ID, 10)) {
		slog.Warn("telegram: sender rate limited", "user_id", message.From.ID, "message_id", message.MessageID)
		return
	}

	slog.Debug("telegram message received",
		"chat_id", message.Chat.ID,
		"message_id", message.MessageID,
		"media_group_id", message.MediaGroupID,
	)

	switch {
	case message.ChatShared != nil:
		c.handleChatShared(ctx, message)
	case message.UsersShared != nil:
		c.handleUsersShared(ctx, message)
	case strings.HasPrefix(message.Text, "/"):
		if !c.handleBotCommand(ctx, message) {
			// Unmatched slash text is content like any other.
			c.dispatcher.HandlePrivateMessage(ctx, message)
		}
	default:
		c.dispatcher.HandlePrivateMessage(ctx, message)
	}
}

// handleChatShared completes channel re-selection started from the
// reselection keyboard.
func (c *Channel) handleChatShared(ctx context.Context, message *telego.Message) {
	shared := message.ChatShared
	if message.From == nil || shared.RequestID != moderation.RequestIDSelectChannel {
		return
	}
	if c.config.IsFixedChannelMode() {
		c.reply(ctx, message.Chat.ID, textFixedChannel)
		return
	}

	sess, err := c.sessions.Get(ctx, message.From.ID)
	if err != nil {
		slog.Warn("telegram: load session", "user_id", message.From.ID, "error", err)
		return
	}
	if !sess.AwaitingChannelSelection {
		slog.Debug("telegram: unexpected chat_shared", "user_id", message.From.ID)
		return
	}

	c.configureChannel(ctx, message.Chat.ID, message.From.ID, strconv.FormatInt(shared.ChatID, 10))
}

// handleUsersShared completes a pending /notify_add or /notify_remove.
func (c *Channel) handleUsersShared(ctx context.Context, message *telego.Message) {
	if message.From == nil {
		return
	}
	userID := message.From.ID

	sess, err := c.sessions.Get(ctx, userID)
	if err != nil {
		slog.Warn("telegram: load session", "user_id", userID, "error", err)
		return
	}
	op := sess.AwaitingNotificationUserSelection
	if op == "" {
		return
	}

	sess.AwaitingNotificationUserSelection = ""
	if err := c.sessions.Save(ctx, userID, sess); err != nil {
		slog.Warn("telegram: save session", "user_id", userID, "error", err)
	}

	channel, ok := c.validateNotifyAccess(ctx, message, permManageChat)
	if !ok {
		return
	}

	users := message.UsersShared.Users
	if len(users) == 0 {
		c.reply(ctx, message.Chat.ID, textNoUserSelected)
		return
	}
	c.applyNotifyOperation(ctx, message.Chat.ID, channel, users[0].UserID, op)
}

// reply sends an HTML message.
func (c *Channel) reply(ctx context.Context, chatID int64, text string) {
	c.send(ctx, chatID, text, nil)
}

func removeKeyboard() *telego.ReplyKeyboardRemove {
	return &telego.ReplyKeyboardRemove{RemoveKeyboard: true}
}

func (c *Channel) send(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) {
	params := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	if _, err := c.api.SendMessage(ctx, params); err != nil {
		slog.Warn("telegram: send failed", "chat_id", chatID, "error", err)
	}
}

// saveSession applies fn to the user's session and persists it.
func (c *Channel) saveSession(ctx context.Context, userID int64, fn func(*store.SessionData)) error {
	sess, err := c.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	fn(sess)
	return c.sessions.Save(ctx, userID, sess)
}
