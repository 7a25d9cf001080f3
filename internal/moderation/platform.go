// Package moderation enforces the foreign-agent disclosure rule on messages
// relayed through the bot and on posts made directly in a channel.
//
// The Dispatcher classifies each update, checks configuration and
// permissions, evaluates compliance (through the media-group coordinator for
// albums) and performs the accept or reject side effects. The Notifier fans a
// rejection out to moderators. The Checker derives the channel requirements
// snapshot used by diagnostics.
package moderation

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Platform is the subset of the Telegram Bot API used by the moderation core.
// *telego.Bot satisfies it.
type Platform interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error)
	CopyMessages(ctx context.Context, params *telego.CopyMessagesParams) ([]telego.MessageID, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	DeleteMessages(ctx context.Context, params *telego.DeleteMessagesParams) error
	GetChat(ctx context.Context, params *telego.GetChatParams) (*telego.ChatFullInfo, error)
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

var _ Platform = (*telego.Bot)(nil)

// ChatID converts a stored channel identifier (numeric id or @username)
// into a telego chat id.
func ChatID(channelID string) telego.ChatID {
	channelID = strings.TrimSpace(channelID)
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		return tu.ID(id)
	}
	if !strings.HasPrefix(channelID, "@") {
		channelID = "@" + channelID
	}
	return tu.Username(channelID)
}

// copyTo copies ids from one chat to another, using the batch call for albums
// so Telegram keeps them grouped.
func copyTo(ctx context.Context, p Platform, to telego.ChatID, from telego.ChatID, ids []int) error {
	if len(ids) == 1 {
		_, err := p.CopyMessage(ctx, &telego.CopyMessageParams{
			ChatID:     to,
			FromChatID: from,
			MessageID:  ids[0],
		})
		return err
	}
	_, err := p.CopyMessages(ctx, &telego.CopyMessagesParams{
		ChatID:     to,
		FromChatID: from,
		MessageIDs: ids,
	})
	return err
}

// deleteIn deletes ids from chat, batching for albums.
func deleteIn(ctx context.Context, p Platform, chat telego.ChatID, ids []int) error {
	if len(ids) == 1 {
		return p.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: chat, MessageID: ids[0]})
	}
	return p.DeleteMessages(ctx, &telego.DeleteMessagesParams{ChatID: chat, MessageIDs: ids})
}

// sendHTML sends an HTML-formatted message to chat.
func sendHTML(ctx context.Context, p Platform, chat telego.ChatID, text string, markup telego.ReplyMarkup) error {
	params := tu.Message(chat, text).WithParseMode(telego.ModeHTML)
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	_, err := p.SendMessage(ctx, params)
	return err
}
