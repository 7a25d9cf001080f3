package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/fabot/internal/compliance"
	"github.com/nextlevelbuilder/fabot/internal/mediagroup"
	"github.com/nextlevelbuilder/fabot/internal/metrics"
	"github.com/nextlevelbuilder/fabot/internal/store"
	"github.com/nextlevelbuilder/fabot/internal/telemetry"
)

// ChannelResolver returns the channel a user relays into, or nil when none is
// configured.
type ChannelResolver interface {
	Resolve(ctx context.Context, userID int64) (*store.ChannelConfig, error)
}

// SessionResolver reads the channel from the user's session.
type SessionResolver struct {
	Sessions store.SessionStore
}

func (r SessionResolver) Resolve(ctx context.Context, userID int64) (*store.ChannelConfig, error) {
	sess, err := r.Sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.ChannelConfig == nil || sess.ChannelConfig.ChannelID == "" {
		return nil, nil
	}
	return sess.ChannelConfig, nil
}

// FixedResolver pins every user to one channel.
type FixedResolver struct {
	Channel store.ChannelConfig
}

func (r FixedResolver) Resolve(context.Context, int64) (*store.ChannelConfig, error) {
	c := r.Channel
	return &c, nil
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Platform Platform
	Sessions store.SessionStore
	Settings store.ChannelSettingsStore
	Resolver ChannelResolver
	Groups   *mediagroup.Coordinator
	Notifier *Notifier
	Checker  *Checker
	Reporter telemetry.Reporter
	Metrics  *metrics.Metrics
	BotID    int64
}

// Dispatcher is the per-update entry point for relayed private messages and
// direct channel posts.
type Dispatcher struct {
	platform Platform
	sessions store.SessionStore
	settings store.ChannelSettingsStore
	resolver ChannelResolver
	groups   *mediagroup.Coordinator
	notifier *Notifier
	checker  *Checker
	reporter telemetry.Reporter
	metrics  *metrics.Metrics
	botID    int64
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		platform: cfg.Platform,
		sessions: cfg.Sessions,
		settings: cfg.Settings,
		resolver: cfg.Resolver,
		groups:   cfg.Groups,
		notifier: cfg.Notifier,
		checker:  cfg.Checker,
		reporter: cfg.Reporter,
		metrics:  cfg.Metrics,
		botID:    cfg.BotID,
	}
	if d.reporter == nil {
		d.reporter = telemetry.Discard{}
	}
	if d.resolver == nil {
		d.resolver = SessionResolver{Sessions: cfg.Sessions}
	}
	return d
}

// relay carries the resolved state of a private-chat relay attempt.
type relay struct {
	chatID  int64
	actor   *compliance.Actor
	channel store.ChannelConfig
	blurb   string
	groupID string
}

func (r relay) channelInfo() string {
	return FormatChannelInfo(r.channel.ChannelID, r.channel.ChannelTitle)
}

// HandlePrivateMessage relays a user's message into their channel when it
// carries the blurb, and rejects it otherwise.
func (d *Dispatcher) HandlePrivateMessage(ctx context.Context, msg *telego.Message) {
	defer d.recoverUpdate(ctx, msg)

	chat := tu.ID(msg.Chat.ID)
	if msg.From == nil {
		d.reply(ctx, chat, textUnidentifiedUser, nil)
		return
	}
	userID := msg.From.ID

	channel, err := d.resolver.Resolve(ctx, userID)
	if err != nil {
		d.reporter.Report(ctx, fmt.Errorf("resolve channel: %w", err), telemetry.KindUpdate, map[string]any{"user_id": userID})
		d.reply(ctx, chat, textSettingsUnavailable, nil)
		return
	}
	if channel == nil {
		d.reply(ctx, chat, textChannelNotConfigured, nil)
		return
	}

	perms, err := CheckUserPermissions(ctx, d.platform, channel.ChannelID, userID)
	if err != nil {
		slog.Debug("moderation: permission lookup failed", "user_id", userID, "channel_id", channel.ChannelID, "error", err)
	}
	if !perms.CanEditMessages {
		d.reply(ctx, chat, textNoPostPermission, nil)
		return
	}

	blurb, err := d.blurb(ctx, channel.ChannelID)
	if err != nil {
		d.reporter.Report(ctx, err, telemetry.KindUpdate, map[string]any{"user_id": userID, "channel_id": channel.ChannelID})
		d.reply(ctx, chat, textSettingsUnavailable, nil)
		return
	}
	r := relay{
		chatID:  msg.Chat.ID,
		actor:   compliance.ExtractActor(msg),
		channel: *channel,
		blurb:   blurb,
		groupID: msg.MediaGroupID,
	}
	if blurb == "" {
		reqs := d.checker.Compute(ctx, channel.ChannelID)
		d.reply(ctx, chat, blurbMissingText(r.channelInfo(), reqs), nil)
		return
	}

	if r.groupID == "" {
		d.finishRelay(ctx, r, []*telego.Message{msg}, compliance.MessageSatisfiesBlurb(msg, blurb))
		return
	}
	if d.groups.IsValidated(r.groupID) {
		return
	}
	d.groups.Submit(r.groupID, msg, compliance.GroupValidator(blurb), d.guard(ctx, r.groupID, func(msgs []*telego.Message, approved bool) {
		d.finishRelay(ctx, r, msgs, approved)
	}))
}

func (d *Dispatcher) finishRelay(ctx context.Context, r relay, msgs []*telego.Message, approved bool) {
	d.metrics.Decision(metrics.SourcePrivate, approved)
	ids := sortedIDs(msgs)
	chat := tu.ID(r.chatID)

	if !approved {
		var exclude []int64
		if r.actor.HasID() {
			exclude = []int64{r.actor.ID}
		}
		d.notifier.Dispatch(ctx, RejectionParams{
			ChannelID:    r.channel.ChannelID,
			ChannelTitle: r.channel.ChannelTitle,
			SourceChatID: r.chatID,
			MessageIDs:   ids,
			Actor:        r.actor,
			Exclude:      exclude,
		})
		if err := copyTo(ctx, d.platform, chat, chat, ids); err != nil {
			slog.Warn("moderation: echo rejected content", "chat_id", r.chatID, "error", err)
		}
		d.reply(ctx, chat, rejectedReplyText(r.blurb), nil)
		return
	}

	err := copyTo(ctx, d.platform, ChatID(r.channel.ChannelID), chat, ids)
	d.metrics.Copy(err)
	if err == nil {
		d.reply(ctx, chat, publishedText(r.channelInfo()), nil)
		return
	}

	attrs := map[string]any{
		"channel_id":    r.channel.ChannelID,
		"channel_title": r.channel.ChannelTitle,
		"error_type":    fmt.Sprintf("%T", err),
	}
	if r.actor.HasID() {
		attrs["user_id"] = r.actor.ID
	}
	if r.groupID != "" {
		attrs["media_group_id"] = r.groupID
	}
	d.reporter.Report(ctx, err, telemetry.KindChannelPost, attrs)

	reqs := d.checker.Compute(ctx, r.channel.ChannelID)
	if !reqs.ChannelExists {
		if r.actor.HasID() {
			d.awaitChannelSelection(ctx, r.actor.ID)
		}
		d.reply(ctx, chat, publishFailedText(r.channelInfo(), reqs), ChannelSelectionKeyboard())
		return
	}
	d.reply(ctx, chat, publishFailedText(r.channelInfo(), reqs), nil)
}

func (d *Dispatcher) awaitChannelSelection(ctx context.Context, userID int64) {
	sess, err := d.sessions.Get(ctx, userID)
	if err != nil {
		slog.Warn("moderation: load session", "user_id", userID, "error", err)
		return
	}
	sess.AwaitingChannelSelection = true
	if err := d.sessions.Save(ctx, userID, sess); err != nil {
		slog.Warn("moderation: save session", "user_id", userID, "error", err)
	}
}

// HandleChannelPost polices a post made directly in a channel. Compliant posts
// and posts in unconfigured channels are left alone.
func (d *Dispatcher) HandleChannelPost(ctx context.Context, msg *telego.Message) {
	defer d.recoverUpdate(ctx, msg)

	if msg.From != nil && msg.From.ID == d.botID {
		return
	}
	channelID := strconv.FormatInt(msg.Chat.ID, 10)

	blurb, err := d.blurb(ctx, channelID)
	if err != nil {
		slog.Warn("moderation: load blurb", "channel_id", channelID, "error", err)
		return
	}
	if blurb == "" {
		return
	}

	if msg.MediaGroupID == "" {
		d.finishChannelPost(ctx, msg.Chat, "", []*telego.Message{msg}, compliance.MessageSatisfiesBlurb(msg, blurb))
		return
	}
	if d.groups.IsValidated(msg.MediaGroupID) {
		return
	}
	groupID := msg.MediaGroupID
	d.groups.Submit(groupID, msg, compliance.GroupValidator(blurb), d.guard(ctx, groupID, func(msgs []*telego.Message, approved bool) {
		d.finishChannelPost(ctx, msg.Chat, groupID, msgs, approved)
	}))
}

func (d *Dispatcher) finishChannelPost(ctx context.Context, chat telego.Chat, groupID string, msgs []*telego.Message, approved bool) {
	d.metrics.Decision(metrics.SourceChannelPost, approved)
	if approved {
		return
	}

	var actor *compliance.Actor
	for _, m := range msgs {
		if actor = compliance.ExtractActor(m); actor != nil {
			break
		}
	}

	channelID := strconv.FormatInt(chat.ID, 10)
	ids := sortedIDs(msgs)

	result := d.notifier.Dispatch(ctx, RejectionParams{
		ChannelID:     channelID,
		ChannelTitle:  chat.Title,
		SourceChatID:  chat.ID,
		MessageIDs:    ids,
		Actor:         actor,
		IncludeAuthor: true,
	})

	err := deleteIn(ctx, d.platform, tu.ID(chat.ID), ids)
	d.metrics.Deletion(err)
	if err == nil {
		return
	}

	attrs := map[string]any{
		"channel_id":            channelID,
		"message_count":         len(ids),
		"notification_targets":  result.Total,
		"notification_failures": result.Failed,
		"notification_event_id": result.EventID,
		"error_type":            fmt.Sprintf("%T", err),
	}
	if groupID != "" {
		attrs["media_group_id"] = groupID
	} else {
		attrs["message_id"] = ids[0]
	}
	d.reporter.Report(ctx, err, telemetry.KindChannelModeration, attrs)
}

// blurb returns the configured blurb for channelID, or "" when none is set.
func (d *Dispatcher) blurb(ctx context.Context, channelID string) (string, error) {
	settings, err := d.settings.GetSettings(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load settings for %s: %w", channelID, err)
	}
	return settings.ForeignAgentBlurb, nil
}

func (d *Dispatcher) reply(ctx context.Context, chat telego.ChatID, text string, markup telego.ReplyMarkup) {
	if err := sendHTML(ctx, d.platform, chat, text, markup); err != nil {
		slog.Warn("moderation: reply failed", "chat_id", chat, "error", err)
	}
}

// guard runs a completion callback behind a panic boundary so a failing side
// effect cannot take down the coordinator's timer goroutine.
func (d *Dispatcher) guard(ctx context.Context, groupID string, fn mediagroup.CompleteFunc) mediagroup.CompleteFunc {
	return func(msgs []*telego.Message, approved bool) {
		defer func() {
			if rec := recover(); rec != nil {
				d.reporter.Report(ctx, fmt.Errorf("media group completion panicked: %v", rec), telemetry.KindUpdate, map[string]any{
					"media_group_id": groupID,
					"stack":          string(debug.Stack()),
				})
			}
		}()
		fn(msgs, approved)
	}
}

func (d *Dispatcher) recoverUpdate(ctx context.Context, msg *telego.Message) {
	if rec := recover(); rec != nil {
		d.reporter.Report(ctx, fmt.Errorf("update handler panicked: %v", rec), telemetry.KindUpdate, map[string]any{
			"chat_id":    msg.Chat.ID,
			"message_id": msg.MessageID,
			"stack":      string(debug.Stack()),
		})
	}
}

// ChannelSelectionKeyboard offers picking another channel or dropping the
// current one.
func ChannelSelectionKeyboard() *telego.ReplyKeyboardMarkup {
	return &telego.ReplyKeyboardMarkup{
		Keyboard: [][]telego.KeyboardButton{
			{{
				Text: ButtonSelectChannel,
				RequestChat: &telego.KeyboardButtonRequestChat{
					RequestID:     RequestIDSelectChannel,
					ChatIsChannel: true,
					BotIsMember:   telego.ToPtr(true),
				},
			}},
			{{Text: ButtonRemoveChannel}},
		},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// Keyboard request ids, echoed back in chat_shared and users_shared updates.
const (
	RequestIDSelectChannel = 1
	RequestIDAddNotify     = 1
	RequestIDRemoveNotify  = 2
)

func sortedIDs(msgs []*telego.Message) []int {
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.MessageID)
	}
	slices.Sort(ids)
	return ids
}
