package moderation

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/fabot/internal/compliance"
	"github.com/nextlevelbuilder/fabot/internal/metrics"
	"github.com/nextlevelbuilder/fabot/internal/store"
	"github.com/nextlevelbuilder/fabot/internal/telemetry"
)

// Role is why a user receives a rejection notice.
type Role string

const (
	RoleAuthor    Role = "author"
	RoleModerator Role = "moderator"
)

// Target is one notification recipient.
type Target struct {
	UserID int64
	Role   Role
}

// RejectionParams describes a decided rejection.
type RejectionParams struct {
	ChannelID    string
	ChannelTitle string

	// Chat holding the rejected content and its message ids. Ids are copied
	// to each target in ascending order.
	SourceChatID int64
	MessageIDs   []int

	Actor         *compliance.Actor
	IncludeAuthor bool
	Exclude       []int64
	OccurredAt    time.Time
}

// DispatchResult aggregates a fan-out.
type DispatchResult struct {
	EventID    string
	Total      int
	Successful int
	Failed     int
}

// NotifierConfig configures a Notifier.
type NotifierConfig struct {
	Platform Platform
	Settings store.ChannelSettingsStore
	Reporter telemetry.Reporter
	Metrics  *metrics.Metrics

	// Limiter paces outgoing notices. Nil means unlimited.
	Limiter *rate.Limiter

	Location   *time.Location
	TimeLayout string
}

// Notifier fans a rejection out to channel moderators and, optionally, the
// author of the rejected content.
type Notifier struct {
	platform Platform
	settings store.ChannelSettingsStore
	reporter telemetry.Reporter
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	loc      *time.Location
	layout   string
	now      func() time.Time
}

func NewNotifier(cfg NotifierConfig) *Notifier {
	n := &Notifier{
		platform: cfg.Platform,
		settings: cfg.Settings,
		reporter: cfg.Reporter,
		metrics:  cfg.Metrics,
		limiter:  cfg.Limiter,
		loc:      cfg.Location,
		layout:   cfg.TimeLayout,
		now:      time.Now,
	}
	if n.reporter == nil {
		n.reporter = telemetry.Discard{}
	}
	if n.limiter == nil {
		n.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if n.loc == nil {
		n.loc = time.UTC
	}
	if n.layout == "" {
		n.layout = "02.01.2006, 15:04"
	}
	return n
}

// BuildRejectionMessage renders the notice sent ahead of the copied content.
// The id line is omitted for actors known only by signature.
func (n *Notifier) BuildRejectionMessage(p RejectionParams) string {
	at := p.OccurredAt
	if at.IsZero() {
		at = n.now()
	}

	var b strings.Builder
	b.WriteString("🚫 <b>Сообщение отклонено</b>\n\n")
	b.WriteString("📢 <b>Канал:</b> ")
	b.WriteString(FormatChannelInfo(p.ChannelID, p.ChannelTitle))
	b.WriteString("\n")

	if a := p.Actor; a != nil && (a.DisplayName != "" || a.Username != "" || a.HasID()) {
		name := a.DisplayName
		if name == "" {
			name = "Неизвестно"
		}
		b.WriteString("👤 <b>Пользователь:</b> ")
		b.WriteString(html.EscapeString(name))
		if a.Username != "" {
			b.WriteString(" (@")
			b.WriteString(html.EscapeString(a.Username))
			b.WriteString(")")
		}
		if a.HasID() {
			fmt.Fprintf(&b, "\n🆔 <b>ID:</b> <code>%d</code>", a.ID)
		}
		b.WriteString("\n")
	}

	b.WriteString("🕐 <b>Время:</b> ")
	b.WriteString(at.In(n.loc).Format(n.layout))
	b.WriteString("\n\n❌ <b>Причина:</b> ")
	b.WriteString(textRejectionReason)
	b.WriteString("\n\n📝 <b>Отклоненное сообщение:</b>")
	return b.String()
}

// Targets computes the recipient set: the author first when requested and
// identifiable, then moderators. Excluded ids and repeats are dropped, so a
// user appears at most once.
func Targets(p RejectionParams, moderators []int64) []Target {
	seen := make(map[int64]bool, len(moderators)+len(p.Exclude)+1)
	for _, id := range p.Exclude {
		seen[id] = true
	}

	var targets []Target
	if p.IncludeAuthor && p.Actor.HasID() && !seen[p.Actor.ID] {
		seen[p.Actor.ID] = true
		targets = append(targets, Target{UserID: p.Actor.ID, Role: RoleAuthor})
	}
	for _, id := range moderators {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, Target{UserID: id, Role: RoleModerator})
	}
	return targets
}

// Dispatch notifies every target. Per-target failures are reported and
// counted but never stop the fan-out, and Dispatch itself never fails.
func (n *Notifier) Dispatch(ctx context.Context, p RejectionParams) DispatchResult {
	result := DispatchResult{EventID: uuid.NewString()}

	moderators, err := n.settings.ListNotificationUsers(ctx, p.ChannelID)
	if err != nil {
		n.reporter.Report(ctx, fmt.Errorf("list notification users: %w", err), telemetry.KindNotification, map[string]any{
			"channel_id": p.ChannelID,
			"event_id":   result.EventID,
		})
	}

	targets := Targets(p, moderators)
	result.Total = len(targets)
	if len(targets) == 0 {
		return result
	}

	text := n.BuildRejectionMessage(p)
	ids := slices.Clone(p.MessageIDs)
	slices.Sort(ids)

	for _, target := range targets {
		if err := n.notify(ctx, target, text, p.SourceChatID, ids); err != nil {
			result.Failed++
			attrs := map[string]any{
				"channel_id":     p.ChannelID,
				"notify_user_id": target.UserID,
				"scope":          string(target.Role),
				"event_id":       result.EventID,
			}
			if p.Actor.HasID() {
				attrs["actor_user_id"] = p.Actor.ID
			}
			n.reporter.Report(ctx, err, telemetry.KindNotification, attrs)
			continue
		}
		result.Successful++
	}

	n.metrics.Notifications(result.Successful, result.Failed)
	slog.Info("moderation: rejection notified",
		"event_id", result.EventID,
		"channel_id", p.ChannelID,
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed,
	)
	return result
}

func (n *Notifier) notify(ctx context.Context, target Target, text string, sourceChatID int64, ids []int) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}
	if err := sendHTML(ctx, n.platform, tu.ID(target.UserID), text, nil); err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := copyTo(ctx, n.platform, tu.ID(target.UserID), tu.ID(sourceChatID), ids); err != nil {
		return fmt.Errorf("copy rejected content: %w", err)
	}
	return nil
}
