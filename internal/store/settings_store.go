package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// ChannelSettingsData is the JSON document stored per channel.
type ChannelSettingsData struct {
	ForeignAgentBlurb   string  `json:"foreignAgentBlurb,omitempty"`
	NotificationUserIDs []int64 `json:"notificationUserIds,omitempty"`
}

// ChannelSettings is one row of channel settings.
type ChannelSettings struct {
	ChannelID string
	ChannelSettingsData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChannelSettingsStore manages per-channel settings and the moderator list.
type ChannelSettingsStore interface {
	// GetSettings returns ErrNotFound when the channel has no settings row.
	GetSettings(ctx context.Context, channelID string) (*ChannelSettings, error)
	UpdateBlurb(ctx context.Context, channelID, blurb string) error
	DeleteSettings(ctx context.Context, channelID string) error

	ListNotificationUsers(ctx context.Context, channelID string) ([]int64, error)
	AddNotificationUser(ctx context.Context, channelID string, userID int64) error
	RemoveNotificationUser(ctx context.Context, channelID string, userID int64) error
}

// DecodeSettings parses a stored settings document. Empty input yields zero settings.
func DecodeSettings(raw []byte) (ChannelSettingsData, error) {
	var d ChannelSettingsData
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("decode channel settings: %w", err)
	}
	return d, nil
}

// EncodeSettings serializes settings for storage.
func EncodeSettings(d ChannelSettingsData) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode channel settings: %w", err)
	}
	return data, nil
}

// WithNotificationUser returns ids with userID appended unless already present.
func WithNotificationUser(ids []int64, userID int64) []int64 {
	if slices.Contains(ids, userID) {
		return ids
	}
	return append(slices.Clone(ids), userID)
}

// WithoutNotificationUser returns ids with every occurrence of userID removed.
func WithoutNotificationUser(ids []int64, userID int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}
