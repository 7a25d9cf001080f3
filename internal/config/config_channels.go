package config

import (
	"strconv"
	"strings"
)

type TelegramConfig struct {
	Token          string  `json:"token"`
	Proxy          string  `json:"proxy,omitempty"`
	FixedChannelID string  `json:"fixed_channel_id,omitempty"` // every user posts to this channel; disables /setchannel
	OwnerID        int64   `json:"owner_id,omitempty"`         // bot owner, allowed to run /dump_db
	PollTimeout    int     `json:"poll_timeout,omitempty"`     // long polling timeout in seconds (default 30)
	NotifyRate     float64 `json:"notify_rate,omitempty"`      // rejection notifications per second (default 25)
	NotifyBurst    int     `json:"notify_burst,omitempty"`     // limiter burst (default 5)
	RelayPerMinute int     `json:"relay_per_minute,omitempty"` // private messages accepted per user per minute (default 60, <0 disables)
}

// IsFixedChannelMode reports whether all users share one configured channel.
func (t TelegramConfig) IsFixedChannelMode() bool {
	return strings.TrimSpace(t.FixedChannelID) != ""
}

// FixedChannel returns the trimmed fixed channel id or "" when unset.
func (t TelegramConfig) FixedChannel() string {
	return strings.TrimSpace(t.FixedChannelID)
}

// IsOwner reports whether userID is the configured bot owner.
func (t TelegramConfig) IsOwner(userID int64) bool {
	return t.OwnerID != 0 && t.OwnerID == userID
}

// parseOwnerID accepts a decimal user id; invalid input yields 0 (no owner).
func parseOwnerID(v string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
