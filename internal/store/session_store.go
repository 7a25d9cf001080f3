package store

import "context"

// ChannelConfig is the channel a user relays messages to.
type ChannelConfig struct {
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle,omitempty"`
}

// NotifyOperation is a pending moderator list change awaiting a users_shared reply.
type NotifyOperation string

const (
	NotifyAdd    NotifyOperation = "add"
	NotifyRemove NotifyOperation = "remove"
)

// SessionData holds per-user bot state. Persisted as JSON.
type SessionData struct {
	ChannelConfig *ChannelConfig `json:"channelConfig,omitempty"`

	// UI state for keyboard-driven flows.
	AwaitingChannelSelection          bool            `json:"awaitingChannelSelection,omitempty"`
	AwaitingNotificationUserSelection NotifyOperation `json:"awaitingNotificationUserSelection,omitempty"`
}

// SessionStore persists per-user sessions keyed by Telegram user id.
type SessionStore interface {
	// Get returns the session for userID, or an empty session when none exists.
	Get(ctx context.Context, userID int64) (*SessionData, error)
	Save(ctx context.Context, userID int64, data *SessionData) error
	Delete(ctx context.Context, userID int64) error
}
