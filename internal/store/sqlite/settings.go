package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/fabot/internal/store"
)

// SettingsStore implements store.ChannelSettingsStore on the channel_settings table.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) GetSettings(ctx context.Context, channelID string) (*store.ChannelSettings, error) {
	var (
		raw                  string
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT settings, created_at, updated_at FROM channel_settings WHERE channel_id = ?", channelID,
	).Scan(&raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get settings %s: %w", channelID, err)
	}

	data, err := store.DecodeSettings([]byte(raw))
	if err != nil {
		return nil, err
	}
	return &store.ChannelSettings{
		ChannelID:           channelID,
		ChannelSettingsData: data,
		CreatedAt:           time.UnixMilli(createdAt),
		UpdatedAt:           time.UnixMilli(updatedAt),
	}, nil
}

func (s *SettingsStore) UpdateBlurb(ctx context.Context, channelID, blurb string) error {
	return s.mutate(ctx, channelID, func(d *store.ChannelSettingsData) {
		d.ForeignAgentBlurb = blurb
	})
}

func (s *SettingsStore) DeleteSettings(ctx context.Context, channelID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM channel_settings WHERE channel_id = ?", channelID); err != nil {
		return fmt.Errorf("sqlite: delete settings %s: %w", channelID, err)
	}
	return nil
}

func (s *SettingsStore) ListNotificationUsers(ctx context.Context, channelID string) ([]int64, error) {
	settings, err := s.GetSettings(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings.NotificationUserIDs, nil
}

func (s *SettingsStore) AddNotificationUser(ctx context.Context, channelID string, userID int64) error {
	return s.mutate(ctx, channelID, func(d *store.ChannelSettingsData) {
		d.NotificationUserIDs = store.WithNotificationUser(d.NotificationUserIDs, userID)
	})
}

func (s *SettingsStore) RemoveNotificationUser(ctx context.Context, channelID string, userID int64) error {
	return s.mutate(ctx, channelID, func(d *store.ChannelSettingsData) {
		d.NotificationUserIDs = store.WithoutNotificationUser(d.NotificationUserIDs, userID)
	})
}

// mutate applies fn to the channel's settings document inside one
// transaction, inserting the row when missing.
func (s *SettingsStore) mutate(ctx context.Context, channelID string, fn func(*store.ChannelSettingsData)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	exists := true
	err = tx.QueryRowContext(ctx, "SELECT settings FROM channel_settings WHERE channel_id = ?", channelID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("sqlite: read settings %s: %w", channelID, err)
	}

	data, err := store.DecodeSettings([]byte(raw))
	if err != nil {
		return err
	}
	fn(&data)

	encoded, err := store.EncodeSettings(data)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE channel_settings SET settings = ?, updated_at = ? WHERE channel_id = ?",
			string(encoded), now, channelID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO channel_settings (channel_id, settings, created_at, updated_at) VALUES (?, ?, ?, ?)",
			channelID, string(encoded), now, now,
		)
	}
	if err != nil {
		return fmt.Errorf("sqlite: write settings %s: %w", channelID, err)
	}

	return tx.Commit()
}
