package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/fabot/internal/store"
)

// PGSettingsStore implements store.ChannelSettingsStore backed by Postgres.
type PGSettingsStore struct {
	db *sql.DB
}

func NewPGSettingsStore(db *sql.DB) *PGSettingsStore {
	return &PGSettingsStore{db: db}
}

func (s *PGSettingsStore) GetSettings(ctx context.Context, channelID string) (*store.ChannelSettings, error) {
	var (
		raw      []byte
		settings = store.ChannelSettings{ChannelID: channelID}
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT settings, created_at, updated_at FROM channel_settings WHERE channel_id = $1", channelID,
	).Scan(&raw, &settings.CreatedAt, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings %s: %w", channelID, err)
	}

	data, err := store.DecodeSettings(raw)
	if err != nil {
		return nil, err
	}
	settings.ChannelSettingsData = data
	return &settings, nil
}

func (s *PGSettingsStore) UpdateBlurb(ctx context.Context, channelID, blurb string) error {
	return s.mutate(ctx, channelID, func(d *store.ChannelSettingsData) {
		d.ForeignAgentBlurb = blurb
	})
}

func (s *PGSettingsStore) DeleteSettings(ctx context.Context, channelID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM channel_settings WHERE channel_id = $1", channelID); err != nil {
		return fmt.Errorf("delete settings %s: %w", channelID, err)
	}
	return nil
}

func (s *PGSettingsStore) ListNotificationUsers(ctx context.Context, channelID string) ([]int64, error) {
	settings, err := s.GetSettings(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings.NotificationUserIDs, nil
}

func (s *PGSettingsStore) AddNotificationUser(ctx context.Context, channelID string, userID int64) error {
	return s.mutate(ctx, channelID, func(d *store.ChannelSettingsData) {
		d.NotificationUserIDs = store.WithNotificationUser(d.NotificationUserIDs, userID)
	})
}

func (s *PGSettingsStore) RemoveNotificationUser(ctx context.Context, channelID string, userID int64) error {
	return s.mutate(ctx, channelID, func(d *store.ChannelSettingsData) {
		d.NotificationUserIDs = store.WithoutNotificationUser(d.NotificationUserIDs, userID)
	})
}

// mutate ensures the row exists, locks it and rewrites the settings document.
func (s *PGSettingsStore) mutate(ctx context.Context, channelID string, fn func(*store.ChannelSettingsData)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO channel_settings (channel_id, settings, created_at, updated_at)
		 VALUES ($1, '{}'::jsonb, NOW(), NOW()) ON CONFLICT (channel_id) DO NOTHING`,
		channelID,
	); err != nil {
		return fmt.Errorf("ensure settings %s: %w", channelID, err)
	}

	var raw []byte
	if err := tx.QueryRowContext(ctx,
		"SELECT settings FROM channel_settings WHERE channel_id = $1 FOR UPDATE", channelID,
	).Scan(&raw); err != nil {
		return fmt.Errorf("lock settings %s: %w", channelID, err)
	}

	data, err := store.DecodeSettings(raw)
	if err != nil {
		return err
	}
	fn(&data)

	encoded, err := store.EncodeSettings(data)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE channel_settings SET settings = $1, updated_at = NOW() WHERE channel_id = $2",
		encoded, channelID,
	); err != nil {
		return fmt.Errorf("update settings %s: %w", channelID, err)
	}

	return tx.Commit()
}
