package upgrade

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/nextlevelbuilder/fabot/internal/store"
)

func init() {
	RegisterDataHook(1, "001_normalize_channel_settings", normalizeChannelSettings)
}

// normalizeChannelSettings rewrites settings documents imported from older
// deployments: duplicate or non-positive moderator ids are dropped and the
// blurb is trimmed.
func normalizeChannelSettings(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT channel_id, settings FROM channel_settings")
	if err != nil {
		return fmt.Errorf("query channel_settings: %w", err)
	}

	type update struct {
		channelID string
		doc       []byte
	}
	var updates []update
	for rows.Next() {
		var (
			channelID string
			raw       []byte
		)
		if err := rows.Scan(&channelID, &raw); err != nil {
			rows.Close()
			return err
		}
		doc, changed, err := normalizeSettingsDoc(raw)
		if err != nil {
			rows.Close()
			return fmt.Errorf("channel %s: %w", channelID, err)
		}
		if changed {
			updates = append(updates, update{channelID: channelID, doc: doc})
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			"UPDATE channel_settings SET settings = $1, updated_at = NOW() WHERE channel_id = $2",
			u.doc, u.channelID,
		); err != nil {
			return fmt.Errorf("update channel %s: %w", u.channelID, err)
		}
	}
	return nil
}

func normalizeSettingsDoc(raw []byte) ([]byte, bool, error) {
	d, err := store.DecodeSettings(raw)
	if err != nil {
		return nil, false, err
	}

	blurb := strings.TrimSpace(d.ForeignAgentBlurb)
	var ids []int64
	for _, id := range d.NotificationUserIDs {
		if id > 0 {
			ids = store.WithNotificationUser(ids, id)
		}
	}
	if blurb == d.ForeignAgentBlurb && slices.Equal(ids, d.NotificationUserIDs) {
		return nil, false, nil
	}

	d.ForeignAgentBlurb = blurb
	d.NotificationUserIDs = ids
	out, err := store.EncodeSettings(d)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
