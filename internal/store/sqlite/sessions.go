package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/fabot/internal/store"
)

// SessionStore implements store.SessionStore on the sessions table.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Get(ctx context.Context, userID int64) (*store.SessionData, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM sessions WHERE user_id = ?", strconv.FormatInt(userID, 10),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &store.SessionData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get session %d: %w", userID, err)
	}

	var data store.SessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("sqlite: decode session %d: %w", userID, err)
	}
	return &data, nil
}

func (s *SessionStore) Save(ctx context.Context, userID int64, data *store.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sqlite: encode session %d: %w", userID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		strconv.FormatInt(userID, 10), string(raw), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save session %d: %w", userID, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("sqlite: delete session %d: %w", userID, err)
	}
	return nil
}
