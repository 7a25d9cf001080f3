package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/fabot/internal/store"
)

// PGSessionStore implements store.SessionStore backed by Postgres.
type PGSessionStore struct {
	db *sql.DB
}

func NewPGSessionStore(db *sql.DB) *PGSessionStore {
	return &PGSessionStore{db: db}
}

func (s *PGSessionStore) Get(ctx context.Context, userID int64) (*store.SessionData, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM sessions WHERE user_id = $1", userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &store.SessionData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", userID, err)
	}

	var data store.SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", userID, err)
	}
	return &data, nil
}

func (s *PGSessionStore) Save(ctx context.Context, userID int64, data *store.SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", userID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, data, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		userID, raw,
	)
	if err != nil {
		return fmt.Errorf("save session %d: %w", userID, err)
	}
	return nil
}

func (s *PGSessionStore) Delete(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("delete session %d: %w", userID, err)
	}
	return nil
}
