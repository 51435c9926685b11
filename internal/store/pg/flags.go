package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FlagStore implements store.FlagStore backed by Postgres.
type FlagStore struct {
	db *sql.DB
}

func NewFlagStore(db *sql.DB) *FlagStore {
	return &FlagStore{db: db}
}

func (s *FlagStore) GetFlag(ctx context.Context, conversationID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM conversation_flags WHERE conversation_id = $1 AND key = $2`,
		conversationID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get flag: %w", err)
	}
	return value, true, nil
}

func (s *FlagStore) SetFlag(ctx context.Context, conversationID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_flags (conversation_id, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (conversation_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		conversationID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set flag: %w", err)
	}
	return nil
}

func (s *FlagStore) ClearFlag(ctx context.Context, conversationID, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_flags WHERE conversation_id = $1 AND key = $2`,
		conversationID, key,
	)
	if err != nil {
		return fmt.Errorf("clear flag: %w", err)
	}
	return nil
}
