package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hostalia/concierge/internal/store"
)

// HistoryStore implements store.HistoryStore backed by Postgres.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(ctx context.Context, conversationID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		conversationID, role, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *HistoryStore) Recent(ctx context.Context, conversationID string, limit int) ([]store.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM chat_history
			WHERE conversation_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer rows.Close()

	var out []store.HistoryEntry
	for rows.Next() {
		var e store.HistoryEntry
		if err := rows.Scan(&e.Role, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
