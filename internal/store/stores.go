// Package store defines the persistence interfaces consumed by the memory
// manager and knowledge base, with Postgres (managed mode) and SQLite
// (standalone mode) backends.
package store

import (
	"context"
	"time"
)

// KBEntry is one knowledge-base document.
type KBEntry struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	HotelName string    `json:"hotel_name,omitempty"`
	Category  string    `json:"category,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KBStore manages knowledge-base entries.
type KBStore interface {
	Add(ctx context.Context, entry KBEntry) error
	Search(ctx context.Context, query string, limit int) ([]KBEntry, error)
	List(ctx context.Context, limit int) ([]KBEntry, error)
	Remove(ctx context.Context, ids []string) (int, error)
}

// FlagStore persists arbitrary per-conversation key/value flags
// (guest language, property id, draft markers) across restarts.
type FlagStore interface {
	GetFlag(ctx context.Context, conversationID, key string) (string, bool, error)
	SetFlag(ctx context.Context, conversationID, key, value string) error
	ClearFlag(ctx context.Context, conversationID, key string) error
}

// HistoryEntry is one persisted chat-history line.
type HistoryEntry struct {
	Role      string    `json:"role"` // "guest", "assistant", "manager"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists conversation history.
type HistoryStore interface {
	Append(ctx context.Context, conversationID, role, content string) error
	Recent(ctx context.Context, conversationID string, limit int) ([]HistoryEntry, error)
}

// Stores is the container for all storage backends.
type Stores struct {
	KB      KBStore
	Flags   FlagStore
	History HistoryStore
}
