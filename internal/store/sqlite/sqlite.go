// Package sqlite provides the standalone-mode storage backend: a local
// SQLite file needing no external services.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hostalia/concierge/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS kb_entries (
	id         TEXT PRIMARY KEY,
	topic      TEXT NOT NULL,
	content    TEXT NOT NULL,
	hotel_name TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS conversation_flags (
	conversation_id TEXT NOT NULL,
	key             TEXT NOT NULL,
	value           TEXT NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (conversation_id, key)
);
CREATE TABLE IF NOT EXISTS chat_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_history_conversation
	ON chat_history (conversation_id, id);
`

// Store implements store.KBStore, store.FlagStore and store.HistoryStore on
// a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY under concurrent webhook handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Stores returns the store container backed by this database.
func (s *Store) Stores() *store.Stores {
	return &store.Stores{KB: s, Flags: s, History: s}
}

// --- store.KBStore ---

func (s *Store) Add(ctx context.Context, entry store.KBEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_entries (id, topic, content, hotel_name, category, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Topic, entry.Content, entry.HotelName, entry.Category, entry.Source, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert kb entry: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query string, limit int) ([]store.KBEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, content, hotel_name, category, source, created_at
		 FROM kb_entries
		 WHERE lower(topic) LIKE ? OR lower(content) LIKE ? OR lower(category) LIKE ?
		 ORDER BY created_at DESC LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search kb entries: %w", err)
	}
	defer rows.Close()
	return scanKBEntries(rows)
}

func (s *Store) List(ctx context.Context, limit int) ([]store.KBEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, content, hotel_name, category, source, created_at
		 FROM kb_entries ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list kb entries: %w", err)
	}
	defer rows.Close()
	return scanKBEntries(rows)
}

func (s *Store) Remove(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kb_entries WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete kb entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanKBEntries(rows *sql.Rows) ([]store.KBEntry, error) {
	var out []store.KBEntry
	for rows.Next() {
		var e store.KBEntry
		if err := rows.Scan(&e.ID, &e.Topic, &e.Content, &e.HotelName, &e.Category, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan kb entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- store.FlagStore ---

func (s *Store) GetFlag(ctx context.Context, conversationID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM conversation_flags WHERE conversation_id = ? AND key = ?`,
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

func (s *Store) SetFlag(ctx context.Context, conversationID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_flags (conversation_id, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (conversation_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		conversationID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set flag: %w", err)
	}
	return nil
}

func (s *Store) ClearFlag(ctx context.Context, conversationID, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_flags WHERE conversation_id = ? AND key = ?`,
		conversationID, key,
	)
	if err != nil {
		return fmt.Errorf("clear flag: %w", err)
	}
	return nil
}

// --- store.HistoryStore ---

func (s *Store) Append(ctx context.Context, conversationID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]store.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM chat_history
			WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
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
