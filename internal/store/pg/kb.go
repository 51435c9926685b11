package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostalia/concierge/internal/store"
)

// KBStore implements store.KBStore backed by Postgres.
type KBStore struct {
	db *sql.DB
}

func NewKBStore(db *sql.DB) *KBStore {
	return &KBStore{db: db}
}

func (s *KBStore) Add(ctx context.Context, entry store.KBEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.Must(uuid.NewV7()).String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_entries (id, topic, content, hotel_name, category, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Topic, entry.Content, entry.HotelName, entry.Category, entry.Source, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert kb entry: %w", err)
	}
	return nil
}

func (s *KBStore) Search(ctx context.Context, query string, limit int) ([]store.KBEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, content, hotel_name, category, source, created_at
		 FROM kb_entries
		 WHERE lower(topic) LIKE $1 OR lower(content) LIKE $1 OR lower(category) LIKE $1
		 ORDER BY created_at DESC LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search kb entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *KBStore) List(ctx context.Context, limit int) ([]store.KBEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, content, hotel_name, category, source, created_at
		 FROM kb_entries ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list kb entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *KBStore) Remove(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kb_entries WHERE id = ANY($1)`, idArray(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("delete kb entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// idArray renders ids as a Postgres text array literal, parameterized to
// keep values out of the SQL string.
func idArray(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = strings.ReplaceAll(id, `"`, `\"`)
	}
	return "{" + `"` + strings.Join(escaped, `","`) + `"` + "}"
}

func scanEntries(rows *sql.Rows) ([]store.KBEntry, error) {
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
