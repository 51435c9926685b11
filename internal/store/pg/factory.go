// Package pg provides the managed-mode storage backend on Postgres.
// Schema is owned by the migrations/ directory (concierge migrate up).
package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hostalia/concierge/internal/store"
)

// Open connects to Postgres with the pgx stdlib driver and returns the
// store container.
func Open(dsn string) (*sql.DB, *store.Stores, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, &store.Stores{
		KB:      NewKBStore(db),
		Flags:   NewFlagStore(db),
		History: NewHistoryStore(db),
	}, nil
}
