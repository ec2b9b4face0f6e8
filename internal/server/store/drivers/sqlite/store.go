package sqlite

import (
	"context"
	"database/sql"

	"github.com/soundlab/soundlab/internal/server/store"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Single writer keeps WAL happy under concurrent request handlers.
	db.SetMaxOpenConns(1)

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Events returns the security event repository.
func (s *Store) Events() store.EventRepository {
	return &eventRepo{db: s.db}
}
