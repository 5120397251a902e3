package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQL implements Backend over a collections table. The same statements
// work for the sqlite driver (modernc.org/sqlite) and the pgx stdlib
// driver: one row per namespaced key holding the serialized collection.
type SQL struct {
	db *sql.DB
}

// NewSQL wraps an opened database handle.
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// EnsureSchema creates the collections table if it does not exist.
// Migration bookkeeping on top of this lives in internal/migrate.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		create table if not exists collections (
			key text primary key,
			payload blob not null,
			updated_at timestamp not null
		)`)
	if err != nil {
		return fmt.Errorf("create collections table: %w", err)
	}
	return nil
}

func (s *SQL) Load(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`select payload from collections where key = $1`, key)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoKey
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return payload, nil
}

func (s *SQL) Store(ctx context.Context, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		insert into collections(key, payload, updated_at) values($1, $2, $3)
		on conflict(key) do update set payload = excluded.payload, updated_at = excluded.updated_at`,
		key, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}
