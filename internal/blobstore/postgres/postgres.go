// Package postgres provides a [blobstore.Store] backed by PostgreSQL through
// a [pgxpool.Pool].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/subreconcile/internal/blobstore"
)

const ddlBlobs = `
CREATE TABLE IF NOT EXISTS blobs (
    key        TEXT         PRIMARY KEY,
    data       BYTEA        NOT NULL,
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const upsertBlob = `
INSERT INTO blobs (key, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

// Compile-time interface check.
var _ blobstore.Store = (*Store)(nil)

// Store is a PostgreSQL-backed [blobstore.Store].
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool to the database at dsn, verifies it with
// a ping and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the blobs table if it does not exist. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlBlobs); err != nil {
		return fmt.Errorf("create blobs table: %w", err)
	}
	return nil
}

// Load implements [blobstore.Store.Load].
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM blobs WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load %q: %w", key, err)
	}
	return data, nil
}

// Save implements [blobstore.Store.Save].
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	if _, err := s.pool.Exec(ctx, upsertBlob, key, data); err != nil {
		return fmt.Errorf("postgres store: save %q: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}
