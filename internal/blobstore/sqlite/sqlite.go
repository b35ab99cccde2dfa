// Package sqlite provides a [blobstore.Store] backed by a SQLite database
// using the pure Go modernc.org/sqlite driver, so no CGO toolchain is needed.
//
// Blobs live in a single table keyed by name:
//
//	CREATE TABLE blobs (key TEXT PRIMARY KEY, data BLOB NOT NULL, updated_at INTEGER NOT NULL)
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/subreconcile/internal/blobstore"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

const ddlBlobs = `
CREATE TABLE IF NOT EXISTS blobs (
    key        TEXT    PRIMARY KEY,
    data       BLOB    NOT NULL,
    updated_at INTEGER NOT NULL
)`

const upsertBlob = `
INSERT INTO blobs (key, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

// Compile-time interface check.
var _ blobstore.Store = (*Store)(nil)

// Store is a SQLite-backed [blobstore.Store]. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, creating its parent
// directory when needed, and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY between
	// our own goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, ddlBlobs); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: init schema: %w", err)
	}

	slog.Debug("sqlite blob store ready", "path", path)
	return &Store{db: db}, nil
}

// Load implements [blobstore.Store.Load].
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: load %q: %w", key, err)
	}
	return data, nil
}

// Save implements [blobstore.Store.Save].
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, upsertBlob, key, data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("sqlite store: save %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
