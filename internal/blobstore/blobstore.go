// Package blobstore defines the persistence contract used by the smart
// dictionary: a key/value store that reads and overwrites one opaque blob per
// key.
//
// Implementations in this package are [MemStore] (in-process, used in tests
// and for the "memory" backend) and [FileStore] (one JSON file per key).
// Database-backed implementations live in the sqlite and postgres
// subpackages.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Store.Load] when nothing has been saved under
// the requested key.
var ErrNotFound = errors.New("blobstore: key not found")

// Store reads and writes whole blobs by key. Save always replaces the
// previous blob entirely.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Load returns the blob last saved under key.
	// Returns [ErrNotFound] when no blob exists.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save overwrites the blob stored under key with data.
	Save(ctx context.Context, key string, data []byte) error
}
