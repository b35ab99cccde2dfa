package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Compile-time assertion that FileStore satisfies the Store interface.
var _ Store = (*FileStore)(nil)

// FileStore persists each blob as <dir>/<key>.json. Writes go to a temporary
// file in the same directory which is then renamed over the target, so a
// crash never leaves a half-written blob behind.
// Thread-safe for concurrent use.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// on the first Save if it does not exist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file path used for key.
func (fs *FileStore) Path(key string) string {
	return filepath.Join(fs.dir, key+".json")
}

// Load implements [Store.Load].
func (fs *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %q: %w", key, err)
	}
	return data, nil
}

// Save implements [Store.Save].
func (fs *FileStore) Save(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("blobstore: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(fs.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("blobstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("blobstore: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("blobstore: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, fs.Path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("blobstore: rename %q: %w", key, err)
	}
	return nil
}

// validKey rejects keys that would escape the store directory.
func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("blobstore: invalid key %q", key)
	}
	return nil
}
