package blobstore

import (
	"context"
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// The zero value is ready to use.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	saves int
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Load implements [Store.Load]. The returned slice is a copy.
func (s *MemStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// Save implements [Store.Save]. data is copied.
func (s *MemStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blobs == nil {
		s.blobs = make(map[string][]byte)
	}
	s.blobs[key] = append([]byte(nil), data...)
	s.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (s *MemStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
