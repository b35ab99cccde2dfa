package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/subreconcile/internal/blobstore"
)

// Store is a [blobstore.Store] guarded by a [CircuitBreaker]. Missing keys
// and cancelled contexts do not count as backend failures.
type Store struct {
	next    blobstore.Store
	breaker *CircuitBreaker
}

var _ blobstore.Store = (*Store)(nil)

// NewStore wraps next. cfg.IsFailure is replaced with the storage failure
// classification.
func NewStore(next blobstore.Store, cfg BreakerConfig) *Store {
	cfg.IsFailure = isBackendFailure
	return &Store{next: next, breaker: NewCircuitBreaker(cfg)}
}

// Breaker returns the breaker guarding the backend.
func (s *Store) Breaker() *CircuitBreaker {
	return s.breaker
}

// Unwrap returns the guarded backend.
func (s *Store) Unwrap() blobstore.Store {
	return s.next
}

// Load implements [blobstore.Store.Load].
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		var err error
		data, err = s.next.Load(ctx, key)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	return data, err
}

// Save implements [blobstore.Store.Save].
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	err := s.breaker.Execute(func() error {
		return s.next.Save(ctx, key, data)
	})
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("save %q: %w", key, err)
	}
	return err
}

func isBackendFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, blobstore.ErrNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
