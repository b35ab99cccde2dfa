// Package app wires the subreconcile subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the configured storage
// backend and loads the smart dictionary, NewReview starts review sessions
// bound to that dictionary, and Shutdown tears everything down in order.
//
// For testing, inject a storage backend via [WithBackend]. When no backend
// is injected, New opens the one named in the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/subreconcile/internal/blobstore"
	"github.com/MrWong99/subreconcile/internal/blobstore/postgres"
	"github.com/MrWong99/subreconcile/internal/blobstore/sqlite"
	"github.com/MrWong99/subreconcile/internal/config"
	"github.com/MrWong99/subreconcile/internal/dictionary"
	"github.com/MrWong99/subreconcile/internal/health"
	"github.com/MrWong99/subreconcile/internal/observe"
	"github.com/MrWong99/subreconcile/internal/phonetic"
	"github.com/MrWong99/subreconcile/internal/resilience"
	"github.com/MrWong99/subreconcile/internal/review"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	log *slog.Logger

	// Subsystems, initialised in New and torn down in Shutdown.
	backend     blobstore.Store
	backendName string
	guard       *resilience.Store
	pinger      func(context.Context) error
	dict        *dictionary.Store
	matcher     *phonetic.Matcher
	metrics     *observe.Metrics

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackend injects a storage backend instead of opening one from config.
// The caller keeps ownership of it.
func WithBackend(b blobstore.Store) Option {
	return func(a *App) { a.backend = b }
}

// WithLogger sets the logger handed to every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithMetrics sets the metrics sink handed to every subsystem.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. It opens the storage backend, loads the
// smart dictionary and builds the similarity matcher used for learning.
// A dictionary that cannot be loaded starts empty; a backend that cannot be
// opened is an error.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Storage backend ───────────────────────────────────────────────
	if err := a.initBackend(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Smart dictionary ──────────────────────────────────────────────
	a.dict = dictionary.New(ctx, a.backend,
		dictionary.WithKey(cfg.Storage.Key),
		dictionary.WithMetrics(a.metrics),
		dictionary.WithLogger(a.log),
	)

	// ── 3. Matcher ───────────────────────────────────────────────────────
	a.matcher = phonetic.New(
		phonetic.WithPhoneticThreshold(cfg.Learn.PhoneticThreshold),
		phonetic.WithFuzzyThreshold(cfg.Learn.FuzzyThreshold),
	)

	a.log.Info("app ready", "backend", a.backendName, "entries", a.dict.Len())
	return a, nil
}

// initBackend opens the configured backend unless one was injected.
// Database backends are guarded by a circuit breaker.
func (a *App) initBackend(ctx context.Context) error {
	if a.backend != nil {
		a.backendName = "injected"
		return nil
	}

	st := a.cfg.Storage
	a.backendName = string(st.Backend)
	switch st.Backend {
	case config.BackendMemory:
		a.backend = blobstore.NewMemStore()

	case config.BackendFile:
		a.backend = blobstore.NewFileStore(st.Dir)

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, st.Path)
		if err != nil {
			return err
		}
		a.guardBackend(store)
		a.closers = append(a.closers, store.Close)

	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, st.PostgresDSN)
		if err != nil {
			return err
		}
		a.guardBackend(store)
		a.pinger = store.Ping
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})

	default:
		return fmt.Errorf("unknown storage backend %q", st.Backend)
	}
	return nil
}

func (a *App) guardBackend(next blobstore.Store) {
	a.guard = resilience.NewStore(next, resilience.BreakerConfig{
		Name:         a.backendName,
		MaxFailures:  a.cfg.Storage.Breaker.MaxFailures,
		ResetTimeout: a.cfg.Storage.Breaker.ResetTimeout,
	})
	a.backend = a.guard
}

// Dictionary returns the smart dictionary.
func (a *App) Dictionary() *dictionary.Store {
	return a.dict
}

// Matcher returns the similarity matcher configured from learn.*.
func (a *App) Matcher() *phonetic.Matcher {
	return a.matcher
}

// NewReview creates a review session over pairs configured from review.*.
// The smart dictionary pre-corrects every pair unless review.pre_correct is
// false. Call Prepare on the result before use.
func (a *App) NewReview(pairs []review.Pair) *review.Session {
	opts := []review.Option{
		review.WithConcurrency(a.cfg.Review.Concurrency),
		review.WithMaxRunes(a.cfg.Review.RuneLimit()),
		review.WithMatcher(a.matcher),
		review.WithMetrics(a.metrics),
		review.WithLogger(a.log),
	}
	if a.cfg.Review.PreCorrectEnabled() {
		opts = append(opts, review.WithDictionary(a.dict))
	}
	return review.New(pairs, opts...)
}

// Checks returns the readiness checks for the running configuration.
func (a *App) Checks() []health.Checker {
	checks := []health.Checker{
		{Name: "storage", Check: func(ctx context.Context) error {
			_, err := a.backend.Load(ctx, a.cfg.Storage.Key)
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil
			}
			return err
		}},
	}
	if a.pinger != nil {
		checks = append(checks, health.Checker{Name: "postgres", Check: a.pinger})
	}
	if a.guard != nil {
		checks = append(checks, health.Checker{Name: "breaker", Check: func(context.Context) error {
			if st := a.guard.Breaker().State(); st == resilience.StateOpen {
				return fmt.Errorf("storage circuit is %s", st)
			}
			return nil
		}})
	}
	checks = append(checks, health.Checker{Name: "dictionary", Check: func(context.Context) error {
		_, err := a.dict.Export()
		return err
	}})
	return checks
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Debug("shutdown complete")
	})
	return shutdownErr
}
