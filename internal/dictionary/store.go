// Package dictionary implements the smart dictionary: an ordered, persistent
// set of correction rules that rewrite known-incorrect variants to their
// canonical spelling.
//
// A [Store] owns the rule collection and a [blobstore.Store] backend. The
// whole collection is serialised as one JSON array and overwritten on every
// mutation, synchronously, before the mutating call returns.
//
// Rules are applied in insertion order and each rule sees the text as
// already rewritten by the rules before it, so one rule's output can feed the
// next rule's input.
package dictionary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/subreconcile/internal/blobstore"
	"github.com/MrWong99/subreconcile/internal/observe"
)

// DefaultKey is the blob key the dictionary is persisted under.
const DefaultKey = "smart-dictionary"

// ErrEmptyCorrect is returned by [Store.AddManual] when the correct spelling
// is blank after trimming.
var ErrEmptyCorrect = errors.New("dictionary: correct spelling must not be blank")

// ErrInvalidFormat is returned by [Store.Import] when the payload is not a
// JSON array of entries.
var ErrInvalidFormat = errors.New("dictionary: invalid import format")

// Option is a functional option for configuring a [Store].
type Option func(*Store)

// WithKey overrides the blob key. Default: [DefaultKey].
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides entry ID generation. Default: random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Store is the smart dictionary. It is safe for concurrent use; every
// operation, including the persistence write it triggers, runs under one
// mutex so writes are serialised and replacement order is preserved.
type Store struct {
	mu      sync.Mutex
	entries []*Entry

	backend blobstore.Store
	key     string
	now     func() time.Time
	newID   func() string
	metrics *observe.Metrics
	log     *slog.Logger
}

// New creates a Store persisting through backend and loads any previously
// saved collection. A missing, unreadable or malformed blob leaves the store
// empty; the problem is logged, never returned.
func New(ctx context.Context, backend blobstore.Store, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "dictionary", "key", s.key)

	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	data, err := s.backend.Load(ctx, s.key)
	if errors.Is(err, blobstore.ErrNotFound) {
		s.log.Debug("no persisted dictionary, starting empty")
		return
	}
	if err != nil {
		s.log.Error("failed to load dictionary", "err", err)
		return
	}

	entries, err := decodeEntries(data)
	if err != nil {
		s.log.Error("persisted dictionary is malformed, starting empty", "err", err)
		return
	}

	s.entries = make([]*Entry, 0, len(entries))
	for i := range entries {
		s.entries = append(s.entries, &entries[i])
	}
	s.log.Debug("loaded dictionary", "count", len(s.entries))
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns deep copies of all entries in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	return out
}

// Get returns a copy of the entry with the given ID.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.byID(id); e != nil {
		return e.clone(), true
	}
	return Entry{}, false
}

// AddManual adds a rule mapping variants to correct.
//
// When an entry with the same trimmed correct spelling exists, the new
// non-blank variants it does not already hold are appended and the existing
// entry is returned with its counters untouched. Otherwise a new entry is
// appended. Returns [ErrEmptyCorrect] without mutating anything when correct
// is blank.
func (s *Store) AddManual(ctx context.Context, correct string, variants ...string) (Entry, error) {
	correct = strings.TrimSpace(correct)
	if correct == "" {
		return Entry{}, ErrEmptyCorrect
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.byCorrect(correct); existing != nil {
		if !mergeVariants(existing, variants) {
			return existing.clone(), nil
		}
		return existing.clone(), s.save(ctx)
	}

	now := s.now().UnixMilli()
	e := &Entry{
		ID:         s.newID(),
		Correct:    correct,
		Variants:   []string{},
		CreatedAt:  now,
		LastUsedAt: now,
	}
	mergeVariants(e, variants)
	s.entries = append(s.entries, e)

	s.log.Info("added dictionary entry", "correct", correct, "variants", e.Variants)
	return e.clone(), s.save(ctx)
}

// Apply rewrites text with every rule.
//
// Entries are visited in insertion order and their variants in list order.
// Each variant found in the running text has all of its occurrences replaced
// by the entry's correct spelling, is logged once in the result, and bumps
// the entry's UseCount by one. The dictionary is persisted only when at least
// one replacement happened. The returned error reports a failed save; the
// result is valid regardless.
func (s *Store) Apply(ctx context.Context, text string) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "dictionary.apply")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{Text: text, Replacements: []Replacement{}}
	now := s.now().UnixMilli()

	for _, e := range s.entries {
		for _, v := range e.Variants {
			// An empty variant would match between every pair of runes.
			if v == "" || !strings.Contains(res.Text, v) {
				continue
			}
			res.Text = strings.ReplaceAll(res.Text, v, e.Correct)
			res.Replacements = append(res.Replacements, Replacement{From: v, To: e.Correct})
			e.UseCount++
			e.LastUsedAt = now
		}
	}

	span.SetAttributes(attribute.Int("replacements", len(res.Replacements)))
	if len(res.Replacements) == 0 {
		return res, nil
	}

	s.metrics.DictionaryReplacements.Add(ctx, int64(len(res.Replacements)))
	observe.Logger(ctx, s.log).Info("applied dictionary", "replacements", res.Replacements)
	return res, s.save(ctx)
}

// RemoveEntry deletes the entry with the given ID. Unknown IDs are ignored.
func (s *Store) RemoveEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.entries, func(e *Entry) bool { return e.ID == id })
	if idx < 0 {
		return nil
	}
	removed := s.entries[idx]
	s.entries = slices.Delete(s.entries, idx, idx+1)

	s.log.Info("removed dictionary entry", "correct", removed.Correct)
	return s.save(ctx)
}

// AddVariant appends the trimmed variant to the entry with the given ID
// unless the entry is unknown, the variant is blank, or it is already listed.
func (s *Store) AddVariant(ctx context.Context, id, variant string) error {
	variant = strings.TrimSpace(variant)

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.byID(id)
	if e == nil || variant == "" || slices.Contains(e.Variants, variant) {
		return nil
	}
	e.Variants = append(e.Variants, variant)
	return s.save(ctx)
}

// RemoveVariant removes the first occurrence of variant (exact match) from
// the entry with the given ID. Unknown IDs and variants are ignored.
func (s *Store) RemoveVariant(ctx context.Context, id, variant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.byID(id)
	if e == nil {
		return nil
	}
	idx := slices.Index(e.Variants, variant)
	if idx < 0 {
		return nil
	}
	e.Variants = slices.Delete(e.Variants, idx, idx+1)
	return s.save(ctx)
}

// ClearAll removes every entry.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.log.Info("cleared dictionary")
	return s.save(ctx)
}

// Export serialises the whole collection as an indented JSON array that
// [Store.Import] accepts.
func (s *Store) Export() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("dictionary: export: %w", err)
	}
	return string(data), nil
}

// Import merges a JSON array of entries into the dictionary.
//
// An imported entry whose trimmed correct spelling already exists only
// contributes its new variants. Any other entry is appended with a freshly
// generated ID; imported IDs are never kept. Entries with a blank correct
// spelling are skipped. A payload that is not a JSON array yields
// [ErrInvalidFormat] and leaves the dictionary untouched.
func (s *Store) Import(ctx context.Context, data string) error {
	imported, err := decodeEntries([]byte(data))
	if err != nil {
		s.log.Error("failed to import dictionary", "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	skipped := 0
	for _, item := range imported {
		correct := strings.TrimSpace(item.Correct)
		if correct == "" {
			skipped++
			continue
		}

		if existing := s.byCorrect(correct); existing != nil {
			mergeVariants(existing, item.Variants)
			continue
		}

		e := &Entry{
			ID:         s.newID(),
			Correct:    correct,
			Variants:   []string{},
			UseCount:   max(item.UseCount, 0),
			CreatedAt:  item.CreatedAt,
			LastUsedAt: item.LastUsedAt,
		}
		if e.CreatedAt <= 0 {
			e.CreatedAt = now
		}
		if e.LastUsedAt <= 0 {
			e.LastUsedAt = e.CreatedAt
		}
		mergeVariants(e, item.Variants)
		s.entries = append(s.entries, e)
	}

	if skipped > 0 {
		s.log.Warn("skipped imported entries with blank correct spelling", "count", skipped)
	}
	s.log.Info("imported dictionary", "count", len(imported), "total", len(s.entries))
	return s.save(ctx)
}

// save overwrites the persisted blob with the full collection. The caller
// must hold s.mu.
func (s *Store) save(ctx context.Context) error {
	data, err := json.Marshal(s.snapshot())
	if err == nil {
		err = s.backend.Save(ctx, s.key, data)
	}
	s.metrics.RecordSave(ctx, err)
	if err != nil {
		s.log.Error("failed to save dictionary", "err", err)
		return fmt.Errorf("dictionary: save: %w", err)
	}
	return nil
}

// snapshot returns the entries as values for serialisation. The caller must
// hold s.mu.
func (s *Store) snapshot() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	return out
}

func (s *Store) byID(id string) *Entry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *Store) byCorrect(correct string) *Entry {
	for _, e := range s.entries {
		if e.Correct == correct {
			return e
		}
	}
	return nil
}

// mergeVariants appends each non-blank variant not yet in e and reports
// whether anything was added. Variants are kept verbatim; uniqueness is exact
// string equality.
func mergeVariants(e *Entry, variants []string) bool {
	changed := false
	for _, v := range variants {
		if strings.TrimSpace(v) == "" || slices.Contains(e.Variants, v) {
			continue
		}
		e.Variants = append(e.Variants, v)
		changed = true
	}
	return changed
}

// decodeEntries parses a JSON array of entries. Anything else, including
// null, is reported as [ErrInvalidFormat].
func decodeEntries(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrInvalidFormat)
	}
	var entries []Entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return entries, nil
}
