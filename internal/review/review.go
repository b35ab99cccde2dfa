// Package review drives an operator review over many caller-chosen
// original/corrected text pairs, for example the cues of a subtitle track
// before and after automatic correction.
//
// A [Session] pre-corrects the corrected side of every pair with the smart
// dictionary (when one is attached), diffs each pair into accept/reject
// groups, records the operator's decisions and produces the final text per
// pair. Accepted word-level corrections that look like recurring
// mis-hearings can be fed back into the dictionary with [Session.Learn].
//
// A Session is safe for concurrent use.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/subreconcile/internal/dictionary"
	"github.com/MrWong99/subreconcile/internal/observe"
	"github.com/MrWong99/subreconcile/internal/phonetic"
	"github.com/MrWong99/subreconcile/internal/textdiff"
)

const (
	defaultConcurrency = 4
	defaultMaxRunes    = 5000
)

var (
	// ErrNotPrepared is returned when item state is requested before
	// [Session.Prepare] completed.
	ErrNotPrepared = errors.New("review: session not prepared")

	// ErrUnknownItem is returned for an item ID outside the session.
	ErrUnknownItem = errors.New("review: unknown item")

	// ErrUnknownGroup is returned for a group ID outside the item.
	ErrUnknownGroup = errors.New("review: unknown group")

	// ErrInvalidChoice is returned by [Session.SetChoice] for an
	// unrecognised [Choice].
	ErrInvalidChoice = errors.New("review: invalid choice")
)

// Applier pre-corrects text. [*dictionary.Store] satisfies it.
type Applier interface {
	Apply(ctx context.Context, text string) (dictionary.Result, error)
}

// Learner stores a correction rule. [*dictionary.Store] satisfies it.
type Learner interface {
	AddManual(ctx context.Context, correct string, variants ...string) (dictionary.Entry, error)
}

// Pair is one original/corrected text pair chosen by the caller.
type Pair struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// Choice selects which side of an item ends up in the final text.
type Choice string

const (
	// ChoiceOriginal keeps the original text and ignores every group.
	ChoiceOriginal Choice = "original"

	// ChoiceCorrected builds the final text from the item's groups.
	ChoiceCorrected Choice = "corrected"
)

// IsValid reports whether c is a recognised choice.
func (c Choice) IsValid() bool {
	return c == ChoiceOriginal || c == ChoiceCorrected
}

// Item is the review state of one pair.
type Item struct {
	ID int `json:"id"`

	Original string `json:"original"`

	// Corrected is the corrected text after dictionary pre-correction.
	Corrected string `json:"corrected"`

	// Replacements lists the dictionary rules applied to Corrected.
	Replacements []dictionary.Replacement `json:"replacements,omitempty"`

	HasDiff bool   `json:"hasDiff"`
	Choice  Choice `json:"choice"`

	// Approximate is set when the pair exceeded the size bound and was
	// grouped by [textdiff.Approximate] instead of the exact diff.
	Approximate bool `json:"approximate,omitempty"`

	Groups []textdiff.Group `json:"groups"`
}

func (it *Item) clone() Item {
	c := *it
	c.Groups = slices.Clone(it.Groups)
	c.Replacements = slices.Clone(it.Replacements)
	return c
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithDictionary pre-corrects every pair's corrected text with a before
// diffing. Pairs are processed sequentially in order, so rule usage is
// recorded exactly as if the caller applied them one by one.
func WithDictionary(a Applier) Option {
	return func(s *Session) {
		s.dict = a
	}
}

// WithConcurrency bounds how many pairs are diffed in parallel. Default: 4.
func WithConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxRunes sets the size bound: a pair whose rune lengths multiply to
// more than n² is grouped by [textdiff.Approximate] instead of the exact
// quadratic diff. Zero disables the bound. Default: 5000.
func WithMaxRunes(n int) Option {
	return func(s *Session) {
		if n >= 0 {
			s.maxRunes = n
		}
	}
}

// WithMatcher sets the similarity matcher used by [Session.Candidates].
func WithMatcher(m *phonetic.Matcher) Option {
	return func(s *Session) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// Session holds the review state for a fixed list of pairs.
type Session struct {
	mu       sync.Mutex
	pairs    []Pair
	items    []Item
	prepared bool

	dict        Applier
	concurrency int
	maxRunes    int
	matcher     *phonetic.Matcher
	metrics     *observe.Metrics
	log         *slog.Logger
}

// New creates a session over pairs. Call [Session.Prepare] before reading
// or changing item state.
func New(pairs []Pair, opts ...Option) *Session {
	s := &Session{
		pairs:       slices.Clone(pairs),
		concurrency: defaultConcurrency,
		maxRunes:    defaultMaxRunes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.matcher == nil {
		s.matcher = phonetic.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "review")
	return s
}

// Prepare pre-corrects and diffs every pair, resetting any earlier
// decisions. Dictionary save failures are logged and do not abort the
// session; context cancellation does.
func (s *Session) Prepare(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "review.prepare")
	defer span.End()
	span.SetAttributes(attribute.Int("pairs", len(s.pairs)))

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, len(s.pairs))
	for i, p := range s.pairs {
		items[i] = Item{ID: i, Original: p.Original, Corrected: p.Corrected, Choice: ChoiceCorrected}
	}

	if s.dict != nil {
		for i := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.dict.Apply(ctx, items[i].Corrected)
			if err != nil {
				observe.Logger(ctx, s.log).Warn("dictionary pre-correction not persisted", "item", i, "err", err)
			}
			items[i].Corrected = res.Text
			if len(res.Replacements) > 0 {
				items[i].Replacements = res.Replacements
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.diffItem(gctx, &items[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("review: prepare: %w", err)
	}

	s.items = items
	s.prepared = true

	changed := 0
	for i := range items {
		if items[i].HasDiff {
			changed++
		}
	}
	observe.Logger(ctx, s.log).Debug("review prepared", "items", len(items), "changed", changed)
	return nil
}

// diffItem fills the groups of it. Each call touches only its own item.
func (s *Session) diffItem(ctx context.Context, it *Item) {
	start := time.Now()

	it.HasDiff = it.Original != it.Corrected
	if s.tooLarge(it.Original, it.Corrected) {
		it.Groups = textdiff.Approximate(it.Original, it.Corrected)
		it.Approximate = true
	} else {
		it.Groups = textdiff.Diff(it.Original, it.Corrected)
	}

	s.metrics.DiffDuration.Record(ctx, time.Since(start).Seconds())
	change := textdiff.Changes(it.Groups)
	s.metrics.RecordGroups(ctx, len(it.Groups)-change, change)
}

func (s *Session) tooLarge(a, b string) bool {
	if s.maxRunes == 0 {
		return false
	}
	m, n := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	return m*n > s.maxRunes*s.maxRunes
}

// Len returns the number of items.
func (s *Session) Len() int {
	return len(s.pairs)
}

// Items returns copies of all items in pair order.
func (s *Session) Items() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prepared {
		return nil, ErrNotPrepared
	}
	out := make([]Item, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].clone()
	}
	return out, nil
}

// Item returns a copy of the item with the given ID.
func (s *Session) Item(id int) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.item(id)
	if err != nil {
		return Item{}, err
	}
	return it.clone(), nil
}

// SetChoice selects which side of the item is used for its final text.
func (s *Session) SetChoice(id int, c Choice) error {
	if !c.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidChoice, c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.item(id)
	if err != nil {
		return err
	}
	it.Choice = c
	return nil
}

// Toggle flips the UseNew flag of a change group. Toggling an equal group
// has no effect.
func (s *Session) Toggle(itemID, groupID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(itemID, groupID)
	if err != nil {
		return err
	}
	if g.Kind == textdiff.KindChange {
		g.UseNew = !g.UseNew
	}
	return nil
}

// SetUseNew sets the UseNew flag of a change group.
func (s *Session) SetUseNew(itemID, groupID int, useNew bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(itemID, groupID)
	if err != nil {
		return err
	}
	if g.Kind == textdiff.KindChange {
		g.UseNew = useNew
	}
	return nil
}

// SetAll sets UseNew on every change group of the item.
func (s *Session) SetAll(itemID int, useNew bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.item(itemID)
	if err != nil {
		return err
	}
	textdiff.SetAll(it.Groups, useNew)
	return nil
}

// Final returns the final text of the item: the original text when the
// choice is [ChoiceOriginal], otherwise the groups built with their current
// UseNew flags.
func (s *Session) Final(id int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.item(id)
	if err != nil {
		return "", err
	}
	return final(it), nil
}

// FinalAll returns the final text of every item in pair order.
func (s *Session) FinalAll() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prepared {
		return nil, ErrNotPrepared
	}
	out := make([]string, len(s.items))
	for i := range s.items {
		out[i] = final(&s.items[i])
	}
	return out, nil
}

func final(it *Item) string {
	if it.Choice == ChoiceOriginal {
		return it.Original
	}
	return textdiff.BuildFinal(it.Groups)
}

// item returns the live item. The caller must hold s.mu.
func (s *Session) item(id int) (*Item, error) {
	if !s.prepared {
		return nil, ErrNotPrepared
	}
	if id < 0 || id >= len(s.items) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	return &s.items[id], nil
}

// group returns the live group. The caller must hold s.mu.
func (s *Session) group(itemID, groupID int) (*textdiff.Group, error) {
	it, err := s.item(itemID)
	if err != nil {
		return nil, err
	}
	if groupID < 0 || groupID >= len(it.Groups) {
		return nil, fmt.Errorf("%w: item %d group %d", ErrUnknownGroup, itemID, groupID)
	}
	return &it.Groups[groupID], nil
}
