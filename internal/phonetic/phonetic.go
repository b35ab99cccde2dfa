// Package phonetic scores how alike two short phrases sound, using Double
// Metaphone encoding combined with Jaro-Winkler string similarity.
//
// It decides whether an accepted correction such as "wispers" → "Whispers"
// is a recurring mis-hearing worth learning as a dictionary rule, as opposed
// to an unrelated edit such as a rewritten clause.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic overlap: Double Metaphone codes are computed for every token
//     of both phrases. If any code is shared, the pair is a phonetic
//     candidate and must reach the phonetic threshold (default 0.70).
//
//  2. Fuzzy fallback: pairs without shared codes must reach the higher fuzzy
//     threshold (default 0.85) on Jaro-Winkler similarity alone.
//
// Phrases without Latin consonants (for example CJK text) produce no
// metaphone codes and are judged by the fuzzy stage only.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically overlapping pair to match. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when the
// pair shares no phonetic code. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Score compares a and b case-insensitively. score is the best Jaro-Winkler
// similarity in [0, 1]; matched reports whether it clears the threshold that
// applies to the pair.
func (m *Matcher) Score(a, b string) (score float64, matched bool) {
	aLower := strings.ToLower(strings.TrimSpace(a))
	bLower := strings.ToLower(strings.TrimSpace(b))
	if aLower == "" || bLower == "" {
		return 0, false
	}
	if aLower == bLower {
		return 1, true
	}

	aTokens := strings.Fields(aLower)
	bTokens := strings.Fields(bLower)

	score = bestJWScore(aTokens, bTokens, aLower, bLower)
	if codesOverlap(codesForTokens(aTokens), codesForTokens(bTokens)) {
		return score, score >= m.phoneticThreshold
	}
	return score, score >= m.fuzzyThreshold
}

// Match returns the candidate that sounds most like word. Candidates with a
// phonetic overlap are preferred over fuzzy-only matches. When nothing
// matches, corrected equals word and confidence is 0.
func (m *Matcher) Match(word string, candidates []string) (corrected string, confidence float64, matched bool) {
	if strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		value    string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, c := range candidates {
		cLower := strings.ToLower(strings.TrimSpace(c))
		if cLower == "" {
			continue
		}
		cTokens := strings.Fields(cLower)
		phoneticMatch := codesOverlap(inputCodes, codesForTokens(cTokens))
		jw := bestJWScore(wordTokens, cTokens, wordLower, cLower)

		if phoneticMatch {
			if jw >= m.phoneticThreshold && (!best.phonetic || jw > best.score) {
				best = candidate{value: c, score: jw, phonetic: true}
			}
		} else if !best.phonetic && jw >= m.fuzzyThreshold && jw > best.score {
			best = candidate{value: c, score: jw}
		}
	}

	if best.value != "" {
		return best.value, best.score, true
	}
	return word, 0, false
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore returns the highest Jaro-Winkler similarity among the full
// strings, their space-stripped forms, and every token pair.
func bestJWScore(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}

	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
