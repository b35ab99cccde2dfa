package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/subreconcile/internal/textdiff"
)

// Bounds for candidates in scripts without word separators, where the
// phonetic matcher has nothing to compare. A single rune is never a rule:
// dictionary replacement is substring based and would rewrite every word
// containing it.
const (
	minScriptRuleRunes = 2
	maxScriptRuleRunes = 16
)

// Candidate is an accepted correction that could become a dictionary rule:
// occurrences of Variant would be rewritten to Correct.
type Candidate struct {
	ItemID  int     `json:"itemId"`
	GroupID int     `json:"groupId"`
	Correct string  `json:"correct"`
	Variant string  `json:"variant"`
	Score   float64 `json:"score"`
}

// Candidates returns the rule candidates of one item: every accepted change
// group that touches letters, widened to whole words in Latin text and by one
// rune of context in other scripts, whose two sides still look like the same
// word. Items whose choice is [ChoiceOriginal] yield none.
func (s *Session) Candidates(id int) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.item(id)
	if err != nil {
		return nil, err
	}
	return s.candidates(it), nil
}

// Learn adds the candidates of every item to l, skipping duplicates, and
// returns how many rules were submitted. Failed submissions are joined into
// the returned error and do not stop the remaining ones.
func (s *Session) Learn(ctx context.Context, l Learner) (int, error) {
	s.mu.Lock()
	if !s.prepared {
		s.mu.Unlock()
		return 0, ErrNotPrepared
	}
	var all []Candidate
	for i := range s.items {
		all = append(all, s.candidates(&s.items[i])...)
	}
	s.mu.Unlock()

	type rule struct{ correct, variant string }
	seen := make(map[rule]struct{}, len(all))
	learned := 0
	var errs []error
	for _, c := range all {
		r := rule{c.Correct, c.Variant}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}

		if err := ctx.Err(); err != nil {
			return learned, err
		}
		if _, err := l.AddManual(ctx, c.Correct, c.Variant); err != nil {
			errs = append(errs, fmt.Errorf("review: learn %q -> %q: %w", c.Variant, c.Correct, err))
			continue
		}
		learned++
	}
	if learned > 0 {
		s.log.Info("learned dictionary rules", "count", learned)
	}
	return learned, errors.Join(errs...)
}

// candidates walks the groups of it tracking rune offsets into both sides.
// The caller must hold s.mu.
func (s *Session) candidates(it *Item) []Candidate {
	if it.Choice != ChoiceCorrected {
		return nil
	}
	orig := []rune(it.Original)
	corr := []rune(it.Corrected)

	var out []Candidate
	oPos, cPos := 0, 0
	for _, g := range it.Groups {
		oLen := utf8.RuneCountInString(g.Original)
		cLen := utf8.RuneCountInString(g.Corrected)

		if g.Kind == textdiff.KindChange && g.UseNew &&
			(hasWordRune(g.Original) || hasWordRune(g.Corrected)) {
			os, oe := widenWord(orig, oPos, oPos+oLen)
			cs, ce := widenWord(corr, cPos, cPos+cLen)
			if !hasLatin(string(orig[os:oe])) && !hasLatin(string(corr[cs:ce])) {
				os, oe = widenScript(orig, os, oe)
				cs, ce = widenScript(corr, cs, ce)
			}
			variant := strings.TrimSpace(string(orig[os:oe]))
			correct := strings.TrimSpace(string(corr[cs:ce]))
			if score, ok := s.ruleScore(variant, correct); ok && !hasRule(out, variant, correct) {
				out = append(out, Candidate{
					ItemID:  it.ID,
					GroupID: g.ID,
					Correct: correct,
					Variant: variant,
					Score:   score,
				})
			}
		}

		oPos += oLen
		cPos += cLen
	}
	return out
}

// ruleScore decides whether variant -> correct is worth a rule.
func (s *Session) ruleScore(variant, correct string) (float64, bool) {
	if variant == "" || correct == "" || variant == correct {
		return 0, false
	}
	if !hasWordRune(variant) || !hasWordRune(correct) {
		return 0, false
	}
	script := !hasLatin(variant) && !hasLatin(correct)
	if script && (utf8.RuneCountInString(variant) < minScriptRuleRunes ||
		utf8.RuneCountInString(correct) < minScriptRuleRunes) {
		return 0, false
	}
	score, ok := s.matcher.Score(variant, correct)
	if ok {
		return score, true
	}
	if script &&
		utf8.RuneCountInString(variant) <= maxScriptRuleRunes &&
		utf8.RuneCountInString(correct) <= maxScriptRuleRunes {
		return score, true
	}
	return 0, false
}

// hasRule reports whether cands already proposes variant -> correct, as
// happens when several change groups fall into the same word.
func hasRule(cands []Candidate, variant, correct string) bool {
	for _, c := range cands {
		if c.Variant == variant && c.Correct == correct {
			return true
		}
	}
	return false
}

// widenWord extends [start, end) over neighbouring Latin word runes so that
// a partial-word edit covers the whole word. Other scripts stay as diffed.
func widenWord(r []rune, start, end int) (int, int) {
	for start > 0 && isLatinWordRune(r[start-1]) {
		start--
	}
	for end < len(r) && isLatinWordRune(r[end]) {
		end++
	}
	return start, end
}

// widenScript extends [start, end) by one neighbouring non-Latin letter or
// digit on each side. Both sides of a change group border the same equal
// groups, so the context is identical in variant and correct.
func widenScript(r []rune, start, end int) (int, int) {
	if start > 0 && isScriptWordRune(r[start-1]) {
		start--
	}
	if end < len(r) && isScriptWordRune(r[end]) {
		end++
	}
	return start, end
}

func isScriptWordRune(r rune) bool {
	return (unicode.IsLetter(r) || unicode.IsDigit(r)) && !unicode.Is(unicode.Latin, r)
}

func isLatinWordRune(r rune) bool {
	return unicode.Is(unicode.Latin, r) || unicode.IsDigit(r) || r == '\''
}

func hasWordRune(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func hasLatin(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.Is(unicode.Latin, r)
	}) >= 0
}
