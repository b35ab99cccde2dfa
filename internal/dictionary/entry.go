package dictionary

import "slices"

// Entry is a learned correction rule mapping known-incorrect variants to one
// canonical spelling.
//
// The JSON field names are the persisted and exported representation.
type Entry struct {
	// ID uniquely identifies the entry. It is generated locally and never
	// taken from imported data.
	ID string `json:"id"`

	// Correct is the canonical spelling. It is trimmed, non-empty and unique
	// across the dictionary.
	Correct string `json:"correct"`

	// Variants are the known-incorrect spellings, unique within the entry
	// and applied in list order.
	Variants []string `json:"variants"`

	// UseCount counts (entry, variant) matches during [Store.Apply].
	UseCount int `json:"useCount"`

	// CreatedAt and LastUsedAt are Unix epoch milliseconds.
	CreatedAt  int64 `json:"createdAt"`
	LastUsedAt int64 `json:"lastUsedAt"`
}

// clone returns a deep copy of e.
func (e *Entry) clone() Entry {
	c := *e
	c.Variants = slices.Clone(e.Variants)
	if c.Variants == nil {
		c.Variants = []string{}
	}
	return c
}

// Replacement records one variant that matched during [Store.Apply].
type Replacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Result is the outcome of [Store.Apply].
type Result struct {
	// Text is the input with every matching variant replaced.
	Text string `json:"text"`

	// Replacements lists matches in the order they were applied. It is
	// empty (non-nil) when nothing matched.
	Replacements []Replacement `json:"replacements"`
}
