// Package textdiff computes character-level differences between an original
// transcript and a machine-corrected version of it, and turns them into
// accept/reject units that an operator can toggle one by one.
//
// The pipeline has three pure stages:
//
//  1. [Compute] runs a longest-common-subsequence diff and returns ordered
//     [Segment] values classified as equal, delete or insert.
//  2. [GroupSegments] collapses every run of non-equal segments into a single
//     change [Group] so that a replacement is one decision, not two.
//  3. [BuildFinal] concatenates the groups, picking the corrected or the
//     original side of each change group according to [Group.UseNew].
//
// [Approximate] replaces the first two stages with a Myers diff for inputs
// too large for the quadratic LCS.
//
// The unit of comparison is a Unicode code point (rune). Multi-byte UTF-8
// sequences such as CJK characters or emoji are never split across segments.
// Invalid UTF-8 bytes are decoded as U+FFFD and do not survive a round trip.
//
// All functions are total, allocate fresh results and are safe for concurrent
// use.
package textdiff

// Op classifies a [Segment].
type Op string

const (
	// OpEqual marks text present in both the original and the corrected input.
	OpEqual Op = "equal"

	// OpDelete marks text present only in the original input.
	OpDelete Op = "delete"

	// OpInsert marks text present only in the corrected input.
	OpInsert Op = "insert"
)

// IsValid reports whether o is a recognised segment operation.
func (o Op) IsValid() bool {
	switch o {
	case OpEqual, OpDelete, OpInsert:
		return true
	}
	return false
}

// Segment is a typed run of text produced by [Compute].
//
// Concatenating the Text of all delete and equal segments in order yields the
// original input; concatenating all insert and equal segments yields the
// corrected input.
type Segment struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Kind classifies a [Group].
type Kind string

const (
	// KindEqual is a group wrapping exactly one equal segment.
	KindEqual Kind = "equal"

	// KindChange is a group wrapping a maximal run of delete/insert segments.
	KindChange Kind = "change"
)

// Group is a UI-addressable accept/reject unit.
type Group struct {
	// ID is the zero-based position of the group in the slice it was
	// produced in.
	ID int `json:"id"`

	Kind Kind `json:"kind"`

	// Original is the text the group contributes to the original input.
	// For equal groups it equals Corrected.
	Original string `json:"original"`

	// Corrected is the text the group contributes to the corrected input.
	Corrected string `json:"corrected"`

	// UseNew selects Corrected over Original when the final text is built.
	// It defaults to true for change groups and false for equal groups and
	// has no effect on equal groups.
	UseNew bool `json:"useNew"`
}

// Text returns the text g contributes to the final output given its current
// UseNew flag.
func (g Group) Text() string {
	if g.Kind == KindChange && g.UseNew {
		return g.Corrected
	}
	return g.Original
}
