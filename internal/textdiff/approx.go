package textdiff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Approximate groups the difference between original and corrected using the
// Myers algorithm with semantic cleanup instead of the exact LCS.
//
// The result keeps the round-trip guarantees of [Diff]: building it with the
// default flags yields corrected and with every UseNew cleared yields
// original. The grouping is not minimal and has no fixed tie-breaking. It is
// the fallback for inputs too large for the quadratic diff.
func Approximate(original, corrected string) []Group {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, corrected, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	segs := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		default:
			op = OpEqual
		}
		if n := len(segs); n > 0 && segs[n-1].Op == op {
			segs[n-1].Text += d.Text
			continue
		}
		segs = append(segs, Segment{Op: op, Text: d.Text})
	}
	return GroupSegments(segs)
}
