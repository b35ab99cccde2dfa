package textdiff

import "strings"

// GroupSegments collapses segments into accept/reject groups in a single
// left-to-right pass.
//
// Each equal segment becomes its own [KindEqual] group. Each maximal run of
// consecutive delete/insert segments becomes one [KindChange] group whose
// Original is the concatenation of the run's delete texts and whose Corrected
// is the concatenation of its insert texts. Change groups start with
// UseNew set to true. Group IDs count groups, not segments.
func GroupSegments(segs []Segment) []Group {
	groups := make([]Group, 0, len(segs))
	id := 0

	for i := 0; i < len(segs); {
		if segs[i].Op == OpEqual {
			groups = append(groups, Group{
				ID:        id,
				Kind:      KindEqual,
				Original:  segs[i].Text,
				Corrected: segs[i].Text,
			})
			id++
			i++
			continue
		}

		var orig, corr strings.Builder
		for i < len(segs) && segs[i].Op != OpEqual {
			switch segs[i].Op {
			case OpDelete:
				orig.WriteString(segs[i].Text)
			case OpInsert:
				corr.WriteString(segs[i].Text)
			}
			i++
		}
		groups = append(groups, Group{
			ID:        id,
			Kind:      KindChange,
			Original:  orig.String(),
			Corrected: corr.String(),
			UseNew:    true,
		})
		id++
	}

	return groups
}

// Diff is shorthand for GroupSegments(Compute(original, corrected)).
func Diff(original, corrected string) []Group {
	return GroupSegments(Compute(original, corrected))
}

// BuildFinal concatenates the text each group contributes: the original text
// for equal groups, and for change groups the corrected text when UseNew is
// set or the original text otherwise.
//
// With every UseNew cleared the result is the original input; with the
// defaults from [GroupSegments] it is the corrected input.
func BuildFinal(groups []Group) string {
	var sb strings.Builder
	for _, g := range groups {
		sb.WriteString(g.Text())
	}
	return sb.String()
}

// SetAll sets UseNew on every change group in groups.
func SetAll(groups []Group, useNew bool) {
	for i := range groups {
		if groups[i].Kind == KindChange {
			groups[i].UseNew = useNew
		}
	}
}

// Changes returns the number of change groups in groups.
func Changes(groups []Group) int {
	n := 0
	for _, g := range groups {
		if g.Kind == KindChange {
			n++
		}
	}
	return n
}
