package textdiff

// Compute returns the ordered segments describing how to turn original into
// corrected.
//
// The diff is anchored on one longest common subsequence of the two inputs.
// When several common subsequences of maximal length exist, backtracking
// through the DP table prefers dropping a character of original over
// dropping a character of corrected, which fixes the classification of
// characters as delete or insert.
//
// Runs in O(m·n) time and space where m and n are the rune lengths of the
// inputs; callers are expected to bound input size.
func Compute(original, corrected string) []Segment {
	a := []rune(original)
	b := []rune(corrected)
	common := lcs(a, b)

	segs := make([]Segment, 0, 4)
	oi, ci, li := 0, 0, 0

	for li < len(common) {
		anchor := common[li]

		start := oi
		for oi < len(a) && a[oi] != anchor {
			oi++
		}
		segs = appendSegment(segs, OpDelete, a[start:oi])

		start = ci
		for ci < len(b) && b[ci] != anchor {
			ci++
		}
		segs = appendSegment(segs, OpInsert, b[start:ci])

		// common is a subsequence of both inputs, so after draining both
		// cursors rest on the anchor and this loop consumes at least one rune.
		start = li
		for li < len(common) && oi < len(a) && ci < len(b) &&
			a[oi] == common[li] && b[ci] == common[li] {
			oi++
			ci++
			li++
		}
		segs = appendSegment(segs, OpEqual, common[start:li])
	}

	segs = appendSegment(segs, OpDelete, a[oi:])
	segs = appendSegment(segs, OpInsert, b[ci:])

	return mergeAdjacent(segs)
}

// lcs reconstructs one longest common subsequence of a and b.
func lcs(a, b []rune) []rune {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	// Flat row-major table; dp[i*w+j] is the LCS length of a[:i] and b[:j].
	w := n + 1
	dp := make([]int, (m+1)*w)
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			switch {
			case a[i-1] == b[j-1]:
				dp[i*w+j] = dp[(i-1)*w+j-1] + 1
			case dp[(i-1)*w+j] >= dp[i*w+j-1]:
				dp[i*w+j] = dp[(i-1)*w+j]
			default:
				dp[i*w+j] = dp[i*w+j-1]
			}
		}
	}

	out := make([]rune, dp[m*w+n])
	k := len(out)
	i, j := m, n
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			k--
			out[k] = a[i-1]
			i--
			j--
		case dp[(i-1)*w+j] >= dp[i*w+j-1]:
			i--
		default:
			j--
		}
	}
	return out
}

// appendSegment appends a segment for text unless text is empty, extending
// the last segment when it has the same op.
func appendSegment(segs []Segment, op Op, text []rune) []Segment {
	if len(text) == 0 {
		return segs
	}
	if n := len(segs); n > 0 && segs[n-1].Op == op {
		segs[n-1].Text += string(text)
		return segs
	}
	return append(segs, Segment{Op: op, Text: string(text)})
}

// mergeAdjacent collapses neighbouring segments of the same op so that the
// output has the minimal segment count.
func mergeAdjacent(segs []Segment) []Segment {
	if len(segs) < 2 {
		return segs
	}
	out := segs[:1]
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if last.Op == s.Op {
			last.Text += s.Text
			continue
		}
		out = append(out, s)
	}
	return out
}
