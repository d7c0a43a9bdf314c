package labels

import (
	"fmt"
	"strings"
)

// EditDistance returns the Levenshtein distance between a and b.
func EditDistance[T comparable](a, b []T) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// ErrorRate is the total edit distance of hyps against refs divided by the
// total reference length. It is zero when every reference is empty.
func ErrorRate[T comparable](refs, hyps [][]T) (float64, error) {
	if len(refs) != len(hyps) {
		return 0, fmt.Errorf("got %d references and %d hypotheses", len(refs), len(hyps))
	}
	dist, total := 0, 0
	for i := range refs {
		dist += EditDistance(refs[i], hyps[i])
		total += len(refs[i])
	}
	if total == 0 {
		return 0, nil
	}
	return float64(dist) / float64(total), nil
}

// WordErrorRate is ErrorRate over whitespace separated words.
func WordErrorRate(refs, hyps []string) (float64, error) {
	if len(refs) != len(hyps) {
		return 0, fmt.Errorf("got %d references and %d hypotheses", len(refs), len(hyps))
	}
	r := make([][]string, len(refs))
	h := make([][]string, len(hyps))
	for i := range refs {
		r[i] = strings.Fields(refs[i])
		h[i] = strings.Fields(hyps[i])
	}
	return ErrorRate(r, h)
}
