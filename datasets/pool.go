package datasets

import "math/rand"

// indexPool holds the utterance indices not yet drawn in the current epoch.
//
// Draws are two-phase: first/sample pick indices without removing them and
// commit removes what was picked. A failed batch therefore leaves the pool
// holding the same set of indices.
//
// The curriculum state only changes when the pool is reset, so within one
// epoch either every draw is sorted or every draw is random. Sorted draws
// only cut a prefix off the initially ascending items, which keeps items
// ascending for the whole sorted epoch.
type indexPool struct {
	items []int
}

func newIndexPool(n int) *indexPool {
	p := &indexPool{}
	p.reset(n)
	return p
}

// reset makes every index in [0, n) available again, in ascending order.
func (p *indexPool) reset(n int) {
	p.items = make([]int, n)
	for i := range p.items {
		p.items[i] = i
	}
}

func (p *indexPool) len() int { return len(p.items) }

// first returns the k smallest remaining indices.
func (p *indexPool) first(k int) []int {
	return append([]int(nil), p.items[:k]...)
}

// sample returns k remaining indices chosen uniformly without replacement.
// It moves them to the front of items (partial Fisher-Yates) so commit can
// drop them.
func (p *indexPool) sample(k int, rng *rand.Rand) []int {
	n := len(p.items)
	for j := range k {
		r := j + rng.Intn(n-j)
		p.items[j], p.items[r] = p.items[r], p.items[j]
	}
	return append([]int(nil), p.items[:k]...)
}

// all returns every remaining index.
func (p *indexPool) all() []int {
	return append([]int(nil), p.items...)
}

// commit removes the k indices returned by the preceding first or sample.
func (p *indexPool) commit(k int) {
	p.items = p.items[k:]
}
