package tlb

import (
	"github.com/sarchlab/flowmem/mem/vm/tlb/internal"
)

// A Builder can build TLBs
type Builder struct {
	numSets int
	numWays int
}

// MakeBuilder returns a Builder for a fully associative 32-entry TLB.
func MakeBuilder() Builder {
	return Builder{
		numSets: 1,
		numWays: 32,
	}
}

// WithNumSets sets the number of sets in a TLB. Use 1 for fully associated
// TLBs.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithNumWays sets the number of ways in each set.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// Build creates a new TLB.
func (b Builder) Build() *TLB {
	if b.numSets <= 0 || b.numWays <= 0 {
		panic("TLB needs at least one set and one way")
	}

	t := &TLB{
		numSets: b.numSets,
		numWays: b.numWays,
	}
	t.reset()

	return t
}

func (t *TLB) reset() {
	t.sets = make([]internal.Set, t.numSets)
	for i := range t.sets {
		t.sets[i] = internal.NewSet(t.numWays)
	}

	t.pageSizes = make(map[uint]struct{})
}
