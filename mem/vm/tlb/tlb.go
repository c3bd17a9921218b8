// Package tlb caches page translations so repeated accesses to the same
// pages skip the table walk.
package tlb

import (
	"math/bits"
	"slices"
	"sync"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem/vm"
	"github.com/sarchlab/flowmem/mem/vm/tlb/internal"
)

// TLB is a set-associative translation cache with LRU replacement.
//
// It does not watch the page tables. Call Flush or FlushAddressSpace after
// changing a mapping.
type TLB struct {
	mu sync.Mutex

	numSets int
	numWays int
	sets    []internal.Set

	// pageSizes holds log2 of every page size ever inserted.
	pageSizes map[uint]struct{}

	hits, misses uint64
}

func (t *TLB) setID(key internal.Key) int {
	vpn := key.VBase.Uint64() >> bits.TrailingZeros64(key.PageSize.Uint64())
	return int(vpn % uint64(t.numSets))
}

func (t *TLB) shifts() []uint {
	shifts := make([]uint, 0, len(t.pageSizes))
	for s := range t.pageSizes {
		shifts = append(shifts, s)
	}

	slices.Sort(shifts)

	return shifts
}

// Lookup returns the cached page that maps vaddr in the address space
// rooted at dtb. The page's VAddr and PAddr describe vaddr.
func (t *TLB) Lookup(dtb, vaddr address.Address) (vm.Page, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, shift := range t.shifts() {
		size := address.Length(1) << shift
		key := internal.Key{DTB: dtb, VBase: vaddr.AlignDown(size), PageSize: size}
		set := t.sets[t.setID(key)]

		wayID, page, found := set.Lookup(key)
		if !found {
			continue
		}

		set.Visit(wayID)
		t.hits++

		offset := vaddr.PageOffset(size)
		page.VAddr = vaddr
		page.PAddr = page.PageBase.Add(offset)

		return page, true
	}

	t.misses++

	return vm.Page{}, false
}

// Insert caches page for the address space rooted at dtb.
func (t *TLB) Insert(dtb address.Address, page vm.Page) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := internal.Key{
		DTB:      dtb,
		VBase:    page.VirtualBase(),
		PageSize: page.PageSize,
	}
	set := t.sets[t.setID(key)]

	wayID, _, found := set.Lookup(key)
	if !found {
		var ok bool

		wayID, ok = set.Evict()
		if !ok {
			return
		}
	}

	set.Update(wayID, key, page)
	set.Visit(wayID)

	t.pageSizes[uint(bits.TrailingZeros64(page.PageSize.Uint64()))] = struct{}{}
}

// Flush drops every entry.
func (t *TLB) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reset()
}

// FlushAddressSpace drops the entries of one address space by rebuilding the
// sets without them.
func (t *TLB) FlushAddressSpace(dtb address.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.sets
	keep := t.collect(old, func(k internal.Key) bool { return k.DTB != dtb })

	sizes := t.pageSizes
	t.reset()
	t.pageSizes = sizes

	for _, e := range keep {
		set := t.sets[t.setID(e.key)]
		wayID, _ := set.Evict()
		set.Update(wayID, e.key, e.page)
		set.Visit(wayID)
	}
}

type entry struct {
	key  internal.Key
	page vm.Page
}

// collect gathers the entries to keep. Each set is drained from least to
// most recently used, so re-inserting in that order keeps the LRU order.
func (t *TLB) collect(
	sets []internal.Set,
	keep func(internal.Key) bool,
) []entry {
	var entries []entry

	for _, set := range sets {
		for {
			wayID, ok := set.Evict()
			if !ok {
				break
			}

			key, page, valid := set.Block(wayID)
			if valid && keep(key) {
				entries = append(entries, entry{key: key, page: page})
			}
		}
	}

	return entries
}

// Stats returns the number of lookups that hit and missed.
func (t *TLB) Stats() (hits, misses uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.hits, t.misses
}

// Len returns the number of cached pages.
func (t *TLB) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.sets {
		n += s.Len()
	}

	return n
}

var _ vm.Cache = (*TLB)(nil)
