// Package internal provides the set structure of the TLB.
package internal

import (
	"sort"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem/vm"
)

// Key identifies a cached page: the address space, the virtual base and
// the page size.
type Key struct {
	DTB      address.Address
	VBase    address.Address
	PageSize address.Length
}

// A Set holds a certain number of pages and evicts the least recently used
// one when full.
type Set interface {
	Lookup(key Key) (wayID int, page vm.Page, found bool)
	Update(wayID int, key Key, page vm.Page)
	Evict() (wayID int, ok bool)
	Visit(wayID int)
	Block(wayID int) (key Key, page vm.Page, valid bool)
	Len() int
}

// NewSet creates a new TLB set.
func NewSet(numWays int) Set {
	s := &setImpl{}
	s.blocks = make([]*block, numWays)
	s.visitList = make([]*block, 0, numWays)
	s.keyWayIDMap = make(map[Key]int)

	for i := range s.blocks {
		b := &block{}
		s.blocks[i] = b
		b.wayID = i
		s.Visit(i)
	}

	return s
}

type block struct {
	key       Key
	page      vm.Page
	valid     bool
	wayID     int
	lastVisit uint64
}

type setImpl struct {
	blocks      []*block
	keyWayIDMap map[Key]int
	visitList   []*block
	visitCount  uint64
}

func (s *setImpl) Lookup(key Key) (wayID int, page vm.Page, found bool) {
	wayID, ok := s.keyWayIDMap[key]
	if !ok {
		return 0, vm.Page{}, false
	}

	block := s.blocks[wayID]

	return block.wayID, block.page, true
}

func (s *setImpl) Update(wayID int, key Key, page vm.Page) {
	block := s.blocks[wayID]
	if block.valid {
		delete(s.keyWayIDMap, block.key)
	}

	block.key = key
	block.page = page
	block.valid = true
	s.keyWayIDMap[key] = wayID
}

// Evict picks the least recently used way. The way stays in the set and is
// expected to be overwritten with Update and then visited.
func (s *setImpl) Evict() (wayID int, ok bool) {
	if len(s.visitList) == 0 {
		return 0, false
	}

	leastVisited := s.visitList[0]
	s.visitList = s.visitList[1:]

	return leastVisited.wayID, true
}

func (s *setImpl) Visit(wayID int) {
	block := s.blocks[wayID]

	for i, b := range s.visitList {
		if b.wayID == wayID {
			s.visitList = append(s.visitList[:i], s.visitList[i+1:]...)
			break
		}
	}

	s.visitCount++
	block.lastVisit = s.visitCount

	index := sort.Search(len(s.visitList), func(i int) bool {
		return s.visitList[i].lastVisit > block.lastVisit
	})

	s.visitList = append(s.visitList, nil)
	copy(s.visitList[index+1:], s.visitList[index:])
	s.visitList[index] = block
}

func (s *setImpl) Block(wayID int) (Key, vm.Page, bool) {
	b := s.blocks[wayID]
	return b.key, b.page, b.valid
}

func (s *setImpl) Len() int {
	return len(s.keyWayIDMap)
}
