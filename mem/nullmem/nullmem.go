// Package nullmem provides a PhysicalMemory that performs no I/O. It only
// walks the submitted sequence, which makes it the baseline for measuring
// per-element overhead.
package nullmem

import (
	"sync/atomic"

	"github.com/sarchlab/flowmem/mem"
)

// Memory consumes every sequence and counts its elements. Buffers are left
// untouched.
type Memory struct {
	elements atomic.Uint64
}

// New creates a null memory.
func New() *Memory {
	return &Memory{}
}

// PhysReadIter consumes it.
func (m *Memory) PhysReadIter(it mem.ReadIter) error {
	m.consume(it)
	return nil
}

// PhysWriteIter consumes it.
func (m *Memory) PhysWriteIter(it mem.WriteIter) error {
	m.consume(it)
	return nil
}

func (m *Memory) consume(it mem.ReadIter) {
	n := uint64(0)
	for range it {
		n++
	}

	m.elements.Add(n)
}

// Elements returns how many elements have been consumed so far.
func (m *Memory) Elements() uint64 {
	return m.elements.Load()
}

var _ mem.PhysicalMemory = (*Memory)(nil)
