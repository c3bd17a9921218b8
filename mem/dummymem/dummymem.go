// Package dummymem provides an in-process PhysicalMemory backed by sparse
// storage. It is the reference backend for tests and demos.
package dummymem

import (
	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem"
	"golang.org/x/sync/errgroup"
)

// Memory is a PhysicalMemory over a Storage.
//
// An element that falls outside the capacity fails the whole call with an
// error wrapping mem.ErrOutOfRange; the other elements of the call are still
// executed.
type Memory struct {
	storage     *Storage
	parallelism int
}

// New creates a memory of the given capacity that executes elements one at a
// time.
func New(capacity address.Length) *Memory {
	return &Memory{
		storage:     NewStorage(capacity),
		parallelism: 1,
	}
}

// WithParallelism lets a call execute up to n elements concurrently. The call
// still returns only after every element completed.
func (m *Memory) WithParallelism(n int) *Memory {
	if n < 1 {
		n = 1
	}

	m.parallelism = n

	return m
}

// Storage exposes the underlying storage.
func (m *Memory) Storage() *Storage {
	return m.storage
}

// PhysReadIter fills every buffer from the storage.
func (m *Memory) PhysReadIter(it mem.ReadIter) error {
	return m.run(it, mem.OpRead, m.storage.Read)
}

// PhysWriteIter stores every buffer.
func (m *Memory) PhysWriteIter(it mem.WriteIter) error {
	return m.run(it, mem.OpWrite, m.storage.Write)
}

func (m *Memory) run(
	it mem.ReadIter,
	op mem.Op,
	access func(address.Address, []byte) error,
) error {
	if m.parallelism == 1 {
		var firstErr error

		for addr, buf := range it {
			if err := access(addr, buf); err != nil && firstErr == nil {
				firstErr = mem.NewIOError(op, addr, buf, err)
			}
		}

		return firstErr
	}

	var g errgroup.Group
	g.SetLimit(m.parallelism)

	for addr, buf := range it {
		g.Go(func() error {
			if err := access(addr, buf); err != nil {
				return mem.NewIOError(op, addr, buf, err)
			}

			return nil
		})
	}

	return g.Wait()
}

var _ mem.PhysicalMemory = (*Memory)(nil)
