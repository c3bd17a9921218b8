package mem

import (
	"sync/atomic"

	"github.com/sarchlab/flowmem/address"
)

// Stats is a snapshot of the traffic seen by a CallCounter.
type Stats struct {
	ReadCalls     uint64 `json:"read_calls"`
	WriteCalls    uint64 `json:"write_calls"`
	ReadElements  uint64 `json:"read_elements"`
	WriteElements uint64 `json:"write_elements"`
	ReadBytes     uint64 `json:"read_bytes"`
	WriteBytes    uint64 `json:"write_bytes"`
	FailedCalls   uint64 `json:"failed_calls"`
}

// A CallCounter wraps a PhysicalMemory and counts the calls, elements and
// bytes that pass through it. It is safe to read the counters while another
// goroutine uses the memory.
type CallCounter struct {
	name  string
	inner PhysicalMemory

	readCalls, writeCalls       atomic.Uint64
	readElements, writeElements atomic.Uint64
	readBytes, writeBytes       atomic.Uint64
	failedCalls                 atomic.Uint64
}

// NewCallCounter wraps inner. The name identifies the counter in monitoring.
func NewCallCounter(name string, inner PhysicalMemory) *CallCounter {
	return &CallCounter{name: name, inner: inner}
}

// Name returns the name given at construction.
func (c *CallCounter) Name() string {
	return c.name
}

// Inner returns the wrapped memory.
func (c *CallCounter) Inner() PhysicalMemory {
	return c.inner
}

// PhysReadIter counts the call and forwards it.
func (c *CallCounter) PhysReadIter(it ReadIter) error {
	c.readCalls.Add(1)

	err := c.inner.PhysReadIter(c.count(it, &c.readElements, &c.readBytes))
	if err != nil {
		c.failedCalls.Add(1)
	}

	return err
}

// PhysWriteIter counts the call and forwards it.
func (c *CallCounter) PhysWriteIter(it WriteIter) error {
	c.writeCalls.Add(1)

	err := c.inner.PhysWriteIter(c.count(it, &c.writeElements, &c.writeBytes))
	if err != nil {
		c.failedCalls.Add(1)
	}

	return err
}

func (c *CallCounter) count(
	it ReadIter,
	elements, bytes *atomic.Uint64,
) ReadIter {
	return func(yield func(address.Address, []byte) bool) {
		for addr, buf := range it {
			elements.Add(1)
			bytes.Add(uint64(len(buf)))

			if !yield(addr, buf) {
				return
			}
		}
	}
}

// Stats returns a snapshot of the counters.
func (c *CallCounter) Stats() Stats {
	return Stats{
		ReadCalls:     c.readCalls.Load(),
		WriteCalls:    c.writeCalls.Load(),
		ReadElements:  c.readElements.Load(),
		WriteElements: c.writeElements.Load(),
		ReadBytes:     c.readBytes.Load(),
		WriteBytes:    c.writeBytes.Load(),
		FailedCalls:   c.failedCalls.Load(),
	}
}

// Reset zeroes all counters.
func (c *CallCounter) Reset() {
	for _, v := range []*atomic.Uint64{
		&c.readCalls, &c.writeCalls,
		&c.readElements, &c.writeElements,
		&c.readBytes, &c.writeBytes,
		&c.failedCalls,
	} {
		v.Store(0)
	}
}

var _ PhysicalMemory = (*CallCounter)(nil)
