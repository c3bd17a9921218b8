// Package mem defines the physical-memory capability every backend
// implements, together with the Batcher that coalesces many small accesses
// into a single backend call.
package mem

import (
	"encoding/binary"
	"iter"

	"github.com/sarchlab/flowmem/address"
)

// ReadIter yields (address, buffer) pairs. Each buffer must be filled with
// the target memory starting at the paired address.
type ReadIter = iter.Seq2[address.Address, []byte]

// WriteIter yields (address, data) pairs. Each data slice is written to the
// target starting at the paired address.
type WriteIter = iter.Seq2[address.Address, []byte]

// PhysicalMemory is the boundary between flowmem and a target's physical
// memory.
//
// Both methods consume a finite, single-pass sequence. Every element must be
// executed exactly once before the method returns, in whatever order the
// implementation prefers. The call succeeds only if all elements succeed; on
// failure the returned error should wrap ErrIO. Elements of one call that
// overlap in the target give unspecified results.
type PhysicalMemory interface {
	PhysReadIter(it ReadIter) error
	PhysWriteIter(it WriteIter) error
}

// ReadReq is a queued read: Buf is filled from Addr onwards.
type ReadReq struct {
	Addr address.Address
	Buf  []byte
}

// WriteReq is a queued write: Data is stored from Addr onwards.
type WriteReq struct {
	Addr address.Address
	Data []byte
}

// ReadIterOf turns a list of read requests into a ReadIter.
func ReadIterOf(reqs []ReadReq) ReadIter {
	return func(yield func(address.Address, []byte) bool) {
		for _, r := range reqs {
			if !yield(r.Addr, r.Buf) {
				return
			}
		}
	}
}

// WriteIterOf turns a list of write requests into a WriteIter.
func WriteIterOf(reqs []WriteReq) WriteIter {
	return func(yield func(address.Address, []byte) bool) {
		for _, r := range reqs {
			if !yield(r.Addr, r.Data) {
				return
			}
		}
	}
}

func single(addr address.Address, buf []byte) iter.Seq2[address.Address, []byte] {
	return func(yield func(address.Address, []byte) bool) {
		yield(addr, buf)
	}
}

// PhysRead fills buf from addr with a single backend call.
func PhysRead(m PhysicalMemory, addr address.Address, buf []byte) error {
	return m.PhysReadIter(single(addr, buf))
}

// PhysWrite stores data at addr with a single backend call.
func PhysWrite(m PhysicalMemory, addr address.Address, data []byte) error {
	return m.PhysWriteIter(single(addr, data))
}

// PhysReadUint64 reads a little-endian 64-bit value.
func PhysReadUint64(m PhysicalMemory, addr address.Address) (uint64, error) {
	var buf [8]byte
	if err := PhysRead(m, addr, buf[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(buf[:]), nil
}

// PhysReadUint32 reads a little-endian 32-bit value.
func PhysReadUint32(m PhysicalMemory, addr address.Address) (uint32, error) {
	var buf [4]byte
	if err := PhysRead(m, addr, buf[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}
