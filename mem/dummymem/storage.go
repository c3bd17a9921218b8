package dummymem

import (
	"sync"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem"
)

const unitSize = uint64(4096)

// A Storage keeps the bytes of a simulated physical address space.
//
// The storage manages memory in 4 KiB units. Units that are never written are
// never allocated and read back as zeros.
type Storage struct {
	sync.RWMutex
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity address.Length) *Storage {
	storage := new(Storage)

	storage.capacity = capacity.Uint64()
	storage.data = make(map[uint64][]byte)

	return storage
}

// Capacity returns the size of the address space.
func (s *Storage) Capacity() address.Length {
	return address.Length(s.capacity)
}

func (s *Storage) checkRange(addr address.Address, n int) error {
	end, err := addr.CheckedAdd(address.LengthOf(n))
	if err != nil || end.Uint64() > s.capacity {
		return mem.ErrOutOfRange
	}

	return nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % unitSize
	baseAddr = addr - inUnitAddr

	return
}

// Read fills buf with the bytes starting at addr.
func (s *Storage) Read(addr address.Address, buf []byte) error {
	if err := s.checkRange(addr, len(buf)); err != nil {
		return err
	}

	s.RLock()
	defer s.RUnlock()

	currAddr := addr.Uint64()
	dataOffset := uint64(0)

	for dataOffset < uint64(len(buf)) {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(uint64(len(buf))-dataOffset, unitSize-inUnitAddr)
		dst := buf[dataOffset : dataOffset+lenToRead]

		if unit, ok := s.data[baseAddr]; ok {
			copy(dst, unit[inUnitAddr:inUnitAddr+lenToRead])
		} else {
			clear(dst)
		}

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return nil
}

// Write stores data starting at addr.
func (s *Storage) Write(addr address.Address, data []byte) error {
	if err := s.checkRange(addr, len(data)); err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	currAddr := addr.Uint64()
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := min(uint64(len(data))-dataOffset, unitSize-inUnitAddr)

		unit, ok := s.data[baseAddr]
		if !ok {
			unit = make([]byte, unitSize)
			s.data[baseAddr] = unit
		}

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// NumAllocatedUnits returns how many 4 KiB units hold data.
func (s *Storage) NumAllocatedUnits() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.data)
}
