package mem_test

import (
	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem"
)

// patternByte is the byte a patternMemory returns at addr.
func patternByte(addr address.Address) byte {
	return byte(addr) ^ byte(addr>>8) ^ 0x5a
}

// patternMemory fills every read buffer with patternByte of each address and
// remembers every write.
type patternMemory struct {
	written map[address.Address]byte
	readErr error
}

func newPatternMemory() *patternMemory {
	return &patternMemory{written: make(map[address.Address]byte)}
}

func (m *patternMemory) PhysReadIter(it mem.ReadIter) error {
	for addr, buf := range it {
		for i := range buf {
			buf[i] = patternByte(addr + address.Address(i))
		}
	}

	return m.readErr
}

func (m *patternMemory) PhysWriteIter(it mem.WriteIter) error {
	for addr, data := range it {
		for i, b := range data {
			m.written[addr+address.Address(i)] = b
		}
	}

	return nil
}
