package vm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem"
)

// ErrOutOfFrames is reported when a FrameAllocator has no room left.
var ErrOutOfFrames = errors.New("out of physical frames")

// ErrAlreadyMapped is reported when Map would replace an existing mapping.
var ErrAlreadyMapped = errors.New("virtual address already mapped")

// A FrameAllocator hands out physical memory for new page tables.
type FrameAllocator interface {
	// AllocFrame returns the base of size bytes aligned to size.
	AllocFrame(size address.Length) (address.Address, error)
}

// A BumpAllocator allocates frames upwards from a fixed physical range. It
// never frees.
type BumpAllocator struct {
	next address.Address
	end  address.Address
}

// NewBumpAllocator creates an allocator over [start, start+size).
func NewBumpAllocator(start address.Address, size address.Length) *BumpAllocator {
	return &BumpAllocator{next: start, end: start.Add(size)}
}

// AllocFrame carves the next aligned frame out of the range.
func (a *BumpAllocator) AllocFrame(size address.Length) (address.Address, error) {
	base := a.next.AlignUp(size)

	end, err := base.CheckedAdd(size)
	if err != nil || end > a.end {
		return 0, ErrOutOfFrames
	}

	a.next = end

	return base, nil
}

// A Mapper writes page-table entries of one architecture into a
// PhysicalMemory. It builds the structures a Translator later walks.
type Mapper struct {
	arch   Arch
	mem    mem.PhysicalMemory
	frames FrameAllocator
}

// NewMapper creates a mapper that stores tables in m and takes new table
// frames from frames.
func NewMapper(arch Arch, m mem.PhysicalMemory, frames FrameAllocator) *Mapper {
	if err := arch.Validate(); err != nil {
		panic(err)
	}

	return &Mapper{arch: arch, mem: m, frames: frames}
}

// allocTable returns a zeroed table for level. The table only exists in the
// returned buffer until the caller writes it out.
func (m *Mapper) allocTable(level int) (address.Address, []byte, error) {
	size := m.arch.TableSize(level)

	base, err := m.frames.AllocFrame(address.Length(max(size, 4096)))
	if err != nil {
		return 0, nil, err
	}

	return base, make([]byte, size), nil
}

// NewRoot allocates an empty root table and returns it as a page-table base.
func (m *Mapper) NewRoot() (address.Address, error) {
	root, table, err := m.allocTable(0)
	if err != nil {
		return 0, err
	}

	return root, mem.PhysWrite(m.mem, root, table)
}

func (m *Mapper) encode(entry uint64) []byte {
	buf := make([]byte, m.arch.EntrySize)
	m.put(buf, entry)

	return buf
}

func (m *Mapper) put(buf []byte, entry uint64) {
	if m.arch.EntrySize == 4 {
		binary.LittleEndian.PutUint32(buf, uint32(entry))
		return
	}

	binary.LittleEndian.PutUint64(buf, entry)
}

func (m *Mapper) readEntry(addr address.Address) (uint64, error) {
	if m.arch.EntrySize == 4 {
		v, err := mem.PhysReadUint32(m.mem, addr)
		return uint64(v), err
	}

	return mem.PhysReadUint64(m.mem, addr)
}

func (m *Mapper) entryOffset(level int, vaddr address.Address) address.Length {
	idx := m.arch.Levels[level].index(vaddr.Uint64())
	return address.Length(idx * uint64(m.arch.EntrySize))
}

func (m *Mapper) entryAddr(table address.Address, level int, vaddr address.Address) address.Address {
	return table.Add(m.entryOffset(level, vaddr))
}

func (m *Mapper) leafLevel(pageSize address.Length) (int, error) {
	for i, l := range m.arch.Levels {
		if l.PageSize() != pageSize.Uint64() {
			continue
		}

		if i == len(m.arch.Levels)-1 || l.LargePage {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%s page size %s: %w",
		m.arch.Name, pageSize.HumanString(), ErrUnsupported)
}

// Map maps the page of pageSize bytes at vaddr to paddr, creating missing
// intermediate tables. Both addresses must be aligned to pageSize.
func (m *Mapper) Map(
	dtb, vaddr, paddr address.Address,
	pageSize address.Length,
) error {
	leaf, err := m.leafLevel(pageSize)
	if err != nil {
		return err
	}

	if vaddr.PageOffset(pageSize) != 0 || paddr.PageOffset(pageSize) != 0 {
		return fmt.Errorf("map %s -> %s: not aligned to %s",
			vaddr, paddr, pageSize.HumanString())
	}

	if !m.arch.canonical(vaddr.Uint64()) {
		return fmt.Errorf("map %s: %w", vaddr, ErrNonCanonical)
	}

	b := mem.NewBatcher(m.mem)
	table := m.arch.root(dtb)

	// parent is the buffer of the last table created by this call. Entries
	// of new tables are set in their buffers so no two writes overlap.
	var parent []byte

	setEntry := func(table address.Address, level int, entry uint64) {
		off := m.entryOffset(level, vaddr)
		if parent != nil {
			m.put(parent[off:], entry)
			return
		}

		b.WriteFrom(table.Add(off), m.encode(entry))
	}

	for level := 0; level < leaf; level++ {
		if parent == nil {
			entry, err := m.readEntry(m.entryAddr(table, level, vaddr))
			if err != nil {
				return err
			}

			if entry&m.arch.PresentBit != 0 {
				if entry&m.arch.LargePageBit != 0 && m.arch.Levels[level].LargePage {
					return fmt.Errorf("map %s: %w", vaddr, ErrAlreadyMapped)
				}

				table = address.Address(entry & m.arch.AddrMask)

				continue
			}
		}

		next, buf, err := m.allocTable(level + 1)
		if err != nil {
			return err
		}

		setEntry(table, level, next.Uint64()|m.arch.Levels[level].TableFlags)
		b.WriteFrom(next, buf)
		table = next
		parent = buf
	}

	if parent == nil {
		entry, err := m.readEntry(m.entryAddr(table, leaf, vaddr))
		if err != nil {
			return err
		}

		if entry&m.arch.PresentBit != 0 {
			return fmt.Errorf("map %s: %w", vaddr, ErrAlreadyMapped)
		}
	}

	entry := paddr.Uint64() | m.arch.PresentBit | m.arch.WritableBit
	if leaf < len(m.arch.Levels)-1 {
		entry |= m.arch.LargePageBit
	}

	setEntry(table, leaf, entry)

	return b.CommitRW()
}

// Unmap clears the present bit of the entry that maps vaddr.
func (m *Mapper) Unmap(dtb, vaddr address.Address) error {
	table := m.arch.root(dtb)

	for level, lvl := range m.arch.Levels {
		addr := m.entryAddr(table, level, vaddr)

		entry, err := m.readEntry(addr)
		if err != nil {
			return err
		}

		if entry&m.arch.PresentBit == 0 {
			return &TranslationError{
				VAddr:     vaddr,
				Level:     level,
				LevelName: lvl.Name,
				Entry:     entry,
				Err:       ErrNotPresent,
			}
		}

		last := level == len(m.arch.Levels)-1
		if last || (lvl.LargePage && entry&m.arch.LargePageBit != 0) {
			return mem.PhysWrite(m.mem, addr, m.encode(entry&^m.arch.PresentBit))
		}

		table = address.Address(entry & m.arch.AddrMask)
	}

	return nil
}
