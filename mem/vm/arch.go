package vm

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/sarchlab/flowmem/address"
)

// A Level describes one level of a paging hierarchy.
type Level struct {
	// Name is the conventional name of the table, e.g. "PML4".
	Name string

	// Shift is the lowest virtual-address bit indexed at this level. It is
	// also log2 of the region an entry at this level maps.
	Shift uint

	// Bits is the number of virtual-address bits indexing this level.
	Bits uint

	// LargePage reports whether a set large-page bit ends the walk here.
	LargePage bool

	// Reserved holds the bits that must be clear in a present entry.
	Reserved uint64

	// LargeReserved holds the bits that must be clear in a large-page entry,
	// in addition to Reserved.
	LargeReserved uint64

	// TableFlags are the flags written by Mapper when it points an entry at
	// this level to a new table.
	TableFlags uint64
}

// PageSize returns the size of the region an entry at this level maps.
func (l Level) PageSize() uint64 {
	return 1 << l.Shift
}

func (l Level) index(vaddr uint64) uint64 {
	return (vaddr >> l.Shift) & (1<<l.Bits - 1)
}

// Arch describes a paging format.
type Arch struct {
	Name string

	// EntrySize is the size of one table entry in bytes, 4 or 8.
	EntrySize int

	// Levels lists the tables from the root down to the last level.
	Levels []Level

	// AddrMask selects the physical-address bits of an entry.
	AddrMask uint64

	// DTBMask selects the table address from a page-table base value. Zero
	// means the base is used as is.
	DTBMask uint64

	PresentBit   uint64
	WritableBit  uint64
	LargePageBit uint64

	// SignExtended requires the virtual-address bits above the root level
	// to copy the top indexed bit. Otherwise they must be zero.
	SignExtended bool
}

// VirtualBits returns the number of virtual-address bits the levels index.
func (a Arch) VirtualBits() uint {
	top := a.Levels[0]
	return top.Shift + top.Bits
}

// TableSize returns the size in bytes of a table at the given level.
func (a Arch) TableSize(level int) uint64 {
	return uint64(a.EntrySize) << a.Levels[level].Bits
}

func (a Arch) root(dtb address.Address) address.Address {
	if a.DTBMask != 0 {
		return dtb & address.Address(a.DTBMask)
	}

	return dtb
}

func (a Arch) canonical(vaddr uint64) bool {
	vaBits := a.VirtualBits()
	if vaBits >= 64 {
		return true
	}

	high := vaddr >> vaBits
	if !a.SignExtended {
		return high == 0
	}

	if vaddr&(1<<(vaBits-1)) == 0 {
		return high == 0
	}

	return high == (1<<(64-vaBits))-1
}

// Validate reports whether the description is usable.
func (a Arch) Validate() error {
	if len(a.Levels) == 0 {
		return errors.New("arch has no levels")
	}

	if a.EntrySize != 4 && a.EntrySize != 8 {
		return fmt.Errorf("entry size %d is not 4 or 8", a.EntrySize)
	}

	if a.AddrMask == 0 {
		return errors.New("address mask is empty")
	}

	if bits.OnesCount64(a.PresentBit) != 1 {
		return errors.New("present bit must be a single bit")
	}

	if a.LargePageBit != 0 && bits.OnesCount64(a.LargePageBit) != 1 {
		return errors.New("large-page bit must be a single bit")
	}

	for i, l := range a.Levels {
		if l.Bits == 0 {
			return fmt.Errorf("level %d indexes no bits", i)
		}

		if i+1 < len(a.Levels) {
			next := a.Levels[i+1]
			if l.Shift != next.Shift+next.Bits {
				return fmt.Errorf("level %d does not continue level %d", i+1, i)
			}
		}
	}

	if a.VirtualBits() > 64 {
		return errors.New("levels index more than 64 bits")
	}

	return nil
}

// Flag bits shared by the x86 paging formats.
const (
	x86Present  = 1 << 0
	x86Writable = 1 << 1
	x86User     = 1 << 2
	x86PageSize = 1 << 7
)

// X86 is 32-bit paging with 4 MiB PSE pages. PSE-36 encodings are reported
// as unsupported.
var X86 = Arch{
	Name:      "x86",
	EntrySize: 4,
	Levels: []Level{
		{Name: "PD", Shift: 22, Bits: 10, LargePage: true,
			LargeReserved: 0x3fe000, TableFlags: x86Present | x86Writable | x86User},
		{Name: "PT", Shift: 12, Bits: 10},
	},
	AddrMask:     0xfffff000,
	DTBMask:      0xfffff000,
	PresentBit:   x86Present,
	WritableBit:  x86Writable,
	LargePageBit: x86PageSize,
}

// X86PAE is 32-bit PAE paging with 2 MiB large pages.
var X86PAE = Arch{
	Name:      "x86pae",
	EntrySize: 8,
	Levels: []Level{
		{Name: "PDPT", Shift: 30, Bits: 2, Reserved: 0x1e6, TableFlags: x86Present},
		{Name: "PD", Shift: 21, Bits: 9, LargePage: true,
			LargeReserved: 0x1fe000, TableFlags: x86Present | x86Writable | x86User},
		{Name: "PT", Shift: 12, Bits: 9},
	},
	AddrMask:     0x000ffffffffff000,
	DTBMask:      0xffffffe0,
	PresentBit:   x86Present,
	WritableBit:  x86Writable,
	LargePageBit: x86PageSize,
}

// X64 is 4-level long-mode paging with 1 GiB and 2 MiB large pages.
var X64 = Arch{
	Name:      "x64",
	EntrySize: 8,
	Levels: []Level{
		{Name: "PML4", Shift: 39, Bits: 9, Reserved: x86PageSize,
			TableFlags: x86Present | x86Writable | x86User},
		{Name: "PDPT", Shift: 30, Bits: 9, LargePage: true,
			LargeReserved: 0x3fffe000, TableFlags: x86Present | x86Writable | x86User},
		{Name: "PD", Shift: 21, Bits: 9, LargePage: true,
			LargeReserved: 0x1fe000, TableFlags: x86Present | x86Writable | x86User},
		{Name: "PT", Shift: 12, Bits: 9},
	},
	AddrMask:     0x000ffffffffff000,
	DTBMask:      0x000ffffffffff000,
	PresentBit:   x86Present,
	WritableBit:  x86Writable,
	LargePageBit: x86PageSize,
	SignExtended: true,
}

var builtinArchs = []Arch{X86, X86PAE, X64}

// ArchNames lists the names accepted by ArchByName.
func ArchNames() []string {
	names := make([]string, 0, len(builtinArchs))
	for _, a := range builtinArchs {
		names = append(names, a.Name)
	}

	return names
}

// ArchByName returns a built-in architecture. Unknown names yield an error
// wrapping ErrUnsupported.
func ArchByName(name string) (Arch, error) {
	for _, a := range builtinArchs {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}

	return Arch{}, fmt.Errorf("architecture %q: %w", name, ErrUnsupported)
}
