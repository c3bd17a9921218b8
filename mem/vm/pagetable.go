// Package vm resolves virtual addresses into physical addresses by walking
// hardware page tables stored in a target's physical memory.
package vm

import (
	"errors"
	"fmt"

	"github.com/sarchlab/flowmem/address"
)

// ErrNotPresent is reported when a walk meets an entry whose present bit is
// clear. This is the common "unmapped or swapped out" case.
var ErrNotPresent = errors.New("page not present")

// ErrUnsupported is reported for encodings the translator cannot interpret:
// reserved bits, large-page bits where none are allowed, or an unknown
// architecture.
var ErrUnsupported = errors.New("unsupported paging encoding")

// ErrNonCanonical is reported for virtual addresses outside the range the
// architecture can map.
var ErrNonCanonical = errors.New("non-canonical virtual address")

// A TranslationError tells where a walk stopped and why. Level is -1 when the
// walk was rejected before reading any entry.
type TranslationError struct {
	VAddr     address.Address
	Level     int
	LevelName string
	Entry     uint64
	Err       error
}

func (e *TranslationError) Error() string {
	if e.Level < 0 {
		return fmt.Sprintf("translate %s: %v", e.VAddr, e.Err)
	}

	return fmt.Sprintf("translate %s: %s entry 0x%x (level %d): %v",
		e.VAddr, e.LevelName, e.Entry, e.Level, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// A Page describes how one virtual address maps to physical memory.
type Page struct {
	// VAddr is the virtual address that was translated.
	VAddr address.Address

	// PAddr is the physical address VAddr resolves to.
	PAddr address.Address

	// PageBase is the physical start of the page holding PAddr.
	PageBase address.Address

	// PageSize is the size of the page, e.g. 4 KiB or 2 MiB.
	PageSize address.Length

	// Level is the index of the table level whose entry mapped the page.
	Level int
}

// VirtualBase returns the virtual start of the page.
func (p Page) VirtualBase() address.Address {
	return p.VAddr.AlignDown(p.PageSize)
}

// IsLarge reports whether the page was mapped above the last level.
func (p Page) IsLarge(arch Arch) bool {
	return p.Level < len(arch.Levels)-1
}

// Translation is the outcome of translating one address in a batch.
type Translation struct {
	VAddr address.Address
	Page  Page
	Err   error
}

// PAddr returns the resolved physical address, or the error.
func (t Translation) PAddr() (address.Address, error) {
	if t.Err != nil {
		return 0, t.Err
	}

	return t.Page.PAddr, nil
}
