// Package address provides the Address and Length value types used to
// describe locations and sizes in a target's virtual or physical memory.
package address

import (
	"cmp"
	"math"
	"strconv"
)

// Address is a byte address in either the virtual or the physical address
// space of a target. Which space a value belongs to is tracked by the caller.
type Address uint64

// Invalid is a sentinel callers may use for "no address". Translation never
// returns it in place of an error.
const Invalid = Address(math.MaxUint64)

// Of converts any integer to an Address, with the same widening and
// truncation rules as a Go conversion.
func Of[T Integer](v T) Address {
	return Address(uint64(v))
}

// Uint64 returns the raw address value.
func (a Address) Uint64() uint64 {
	return uint64(a)
}

// Uintptr returns the address as a platform-sized integer.
func (a Address) Uintptr() uintptr {
	return uintptr(a)
}

func (a Address) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// IsValid reports whether the address differs from Invalid.
func (a Address) IsValid() bool {
	return a != Invalid
}

// Compare returns -1, 0 or +1 depending on whether a is smaller than, equal
// to or larger than o.
func (a Address) Compare(o Address) int {
	return cmp.Compare(a, o)
}

// Less reports whether a comes before o.
func (a Address) Less(o Address) bool {
	return a < o
}

// Add returns a+l. It panics if the result does not fit in 64 bits.
func (a Address) Add(l Length) Address {
	return Address(must(add64("add", uint64(a), uint64(l))))
}

// Sub returns a-l. It panics if the result would be negative.
func (a Address) Sub(l Length) Address {
	return Address(must(sub64("sub", uint64(a), uint64(l))))
}

// Diff returns the distance from o to a. It panics if o is above a.
func (a Address) Diff(o Address) Length {
	return Length(must(sub64("diff", uint64(a), uint64(o))))
}

// CheckedAdd returns a+l or an error wrapping ErrOverflow.
func (a Address) CheckedAdd(l Length) (Address, error) {
	v, err := add64("add", uint64(a), uint64(l))
	return Address(v), err
}

// CheckedSub returns a-l or an error wrapping ErrUnderflow.
func (a Address) CheckedSub(l Length) (Address, error) {
	v, err := sub64("sub", uint64(a), uint64(l))
	return Address(v), err
}

// CheckedDiff returns a-o as a Length or an error wrapping ErrUnderflow.
func (a Address) CheckedDiff(o Address) (Length, error) {
	v, err := sub64("diff", uint64(a), uint64(o))
	return Length(v), err
}

// AddAssign adds l to the address in place.
func (a *Address) AddAssign(l Length) {
	*a = a.Add(l)
}

// SubAssign subtracts l from the address in place.
func (a *Address) SubAssign(l Length) {
	*a = a.Sub(l)
}

// AddInt adds a signed or unsigned delta of any width to a.
func AddInt[T Integer](a Address, delta T) (Address, error) {
	v, err := addSigned("add", uint64(a), delta)
	return Address(v), err
}

// AlignDown rounds a down to a multiple of size, which must be a power of
// two.
func (a Address) AlignDown(size Length) Address {
	mustPowerOfTwo(uint64(size))
	return a &^ Address(size-1)
}

// AlignUp rounds a up to a multiple of size, which must be a power of two.
// It panics if the rounded address overflows.
func (a Address) AlignUp(size Length) Address {
	mustPowerOfTwo(uint64(size))
	return a.Add(size - 1).AlignDown(size)
}

// PageOffset returns the offset of a within a page of the given size.
func (a Address) PageOffset(size Length) Length {
	mustPowerOfTwo(uint64(size))
	return Length(a & Address(size-1))
}
