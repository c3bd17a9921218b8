package address

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Length is a byte count.
type Length uint64

// Byte-count units. The binary and the "decimal-named" constructors both use
// powers of 1024; every unit counts bytes, never bits.
const (
	B   Length = 1
	KiB        = 1024 * B
	MiB        = 1024 * KiB
	GiB        = 1024 * MiB
	TiB        = 1024 * GiB
)

// Zero returns the additive identity.
func Zero() Length {
	return 0
}

// LengthOf converts any integer to a Length. It panics on negative values.
func LengthOf[T Integer](v T) Length {
	if v < 0 {
		panic(&ArithmeticError{Op: "length", Lhs: 0, Rhs: uint64(v), Err: ErrUnderflow})
	}

	return Length(uint64(v))
}

func fromUnit(n uint64, unit Length) Length {
	return Length(must(mul64("scale", n, uint64(unit))))
}

// FromB returns a length of n bytes.
func FromB(n uint64) Length { return Length(n) }

// FromKB returns a length of n*1024 bytes.
func FromKB(n uint64) Length { return fromUnit(n, KiB) }

// FromKiB returns a length of n*1024 bytes.
func FromKiB(n uint64) Length { return fromUnit(n, KiB) }

// FromMB returns a length of n*1024^2 bytes.
func FromMB(n uint64) Length { return fromUnit(n, MiB) }

// FromMiB returns a length of n*1024^2 bytes.
func FromMiB(n uint64) Length { return fromUnit(n, MiB) }

// FromGB returns a length of n*1024^3 bytes.
func FromGB(n uint64) Length { return fromUnit(n, GiB) }

// FromGiB returns a length of n*1024^3 bytes.
func FromGiB(n uint64) Length { return fromUnit(n, GiB) }

// Uint64 returns the byte count.
func (l Length) Uint64() uint64 {
	return uint64(l)
}

// Int returns the byte count as an int. It panics if the value does not fit.
func (l Length) Int() int {
	if uint64(l) > math.MaxInt {
		panic(&ArithmeticError{Op: "int", Lhs: uint64(l), Err: ErrOverflow})
	}

	return int(l)
}

func (l Length) String() string {
	return "0x" + strconv.FormatUint(uint64(l), 16)
}

// HumanString formats the length with binary units, e.g. "2.0 MiB".
func (l Length) HumanString() string {
	return humanize.IBytes(uint64(l))
}

// IsZero reports whether l is zero.
func (l Length) IsZero() bool {
	return l == 0
}

// Add returns l+o. It panics on overflow.
func (l Length) Add(o Length) Length {
	return Length(must(add64("add", uint64(l), uint64(o))))
}

// Sub returns l-o. It panics on underflow.
func (l Length) Sub(o Length) Length {
	return Length(must(sub64("sub", uint64(l), uint64(o))))
}

// CheckedAdd returns l+o or an error wrapping ErrOverflow.
func (l Length) CheckedAdd(o Length) (Length, error) {
	v, err := add64("add", uint64(l), uint64(o))
	return Length(v), err
}

// CheckedSub returns l-o or an error wrapping ErrUnderflow.
func (l Length) CheckedSub(o Length) (Length, error) {
	v, err := sub64("sub", uint64(l), uint64(o))
	return Length(v), err
}

// AddAssign adds o to l in place.
func (l *Length) AddAssign(o Length) {
	*l = l.Add(o)
}

// SubAssign subtracts o from l in place.
func (l *Length) SubAssign(o Length) {
	*l = l.Sub(o)
}

// AddN adds an integer of any width to l. Negative values subtract.
func AddN[T Integer](l Length, n T) (Length, error) {
	v, err := addSigned("add", uint64(l), n)
	return Length(v), err
}

// SubN subtracts an integer of any width from l. Negative values add.
func SubN[T Integer](l Length, n T) (Length, error) {
	if n < 0 {
		v, err := add64("sub", uint64(l), magnitude(n))
		return Length(v), err
	}

	v, err := sub64("sub", uint64(l), uint64(n))
	return Length(v), err
}
