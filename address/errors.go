package address

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrOverflow is reported when an arithmetic result exceeds the 64-bit range.
var ErrOverflow = errors.New("arithmetic overflow")

// ErrUnderflow is reported when an arithmetic result would drop below zero.
var ErrUnderflow = errors.New("arithmetic underflow")

// An ArithmeticError describes a failed Address or Length operation.
type ArithmeticError struct {
	Op  string
	Lhs uint64
	Rhs uint64
	Err error
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s 0x%x, 0x%x: %v", e.Op, e.Lhs, e.Rhs, e.Err)
}

func (e *ArithmeticError) Unwrap() error {
	return e.Err
}

// Integer is the set of integer types Address and Length can be built from
// and combined with.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

func add64(op string, a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, &ArithmeticError{Op: op, Lhs: a, Rhs: b, Err: ErrOverflow}
	}

	return sum, nil
}

func sub64(op string, a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, &ArithmeticError{Op: op, Lhs: a, Rhs: b, Err: ErrUnderflow}
	}

	return diff, nil
}

func mul64(op string, a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, &ArithmeticError{Op: op, Lhs: a, Rhs: b, Err: ErrOverflow}
	}

	return lo, nil
}

// addSigned adds a possibly negative delta to a.
func addSigned[T Integer](op string, a uint64, delta T) (uint64, error) {
	if delta < 0 {
		return sub64(op, a, magnitude(delta))
	}

	return add64(op, a, uint64(delta))
}

// magnitude returns |v| for a negative v. Going through v+1 keeps
// math.MinInt64 representable.
func magnitude[T Integer](v T) uint64 {
	return uint64(-(int64(v) + 1)) + 1
}

func must(v uint64, err error) uint64 {
	if err != nil {
		panic(err)
	}

	return v
}

func mustPowerOfTwo(size uint64) {
	if size == 0 || size&(size-1) != 0 {
		panic(fmt.Sprintf("size 0x%x is not a power of two", size))
	}
}
