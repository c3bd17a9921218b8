package mem

import (
	"errors"
	"fmt"

	"github.com/sarchlab/flowmem/address"
)

// ErrIO marks every failure of the physical transport.
var ErrIO = errors.New("physical memory I/O error")

// ErrOutOfRange is the cause reported when an element touches memory the
// backend does not have.
var ErrOutOfRange = errors.New("address out of range")

// ErrReadOnly is the cause reported when a backend cannot accept writes.
var ErrReadOnly = errors.New("memory is read-only")

// Op names the direction of a failed access.
type Op string

// The two access directions.
const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// An IOError describes one failed element of a backend call. It matches both
// ErrIO and its cause with errors.Is.
type IOError struct {
	Op   Op
	Addr address.Address
	Len  address.Length
	Err  error
}

// NewIOError creates an IOError for an element of len(buf) bytes at addr.
func NewIOError(op Op, addr address.Address, buf []byte, cause error) *IOError {
	return &IOError{
		Op:   op,
		Addr: addr,
		Len:  address.LengthOf(len(buf)),
		Err:  cause,
	}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("phys %s %s+%s: %v", e.Op, e.Addr, e.Len, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}
