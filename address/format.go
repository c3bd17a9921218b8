package address

import (
	"fmt"
	"io"
)

// Format lets the integer verbs (%x, %X, %d, %o, %b) print the raw value,
// while %v and %s use String. Width and flags are honored.
func (a Address) Format(f fmt.State, verb rune) {
	formatUint(f, verb, uint64(a), a.String())
}

// Format lets the integer verbs (%x, %X, %d, %o, %b) print the raw value,
// while %v and %s use String.
func (l Length) Format(f fmt.State, verb rune) {
	formatUint(f, verb, uint64(l), l.String())
}

func formatUint(f fmt.State, verb rune, v uint64, s string) {
	switch verb {
	case 'x', 'X', 'd', 'o', 'O', 'b':
		fmt.Fprintf(f, fmt.FormatString(f, verb), v)
	case 's', 'v', 'q':
		fmt.Fprintf(f, fmt.FormatString(f, verb), s)
	default:
		_, _ = io.WriteString(f, s)
	}
}
