// Package idgen provides the ID generators used to label batch commits and
// translation walks.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces unique identifiers.
type Generator interface {
	// Generate an ID
	Generate() string
}

// NewSequential returns a generator whose first emitted ID is "1". IDs are
// deterministic, which keeps recorded traces comparable across runs.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewParallel returns a generator that emits globally unique xid strings.
// The IDs are not deterministic.
func NewParallel() Generator {
	return parallelGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}

type parallelGenerator struct{}

func (parallelGenerator) Generate() string {
	return xid.New().String()
}
