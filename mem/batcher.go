package mem

import (
	"errors"
	"fmt"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/hooking"
	"github.com/sarchlab/flowmem/idgen"
)

// HookPosBeforeCommit fires before a Batcher flushes its queues.
var HookPosBeforeCommit = &hooking.HookPos{Name: "BeforeCommit"}

// HookPosAfterCommit fires after a Batcher flushed its queues. The CommitInfo
// item carries the combined error, if any.
var HookPosAfterCommit = &hooking.HookPos{Name: "AfterCommit"}

// CommitInfo summarizes one CommitRW call.
type CommitInfo struct {
	ID         string
	NumReads   int
	NumWrites  int
	ReadBytes  address.Length
	WriteBytes address.Length
	Err        error
}

func (c *CommitInfo) String() string {
	return fmt.Sprintf("commit %s: %d reads (%s), %d writes (%s)",
		c.ID, c.NumReads, c.ReadBytes, c.NumWrites, c.WriteBytes)
}

// A Batcher queues reads and writes against caller-owned buffers and flushes
// them with one backend call per direction.
//
// Queued buffers are borrowed, not copied. The caller must not touch a
// queued buffer, or queue overlapping ones, until CommitRW returns.
type Batcher struct {
	*hooking.HookableBase

	mem   PhysicalMemory
	idGen idgen.Generator

	reads      []ReadReq
	writes     []WriteReq
	readBytes  address.Length
	writeBytes address.Length
}

// NewBatcher creates a Batcher that flushes into m.
func NewBatcher(m PhysicalMemory) *Batcher {
	return MakeBatcherBuilder().Build(m)
}

// ReadPrealloc reserves room for at least n more queued reads.
func (b *Batcher) ReadPrealloc(n int) *Batcher {
	b.reads = grow(b.reads, n)
	return b
}

// WritePrealloc reserves room for at least n more queued writes.
func (b *Batcher) WritePrealloc(n int) *Batcher {
	b.writes = grow(b.writes, n)
	return b
}

func grow[T any](s []T, n int) []T {
	if n <= cap(s)-len(s) {
		return s
	}

	grown := make([]T, len(s), len(s)+n)
	copy(grown, s)

	return grown
}

// ReadInto queues a read of len(buf) bytes starting at addr. The buffer is
// filled when the batch commits.
func (b *Batcher) ReadInto(addr address.Address, buf []byte) *Batcher {
	b.reads = append(b.reads, ReadReq{Addr: addr, Buf: buf})
	b.readBytes.AddAssign(address.LengthOf(len(buf)))

	return b
}

// WriteFrom queues a write of data at addr. Nothing is written until the
// batch commits.
func (b *Batcher) WriteFrom(addr address.Address, data []byte) *Batcher {
	b.writes = append(b.writes, WriteReq{Addr: addr, Data: data})
	b.writeBytes.AddAssign(address.LengthOf(len(data)))

	return b
}

// NumReads returns the number of queued reads.
func (b *Batcher) NumReads() int {
	return len(b.reads)
}

// NumWrites returns the number of queued writes.
func (b *Batcher) NumWrites() int {
	return len(b.writes)
}

// CommitRW flushes all queued reads with one PhysReadIter call and all queued
// writes with one PhysWriteIter call, then empties the queues. A direction
// with nothing queued is skipped.
//
// Both directions are attempted even if the reads fail; the returned error
// joins both failures. Buffers the backend already filled keep their
// contents.
func (b *Batcher) CommitRW() error {
	if len(b.reads) == 0 && len(b.writes) == 0 {
		return nil
	}

	info := &CommitInfo{
		ID:         b.idGen.Generate(),
		NumReads:   len(b.reads),
		NumWrites:  len(b.writes),
		ReadBytes:  b.readBytes,
		WriteBytes: b.writeBytes,
	}
	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosBeforeCommit,
		Item:   info,
	})

	var readErr, writeErr error
	if len(b.reads) > 0 {
		readErr = b.mem.PhysReadIter(ReadIterOf(b.reads))
	}

	if len(b.writes) > 0 {
		writeErr = b.mem.PhysWriteIter(WriteIterOf(b.writes))
	}

	b.reset()

	info.Err = errors.Join(readErr, writeErr)
	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosAfterCommit,
		Item:   info,
	})

	return info.Err
}

// reset drops all queued requests but keeps the capacity.
func (b *Batcher) reset() {
	clear(b.reads)
	clear(b.writes)
	b.reads = b.reads[:0]
	b.writes = b.writes[:0]
	b.readBytes = 0
	b.writeBytes = 0
}

// A BatcherBuilder configures Batchers.
type BatcherBuilder struct {
	idGen idgen.Generator
	hooks []hooking.Hook
}

// MakeBatcherBuilder creates a BatcherBuilder with sequential commit IDs.
func MakeBatcherBuilder() BatcherBuilder {
	return BatcherBuilder{}
}

// WithIDGenerator sets the generator used to label commits.
func (b BatcherBuilder) WithIDGenerator(g idgen.Generator) BatcherBuilder {
	b.idGen = g
	return b
}

// WithHook adds a hook to every Batcher built.
func (b BatcherBuilder) WithHook(h hooking.Hook) BatcherBuilder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], h)
	return b
}

// Build creates a Batcher bound to m.
func (b BatcherBuilder) Build(m PhysicalMemory) *Batcher {
	if m == nil {
		panic("batcher needs a physical memory")
	}

	batcher := &Batcher{
		HookableBase: hooking.NewHookableBase(),
		mem:          m,
		idGen:        b.idGen,
	}

	if batcher.idGen == nil {
		batcher.idGen = idgen.NewSequential()
	}

	for _, h := range b.hooks {
		batcher.AcceptHook(h)
	}

	return batcher
}
