package vm

import (
	"github.com/sarchlab/flowmem/hooking"
	"github.com/sarchlab/flowmem/idgen"
	"github.com/sarchlab/flowmem/mem"
)

// A Builder can build Translators.
type Builder struct {
	arch         Arch
	mem          mem.PhysicalMemory
	idGen        idgen.Generator
	cache        Cache
	hooks        []hooking.Hook
	batcherHooks []hooking.Hook
}

// MakeBuilder creates a builder for x64 translators.
func MakeBuilder() Builder {
	return Builder{
		arch: X64,
	}
}

// WithArch sets the paging format to walk.
func (b Builder) WithArch(arch Arch) Builder {
	b.arch = arch
	return b
}

// WithMemory sets the memory that holds the page tables.
func (b Builder) WithMemory(m mem.PhysicalMemory) Builder {
	b.mem = m
	return b
}

// WithIDGenerator sets the generator that labels walk batches and the
// commits they issue.
func (b Builder) WithIDGenerator(g idgen.Generator) Builder {
	b.idGen = g
	return b
}

// WithCache sets a translation cache consulted before walking.
func (b Builder) WithCache(c Cache) Builder {
	b.cache = c
	return b
}

// WithHook adds a hook that observes walks.
func (b Builder) WithHook(h hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], h)
	return b
}

// WithBatcherHook adds a hook to the Batchers the translator uses for its
// entry reads.
func (b Builder) WithBatcherHook(h hooking.Hook) Builder {
	b.batcherHooks = append(b.batcherHooks[:len(b.batcherHooks):len(b.batcherHooks)], h)
	return b
}

// Build creates the Translator. It panics if the arch is malformed or no
// memory was set.
func (b Builder) Build() *Translator {
	if err := b.arch.Validate(); err != nil {
		panic(err)
	}

	if b.mem == nil {
		panic("translator needs a physical memory")
	}

	idGen := b.idGen
	if idGen == nil {
		idGen = idgen.NewSequential()
	}

	batcher := mem.MakeBatcherBuilder().WithIDGenerator(idGen)
	for _, h := range b.batcherHooks {
		batcher = batcher.WithHook(h)
	}

	t := &Translator{
		HookableBase: hooking.NewHookableBase(),
		arch:         b.arch,
		mem:          b.mem,
		idGen:        idGen,
		batcher:      batcher,
		cache:        b.cache,
	}

	for _, h := range b.hooks {
		t.AcceptHook(h)
	}

	return t
}
