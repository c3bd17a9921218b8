package vm

import (
	"encoding/binary"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/hooking"
	"github.com/sarchlab/flowmem/idgen"
	"github.com/sarchlab/flowmem/mem"
)

// HookPosWalkStart fires before a batch of walks reads its first level.
var HookPosWalkStart = &hooking.HookPos{Name: "WalkStart"}

// HookPosWalkLevel fires after each level of a batch has been read. The
// detail is the level index.
var HookPosWalkLevel = &hooking.HookPos{Name: "WalkLevel"}

// HookPosWalkDone fires when every walk in a batch has finished.
var HookPosWalkDone = &hooking.HookPos{Name: "WalkDone"}

// WalkInfo is the hook item of a batch of walks. Results is filled in when
// the batch is done.
type WalkInfo struct {
	ID       string
	Arch     string
	DTB      address.Address
	NumAddrs int
	Results  []Translation
}

// A Cache remembers pages found by earlier walks. Lookup must return a page
// whose VAddr and PAddr describe vaddr itself.
type Cache interface {
	Lookup(dtb, vaddr address.Address) (Page, bool)
	Insert(dtb address.Address, page Page)
}

// A Translator walks the page tables of one architecture stored in a
// PhysicalMemory.
type Translator struct {
	*hooking.HookableBase

	arch    Arch
	mem     mem.PhysicalMemory
	idGen   idgen.Generator
	batcher mem.BatcherBuilder
	cache   Cache
}

// NewTranslator creates a translator for arch that reads tables from m. It
// panics if arch is malformed.
func NewTranslator(arch Arch, m mem.PhysicalMemory) *Translator {
	return MakeBuilder().WithArch(arch).WithMemory(m).Build()
}

// Arch returns the paging format the translator walks.
func (t *Translator) Arch() Arch {
	return t.arch
}

// Memory returns the memory the translator reads from.
func (t *Translator) Memory() mem.PhysicalMemory {
	return t.mem
}

// VirtualToPhysical resolves vaddr in the address space rooted at dtb.
func (t *Translator) VirtualToPhysical(
	dtb, vaddr address.Address,
) (address.Address, error) {
	page, err := t.Translate(dtb, vaddr)
	if err != nil {
		return 0, err
	}

	return page.PAddr, nil
}

// Translate resolves vaddr and describes the page that maps it.
func (t *Translator) Translate(dtb, vaddr address.Address) (Page, error) {
	res := t.TranslateBatch(dtb, []address.Address{vaddr})
	return res[0].Page, res[0].Err
}

type walk struct {
	vaddr  address.Address
	table  address.Address
	entry  [8]byte
	done   bool
	cached bool
	res    Translation
}

// TranslateBatch resolves every address in vaddrs. All walks advance one
// level at a time and share a Batcher, so a batch costs at most one backend
// call per level no matter how many addresses it holds.
//
// A backend failure fails every walk that was waiting on that level's
// reads. The result slice is parallel to vaddrs. Addresses found in the
// cache, if one is set, are not walked.
func (t *Translator) TranslateBatch(
	dtb address.Address,
	vaddrs []address.Address,
) []Translation {
	info := &WalkInfo{
		ID:       t.idGen.Generate(),
		Arch:     t.arch.Name,
		DTB:      dtb,
		NumAddrs: len(vaddrs),
	}
	t.InvokeHook(hooking.HookCtx{Domain: t, Pos: HookPosWalkStart, Item: info})

	walks := t.startWalks(dtb, vaddrs)
	batcher := t.batcher.Build(t.mem).ReadPrealloc(len(walks))

	for level := range t.arch.Levels {
		if !t.queueLevel(batcher, walks, level) {
			break
		}

		err := batcher.CommitRW()
		for i := range walks {
			w := &walks[i]
			if w.done {
				continue
			}

			if err != nil {
				t.finish(w, Translation{VAddr: w.vaddr, Err: err})
				continue
			}

			t.step(w, level)
		}

		t.InvokeHook(hooking.HookCtx{
			Domain: t,
			Pos:    HookPosWalkLevel,
			Item:   info,
			Detail: level,
		})
	}

	results := make([]Translation, len(walks))
	for i := range walks {
		w := &walks[i]
		results[i] = w.res

		if t.cache != nil && !w.cached && w.res.Err == nil {
			t.cache.Insert(t.root(dtb), w.res.Page)
		}
	}

	info.Results = results
	t.InvokeHook(hooking.HookCtx{Domain: t, Pos: HookPosWalkDone, Item: info})

	return results
}

func (t *Translator) startWalks(
	dtb address.Address,
	vaddrs []address.Address,
) []walk {
	root := t.root(dtb)

	walks := make([]walk, len(vaddrs))
	for i, vaddr := range vaddrs {
		walks[i].vaddr = vaddr
		walks[i].table = root

		if !t.arch.canonical(vaddr.Uint64()) {
			t.finish(&walks[i], Translation{
				VAddr: vaddr,
				Err: &TranslationError{
					VAddr: vaddr,
					Level: -1,
					Err:   ErrNonCanonical,
				},
			})

			continue
		}

		if t.cache == nil {
			continue
		}

		if page, ok := t.cache.Lookup(root, vaddr); ok {
			walks[i].cached = true
			t.finish(&walks[i], Translation{VAddr: vaddr, Page: page})
		}
	}

	return walks
}

func (t *Translator) root(dtb address.Address) address.Address {
	return t.arch.root(dtb)
}

// queueLevel queues the entry read of every unfinished walk. It returns false
// if nothing was queued.
func (t *Translator) queueLevel(
	batcher *mem.Batcher,
	walks []walk,
	level int,
) bool {
	lvl := t.arch.Levels[level]
	queued := false

	for i := range walks {
		w := &walks[i]
		if w.done {
			continue
		}

		offset := address.Length(lvl.index(w.vaddr.Uint64()) * uint64(t.arch.EntrySize))

		entryAddr, err := w.table.CheckedAdd(offset)
		if err != nil {
			t.finish(w, Translation{VAddr: w.vaddr, Err: err})
			continue
		}

		batcher.ReadInto(entryAddr, w.entry[:t.arch.EntrySize])
		queued = true
	}

	return queued
}

func (t *Translator) readEntry(w *walk) uint64 {
	if t.arch.EntrySize == 4 {
		return uint64(binary.LittleEndian.Uint32(w.entry[:4]))
	}

	return binary.LittleEndian.Uint64(w.entry[:])
}

// step interprets the entry a walk just read at level.
func (t *Translator) step(w *walk, level int) {
	lvl := t.arch.Levels[level]
	entry := t.readEntry(w)
	last := level == len(t.arch.Levels)-1

	fail := func(cause error) {
		t.finish(w, Translation{
			VAddr: w.vaddr,
			Err: &TranslationError{
				VAddr:     w.vaddr,
				Level:     level,
				LevelName: lvl.Name,
				Entry:     entry,
				Err:       cause,
			},
		})
	}

	if entry&t.arch.PresentBit == 0 {
		fail(ErrNotPresent)
		return
	}

	if entry&lvl.Reserved != 0 {
		fail(ErrUnsupported)
		return
	}

	large := !last && entry&t.arch.LargePageBit != 0
	if large && (!lvl.LargePage || entry&lvl.LargeReserved != 0) {
		fail(ErrUnsupported)
		return
	}

	base := entry & t.arch.AddrMask
	if !large && !last {
		w.table = address.Address(base)
		return
	}

	size := lvl.PageSize()
	base &^= size - 1
	t.finish(w, Translation{
		VAddr: w.vaddr,
		Page: Page{
			VAddr:    w.vaddr,
			PAddr:    address.Address(base | w.vaddr.Uint64()&(size-1)),
			PageBase: address.Address(base),
			PageSize: address.Length(size),
			Level:    level,
		},
	})
}

func (t *Translator) finish(w *walk, res Translation) {
	w.done = true
	w.res = res
}
