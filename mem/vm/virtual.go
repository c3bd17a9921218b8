package vm

import (
	"errors"

	"github.com/sarchlab/flowmem/address"
)

// chunk is the granularity ranges are split at before translation. It is
// the smallest page size of every supported architecture.
const chunk = 4 * address.KiB

// VirtualMemory reads and writes one address space through a Translator.
type VirtualMemory struct {
	t   *Translator
	dtb address.Address
}

// NewVirtualMemory binds t to the address space rooted at dtb.
func NewVirtualMemory(t *Translator, dtb address.Address) *VirtualMemory {
	return &VirtualMemory{t: t, dtb: dtb}
}

// DTB returns the page-table base of the address space.
func (v *VirtualMemory) DTB() address.Address {
	return v.dtb
}

type piece struct {
	vaddr address.Address
	buf   []byte
}

// split cuts buf, placed at vaddr, into pieces that do not cross a chunk
// boundary.
func split(vaddr address.Address, buf []byte) ([]piece, error) {
	if len(buf) == 0 {
		return nil, nil
	}

	if _, err := vaddr.CheckedAdd(address.Length(len(buf) - 1)); err != nil {
		return nil, err
	}

	pieces := make([]piece, 0, len(buf)/chunk.Int()+2)
	for len(buf) > 0 {
		n := min(len(buf), (chunk - vaddr.PageOffset(chunk)).Int())
		pieces = append(pieces, piece{vaddr: vaddr, buf: buf[:n]})
		buf = buf[n:]

		if len(buf) > 0 {
			vaddr = vaddr.Add(address.Length(n))
		}
	}

	return pieces, nil
}

func (v *VirtualMemory) translate(pieces []piece) []Translation {
	vaddrs := make([]address.Address, len(pieces))
	for i, p := range pieces {
		vaddrs[i] = p.vaddr
	}

	return v.t.TranslateBatch(v.dtb, vaddrs)
}

// ReadVirt fills buf from vaddr. It fails without touching physical memory
// if any page of the range does not translate.
func (v *VirtualMemory) ReadVirt(vaddr address.Address, buf []byte) error {
	pieces, err := split(vaddr, buf)
	if err != nil {
		return err
	}

	res := v.translate(pieces)
	for _, r := range res {
		if r.Err != nil {
			return r.Err
		}
	}

	b := v.t.batcher.Build(v.t.mem).ReadPrealloc(len(pieces))
	for i, p := range pieces {
		b.ReadInto(res[i].Page.PAddr, p.buf)
	}

	return b.CommitRW()
}

// WriteVirt stores data at vaddr. Nothing is written if any page of the
// range does not translate.
func (v *VirtualMemory) WriteVirt(vaddr address.Address, data []byte) error {
	pieces, err := split(vaddr, data)
	if err != nil {
		return err
	}

	res := v.translate(pieces)
	for _, r := range res {
		if r.Err != nil {
			return r.Err
		}
	}

	b := v.t.batcher.Build(v.t.mem).WritePrealloc(len(pieces))
	for i, p := range pieces {
		b.WriteFrom(res[i].Page.PAddr, p.buf)
	}

	return b.CommitRW()
}

// ReadVirtPartial fills buf from vaddr, zero-filling pieces that do not
// translate. It returns the failed translations and any backend error.
func (v *VirtualMemory) ReadVirtPartial(
	vaddr address.Address,
	buf []byte,
) ([]Translation, error) {
	pieces, err := split(vaddr, buf)
	if err != nil {
		return nil, err
	}

	res := v.translate(pieces)
	b := v.t.batcher.Build(v.t.mem).ReadPrealloc(len(pieces))

	var failed []Translation

	for i, p := range pieces {
		if res[i].Err != nil {
			clear(p.buf)
			failed = append(failed, res[i])

			continue
		}

		b.ReadInto(res[i].Page.PAddr, p.buf)
	}

	return failed, b.CommitRW()
}

// ReadAt implements io.ReaderAt over the virtual address space. Reading
// stops short with an error at the first piece that does not translate.
func (v *VirtualMemory) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}

	vaddr := address.Of(off)
	if len(p) == 0 {
		return 0, nil
	}

	failed, err := v.ReadVirtPartial(vaddr, p)
	if err != nil {
		return 0, err
	}

	if len(failed) == 0 {
		return len(p), nil
	}

	return failed[0].VAddr.Diff(vaddr).Int(), failed[0].Err
}
