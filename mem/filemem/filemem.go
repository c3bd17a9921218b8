// Package filemem exposes a raw physical-memory dump file as a
// PhysicalMemory. Byte N of the file is physical address N.
package filemem

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem"
)

// Memory is a memory-mapped dump file.
//
// Reads beyond the end of the file fail with mem.ErrOutOfRange; nothing is
// zero-filled. Unless the file was opened read-only, writes land in a private
// copy-on-write mapping and are never written back to the file.
type Memory struct {
	path     string
	data     []byte
	readOnly bool
	unmap    func() error
}

// Open maps the dump at path with private, writable pages.
func Open(path string) (*Memory, error) {
	return open(path, false)
}

// OpenReadOnly maps the dump at path and rejects every write.
func OpenReadOnly(path string) (*Memory, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*Memory, error) {
	data, unmap, err := mapFile(path, !readOnly)
	if err != nil {
		return nil, fmt.Errorf("filemem: open %s: %w", path, err)
	}

	return &Memory{
		path:     path,
		data:     data,
		readOnly: readOnly,
		unmap:    unmap,
	}, nil
}

// Path returns the dump file path.
func (m *Memory) Path() string {
	return m.path
}

// Size returns the size of the dump.
func (m *Memory) Size() address.Length {
	return address.LengthOf(len(m.data))
}

// Close unmaps the file. The memory must not be used afterwards.
func (m *Memory) Close() error {
	if m.unmap == nil {
		return nil
	}

	err := m.unmap()
	m.unmap = nil
	m.data = nil

	return err
}

// WriteTo writes the current contents, including private writes, to w.
func (m *Memory) WriteTo(w io.Writer) (int64, error) {
	if m.data == nil {
		return 0, errors.New("filemem: memory is closed")
	}

	n, err := w.Write(m.data)

	return int64(n), err
}

func (m *Memory) window(addr address.Address, n int) ([]byte, error) {
	if m.data == nil {
		return nil, errors.New("filemem: memory is closed")
	}

	end, err := addr.CheckedAdd(address.LengthOf(n))
	if err != nil || end.Uint64() > uint64(len(m.data)) {
		return nil, mem.ErrOutOfRange
	}

	return m.data[addr.Uint64():end.Uint64()], nil
}

// PhysReadIter copies from the mapping into every buffer.
func (m *Memory) PhysReadIter(it mem.ReadIter) error {
	var firstErr error

	for addr, buf := range it {
		src, err := m.window(addr, len(buf))
		if err != nil {
			if firstErr == nil {
				firstErr = mem.NewIOError(mem.OpRead, addr, buf, err)
			}

			continue
		}

		copy(buf, src)
	}

	return firstErr
}

// PhysWriteIter copies every buffer into the private mapping.
func (m *Memory) PhysWriteIter(it mem.WriteIter) error {
	var firstErr error

	for addr, data := range it {
		dst, err := m.window(addr, len(data))
		if err == nil && m.readOnly {
			err = mem.ErrReadOnly
		}

		if err != nil {
			if firstErr == nil {
				firstErr = mem.NewIOError(mem.OpWrite, addr, data, err)
			}

			continue
		}

		copy(dst, data)
	}

	return firstErr
}

var _ mem.PhysicalMemory = (*Memory)(nil)
