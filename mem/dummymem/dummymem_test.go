package dummymem_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem"
	"github.com/sarchlab/flowmem/mem/dummymem"
)

var _ = Describe("Memory", func() {
	for _, parallelism := range []int{1, 4} {
		Context("with parallelism", func() {
			var m *dummymem.Memory

			BeforeEach(func() {
				m = dummymem.New(address.FromMiB(1)).WithParallelism(parallelism)
			})

			It("should execute every element of a batch", func() {
				b := mem.NewBatcher(m)
				for i := 0; i < 64; i++ {
					b.WriteFrom(address.Address(i*0x1000+7), []byte{byte(i), byte(i + 1)})
				}
				Expect(b.CommitRW()).To(Succeed())

				bufs := make([][]byte, 64)
				for i := range bufs {
					bufs[i] = make([]byte, 2)
					b.ReadInto(address.Address(i*0x1000+7), bufs[i])
				}
				Expect(b.CommitRW()).To(Succeed())

				for i, buf := range bufs {
					Expect(buf).To(Equal([]byte{byte(i), byte(i + 1)}))
				}
			})

			It("should fail the call if one element is out of range", func() {
				good := make([]byte, 4)
				Expect(m.Storage().Write(0x10, []byte{1, 2, 3, 4})).To(Succeed())

				err := m.PhysReadIter(mem.ReadIterOf([]mem.ReadReq{
					{Addr: 0x10, Buf: good},
					{Addr: address.Address(address.FromMiB(1)), Buf: make([]byte, 1)},
				}))

				Expect(errors.Is(err, mem.ErrIO)).To(BeTrue())
				Expect(errors.Is(err, mem.ErrOutOfRange)).To(BeTrue())

				var ioErr *mem.IOError
				Expect(errors.As(err, &ioErr)).To(BeTrue())
				Expect(ioErr.Op).To(Equal(mem.OpRead))
				Expect(ioErr.Addr).To(Equal(address.Address(address.FromMiB(1))))
				Expect(good).To(Equal([]byte{1, 2, 3, 4}))
			})
		})
	}
})
