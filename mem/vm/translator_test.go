package vm_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/hooking"
	"github.com/sarchlab/flowmem/mem"
	"github.com/sarchlab/flowmem/mem/dummymem"
	"github.com/sarchlab/flowmem/mem/vm"
)

func expectWalkError(err error, level int, cause error) {
	Expect(err).To(MatchError(cause))

	var te *vm.TranslationError
	Expect(errors.As(err, &te)).To(BeTrue())
	Expect(te.Level).To(Equal(level))
}

var _ = Describe("Translator", func() {
	var (
		memory *dummymem.Memory
	)

	BeforeEach(func() {
		memory = dummymem.New(address.FromGiB(4))
	})

	Context("single-level tables", func() {
		flat := vm.Arch{
			Name:       "flat",
			EntrySize:  8,
			Levels:     []vm.Level{{Name: "PT", Shift: 12, Bits: 9}},
			AddrMask:   0x000ffffffffff000,
			PresentBit: 1,
		}

		It("should resolve through one entry", func() {
			putEntry64(memory, 0x2000, 0x1000|1)
			t := vm.NewTranslator(flat, memory)

			paddr, err := t.VirtualToPhysical(0x2000, 0x37)

			Expect(err).NotTo(HaveOccurred())
			Expect(paddr).To(Equal(address.Address(0x1037)))
		})

		It("should reject addresses above the indexed bits", func() {
			t := vm.NewTranslator(flat, memory)

			_, err := t.VirtualToPhysical(0x2000, 0x200000)

			expectWalkError(err, -1, vm.ErrNonCanonical)
		})
	})

	Context("x64", func() {
		const (
			pml4 = 0x1000
			pdpt = 0x2000
			pd   = 0x3000
			pt   = 0x4000
		)

		vaddr := address.Address(1<<39 | 2<<30 | 3<<21 | 4<<12 | 0x123)

		var t *vm.Translator

		BeforeEach(func() {
			t = vm.NewTranslator(vm.X64, memory)
			putEntry64(memory, pml4+1*8, pdpt|0x3)
			putEntry64(memory, pdpt+2*8, pd|0x3)
			putEntry64(memory, pd+3*8, pt|0x3)
			putEntry64(memory, pt+4*8, 0x9000|0x3)
		})

		It("should walk four levels to a 4 KiB page", func() {
			page, err := t.Translate(pml4, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(page.PAddr).To(Equal(address.Address(0x9123)))
			Expect(page.PageBase).To(Equal(address.Address(0x9000)))
			Expect(page.PageSize).To(Equal(4 * address.KiB))
			Expect(page.Level).To(Equal(3))
			Expect(page.IsLarge(vm.X64)).To(BeFalse())
			Expect(page.VirtualBase()).To(Equal(vaddr.AlignDown(4 * address.KiB)))
		})

		It("should ignore flag bits in the page-table base", func() {
			paddr, err := t.VirtualToPhysical(pml4|0x18, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(paddr).To(Equal(address.Address(0x9123)))
		})

		It("should report a missing top-level entry without an address", func() {
			paddr, err := t.VirtualToPhysical(pml4, 0x1000)

			Expect(paddr).To(BeZero())
			expectWalkError(err, 0, vm.ErrNotPresent)

			var te *vm.TranslationError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.LevelName).To(Equal("PML4"))
		})

		It("should report a missing last-level entry", func() {
			putEntry64(memory, pt+4*8, 0x9000)

			_, err := t.VirtualToPhysical(pml4, vaddr)

			expectWalkError(err, 3, vm.ErrNotPresent)
		})

		It("should pass the low 21 bits through a 2 MiB page", func() {
			putEntry64(memory, pd+3*8, 0x40000000|0x83)

			page, err := t.Translate(pml4, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(page.PAddr).To(Equal(address.Address(0x40004123)))
			Expect(page.PageSize).To(Equal(address.FromMiB(2)))
			Expect(page.Level).To(Equal(2))
			Expect(page.IsLarge(vm.X64)).To(BeTrue())
		})

		It("should pass the low 30 bits through a 1 GiB page", func() {
			putEntry64(memory, pdpt+2*8, 0x80000000|0x83)

			page, err := t.Translate(pml4, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(page.PAddr).To(Equal(address.Address(0x80604123)))
			Expect(page.PageSize).To(Equal(address.FromGiB(1)))
			Expect(page.Level).To(Equal(1))
		})

		It("should reject a large-page bit in the PML4", func() {
			putEntry64(memory, pml4+1*8, pdpt|0x83)

			_, err := t.VirtualToPhysical(pml4, vaddr)

			expectWalkError(err, 0, vm.ErrUnsupported)
		})

		It("should reject reserved bits in a large-page entry", func() {
			putEntry64(memory, pd+3*8, 0x40002000|0x83)

			_, err := t.VirtualToPhysical(pml4, vaddr)

			expectWalkError(err, 2, vm.ErrUnsupported)
		})

		It("should reject non-canonical addresses before reading", func() {
			counter := mem.NewCallCounter("dummy", memory)
			t = vm.NewTranslator(vm.X64, counter)

			_, err := t.VirtualToPhysical(pml4, 0x0000800000000000)

			expectWalkError(err, -1, vm.ErrNonCanonical)
			Expect(counter.Stats().ReadCalls).To(BeZero())
		})

		It("should walk canonical upper-half addresses", func() {
			_, err := t.VirtualToPhysical(pml4, 0xffff800000000000)

			expectWalkError(err, 0, vm.ErrNotPresent)
		})

		It("should resolve a batch with one backend call per level", func() {
			counter := mem.NewCallCounter("dummy", memory)
			t = vm.NewTranslator(vm.X64, counter)

			vaddrs := make([]address.Address, 0, 200)
			for i := range 100 {
				vaddrs = append(vaddrs,
					vaddr.AlignDown(4*address.KiB).Add(address.Length(i*8)),
					address.Address(i)<<12)
			}

			res := t.TranslateBatch(pml4, vaddrs)

			Expect(res).To(HaveLen(200))
			for i := 0; i < len(res); i += 2 {
				Expect(res[i].PAddr()).To(Equal(address.Address(0x9000 + i/2*8)))
				Expect(res[i+1].Err).To(MatchError(vm.ErrNotPresent))
			}
			Expect(counter.Stats().ReadCalls).To(BeNumerically("<=", 4))
			Expect(counter.Stats().ReadElements).To(BeEquivalentTo(200 + 3*100))
		})

		It("should fail pending walks when the backend fails", func() {
			mockCtrl := gomock.NewController(GinkgoT())
			backend := NewMockPhysicalMemory(mockCtrl)
			backend.EXPECT().
				PhysReadIter(gomock.Any()).
				Return(mem.NewIOError(mem.OpRead, pml4, make([]byte, 8),
					errors.New("device gone")))
			t = vm.NewTranslator(vm.X64, backend)

			res := t.TranslateBatch(pml4, []address.Address{
				vaddr, 0x0000800000000000,
			})

			Expect(res[0].Err).To(MatchError(mem.ErrIO))

			var ioErr *mem.IOError
			Expect(errors.As(res[0].Err, &ioErr)).To(BeTrue())
			Expect(res[1].Err).To(MatchError(vm.ErrNonCanonical))
		})

		It("should invoke walk hooks", func() {
			var positions []*hooking.HookPos
			var levels []int

			t = vm.MakeBuilder().
				WithMemory(memory).
				WithHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
					positions = append(positions, ctx.Pos)
					if ctx.Pos == vm.HookPosWalkLevel {
						levels = append(levels, ctx.Detail.(int))
					}

					if ctx.Pos == vm.HookPosWalkDone {
						info := ctx.Item.(*vm.WalkInfo)
						Expect(info.Arch).To(Equal("x64"))
						Expect(info.NumAddrs).To(Equal(1))
						Expect(info.Results).To(HaveLen(1))
					}
				})).
				Build()

			_, err := t.Translate(pml4, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(positions[0]).To(Equal(vm.HookPosWalkStart))
			Expect(positions[len(positions)-1]).To(Equal(vm.HookPosWalkDone))
			Expect(levels).To(Equal([]int{0, 1, 2, 3}))
		})

		It("should label entry reads with the walk's generator", func() {
			var commits []*mem.CommitInfo

			t = vm.MakeBuilder().
				WithMemory(memory).
				WithBatcherHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
					if ctx.Pos == mem.HookPosAfterCommit {
						commits = append(commits, ctx.Item.(*mem.CommitInfo))
					}
				})).
				Build()

			_, err := t.Translate(pml4, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(commits).To(HaveLen(4))
			for _, c := range commits {
				Expect(c.NumReads).To(Equal(1))
				Expect(c.NumWrites).To(BeZero())
			}
		})
	})

	Context("x86", func() {
		vaddr := address.Address(5<<22 | 6<<12 | 0x45)

		It("should walk 4-byte entries", func() {
			putEntry32(memory, 0x1000+5*4, 0x2000|0x3)
			putEntry32(memory, 0x2000+6*4, 0x7000|0x3)
			t := vm.NewTranslator(vm.X86, memory)

			paddr, err := t.VirtualToPhysical(0x1000, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(paddr).To(Equal(address.Address(0x7045)))
		})

		It("should resolve a 4 MiB page", func() {
			putEntry32(memory, 0x1000+5*4, 0x800000|0x83)
			t := vm.NewTranslator(vm.X86, memory)

			page, err := t.Translate(0x1000, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(page.PAddr).To(Equal(address.Address(0x806045)))
			Expect(page.PageSize).To(Equal(address.FromMiB(4)))
		})

		It("should report PSE-36 encodings as unsupported", func() {
			putEntry32(memory, 0x1000+5*4, 0x800000|1<<13|0x83)
			t := vm.NewTranslator(vm.X86, memory)

			_, err := t.VirtualToPhysical(0x1000, vaddr)

			expectWalkError(err, 0, vm.ErrUnsupported)
		})

		It("should reject addresses above 4 GiB", func() {
			t := vm.NewTranslator(vm.X86, memory)

			_, err := t.VirtualToPhysical(0x1000, 1<<32)

			expectWalkError(err, -1, vm.ErrNonCanonical)
		})
	})

	Context("x86 PAE", func() {
		vaddr := address.Address(1<<30 | 2<<21 | 3<<12 | 0x10)

		BeforeEach(func() {
			putEntry64(memory, 0x1000+1*8, 0x2000|0x1)
			putEntry64(memory, 0x2000+2*8, 0x3000|0x3)
			putEntry64(memory, 0x3000+3*8, 0x5000|0x3)
		})

		It("should walk three levels", func() {
			t := vm.NewTranslator(vm.X86PAE, memory)

			paddr, err := t.VirtualToPhysical(0x1000, vaddr)

			Expect(err).NotTo(HaveOccurred())
			Expect(paddr).To(Equal(address.Address(0x5010)))
		})

		It("should reject reserved bits in a PDPT entry", func() {
			putEntry64(memory, 0x1000+1*8, 0x2000|0x3)
			t := vm.NewTranslator(vm.X86PAE, memory)

			_, err := t.VirtualToPhysical(0x1000, vaddr)

			expectWalkError(err, 0, vm.ErrUnsupported)
		})
	})
})

var _ = Describe("Arch", func() {
	It("should look up built-in architectures by name", func() {
		a, err := vm.ArchByName("X64")

		Expect(err).NotTo(HaveOccurred())
		Expect(a.Name).To(Equal("x64"))
		Expect(a.VirtualBits()).To(Equal(uint(48)))
		Expect(vm.ArchNames()).To(ConsistOf("x86", "x86pae", "x64"))
	})

	It("should reject unknown architectures", func() {
		_, err := vm.ArchByName("arm64")

		Expect(err).To(MatchError(vm.ErrUnsupported))
	})

	It("should validate the built-ins", func() {
		Expect(vm.X86.Validate()).To(Succeed())
		Expect(vm.X86PAE.Validate()).To(Succeed())
		Expect(vm.X64.Validate()).To(Succeed())
		Expect(vm.X86.VirtualBits()).To(Equal(uint(32)))
		Expect(vm.X86PAE.VirtualBits()).To(Equal(uint(32)))
	})

	It("should reject gaps between levels", func() {
		a := vm.Arch{
			EntrySize:  8,
			AddrMask:   0xfffff000,
			PresentBit: 1,
			Levels: []vm.Level{
				{Name: "A", Shift: 22, Bits: 9},
				{Name: "B", Shift: 12, Bits: 9},
			},
		}

		Expect(a.Validate()).NotTo(Succeed())
		Expect(func() { vm.NewTranslator(a, dummymem.New(address.MiB)) }).
			To(Panic())
	})
})
