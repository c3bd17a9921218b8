package address_test

import (
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowmem/address"
)

var _ = Describe("Address", func() {
	It("should convert from integers of any width", func() {
		Expect(address.Of(int32(0x1000)).Uint64()).To(Equal(uint64(0x1000)))
		Expect(address.Of(uint64(0xdeadbeef)).Uint64()).
			To(Equal(uint64(0xdeadbeef)))
		Expect(address.Of(uintptr(0x42)).Uintptr()).To(Equal(uintptr(0x42)))
		Expect(address.Of(-1)).To(Equal(address.Invalid))
	})

	It("should format as lower hex", func() {
		a := address.Address(0xFFFF8000ABCD)
		Expect(a.String()).To(Equal("0xffff8000abcd"))
		Expect(fmt.Sprintf("%x", a)).To(Equal("ffff8000abcd"))
		Expect(fmt.Sprintf("%d", address.Address(16))).To(Equal("16"))
		Expect(fmt.Sprintf("[%-8s]", address.Address(0x10))).To(Equal("[0x10    ]"))
		Expect(fmt.Sprintf("%v", a)).To(Equal("0xffff8000abcd"))
	})

	It("should compare", func() {
		a := address.Address(0x1000)
		b := address.Address(0x2000)

		Expect(a.Less(b)).To(BeTrue())
		Expect(b.Less(a)).To(BeFalse())
		Expect(a.Compare(b)).To(Equal(-1))
		Expect(b.Compare(a)).To(Equal(1))
		Expect(a.Compare(a)).To(Equal(0))
	})

	It("should do arithmetic with lengths", func() {
		a := address.Address(0x1000)

		Expect(a.Add(address.FromKiB(4))).To(Equal(address.Address(0x2000)))
		Expect(a.Sub(address.LengthOf(0x10))).To(Equal(address.Address(0xff0)))
		Expect(address.Address(0x3000).Diff(a)).To(Equal(address.LengthOf(0x2000)))

		a.AddAssign(address.LengthOf(0x20))
		a.SubAssign(address.LengthOf(0x10))
		Expect(a).To(Equal(address.Address(0x1010)))
	})

	It("should add signed deltas without wrapping", func() {
		a, err := address.AddInt(address.Address(0x1000), int64(-0x800))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(address.Address(0x800)))

		_, err = address.AddInt(address.Address(0x10), -0x11)
		Expect(err).To(MatchError(address.ErrUnderflow))

		_, err = address.AddInt(address.Address(0x10), int64(math.MinInt64))
		Expect(err).To(MatchError(address.ErrUnderflow))
	})

	It("should report underflow and overflow", func() {
		_, err := address.Address(0).CheckedSub(1)
		Expect(err).To(MatchError(address.ErrUnderflow))

		_, err = address.Invalid.CheckedAdd(1)
		Expect(err).To(MatchError(address.ErrOverflow))

		_, err = address.Address(1).CheckedDiff(2)
		Expect(err).To(MatchError(address.ErrUnderflow))

		Expect(func() { address.Address(0).Sub(1) }).To(Panic())
	})

	It("should align to pages", func() {
		a := address.Address(0x12345)

		Expect(a.AlignDown(address.FromKiB(4))).To(Equal(address.Address(0x12000)))
		Expect(a.AlignUp(address.FromKiB(4))).To(Equal(address.Address(0x13000)))
		Expect(a.PageOffset(address.FromKiB(4))).To(Equal(address.LengthOf(0x345)))
		Expect(address.Address(0x13000).AlignUp(address.FromKiB(4))).
			To(Equal(address.Address(0x13000)))

		Expect(func() { a.AlignDown(3) }).To(Panic())
	})
})
