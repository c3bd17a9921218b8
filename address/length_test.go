package address_test

import (
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flowmem/address"
)

var _ = Describe("Length", func() {
	It("should convert from integers", func() {
		Expect(address.Zero().Uint64()).To(Equal(uint64(0)))
		Expect(address.LengthOf(1337).Uint64()).To(Equal(uint64(1337)))
		Expect(address.LengthOf(uint32(4321)).Int()).To(Equal(4321))
		Expect(address.FromB(500)).To(Equal(address.LengthOf(500)))
	})

	It("should panic when built from a negative integer", func() {
		Expect(func() { address.LengthOf(-1) }).To(Panic())
	})

	It("should scale units in bytes", func() {
		Expect(address.FromKB(20).Uint64()).To(Equal(uint64(20 * 1024)))
		Expect(address.FromKiB(123).Uint64()).To(Equal(uint64(123 * 1024)))
		Expect(address.FromMB(20).Uint64()).To(Equal(uint64(20 * 1024 * 1024)))
		Expect(address.FromMiB(52).Uint64()).To(Equal(uint64(52 * 1024 * 1024)))
		Expect(address.FromGB(20).Uint64()).
			To(Equal(uint64(20) * 1024 * 1024 * 1024))
		Expect(address.FromGiB(52).Uint64()).
			To(Equal(uint64(52) * 1024 * 1024 * 1024))
	})

	It("should panic when a unit constructor overflows", func() {
		Expect(func() { address.FromGiB(math.MaxUint64 / 1024) }).To(Panic())
		Expect(func() { address.FromGiB(1 << 34) }).To(Panic())
		Expect(address.FromGiB(1<<34 - 1).Uint64()).
			To(Equal(uint64(math.MaxUint64) - (1<<30 - 1)))
	})

	It("should add and subtract", func() {
		Expect(address.LengthOf(100).Sub(address.LengthOf(50))).
			To(Equal(address.LengthOf(50)))
		Expect(address.LengthOf(100).Add(address.LengthOf(50))).
			To(Equal(address.LengthOf(150)))

		l := address.LengthOf(100)
		l.AddAssign(address.LengthOf(10))
		l.SubAssign(address.LengthOf(30))
		Expect(l).To(Equal(address.LengthOf(80)))
	})

	It("should add integers of every width", func() {
		base := address.LengthOf(100)

		for _, got := range []func() (address.Length, error){
			func() (address.Length, error) { return address.AddN(base, int32(50)) },
			func() (address.Length, error) { return address.AddN(base, uint32(50)) },
			func() (address.Length, error) { return address.AddN(base, int64(50)) },
			func() (address.Length, error) { return address.AddN(base, uint64(50)) },
			func() (address.Length, error) { return address.AddN(base, 50) },
			func() (address.Length, error) { return address.AddN(base, uint(50)) },
		} {
			v, err := got()
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(address.LengthOf(150)))
		}

		v, err := address.SubN(base, int32(50))
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(address.LengthOf(50)))

		v, err = address.SubN(base, uint64(50))
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(address.LengthOf(50)))

		v, err = address.SubN(base, -50)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(address.LengthOf(150)))

		v, err = address.AddN(base, int64(math.MinInt64)+1<<62)
		Expect(err).To(MatchError(address.ErrUnderflow))
		Expect(v).To(BeZero())
	})

	It("should keep (a+b)-b == a", func() {
		values := []address.Length{
			0, 1, 0x1000, address.MiB, address.GiB + 7, math.MaxUint64 / 2,
		}

		for _, a := range values {
			for _, b := range values {
				Expect(a.Add(b).Sub(b)).To(Equal(a))
			}
		}
	})

	It("should treat zero as the identity", func() {
		for _, x := range []address.Length{0, 1, 0xfff, math.MaxUint64} {
			Expect(address.Zero().Add(x)).To(Equal(x))
		}
	})

	It("should not wrap on underflow", func() {
		_, err := address.LengthOf(10).CheckedSub(address.LengthOf(11))
		Expect(err).To(MatchError(address.ErrUnderflow))

		Expect(func() {
			address.LengthOf(10).Sub(address.LengthOf(11))
		}).To(PanicWith(BeAssignableToTypeOf(&address.ArithmeticError{})))
	})

	It("should not wrap on overflow", func() {
		_, err := address.Length(math.MaxUint64).CheckedAdd(1)
		Expect(err).To(MatchError(address.ErrOverflow))

		_, err = address.AddN(address.Length(math.MaxUint64), 1)
		Expect(err).To(MatchError(address.ErrOverflow))
	})

	It("should format as lower hex", func() {
		l := address.LengthOf(0xBEEF)
		Expect(l.String()).To(Equal("0xbeef"))
		Expect(fmt.Sprintf("%x", l)).To(Equal("beef"))
		Expect(address.FromMiB(2).HumanString()).To(Equal("2.0 MiB"))
	})
})
