package packet

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Packet", func() {
	It("should encode in wire order", func() {
		p := MustNew(0, 1, 0x123456)

		Expect(p.Encode()).To(Equal([NumBytes]byte{0x01, 0x12, 0x34, 0x56}))
	})

	It("should put the source in the high nibble", func() {
		p := MustNew(5, 3, 0)

		Expect(p.Header()).To(Equal(byte(0x53)))
	})

	It("should round trip every address pair", func() {
		for src := NodeID(0); src < NumNodes; src++ {
			for dst := NodeID(0); dst < NumNodes; dst++ {
				for _, payload := range []uint32{0, 1, 0xABCDEF, PayloadMask} {
					p := MustNew(src, dst, payload)
					Expect(Decode(p.Encode())).To(Equal(p))
				}
			}
		}
	})

	It("should reject payloads wider than 24 bits", func() {
		_, err := New(0, 1, 0x1000000)

		Expect(err).To(HaveOccurred())
	})

	It("should reject nodes that are not attached", func() {
		_, err := New(0, 6, 0)
		Expect(err).To(HaveOccurred())

		_, err = New(9, 1, 0)
		Expect(err).To(HaveOccurred())
	})

	It("should reject node ids wider than 4 bits", func() {
		_, err := New(16, 1, 0)

		Expect(err).To(MatchError(ContainSubstring("4-bit")))
	})

	It("should panic in MustNew on invalid input", func() {
		Expect(func() { MustNew(0, 7, 0) }).To(Panic())
	})

	It("should print", func() {
		Expect(MustNew(2, 4, 0xBEEF).String()).To(Equal("2->4:0x00beef"))
	})
})
