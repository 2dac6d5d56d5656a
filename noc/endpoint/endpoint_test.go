package endpoint

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/twinrouter/noc/link"
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/sim"
)

type arrival struct {
	pkt packet.Packet
	at  sim.VTimeInCycle
}

var _ = Describe("Endpoint", func() {
	var (
		engine   *sim.SerialEngine
		src, dst *Comp
		arrivals []arrival
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		arrivals = nil

		src = MakeBuilder().WithEngine(engine).WithNode(0).Build("Src")
		dst = MakeBuilder().
			WithEngine(engine).
			WithNode(1).
			WithDeliver(func(p packet.Packet, now sim.VTimeInCycle) {
				arrivals = append(arrivals, arrival{pkt: p, at: now})
			}).
			Build("Dst")

		link.Connect("Wire", src.NetworkOut(), dst.NetworkIn())
	})

	It("should deliver offered packets", func() {
		p := packet.MustNew(0, 1, 0xABCDEF)
		Expect(src.Offer(p)).To(BeTrue())

		Expect(engine.Run()).To(Succeed())

		Expect(arrivals).To(Equal([]arrival{{pkt: p, at: 5}}))
		Expect(src.NumSent()).To(Equal(uint64(1)))
		Expect(dst.NumReceived()).To(Equal(uint64(1)))
	})

	It("should deliver packets in order", func() {
		for i := 0; i < 5; i++ {
			Expect(src.Offer(packet.MustNew(0, 1, uint32(i)))).To(BeTrue())
		}

		Expect(engine.Run()).To(Succeed())

		Expect(arrivals).To(HaveLen(5))
		for i, a := range arrivals {
			Expect(a.pkt.Payload).To(Equal(uint32(i)))
		}
	})

	It("should report a full queue", func() {
		for i := 0; i < DefaultQueueDepth; i++ {
			Expect(src.QueueFull()).To(BeFalse())
			Expect(src.Offer(packet.MustNew(0, 1, 0))).To(BeTrue())
		}

		Expect(src.QueueFull()).To(BeTrue())
		Expect(src.Offer(packet.MustNew(0, 1, 0))).To(BeFalse())
		Expect(src.Send(packet.MustNew(0, 1, 0))).To(Equal(ErrQueueFull))
	})

	It("should refuse packets it cannot send", func() {
		Expect(src.Offer(packet.MustNew(0, 0, 0))).To(BeFalse())
		Expect(src.Send(packet.MustNew(2, 1, 0))).
			To(MatchError(ContainSubstring("does not come from")))
		Expect(src.Send(packet.Packet{Src: 0, Dst: 9})).To(HaveOccurred())
		Expect(src.Pending()).To(Equal(0))
	})

	It("should raise the received pulse for one cycle", func() {
		src.Offer(packet.MustNew(0, 1, 7))

		Expect(engine.RunFor(6)).To(Succeed())
		p, ok := dst.Received()
		Expect(ok).To(BeTrue())
		Expect(p.Payload).To(Equal(uint32(7)))

		Expect(engine.RunFor(1)).To(Succeed())
		_, ok = dst.Received()
		Expect(ok).To(BeFalse())
	})

	It("should not send without a network", func() {
		lonely := MakeBuilder().WithEngine(engine).WithNode(2).Build("Lonely")
		lonely.Offer(packet.MustNew(2, 1, 0))

		Expect(engine.RunFor(20)).To(Succeed())

		Expect(lonely.NumSent()).To(Equal(uint64(0)))
		Expect(lonely.Pending()).To(Equal(1))
	})

	It("should refuse a node outside the fabric", func() {
		Expect(func() { MakeBuilder().WithNode(6).Build("Ep") }).To(Panic())
	})
})
