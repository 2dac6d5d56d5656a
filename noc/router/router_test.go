package router

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/sim"
)

type flitEvent struct {
	pos   *sim.HookPos
	flit  *Flit
	port  int
	cycle sim.VTimeInCycle
}

type flitRecorder struct {
	engine sim.TimeTeller
	events []flitEvent
}

func (r *flitRecorder) Func(ctx sim.HookCtx) {
	flit, ok := ctx.Item.(*Flit)
	if !ok {
		return
	}

	r.events = append(r.events, flitEvent{
		pos:   ctx.Pos,
		flit:  flit,
		port:  ctx.Detail.(int),
		cycle: r.engine.CurrentTime(),
	})
}

func (r *flitRecorder) at(pos *sim.HookPos) []flitEvent {
	var events []flitEvent

	for _, e := range r.events {
		if e.pos == pos {
			events = append(events, e)
		}
	}

	return events
}

type occupancyWatcher struct {
	router   *Comp
	max, min int
}

func (w *occupancyWatcher) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterCycle {
		return
	}

	occ := w.router.Occupancy()
	if occ > w.max {
		w.max = occ
	}

	if occ < w.min {
		w.min = occ
	}
}

func sources(pkts []packet.Packet) []packet.NodeID {
	srcs := make([]packet.NodeID, 0, len(pkts))
	for _, p := range pkts {
		srcs = append(srcs, p.Src)
	}

	return srcs
}

var _ = Describe("Router", func() {
	var (
		tb       *bench
		recorder *flitRecorder
	)

	setup := func(b Builder) {
		tb = newBench(b)
		recorder = &flitRecorder{engine: tb.engine}
		tb.router.AcceptHook(recorder)
	}

	Context("with default capacities", func() {
		BeforeEach(func() {
			setup(MakeBuilder().WithHalf(routing.HalfA))
		})

		It("should deliver a single packet after 4 + 1 + 4 cycles", func() {
			p := packet.MustNew(0, 1, 0x123456)
			tb.offer(0, p)

			tb.run(20)

			Expect(tb.sinks[1].received).To(HaveLen(1))
			Expect(tb.sinks[1].received[0].pkt).To(Equal(p))
			Expect(tb.sinks[1].received[0].cycle).
				To(Equal(sim.VTimeInCycle(9)))

			for i, s := range tb.sinks {
				if i != 1 {
					Expect(s.received).To(BeEmpty())
				}
			}

			assembled := recorder.at(HookPosPacketAssembled)
			Expect(assembled).To(HaveLen(1))
			Expect(assembled[0].cycle).To(Equal(sim.VTimeInCycle(4)))
			Expect(assembled[0].flit.InPort).To(Equal(0))
			Expect(assembled[0].flit.OutPort).To(Equal(1))

			sent := recorder.at(HookPosPacketSent)
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].flit).To(BeIdenticalTo(assembled[0].flit))
		})

		It("should keep statistics", func() {
			tb.offer(0, packet.MustNew(0, 4, 1), packet.MustNew(0, 2, 2))

			tb.run(40)

			stats := tb.router.Stats()
			Expect(stats.Ports[0].Assembled).To(Equal(uint64(2)))
			Expect(stats.Ports[0].Enqueued).To(Equal(uint64(2)))
			Expect(stats.Ports[2].Sent).To(Equal(uint64(1)))
			Expect(stats.Ports[routing.BridgePort].Dequeued).
				To(Equal(uint64(1)))
			Expect(stats.PeakOccupancy).To(BeNumerically(">=", 1))
		})

		It("should serve contending lanes in round-robin order", func() {
			tb.sinks[0].open = false
			tb.offer(1, packet.MustNew(1, 0, 1))
			tb.offer(2, packet.MustNew(2, 0, 2))
			tb.offer(3, packet.MustNew(4, 0, 3))

			tb.run(20)
			Expect(tb.router.Occupancy()).To(Equal(3))

			tb.sinks[0].open = true
			tb.run(40)

			Expect(sources(tb.sinks[0].packets())).
				To(Equal([]packet.NodeID{1, 2, 4}))
		})

		It("should rotate priority relative to the pointer", func() {
			tb.offer(2, packet.MustNew(2, 0, 0))
			tb.run(20)
			Expect(tb.router.Arbiter(0).Pointer()).To(Equal(2))

			tb.sinks[0].open = false
			tb.offer(1, packet.MustNew(1, 0, 1))
			tb.offer(2, packet.MustNew(2, 0, 2))
			tb.offer(3, packet.MustNew(4, 0, 3))
			tb.run(20)

			tb.sinks[0].open = true
			tb.run(40)

			Expect(sources(tb.sinks[0].packets())).
				To(Equal([]packet.NodeID{2, 4, 1, 2}))
		})

		It("should be fair under sustained contention", func() {
			tb.sinks[0].open = false

			for i := 0; i < 6; i++ {
				tb.offer(1, packet.MustNew(1, 0, uint32(i)))
				tb.offer(2, packet.MustNew(2, 0, uint32(i)))
				tb.offer(3, packet.MustNew(5, 0, uint32(i)))
			}

			tb.run(100)
			tb.sinks[0].open = true
			tb.run(200)

			srcs := sources(tb.sinks[0].packets())
			Expect(srcs).To(HaveLen(18))

			for i := 0; i+3 <= len(srcs); i++ {
				Expect(srcs[i : i+3]).
					To(ConsistOf(packet.NodeID(1), packet.NodeID(2),
						packet.NodeID(5)))
			}
		})

		It("should keep the order of each lane", func() {
			for i := 0; i < 10; i++ {
				tb.offer(0, packet.MustNew(0, 1, uint32(i)))
				tb.offer(2, packet.MustNew(2, 1, uint32(100+i)))
			}

			tb.run(300)

			var fromZero, fromTwo []uint32
			for _, p := range tb.sinks[1].packets() {
				if p.Src == 0 {
					fromZero = append(fromZero, p.Payload)
				} else {
					fromTwo = append(fromTwo, p.Payload)
				}
			}

			Expect(fromZero).To(HaveLen(10))
			Expect(fromTwo).To(HaveLen(10))

			for i := 0; i < 10; i++ {
				Expect(fromZero[i]).To(Equal(uint32(i)))
				Expect(fromTwo[i]).To(Equal(uint32(100 + i)))
			}
		})

		It("should drop a packet that turns back and keep going", func() {
			tb.offer(1, packet.MustNew(4, 1, 0), packet.MustNew(1, 2, 7))

			tb.run(30)

			dropped := recorder.at(HookPosPacketDropped)
			Expect(dropped).To(HaveLen(1))
			Expect(dropped[0].port).To(Equal(1))
			Expect(dropped[0].flit.Packet.Src).To(Equal(packet.NodeID(4)))

			stats := tb.router.Stats().Ports[1]
			Expect(stats.Assembled).To(Equal(uint64(2)))
			Expect(stats.Dropped).To(Equal(uint64(1)))
			Expect(stats.Enqueued).To(Equal(uint64(1)))

			Expect(tb.sinks[1].received).To(BeEmpty())
			Expect(tb.sinks[2].packets()).To(Equal(
				[]packet.Packet{packet.MustNew(1, 2, 7)}))
			Expect(tb.router.Occupancy()).To(Equal(0))
		})

		It("should drop unattached destinations arriving on the bridge", func() {
			unattached := packet.Packet{Src: 4, Dst: 11, Payload: 1}
			tb.offer(routing.BridgePort, unattached, packet.MustNew(4, 0, 2))

			tb.run(30)

			Expect(tb.router.Stats().Ports[routing.BridgePort].Dropped).
				To(Equal(uint64(1)))
			Expect(tb.sinks[routing.BridgePort].received).To(BeEmpty())
			Expect(tb.sinks[0].packets()).To(Equal(
				[]packet.Packet{packet.MustNew(4, 0, 2)}))
		})
	})

	Context("when saturated", func() {
		var watcher *occupancyWatcher

		BeforeEach(func() {
			setup(MakeBuilder().WithHalf(routing.HalfA))
			watcher = &occupancyWatcher{router: tb.router}
			tb.engine.AcceptHook(watcher)

			tb.sinks[routing.BridgePort].open = false
			for i := 0; i < 10; i++ {
				tb.offer(0, packet.MustNew(0, 3, uint32(i)))
				tb.offer(1, packet.MustNew(1, 4, uint32(i)))
				tb.offer(2, packet.MustNew(2, 5, uint32(i)))
			}

			tb.run(200)
		})

		It("should stop accepting at the admission limit", func() {
			Expect(tb.router.Occupancy()).To(Equal(DefaultAdmissionLimit))
			Expect(tb.router.Admission().MayAccept()).To(BeFalse())
			Expect(watcher.max).To(Equal(DefaultAdmissionLimit))
			Expect(watcher.min).To(Equal(0))

			enqueued := uint64(0)
			for i := 0; i < routing.NumPorts; i++ {
				enqueued += tb.router.Stats().Ports[i].Enqueued
				Expect(tb.router.InputPort(i).Free()).To(BeFalse())
			}

			Expect(enqueued).To(Equal(uint64(DefaultAdmissionLimit)))
		})

		It("should resume one cycle after the dequeue is accounted", func() {
			tb.sinks[routing.BridgePort].open = true

			tb.run(1)
			Expect(recorder.at(HookPosPacketDequeued)).To(HaveLen(1))
			Expect(tb.router.Occupancy()).To(Equal(DefaultAdmissionLimit))
			Expect(tb.router.Admission().PendingDequeues()).To(Equal(1))

			tb.run(1)
			Expect(tb.router.Occupancy()).To(Equal(DefaultAdmissionLimit - 1))

			free := false
			for i := 0; i < routing.NumPorts; i++ {
				free = free || tb.router.InputPort(i).Free()
			}
			Expect(free).To(BeTrue())

			// A dequeue at T reaches the counter at T+2. The waiting sender
			// sees Free and loads at T+2, moves the header at T+3 and the
			// last byte is assembled at T+6.
			before := len(recorder.at(HookPosPacketAssembled))
			tb.run(5)
			assembled := recorder.at(HookPosPacketAssembled)
			Expect(assembled).To(HaveLen(before + 1))

			dequeued := recorder.at(HookPosPacketDequeued)
			Expect(assembled[len(assembled)-1].cycle - dequeued[0].cycle).
				To(Equal(sim.VTimeInCycle(6)))
		})

		It("should deliver everything once drained", func() {
			tb.sinks[routing.BridgePort].open = true
			tb.run(1000)

			Expect(tb.sinks[routing.BridgePort].received).To(HaveLen(30))
			Expect(watcher.max).To(BeNumerically("<=", DefaultAdmissionLimit))
		})
	})

	Context("with single-packet lanes", func() {
		BeforeEach(func() {
			setup(MakeBuilder().WithHalf(routing.HalfA).WithLaneCapacity(1))

			tb.sinks[0].open = false
			tb.offer(1,
				packet.MustNew(1, 0, 1),
				packet.MustNew(1, 0, 2),
				packet.MustNew(1, 0, 3))

			tb.run(50)
		})

		It("should hold the deferred packet in the latch", func() {
			flit, ok := tb.router.Latched(1)
			Expect(ok).To(BeTrue())
			Expect(flit.Packet.Payload).To(Equal(uint32(2)))

			Expect(tb.router.Fabric().Lane(0, 0).Size()).To(Equal(1))
			Expect(tb.router.InputPort(1).Free()).To(BeFalse())
			Expect(tb.router.Stats().Ports[1].Deferred).To(Equal(uint64(1)))
			Expect(tb.sources[1].pending).To(HaveLen(1))
		})

		It("should not take a new header while the latch is occupied", func() {
			tb.run(50)

			Expect(recorder.at(HookPosPacketAssembled)).To(HaveLen(2))
		})

		It("should release the latch once the lane drains", func() {
			tb.sinks[0].open = true
			tb.run(100)

			_, ok := tb.router.Latched(1)
			Expect(ok).To(BeFalse())
			Expect(tb.sinks[0].packets()).To(Equal([]packet.Packet{
				packet.MustNew(1, 0, 1),
				packet.MustNew(1, 0, 2),
				packet.MustNew(1, 0, 3),
			}))
		})
	})
})

var _ = Describe("Builder", func() {
	It("should register the router with the engine", func() {
		engine := sim.NewSerialEngine()
		r := MakeBuilder().WithEngine(engine).WithHalf(routing.HalfB).
			Build("RouterB")

		Expect(engine.Components()).To(ConsistOf(r))
		Expect(r.Half()).To(Equal(routing.HalfB))
		Expect(r.RoutingTable().FindPort(4)).To(Equal(1))
		Expect(r.Admission().Limit()).To(Equal(DefaultAdmissionLimit))
		Expect(r.Fabric().Lane(0, 0).Capacity()).To(Equal(DefaultLaneCapacity))
	})

	It("should use a given routing table", func() {
		rt := routing.NewTable()
		rt.DefineDefaultRoute(2)

		r := MakeBuilder().WithRoutingTable(rt).Build("Router")

		Expect(r.RoutingTable()).To(BeIdenticalTo(rt))
	})

	It("should apply the admission limit", func() {
		r := MakeBuilder().WithAdmissionLimit(8).Build("Router")

		Expect(r.Admission().Limit()).To(Equal(8))
	})

	It("should refuse invalid capacities", func() {
		Expect(func() { MakeBuilder().WithLaneCapacity(0).Build("R") }).
			To(Panic())
		Expect(func() { MakeBuilder().WithAdmissionLimit(-1).Build("R") }).
			To(Panic())
	})
})
