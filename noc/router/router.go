// Package router provides the switch that forms one half of the fabric.
//
// A router has four ports. Every input port deserializes packets with an
// assembler and hands them to a 4x3 switch fabric. Each output port has a
// round-robin arbiter that moves packets from its three lanes into a
// disassembler. An admission controller bounds the number of packets inside.
package router

import (
	"github.com/sarchlab/twinrouter/noc/link"
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/noc/serdes"
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
	"github.com/sarchlab/twinrouter/tracing"
)

// Hook positions of a router. The hook item is the *Flit and the detail is
// the port involved.
var (
	HookPosPacketAssembled = &sim.HookPos{Name: "PacketAssembled"}
	HookPosPacketDeferred  = &sim.HookPos{Name: "PacketDeferred"}
	HookPosPacketEnqueued  = &sim.HookPos{Name: "PacketEnqueued"}
	HookPosPacketDequeued  = &sim.HookPos{Name: "PacketDequeued"}
	HookPosPacketSent      = &sim.HookPos{Name: "PacketSent"}
	HookPosPacketDropped   = &sim.HookPos{Name: "PacketDropped"}
)

// TaskKindPacket is the kind of the tasks that cover the stay of a packet in
// a router.
const TaskKindPacket = "packet"

// PortStats counts the packets that go through a port.
type PortStats struct {
	Assembled uint64 `json:"assembled"`
	Deferred  uint64 `json:"deferred"`
	Enqueued  uint64 `json:"enqueued"`
	Dequeued  uint64 `json:"dequeued"`
	Sent      uint64 `json:"sent"`
	Dropped   uint64 `json:"dropped"`
}

// Stats are the counters of a router.
type Stats struct {
	Ports         [routing.NumPorts]PortStats
	PeakOccupancy int
}

type inputPort struct {
	index     int
	assembler *serdes.Assembler
	latch     *sim.Register[*Flit]
}

type outputPort struct {
	index        int
	arbiter      *OutputArbiter
	disassembler *serdes.Disassembler
	inFlight     *sim.Register[*Flit]
}

// Comp is a router.
type Comp struct {
	*sim.ComponentBase

	half      routing.Half
	table     routing.Table
	fabric    *SwitchFabric
	admission *AdmissionController

	inputs  [routing.NumPorts]*inputPort
	outputs [routing.NumPorts]*outputPort

	grantStart *sim.Register[int]

	stats Stats
}

// Half returns the half of the address space that the router owns.
func (c *Comp) Half() routing.Half {
	return c.half
}

// RoutingTable returns the routing table used by the router.
func (c *Comp) RoutingTable() routing.Table {
	return c.table
}

// Fabric returns the switch fabric.
func (c *Comp) Fabric() *SwitchFabric {
	return c.fabric
}

// Admission returns the admission controller.
func (c *Comp) Admission() *AdmissionController {
	return c.admission
}

// Arbiter returns the arbiter of an output port.
func (c *Comp) Arbiter(port int) *OutputArbiter {
	return c.outputs[port].arbiter
}

// InputPort returns the receiving end of a port.
func (c *Comp) InputPort(port int) link.Acceptor {
	return c.inputs[port].assembler
}

// OutputPort returns the sending end of a port.
func (c *Comp) OutputPort(port int) link.Transmitter {
	return c.outputs[port].disassembler
}

// Latched returns the flit held in the backpressure latch of an input port.
func (c *Comp) Latched(port int) (*Flit, bool) {
	f := c.inputs[port].latch.Get()
	return f, f != nil
}

// Occupancy returns the committed admission counter.
func (c *Comp) Occupancy() int {
	return c.admission.Occupancy()
}

// Stats returns a copy of the counters.
func (c *Comp) Stats() Stats {
	return c.stats
}

// Meters returns the fill levels of the lanes.
func (c *Comp) Meters() []queueing.Meter {
	lanes := c.fabric.Buffers()

	meters := make([]queueing.Meter, 0, len(lanes))
	for _, l := range lanes {
		meters = append(meters, l)
	}

	return meters
}

// Tick computes the next state of the router from the committed state.
func (c *Comp) Tick() bool {
	madeProgress := false

	grants := c.grants()

	enqueued := 0
	for _, in := range c.inputs {
		n, progress := c.receive(in)
		enqueued += n
		madeProgress = progress || madeProgress
	}

	dequeued := 0
	for _, out := range c.outputs {
		n, progress := c.send(out)
		dequeued += n
		madeProgress = progress || madeProgress
	}

	c.admission.Update(enqueued, dequeued)
	madeProgress = c.admission.Changing() || madeProgress

	c.rotateGrants(grants)

	return madeProgress
}

// receive retries the latched flit or takes one byte from the input port.
func (c *Comp) receive(in *inputPort) (enqueued int, madeProgress bool) {
	if latched := in.latch.Get(); latched != nil {
		if c.fabric.TryRoute(in.index, latched) == Deferred {
			return 0, false
		}

		in.latch.Set(nil)
		c.stats.Ports[in.index].Enqueued++
		c.invoke(HookPosPacketEnqueued, latched, in.index)

		return 1, true
	}

	pkt, done := in.assembler.Step()
	if !done {
		return 0, in.assembler.Progressing()
	}

	flit := NewFlit(pkt, in.index)
	c.stats.Ports[in.index].Assembled++
	c.invoke(HookPosPacketAssembled, flit, in.index)

	switch c.fabric.TryRoute(in.index, flit) {
	case Deferred:
		in.latch.Set(flit)
		c.stats.Ports[in.index].Deferred++
		c.invoke(HookPosPacketDeferred, flit, in.index)

		return 0, true
	case Dropped:
		c.stats.Ports[in.index].Dropped++
		c.invoke(HookPosPacketDropped, flit, in.index)

		return 0, true
	}

	c.stats.Ports[in.index].Enqueued++
	c.invoke(HookPosPacketEnqueued, flit, in.index)

	return 1, true
}

// send moves a packet from the lanes into an idle disassembler and advances
// the disassembler.
func (c *Comp) send(out *outputPort) (dequeued int, madeProgress bool) {
	if out.disassembler.Finishing() {
		flit := out.inFlight.Get()
		out.inFlight.Set(nil)
		c.stats.Ports[out.index].Sent++
		c.invoke(HookPosPacketSent, flit, out.index)
	}

	if out.disassembler.Ready() {
		if _, flit, ok := out.arbiter.Arbitrate(); ok {
			out.disassembler.Load(flit.Packet)
			out.inFlight.Set(flit)
			dequeued = 1
			c.stats.Ports[out.index].Dequeued++
			c.invoke(HookPosPacketDequeued, flit, out.index)
		}
	}

	madeProgress = out.disassembler.Step()

	return dequeued, madeProgress
}

func (c *Comp) invoke(pos *sim.HookPos, flit *Flit, port int) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   flit,
		Detail: port,
	})

	c.trace(pos, flit)
}

func (c *Comp) trace(pos *sim.HookPos, flit *Flit) {
	switch pos {
	case HookPosPacketAssembled:
		tracing.StartTask(flit.ID, "", c, TaskKindPacket, "route", flit)
	case HookPosPacketDeferred:
		tracing.AddTaskStep(flit.ID, c, "deferred")
	case HookPosPacketEnqueued:
		tracing.AddTaskStep(flit.ID, c, "enqueued")
	case HookPosPacketDequeued:
		tracing.AddTaskStep(flit.ID, c, "dequeued")
	case HookPosPacketSent:
		tracing.EndTask(flit.ID, c)
	case HookPosPacketDropped:
		tracing.AddTaskStep(flit.ID, c, "dropped")
		tracing.EndTask(flit.ID, c)
	}
}

// reserved counts the admission slots taken by packets that are being
// assembled or are waiting in a latch.
func (c *Comp) reserved() int {
	n := 0

	for _, in := range c.inputs {
		if in.assembler.Busy() || in.latch.Get() != nil {
			n++
		}
	}

	return n
}

// grants decides which input ports may take a header byte in this cycle.
// Idle ports with a pending header are served first, starting from a
// rotating port, one admission slot each. The remaining ports are open if
// any slot is left. Everything is derived from committed state, so the
// result is the same no matter when it is asked within a cycle.
func (c *Comp) grants() (granted [routing.NumPorts]bool) {
	available := c.admission.Available(c.reserved())
	start := c.grantStart.Get()

	for i := 0; i < routing.NumPorts; i++ {
		in := c.inputs[(start+i)%routing.NumPorts]

		if available == 0 {
			break
		}

		if in.latch.Get() != nil || !in.assembler.Requesting() {
			continue
		}

		granted[in.index] = true
		available--
	}

	if available == 0 {
		return granted
	}

	for _, in := range c.inputs {
		if in.latch.Get() == nil && !in.assembler.Requesting() {
			granted[in.index] = true
		}
	}

	return granted
}

func (c *Comp) mayStart(port int) bool {
	return c.grants()[port]
}

// rotateGrants gives the first priority to the port after the last one that
// started a packet.
func (c *Comp) rotateGrants(granted [routing.NumPorts]bool) {
	start := c.grantStart.Get()
	last := -1

	for i := 0; i < routing.NumPorts; i++ {
		port := (start + i) % routing.NumPorts
		if granted[port] && c.inputs[port].assembler.Requesting() {
			last = port
		}
	}

	if last >= 0 {
		c.grantStart.Set((last + 1) % routing.NumPorts)
	}
}

// Commit publishes the state computed during Tick.
func (c *Comp) Commit() {
	for _, in := range c.inputs {
		in.assembler.Commit()
		in.latch.Commit()
	}

	c.fabric.Commit()

	for _, out := range c.outputs {
		out.arbiter.Commit()
		out.disassembler.Commit()
		out.inFlight.Commit()
	}

	c.admission.Commit()
	c.grantStart.Commit()

	if occ := c.admission.Occupancy(); occ > c.stats.PeakOccupancy {
		c.stats.PeakOccupancy = occ
	}
}

var _ sim.Component = (*Comp)(nil)
