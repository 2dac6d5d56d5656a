// Package endpoint provides the node adapter that sits between a producer or
// consumer of whole packets and the byte-serial network.
package endpoint

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/twinrouter/noc/link"
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/serdes"
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

// DefaultQueueDepth is the number of packets an endpoint can buffer for
// sending.
const DefaultQueueDepth = 5

// ErrQueueFull is returned by Send when the outgoing queue is full.
var ErrQueueFull = errors.New("endpoint queue is full")

// Hook positions of an endpoint. The hook item is the packet.
var (
	HookPosPacketInjected  = &sim.HookPos{Name: "PacketInjected"}
	HookPosPacketDelivered = &sim.HookPos{Name: "PacketDelivered"}
)

// DeliverFunc is called in the cycle in which a packet is fully received.
type DeliverFunc func(p packet.Packet, now sim.VTimeInCycle)

type pulse struct {
	pkt   packet.Packet
	valid bool
}

// Comp is an endpoint.
type Comp struct {
	*sim.ComponentBase

	node    packet.NodeID
	timer   sim.TimeTeller
	deliver DeliverFunc

	outQueue     queueing.Buffer[packet.Packet]
	disassembler *serdes.Disassembler
	assembler    *serdes.Assembler
	received     *sim.Register[pulse]

	offered              bool
	numSent, numReceived uint64
}

// Node returns the node ID of the endpoint.
func (c *Comp) Node() packet.NodeID {
	return c.node
}

// NetworkOut returns the end that sends packets into the network.
func (c *Comp) NetworkOut() link.Transmitter {
	return c.disassembler
}

// NetworkIn returns the end that receives packets from the network.
func (c *Comp) NetworkIn() link.Acceptor {
	return c.assembler
}

// QueueFull returns true if no more packets can be offered in this cycle.
func (c *Comp) QueueFull() bool {
	return !c.outQueue.CanPush()
}

// Pending returns the number of committed packets waiting to be sent.
func (c *Comp) Pending() int {
	return c.outQueue.Size()
}

// Meters returns the fill level of the outgoing queue.
func (c *Comp) Meters() []queueing.Meter {
	return []queueing.Meter{c.outQueue}
}

// Offer queues a packet for sending. It returns false if the queue is full
// or if the packet cannot be sent from this endpoint.
func (c *Comp) Offer(p packet.Packet) bool {
	return c.Send(p) == nil
}

// Send queues a packet for sending, explaining why if it cannot.
func (c *Comp) Send(p packet.Packet) error {
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, c.Name())
	}

	if p.Src != c.node {
		return errors.Errorf("%s: packet %s does not come from node %d",
			c.Name(), p, c.node)
	}

	if p.Dst == c.node {
		return errors.Errorf("%s: packet %s is addressed to itself",
			c.Name(), p)
	}

	if !c.outQueue.Enqueue(p) {
		return ErrQueueFull
	}

	c.offered = true

	return nil
}

// Received returns the packet that was completed in the previous cycle.
func (c *Comp) Received() (packet.Packet, bool) {
	r := c.received.Get()
	return r.pkt, r.valid
}

// NumSent returns the number of packets that entered the network.
func (c *Comp) NumSent() uint64 {
	return c.numSent
}

// NumReceived returns the number of packets delivered to the endpoint.
func (c *Comp) NumReceived() uint64 {
	return c.numReceived
}

// Tick moves packets between the queue and the network.
func (c *Comp) Tick() bool {
	madeProgress := c.offered

	madeProgress = c.send() || madeProgress
	madeProgress = c.recv() || madeProgress

	return madeProgress
}

func (c *Comp) send() bool {
	if c.disassembler.Ready() {
		if p, ok := c.outQueue.Dequeue(); ok {
			c.disassembler.Load(p)
			c.numSent++
			c.invoke(HookPosPacketInjected, p)
		}
	}

	return c.disassembler.Step()
}

func (c *Comp) recv() bool {
	p, done := c.assembler.Step()
	if !done {
		if c.received.Get().valid {
			c.received.Set(pulse{})
			return true
		}

		return c.assembler.Progressing()
	}

	c.received.Set(pulse{pkt: p, valid: true})
	c.numReceived++
	c.invoke(HookPosPacketDelivered, p)

	if c.deliver != nil {
		c.deliver(p, c.now())
	}

	return true
}

func (c *Comp) now() sim.VTimeInCycle {
	if c.timer == nil {
		return 0
	}

	return c.timer.CurrentTime()
}

func (c *Comp) invoke(pos *sim.HookPos, p packet.Packet) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{Domain: c, Pos: pos, Item: p})
}

// Commit publishes the state computed during Tick.
func (c *Comp) Commit() {
	c.outQueue.Commit()
	c.disassembler.Commit()
	c.assembler.Commit()
	c.received.Commit()
	c.offered = false
}

var _ sim.Component = (*Comp)(nil)
