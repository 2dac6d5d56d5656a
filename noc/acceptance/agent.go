package acceptance

import (
	"github.com/iti/rngstream"

	"github.com/sarchlab/twinrouter/noc/endpoint"
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/sim"
)

// Agent feeds the packets of one node into its endpoint.
type Agent struct {
	*sim.ComponentBase

	timer    sim.TimeTeller
	test     *Test
	endpoint *endpoint.Comp
	rng      *rngstream.RngStream

	// InjectionRate is the chance of offering a packet in a cycle.
	InjectionRate float64

	PacketsToSend []packet.Packet
	numSent       uint64
}

// NewAgent creates a new agent that drives the endpoint.
func NewAgent(
	engine sim.Engine,
	name string,
	ep *endpoint.Comp,
	test *Test,
) *Agent {
	a := &Agent{
		ComponentBase: sim.NewComponentBase(name),
		timer:         engine,
		test:          test,
		endpoint:      ep,
		rng:           rngstream.New(name),
		InjectionRate: 1,
	}

	engine.RegisterComponent(a)

	return a
}

// Node returns the node that the agent sends from.
func (a *Agent) Node() packet.NodeID {
	return a.endpoint.Node()
}

// NumSent returns the number of packets the endpoint accepted.
func (a *Agent) NumSent() uint64 {
	return a.numSent
}

// Tick offers the next packet to the endpoint.
func (a *Agent) Tick() bool {
	if len(a.PacketsToSend) == 0 || a.endpoint.QueueFull() {
		return false
	}

	if a.InjectionRate < 1 && a.rng.RandU01() >= a.InjectionRate {
		return true
	}

	p := a.PacketsToSend[0]
	if err := a.endpoint.Send(p); err != nil {
		panic(err)
	}

	a.PacketsToSend = a.PacketsToSend[1:]
	a.numSent++
	a.test.packetSent(p, a.timer.CurrentTime())

	return true
}

// Commit does nothing. The endpoint holds all the state.
func (a *Agent) Commit() {}
