// Package platform assembles the two routers and six endpoints of the fabric.
package platform

import (
	"fmt"

	"github.com/sarchlab/twinrouter/noc/endpoint"
	"github.com/sarchlab/twinrouter/noc/link"
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/router"
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/sim"
)

// Platform is a built fabric.
type Platform struct {
	name      string
	engine    sim.Engine
	routers   [2]*router.Comp
	endpoints [packet.NumNodes]*endpoint.Comp
	wires     []*link.Wire
}

// Name returns the name of the fabric.
func (p *Platform) Name() string {
	return p.name
}

// Engine returns the engine that ticks the fabric.
func (p *Platform) Engine() sim.Engine {
	return p.engine
}

// Router returns the router owning a half.
func (p *Platform) Router(h routing.Half) *router.Comp {
	return p.routers[h]
}

// Routers returns both routers.
func (p *Platform) Routers() []*router.Comp {
	return p.routers[:]
}

// Endpoint returns the endpoint of a node.
func (p *Platform) Endpoint(n packet.NodeID) *endpoint.Comp {
	return p.endpoints[n]
}

// Endpoints returns all the endpoints, ordered by node.
func (p *Platform) Endpoints() []*endpoint.Comp {
	return p.endpoints[:]
}

// Components returns the routers followed by the endpoints.
func (p *Platform) Components() []sim.Component {
	comps := make([]sim.Component, 0, len(p.routers)+len(p.endpoints))

	for _, r := range p.routers {
		comps = append(comps, r)
	}

	for _, e := range p.endpoints {
		comps = append(comps, e)
	}

	return comps
}

// Wires returns all the wires of the fabric.
func (p *Platform) Wires() []*link.Wire {
	return p.wires
}

// Occupancy returns the number of packets inside both routers.
func (p *Platform) Occupancy() int {
	return p.routers[0].Occupancy() + p.routers[1].Occupancy()
}

func (p *Platform) connect(tx link.Transmitter, rx link.Acceptor) {
	name := fmt.Sprintf("%s.Wire[%d]", p.name, len(p.wires))
	p.wires = append(p.wires, link.Connect(name, tx, rx))
}

// Builder can build platforms.
type Builder struct {
	engine         sim.Engine
	laneCapacity   int
	admissionLimit int
	queueDepth     int
	deliver        endpoint.DeliverFunc
}

// MakeBuilder creates a Builder with the default capacities.
func MakeBuilder() Builder {
	return Builder{
		laneCapacity:   router.DefaultLaneCapacity,
		admissionLimit: router.DefaultAdmissionLimit,
		queueDepth:     endpoint.DefaultQueueDepth,
	}
}

// WithEngine sets the engine that ticks every component.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithLaneCapacity sets the lane depth of both routers.
func (b Builder) WithLaneCapacity(n int) Builder {
	b.laneCapacity = n
	return b
}

// WithAdmissionLimit sets the admission limit of both routers.
func (b Builder) WithAdmissionLimit(n int) Builder {
	b.admissionLimit = n
	return b
}

// WithQueueDepth sets the outgoing queue depth of the endpoints.
func (b Builder) WithQueueDepth(n int) Builder {
	b.queueDepth = n
	return b
}

// WithDeliver sets the function that every endpoint calls on arrival.
func (b Builder) WithDeliver(f endpoint.DeliverFunc) Builder {
	b.deliver = f
	return b
}

// Build creates the routers and the endpoints and wires them up.
func (b Builder) Build(name string) *Platform {
	if b.engine == nil {
		panic("platform requires an engine")
	}

	p := &Platform{name: name, engine: b.engine}

	rb := router.MakeBuilder().
		WithEngine(b.engine).
		WithLaneCapacity(b.laneCapacity).
		WithAdmissionLimit(b.admissionLimit)

	for _, h := range []routing.Half{routing.HalfA, routing.HalfB} {
		p.routers[h] = rb.WithHalf(h).
			Build(sim.BuildName(name, "Router"+h.String()))
	}

	eb := endpoint.MakeBuilder().
		WithEngine(b.engine).
		WithQueueDepth(b.queueDepth).
		WithDeliver(b.deliver)

	for n := packet.NodeID(0); n < packet.NumNodes; n++ {
		ep := eb.WithNode(n).
			Build(sim.BuildNameWithIndex(name, "Endpoint", int(n)))
		p.endpoints[n] = ep

		r := p.routers[routing.OwnerOf(n)]
		port := routing.LocalPortOf(n)
		p.connect(ep.NetworkOut(), r.InputPort(port))
		p.connect(r.OutputPort(port), ep.NetworkIn())
	}

	a, bb := p.routers[routing.HalfA], p.routers[routing.HalfB]
	p.connect(a.OutputPort(routing.BridgePort), bb.InputPort(routing.BridgePort))
	p.connect(bb.OutputPort(routing.BridgePort), a.InputPort(routing.BridgePort))

	return p
}
