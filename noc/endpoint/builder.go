package endpoint

import (
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/serdes"
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

// Builder can help building endpoints.
type Builder struct {
	engine     sim.Engine
	node       packet.NodeID
	queueDepth int
	deliver    DeliverFunc
}

// MakeBuilder creates a new Builder with default configurations.
func MakeBuilder() Builder {
	return Builder{
		queueDepth: DefaultQueueDepth,
	}
}

// WithEngine sets the engine that ticks the endpoint. The engine also tells
// the time of deliveries.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithNode sets the node ID of the endpoint.
func (b Builder) WithNode(n packet.NodeID) Builder {
	b.node = n
	return b
}

// WithQueueDepth sets the number of packets that can wait to be sent.
func (b Builder) WithQueueDepth(n int) Builder {
	b.queueDepth = n
	return b
}

// WithDeliver sets the function to call when a packet arrives.
func (b Builder) WithDeliver(f DeliverFunc) Builder {
	b.deliver = f
	return b
}

// Build creates a new endpoint.
func (b Builder) Build(name string) *Comp {
	if !b.node.IsValid() {
		panic("endpoint node is not attached to the fabric")
	}

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		node:          b.node,
		deliver:       b.deliver,
		outQueue: queueing.Build[packet.Packet](
			queueing.MakeBufferBuilder().WithCapacity(b.queueDepth),
			sim.BuildName(name, "OutQueue")),
		disassembler: serdes.NewDisassembler(
			sim.BuildName(name, "Disassembler")),
		assembler: serdes.NewAssembler(
			sim.BuildName(name, "Assembler"), serdes.AlwaysOpen),
		received: sim.NewRegister(pulse{}),
	}

	if b.engine != nil {
		c.timer = b.engine
		b.engine.RegisterComponent(c)
	}

	return c
}
