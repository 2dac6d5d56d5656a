package router

import (
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/noc/serdes"
	"github.com/sarchlab/twinrouter/sim"
)

// Builder can help building routers.
type Builder struct {
	engine         sim.Engine
	half           routing.Half
	routingTable   routing.Table
	laneCapacity   int
	admissionLimit int
}

// MakeBuilder creates a Builder with the default capacities.
func MakeBuilder() Builder {
	return Builder{
		half:           routing.HalfA,
		laneCapacity:   DefaultLaneCapacity,
		admissionLimit: DefaultAdmissionLimit,
	}
}

// WithEngine sets the engine that ticks the router. Without an engine, the
// caller ticks the router directly.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithHalf selects the half of the address space the router owns. The
// routing table of that half is used unless WithRoutingTable is given.
func (b Builder) WithHalf(h routing.Half) Builder {
	b.half = h
	return b
}

// WithRoutingTable sets the routing table to be used by the router.
func (b Builder) WithRoutingTable(rt routing.Table) Builder {
	b.routingTable = rt
	return b
}

// WithLaneCapacity sets the depth of every lane of the fabric.
func (b Builder) WithLaneCapacity(n int) Builder {
	b.laneCapacity = n
	return b
}

// WithAdmissionLimit sets the number of packets that may be inside the
// router.
func (b Builder) WithAdmissionLimit(n int) Builder {
	b.admissionLimit = n
	return b
}

// Build creates a new router.
func (b Builder) Build(name string) *Comp {
	b.laneCapacityMustBePositive()
	b.admissionLimitMustBePositive()

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		half:          b.half,
		table:         b.routingTable,
		grantStart:    sim.NewRegister(0),
	}

	if c.table == nil {
		c.table = routing.NewHalfTable(b.half)
	}

	c.fabric = NewSwitchFabric(
		sim.BuildName(name, "Fabric"), c.table, b.laneCapacity)
	c.admission = NewAdmissionController(b.admissionLimit)

	for i := 0; i < routing.NumPorts; i++ {
		c.inputs[i] = b.buildInputPort(c, i)
		c.outputs[i] = &outputPort{
			index:        i,
			arbiter:      NewOutputArbiter(c.fabric.LanesOf(i)),
			disassembler: serdes.NewDisassembler(
				sim.BuildNameWithIndex(name, "Disassembler", i)),
			inFlight: sim.NewRegister[*Flit](nil),
		}
	}

	if b.engine != nil {
		b.engine.RegisterComponent(c)
	}

	return c
}

func (b Builder) buildInputPort(c *Comp, index int) *inputPort {
	gate := serdes.GateFunc(func() bool {
		return c.mayStart(index)
	})

	return &inputPort{
		index: index,
		assembler: serdes.NewAssembler(
			sim.BuildNameWithIndex(c.Name(), "Assembler", index), gate),
		latch: sim.NewRegister[*Flit](nil),
	}
}

func (b Builder) laneCapacityMustBePositive() {
	if b.laneCapacity <= 0 {
		panic("router lane capacity must be positive")
	}
}

func (b Builder) admissionLimitMustBePositive() {
	if b.admissionLimit <= 0 {
		panic("router admission limit must be positive")
	}
}
