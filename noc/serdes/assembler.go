// Package serdes provides the state machines that turn packets into byte
// streams and back. Both the routers and the endpoints use them.
package serdes

import (
	"fmt"

	"github.com/sarchlab/twinrouter/noc/link"
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/sim"
)

// AssemblerState is the state of an Assembler. The Byte states name the byte
// the assembler waits for.
type AssemblerState int

// The states of an Assembler.
const (
	AssemblerIdle AssemblerState = iota
	AssemblerByte1
	AssemblerByte2
	AssemblerByte3
)

func (s AssemblerState) String() string {
	switch s {
	case AssemblerIdle:
		return "Idle"
	case AssemblerByte1:
		return "Byte1"
	case AssemblerByte2:
		return "Byte2"
	case AssemblerByte3:
		return "Byte3"
	default:
		return fmt.Sprintf("AssemblerState(%d)", int(s))
	}
}

// A Gate decides whether an idle Assembler may start taking a new packet.
type Gate interface {
	MayStart() bool
}

// GateFunc adapts a function to a Gate.
type GateFunc func() bool

// MayStart calls f.
func (f GateFunc) MayStart() bool {
	return f()
}

// AlwaysOpen is a Gate that never blocks.
var AlwaysOpen Gate = GateFunc(func() bool { return true })

type assemblerState struct {
	phase AssemblerState
	bytes [packet.NumBytes]byte
}

// An Assembler collects 4 bytes from its upstream sender into a Packet.
type Assembler struct {
	name     string
	gate     Gate
	upstream link.Sender
	attached bool

	state *sim.Register[assemblerState]
}

// NewAssembler creates an Assembler. The gate is consulted, together with the
// idle state, to raise Free.
func NewAssembler(name string, gate Gate) *Assembler {
	sim.NameMustBeValid(name)

	if gate == nil {
		gate = AlwaysOpen
	}

	return &Assembler{
		name:     name,
		gate:     gate,
		upstream: link.Idle{},
		state:    sim.NewRegister(assemblerState{}),
	}
}

// Name returns the name of the assembler.
func (a *Assembler) Name() string {
	return a.name
}

// ConnectUpstream sets the sender that feeds the assembler.
func (a *Assembler) ConnectUpstream(s link.Sender) {
	if a.attached {
		panic(fmt.Sprintf("%s: upstream already connected", a.name))
	}

	a.upstream = s
	a.attached = true
}

// State returns the committed state.
func (a *Assembler) State() AssemblerState {
	return a.state.Get().phase
}

// Busy returns true if a packet is partially received.
func (a *Assembler) Busy() bool {
	return a.State() != AssemblerIdle
}

// Free is high when the assembler is idle and the gate lets a new packet in.
func (a *Assembler) Free() bool {
	return a.State() == AssemblerIdle && a.gate.MayStart()
}

// Requesting returns true if the upstream offers a header byte to an idle
// assembler, regardless of the gate.
func (a *Assembler) Requesting() bool {
	return a.State() == AssemblerIdle && a.upstream.Put()
}

// Step takes at most one byte from the upstream. On the cycle the last byte
// is taken, it returns the completed packet and true.
func (a *Assembler) Step() (packet.Packet, bool) {
	cur := a.state.Get()

	switch cur.phase {
	case AssemblerIdle:
		if !a.upstream.Put() || !a.gate.MayStart() {
			return packet.Packet{}, false
		}

		next := assemblerState{phase: AssemblerByte1}
		next.bytes[0] = a.upstream.Data()
		a.state.Set(next)

		return packet.Packet{}, false
	case AssemblerByte1, AssemblerByte2:
		next := cur
		next.bytes[int(cur.phase)] = a.upstream.Data()
		next.phase = cur.phase + 1
		a.state.Set(next)

		return packet.Packet{}, false
	case AssemblerByte3:
		bytes := cur.bytes
		bytes[3] = a.upstream.Data()
		a.state.Set(assemblerState{})

		return packet.Decode(bytes), true
	default:
		panic(fmt.Sprintf("%s: unknown state %s", a.name, cur.phase))
	}
}

// Progressing returns true if Step took a byte in this cycle.
func (a *Assembler) Progressing() bool {
	return a.state.IsStaged()
}

// Commit publishes the state computed by Step.
func (a *Assembler) Commit() {
	a.state.Commit()
}

var _ link.Acceptor = (*Assembler)(nil)
