package serdes

import (
	"fmt"

	"github.com/sarchlab/twinrouter/noc/link"
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/sim"
)

// DisassemblerState is the state of a Disassembler. Each non-idle state names
// the byte being driven on the lane.
type DisassemblerState int

// The states of a Disassembler.
const (
	DisassemblerIdle DisassemblerState = iota
	DisassemblerLoad
	DisassemblerByte1
	DisassemblerByte2
	DisassemblerByte3
)

func (s DisassemblerState) String() string {
	switch s {
	case DisassemblerIdle:
		return "Idle"
	case DisassemblerLoad:
		return "Load"
	case DisassemblerByte1:
		return "Byte1"
	case DisassemblerByte2:
		return "Byte2"
	case DisassemblerByte3:
		return "Byte3"
	default:
		return fmt.Sprintf("DisassemblerState(%d)", int(s))
	}
}

type disassemblerState struct {
	phase DisassemblerState
	pkt   packet.Packet
}

// A Disassembler streams a Packet to its downstream receiver, one byte per
// cycle. The header byte is held in Load until the receiver is free.
type Disassembler struct {
	name       string
	downstream link.Receiver
	attached   bool

	state *sim.Register[disassemblerState]
}

// NewDisassembler creates a Disassembler.
func NewDisassembler(name string) *Disassembler {
	sim.NameMustBeValid(name)

	return &Disassembler{
		name:       name,
		downstream: link.Blocked{},
		state:      sim.NewRegister(disassemblerState{}),
	}
}

// Name returns the name of the disassembler.
func (d *Disassembler) Name() string {
	return d.name
}

// ConnectDownstream sets the receiver that the disassembler feeds.
func (d *Disassembler) ConnectDownstream(r link.Receiver) {
	if d.attached {
		panic(fmt.Sprintf("%s: downstream already connected", d.name))
	}

	d.downstream = r
	d.attached = true
}

// State returns the committed state.
func (d *Disassembler) State() DisassemblerState {
	return d.state.Get().phase
}

// Done is high while the disassembler is idle, which is when it may be
// handed the next packet.
func (d *Disassembler) Done() bool {
	return d.State() == DisassemblerIdle
}

// Ready returns true if Load would be accepted in this cycle: the
// disassembler is idle, nothing was loaded yet in this cycle, and the
// downstream receiver is free.
func (d *Disassembler) Ready() bool {
	return d.Done() && !d.state.IsStaged() && d.downstream.Free()
}

// Load hands a packet to the disassembler. It panics if the disassembler is
// not Ready.
func (d *Disassembler) Load(p packet.Packet) {
	if !d.Ready() {
		panic(fmt.Sprintf("%s: loading while not ready", d.name))
	}

	d.state.Set(disassemblerState{phase: DisassemblerLoad, pkt: p})
}

// Put is the sending strobe. It is held for all the bytes of a packet.
func (d *Disassembler) Put() bool {
	return d.State() != DisassemblerIdle
}

// Data returns the byte of the packet selected by the state.
func (d *Disassembler) Data() byte {
	cur := d.state.Get()
	bytes := cur.pkt.Encode()

	switch cur.phase {
	case DisassemblerLoad:
		return bytes[0]
	case DisassemblerByte1:
		return bytes[1]
	case DisassemblerByte2:
		return bytes[2]
	case DisassemblerByte3:
		return bytes[3]
	default:
		return 0
	}
}

// Packet returns the packet being sent, if any.
func (d *Disassembler) Packet() (packet.Packet, bool) {
	cur := d.state.Get()

	return cur.pkt, cur.phase != DisassemblerIdle
}

// Finishing returns true if the last byte of a packet is on the lane in this
// cycle.
func (d *Disassembler) Finishing() bool {
	return d.State() == DisassemblerByte3
}

// Step advances the state machine. It returns true if the state changes.
func (d *Disassembler) Step() bool {
	cur := d.state.Get()

	switch cur.phase {
	case DisassemblerIdle:
		return d.state.IsStaged()
	case DisassemblerLoad:
		if !d.downstream.Free() {
			return false
		}

		d.state.Set(disassemblerState{phase: DisassemblerByte1, pkt: cur.pkt})
	case DisassemblerByte1, DisassemblerByte2:
		d.state.Set(disassemblerState{phase: cur.phase + 1, pkt: cur.pkt})
	case DisassemblerByte3:
		d.state.Set(disassemblerState{})
	default:
		panic(fmt.Sprintf("%s: unknown state %s", d.name, cur.phase))
	}

	return true
}

// Commit publishes the state computed by Load and Step.
func (d *Disassembler) Commit() {
	d.state.Commit()
}

var _ link.Transmitter = (*Disassembler)(nil)
