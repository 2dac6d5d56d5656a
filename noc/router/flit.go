package router

import (
	"fmt"

	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/sim"
)

// A Flit is a packet travelling inside one router. It carries the ID that
// traces follow, together with the ports the packet uses.
type Flit struct {
	ID      string
	Packet  packet.Packet
	InPort  int
	OutPort int
}

// NewFlit wraps a packet that has just been assembled on an input port.
func NewFlit(p packet.Packet, inPort int) *Flit {
	return &Flit{
		ID:      sim.GetIDGenerator().Generate(),
		Packet:  p,
		InPort:  inPort,
		OutPort: -1,
	}
}

func (f *Flit) String() string {
	return fmt.Sprintf("flit %s (%s, %d->%d)", f.ID, f.Packet, f.InPort, f.OutPort)
}
