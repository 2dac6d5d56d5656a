// Package link models the byte-serial handshake between two neighbours.
//
// A transmitter raises Put and drives Data; a receiver raises Free when it
// can take the first byte of a packet. The header byte moves on a cycle in
// which both Put and Free are high. The three payload bytes follow on the
// next three cycles without any further handshake.
//
// All signals are functions of committed state, so both sides may read them
// in any order during a cycle.
package link

import (
	"fmt"
)

// A Sender exposes the transmitting side of a link.
type Sender interface {
	// Put is held high for every byte of a packet.
	Put() bool

	// Data is the byte on the lane. It is only meaningful while Put is high.
	Data() byte
}

// A Receiver exposes the receiving side of a link.
type Receiver interface {
	// Free is high when the receiver can take the header byte of a packet.
	Free() bool
}

// A Transmitter is a Sender that needs to see its downstream receiver.
type Transmitter interface {
	Sender
	ConnectDownstream(r Receiver)
}

// An Acceptor is a Receiver that needs to see its upstream sender.
type Acceptor interface {
	Receiver
	ConnectUpstream(s Sender)
}

// Wire connects exactly one transmitter to one acceptor.
type Wire struct {
	name string
	tx   Transmitter
	rx   Acceptor
}

// Connect plugs a transmitter and an acceptor into a new wire.
func Connect(name string, tx Transmitter, rx Acceptor) *Wire {
	if tx == nil || rx == nil {
		panic(fmt.Sprintf("wire %s: both ends must be given", name))
	}

	w := &Wire{name: name, tx: tx, rx: rx}

	tx.ConnectDownstream(w)
	rx.ConnectUpstream(w)

	return w
}

// Name returns the name of the wire.
func (w *Wire) Name() string {
	return w.name
}

// Put forwards the transmitter's Put signal.
func (w *Wire) Put() bool {
	return w.tx.Put()
}

// Data forwards the transmitter's data lane.
func (w *Wire) Data() byte {
	return w.tx.Data()
}

// Free forwards the acceptor's Free signal.
func (w *Wire) Free() bool {
	return w.rx.Free()
}

// Transferring returns true if the header byte moves in this cycle.
func (w *Wire) Transferring() bool {
	return w.Put() && w.Free()
}

var (
	_ Sender   = (*Wire)(nil)
	_ Receiver = (*Wire)(nil)
)

// Idle is a sender that never puts anything. It is the upstream of an
// unconnected acceptor.
type Idle struct{}

// Put always returns false.
func (Idle) Put() bool { return false }

// Data always returns 0.
func (Idle) Data() byte { return 0 }

// Blocked is a receiver that is never free. It is the downstream of an
// unconnected transmitter.
type Blocked struct{}

// Free always returns false.
func (Blocked) Free() bool { return false }
