// Package packet defines the 32-bit packet that travels across the fabric and
// its 4-byte wire encoding.
package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

// NumBytes is the number of bytes a packet occupies on a link.
const NumBytes = 4

// PayloadMask selects the 24 payload bits.
const PayloadMask = 0xFFFFFF

// NumNodes is the number of endpoints attached to the fabric.
const NumNodes = 6

// MaxNodeID is the largest node ID that fits in the 4-bit address fields.
const MaxNodeID = 0xF

// A NodeID addresses an endpoint. The wire format can carry 0-15, but only
// 0 to NumNodes-1 are attached to the fabric.
type NodeID uint8

// IsValid returns true if the node is attached to the fabric.
func (n NodeID) IsValid() bool {
	return n < NumNodes
}

// Packet is the unit that the routers switch. It is a plain value and is
// never modified once assembled.
type Packet struct {
	Src     NodeID
	Dst     NodeID
	Payload uint32
}

// New creates a packet after checking that every field fits its bit width
// and that both nodes are attached to the fabric.
func New(src, dst NodeID, payload uint32) (Packet, error) {
	p := Packet{Src: src, Dst: dst, Payload: payload}

	if err := p.Validate(); err != nil {
		return Packet{}, err
	}

	return p, nil
}

// MustNew is like New but panics on error.
func MustNew(src, dst NodeID, payload uint32) Packet {
	p, err := New(src, dst, payload)
	if err != nil {
		panic(err)
	}

	return p
}

// Validate checks the fields of the packet.
func (p Packet) Validate() error {
	if p.Src > MaxNodeID || p.Dst > MaxNodeID {
		return errors.Errorf("node id out of the 4-bit range: %s", p)
	}

	if !p.Src.IsValid() {
		return errors.Errorf("source node %d is not attached", p.Src)
	}

	if !p.Dst.IsValid() {
		return errors.Errorf("destination node %d is not attached", p.Dst)
	}

	if p.Payload&^PayloadMask != 0 {
		return errors.Errorf("payload 0x%x exceeds 24 bits", p.Payload)
	}

	return nil
}

// Header returns the first byte on the wire, with the source in the high
// nibble and the destination in the low nibble.
func (p Packet) Header() byte {
	return byte(p.Src&0xF)<<4 | byte(p.Dst&0xF)
}

// Encode returns the 4 bytes of the packet in wire order. The payload is sent
// most significant byte first.
func (p Packet) Encode() [NumBytes]byte {
	return [NumBytes]byte{
		p.Header(),
		byte(p.Payload >> 16),
		byte(p.Payload >> 8),
		byte(p.Payload),
	}
}

// Decode rebuilds a packet from its wire bytes.
func Decode(b [NumBytes]byte) Packet {
	return Packet{
		Src:     NodeID(b[0] >> 4),
		Dst:     NodeID(b[0] & 0xF),
		Payload: uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
	}
}

// String implements fmt.Stringer.
func (p Packet) String() string {
	return fmt.Sprintf("%d->%d:0x%06x", p.Src, p.Dst, p.Payload)
}
