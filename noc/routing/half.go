package routing

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/twinrouter/noc/packet"
)

// BridgePort is the port that links the two routers of the fabric.
const BridgePort = NumPorts - 1

// NodesPerHalf is the number of endpoints attached to each router.
const NodesPerHalf = 3

// Half selects which half of the address space a router owns.
type Half int

// The two halves of the fabric.
const (
	HalfA Half = iota
	HalfB
)

func (h Half) String() string {
	switch h {
	case HalfA:
		return "A"
	case HalfB:
		return "B"
	default:
		return fmt.Sprintf("Half(%d)", int(h))
	}
}

// Other returns the opposite half.
func (h Half) Other() Half {
	if h == HalfA {
		return HalfB
	}

	return HalfA
}

// FirstNode returns the lowest node owned by the half.
func (h Half) FirstNode() packet.NodeID {
	return packet.NodeID(int(h) * NodesPerHalf)
}

// ParseHalf parses "A" or "B", ignoring case.
func ParseHalf(s string) (Half, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return HalfA, nil
	case "B":
		return HalfB, nil
	default:
		return 0, errors.Errorf("unknown routing half %q", s)
	}
}

// OwnerOf returns the half whose router the node is attached to.
func OwnerOf(node packet.NodeID) Half {
	if !node.IsValid() {
		panic(fmt.Sprintf("node %d is not attached", node))
	}

	if int(node) < NodesPerHalf {
		return HalfA
	}

	return HalfB
}

// LocalPortOf returns the port of the owning router that the node is
// attached to.
func LocalPortOf(node packet.NodeID) int {
	return int(node - OwnerOf(node).FirstNode())
}

// NewHalfTable creates the routing table of the router owning half h. Local
// nodes map to ports 0 to 2 and everything else goes to the bridge.
func NewHalfTable(h Half) Table {
	if h != HalfA && h != HalfB {
		panic(fmt.Sprintf("invalid half %d", int(h)))
	}

	t := NewTable()

	for i := 0; i < NodesPerHalf; i++ {
		t.DefineRoute(h.FirstNode()+packet.NodeID(i), i)
	}

	t.DefineDefaultRoute(BridgePort)

	return t
}
