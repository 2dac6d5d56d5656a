// Package routing defines the static tables that map a destination node to
// an output port of a router.
package routing

import (
	"golang.org/x/exp/slices"

	"github.com/sarchlab/twinrouter/noc/packet"
)

// NumPorts is the number of bidirectional ports on a router.
const NumPorts = 4

// NumLanes is the number of lanes feeding one output port. Each lane is
// dedicated to one of the other input ports.
const NumLanes = NumPorts - 1

// Table is a routing table that can find the output port according to the
// final destination.
type Table interface {
	FindPort(dst packet.NodeID) int
	DefineRoute(finalDst packet.NodeID, outputPort int)
	DefineDefaultRoute(outputPort int)

	// LocalNodes returns the nodes that have a route of their own, sorted.
	LocalNodes() []packet.NodeID
}

// NewTable creates a new Table. Nodes without a route go to the default
// port, which is port 0 until DefineDefaultRoute is called.
func NewTable() Table {
	t := &table{}
	t.t = make(map[packet.NodeID]int)

	return t
}

type table struct {
	t           map[packet.NodeID]int
	defaultPort int
}

func (t table) FindPort(dst packet.NodeID) int {
	out, found := t.t[dst]
	if found {
		return out
	}

	return t.defaultPort
}

func (t *table) DefineRoute(finalDst packet.NodeID, outputPort int) {
	portMustBeValid(outputPort)
	t.t[finalDst] = outputPort
}

func (t *table) DefineDefaultRoute(outputPort int) {
	portMustBeValid(outputPort)
	t.defaultPort = outputPort
}

func (t table) LocalNodes() []packet.NodeID {
	nodes := make([]packet.NodeID, 0, len(t.t))
	for n := range t.t {
		nodes = append(nodes, n)
	}

	slices.Sort(nodes)

	return nodes
}

func portMustBeValid(port int) {
	if port < 0 || port >= NumPorts {
		panic("port out of range")
	}
}

// LaneIndex returns the lane of output port dst that carries packets coming
// from input port src. The lane is found by removing src from the ports
// other than dst. A packet leaving through its ingress port is a wiring
// fault and panics.
func LaneIndex(src, dst int) int {
	portMustBeValid(src)
	portMustBeValid(dst)

	if src == dst {
		panic("u-turn: a packet cannot leave through the port it came in")
	}

	if src < dst {
		return src
	}

	return src - 1
}

// InputPortOf is the inverse of LaneIndex. It returns the input port that
// feeds the given lane of output port dst.
func InputPortOf(lane, dst int) int {
	portMustBeValid(dst)

	if lane < 0 || lane >= NumLanes {
		panic("lane out of range")
	}

	if lane < dst {
		return lane
	}

	return lane + 1
}
