package platform

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/routing"
)

// RouterVertex returns the graph vertex ID of a router. Endpoints use their
// node ID as the vertex ID.
func RouterVertex(h routing.Half) int64 {
	return int64(packet.NumNodes) + int64(h)
}

// Topology returns the physical links of the fabric as an undirected graph.
func (p *Platform) Topology() graph.Graph {
	g := simple.NewUndirectedGraph()

	for _, h := range []routing.Half{routing.HalfA, routing.HalfB} {
		g.AddNode(simple.Node(RouterVertex(h)))
	}

	for n := packet.NodeID(0); n < packet.NumNodes; n++ {
		g.SetEdge(g.NewEdge(
			simple.Node(int64(n)),
			simple.Node(RouterVertex(routing.OwnerOf(n)))))
	}

	g.SetEdge(g.NewEdge(
		simple.Node(RouterVertex(routing.HalfA)),
		simple.Node(RouterVertex(routing.HalfB))))

	return g
}

// ShortestHops returns the number of links on the shortest path between two
// endpoints of the topology.
func ShortestHops(g graph.Graph, src, dst packet.NodeID) int {
	shortest := path.DijkstraFrom(g.Node(int64(src)), g)
	nodes, _ := shortest.To(int64(dst))

	return len(nodes) - 1
}

// Route follows the routing tables from src to dst and returns the names of
// the routers visited, in order.
func (p *Platform) Route(src, dst packet.NodeID) []string {
	var visited []string

	h := routing.OwnerOf(src)
	for hop := 0; hop < len(p.routers); hop++ {
		r := p.routers[h]
		visited = append(visited, r.Name())

		if r.RoutingTable().FindPort(dst) != routing.BridgePort {
			return visited
		}

		h = h.Other()
	}

	panic("routing loop between the routers")
}
