// Package acceptance drives random traffic through the fabric and checks
// that every packet arrives once, unchanged, and in lane order.
package acceptance

import (
	"fmt"
	"log"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/sim"
)

type pair struct {
	src, dst packet.NodeID
}

// Test is a test case.
type Test struct {
	agents      []*Agent
	rng         *rngstream.RngStream
	nextPayload uint32

	numGenerated int
	expected     map[pair][]packet.Packet
	sentAt       map[packet.Packet]sim.VTimeInCycle
	received     map[packet.Packet]bool
	latencies    []float64
}

// NewTest creates a new test. Tests with the same name generate the same
// traffic if they are created in the same order.
func NewTest(name string) *Test {
	return &Test{
		rng:      rngstream.New(name),
		expected: make(map[pair][]packet.Packet),
		sentAt:   make(map[packet.Packet]sim.VTimeInCycle),
		received: make(map[packet.Packet]bool),
	}
}

// RegisterAgent adds an agent to the Test.
func (t *Test) RegisterAgent(agent *Agent) {
	t.agents = append(t.agents, agent)
}

// Agents returns the registered agents.
func (t *Test) Agents() []*Agent {
	return t.agents
}

// Send schedules a packet from its source agent.
func (t *Test) Send(src, dst packet.NodeID) packet.Packet {
	agent := t.agentOf(src)

	p := packet.MustNew(src, dst, t.nextPayload&packet.PayloadMask)
	t.nextPayload++

	agent.PacketsToSend = append(agent.PacketsToSend, p)
	t.expected[pair{src, dst}] = append(t.expected[pair{src, dst}], p)
	t.numGenerated++

	return p
}

// GenerateRandom schedules n packets between random pairs of distinct nodes.
func (t *Test) GenerateRandom(n int) {
	if len(t.agents) < 2 {
		panic("random traffic requires at least two agents")
	}

	for i := 0; i < n; i++ {
		srcIdx := t.rng.RandInt(0, len(t.agents)-1)

		dstIdx := t.rng.RandInt(0, len(t.agents)-1)
		for dstIdx == srcIdx {
			dstIdx = t.rng.RandInt(0, len(t.agents)-1)
		}

		t.Send(t.agents[srcIdx].Node(), t.agents[dstIdx].Node())
	}
}

func (t *Test) agentOf(node packet.NodeID) *Agent {
	for _, a := range t.agents {
		if a.Node() == node {
			return a
		}
	}

	panic(fmt.Sprintf("no agent for node %d", node))
}

func (t *Test) packetSent(p packet.Packet, now sim.VTimeInCycle) {
	t.sentAt[p] = now
}

// Receive checks a packet that arrived at its endpoint. It can be used as
// the deliver function of the endpoints.
func (t *Test) Receive(p packet.Packet, now sim.VTimeInCycle) {
	t.packetMustNotBeReceivedBefore(p)
	t.packetMustBeNextInItsLane(p)

	t.received[p] = true
	t.latencies = append(t.latencies, float64(now-t.sentAt[p]))
}

func (t *Test) packetMustNotBeReceivedBefore(p packet.Packet) {
	if t.received[p] {
		panic(fmt.Sprintf("packet %s is double delivered", p))
	}
}

func (t *Test) packetMustBeNextInItsLane(p packet.Packet) {
	key := pair{p.Src, p.Dst}
	queue := t.expected[key]

	if len(queue) == 0 {
		panic(fmt.Sprintf("packet %s was never sent", p))
	}

	if queue[0] != p {
		panic(fmt.Sprintf("packet %s arrived before %s", p, queue[0]))
	}

	t.expected[key] = queue[1:]
}

// NumReceived returns the number of packets received so far.
func (t *Test) NumReceived() int {
	return len(t.received)
}

// NumGenerated returns the number of packets scheduled for sending.
func (t *Test) NumGenerated() int {
	return t.numGenerated
}

// Verify returns an error naming how many packets are missing.
func (t *Test) Verify() error {
	missing := t.numGenerated - len(t.received)
	if missing == 0 {
		return nil
	}

	return errors.Errorf("%d of %d packets are not received",
		missing, t.numGenerated)
}

// MustHaveReceivedAll asserts that all the packets sent are received.
func (t *Test) MustHaveReceivedAll() {
	err := t.Verify()
	if err == nil {
		return
	}

	for key, queue := range t.expected {
		for _, p := range queue {
			log.Printf("packet %s (%d->%d) expected, but not received",
				p, key.src, key.dst)
		}
	}

	panic(err)
}

// LatencyReport summarizes the end-to-end latency, in cycles.
type LatencyReport struct {
	Count  int
	Mean   float64
	StdDev float64
	Median float64
	P99    float64
	Max    float64
}

// Report computes the latency statistics of the received packets.
func (t *Test) Report() LatencyReport {
	if len(t.latencies) == 0 {
		return LatencyReport{}
	}

	sorted := slices.Clone(t.latencies)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)

	return LatencyReport{
		Count:  len(sorted),
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P99:    stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}

// ReportLatency dumps the latency statistics to the log.
func (t *Test) ReportLatency() {
	r := t.Report()

	log.Printf(
		"%d packets, latency mean %.2f, stddev %.2f, median %.0f, "+
			"p99 %.0f, max %.0f cycles",
		r.Count, r.Mean, r.StdDev, r.Median, r.P99, r.Max)

	for _, a := range t.agents {
		log.Printf("agent %s, sent %d packets", a.Name(), a.NumSent())
	}
}

// Latencies returns the end-to-end latency of every received packet, in
// arrival order.
func (t *Test) Latencies() []float64 {
	return t.latencies
}
