package analysis

import (
	"fmt"

	"github.com/sarchlab/twinrouter/noc/router"
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/sim"
)

func isRouter(c sim.Component) bool {
	_, ok := c.(*router.Comp)
	return ok
}

// portAnalyzer counts the packets that complete on every port of a router.
type portAnalyzer struct {
	logger   PerfLogger
	name     string
	incoming [routing.NumPorts]uint64
	outgoing [routing.NumPorts]uint64
	deferred [routing.NumPorts]uint64
}

func newPortAnalyzer(name string, logger PerfLogger) *portAnalyzer {
	return &portAnalyzer{name: name, logger: logger}
}

// Func counts the packets reported by the router hooks.
func (a *portAnalyzer) Func(ctx sim.HookCtx) {
	port, ok := ctx.Detail.(int)
	if !ok {
		return
	}

	switch ctx.Pos {
	case router.HookPosPacketAssembled:
		a.incoming[port]++
	case router.HookPosPacketSent:
		a.outgoing[port]++
	case router.HookPosPacketDeferred:
		a.deferred[port]++
	}
}

func (a *portAnalyzer) sample(_ sim.VTimeInCycle) {}

func (a *portAnalyzer) summarize(start, end sim.VTimeInCycle) {
	cycles := float64(end - start)

	for port := 0; port < routing.NumPorts; port++ {
		where := fmt.Sprintf("%s.Port[%d]", a.name, port)

		a.entry(start, end, where, "IncomingThroughput",
			float64(a.incoming[port])/cycles)
		a.entry(start, end, where, "OutgoingThroughput",
			float64(a.outgoing[port])/cycles)
		a.entry(start, end, where, "Deferred", float64(a.deferred[port]))
	}

	a.incoming = [routing.NumPorts]uint64{}
	a.outgoing = [routing.NumPorts]uint64{}
	a.deferred = [routing.NumPorts]uint64{}
}

func (a *portAnalyzer) entry(
	start, end sim.VTimeInCycle,
	where, what string,
	value float64,
) {
	unit := "packets/cycle"
	if what == "Deferred" {
		unit = "packets"
	}

	a.logger.AddDataEntry(PerfAnalyzerEntry{
		Start:     start,
		End:       end,
		Where:     where,
		What:      what,
		EntryType: "Port",
		Value:     value,
		Unit:      unit,
	})
}
