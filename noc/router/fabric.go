package router

import (
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

// DefaultLaneCapacity is the depth of each lane unless configured otherwise.
const DefaultLaneCapacity = 32

// RouteResult tells what happened to a packet offered to the fabric.
type RouteResult int

// The outcomes of TryRoute.
const (
	Enqueued RouteResult = iota
	Deferred
	Dropped
)

func (r RouteResult) String() string {
	switch r {
	case Enqueued:
		return "Enqueued"
	case Deferred:
		return "Deferred"
	default:
		return "Dropped"
	}
}

// SwitchFabric holds one lane for every pair of input and output ports.
type SwitchFabric struct {
	table routing.Table
	lanes [routing.NumPorts][routing.NumLanes]queueing.Buffer[*Flit]
}

// NewSwitchFabric creates the lanes of a fabric using the routing table.
func NewSwitchFabric(
	name string,
	table routing.Table,
	laneCapacity int,
) *SwitchFabric {
	if table == nil {
		panic("switch fabric requires a routing table")
	}

	f := &SwitchFabric{table: table}
	builder := queueing.MakeBufferBuilder().WithCapacity(laneCapacity)

	for out := 0; out < routing.NumPorts; out++ {
		for lane := 0; lane < routing.NumLanes; lane++ {
			laneName := sim.BuildNameWithIndex(
				sim.BuildNameWithIndex(name, "Out", out), "Lane", lane)
			f.lanes[out][lane] = queueing.Build[*Flit](builder, laneName)
		}
	}

	return f
}

// TryRoute pushes the flit into the lane selected by its destination and
// the input port. The flit is not taken if the lane is full. A flit whose
// route leads back out of its input port has no lane and is dropped. This
// happens to self-addressed packets and, at the bridge, to destinations
// that no endpoint owns.
func (f *SwitchFabric) TryRoute(inPort int, flit *Flit) RouteResult {
	out := f.table.FindPort(flit.Packet.Dst)
	flit.OutPort = out

	if out == inPort {
		return Dropped
	}

	lane := routing.LaneIndex(inPort, out)

	if !f.lanes[out][lane].Enqueue(flit) {
		return Deferred
	}

	return Enqueued
}

// Lane returns a lane of an output port.
func (f *SwitchFabric) Lane(out, lane int) queueing.Buffer[*Flit] {
	return f.lanes[out][lane]
}

// LanesOf returns the lanes feeding an output port.
func (f *SwitchFabric) LanesOf(out int) [routing.NumLanes]queueing.Buffer[*Flit] {
	return f.lanes[out]
}

// Occupancy returns the number of committed flits in all lanes.
func (f *SwitchFabric) Occupancy() int {
	n := 0

	for out := range f.lanes {
		for lane := range f.lanes[out] {
			n += f.lanes[out][lane].Size()
		}
	}

	return n
}

// Buffers returns every lane, port by port.
func (f *SwitchFabric) Buffers() []queueing.Buffer[*Flit] {
	bufs := make([]queueing.Buffer[*Flit], 0,
		routing.NumPorts*routing.NumLanes)

	for out := range f.lanes {
		bufs = append(bufs, f.lanes[out][:]...)
	}

	return bufs
}

// Commit commits all the lanes.
func (f *SwitchFabric) Commit() {
	for out := range f.lanes {
		for lane := range f.lanes[out] {
			f.lanes[out][lane].Commit()
		}
	}
}
