package router

import (
	"github.com/sarchlab/twinrouter/noc/routing"
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

// OutputArbiter picks, in round-robin order, the lane that an output port
// serves next.
type OutputArbiter struct {
	lanes [routing.NumLanes]queueing.Buffer[*Flit]
	rr    *sim.Register[int]
}

// NewOutputArbiter creates an arbiter over the lanes of one output port.
func NewOutputArbiter(
	lanes [routing.NumLanes]queueing.Buffer[*Flit],
) *OutputArbiter {
	return &OutputArbiter{
		lanes: lanes,
		rr:    sim.NewRegister(0),
	}
}

// Pointer returns the lane that has the highest priority in this cycle.
func (a *OutputArbiter) Pointer() int {
	return a.rr.Get()
}

// Arbitrate scans the lanes starting from the pointer and dequeues the first
// flit it finds. The pointer moves to the lane after the selected one. If all
// lanes are empty, nothing changes.
func (a *OutputArbiter) Arbitrate() (lane int, flit *Flit, ok bool) {
	rr := a.rr.Get()

	for i := 0; i < routing.NumLanes; i++ {
		lane = (rr + i) % routing.NumLanes

		flit, ok = a.lanes[lane].Dequeue()
		if !ok {
			continue
		}

		a.rr.Set((lane + 1) % routing.NumLanes)

		return lane, flit, true
	}

	return -1, nil, false
}

// Commit publishes the pointer.
func (a *OutputArbiter) Commit() {
	a.rr.Commit()
}
