package router

import (
	"fmt"

	"github.com/sarchlab/twinrouter/sim"
)

// DefaultAdmissionLimit is the number of packets a router admits unless
// configured otherwise.
const DefaultAdmissionLimit = 24

// AdmissionController counts the packets that are inside the fabric and
// gates the input ports.
//
// Dequeues are accounted one cycle late: the count of a cycle is only
// subtracted in the next update. The counter can therefore read high for a
// cycle, but it has a single writer.
type AdmissionController struct {
	limit   int
	counter *sim.Register[int]
	deqPrev *sim.Register[int]
}

// NewAdmissionController creates an AdmissionController.
func NewAdmissionController(limit int) *AdmissionController {
	if limit <= 0 {
		panic("admission limit must be positive")
	}

	return &AdmissionController{
		limit:   limit,
		counter: sim.NewRegister(0),
		deqPrev: sim.NewRegister(0),
	}
}

// Limit returns the admission limit.
func (a *AdmissionController) Limit() int {
	return a.limit
}

// Occupancy returns the committed counter.
func (a *AdmissionController) Occupancy() int {
	return a.counter.Get()
}

// PendingDequeues returns the dequeues of the previous cycle that the next
// update will subtract.
func (a *AdmissionController) PendingDequeues() int {
	return a.deqPrev.Get()
}

// MayAccept returns true if the counter is below the limit.
func (a *AdmissionController) MayAccept() bool {
	return a.counter.Get() < a.limit
}

// Available returns how many new packets can be started while the given
// number of slots is already reserved by packets outside the fabric.
func (a *AdmissionController) Available(reserved int) int {
	n := a.limit - a.counter.Get() - reserved
	if n < 0 {
		return 0
	}

	return n
}

// Update stages the counter for the next cycle from the enqueues of this
// cycle and the dequeues of the previous cycle. The dequeues of this cycle
// are remembered for the next update.
func (a *AdmissionController) Update(enqueued, dequeued int) {
	next := a.counter.Get() + enqueued - a.deqPrev.Get()
	if next < 0 {
		next = 0
	}

	if next > a.limit {
		panic(fmt.Sprintf("admission counter %d exceeds limit %d",
			next, a.limit))
	}

	if next != a.counter.Get() {
		a.counter.Set(next)
	}

	if dequeued != a.deqPrev.Get() {
		a.deqPrev.Set(dequeued)
	}
}

// Changing returns true if Update staged a new value.
func (a *AdmissionController) Changing() bool {
	return a.counter.IsStaged() || a.deqPrev.IsStaged()
}

// Commit publishes the staged counter.
func (a *AdmissionController) Commit() {
	a.counter.Commit()
	a.deqPrev.Commit()
}
