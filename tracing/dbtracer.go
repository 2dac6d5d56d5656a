package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/twinrouter/sim"
)

// TraceWriter can write tasks into a storage.
type TraceWriter interface {
	Init() error
	Write(task Task)
	Flush()
}

// DBTracer is a tracer that hands completed tasks to a TraceWriter.
type DBTracer struct {
	timeTeller sim.TimeTeller
	backend    TraceWriter

	lock               sync.Mutex
	startTime, endTime sim.VTimeInCycle
	tracingTasks       map[string]Task
}

// NewDBTracer creates a new DBTracer. The backend is flushed when the program
// exits through atexit.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	backend TraceWriter,
) *DBTracer {
	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits the tracer to the tasks that overlap with the range.
// An end time of 0 means no limit.
func (t *DBTracer) SetTimeRange(startTime, endTime sim.VTimeInCycle) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask records a step of a task.
func (t *DBTracer) StepTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		step.Time = now
		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.tracingTasks[task.ID] = originalTask
}

// EndTask marks the end of a task and writes it.
func (t *DBTracer) EndTask(task Task) {
	task.EndTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	if task.EndTime < t.startTime {
		return
	}

	originalTask.EndTime = task.EndTime
	t.backend.Write(originalTask)
}

// Terminate writes the tasks that are still running, ending them now, and
// flushes the backend.
func (t *DBTracer) Terminate() {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	for _, task := range t.tracingTasks {
		task.EndTime = now
		t.backend.Write(task)
	}

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}
