package sim

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNoComponent is returned when the engine is asked to run without any
// registered component.
var ErrNoComponent = errors.New("sim: no component registered")

// A SerialEngine steps all the components in a single goroutine. Every cycle
// is split into two phases: all the components are ticked against the
// committed state, and then all of them commit.
type SerialEngine struct {
	*HookableBase

	timeLock sync.RWMutex
	now      VTimeInCycle

	components []Component
	compNames  map[string]bool

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase: NewHookableBase(),
		compNames:    make(map[string]bool),
	}
}

// RegisterComponent adds a component to the engine. Component names must be
// unique.
func (e *SerialEngine) RegisterComponent(c Component) {
	if e.compNames[c.Name()] {
		panic("component " + c.Name() + " already registered")
	}

	e.compNames[c.Name()] = true
	e.components = append(e.components, c)
}

// Components returns the registered components in registration order.
func (e *SerialEngine) Components() []Component {
	return e.components
}

// Run steps until no component makes progress in a cycle.
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	if len(e.components) == 0 {
		return ErrNoComponent
	}

	for e.step() {
	}

	return nil
}

// RunFor steps the given number of cycles, regardless of progress.
func (e *SerialEngine) RunFor(cycles uint64) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	if len(e.components) == 0 {
		return ErrNoComponent
	}

	for i := uint64(0); i < cycles; i++ {
		e.step()
	}

	return nil
}

func (e *SerialEngine) step() bool {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	now := e.readNow()

	e.InvokeHook(HookCtx{
		Domain: e,
		Pos:    HookPosBeforeCycle,
		Item:   now,
	})

	madeProgress := false
	for _, c := range e.components {
		madeProgress = c.Tick() || madeProgress
	}

	for _, c := range e.components {
		c.Commit()
	}

	e.InvokeHook(HookCtx{
		Domain: e,
		Pos:    HookPosAfterCycle,
		Item:   now,
		Detail: madeProgress,
	})

	e.writeNow(now + 1)

	return madeProgress
}

func (e *SerialEngine) readNow() VTimeInCycle {
	e.timeLock.RLock()
	defer e.timeLock.RUnlock()

	return e.now
}

func (e *SerialEngine) writeNow(t VTimeInCycle) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// CurrentTime returns the cycle that is being simulated, or the next cycle to
// simulate if the engine is between cycles.
func (e *SerialEngine) CurrentTime() VTimeInCycle {
	return e.readNow()
}

// Pause prevents the engine from stepping more cycles until Continue is
// called. If a cycle is in flight, Pause returns after it completes.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue resumes stepping after a Pause.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

var _ Engine = (*SerialEngine)(nil)
