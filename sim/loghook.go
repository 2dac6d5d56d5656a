package sim

import (
	"log"
)

// A LogHook is a hook that is responsible for recording information from the
// simulation.
type LogHook interface {
	Hook
}

// LogHookBase provides the common logic for all LogHooks.
type LogHookBase struct {
	*log.Logger
}

// CycleLogger writes a line for every cycle in which something happened.
type CycleLogger struct {
	LogHookBase

	printIdle bool
}

// NewCycleLogger creates a CycleLogger that writes to the logger. Cycles
// without progress are skipped unless printIdle is set.
func NewCycleLogger(logger *log.Logger, printIdle bool) *CycleLogger {
	return &CycleLogger{
		LogHookBase: LogHookBase{Logger: logger},
		printIdle:   printIdle,
	}
}

// Func writes the cycle log.
func (h *CycleLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosAfterCycle {
		return
	}

	progress, _ := ctx.Detail.(bool)
	if !progress && !h.printIdle {
		return
	}

	h.Printf("cycle %d, progress %t", ctx.Item.(VTimeInCycle), progress)
}
