package sim

// HookPosBeforeCycle is a hook position that triggers before the components
// of a cycle are ticked. The hook item is the cycle number.
var HookPosBeforeCycle = &HookPos{Name: "BeforeCycle"}

// HookPosAfterCycle is a hook position that triggers after all components
// have committed their state for a cycle. The hook item is the cycle number
// and the detail is whether any component made progress.
var HookPosAfterCycle = &HookPos{Name: "AfterCycle"}

// An Engine keeps the cycle-based simulation running.
type Engine interface {
	Hookable
	TimeTeller

	// RegisterComponent adds a component that is ticked every cycle.
	RegisterComponent(c Component)

	// Components returns all the registered components.
	Components() []Component

	// Run steps the simulation until a cycle passes in which no component
	// makes progress.
	Run() error

	// RunFor steps the simulation for exactly the given number of cycles.
	RunFor(cycles uint64) error

	// Pause blocks the engine before its next cycle until Continue is called.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}
