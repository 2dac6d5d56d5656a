package sim

// A Ticker computes its next state from the committed state of the
// simulation. Tick returns true if any state is going to change.
type Ticker interface {
	Tick() bool
}

// A Committer publishes the state staged during Tick.
type Committer interface {
	Commit()
}

// A Component is an element that is being simulated. In every cycle, the
// engine ticks all the components first and commits them afterwards.
type Component interface {
	Named
	Hookable
	Ticker
	Committer
}

// ComponentBase provides the name and the hook support of a component.
type ComponentBase struct {
	*HookableBase

	name string
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	NameMustBeValid(name)

	return &ComponentBase{
		HookableBase: NewHookableBase(),
		name:         name,
	}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
