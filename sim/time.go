package sim

// VTimeInCycle is the virtual time of the simulation, counted in clock cycles.
type VTimeInCycle uint64

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInCycle
}
