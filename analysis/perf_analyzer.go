// Package analysis summarizes buffer levels and port throughput over fixed
// windows of cycles.
package analysis

import (
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

// PerfAnalyzerEntry is a single entry in the performance database.
type PerfAnalyzerEntry struct {
	Start     sim.VTimeInCycle
	End       sim.VTimeInCycle
	Where     string
	What      string
	EntryType string
	Value     float64
	Unit      string
}

// PerfLogger is the interface that provide the service that can record
// performance data entries.
type PerfLogger interface {
	AddDataEntry(entry PerfAnalyzerEntry)
}

// A periodic analyzer is sampled every cycle and summarizes every period.
type periodic interface {
	sample(now sim.VTimeInCycle)
	summarize(start, end sim.VTimeInCycle)
}

// PerfAnalyzer can report performance metrics during simulation. It samples
// after every cycle of the engine it hooks to.
type PerfAnalyzer struct {
	engine      sim.Engine
	period      sim.VTimeInCycle
	backend     PerfAnalyzerBackend
	periodStart sim.VTimeInCycle
	lastCycle   sim.VTimeInCycle
	sampled     bool
	analyzers   []periodic
}

// RegisterComponent analyzes the buffers and the ports of a component.
func (p *PerfAnalyzer) RegisterComponent(c sim.Component) {
	if owner, ok := c.(queueing.MeterOwner); ok {
		for _, m := range owner.Meters() {
			p.RegisterMeter(m)
		}
	}

	if isRouter(c) {
		p.RegisterRouter(c)
	}
}

// RegisterMeter averages the level of a buffer.
func (p *PerfAnalyzer) RegisterMeter(m queueing.Meter) {
	p.analyzers = append(p.analyzers, newBufferAnalyzer(m, p))
}

// RegisterRouter counts the packets that enter and leave every port of a
// router.
func (p *PerfAnalyzer) RegisterRouter(r sim.Component) {
	a := newPortAnalyzer(r.Name(), p)
	r.AcceptHook(a)
	p.analyzers = append(p.analyzers, a)
}

// Func samples the analyzers at the end of every cycle.
func (p *PerfAnalyzer) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterCycle {
		return
	}

	now := ctx.Item.(sim.VTimeInCycle)
	for _, a := range p.analyzers {
		a.sample(now)
	}

	p.lastCycle = now
	p.sampled = true

	if now+1-p.periodStart >= p.period {
		p.summarize(now + 1)
	}
}

func (p *PerfAnalyzer) summarize(end sim.VTimeInCycle) {
	for _, a := range p.analyzers {
		a.summarize(p.periodStart, end)
	}

	p.periodStart = end
}

// AddDataEntry forwards a data entry to the backend.
func (p *PerfAnalyzer) AddDataEntry(entry PerfAnalyzerEntry) {
	p.backend.AddDataEntry(entry)
}

// Flush summarizes the unfinished period and flushes the backend.
func (p *PerfAnalyzer) Flush() {
	if p.sampled && p.lastCycle+1 > p.periodStart {
		p.summarize(p.lastCycle + 1)
	}

	p.backend.Flush()
}

// PerfAnalyzerBuilder is a builder that can build a PerfAnalyzer.
type PerfAnalyzerBuilder struct {
	engine      sim.Engine
	period      sim.VTimeInCycle
	backendType string
	dbFilename  string
	backend     PerfAnalyzerBackend
}

// MakePerfAnalyzerBuilder creates a new PerfAnalyzerBuilder.
func MakePerfAnalyzerBuilder() PerfAnalyzerBuilder {
	return PerfAnalyzerBuilder{
		period:      100,
		backendType: "csv",
		dbFilename:  "perf",
	}
}

// WithEngine sets the engine to sample.
func (b PerfAnalyzerBuilder) WithEngine(e sim.Engine) PerfAnalyzerBuilder {
	b.engine = e
	return b
}

// WithPeriod sets the number of cycles that are summarized in one entry.
func (b PerfAnalyzerBuilder) WithPeriod(
	period sim.VTimeInCycle,
) PerfAnalyzerBuilder {
	b.period = period
	return b
}

// WithSQLiteBackend sets the backend of the PerfAnalyzer to be a SQLite.
func (b PerfAnalyzerBuilder) WithSQLiteBackend() PerfAnalyzerBuilder {
	b.backendType = "sqlite"
	return b
}

// WithCSVBackend sets the backend of the PerfAnalyzer to be a CSV file.
func (b PerfAnalyzerBuilder) WithCSVBackend() PerfAnalyzerBuilder {
	b.backendType = "csv"
	return b
}

// WithBackend sets a custom backend.
func (b PerfAnalyzerBuilder) WithBackend(
	backend PerfAnalyzerBackend,
) PerfAnalyzerBuilder {
	b.backend = backend
	return b
}

// WithDBFilename sets the filename of the database file, without extension.
func (b PerfAnalyzerBuilder) WithDBFilename(
	filename string,
) PerfAnalyzerBuilder {
	b.dbFilename = filename
	return b
}

// Build creates a PerfAnalyzer and hooks it to the engine.
func (b PerfAnalyzerBuilder) Build() (*PerfAnalyzer, error) {
	if b.engine == nil {
		panic("perf analyzer requires an engine")
	}

	if b.period == 0 {
		panic("period must be positive")
	}

	backend := b.backend
	if backend == nil {
		var err error

		switch b.backendType {
		case "csv":
			backend, err = NewCSVBackend(b.dbFilename)
		case "sqlite":
			backend, err = NewSQLiteBackend(b.dbFilename)
		default:
			panic("unknown backend type " + b.backendType)
		}

		if err != nil {
			return nil, err
		}
	}

	p := &PerfAnalyzer{
		engine:  b.engine,
		period:  b.period,
		backend: backend,
	}

	b.engine.AcceptHook(p)

	return p, nil
}
