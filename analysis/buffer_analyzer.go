package analysis

import (
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

// bufferAnalyzer averages the committed level of a buffer.
type bufferAnalyzer struct {
	logger   PerfLogger
	buf      queueing.Meter
	cycles   uint64
	levelSum uint64
	peak     int
}

func newBufferAnalyzer(buf queueing.Meter, logger PerfLogger) *bufferAnalyzer {
	return &bufferAnalyzer{buf: buf, logger: logger}
}

func (b *bufferAnalyzer) sample(_ sim.VTimeInCycle) {
	level := b.buf.Size()

	b.cycles++
	b.levelSum += uint64(level)

	if level > b.peak {
		b.peak = level
	}
}

func (b *bufferAnalyzer) summarize(start, end sim.VTimeInCycle) {
	if b.cycles == 0 {
		return
	}

	b.logger.AddDataEntry(PerfAnalyzerEntry{
		Start:     start,
		End:       end,
		Where:     b.buf.Name(),
		What:      "Level",
		EntryType: "Buffer",
		Value:     float64(b.levelSum) / float64(b.cycles),
		Unit:      "packets",
	})

	b.logger.AddDataEntry(PerfAnalyzerEntry{
		Start:     start,
		End:       end,
		Where:     b.buf.Name(),
		What:      "PeakLevel",
		EntryType: "Buffer",
		Value:     float64(b.peak),
		Unit:      "packets",
	})

	b.cycles = 0
	b.levelSum = 0
	b.peak = 0
}
