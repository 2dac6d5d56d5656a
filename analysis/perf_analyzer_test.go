package analysis

import (
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/platform"
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

type entryRecorder struct {
	entries []PerfAnalyzerEntry
}

func (r *entryRecorder) AddDataEntry(e PerfAnalyzerEntry) {
	r.entries = append(r.entries, e)
}

func (r *entryRecorder) Flush() {}

func (r *entryRecorder) find(where, what string) []PerfAnalyzerEntry {
	var found []PerfAnalyzerEntry

	for _, e := range r.entries {
		if e.Where == where && e.What == what {
			found = append(found, e)
		}
	}

	return found
}

type meterStub struct {
	size int
}

func (m *meterStub) Name() string  { return "Stub" }
func (m *meterStub) Size() int     { return m.size }
func (m *meterStub) Capacity() int { return 4 }

func afterCycle(p *PerfAnalyzer, now sim.VTimeInCycle) {
	p.Func(sim.HookCtx{Pos: sim.HookPosAfterCycle, Item: now})
}

var _ = Describe("BufferAnalyzer", func() {
	var (
		recorder *entryRecorder
		analyzer *PerfAnalyzer
		meter    *meterStub
	)

	BeforeEach(func() {
		recorder = &entryRecorder{}
		meter = &meterStub{}

		var err error
		analyzer, err = MakePerfAnalyzerBuilder().
			WithEngine(sim.NewSerialEngine()).
			WithPeriod(4).
			WithBackend(recorder).
			Build()
		Expect(err).NotTo(HaveOccurred())

		analyzer.RegisterMeter(meter)
	})

	It("should average the level over a period", func() {
		for now, level := range []int{0, 1, 3, 2} {
			meter.size = level
			afterCycle(analyzer, sim.VTimeInCycle(now))
		}

		Expect(recorder.find("Stub", "Level")).To(Equal([]PerfAnalyzerEntry{{
			Start:     0,
			End:       4,
			Where:     "Stub",
			What:      "Level",
			EntryType: "Buffer",
			Value:     1.5,
			Unit:      "packets",
		}}))
		Expect(recorder.find("Stub", "PeakLevel")[0].Value).
			To(Equal(3.0))
	})

	It("should summarize the unfinished period on flush", func() {
		meter.size = 2
		for now := 0; now < 6; now++ {
			afterCycle(analyzer, sim.VTimeInCycle(now))
		}

		analyzer.Flush()

		levels := recorder.find("Stub", "Level")
		Expect(levels).To(HaveLen(2))
		Expect(levels[1].Start).To(Equal(sim.VTimeInCycle(4)))
		Expect(levels[1].End).To(Equal(sim.VTimeInCycle(6)))
		Expect(levels[1].Value).To(Equal(2.0))
	})

	It("should ignore other hook positions", func() {
		analyzer.Func(sim.HookCtx{Pos: sim.HookPosBeforeCycle, Item: sim.VTimeInCycle(0)})
		analyzer.Flush()

		Expect(recorder.entries).To(BeEmpty())
	})
})

var _ = Describe("PerfAnalyzer", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *sim.SerialEngine
		fabric   *platform.Platform
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		fabric = platform.MakeBuilder().WithEngine(engine).Build("Fabric")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should flush the backend", func() {
		backend := NewMockPerfAnalyzerBackend(mockCtrl)
		analyzer, err := MakePerfAnalyzerBuilder().
			WithEngine(engine).
			WithBackend(backend).
			Build()
		Expect(err).NotTo(HaveOccurred())

		backend.EXPECT().Flush()

		analyzer.Flush()
	})

	It("should report the throughput of router ports", func() {
		recorder := &entryRecorder{}
		analyzer, err := MakePerfAnalyzerBuilder().
			WithEngine(engine).
			WithPeriod(50).
			WithBackend(recorder).
			Build()
		Expect(err).NotTo(HaveOccurred())

		for _, c := range fabric.Components() {
			analyzer.RegisterComponent(c)
		}

		Expect(fabric.Endpoint(0).Offer(packet.MustNew(0, 4, 1))).To(BeTrue())
		Expect(engine.RunFor(50)).To(Succeed())

		in := recorder.find("Fabric.RouterA.Port[0]", "IncomingThroughput")
		Expect(in).To(HaveLen(1))
		Expect(in[0].Value).To(BeNumerically("~", 1.0/50))

		out := recorder.find("Fabric.RouterB.Port[1]", "OutgoingThroughput")
		Expect(out[0].Value).To(BeNumerically("~", 1.0/50))

		lanes := recorder.find("Fabric.RouterA.Fabric.Out[3].Lane[0]", "Level")
		Expect(lanes).To(HaveLen(1))
	})

	It("should refuse to build without an engine", func() {
		Expect(func() { MakePerfAnalyzerBuilder().Build() }).To(Panic())
	})
})

var _ = Describe("Backends", func() {
	entry := PerfAnalyzerEntry{
		Start:     0,
		End:       100,
		Where:     "Fabric.RouterA.Port[0]",
		What:      "OutgoingThroughput",
		EntryType: "Port",
		Value:     0.25,
		Unit:      "packets/cycle",
	}

	It("should write CSV rows", func() {
		base := filepath.Join(GinkgoT().TempDir(), "perf")
		b, err := NewCSVBackend(base)
		Expect(err).NotTo(HaveOccurred())

		b.AddDataEntry(entry)
		b.Close()
		b.Close()

		f, err := os.Open(base + ".csv")
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(Equal([][]string{
			{"Start", "End", "Where", "What", "EntryType", "Value", "Unit"},
			{"0", "100", "Fabric.RouterA.Port[0]", "OutgoingThroughput",
				"Port", "0.25", "packets/cycle"},
		}))
	})

	It("should write SQLite rows", func() {
		base := filepath.Join(GinkgoT().TempDir(), "perf")
		b, err := NewSQLiteBackend(base)
		Expect(err).NotTo(HaveOccurred())

		b.AddDataEntry(entry)
		b.AddDataEntry(entry)
		b.Flush()

		db, err := sql.Open("sqlite3", base+".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		var count int
		var value float64
		Expect(db.QueryRow(
			"SELECT COUNT(*), MAX(value) FROM perf").Scan(&count, &value)).
			To(Succeed())
		Expect(count).To(Equal(2))
		Expect(value).To(Equal(0.25))
	})
})

var _ queueing.Meter = (*meterStub)(nil)
