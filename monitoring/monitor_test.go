package monitoring

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/platform"
	"github.com/sarchlab/twinrouter/queueing"
	"github.com/sarchlab/twinrouter/sim"
)

type fixedMeter struct {
	name           string
	size, capacity int
}

func (m fixedMeter) Name() string  { return m.name }
func (m fixedMeter) Size() int     { return m.size }
func (m fixedMeter) Capacity() int { return m.capacity }

type meteredComponent struct {
	*sim.ComponentBase

	meters []queueing.Meter
}

func (c *meteredComponent) Tick() bool               { return false }
func (c *meteredComponent) Commit()                  {}
func (c *meteredComponent) Meters() []queueing.Meter { return c.meters }

func get(h http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		engine  *sim.SerialEngine
		fabric  *platform.Platform
		m       *Monitor
		handler http.Handler
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		fabric = platform.MakeBuilder().WithEngine(engine).Build("Fabric")

		m = NewMonitor()
		m.RegisterEngine(engine)
		for _, c := range fabric.Components() {
			m.RegisterComponent(c)
		}

		handler = m.Handler()
	})

	It("should register components and their buffers", func() {
		Expect(m.components).To(HaveLen(2 + packet.NumNodes))
		Expect(m.meters).To(HaveLen(2*12 + packet.NumNodes))
	})

	It("should list components", func() {
		rec := get(handler, "/api/list_components")

		var names []string
		Expect(sonnet.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
		Expect(names).To(HaveLen(2 + packet.NumNodes))
		Expect(names[0]).To(Equal("Fabric.RouterA"))
	})

	It("should report the current cycle", func() {
		Expect(engine.RunFor(7)).To(Succeed())

		rec := get(handler, "/api/now")

		Expect(rec.Body.String()).To(Equal(`{"now":7}`))
	})

	It("should run for a number of cycles", func() {
		rec := get(handler, "/api/run/5")

		Expect(rec.Code).To(Equal(http.StatusAccepted))
		Eventually(engine.CurrentTime).
			Should(Equal(sim.VTimeInCycle(5)))
	})

	It("should pause and continue the engine", func() {
		Expect(get(handler, "/api/pause").Code).To(Equal(http.StatusOK))

		done := make(chan struct{})
		go func() {
			defer close(done)
			Expect(engine.RunFor(3)).To(Succeed())
		}()

		Consistently(done).ShouldNot(BeClosed())

		Expect(get(handler, "/api/continue").Code).To(Equal(http.StatusOK))
		Eventually(done).Should(BeClosed())
		Expect(engine.CurrentTime()).To(Equal(sim.VTimeInCycle(3)))
	})

	It("should report router statistics", func() {
		Expect(fabric.Endpoint(0).Offer(packet.MustNew(0, 1, 7))).To(BeTrue())
		Expect(engine.Run()).To(Succeed())

		rec := get(handler, "/api/stats/Fabric.RouterA")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp statsRsp
		Expect(sonnet.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Limit).To(Equal(24))
		Expect(rsp.Ports[0].Assembled).To(Equal(uint64(1)))
		Expect(rsp.Ports[1].Sent).To(Equal(uint64(1)))
		Expect(rsp.Occupancy).To(Equal(0))
	})

	It("should refuse statistics of components that are not routers", func() {
		rec := get(handler, "/api/stats/Fabric.Endpoint%5B0%5D")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should return 404 for unknown components", func() {
		Expect(get(handler, "/api/component/Nothing").Code).
			To(Equal(http.StatusNotFound))
		Expect(get(handler, "/api/stats/Nothing").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should refuse malformed field requests", func() {
		Expect(get(handler, "/api/field/notjson").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should report process resources", func() {
		rec := get(handler, "/api/resource")

		var rsp resourceRsp
		Expect(sonnet.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the dashboard", func() {
		rec := get(handler, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})

var _ = Describe("Hang detector", func() {
	var (
		m       *Monitor
		handler http.Handler
	)

	BeforeEach(func() {
		m = NewMonitor()
		m.RegisterComponent(&meteredComponent{
			ComponentBase: sim.NewComponentBase("Comp"),
			meters: []queueing.Meter{
				fixedMeter{name: "Small", size: 2, capacity: 2},
				fixedMeter{name: "Large", size: 10, capacity: 32},
				fixedMeter{name: "Empty", size: 0, capacity: 5},
			},
		})
		handler = m.Handler()
	})

	names := func(rec *httptest.ResponseRecorder) []string {
		var rsp []bufferRsp
		Expect(sonnet.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		n := make([]string, 0, len(rsp))
		for _, b := range rsp {
			n = append(n, b.Buffer)
		}

		return n
	}

	It("should sort by fill percentage by default", func() {
		rec := get(handler, "/api/hangdetector/buffers")

		Expect(names(rec)).To(Equal([]string{"Small", "Large", "Empty"}))
	})

	It("should sort by level", func() {
		rec := get(handler, "/api/hangdetector/buffers?sort=level")

		Expect(names(rec)).To(Equal([]string{"Large", "Small", "Empty"}))
	})

	It("should page the result", func() {
		rec := get(handler,
			"/api/hangdetector/buffers?sort=level&limit=1&offset=1")

		Expect(names(rec)).To(Equal([]string{"Small"}))
	})

	It("should tolerate an offset past the end", func() {
		rec := get(handler, "/api/hangdetector/buffers?offset=10")

		Expect(names(rec)).To(BeEmpty())
	})

	It("should refuse unknown sort methods", func() {
		rec := get(handler, "/api/hangdetector/buffers?sort=name")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should refuse negative limits", func() {
		rec := get(handler, "/api/hangdetector/buffers?limit=-1")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("Progress bars", func() {
	It("should list the bars that are not completed", func() {
		m := NewMonitor()
		handler := m.Handler()

		a := m.CreateProgressBar("A", 10)
		b := m.CreateProgressBar("B", 4)
		a.IncrementInProgress(3)
		a.MoveInProgressToFinished(2)
		b.IncrementFinished(4)
		m.CompleteProgressBar(b)

		var bars []progressBarJSON
		rec := get(handler, "/api/progress")
		Expect(sonnet.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())

		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("A"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))
		Expect(a.Done()).To(BeFalse())
		Expect(b.Done()).To(BeTrue())
	})
})

var _ = Describe("Server", func() {
	It("should serve on a random port", func() {
		m := NewMonitor().WithPortNumber(80)
		m.RegisterEngine(sim.NewSerialEngine())

		url, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		defer func() { Expect(m.StopServer()).To(Succeed()) }()

		rsp, err := http.Get(url + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
