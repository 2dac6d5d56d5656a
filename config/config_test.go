package config

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeFile(name, content string) string {
	path := filepath.Join(GinkgoT().TempDir(), name)
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	return path
}

var _ = Describe("Config", func() {
	It("should default to the reference fabric", func() {
		c := Defaults()

		Expect(c.LaneCapacity).To(Equal(32))
		Expect(c.AdmissionLimit).To(Equal(24))
		Expect(c.QueueDepth).To(Equal(5))
		Expect(c.Validate()).To(Succeed())
	})

	It("should load YAML over the defaults", func() {
		path := writeFile("run.yaml", `
cycles: 5000
packets: 20
admission_limit: 12
trace_db: trace
monitor: true
`)

		c, err := Load(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Cycles).To(Equal(uint64(5000)))
		Expect(c.Packets).To(Equal(20))
		Expect(c.AdmissionLimit).To(Equal(12))
		Expect(c.LaneCapacity).To(Equal(32))
		Expect(c.TraceDB).To(Equal("trace"))
		Expect(c.Monitor).To(BeTrue())
	})

	It("should report missing and malformed files", func() {
		_, err := Load(filepath.Join(GinkgoT().TempDir(), "none.yaml"))
		Expect(err).To(MatchError(ContainSubstring("reading config")))

		_, err = Load(writeFile("bad.yaml", "packets: [1, 2"))
		Expect(err).To(MatchError(ContainSubstring("parsing config")))
	})

	It("should apply environment variables", func() {
		GinkgoT().Setenv("TWINROUTER_PACKETS", "77")
		GinkgoT().Setenv("TWINROUTER_INJECTION_RATE", "0.5")
		GinkgoT().Setenv("TWINROUTER_VERBOSE", "true")
		GinkgoT().Setenv("TWINROUTER_PLOT", "latency.png")

		c := Defaults()
		Expect(c.ApplyEnv()).To(Succeed())

		Expect(c.Packets).To(Equal(77))
		Expect(c.InjectionRate).To(Equal(0.5))
		Expect(c.Verbose).To(BeTrue())
		Expect(c.Plot).To(Equal("latency.png"))
	})

	It("should report every malformed variable", func() {
		GinkgoT().Setenv("TWINROUTER_PACKETS", "many")
		GinkgoT().Setenv("TWINROUTER_MONITOR", "maybe")

		c := Defaults()
		err := c.ApplyEnv()

		var merr *multierror.Error
		Expect(err).To(BeAssignableToTypeOf(merr))
		Expect(err.(*multierror.Error).Errors).To(HaveLen(2))
		Expect(c.Packets).To(Equal(1000))
	})

	It("should load a dotenv file", func() {
		path := writeFile(".env", "TWINROUTER_SEED=99\n")
		os.Unsetenv("TWINROUTER_SEED")
		DeferCleanup(os.Unsetenv, "TWINROUTER_SEED")

		Expect(LoadDotEnv(path)).To(Succeed())

		c := Defaults()
		Expect(c.ApplyEnv()).To(Succeed())
		Expect(c.Seed).To(Equal(uint64(99)))
	})

	It("should ignore a missing dotenv file", func() {
		Expect(LoadDotEnv(filepath.Join(GinkgoT().TempDir(), ".env"))).
			To(Succeed())
	})

	It("should collect every validation problem", func() {
		c := Defaults()
		c.LaneCapacity = 0
		c.AdmissionLimit = -1
		c.InjectionRate = 2
		c.TraceDB = "trace"
		c.TraceJSON = "trace"
		c.Perf = "perf.csv"
		c.PerfPeriod = 0

		err := c.Validate()

		Expect(err).To(HaveOccurred())
		Expect(err.(*multierror.Error).Errors).To(HaveLen(5))
		Expect(err.Error()).To(ContainSubstring("lane capacity"))
		Expect(err.Error()).To(ContainSubstring("admission limit"))
	})
})
