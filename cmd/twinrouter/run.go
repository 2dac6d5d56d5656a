package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/twinrouter/analysis"
	"github.com/sarchlab/twinrouter/config"
	"github.com/sarchlab/twinrouter/monitoring"
	"github.com/sarchlab/twinrouter/noc/acceptance"
	"github.com/sarchlab/twinrouter/noc/packet"
	"github.com/sarchlab/twinrouter/noc/platform"
	"github.com/sarchlab/twinrouter/noc/router"
	"github.com/sarchlab/twinrouter/sim"
	"github.com/sarchlab/twinrouter/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate random traffic through the fabric.",
	Long: "`run` injects random packets between the six endpoints, runs " +
		"the fabric until it is idle or for a number of cycles, and " +
		"reports the latency. Settings come from --config, then " +
		"TWINROUTER_* variables, then flags.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}

		s, err := newSimulation(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		return s.run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd.Flags())
}

func addRunFlags(f *pflag.FlagSet) {
	d := config.Defaults()
	f.String("config", "", "YAML file with the settings")
	f.Uint64("cycles", d.Cycles, "Cycles to simulate, 0 runs until idle")
	f.Int("packets", d.Packets, "Number of random packets")
	f.Float64("rate", d.InjectionRate, "Injection rate of each endpoint")
	f.Uint64("seed", d.Seed, "Seed of the random traffic")
	f.Int("lane-capacity", d.LaneCapacity, "Depth of every lane")
	f.Int("admission-limit", d.AdmissionLimit,
		"Packets allowed inside a router")
	f.Int("queue-depth", d.QueueDepth, "Depth of the endpoint queues")
	f.String("trace-db", d.TraceDB, "SQLite file to collect traces in")
	f.String("trace-json", d.TraceJSON, "JSON file to collect traces in")
	f.String("perf", d.Perf, "CSV or SQLite file for buffer and port metrics")
	f.Uint64("perf-period", d.PerfPeriod, "Cycles summarized per metric entry")
	f.Bool("monitor", d.Monitor, "Serve the monitoring page")
	f.Int("monitor-port", d.MonitorPort,
		"Port of the monitoring page, 0 picks one")
	f.Bool("open-browser", d.OpenBrowser, "Open the monitoring page")
	f.String("plot", d.Plot, "Image file for the latency histogram")
	f.BoolP("verbose", "v", d.Verbose, "Log every busy cycle")
}

// loadConfig layers the config file, the environment, and the flags that are
// set explicitly.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Defaults()

	if path, _ := flags.GetString("config"); path != "" {
		var err error

		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	changed := func(name string) bool { return flags.Changed(name) }

	if changed("cycles") {
		cfg.Cycles, _ = flags.GetUint64("cycles")
	}

	if changed("packets") {
		cfg.Packets, _ = flags.GetInt("packets")
	}

	if changed("rate") {
		cfg.InjectionRate, _ = flags.GetFloat64("rate")
	}

	if changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}

	if changed("lane-capacity") {
		cfg.LaneCapacity, _ = flags.GetInt("lane-capacity")
	}

	if changed("admission-limit") {
		cfg.AdmissionLimit, _ = flags.GetInt("admission-limit")
	}

	if changed("queue-depth") {
		cfg.QueueDepth, _ = flags.GetInt("queue-depth")
	}

	if changed("trace-db") {
		cfg.TraceDB, _ = flags.GetString("trace-db")
	}

	if changed("trace-json") {
		cfg.TraceJSON, _ = flags.GetString("trace-json")
	}

	if changed("perf") {
		cfg.Perf, _ = flags.GetString("perf")
	}

	if changed("perf-period") {
		cfg.PerfPeriod, _ = flags.GetUint64("perf-period")
	}

	if changed("monitor") {
		cfg.Monitor, _ = flags.GetBool("monitor")
	}

	if changed("monitor-port") {
		cfg.MonitorPort, _ = flags.GetInt("monitor-port")
	}

	if changed("open-browser") {
		cfg.OpenBrowser, _ = flags.GetBool("open-browser")
	}

	if changed("plot") {
		cfg.Plot, _ = flags.GetString("plot")
	}

	if changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}

	return cfg, cfg.Validate()
}

type simulation struct {
	cfg config.Config
	out io.Writer

	engine    *sim.SerialEngine
	fabric    *platform.Platform
	test      *acceptance.Test
	latency   *tracing.AverageTimeTracer
	dbTracers []*tracing.DBTracer
	perf      *analysis.PerfAnalyzer
	monitor   *monitoring.Monitor
	bar       *monitoring.ProgressBar
}

func newSimulation(cfg config.Config, out io.Writer) (*simulation, error) {
	s := &simulation{
		cfg:    cfg,
		out:    out,
		engine: sim.NewSerialEngine(),
		test:   acceptance.NewTest(fmt.Sprintf("Traffic%d", cfg.Seed)),
	}

	s.fabric = platform.MakeBuilder().
		WithEngine(s.engine).
		WithLaneCapacity(cfg.LaneCapacity).
		WithAdmissionLimit(cfg.AdmissionLimit).
		WithQueueDepth(cfg.QueueDepth).
		WithDeliver(s.deliver).
		Build("Fabric")

	for _, ep := range s.fabric.Endpoints() {
		agent := acceptance.NewAgent(s.engine,
			sim.BuildNameWithIndex("Traffic", "Agent", int(ep.Node())),
			ep, s.test)
		agent.InjectionRate = cfg.InjectionRate
		s.test.RegisterAgent(agent)
	}

	s.test.GenerateRandom(cfg.Packets)

	if err := s.setupTracing(); err != nil {
		return nil, err
	}

	if cfg.Perf != "" {
		if err := s.setupPerf(); err != nil {
			return nil, err
		}
	}

	if cfg.Verbose {
		s.engine.AcceptHook(sim.NewCycleLogger(
			log.New(os.Stderr, "", 0), false))
	}

	if cfg.Monitor {
		if err := s.setupMonitor(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *simulation) setupTracing() error {
	s.latency = tracing.NewAverageTimeTracer(
		s.engine, tracing.KindIs(router.TaskKindPacket))

	var writers []tracing.TraceWriter

	if s.cfg.TraceDB != "" {
		writers = append(writers, tracing.NewSQLiteTraceWriter(s.cfg.TraceDB))
	}

	if s.cfg.TraceJSON != "" {
		writers = append(writers, tracing.NewJSONTraceWriter(s.cfg.TraceJSON))
	}

	for _, w := range writers {
		if err := w.Init(); err != nil {
			return err
		}

		s.dbTracers = append(s.dbTracers, tracing.NewDBTracer(s.engine, w))
	}

	for _, r := range s.fabric.Routers() {
		tracing.CollectTrace(r, s.latency)

		for _, t := range s.dbTracers {
			tracing.CollectTrace(r, t)
		}
	}

	return nil
}

func (s *simulation) setupPerf() error {
	b := analysis.MakePerfAnalyzerBuilder().
		WithEngine(s.engine).
		WithPeriod(sim.VTimeInCycle(s.cfg.PerfPeriod))

	name := s.cfg.Perf
	if strings.HasSuffix(name, ".csv") {
		b = b.WithCSVBackend().WithDBFilename(strings.TrimSuffix(name, ".csv"))
	} else {
		b = b.WithSQLiteBackend().
			WithDBFilename(strings.TrimSuffix(name, ".sqlite3"))
	}

	perf, err := b.Build()
	if err != nil {
		return err
	}

	for _, c := range s.fabric.Components() {
		perf.RegisterComponent(c)
	}

	s.perf = perf

	return nil
}

func (s *simulation) setupMonitor() error {
	s.monitor = monitoring.NewMonitor().WithPortNumber(s.cfg.MonitorPort)
	s.monitor.RegisterEngine(s.engine)

	for _, c := range s.fabric.Components() {
		s.monitor.RegisterComponent(c)
	}

	s.bar = s.monitor.CreateProgressBar("Packets", uint64(s.cfg.Packets))

	if s.cfg.OpenBrowser {
		return s.monitor.OpenInBrowser()
	}

	_, err := s.monitor.StartServer()

	return err
}

func (s *simulation) deliver(p packet.Packet, now sim.VTimeInCycle) {
	s.test.Receive(p, now)

	if s.bar != nil {
		s.bar.IncrementFinished(1)
	}
}

func (s *simulation) run() error {
	var err error
	if s.cfg.Cycles > 0 {
		err = s.engine.RunFor(s.cfg.Cycles)
	} else {
		err = s.engine.Run()
	}

	if err != nil {
		return err
	}

	for _, t := range s.dbTracers {
		t.Terminate()
	}

	if s.perf != nil {
		s.perf.Flush()
	}

	if s.monitor != nil {
		s.monitor.CompleteProgressBar(s.bar)
	}

	s.report()

	if s.cfg.Plot != "" && s.test.NumReceived() > 0 {
		if err := s.test.PlotLatency(s.cfg.Plot); err != nil {
			return err
		}
	}

	if s.cfg.Cycles == 0 {
		return s.test.Verify()
	}

	return nil
}

func (s *simulation) report() {
	r := s.test.Report()

	fmt.Fprintf(s.out, "cycles: %d\n", s.engine.CurrentTime())
	fmt.Fprintf(s.out, "delivered: %d of %d\n",
		s.test.NumReceived(), s.test.NumGenerated())
	fmt.Fprintf(s.out,
		"latency: mean %.2f, stddev %.2f, median %.0f, p99 %.0f, max %.0f\n",
		r.Mean, r.StdDev, r.Median, r.P99, r.Max)
	fmt.Fprintf(s.out, "router latency: mean %.2f, max %d over %d hops\n",
		s.latency.AverageTime(), s.latency.MaxTime(), s.latency.TotalCount())

	for _, rt := range s.fabric.Routers() {
		stats := rt.Stats()
		fmt.Fprintf(s.out, "%s: peak occupancy %d of %d\n",
			rt.Name(), stats.PeakOccupancy, rt.Admission().Limit())

		for i, p := range stats.Ports {
			fmt.Fprintf(s.out,
				"  port %d: assembled %d, deferred %d, dropped %d, sent %d\n",
				i, p.Assembled, p.Deferred, p.Dropped, p.Sent)
		}
	}
}
