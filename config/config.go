// Package config holds the settings of a simulation run.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/twinrouter/noc/endpoint"
	"github.com/sarchlab/twinrouter/noc/router"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration.
const EnvPrefix = "TWINROUTER_"

// Config describes one simulation run.
type Config struct {
	// Cycles bounds the run. 0 runs until the fabric is idle.
	Cycles uint64 `yaml:"cycles"`

	// Packets is the number of random packets to inject.
	Packets int `yaml:"packets"`

	// InjectionRate is the chance that an agent offers a packet in a cycle.
	InjectionRate float64 `yaml:"injection_rate"`

	// Seed selects the random stream of the traffic.
	Seed uint64 `yaml:"seed"`

	LaneCapacity   int `yaml:"lane_capacity"`
	AdmissionLimit int `yaml:"admission_limit"`
	QueueDepth     int `yaml:"queue_depth"`

	TraceDB   string `yaml:"trace_db"`
	TraceJSON string `yaml:"trace_json"`

	// Perf is the file that receives the per-period buffer and port metrics.
	// A ".csv" extension selects CSV, anything else SQLite.
	Perf       string `yaml:"perf"`
	PerfPeriod uint64 `yaml:"perf_period"`

	Monitor     bool `yaml:"monitor"`
	MonitorPort int  `yaml:"monitor_port"`
	OpenBrowser bool `yaml:"open_browser"`

	Plot    string `yaml:"plot"`
	Verbose bool   `yaml:"verbose"`
}

// Defaults returns the configuration of the reference fabric.
func Defaults() Config {
	return Config{
		Packets:        1000,
		InjectionRate:  0.05,
		Seed:           12345,
		LaneCapacity:   router.DefaultLaneCapacity,
		AdmissionLimit: router.DefaultAdmissionLimit,
		QueueDepth:     endpoint.DefaultQueueDepth,
		PerfPeriod:     100,
	}
}

// Load reads a YAML file on top of the default configuration.
func Load(path string) (Config, error) {
	c := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrapf(err, "parsing config %s", path)
	}

	return c, nil
}

// LoadDotEnv loads the variables in the given files into the environment. A
// missing file is not an error. Without files, ".env" is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "loading %s", f)
		}
	}

	return nil
}

// ApplyEnv overrides the fields that have a TWINROUTER_* variable set. Every
// malformed variable is reported.
func (c *Config) ApplyEnv() error {
	var result *multierror.Error

	for _, f := range c.fields() {
		v, ok := os.LookupEnv(EnvPrefix + f.env)
		if !ok {
			continue
		}

		if err := f.set(strings.TrimSpace(v)); err != nil {
			result = multierror.Append(result,
				errors.Wrapf(err, "%s%s", EnvPrefix, f.env))
		}
	}

	return result.ErrorOrNil()
}

// Validate reports every setting that cannot be simulated.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.Packets < 0 {
		result = multierror.Append(result,
			errors.Errorf("packets must not be negative, got %d", c.Packets))
	}

	if c.InjectionRate <= 0 || c.InjectionRate > 1 {
		result = multierror.Append(result,
			errors.Errorf("injection rate must be in (0, 1], got %g",
				c.InjectionRate))
	}

	if c.LaneCapacity <= 0 {
		result = multierror.Append(result,
			errors.Errorf("lane capacity must be positive, got %d",
				c.LaneCapacity))
	}

	if c.AdmissionLimit <= 0 {
		result = multierror.Append(result,
			errors.Errorf("admission limit must be positive, got %d",
				c.AdmissionLimit))
	}

	if c.QueueDepth <= 0 {
		result = multierror.Append(result,
			errors.Errorf("queue depth must be positive, got %d",
				c.QueueDepth))
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		result = multierror.Append(result,
			errors.Errorf("monitor port out of range, got %d", c.MonitorPort))
	}

	if c.Perf != "" && c.PerfPeriod == 0 {
		result = multierror.Append(result,
			errors.New("perf period must be positive"))
	}

	if c.TraceDB != "" && c.TraceDB == c.TraceJSON {
		result = multierror.Append(result,
			errors.New("trace database and trace JSON must differ"))
	}

	return result.ErrorOrNil()
}

type field struct {
	env string
	set func(string) error
}

func (c *Config) fields() []field {
	return []field{
		{"CYCLES", uintSetter(&c.Cycles)},
		{"PACKETS", intSetter(&c.Packets)},
		{"INJECTION_RATE", floatSetter(&c.InjectionRate)},
		{"SEED", uintSetter(&c.Seed)},
		{"LANE_CAPACITY", intSetter(&c.LaneCapacity)},
		{"ADMISSION_LIMIT", intSetter(&c.AdmissionLimit)},
		{"QUEUE_DEPTH", intSetter(&c.QueueDepth)},
		{"TRACE_DB", stringSetter(&c.TraceDB)},
		{"TRACE_JSON", stringSetter(&c.TraceJSON)},
		{"PERF", stringSetter(&c.Perf)},
		{"PERF_PERIOD", uintSetter(&c.PerfPeriod)},
		{"MONITOR", boolSetter(&c.Monitor)},
		{"MONITOR_PORT", intSetter(&c.MonitorPort)},
		{"OPEN_BROWSER", boolSetter(&c.OpenBrowser)},
		{"PLOT", stringSetter(&c.Plot)},
		{"VERBOSE", boolSetter(&c.Verbose)},
	}
}

func intSetter(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func uintSetter(p *uint64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func floatSetter(p *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func boolSetter(p *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func stringSetter(p *string) func(string) error {
	return func(s string) error {
		*p = s
		return nil
	}
}
