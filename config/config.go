// Package config collects the parameters of an annealing run from .env files
// and KLOCAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sarchlab/klocal/schedule"
)

// Schedule kinds.
const (
	Geometric = "geometric"
	Linear    = "linear"
	Constant  = "constant"
)

const envPrefix = "KLOCAL_"

// ErrInvalid reports a configuration that cannot drive a run.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the parameters of a run.
type Config struct {
	// Seed drives every random stream. Zero asks the caller for a fresh one.
	Seed uint64

	ScheduleKind   string
	BetaMin        float64
	BetaMax        float64
	Points         int
	SweepsPerPoint int

	Replicas int
	Workers  int
	Cadence  int

	Record         bool
	DBPath         string
	RecordInterval int

	Monitor     bool
	MonitorPort int
	OpenBrowser bool
}

// New returns a config with default parameters.
func New() *Config {
	return &Config{
		ScheduleKind:   Geometric,
		BetaMin:        0.1,
		BetaMax:        10,
		Points:         100,
		SweepsPerPoint: 10,
		Replicas:       1,
		Workers:        runtime.NumCPU(),
		Cadence:        10,
		RecordInterval: 1,
	}
}

// Load starts from the defaults, applies the given .env files, and then the
// KLOCAL_* environment variables, which win over file values. Without files,
// ./.env is read if it exists.
func Load(files ...string) (*Config, error) {
	c := New()

	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}

	values := map[string]string{}
	if len(files) > 0 {
		read, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("reading env files: %w", err)
		}

		values = read
	}

	for _, item := range os.Environ() {
		key, val, _ := strings.Cut(item, "=")
		if strings.HasPrefix(key, envPrefix) {
			values[key] = val
		}
	}

	for key, val := range values {
		if err := c.Set(key, val); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Set applies one KLOCAL_* variable. Keys without the prefix or unknown keys
// are ignored.
func (c *Config) Set(key, val string) error {
	name, ok := strings.CutPrefix(key, envPrefix)
	if !ok {
		return nil
	}

	var err error

	switch name {
	case "SEED":
		c.Seed, err = strconv.ParseUint(val, 10, 64)
	case "SCHEDULE":
		c.ScheduleKind = strings.ToLower(val)
	case "BETA_MIN":
		c.BetaMin, err = strconv.ParseFloat(val, 64)
	case "BETA_MAX":
		c.BetaMax, err = strconv.ParseFloat(val, 64)
	case "POINTS":
		c.Points, err = strconv.Atoi(val)
	case "SWEEPS":
		c.SweepsPerPoint, err = strconv.Atoi(val)
	case "REPLICAS":
		c.Replicas, err = strconv.Atoi(val)
	case "WORKERS":
		c.Workers, err = strconv.Atoi(val)
	case "CADENCE":
		c.Cadence, err = strconv.Atoi(val)
	case "RECORD":
		c.Record, err = strconv.ParseBool(val)
	case "DB":
		c.DBPath = val
	case "RECORD_INTERVAL":
		c.RecordInterval, err = strconv.Atoi(val)
	case "MONITOR":
		c.Monitor, err = strconv.ParseBool(val)
	case "MONITOR_PORT":
		c.MonitorPort, err = strconv.Atoi(val)
	case "OPEN_BROWSER":
		c.OpenBrowser, err = strconv.ParseBool(val)
	}

	if err != nil {
		return fmt.Errorf("error parsing %s=%q: %w", key, val, err)
	}

	return nil
}

// Validate reports the first parameter that cannot drive a run.
func (c *Config) Validate() error {
	switch c.ScheduleKind {
	case Geometric:
		if c.BetaMin <= 0 {
			return fmt.Errorf("%w: geometric schedule needs beta_min > 0, got %g",
				ErrInvalid, c.BetaMin)
		}
	case Linear, Constant:
	default:
		return fmt.Errorf("%w: unknown schedule %q", ErrInvalid, c.ScheduleKind)
	}

	if c.BetaMin < 0 || c.BetaMax < c.BetaMin {
		return fmt.Errorf("%w: need 0 <= beta_min <= beta_max, got %g and %g",
			ErrInvalid, c.BetaMin, c.BetaMax)
	}

	positive := []struct {
		name  string
		value int
	}{
		{"points", c.Points},
		{"sweeps", c.SweepsPerPoint},
		{"replicas", c.Replicas},
		{"workers", c.Workers},
		{"cadence", c.Cadence},
		{"record interval", c.RecordInterval},
	}

	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d",
				ErrInvalid, p.name, p.value)
		}
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		return fmt.Errorf("%w: monitor port %d out of range",
			ErrInvalid, c.MonitorPort)
	}

	return nil
}

// Schedule builds the inverse-temperature schedule. The config must be
// valid. A constant schedule runs every sweep at BetaMax.
func (c *Config) Schedule() schedule.Schedule {
	switch c.ScheduleKind {
	case Linear:
		return schedule.Linear(c.BetaMin, c.BetaMax, c.Points, c.SweepsPerPoint)
	case Constant:
		return schedule.Constant(c.BetaMax, c.Points*c.SweepsPerPoint)
	default:
		return schedule.Geometric(c.BetaMin, c.BetaMax, c.Points, c.SweepsPerPoint)
	}
}

// Print writes the parameters, one per line.
func (c *Config) Print(w io.Writer) {
	fmt.Fprintln(w, "Config:")
	fmt.Fprintf(w, "  Seed: %d\n", c.Seed)
	fmt.Fprintf(w, "  Schedule: %s, beta %g to %g, %d points x %d sweeps\n",
		c.ScheduleKind, c.BetaMin, c.BetaMax, c.Points, c.SweepsPerPoint)
	fmt.Fprintf(w, "  Replicas: %d on %d workers\n", c.Replicas, c.Workers)
	fmt.Fprintf(w, "  Cadence: %d\n", c.Cadence)
	fmt.Fprintf(w, "  Record: %t (%q, every %d sweeps)\n",
		c.Record, c.DBPath, c.RecordInterval)
	fmt.Fprintf(w, "  Monitor: %t (port %d, browser %t)\n",
		c.Monitor, c.MonitorPort, c.OpenBrowser)
}
