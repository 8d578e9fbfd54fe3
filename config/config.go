// Package config provides configuration loading and access for the simulator.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation  SimulationConfig  `yaml:"simulation"`
	Seeding     SeedingConfig     `yaml:"seeding"`
	Objects     ObjectsConfig     `yaml:"objects"`
	Environment EnvironmentConfig `yaml:"environment"`
	Output      OutputConfig      `yaml:"output"`
	Storage     StorageConfig     `yaml:"storage"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds clock and RNG parameters.
type SimulationConfig struct {
	Seed     uint64 `yaml:"seed"`      // RNG seed for coefficient sampling and scatter
	TimeStep string `yaml:"time_step"` // Go duration, e.g. "15m"
	Steps    int    `yaml:"steps"`     // Number of steps to run
}

// SeedingConfig describes the release. Lon1/Lat1/Radius1/Time1 are optional
// end values of a release line; unset means the start values.
type SeedingConfig struct {
	Lon        float64  `yaml:"lon"`
	Lat        float64  `yaml:"lat"`
	Radius     float64  `yaml:"radius"` // metres
	Count      int      `yaml:"count"`
	ObjectType string   `yaml:"object_type"` // property table key
	Time       string   `yaml:"time"`        // RFC 3339; empty = earliest reader time
	Lon1       *float64 `yaml:"lon1,omitempty"`
	Lat1       *float64 `yaml:"lat1,omitempty"`
	Radius1    *float64 `yaml:"radius1,omitempty"`
	Time1      string   `yaml:"time1,omitempty"`
}

// ObjectsConfig locates the object-type property table.
type ObjectsConfig struct {
	TablePath string `yaml:"table_path"` // empty = bundled table
}

// EnvironmentConfig holds forcing sources. Readers are consulted in the
// order grid, land shapefile, constant.
type EnvironmentConfig struct {
	GridPath      string             `yaml:"grid_path"`      // gridded wind/current CSV
	LandShapefile string             `yaml:"land_shapefile"` // polygon shapefile for land_binary_mask
	Constant      map[string]float64 `yaml:"constant"`       // uniform values by variable name
	Fallbacks     map[string]float64 `yaml:"fallbacks"`      // overrides of the default fallbacks
	NoFallback    []string           `yaml:"no_fallback"`    // variables that must come from a reader
}

// OutputConfig holds CSV output parameters.
type OutputConfig struct {
	Dir             string `yaml:"dir"`              // empty disables file output
	TrajectoryEvery int    `yaml:"trajectory_every"` // write positions every N steps
}

// StorageConfig holds trajectory database parameters.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"` // empty disables the store
}

// TelemetryConfig holds logging, metrics and tracing parameters.
type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
	StatsWindow int    `yaml:"stats_window"` // steps per aggregated stats log line
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the /metrics endpoint
	Tracing     bool   `yaml:"tracing"`      // export spans to stdout
	Perf        bool   `yaml:"perf"`         // collect per-phase timings
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TimeStep  time.Duration
	SeedTime  time.Time // zero when unset
	SeedTime1 *time.Time
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(err)
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config.Init not called")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// computeDerived parses durations and times.
func (c *Config) computeDerived() error {
	dt, err := time.ParseDuration(c.Simulation.TimeStep)
	if err != nil {
		return fmt.Errorf("simulation.time_step: %w", err)
	}
	if dt <= 0 {
		return fmt.Errorf("simulation.time_step must be positive, got %s", dt)
	}
	c.Derived.TimeStep = dt

	c.Derived.SeedTime = time.Time{}
	if c.Seeding.Time != "" {
		t, err := time.Parse(time.RFC3339, c.Seeding.Time)
		if err != nil {
			return fmt.Errorf("seeding.time: %w", err)
		}
		c.Derived.SeedTime = t.UTC()
	}

	c.Derived.SeedTime1 = nil
	if c.Seeding.Time1 != "" {
		t, err := time.Parse(time.RFC3339, c.Seeding.Time1)
		if err != nil {
			return fmt.Errorf("seeding.time1: %w", err)
		}
		t = t.UTC()
		c.Derived.SeedTime1 = &t
	}

	if c.Output.TrajectoryEvery < 1 {
		c.Output.TrajectoryEvery = 1
	}
	if c.Telemetry.StatsWindow < 1 {
		c.Telemetry.StatsWindow = 1
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
