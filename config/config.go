// Package config loads the application configuration of the sorting-cell
// digital twin from a YAML file, falling back to sensible defaults when the
// file is missing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Simulation configures the simulated physical cell. Delay ranges are
// [min, max] pairs in seconds.
type Simulation struct {
	PartInterarrival [2]float64 `yaml:"part_interarrival"`
	SensorDelay      [2]float64 `yaml:"sensor_delay"`
	ActuatorDelay    [2]float64 `yaml:"actuator_delay"`
	OKProbability    float64    `yaml:"ok_probability"`
}

// Twin configures the digital twin itself.
type Twin struct {
	// BlockedThreshold is the stall threshold in seconds: a running cell
	// with no accepted events for longer than this is reported as blocked.
	BlockedThreshold float64 `yaml:"blocked_threshold"`
}

// API configures the read-only HTTP interface.
type API struct {
	Addr string `yaml:"addr"`
}

// Config is the root of the application configuration.
type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Twin       Twin       `yaml:"twin"`
	API        API        `yaml:"api"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Simulation: Simulation{
			PartInterarrival: [2]float64{0.5, 1.5},
			SensorDelay:      [2]float64{0.1, 0.3},
			ActuatorDelay:    [2]float64{0.1, 0.2},
			OKProbability:    0.8,
		},
		Twin: Twin{BlockedThreshold: 5.0},
		API:  API{Addr: ":8080"},
	}
}

// Load reads the configuration from path. A missing file is not an error: the
// defaults are returned. A present but unparsable or invalid file returns the
// defaults alongside the error, so callers can choose to run degraded instead
// of refusing to start.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the parameter ranges the twin and simulator rely on.
func (c Config) Validate() error {
	if c.Twin.BlockedThreshold <= 0 {
		return fmt.Errorf("twin.blocked_threshold must be positive, got %v", c.Twin.BlockedThreshold)
	}
	if c.Simulation.OKProbability < 0 || c.Simulation.OKProbability > 1 {
		return fmt.Errorf("simulation.ok_probability must be within [0, 1], got %v", c.Simulation.OKProbability)
	}
	for name, r := range map[string][2]float64{
		"part_interarrival": c.Simulation.PartInterarrival,
		"sensor_delay":      c.Simulation.SensorDelay,
		"actuator_delay":    c.Simulation.ActuatorDelay,
	} {
		if r[0] < 0 || r[1] < r[0] {
			return fmt.Errorf("simulation.%s must be an ascending non-negative range, got %v", name, r)
		}
	}
	if c.API.Addr == "" {
		return fmt.Errorf("api.addr must not be empty")
	}
	return nil
}

// BlockedThreshold returns the stall threshold as a duration.
func (c Config) BlockedThreshold() time.Duration {
	return time.Duration(c.Twin.BlockedThreshold * float64(time.Second))
}

// Seconds converts a [min, max] range in seconds into durations.
func Seconds(r [2]float64) (min, max time.Duration) {
	return time.Duration(r[0] * float64(time.Second)), time.Duration(r[1] * float64(time.Second))
}
