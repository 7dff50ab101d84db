package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/multiflow/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Devices is the fixed number of devices, addressed 0..Devices-1.
	Devices int `json:"devices" yaml:"devices"`
	// MaxBytesPerDevice is the capacity shared by a device's two flows.
	MaxBytesPerDevice int64 `json:"maxBytesPerDevice" yaml:"maxBytesPerDevice"`
	// Disabled lists devices that start administratively disabled.
	Disabled []int `json:"disabled" yaml:"disabled"`
	// HoldAfterWrite keeps a flow locked after each high priority append.
	HoldAfterWrite Duration `json:"holdAfterWrite" yaml:"holdAfterWrite"`
	// DrainTimeout bounds how long shutdown waits for deferred writes.
	DrainTimeout Duration `json:"drainTimeout" yaml:"drainTimeout"`

	Log     log.Config    `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// MetricsConfig controls the Prometheus collector and the status endpoint,
// which is served on Addr when Enabled is set.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Addr      string `json:"addr" yaml:"addr"`

	// RequestsPerSecond limits the status endpoint; zero disables limiting.
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `json:"burst" yaml:"burst"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Devices:           3,
		MaxBytesPerDevice: 1 << 20,
		DrainTimeout:      Duration(5 * time.Second),
		Log:               log.Config{Level: "info", Format: "text"},
		Metrics:           MetricsConfig{Namespace: "multiflow", RequestsPerSecond: 50, Burst: 100},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Devices <= 0 {
		return fmt.Errorf("devices must be positive, got %d", c.Devices)
	}
	if c.MaxBytesPerDevice <= 0 {
		return fmt.Errorf("maxBytesPerDevice must be positive, got %d", c.MaxBytesPerDevice)
	}
	for _, m := range c.Disabled {
		if m < 0 || m >= c.Devices {
			return fmt.Errorf("disabled device %d out of range [0,%d)", m, c.Devices)
		}
	}
	if c.HoldAfterWrite < 0 || c.DrainTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Metrics.RequestsPerSecond < 0 || c.Metrics.Burst < 0 {
		return errors.New("metrics rate limit must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Duration is a time.Duration that reads "250ms" style strings from JSON and
// YAML, or a plain number of milliseconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case string:
		p, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(p)
	case float64:
		*d = Duration(time.Duration(x) * time.Millisecond)
	case int:
		*d = Duration(time.Duration(x) * time.Millisecond)
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}
