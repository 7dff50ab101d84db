package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Devices != 3 {
		t.Fatalf("default devices should be 3, got %d", cfg.Devices)
	}
	if cfg.MaxBytesPerDevice != 1<<20 {
		t.Fatalf("default capacity")
	}
	if cfg.Metrics.Namespace != "multiflow" {
		t.Fatalf("default metrics namespace")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default should validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "multiflow.json")
	data := []byte(`{"devices":5,"maxBytesPerDevice":2048,"disabled":[1,4],"holdAfterWrite":"250ms","log":{"level":"debug","format":"json"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Devices != 5 || cfg.MaxBytesPerDevice != 2048 {
		t.Fatalf("unexpected sizes: %+v", cfg)
	}
	if len(cfg.Disabled) != 2 || cfg.Disabled[1] != 4 {
		t.Fatalf("expected disabled [1 4], got %v", cfg.Disabled)
	}
	if cfg.HoldAfterWrite.Std() != 250*time.Millisecond {
		t.Fatalf("expected 250ms hold, got %s", cfg.HoldAfterWrite)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("expected debug/json log, got %+v", cfg.Log)
	}
	// untouched fields keep defaults
	if cfg.DrainTimeout.Std() != 5*time.Second {
		t.Fatalf("expected default drain timeout")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "multiflow.yaml")
	data := []byte("devices: 2\nmaxBytesPerDevice: 128\ndrainTimeout: 1500\nmetrics:\n  enabled: true\n  addr: \":9100\"\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Devices != 2 || cfg.MaxBytesPerDevice != 128 {
		t.Fatalf("unexpected sizes: %+v", cfg)
	}
	if cfg.DrainTimeout.Std() != 1500*time.Millisecond {
		t.Fatalf("expected numeric millis, got %s", cfg.DrainTimeout)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9100" || cfg.Metrics.Namespace != "multiflow" {
		t.Fatalf("unexpected metrics: %+v", cfg.Metrics)
	}
}

func TestDurationNumbers(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"numeric.json": `{"drainTimeout":750,"holdAfterWrite":"1s"}`,
		"numeric.yaml": "drainTimeout: 750\nholdAfterWrite: 1s\n",
	}
	for name, body := range cases {
		file := filepath.Join(dir, name)
		if err := os.WriteFile(file, []byte(body), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		cfg, err := Load(file)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if cfg.DrainTimeout.Std() != 750*time.Millisecond || cfg.HoldAfterWrite.Std() != time.Second {
			t.Fatalf("%s: got drain %s hold %s", name, cfg.DrainTimeout, cfg.HoldAfterWrite)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	file := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(file, []byte("holdAfterWrite: soon\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	cfg, err := Load("")
	if err != nil || cfg.Devices != 3 {
		t.Fatalf("empty path should give defaults")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero devices", func(c *Config) { c.Devices = 0 }},
		{"zero capacity", func(c *Config) { c.MaxBytesPerDevice = 0 }},
		{"disabled out of range", func(c *Config) { c.Disabled = []int{3} }},
		{"negative hold", func(c *Config) { c.HoldAfterWrite = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("MULTIFLOW_DEVICES", "8")
	t.Setenv("MULTIFLOW_MAX_BYTES_PER_DEVICE", "128")
	t.Setenv("MULTIFLOW_DISABLED", "0, 2")
	t.Setenv("MULTIFLOW_HOLD_AFTER_WRITE", "2s")
	t.Setenv("MULTIFLOW_LOG_LEVEL", "warn")
	t.Setenv("MULTIFLOW_METRICS_ENABLED", "true")
	FromEnv(&cfg)
	if cfg.Devices != 8 {
		t.Fatalf("env override devices")
	}
	if cfg.MaxBytesPerDevice != 128 {
		t.Fatalf("env override capacity")
	}
	if len(cfg.Disabled) != 2 || cfg.Disabled[0] != 0 || cfg.Disabled[1] != 2 {
		t.Fatalf("env override disabled: %v", cfg.Disabled)
	}
	if cfg.HoldAfterWrite.Std() != 2*time.Second {
		t.Fatalf("env override hold")
	}
	if cfg.Log.Level != "warn" || !cfg.Metrics.Enabled {
		t.Fatalf("env override log/metrics")
	}
}
