package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overlays MULTIFLOW_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("MULTIFLOW_DEVICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Devices = n
		}
	}
	if v := os.Getenv("MULTIFLOW_MAX_BYTES_PER_DEVICE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxBytesPerDevice = n
		}
	}
	if v := os.Getenv("MULTIFLOW_DISABLED"); v != "" {
		cfg.Disabled = nil
		for _, p := range strings.Split(v, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
				cfg.Disabled = append(cfg.Disabled, n)
			}
		}
	}
	if v := os.Getenv("MULTIFLOW_HOLD_AFTER_WRITE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HoldAfterWrite = Duration(d)
		}
	}
	if v := os.Getenv("MULTIFLOW_DRAIN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DrainTimeout = Duration(d)
		}
	}
	if v := os.Getenv("MULTIFLOW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MULTIFLOW_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("MULTIFLOW_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("MULTIFLOW_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
	if v := os.Getenv("MULTIFLOW_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
