// Package config provides loading and environment overlay for the multiflow
// runtime configuration. It exposes a Default() baseline (three devices of
// 1 MiB each) and helpers to read JSON or YAML files.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file and overlay env vars
//	if fileCfg, err := config.Load("/etc/multiflow.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { ... }
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close(ctx)
package config
