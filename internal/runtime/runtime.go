package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	cfgpkg "github.com/rzbill/multiflow/internal/config"
	"github.com/rzbill/multiflow/internal/device"
	"github.com/rzbill/multiflow/internal/metrics"
	"github.com/rzbill/multiflow/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger log.Logger
	// LogOutput is where the built logger writes. Defaults to stderr.
	LogOutput io.Writer
}

// Runtime owns the device registry for a single process.
type Runtime struct {
	config   cfgpkg.Config
	logger   log.Logger
	registry *device.Registry
	metrics  *metrics.Collector
}

// Open validates the configuration and builds the registry.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		var lopts []log.LoggerOption
		if opts.LogOutput != nil {
			lopts = append(lopts, log.WithOutput(opts.LogOutput))
		}
		l, err := log.ApplyConfig(&cfg.Log, lopts...)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	ns := cfg.Metrics.Namespace
	if ns == "" {
		ns = "multiflow"
	}
	collector := metrics.NewCollector(ns, logger)

	reg, err := device.NewRegistry(device.Options{
		Devices:        cfg.Devices,
		MaxBytes:       cfg.MaxBytesPerDevice,
		Disabled:       cfg.Disabled,
		HoldAfterWrite: cfg.HoldAfterWrite.Std(),
		Logger:         logger,
		Observer:       collector,
	})
	if err != nil {
		return nil, err
	}
	if err := collector.Register(ns, reg); err != nil {
		_ = reg.Close(context.Background())
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &Runtime{config: cfg, logger: logger, registry: reg, metrics: collector}, nil
}

// Close drains deferred writes and releases all stream memory. Without a
// deadline on ctx, the configured drain timeout applies.
func (r *Runtime) Close(ctx context.Context) error {
	if r.registry == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && r.config.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.DrainTimeout.Std())
		defer cancel()
	}
	err := r.registry.Close(ctx)
	_ = r.logger.Sync()
	return err
}

// CheckHealth reports an error once the registry is closed or when deferred
// writes have been dropped.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.registry == nil {
		return errors.New("registry not open")
	}
	if r.registry.Closed() {
		return device.ErrClosed
	}
	if failed := r.registry.DeferredStats().Failed; failed > 0 {
		return fmt.Errorf("%d deferred writes dropped", failed)
	}
	return ctx.Err()
}

// Registry returns the device registry.
func (r *Runtime) Registry() *device.Registry { return r.registry }

// Metrics returns the Prometheus collector.
func (r *Runtime) Metrics() *metrics.Collector { return r.metrics }

// Logger returns the runtime logger.
func (r *Runtime) Logger() log.Logger { return r.logger }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
