package serverrun

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/rzbill/multiflow/internal/config"
	"github.com/rzbill/multiflow/internal/runtime"
	httpserver "github.com/rzbill/multiflow/internal/server/http"
	logpkg "github.com/rzbill/multiflow/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	// StatusAddr enables the HTTP status endpoint when non-empty.
	StatusAddr string
	Config     cfgpkg.Config
	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// Body is the work done while the runtime is open.
type Body func(ctx context.Context, rt *runtime.Runtime) error

// Run opens the runtime, serves status if requested and runs body until it
// returns or ctx is cancelled. The runtime is closed before Run returns.
func Run(ctx context.Context, opts Options, body Body) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.Log.Level == "" {
		cfg.Log.Level = getenvDefault("MULTIFLOW_LOG_LEVEL", "info")
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = getenvDefault("MULTIFLOW_LOG_FORMAT", "text")
	}
	rt, err := runtime.Open(runtime.Options{Config: cfg, LogOutput: opts.LogOutput})
	if err != nil {
		return err
	}
	logger := rt.Logger()
	restore := logpkg.RedirectStdLog(logger)
	defer restore()

	logger.Info("starting multiflow",
		logpkg.Int("devices", cfg.Devices),
		logpkg.Int64("max_bytes_per_device", cfg.MaxBytesPerDevice),
		logpkg.Str("status", opts.StatusAddr),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	bctx, cancel := context.WithCancel(sctx)
	defer cancel()

	var wg sync.WaitGroup
	var hsrv *httpserver.Server
	if opts.StatusAddr != "" {
		hsrv = httpserver.New(rt, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hsrv.ListenAndServe(bctx, opts.StatusAddr); err != nil && bctx.Err() == nil {
				logger.Error("status endpoint failed", logpkg.Err(err))
			}
		}()
	}

	runErr := body(bctx, rt)

	// stop the status endpoint before the registry goes away
	cancel()
	if hsrv != nil {
		hsrv.Close()
	}
	wg.Wait()

	closeErr := rt.Close(context.Background())
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		logger.Warn("shutdown incomplete", logpkg.Err(closeErr))
	}
	return closeErr
}
