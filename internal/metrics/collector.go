package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/multiflow/internal/deferred"
	"github.com/rzbill/multiflow/internal/device"
	"github.com/rzbill/multiflow/internal/flow"
	"github.com/rzbill/multiflow/pkg/log"
)

// StatsSource is what the scrape-time gauges are read from.
type StatsSource interface {
	Stats() []device.DeviceStats
	DeferredStats() deferred.Stats
}

// Collector holds the operation metrics.
type Collector struct {
	registry *prometheus.Registry
	logger   log.Logger

	opsTotal    *prometheus.CounterVec
	bytesTotal  *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	deferredAge prometheus.Histogram
}

// NewCollector creates a collector under namespace.
func NewCollector(namespace string, logger log.Logger) *Collector {
	if logger == nil {
		logger = log.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	c := &Collector{
		registry: reg,
		logger:   logger.WithComponent("metrics"),
	}

	c.opsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Reads and writes by device, flow and outcome",
		},
		[]string{"op", "device", "flow", "outcome"},
	)

	c.bytesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes accepted by writes and returned by reads",
		},
		[]string{"op", "device", "flow"},
	)

	c.opDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Read and write latency including lock waits",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"op", "flow"},
	)

	c.deferredAge = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deferred_queue_seconds",
			Help:      "Time a low priority write spent queued before it was appended",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 10, 7),
		},
	)

	return c
}

// Register adds scrape-time gauges backed by src.
func (c *Collector) Register(namespace string, src StatsSource) error {
	if err := c.registry.Register(newStatsCollector(namespace, src)); err != nil {
		return err
	}
	c.logger.Debug("device gauges registered", log.Str("namespace", namespace))
	return nil
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveWrite implements device.Observer.
func (c *Collector) ObserveWrite(minor int, p flow.Priority, n int, err error, d time.Duration) {
	c.observe("write", minor, p, n, err, d)
}

// ObserveRead implements device.Observer.
func (c *Collector) ObserveRead(minor int, p flow.Priority, n int, err error, d time.Duration) {
	c.observe("read", minor, p, n, err, d)
}

// ObserveDeferred records how long an item waited before being appended.
func (c *Collector) ObserveDeferred(queued time.Duration) {
	c.deferredAge.Observe(queued.Seconds())
}

func (c *Collector) observe(op string, minor int, p flow.Priority, n int, err error, d time.Duration) {
	dev := strconv.Itoa(minor)
	c.opsTotal.WithLabelValues(op, dev, p.String(), Outcome(err)).Inc()
	if n > 0 {
		c.bytesTotal.WithLabelValues(op, dev, p.String()).Add(float64(n))
	}
	c.opDuration.WithLabelValues(op, p.String()).Observe(d.Seconds())
}

// Outcome maps an operation error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, device.ErrNoData):
		return "no_data"
	case errors.Is(err, device.ErrInsufficientSpace):
		return "insufficient_space"
	case errors.Is(err, device.ErrLockUnavailable):
		return "lock_unavailable"
	case errors.Is(err, device.ErrTimedOut):
		return "timed_out"
	case errors.Is(err, device.ErrClosed), errors.Is(err, device.ErrSessionClosed):
		return "closed"
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, device.ErrInvalidPriority):
		return "invalid"
	default:
		return "error"
	}
}
