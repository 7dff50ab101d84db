package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// statsCollector reads device counters at scrape time.
type statsCollector struct {
	src StatsSource

	enabled   *prometheus.Desc
	available *prometheus.Desc
	capacity  *prometheus.Desc
	unread    *prometheus.Desc
	waiting   *prometheus.Desc
	pending   *prometheus.Desc
	processed *prometheus.Desc
	failed    *prometheus.Desc
}

func newStatsCollector(ns string, src StatsSource) *statsCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(ns, "", name), help, labels, nil)
	}
	return &statsCollector{
		src:       src,
		enabled:   desc("device_enabled", "1 if new sessions may be opened", "device"),
		available: desc("device_available_bytes", "Free capacity shared by both flows", "device"),
		capacity:  desc("device_capacity_bytes", "Configured capacity", "device"),
		unread:    desc("flow_unread_bytes", "Bytes written and not yet read", "device", "flow"),
		waiting:   desc("flow_waiting", "Callers suspended on the flow lock", "device", "flow"),
		pending:   desc("deferred_pending", "Low priority writes accepted but not yet appended", "device"),
		processed: desc("deferred_processed_total", "Deferred writes appended"),
		failed:    desc("deferred_failed_total", "Deferred writes dropped and compensated"),
	}
}

func (s *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{s.enabled, s.available, s.capacity, s.unread, s.waiting, s.pending, s.processed, s.failed} {
		ch <- d
	}
}

func (s *statsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range s.src.Stats() {
		dev := strconv.Itoa(st.Minor)
		enabled := 0.0
		if st.Enabled {
			enabled = 1
		}
		ch <- prometheus.MustNewConstMetric(s.enabled, prometheus.GaugeValue, enabled, dev)
		ch <- prometheus.MustNewConstMetric(s.available, prometheus.GaugeValue, float64(st.Available), dev)
		ch <- prometheus.MustNewConstMetric(s.capacity, prometheus.GaugeValue, float64(st.Max), dev)
		ch <- prometheus.MustNewConstMetric(s.unread, prometheus.GaugeValue, float64(st.HighUnread), dev, "high")
		ch <- prometheus.MustNewConstMetric(s.unread, prometheus.GaugeValue, float64(st.LowUnread), dev, "low")
		ch <- prometheus.MustNewConstMetric(s.waiting, prometheus.GaugeValue, float64(st.HighWaiting), dev, "high")
		ch <- prometheus.MustNewConstMetric(s.waiting, prometheus.GaugeValue, float64(st.LowWaiting), dev, "low")
		ch <- prometheus.MustNewConstMetric(s.pending, prometheus.GaugeValue, float64(st.PendingDeferred), dev)
	}
	ds := s.src.DeferredStats()
	ch <- prometheus.MustNewConstMetric(s.processed, prometheus.CounterValue, float64(ds.Processed))
	ch <- prometheus.MustNewConstMetric(s.failed, prometheus.CounterValue, float64(ds.Failed))
}
