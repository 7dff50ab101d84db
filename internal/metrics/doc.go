// Package metrics exposes device activity as Prometheus metrics.
//
// Collector records the outcome, size and latency of every read and write
// (it implements device.Observer) and, on each scrape, reports the per device
// counters of a StatsSource: free space, unread bytes, waiting callers and
// pending deferred writes. Every Collector owns its own registry so several
// can coexist in one process.
package metrics
