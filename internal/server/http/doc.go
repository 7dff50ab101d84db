// Package httpserver provides a read-only HTTP status endpoint for a running
// multiflow instance: health, per device counters (optionally filtered with a
// CEL expression) and Prometheus metrics. It never exposes device reads or
// writes.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, rt.Logger())
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, "127.0.0.1:9100")
package httpserver
