// Package runtime wires config, logging, the device registry and metrics into
// a single in-process multiflow instance. It exposes Open/Close, basic health
// checks and accessors used by the shell and the HTTP status endpoint.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close(context.Background())
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Open a session and write
//	s, _ := rt.Registry().Open(0)
//	_, _ = s.Write([]byte("hello"))
package runtime
