// Package serverrun exposes a shared Run entrypoint used by the CLI to open
// the multiflow runtime, optionally serve the HTTP status endpoint, run a
// body (the interactive shell or a script) and shut everything down.
//
// Example:
//
//	opts := serverrun.Options{StatusAddr: "127.0.0.1:9100", Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts, func(ctx context.Context, rt *runtime.Runtime) error {
//	    s, err := rt.Registry().Open(0)
//	    ...
//	})
package serverrun
