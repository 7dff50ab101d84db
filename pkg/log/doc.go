// Package log provides multiflow's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by zap; callers never
// import zap directly so the backend stays swappable.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat(log.FormatText),
//	)
//	l = l.With(log.Component("device"), log.Int("minor", 0))
//	l.Info("session opened", log.Str("priority", "high"))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (level and
// text/json format). NewNop returns a logger that discards everything, which
// is what tests use.
//
// # Interop
//
// RedirectStdLog routes the standard library logger through a Logger so that
// third-party packages writing to log.Printf end up in the same stream.
package log
