package runtime

import (
	"bytes"
	"context"
	"testing"

	cfgpkg "github.com/rzbill/multiflow/internal/config"
)

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Config: cfgpkg.Default(), LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if got := rt.Registry().Len(); got != 3 {
		t.Fatalf("expected 3 devices, got %d", got)
	}
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err == nil {
		t.Fatalf("expected unhealthy after close")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Devices = 0
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected error for zero devices")
	}
	cfg = cfgpkg.Default()
	cfg.Log.Format = "xml"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected error for unknown log format")
	}
}

func TestWriteReadThroughRuntime(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Devices = 1
	cfg.MaxBytesPerDevice = 16
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	var logs bytes.Buffer
	rt, err := Open(Options{Config: cfg, LogOutput: &logs})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close(context.Background())

	s, err := rt.Registry().Open(0)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := s.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 8)
	n, err := s.Read(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("read: %q %v", buf[:n], err)
	}
	if !bytes.Contains(logs.Bytes(), []byte(`"component":"device"`)) {
		t.Fatalf("expected device component logs, got %s", logs.String())
	}
	mfs, err := rt.Metrics().Registry().Gather()
	if err != nil || len(mfs) == 0 {
		t.Fatalf("gather: %d families, %v", len(mfs), err)
	}
}
