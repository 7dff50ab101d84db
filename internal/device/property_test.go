package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/rzbill/multiflow/internal/flow"
)

// After every completed operation, with the deferred queue drained,
// available + low unread + high unread equals the device capacity, and each
// flow returns exactly the bytes written to it, in order.
func TestCapacityAndOrderProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		max := rapid.Int64Range(1, 64).Draw(rt, "max")
		r, err := NewRegistry(Options{Devices: 1, MaxBytes: max})
		if err != nil {
			rt.Fatalf("new registry: %v", err)
		}
		defer r.Close(context.Background())

		var sessions [flow.NumFlows]*Session
		for p := range sessions {
			s, err := r.Open(0)
			if err != nil {
				rt.Fatalf("open: %v", err)
			}
			if err := s.SetPriority(flow.Priority(p)); err != nil {
				rt.Fatalf("set priority: %v", err)
			}
			sessions[p] = s
		}
		var written, read [flow.NumFlows]bytes.Buffer

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			p := rapid.IntRange(0, flow.NumFlows-1).Draw(rt, "flow")
			s := sessions[p]
			if rapid.Bool().Draw(rt, "write") {
				payload := rapid.SliceOfN(rapid.Byte(), 0, 24).Draw(rt, "payload")
				n, err := s.Write(payload)
				switch {
				case err == nil:
					written[p].Write(payload[:n])
				case errors.Is(err, ErrInsufficientSpace):
				default:
					rt.Fatalf("write: %v", err)
				}
			} else {
				buf := make([]byte, rapid.IntRange(1, 24).Draw(rt, "max_read"))
				n, err := s.Read(buf)
				switch {
				case err == nil:
					read[p].Write(buf[:n])
				case errors.Is(err, ErrNoData):
				default:
					rt.Fatalf("read: %v", err)
				}
			}

			deadline := time.Now().Add(time.Second)
			for r.queue.Pending() > 0 {
				if time.Now().After(deadline) {
					rt.Fatalf("deferred queue did not drain")
				}
				time.Sleep(100 * time.Microsecond)
			}

			st, _ := r.Device(0)
			if st.Available < 0 || st.LowUnread < 0 || st.HighUnread < 0 {
				rt.Fatalf("negative counter: %+v", st)
			}
			if st.Available+st.LowUnread+st.HighUnread != max {
				rt.Fatalf("capacity invariant broken: %+v", st)
			}
		}

		for p, s := range sessions {
			buf := make([]byte, max)
			if n, err := s.Read(buf); err == nil {
				read[p].Write(buf[:n])
			}
			if !bytes.Equal(written[p].Bytes(), read[p].Bytes()) {
				rt.Fatalf("%s flow: read %q, wrote %q", flow.Priority(p), read[p].Bytes(), written[p].Bytes())
			}
		}
	})
}
