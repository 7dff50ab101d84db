package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rzbill/multiflow/internal/stream"
)

// Priority selects one of the two flows of a device.
type Priority int

const (
	Low Priority = iota
	High
)

// NumFlows is the number of flows per device.
const NumFlows = 2

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p names an existing flow.
func (p Priority) Valid() bool { return p == Low || p == High }

// ParsePriority accepts "low"/"high" (any case) or "0"/"1".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return Low, nil
	case "high", "1":
		return High, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// Policy is how a caller is willing to wait for a flow.
type Policy struct {
	Blocking bool
	Timeout  time.Duration
}

// Flow is one priority lane of a device: a lock guarding a stream.
type Flow struct {
	*Lock
	priority Priority
	stream   *stream.Stream
}

// New returns an empty flow.
func New(p Priority) *Flow {
	return &Flow{Lock: NewLock(), priority: p, stream: stream.New()}
}

// Priority returns the flow's priority.
func (f *Flow) Priority() Priority { return f.priority }

// Stream returns the flow's stream. Callers must hold the lock.
func (f *Flow) Stream() *stream.Stream { return f.stream }

// Acquire takes the lock according to pol. Non-blocking callers try once and
// get ErrLockUnavailable; blocking callers wait up to pol.Timeout.
func (f *Flow) Acquire(ctx context.Context, pol Policy) error {
	if !pol.Blocking {
		if f.TryAcquire() {
			return nil
		}
		return ErrLockUnavailable
	}
	return f.AcquireTimeout(ctx, pol.Timeout)
}

// AcquireForever waits without a deadline. Only ctx can end the wait.
func (f *Flow) AcquireForever(ctx context.Context) error {
	return f.Lock.Acquire(ctx)
}
