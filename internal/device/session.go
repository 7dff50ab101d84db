package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rzbill/multiflow/internal/flow"
	"github.com/rzbill/multiflow/pkg/id"
	"github.com/rzbill/multiflow/pkg/log"
)

// Session is one open handle on a device. Settings changes apply to the next
// read or write; they never affect a call in progress. Every call acquires
// and releases the flow lock itself, so a session never holds a lock between
// calls.
//
// Read and Write satisfy io.Reader and io.Writer. Read returns ErrNoData
// rather than io.EOF when the flow is empty, since more data may arrive.
type Session struct {
	reg   *Registry
	minor int
	id    id.ID

	mu       sync.Mutex
	priority flow.Priority
	blocking bool
	timeout  time.Duration
	closed   bool
}

func newSession(r *Registry, minor int, sid id.ID) *Session {
	return &Session{reg: r, minor: minor, id: sid, priority: flow.High}
}

// ID returns the session identifier.
func (s *Session) ID() id.ID { return s.id }

// Minor returns the device the session is bound to.
func (s *Session) Minor() int { return s.minor }

// SetPriority selects the flow used by subsequent calls.
func (s *Session) SetPriority(p flow.Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priority = p
	return nil
}

// SetBlocking switches between waiting for the flow lock and failing fast.
func (s *Session) SetBlocking(blocking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocking = blocking
}

// SetTimeout sets how long a blocking call waits. Zero means try once.
func (s *Session) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// SetTimeoutMillis is SetTimeout in milliseconds.
func (s *Session) SetTimeoutMillis(ms uint64) {
	const maxMillis = uint64(1<<63-1) / uint64(time.Millisecond)
	if ms > maxMillis {
		ms = maxMillis
	}
	s.SetTimeout(time.Duration(ms) * time.Millisecond)
}

// Priority returns the current priority.
func (s *Session) Priority() flow.Priority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priority
}

// Blocking returns the current blocking mode.
func (s *Session) Blocking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocking
}

// Timeout returns the current timeout.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

func (s *Session) settings() (flow.Priority, flow.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, flow.Policy{}, ErrSessionClosed
	}
	return s.priority, flow.Policy{Blocking: s.blocking, Timeout: s.timeout}, nil
}

// Write writes p using the session settings.
func (s *Session) Write(p []byte) (int, error) {
	return s.WriteContext(context.Background(), p)
}

// WriteContext is Write with a context bounding any lock wait.
func (s *Session) WriteContext(ctx context.Context, p []byte) (int, error) {
	prio, pol, err := s.settings()
	if err != nil {
		return 0, err
	}
	return s.reg.Write(ctx, s.minor, prio, pol, p)
}

// Read reads into p using the session settings.
func (s *Session) Read(p []byte) (int, error) {
	return s.ReadContext(context.Background(), p)
}

// ReadContext is Read with a context bounding any lock wait.
func (s *Session) ReadContext(ctx context.Context, p []byte) (int, error) {
	prio, pol, err := s.settings()
	if err != nil {
		return 0, err
	}
	return s.reg.Read(ctx, s.minor, prio, pol, p)
}

// Close ends the session. Deferred writes it already submitted still land.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.reg.sessions.Add(-1)
	s.reg.logger.Debug("session closed", log.Int("minor", s.minor), log.Str("session", s.id.String()))
	return nil
}
