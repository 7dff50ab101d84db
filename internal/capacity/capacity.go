// Package capacity tracks the free space shared by both flows of a device and
// the unread bytes held by each flow.
//
// All counters are atomic and independent of the flow locks. A write first
// Reserves space; the reservation is either Cancelled (the write never
// happened) or committed with CommitWrite once the bytes are in a stream or
// accepted by the deferred queue. When no operation is in flight,
// Available() + Unread(Low) + Unread(High) == Max().
package capacity

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rzbill/multiflow/internal/flow"
)

var (
	// ErrInsufficientSpace is returned by Reserve when the request exceeds
	// the free space.
	ErrInsufficientSpace = errors.New("insufficient space")
	// ErrInconsistent reports an update that would have pushed a counter out
	// of range. The counter is clamped.
	ErrInconsistent = errors.New("capacity counters inconsistent")
)

// Accountant holds the counters of one device.
type Accountant struct {
	max       int64
	available atomic.Int64
	unread    [flow.NumFlows]atomic.Int64
}

// Snapshot is a point-in-time copy of the counters. Fields are read one by
// one, so a snapshot taken under load may be briefly inconsistent.
type Snapshot struct {
	Max       int64
	Available int64
	Unread    [flow.NumFlows]int64
}

// New returns an Accountant with max free bytes.
func New(max int64) *Accountant {
	a := &Accountant{max: max}
	a.available.Store(max)
	return a
}

// Reserve takes n bytes of free space or fails without side effects.
func (a *Accountant) Reserve(n int64) error {
	if n < 0 {
		return fmt.Errorf("reserve %d bytes: negative size", n)
	}
	for {
		cur := a.available.Load()
		if n > cur {
			return ErrInsufficientSpace
		}
		if a.available.CompareAndSwap(cur, cur-n) {
			return nil
		}
	}
}

// Cancel gives back a reservation that was never committed.
func (a *Accountant) Cancel(n int64) error {
	return a.free(n)
}

// CommitWrite records n reserved bytes as unread in flow p.
func (a *Accountant) CommitWrite(p flow.Priority, n int64) {
	a.unread[p].Add(n)
}

// CommitRead moves n bytes consumed from flow p back to free space.
func (a *Accountant) CommitRead(p flow.Priority, n int64) error {
	err := a.takeUnread(p, n)
	if ferr := a.free(n); err == nil {
		err = ferr
	}
	return err
}

// Rollback undoes a committed write whose bytes never reached the stream.
func (a *Accountant) Rollback(p flow.Priority, n int64) error {
	return a.CommitRead(p, n)
}

func (a *Accountant) takeUnread(p flow.Priority, n int64) error {
	u := &a.unread[p]
	for {
		cur := u.Load()
		next := cur - n
		if next < 0 {
			next = 0
		}
		if u.CompareAndSwap(cur, next) {
			if cur < n {
				return fmt.Errorf("%w: %s unread %d, releasing %d", ErrInconsistent, p, cur, n)
			}
			return nil
		}
	}
}

func (a *Accountant) free(n int64) error {
	for {
		cur := a.available.Load()
		next := cur + n
		if next > a.max {
			next = a.max
		}
		if a.available.CompareAndSwap(cur, next) {
			if cur+n > a.max {
				return fmt.Errorf("%w: available %d + %d exceeds max %d", ErrInconsistent, cur, n, a.max)
			}
			return nil
		}
	}
}

// Available returns the free bytes.
func (a *Accountant) Available() int64 { return a.available.Load() }

// Unread returns the unread bytes of flow p.
func (a *Accountant) Unread(p flow.Priority) int64 { return a.unread[p].Load() }

// Max returns the configured capacity.
func (a *Accountant) Max() int64 { return a.max }

// Snapshot copies the counters.
func (a *Accountant) Snapshot() Snapshot {
	s := Snapshot{Max: a.max, Available: a.available.Load()}
	for i := range s.Unread {
		s.Unread[i] = a.unread[i].Load()
	}
	return s
}

// Reset drops all unread bytes and restores full free space.
func (a *Accountant) Reset() {
	for i := range a.unread {
		a.unread[i].Store(0)
	}
	a.available.Store(a.max)
}
