package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrLockUnavailable is returned by a non-blocking acquisition when the
	// lock is held.
	ErrLockUnavailable = errors.New("flow lock unavailable")
	// ErrTimedOut is returned when a bounded wait ends without the lock.
	ErrTimedOut = errors.New("timed out waiting for flow lock")
)

// Lock is a mutual exclusion lock whose waiters are woken by broadcast.
// The zero value is not usable; use NewLock.
type Lock struct {
	mu       sync.Mutex
	held     bool
	notifyCh chan struct{}

	waiting atomic.Int64
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{notifyCh: make(chan struct{})}
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *Lock) TryAcquire() bool {
	ok, _ := l.tryOrWatch()
	return ok
}

// tryOrWatch takes the lock, or returns the channel that the next Release
// will close. Both happen under mu so a release cannot slip in between.
func (l *Lock) tryOrWatch() (bool, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		l.held = true
		return true, nil
	}
	return false, l.notifyCh
}

// Acquire waits until the lock is taken or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	return l.wait(ctx, nil)
}

// AcquireTimeout waits up to d for the lock. With d <= 0 it tries once.
func (l *Lock) AcquireTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if l.TryAcquire() {
			return nil
		}
		return ErrTimedOut
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	return l.wait(ctx, timer.C)
}

func (l *Lock) wait(ctx context.Context, deadline <-chan time.Time) error {
	ok, ch := l.tryOrWatch()
	if ok {
		return nil
	}
	l.waiting.Add(1)
	defer l.waiting.Add(-1)
	for {
		select {
		case <-ch:
		case <-deadline:
			return ErrTimedOut
		case <-ctx.Done():
			return ctx.Err()
		}
		if ok, ch = l.tryOrWatch(); ok {
			return nil
		}
	}
}

// Release unlocks and wakes all waiters. Releasing an unlocked Lock panics.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		panic("flow: release of unlocked lock")
	}
	l.held = false
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
}

// Held reports whether the lock is currently taken.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Waiting returns the number of callers currently suspended on the lock.
func (l *Lock) Waiting() int64 { return l.waiting.Load() }
