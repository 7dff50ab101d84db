package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire(t *testing.T) {
	l := NewLock()
	require.True(t, l.TryAcquire())
	assert.True(t, l.Held())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}

func TestReleaseUnlockedPanics(t *testing.T) {
	assert.Panics(t, func() { NewLock().Release() })
}

func TestAcquireTimeoutZeroTriesOnce(t *testing.T) {
	l := NewLock()
	require.NoError(t, l.AcquireTimeout(context.Background(), 0))

	start := time.Now()
	err := l.AcquireTimeout(context.Background(), 0)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, int64(0), l.Waiting())
}

func TestAcquireTimeoutExpires(t *testing.T) {
	l := NewLock()
	require.True(t, l.TryAcquire())
	time.AfterFunc(200*time.Millisecond, l.Release)

	start := time.Now()
	err := l.AcquireTimeout(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimedOut)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 100*time.Millisecond)
	assert.Equal(t, int64(0), l.Waiting())
}

func TestAcquireWokenByRelease(t *testing.T) {
	l := NewLock()
	require.True(t, l.TryAcquire())

	done := make(chan error, 1)
	go func() { done <- l.AcquireTimeout(context.Background(), time.Second) }()

	require.Eventually(t, func() bool { return l.Waiting() == 1 }, time.Second, time.Millisecond)
	l.Release()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("waiter not woken by release")
	}
	assert.True(t, l.Held())
	assert.Equal(t, int64(0), l.Waiting())
}

func TestAcquireHonorsContext(t *testing.T) {
	l := NewLock()
	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int64(0), l.Waiting())
}

// Every waiter wakes on a release; exactly one holds the lock at a time.
func TestBroadcastMutualExclusion(t *testing.T) {
	l := NewLock()
	require.True(t, l.TryAcquire())

	const waiters = 8
	var inside, maxInside, acquired atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			acquired.Add(1)
			l.Release()
		}()
	}

	require.Eventually(t, func() bool { return l.Waiting() == waiters }, time.Second, time.Millisecond)
	l.Release()
	wg.Wait()

	assert.Equal(t, int64(waiters), acquired.Load())
	assert.Equal(t, int64(1), maxInside.Load())
	assert.Equal(t, int64(0), l.Waiting())
	assert.False(t, l.Held())
}
