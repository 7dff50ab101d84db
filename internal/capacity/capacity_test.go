package capacity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rzbill/multiflow/internal/flow"
)

func TestReserveCommitRead(t *testing.T) {
	a := New(10)
	require.NoError(t, a.Reserve(4))
	assert.Equal(t, int64(6), a.Available())

	a.CommitWrite(flow.High, 4)
	assert.Equal(t, int64(4), a.Unread(flow.High))
	assert.Equal(t, int64(0), a.Unread(flow.Low))

	require.NoError(t, a.CommitRead(flow.High, 3))
	assert.Equal(t, int64(9), a.Available())
	assert.Equal(t, int64(1), a.Unread(flow.High))
}

func TestReserveInsufficient(t *testing.T) {
	a := New(4)
	assert.ErrorIs(t, a.Reserve(5), ErrInsufficientSpace)
	assert.Equal(t, int64(4), a.Available())
	assert.Error(t, a.Reserve(-1))

	require.NoError(t, a.Reserve(4))
	assert.ErrorIs(t, a.Reserve(1), ErrInsufficientSpace)
	require.NoError(t, a.Reserve(0))
}

func TestCancelRestores(t *testing.T) {
	a := New(8)
	require.NoError(t, a.Reserve(8))
	require.NoError(t, a.Cancel(8))
	assert.Equal(t, int64(8), a.Available())
}

func TestClampedUpdatesReportInconsistency(t *testing.T) {
	a := New(8)
	assert.ErrorIs(t, a.Cancel(1), ErrInconsistent)
	assert.Equal(t, int64(8), a.Available())

	assert.ErrorIs(t, a.CommitRead(flow.Low, 2), ErrInconsistent)
	assert.Equal(t, int64(0), a.Unread(flow.Low))
	assert.Equal(t, int64(8), a.Available())
}

func TestRollback(t *testing.T) {
	a := New(8)
	require.NoError(t, a.Reserve(5))
	a.CommitWrite(flow.Low, 5)
	require.NoError(t, a.Rollback(flow.Low, 5))

	s := a.Snapshot()
	assert.Equal(t, Snapshot{Max: 8, Available: 8}, s)
}

func TestConcurrentReserveNeverOvercommits(t *testing.T) {
	a := New(100)
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := int64(0)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.Reserve(7) == nil {
				mu.Lock()
				granted += 7
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(98), granted)
	assert.Equal(t, int64(2), a.Available())
}

func TestCapacityInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		max := rapid.Int64Range(1, 256).Draw(t, "max")
		a := New(max)
		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			p := flow.Priority(rapid.IntRange(0, 1).Draw(t, "flow"))
			n := rapid.Int64Range(0, 64).Draw(t, "n")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				if a.Reserve(n) == nil {
					a.CommitWrite(p, n)
				}
			case 1:
				if a.Reserve(n) == nil {
					_ = a.Cancel(n)
				}
			case 2:
				if n > a.Unread(p) {
					n = a.Unread(p)
				}
				if err := a.CommitRead(p, n); err != nil {
					t.Fatalf("commit read: %v", err)
				}
			}
			s := a.Snapshot()
			if s.Available < 0 || s.Unread[0] < 0 || s.Unread[1] < 0 {
				t.Fatalf("negative counter: %+v", s)
			}
			if s.Available+s.Unread[0]+s.Unread[1] != max {
				t.Fatalf("invariant broken: %+v", s)
			}
		}
	})
}
