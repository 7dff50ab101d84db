package deferred

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzbill/multiflow/internal/flow"
	"github.com/rzbill/multiflow/internal/stream"
	"github.com/rzbill/multiflow/pkg/log"
)

var (
	ErrClosed      = errors.New("deferred queue closed")
	ErrInvalidLane = errors.New("invalid deferred lane")
	ErrPanicked    = errors.New("deferred handler panicked")
)

// Item is one low-priority write waiting to be appended. It carries its own
// copy of the payload and no reference to the session that produced it.
type Item struct {
	Device   int
	Priority flow.Priority
	Payload  *stream.Pending
	Len      int
	Enqueued time.Time
}

// Handler applies an item.
type Handler func(ctx context.Context, it Item) error

// Stats contains queue statistics.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Pending   int64 `json:"pending"`
}

type lane struct {
	mu     sync.Mutex
	items  []Item
	signal chan struct{}
	depth  atomic.Int64
}

func (l *lane) push(it Item) {
	l.mu.Lock()
	l.items = append(l.items, it)
	l.depth.Add(1)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *lane) pop() (Item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return Item{}, false
	}
	it := l.items[0]
	l.items[0] = Item{}
	l.items = l.items[1:]
	return it, true
}

// Queue dispatches items to per-device lanes.
type Queue struct {
	lanes   []*lane
	handler Handler
	logger  log.Logger

	mu        sync.RWMutex
	closed    bool
	started   bool
	done      chan struct{}
	cancel    context.CancelFunc
	g         errgroup.Group
	onFailure func(Item, error)

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a queue with one lane per device. Workers start with Start.
func New(lanes int, handler Handler, logger log.Logger) *Queue {
	if logger == nil {
		logger = log.NewNop()
	}
	q := &Queue{
		lanes:   make([]*lane, lanes),
		handler: handler,
		logger:  logger.WithComponent("deferred"),
		done:    make(chan struct{}),
	}
	for i := range q.lanes {
		q.lanes[i] = &lane{signal: make(chan struct{}, 1)}
	}
	return q
}

// OnFailure registers fn to be called for every item whose handler failed.
// It must be set before Start.
func (q *Queue) OnFailure(fn func(Item, error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onFailure = fn
}

// Start launches one worker per lane. Handlers receive a context derived from
// ctx; it is cancelled if Close gives up waiting.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.startLocked(ctx)
}

func (q *Queue) startLocked(ctx context.Context) {
	q.started = true
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	for _, l := range q.lanes {
		q.g.Go(func() error {
			q.work(runCtx, l)
			return nil
		})
	}
	q.logger.Debug("deferred workers started", log.Int("lanes", len(q.lanes)))
}

// Submit enqueues it on the lane of it.Device.
func (q *Queue) Submit(it Item) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if it.Device < 0 || it.Device >= len(q.lanes) {
		return fmt.Errorf("%w: %d", ErrInvalidLane, it.Device)
	}
	if it.Enqueued.IsZero() {
		it.Enqueued = time.Now()
	}
	q.submitted.Add(1)
	q.lanes[it.Device].push(it)
	return nil
}

func (q *Queue) work(ctx context.Context, l *lane) {
	for {
		it, ok := l.pop()
		if ok {
			q.execute(ctx, it)
			l.depth.Add(-1)
			continue
		}
		select {
		case <-l.signal:
		case <-q.done:
			// drain whatever arrived before intake stopped
			for {
				it, ok := l.pop()
				if !ok {
					return
				}
				q.execute(ctx, it)
				l.depth.Add(-1)
			}
		}
	}
}

func (q *Queue) execute(ctx context.Context, it Item) {
	err := q.call(ctx, it)
	if err == nil {
		q.processed.Add(1)
		return
	}
	q.failed.Add(1)
	q.logger.Error("deferred write failed",
		log.Int("device", it.Device),
		log.Str("flow", it.Priority.String()),
		log.Int("bytes", it.Len),
		log.Dur("queued_for", time.Since(it.Enqueued)),
		log.Err(err))
	q.mu.RLock()
	fn := q.onFailure
	q.mu.RUnlock()
	if fn != nil {
		fn(it, err)
	}
}

func (q *Queue) call(ctx context.Context, it Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return q.handler(ctx, it)
}

// Close stops intake and waits until every lane is drained. If ctx ends
// first, in-flight handlers are cancelled and ctx.Err() is returned once the
// workers exit.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	if !q.started {
		// accepted items still have to land
		q.startLocked(context.Background())
	}
	close(q.done)
	q.mu.Unlock()

	waitCh := make(chan struct{})
	go func() {
		_ = q.g.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		q.cancel()
		q.logger.Debug("deferred queue drained", log.Int64("processed", q.processed.Load()))
		return nil
	case <-ctx.Done():
		q.cancel()
		<-waitCh
		return ctx.Err()
	}
}

// Pending returns the number of items submitted but not yet finished.
func (q *Queue) Pending() int64 {
	var n int64
	for _, l := range q.lanes {
		n += l.depth.Load()
	}
	return n
}

// PendingLane returns the unfinished items of one lane.
func (q *Queue) PendingLane(i int) int64 {
	if i < 0 || i >= len(q.lanes) {
		return 0
	}
	return q.lanes[i].depth.Load()
}

// Stats returns queue statistics.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Pending:   q.Pending(),
	}
}
