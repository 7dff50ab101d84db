package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/multiflow/internal/deferred"
	"github.com/rzbill/multiflow/internal/flow"
	"github.com/rzbill/multiflow/internal/stream"
	"github.com/rzbill/multiflow/pkg/id"
	"github.com/rzbill/multiflow/pkg/log"
)

// Observer receives the outcome of every read and write. Implementations must
// be safe for concurrent use.
type Observer interface {
	ObserveWrite(minor int, p flow.Priority, n int, err error, d time.Duration)
	ObserveRead(minor int, p flow.Priority, n int, err error, d time.Duration)
}

// DeferredObserver is optionally implemented by an Observer to learn how
// long low priority writes waited before being appended.
type DeferredObserver interface {
	ObserveDeferred(queued time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveWrite(int, flow.Priority, int, error, time.Duration) {}
func (nopObserver) ObserveRead(int, flow.Priority, int, error, time.Duration)  {}

// Options configures a Registry.
type Options struct {
	// Devices is the fixed number of devices, addressed 0..Devices-1.
	Devices int
	// MaxBytes is the capacity of each device, shared by its two flows.
	MaxBytes int64
	// Disabled lists devices that start administratively disabled.
	Disabled []int
	// HoldAfterWrite keeps the flow lock for this long after a high priority
	// append. Debug aid for reproducing lock contention.
	HoldAfterWrite time.Duration

	Logger   log.Logger
	Observer Observer
}

// Registry is the fixed device table.
type Registry struct {
	devices  []*Device
	queue    *deferred.Queue
	logger   log.Logger
	observer Observer
	ids      *id.Generator
	hold     time.Duration

	// mu orders enter against Close so that no operation starts after
	// Close begins waiting for inflight ones.
	mu       sync.RWMutex
	inflight sync.WaitGroup
	closed   atomic.Bool
	sessions atomic.Int64
}

// NewRegistry builds the device table and starts the deferred workers.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Devices <= 0 {
		return nil, fmt.Errorf("devices must be positive, got %d", opts.Devices)
	}
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be positive, got %d", opts.MaxBytes)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	r := &Registry{
		devices:  make([]*Device, opts.Devices),
		logger:   opts.Logger.WithComponent("device"),
		observer: opts.Observer,
		ids:      id.NewGenerator(),
		hold:     opts.HoldAfterWrite,
	}
	for i := range r.devices {
		r.devices[i] = newDevice(i, opts.MaxBytes)
	}
	for _, m := range opts.Disabled {
		if m < 0 || m >= opts.Devices {
			return nil, fmt.Errorf("%w: disabled minor %d", ErrDeviceNotFound, m)
		}
		r.devices[m].enabled.Store(false)
	}

	r.queue = deferred.New(opts.Devices, r.applyDeferred, opts.Logger)
	r.queue.OnFailure(r.compensate)
	r.queue.Start(context.Background())

	r.logger.Info("device registry ready",
		log.Int("devices", opts.Devices),
		log.Int64("max_bytes", opts.MaxBytes),
		log.Dur("hold_after_write", opts.HoldAfterWrite))
	return r, nil
}

// enter registers a read or write. It fails once Close has started.
func (r *Registry) enter() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		return false
	}
	r.inflight.Add(1)
	return true
}

// Len returns the number of devices.
func (r *Registry) Len() int { return len(r.devices) }

func (r *Registry) lookup(minor int) (*Device, error) {
	if minor < 0 || minor >= len(r.devices) {
		return nil, fmt.Errorf("%w: minor %d", ErrDeviceNotFound, minor)
	}
	return r.devices[minor], nil
}

// Open starts a session on a device with the default settings: high
// priority, non-blocking, zero timeout.
func (r *Registry) Open(minor int) (*Session, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	d, err := r.lookup(minor)
	if err != nil {
		return nil, err
	}
	if !d.Enabled() {
		return nil, fmt.Errorf("%w: minor %d", ErrDeviceDisabled, minor)
	}
	s := newSession(r, minor, r.ids.Next())
	r.sessions.Add(1)
	r.logger.Debug("session opened", log.Int("minor", minor), log.Str("session", s.id.String()))
	return s, nil
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool { return r.closed.Load() }

// Sessions returns the number of open sessions.
func (r *Registry) Sessions() int64 { return r.sessions.Load() }

// Enable allows new sessions on a device.
func (r *Registry) Enable(minor int) error { return r.setEnabled(minor, true) }

// Disable refuses new sessions on a device. Open sessions keep working.
func (r *Registry) Disable(minor int) error { return r.setEnabled(minor, false) }

func (r *Registry) setEnabled(minor int, on bool) error {
	d, err := r.lookup(minor)
	if err != nil {
		return err
	}
	if d.enabled.Swap(on) != on {
		r.logger.Info("device state changed", log.Int("minor", minor), log.Bool("enabled", on))
	}
	return nil
}

// Stats returns one entry per device.
func (r *Registry) Stats() []DeviceStats {
	out := make([]DeviceStats, len(r.devices))
	for i, d := range r.devices {
		out[i] = d.stats(r.queue.PendingLane(i))
	}
	return out
}

// Device returns the stats of one device.
func (r *Registry) Device(minor int) (DeviceStats, error) {
	d, err := r.lookup(minor)
	if err != nil {
		return DeviceStats{}, err
	}
	return d.stats(r.queue.PendingLane(minor)), nil
}

// DeferredStats returns the deferred queue counters.
func (r *Registry) DeferredStats() deferred.Stats { return r.queue.Stats() }

// Write stores p in flow prio of device minor. High priority writes are
// appended before Write returns; low priority writes are accepted and
// appended later.
func (r *Registry) Write(ctx context.Context, minor int, prio flow.Priority, pol flow.Policy, p []byte) (n int, err error) {
	start := time.Now()
	defer func() { r.observer.ObserveWrite(minor, prio, n, err, time.Since(start)) }()

	if !r.enter() {
		return 0, ErrClosed
	}
	defer r.inflight.Done()
	d, err := r.lookup(minor)
	if err != nil {
		return 0, err
	}
	if !prio.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, int(prio))
	}
	if len(p) == 0 {
		return 0, nil
	}
	size := int64(len(p))
	if err := d.capacity.Reserve(size); err != nil {
		r.logger.Debug("write rejected", log.Int("minor", minor), log.Int("bytes", len(p)),
			log.Int64("available", d.capacity.Available()), log.Err(err))
		return 0, err
	}
	if prio == flow.High {
		return r.writeDirect(ctx, d, pol, p)
	}
	return r.writeDeferred(d, prio, p)
}

func (r *Registry) writeDirect(ctx context.Context, d *Device, pol flow.Policy, p []byte) (int, error) {
	f := d.flow(flow.High)
	size := int64(len(p))
	if err := f.Acquire(ctx, pol); err != nil {
		r.cancel(d, size)
		r.logger.Debug("write lock not acquired", log.Int("minor", d.minor), log.Bool("blocking", pol.Blocking),
			log.Dur("timeout", pol.Timeout), log.Err(err))
		return 0, err
	}
	if r.closed.Load() {
		// woke up during Close; give the reservation back untouched
		f.Release()
		r.cancel(d, size)
		return 0, ErrClosed
	}
	st := f.Stream()
	n := st.Append(p)
	d.capacity.CommitWrite(flow.High, int64(n))
	r.logger.Debug("write appended", log.Int("minor", d.minor), log.Str("flow", flow.High.String()),
		log.Int("bytes", n), log.Int("blocks", st.Blocks()), log.Uint64("tail_block", st.TailID()))
	if r.hold > 0 {
		select {
		case <-time.After(r.hold):
		case <-ctx.Done():
		}
	}
	f.Release()
	return n, nil
}

func (r *Registry) writeDeferred(d *Device, prio flow.Priority, p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	it := deferred.Item{
		Device:   d.minor,
		Priority: prio,
		Payload:  stream.NewPending(buf),
		Len:      len(buf),
	}
	// committed before submit so a reader that drains the append never sees
	// unread go below zero
	d.capacity.CommitWrite(prio, int64(it.Len))
	if err := r.queue.Submit(it); err != nil {
		if rerr := d.capacity.Rollback(prio, int64(it.Len)); rerr != nil {
			r.logger.Error("capacity rollback failed", log.Int("minor", d.minor), log.Err(rerr))
		}
		if errors.Is(err, deferred.ErrClosed) {
			return 0, ErrClosed
		}
		return 0, err
	}
	return it.Len, nil
}

func (r *Registry) cancel(d *Device, n int64) {
	if err := d.capacity.Cancel(n); err != nil {
		r.logger.Error("capacity cancel failed", log.Int("minor", d.minor), log.Err(err))
	}
}

func (r *Registry) applyDeferred(ctx context.Context, it deferred.Item) error {
	d, err := r.lookup(it.Device)
	if err != nil {
		return err
	}
	f := d.flow(it.Priority)
	if err := f.AcquireForever(ctx); err != nil {
		return err
	}
	func() {
		defer f.Release()
		st := f.Stream()
		n := st.AppendPending(it.Payload)
		r.logger.Debug("deferred write appended", log.Int("minor", it.Device), log.Str("flow", it.Priority.String()),
			log.Int("bytes", n), log.Int("blocks", st.Blocks()), log.Uint64("tail_block", st.TailID()))
	}()
	if o, ok := r.observer.(DeferredObserver); ok {
		o.ObserveDeferred(time.Since(it.Enqueued))
	}
	return nil
}

// compensate returns the space of a deferred write that never landed.
func (r *Registry) compensate(it deferred.Item, cause error) {
	d, err := r.lookup(it.Device)
	if err != nil {
		return
	}
	if err := d.capacity.Rollback(it.Priority, int64(it.Len)); err != nil {
		r.logger.Error("capacity rollback failed", log.Int("minor", it.Device), log.Err(err))
		return
	}
	r.logger.Warn("deferred write dropped, space returned",
		log.Int("minor", it.Device), log.Int("bytes", it.Len), log.Err(cause))
}

// Read consumes up to len(p) bytes from flow prio of device minor.
func (r *Registry) Read(ctx context.Context, minor int, prio flow.Priority, pol flow.Policy, p []byte) (n int, err error) {
	start := time.Now()
	defer func() { r.observer.ObserveRead(minor, prio, n, err, time.Since(start)) }()

	if !r.enter() {
		return 0, ErrClosed
	}
	defer r.inflight.Done()
	d, err := r.lookup(minor)
	if err != nil {
		return 0, err
	}
	if !prio.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, int(prio))
	}
	f := d.flow(prio)
	if err := f.Acquire(ctx, pol); err != nil {
		r.logger.Debug("read lock not acquired", log.Int("minor", minor), log.Str("flow", prio.String()), log.Err(err))
		return 0, err
	}
	defer f.Release()
	if r.closed.Load() {
		return 0, ErrClosed
	}

	st := f.Stream()
	n, err = st.Read(p)
	if errors.Is(err, stream.ErrEmpty) {
		return 0, ErrNoData
	}
	r.logger.Debug("read consumed", log.Int("minor", minor), log.Str("flow", prio.String()),
		log.Int("bytes", n), log.Int("blocks", st.Blocks()), log.Uint64("head_block", st.HeadID()))
	if n > 0 {
		if cerr := d.capacity.CommitRead(prio, int64(n)); cerr != nil {
			r.logger.Error("capacity commit failed", log.Int("minor", minor), log.Err(cerr))
		}
	}
	return n, nil
}

// Close stops accepting work, waits for reads and writes already in
// progress, drains the deferred queue and drops all stream data. Sessions
// still open fail with ErrClosed afterwards.
//
// If ctx ends before in-progress operations finish, Close returns ctx's
// error and leaves stream data and capacity as they are; the stragglers
// undo their own reservations.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		qerr := r.queue.Close(ctx)
		r.logger.Warn("device registry closed with operations in progress", log.Err(ctx.Err()))
		return errors.Join(fmt.Errorf("wait for in-progress operations: %w", ctx.Err()), qerr)
	}

	var errs []error
	if err := r.queue.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain deferred queue: %w", err))
	}
	dropped := 0
	for _, d := range r.devices {
		reset := true
		for _, f := range d.flows {
			if err := f.AcquireForever(ctx); err != nil {
				errs = append(errs, fmt.Errorf("release minor %d %s flow: %w", d.minor, f.Priority(), err))
				reset = false
				continue
			}
			n := f.Stream().Reset()
			f.Release()
			dropped += n
			if n > 0 {
				if err := d.capacity.CommitRead(f.Priority(), int64(n)); err != nil {
					r.logger.Error("capacity release failed", log.Int("minor", d.minor), log.Err(err))
				}
			}
		}
		// with every flow empty, clear any drift left by clamped counters
		if reset {
			d.capacity.Reset()
		}
	}
	r.logger.Info("device registry closed", log.Int("dropped_bytes", dropped))
	return errors.Join(errs...)
}
