package device

import (
	"sync/atomic"

	"github.com/rzbill/multiflow/internal/capacity"
	"github.com/rzbill/multiflow/internal/flow"
)

// Device is one addressable unit: two flows sharing one capacity pool.
type Device struct {
	minor    int
	flows    [flow.NumFlows]*flow.Flow
	capacity *capacity.Accountant
	enabled  atomic.Bool
}

func newDevice(minor int, maxBytes int64) *Device {
	d := &Device{minor: minor, capacity: capacity.New(maxBytes)}
	for p := range d.flows {
		d.flows[p] = flow.New(flow.Priority(p))
	}
	d.enabled.Store(true)
	return d
}

// Minor returns the device number.
func (d *Device) Minor() int { return d.minor }

// Enabled reports whether new sessions may be opened.
func (d *Device) Enabled() bool { return d.enabled.Load() }

func (d *Device) flow(p flow.Priority) *flow.Flow { return d.flows[p] }

// DeviceStats is the externally visible state of one device.
type DeviceStats struct {
	Minor           int   `json:"minor" yaml:"minor"`
	Enabled         bool  `json:"enabled" yaml:"enabled"`
	HighUnread      int64 `json:"high_unread" yaml:"high_unread"`
	LowUnread       int64 `json:"low_unread" yaml:"low_unread"`
	HighWaiting     int64 `json:"high_waiting" yaml:"high_waiting"`
	LowWaiting      int64 `json:"low_waiting" yaml:"low_waiting"`
	Available       int64 `json:"available" yaml:"available"`
	Max             int64 `json:"max" yaml:"max"`
	PendingDeferred int64 `json:"pending_deferred" yaml:"pending_deferred"`
}

func (d *Device) stats(pending int64) DeviceStats {
	snap := d.capacity.Snapshot()
	return DeviceStats{
		Minor:           d.minor,
		Enabled:         d.Enabled(),
		HighUnread:      snap.Unread[flow.High],
		LowUnread:       snap.Unread[flow.Low],
		HighWaiting:     nonNegative(d.flows[flow.High].Waiting()),
		LowWaiting:      nonNegative(d.flows[flow.Low].Waiting()),
		Available:       snap.Available,
		Max:             snap.Max,
		PendingDeferred: pending,
	}
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
