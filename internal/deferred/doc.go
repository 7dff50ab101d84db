// Package deferred runs low-priority writes after the write call has
// returned.
//
// The queue has one lane per device. Each lane is an unbounded FIFO drained
// by a single worker goroutine, so items submitted for the same device are
// applied in submission order. Submit only copies the item into the lane
// under a short mutex hold and never waits on the worker.
//
// A handler error or panic cannot reach the original writer. The item is
// logged, counted as failed and passed to the OnFailure hook.
//
// Close stops intake, lets every lane drain, and waits for the workers.
package deferred
