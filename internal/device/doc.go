// Package device implements the device table, the write and read paths and
// per-open sessions.
//
// A Registry is a fixed table of devices built once at startup. Each Device
// owns a low and a high priority flow plus one capacity accountant shared by
// both. Sessions are obtained with Registry.Open and carry the priority,
// blocking mode and timeout used by their reads and writes.
//
// # Write path
//
// Space is reserved first; a write that does not fit fails with
// ErrInsufficientSpace before any lock is touched. A high priority write then
// takes the flow lock according to the session policy, appends and commits.
// If the lock cannot be taken the reservation is cancelled, so a failed write
// leaves no trace. A low priority write copies the caller's bytes, commits the
// space and hands the copy to the deferred queue; the append happens later on
// the device's lane, which waits for the lock without a deadline.
//
// # Read path
//
// The flow lock is taken according to the session policy. An empty flow
// yields ErrNoData; otherwise up to len(p) bytes are consumed and returned to
// free space. A short read is a success.
package device
