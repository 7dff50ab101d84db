// Package flow provides the per-flow lock and the Flow type pairing that lock
// with a stream.
//
// Lock supports three acquisition modes: TryAcquire never waits, Acquire waits
// until the lock is free or the context ends, AcquireTimeout waits up to a
// bounded duration. Release wakes every waiter at once by closing the current
// notify channel; waiters race to re-acquire and the losers wait again.
//
// A zero or negative timeout means "try once", never "wait forever".
package flow
