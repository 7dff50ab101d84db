package device

import (
	"errors"

	"github.com/rzbill/multiflow/internal/capacity"
	"github.com/rzbill/multiflow/internal/flow"
)

var (
	ErrInsufficientSpace = capacity.ErrInsufficientSpace
	ErrLockUnavailable   = flow.ErrLockUnavailable
	ErrTimedOut          = flow.ErrTimedOut

	// ErrNoData is returned by a read on an empty flow.
	ErrNoData = errors.New("no data")

	ErrDeviceNotFound  = errors.New("device not found")
	ErrDeviceDisabled  = errors.New("device disabled")
	ErrSessionClosed   = errors.New("session closed")
	ErrClosed          = errors.New("registry closed")
	ErrInvalidPriority = errors.New("invalid priority")
)

// Retryable reports whether err is a transient outcome the caller may retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrInsufficientSpace) ||
		errors.Is(err, ErrLockUnavailable) ||
		errors.Is(err, ErrTimedOut) ||
		errors.Is(err, ErrNoData)
}
