package accountsync

import (
	"errors"
	"fmt"
)

// Synchronizer errors.
var (
	ErrNotActive       = errors.New("no active key")
	ErrClosed          = errors.New("synchronizer closed")
	ErrInvalidConfig   = errors.New("invalid synchronizer configuration")
	ErrSubscribeFailed = errors.New("push subscription failed")
	ErrHandlerFailed   = errors.New("change event handler failed")
	ErrPullFailed      = errors.New("pull failed")
)

// PullError is stored in the entry when a fetch fails.
type PullError struct {
	Key   string
	Epoch uint64
	Seq   uint64
	Err   error
}

func (e *PullError) Error() string {
	return fmt.Sprintf("pull %d for %s (epoch %d) failed: %v", e.Seq, e.Key, e.Epoch, e.Err)
}

func (e *PullError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPullFailed.
func (e *PullError) Is(target error) bool {
	return target == ErrPullFailed
}
