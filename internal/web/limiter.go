package web

// limiter.go bounds how many pipeline operations the API runs at once.
//
// Extract, transform, load and reset all hold a database connection for
// their whole duration. Without a bound a burst of requests would drain the
// pool and starve the status endpoints. Callers wait up to maxWait for a
// slot and then get ErrTooBusy.

import (
	"context"
	"errors"
	"time"
)

// ErrTooBusy is returned when every operation slot stays occupied for the
// whole wait period. Clients should retry after a short delay.
var ErrTooBusy = errors.New("too many pipeline operations in progress, please try again later")

// DefaultMaxConcurrentOps is used when the configured limit is not positive.
const DefaultMaxConcurrentOps = 2

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// OpLimiter is a counting semaphore for pipeline operations.
type OpLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewOpLimiter allows at most maxConcurrent simultaneous operations.
func NewOpLimiter(maxConcurrent int, maxWait time.Duration) *OpLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentOps
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &OpLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a free slot. The caller MUST call Release afterwards.
func (l *OpLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrTooBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *OpLimiter) Release() {
	<-l.slots
}

// Active returns how many operations currently hold a slot.
func (l *OpLimiter) Active() int {
	return len(l.slots)
}

// WaitForDrain blocks until no operation holds a slot or ctx is done.
func (l *OpLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
