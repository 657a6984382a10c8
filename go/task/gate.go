package task

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrCapacityExceeded is returned when a task cannot obtain a run slot
// within the queue wait timeout.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// Gate is a counting semaphore bounding how many tasks may be running
// simultaneously. A slot is acquired before pending -> running and
// released on the terminal transition regardless of outcome.
type Gate struct {
	sem  *semaphore.Weighted
	wait time.Duration
}

// NewGate builds a Gate of the given capacity and queue wait timeout.
func NewGate(capacity int, wait time.Duration) *Gate {
	return &Gate{
		sem:  semaphore.NewWeighted(int64(capacity)),
		wait: wait,
	}
}

// Acquire obtains a run slot, waiting up to the queue wait timeout.
// It returns ErrCapacityExceeded when the timeout elapses first, or the
// context's error when the caller is cancelled while waiting.
func (g *Gate) Acquire(ctx context.Context) error {
	var wctx, cancel = context.WithTimeout(ctx, g.wait)
	defer cancel()

	if err := g.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrCapacityExceeded
	}
	return nil
}

// Release returns a previously acquired slot.
func (g *Gate) Release() { g.sem.Release(1) }
