// Package lock provides per-key mutual exclusion for name request actions,
// either in-process or shared across instances through Redis.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the key stays held past the wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held key. It is safe to call more than once.
type Unlock func()

const (
	defaultTTL  = 30 * time.Second
	defaultWait = 2 * time.Second
	retryEvery  = 25 * time.Millisecond
)

// acquireLoop retries try until it succeeds, ctx ends or wait elapses.
func acquireLoop(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNotAcquired
		}
		timer := time.NewTimer(retryEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
