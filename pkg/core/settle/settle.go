// Package settle waits for the store to reflect a mutation.
package settle

import (
	"context"
	"fmt"
	"time"
)

// CheckFunc reports whether the expected state is visible
type CheckFunc func(ctx context.Context) (bool, error)

// Poller re-runs a check until it passes or the timeout elapses
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
}

// NewPoller creates a poller. A zero timeout checks exactly once.
func NewPoller(interval, timeout time.Duration) *Poller {
	return &Poller{Interval: interval, Timeout: timeout}
}

// Until polls check until it returns true. It returns false without error
// when the timeout elapses first. Errors from check abort the poll.
func (p *Poller) Until(ctx context.Context, check CheckFunc) (bool, error) {
	deadline := time.Now().Add(p.Timeout)

	for attempt := 1; ; attempt++ {
		ok, err := check(ctx)
		if err != nil {
			return false, fmt.Errorf("settle check failed on attempt %d: %w", attempt, err)
		}
		if ok {
			return true, nil
		}
		if !time.Now().Add(p.Interval).Before(deadline) {
			return false, nil
		}

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}
