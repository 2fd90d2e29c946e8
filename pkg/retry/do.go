// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package retry

import (
	"context"
	"time"
)

// Clock is the suspension primitive used between attempts.
type Clock interface {
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type timerClock struct{}

// SystemClock returns a Clock backed by real timers.
func SystemClock() Clock { return timerClock{} }

func (timerClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempt records a failed attempt inside one Do loop.
type Attempt struct {
	// Index is the retry index the failure is judged at (0 for the first failure).
	Index int
	// Elapsed is the total delay waited so far.
	Elapsed time.Duration
	Err     error
}

// Hook observes retry decisions; it must not block.
type Hook func(a Attempt, d Decision)

// Do runs fn until it succeeds, the policy surfaces the failure, or ctx is
// done. The last failure is returned unchanged. When ctx ends during a
// backoff wait, the failure observed before the wait is returned.
func Do(ctx context.Context, p Policy, clock Clock, hook Hook, fn func(ctx context.Context) error) error {
	if clock == nil {
		clock = SystemClock()
	}
	var elapsed time.Duration
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		d := p.Decide(attempt, err)
		if hook != nil {
			hook(Attempt{Index: attempt, Elapsed: elapsed, Err: err}, d)
		}
		if !d.Retry {
			return err
		}
		if clock.Sleep(ctx, d.Delay) != nil {
			return err
		}
		elapsed += d.Delay
	}
}
