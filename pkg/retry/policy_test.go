// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodoo/cli/pkg/odooerr"
)

func transient() error {
	return &odooerr.TransportError{Code: 503, Message: "Service Unavailable"}
}

func TestDefaults(t *testing.T) {
	p := Default()
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.Backoff.BaseDelay)
	assert.Equal(t, 30*time.Second, p.Backoff.MaxDelay)
	assert.NoError(t, p.Validate())
}

func TestDelayExponential(t *testing.T) {
	p := New(10, time.Second, 100*time.Second)
	assert.Equal(t, 1*time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
}

func TestDelayCappedAndMonotonic(t *testing.T) {
	p := New(100, 500*time.Millisecond, 5*time.Second)
	prev := time.Duration(0)
	for n := 0; n < 80; n++ {
		d := p.Delay(n)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", n)
		assert.LessOrEqual(t, d, 5*time.Second, "attempt %d", n)
		prev = d
	}
	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestDecideJitterNeverExceedsDelay(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.5, 0.999} {
		p := New(5, time.Second, 10*time.Second).WithRand(func() float64 { return r })
		for n := 0; n < 5; n++ {
			d := p.Decide(n, transient())
			require.True(t, d.Retry)
			assert.LessOrEqual(t, d.Delay, p.Delay(n))
			assert.GreaterOrEqual(t, d.Delay, time.Duration(float64(p.Delay(n))*(1-DefaultJitter)))
		}
	}
}

func TestDecideNonTransientSurfaces(t *testing.T) {
	p := New(5, time.Millisecond, time.Second)
	failures := []error{
		odooerr.NewUserError(odooerr.KindAccess, 200, "no access", nil),
		odooerr.NewUserError(odooerr.KindValidation, 200, "bad value", nil),
		&odooerr.RecordNotFoundError{Model: "res.partner", ID: 1},
		&odooerr.ConfigurationError{Message: "missing url"},
		&odooerr.AuthenticationError{Message: "bad key"},
		&odooerr.TransportError{Code: 500, Message: "boom"},
		&odooerr.TransportError{Code: 404, Message: "not found"},
		context.Canceled,
	}
	for _, err := range failures {
		for attempt := 0; attempt < 5; attempt++ {
			assert.Equal(t, Surface, p.Decide(attempt, err), "%T at %d", err, attempt)
		}
	}
}

func TestDecideTransient(t *testing.T) {
	p := New(3, time.Millisecond, time.Second).WithRand(func() float64 { return 0 })
	failures := []error{
		&odooerr.TransportError{Code: 429, Message: "Too Many Requests"},
		&odooerr.TransportError{Code: 502},
		&odooerr.TransportError{Code: 504},
		&odooerr.TransportError{Code: -1, Err: io.ErrUnexpectedEOF},
		&odooerr.TransportError{Code: -1, Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
		fmt.Errorf("post: %w", syscall.ECONNRESET),
		context.DeadlineExceeded,
	}
	for _, err := range failures {
		d := p.Decide(0, err)
		assert.True(t, d.Retry, "%v", err)
		assert.Equal(t, time.Millisecond, d.Delay)
	}
}

func TestDecideExhausted(t *testing.T) {
	p := New(2, time.Millisecond, time.Second)
	assert.True(t, p.Decide(1, transient()).Retry)
	assert.Equal(t, Surface, p.Decide(2, transient()))
	assert.Equal(t, Surface, New(0, time.Millisecond, time.Second).Decide(0, transient()))
}

func TestForSkipsWrites(t *testing.T) {
	p := New(3, time.Millisecond, time.Second)
	assert.Equal(t, 3, p.For("search_read").MaxRetries)
	assert.Equal(t, 0, p.For("write").MaxRetries)
	assert.Equal(t, 0, p.For("create").MaxRetries)
	assert.Equal(t, 0, p.For("action_confirm").MaxRetries)

	p.RetryWrites = true
	assert.Equal(t, 3, p.For("write").MaxRetries)
}

func TestValidate(t *testing.T) {
	assert.Error(t, New(-1, 0, 0).Validate())
	assert.Error(t, New(1, -time.Second, 0).Validate())
	assert.Error(t, New(20, time.Second, 0).Validate(), "zero max backoff would leave delays unbounded")
	assert.Error(t, New(2, time.Second, 500*time.Millisecond).Validate())
	assert.NoError(t, New(0, time.Second, 0).Validate(), "no retries, no schedule to bound")
	assert.NoError(t, New(2, time.Second, time.Second).Validate())
	p := Default()
	p.Backoff.Jitter = 2
	err := p.Validate()
	require.Error(t, err)
	assert.Equal(t, odooerr.KindConfiguration, odooerr.KindOf(err))
}

type fakeClock struct {
	slept []time.Duration
	fail  error
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	if c.fail != nil {
		return c.fail
	}
	return ctx.Err()
}

func TestDoExponentialSchedule(t *testing.T) {
	p := New(3, 100*time.Millisecond, 10*time.Second).WithRand(func() float64 { return 0 })
	clock := &fakeClock{}
	calls := 0
	last := &odooerr.TransportError{Code: -1, Err: syscall.ECONNREFUSED}

	err := Do(context.Background(), p, clock, nil, func(context.Context) error {
		calls++
		return last
	})

	assert.Same(t, last, err, "exhausted retries surface the last failure unchanged")
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, clock.slept)
}

func TestDoZeroRetriesNoSleep(t *testing.T) {
	clock := &fakeClock{}
	calls := 0
	err := Do(context.Background(), New(0, time.Second, time.Second), clock, nil, func(context.Context) error {
		calls++
		return transient()
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.slept)
}

func TestDoSucceedsAfterTransient(t *testing.T) {
	var seen []Attempt
	calls := 0
	err := Do(context.Background(), New(3, time.Millisecond, time.Second), &fakeClock{},
		func(a Attempt, d Decision) { seen = append(seen, a) },
		func(context.Context) error {
			calls++
			if calls < 3 {
				return transient()
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, seen, 2)
	assert.Equal(t, 1, seen[1].Index)
}

func TestDoStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, New(5, time.Millisecond, time.Second), &fakeClock{}, nil, func(context.Context) error {
		calls++
		cancel()
		return transient()
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsWhenSleepInterrupted(t *testing.T) {
	clock := &fakeClock{fail: context.DeadlineExceeded}
	calls := 0
	want := transient()
	err := Do(context.Background(), New(5, time.Millisecond, time.Second), clock, nil, func(context.Context) error {
		calls++
		return want
	})
	assert.True(t, errors.Is(err, want))
	assert.Equal(t, 1, calls)
}

func TestSystemClockHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SystemClock().Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SystemClock().Sleep(context.Background(), time.Microsecond))
}
