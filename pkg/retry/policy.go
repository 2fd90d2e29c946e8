// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package retry decides whether a failed RPC attempt should be repeated and
// how long to wait before doing so. Decisions depend only on the failure and
// the attempt index; the package never touches the network.
package retry

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"google.golang.org/grpc/backoff"

	"vodoo/cli/pkg/odooerr"
)

// Defaults mirror what the CLI has always shipped with.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 30 * time.Second
	DefaultJitter     = 0.2
)

// Policy holds the retry tunables. The zero value never retries.
type Policy struct {
	// MaxRetries bounds the number of retries after the first attempt.
	MaxRetries int
	// Backoff holds base delay, ceiling and jitter. Multiplier is fixed at 2.
	Backoff backoff.Config
	// RetryWrites allows retrying methods that may change server state.
	RetryWrites bool

	// rand returns a value in [0,1); nil uses math/rand/v2.
	rand func() float64
}

// Default returns the default policy.
func Default() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		Backoff: backoff.Config{
			BaseDelay:  DefaultBaseDelay,
			Multiplier: 2,
			Jitter:     DefaultJitter,
			MaxDelay:   DefaultMaxDelay,
		},
	}
}

// New returns a policy with the given bounds and the default jitter.
func New(maxRetries int, base, max time.Duration) Policy {
	p := Default()
	p.MaxRetries = maxRetries
	p.Backoff.BaseDelay = base
	p.Backoff.MaxDelay = max
	return p
}

// WithRand returns a copy of p drawing jitter from r.
func (p Policy) WithRand(r func() float64) Policy {
	p.rand = r
	return p
}

// Validate reports tunables that cannot produce a sensible schedule.
func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return odooerr.Configuration("retry count must not be negative (got %d)", p.MaxRetries)
	case p.Backoff.BaseDelay < 0:
		return odooerr.Configuration("retry backoff must not be negative (got %s)", p.Backoff.BaseDelay)
	case p.Backoff.MaxDelay < 0:
		return odooerr.Configuration("retry max backoff must not be negative (got %s)", p.Backoff.MaxDelay)
	case p.MaxRetries > 0 && p.Backoff.MaxDelay < p.Backoff.BaseDelay:
		return odooerr.Configuration("retry max backoff %s is below the base backoff %s", p.Backoff.MaxDelay, p.Backoff.BaseDelay)
	case p.Backoff.Jitter < 0 || p.Backoff.Jitter > 1:
		return odooerr.Configuration("retry jitter must be within [0,1] (got %g)", p.Backoff.Jitter)
	}
	return nil
}

// Decision is the outcome of Decide.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Surface is the decision to stop and return the failure to the caller.
var Surface = Decision{}

// Decide returns whether to retry after a failure observed at attempt index
// attempt (0 for the first retry) and the delay to wait first.
func (p Policy) Decide(attempt int, err error) Decision {
	if attempt < 0 || attempt >= p.MaxRetries || !IsTransient(err) {
		return Surface
	}
	return Decision{Retry: true, Delay: p.jitter(p.Delay(attempt))}
}

// Delay returns min(MaxDelay, BaseDelay*2^attempt) without jitter. It is
// non-decreasing in attempt and never exceeds MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	base, ceiling := p.Backoff.BaseDelay, p.Backoff.MaxDelay
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(2, float64(attempt))
	if ceiling > 0 && d >= float64(ceiling) {
		return ceiling
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// jitter removes up to Jitter*d from d, so the result never exceeds d.
func (p Policy) jitter(d time.Duration) time.Duration {
	j := p.Backoff.Jitter
	if j <= 0 || d <= 0 {
		return d
	}
	r := rand.Float64
	if p.rand != nil {
		r = p.rand
	}
	return time.Duration(float64(d) * (1 - j*r()))
}

// readOnly lists methods that cannot change server state.
var readOnly = map[string]bool{
	"search":              true,
	"search_read":         true,
	"search_count":        true,
	"read":                true,
	"read_group":          true,
	"fields_get":          true,
	"name_search":         true,
	"default_get":         true,
	"check_access_rights": true,
	"context_get":         true,
	"authenticate":        true,
	"version":             true,
}

// For returns the policy to apply to method: methods that may change server
// state are attempted once unless RetryWrites is set.
func (p Policy) For(method string) Policy {
	if p.RetryWrites || readOnly[method] {
		return p
	}
	p.MaxRetries = 0
	return p
}

// transientCodes are server codes that indicate a condition expected to clear.
var transientCodes = map[int]bool{
	429: true, // rate limited
	502: true,
	503: true,
	504: true,
}

// IsTransient reports whether err may succeed if the same request is repeated.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch odooerr.KindOf(err) {
	case odooerr.KindUser, odooerr.KindAccessDenied, odooerr.KindAccess,
		odooerr.KindMissing, odooerr.KindValidation,
		odooerr.KindRecordNotFound, odooerr.KindRecordOperation,
		odooerr.KindConfiguration, odooerr.KindAuthentication,
		odooerr.KindFieldParsing:
		return false
	}

	var te *odooerr.TransportError
	if errors.As(err, &te) && transientCodes[te.Code] {
		return true
	}
	return isNetworkError(err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
