// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package transport implements the uniform Odoo operation set over the two
// wire protocols a server may speak: the legacy JSON-RPC endpoint (/jsonrpc,
// servers up to 18.0) and the JSON-2 endpoint (/json/2/<model>/<method>,
// servers from 19.0). Detect picks the right adapter for a server once.
//
// Both adapters share the operation layer (shape checks, argument building,
// result decoding) and the exchange core (rate limiting, retries, logging,
// metrics); they differ only in how a call is encoded, authenticated and
// decoded on the wire.
package transport

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/retry"
)

// Transport is the uniform operation set over one wire protocol.
type Transport interface {
	// Protocol reports which wire protocol the adapter speaks.
	Protocol() connection.Protocol
	// ActorID returns the authenticated user id, or 0 before authentication.
	ActorID() int64
	// Authenticate establishes the session if it is not already established.
	Authenticate(ctx context.Context) error
	// Reauthenticate discards the session and establishes a new one.
	Reauthenticate(ctx context.Context) error
	// Close releases idle network resources and drops the session.
	Close() error

	Call(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error)
	Search(ctx context.Context, model string, domain Domain, opts SearchOptions) ([]int64, error)
	SearchRead(ctx context.Context, model string, domain Domain, fields []string, opts SearchOptions) ([]Record, error)
	Read(ctx context.Context, model string, ids []int64, fields []string) ([]Record, error)
	Create(ctx context.Context, model string, values ...Values) ([]int64, error)
	Write(ctx context.Context, model string, ids []int64, values Values) (bool, error)
	Unlink(ctx context.Context, model string, ids []int64) (bool, error)
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoints contains the URL paths of both protocols relative to the server root.
type Endpoints struct {
	Legacy       string // e.g., "/jsonrpc"
	DirectPrefix string // e.g., "/json/2"
}

// DefaultEndpoints returns the paths served by stock Odoo.
func DefaultEndpoints() Endpoints {
	return Endpoints{Legacy: "/jsonrpc", DirectPrefix: "/json/2"}
}

// Observer receives call outcomes for metrics. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	ObserveCall(p connection.Protocol, method string, elapsed time.Duration, err error)
	ObserveRetry(p connection.Protocol, method string, a retry.Attempt, delay time.Duration)
	ObserveAuth(p connection.Protocol, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(connection.Protocol, string, time.Duration, error)         {}
func (nopObserver) ObserveRetry(connection.Protocol, string, retry.Attempt, time.Duration) {}
func (nopObserver) ObserveAuth(connection.Protocol, error)                                 {}

// Options are the collaborators shared by both adapters. Zero fields get defaults.
type Options struct {
	HTTPClient Doer
	Logger     *zap.Logger
	Observer   Observer
	Clock      retry.Clock
	// Limiter throttles outgoing requests; nil derives one from the
	// descriptor's RateLimit, if enabled.
	Limiter   *rate.Limiter
	UserAgent string
	Endpoints Endpoints
}

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "vodoo"

func (o Options) withDefaults(d connection.Descriptor) Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: d.EffectiveTimeout()}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Clock == nil {
		o.Clock = retry.SystemClock()
	}
	if o.Limiter == nil && d.RateLimit.Enabled() {
		burst := d.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		o.Limiter = rate.NewLimiter(rate.Limit(d.RateLimit.RPS), burst)
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	def := DefaultEndpoints()
	if o.Endpoints.Legacy == "" {
		o.Endpoints.Legacy = def.Legacy
	}
	if o.Endpoints.DirectPrefix == "" {
		o.Endpoints.DirectPrefix = def.DirectPrefix
	}
	return o
}
