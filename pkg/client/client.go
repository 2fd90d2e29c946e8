// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package client is the entry point for talking to an Odoo server. New
// validates a connection descriptor, detects the wire protocol once and
// returns a Client exposing the uniform operation set; Async wraps the same
// Client in futures for callers that fan out work.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/metrics"
	"vodoo/cli/pkg/odooerr"
	"vodoo/cli/pkg/retry"
	"vodoo/cli/pkg/transport"
)

// Re-exported operation types, so callers only import this package.
type (
	Domain        = transport.Domain
	Values        = transport.Values
	Record        = transport.Record
	SearchOptions = transport.SearchOptions
	NamePair      = transport.NamePair
)

// Cond builds one domain term.
func Cond(field, op string, value any) []any { return transport.Cond(field, op, value) }

// Option configures a Client.
type Option func(*settings)

type settings struct {
	opts      transport.Options
	observers []transport.Observer
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.opts.Logger = l }
}

// WithHTTPClient replaces the HTTP client built from the descriptor timeout.
func WithHTTPClient(c transport.Doer) Option {
	return func(s *settings) { s.opts.HTTPClient = c }
}

// WithObserver adds a call observer. May be given more than once.
func WithObserver(o transport.Observer) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}

// WithMetrics registers Prometheus collectors with reg and observes every call.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) { s.observers = append(s.observers, metrics.New(reg)) }
}

// WithClock replaces the clock used for retry backoff.
func WithClock(c retry.Clock) Option {
	return func(s *settings) { s.opts.Clock = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.opts.UserAgent = ua }
}

// Client is safe for concurrent use. Calls are not serialized; the adapter
// keeps at most one authentication exchange in flight.
type Client struct {
	d   connection.Descriptor
	log *zap.Logger

	mu     sync.RWMutex
	t      transport.Transport
	closed bool
}

// New validates d, detects the server protocol and authenticates.
func New(ctx context.Context, d connection.Descriptor, opts ...Option) (*Client, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	switch len(s.observers) {
	case 0:
	case 1:
		s.opts.Observer = s.observers[0]
	default:
		s.opts.Observer = fanout(s.observers)
	}
	log := s.opts.Logger
	if log == nil {
		log = zap.NewNop()
		s.opts.Logger = log
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Insecure() {
		log.Warn("server URL does not use HTTPS; credentials are sent in clear text",
			zap.String("url", d.BaseURL()))
	}

	t, err := transport.Detect(ctx, d, s.opts)
	if err != nil {
		return nil, err
	}
	log.Info("connected",
		zap.Stringer("server", d),
		zap.String("protocol", string(t.Protocol())),
		zap.Int64("uid", t.ActorID()))
	return &Client{d: d, log: log, t: t}, nil
}

// With opens a client, runs fn and always closes the client. fn's error
// takes precedence over the close error.
func With(ctx context.Context, d connection.Descriptor, fn func(*Client) error, opts ...Option) (err error) {
	c, err := New(ctx, d, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

var errClosed = odooerr.Configuration("client is closed")

func (c *Client) adapter() (transport.Transport, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errClosed
	}
	return c.t, nil
}

// Descriptor returns the connection settings the client was built from.
func (c *Client) Descriptor() connection.Descriptor { return c.d }

// Protocol reports the detected wire protocol.
func (c *Client) Protocol() connection.Protocol { return c.t.Protocol() }

// ActorID returns the authenticated user id.
func (c *Client) ActorID() int64 { return c.t.ActorID() }

// UserID returns the id used for "current user" defaults: the descriptor's
// DefaultActorID when set, otherwise the authenticated user.
func (c *Client) UserID() int64 {
	if c.d.DefaultActorID > 0 {
		return c.d.DefaultActorID
	}
	return c.ActorID()
}

// Reauthenticate discards the session and logs in again.
func (c *Client) Reauthenticate(ctx context.Context) error {
	t, err := c.adapter()
	if err != nil {
		return err
	}
	return t.Reauthenticate(ctx)
}

// Close releases network resources. Further calls fail with a
// ConfigurationError. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.log.Debug("closing client", zap.String("protocol", string(c.t.Protocol())))
	return c.t.Close()
}

// Call invokes an arbitrary model method.
func (c *Client) Call(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	t, err := c.adapter()
	if err != nil {
		return nil, err
	}
	return t.Call(ctx, model, method, args, kwargs)
}

// Search returns the ids of records matching domain.
func (c *Client) Search(ctx context.Context, model string, domain Domain, opts SearchOptions) ([]int64, error) {
	t, err := c.adapter()
	if err != nil {
		return nil, err
	}
	return t.Search(ctx, model, domain, opts)
}

// SearchRead returns records matching domain with the given fields.
func (c *Client) SearchRead(ctx context.Context, model string, domain Domain, fields []string, opts SearchOptions) ([]Record, error) {
	t, err := c.adapter()
	if err != nil {
		return nil, err
	}
	return t.SearchRead(ctx, model, domain, fields, opts)
}

// Read returns the records with ids. A missing id is a RecordNotFoundError.
func (c *Client) Read(ctx context.Context, model string, ids []int64, fields []string) ([]Record, error) {
	t, err := c.adapter()
	if err != nil {
		return nil, err
	}
	return t.Read(ctx, model, ids, fields)
}

// Create creates one record per values map and returns their ids in order.
func (c *Client) Create(ctx context.Context, model string, values ...Values) ([]int64, error) {
	t, err := c.adapter()
	if err != nil {
		return nil, err
	}
	return t.Create(ctx, model, values...)
}

// CreateOne creates a single record and returns its id.
func (c *Client) CreateOne(ctx context.Context, model string, values Values) (int64, error) {
	t, err := c.adapter()
	if err != nil {
		return 0, err
	}
	return transport.CreateOne(ctx, t, model, values)
}

// Write updates the records with ids.
func (c *Client) Write(ctx context.Context, model string, ids []int64, values Values) (bool, error) {
	t, err := c.adapter()
	if err != nil {
		return false, err
	}
	return t.Write(ctx, model, ids, values)
}

// Unlink deletes the records with ids.
func (c *Client) Unlink(ctx context.Context, model string, ids []int64) (bool, error) {
	t, err := c.adapter()
	if err != nil {
		return false, err
	}
	return t.Unlink(ctx, model, ids)
}

// SearchCount returns the number of records matching domain.
func (c *Client) SearchCount(ctx context.Context, model string, domain Domain) (int64, error) {
	t, err := c.adapter()
	if err != nil {
		return 0, err
	}
	return transport.SearchCount(ctx, t, model, domain)
}

// NameSearch looks records up by display name. A limit of 0 means 7.
func (c *Client) NameSearch(ctx context.Context, model, name string, domain Domain, limit int) ([]NamePair, error) {
	t, err := c.adapter()
	if err != nil {
		return nil, err
	}
	return transport.NameSearch(ctx, t, model, name, domain, limit)
}

// IsClosed reports whether err comes from a call on a closed client.
func IsClosed(err error) bool { return errors.Is(err, errClosed) }

type fanout []transport.Observer

func (f fanout) ObserveCall(p connection.Protocol, method string, elapsed time.Duration, err error) {
	for _, o := range f {
		o.ObserveCall(p, method, elapsed, err)
	}
}

func (f fanout) ObserveRetry(p connection.Protocol, method string, a retry.Attempt, delay time.Duration) {
	for _, o := range f {
		o.ObserveRetry(p, method, a, delay)
	}
}

func (f fanout) ObserveAuth(p connection.Protocol, err error) {
	for _, o := range f {
		o.ObserveAuth(p, err)
	}
}
