// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
	"vodoo/cli/pkg/retry"
)

// codeNoResponse is the TransportError code used when no HTTP response was received.
const codeNoResponse = -1

// exchanger is the I/O core shared by both adapters: one HTTP POST per
// attempt, wrapped in the retry loop.
type exchanger struct {
	protocol  connection.Protocol
	http      Doer
	log       *zap.Logger
	obs       Observer
	limiter   *rate.Limiter
	clock     retry.Clock
	policy    retry.Policy
	userAgent string
}

func newExchanger(p connection.Protocol, d connection.Descriptor, o Options) *exchanger {
	return &exchanger{
		protocol:  p,
		http:      o.HTTPClient,
		log:       o.Logger.With(zap.String("protocol", string(p))),
		obs:       o.Observer,
		limiter:   o.Limiter,
		clock:     o.Clock,
		policy:    d.Retry,
		userAgent: o.UserAgent,
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

// post performs a single HTTP exchange. Failures before a response is read
// are returned as *odooerr.TransportError wrapping the cause.
func (x *exchanger) post(ctx context.Context, url string, body []byte, header http.Header) (*response, error) {
	if x.limiter != nil {
		if err := x.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return nil, &odooerr.TransportError{Code: codeNoResponse, Message: "rate limit wait", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &odooerr.ConfigurationError{Message: "build request", Err: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", x.userAgent)

	resp, err := x.http.Do(req)
	if err != nil {
		return nil, &odooerr.TransportError{Code: codeNoResponse, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &odooerr.TransportError{Code: resp.StatusCode, Message: "read response", Err: err}
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: b}, nil
}

// do runs fn under the retry policy for method and reports the outcome.
func (x *exchanger) do(ctx context.Context, method string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	hook := func(a retry.Attempt, d retry.Decision) {
		if !d.Retry {
			return
		}
		x.log.Debug("retrying call",
			zap.String("method", method),
			zap.Int("attempt", a.Index+1),
			zap.Duration("delay", d.Delay),
			zap.Error(a.Err))
		x.obs.ObserveRetry(x.protocol, method, a, d.Delay)
	}

	var out any
	err := retry.Do(ctx, x.policy.For(method), x.clock, hook, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	})

	elapsed := time.Since(start)
	x.obs.ObserveCall(x.protocol, method, elapsed, err)
	if err != nil {
		x.log.Debug("call failed", zap.String("method", method), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	x.log.Debug("call completed", zap.String("method", method), zap.Duration("elapsed", elapsed))
	return out, nil
}

func (x *exchanger) closeIdle() {
	if c, ok := x.http.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

// statusError maps a non-2xx response without a usable payload.
func statusError(r *response) *odooerr.TransportError {
	return &odooerr.TransportError{Code: r.status, Message: statusMessage(r)}
}

func statusMessage(r *response) string {
	text := strings.TrimSpace(string(r.body))
	if text == "" || len(text) > 200 || strings.HasPrefix(text, "<") {
		if st := http.StatusText(r.status); st != "" {
			return st
		}
		return "HTTP error"
	}
	return text
}
