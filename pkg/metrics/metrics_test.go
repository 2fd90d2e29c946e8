// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
	"vodoo/cli/pkg/retry"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveCall(connection.ProtocolDirect, "search", 20*time.Millisecond, nil)
	c.ObserveCall(connection.ProtocolDirect, "search", 5*time.Millisecond, &odooerr.TransportError{Code: 503})
	c.ObserveRetry(connection.ProtocolDirect, "search", retry.Attempt{}, time.Second)
	c.ObserveAuth(connection.ProtocolLegacy, nil)
	c.ObserveAuth(connection.ProtocolLegacy, &odooerr.AuthenticationError{Message: "bad"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("direct", "search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("direct", "search", "transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("direct", "search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.auth.WithLabelValues("legacy", "authentication")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration), "one series per protocol and method")

	c.ObserveCall(connection.ProtocolLegacy, "read", time.Millisecond, nil)
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestCollectorsArePerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "validation_error", Outcome(odooerr.NewUserError(odooerr.KindValidation, 200, "x", nil)))
	assert.Equal(t, "error", Outcome(errors.New("plain")))
	assert.Equal(t, "error", Outcome(context.Canceled))
}
