// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics exports client call statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
	"vodoo/cli/pkg/retry"
)

const namespace = "vodoo"

// Collector implements transport.Observer on top of Prometheus collectors.
type Collector struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	auth     *prometheus.CounterVec
}

// New registers the collectors with reg. Each registerer may hold one Collector.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		calls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Total number of logical RPC calls by outcome",
			},
			[]string{"protocol", "method", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "call_duration_seconds",
				Help:      "Duration of logical RPC calls including retries",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"protocol", "method"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "retries_total",
				Help:      "Total number of retried attempts",
			},
			[]string{"protocol", "method"},
		),
		auth: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "auth_exchanges_total",
				Help:      "Total number of authentication exchanges by outcome",
			},
			[]string{"protocol", "outcome"},
		),
	}
}

func (c *Collector) ObserveCall(p connection.Protocol, method string, elapsed time.Duration, err error) {
	c.calls.WithLabelValues(string(p), method, Outcome(err)).Inc()
	c.duration.WithLabelValues(string(p), method).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRetry(p connection.Protocol, method string, _ retry.Attempt, _ time.Duration) {
	c.retries.WithLabelValues(string(p), method).Inc()
}

func (c *Collector) ObserveAuth(p connection.Protocol, err error) {
	c.auth.WithLabelValues(string(p), Outcome(err)).Inc()
}

// Outcome is the label value for err: "ok", the failure kind, or "error".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := odooerr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
