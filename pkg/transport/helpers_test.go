// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"context"
	"sync"
	"time"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odootest"
	"vodoo/cli/pkg/retry"
)

// recordingClock returns immediately and records requested delays.
type recordingClock struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *recordingClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func descriptorFor(s *odootest.Server) connection.Descriptor {
	cfg := s.Config()
	d := connection.New(s.URL, cfg.Database, cfg.Login, connection.Secret(cfg.Password))
	d.Retry = retry.New(2, 10*time.Millisecond, 100*time.Millisecond).WithRand(func() float64 { return 0 })
	return d
}

func testOptions(clock retry.Clock) Options {
	if clock == nil {
		clock = &recordingClock{}
	}
	return Options{Clock: clock}
}

// seedPartners stores a small partner tree: Acme Corp with two contacts and
// one unrelated company.
func seedPartners(s *odootest.Server) (acme, alice, bob, globex int64) {
	s.Relate("res.partner", "parent_id", "res.partner")
	acme = s.Seed("res.partner", map[string]any{"name": "Acme Corp", "is_company": true, "email": "info@acme.test"})
	alice = s.Seed("res.partner", map[string]any{"name": "Alice", "is_company": false, "parent_id": acme, "email": "alice@acme.test"})
	bob = s.Seed("res.partner", map[string]any{"name": "Bob", "is_company": false, "parent_id": acme, "email": "bob@acme.test"})
	globex = s.Seed("res.partner", map[string]any{"name": "Globex", "is_company": true, "email": "hello@globex.test"})
	return acme, alice, bob, globex
}
