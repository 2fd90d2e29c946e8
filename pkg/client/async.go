// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package client

import (
	"context"

	"vodoo/cli/pkg/connection"
)

// Future is the pending result of an operation started by AsyncClient.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func spawn[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the result is available or ctx ends. Ending ctx only
// stops the wait; the operation itself follows the context it was started with.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncClient starts operations in their own goroutines and returns futures.
// It shares the session, retry policy and limiter of the Client it wraps.
type AsyncClient struct {
	c *Client
}

// Async returns the future-based view of c.
func (c *Client) Async() *AsyncClient { return &AsyncClient{c: c} }

// OpenAsync connects in the background.
func OpenAsync(ctx context.Context, d connection.Descriptor, opts ...Option) *Future[*AsyncClient] {
	return spawn(ctx, func(ctx context.Context) (*AsyncClient, error) {
		c, err := New(ctx, d, opts...)
		if err != nil {
			return nil, err
		}
		return c.Async(), nil
	})
}

// Client returns the blocking client behind a.
func (a *AsyncClient) Client() *Client { return a.c }

func (a *AsyncClient) Protocol() connection.Protocol { return a.c.Protocol() }
func (a *AsyncClient) ActorID() int64                { return a.c.ActorID() }
func (a *AsyncClient) Close() error                  { return a.c.Close() }

func (a *AsyncClient) Reauthenticate(ctx context.Context) *Future[struct{}] {
	return spawn(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.c.Reauthenticate(ctx)
	})
}

func (a *AsyncClient) Call(ctx context.Context, model, method string, args []any, kwargs map[string]any) *Future[any] {
	return spawn(ctx, func(ctx context.Context) (any, error) {
		return a.c.Call(ctx, model, method, args, kwargs)
	})
}

func (a *AsyncClient) Search(ctx context.Context, model string, domain Domain, opts SearchOptions) *Future[[]int64] {
	return spawn(ctx, func(ctx context.Context) ([]int64, error) {
		return a.c.Search(ctx, model, domain, opts)
	})
}

func (a *AsyncClient) SearchRead(ctx context.Context, model string, domain Domain, fields []string, opts SearchOptions) *Future[[]Record] {
	return spawn(ctx, func(ctx context.Context) ([]Record, error) {
		return a.c.SearchRead(ctx, model, domain, fields, opts)
	})
}

func (a *AsyncClient) Read(ctx context.Context, model string, ids []int64, fields []string) *Future[[]Record] {
	return spawn(ctx, func(ctx context.Context) ([]Record, error) {
		return a.c.Read(ctx, model, ids, fields)
	})
}

func (a *AsyncClient) Create(ctx context.Context, model string, values ...Values) *Future[[]int64] {
	return spawn(ctx, func(ctx context.Context) ([]int64, error) {
		return a.c.Create(ctx, model, values...)
	})
}

func (a *AsyncClient) CreateOne(ctx context.Context, model string, values Values) *Future[int64] {
	return spawn(ctx, func(ctx context.Context) (int64, error) {
		return a.c.CreateOne(ctx, model, values)
	})
}

func (a *AsyncClient) Write(ctx context.Context, model string, ids []int64, values Values) *Future[bool] {
	return spawn(ctx, func(ctx context.Context) (bool, error) {
		return a.c.Write(ctx, model, ids, values)
	})
}

func (a *AsyncClient) Unlink(ctx context.Context, model string, ids []int64) *Future[bool] {
	return spawn(ctx, func(ctx context.Context) (bool, error) {
		return a.c.Unlink(ctx, model, ids)
	})
}

func (a *AsyncClient) SearchCount(ctx context.Context, model string, domain Domain) *Future[int64] {
	return spawn(ctx, func(ctx context.Context) (int64, error) {
		return a.c.SearchCount(ctx, model, domain)
	})
}

func (a *AsyncClient) NameSearch(ctx context.Context, model, name string, domain Domain, limit int) *Future[[]NamePair] {
	return spawn(ctx, func(ctx context.Context) ([]NamePair, error) {
		return a.c.NameSearch(ctx, model, name, domain, limit)
	})
}
