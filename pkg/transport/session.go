// Copyright (c) 2025 Vodoo
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// sessionState is an immutable snapshot of an established session.
// gen increases with every completed login.
type sessionState struct {
	uid int64
	gen uint64
}

// session caches the server-issued user id. Concurrent callers that find it
// missing share one in-flight login.
type session struct {
	login func(ctx context.Context) (int64, error)

	mu    sync.RWMutex
	state sessionState
	valid bool

	group singleflight.Group
}

func newSession(login func(ctx context.Context) (int64, error)) *session {
	return &session{login: login}
}

func (s *session) current() (sessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.valid
}

// ensure returns the established session, logging in if there is none. The
// login runs detached from ctx so that one caller giving up does not fail
// the others waiting on it; the session is only written once the exchange
// completes.
func (s *session) ensure(ctx context.Context) (sessionState, error) {
	if st, ok := s.current(); ok {
		return st, nil
	}
	ch := s.group.DoChan("login", func() (any, error) {
		if st, ok := s.current(); ok {
			return st, nil
		}
		uid, err := s.login(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = sessionState{uid: uid, gen: s.state.gen + 1}
		s.valid = true
		return s.state, nil
	})
	select {
	case <-ctx.Done():
		return sessionState{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return sessionState{}, r.Err
		}
		return r.Val.(sessionState), nil
	}
}

// invalidate drops the session if it is still the one observed as st. A
// session replaced by a newer login in the meantime is kept.
func (s *session) invalidate(st sessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid && s.state.gen == st.gen {
		s.valid = false
	}
}

func (s *session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
}
