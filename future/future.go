// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package future implements a one-shot value handoff between a producer
// (Promise) and a consumer (Future), select-compatible via an internal
// flag.Flag. Grounded on src/ash/future.h.
package future

import (
	"context"
	"sync"

	"code.hybscloud.com/arpc/flag"
	"code.hybscloud.com/arpc/rpcerr"
	"code.hybscloud.com/arpc/selectio"
)

// state is shared between exactly one Promise and one Future. At most one
// of value/err is ever populated; populating either sets the flag.
type state[T any] struct {
	mu        sync.Mutex
	set       *flag.Flag
	hasValue  bool
	value     T
	err       error
	hasReader bool
	hasWriter bool
}

func newState[T any]() (*state[T], error) {
	f, err := flag.New()
	if err != nil {
		return nil, err
	}
	return &state[T]{set: f, hasReader: true, hasWriter: true}, nil
}

func (s *state[T]) setValue(v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.hasValue = true
	return s.set.Set()
}

func (s *state[T]) setError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s.set.Set()
}

func (s *state[T]) maybeGet() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if s.hasValue {
		return s.value, nil
	}
	if s.err != nil {
		return zero, s.err
	}
	return zero, rpcerr.New(rpcerr.TryAgain, "future not ready yet")
}

func (s *state[T]) releaseReader() {
	s.mu.Lock()
	s.hasReader = false
	writerGone := !s.hasWriter
	s.mu.Unlock()
	if writerGone {
		s.set.Close()
	}
}

func (s *state[T]) releaseWriter() {
	s.mu.Lock()
	s.hasWriter = false
	readerGone := !s.hasReader
	s.mu.Unlock()
	if readerGone {
		s.set.Close()
	}
}

// Future is the read side of a one-shot value handoff.
type Future[T any] struct {
	s        *state[T]
	released bool
}

// Promise is the write side of a one-shot value handoff.
type Promise[T any] struct {
	s          *state[T]
	setAlready bool
	released   bool
}

// New creates a connected Promise/Future pair.
func New[T any]() (*Promise[T], *Future[T], error) {
	s, err := newState[T]()
	if err != nil {
		return nil, nil, err
	}
	return &Promise[T]{s: s}, &Future[T]{s: s}, nil
}

// SetValue fulfills the promise. A second call (after SetValue or
// SetException) fails with InvalidState (spec §4.4: "idempotent-by-contract
// violations").
func (p *Promise[T]) SetValue(v T) error {
	if p.setAlready {
		return rpcerr.New(rpcerr.InvalidState, "promise already set")
	}
	p.setAlready = true
	return p.s.setValue(v)
}

// SetException fails the promise with err.
func (p *Promise[T]) SetException(err error) error {
	if p.setAlready {
		return rpcerr.New(rpcerr.InvalidState, "promise already set")
	}
	p.setAlready = true
	return p.s.setError(err)
}

// Release must be called exactly once when the promise is discarded
// (typically via defer). If neither SetValue nor SetException was called,
// it stores a "broken promise" error so the future surfaces it instead of
// hanging forever.
func (p *Promise[T]) Release() {
	if p.released {
		return
	}
	p.released = true
	if !p.setAlready {
		p.s.setError(rpcerr.New(rpcerr.InvalidState, "broken promise"))
	}
	p.s.releaseWriter()
}

// MaybeGet is non-blocking: it returns the value, the stored error, or fails
// with TryAgain if unset.
func (f *Future[T]) MaybeGet() (T, error) { return f.s.maybeGet() }

// WaitSet returns the Readiness that fires once the future has a value or
// error.
func (f *Future[T]) WaitSet() selectio.Readiness { return f.s.set.WaitSet() }

// AsyncGet is WaitSet().then(MaybeGet), per spec §4.4.
func (f *Future[T]) AsyncGet() selectio.Awaitable[T] {
	return selectio.Then(f.WaitSet(), f.MaybeGet)
}

// Get blocks until the future is resolved, then returns its value or error.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	return selectio.Await(ctx, f.AsyncGet())
}

// Release must be called exactly once when the future is discarded.
func (f *Future[T]) Release() {
	if f.released {
		return
	}
	f.released = true
	f.s.releaseReader()
}
