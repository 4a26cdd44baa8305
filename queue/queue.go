// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue implements a bounded MPMC ring buffer whose "can put" and
// "can get" conditions are select-compatible, grounded on spec §4.5 and used
// by pool.Pool for the worker handoff/backlog pattern described in spec
// §4.10.
package queue

import (
	"context"
	"sync"

	"code.hybscloud.com/arpc/flag"
	"code.hybscloud.com/arpc/rpcerr"
	"code.hybscloud.com/arpc/selectio"
)

// Queue is a bounded ring buffer of T with capacity >= 1.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	count    int
	hasRoom  *flag.Flag
	hasItems *flag.Flag
}

// New creates a Queue with the given capacity. capacity must be >= 1.
func New[T any](capacity int) (*Queue[T], error) {
	if capacity < 1 {
		return nil, rpcerr.New(rpcerr.InvalidState, "queue capacity must be >= 1, got %d", capacity)
	}
	hasRoom, err := flag.New()
	if err != nil {
		return nil, err
	}
	hasItems, err := flag.New()
	if err != nil {
		hasRoom.Close()
		return nil, err
	}
	if err := hasRoom.Set(); err != nil {
		hasRoom.Close()
		hasItems.Close()
		return nil, err
	}
	return &Queue[T]{
		buf:      make([]T, capacity),
		hasRoom:  hasRoom,
		hasItems: hasItems,
	}, nil
}

// Close releases the queue's internal flags.
func (q *Queue[T]) Close() error {
	err1 := q.hasRoom.Close()
	err2 := q.hasItems.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Cap returns the queue's fixed capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue[T]) updateFlagsLocked() {
	if q.count < len(q.buf) {
		q.hasRoom.Set()
	} else {
		q.hasRoom.Reset()
	}
	if q.count > 0 {
		q.hasItems.Set()
	} else {
		q.hasItems.Reset()
	}
}

// MaybePut is non-blocking: it fails with rpcerr.TryAgain if the queue is full.
func (q *Queue[T]) MaybePut(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		return rpcerr.New(rpcerr.TryAgain, "queue is full")
	}
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = v
	q.count++
	q.updateFlagsLocked()
	return nil
}

// MaybeGet is non-blocking: it fails with rpcerr.TryAgain if the queue is empty.
func (q *Queue[T]) MaybeGet() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.count == 0 {
		return zero, rpcerr.New(rpcerr.TryAgain, "queue is empty")
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.updateFlagsLocked()
	return v, nil
}

// CanPut returns the bare Readiness behind AsyncPut, for callers that need
// to select across a queue's room alongside other conditions (e.g. pool.Pool's
// slot/pending opportunistic handoff, spec §4.10).
func (q *Queue[T]) CanPut() selectio.Readiness { return q.hasRoom.WaitSet() }

// CanGet returns the bare Readiness behind AsyncGet, symmetric to CanPut.
func (q *Queue[T]) CanGet() selectio.Readiness { return q.hasItems.WaitSet() }

// AsyncPut returns a select-compatible awaitable that attempts the put once
// hasRoom fires.
func (q *Queue[T]) AsyncPut(v T) selectio.Awaitable[struct{}] {
	return selectio.Then(q.hasRoom.WaitSet(), func() (struct{}, error) {
		return struct{}{}, q.MaybePut(v)
	})
}

// AsyncGet returns a select-compatible awaitable that attempts the get once
// hasItems fires.
func (q *Queue[T]) AsyncGet() selectio.Awaitable[T] {
	return selectio.Then(q.hasItems.WaitSet(), q.MaybeGet)
}

// Put blocks until there is room, then enqueues v.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	for {
		if err := q.MaybePut(v); err == nil {
			return nil
		} else if rpcerr.KindOf(err) != rpcerr.TryAgain {
			return err
		}
		if _, err := selectio.Select(ctx, q.hasRoom.WaitSet()); err != nil {
			return err
		}
	}
}

// Get blocks until an item is available, then dequeues it.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	for {
		v, err := q.MaybeGet()
		if err == nil {
			return v, nil
		}
		if rpcerr.KindOf(err) != rpcerr.TryAgain {
			var zero T
			return zero, err
		}
		if _, err := selectio.Select(ctx, q.hasItems.WaitSet()); err != nil {
			var zero T
			return zero, err
		}
	}
}
