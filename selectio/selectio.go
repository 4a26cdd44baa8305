// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package selectio provides the readiness primitive and the Select
// multi-waiter: a heterogeneous set of descriptor readiness conditions,
// timers, and always-ready markers composed into a single poll(2) call.
// Grounded on src/ash/io.cpp's awaitable<void> (channel.can_read/can_write)
// and include/ash/posix/connection.h's use of select() to race a data
// descriptor against a self-pipe.
package selectio

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/arpc/descriptor"
	"code.hybscloud.com/arpc/rpcerr"
)

// Direction is which readiness condition a descriptor-backed Readiness
// waits for.
type Direction uint8

const (
	Readable Direction = iota
	Writable
)

type kind uint8

const (
	kindIO kind = iota
	kindTimer
	kindAlways
)

// Readiness is an opaque, immutable, cheap-to-copy value describing a
// single condition a Select call can wait on: a descriptor becoming
// readable/writable, a timer elapsing, or an always-ready marker.
type Readiness struct {
	kind     kind
	fd       int
	dir      Direction
	deadline time.Time
}

// ReadableFD returns a Readiness that fires when fd has data available to read.
func ReadableFD(fd int) Readiness { return Readiness{kind: kindIO, fd: fd, dir: Readable} }

// WritableFD returns a Readiness that fires when fd can accept a write.
func WritableFD(fd int) Readiness { return Readiness{kind: kindIO, fd: fd, dir: Writable} }

// ReadableOf returns a Readiness that fires when d has data available to read.
func ReadableOf(d descriptor.Descriptor) Readiness { return ReadableFD(d.FD()) }

// WritableOf returns a Readiness that fires when d can accept a write.
func WritableOf(d descriptor.Descriptor) Readiness { return WritableFD(d.FD()) }

// Deadline returns a Readiness that fires once time.Now() reaches t.
func Deadline(t time.Time) Readiness { return Readiness{kind: kindTimer, deadline: t} }

// Timeout returns a Readiness that fires once d has elapsed from now.
func Timeout(d time.Duration) Readiness { return Deadline(time.Now().Add(d)) }

// Always returns a Readiness that is always considered fired.
func Always() Readiness { return Readiness{kind: kindAlways} }

// Select waits on a heterogeneous set of Readiness values and returns a
// boolean vector of the same length, entry i true iff primitives[i] fired.
// It never returns an all-false vector unless ctx is done, in which case it
// fails with rpcerr.Cancelled (spec §4.2 step 5).
func Select(ctx context.Context, primitives ...Readiness) ([]bool, error) {
	fired := make([]bool, len(primitives))

	// indices of primitives backed by a descriptor, in primitives order,
	// so pollfds[j] corresponds to primitives[ioIdx[j]].
	var pollfds []unix.PollFd
	var ioIdx []int
	for i, p := range primitives {
		if p.kind != kindIO {
			continue
		}
		events := int16(unix.POLLIN)
		if p.dir == Writable {
			events = unix.POLLOUT
		}
		pollfds = append(pollfds, unix.PollFd{Fd: int32(p.fd), Events: events})
		ioIdx = append(ioIdx, i)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, rpcerr.New(rpcerr.Cancelled, "select cancelled")
		default:
		}

		timeoutMs := minTimeoutMillis(primitives)
		// poll cannot observe ctx.Done(), so a cancellable ctx is re-checked
		// at least every cancelPollMillis.
		const cancelPollMillis = 10
		if ctx.Done() != nil && (timeoutMs < 0 || timeoutMs > cancelPollMillis) {
			timeoutMs = cancelPollMillis
		}

		n, err := unix.Poll(pollfds, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, rpcerr.WrapIO(err, int(errnoOf(err)), "poll")
		}

		any := false
		for i, p := range primitives {
			switch p.kind {
			case kindAlways:
				fired[i] = true
			case kindTimer:
				if !time.Now().Before(p.deadline) {
					fired[i] = true
				}
			case kindIO:
				// filled in below
			}
		}
		if n > 0 {
			for j, idx := range ioIdx {
				if pollfds[j].Revents&(unix.POLLIN|unix.POLLOUT|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
					fired[idx] = true
				}
			}
		}
		for _, f := range fired {
			if f {
				any = true
				break
			}
		}
		if any {
			return fired, nil
		}
		// Spurious wake-up (e.g. poll returned due to unrelated signal with
		// no deadline elapsed yet): re-enter per spec §4.2 step 5.
	}
}

func minTimeoutMillis(primitives []Readiness) int {
	haveDeadline := false
	var min time.Duration
	now := time.Now()
	for _, p := range primitives {
		if p.kind != kindTimer {
			continue
		}
		remaining := p.deadline.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		if !haveDeadline || remaining < min {
			min = remaining
			haveDeadline = true
		}
	}
	if !haveDeadline {
		return -1
	}
	ms := min.Milliseconds()
	if ms > int64(int(^uint(0)>>1)) {
		return int(^uint(0) >> 1)
	}
	return int(ms)
}

func errnoOf(err error) unix.Errno {
	if e, ok := err.(unix.Errno); ok {
		return e
	}
	return 0
}

// Awaitable is a Readiness paired with a non-blocking accessor invoked once
// the readiness fires: the "awaitable<U>.then(fn) -> awaitable<V>" sugar
// from spec §4.2, represented without a runtime as a plain data pair.
type Awaitable[T any] struct {
	Readiness Readiness
	Get       func() (T, error)
}

// Then attaches a continuation to a bare Readiness, the mechanism behind
// e.g. channel.async_read = channel.readable().then(perform_read).
func Then[T any](r Readiness, get func() (T, error)) Awaitable[T] {
	return Awaitable[T]{Readiness: r, Get: get}
}

// Await blocks (via Select) until aw's readiness fires, then invokes its
// continuation. Equivalent to spec's select(async_get()).unwrap().
func Await[T any](ctx context.Context, aw Awaitable[T]) (T, error) {
	var zero T
	if _, err := Select(ctx, aw.Readiness); err != nil {
		return zero, err
	}
	return aw.Get()
}
