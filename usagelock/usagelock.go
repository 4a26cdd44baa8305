// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package usagelock implements the quiescent-state teardown pattern: a
// caller arms the lock with a value, Get returns a shared Handle or fails
// with a configured error kind if disarmed, and Drop clears the value and
// blocks until every outstanding Handle has been released. Used to safely
// tear down a registered object that in-flight RPCs may still be calling
// into. Grounded on src/lasr/usage_lock.h.
package usagelock

import (
	"sync"

	"code.hybscloud.com/arpc/rpcerr"
)

// Lock guards a value of type T behind an arm/get/drop discipline.
type Lock[T any] struct {
	opts Options

	mu       sync.Mutex
	idle     *sync.Cond
	armed    bool
	value    T
	refCount int
}

// New returns a disarmed Lock.
func New[T any](opts ...Option) *Lock[T] {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	l := &Lock[T]{opts: o}
	l.idle = sync.NewCond(&l.mu)
	return l
}

// Handle is a live reference obtained from Get. It must be released exactly
// once, typically via defer, to let a concurrent Drop proceed once every
// outstanding Handle is gone.
type Handle[T any] struct {
	lock     *Lock[T]
	value    T
	released bool
}

// Value returns the guarded value this Handle refers to.
func (h *Handle[T]) Value() T { return h.value }

// Release drops this Handle's reference. Idempotent.
func (h *Handle[T]) Release() {
	if h.released || h.lock == nil {
		return
	}
	h.released = true
	h.lock.release()
}

// Arm installs v as the guarded value, making Get succeed until the next
// Drop. Re-arming after a Drop is permitted (Drop always waits out the
// prior generation's handles first).
func (l *Lock[T]) Arm(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.armed = true
}

// Get returns a Handle sharing the guarded value, or fails with the
// configured disarmed-kind error (rpcerr.Unavailable by default) if the
// lock is currently disarmed.
func (l *Lock[T]) Get() (*Handle[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.armed {
		return nil, rpcerr.New(l.opts.DisarmedKind, "%s", l.opts.Message)
	}
	l.refCount++
	return &Handle[T]{lock: l, value: l.value}, nil
}

// GetOrNil returns a Handle sharing the guarded value, or nil if the lock is
// currently disarmed, without the disarmed-kind error. Mirrors
// usage_lock::get_or_null's shared_ptr-or-null semantics.
func (l *Lock[T]) GetOrNil() *Handle[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.armed {
		return nil
	}
	l.refCount++
	return &Handle[T]{lock: l, value: l.value}
}

func (l *Lock[T]) release() {
	l.mu.Lock()
	l.refCount--
	if l.refCount == 0 {
		l.idle.Broadcast()
	}
	l.mu.Unlock()
}

// Drop disarms the lock, clears the guarded value, and blocks until every
// Handle obtained before this call has been released.
func (l *Lock[T]) Drop() {
	l.mu.Lock()
	l.armed = false
	var zero T
	l.value = zero
	for l.refCount > 0 {
		l.idle.Wait()
	}
	l.mu.Unlock()
}
