// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flag implements a user-space settable/resettable signal backed by
// a self-pipe, usable inside selectio.Select. Grounded on src/ash/flag.cpp.
package flag

import (
	"context"
	"sync"

	"code.hybscloud.com/arpc/descriptor"
	"code.hybscloud.com/arpc/selectio"
)

// Flag is a set/clear signal whose read end can be composed into Select.
// The mutex guards against concurrent Set/Reset racing with the pipe state,
// keeping the logical flag state and the pipe's readability in agreement.
type Flag struct {
	mu   sync.Mutex
	r, w descriptor.Descriptor
	set  bool
}

// New creates a clear Flag backed by a fresh non-blocking pipe pair.
func New() (*Flag, error) {
	r, w, err := descriptor.PipePair()
	if err != nil {
		return nil, err
	}
	if err := r.SetBlocking(false); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	if err := w.SetBlocking(false); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	return &Flag{r: r, w: w}, nil
}

// Close releases the underlying pipe pair.
func (f *Flag) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err1 := f.r.Close()
	err2 := f.w.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Set marks the flag, writing one byte into the self-pipe if not already set.
func (f *Flag) Set() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return nil
	}
	if _, err := f.w.Write([]byte{'*'}); err != nil {
		return err
	}
	f.set = true
	return nil
}

// Reset drains and clears the flag.
func (f *Flag) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		return nil
	}
	var b [1]byte
	if _, err := f.r.Read(b[:]); err != nil {
		return err
	}
	f.set = false
	return nil
}

// IsSet reports the current logical state.
func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// WaitSet returns a Readiness observing the pipe's read end, firing once Set
// has been called (and not yet Reset).
func (f *Flag) WaitSet() selectio.Readiness {
	return selectio.ReadableOf(f.r)
}

// Wait blocks (via selectio.Select) until the flag is set.
func (f *Flag) Wait(ctx context.Context) error {
	_, err := selectio.Select(ctx, f.WaitSet())
	return err
}
