// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conn implements the interruptible connection: a data descriptor
// paired with a self-pipe used solely to interrupt blocked I/O during
// shutdown. Grounded on include/ash/posix/connection.h's fd_connection and
// src/ash/posix/connection.cpp.
package conn

import (
	"context"
	"sync"

	"code.hybscloud.com/arpc/descriptor"
	"code.hybscloud.com/arpc/rpcerr"
	"code.hybscloud.com/arpc/selectio"
)

// Connection wraps a data descriptor and an internal self-pipe pair. Reads
// and writes hold a reader-count lock for their duration; Disconnect sets
// closing, wakes any blocked I/O via the self-pipe, and waits for the lock
// count to drain before closing the descriptors.
//
// State machine: connected -> closing -> disconnected. Only forward
// transitions; no resurrection (spec §4.9).
type Connection struct {
	opts Options

	mu    sync.Mutex
	idle  *sync.Cond
	fd    descriptor.Descriptor
	pipeR descriptor.Descriptor
	pipeW descriptor.Descriptor

	closing      bool
	disconnected bool
	lockCount    int

	// Sync is an optional hook a caller may assign to layer kernel-flush
	// semantics on top of Flush. The source's flush is a no-op (spec §9);
	// Sync is never invoked internally, so it is unused by default.
	Sync func() error
}

// New wraps fd as an interruptible Connection. fd is set non-blocking; the
// Connection owns fd thereafter.
func New(fd descriptor.Descriptor, opts ...Option) (*Connection, error) {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if err := fd.SetBlocking(false); err != nil {
		return nil, err
	}
	pr, pw, err := descriptor.PipePair()
	if err != nil {
		return nil, err
	}
	if err := pr.SetBlocking(false); err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}
	c := &Connection{opts: o, fd: fd, pipeR: pr, pipeW: pw}
	c.idle = sync.NewCond(&c.mu)
	return c, nil
}

// Open opens path with mode and wraps the result as a Connection, mirroring
// ash::char_dev_connection's convenience constructor for e.g. a UART device
// node.
func Open(path string, mode descriptor.Mode, opts ...Option) (*Connection, error) {
	fd, err := descriptor.Open(path, mode)
	if err != nil {
		return nil, err
	}
	c, err := New(fd, opts...)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return c, nil
}

// lock registers one in-flight read or write operation. It always succeeds,
// even while closing is true: fd_lock's constructor in the source does not
// check closing either, only the subsequent checkConnected call does. This
// keeps Disconnect's lockCount==0 wait from ever being starved by an
// operation that is about to fail its own checkConnected check.
func (c *Connection) lock() {
	c.mu.Lock()
	c.lockCount++
	c.mu.Unlock()
}

func (c *Connection) unlock() {
	c.mu.Lock()
	c.lockCount--
	if c.lockCount == 0 {
		c.idle.Broadcast()
	}
	c.mu.Unlock()
}

func (c *Connection) checkConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return rpcerr.New(rpcerr.IOError, "connection is closed")
	}
	return nil
}

// Connected reports whether the connection has not yet begun closing.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closing
}

// Read fills buf, looping over non-blocking reads on the data descriptor.
// On a try-again result it selects the descriptor's readability against the
// self-pipe's read end; if the self-pipe fires first, Read fails with
// rpcerr.ShuttingDown.
func (c *Connection) Read(ctx context.Context, buf []byte) (int, error) {
	return c.rw(ctx, buf, false)
}

// Write drains buf, looping over non-blocking writes on the data descriptor.
// Symmetric to Read.
func (c *Connection) Write(ctx context.Context, buf []byte) (int, error) {
	return c.rw(ctx, buf, true)
}

func (c *Connection) rw(ctx context.Context, buf []byte, write bool) (int, error) {
	if err := c.checkConnected(); err != nil {
		return 0, err
	}
	c.lock()
	defer c.unlock()

	// Re-check under the lock discipline: Disconnect may have started
	// closing between the check above and lock() registering us.
	if err := c.checkConnected(); err != nil {
		return 0, err
	}

	for {
		var n int
		var err error
		if write {
			n, err = c.fd.Write(buf)
		} else {
			n, err = c.fd.Read(buf)
		}
		if err == nil {
			return n, nil
		}
		if rpcerr.KindOf(err) != rpcerr.TryAgain {
			return n, err
		}
		if c.opts.RetryDelay < 0 {
			return 0, err
		}

		dataReady := selectio.ReadableOf(c.fd)
		if write {
			dataReady = selectio.WritableOf(c.fd)
		}
		fired, serr := selectio.Select(ctx, dataReady, selectio.ReadableOf(c.pipeR))
		if serr != nil {
			return 0, serr
		}
		if fired[1] {
			return 0, rpcerr.New(rpcerr.ShuttingDown, "connection is disconnecting")
		}
		// fired[0]: data descriptor is ready; loop and retry the I/O.
	}
}

// Flush is a no-op, matching the source's convention: callers requiring
// kernel-flush semantics layer their own via the Sync field.
func (c *Connection) Flush() error { return nil }

// Disconnect atomically sets closing, closes the self-pipe's write end
// (making its read end readable and unblocking any in-flight Read/Write),
// waits for the in-flight operation count to reach zero, then closes the
// self-pipe's read end and the data descriptor. Reentrant-safe: a second
// call is a no-op.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.closing {
		for !c.disconnected {
			c.idle.Wait()
		}
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	if err := c.pipeW.Close(); err != nil {
		return err
	}

	c.mu.Lock()
	for c.lockCount > 0 {
		c.idle.Wait()
	}
	fdErr := c.fd.Close()
	prErr := c.pipeR.Close()
	c.disconnected = true
	c.idle.Broadcast()
	c.mu.Unlock()

	if fdErr != nil {
		c.opts.Logger.Debug().Err(fdErr).Msg("connection: close failed")
		return fdErr
	}
	c.opts.Logger.Info().Msg("connection: disconnected")
	return prErr
}
