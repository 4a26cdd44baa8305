// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pool implements a cooperative worker pool. Run enqueues a work
// item; internally, each idle worker posts a promise into a slots queue and
// Run opportunistically selects between handing a work item directly to a
// waiting slot or, failing that, room in the pending backlog queue.
// Grounded on src/lasr/executor.h and executor.cpp's thread_pool.
package pool

import (
	"context"
	"runtime"
	"sync"

	"code.hybscloud.com/arpc/future"
	"code.hybscloud.com/arpc/queue"
	"code.hybscloud.com/arpc/selectio"
)

// Task is a unit of work submitted to a Pool.
type Task func()

// Pool is a fixed-size cooperative worker pool.
type Pool struct {
	opts    Options
	mu      sync.Mutex
	pending *queue.Queue[Task]
	slots   *queue.Queue[*future.Promise[Task]]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a Pool of numWorkers workers. queueSize bounds the backlog of
// work items waiting for a free worker; queueSize<=0 selects a default of
// numWorkers, matching spec §4.5's "-1 means default (commonly the worker
// count for pool scenarios)".
func New(numWorkers int, queueSize int, opts ...Option) (*Pool, error) {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if numWorkers < 1 {
		numWorkers = max(runtime.GOMAXPROCS(0), 1)
	}
	if queueSize <= 0 {
		queueSize = numWorkers
	}
	pending, err := queue.New[Task](queueSize)
	if err != nil {
		return nil, err
	}
	slots, err := queue.New[*future.Promise[Task]](numWorkers)
	if err != nil {
		pending.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{opts: o, pending: pending, slots: slots, cancel: cancel}
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker(ctx)
	}
	return p, nil
}

// Run submits f for execution by the pool, blocking until either an idle
// worker accepts it directly or it is admitted into the backlog. ctx
// cancellation aborts the submission attempt.
func (p *Pool) Run(ctx context.Context, f Task) error {
	for {
		fired, err := selectio.Select(ctx, p.slots.CanGet(), p.pending.CanPut())
		if err != nil {
			return err
		}

		p.mu.Lock()
		if fired[0] {
			if slot, gerr := p.slots.MaybeGet(); gerr == nil {
				p.mu.Unlock()
				return slot.SetValue(f)
			}
		}
		if fired[1] {
			if perr := p.pending.MaybePut(f); perr == nil {
				p.mu.Unlock()
				return nil
			}
		}
		p.mu.Unlock()
		// Another goroutine raced us for the slot or the backlog slot
		// observed by this select round; retry.
	}
}

// requestWork mirrors thread_pool::request_work: a worker either takes a
// task already waiting in the pending backlog and fulfills its own promise
// with it, or posts the promise into the slots queue to wait for a future
// submission, whichever is ready first.
func (p *Pool) requestWork(ctx context.Context, slot *future.Promise[Task]) error {
	for {
		fired, err := selectio.Select(ctx, p.pending.CanGet(), p.slots.CanPut())
		if err != nil {
			return err
		}

		p.mu.Lock()
		if fired[0] {
			if fn, gerr := p.pending.MaybeGet(); gerr == nil {
				p.mu.Unlock()
				return slot.SetValue(fn)
			}
		}
		if fired[1] {
			if perr := p.slots.MaybePut(slot); perr == nil {
				p.mu.Unlock()
				return nil
			}
		}
		p.mu.Unlock()
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		promise, fut, err := future.New[Task]()
		if err != nil {
			return
		}
		if err := p.requestWork(ctx, promise); err != nil {
			promise.Release()
			fut.Release()
			return
		}
		fn, err := fut.Get(ctx)
		fut.Release()
		if err != nil {
			return
		}
		p.runTask(fn)
	}
}

// runTask invokes fn, swallowing any panic: spec §4 "the thread pool
// executes every submitted work item exactly once ... absent work-item
// exceptions, which are swallowed by design".
func (p *Pool) runTask(fn Task) {
	defer func() {
		if r := recover(); r != nil {
			p.opts.Logger.Warn().Interface("panic", r).Msg("pool: task panicked")
		}
	}()
	fn()
}

// Close cancels every worker's scheduling context and joins them, then
// releases the internal queues. Mirrors thread_pool's destructor.
func (p *Pool) Close() error {
	p.cancel()
	p.wg.Wait()
	p.opts.Logger.Info().Msg("pool: closed")
	err1 := p.pending.Close()
	err2 := p.slots.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
