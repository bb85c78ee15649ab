// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/venus/backend"
)

// QueueStats holds command buffer pool counters.
type QueueStats struct {
	// Created is the number of pool slots allocated.
	Created uint64

	// Reused is the number of checkouts served from a recycled slot.
	Reused uint64

	// Committed is the number of successful commits.
	Committed uint64

	// Discarded is the number of released buffers that held recorded work.
	Discarded uint64

	// Exhausted is the number of checkouts refused at the in-flight limit.
	Exhausted uint64
}

// CommandQueue owns a native execution queue, its fence and a pool of
// command buffers. Buffers committed to one queue execute in commit order.
//
// Each commit signals the queue fence to the next value, so completion of
// any submission can be queried without draining the queue.
//
// CommandQueue is safe for concurrent use. Concurrent commits are
// serialized; the submission order is the order in which Commit acquired
// the queue.
type CommandQueue struct {
	dev    *Device
	class  ListClass
	native backend.Queue
	fence  backend.Fence
	opts   queueOptions

	mu            sync.Mutex
	closed        bool
	slots         []*bufferSlot
	free          []*bufferSlot
	pending       []*bufferSlot
	inUse         int
	lastSubmitted uint64
	stats         QueueStats
}

func newCommandQueue(dev *Device, class ListClass, native backend.Queue, fence backend.Fence, opts queueOptions) *CommandQueue {
	return &CommandQueue{
		dev:    dev,
		class:  class,
		native: native,
		fence:  fence,
		opts:   opts,
	}
}

// Class returns the execution class of the queue.
func (q *CommandQueue) Class() ListClass { return q.class }

// Label returns the label set with WithLabel.
func (q *CommandQueue) Label() string { return q.opts.label }

// Device returns the device the queue was created from.
func (q *CommandQueue) Device() *Device { return q.dev }

// Native returns the native queue.
func (q *CommandQueue) Native() backend.Queue { return q.native }

// MaxInFlight returns the in-flight limit.
func (q *CommandQueue) MaxInFlight() int { return q.opts.maxInFlight }

// CreateCommandBuffer checks out an Idle command buffer. Slots whose work
// completed are recycled first. When MaxInFlight buffers are checked out
// or executing, it fails with ErrResourceExhausted; retry after earlier
// work completed or a buffer was released.
func (q *CommandQueue) CreateCommandBuffer() (*CommandBuffer, error) {
	const op = "CreateCommandBuffer"
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, fmt.Errorf("%s: %w", op, ErrDeviceClosed)
	}
	q.reclaimLocked()

	if q.inUse >= q.opts.maxInFlight {
		q.stats.Exhausted++
		return nil, fmt.Errorf("%s: %w: %d buffers in flight", op, ErrResourceExhausted, q.inUse)
	}

	var s *bufferSlot
	if n := len(q.free); n > 0 {
		s = q.free[n-1]
		q.free = q.free[:n-1]
		q.stats.Reused++
	} else {
		list, err := newCommandList(q.dev.native, q.class)
		if err != nil {
			return nil, err
		}
		s = &bufferSlot{list: list}
		q.slots = append(q.slots, s)
		q.stats.Created++
	}
	q.inUse++
	s.handle = &CommandBuffer{queue: q, slot: s, gen: s.gen.Load()}
	return s.handle, nil
}

// reclaimLocked recycles committed slots whose work completed. Pending
// slots are in fence order, so the scan stops at the first incomplete one.
func (q *CommandQueue) reclaimLocked() {
	if len(q.pending) == 0 {
		return
	}
	completed := q.fence.CompletedValue()
	n := 0
	for _, s := range q.pending {
		if s.fenceValue > completed {
			break
		}
		q.recycleLocked(s)
		n++
	}
	if n > 0 {
		q.pending = append(q.pending[:0], q.pending[n:]...)
	}
}

// recycleLocked returns s and its attached lists to the free list and
// invalidates every handle and encoder referring to them.
func (q *CommandQueue) recycleLocked(s *bufferSlot) {
	for _, sec := range s.secondaries {
		q.recycleLocked(sec)
	}
	if s.state == BufferRecording {
		if err := s.list.Native().Close(); err != nil {
			Logger().Warn("venus: close discarded list", "queue", q.opts.label, "err", err)
		}
	}
	s.gen.Add(1)
	s.state = BufferIdle
	s.handle = nil
	s.encoder = nil
	s.secondaries = nil
	s.attached = false
	q.free = append(q.free, s)
	q.inUse--
}

// InFlight returns the number of buffers checked out or executing.
func (q *CommandQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reclaimLocked()
	return q.inUse
}

// Stats returns a snapshot of the pool counters.
func (q *CommandQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// CompletedValue returns the last fence value the device signaled.
func (q *CommandQueue) CompletedValue() uint64 { return q.fence.CompletedValue() }

// LastSubmittedValue returns the fence value of the most recent commit.
func (q *CommandQueue) LastSubmittedValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSubmitted
}

// IsComplete reports whether work up to fence value v finished. It never
// blocks.
func (q *CommandQueue) IsComplete(v uint64) bool {
	return q.fence.CompletedValue() >= v
}

// WaitFence blocks until work up to fence value v finished or ctx is done.
// Waiting for a value that was never submitted fails with ErrInvalidState.
func (q *CommandQueue) WaitFence(ctx context.Context, v uint64) error {
	const op = "WaitFence"
	q.mu.Lock()
	last := q.lastSubmitted
	q.mu.Unlock()

	if v > last {
		return fmt.Errorf("%s: %w: value %d not submitted, last is %d", op, ErrInvalidState, v, last)
	}
	return q.waitFence(ctx, op, v)
}

func (q *CommandQueue) waitFence(ctx context.Context, op string, v uint64) error {
	if err := q.fence.Wait(ctx, v); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return deviceError(op, err)
	}
	return nil
}

// WaitComplete blocks until all work committed before the call finished.
// It is bounded by WithWaitTimeout when set.
//
// WaitComplete stalls the calling goroutine; use it from a frame or
// submission goroutine. FramePacer and WaitFence avoid the full drain.
func (q *CommandQueue) WaitComplete() error {
	ctx := context.Background()
	if q.opts.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.waitTimeout)
		defer cancel()
	}
	return q.WaitCompleteContext(ctx)
}

// WaitCompleteContext is WaitComplete bounded by ctx.
func (q *CommandQueue) WaitCompleteContext(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("%s: %w", "WaitComplete", ErrDeviceClosed)
	}
	last := q.lastSubmitted
	q.mu.Unlock()

	if err := q.waitFence(ctx, "WaitComplete", last); err != nil {
		return err
	}

	q.mu.Lock()
	q.reclaimLocked()
	q.mu.Unlock()
	return nil
}

// CreateSwapChain asks the backend for a swap chain presenting to window
// with the default description.
func (q *CommandQueue) CreateSwapChain(window Window) (SwapChain, error) {
	return q.CreateSwapChainWithDesc(window, backend.DefaultSwapChainDesc())
}

// CreateSwapChainWithDesc asks the backend for a swap chain presenting to
// window. It fails with ErrNotSupported when the backend cannot present.
func (q *CommandQueue) CreateSwapChainWithDesc(window Window, desc backend.SwapChainDesc) (SwapChain, error) {
	const op = "CreateSwapChain"
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%s: %w", op, ErrDeviceClosed)
	}
	if window == nil {
		return nil, fmt.Errorf("%s: %w: nil window", op, ErrInvalidArgument)
	}
	factory, ok := q.dev.native.(backend.SwapChainFactory)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s backend", op, ErrNotSupported, q.dev.native.Name())
	}
	sc, err := factory.CreateSwapChain(q.native, window, desc)
	if err != nil {
		return nil, deviceError(op, err)
	}
	return sc, nil
}

// close waits for submitted work and destroys the native objects.
func (q *CommandQueue) close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	last := q.lastSubmitted
	q.mu.Unlock()

	err := q.waitFence(ctx, "close", last)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.native.Destroy()

	// Lists the device may still execute keep their allocators, and the
	// fence they signal stays alive with them.
	completed := q.fence.CompletedValue()
	leaked := 0
	for _, s := range q.slots {
		s.gen.Add(1)
		if err != nil && s.list.LastSubmitted() > completed {
			leaked++
			continue
		}
		s.list.Destroy()
	}
	q.slots, q.free, q.pending = nil, nil, nil
	q.inUse = 0
	if leaked > 0 {
		Logger().Warn("venus: leaking command lists still in flight",
			"queue", q.opts.label, "lists", leaked, "completed", completed, "submitted", last)
		return err
	}
	q.fence.Destroy()
	return err
}
