// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"fmt"
	"sync"
)

// FramePacer keeps at most a fixed number of frames in flight on a queue.
// BeginFrame waits only for the oldest outstanding frame instead of
// draining the whole queue.
//
//	p := venus.NewFramePacer(q, 2)
//	for running {
//	    if err := p.BeginFrame(ctx); err != nil { ... }
//	    cb, _ := q.CreateCommandBuffer()
//	    ... record, EndEncoding, Commit ...
//	    p.EndFrame(cb)
//	}
//	p.Drain(ctx)
type FramePacer struct {
	queue *CommandQueue
	max   int

	mu     sync.Mutex
	frames []uint64
}

// NewFramePacer creates a pacer allowing framesInFlight outstanding
// frames. Values below 1 are treated as 1.
func NewFramePacer(q *CommandQueue, framesInFlight int) *FramePacer {
	return &FramePacer{queue: q, max: max(framesInFlight, 1)}
}

// BeginFrame blocks until fewer than the configured number of frames are
// in flight.
func (p *FramePacer) BeginFrame(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dropCompletedLocked()
	for len(p.frames) >= p.max {
		oldest := p.frames[0]
		if err := p.queue.WaitFence(ctx, oldest); err != nil {
			return fmt.Errorf("venus: begin frame: %w", err)
		}
		p.frames = p.frames[1:]
	}
	return nil
}

// EndFrame records the committed buffer of the current frame.
func (p *FramePacer) EndFrame(cb *CommandBuffer) error {
	v := cb.FenceValue()
	if v == 0 {
		return fmt.Errorf("venus: end frame: %w: buffer was not committed", ErrInvalidState)
	}
	if cb.Queue() != p.queue {
		return fmt.Errorf("venus: end frame: %w: buffer belongs to another queue", ErrInvalidArgument)
	}
	p.mu.Lock()
	p.frames = append(p.frames, v)
	p.mu.Unlock()
	return nil
}

// InFlight returns the number of frames not yet known to be complete.
func (p *FramePacer) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropCompletedLocked()
	return len(p.frames)
}

// Drain waits for every outstanding frame.
func (p *FramePacer) Drain(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.frames); n > 0 {
		if err := p.queue.WaitFence(ctx, p.frames[n-1]); err != nil {
			return fmt.Errorf("venus: drain: %w", err)
		}
	}
	p.frames = p.frames[:0]
	return nil
}

func (p *FramePacer) dropCompletedLocked() {
	n := 0
	for n < len(p.frames) && p.queue.IsComplete(p.frames[n]) {
		n++
	}
	p.frames = p.frames[n:]
}
