// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/venus/backend"
)

// CommandList pairs one native allocator with one native list of a fixed
// execution class. It refuses to reset the allocator while the device may
// still be executing work recorded through it.
//
// CommandList is safe for concurrent use, but recording into the native
// list is single-goroutine.
type CommandList struct {
	class ListClass
	alloc backend.Allocator
	list  backend.List

	mu            sync.Mutex
	fence         backend.Fence
	lastSubmitted uint64
}

func newCommandList(dev backend.Device, class ListClass) (*CommandList, error) {
	alloc, err := dev.CreateAllocator(class)
	if err != nil {
		return nil, deviceError("create allocator", err)
	}
	list, err := dev.CreateList(class, alloc)
	if err != nil {
		alloc.Destroy()
		return nil, deviceError("create list", err)
	}
	return &CommandList{class: class, alloc: alloc, list: list}, nil
}

// Class returns the execution class fixed at construction.
func (l *CommandList) Class() ListClass { return l.class }

// Native returns the native list.
func (l *CommandList) Native() backend.List { return l.list }

// Track records that the list was submitted and completes when fence
// reaches value. Queues call it on commit; callers submitting the native
// list themselves must call it too.
func (l *CommandList) Track(fence backend.Fence, value uint64) {
	l.mu.Lock()
	l.fence = fence
	l.lastSubmitted = value
	l.mu.Unlock()
}

// LastSubmitted returns the fence value of the last tracked submission,
// or 0 if the list was never submitted.
func (l *CommandList) LastSubmitted() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSubmitted
}

// Idle reports whether the device finished every tracked submission.
func (l *CommandList) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idleLocked()
}

func (l *CommandList) idleLocked() bool {
	return l.fence == nil || l.fence.CompletedValue() >= l.lastSubmitted
}

// Reset reclaims the allocator's memory. It fails with ErrResourceInUse
// if the device has not signaled completion of the last submission.
func (l *CommandList) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.idleLocked() {
		return fmt.Errorf("%w: allocator reset at fence %d, completed %d",
			ErrResourceInUse, l.lastSubmitted, l.fence.CompletedValue())
	}
	if err := l.alloc.Reset(); err != nil {
		return deviceError("reset allocator", err)
	}
	return nil
}

// ResetWait blocks until the last submission completed, then resets.
func (l *CommandList) ResetWait(ctx context.Context) error {
	l.mu.Lock()
	fence, value := l.fence, l.lastSubmitted
	l.mu.Unlock()

	if fence != nil {
		if err := fence.Wait(ctx, value); err != nil {
			return fmt.Errorf("venus: reset wait: %w", err)
		}
	}
	return l.Reset()
}

// Begin resets the allocator and opens the native list for recording with
// an optional initial pipeline.
func (l *CommandList) Begin(pipeline PipelineState) error {
	if err := l.Reset(); err != nil {
		return err
	}
	if err := l.list.Reset(l.alloc, pipeline); err != nil {
		return deviceError("reset list", err)
	}
	return nil
}

// Destroy releases the native objects. The list must be idle.
func (l *CommandList) Destroy() {
	l.list.Destroy()
	l.alloc.Destroy()
}
