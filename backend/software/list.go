// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/venus/backend"
)

// Allocator is an arena of recorded commands. Lists append into it and
// remember the segment they own together with the arena epoch. Reset
// starts a new epoch; any list still pointing into an old epoch can no
// longer be executed.
type Allocator struct {
	dev   *Device
	class backend.ListClass

	mu        sync.Mutex
	arena     []backend.Command
	epoch     uint64
	resets    int
	recorder  *List
	destroyed bool
}

var _ backend.Allocator = (*Allocator)(nil)

// Class returns the allocator's execution class.
func (a *Allocator) Class() backend.ListClass { return a.class }

// Reset discards every recorded command and advances the epoch.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	clear(a.arena)
	a.arena = a.arena[:0]
	a.epoch++
	a.resets++
	a.recorder = nil
	return nil
}

// Resets returns how many times Reset succeeded.
func (a *Allocator) Resets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}

// Len returns the number of commands held by the arena.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.arena)
}

// Destroy releases the arena.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.arena = nil
	a.destroyed = true
}

// begin claims the allocator for l and returns the segment start.
func (a *Allocator) begin(l *List) (epoch uint64, start int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return 0, 0, ErrDestroyed
	}
	if a.recorder != nil && a.recorder != l {
		return 0, 0, ErrAllocatorInUse
	}
	a.recorder = l
	return a.epoch, len(a.arena), nil
}

func (a *Allocator) end(l *List) {
	a.mu.Lock()
	if a.recorder == l {
		a.recorder = nil
	}
	a.mu.Unlock()
}

func (a *Allocator) append(epoch uint64, cmd backend.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.epoch != epoch {
		return ErrAllocatorReset
	}
	a.arena = append(a.arena, cmd)
	return nil
}

// segment returns a copy of arena[start:end] if epoch is still current.
func (a *Allocator) segment(epoch uint64, start, end int) ([]backend.Command, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return nil, ErrDestroyed
	}
	if a.epoch != epoch || end > len(a.arena) {
		return nil, ErrAllocatorReset
	}
	return append([]backend.Command(nil), a.arena[start:end]...), nil
}

// List records commands into an Allocator.
type List struct {
	dev   *Device
	id    uint64
	class backend.ListClass

	mu        sync.Mutex
	alloc     *Allocator
	epoch     uint64
	start     int
	end       int
	recording bool
	destroyed bool
}

var _ backend.List = (*List)(nil)

// ID returns a device-unique list identifier. Execution records refer to
// lists by ID.
func (l *List) ID() uint64 { return l.id }

// Class returns the list's execution class.
func (l *List) Class() backend.ListClass { return l.class }

// Reset starts recording into alloc. A non-nil pipeline is recorded as
// the first command.
func (l *List) Reset(alloc backend.Allocator, pipeline backend.PipelineState) error {
	a, err := l.dev.allocator(alloc)
	if err != nil {
		return fmt.Errorf("list reset: %w", err)
	}
	if a.class != l.class {
		return fmt.Errorf("list reset: %w: list %v, allocator %v", backend.ErrClassMismatch, l.class, a.class)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.destroyed {
		return ErrDestroyed
	}
	if l.recording {
		return fmt.Errorf("list reset: %w", backend.ErrListNotClosed)
	}

	epoch, start, err := a.begin(l)
	if err != nil {
		return fmt.Errorf("list reset: %w", err)
	}
	l.alloc = a
	l.epoch = epoch
	l.start = start
	l.end = start
	l.recording = true

	if pipeline != nil {
		return l.recordLocked(backend.SetPipelineCmd{Pipeline: pipeline})
	}
	return nil
}

// Record appends cmd to the list.
func (l *List) Record(cmd backend.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordLocked(cmd)
}

func (l *List) recordLocked(cmd backend.Command) error {
	if !l.recording {
		return backend.ErrListClosed
	}
	if err := l.alloc.append(l.epoch, cmd); err != nil {
		return fmt.Errorf("record %v: %w", cmd.Kind(), err)
	}
	l.end++
	return nil
}

// Close ends recording and releases the allocator for the next list.
func (l *List) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.recording {
		return backend.ErrListClosed
	}
	l.recording = false
	l.alloc.end(l)
	return nil
}

// Len returns the number of commands recorded since the last Reset.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.end - l.start
}

// Recording reports whether the list is open.
func (l *List) Recording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recording
}

// Commands returns the recorded commands. It fails with ErrAllocatorReset
// when the allocator has been reset since recording.
func (l *List) Commands() ([]backend.Command, error) {
	l.mu.Lock()
	alloc, epoch, start, end := l.alloc, l.epoch, l.start, l.end
	l.mu.Unlock()
	if alloc == nil {
		return nil, nil
	}
	return alloc.segment(epoch, start, end)
}

// Destroy marks the list unusable.
func (l *List) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recording {
		l.alloc.end(l)
		l.recording = false
	}
	l.destroyed = true
}
