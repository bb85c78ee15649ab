// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"context"
	"sync"

	"github.com/gogpu/venus/backend"
)

// Fence is a monotonic completion counter signaled by queue executors.
type Fence struct {
	dev *Device

	mu        sync.Mutex
	value     uint64
	changed   chan struct{}
	destroyed bool
}

var _ backend.Fence = (*Fence)(nil)

func newFence(dev *Device, initial uint64) *Fence {
	return &Fence{dev: dev, value: initial, changed: make(chan struct{})}
}

// CompletedValue returns the last signaled value.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Signal raises the completed value to v. Lower values are ignored.
func (f *Fence) Signal(v uint64) {
	f.mu.Lock()
	if v > f.value {
		f.value = v
	}
	f.mu.Unlock()
	f.wake()
}

// wake releases every current waiter so it re-checks its condition.
func (f *Fence) wake() {
	f.mu.Lock()
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()
}

// Wait blocks until the fence reaches value, the device is lost or ctx
// is done.
func (f *Fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.value >= value {
			f.mu.Unlock()
			return nil
		}
		if f.destroyed {
			f.mu.Unlock()
			return ErrDestroyed
		}
		ch := f.changed
		f.mu.Unlock()

		if err := f.dev.lostErr(); err != nil {
			return err
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Destroy wakes waiters; they return ErrDestroyed unless already satisfied.
func (f *Fence) Destroy() {
	f.mu.Lock()
	f.destroyed = true
	f.mu.Unlock()
	f.wake()
}
