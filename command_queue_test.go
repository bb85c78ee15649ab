// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/venus/backend"
	"github.com/gogpu/venus/backend/software"
)

func TestCommandQueue_ExecutesInCommitOrder(t *testing.T) {
	const n = 6
	q, sq, native := newTestQueue(t, WithMaxInFlight(n))
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)

	// Hold execution so every buffer is queued before the first runs.
	sq.Pause()
	want := make([]uint64, 0, n)
	for range n {
		cb := recordClear(t, q, target)
		want = append(want, listID(cb))
		if err := cb.Commit(); err != nil {
			t.Fatalf("Commit() = %v", err)
		}
	}
	if got := sq.Pending(); got != n {
		t.Errorf("Pending() = %d while paused, want %d", got, n)
	}
	sq.Resume()

	if err := q.WaitComplete(); err != nil {
		t.Fatalf("WaitComplete() = %v", err)
	}
	execs := sq.Executed()
	if len(execs) != n {
		t.Fatalf("len(Executed()) = %d, want %d", len(execs), n)
	}
	for i, e := range execs {
		if len(e.Lists) != 1 || e.Lists[0] != want[i] {
			t.Errorf("Executed()[%d].Lists = %v, want [%d]", i, e.Lists, want[i])
		}
		if e.FenceValue != uint64(i+1) {
			t.Errorf("Executed()[%d].FenceValue = %d, want %d", i, e.FenceValue, i+1)
		}
	}
}

func TestCommandQueue_FenceQueries(t *testing.T) {
	q, sq, native := newTestQueue(t)
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)

	if got := q.LastSubmittedValue(); got != 0 {
		t.Errorf("LastSubmittedValue() = %d, want 0", got)
	}
	if !q.IsComplete(0) {
		t.Error("IsComplete(0) = false, want true")
	}

	sq.Pause()
	first := recordClear(t, q, target)
	if err := first.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	second := recordClear(t, q, target)
	if err := second.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}

	if got := q.LastSubmittedValue(); got != 2 {
		t.Errorf("LastSubmittedValue() = %d, want 2", got)
	}
	if q.IsComplete(1) || first.Completed() {
		t.Error("work reported complete while the queue is paused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.WaitFence(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitFence() while paused = %v, want DeadlineExceeded", err)
	}
	var devErr *DeviceError
	if err := q.WaitFence(ctx, 1); errors.As(err, &devErr) {
		t.Errorf("WaitFence() timeout reported as DeviceError: %v", err)
	}
	if err := q.WaitFence(testContext(t), 3); !errors.Is(err, ErrInvalidState) {
		t.Errorf("WaitFence(unsubmitted) = %v, want ErrInvalidState", err)
	}

	sq.Resume()
	if err := q.WaitFence(testContext(t), 1); err != nil {
		t.Fatalf("WaitFence(1) = %v", err)
	}
	if !first.Completed() {
		t.Error("first.Completed() = false after WaitFence(1)")
	}
	if err := second.Wait(testContext(t)); err != nil {
		t.Fatalf("second.Wait() = %v", err)
	}
	if got := q.CompletedValue(); got != 2 {
		t.Errorf("CompletedValue() = %d, want 2", got)
	}
}

func TestCommandQueue_WaitCompleteTimeout(t *testing.T) {
	q, sq, native := newTestQueue(t, WithWaitTimeout(20*time.Millisecond))
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)

	sq.Pause()
	cb := recordClear(t, q, target)
	if err := cb.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	if err := q.WaitComplete(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitComplete() while paused = %v, want DeadlineExceeded", err)
	}
	sq.Resume()
	if err := q.WaitComplete(); err != nil {
		t.Errorf("WaitComplete() after Resume = %v", err)
	}
}

func TestCommandQueue_WaitCompleteIdle(t *testing.T) {
	q, _, _ := newTestQueue(t)
	if err := q.WaitComplete(); err != nil {
		t.Errorf("WaitComplete() on idle queue = %v, want nil", err)
	}
}

func TestCommandQueue_ResourceExhausted(t *testing.T) {
	q, sq, native := newTestQueue(t, WithMaxInFlight(2))
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)

	if got := q.MaxInFlight(); got != 2 {
		t.Errorf("MaxInFlight() = %d, want 2", got)
	}

	sq.Pause()
	a := recordClear(t, q, target)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	b, err := q.CreateCommandBuffer()
	if err != nil {
		t.Fatalf("CreateCommandBuffer() = %v", err)
	}

	// One executing, one checked out.
	if _, err := q.CreateCommandBuffer(); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("CreateCommandBuffer() at limit = %v, want ErrResourceExhausted", err)
	}
	if got := q.Stats().Exhausted; got != 1 {
		t.Errorf("Stats().Exhausted = %d, want 1", got)
	}

	// Releasing the checked-out buffer frees a slot.
	if err := b.Release(); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if _, err := q.CreateCommandBuffer(); err != nil {
		t.Fatalf("CreateCommandBuffer() after Release = %v", err)
	}
	if _, err := q.CreateCommandBuffer(); !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("CreateCommandBuffer() at limit = %v, want ErrResourceExhausted", err)
	}

	// Completion of the executing buffer frees the other.
	sq.Resume()
	if err := a.Wait(testContext(t)); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if _, err := q.CreateCommandBuffer(); err != nil {
		t.Errorf("CreateCommandBuffer() after completion = %v", err)
	}
	if got := q.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}
}

func TestCommandQueue_Accessors(t *testing.T) {
	dev, _ := newTestDevice(t)
	q, err := dev.CreateCommandQueue(ListClassCompute, WithLabel("physics"))
	if err != nil {
		t.Fatalf("CreateCommandQueue() = %v", err)
	}
	if got := q.Label(); got != "physics" {
		t.Errorf("Label() = %q, want %q", got, "physics")
	}
	if got := q.Class(); got != ListClassCompute {
		t.Errorf("Class() = %v, want Compute", got)
	}
	if q.Device() != dev {
		t.Error("Device() returned another device")
	}
	if got := q.MaxInFlight(); got != DefaultMaxInFlight {
		t.Errorf("MaxInFlight() = %d, want %d", got, DefaultMaxInFlight)
	}
}

func TestCommandQueue_DeviceLost(t *testing.T) {
	q, sq, native := newTestQueue(t)
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)

	// Resetting the allocator behind venus's back while the list is queued
	// makes the backend fail execution and lose the device.
	sq.Pause()
	cb := recordClear(t, q, target)
	if err := cb.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	if err := cb.slot.list.alloc.Reset(); err != nil {
		t.Fatalf("native Reset() = %v", err)
	}
	sq.Resume()

	err := q.WaitComplete()
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("WaitComplete() = %v, want DeviceError", err)
	}
	if devErr.Op != "WaitComplete" {
		t.Errorf("DeviceError.Op = %q, want WaitComplete", devErr.Op)
	}

	if _, err := q.CreateCommandBuffer(); !errors.As(err, &devErr) {
		t.Errorf("CreateCommandBuffer() on lost device = %v, want DeviceError", err)
	}
}

// stuckDevice accepts submissions but never executes them, and its queue
// does not drain on Destroy.
type stuckDevice struct {
	*software.Device
	fence *stuckFence
}

func (d *stuckDevice) CreateQueue(class backend.ListClass) (backend.Queue, error) {
	return stuckQueue{class: class}, nil
}

func (d *stuckDevice) CreateFence(initial uint64) (backend.Fence, error) {
	d.fence = &stuckFence{completed: initial}
	return d.fence, nil
}

type stuckQueue struct{ class backend.ListClass }

func (q stuckQueue) Class() backend.ListClass                         { return q.class }
func (stuckQueue) Submit([]backend.List, backend.Fence, uint64) error { return nil }
func (stuckQueue) Destroy()                                           {}

type stuckFence struct {
	completed uint64
	destroyed atomic.Bool
}

func (f *stuckFence) CompletedValue() uint64 { return f.completed }

func (f *stuckFence) Wait(ctx context.Context, value uint64) error {
	if value <= f.completed {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *stuckFence) Destroy() { f.destroyed.Store(true) }

func TestCommandQueue_CloseKeepsInFlightLists(t *testing.T) {
	native := software.New()
	t.Cleanup(native.Destroy)
	stuck := &stuckDevice{Device: native}
	dev, err := NewDevice(stuck)
	if err != nil {
		t.Fatalf("NewDevice() = %v", err)
	}
	q, err := dev.CreateCommandQueue(ListClassGraphics)
	if err != nil {
		t.Fatalf("CreateCommandQueue() = %v", err)
	}
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)

	busy := recordClear(t, q, target)
	if err := busy.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	idle, err := q.CreateCommandBuffer()
	if err != nil {
		t.Fatalf("CreateCommandBuffer() = %v", err)
	}
	busyAlloc := busy.slot.list.alloc.(*software.Allocator)
	idleAlloc := idle.slot.list.alloc.(*software.Allocator)
	if err := idle.Release(); err != nil {
		t.Fatalf("Release() = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := dev.CloseContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("CloseContext() = %v, want DeadlineExceeded", err)
	}

	if got := busyAlloc.Len(); got == 0 {
		t.Error("allocator of the executing list was destroyed")
	}
	if stuck.fence.destroyed.Load() {
		t.Error("fence destroyed while work is outstanding")
	}
	if err := idleAlloc.Reset(); !errors.Is(err, software.ErrDestroyed) {
		t.Errorf("idle allocator Reset() = %v, want ErrDestroyed", err)
	}
}

func TestCommandQueue_CloseDestroysCompletedLists(t *testing.T) {
	dev, native := newTestDevice(t)
	q, err := dev.CreateCommandQueue(ListClassGraphics)
	if err != nil {
		t.Fatalf("CreateCommandQueue() = %v", err)
	}
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)
	cb := recordClear(t, q, target)
	alloc := cb.slot.list.alloc.(*software.Allocator)
	if err := cb.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := alloc.Reset(); !errors.Is(err, software.ErrDestroyed) {
		t.Errorf("allocator Reset() after Close = %v, want ErrDestroyed", err)
	}
}
