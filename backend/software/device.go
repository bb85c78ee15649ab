// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/venus/backend"
)

// Software backend errors.
var (
	// ErrAllocatorReset is returned when a submitted list is executed after
	// its allocator was reset. The device is marked lost when this happens.
	ErrAllocatorReset = errors.New("software: allocator was reset while its list was pending")

	// ErrAllocatorInUse is returned when two lists record into the same
	// allocator at the same time.
	ErrAllocatorInUse = errors.New("software: allocator is recording another list")

	// ErrDestroyed is returned when a destroyed object is used.
	ErrDestroyed = errors.New("software: object destroyed")

	// ErrInvalidTarget is returned when a command references a texture of
	// the wrong kind (color vs depth/stencil).
	ErrInvalidTarget = errors.New("software: invalid render target")

	// ErrInvalidSize is returned when a texture or swap chain has a zero
	// dimension.
	ErrInvalidSize = errors.New("software: invalid size")
)

func init() {
	backend.Register(backend.BackendSoftware, func() (backend.Device, error) {
		return New(), nil
	})
}

// Option configures a software Device.
type Option func(*options)

type options struct {
	latency time.Duration
}

// WithLatency delays the completion of every submission by d, which makes
// in-flight windows observable in tests and demos.
func WithLatency(d time.Duration) Option {
	return func(o *options) {
		o.latency = d
	}
}

// Device is an in-memory backend.Device. Queues execute on their own
// goroutine; render targets are CPU images.
//
// Device is safe for concurrent use.
type Device struct {
	opts options

	nextID atomic.Uint64

	mu        sync.Mutex
	lost      error
	destroyed bool
	queues    []*Queue
	fences    []*Fence
}

var (
	_ backend.Device           = (*Device)(nil)
	_ backend.SwapChainFactory = (*Device)(nil)
)

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

// Name returns "software".
func (d *Device) Name() string { return backend.BackendSoftware }

// SetLogger sets the logger used by the software backend.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Err returns the reason the device was lost, or nil.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// check returns an error if the device can no longer create or execute.
func (d *Device) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkLocked()
}

func (d *Device) checkLocked() error {
	if d.destroyed {
		return ErrDestroyed
	}
	if d.lost != nil {
		return fmt.Errorf("%w: %w", backend.ErrDeviceLost, d.lost)
	}
	return nil
}

func (d *Device) lostErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost != nil {
		return fmt.Errorf("%w: %w", backend.ErrDeviceLost, d.lost)
	}
	return nil
}

// markLost records an unrecoverable failure and wakes every fence waiter.
func (d *Device) markLost(err error) {
	d.mu.Lock()
	first := d.lost == nil
	if first {
		d.lost = err
	}
	fences := append([]*Fence(nil), d.fences...)
	d.mu.Unlock()

	if first {
		slogger().Error("software: device lost", "err", err)
	}
	for _, f := range fences {
		f.wake()
	}
}

// CreateAllocator creates a command allocator.
func (d *Device) CreateAllocator(class backend.ListClass) (backend.Allocator, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &Allocator{dev: d, class: class}, nil
}

// CreateList creates a closed command list bound to alloc.
func (d *Device) CreateList(class backend.ListClass, alloc backend.Allocator) (backend.List, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	a, err := d.allocator(alloc)
	if err != nil {
		return nil, err
	}
	if a.class != class {
		return nil, fmt.Errorf("create list: %w: list %v, allocator %v", backend.ErrClassMismatch, class, a.class)
	}
	return &List{dev: d, id: d.nextID.Add(1), class: class, alloc: a}, nil
}

// CreateQueue creates a queue and starts its executor goroutine.
func (d *Device) CreateQueue(class backend.ListClass) (backend.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return nil, err
	}
	q := newQueue(d, class)
	d.queues = append(d.queues, q)
	return q, nil
}

// CreateFence creates a fence.
func (d *Device) CreateFence(initial uint64) (backend.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return nil, err
	}
	f := newFence(d, initial)
	d.fences = append(d.fences, f)
	return f, nil
}

// Destroy stops every queue after draining its pending submissions.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	queues := d.queues
	d.queues = nil
	d.mu.Unlock()

	for _, q := range queues {
		q.Destroy()
	}
}

func (d *Device) allocator(a backend.Allocator) (*Allocator, error) {
	sa, ok := a.(*Allocator)
	if !ok || sa == nil || sa.dev != d {
		return nil, fmt.Errorf("allocator %T: %w", a, backend.ErrForeignObject)
	}
	return sa, nil
}

func (d *Device) texture(t backend.Texture) (*Texture, error) {
	st, ok := t.(*Texture)
	if !ok || st == nil || st.dev != d {
		return nil, fmt.Errorf("texture %T: %w", t, backend.ErrForeignObject)
	}
	return st, nil
}
