// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/venus/backend"
	"github.com/gogpu/venus/internal/parallel"
)

// Device is the explicit device context every factory call goes through.
// It is created by Open or NewDevice and torn down by Close; there is no
// process-wide device.
//
// Device is safe for concurrent use.
type Device struct {
	native backend.Device
	owned  bool
	opts   deviceOptions

	mu     sync.Mutex
	closed bool
	queues []*CommandQueue
	pool   *parallel.WorkerPool
}

// Open opens a device of the named registered backend. An empty name
// selects the best available backend. The returned Device owns the
// backend device and destroys it on Close.
//
// Backends register themselves when imported:
//
//	import _ "github.com/gogpu/venus/backend/software"
func Open(name string, opts ...DeviceOption) (*Device, error) {
	var (
		native backend.Device
		err    error
	)
	if name == "" {
		native, err = backend.Default()
	} else {
		native, err = backend.Get(name)
	}
	if err != nil {
		return nil, fmt.Errorf("venus: open: %w", err)
	}
	d := newDevice(native, opts)
	d.owned = true
	return d, nil
}

// NewDevice wraps an existing backend device. The caller keeps ownership
// of native; Close does not destroy it.
func NewDevice(native backend.Device, opts ...DeviceOption) (*Device, error) {
	if native == nil {
		return nil, fmt.Errorf("%w: nil backend device", ErrInvalidArgument)
	}
	return newDevice(native, opts), nil
}

func newDevice(native backend.Device, opts []DeviceOption) *Device {
	o := defaultDeviceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	d := &Device{native: native, opts: o}
	trackDevice(d)
	Logger().Info("venus: device opened", "backend", native.Name())
	return d
}

// Backend returns the backend device. Callers use it to create render
// targets and pipelines, which are outside the command core.
func (d *Device) Backend() backend.Device { return d.native }

// Name returns the backend name.
func (d *Device) Name() string { return d.native.Name() }

// CreateCommandQueue creates a queue of the given execution class.
func (d *Device) CreateCommandQueue(class ListClass, opts ...QueueOption) (*CommandQueue, error) {
	const op = "CreateCommandQueue"
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%s: %w", op, ErrDeviceClosed)
	}

	o := defaultQueueOptions()
	for _, opt := range opts {
		opt(&o)
	}

	nq, err := d.native.CreateQueue(class)
	if err != nil {
		return nil, deviceError("create queue", err)
	}
	fence, err := d.native.CreateFence(0)
	if err != nil {
		nq.Destroy()
		return nil, deviceError("create fence", err)
	}

	q := newCommandQueue(d, class, nq, fence, o)
	d.queues = append(d.queues, q)
	Logger().Info("venus: queue created",
		"label", o.label, "class", class, "maxInFlight", o.maxInFlight)
	return q, nil
}

// NewCommandList creates a standalone allocator and list pair of the given
// class. Queues create their own lists; this is for callers that manage
// submission themselves.
func (d *Device) NewCommandList(class ListClass) (*CommandList, error) {
	if err := d.check("NewCommandList"); err != nil {
		return nil, err
	}
	return newCommandList(d.native, class)
}

func (d *Device) check(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("%s: %w", op, ErrDeviceClosed)
	}
	return nil
}

// workerPool returns the recording pool, creating it on first use.
func (d *Device) workerPool() (*parallel.WorkerPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	if d.pool == nil {
		d.pool = parallel.NewWorkerPool(d.opts.workers)
	}
	return d.pool, nil
}

// Close waits for every queue to finish its submitted work, then releases
// all native objects. Calls on the device or its queues fail with
// ErrDeviceClosed afterwards. Close is safe to call multiple times.
func (d *Device) Close() error {
	return d.CloseContext(context.Background())
}

// CloseContext is Close with a bound on the idle wait. When ctx expires
// the context error is returned; lists whose work has not completed are
// not destroyed, everything else is.
func (d *Device) CloseContext(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	queues := d.queues
	d.queues = nil
	pool := d.pool
	d.pool = nil
	d.mu.Unlock()

	untrackDevice(d)

	var firstErr error
	for _, q := range queues {
		if err := q.close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if pool != nil {
		pool.Close()
	}
	if d.owned {
		d.native.Destroy()
	}
	Logger().Info("venus: device closed", "backend", d.native.Name())
	return firstErr
}
