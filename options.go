// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"log/slog"
	"time"
)

// DefaultMaxInFlight is the default number of command buffers a queue may
// have checked out or executing at the same time.
const DefaultMaxInFlight = 3

// DefaultWaitTimeout bounds WaitComplete. Zero means wait forever.
const DefaultWaitTimeout = 0

// DeviceOption configures a Device during creation.
//
// Example:
//
//	// Software device with default settings
//	dev, err := venus.Open("software")
//
//	// Parallel recording on four workers
//	dev, err := venus.Open("software", venus.WithWorkers(4))
type DeviceOption func(*deviceOptions)

// deviceOptions holds optional configuration for Device creation.
type deviceOptions struct {
	logger  *slog.Logger
	workers int
}

// defaultDeviceOptions returns the default device options.
func defaultDeviceOptions() deviceOptions {
	return deviceOptions{
		logger:  nil, // Package logger is used if nil
		workers: 0,   // GOMAXPROCS
	}
}

// WithLogger sets the logger for venus and the backend device.
// It is equivalent to calling SetLogger before opening the device.
func WithLogger(l *slog.Logger) DeviceOption {
	return func(o *deviceOptions) {
		o.logger = l
	}
}

// WithWorkers sets the number of goroutines RecordParallel uses.
// Zero or a negative value selects GOMAXPROCS.
func WithWorkers(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.workers = n
	}
}

// QueueOption configures a CommandQueue during creation.
//
// Example:
//
//	q, err := dev.CreateCommandQueue(venus.ListClassGraphics,
//	    venus.WithLabel("main"),
//	    venus.WithMaxInFlight(2),
//	)
type QueueOption func(*queueOptions)

type queueOptions struct {
	label       string
	maxInFlight int
	waitTimeout time.Duration
}

func defaultQueueOptions() queueOptions {
	return queueOptions{
		maxInFlight: DefaultMaxInFlight,
		waitTimeout: DefaultWaitTimeout,
	}
}

// WithLabel sets the queue label used in log output.
func WithLabel(label string) QueueOption {
	return func(o *queueOptions) {
		o.label = label
	}
}

// WithMaxInFlight bounds the number of command buffers that may be checked
// out or executing at once. CreateCommandBuffer returns
// ErrResourceExhausted beyond it. Values below 1 are ignored.
func WithMaxInFlight(n int) QueueOption {
	return func(o *queueOptions) {
		if n >= 1 {
			o.maxInFlight = n
		}
	}
}

// WithWaitTimeout bounds WaitComplete. A zero timeout waits forever.
func WithWaitTimeout(d time.Duration) QueueOption {
	return func(o *queueOptions) {
		if d >= 0 {
			o.waitTimeout = d
		}
	}
}
