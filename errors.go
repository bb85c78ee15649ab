// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"errors"
	"fmt"
)

// Errors returned by venus. Misuse is always reported through a return
// value; nothing is recorded or submitted when an error is returned.
var (
	// ErrInvalidState is returned when an operation is called outside its
	// legal state. It always indicates a programming error.
	ErrInvalidState = errors.New("venus: invalid state")

	// ErrEncoderClosed is returned by every encoder mutation and by
	// EndEncoding once the encoder was ended or its buffer recycled.
	// It wraps ErrInvalidState.
	ErrEncoderClosed = fmt.Errorf("%w: encoder closed", ErrInvalidState)

	// ErrIncompatibleClass is returned when an operation needs a different
	// execution class than the buffer or queue was created with.
	// It wraps ErrInvalidState.
	ErrIncompatibleClass = fmt.Errorf("%w: incompatible execution class", ErrInvalidState)

	// ErrResourceInUse is returned when an allocator reset is requested
	// before the device finished the work recorded through it.
	ErrResourceInUse = errors.New("venus: resource in use by the device")

	// ErrResourceExhausted is returned when a queue reached its in-flight
	// limit. Retry after some submitted work completed.
	ErrResourceExhausted = errors.New("venus: resource exhausted")

	// ErrInvalidArgument is returned for nil targets, out-of-range depth
	// values and similar caller errors.
	ErrInvalidArgument = errors.New("venus: invalid argument")

	// ErrDeviceClosed is returned by every factory call after Device.Close.
	ErrDeviceClosed = errors.New("venus: device closed")

	// ErrNotSupported is returned when the backend lacks an optional
	// capability, such as presentation.
	ErrNotSupported = errors.New("venus: not supported by backend")
)

// DeviceError reports a failure of the native driver. It is fatal for the
// current frame and never retried by venus.
type DeviceError struct {
	// Op is the venus operation that called the driver.
	Op string

	// Err is the driver error.
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("venus: %s: device error: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// deviceError wraps a non-nil driver error.
func deviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Err: err}
}
