// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrClassMismatch is returned when an allocator, list or queue of one
	// execution class is paired with an object of another class.
	ErrClassMismatch = errors.New("backend: execution class mismatch")

	// ErrListClosed is returned when a command is recorded into a list that
	// is not recording.
	ErrListClosed = errors.New("backend: command list is not recording")

	// ErrListNotClosed is returned when an open list is submitted.
	ErrListNotClosed = errors.New("backend: command list is still recording")

	// ErrForeignObject is returned when an object created by one backend
	// device is handed to another.
	ErrForeignObject = errors.New("backend: object belongs to a different device")

	// ErrDeviceLost is returned by every device call once the device has
	// hit an unrecoverable failure.
	ErrDeviceLost = errors.New("backend: device lost")
)

// ListClass is the execution class of allocators, lists and queues.
// Objects of different classes are never mixed.
type ListClass uint8

const (
	// ListClassGraphics records draw, clear and state commands.
	ListClassGraphics ListClass = iota

	// ListClassCompute records dispatch commands.
	ListClassCompute

	// ListClassCopy records transfer commands.
	ListClassCopy
)

// String returns the string representation of ListClass.
func (c ListClass) String() string {
	switch c {
	case ListClassGraphics:
		return "Graphics"
	case ListClassCompute:
		return "Compute"
	case ListClassCopy:
		return "Copy"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Device is the factory layer that hands out native objects.
//
// Implementations must guarantee that objects created for the same
// ListClass are mutually compatible.
type Device interface {
	// Name returns the backend identifier (e.g. "software", "wgpu").
	Name() string

	// CreateAllocator creates a command allocator of the given class.
	CreateAllocator(class ListClass) (Allocator, error)

	// CreateList creates a command list of the given class that records
	// into alloc. The list starts closed.
	CreateList(class ListClass, alloc Allocator) (List, error)

	// CreateQueue creates an execution queue of the given class.
	CreateQueue(class ListClass) (Queue, error)

	// CreateFence creates a fence whose completed value starts at initial.
	CreateFence(initial uint64) (Fence, error)

	// Destroy releases the device. Objects created from it must not be
	// used afterwards.
	Destroy()
}

// Allocator is the backing memory command lists record into.
type Allocator interface {
	Class() ListClass

	// Reset reclaims all memory recorded through this allocator.
	// It is unconditional: callers must know the device finished every
	// list recorded from it.
	Reset() error

	Destroy()
}

// List is a recordable, replayable command list.
type List interface {
	Class() ListClass

	// Reset starts a new recording into alloc. pipeline may be nil.
	Reset(alloc Allocator, pipeline PipelineState) error

	// Record appends a command. Fails with ErrListClosed when the list is
	// not recording.
	Record(cmd Command) error

	// Close ends recording.
	Close() error

	// Len returns the number of commands recorded since the last Reset.
	Len() int

	Destroy()
}

// Queue executes closed lists in submission order.
type Queue interface {
	Class() ListClass

	// Submit appends lists to the queue's execution order. They run in the
	// given order after every earlier submission; fence is signaled to
	// value once all of them finished. fence may be nil.
	Submit(lists []List, fence Fence, value uint64) error

	Destroy()
}

// Fence is a monotonically increasing completion marker.
type Fence interface {
	// CompletedValue returns the last value the device signaled.
	CompletedValue() uint64

	// Wait blocks until CompletedValue() >= value or ctx is done.
	Wait(ctx context.Context, value uint64) error

	Destroy()
}

// Texture is an opaque render target reference.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Format() gputypes.TextureFormat
}

// PipelineState is an opaque pipeline object produced by the device layer.
type PipelineState interface {
	Label() string
}

// IsDepthStencil reports whether format is a depth and/or stencil format.
func IsDepthStencil(format gputypes.TextureFormat) bool {
	switch format {
	case gputypes.TextureFormatDepth16Unorm,
		gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth32FloatStencil8,
		gputypes.TextureFormatStencil8:
		return true
	default:
		return false
	}
}

// Window supplies the drawable size of a surface.
type Window interface {
	Width() int
	Height() int
}

// SwapChainDesc describes the targets of a swap chain.
type SwapChainDesc struct {
	// BufferCount is the number of color buffers (minimum 2).
	BufferCount int

	// ColorFormat is the format of every color buffer.
	ColorFormat gputypes.TextureFormat

	// DepthStencilFormat is the format of the depth/stencil buffer.
	// TextureFormatUndefined skips its creation.
	DepthStencilFormat gputypes.TextureFormat
}

// DefaultSwapChainDesc returns a double-buffered BGRA8 chain with a
// Depth24PlusStencil8 depth buffer.
func DefaultSwapChainDesc() SwapChainDesc {
	return SwapChainDesc{
		BufferCount:        2,
		ColorFormat:        gputypes.TextureFormatBGRA8Unorm,
		DepthStencilFormat: gputypes.TextureFormatDepth24PlusStencil8,
	}
}

// SwapChain is the presentation layer collaborator.
type SwapChain interface {
	CurrentColorTexture() Texture

	// DepthStencilTexture returns nil when the chain has no depth buffer.
	DepthStencilTexture() Texture

	Present() error
	Destroy()
}

// SwapChainFactory is implemented by devices that can present.
type SwapChainFactory interface {
	CreateSwapChain(queue Queue, window Window, desc SwapChainDesc) (SwapChain, error)
}
