// Package venus records and submits GPU command lists.
//
// # Overview
//
// venus sits between application rendering code and a native command-list
// API. A caller records rendering operations into a reusable command
// buffer, then submits it for asynchronous execution on a device queue.
// venus owns the native allocators, lists and fences and guarantees that:
//   - an allocator is never reset while the device may still execute work
//     recorded through it
//   - an encoder cannot be used outside its recording window
//   - buffers committed to one queue execute in commit order
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/venus"
//	    _ "github.com/gogpu/venus/backend/software"
//	)
//
//	dev, err := venus.Open("software")
//	defer dev.Close()
//
//	q, err := dev.CreateCommandQueue(venus.ListClassGraphics)
//	sc, err := q.CreateSwapChain(window)
//
//	cb, err := q.CreateCommandBuffer()
//	enc, err := cb.CreateRenderCommandEncoder(nil)
//	enc.SetViewport(venus.ViewportFor(window))
//	enc.SetScissorRect(venus.ScissorFor(window))
//	enc.ClearColor(sc.CurrentColorTexture(), venus.Color{R: 0.1, G: 0.2, B: 0.3, A: 1})
//	enc.SetRenderTargets([]venus.Texture{sc.CurrentColorTexture()}, nil)
//	enc.EndEncoding()
//	cb.Commit()
//	q.WaitComplete()
//	sc.Present()
//
// # Lifecycle
//
// A CommandBuffer moves through Idle, Recording, Closed and Committed.
// Committed buffers return to the queue's pool once the queue fence shows
// their work completed; buffers that were never committed are returned with
// Release. Handles and encoders carry a generation number, so use after
// recycling fails with ErrInvalidState or ErrEncoderClosed instead of
// touching another frame's list.
//
// # Synchronization
//
// Every commit signals the queue fence to the next value. WaitComplete
// drains the queue; FenceValue, IsComplete, WaitFence and FramePacer let
// callers keep several frames in flight without a full drain.
//
// # Backends
//
// Native drivers implement the interfaces in package backend and register
// themselves by name:
//   - software: in-memory reference driver with CPU render targets
//   - wgpu: driver over the gogpu/wgpu HAL (Vulkan, Metal, DX12, GLES)
package venus

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
