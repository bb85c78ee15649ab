// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend defines the native-driver contract consumed by venus.
//
// A backend supplies four kinds of native objects, each tagged with a
// ListClass: allocators (recording memory), lists (recorded command
// streams), queues (FIFO executors) and fences (completion markers).
// The venus core owns their lifecycle; a backend only executes what it
// is told, in the order it is told.
//
// # Backend Registration
//
// Backends register a Factory from an init() function and are opened by
// name at runtime:
//
//	import _ "github.com/gogpu/venus/backend/software"
//
//	dev, err := backend.Get(backend.BackendSoftware)
//
// Default opens the best available backend (wgpu, then software).
//
// # Command Stream
//
// Lists record Command values (SetViewportCmd, ClearColorCmd, DrawCmd, ...).
// The stream is backend-neutral; each backend translates it when the list
// is submitted.
//
// # Available Backends
//
//   - "software": in-memory reference driver (always available)
//   - "wgpu": gogpu/wgpu HAL (Vulkan, Metal, DX12, GLES)
package backend
