// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software provides the in-memory reference backend.
//
// Every queue runs its own executor goroutine and executes submissions in
// strict FIFO order. Lists record into allocator arenas; resetting an
// allocator while one of its lists is still pending makes the device lost,
// just like a real driver would fault. Render targets are CPU images, so
// clears are observable through Texture.ColorAt and Texture.DepthAt.
//
// The package registers itself as backend.BackendSoftware:
//
//	import _ "github.com/gogpu/venus/backend/software"
//
// Tests use Queue.Pause and Queue.Resume to hold work in flight, and
// Queue.Executed to observe execution order.
package software
