// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/venus/backend"
)

// ListClass is the execution class of command lists and queues.
type ListClass = backend.ListClass

// Execution classes.
const (
	ListClassGraphics = backend.ListClassGraphics
	ListClassCompute  = backend.ListClassCompute
	ListClassCopy     = backend.ListClassCopy
)

// Viewport maps normalized device coordinates to the render target.
type Viewport = backend.Viewport

// Rect is a pixel rectangle; Right and Bottom are exclusive.
type Rect = backend.Rect

// DepthStencilClearFlag selects the aspects cleared by ClearDepthStencil.
type DepthStencilClearFlag = backend.DepthStencilClearFlag

// Depth/stencil clear flags.
const (
	ClearDepth   = backend.ClearDepth
	ClearStencil = backend.ClearStencil
	ClearAll     = backend.ClearAll
)

// Color is a normalized RGBA clear color.
type Color = gputypes.Color

// Texture is a render target reference.
type Texture = backend.Texture

// PipelineState is an opaque pipeline object.
type PipelineState = backend.PipelineState

// Window supplies the drawable size of a surface.
type Window = backend.Window

// SwapChain is the presentation collaborator.
type SwapChain = backend.SwapChain

// MaxColorTargets is the maximum number of simultaneously bound color
// targets.
const MaxColorTargets = 8

// ViewportFor returns a viewport covering the whole window with the
// default [0, 1] depth range.
func ViewportFor(w Window) Viewport {
	return Viewport{
		Width:    float32(w.Width()),
		Height:   float32(w.Height()),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

// ScissorFor returns a scissor rectangle covering the whole window.
func ScissorFor(w Window) Rect {
	return Rect{Right: int32(w.Width()), Bottom: int32(w.Height())}
}
