// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// CommandKind identifies a recorded command.
type CommandKind uint8

const (
	CommandSetPipeline CommandKind = iota + 1
	CommandSetViewport
	CommandSetScissor
	CommandClearColor
	CommandClearDepthStencil
	CommandSetRenderTargets
	CommandDraw
	CommandDrawIndexed
)

// String returns the string representation of CommandKind.
func (k CommandKind) String() string {
	switch k {
	case CommandSetPipeline:
		return "SetPipeline"
	case CommandSetViewport:
		return "SetViewport"
	case CommandSetScissor:
		return "SetScissor"
	case CommandClearColor:
		return "ClearColor"
	case CommandClearDepthStencil:
		return "ClearDepthStencil"
	case CommandSetRenderTargets:
		return "SetRenderTargets"
	case CommandDraw:
		return "Draw"
	case CommandDrawIndexed:
		return "DrawIndexed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Command is one entry of a command list. Commands execute in the order
// they were recorded.
type Command interface {
	Kind() CommandKind
}

// Viewport maps normalized device coordinates to the render target.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Rect is a pixel rectangle. Right and Bottom are exclusive.
type Rect struct {
	Left, Top     int32
	Right, Bottom int32
}

// Width returns the rectangle width.
func (r Rect) Width() int32 { return r.Right - r.Left }

// Height returns the rectangle height.
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Empty reports whether the rectangle covers no pixel.
func (r Rect) Empty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// DepthStencilClearFlag selects the aspects cleared by ClearDepthStencilCmd.
type DepthStencilClearFlag uint8

const (
	ClearDepth DepthStencilClearFlag = 1 << iota
	ClearStencil

	ClearAll = ClearDepth | ClearStencil
)

// String returns the string representation of DepthStencilClearFlag.
func (f DepthStencilClearFlag) String() string {
	switch f {
	case 0:
		return "None"
	case ClearDepth:
		return "Depth"
	case ClearStencil:
		return "Stencil"
	case ClearAll:
		return "All"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// SetPipelineCmd binds a pipeline state object. Pipeline may be nil to
// unbind.
type SetPipelineCmd struct {
	Pipeline PipelineState
}

// SetViewportCmd sets the viewport for subsequent draws.
type SetViewportCmd struct {
	Viewport Viewport
}

// SetScissorCmd sets the scissor rectangle for subsequent draws.
type SetScissorCmd struct {
	Rect Rect
}

// ClearColorCmd clears a whole color target.
type ClearColorCmd struct {
	Target Texture
	Color  gputypes.Color
}

// ClearDepthStencilCmd clears the selected aspects of a depth/stencil target.
type ClearDepthStencilCmd struct {
	Target  Texture
	Flags   DepthStencilClearFlag
	Depth   float32
	Stencil uint8
}

// SetRenderTargetsCmd binds the output attachments. Slot index is the
// position in Colors. DepthStencil may be nil.
type SetRenderTargetsCmd struct {
	Colors       []Texture
	DepthStencil Texture
}

// DrawCmd draws non-indexed primitives.
type DrawCmd struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// DrawIndexedCmd draws indexed primitives.
type DrawIndexedCmd struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

func (SetPipelineCmd) Kind() CommandKind       { return CommandSetPipeline }
func (SetViewportCmd) Kind() CommandKind       { return CommandSetViewport }
func (SetScissorCmd) Kind() CommandKind        { return CommandSetScissor }
func (ClearColorCmd) Kind() CommandKind        { return CommandClearColor }
func (ClearDepthStencilCmd) Kind() CommandKind { return CommandClearDepthStencil }
func (SetRenderTargetsCmd) Kind() CommandKind  { return CommandSetRenderTargets }
func (DrawCmd) Kind() CommandKind              { return CommandDraw }
func (DrawIndexedCmd) Kind() CommandKind       { return CommandDrawIndexed }
