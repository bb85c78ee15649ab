// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/venus/backend"
)

// RenderCommandEncoder is the recording session of one CommandBuffer.
// Every call appends a command to the buffer's native list; nothing
// reaches the device before the buffer is committed.
//
// After EndEncoding, or once its buffer is released, every call fails with
// ErrEncoderClosed. Do not keep an encoder past EndEncoding.
//
// Recording is single-goroutine per encoder; the mutex only protects the
// encoder's own bookkeeping.
type RenderCommandEncoder struct {
	buffer *CommandBuffer
	list   backend.List
	gen    uint64

	mu       sync.Mutex
	closed   bool
	viewport Viewport
	scissor  Rect
	colors   []Texture
	depth    Texture
	pipeline PipelineState
	commands int
}

func newRenderCommandEncoder(cb *CommandBuffer, pipeline PipelineState) *RenderCommandEncoder {
	e := &RenderCommandEncoder{
		buffer:   cb,
		list:     cb.slot.list.Native(),
		gen:      cb.gen,
		pipeline: pipeline,
	}
	if pipeline != nil {
		e.commands = 1
	}
	return e
}

// CommandBuffer returns the buffer the encoder records into.
func (e *RenderCommandEncoder) CommandBuffer() *CommandBuffer { return e.buffer }

// checkLocked fails once the encoder ended or its buffer was recycled.
func (e *RenderCommandEncoder) checkLocked(op string) error {
	if e.closed || e.buffer.slot.gen.Load() != e.gen {
		return fmt.Errorf("%s: %w", op, ErrEncoderClosed)
	}
	return nil
}

func (e *RenderCommandEncoder) recordLocked(op string, cmd backend.Command) error {
	if err := e.list.Record(cmd); err != nil {
		if errors.Is(err, backend.ErrListClosed) {
			return fmt.Errorf("%s: %w", op, ErrEncoderClosed)
		}
		return deviceError(op, err)
	}
	e.commands++
	return nil
}

// SetViewport sets the viewport for subsequent draws. Width and height
// must not be negative and the depth range must lie within [0, 1].
func (e *RenderCommandEncoder) SetViewport(vp Viewport) error {
	const op = "SetViewport"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(op); err != nil {
		return err
	}
	if !(vp.Width >= 0 && vp.Height >= 0) {
		return fmt.Errorf("%s: %w: size %vx%v", op, ErrInvalidArgument, vp.Width, vp.Height)
	}
	if !unitRange(vp.MinDepth) || !unitRange(vp.MaxDepth) || vp.MinDepth > vp.MaxDepth {
		return fmt.Errorf("%s: %w: depth range [%v, %v]", op, ErrInvalidArgument, vp.MinDepth, vp.MaxDepth)
	}
	if err := e.recordLocked(op, backend.SetViewportCmd{Viewport: vp}); err != nil {
		return err
	}
	e.viewport = vp
	return nil
}

// SetScissorRect sets the scissor rectangle for subsequent draws. An empty
// rectangle is allowed and discards every fragment.
func (e *RenderCommandEncoder) SetScissorRect(r Rect) error {
	const op = "SetScissorRect"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(op); err != nil {
		return err
	}
	if r.Right < r.Left || r.Bottom < r.Top {
		return fmt.Errorf("%s: %w: inverted rect %+v", op, ErrInvalidArgument, r)
	}
	if err := e.recordLocked(op, backend.SetScissorCmd{Rect: r}); err != nil {
		return err
	}
	e.scissor = r
	return nil
}

// SetRenderTargets binds the output attachments for subsequent draws until
// changed again. The slot of a color target is its position in colors.
// depthStencil may be nil.
func (e *RenderCommandEncoder) SetRenderTargets(colors []Texture, depthStencil Texture) error {
	const op = "SetRenderTargets"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(op); err != nil {
		return err
	}
	if len(colors) > MaxColorTargets {
		return fmt.Errorf("%s: %w: %d color targets, max %d", op, ErrInvalidArgument, len(colors), MaxColorTargets)
	}
	for i, c := range colors {
		if c == nil {
			return fmt.Errorf("%s: %w: color target %d is nil", op, ErrInvalidArgument, i)
		}
		if backend.IsDepthStencil(c.Format()) {
			return fmt.Errorf("%s: %w: color target %d has depth format %v", op, ErrInvalidArgument, i, c.Format())
		}
	}
	if depthStencil != nil && !backend.IsDepthStencil(depthStencil.Format()) {
		return fmt.Errorf("%s: %w: depth target has color format %v", op, ErrInvalidArgument, depthStencil.Format())
	}

	bound := append([]Texture(nil), colors...)
	cmd := backend.SetRenderTargetsCmd{Colors: bound, DepthStencil: depthStencil}
	if err := e.recordLocked(op, cmd); err != nil {
		return err
	}
	e.colors = bound
	e.depth = depthStencil
	return nil
}

// ClearColor clears the whole color target to c.
func (e *RenderCommandEncoder) ClearColor(target Texture, c Color) error {
	const op = "ClearColor"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(op); err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%s: %w: nil target", op, ErrInvalidArgument)
	}
	if backend.IsDepthStencil(target.Format()) {
		return fmt.Errorf("%s: %w: target %q has depth format", op, ErrInvalidArgument, target.Label())
	}
	return e.recordLocked(op, backend.ClearColorCmd{Target: target, Color: c})
}

// ClearDepthStencil clears the aspects of target selected by flags.
func (e *RenderCommandEncoder) ClearDepthStencil(target Texture, flags DepthStencilClearFlag, depth float32, stencil uint8) error {
	const op = "ClearDepthStencil"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(op); err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%s: %w: nil target", op, ErrInvalidArgument)
	}
	if !backend.IsDepthStencil(target.Format()) {
		return fmt.Errorf("%s: %w: target %q has color format", op, ErrInvalidArgument, target.Label())
	}
	if flags == 0 || flags&^ClearAll != 0 {
		return fmt.Errorf("%s: %w: flags %v", op, ErrInvalidArgument, flags)
	}
	if flags&ClearDepth != 0 && !unitRange(depth) {
		return fmt.Errorf("%s: %w: depth %v", op, ErrInvalidArgument, depth)
	}
	cmd := backend.ClearDepthStencilCmd{Target: target, Flags: flags, Depth: depth, Stencil: stencil}
	return e.recordLocked(op, cmd)
}

// SetPipelineState binds a pipeline for subsequent draws.
func (e *RenderCommandEncoder) SetPipelineState(p PipelineState) error {
	const op = "SetPipelineState"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(op); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%s: %w: nil pipeline", op, ErrInvalidArgument)
	}
	if err := e.recordLocked(op, backend.SetPipelineCmd{Pipeline: p}); err != nil {
		return err
	}
	e.pipeline = p
	return nil
}

// Draw records a non-indexed draw. Render targets must be bound.
func (e *RenderCommandEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	const op = "Draw"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkDrawLocked(op); err != nil {
		return err
	}
	return e.recordLocked(op, backend.DrawCmd{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// DrawIndexed records an indexed draw. Render targets must be bound.
func (e *RenderCommandEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	const op = "DrawIndexed"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkDrawLocked(op); err != nil {
		return err
	}
	return e.recordLocked(op, backend.DrawIndexedCmd{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

func (e *RenderCommandEncoder) checkDrawLocked(op string) error {
	if err := e.checkLocked(op); err != nil {
		return err
	}
	if len(e.colors) == 0 && e.depth == nil {
		return fmt.Errorf("%s: %w: no render targets bound", op, ErrInvalidState)
	}
	return nil
}

// EndEncoding closes the native list and moves the buffer to Closed. The
// encoder is permanently invalid afterwards; a second call fails with
// ErrEncoderClosed.
func (e *RenderCommandEncoder) EndEncoding() error {
	const op = "EndEncoding"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(op); err != nil {
		return err
	}
	e.closed = true
	if err := e.list.Close(); err != nil {
		return deviceError(op, err)
	}
	if err := e.buffer.endEncoding(e); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Closed reports whether the encoder can no longer record.
func (e *RenderCommandEncoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkLocked("") != nil
}

// Viewport returns the last viewport set.
func (e *RenderCommandEncoder) Viewport() Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// ScissorRect returns the last scissor rectangle set.
func (e *RenderCommandEncoder) ScissorRect() Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scissor
}

// RenderTargets returns the bound color targets and depth/stencil target.
func (e *RenderCommandEncoder) RenderTargets() ([]Texture, Texture) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Texture(nil), e.colors...), e.depth
}

// PipelineState returns the bound pipeline, or nil.
func (e *RenderCommandEncoder) PipelineState() PipelineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline
}

// CommandCount returns the number of commands recorded so far.
func (e *RenderCommandEncoder) CommandCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commands
}

func unitRange(v float32) bool { return v >= 0 && v <= 1 }
