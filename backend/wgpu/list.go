//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/venus/backend"
	"github.com/gogpu/wgpu/hal"
)

// Allocator owns the HAL command buffers produced by the lists recorded
// into it. Reset frees them all.
type Allocator struct {
	dev   *Device
	class backend.ListClass

	mu        sync.Mutex
	buffers   []hal.CommandBuffer
	destroyed bool
}

var _ backend.Allocator = (*Allocator)(nil)

// Class returns the allocator's execution class.
func (a *Allocator) Class() backend.ListClass { return a.class }

// Reset frees every command buffer encoded from this allocator.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	a.freeLocked()
	return nil
}

// Buffers returns the number of live HAL command buffers.
func (a *Allocator) Buffers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

// Destroy frees every command buffer.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLocked()
	a.destroyed = true
}

func (a *Allocator) freeLocked() {
	for _, cb := range a.buffers {
		a.dev.device.FreeCommandBuffer(cb)
	}
	clear(a.buffers)
	a.buffers = a.buffers[:0]
}

func (a *Allocator) adopt(cb hal.CommandBuffer) {
	a.mu.Lock()
	a.buffers = append(a.buffers, cb)
	a.mu.Unlock()
}

// List validates commands as they are recorded and encodes them into a
// HAL command buffer on Close.
type List struct {
	dev   *Device
	id    uint64
	class backend.ListClass

	mu         sync.Mutex
	alloc      *Allocator
	cmds       []backend.Command
	recording  bool
	hasTargets bool
	cmdBuf     hal.CommandBuffer
}

var _ backend.List = (*List)(nil)

// Class returns the list's execution class.
func (l *List) Class() backend.ListClass { return l.class }

// Reset starts a new recording into alloc.
func (l *List) Reset(alloc backend.Allocator, pipeline backend.PipelineState) error {
	a, err := l.dev.allocator(alloc)
	if err != nil {
		return fmt.Errorf("list reset: %w", err)
	}
	if a.class != l.class {
		return fmt.Errorf("list reset: %w: list %v, allocator %v", backend.ErrClassMismatch, l.class, a.class)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recording {
		return fmt.Errorf("list reset: %w", backend.ErrListNotClosed)
	}
	l.alloc = a
	clear(l.cmds)
	l.cmds = l.cmds[:0]
	l.cmdBuf = nil
	l.hasTargets = false
	l.recording = true
	if pipeline != nil {
		return l.recordLocked(backend.SetPipelineCmd{Pipeline: pipeline})
	}
	return nil
}

// Record validates cmd and appends it.
func (l *List) Record(cmd backend.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordLocked(cmd)
}

func (l *List) recordLocked(cmd backend.Command) error {
	if !l.recording {
		return backend.ErrListClosed
	}
	if err := l.validateLocked(cmd); err != nil {
		return fmt.Errorf("record %v: %w", cmd.Kind(), err)
	}
	l.cmds = append(l.cmds, cmd)
	return nil
}

func (l *List) validateLocked(cmd backend.Command) error {
	switch c := cmd.(type) {
	case backend.SetPipelineCmd:
		if c.Pipeline == nil {
			return nil
		}
		if _, ok := c.Pipeline.(*Pipeline); !ok {
			return fmt.Errorf("pipeline %T: %w", c.Pipeline, backend.ErrForeignObject)
		}
	case backend.ClearColorCmd:
		t, err := l.dev.texture(c.Target)
		if err != nil {
			return err
		}
		if backend.IsDepthStencil(t.format) {
			return fmt.Errorf("%w: %q is depth/stencil", ErrInvalidTarget, t.label)
		}
	case backend.ClearDepthStencilCmd:
		t, err := l.dev.texture(c.Target)
		if err != nil {
			return err
		}
		if !backend.IsDepthStencil(t.format) {
			return fmt.Errorf("%w: %q is not depth/stencil", ErrInvalidTarget, t.label)
		}
	case backend.SetRenderTargetsCmd:
		if len(c.Colors) > MaxColorTargets {
			return fmt.Errorf("%w: %d > %d", ErrTooManyTargets, len(c.Colors), MaxColorTargets)
		}
		for _, ct := range c.Colors {
			t, err := l.dev.texture(ct)
			if err != nil {
				return err
			}
			if backend.IsDepthStencil(t.format) {
				return fmt.Errorf("%w: %q bound as color", ErrInvalidTarget, t.label)
			}
		}
		if c.DepthStencil != nil {
			t, err := l.dev.texture(c.DepthStencil)
			if err != nil {
				return err
			}
			if !backend.IsDepthStencil(t.format) {
				return fmt.Errorf("%w: %q bound as depth/stencil", ErrInvalidTarget, t.label)
			}
		}
		l.hasTargets = len(c.Colors) > 0 || c.DepthStencil != nil
	case backend.DrawCmd, backend.DrawIndexedCmd:
		if !l.hasTargets {
			return ErrNoRenderPass
		}
	}
	return nil
}

// Close encodes the recorded commands into a HAL command buffer owned by
// the list's allocator.
func (l *List) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.recording {
		return backend.ErrListClosed
	}
	l.recording = false

	cb, err := l.encodeLocked()
	if err != nil {
		return fmt.Errorf("close list %d: %w", l.id, err)
	}
	l.cmdBuf = cb
	l.alloc.adopt(cb)
	return nil
}

func (l *List) encodeLocked() (hal.CommandBuffer, error) {
	label := fmt.Sprintf("venus_list_%d", l.id)
	encoder, err := l.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	tr := newTranslator(halEncoder{enc: encoder})
	for _, cmd := range l.cmds {
		tr.apply(cmd)
	}
	tr.finish()

	cb, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	slogger().Debug("wgpu: list encoded", "list", l.id, "commands", len(l.cmds), "passes", tr.passes)
	return cb, nil
}

// Len returns the number of recorded commands.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cmds)
}

func (l *List) commandBuffer() (hal.CommandBuffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recording {
		return nil, backend.ErrListNotClosed
	}
	if l.cmdBuf == nil {
		return nil, fmt.Errorf("list %d: never recorded", l.id)
	}
	return l.cmdBuf, nil
}

// Destroy drops the list. Its command buffer stays with the allocator.
func (l *List) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recording = false
	l.cmds = nil
	l.cmdBuf = nil
}
