// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/venus/backend"
)

// Execution records one completed submission.
type Execution struct {
	// Seq is the 1-based submission number on the queue.
	Seq uint64

	// Lists holds the IDs of the executed lists, in execution order.
	Lists []uint64

	// Commands is the total number of commands executed.
	Commands int

	// Draws is the number of draw commands executed.
	Draws int

	// FenceValue is the value the fence was signaled to (0 without fence).
	FenceValue uint64
}

type submission struct {
	seq   uint64
	lists []*List
	fence *Fence
	value uint64
}

// Queue executes submissions on a dedicated goroutine in strict FIFO
// order.
type Queue struct {
	dev   *Device
	class backend.ListClass

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []submission
	running  bool
	paused   bool
	closed   bool
	seq      uint64
	executed []Execution

	wg sync.WaitGroup
}

var _ backend.Queue = (*Queue)(nil)

func newQueue(dev *Device, class backend.ListClass) *Queue {
	q := &Queue{dev: dev, class: class}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(1)
	go q.run()
	return q
}

// Class returns the queue's execution class.
func (q *Queue) Class() backend.ListClass { return q.class }

// Submit validates lists and appends them to the execution order. It
// never blocks on execution.
func (q *Queue) Submit(lists []backend.List, fence backend.Fence, value uint64) error {
	if err := q.dev.check(); err != nil {
		return err
	}

	sub := submission{lists: make([]*List, 0, len(lists)), value: value}
	for i, bl := range lists {
		l, ok := bl.(*List)
		if !ok || l == nil || l.dev != q.dev {
			return fmt.Errorf("submit list %d: %w", i, backend.ErrForeignObject)
		}
		if l.class != q.class {
			return fmt.Errorf("submit list %d: %w: list %v, queue %v", i, backend.ErrClassMismatch, l.class, q.class)
		}
		if l.Recording() {
			return fmt.Errorf("submit list %d: %w", i, backend.ErrListNotClosed)
		}
		sub.lists = append(sub.lists, l)
	}
	if fence != nil {
		f, ok := fence.(*Fence)
		if !ok || f == nil || f.dev != q.dev {
			return fmt.Errorf("submit fence: %w", backend.ErrForeignObject)
		}
		sub.fence = f
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrDestroyed
	}
	q.seq++
	sub.seq = q.seq
	q.pending = append(q.pending, sub)
	q.cond.Broadcast()
	return nil
}

// Pause stops the executor before its next submission. Submissions keep
// queueing; their fences stay unsignaled until Resume.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume restarts a paused executor.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Pending returns the number of submissions not yet executed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.running {
		n++
	}
	return n
}

// Executed returns the completed submissions in execution order.
func (q *Queue) Executed() []Execution {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Execution(nil), q.executed...)
}

// Destroy drains pending submissions and stops the executor.
func (q *Queue) Destroy() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.paused = false
	q.cond.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for (len(q.pending) == 0 || q.paused) && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		sub := q.pending[0]
		q.pending[0] = submission{}
		q.pending = q.pending[1:]
		q.running = true
		q.mu.Unlock()

		exec, err := q.execute(sub)

		q.mu.Lock()
		q.running = false
		if err == nil {
			q.executed = append(q.executed, exec)
		}
		q.mu.Unlock()

		if err != nil {
			q.dev.markLost(err)
			continue
		}
		if q.dev.opts.latency > 0 {
			time.Sleep(q.dev.opts.latency)
		}
		if sub.fence != nil {
			sub.fence.Signal(sub.value)
		}
	}
}

// execute runs every list of sub against fresh pipeline state.
func (q *Queue) execute(sub submission) (Execution, error) {
	exec := Execution{Seq: sub.seq, FenceValue: sub.value}
	if sub.fence == nil {
		exec.FenceValue = 0
	}
	if err := q.dev.lostErr(); err != nil {
		return exec, err
	}

	for _, l := range sub.lists {
		cmds, err := l.Commands()
		if err != nil {
			return exec, fmt.Errorf("execute list %d: %w", l.id, err)
		}
		st := execState{dev: q.dev}
		for _, cmd := range cmds {
			if err := st.apply(cmd); err != nil {
				return exec, fmt.Errorf("execute list %d: %v: %w", l.id, cmd.Kind(), err)
			}
		}
		exec.Lists = append(exec.Lists, l.id)
		exec.Commands += len(cmds)
		exec.Draws += st.draws
	}

	slogger().Debug("software: executed submission",
		"seq", exec.Seq, "lists", len(exec.Lists), "commands", exec.Commands, "fence", exec.FenceValue)
	return exec, nil
}

// execState is the pipeline state of one list during execution. Lists do
// not inherit state from each other.
type execState struct {
	dev      *Device
	pipeline backend.PipelineState
	viewport backend.Viewport
	scissor  backend.Rect
	colors   []*Texture
	depth    *Texture
	draws    int
}

func (s *execState) apply(cmd backend.Command) error {
	switch c := cmd.(type) {
	case backend.SetPipelineCmd:
		s.pipeline = c.Pipeline
	case backend.SetViewportCmd:
		s.viewport = c.Viewport
	case backend.SetScissorCmd:
		s.scissor = c.Rect
	case backend.ClearColorCmd:
		t, err := s.dev.texture(c.Target)
		if err != nil {
			return err
		}
		return t.clearColor(c.Color)
	case backend.ClearDepthStencilCmd:
		t, err := s.dev.texture(c.Target)
		if err != nil {
			return err
		}
		return t.clearDepthStencil(c.Flags, c.Depth, c.Stencil)
	case backend.SetRenderTargetsCmd:
		colors := make([]*Texture, 0, len(c.Colors))
		for _, ct := range c.Colors {
			t, err := s.dev.texture(ct)
			if err != nil {
				return err
			}
			if t.IsDepthStencil() {
				return fmt.Errorf("%w: %q bound as color", ErrInvalidTarget, t.label)
			}
			colors = append(colors, t)
		}
		var depth *Texture
		if c.DepthStencil != nil {
			t, err := s.dev.texture(c.DepthStencil)
			if err != nil {
				return err
			}
			if !t.IsDepthStencil() {
				return fmt.Errorf("%w: %q bound as depth/stencil", ErrInvalidTarget, t.label)
			}
			depth = t
		}
		s.colors, s.depth = colors, depth
	case backend.DrawCmd, backend.DrawIndexedCmd:
		s.draws++
		for _, t := range s.colors {
			t.addDraw()
		}
		if s.depth != nil {
			s.depth.addDraw()
		}
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
	return nil
}
