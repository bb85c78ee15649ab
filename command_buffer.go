// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/venus/backend"
)

// BufferState is the lifecycle state of a CommandBuffer.
//
//	Idle -> Recording -> Closed -> Committed -> (recycled) -> Idle
type BufferState uint8

const (
	// BufferIdle is a checked-out buffer with no open encoder.
	BufferIdle BufferState = iota

	// BufferRecording has one open encoder.
	BufferRecording

	// BufferClosed has finished recording and can be committed.
	BufferClosed

	// BufferCommitted was submitted to its queue.
	BufferCommitted

	// BufferReleased is reported by handles whose slot went back to the
	// queue's pool. Every operation on such a handle fails.
	BufferReleased
)

// String returns the string representation of BufferState.
func (s BufferState) String() string {
	switch s {
	case BufferIdle:
		return "Idle"
	case BufferRecording:
		return "Recording"
	case BufferClosed:
		return "Closed"
	case BufferCommitted:
		return "Committed"
	case BufferReleased:
		return "Released"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// bufferSlot is a pooled command buffer owned by its queue. All fields
// except gen are guarded by the queue mutex.
type bufferSlot struct {
	list *CommandList

	// gen is bumped every time the slot is recycled. Handles and encoders
	// carrying an older generation are stale.
	gen atomic.Uint64

	// handle is the CommandBuffer that checked the slot out.
	handle *CommandBuffer

	state       BufferState
	fenceValue  uint64
	encoder     *RenderCommandEncoder
	secondaries []*bufferSlot
	attached    bool
}

// CommandBuffer is a checked-out handle to one pooled recording unit.
//
// The canonical frame is:
//
//	cb, err := q.CreateCommandBuffer()
//	enc, err := cb.CreateRenderCommandEncoder(nil)
//	enc.SetViewport(...)
//	enc.ClearColor(...)
//	enc.EndEncoding()
//	cb.Commit()
//	q.WaitComplete()
//
// A handle becomes stale once its slot is recycled, either by Release or
// by the queue reclaiming completed work; operations on a stale handle fail
// with ErrInvalidState. Fence queries keep working on stale handles.
type CommandBuffer struct {
	queue *CommandQueue
	slot  *bufferSlot
	gen   uint64

	fenceValue atomic.Uint64
}

// Queue returns the queue the buffer was created from.
func (cb *CommandBuffer) Queue() *CommandQueue { return cb.queue }

// Class returns the execution class of the buffer.
func (cb *CommandBuffer) Class() ListClass { return cb.queue.class }

// State returns the current lifecycle state.
func (cb *CommandBuffer) State() BufferState {
	q := cb.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if cb.staleLocked() {
		return BufferReleased
	}
	return cb.slot.state
}

func (cb *CommandBuffer) staleLocked() bool {
	return cb.slot.gen.Load() != cb.gen
}

// checkLocked validates the handle for a state-changing operation.
func (cb *CommandBuffer) checkLocked(op string) error {
	if cb.queue.closed {
		return fmt.Errorf("%s: %w", op, ErrDeviceClosed)
	}
	if cb.staleLocked() {
		return fmt.Errorf("%s: %w: buffer was released", op, ErrInvalidState)
	}
	return nil
}

// CreateRenderCommandEncoder resets the buffer's list and opens an encoder
// on it. pipeline may be nil. It is legal only in the Idle state and only
// for graphics buffers.
func (cb *CommandBuffer) CreateRenderCommandEncoder(pipeline PipelineState) (*RenderCommandEncoder, error) {
	const op = "CreateRenderCommandEncoder"
	q := cb.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := cb.checkLocked(op); err != nil {
		return nil, err
	}
	if q.class != ListClassGraphics {
		return nil, fmt.Errorf("%s: %w: %s buffer", op, ErrIncompatibleClass, q.class)
	}
	s := cb.slot
	if s.state != BufferIdle {
		return nil, fmt.Errorf("%s: %w: buffer is %s", op, ErrInvalidState, s.state)
	}
	if err := s.list.Begin(pipeline); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	enc := newRenderCommandEncoder(cb, pipeline)
	s.state = BufferRecording
	s.encoder = enc
	return enc, nil
}

// endEncoding moves the buffer from Recording to Closed. Called by the
// encoder after the native list was closed.
func (cb *CommandBuffer) endEncoding(enc *RenderCommandEncoder) error {
	q := cb.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	s := cb.slot
	if cb.staleLocked() || s.encoder != enc {
		return ErrEncoderClosed
	}
	if s.state != BufferRecording {
		return fmt.Errorf("%s: %w: buffer is %s", "EndEncoding", ErrInvalidState, s.state)
	}
	s.state = BufferClosed
	s.encoder = nil
	return nil
}

// Commit submits the buffer to its queue. It is legal only in the Closed
// state; nothing is submitted when it fails. The primary list executes
// first, followed by lists added with AddEncodedCommandList in insertion
// order.
func (cb *CommandBuffer) Commit() error {
	const op = "Commit"
	q := cb.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := cb.checkLocked(op); err != nil {
		return err
	}
	s := cb.slot
	if s.attached {
		return fmt.Errorf("%s: %w: buffer is attached to another buffer", op, ErrInvalidState)
	}
	if s.state != BufferClosed {
		return fmt.Errorf("%s: %w: buffer is %s", op, ErrInvalidState, s.state)
	}

	lists := make([]backend.List, 0, 1+len(s.secondaries))
	lists = append(lists, s.list.Native())
	for _, sec := range s.secondaries {
		lists = append(lists, sec.list.Native())
	}

	value := q.lastSubmitted + 1
	if err := q.native.Submit(lists, q.fence, value); err != nil {
		return deviceError(op, err)
	}
	q.lastSubmitted = value

	s.state = BufferCommitted
	s.fenceValue = value
	s.list.Track(q.fence, value)
	for _, sec := range s.secondaries {
		sec.state = BufferCommitted
		sec.fenceValue = value
		sec.list.Track(q.fence, value)
		sec.handle.fenceValue.Store(value)
	}
	cb.fenceValue.Store(value)
	q.pending = append(q.pending, s)
	q.stats.Committed++

	Logger().Debug("venus: commit",
		"queue", q.opts.label, "fence", value, "lists", len(lists))
	return nil
}

// Release returns a buffer that was never committed to the queue's pool.
// An open encoder is invalidated and recorded work is discarded, including
// lists added with AddEncodedCommandList. Committed buffers are recycled by
// the queue once their work completes and cannot be released.
func (cb *CommandBuffer) Release() error {
	const op = "Release"
	q := cb.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := cb.checkLocked(op); err != nil {
		return err
	}
	s := cb.slot
	if s.attached {
		return fmt.Errorf("%s: %w: buffer is attached to another buffer", op, ErrInvalidState)
	}
	if s.state == BufferCommitted {
		return fmt.Errorf("%s: %w: buffer is %s", op, ErrInvalidState, s.state)
	}

	if s.state != BufferIdle {
		q.stats.Discarded++
		Logger().Warn("venus: discarding recorded work",
			"queue", q.opts.label, "state", s.state, "attached", len(s.secondaries))
	}
	q.recycleLocked(s)
	return nil
}

// AddEncodedCommandList appends a separately recorded buffer to this
// buffer's submission. secondary must come from the same queue and be
// Closed; it executes after this buffer's own list and after every
// previously added list. The secondary handle can no longer be committed
// or released on its own. Legal until Commit.
func (cb *CommandBuffer) AddEncodedCommandList(secondary *CommandBuffer) error {
	return cb.addEncoded("AddEncodedCommandList", []*CommandBuffer{secondary})
}

// addEncoded attaches secondaries in order. Either all of them are
// attached or none is.
func (cb *CommandBuffer) addEncoded(op string, secondaries []*CommandBuffer) error {
	for _, secondary := range secondaries {
		if secondary == nil {
			return fmt.Errorf("%s: %w: nil buffer", op, ErrInvalidArgument)
		}
		if secondary.queue != cb.queue {
			return fmt.Errorf("%s: %w: buffer belongs to another queue", op, ErrInvalidArgument)
		}
		if secondary.slot == cb.slot {
			return fmt.Errorf("%s: %w: buffer added to itself", op, ErrInvalidArgument)
		}
	}

	q := cb.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := cb.checkLocked(op); err != nil {
		return err
	}
	s := cb.slot
	if s.attached {
		return fmt.Errorf("%s: %w: buffer is attached to another buffer", op, ErrInvalidState)
	}
	if s.state == BufferCommitted {
		return fmt.Errorf("%s: %w: buffer is %s", op, ErrInvalidState, s.state)
	}
	seen := make(map[*bufferSlot]bool, len(secondaries))
	for _, secondary := range secondaries {
		if secondary.staleLocked() {
			return fmt.Errorf("%s: %w: secondary was released", op, ErrInvalidState)
		}
		sec := secondary.slot
		if sec.attached || seen[sec] {
			return fmt.Errorf("%s: %w: secondary is already attached", op, ErrInvalidState)
		}
		if sec.state != BufferClosed {
			return fmt.Errorf("%s: %w: secondary is %s", op, ErrInvalidState, sec.state)
		}
		seen[sec] = true
	}

	for _, secondary := range secondaries {
		// Lists previously added to the secondary keep their order behind it.
		sec := secondary.slot
		sec.attached = true
		s.secondaries = append(s.secondaries, sec)
		s.secondaries = append(s.secondaries, sec.secondaries...)
		sec.secondaries = nil
	}
	return nil
}

// EncodedCommandLists returns the number of lists added with
// AddEncodedCommandList.
func (cb *CommandBuffer) EncodedCommandLists() int {
	q := cb.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if cb.staleLocked() {
		return 0
	}
	return len(cb.slot.secondaries)
}

// FenceValue returns the queue fence value the buffer's work signals, or 0
// if it was never committed. A buffer added with AddEncodedCommandList
// shares the fence value of the buffer it was added to.
func (cb *CommandBuffer) FenceValue() uint64 { return cb.fenceValue.Load() }

// Completed reports whether the committed work finished executing. It
// never blocks.
func (cb *CommandBuffer) Completed() bool {
	v := cb.fenceValue.Load()
	return v != 0 && cb.queue.IsComplete(v)
}

// Wait blocks until the committed work finished or ctx is done.
func (cb *CommandBuffer) Wait(ctx context.Context) error {
	v := cb.fenceValue.Load()
	if v == 0 {
		return fmt.Errorf("%s: %w: buffer was not committed", "Wait", ErrInvalidState)
	}
	return cb.queue.WaitFence(ctx, v)
}
