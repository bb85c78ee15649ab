//go:build !nogpu

package wgpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/venus/backend"
)

// fencePollInterval is how often Fence.Wait polls the HAL queue.
const fencePollInterval = 10 * time.Millisecond

// Queue submits encoded lists to the device's hal.Queue.
type Queue struct {
	dev   *Device
	class backend.ListClass
}

var _ backend.Queue = (*Queue)(nil)

// Class returns the queue's execution class.
func (q *Queue) Class() backend.ListClass { return q.class }

// Submit hands the lists' command buffers to HAL in order and signals
// fence to value when they complete.
func (q *Queue) Submit(lists []backend.List, fence backend.Fence, value uint64) error {
	if err := q.dev.check(); err != nil {
		return err
	}

	bufs := make([]hal.CommandBuffer, 0, len(lists))
	for i, bl := range lists {
		l, ok := bl.(*List)
		if !ok || l == nil || l.dev != q.dev {
			return fmt.Errorf("submit list %d: %w", i, backend.ErrForeignObject)
		}
		if l.class != q.class {
			return fmt.Errorf("submit list %d: %w: list %v, queue %v", i, backend.ErrClassMismatch, l.class, q.class)
		}
		cb, err := l.commandBuffer()
		if err != nil {
			return fmt.Errorf("submit list %d: %w", i, err)
		}
		bufs = append(bufs, cb)
	}

	var f *Fence
	if fence != nil {
		var ok bool
		f, ok = fence.(*Fence)
		if !ok || f == nil || f.dev != q.dev {
			return fmt.Errorf("submit fence: %w", backend.ErrForeignObject)
		}
	}

	// The submission index and the fence value are recorded under the same
	// lock so pending values stay in submission order.
	q.dev.submitMu.Lock()
	defer q.dev.submitMu.Unlock()
	index, err := q.dev.queue.Submit(bufs)
	if err != nil {
		q.dev.markLost(err)
		return fmt.Errorf("%w: submit: %w", backend.ErrDeviceLost, err)
	}
	if f != nil {
		f.submitted(value, index)
	}
	return nil
}

// Destroy is a no-op: the hal.Queue belongs to the device.
func (q *Queue) Destroy() {}

// submission pairs a fence value with the HAL submission index that
// signals it.
type submission struct {
	value uint64
	index uint64
}

// Fence maps fence values onto HAL submission indices. A value is reached
// once hal.Queue.PollCompleted reports its submission index.
type Fence struct {
	dev *Device

	mu        sync.Mutex
	completed uint64
	pending   []submission
	destroyed bool
}

var _ backend.Fence = (*Fence)(nil)

func (f *Fence) submitted(value, index uint64) {
	f.mu.Lock()
	f.pending = append(f.pending, submission{value: value, index: index})
	f.mu.Unlock()
}

// CompletedValue polls HAL without blocking.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollLocked()
	return f.completed
}

// pollLocked advances completed through every pending submission HAL
// reports finished.
func (f *Fence) pollLocked() {
	if len(f.pending) == 0 || f.destroyed {
		return
	}
	done := f.dev.queue.PollCompleted()
	n := 0
	for _, sub := range f.pending {
		if sub.index > done {
			break
		}
		if sub.value > f.completed {
			f.completed = sub.value
		}
		n++
	}
	f.pending = f.pending[n:]
}

// Wait blocks until the fence reaches value or ctx is done.
func (f *Fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.destroyed {
			f.mu.Unlock()
			return ErrDestroyed
		}
		f.pollLocked()
		done := f.completed >= value
		f.mu.Unlock()

		if done {
			return nil
		}
		if err := f.dev.check(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(fencePollInterval):
		}
	}
}

// Destroy stops tracking. Pending submissions are forgotten.
func (f *Fence) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	f.pending = nil
}
