// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/venus/internal/parallel"
)

// RecordFunc records the commands of one secondary buffer. The encoder is
// ended by RecordParallel after the function returns.
type RecordFunc func(index int, enc *RenderCommandEncoder) error

// RecordParallel records n secondary buffers concurrently on the device's
// worker pool and appends them to primary in index order, so they execute
// after primary's own commands regardless of which goroutine finished
// first.
//
// The queue needs room for n more buffers (see WithMaxInFlight). On any
// failure every secondary is released and primary is left unchanged.
func RecordParallel(ctx context.Context, primary *CommandBuffer, n int, pipeline PipelineState, record RecordFunc) error {
	const op = "RecordParallel"
	if primary == nil || record == nil {
		return fmt.Errorf("%s: %w: nil buffer or record function", op, ErrInvalidArgument)
	}
	if n <= 0 {
		return nil
	}

	switch st := primary.State(); st {
	case BufferIdle, BufferRecording, BufferClosed:
	default:
		return fmt.Errorf("%s: %w: primary is %s", op, ErrInvalidState, st)
	}

	q := primary.Queue()
	pool, err := q.Device().workerPool()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	secondaries := make([]*CommandBuffer, 0, n)
	release := func() {
		for _, sec := range secondaries {
			if err := sec.Release(); err != nil {
				Logger().Warn("venus: release secondary", "err", err)
			}
		}
	}

	for range n {
		sec, err := q.CreateCommandBuffer()
		if err != nil {
			release()
			return fmt.Errorf("%s: %w", op, err)
		}
		secondaries = append(secondaries, sec)
	}

	tasks := make([]parallel.Task, n)
	for i, sec := range secondaries {
		tasks[i] = func() error {
			enc, err := sec.CreateRenderCommandEncoder(pipeline)
			if err != nil {
				return err
			}
			if err := record(i, enc); err != nil {
				return err
			}
			// The record function may have ended the encoder itself.
			if err := enc.EndEncoding(); err != nil && !errors.Is(err, ErrEncoderClosed) {
				return err
			}
			return nil
		}
	}

	if err := pool.Run(ctx, tasks); err != nil {
		release()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := primary.addEncoded(op, secondaries); err != nil {
		release()
		return err
	}
	Logger().Debug("venus: parallel recording", "buffers", n, "workers", pool.Workers())
	return nil
}
