// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/venus/backend"
)

// SwapChain rotates through BufferCount CPU color targets and owns an
// optional depth/stencil target.
type SwapChain struct {
	dev    *Device
	queue  *Queue
	colors []*Texture
	depth  *Texture

	mu        sync.Mutex
	current   int
	presented int
	last      *Texture
	destroyed bool
}

var _ backend.SwapChain = (*SwapChain)(nil)

// CreateSwapChain creates a swap chain sized to window.
func (d *Device) CreateSwapChain(queue backend.Queue, window backend.Window, desc backend.SwapChainDesc) (backend.SwapChain, error) {
	q, ok := queue.(*Queue)
	if !ok || q == nil || q.dev != d {
		return nil, fmt.Errorf("create swap chain: %w", backend.ErrForeignObject)
	}
	if window == nil || window.Width() <= 0 || window.Height() <= 0 {
		return nil, fmt.Errorf("create swap chain: %w", ErrInvalidSize)
	}
	if desc.BufferCount < 2 {
		desc.BufferCount = 2
	}
	w, h := uint32(window.Width()), uint32(window.Height())

	sc := &SwapChain{dev: d, queue: q}
	for i := 0; i < desc.BufferCount; i++ {
		t, err := d.CreateTexture(fmt.Sprintf("swapchain-color-%d", i), w, h, desc.ColorFormat)
		if err != nil {
			return nil, fmt.Errorf("create swap chain: %w", err)
		}
		sc.colors = append(sc.colors, t)
	}
	if backend.IsDepthStencil(desc.DepthStencilFormat) {
		t, err := d.CreateTexture("swapchain-depth", w, h, desc.DepthStencilFormat)
		if err != nil {
			return nil, fmt.Errorf("create swap chain: %w", err)
		}
		sc.depth = t
	}

	slogger().Debug("software: swap chain created",
		"width", w, "height", h, "buffers", desc.BufferCount, "depth", sc.depth != nil)
	return sc, nil
}

// CurrentColorTexture returns the back buffer for the next frame.
func (sc *SwapChain) CurrentColorTexture() backend.Texture {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.colors[sc.current]
}

// DepthStencilTexture returns the depth/stencil target, or nil.
func (sc *SwapChain) DepthStencilTexture() backend.Texture {
	if sc.depth == nil {
		return nil
	}
	return sc.depth
}

// Present flips to the next back buffer. Content is not synchronized with
// the queue; callers present after the frame's fence completes.
func (sc *SwapChain) Present() error {
	if err := sc.dev.check(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return ErrDestroyed
	}
	sc.last = sc.colors[sc.current]
	sc.current = (sc.current + 1) % len(sc.colors)
	sc.presented++
	return nil
}

// Presented returns the number of Present calls.
func (sc *SwapChain) Presented() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.presented
}

// LastPresented returns the most recently presented color buffer, or nil.
func (sc *SwapChain) LastPresented() *Texture {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.last
}

// Destroy marks the chain unusable. Present fails afterwards.
func (sc *SwapChain) Destroy() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.destroyed = true
}
