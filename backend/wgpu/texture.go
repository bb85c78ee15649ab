//go:build !nogpu

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/venus/backend"
)

// Texture is a render attachment backed by a HAL texture view.
type Texture struct {
	dev    *Device
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat

	tex   hal.Texture // nil for wrapped views
	view  hal.TextureView
	owned bool
}

var _ backend.Texture = (*Texture)(nil)

// CreateTexture allocates a 2D render attachment and its default view.
func (d *Device) CreateTexture(label string, width, height uint32, format gputypes.TextureFormat) (*Texture, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("create texture %q: invalid size %dx%d", label, width, height)
	}
	usage := gputypes.TextureUsageRenderAttachment
	if !backend.IsDepthStencil(format) {
		usage |= gputypes.TextureUsageCopySrc
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view %q: %w", label, err)
	}
	return &Texture{
		dev:    d,
		label:  label,
		width:  width,
		height: height,
		format: format,
		tex:    tex,
		view:   view,
		owned:  true,
	}, nil
}

// WrapTextureView wraps a view owned by someone else, such as a surface
// texture acquired from a window.
func (d *Device) WrapTextureView(label string, view hal.TextureView, width, height uint32, format gputypes.TextureFormat) *Texture {
	return &Texture{
		dev:    d,
		label:  label,
		width:  width,
		height: height,
		format: format,
		view:   view,
	}
}

func (t *Texture) Label() string                  { return t.label }
func (t *Texture) Width() uint32                  { return t.width }
func (t *Texture) Height() uint32                 { return t.height }
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// View returns the HAL view used as an attachment.
func (t *Texture) View() hal.TextureView { return t.view }

// Destroy releases the HAL objects of an owned texture.
func (t *Texture) Destroy() {
	if !t.owned {
		return
	}
	if t.view != nil {
		t.dev.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.dev.device.DestroyTexture(t.tex)
		t.tex = nil
	}
	t.owned = false
}

// Pipeline wraps a HAL render pipeline so it can travel through the
// backend-neutral command stream.
type Pipeline struct {
	label    string
	pipeline hal.RenderPipeline
}

var _ backend.PipelineState = (*Pipeline)(nil)

// NewPipeline wraps p.
func NewPipeline(label string, p hal.RenderPipeline) *Pipeline {
	return &Pipeline{label: label, pipeline: p}
}

// Label returns the pipeline label.
func (p *Pipeline) Label() string { return p.label }

// SwapChain is an offscreen chain of HAL render targets. Windowed
// presentation goes through the surface owned by the gpucontext provider;
// this chain covers headless rendering and tests.
type SwapChain struct {
	dev    *Device
	colors []*Texture
	depth  *Texture

	mu        sync.Mutex
	current   int
	presented int
	destroyed bool
}

var _ backend.SwapChain = (*SwapChain)(nil)

// CreateSwapChain creates desc.BufferCount color targets sized to window.
func (d *Device) CreateSwapChain(queue backend.Queue, window backend.Window, desc backend.SwapChainDesc) (backend.SwapChain, error) {
	q, ok := queue.(*Queue)
	if !ok || q == nil || q.dev != d {
		return nil, fmt.Errorf("create swap chain: %w", backend.ErrForeignObject)
	}
	if window == nil || window.Width() <= 0 || window.Height() <= 0 {
		return nil, fmt.Errorf("create swap chain: invalid window size")
	}
	if desc.BufferCount < 2 {
		desc.BufferCount = 2
	}
	w, h := uint32(window.Width()), uint32(window.Height())

	sc := &SwapChain{dev: d}
	for i := 0; i < desc.BufferCount; i++ {
		t, err := d.CreateTexture(fmt.Sprintf("swapchain_color_%d", i), w, h, desc.ColorFormat)
		if err != nil {
			sc.Destroy()
			return nil, fmt.Errorf("create swap chain: %w", err)
		}
		sc.colors = append(sc.colors, t)
	}
	if backend.IsDepthStencil(desc.DepthStencilFormat) {
		t, err := d.CreateTexture("swapchain_depth", w, h, desc.DepthStencilFormat)
		if err != nil {
			sc.Destroy()
			return nil, fmt.Errorf("create swap chain: %w", err)
		}
		sc.depth = t
	}
	return sc, nil
}

// CurrentColorTexture returns the back buffer.
func (sc *SwapChain) CurrentColorTexture() backend.Texture {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.colors[sc.current]
}

// DepthStencilTexture returns the depth target, or nil.
func (sc *SwapChain) DepthStencilTexture() backend.Texture {
	if sc.depth == nil {
		return nil
	}
	return sc.depth
}

// Present advances to the next back buffer.
func (sc *SwapChain) Present() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return ErrDestroyed
	}
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

// Destroy releases every target of the chain.
func (sc *SwapChain) Destroy() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	for _, t := range sc.colors {
		t.Destroy()
	}
	if sc.depth != nil {
		sc.depth.Destroy()
	}
}
