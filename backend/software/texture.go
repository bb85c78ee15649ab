// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/venus/backend"
)

// Texture is a CPU render target. Color textures are backed by an
// image.RGBA; depth/stencil textures by a float32 depth plane and a uint8
// stencil plane.
type Texture struct {
	dev    *Device
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat

	mu      sync.Mutex
	img     *image.RGBA
	depth   []float32
	stencil []uint8
	draws   int
}

var _ backend.Texture = (*Texture)(nil)

// CreateTexture creates a render target of the given format.
func (d *Device) CreateTexture(label string, width, height uint32, format gputypes.TextureFormat) (*Texture, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("create texture %q: %w: %dx%d", label, ErrInvalidSize, width, height)
	}
	t := &Texture{
		dev:    d,
		label:  label,
		width:  width,
		height: height,
		format: format,
	}
	if backend.IsDepthStencil(format) {
		n := int(width) * int(height)
		t.depth = make([]float32, n)
		t.stencil = make([]uint8, n)
	} else {
		t.img = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	}
	return t, nil
}

func (t *Texture) Label() string                  { return t.label }
func (t *Texture) Width() uint32                  { return t.width }
func (t *Texture) Height() uint32                 { return t.height }
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// IsDepthStencil reports whether t holds depth/stencil planes.
func (t *Texture) IsDepthStencil() bool { return t.img == nil }

// Image returns a copy of the color contents, or nil for depth/stencil
// textures.
func (t *Texture) Image() *image.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.img == nil {
		return nil
	}
	out := image.NewRGBA(t.img.Bounds())
	copy(out.Pix, t.img.Pix)
	return out
}

// ColorAt returns the color texel at (x, y).
func (t *Texture) ColorAt(x, y int) color.RGBA {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.img == nil {
		return color.RGBA{}
	}
	return t.img.RGBAAt(x, y)
}

// DepthAt returns the depth value at (x, y).
func (t *Texture) DepthAt(x, y int) float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.depth == nil {
		return 0
	}
	return t.depth[y*int(t.width)+x]
}

// StencilAt returns the stencil value at (x, y).
func (t *Texture) StencilAt(x, y int) uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stencil == nil {
		return 0
	}
	return t.stencil[y*int(t.width)+x]
}

// Draws returns how many draw calls were issued while t was bound.
func (t *Texture) Draws() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draws
}

func (t *Texture) clearColor(c gputypes.Color) error {
	if t.img == nil {
		return fmt.Errorf("clear color %q: %w: depth/stencil format %v", t.label, ErrInvalidTarget, t.format)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	draw.Draw(t.img, t.img.Bounds(), image.NewUniform(toRGBA(c)), image.Point{}, draw.Src)
	return nil
}

func (t *Texture) clearDepthStencil(flags backend.DepthStencilClearFlag, depth float32, stencil uint8) error {
	if t.img != nil {
		return fmt.Errorf("clear depth/stencil %q: %w: color format %v", t.label, ErrInvalidTarget, t.format)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if flags&backend.ClearDepth != 0 {
		for i := range t.depth {
			t.depth[i] = depth
		}
	}
	if flags&backend.ClearStencil != 0 {
		for i := range t.stencil {
			t.stencil[i] = stencil
		}
	}
	return nil
}

func (t *Texture) addDraw() {
	t.mu.Lock()
	t.draws++
	t.mu.Unlock()
}

// toRGBA converts a normalized color to 8-bit RGBA.
func toRGBA(c gputypes.Color) color.RGBA {
	return color.RGBA{
		R: unorm8(float64(c.R)),
		G: unorm8(float64(c.G)),
		B: unorm8(float64(c.B)),
		A: unorm8(float64(c.A)),
	}
}

func unorm8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
