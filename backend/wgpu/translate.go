//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/venus/backend"
)

// renderPass is the subset of hal.RenderPassEncoder the translator drives.
type renderPass interface {
	SetPipeline(pipeline hal.RenderPipeline)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End()
}

// passEncoder opens render passes.
type passEncoder interface {
	beginRenderPass(desc *hal.RenderPassDescriptor) renderPass
}

// halEncoder adapts hal.CommandEncoder to passEncoder.
type halEncoder struct {
	enc hal.CommandEncoder
}

func (e halEncoder) beginRenderPass(desc *hal.RenderPassDescriptor) renderPass {
	return e.enc.BeginRenderPass(desc)
}

type depthStencilClear struct {
	flags   backend.DepthStencilClearFlag
	depth   float32
	stencil uint8
}

// translator turns the immediate-style command stream into HAL render
// passes.
//
// A pass opens lazily at the first draw after SetRenderTargets. Clears
// are deferred until the next pass that binds their target, where they
// become the attachment's LoadOpClear. Clears still pending when the list
// closes get their own clear-only pass. Viewport, scissor and pipeline
// are re-applied to every new pass.
type translator struct {
	enc    passEncoder
	pass   renderPass
	passes int

	colors []*Texture
	depth  *Texture

	pipeline *Pipeline
	viewport *backend.Viewport
	scissor  *backend.Rect

	colorClears []*Texture
	colorValues map[*Texture]gputypes.Color
	dsClears    []*Texture
	dsValues    map[*Texture]depthStencilClear
}

func newTranslator(enc passEncoder) *translator {
	return &translator{
		enc:         enc,
		colorValues: make(map[*Texture]gputypes.Color),
		dsValues:    make(map[*Texture]depthStencilClear),
	}
}

// apply translates one command. Commands were validated at record time.
func (t *translator) apply(cmd backend.Command) {
	switch c := cmd.(type) {
	case backend.SetPipelineCmd:
		t.pipeline, _ = c.Pipeline.(*Pipeline)
		if t.pass != nil && t.pipeline != nil {
			t.pass.SetPipeline(t.pipeline.pipeline)
		}
	case backend.SetViewportCmd:
		v := c.Viewport
		t.viewport = &v
		if t.pass != nil {
			t.applyViewport()
		}
	case backend.SetScissorCmd:
		r := c.Rect
		t.scissor = &r
		if t.pass != nil {
			t.applyScissor()
		}
	case backend.ClearColorCmd:
		t.endPass()
		tex := c.Target.(*Texture)
		if _, ok := t.colorValues[tex]; !ok {
			t.colorClears = append(t.colorClears, tex)
		}
		t.colorValues[tex] = c.Color
	case backend.ClearDepthStencilCmd:
		t.endPass()
		tex := c.Target.(*Texture)
		prev, ok := t.dsValues[tex]
		if !ok {
			t.dsClears = append(t.dsClears, tex)
		}
		next := depthStencilClear{flags: prev.flags | c.Flags, depth: prev.depth, stencil: prev.stencil}
		if c.Flags&backend.ClearDepth != 0 {
			next.depth = c.Depth
		}
		if c.Flags&backend.ClearStencil != 0 {
			next.stencil = c.Stencil
		}
		t.dsValues[tex] = next
	case backend.SetRenderTargetsCmd:
		t.endPass()
		t.colors = t.colors[:0]
		for _, ct := range c.Colors {
			t.colors = append(t.colors, ct.(*Texture))
		}
		t.depth = nil
		if c.DepthStencil != nil {
			t.depth = c.DepthStencil.(*Texture)
		}
	case backend.DrawCmd:
		t.beginPass()
		t.pass.Draw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
	case backend.DrawIndexedCmd:
		t.beginPass()
		t.pass.DrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, c.BaseVertex, c.FirstInstance)
	}
}

// finish closes the open pass and emits pending clears.
func (t *translator) finish() {
	t.endPass()
	t.flushClears()
}

func (t *translator) beginPass() {
	if t.pass != nil {
		return
	}
	desc := &hal.RenderPassDescriptor{Label: "venus_pass"}
	for _, tex := range t.colors {
		desc.ColorAttachments = append(desc.ColorAttachments, t.colorAttachment(tex))
	}
	if t.depth != nil {
		desc.DepthStencilAttachment = t.depthAttachment(t.depth)
	}
	t.pass = t.enc.beginRenderPass(desc)
	t.passes++

	if t.pipeline != nil {
		t.pass.SetPipeline(t.pipeline.pipeline)
	}
	if t.viewport != nil {
		t.applyViewport()
	}
	if t.scissor != nil {
		t.applyScissor()
	}
}

func (t *translator) endPass() {
	if t.pass == nil {
		return
	}
	t.pass.End()
	t.pass = nil
}

// colorAttachment consumes a pending clear of tex.
func (t *translator) colorAttachment(tex *Texture) hal.RenderPassColorAttachment {
	att := hal.RenderPassColorAttachment{
		View:    tex.view,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if c, ok := t.colorValues[tex]; ok {
		att.LoadOp = gputypes.LoadOpClear
		att.ClearValue = c
		delete(t.colorValues, tex)
		t.colorClears = removeTexture(t.colorClears, tex)
	}
	return att
}

// depthAttachment consumes a pending clear of tex.
func (t *translator) depthAttachment(tex *Texture) *hal.RenderPassDepthStencilAttachment {
	att := &hal.RenderPassDepthStencilAttachment{
		View:           tex.view,
		DepthLoadOp:    gputypes.LoadOpLoad,
		DepthStoreOp:   gputypes.StoreOpStore,
		StencilLoadOp:  gputypes.LoadOpLoad,
		StencilStoreOp: gputypes.StoreOpStore,
	}
	if c, ok := t.dsValues[tex]; ok {
		if c.flags&backend.ClearDepth != 0 {
			att.DepthLoadOp = gputypes.LoadOpClear
			att.DepthClearValue = c.depth
		}
		if c.flags&backend.ClearStencil != 0 {
			att.StencilLoadOp = gputypes.LoadOpClear
			att.StencilClearValue = uint32(c.stencil)
		}
		delete(t.dsValues, tex)
		t.dsClears = removeTexture(t.dsClears, tex)
	}
	return att
}

// flushClears emits one clear-only pass per pending target, in the order
// the clears were first recorded.
func (t *translator) flushClears() {
	for len(t.colorClears) > 0 {
		tex := t.colorClears[0]
		pass := t.enc.beginRenderPass(&hal.RenderPassDescriptor{
			Label:            "venus_clear_color",
			ColorAttachments: []hal.RenderPassColorAttachment{t.colorAttachment(tex)},
		})
		pass.End()
		t.passes++
	}
	for len(t.dsClears) > 0 {
		tex := t.dsClears[0]
		pass := t.enc.beginRenderPass(&hal.RenderPassDescriptor{
			Label:                  "venus_clear_depth_stencil",
			DepthStencilAttachment: t.depthAttachment(tex),
		})
		pass.End()
		t.passes++
	}
}

func (t *translator) applyViewport() {
	v := t.viewport
	t.pass.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
}

func (t *translator) applyScissor() {
	r := t.scissor
	x, y := max(r.Left, 0), max(r.Top, 0)
	w, h := max(r.Right-x, 0), max(r.Bottom-y, 0)
	t.pass.SetScissorRect(uint32(x), uint32(y), uint32(w), uint32(h))
}

func removeTexture(list []*Texture, tex *Texture) []*Texture {
	for i, t := range list {
		if t == tex {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
