//go:build !nogpu

package wgpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/venus/backend"
)

// createNoopDevice wraps a noop HAL device.
func createNoopDevice(t *testing.T) *Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})

	d, err := New(openDev.Device, openDev.Queue)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

// plainProvider is a gpucontext.DeviceProvider without HAL access.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device             { return nil }
func (plainProvider) Queue() gpucontext.Queue               { return nil }
func (plainProvider) Adapter() gpucontext.Adapter           { return nil }
func (plainProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// halProvider additionally exposes HAL objects, like a gogpu window does.
type halProvider struct {
	plainProvider
	device hal.Device
	queue  hal.Queue
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestNewFromProvider(t *testing.T) {
	if _, err := NewFromProvider(plainProvider{}); !errors.Is(err, ErrNoHALProvider) {
		t.Errorf("NewFromProvider(plain) = %v, want ErrNoHALProvider", err)
	}

	base := createNoopDevice(t)
	d, err := NewFromProvider(halProvider{device: base.device, queue: base.queue})
	if err != nil {
		t.Fatalf("NewFromProvider: %v", err)
	}
	if d.HalDevice() != base.device {
		t.Error("HalDevice() does not return the provider's device")
	}
	if d.AdapterName() != "provider" {
		t.Errorf("AdapterName() = %q, want %q", d.AdapterName(), "provider")
	}
	// Shared devices are not destroyed by the wrapper.
	d.Destroy()
	if _, err := base.CreateFence(0); err != nil {
		t.Errorf("base device unusable after wrapper Destroy: %v", err)
	}
}

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil, nil) = %v, want ErrNilDevice", err)
	}
}

func TestSubmitSignalsFence(t *testing.T) {
	d := createNoopDevice(t)

	rt, err := d.CreateTexture("rt", 32, 32, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer rt.Destroy()

	alloc, err := d.CreateAllocator(backend.ListClassGraphics)
	if err != nil {
		t.Fatalf("CreateAllocator: %v", err)
	}
	list, err := d.CreateList(backend.ListClassGraphics, alloc)
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	queue, err := d.CreateQueue(backend.ListClassGraphics)
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	fence, err := d.CreateFence(0)
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	defer fence.Destroy()

	if err := list.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := list.Record(backend.ClearColorCmd{Target: rt, Color: gputypes.Color{A: 1}}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := alloc.(*Allocator).Buffers(); got != 1 {
		t.Errorf("Buffers() = %d, want 1", got)
	}

	if err := queue.Submit([]backend.List{list}, fence, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fence.Wait(ctx, 1); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := fence.CompletedValue(); got != 1 {
		t.Errorf("CompletedValue() = %d, want 1", got)
	}

	if err := alloc.Reset(); err != nil {
		t.Fatalf("Allocator.Reset: %v", err)
	}
	if got := alloc.(*Allocator).Buffers(); got != 0 {
		t.Errorf("Buffers() after Reset = %d, want 0", got)
	}
}

func TestRecordValidation(t *testing.T) {
	d := createNoopDevice(t)
	rt, err := d.CreateTexture("rt", 8, 8, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer rt.Destroy()
	ds, err := d.CreateTexture("ds", 8, 8, gputypes.TextureFormatDepth24PlusStencil8)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer ds.Destroy()

	alloc, _ := d.CreateAllocator(backend.ListClassGraphics)
	list, _ := d.CreateList(backend.ListClassGraphics, alloc)
	if err := list.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	tests := []struct {
		name string
		cmd  backend.Command
		want error
	}{
		{"draw before targets", backend.DrawCmd{VertexCount: 3}, ErrNoRenderPass},
		{"clear depth as color", backend.ClearColorCmd{Target: ds}, ErrInvalidTarget},
		{"clear color as depth", backend.ClearDepthStencilCmd{Target: rt, Flags: backend.ClearDepth}, ErrInvalidTarget},
		{"depth bound as color", backend.SetRenderTargetsCmd{Colors: []backend.Texture{ds}}, ErrInvalidTarget},
		{"foreign pipeline", backend.SetPipelineCmd{Pipeline: foreignPipeline{}}, backend.ErrForeignObject},
		{
			"too many targets",
			backend.SetRenderTargetsCmd{Colors: []backend.Texture{rt, rt, rt, rt, rt, rt, rt, rt, rt}},
			ErrTooManyTargets,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := list.Record(tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("Record() = %v, want %v", err, tt.want)
			}
		})
	}
	if got := list.Len(); got != 0 {
		t.Errorf("Len() = %d after rejected commands, want 0", got)
	}
}

type foreignPipeline struct{}

func (foreignPipeline) Label() string { return "foreign" }

func TestSubmitOpenListRejected(t *testing.T) {
	d := createNoopDevice(t)
	alloc, _ := d.CreateAllocator(backend.ListClassGraphics)
	list, _ := d.CreateList(backend.ListClassGraphics, alloc)
	queue, _ := d.CreateQueue(backend.ListClassGraphics)

	if err := list.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := queue.Submit([]backend.List{list}, nil, 0); !errors.Is(err, backend.ErrListNotClosed) {
		t.Errorf("Submit(open list) = %v, want ErrListNotClosed", err)
	}
}

func TestClassMismatch(t *testing.T) {
	d := createNoopDevice(t)
	alloc, _ := d.CreateAllocator(backend.ListClassCopy)
	if _, err := d.CreateList(backend.ListClassGraphics, alloc); !errors.Is(err, backend.ErrClassMismatch) {
		t.Errorf("CreateList = %v, want ErrClassMismatch", err)
	}
}

func TestFenceWaitUnsubmittedTimesOut(t *testing.T) {
	d := createNoopDevice(t)
	fence, err := d.CreateFence(0)
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	defer fence.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := fence.Wait(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want DeadlineExceeded", err)
	}
}

func TestFenceInitialValue(t *testing.T) {
	d := createNoopDevice(t)
	fence, err := d.CreateFence(5)
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	defer fence.Destroy()
	if got := fence.CompletedValue(); got != 5 {
		t.Errorf("CompletedValue() = %d, want 5", got)
	}
	if err := fence.Wait(context.Background(), 3); err != nil {
		t.Errorf("Wait(3) = %v, want nil", err)
	}
}

func TestSwapChain(t *testing.T) {
	d := createNoopDevice(t)
	queue, _ := d.CreateQueue(backend.ListClassGraphics)

	sc, err := d.CreateSwapChain(queue, window{w: 16, h: 8}, backend.DefaultSwapChainDesc())
	if err != nil {
		t.Fatalf("CreateSwapChain: %v", err)
	}
	defer sc.Destroy()

	first := sc.CurrentColorTexture()
	if first.Width() != 16 || first.Height() != 8 {
		t.Errorf("size = %dx%d, want 16x8", first.Width(), first.Height())
	}
	if err := sc.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if sc.CurrentColorTexture() == first {
		t.Error("Present did not advance the back buffer")
	}
	if sc.DepthStencilTexture() == nil {
		t.Error("DepthStencilTexture() = nil")
	}
}

type window struct{ w, h int }

func (w window) Width() int  { return w.w }
func (w window) Height() int { return w.h }

func TestFenceTracksSubmissions(t *testing.T) {
	d := createNoopDevice(t)
	rt, err := d.CreateTexture("rt", 16, 16, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer rt.Destroy()

	queue, err := d.CreateQueue(backend.ListClassGraphics)
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	fence, err := d.CreateFence(0)
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	defer fence.Destroy()

	closedList := func() backend.List {
		t.Helper()
		alloc, err := d.CreateAllocator(backend.ListClassGraphics)
		if err != nil {
			t.Fatalf("CreateAllocator: %v", err)
		}
		list, err := d.CreateList(backend.ListClassGraphics, alloc)
		if err != nil {
			t.Fatalf("CreateList: %v", err)
		}
		if err := list.Reset(alloc, nil); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		if err := list.Record(backend.ClearColorCmd{Target: rt, Color: gputypes.Color{A: 1}}); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if err := list.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		return list
	}

	// A submission without a fence sits between the fenced ones.
	submits := []struct {
		fence backend.Fence
		value uint64
	}{
		{fence, 1},
		{nil, 0},
		{fence, 2},
	}
	for _, s := range submits {
		if err := queue.Submit([]backend.List{closedList()}, s.fence, s.value); err != nil {
			t.Fatalf("Submit(value %d): %v", s.value, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fence.Wait(ctx, 2); err != nil {
		t.Fatalf("Wait(2): %v", err)
	}
	if got := fence.CompletedValue(); got != 2 {
		t.Errorf("CompletedValue() = %d, want 2", got)
	}
	if got := len(fence.(*Fence).pending); got != 0 {
		t.Errorf("pending submissions = %d, want 0", got)
	}
}
