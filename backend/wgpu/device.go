//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // register the Vulkan HAL backend

	"github.com/gogpu/venus/backend"
)

// HAL backend errors.
var (
	// ErrNilDevice is returned when a nil hal.Device or hal.Queue is supplied.
	ErrNilDevice = errors.New("wgpu: device is nil")

	// ErrNoAdapter is returned by Open when no GPU adapter is found.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrNoHALProvider is returned when a device provider does not expose
	// HAL objects.
	ErrNoHALProvider = errors.New("wgpu: provider does not expose HAL types")

	// ErrNoRenderPass is returned when a draw is recorded before any render
	// target is bound.
	ErrNoRenderPass = errors.New("wgpu: draw without render targets")

	// ErrInvalidTarget is returned when a texture is used as the wrong kind
	// of attachment.
	ErrInvalidTarget = errors.New("wgpu: invalid render target")

	// ErrTooManyTargets is returned when more color targets are bound than a
	// render pass supports.
	ErrTooManyTargets = errors.New("wgpu: too many color targets")

	// ErrDestroyed is returned when a destroyed object is used.
	ErrDestroyed = errors.New("wgpu: object destroyed")
)

// MaxColorTargets is the maximum number of color attachments per pass.
const MaxColorTargets = 8

func init() {
	backend.Register(backend.BackendWGPU, func() (backend.Device, error) {
		return Open()
	})
}

// Device adapts a hal.Device and its hal.Queue to backend.Device.
//
// HAL exposes a single queue per device, so every backend.Queue created
// here submits to the same hal.Queue. Submissions from different queues
// are serialized under the device lock.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // non-nil when the Device opened its own adapter
	name     string

	nextID atomic.Uint64

	mu        sync.Mutex
	submitMu  sync.Mutex
	lost      error
	destroyed bool
}

var (
	_ backend.Device           = (*Device)(nil)
	_ backend.SwapChainFactory = (*Device)(nil)
)

// New wraps an existing HAL device and queue. The caller keeps ownership
// of both.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	return &Device{device: device, queue: queue, name: "external"}, nil
}

// NewFromProvider wraps the HAL device shared by a gpucontext provider
// (e.g. a gogpu window). The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALProvider)
	}
	d, err := New(device, queue)
	if err != nil {
		return nil, err
	}
	d.name = "provider"
	return d, nil
}

// Open creates a Vulkan instance and opens the first discrete or
// integrated GPU, falling back to any adapter.
func Open() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan", backend.ErrBackendNotAvailable)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	d, err := openInstance(instance)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

func openInstance(instance hal.Instance) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return &Device{
		device:   openDev.Device,
		queue:    openDev.Queue,
		instance: instance,
		name:     selected.Info.Name,
	}, nil
}

// Name returns "wgpu".
func (d *Device) Name() string { return backend.BackendWGPU }

// AdapterName returns the opened adapter name, or "external"/"provider"
// for wrapped devices.
func (d *Device) AdapterName() string { return d.name }

// HalDevice returns the underlying hal.Device.
func (d *Device) HalDevice() hal.Device { return d.device }

// SetLogger sets the logger used by the wgpu backend.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

func (d *Device) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	if d.lost != nil {
		return fmt.Errorf("%w: %w", backend.ErrDeviceLost, d.lost)
	}
	return nil
}

func (d *Device) markLost(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost == nil {
		d.lost = err
		slogger().Error("wgpu: device lost", "err", err)
	}
}

// CreateAllocator creates an allocator. It owns the HAL command buffers of
// the lists recorded into it.
func (d *Device) CreateAllocator(class backend.ListClass) (backend.Allocator, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &Allocator{dev: d, class: class}, nil
}

// CreateList creates a closed list recording into alloc.
func (d *Device) CreateList(class backend.ListClass, alloc backend.Allocator) (backend.List, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	a, err := d.allocator(alloc)
	if err != nil {
		return nil, err
	}
	if a.class != class {
		return nil, fmt.Errorf("create list: %w: list %v, allocator %v", backend.ErrClassMismatch, class, a.class)
	}
	return &List{dev: d, id: d.nextID.Add(1), class: class, alloc: a}, nil
}

// CreateQueue creates a queue over the device's hal.Queue.
func (d *Device) CreateQueue(class backend.ListClass) (backend.Queue, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &Queue{dev: d, class: class}, nil
}

// CreateFence creates a fence tracking this device's HAL queue.
func (d *Device) CreateFence(initial uint64) (backend.Fence, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &Fence{dev: d, completed: initial}, nil
}

// Destroy releases the device and instance if Open created them.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.instance != nil {
		d.device.Destroy()
		d.instance.Destroy()
		d.instance = nil
	}
}

func (d *Device) allocator(a backend.Allocator) (*Allocator, error) {
	wa, ok := a.(*Allocator)
	if !ok || wa == nil || wa.dev != d {
		return nil, fmt.Errorf("allocator %T: %w", a, backend.ErrForeignObject)
	}
	return wa, nil
}

func (d *Device) texture(t backend.Texture) (*Texture, error) {
	wt, ok := t.(*Texture)
	if !ok || wt == nil || wt.dev != d {
		return nil, fmt.Errorf("texture %T: %w", t, backend.ErrForeignObject)
	}
	return wt, nil
}
