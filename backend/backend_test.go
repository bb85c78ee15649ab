// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

// stubDevice is a Device that creates nothing.
type stubDevice struct {
	name string
}

func (d *stubDevice) Name() string { return d.name }

func (d *stubDevice) CreateAllocator(ListClass) (Allocator, error) {
	return nil, errors.New("stub")
}

func (d *stubDevice) CreateList(ListClass, Allocator) (List, error) {
	return nil, errors.New("stub")
}

func (d *stubDevice) CreateQueue(ListClass) (Queue, error) {
	return nil, errors.New("stub")
}

func (d *stubDevice) CreateFence(uint64) (Fence, error) {
	return nil, errors.New("stub")
}

func (d *stubDevice) Destroy() {}

var _ Device = (*stubDevice)(nil)

func registerStub(t *testing.T, name string, err error) {
	t.Helper()
	Register(name, func() (Device, error) {
		if err != nil {
			return nil, err
		}
		return &stubDevice{name: name}, nil
	})
	t.Cleanup(func() { Unregister(name) })
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registerStub(t, "stub-a", nil)

	if !IsRegistered("stub-a") {
		t.Fatal("IsRegistered(stub-a) = false, want true")
	}

	dev, err := Get("stub-a")
	if err != nil {
		t.Fatalf("Get(stub-a) error = %v", err)
	}
	if dev.Name() != "stub-a" {
		t.Errorf("Get(stub-a).Name() = %q, want %q", dev.Name(), "stub-a")
	}
}

func TestRegistryGetUnregistered(t *testing.T) {
	_, err := Get("nonexistent")
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Get(nonexistent) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestRegistryGetFactoryError(t *testing.T) {
	boom := errors.New("no adapter")
	registerStub(t, "stub-broken", boom)

	_, err := Get("stub-broken")
	if !errors.Is(err, boom) {
		t.Errorf("Get(stub-broken) error = %v, want wrapped %v", err, boom)
	}
}

func TestRegistryAvailableSorted(t *testing.T) {
	registerStub(t, "stub-z", nil)
	registerStub(t, "stub-b", nil)

	names := Available()
	idxB, idxZ := -1, -1
	for i, n := range names {
		switch n {
		case "stub-b":
			idxB = i
		case "stub-z":
			idxZ = i
		}
	}
	if idxB < 0 || idxZ < 0 {
		t.Fatalf("Available() = %v, missing registered stubs", names)
	}
	if idxB > idxZ {
		t.Errorf("Available() = %v, want sorted order", names)
	}
}

func TestRegistryUnregister(t *testing.T) {
	Register("stub-temp", func() (Device, error) { return &stubDevice{name: "stub-temp"}, nil })
	Unregister("stub-temp")

	if IsRegistered("stub-temp") {
		t.Error("IsRegistered(stub-temp) = true after Unregister")
	}
}

func TestRegistryDefaultPriority(t *testing.T) {
	for _, name := range Available() {
		f := factories[name]
		Unregister(name)
		t.Cleanup(func() { Register(name, f) })
	}

	if _, err := Default(); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Default() with empty registry error = %v, want ErrBackendNotAvailable", err)
	}

	registerStub(t, "custom", nil)
	registerStub(t, BackendSoftware, nil)

	dev, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if dev.Name() != BackendSoftware {
		t.Errorf("Default().Name() = %q, want %q", dev.Name(), BackendSoftware)
	}

	// A broken higher-priority backend falls through to the next one.
	registerStub(t, BackendWGPU, errors.New("no adapter"))
	dev, err = Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if dev.Name() != BackendSoftware {
		t.Errorf("Default().Name() = %q, want fallback %q", dev.Name(), BackendSoftware)
	}
}

func TestListClassString(t *testing.T) {
	tests := []struct {
		class ListClass
		want  string
	}{
		{ListClassGraphics, "Graphics"},
		{ListClassCompute, "Compute"},
		{ListClassCopy, "Copy"},
		{ListClass(42), "Unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("ListClass(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestCommandKinds(t *testing.T) {
	tests := []struct {
		cmd  Command
		want CommandKind
	}{
		{SetPipelineCmd{}, CommandSetPipeline},
		{SetViewportCmd{}, CommandSetViewport},
		{SetScissorCmd{}, CommandSetScissor},
		{ClearColorCmd{}, CommandClearColor},
		{ClearDepthStencilCmd{}, CommandClearDepthStencil},
		{SetRenderTargetsCmd{}, CommandSetRenderTargets},
		{DrawCmd{}, CommandDraw},
		{DrawIndexedCmd{}, CommandDrawIndexed},
	}
	for _, tt := range tests {
		if got := tt.cmd.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %v, want %v", tt.cmd, got, tt.want)
		}
	}
	if got := CommandKind(0).String(); got != "Unknown(0)" {
		t.Errorf("CommandKind(0).String() = %q, want %q", got, "Unknown(0)")
	}
}

func TestRect(t *testing.T) {
	r := Rect{Left: 10, Top: 20, Right: 810, Bottom: 620}
	if r.Width() != 800 || r.Height() != 600 {
		t.Errorf("Rect size = %dx%d, want 800x600", r.Width(), r.Height())
	}
	if r.Empty() {
		t.Error("Empty() = true for 800x600 rect")
	}
	if !(Rect{Left: 5, Right: 5, Bottom: 10}).Empty() {
		t.Error("Empty() = false for zero-width rect")
	}
}

func TestIsDepthStencil(t *testing.T) {
	if !IsDepthStencil(gputypes.TextureFormatDepth24PlusStencil8) {
		t.Error("IsDepthStencil(Depth24PlusStencil8) = false")
	}
	if IsDepthStencil(gputypes.TextureFormatBGRA8Unorm) {
		t.Error("IsDepthStencil(BGRA8Unorm) = true")
	}
}

func TestDefaultSwapChainDesc(t *testing.T) {
	d := DefaultSwapChainDesc()
	if d.BufferCount != 2 {
		t.Errorf("BufferCount = %d, want 2", d.BufferCount)
	}
	if IsDepthStencil(d.ColorFormat) || !IsDepthStencil(d.DepthStencilFormat) {
		t.Errorf("formats = %v/%v, want color + depth", d.ColorFormat, d.DepthStencilFormat)
	}
}

// Fence waits are context-aware in every backend; this only pins the
// interface shape used by the core.
var _ = func(f Fence) error { return f.Wait(context.Background(), 0) }
