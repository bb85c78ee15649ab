// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/venus/backend/software"
)

// loggingDevice records the logger handed to the backend.
type loggingDevice struct {
	*software.Device

	mu     sync.Mutex
	logger *slog.Logger
}

func (d *loggingDevice) SetLogger(l *slog.Logger) {
	d.mu.Lock()
	d.logger = l
	d.mu.Unlock()
	d.Device.SetLogger(l)
}

func (d *loggingDevice) current() *slog.Logger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logger
}

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("nopHandler.WithAttrs() did not return nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("nopHandler.WithGroup() did not return nopHandler")
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger enabled for %v", level)
		}
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) left a nil logger")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) produced an enabled logger")
	}
}

func TestSetLoggerPropagatesToOpenDevices(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	native := &loggingDevice{Device: software.New()}
	defer native.Destroy()
	dev, err := NewDevice(native)
	if err != nil {
		t.Fatalf("NewDevice() = %v", err)
	}

	// The current logger is handed over when the device opens.
	if native.current() != Logger() {
		t.Error("NewDevice did not propagate the current logger")
	}

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)
	if native.current() != custom {
		t.Error("SetLogger did not propagate to the open device")
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	SetLogger(slog.Default())
	if native.current() != custom {
		t.Error("SetLogger propagated to a closed device")
	}
}

func TestWithLoggerLogsSubmissions(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)
	custom := slog.New(slog.NewTextHandler(&lockedWriter{mu: &mu, w: &buf}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	dev, native := newTestDevice(t, WithLogger(custom))
	q, err := dev.CreateCommandQueue(ListClassGraphics, WithLabel("main"))
	if err != nil {
		t.Fatalf("CreateCommandQueue() = %v", err)
	}
	target := newTestTarget(t, native, "color", gputypes.TextureFormatRGBA8Unorm)
	cb := recordClear(t, q, target)
	if err := cb.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	if err := q.WaitComplete(); err != nil {
		t.Fatalf("WaitComplete() = %v", err)
	}

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	for _, want := range []string{"venus: device opened", "venus: queue created", "venus: commit", "software: executed submission"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	const goroutines = 100

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := Logger()
			if l == nil {
				t.Error("Logger() returned nil during concurrent access")
				return
			}
			l.Debug("concurrent read")
		}()
	}
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}
	wg.Wait()
}

func BenchmarkLoggerDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("message", "key", "value")
	}
}
