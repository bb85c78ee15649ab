// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package venus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// openDevices tracks devices whose backend receives logger updates.
var (
	openDevicesMu sync.Mutex
	openDevices   = make(map[*Device]struct{})
)

// SetLogger configures the logger for venus and every open backend
// device. By default venus produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore silence.
//
// Log levels used by venus:
//   - [slog.LevelDebug]: per-submission diagnostics (fence values, list counts)
//   - [slog.LevelInfo]: lifecycle events (device opened, queue created)
//   - [slog.LevelWarn]: non-fatal issues (discarded buffers, release errors)
//
// Example:
//
//	venus.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	openDevicesMu.Lock()
	devs := make([]*Device, 0, len(openDevices))
	for d := range openDevices {
		devs = append(devs, d)
	}
	openDevicesMu.Unlock()

	for _, d := range devs {
		propagateLogger(d.native, l)
	}
}

// Logger returns the current logger used by venus.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backend devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes l to a backend device if it implements
// loggerSetter. Called from SetLogger and when a device is opened.
func propagateLogger(native any, l *slog.Logger) {
	if ls, ok := native.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

func trackDevice(d *Device) {
	openDevicesMu.Lock()
	openDevices[d] = struct{}{}
	openDevicesMu.Unlock()
	propagateLogger(d.native, Logger())
}

func untrackDevice(d *Device) {
	openDevicesMu.Lock()
	delete(openDevices, d)
	openDevicesMu.Unlock()
}
