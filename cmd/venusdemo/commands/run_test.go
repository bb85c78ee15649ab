package commands

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/gogpu/venus/backend"
)

func TestRender(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 32, 24
	cfg.Frames = 5
	cfg.Output = filepath.Join(t.TempDir(), "frame.png")

	var out bytes.Buffer
	if err := render(ctx, cfg, &out); err != nil {
		t.Fatalf("render() = %v", err)
	}
	for _, want := range []string{"backend:   software", "5 committed", "fence:     5", "wrote:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	f, err := os.Open(cfg.Output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() = %v", err)
	}
	if got, want := img.Bounds().Dx(), cfg.Width; got != want {
		t.Errorf("width = %d, want %d", got, want)
	}

	c := frameColor(cfg.Frames - 1)
	want := color.RGBA{R: unorm(float64(c.R)), G: unorm(float64(c.G)), B: unorm(float64(c.B)), A: 255}
	if got := color.RGBAModel.Convert(img.At(16, 12)).(color.RGBA); got != want {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestRenderUnknownBackend(t *testing.T) {
	// An unknown backend fails before any frame is recorded.
	cfg := DefaultConfig()
	cfg.Backend = "does-not-exist"
	if err := render(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Error("render(unknown backend) = nil, want error")
	}
}

func TestFrameColor(t *testing.T) {
	for i := range 6 {
		c := frameColor(i)
		for _, v := range []float64{float64(c.R), float64(c.G), float64(c.B)} {
			if v < 0 || v > 1 {
				t.Errorf("frameColor(%d) = %+v, component out of range", i, c)
			}
		}
		if c.A != 1 {
			t.Errorf("frameColor(%d).A = %v, want 1", i, c.A)
		}
	}
	if frameColor(0) == frameColor(1) {
		t.Error("consecutive frames share a color")
	}
	if frameColor(0) != frameColor(6) {
		t.Error("frameColor does not cycle every 6 frames")
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		want    Config
		wantErr bool
	}{
		{"defaults", nil, DefaultConfig(), false},
		{
			"overrides",
			map[string]any{"backend": "", "width": 64, "height": 48, "frames": 10, "in_flight": 3},
			Config{Backend: "", Width: 64, Height: 48, Frames: 10, InFlight: 3},
			false,
		},
		{"zero frames", map[string]any{"frames": 0}, Config{}, true},
		{"negative size", map[string]any{"width": -1}, Config{}, true},
		{"zero in flight", map[string]any{"in_flight": 0}, Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			got, err := loadConfig(v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("loadConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBackendsCommand(t *testing.T) {
	var out bytes.Buffer
	backendsCmd.SetOut(&out)
	defer backendsCmd.SetOut(nil)
	if err := backendsCmd.RunE(backendsCmd, nil); err != nil {
		t.Fatalf("backends = %v", err)
	}
	if !strings.Contains(out.String(), backend.BackendSoftware) {
		t.Errorf("backends output = %q, want %q listed", out.String(), backend.BackendSoftware)
	}
}

func TestInitLogger(t *testing.T) {
	if err := initLogger("debug"); err != nil {
		t.Errorf("initLogger(debug) = %v", err)
	}
	if err := initLogger("loud"); err == nil {
		t.Error("initLogger(loud) = nil, want error")
	}
	if err := initLogger(""); err != nil {
		t.Errorf("initLogger(\"\") = %v", err)
	}
}

func unorm(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
