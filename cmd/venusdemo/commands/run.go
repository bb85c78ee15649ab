package commands

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"math"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/venus"
	"github.com/gogpu/venus/backend/software"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Render frames through the command queue",
	Long: `Render a number of frames on a swap chain.

Each frame clears the back buffer to a color that cycles with the frame
number. With the software backend the last presented frame can be
written to a PNG file.`,
	RunE: runFrames,
}

func init() {
	rootCmd.AddCommand(runCmd)

	def := DefaultConfig()
	f := runCmd.Flags()
	f.String("backend", def.Backend, "backend name (empty selects the best available)")
	f.Int("width", def.Width, "swap chain width")
	f.Int("height", def.Height, "swap chain height")
	f.Int("frames", def.Frames, "number of frames to render")
	f.Int("in-flight", def.InFlight, "frames allowed in flight")
	f.String("output", def.Output, "PNG file for the last frame (software backend only)")

	_ = viper.BindPFlag("backend", f.Lookup("backend"))
	_ = viper.BindPFlag("width", f.Lookup("width"))
	_ = viper.BindPFlag("height", f.Lookup("height"))
	_ = viper.BindPFlag("frames", f.Lookup("frames"))
	_ = viper.BindPFlag("in_flight", f.Lookup("in-flight"))
	_ = viper.BindPFlag("output", f.Lookup("output"))
}

func runFrames(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return render(ctx, cfg, cmd.OutOrStdout())
}

type window struct{ w, h int }

func (w window) Width() int  { return w.w }
func (w window) Height() int { return w.h }

// render runs cfg.Frames frames and reports queue statistics to out.
func render(ctx context.Context, cfg Config, out io.Writer) (err error) {
	dev, err := venus.Open(cfg.Backend)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	q, err := dev.CreateCommandQueue(venus.ListClassGraphics,
		venus.WithLabel("demo"),
		venus.WithMaxInFlight(cfg.InFlight+1),
	)
	if err != nil {
		return err
	}

	win := window{cfg.Width, cfg.Height}
	sc, err := q.CreateSwapChain(win)
	if err != nil {
		return err
	}
	defer sc.Destroy()

	pacer := venus.NewFramePacer(q, cfg.InFlight)
	for i := range cfg.Frames {
		if err := pacer.BeginFrame(ctx); err != nil {
			return err
		}
		cb, err := q.CreateCommandBuffer()
		if err != nil {
			return err
		}
		if err := recordFrame(cb, sc, win, i); err != nil {
			_ = cb.Release()
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := cb.Commit(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := pacer.EndFrame(cb); err != nil {
			return err
		}
		if err := sc.Present(); err != nil {
			return fmt.Errorf("frame %d: present: %w", i, err)
		}
	}
	if err := pacer.Drain(ctx); err != nil {
		return err
	}

	st := q.Stats()
	fmt.Fprintf(out, "backend:   %s\n", dev.Name())
	fmt.Fprintf(out, "frames:    %d (%dx%d, %d in flight)\n", cfg.Frames, cfg.Width, cfg.Height, cfg.InFlight)
	fmt.Fprintf(out, "buffers:   %d created, %d reused, %d committed\n", st.Created, st.Reused, st.Committed)
	fmt.Fprintf(out, "fence:     %d\n", q.CompletedValue())

	if cfg.Output == "" {
		return nil
	}
	return writePNG(sc, cfg.Output, out)
}

// recordFrame records the canonical frame into cb.
func recordFrame(cb *venus.CommandBuffer, sc venus.SwapChain, win venus.Window, frame int) error {
	enc, err := cb.CreateRenderCommandEncoder(nil)
	if err != nil {
		return err
	}
	color := sc.CurrentColorTexture()
	depth := sc.DepthStencilTexture()

	steps := []func() error{
		func() error { return enc.SetViewport(venus.ViewportFor(win)) },
		func() error { return enc.SetScissorRect(venus.ScissorFor(win)) },
		func() error { return enc.ClearColor(color, frameColor(frame)) },
	}
	if depth != nil {
		steps = append(steps, func() error { return enc.ClearDepthStencil(depth, venus.ClearAll, 1, 0) })
	}
	steps = append(steps,
		func() error { return enc.SetRenderTargets([]venus.Texture{color}, depth) },
		enc.EndEncoding,
	)
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// frameColor cycles the hue with the frame number.
func frameColor(frame int) venus.Color {
	h := float64(frame%6) / 6
	return venus.Color{
		R: 0.5 + 0.5*math.Cos(2*math.Pi*h),
		G: 0.5 + 0.5*math.Cos(2*math.Pi*(h-1.0/3)),
		B: 0.5 + 0.5*math.Cos(2*math.Pi*(h-2.0/3)),
		A: 1,
	}
}

func writePNG(sc venus.SwapChain, path string, out io.Writer) error {
	sw, ok := sc.(*software.SwapChain)
	if !ok {
		return errors.New("--output needs the software backend")
	}
	last := sw.LastPresented()
	if last == nil {
		return errors.New("no frame was presented")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, last.Image()); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote:     %s\n", path)
	return nil
}
