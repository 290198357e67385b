// Command postfxdemo runs the post-processing pipeline over a synthetic
// deferred frame and saves the result.
//
// Usage:
//
//	postfxdemo -backend software -frames 8 -output out.png
//	postfxdemo -config postfx.json -lut grade.png -output out.tiff
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend"
	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/dof"
	"github.com/gogpu/postfx/pass"
	"github.com/gogpu/postfx/ssr"
	"github.com/gogpu/postfx/taa"
	"github.com/gogpu/postfx/tonemap"
)

func main() {
	var (
		backendName = flag.String("backend", "", "device backend (software, wgpu); empty picks the best available")
		width       = flag.Int("width", 320, "frame width")
		height      = flag.Int("height", 180, "frame height")
		frames      = flag.Int("frames", 8, "frames to render; TAA converges over several")
		configPath  = flag.String("config", "", "JSON pipeline configuration")
		lutPath     = flag.String("lut", "", "colour grading LUT strip image (PNG or TIFF)")
		output      = flag.String("output", "postfx.png", "output file (.png, .tif or .tiff)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		postfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	opts := demoOptions{
		backend: *backendName,
		width:   *width,
		height:  *height,
		frames:  *frames,
		config:  *configPath,
		lut:     *lutPath,
		output:  *output,
	}
	if err := run(context.Background(), opts); err != nil {
		log.Fatalf("postfxdemo: %v", err)
	}
}

type demoOptions struct {
	backend       string
	width, height int
	frames        int
	config        string
	lut           string
	output        string
}

func run(ctx context.Context, o demoOptions) error {
	if o.width <= 0 || o.height <= 0 || o.frames <= 0 {
		return fmt.Errorf("invalid size %dx%d or frame count %d", o.width, o.height, o.frames)
	}

	dev, err := openDevice(o.backend)
	if err != nil {
		return err
	}
	defer dev.Close()

	cfg, err := loadConfig(o.config)
	if err != nil {
		return err
	}
	if o.lut != "" {
		lut, err := loadLUT(o.lut)
		if err != nil {
			return err
		}
		if cfg.Tonemap == nil {
			s := tonemap.DefaultSettings()
			cfg.Tonemap = &s
		}
		cfg.Tonemap.Grading.Enabled = true
		cfg.Tonemap.UserLUT = lut
	}

	p := postfx.New(dev, postfx.WithConfig(cfg))
	if err := p.Activate(); err != nil {
		if !errors.Is(err, pass.ErrUnsupported) {
			return err
		}
		log.Printf("some effects are unavailable on %s: %v", dev.Name(), err)
	}
	defer p.Deactivate()

	sc, err := newScene(dev, o.width, o.height)
	if err != nil {
		return err
	}
	defer sc.destroy(dev)

	dst, err := dev.NewSurface(pass.SurfaceDesc{
		Label:  "backbuffer",
		Width:  o.width,
		Height: o.height,
		Format: pass.FormatRGBA8,
	})
	if err != nil {
		return err
	}
	defer dev.DestroySurface(dst)

	cam := sc.camera()
	start := time.Now()
	for range o.frames {
		p.PreRender(cam)
		if err := sc.render(dev, cam); err != nil {
			return err
		}
		p.PostRender(cam)

		err := p.RenderFrame(ctx, &camera.FrameContext{
			Camera:      cam,
			Source:      sc.color,
			Destination: dst,
			GBuffer:     sc.gbuffer(),
		})
		if err != nil {
			log.Printf("frame: %v", err)
		}
	}
	elapsed := time.Since(start)

	pix, err := dev.ReadSurface(dst)
	if err != nil {
		return err
	}
	if err := save(o.output, toImage(pix, o.width, o.height)); err != nil {
		return err
	}

	printStats(os.Stdout, dev.Name(), p.Stats(), elapsed)
	log.Printf("saved %s (%dx%d, %d frames)", o.output, o.width, o.height, o.frames)
	return nil
}

func openDevice(name string) (backend.Device, error) {
	if name == "" {
		return backend.Default()
	}
	return backend.Get(name)
}

// loadConfig reads path, or returns every effect with demo settings when
// path is empty.
func loadConfig(path string) (postfx.Config, error) {
	if path != "" {
		return postfx.LoadConfig(path)
	}
	aa := taa.DefaultSettings()
	aa.Mode = taa.Standard4x
	d := dof.DefaultSettings()
	d.FocusPlane = 0.08
	refl := ssr.DefaultSettings()
	tm := tonemap.DefaultSettings()
	tm.Filmic.Enabled = true
	return postfx.Config{TAA: &aa, DoF: &d, SSR: &refl, Tonemap: &tm}, nil
}

func loadLUT(path string) (*tonemap.UserLUT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return tonemap.NewUserLUT(img)
}
