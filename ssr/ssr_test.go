package ssr

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/postfx/backend/software"
	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

func newDevice(t *testing.T) *software.Device {
	t.Helper()
	d := software.New(software.WithWorkers(2))
	t.Cleanup(d.Close)
	return d
}

func upload(t *testing.T, dev pass.Device, label string, w, h int, format pass.Format, fn func(x, y int) [4]float32) pass.Surface {
	t.Helper()
	s, err := dev.NewSurface(pass.SurfaceDesc{Label: label, Width: w, Height: h, Format: format})
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	if fn == nil {
		return s
	}
	pix := make([]float32, w*h*4)
	for y := range h {
		for x := range w {
			c := fn(x, y)
			copy(pix[(y*w+x)*4:], c[:])
		}
	}
	if err := dev.WriteSurface(s, pix); err != nil {
		t.Fatalf("WriteSurface: %v", err)
	}
	return s
}

// newFrame renders a glossy floor in the lower half under a bright wall.
func newFrame(t *testing.T, dev pass.Device, w, h int) *camera.FrameContext {
	t.Helper()
	src := upload(t, dev, "src", w, h, pass.FormatRGBA16F, func(x, y int) [4]float32 {
		if y < h/2 {
			return [4]float32{2, 1.5, 1, 1}
		}
		g := float32(x) / float32(w)
		return [4]float32{0.1 * g, 0.1, 0.1, 1}
	})
	depth := upload(t, dev, "depth", w, h, pass.FormatR32F, func(_, y int) [4]float32 {
		if y < h/2 {
			return [4]float32{0.3, 0, 0, 1}
		}
		return [4]float32{0.05 + 0.2*float32(h-y)/float32(h), 0, 0, 1}
	})
	normals := upload(t, dev, "normals", w, h, pass.FormatRGBA8, func(_, y int) [4]float32 {
		if y < h/2 {
			return [4]float32{0.5, 0.5, 1, 1}
		}
		return [4]float32{0.5, 1, 0.5, 1}
	})
	spec := upload(t, dev, "specular", w, h, pass.FormatRGBA8, func(_, _ int) [4]float32 {
		return [4]float32{0.5, 0.5, 0.5, 0.9}
	})
	dst := upload(t, dev, "dst", w, h, pass.FormatRGBA16F, nil)
	return &camera.FrameContext{
		Camera:      camera.New(w, h, 60, 0.1, 100),
		Source:      src,
		Destination: dst,
		GBuffer:     camera.GBuffer{Depth: depth, Normals: normals, Specular: spec},
	}
}

func activated(t *testing.T, dev pass.Device, s Settings) *Engine {
	t.Helper()
	e := New(dev, s)
	if err := e.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	t.Cleanup(e.Deactivate)
	return e
}

func read(t *testing.T, dev *software.Device, s pass.Surface) []float32 {
	t.Helper()
	pix, err := dev.ReadSurface(s)
	if err != nil {
		t.Fatalf("ReadSurface: %v", err)
	}
	return pix
}

func TestTracePass(t *testing.T) {
	tests := []struct {
		step int
		want int
	}{
		{-1, programs.SSRRayTraceStep1},
		{0, programs.SSRRayTraceStep1},
		{1, programs.SSRRayTraceStep2},
		{3, programs.SSRRayTraceStep8},
		{4, programs.SSRRayTraceStep16},
		{9, programs.SSRRayTraceStep16},
	}
	for _, tt := range tests {
		if got := TracePass(tt.step); got != tt.want {
			t.Errorf("TracePass(%d) = %d, want %d", tt.step, got, tt.want)
		}
	}
}

func TestViewConstants(t *testing.T) {
	cam := camera.New(320, 180, 60, 0.3, 1000)
	vc := ViewConstantsFor(cam, 320, 180)

	if vc.ScreenSize[0] != 320 || vc.ScreenSize[1] != 180 {
		t.Errorf("ScreenSize = %v", vc.ScreenSize)
	}
	if got := vc.InvScreenSize[0] * vc.ScreenSize[0]; math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("InvScreenSize·ScreenSize = %v, want 1", got)
	}
	want := 320 / (-2 * math.Tan(math.Pi/6))
	if math.Abs(float64(vc.PixelsPerMeterAtOneMeter)-want) > 1e-3 {
		t.Errorf("PixelsPerMeterAtOneMeter = %v, want %v", vc.PixelsPerMeterAtOneMeter, want)
	}
	if vc.ClipInfo[0] != 0.3*1000 || vc.ClipInfo[2] != 1000 {
		t.Errorf("ClipInfo = %v", vc.ClipInfo)
	}

	cam.Far = float32(math.Inf(1))
	vc = ViewConstantsFor(cam, 320, 180)
	if vc.ClipInfo[0] != 0.3 || vc.ClipInfo[1] != -1 || vc.ClipInfo[2] != 1 {
		t.Errorf("infinite far ClipInfo = %v, want (near, -1, 1)", vc.ClipInfo)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range []string{"performance", "Default", "", "high"} {
		if _, err := ParsePreset(name); err != nil {
			t.Errorf("ParsePreset(%q): %v", name, err)
		}
	}
	if _, err := ParsePreset("ultra"); err == nil {
		t.Error("ParsePreset(ultra) succeeded")
	}

	perf := PresetPerformance.Settings()
	if perf.Advanced.TemporalFilterStrength != 0 || perf.Advanced.Resolution != HalfResolution {
		t.Errorf("performance advanced = %+v", perf.Advanced)
	}
	if hq := PresetHighQuality.Settings(); hq.Reflection.RayStepSize != 1 || hq.Reflection.MaxSteps != 512 {
		t.Errorf("high quality reflection = %+v", hq.Reflection)
	}
	def := DefaultSettings()
	if def.Advanced.Resolution != HalfTraceFullResolve || def.Advanced.TemporalFilterStrength != 0.7 {
		t.Errorf("default advanced = %+v", def.Advanced)
	}
	if DebugMipLevel.String() != "MipLevel" || DebugMode(99).String() != "DebugMode(99)" {
		t.Errorf("debug names: %v, %v", DebugMipLevel, DebugMode(99))
	}
}

func TestForwardPathCopies(t *testing.T) {
	dev := newDevice(t)
	e := activated(t, dev, DefaultSettings())
	frame := newFrame(t, dev, 16, 16)
	frame.Camera.RenderPath = camera.Forward

	before := dev.Stats().Passes
	if err := e.RenderFrame(context.Background(), frame); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if n := dev.Stats().Passes - before; n != 0 {
		t.Errorf("ran %d passes on a forward camera", n)
	}
	src, dst := read(t, dev, frame.Source), read(t, dev, frame.Destination)
	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("pixel %d = %v, want %v", i/4, dst[i], src[i])
		}
	}
}

func checkHistory(t *testing.T, e *Engine) {
	t.Helper()
	if e.prev == nil {
		return
	}
	if e.prev.depth == nil || e.prev.hit == nil || e.prev.reflection == nil {
		t.Fatalf("partial history: %+v", *e.prev)
	}
	for _, s := range []pass.Surface{e.prev.depth, e.prev.hit, e.prev.reflection} {
		if s.Width() != e.prev.width || s.Height() != e.prev.height {
			t.Fatalf("history surface %q is %dx%d, want %dx%d",
				s.Label(), s.Width(), s.Height(), e.prev.width, e.prev.height)
		}
	}
}

func TestHistoryAllOrNone(t *testing.T) {
	dev := newDevice(t)
	ctx := context.Background()
	e := activated(t, dev, DefaultSettings())
	checkHistory(t, e)

	big := newFrame(t, dev, 16, 16)
	for range 2 {
		if err := e.RenderFrame(ctx, big); err != nil {
			t.Fatalf("RenderFrame: %v", err)
		}
		checkHistory(t, e)
	}
	if e.prev == nil || e.prev.width != 16 {
		t.Fatal("no history after a temporal frame")
	}

	old := *e.prev
	small := newFrame(t, dev, 8, 8)
	if err := e.RenderFrame(ctx, small); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	checkHistory(t, e)
	if e.prev.width != 8 || e.prev.height != 8 {
		t.Errorf("history is %dx%d after resize, want 8x8", e.prev.width, e.prev.height)
	}
	for _, s := range []pass.Surface{old.depth, old.hit, old.reflection} {
		if _, err := dev.ReadSurface(s); err == nil {
			t.Errorf("old history surface %q still allocated", s.Label())
		}
	}

	s := e.Settings()
	s.Advanced.TemporalFilterStrength = 0
	e.SetSettings(s)
	if err := e.RenderFrame(ctx, small); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	checkHistory(t, e)
	if e.HasPreviousFrame() {
		t.Error("HasPreviousFrame after a frame without temporal filtering")
	}

	e.Deactivate()
	checkHistory(t, e)
	if e.prev != nil {
		t.Error("history survives Deactivate")
	}
}

func TestReactivateAfterDeactivate(t *testing.T) {
	dev := newDevice(t)
	ctx := context.Background()
	s := DefaultSettings()
	s.Debug.AverageRayDistance = true
	e := activated(t, dev, s)
	frame := newFrame(t, dev, 8, 8)

	for round := range 2 {
		if err := e.RenderFrame(ctx, frame); err != nil {
			t.Fatalf("round %d: RenderFrame: %v", round, err)
		}
		e.Deactivate()
		if names := e.params.Textures(); len(names) != 0 {
			t.Fatalf("round %d: bindings survive Deactivate: %v", round, names)
		}
		if err := e.Activate(); err != nil {
			t.Fatalf("round %d: Activate: %v", round, err)
		}
	}
	if err := e.RenderFrame(ctx, frame); err != nil {
		t.Fatalf("RenderFrame after reactivation: %v", err)
	}
}

// recorder runs passes on the software device and reports each one after
// it completes.
type recorder struct {
	*software.Device
	after func(p pass.Pass, dst pass.Surface, params *pass.Params)
}

func (r recorder) Execute(ctx context.Context, src, dst pass.Surface, p pass.Pass, params *pass.Params) error {
	if err := r.Device.Execute(ctx, src, dst, p, params); err != nil {
		return err
	}
	if r.after != nil {
		r.after(p, dst, params)
	}
	return nil
}

func TestTemporalUsesPreviousFrame(t *testing.T) {
	dev := newDevice(t)
	ctx := context.Background()

	type temporalRun struct {
		prevRefl, prevDepth pass.Surface
		current, out        []float32
	}
	var runs []temporalRun
	rec := recorder{Device: dev}
	rec.after = func(p pass.Pass, dst pass.Surface, params *pass.Params) {
		if p.Program != programs.SSR || p.Index != programs.SSRTemporalFilter {
			return
		}
		runs = append(runs, temporalRun{
			prevRefl:  params.Texture("_PreviousReflectionTexture"),
			prevDepth: params.Texture("_PreviousCSZBuffer"),
			current:   read(t, dev, params.Texture("_FinalReflectionTexture")),
			out:       read(t, dev, dst),
		})
	}

	s := DefaultSettings()
	s.Advanced.TemporalFilterStrength = 0.7
	s.Advanced.UseTemporalConfidence = false
	e := activated(t, rec, s)
	frame := newFrame(t, rec, 16, 16)

	if e.HasPreviousFrame() {
		t.Fatal("HasPreviousFrame before the first frame")
	}
	if err := e.RenderFrame(ctx, frame); err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("frame 1 ran the temporal filter %d times", len(runs))
	}
	if !e.HasPreviousFrame() {
		t.Fatal("HasPreviousFrame false after frame 1")
	}
	checkHistory(t, e)
	depth, refl := e.prev.depth, e.prev.reflection

	// Mark the stored reflection so the blend is observable.
	w, h := e.prev.width, e.prev.height
	white := make([]float32, w*h*4)
	for i := range white {
		white[i] = 1
	}
	if err := dev.WriteSurface(refl, white); err != nil {
		t.Fatalf("WriteSurface: %v", err)
	}

	if err := e.RenderFrame(ctx, frame); err != nil {
		t.Fatalf("frame 2: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("frame 2 ran the temporal filter %d times, want 1", len(runs))
	}
	r := runs[0]
	if r.prevRefl != refl || r.prevDepth != depth {
		t.Error("temporal filter did not read frame 1's history")
	}
	if len(r.out) != len(r.current) {
		t.Fatalf("temporal output has %d values, current %d", len(r.out), len(r.current))
	}
	rw := r.prevRefl.Width()
	i := ((len(r.out)/4)/2 + rw/2) * 4
	want := r.current[i]*0.3 + 0.7
	if math.Abs(float64(r.out[i]-want)) > 1e-2 {
		t.Errorf("blended centre = %v, want %v (current %v)", r.out[i], want, r.current[i])
	}
	if !e.HasPreviousFrame() {
		t.Error("HasPreviousFrame false after frame 2")
	}
}

func TestRenderVariants(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"default", func(*Settings) {}},
		{"performance", func(s *Settings) {
			*s = PerformanceSettings()
		}},
		{"high quality", func(s *Settings) {
			*s = HighQualitySettings()
		}},
		{"full resolution", func(s *Settings) {
			s.Advanced.Resolution = FullResolution
		}},
		{"full resolution filtering", func(s *Settings) {
			s.Debug.FullResolutionFiltering = true
		}},
		{"edge detector", func(s *Settings) {
			s.Debug.UseEdgeDetector = true
		}},
		{"average ray distance", func(s *Settings) {
			s.Debug.AverageRayDistance = true
		}},
		{"ldr additive", func(s *Settings) {
			s.Basic.EnableHDR = false
			s.Basic.AdditiveReflection = true
		}},
		{"debug mask", func(s *Settings) {
			s.Debug.Mode = DebugSSRMask
		}},
		{"debug mip level", func(s *Settings) {
			s.Debug.Mode = DebugMipLevel
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice(t)
			s := DefaultSettings()
			tt.modify(&s)
			e := activated(t, dev, s)
			frame := newFrame(t, dev, 16, 16)
			for range 2 {
				if err := e.RenderFrame(context.Background(), frame); err != nil {
					t.Fatalf("RenderFrame: %v", err)
				}
			}
			for i, v := range read(t, dev, frame.Destination) {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					t.Fatalf("value %d = %v", i, v)
				}
			}
			if st := e.PoolStats(); st.Live != 0 {
				t.Errorf("%d temporaries still live", st.Live)
			}
		})
	}
}

type unsupported struct{ *software.Device }

func (unsupported) Supports(string) error { return pass.ErrUnsupported }

func TestUnsupportedDeviceDisables(t *testing.T) {
	dev := newDevice(t)
	e := New(unsupported{dev}, DefaultSettings())
	if err := e.Activate(); !errors.Is(err, pass.ErrUnsupported) {
		t.Fatalf("Activate = %v, want ErrUnsupported", err)
	}
	if e.NeedsDepth() {
		t.Error("disabled engine needs depth")
	}
	frame := newFrame(t, dev, 8, 8)
	if err := e.RenderFrame(context.Background(), frame); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if read(t, dev, frame.Destination)[0] != read(t, dev, frame.Source)[0] {
		t.Error("disabled engine did not copy")
	}
}
