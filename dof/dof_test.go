package dof

import (
	"context"
	"errors"
	"math"
	"testing"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/backend/software"
	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

func newDevice(t *testing.T) *software.Device {
	t.Helper()
	d := software.New(software.WithWorkers(2))
	t.Cleanup(d.Close)
	return d
}

func upload(t *testing.T, dev *software.Device, label string, w, h int, format pass.Format, fn func(x, y int) [4]float32) pass.Surface {
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

// newFrame renders a grey gradient with a bright 2x2 highlight. The left
// half is near the camera, the right half at the far plane.
func newFrame(t *testing.T, dev *software.Device, w, h int) *camera.FrameContext {
	t.Helper()
	src := upload(t, dev, "src", w, h, pass.FormatRGBA16F, func(x, y int) [4]float32 {
		if x >= 3*w/4 && x < 3*w/4+2 && y >= h/2 && y < h/2+2 {
			return [4]float32{20, 20, 20, 1}
		}
		g := float32(x+y) / float32(w+h)
		return [4]float32{g, g * 0.5, 1 - g, 1}
	})
	depth := upload(t, dev, "depth", w, h, pass.FormatR32F, func(x, _ int) [4]float32 {
		if x < w/2 {
			return [4]float32{0.05, 0, 0, 1}
		}
		return [4]float32{1, 0, 0, 1}
	})
	dst := upload(t, dev, "dst", w, h, pass.FormatRGBA16F, nil)
	return &camera.FrameContext{
		Camera:      camera.New(w, h, 60, 0.1, 100),
		Source:      src,
		Destination: dst,
		GBuffer:     camera.GBuffer{Depth: depth},
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

func TestCocParamsBasic(t *testing.T) {
	s := DefaultSettings()
	bp, coe := CocParams(s, 60, 0.01)
	slope := float32(4 / math.Tan(math.Pi/6))
	if d := bp[1] - slope; d > 1e-4 || d < -1e-4 {
		t.Errorf("slope = %v, want %v", bp[1], slope)
	}
	if d := bp[0] - slope/5; d > 1e-4 || d < -1e-4 {
		t.Errorf("slope/fStops = %v, want %v", bp[0], slope/5)
	}
	if bp[2] != 0.01 {
		t.Errorf("focus = %v, want 0.01", bp[2])
	}
	if want := float32(0.9 * 0.9 * 0.9 * 0.9); math.Abs(float64(bp[3]-want)) > 1e-6 {
		t.Errorf("range = %v, want %v", bp[3], want)
	}
	if coe != (f32.Vec4{0, 0, 1, 1}) {
		t.Errorf("blurCoe = %v, want (0, 0, 1, 1)", coe)
	}
}

func TestBasicCocGrowsAwayFromFocus(t *testing.T) {
	for _, focus := range []float32{0.002, 0.1, 0.4} {
		s := DefaultSettings()
		s.FocusRange = 0.5
		bp, _ := CocParams(s, 45, focus)

		for _, side := range []float32{-1, 1} {
			prev := float32(0)
			for i := 0; i <= 200; i++ {
				d := focus + side*float32(i)/200
				if d < 0 || d > 1 {
					break
				}
				c := kernel.CocBasic(bp, d)
				if c*side < 0 {
					t.Fatalf("focus %v depth %v: CoC %v has the wrong sign", focus, d, c)
				}
				mag := float32(math.Abs(float64(c)))
				if mag < prev {
					t.Fatalf("focus %v depth %v: |CoC| %v < %v", focus, d, mag, prev)
				}
				prev = mag
			}
		}
	}
}

func TestExplicitCocGuard(t *testing.T) {
	tests := []struct {
		name              string
		near, far, focus  float32
		nearFall, farFall float32
	}{
		{"regular", 0.3, 0.9, 0.2, 0.5, 0.5},
		{"focus on near plane", 0.5, 0.9, 0.0625, 0.1, 0.1},
		{"focus on far plane", 0.1, 0.5, 0.0625, 0.1, 0.1},
		{"collapsed planes", 0.5, 0.5, 0.0625, 0.9, 0.9},
		{"inverted planes", 0.9, 0.2, 0.3, 0.9, 0.9},
		{"zero falloff", 0.2, 0.8, 0.1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.Model = Explicit
			s.NearPlane, s.FarPlane = tt.near, tt.far
			s.NearFalloff, s.FarFalloff = tt.nearFall, tt.farFall
			bp, coe := CocParams(s, 60, tt.focus)
			for i, v := range append(bp[:], coe[:]...) {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					t.Fatalf("component %d = %v", i, v)
				}
			}
		})
	}
}

func TestExplicitCocRamps(t *testing.T) {
	s := DefaultSettings()
	s.Model = Explicit
	s.NearPlane, s.FarPlane = 0.5, 0.9
	s.NearFalloff, s.FarFalloff = 0.5, 0.5
	near, far := float32(0.0625), float32(0.6561)
	focus := float32(0.3)
	bp, _ := CocParams(s, 60, focus)

	if c := kernel.CocExplicit(bp, near); c > -0.999 {
		t.Errorf("CoC at near plane = %v, want -1", c)
	}
	if c := kernel.CocExplicit(bp, far); c < 0.999 {
		t.Errorf("CoC at far plane = %v, want 1", c)
	}
	if c := kernel.CocExplicit(bp, focus); c != 0 {
		t.Errorf("CoC at focus = %v, want 0", c)
	}
}

func TestDirectionsCached(t *testing.T) {
	dev := newDevice(t)
	e := activated(t, dev, DefaultSettings())
	if n := e.aperture.recomputes; n != 1 {
		t.Fatalf("recomputes after Activate = %d, want 1", n)
	}
	for range 5 {
		e.Directions()
	}
	if n := e.aperture.recomputes; n != 1 {
		t.Fatalf("recomputes with unchanged orientation = %d, want 1", n)
	}

	s := e.Settings()
	s.Orientation = 1e-3
	e.SetSettings(s)
	e.Directions()
	e.Directions()
	if n := e.aperture.recomputes; n != 2 {
		t.Errorf("recomputes after orientation change = %d, want 2", n)
	}
}

func TestDirectionsRotate(t *testing.T) {
	d := DirectionsFor(90)
	if math.Abs(float64(d.Hexagonal[0][0])) > 1e-6 || math.Abs(float64(d.Hexagonal[0][1]-0.5)) > 1e-6 {
		t.Errorf("hexagonal[0] rotated 90° = %v, want (0, 0.5)", d.Hexagonal[0])
	}
	for i, v := range d.Octagonal {
		if got := math.Hypot(float64(v[0]), float64(v[1])); math.Abs(got-0.5) > 1e-5 {
			t.Errorf("octagonal[%d] length = %v, want 0.5", i, got)
		}
	}
}

func TestNegligibleBlurCopiesSource(t *testing.T) {
	dev := newDevice(t)
	frame := newFrame(t, dev, 16, 16)
	s := DefaultSettings()
	s.NearRadius, s.FarRadius = 1, 1
	e := activated(t, dev, s)

	before := dev.Stats().Passes
	if err := e.RenderFrame(context.Background(), frame); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if got := dev.Stats().Passes; got != before {
		t.Errorf("ran %d passes, want 0", got-before)
	}
	src, dst := read(t, dev, frame.Source), read(t, dev, frame.Destination)
	for i := range src {
		if src[i] != dst[i] {
			t.Fatalf("pix[%d] = %v, want %v", i, dst[i], src[i])
		}
	}
}

func TestRenderVariants(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"default", func(*Settings) {}},
		{"hexagonal low", func(s *Settings) {
			s.Aperture = Hexagonal
			s.NearRadius, s.FarRadius = 60, 60
		}},
		{"hexagonal medium", func(s *Settings) {
			s.Aperture = Hexagonal
			s.NearRadius, s.FarRadius = 200, 200
		}},
		{"octagonal high", func(s *Settings) {
			s.Aperture = Octagonal
			s.NearRadius, s.FarRadius = 400, 400
		}},
		{"octagonal rotated", func(s *Settings) {
			s.Aperture = Octagonal
			s.Orientation = 30
		}},
		{"circle wide", func(s *Settings) { s.NearRadius, s.FarRadius = 400, 400 }},
		{"no dilation", func(s *Settings) {
			s.DilateNearBlur = false
			s.Aperture = Hexagonal
		}},
		{"no prefilter", func(s *Settings) { s.Prefilter = false }},
		{"median normal", func(s *Settings) { s.Median = MedianNormal }},
		{"median off", func(s *Settings) { s.Median = MedianOff }},
		{"bilinear", func(s *Settings) { s.HighQualityUpsampling = false }},
		{"explicit", func(s *Settings) {
			s.Model = Explicit
			s.NearPlane, s.FarPlane = 0.4, 0.9
		}},
		{"boost", func(s *Settings) { s.NearBoost, s.FarBoost = 1, 1 }},
		{"bokeh", func(s *Settings) {
			s.Bokeh.Enabled = true
			s.NearRadius, s.FarRadius = 200, 200
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice(t)
			frame := newFrame(t, dev, 32, 32)
			s := DefaultSettings()
			tt.modify(&s)
			e := activated(t, dev, s)
			if err := e.RenderFrame(context.Background(), frame); err != nil {
				t.Fatalf("RenderFrame: %v", err)
			}
			for i, v := range read(t, dev, frame.Destination) {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					t.Fatalf("pix[%d] = %v", i, v)
				}
			}
			if st := e.PoolStats(); st.Live != 0 {
				t.Errorf("%d pooled surfaces still live after the frame", st.Live)
			}
		})
	}
}

func TestRenderAfterPooledSurfacesDestroyed(t *testing.T) {
	tests := []struct {
		name  string
		reset func(e *Engine) error
	}{
		{"reactivate", func(e *Engine) error {
			e.Deactivate()
			if names := e.params.Textures(); len(names) != 0 {
				t.Errorf("bindings survive Deactivate: %v", names)
			}
			return e.Activate()
		}},
		{"trim", func(e *Engine) error {
			e.Temps().Trim()
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice(t)
			frame := newFrame(t, dev, 32, 32)
			s := DefaultSettings()
			s.NearRadius, s.FarRadius = 200, 200
			e := activated(t, dev, s)
			ctx := context.Background()
			if err := e.RenderFrame(ctx, frame); err != nil {
				t.Fatalf("RenderFrame: %v", err)
			}
			if err := tt.reset(e); err != nil {
				t.Fatalf("reset: %v", err)
			}
			if err := e.RenderFrame(ctx, frame); err != nil {
				t.Fatalf("second RenderFrame: %v", err)
			}
		})
	}
}

func TestFarBlurChangesBackground(t *testing.T) {
	dev := newDevice(t)
	frame := newFrame(t, dev, 32, 32)
	s := DefaultSettings()
	s.NearRadius, s.FarRadius = 200, 200
	e := activated(t, dev, s)
	if err := e.RenderFrame(context.Background(), frame); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	src, dst := read(t, dev, frame.Source), read(t, dev, frame.Destination)
	i := (16*32 + 24) * 4
	if src[i] == dst[i] {
		t.Errorf("background pixel unchanged: %v", dst[i])
	}
}

func TestBokehBuffersPersist(t *testing.T) {
	dev := newDevice(t)
	frame := newFrame(t, dev, 32, 32)
	buffers := dev.Stats().Buffers

	s := DefaultSettings()
	s.Bokeh.Enabled = true
	s.NearRadius, s.FarRadius = 200, 200
	e := New(dev, s)
	if err := e.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	draws := dev.Stats().Draws
	for range 2 {
		if err := e.RenderFrame(context.Background(), frame); err != nil {
			t.Fatalf("RenderFrame: %v", err)
		}
	}
	st := dev.Stats()
	if st.Buffers != buffers+2 {
		t.Errorf("buffers = %d, want %d", st.Buffers, buffers+2)
	}
	if st.Draws != draws+2 {
		t.Errorf("draws = %d, want %d", st.Draws, draws+2)
	}
	if st.Points == 0 {
		t.Error("no bokeh points drawn")
	}

	e.Deactivate()
	if got := dev.Stats().Buffers; got != buffers {
		t.Errorf("buffers after Deactivate = %d, want %d", got, buffers)
	}
}

// noBokeh is a device without the sprite program.
type noBokeh struct{ *software.Device }

func (d noBokeh) Supports(program string) error {
	if program == programs.DoFBokeh {
		return &pass.ProgramError{Program: program, Err: pass.ErrUnsupported}
	}
	return d.Device.Supports(program)
}

func TestBokehSkippedWhenUnsupported(t *testing.T) {
	dev := newDevice(t)
	frame := newFrame(t, dev, 16, 16)
	s := DefaultSettings()
	s.Bokeh.Enabled = true
	s.NearRadius, s.FarRadius = 200, 200
	e := activated(t, noBokeh{dev}, s)

	if err := e.RenderFrame(context.Background(), frame); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if st := dev.Stats(); st.Draws != 0 || st.Buffers != 0 {
		t.Errorf("draws=%d buffers=%d, want 0/0", st.Draws, st.Buffers)
	}
}

func TestUnsupportedDeviceDisables(t *testing.T) {
	dev := newDevice(t)
	e := New(unsupported{dev}, DefaultSettings())
	if err := e.Activate(); !errors.Is(err, pass.ErrUnsupported) {
		t.Fatalf("Activate = %v, want ErrUnsupported", err)
	}
	frame := newFrame(t, dev, 8, 8)
	if err := e.RenderFrame(context.Background(), frame); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if read(t, dev, frame.Destination)[0] != read(t, dev, frame.Source)[0] {
		t.Error("disabled engine did not copy")
	}
}

type unsupported struct{ *software.Device }

func (unsupported) Supports(string) error { return pass.ErrUnsupported }

func TestVisualizeSeparatesNearAndFar(t *testing.T) {
	dev := newDevice(t)
	frame := newFrame(t, dev, 16, 16)
	s := DefaultSettings()
	s.Visualize = true
	s.FocusPlane = 0.8
	e := activated(t, dev, s)
	if err := e.RenderFrame(context.Background(), frame); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	pix := read(t, dev, frame.Destination)
	near := pix[(8*16+2)*4:]
	far := pix[(8*16+14)*4:]
	if near[0] <= near[2] {
		t.Errorf("near pixel %v not red", near[:4])
	}
	if far[2] <= far[0] {
		t.Errorf("far pixel %v not blue", far[:4])
	}
}

func TestFocusOn(t *testing.T) {
	cam := camera.New(16, 16, 60, 0.1, 100)
	cam.WorldToCamera = camera.LookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	got := FocusOn(f32.Vec3{0, 0, 0})(cam)
	if math.Abs(float64(got-0.05)) > 1e-6 {
		t.Errorf("focus depth = %v, want 0.05", got)
	}

	s := DefaultSettings()
	s.FocusTarget = FocusOn(f32.Vec3{0, 0, 0})
	if d := s.focusDepth(cam); d != got {
		t.Errorf("focusDepth = %v, want %v", d, got)
	}
}

func TestShapeTier(t *testing.T) {
	tests := []struct {
		r    float32
		want int
	}{{0.5, 0}, {5, 0}, {5.1, 1}, {10, 1}, {10.1, 2}}
	for _, tt := range tests {
		if got := shapeTier(tt.r); got != tt.want {
			t.Errorf("shapeTier(%v) = %d, want %d", tt.r, got, tt.want)
		}
	}
}
