package tonemap

import (
	"context"
	"errors"
	"image"
	"image/color"
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
	d := software.New(software.WithWorkers(1))
	t.Cleanup(d.Close)
	return d
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

// newFrame fills a 4x4 source with c.
func newFrame(t *testing.T, dev *software.Device, c [4]float32) *camera.FrameContext {
	t.Helper()
	mk := func(label string) pass.Surface {
		s, err := dev.NewSurface(pass.SurfaceDesc{Label: label, Width: 4, Height: 4, Format: pass.FormatRGBA32F})
		if err != nil {
			t.Fatalf("NewSurface: %v", err)
		}
		return s
	}
	src, dst := mk("src"), mk("dst")
	pix := make([]float32, 4*4*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:], c[:])
	}
	if err := dev.WriteSurface(src, pix); err != nil {
		t.Fatalf("WriteSurface: %v", err)
	}
	return &camera.FrameContext{
		Camera:      camera.New(4, 4, 60, 0.1, 100),
		Source:      src,
		Destination: dst,
	}
}

func render(t *testing.T, dev *software.Device, e *Engine, c [4]float32) [4]float32 {
	t.Helper()
	f := newFrame(t, dev, c)
	if err := e.RenderFrame(context.Background(), f); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	pix, err := dev.ReadSurface(f.Destination)
	if err != nil {
		t.Fatalf("ReadSurface: %v", err)
	}
	return [4]float32{pix[0], pix[1], pix[2], pix[3]}
}

func near(a, b, tol float32) bool { return math.Abs(float64(a-b)) <= float64(tol) }

func nearVec3(a, b f32.Vec3, tol float32) bool {
	return near(a[0], b[0], tol) && near(a[1], b[1], tol) && near(a[2], b[2], tol)
}

func TestPassFor(t *testing.T) {
	tests := []struct {
		fast, debug bool
		want        int
	}{
		{false, false, programs.TonemapThreeD},
		{true, false, programs.TonemapOneD},
		{false, true, programs.TonemapThreeDDebug},
		{true, true, programs.TonemapOneDDebug},
	}
	for _, tt := range tests {
		if got := PassFor(tt.fast, tt.debug); got != tt.want {
			t.Errorf("PassFor(%v, %v) = %d, want %d", tt.fast, tt.debug, got, tt.want)
		}
	}
}

func TestBakeIdentity(t *testing.T) {
	const n = programs.LUT3DSize
	pix := Bake3D(DefaultSettings())
	if len(pix) != n*n*n*4 {
		t.Fatalf("len = %d", len(pix))
	}
	want := func(i int) float32 {
		return min(kernel.LutToLin(float32(i)/(n-1), kernel.LutA), 1)
	}
	for _, c := range [][3]int{{0, 0, 0}, {5, 9, 13}, {16, 2, 30}, {31, 31, 31}} {
		r, g, b := c[0], c[1], c[2]
		o := (g*n*n + r + b*n) * 4
		got := [3]float32{pix[o], pix[o+1], pix[o+2]}
		exp := [3]float32{want(r), want(g), want(b)}
		for k := range 3 {
			if !near(got[k], exp[k], 1e-5) {
				t.Errorf("entry %v = %v, want %v", c, got, exp)
				break
			}
		}
	}

	curve := Bake1D(DefaultSettings())
	const m = programs.LUT1DSize
	for i := range m {
		if curve[i*4] != curve[(m+i)*4] {
			t.Fatalf("curve rows differ at %d", i)
		}
	}
}

func TestIdentityRender(t *testing.T) {
	for _, fast := range []bool{false, true} {
		dev := newDevice(t)
		s := DefaultSettings()
		s.FastMode = fast
		e := activated(t, dev, s)

		in := [4]float32{0.2, 0.5, 0.8, 1}
		out := render(t, dev, e, in)
		for k := range 3 {
			if !near(out[k], in[k], 0.01) {
				t.Errorf("fast=%v: out = %v, want %v", fast, out, in)
				break
			}
		}
		if out := render(t, dev, e, [4]float32{3, 3, 3, 1}); !near(out[0], 1, 0.01) {
			t.Errorf("fast=%v: over-range value = %v, want 1", fast, out[0])
		}
	}
}

func TestFilmicCurveMonotone(t *testing.T) {
	s := DefaultSettings()
	s.Filmic = Filmic{Enabled: true, Contrast: 1.2, Toe: 0.3, Shoulder: 0.5}
	curve := Bake1D(s)
	prev := float32(-1)
	for i := range programs.LUT1DSize {
		v := curve[i*4]
		if math.IsNaN(float64(v)) || v < prev-1e-6 {
			t.Fatalf("curve[%d] = %v after %v", i, v, prev)
		}
		prev = v
	}
	if prev > 1+1e-4 {
		t.Errorf("curve ends at %v, want at most 1", prev)
	}
}

func TestGradingSaturation(t *testing.T) {
	s := DefaultSettings()
	s.Grading.Enabled = true
	s.Grading.Saturation = 0
	pix := Bake3D(s)
	for o := 0; o < len(pix); o += 4 * 997 {
		if !near(pix[o], pix[o+1], 1e-5) || !near(pix[o+1], pix[o+2], 1e-5) {
			t.Fatalf("entry at %d is not grey: %v", o/4, pix[o:o+3])
		}
	}
	if Vibrance(s) != 0 {
		t.Errorf("Vibrance = %v, want 0", Vibrance(s))
	}
}

func TestExposureMult(t *testing.T) {
	s := DefaultSettings()
	s.Filmic.ExposureBias = 1
	if m := ExposureMult(s); m[0] != 1 {
		t.Errorf("disabled filmic exposure = %v, want 1", m)
	}
	s.Filmic.Enabled = true
	if m := ExposureMult(s); !near(m[0], 2, 1e-6) || m[3] != 1 {
		t.Errorf("exposure = %v, want 2", m)
	}
	s.Grading.Enabled = true
	s.Grading.WhiteBalance[2] = 0.5
	m := ExposureMult(s)
	if m[2] >= m[0] {
		t.Errorf("white balance did not reduce blue: %v", m)
	}
	if mean := (m[0] + m[1] + m[2]) / 3; !near(mean, 2, 1e-5) {
		t.Errorf("white balance changed the mean exposure: %v", mean)
	}
}

func TestDirtyRebake(t *testing.T) {
	dev := newDevice(t)
	e := activated(t, dev, DefaultSettings())
	in := [4]float32{0.5, 0.5, 0.5, 1}

	render(t, dev, e, in)
	render(t, dev, e, in)
	if e.bakes != 1 {
		t.Fatalf("bakes = %d after two frames, want 1", e.bakes)
	}

	e.SetDirty()
	render(t, dev, e, in)
	if e.bakes != 2 {
		t.Fatalf("bakes = %d after SetDirty, want 2", e.bakes)
	}

	s := e.Settings()
	s.FastMode = true
	e.SetSettings(s)
	render(t, dev, e, in)
	if e.bakes != 3 || e.lut1D == nil || e.lut3D != nil {
		t.Fatalf("fast mode: bakes=%d lut1D=%v lut3D=%v", e.bakes, e.lut1D, e.lut3D)
	}

	e.Deactivate()
	if e.lut1D != nil || e.lut3D != nil {
		t.Error("LUT surfaces survive Deactivate")
	}
}

func TestDebugClampMarksOutOfRange(t *testing.T) {
	dev := newDevice(t)
	s := DefaultSettings()
	s.DebugClamp = true
	e := activated(t, dev, s)
	if out := render(t, dev, e, [4]float32{50, 0, 0, 1}); out != [4]float32{1, 0, 1, 1} {
		t.Errorf("out-of-range pixel = %v, want magenta", out)
	}
	if out := render(t, dev, e, [4]float32{0.5, 0.5, 0.5, 1}); !near(out[0], 0.5, 0.01) {
		t.Errorf("in-range pixel = %v", out)
	}
}

// strip builds an n² × n LUT image from fn.
func strip(n int, fn func(r, g, b int) color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, n*n, n))
	for b := range n {
		for g := range n {
			for r := range n {
				img.SetNRGBA(r+b*n, g, fn(r, g, b))
			}
		}
	}
	return img
}

func TestUserLUT(t *testing.T) {
	const n = 16
	img := strip(n, func(r, g, b int) color.NRGBA {
		return color.NRGBA{uint8(r * 17), uint8(g * 17), uint8(b * 17), 255}
	})
	l, err := NewUserLUT(img)
	if err != nil {
		t.Fatalf("NewUserLUT: %v", err)
	}
	if l.Size() != n {
		t.Fatalf("Size = %d", l.Size())
	}
	id := IdentityLUT(n)
	for _, c := range [][3]int{{0, 0, 0}, {3, 7, 11}, {15, 0, 8}} {
		if got, want := l.SampleNearest(c[0], c[1], c[2]), id.SampleNearest(c[0], c[1], c[2]); !nearVec3(got, want, 1e-5) {
			t.Errorf("SampleNearest%v = %v, want %v", c, got, want)
		}
	}
	if got := l.SampleNearest(-4, 99, 3); got != l.SampleNearest(0, 15, 3) {
		t.Errorf("out-of-range coordinates not clamped: %v", got)
	}
	if a, b := l.SampleNearest(2, 4, 9), l.SampleNearestCompat(2, 4, 9); a == b {
		t.Errorf("compat lookup matched the correct one for g != b: %v", a)
	}
	if a, b := l.SampleNearest(2, 9, 9), l.SampleNearestCompat(2, 9, 9); a != b {
		t.Errorf("compat lookup %v differs from %v for g == b", b, a)
	}
	if a, b := l.SampleNearest(-3, 9, 9), l.SampleNearestCompat(-3, 9, 9); a != b {
		t.Errorf("compat lookup does not clamp r: %v, want %v", b, a)
	}
	for _, b := range []int{-1, n, n + 5} {
		if got := l.SampleNearestCompat(2, 4, b); got != (f32.Vec3{}) {
			t.Errorf("SampleNearestCompat(2, 4, %d) = %v, want zero for blue outside the table", b, got)
		}
	}
	if got := l.SampleLinear(0.5, 0.25, 1.5); !near(got[0], 0.5, 1e-5) || !near(got[1], 0.25, 1e-5) || got[2] != 1 {
		t.Errorf("SampleLinear = %v", got)
	}

	for _, bad := range []image.Image{nil, image.NewNRGBA(image.Rect(0, 0, 100, 16)), image.NewNRGBA(image.Rect(0, 0, 1, 1))} {
		if _, err := NewUserLUT(bad); !errors.Is(err, ErrInvalidLUT) {
			t.Errorf("NewUserLUT(%v) = %v, want ErrInvalidLUT", bad, err)
		}
	}
}

func TestUserLUTApplied(t *testing.T) {
	const n = 16
	invert, err := NewUserLUT(strip(n, func(r, g, b int) color.NRGBA {
		return color.NRGBA{uint8(255 - r*17), uint8(255 - g*17), uint8(255 - b*17), 255}
	}))
	if err != nil {
		t.Fatalf("NewUserLUT: %v", err)
	}
	dev := newDevice(t)
	s := DefaultSettings()
	s.UserLUT = invert
	e := activated(t, dev, s)
	out := render(t, dev, e, [4]float32{0.2, 0.5, 0.9, 1})
	want := [3]float32{0.8, 0.5, 0.1}
	for k := range 3 {
		if !near(out[k], want[k], 0.02) {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

type unsupported struct{ *software.Device }

func (unsupported) Supports(string) error { return pass.ErrUnsupported }

func TestUnsupportedDeviceCopies(t *testing.T) {
	dev := newDevice(t)
	e := New(unsupported{dev}, DefaultSettings())
	if err := e.Activate(); !errors.Is(err, pass.ErrUnsupported) {
		t.Fatalf("Activate = %v, want ErrUnsupported", err)
	}
	if out := render(t, dev, e, [4]float32{7, 0, 0, 1}); out[0] != 7 {
		t.Errorf("disabled engine output = %v, want a copy", out)
	}
}
