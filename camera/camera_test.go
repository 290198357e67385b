package camera

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/image/math/f32"
)

const eps = 1e-4

func near(a, b float32) bool { return math.Abs(float64(a-b)) < eps }

func matNear(t *testing.T, got, want f32.Mat4) {
	t.Helper()
	for i := range got {
		if !near(got[i], want[i]) {
			t.Fatalf("m[%d] = %v, want %v\n got %v\nwant %v", i, got[i], want[i], got, want)
		}
	}
}

func TestMulIdentity(t *testing.T) {
	m := Perspective(60, 16.0/9, 0.1, 100)
	matNear(t, Mul(Identity(), m), m)
	matNear(t, Mul(m, Identity()), m)
}

func TestInverse(t *testing.T) {
	tests := []struct {
		name string
		m    f32.Mat4
	}{
		{"perspective", Perspective(45, 1.5, 0.3, 1000)},
		{"translation", Translation(1, -2, 3)},
		{"look at", LookAt([3]float32{3, 2, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := Inverse(tt.m)
			if !ok {
				t.Fatal("Inverse reported singular matrix")
			}
			matNear(t, Mul(tt.m, inv), Identity())
		})
	}

	if _, ok := Inverse(f32.Mat4{}); ok {
		t.Error("zero matrix reported invertible")
	}
}

func TestRowMajorLayout(t *testing.T) {
	m := Translation(1, 2, 3)
	if m[3] != 1 || m[7] != 2 || m[11] != 3 {
		t.Fatalf("Translation(1, 2, 3) = %v, want the offset in the last column", m)
	}
	if got := Apply(m, f32.Vec4{1, 1, 1, 1}); got != (f32.Vec4{2, 3, 4, 1}) {
		t.Errorf("Apply = %v, want [2 3 4 1]", got)
	}
	p := Perspective(60, 1, 0.1, 100)
	if p[14] != -1 || p[11] == 0 {
		t.Errorf("Perspective w row or depth offset misplaced: %v", p)
	}
}

func TestPerspectiveInfiniteFar(t *testing.T) {
	inf := Perspective(60, 1.5, 0.1, float32(math.Inf(1)))
	far := Perspective(60, 1.5, 0.1, 1e7)
	matNear(t, inf, far)
	_, _, z := ApplyPoint(inf, 0, 0, -0.1)
	if !near(z, -1) {
		t.Errorf("near plane NDC z = %v, want -1", z)
	}
}

func TestPerspectiveMapsPlanes(t *testing.T) {
	p := Perspective(90, 1, 1, 10)
	_, _, zn := ApplyPoint(p, 0, 0, -1)
	_, _, zf := ApplyPoint(p, 0, 0, -10)
	if !near(zn, -1) || !near(zf, 1) {
		t.Errorf("near/far NDC = %v/%v, want -1/1", zn, zf)
	}
}

func TestProjInfoReconstructsViewPosition(t *testing.T) {
	const w, h = 320, 200
	p := Perspective(60, float32(w)/h, 0.1, 100)
	pi := ProjInfo(p, w, h)

	// Project a view point to pixels, then reconstruct it.
	view := [3]float32{1.5, -0.75, -8}
	x, y, _ := ApplyPoint(ProjectToPixel(p, w, h), view[0], view[1], view[2])

	rx := (x*pi[0] + pi[2]) * view[2]
	ry := (y*pi[1] + pi[3]) * view[2]
	if !near(rx, view[0]) || !near(ry, view[1]) {
		t.Errorf("reconstructed (%v, %v), want (%v, %v)", rx, ry, view[0], view[1])
	}
}

func TestPixelsPerMeter(t *testing.T) {
	// 90 degrees: tan(45) = 1, so w / -2.
	if got := PixelsPerMeterAtOneMeter(90, 640); !near(got, -320) {
		t.Errorf("PixelsPerMeterAtOneMeter = %v, want -320", got)
	}
}

func TestClipInfo(t *testing.T) {
	if got := ClipInfo(0.5, 100); got != (f32.Vec4{50, -99.5, 100, 0}) {
		t.Errorf("ClipInfo finite = %v", got)
	}
	if got := ClipInfo(0.5, float32(math.Inf(1))); got != (f32.Vec4{0.5, -1, 1, 0}) {
		t.Errorf("ClipInfo infinite = %v", got)
	}
}

func TestCameraValidate(t *testing.T) {
	tests := []struct {
		name    string
		cam     *Camera
		wantErr bool
	}{
		{"ok", New(64, 64, 60, 0.1, 100), false},
		{"infinite far", New(64, 64, 60, 0.1, float32(math.Inf(1))), false},
		{"nil", nil, true},
		{"zero size", New(0, 64, 60, 0.1, 100), true},
		{"bad planes", New(64, 64, 60, 1, 0.5), true},
		{"bad fov", New(64, 64, 180, 0.1, 100), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cam.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCamera) {
				t.Errorf("error %v does not wrap ErrInvalidCamera", err)
			}
		})
	}
}

func TestViewProjectionRoundTrip(t *testing.T) {
	c := New(100, 100, 60, 0.1, 50)
	c.WorldToCamera = LookAt([3]float32{0, 1, 4}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	vp := c.ViewProjection()
	inv, ok := Inverse(vp)
	if !ok {
		t.Fatal("view-projection not invertible")
	}
	x, y, z := ApplyPoint(vp, 0.25, 0.5, -0.5)
	wx, wy, wz := ApplyPoint(inv, x, y, z)
	if !near(wx, 0.25) || !near(wy, 0.5) || !near(wz, -0.5) {
		t.Errorf("round trip = (%v, %v, %v)", wx, wy, wz)
	}
}
