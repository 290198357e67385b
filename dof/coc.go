package dof

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/camera"
)

// planeGuard is the minimum separation kept between the explicit blur
// boundaries.
const planeGuard = 1e-7

func pow4(x float64) float64 {
	x *= x
	return x * x
}

// focusDepth returns the focus distance as a fraction of the far plane.
func (s *Settings) focusDepth(cam *camera.Camera) float32 {
	if s.FocusTarget != nil {
		return s.FocusTarget(cam)
	}
	return float32(pow4(float64(s.FocusPlane)))
}

// CocParams returns the _BlurParams and _BlurCoe vectors of the capture,
// merge and visualize passes for a camera with vertical field of view
// fovY degrees focused at focus (a fraction of the far plane).
//
// Basic and Advanced return (slope/fStops, slope, focus, range⁴) and
// (0, 0, 1, 1). Explicit returns the near ramp (-a, -(1-a·near)) and the
// far ramp (b, 1-b·far) over the fourth powers of the planes.
func CocParams(s Settings, fovY, focus float32) (blurParams, blurCoe f32.Vec4) {
	if s.Model != Explicit {
		rng := pow4(float64(s.FocusRange))
		slope := 4 / math.Tan(0.5*float64(fovY)*math.Pi/180)
		fstops := float64(s.FStops)
		if fstops <= 0 {
			fstops = 1
		}
		return f32.Vec4{float32(slope / fstops), float32(slope), focus, float32(rng)},
			f32.Vec4{0, 0, 1, 1}
	}

	near := pow4(float64(s.NearPlane))
	far := pow4(float64(s.FarPlane))
	nearFall := pow4(float64(s.NearFalloff))
	farFall := pow4(float64(s.FarFalloff))
	f := float64(focus)

	if f <= near {
		f = near + planeGuard
	}
	if f >= far {
		f = far - planeGuard
	}
	if f-nearFall <= near {
		nearFall = f - near - planeGuard
	}
	if f+farFall >= far {
		farFall = far - f - planeGuard
	}

	a := 1 / (near - f + nearFall)
	b := 1 / (far - f - farFall)
	c1 := 1 - a*near
	c2 := 1 - b*far
	return f32.Vec4{float32(-a), float32(-c1), float32(b), float32(c2)},
		f32.Vec4{0, 0, float32((c2 - c1) / (a - b)), 0}
}
