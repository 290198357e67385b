package dof

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/internal/kernel"
)

// Directions are the blur directions of the polygonal apertures. Each is a
// half-unit step in xy; z is set for passes that centre their taps on the
// pixel.
type Directions struct {
	Hexagonal [3]f32.Vec4
	Octagonal [4]f32.Vec4
}

// DirectionsFor returns the aperture directions rotated by orientation
// degrees.
func DirectionsFor(orientation float32) Directions {
	d := Directions{
		Hexagonal: [3]f32.Vec4{
			{0.5, 0, 0, 0},
			{0.25, 0.433013, 1, 0},
			{0.25, -0.433013, 1, 0},
		},
		Octagonal: [4]f32.Vec4{
			{0.5, 0, 0, 0},
			{0, 0.5, 1, 0},
			{-0.353553, 0.353553, 1, 0},
			{0.353553, 0.353553, 1, 0},
		},
	}
	rad := float64(orientation) * math.Pi / 180
	if rad == 0 {
		return d
	}
	c, s := float32(math.Cos(rad)), float32(math.Sin(rad))
	for i := range d.Hexagonal {
		rotate(&d.Hexagonal[i], c, s)
	}
	for i := range d.Octagonal {
		rotate(&d.Octagonal[i], c, s)
	}
	return d
}

func rotate(v *f32.Vec4, c, s float32) {
	x, y := v[0], v[1]
	v[0] = x*c - y*s
	v[1] = x*s + y*c
}

// apertureCache recomputes the directions only when the orientation
// moves.
type apertureCache struct {
	orientation float32
	dirs        Directions
	valid       bool
	recomputes  int
}

// update refreshes the directions for orientation and reports whether
// they were recomputed.
func (c *apertureCache) update(orientation float32, force bool) bool {
	if !force && c.valid && kernel.Abs(c.orientation-orientation) < math.SmallestNonzeroFloat32 {
		return false
	}
	c.orientation = orientation
	c.dirs = DirectionsFor(orientation)
	c.valid = true
	c.recomputes++
	return true
}
