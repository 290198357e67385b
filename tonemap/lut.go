package tonemap

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
)

// ErrInvalidLUT is returned for an image that is not a strip of square
// slices.
var ErrInvalidLUT = errors.New("tonemap: image is not a 3D LUT strip")

// userLUTSize is the edge of the identity user LUT.
const userLUTSize = 16

// UserLUT is a colour lookup table of Size³ entries applied after the
// filmic curve.
type UserLUT struct {
	size int
	data []f32.Vec3 // r + g*size + b*size²
}

// IdentityLUT returns an n³ table mapping every colour to itself.
func IdentityLUT(n int) *UserLUT {
	n = max(n, 2)
	l := &UserLUT{size: n, data: make([]f32.Vec3, n*n*n)}
	step := 1 / float32(n-1)
	for b := range n {
		for g := range n {
			for r := range n {
				l.data[r+g*n+b*n*n] = f32.Vec3{float32(r) * step, float32(g) * step, float32(b) * step}
			}
		}
	}
	return l
}

// NewUserLUT reads a LUT from a strip image n² wide and n high: the pixel
// at (r + b·n, g), g counted from the top, holds the entry for (r, g, b).
func NewUserLUT(img image.Image) (*UserLUT, error) {
	if img == nil {
		return nil, ErrInvalidLUT
	}
	bounds := img.Bounds()
	n := bounds.Dy()
	if n < 2 || n != int(math.Sqrt(float64(bounds.Dx()))) {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidLUT, bounds.Dx(), bounds.Dy())
	}
	l := &UserLUT{size: n, data: make([]f32.Vec3, n*n*n)}
	for b := range n {
		for g := range n {
			for r := range n {
				cr, cg, cb, _ := img.At(bounds.Min.X+r+b*n, bounds.Min.Y+g).RGBA()
				l.data[r+g*n+b*n*n] = f32.Vec3{
					float32(cr) / 0xffff,
					float32(cg) / 0xffff,
					float32(cb) / 0xffff,
				}
			}
		}
	}
	return l, nil
}

// Size returns the edge length of the table.
func (l *UserLUT) Size() int { return l.size }

func (l *UserLUT) clampIndex(i int) int { return min(max(i, 0), l.size-1) }

// SampleNearest returns the entry at grid coordinates clamped into range.
func (l *UserLUT) SampleNearest(r, g, b int) f32.Vec3 {
	r, g, b = l.clampIndex(r), l.clampIndex(g), l.clampIndex(b)
	return l.data[r+g*l.size+b*l.size*l.size]
}

// SampleNearestCompat is the legacy nearest lookup. It clamps r, reads the
// green coordinate from the clamped blue one and indexes the blue axis
// unclamped. It matches SampleNearest only where g equals b and all three
// are in range. A blue coordinate outside the table yields zero.
func (l *UserLUT) SampleNearestCompat(r, _, b int) f32.Vec3 {
	r = l.clampIndex(r)
	g := l.clampIndex(b)
	i := r + g*l.size + b*l.size*l.size
	if i < 0 || i >= len(l.data) {
		return f32.Vec3{}
	}
	return l.data[i]
}

// SampleLinear interpolates the table at coordinates in [0, 1]. Outside
// values clamp to the edge.
func (l *UserLUT) SampleLinear(r, g, b float32) f32.Vec3 {
	scale := float32(l.size - 1)
	fr := kernel.Saturate(r) * scale
	fg := kernel.Saturate(g) * scale
	fb := kernel.Saturate(b) * scale
	r0, g0, b0 := int(fr), int(fg), int(fb)
	r1, g1, b1 := l.clampIndex(r0+1), l.clampIndex(g0+1), l.clampIndex(b0+1)
	tr, tg, tb := fr-float32(r0), fg-float32(g0), fb-float32(b0)

	at := func(r, g, b int) f32.Vec3 { return l.data[r+g*l.size+b*l.size*l.size] }
	lerp := func(a, b f32.Vec3, t float32) f32.Vec3 {
		for k := range 3 {
			a[k] = kernel.Lerp(a[k], b[k], t)
		}
		return a
	}
	c00 := lerp(at(r0, g0, b0), at(r0, g0, b1), tb)
	c01 := lerp(at(r0, g1, b0), at(r0, g1, b1), tb)
	c10 := lerp(at(r1, g0, b0), at(r1, g0, b1), tb)
	c11 := lerp(at(r1, g1, b0), at(r1, g1, b1), tb)
	return lerp(lerp(c00, c01, tg), lerp(c10, c11, tg), tr)
}

// Bake3D returns the 3D LUT for s as RGBA pixels of a strip
// LUT3DSize² wide and LUT3DSize high.
func Bake3D(s Settings) []float32 {
	const n = programs.LUT3DSize
	c := newCurve(s)
	step := 1 / float32(n-1)
	pix := make([]float32, n*n*n*4)
	for b := range n {
		for g := range n {
			for r := range n {
				v := c.saturate(c.entry(float32(r)*step, float32(g)*step, float32(b)*step))
				o := (g*n*n + r + b*n) * 4
				pix[o], pix[o+1], pix[o+2], pix[o+3] = v[0], v[1], v[2], 1
			}
		}
	}
	return pix
}

// Bake1D returns the per-channel curve for s as RGBA pixels of a
// LUT1DSize×2 image with identical rows. Saturation is not baked.
func Bake1D(s Settings) []float32 {
	const n = programs.LUT1DSize
	c := newCurve(s)
	step := 1 / float32(n-1)
	pix := make([]float32, n*2*4)
	for i := range n {
		t := float32(i) * step
		v := c.entry(t, t, t)
		for _, o := range []int{i * 4, (n + i) * 4} {
			pix[o], pix[o+1], pix[o+2], pix[o+3] = v[0], v[1], v[2], 1
		}
	}
	return pix
}
