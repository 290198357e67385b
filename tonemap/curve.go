package tonemap

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/internal/kernel"
)

// Curve constants. The linear segment runs from toeEnd = (1/3)^2.2 to
// 0.7^2.2 and the logarithmic contrast pivots around middle grey.
const (
	curveGamma  = 2.2
	toeLinear   = 1.0 / 3
	linearEnd   = 0.7
	middleGrey  = 0.18
	minContrast = 1e-5

	liftScale  = 0.1
	gammaScale = 0.5
	gainScale  = 0.5
	minGamma   = 0.01
)

// segment evaluates signY·A·(signX·x − x0)^B + y0 in log form.
type segment struct {
	a, b, x0, y0 float64
	signX, signY float64
	logA         float64
}

func (s segment) eval(x float64) float64 {
	return s.signY*math.Exp(s.logA+s.b*math.Log(s.signX*x-s.x0)) + s.y0
}

// fit makes s a power curve through the origin reaching (xEnd, yEnd) with
// slope m. Degenerate inputs leave a unit-exponent curve and keep logA.
func (s *segment) fit(xEnd, yEnd, m float64) {
	s.a, s.b, s.x0, s.y0 = 0, 1, 0, 0
	s.signX, s.signY = 1, 1
	if m <= 0 || yEnd <= 0 || xEnd <= 0 {
		return
	}
	s.b = m * xEnd / yEnd
	s.a = yEnd / math.Pow(xEnd, s.b)
	s.logA = math.Log(yEnd) - s.b*math.Log(xEnd)
}

// curve is the baked form of Settings shared by both LUT layouts.
type curve struct {
	filmic, grading bool

	contrast float64
	toe      segment
	linear   segment
	shoulder segment
	x0, x1   float64
	white    float64

	lift, invGamma, gain [3]float64
	gamma                float64
	saturation           float32

	user *UserLUT
}

func newCurve(s Settings) *curve {
	c := &curve{
		filmic:     s.Filmic.Enabled,
		grading:    s.Grading.Enabled,
		contrast:   float64(s.Filmic.Contrast),
		gamma:      float64(s.Grading.Gamma),
		saturation: s.Grading.Saturation,
		user:       s.UserLUT,
	}
	if c.user == nil {
		c.user = IdentityLUT(userLUTSize)
	}

	shoulder := float64(s.Filmic.Shoulder)
	x0 := math.Pow(toeLinear, curveGamma)
	x1 := math.Pow(linearEnd, curveGamma)
	y1 := math.Pow(math.Pow(linearEnd, 1+shoulder), curveGamma)
	y0 := x0 / x1 * y1 * (1 - float64(s.Filmic.Toe)*0.5)
	var m float64
	if dx, dy := x1-x0, y1-y0; dx > 0 && dy > 0 {
		m = dy / dx
	}

	c.linear = segment{a: m, b: 1, x0: x0, y0: y0, signX: 1, signY: 1, logA: math.Log(m)}
	c.toe = c.linear
	c.toe.fit(x0, y0, m)

	c.white = whitePoint(s.Filmic.Shoulder)
	c.shoulder = c.linear
	c.shoulder.fit(c.white-x1, 1-y1, m)
	c.shoulder.signX, c.shoulder.x0 = -1, -c.white
	c.shoulder.signY, c.shoulder.y0 = -1, 1
	c.x0, c.x1 = x0, x1

	wheels := [3]f32.Vec3{
		normalize(s.Grading.Shadows),
		normalize(s.Grading.Midtones),
		normalize(s.Grading.Highlights),
	}
	var mean [3]float64
	for i, w := range wheels {
		mean[i] = float64(w[0]+w[1]+w[2]) / 3
	}
	for k := range 3 {
		c.lift[k] = (float64(wheels[0][k]) - mean[0]) * liftScale
		g := math.Pow(2, (float64(wheels[1][k])-mean[1])*gammaScale)
		c.invGamma[k] = 1 / math.Max(minGamma, g)
		c.gain[k] = math.Pow(2, (float64(wheels[2][k])-mean[2])*gainScale)
	}
	return c
}

// whitePoint is the linear value the shoulder maps to one.
func whitePoint(shoulder float32) float64 {
	return math.Pow(2, math.Max(0, float64(shoulder)*3))
}

// normalize scales c to a channel mean of one. Black becomes white.
func normalize(c f32.Vec3) f32.Vec3 {
	mean := (c[0] + c[1] + c[2]) / 3
	if mean == 0 {
		return white
	}
	return f32.Vec3{c[0] / mean, c[1] / mean, c[2] / mean}
}

// tone maps a LUT coordinate to a linear value through the filmic curve.
func (c *curve) tone(t float32) float32 {
	x := float64(kernel.LutToLin(t, kernel.LutA))
	if !c.filmic {
		return float32(x)
	}
	x = logContrast(x, middleGrey, c.contrast)
	seg := c.toe
	if x >= c.x0 {
		seg = c.linear
	}
	if x >= c.x1 {
		seg = c.shoulder
	}
	return float32(seg.eval(math.Min(x, c.white)))
}

func logContrast(x, ref, contrast float64) float64 {
	x = math.Max(x, minContrast)
	lr := math.Log(ref)
	return math.Exp(lr + (math.Log(x)-lr)*contrast)
}

// grade applies lift/gamma/gain and the gamma exponent to channel k.
func (c *curve) grade(k int, v float32) float32 {
	x := float64(v)
	if c.grading {
		s := math.Sqrt(math.Max(x, 0))
		r := c.gain[k] * (c.lift[k]*(1-s) + math.Pow(s, c.invGamma[k]))
		x = r * r
	}
	x = math.Max(x, 0)
	if c.grading {
		x = math.Pow(x, c.gamma)
	}
	return float32(x)
}

// entry returns the graded colour for LUT coordinates (r, g, b).
func (c *curve) entry(r, g, b float32) f32.Vec3 {
	v := c.user.SampleLinear(c.tone(r), c.tone(g), c.tone(b))
	for k := range 3 {
		v[k] = c.grade(k, v[k])
	}
	return v
}

// saturate pushes v away from its luma by the grading saturation.
func (c *curve) saturate(v f32.Vec3) f32.Vec3 {
	if !c.grading {
		return v
	}
	l := kernel.Luma(v[0], v[1], v[2])
	for k := range 3 {
		v[k] = l + (v[k]-l)*c.saturation
	}
	return v
}

// ExposureMult returns the _LutExposureMult vector: 2^ExposureBias when
// the filmic curve is enabled, scaled per channel by the normalised white
// balance when grading is enabled.
func ExposureMult(s Settings) f32.Vec4 {
	e := float32(1)
	if s.Filmic.Enabled {
		e = float32(math.Exp2(float64(s.Filmic.ExposureBias)))
	}
	out := f32.Vec4{e, e, e, 1}
	if s.Grading.Enabled {
		var wb f32.Vec3
		for k := range 3 {
			wb[k] = kernel.Pow(s.Grading.WhiteBalance[k], curveGamma)
		}
		wb = normalize(wb)
		for k := range 3 {
			out[k] *= wb[k]
		}
	}
	return out
}

// Vibrance returns the _Vibrance of the 1D pass.
func Vibrance(s Settings) float32 {
	if !s.Grading.Enabled {
		return 1
	}
	return s.Grading.Saturation
}
