package kernel

import (
	"math"
	"slices"
)

// Rec. 709 luma weights.
const (
	LumaR = 0.2125
	LumaG = 0.7154
	LumaB = 0.0721
)

// Luma returns the Rec. 709 luminance of an RGB triple.
func Luma(r, g, b float32) float32 { return r*LumaR + g*LumaG + b*LumaB }

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Saturate clamps v to [0, 1].
func Saturate(v float32) float32 { return Clamp(v, 0, 1) }

// Lerp interpolates from a to b by t.
func Lerp(a, b, t float32) float32 { return a + (b-a)*t }

// Abs returns |v|.
func Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Smoothstep is the Hermite step between e0 and e1.
func Smoothstep(e0, e1, x float32) float32 {
	if e1 == e0 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := Saturate((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

// Pow is float32 math.Pow.
func Pow(x, y float32) float32 { return float32(math.Pow(float64(x), float64(y))) }

// Sqrt is float32 math.Sqrt; negative input returns 0.
func Sqrt(x float32) float32 {
	if x <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(x)))
}

// Median3 returns the median of three values.
func Median3(a, b, c float32) float32 {
	return max(min(a, b), min(max(a, b), c))
}

// Median returns the median of vs, reordering vs in place.
// An empty slice returns 0.
func Median(vs []float32) float32 {
	if len(vs) == 0 {
		return 0
	}
	slices.Sort(vs)
	return vs[len(vs)/2]
}
