package kernel

import "math"

// Gaussian returns 2*half+1 weights of a Gaussian with standard deviation
// sigma, centred on index half and summing to one. A non-positive sigma or
// half gives the single weight 1.
func Gaussian(sigma float64, half int) []float32 {
	if sigma <= 0 || half <= 0 {
		return []float32{1}
	}
	g := make([]float64, 2*half+1)
	var sum float64
	for i := range g {
		x := float64(i - half)
		g[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += g[i]
	}
	w := make([]float32, len(g))
	for i, v := range g {
		w[i] = float32(v / sum)
	}
	return w
}

// CatmullRom returns the four Catmull-Rom weights for a sample at
// fractional offset t in [0,1) between taps 1 and 2.
func CatmullRom(t float32) [4]float32 {
	t2 := t * t
	t3 := t2 * t
	return [4]float32{
		0.5 * (-t3 + 2*t2 - t),
		0.5 * (3*t3 - 5*t2 + 2),
		0.5 * (-3*t3 + 4*t2 + t),
		0.5 * (t3 - t2),
	}
}
