package kernel

import (
	"math"
	"testing"

	"golang.org/x/image/math/f32"
)

func TestGaussian(t *testing.T) {
	tests := []struct {
		sigma float64
		half  int
	}{
		{0.7, 2},
		{1, 3},
		{2, 6},
	}
	for _, tt := range tests {
		w := Gaussian(tt.sigma, tt.half)
		if len(w) != 2*tt.half+1 {
			t.Fatalf("Gaussian(%v, %d) len = %d", tt.sigma, tt.half, len(w))
		}
		var sum float64
		for i, v := range w {
			sum += float64(v)
			if v != w[len(w)-1-i] {
				t.Errorf("Gaussian(%v, %d) not symmetric at %d", tt.sigma, tt.half, i)
			}
			if i > 0 && i <= tt.half && v <= w[i-1] {
				t.Errorf("Gaussian(%v, %d) not increasing towards the centre at %d", tt.sigma, tt.half, i)
			}
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("Gaussian(%v, %d) sum = %v, want 1", tt.sigma, tt.half, sum)
		}
	}
	for _, w := range [][]float32{Gaussian(0, 3), Gaussian(1, 0)} {
		if len(w) != 1 || w[0] != 1 {
			t.Errorf("degenerate Gaussian = %v, want [1]", w)
		}
	}
}

func TestCatmullRomPartitionOfUnity(t *testing.T) {
	for _, x := range []float32{0, 0.25, 0.5, 0.9} {
		w := CatmullRom(x)
		sum := w[0] + w[1] + w[2] + w[3]
		if math.Abs(float64(sum-1)) > 1e-6 {
			t.Errorf("CatmullRom(%v) sum = %v", x, sum)
		}
	}
	if w := CatmullRom(0); w[1] != 1 {
		t.Errorf("CatmullRom(0) = %v, want tap 1 only", w)
	}
}

func TestCocBasic(t *testing.T) {
	bp := f32.Vec4{2, 10, 0.3, 0.1}
	tests := []struct {
		name string
		d    float32
		sign float32
	}{
		{"in focus", 0.3, 0},
		{"inside band", 0.31, 0},
		{"near", 0.1, -1},
		{"far", 0.9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CocBasic(bp, tt.d)
			switch {
			case tt.sign == 0 && c != 0:
				t.Errorf("CocBasic(%v) = %v, want 0", tt.d, c)
			case tt.sign < 0 && c >= 0:
				t.Errorf("CocBasic(%v) = %v, want negative", tt.d, c)
			case tt.sign > 0 && c <= 0:
				t.Errorf("CocBasic(%v) = %v, want positive", tt.d, c)
			}
			if c < -1 || c > 1 {
				t.Errorf("CocBasic(%v) = %v out of [-1,1]", tt.d, c)
			}
		})
	}
}

func TestCocExplicit(t *testing.T) {
	// Near ramp: -1 at d=0, 0 at d=0.2. Far ramp: 0 at d=0.6, 1 at d=1.
	bp := f32.Vec4{5, -1, 2.5, -1.5}
	tests := []struct {
		d, want float32
	}{
		{0, -1},
		{0.1, -0.5},
		{0.4, 0},
		{0.8, 0.5},
		{1, 1},
	}
	for _, tt := range tests {
		if got := CocExplicit(bp, tt.d); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("CocExplicit(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestMedian(t *testing.T) {
	if got := Median3(3, 1, 2); got != 2 {
		t.Errorf("Median3 = %v, want 2", got)
	}
	if got := Median([]float32{9, 1, 5, 3, 7}); got != 5 {
		t.Errorf("Median = %v, want 5", got)
	}
	if got := Median(nil); got != 0 {
		t.Errorf("Median(nil) = %v", got)
	}
}

func TestSmoothstep(t *testing.T) {
	if Smoothstep(0, 1, -1) != 0 || Smoothstep(0, 1, 2) != 1 || Smoothstep(0, 1, 0.5) != 0.5 {
		t.Error("Smoothstep endpoints or midpoint wrong")
	}
}

func TestReflect(t *testing.T) {
	r := Reflect([3]float32{1, -1, 0}, [3]float32{0, 1, 0})
	if r != [3]float32{1, 1, 0} {
		t.Errorf("Reflect = %v, want (1, 1, 0)", r)
	}
}

func TestLutDomainRoundTrip(t *testing.T) {
	for _, x := range []float32{0, 0.01, 0.18, 0.5, 1, 4, 19} {
		got := LutToLin(LinToLut(x, LutA), LutA)
		if math.Abs(float64(got-x)) > 1e-4*float64(max(x, 1)) {
			t.Errorf("LutToLin(LinToLut(%v)) = %v", x, got)
		}
	}
	if got := LutToLin(2, LutA); math.Abs(float64(got-20)) > 1e-3 {
		t.Errorf("LutToLin(2) = %v, want clamp to 20", got)
	}
	if got := LinToLut(-1, LutA); got != 0 {
		t.Errorf("LinToLut(-1) = %v, want 0", got)
	}
}
