// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
)

func init() {
	ks := make([]kernelFunc, programs.DoFShapeHighQualityMergeDilateFg+1)
	ks[programs.DoFBlurAlphaWeighted] = dofBlurAlphaWeighted
	ks[programs.DoFBoxBlur] = dofBoxBlur
	ks[programs.DoFDilateFgCocFromColor] = dofDilate(true)
	ks[programs.DoFDilateFgCoc] = dofDilate(false)
	ks[programs.DoFCaptureCoc] = dofCapture(false)
	ks[programs.DoFCaptureCocExplicit] = dofCapture(true)
	ks[programs.DoFVisualizeCoc] = dofVisualize(false)
	ks[programs.DoFVisualizeCocExplicit] = dofVisualize(true)
	ks[programs.DoFCocPrefilter] = dofPrefilter
	ks[programs.DoFCircleBlur] = dofCircle(3, false)
	ks[programs.DoFCircleBlurWithDilatedFg] = dofCircle(3, true)
	ks[programs.DoFCircleBlurLowQuality] = dofCircle(2, false)
	ks[programs.DoFCircleBlurLowQualityWithDilatedFg] = dofCircle(2, true)
	ks[programs.DoFMerge] = dofMerge(false, false)
	ks[programs.DoFMergeExplicit] = dofMerge(true, false)
	ks[programs.DoFMergeBicubic] = dofMerge(false, true)
	ks[programs.DoFMergeExplicitBicubic] = dofMerge(true, true)

	// Shape passes come in tiers of four: plain, dilated, merge, merge dilated.
	for tier, taps := range []int{4, 8, 16} {
		base := programs.DoFShapeLowQuality + tier*4
		ks[base] = dofShape(taps, false, false)
		ks[base+1] = dofShape(taps, true, false)
		ks[base+2] = dofShape(taps, false, true)
		ks[base+3] = dofShape(taps, true, true)
	}
	registerKernels(programs.DoF, ks)

	registerKernels(programs.DoFMedian, []kernelFunc{
		programs.MedianMedian3:   dofMedian3,
		programs.MedianMedian3x3: dofMedian3x3,
	})
	registerKernels(programs.DoFBokeh, []kernelFunc{
		programs.BokehDraw:    bokehDraw,
		programs.BokehCollect: bokehCollect,
	})
}

func cocAt(blurParams f32.Vec4, d float32, explicit bool) float32 {
	if explicit {
		return kernel.CocExplicit(blurParams, d)
	}
	return kernel.CocBasic(blurParams, d)
}

// cocRadius converts a signed CoC to a blur radius in half-resolution
// texels using _BlurCoe = (near radius, far radius).
func cocRadius(coe f32.Vec4, coc float32) float32 {
	if coc < 0 {
		return -coc * coe[0]
	}
	return coc * coe[1]
}

// dofCapture downsamples colour and stores the signed CoC in alpha, with
// highlights above the boost point brightened by the boost amount.
func dofCapture(explicit bool) kernelFunc {
	return func(e *env) error {
		src := e.mainTex()
		depth := e.texOr("_CameraDepthTexture", farDepth)
		bp, boost := e.vec("_BlurParams"), e.vec("_BoostParams")
		e.shade(func(_, _ int, u, v float32) [4]float32 {
			c := src.sampleBilinear(u, v)
			coc := cocAt(bp, depth.samplePoint(u, v)[0], explicit)

			amount := boost[1] * coc
			if coc < 0 {
				amount = boost[0] * coc
			}
			if lum := kernel.Luma(c[0], c[1], c[2]); amount > 0 && lum > boost[2] {
				f := 1 + amount*(lum-boost[2])
				c[0], c[1], c[2] = c[0]*f, c[1]*f, c[2]*f
			}
			c[3] = coc
			return c
		})
		return nil
	}
}

// dofVisualize renders near blur in red, far blur in blue and the in-focus
// band as grey scene luma.
func dofVisualize(explicit bool) kernelFunc {
	return func(e *env) error {
		src := e.mainTex()
		depth := e.texOr("_CameraDepthTexture", farDepth)
		bp := e.vec("_BlurParams")
		e.shade(func(_, _ int, u, v float32) [4]float32 {
			coc := cocAt(bp, depth.samplePoint(u, v)[0], explicit)
			c := src.sample(u, v)
			g := (1 - kernel.Abs(coc)) * kernel.Luma(c[0], c[1], c[2])
			return [4]float32{max(-coc, 0) + g, g, max(coc, 0) + g, 1}
		})
		return nil
	}
}

// alphaWeightedTaps are the weights of dofBlurAlphaWeighted.
var alphaWeightedTaps = kernel.Gaussian(0.7, 2)

// dofBlurAlphaWeighted is a five-tap blur along _Offsets.xy weighted by
// CoC magnitude.
func dofBlurAlphaWeighted(e *env) error {
	src := e.mainTex()
	off := e.vec("_Offsets")
	weights := alphaWeightedTaps
	half := len(weights) / 2
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		centre := src.sample(u, v)
		var sum [3]float32
		var wsum float32
		for i, g := range weights {
			t := float32(i - half)
			s := src.sampleOffset(u, v, off[0]*t, off[1]*t)
			w := g * (kernel.Abs(s[3]) + 0.01)
			sum[0] += s[0] * w
			sum[1] += s[1] * w
			sum[2] += s[2] * w
			wsum += w
		}
		if wsum <= 0 {
			return centre
		}
		return [4]float32{sum[0] / wsum, sum[1] / wsum, sum[2] / wsum, centre[3]}
	})
	return nil
}

func dofBoxBlur(e *env) error {
	src := e.mainTex()
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		centre := src.sample(u, v)
		var out [4]float32
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				s := src.sampleOffset(u, v, float32(dx), float32(dy))
				out[0] += s[0] / 9
				out[1] += s[1] / 9
				out[2] += s[2] / 9
			}
		}
		out[3] = centre[3]
		return out
	})
	return nil
}

// dofDilate spreads the foreground CoC magnitude along _Offsets.xy texels.
// fromColor reads the signed CoC from alpha, otherwise from red.
func dofDilate(fromColor bool) kernelFunc {
	const taps = 8
	return func(e *env) error {
		src := e.mainTex()
		off := e.vec("_Offsets")
		e.shade(func(_, _ int, u, v float32) [4]float32 {
			var m float32
			for i := -taps; i <= taps; i++ {
				t := float32(i) / taps
				s := src.sampleOffset(u, v, off[0]*t, off[1]*t)
				fg := s[0]
				if fromColor {
					fg = max(-s[3], 0)
				}
				m = max(m, fg)
			}
			return [4]float32{m, 0, 0, 1}
		})
		return nil
	}
}

// dofPrefilter smooths colour with neighbours of similar CoC.
func dofPrefilter(e *env) error {
	src := e.mainTex()
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		c := src.sample(u, v)
		sum := [3]float32{c[0], c[1], c[2]}
		wsum := float32(1)
		for _, o := range [4][2]float32{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			s := src.sampleOffset(u, v, o[0], o[1])
			w := kernel.Saturate(1 - kernel.Abs(s[3]-c[3])*4)
			sum[0] += s[0] * w
			sum[1] += s[1] * w
			sum[2] += s[2] * w
			wsum += w
		}
		return [4]float32{sum[0] / wsum, sum[1] / wsum, sum[2] / wsum, c[3]}
	})
	return nil
}

// gatherRadius is the blur radius of a pixel: its own CoC, widened by the
// dilated foreground CoC in _SecondTex when dilated is set.
func (e *env) gatherRadius(fg *surface, coe f32.Vec4, coc, u, v float32) float32 {
	r := cocRadius(coe, coc)
	if fg != nil {
		r = max(r, fg.sample(u, v)[0]*coe[0])
	}
	return r
}

// dofCircle gathers samples on concentric rings. A sample contributes when
// its own radius reaches the centre.
func dofCircle(rings int, dilated bool) kernelFunc {
	return func(e *env) error {
		src := e.mainTex()
		coe := e.vec("_BlurCoe")
		var fg *surface
		if dilated {
			fg = e.tex("_SecondTex")
		}
		e.shade(func(_, _ int, u, v float32) [4]float32 {
			c := src.sample(u, v)
			r := e.gatherRadius(fg, coe, c[3], u, v)
			if r < 0.5 {
				return c
			}
			sum := [3]float32{c[0], c[1], c[2]}
			wsum := float32(1)
			for ring := 1; ring <= rings; ring++ {
				dist := r * float32(ring) / float32(rings)
				n := 6 * ring
				for k := range n {
					a := 2 * math.Pi * float64(k) / float64(n)
					dx := dist * float32(math.Cos(a))
					dy := dist * float32(math.Sin(a))
					s := src.sampleOffset(u, v, dx, dy)
					if cocRadius(coe, s[3]) < dist*0.5 {
						continue
					}
					sum[0] += s[0]
					sum[1] += s[1]
					sum[2] += s[2]
					wsum++
				}
			}
			return [4]float32{sum[0] / wsum, sum[1] / wsum, sum[2] / wsum, c[3]}
		})
		return nil
	}
}

// dofShape is one directional blur of a polygonal aperture: taps along
// _Offsets.xy (a half-unit direction) out to the pixel's radius. When
// _Offsets.z is set the taps are centred on the pixel. merge averages the
// result with _ThirdTex.
func dofShape(taps int, dilated, merge bool) kernelFunc {
	return func(e *env) error {
		src := e.mainTex()
		off := e.vec("_Offsets")
		coe := e.vec("_BlurCoe")
		var fg, third *surface
		if dilated {
			fg = e.tex("_SecondTex")
		}
		if merge {
			third = e.tex("_ThirdTex")
		}
		dx, dy := off[0]*2, off[1]*2
		e.shade(func(_, _ int, u, v float32) [4]float32 {
			c := src.sample(u, v)
			r := e.gatherRadius(fg, coe, c[3], u, v)
			out := c
			if r >= 0.5 {
				sum := [3]float32{}
				var wsum float32
				for i := range taps {
					t := float32(i) / float32(taps-1)
					if off[2] != 0 {
						t -= 0.5
					}
					dist := r * t
					s := src.sampleOffset(u, v, dx*dist, dy*dist)
					if i > 0 && cocRadius(coe, s[3]) < kernel.Abs(dist)*0.5 {
						continue
					}
					sum[0] += s[0]
					sum[1] += s[1]
					sum[2] += s[2]
					wsum++
				}
				if wsum > 0 {
					out = [4]float32{sum[0] / wsum, sum[1] / wsum, sum[2] / wsum, c[3]}
				}
			}
			if third != nil {
				t := third.sample(u, v)
				out[0] = (out[0] + t[0]) * 0.5
				out[1] = (out[1] + t[1]) * 0.5
				out[2] = (out[2] + t[2]) * 0.5
			}
			return out
		})
		return nil
	}
}

// dofMerge composites the convolved half-resolution buffer in _SecondTex
// over the full-resolution source by CoC. In-focus pixels are passed
// through unchanged.
func dofMerge(explicit, bicubic bool) kernelFunc {
	return func(e *env) error {
		src := e.mainTex()
		conv := e.tex("_SecondTex")
		depth := e.texOr("_CameraDepthTexture", farDepth)
		bp, coe := e.vec("_BlurParams"), e.vec("_BlurCoe")
		e.shade(func(x, y int, u, v float32) [4]float32 {
			c := src.at(x, y)
			if conv == nil {
				return c
			}
			t := kernel.Saturate(cocRadius(coe, cocAt(bp, depth.samplePoint(u, v)[0], explicit)))
			var b [4]float32
			if bicubic {
				b = sampleBicubic(conv, u, v)
			} else {
				b = conv.sampleBilinear(u, v)
			}
			// Foreground blur bleeds over in-focus pixels behind it.
			if b[3] < 0 {
				t = max(t, kernel.Saturate(-b[3]*coe[0]))
			}
			if t == 0 {
				return c
			}
			for k := range 3 {
				c[k] = kernel.Lerp(c[k], b[k], t)
			}
			return c
		})
		return nil
	}
}

// sampleBicubic is a 4x4 Catmull-Rom filtered read.
func sampleBicubic(s *surface, u, v float32) [4]float32 {
	fx := u*float32(s.desc.Width) - 0.5
	fy := v*float32(s.desc.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	wx := kernel.CatmullRom(fx - float32(x0))
	wy := kernel.CatmullRom(fy - float32(y0))

	var out [4]float32
	for j := range 4 {
		for i := range 4 {
			t := s.at(x0-1+i, y0-1+j)
			w := wx[i] * wy[j]
			for k := range 4 {
				out[k] += t[k] * w
			}
		}
	}
	return out
}

// dofMedian3 is a per-channel median of three taps along _Offsets.xy.
func dofMedian3(e *env) error {
	src := e.mainTex()
	off := e.vec("_Offsets")
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		a := src.sampleOffset(u, v, -off[0], -off[1])
		c := src.sample(u, v)
		b := src.sampleOffset(u, v, off[0], off[1])
		return [4]float32{
			kernel.Median3(a[0], c[0], b[0]),
			kernel.Median3(a[1], c[1], b[1]),
			kernel.Median3(a[2], c[2], b[2]),
			c[3],
		}
	})
	return nil
}

// dofMedian3x3 is a per-channel median over the 3x3 neighbourhood.
func dofMedian3x3(e *env) error {
	src := e.mainTex()
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		var ch [3][9]float32
		i := 0
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				s := src.sampleOffset(u, v, float32(dx), float32(dy))
				ch[0][i], ch[1][i], ch[2][i] = s[0], s[1], s[2]
				i++
			}
		}
		c := src.sample(u, v)
		return [4]float32{kernel.Median(ch[0][:]), kernel.Median(ch[1][:]), kernel.Median(ch[2][:]), c[3]}
	})
	return nil
}

// bokehPointFloats is the number of float32 values in one bokeh point.
const bokehPointFloats = programs.BokehPointStride / 4

// bokehCollect moves bright, blurred highlights out of the image into the
// point buffer: x, y (uv), size (pixels), the excess colour and |CoC|.
func bokehCollect(e *env) error {
	src := e.mainTex()
	blurred := e.texOr("_BlurredColor", src)
	points := e.buf("pointBuffer")
	bp := e.vec("_BokehParams")
	heuristic := e.float("_SpawnHeuristic", 0.15)
	if points != nil {
		points.resetCounter()
	}

	rows := make([][][bokehPointFloats]float32, e.dst.desc.Height)
	e.shade(func(x, y int, u, v float32) [4]float32 {
		c := src.at(x, y)
		coc := kernel.Abs(c[3])
		if points == nil || coc < heuristic || bp[1] <= 0 {
			return c
		}
		b := blurred.sample(u, v)
		contrast := kernel.Luma(c[0], c[1], c[2]) - kernel.Luma(b[0], b[1], b[2])
		if contrast*bp[1] <= bp[2] {
			return c
		}
		rows[y] = append(rows[y], [bokehPointFloats]float32{
			u, v, coc * bp[3] * bp[0],
			max(c[0]-b[0], 0), max(c[1]-b[1], 0), max(c[2]-b[2], 0), coc,
		})
		return [4]float32{b[0], b[1], b[2], c[3]}
	})

	if points != nil {
		for _, row := range rows {
			for _, p := range row {
				if !points.appendFloats(p[:]) {
					return nil
				}
			}
		}
	}
	return nil
}

// bokehDraw adds each point as a sprite centred on its position. A point's
// energy covers the four full-resolution pixels of the half-resolution
// texel it was taken from.
func bokehDraw(e *env) error {
	if e.points == nil {
		return nil
	}
	sprite := e.tex("_MainTex")
	screen := e.vec("_Screen")
	w, h := e.dst.desc.Width, e.dst.desc.Height

	for i := range e.drawCount {
		p := e.points.element(i, bokehPointFloats)
		r := p[2]
		if screen[2] > 0 {
			r = min(r, screen[2])
		}
		if r < 0.5 {
			r = 0.5
		}
		cx, cy := p[0]*float32(w), p[1]*float32(h)
		x0, x1 := int(math.Floor(float64(cx-r))), int(math.Ceil(float64(cx+r)))
		y0, y1 := int(math.Floor(float64(cy-r))), int(math.Ceil(float64(cy+r)))

		weight := func(x, y int) float32 {
			dx := (float32(x) + 0.5 - cx) / r
			dy := (float32(y) + 0.5 - cy) / r
			if sprite != nil {
				if dx < -1 || dx > 1 || dy < -1 || dy > 1 {
					return 0
				}
				s := sprite.sampleBilinear((dx+1)*0.5, (dy+1)*0.5)
				return s[3] * kernel.Luma(s[0], s[1], s[2])
			}
			if dx*dx+dy*dy > 1 {
				return 0
			}
			return 1
		}

		var total float32
		for y := max(y0, 0); y < min(y1, h); y++ {
			for x := max(x0, 0); x < min(x1, w); x++ {
				total += weight(x, y)
			}
		}
		if total <= 0 {
			continue
		}
		scale := 4 / total
		for y := max(y0, 0); y < min(y1, h); y++ {
			for x := max(x0, 0); x < min(x1, w); x++ {
				wt := weight(x, y) * scale
				if wt == 0 {
					continue
				}
				c := e.dst.at(x, y)
				c[0] += p[3] * wt
				c[1] += p[4] * wt
				c[2] += p[5] * wt
				e.dst.store(x, y, c)
			}
		}
	}
	return nil
}
