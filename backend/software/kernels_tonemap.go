// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
)

func init() {
	registerKernels(programs.Tonemap, []kernelFunc{
		programs.TonemapThreeD:      func(e *env) error { return tonemap3D(e, false) },
		programs.TonemapOneD:        func(e *env) error { return tonemap1D(e, false) },
		programs.TonemapThreeDDebug: func(e *env) error { return tonemap3D(e, true) },
		programs.TonemapOneDDebug:   func(e *env) error { return tonemap1D(e, true) },
	})
}

// clampMarker is written where an exposed colour leaves the LUT domain.
var clampMarker = [4]float32{1, 0, 1, 1}

// exposure returns _LutExposureMult, white when unbound.
func (e *env) exposure() [4]float32 {
	if m, ok := e.params.Vector("_LutExposureMult"); ok {
		return m
	}
	return [4]float32{1, 1, 1, 1}
}

// exposed scales c by mult and reports whether any channel falls outside
// the range the LUT covers.
func exposed(c, mult [4]float32, lutA float32) ([4]float32, bool) {
	top := kernel.LutToLin(1, lutA)
	clipped := false
	for k := range 3 {
		c[k] *= mult[k]
		if c[k] > top {
			clipped = true
		}
	}
	return c, clipped
}

func tonemap3D(e *env, debug bool) error {
	lut := e.tex("_LutTex")
	if lut == nil {
		return errors.New("_LutTex not bound")
	}
	n := lut.desc.Height
	if lut.desc.Width != n*n {
		return fmt.Errorf("_LutTex is %dx%d, want a strip of %d slices", lut.desc.Width, lut.desc.Height, n)
	}
	src := e.mainTex()
	lutA := e.float("_LutA", kernel.LutA)
	mult := e.exposure()
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		c, clipped := exposed(src.sample(u, v), mult, lutA)
		if debug && clipped {
			return clampMarker
		}
		out := sampleLut3D(lut, n,
			kernel.Saturate(kernel.LinToLut(c[0], lutA)),
			kernel.Saturate(kernel.LinToLut(c[1], lutA)),
			kernel.Saturate(kernel.LinToLut(c[2], lutA)))
		out[3] = c[3]
		return out
	})
	return nil
}

// sampleLut3D interpolates a strip LUT of n slices at coordinates in [0, 1].
func sampleLut3D(lut *surface, n int, r, g, b float32) [4]float32 {
	scale := float32(n - 1)
	fr, fg, fb := r*scale, g*scale, b*scale
	r0, g0, b0 := int(fr), int(fg), int(fb)
	r1, g1, b1 := min(r0+1, n-1), min(g0+1, n-1), min(b0+1, n-1)
	tr, tg, tb := fr-float32(r0), fg-float32(g0), fb-float32(b0)

	at := func(r, g, b int) [4]float32 { return lut.at(r+b*n, g) }
	lerp := func(a, b [4]float32, t float32) [4]float32 {
		for k := range 3 {
			a[k] += (b[k] - a[k]) * t
		}
		return a
	}
	c00 := lerp(at(r0, g0, b0), at(r0, g0, b1), tb)
	c01 := lerp(at(r0, g1, b0), at(r0, g1, b1), tb)
	c10 := lerp(at(r1, g0, b0), at(r1, g0, b1), tb)
	c11 := lerp(at(r1, g1, b0), at(r1, g1, b1), tb)
	return lerp(lerp(c00, c01, tg), lerp(c10, c11, tg), tr)
}

func tonemap1D(e *env, debug bool) error {
	curve := e.tex("_LutTex1D")
	if curve == nil {
		return errors.New("_LutTex1D not bound")
	}
	src := e.mainTex()
	lutA := e.float("_LutA", kernel.LutA)
	mult := e.exposure()
	vibrance := e.float("_Vibrance", 1)
	w := float32(curve.desc.Width)
	e.shade(func(_, _ int, u, v float32) [4]float32 {
		c, clipped := exposed(src.sample(u, v), mult, lutA)
		if debug && clipped {
			return clampMarker
		}
		var out [4]float32
		for k := range 3 {
			// Texel centres span [0.5/w, 1-0.5/w].
			t := kernel.Saturate(kernel.LinToLut(c[k], lutA))
			x := t*(w-1) + 0.5
			out[k] = curve.sampleBilinear(x/w, 0.25)[k]
		}
		if vibrance != 1 {
			l := kernel.Luma(out[0], out[1], out[2])
			for k := range 3 {
				out[k] = float32(math.Max(0, float64(l+(out[k]-l)*vibrance)))
			}
		}
		out[3] = c[3]
		return out
	})
	return nil
}
