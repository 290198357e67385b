// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"math"

	"github.com/gogpu/postfx/pass"
)

// surface is a CPU render target. Pixels are float32 RGBA, row-major from
// the top-left, whatever the nominal format; stores quantise to the format.
type surface struct {
	desc pass.SurfaceDesc
	pix  []float32
	dev  *Device
}

func newSurface(dev *Device, desc pass.SurfaceDesc) *surface {
	s := &surface{
		desc: desc,
		pix:  make([]float32, desc.Width*desc.Height*4),
		dev:  dev,
	}
	// Unused channels read back as a GPU would: (r, 0, 0, 1) or (r, g, 0, 1).
	if desc.Format.Channels() < 4 {
		for i := 3; i < len(s.pix); i += 4 {
			s.pix[i] = 1
		}
	}
	return s
}

func (s *surface) Width() int          { return s.desc.Width }
func (s *surface) Height() int         { return s.desc.Height }
func (s *surface) Format() pass.Format { return s.desc.Format }
func (s *surface) Filter() pass.Filter { return s.desc.Filter }
func (s *surface) Label() string       { return s.desc.Label }

func (s *surface) clone() *surface {
	c := &surface{desc: s.desc, pix: make([]float32, len(s.pix)), dev: s.dev}
	copy(c.pix, s.pix)
	return c
}

// at returns the texel at (x, y), clamped to the edge.
func (s *surface) at(x, y int) [4]float32 {
	x = clampInt(x, 0, s.desc.Width-1)
	y = clampInt(y, 0, s.desc.Height-1)
	i := (y*s.desc.Width + x) * 4
	return [4]float32{s.pix[i], s.pix[i+1], s.pix[i+2], s.pix[i+3]}
}

// store writes c at (x, y) with the precision and channel count of the
// surface format.
func (s *surface) store(x, y int, c [4]float32) {
	i := (y*s.desc.Width + x) * 4
	switch s.desc.Format {
	case pass.FormatRGBA8:
		for k := range 4 {
			s.pix[i+k] = unorm8(c[k])
		}
	case pass.FormatRGBA16F:
		for k := range 4 {
			s.pix[i+k] = half(c[k])
		}
	case pass.FormatRG16F:
		s.pix[i], s.pix[i+1], s.pix[i+2], s.pix[i+3] = half(c[0]), half(c[1]), 0, 1
	case pass.FormatR32F:
		s.pix[i], s.pix[i+1], s.pix[i+2], s.pix[i+3] = c[0], 0, 0, 1
	default:
		copy(s.pix[i:i+4], c[:])
	}
}

// sample reads s at normalised (u, v) with the surface's own filter.
func (s *surface) sample(u, v float32) [4]float32 {
	if s.desc.Filter == pass.FilterBilinear {
		return s.sampleBilinear(u, v)
	}
	return s.samplePoint(u, v)
}

func (s *surface) samplePoint(u, v float32) [4]float32 {
	x := int(math.Floor(float64(u * float32(s.desc.Width))))
	y := int(math.Floor(float64(v * float32(s.desc.Height))))
	return s.at(x, y)
}

func (s *surface) sampleBilinear(u, v float32) [4]float32 {
	fx := u*float32(s.desc.Width) - 0.5
	fy := v*float32(s.desc.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	a, b := s.at(x0, y0), s.at(x0+1, y0)
	c, d := s.at(x0, y0+1), s.at(x0+1, y0+1)
	var out [4]float32
	for k := range 4 {
		top := a[k] + (b[k]-a[k])*tx
		bot := c[k] + (d[k]-c[k])*tx
		out[k] = top + (bot-top)*ty
	}
	return out
}

// sampleOffset reads s at (u, v) displaced by (dx, dy) texels.
func (s *surface) sampleOffset(u, v, dx, dy float32) [4]float32 {
	return s.sample(u+dx/float32(s.desc.Width), v+dy/float32(s.desc.Height))
}

// texel returns the size of one texel in uv units.
func (s *surface) texel() (float32, float32) {
	return 1 / float32(s.desc.Width), 1 / float32(s.desc.Height)
}

func unorm8(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return float32(math.Round(float64(v)*255)) / 255
}

// half rounds v to the nearest half-float value, saturating at ±65504.
func half(v float32) float32 {
	if v != v {
		return v
	}
	const maxHalf = 65504
	if v > maxHalf {
		return maxHalf
	}
	if v < -maxHalf {
		return -maxHalf
	}
	if v == 0 {
		return 0
	}
	frac, exp := math.Frexp(float64(v))
	// 11 significant bits; subnormals below 2^-14 keep a fixed quantum.
	bits := 11
	if exp < -13 {
		bits -= -13 - exp
		if bits <= 0 {
			return 0
		}
	}
	scale := math.Ldexp(1, bits)
	return float32(math.Ldexp(math.Round(frac*scale)/scale, exp))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
