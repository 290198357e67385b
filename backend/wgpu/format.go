// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/postfx/pass"
)

// copyPitch is the row alignment of texture to buffer copies.
const copyPitch = 256

// textureFormat maps a surface format to its GPU texture format.
func textureFormat(f pass.Format) (gputypes.TextureFormat, error) {
	switch f {
	case pass.FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case pass.FormatRGBA16F:
		return gputypes.TextureFormatRGBA16Float, nil
	case pass.FormatRG16F:
		return gputypes.TextureFormatRG16Float, nil
	case pass.FormatR32F:
		return gputypes.TextureFormatR32Float, nil
	case pass.FormatRGBA32F:
		return gputypes.TextureFormatRGBA32Float, nil
	default:
		return 0, fmt.Errorf("wgpu: unsupported surface format %v", f)
	}
}

// alignUp rounds n up to a multiple of align, which must be a power of two.
func alignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// encodePixels packs RGBA float pixels, four per texel, into the texel
// layout of f. Channels the format does not store are dropped.
func encodePixels(f pass.Format, pix []float32) []byte {
	texels := len(pix) / 4
	out := make([]byte, texels*f.BytesPerPixel())
	for i := range texels {
		c := pix[i*4 : i*4+4]
		o := i * f.BytesPerPixel()
		switch f {
		case pass.FormatRGBA8:
			for k := range 4 {
				out[o+k] = unorm8(c[k])
			}
		case pass.FormatRGBA16F:
			for k := range 4 {
				binary.LittleEndian.PutUint16(out[o+2*k:], float16(c[k]))
			}
		case pass.FormatRG16F:
			binary.LittleEndian.PutUint16(out[o:], float16(c[0]))
			binary.LittleEndian.PutUint16(out[o+2:], float16(c[1]))
		case pass.FormatR32F:
			binary.LittleEndian.PutUint32(out[o:], math.Float32bits(c[0]))
		case pass.FormatRGBA32F:
			for k := range 4 {
				binary.LittleEndian.PutUint32(out[o+4*k:], math.Float32bits(c[k]))
			}
		}
	}
	return out
}

// decodePixels unpacks rows of f, each pitch bytes apart, into RGBA float
// pixels. Missing channels read as the GPU returns them: 0 for green and
// blue, 1 for alpha.
func decodePixels(f pass.Format, data []byte, width, height int, pitch uint32) []float32 {
	out := make([]float32, width*height*4)
	bpp := f.BytesPerPixel()
	for y := range height {
		row := data[int(pitch)*y:]
		for x := range width {
			in := row[x*bpp:]
			c := out[(y*width+x)*4 : (y*width+x)*4+4]
			c[3] = 1
			switch f {
			case pass.FormatRGBA8:
				for k := range 4 {
					c[k] = float32(in[k]) / 255
				}
			case pass.FormatRGBA16F:
				for k := range 4 {
					c[k] = float32from16(binary.LittleEndian.Uint16(in[2*k:]))
				}
			case pass.FormatRG16F:
				c[0] = float32from16(binary.LittleEndian.Uint16(in))
				c[1] = float32from16(binary.LittleEndian.Uint16(in[2:]))
			case pass.FormatR32F:
				c[0] = math.Float32frombits(binary.LittleEndian.Uint32(in))
			case pass.FormatRGBA32F:
				for k := range 4 {
					c[k] = math.Float32frombits(binary.LittleEndian.Uint32(in[4*k:]))
				}
			}
		}
	}
	return out
}

func unorm8(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// float16 converts v to IEEE 754 binary16 bits, rounding to nearest.
// Values beyond the half range become infinity; NaN stays NaN.
// Adapted from Fabian Giesen's float_to_half_fast3.
func float16(v float32) uint16 {
	const (
		inf32     uint32 = 255 << 23
		inf16     uint32 = 31 << 23
		magic     uint32 = 15 << 23
		signMask  uint32 = 0x8000_0000
		roundMask uint32 = ^uint32(0xfff)
	)
	u := math.Float32bits(v)
	sign := u & signMask
	u ^= sign

	var out uint16
	if u >= inf32 {
		out = 0x7c00
		if u > inf32 {
			out = 0x7e00
		}
	} else {
		u &= roundMask
		u = math.Float32bits(math.Float32frombits(u) * math.Float32frombits(magic))
		u -= roundMask
		if u > inf16 {
			u = inf16
		}
		out = uint16(u >> 13)
	}
	return out | uint16(sign>>16)
}

// float32from16 expands binary16 bits.
func float32from16(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)
	switch {
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	case exp == 0:
		// Zero or subnormal: mant * 2^-24.
		v := float32(mant) / (1 << 24)
		if sign != 0 {
			v = -v
		}
		return v
	default:
		return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
	}
}
