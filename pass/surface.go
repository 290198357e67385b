// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import "fmt"

// Format is the pixel format of a surface.
type Format uint8

const (
	// FormatRGBA8 is 8-bit unorm RGBA, used for LDR colour.
	FormatRGBA8 Format = iota

	// FormatRGBA16F is half-float RGBA, used for HDR colour and hit buffers.
	FormatRGBA16F

	// FormatRG16F is half-float RG, used for dilated CoC buffers.
	FormatRG16F

	// FormatR32F is single-channel float, used for depth.
	FormatR32F

	// FormatRGBA32F is full-float RGBA.
	FormatRGBA32F
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatRG16F:
		return "RG16F"
	case FormatR32F:
		return "R32F"
	case FormatRGBA32F:
		return "RGBA32F"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the storage size of one pixel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatR32F:
		return 4
	case FormatRG16F:
		return 4
	case FormatRGBA16F:
		return 8
	case FormatRGBA32F:
		return 16
	default:
		return 4
	}
}

// Channels returns the number of colour channels stored by the format.
func (f Format) Channels() int {
	switch f {
	case FormatR32F:
		return 1
	case FormatRG16F:
		return 2
	default:
		return 4
	}
}

// Filter selects how a surface is sampled when read by a pass.
type Filter uint8

const (
	// FilterPoint samples the nearest texel. This is the pool default.
	FilterPoint Filter = iota

	// FilterBilinear interpolates the four nearest texels.
	FilterBilinear
)

// String returns "point" or "bilinear".
func (f Filter) String() string {
	if f == FilterBilinear {
		return "bilinear"
	}
	return "point"
}

// SurfaceDesc describes a surface to allocate.
type SurfaceDesc struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the surface size in pixels. Both must be positive.
	Width  int
	Height int

	// DepthBits is the requested depth attachment precision (0, 16 or 24).
	DepthBits int

	Format Format
	Filter Filter
}

// Validate reports whether the descriptor can be allocated.
func (d SurfaceDesc) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, d.Width, d.Height)
	}
	return nil
}

// Bytes returns the colour storage size of the described surface.
func (d SurfaceDesc) Bytes() uint64 {
	//nolint:gosec // G115: dimensions validated positive
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel())
}

// Surface is a render target that passes read from and write to.
// Implementations are owned by a device; engines only hold them.
type Surface interface {
	Width() int
	Height() int
	Format() Format
	Filter() Filter
	Label() string
}

// SameSize reports whether two surfaces have identical dimensions.
// A nil surface never matches.
func SameSize(a, b Surface) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Width() == b.Width() && a.Height() == b.Height()
}

// BufferKind selects how a buffer is used by passes.
type BufferKind uint8

const (
	// BufferAppend is a structured buffer with a hidden element counter.
	// Passes append elements; CopyCount exposes the counter.
	BufferAppend BufferKind = iota

	// BufferIndirectArgs holds the four uint32 arguments of an indirect draw:
	// vertex count, instance count, first vertex, first instance.
	BufferIndirectArgs
)

// BufferDesc describes a buffer to allocate.
type BufferDesc struct {
	Label string
	Kind  BufferKind

	// Count is the element capacity, Stride the element size in bytes.
	Count  int
	Stride int
}

// Bytes returns the payload size of the described buffer.
func (d BufferDesc) Bytes() uint64 {
	//nolint:gosec // G115: sizes are small positive constants
	return uint64(d.Count) * uint64(d.Stride)
}

// Buffer is a device buffer written by passes.
type Buffer interface {
	Kind() BufferKind
	Count() int
	Stride() int
	Label() string
}
