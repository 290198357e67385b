// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx/pass"
)

// surfaceUsage lets every surface be sampled, rendered to, uploaded and
// read back.
const surfaceUsage = gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst

// surface is a GPU texture with a full view.
type surface struct {
	desc   pass.SurfaceDesc
	format gputypes.TextureFormat
	tex    hal.Texture
	view   hal.TextureView
	dev    *Device

	// usage is the state of the last recorded access, for barriers.
	usage gputypes.TextureUsage
}

func (s *surface) Width() int          { return s.desc.Width }
func (s *surface) Height() int         { return s.desc.Height }
func (s *surface) Format() pass.Format { return s.desc.Format }
func (s *surface) Filter() pass.Filter { return s.desc.Filter }
func (s *surface) Label() string       { return s.desc.Label }

func (s *surface) extent() hal.Extent3D {
	//nolint:gosec // G115: dimensions validated positive
	return hal.Extent3D{Width: uint32(s.desc.Width), Height: uint32(s.desc.Height), DepthOrArrayLayers: 1}
}

func (s *surface) copyBase() hal.ImageCopyTexture {
	return hal.ImageCopyTexture{Texture: s.tex, Aspect: gputypes.TextureAspectAll}
}

// newTexture creates a 2D texture and its view.
func newTexture(dev hal.Device, label string, w, h uint32, format gputypes.TextureFormat) (hal.Texture, hal.TextureView, error) {
	tex, err := dev.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         surfaceUsage,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := dev.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label,
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		dev.DestroyTexture(tex)
		return nil, nil, err
	}
	return tex, view, nil
}

// appendHeader is the space reserved ahead of an append buffer's elements
// for its counter.
const appendHeader = 16

// buffer is a storage buffer. Append buffers keep their element counter in
// the first word.
type buffer struct {
	desc pass.BufferDesc
	buf  hal.Buffer
	size uint64
	dev  *Device
}

func (b *buffer) Kind() pass.BufferKind { return b.desc.Kind }
func (b *buffer) Count() int            { return b.desc.Count }
func (b *buffer) Stride() int           { return b.desc.Stride }
func (b *buffer) Label() string         { return b.desc.Label }

// payload is the byte offset of element zero.
func (b *buffer) payload() uint64 {
	if b.desc.Kind == pass.BufferAppend {
		return appendHeader
	}
	return 0
}
