// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"context"
	"strconv"
)

// Pass identifies one numbered pass of a program.
type Pass struct {
	Program string
	Index   int
}

// String returns "program#index", or "program:name" when the pass is catalogued.
func (p Pass) String() string {
	if prog, ok := Lookup(p.Program); ok {
		if name := prog.PassName(p.Index); name != "" {
			return p.Program + ":" + name
		}
	}
	return p.Program + "#" + strconv.Itoa(p.Index)
}

// Executor runs passes. Every call completes, in device order, before any
// later call observes its destination.
type Executor interface {
	// Execute runs one full-screen pass reading src and writing dst.
	// src is bound as "_MainTex" in addition to the textures in params.
	Execute(ctx context.Context, src, dst Surface, p Pass, params *Params) error

	// Copy writes src into dst, resampling when sizes differ.
	Copy(ctx context.Context, src, dst Surface) error

	// CopyCount writes the element counter of an append buffer into the
	// first argument (vertex count) of an indirect-args buffer.
	CopyCount(ctx context.Context, counter, args Buffer) error

	// DrawPointsIndirect draws the points of an append buffer onto dst as
	// sprites, with the vertex count read from args.
	DrawPointsIndirect(ctx context.Context, dst Surface, p Pass, args, points Buffer, params *Params) error
}

// Allocator creates and destroys device resources.
type Allocator interface {
	NewSurface(desc SurfaceDesc) (Surface, error)
	DestroySurface(s Surface)

	// WriteSurface uploads RGBA float pixels, row-major from the top-left,
	// four values per pixel regardless of the surface format.
	WriteSurface(s Surface, pix []float32) error

	NewBuffer(desc BufferDesc) (Buffer, error)
	WriteBuffer(b Buffer, offset int, data []byte) error
	DestroyBuffer(b Buffer)
}

// Device is an executor with its allocator.
type Device interface {
	Executor
	Allocator

	// Name identifies the device in logs ("software", "wgpu").
	Name() string

	// Supports returns nil when every pass of program can run, otherwise an
	// error wrapping ErrUnsupported.
	Supports(program string) error
}

// Flusher is implemented by devices that run passes asynchronously. Flush
// blocks until every pass issued so far has completed; the pipeline calls
// it at the end of each frame.
type Flusher interface {
	Flush(ctx context.Context) error
}
