// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

// kernelFunc is the CPU implementation of one pass.
type kernelFunc func(e *env) error

// kernels maps a program name to its kernels, indexed by pass number.
// Kernel files fill it from init.
var kernels = map[string][]kernelFunc{}

func registerKernels(program string, ks []kernelFunc) { kernels[program] = ks }

func kernelFor(p pass.Pass) kernelFunc {
	ks := kernels[p.Program]
	if p.Index < 0 || p.Index >= len(ks) {
		return nil
	}
	return ks[p.Index]
}

func init() {
	registerKernels(programs.Blit, []kernelFunc{blitCopy})
}

// blitCopy copies _MainTex into the destination.
func blitCopy(e *env) error {
	src := e.src
	if src == nil {
		return nil
	}
	if src.desc.Width == e.dst.desc.Width && src.desc.Height == e.dst.desc.Height {
		e.shade(func(x, y int, _, _ float32) [4]float32 { return src.at(x, y) })
		return nil
	}
	e.shade(func(_, _ int, u, v float32) [4]float32 { return src.sample(u, v) })
	return nil
}

// mainTex returns _MainTex or a black stand-in for passes drawn without a
// source.
func (e *env) mainTex() *surface {
	if e.src != nil {
		return e.src
	}
	if s := e.tex("_MainTex"); s != nil {
		return s
	}
	return blackSurface
}

// texOr returns a bound texture or a 1x1 stand-in of the given value.
func (e *env) texOr(name string, def *surface) *surface {
	if s := e.tex(name); s != nil {
		return s
	}
	return def
}

var (
	blackSurface = constSurface([4]float32{0, 0, 0, 0})
	whiteSurface = constSurface([4]float32{1, 1, 1, 1})
	// farDepth reads as linear depth 1.
	farDepth = constSurface([4]float32{1, 0, 0, 1})
	// upNormal encodes (0, 1, 0) as n*0.5+0.5.
	upNormal = constSurface([4]float32{0.5, 1, 0.5, 1})
)

func constSurface(c [4]float32) *surface {
	return &surface{
		desc: pass.SurfaceDesc{Label: "const", Width: 1, Height: 1, Format: pass.FormatRGBA32F},
		pix:  []float32{c[0], c[1], c[2], c[3]},
	}
}
