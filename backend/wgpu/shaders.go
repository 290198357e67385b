// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/naga"

	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

//go:embed shaders/fullscreen.wgsl
var fullscreenShaderSource string

//go:embed shaders/blit.wgsl
var blitShaderSource string

//go:embed shaders/tonemap.wgsl
var tonemapShaderSource string

// passEntry is the fragment entry point of one pass and the parameter
// bound to its auxiliary texture slot. An empty aux binds _MainTex again.
type passEntry struct {
	fragment string
	aux      string
}

// programShader is the fragment source of a program, one entry per pass.
type programShader struct {
	source string
	passes []passEntry
}

var programShaders = map[string]programShader{
	programs.Blit: {
		source: blitShaderSource,
		passes: []passEntry{{fragment: "fs_copy"}},
	},
	programs.Tonemap: {
		source: tonemapShaderSource,
		passes: []passEntry{
			programs.TonemapThreeD:      {fragment: "fs_lut3d", aux: "_LutTex"},
			programs.TonemapOneD:        {fragment: "fs_lut1d", aux: "_LutTex1D"},
			programs.TonemapThreeDDebug: {fragment: "fs_lut3d_debug", aux: "_LutTex"},
			programs.TonemapOneDDebug:   {fragment: "fs_lut1d_debug", aux: "_LutTex1D"},
		},
	},
}

// ShaderSource returns the complete WGSL module of program.
func ShaderSource(program string) (string, bool) {
	ps, ok := programShaders[program]
	if !ok {
		return "", false
	}
	return fullscreenShaderSource + "\n" + ps.source, true
}

// entryFor returns the pass table entry of p.
func entryFor(p pass.Pass) (passEntry, bool) {
	ps, ok := programShaders[p.Program]
	if !ok || p.Index < 0 || p.Index >= len(ps.passes) {
		return passEntry{}, false
	}
	return ps.passes[p.Index], true
}

var (
	validatedMu sync.Mutex
	validated   = map[string]error{}
)

// validateShader compiles the module of program once and caches the result.
func validateShader(program string) error {
	validatedMu.Lock()
	defer validatedMu.Unlock()

	if err, ok := validated[program]; ok {
		return err
	}
	src, ok := ShaderSource(program)
	if !ok {
		return pass.ErrUnsupported
	}
	var err error
	if _, cerr := naga.Compile(src); cerr != nil {
		err = fmt.Errorf("%w: compile %s shader: %w", pass.ErrUnsupported, program, cerr)
	}
	validated[program] = err
	return err
}

// uniformSize is the size of the Params block in fullscreen.wgsl.
const uniformSize = 32

// encodeUniforms packs the Params block: _LutExposureMult, _LutA,
// _Vibrance and the _MainTex filter flag.
func encodeUniforms(params *pass.Params, bilinear bool) []byte {
	exposure := [4]float32{1, 1, 1, 1}
	lutA := float32(kernel.LutA)
	vibrance := float32(1)
	if params != nil {
		if v, ok := params.Vector("_LutExposureMult"); ok {
			exposure = v
		}
		lutA = params.FloatOr("_LutA", lutA)
		vibrance = params.FloatOr("_Vibrance", vibrance)
	}

	buf := make([]byte, uniformSize)
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	for k, v := range exposure {
		put(4*k, v)
	}
	put(16, lutA)
	put(20, vibrance)
	if bilinear {
		put(24, 1)
	}
	return buf
}
