// Package postfx provides screen-space post-processing for 3D renderers.
//
// # Overview
//
// postfx runs a fixed chain of effects over a rendered frame: screen-space
// reflections, depth of field with bokeh, temporal anti-aliasing and
// tonemapping with colour grading. Effects never touch GPU APIs directly.
// They describe their work as numbered passes of named programs and hand
// them to a [pass.Device], so the same effects run on the CPU reference
// device and on the WebGPU device.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/postfx"
//		"github.com/gogpu/postfx/backend"
//		"github.com/gogpu/postfx/taa"
//		"github.com/gogpu/postfx/tonemap"
//	)
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	p := postfx.New(dev,
//		postfx.WithTAA(taa.DefaultSettings()),
//		postfx.WithTonemap(tonemap.DefaultSettings()),
//	)
//	if err := p.Activate(); err != nil {
//		log.Print(err) // unsupported effects are skipped
//	}
//	defer p.Deactivate()
//
//	// Every frame:
//	p.PreRender(cam)
//	renderScene(cam)
//	p.PostRender(cam)
//	err = p.RenderFrame(ctx, &camera.FrameContext{
//		Camera:      cam,
//		Source:      hdr,
//		Destination: backbuffer,
//		GBuffer:     camera.GBuffer{Depth: depth},
//	})
//
// # Architecture
//
// The module is organized into:
//   - Pipeline: [Pipeline], [Option], [Config]
//   - Effects: ssr, dof, taa, tonemap
//   - Frame input: camera (camera, G-buffer, matrices)
//   - Execution: pass (surfaces, buffers, programs, devices), pool
//     (temporary surfaces)
//   - Devices: backend/software (CPU), backend/wgpu (WebGPU), backend
//     (registry)
//
// # Failure Model
//
// An effect the device cannot run disables itself at Activate and copies
// its input from then on. An effect whose frame fails copies its input
// for that frame and reports the error. Either way the destination always
// receives an image.
//
// # Logging
//
// postfx is silent by default. See [SetLogger].
package postfx

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = ""
)
