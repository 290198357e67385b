// Package camera holds the per-frame camera state that post-processing
// engines read: intrinsics, extrinsics and the host's G-buffer surfaces.
//
// View space is right-handed and looks down -Z. Projections are
// OpenGL-style, see [Perspective].
package camera

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/pass"
)

// ErrInvalidCamera is returned by Validate for unusable camera state.
var ErrInvalidCamera = errors.New("camera: invalid")

// RenderPath is the host's lighting path. Screen-space reflections need
// the deferred G-buffer.
type RenderPath uint8

const (
	// Forward renders without a normal/smoothness G-buffer.
	Forward RenderPath = iota

	// Deferred renders a full G-buffer.
	Deferred
)

// String returns "forward" or "deferred".
func (p RenderPath) String() string {
	if p == Deferred {
		return "deferred"
	}
	return "forward"
}

// Camera is the host camera as seen by the engines. TAA perturbs
// Projection between PreRender and PostRender; everything else is
// read-only to the engines.
type Camera struct {
	// Projection is the camera-to-clip matrix.
	Projection f32.Mat4

	// WorldToCamera is the view matrix.
	WorldToCamera f32.Mat4

	// FieldOfView is the vertical field of view in degrees.
	FieldOfView float32

	// Near and Far are the clip planes. Far may be +Inf.
	Near, Far float32

	// Width and Height are the render target size in pixels.
	Width, Height int

	RenderPath RenderPath
}

// New returns a camera with a perspective projection and an identity
// view matrix.
func New(width, height int, fovY, near, far float32) *Camera {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return &Camera{
		Projection:    Perspective(fovY, aspect, near, far),
		WorldToCamera: Identity(),
		FieldOfView:   fovY,
		Near:          near,
		Far:           far,
		Width:         width,
		Height:        height,
		RenderPath:    Deferred,
	}
}

// Validate reports camera state the engines cannot derive constants from.
func (c *Camera) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil camera", ErrInvalidCamera)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidCamera, c.Width, c.Height)
	}
	if c.Near <= 0 || c.Far <= c.Near {
		return fmt.Errorf("%w: clip planes %g..%g", ErrInvalidCamera, c.Near, c.Far)
	}
	if c.FieldOfView <= 0 || c.FieldOfView >= 180 {
		return fmt.Errorf("%w: field of view %g", ErrInvalidCamera, c.FieldOfView)
	}
	return nil
}

// InfiniteFar reports whether the far plane is at infinity.
func (c *Camera) InfiniteFar() bool { return math.IsInf(float64(c.Far), 1) }

// ViewProjection returns Projection·WorldToCamera.
func (c *Camera) ViewProjection() f32.Mat4 { return Mul(c.Projection, c.WorldToCamera) }

// CameraToWorld returns the inverse view matrix.
func (c *Camera) CameraToWorld() f32.Mat4 {
	m, _ := Inverse(c.WorldToCamera)
	return m
}

// ProjInfo returns the constants that reconstruct a view-space position
// from a pixel position (x, y) measured from the bottom-left corner and a
// view-space z:
//
//	pos = ((x*p[0] + p[2]) * z, (y*p[1] + p[3]) * z, z)
func ProjInfo(proj f32.Mat4, width, height int) f32.Vec4 {
	w, h := float32(width), float32(height)
	return f32.Vec4{
		-2 / (w * proj[0]),
		-2 / (h * proj[5]),
		(1 - proj[2]) / proj[0],
		(1 + proj[6]) / proj[5],
	}
}

// PixelsPerMeterAtOneMeter returns the screen-space size of one world unit
// at unit distance. The value is negative because view space looks down -Z.
func PixelsPerMeterAtOneMeter(fovY float32, width int) float32 {
	return float32(float64(width) / (-2 * math.Tan(float64(fovY)/180*math.Pi*0.5)))
}

// ProjectToPixel returns the matrix mapping view space to pixel coordinates
// (before the perspective divide).
func ProjectToPixel(proj f32.Mat4, width, height int) f32.Mat4 {
	hw, hh := float32(width)/2, float32(height)/2
	scale := f32.Mat4{
		hw, 0, 0, hw,
		0, hh, 0, hh,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	return Mul(scale, proj)
}

// ClipInfo returns (near·far, near−far, far), or (near, −1, 1) when the far
// plane is infinite.
func ClipInfo(near, far float32) f32.Vec4 {
	if math.IsInf(float64(far), 1) {
		return f32.Vec4{near, -1, 1, 0}
	}
	return f32.Vec4{near * far, near - far, far, 0}
}

// GBuffer holds the host's geometry buffers.
//
//   - Depth: R = linear eye depth divided by the far plane.
//   - Normals: RGB = world-space normal encoded as n*0.5+0.5.
//   - Specular: RGB = specular colour, A = smoothness.
//
// Any of them may be nil when the host does not produce it.
type GBuffer struct {
	Depth    pass.Surface
	Normals  pass.Surface
	Specular pass.Surface
}

// FrameContext is everything an engine may read during one frame. The host
// owns it; engines must not retain it past RenderFrame.
type FrameContext struct {
	Camera      *Camera
	Source      pass.Surface
	Destination pass.Surface
	GBuffer     GBuffer
}

// Validate checks that the frame has surfaces to read and write.
func (f *FrameContext) Validate() error {
	if f == nil || f.Source == nil || f.Destination == nil {
		return pass.ErrNilSurface
	}
	return f.Camera.Validate()
}
