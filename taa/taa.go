// Package taa implements temporal anti-aliasing: sub-pixel projection
// jitter, SMAA-style edge detection and blending, and an accumulation
// buffer merged with the current frame.
//
// The host calls PreRender before it renders the scene so the projection
// can be jittered, PostRender afterwards to restore it, and RenderFrame
// with the rendered image:
//
//	e := taa.New(dev, settings)
//	if err := e.Activate(); err != nil { ... }
//	e.PreRender(cam)
//	// host renders with the jittered cam.Projection
//	e.PostRender(cam)
//	err := e.RenderFrame(ctx, frame)
package taa

import (
	"context"
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/effect"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

// Name is the engine name used in logs.
const Name = "taa"

// Engine is the temporal anti-aliasing effect.
//
// Engine is not safe for concurrent use.
type Engine struct {
	effect.Base

	settings Settings
	params   *pass.Params
	jitter   Jitter

	// base is the unperturbed projection captured by PreRender.
	base     f32.Mat4
	haveBase bool

	prevViewProj f32.Mat4
	havePrev     bool

	accum pass.Surface
}

// New creates an inactive engine rendering with dev.
func New(dev pass.Device, s Settings) *Engine {
	e := &Engine{settings: s, params: pass.NewParams()}
	e.Init(Name, dev, programs.TAA)
	return e
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings { return e.settings }

// SetSettings replaces the settings from the next frame on. Changing the
// mode restarts the jitter sequence.
func (e *Engine) SetSettings(s Settings) {
	if s.Mode != e.settings.Mode {
		e.jitter.Reset()
	}
	e.settings = s
}

// Activate verifies the taa program. An unsupported device disables the
// engine and Activate returns an error wrapping pass.ErrUnsupported.
func (e *Engine) Activate() error {
	if !e.Base.Activate() {
		return fmt.Errorf("%s: %w", Name, pass.ErrUnsupported)
	}
	return nil
}

// Deactivate destroys the accumulation buffer and resets the jitter.
func (e *Engine) Deactivate() {
	e.Base.Deactivate()
	e.params.Reset()
	e.accum = nil
	e.jitter.Reset()
	e.haveBase = false
	e.havePrev = false
}

// NeedsDepth reports whether the host must provide the depth buffer.
func (e *Engine) NeedsDepth() bool { return e.Active() }

// SampleIndex returns the jitter index of the current frame.
func (e *Engine) SampleIndex() int { return e.jitter.Index() }

// PreRender captures the camera projection and, in temporal modes, replaces
// it with a jittered copy for this frame.
func (e *Engine) PreRender(cam *camera.Camera) {
	if cam == nil {
		return
	}
	e.base = cam.Projection
	e.haveBase = true
	if !e.Active() || !e.settings.Mode.Temporal() || cam.Width <= 0 || cam.Height <= 0 {
		return
	}
	i := e.jitter.Advance(e.settings.Mode)
	jx, jy := Offset(e.settings.Mode, i)
	cam.Projection = Jittered(e.base, jx, jy, cam.Width, cam.Height)
}

// PostRender restores the projection captured by PreRender.
func (e *Engine) PostRender(cam *camera.Camera) {
	if cam == nil || !e.haveBase {
		return
	}
	cam.Projection = e.base
}

// Jittered returns proj translated in clip space by (jx, jy) pixels of a
// width×height target.
func Jittered(proj f32.Mat4, jx, jy float32, width, height int) f32.Mat4 {
	t := camera.Translation(jx*2/float32(width), jy*2/float32(height), 0)
	return camera.Mul(t, proj)
}

// RenderFrame anti-aliases frame.Source into frame.Destination.
func (e *Engine) RenderFrame(ctx context.Context, frame *camera.FrameContext) error {
	ok, err := e.Begin(ctx, frame)
	if !ok {
		return err
	}
	return e.Finish(ctx, frame, e.render(ctx, frame))
}

func (e *Engine) render(ctx context.Context, frame *camera.FrameContext) error {
	src, dst := frame.Source, frame.Destination
	cam := frame.Camera
	s := e.settings
	w, h := src.Width(), src.Height()

	fresh, err := e.ensureAccum(src)
	if err != nil {
		return err
	}

	proj := cam.Projection
	if e.haveBase {
		proj = e.base
	}
	viewProj := camera.Mul(proj, cam.WorldToCamera)
	prev := viewProj
	if e.havePrev {
		prev = e.prevViewProj
	}
	inv, _ := camera.Inverse(viewProj)

	index := e.jitter.Index()
	jx, jy := float32(0), float32(0)
	if s.Mode.Temporal() {
		jx, jy = Offset(s.Mode, index)
	}
	jitterOffset := 0
	if s.Mode == SMAA2x {
		jitterOffset = 2
		if index < 1 {
			jitterOffset = 1
		}
	}

	edges, err := e.Acquire(w, h, pass.FormatRGBA8)
	if err != nil {
		return err
	}
	weights, err := e.Acquire(w, h, pass.FormatRGBA8)
	if err != nil {
		return err
	}

	p := e.params
	p.SetMatrix("_ToPrevViewProjCombined", camera.Mul(prev, inv))
	p.SetMatrix("_CameraProjection", proj)
	p.SetFloat("_FarClip", farClip(cam))
	p.SetInt("_JitterOffset", jitterOffset)
	p.SetTexture("colorTex", src)
	p.SetTexture("_CameraDepthTexture", frame.GBuffer.Depth)
	p.SetVector("_PixelSize", f32.Vec4{1 / float32(w), 1 / float32(h), 0, 0})
	p.SetVector("_PixelOffset", f32.Vec4{jx / float32(w), jy / float32(h), 0, 0})
	p.SetTexture("edgesTex", edges)
	p.SetTexture("blendTex", weights)
	p.SetFloat("K", s.MotionRejection)
	p.SetFloat("_TemporalAccum", s.K)
	p.SetTexture("accumTex", nil)
	p.SetTexture("smaaTex", nil)

	if err := e.Execute(ctx, src, edges, programs.TAA, programs.TAAClearToBlack, p); err != nil {
		return err
	}
	edgePass := programs.TAALumaDetection
	if int(s.EdgeDetection) < len(edgePasses) {
		edgePass = edgePasses[s.EdgeDetection]
	}
	if s.EdgeDetection == Depth {
		p.SetFloat("_DepthThreshold", 0.01*s.DepthThreshold)
	}
	if err := e.Execute(ctx, src, edges, programs.TAA, edgePass, p); err != nil {
		return err
	}
	if err := e.Execute(ctx, edges, weights, programs.TAA, programs.TAAWeightCalculation, p); err != nil {
		return err
	}

	switch {
	case !s.Mode.Temporal():
		if err := e.Execute(ctx, src, dst, programs.TAA, programs.TAAWeightsAndBlend1, p); err != nil {
			return err
		}
	case s.Mode == SMAA2x:
		if err := e.resolveCoupled(ctx, src, dst, fresh); err != nil {
			return err
		}
	default:
		if err := e.resolveStandard(ctx, src, dst, fresh); err != nil {
			return err
		}
	}

	if err := e.debugView(ctx, dst, edges, weights); err != nil {
		return err
	}

	e.prevViewProj = viewProj
	e.havePrev = true
	return nil
}

// edgePasses maps the edge detection setting to its pass.
var edgePasses = [...]int{
	Luminance: programs.TAALumaDetection,
	Color:     programs.TAAColorDetection,
	Depth:     programs.TAADepthDetection,
}

func farClip(cam *camera.Camera) float32 {
	if cam.InfiniteFar() {
		return 0
	}
	return cam.Far
}

// ensureAccum (re)allocates the accumulation buffer to the size and format
// of src and reports whether it is fresh.
func (e *Engine) ensureAccum(src pass.Surface) (bool, error) {
	if e.accum != nil && pass.SameSize(e.accum, src) && e.accum.Format() == src.Format() {
		return false, nil
	}
	scope := e.Scope()
	if e.accum != nil {
		e.Log().Debug("taa: reallocating accumulation buffer",
			"old", fmt.Sprintf("%dx%d", e.accum.Width(), e.accum.Height()),
			"new", fmt.Sprintf("%dx%d", src.Width(), src.Height()))
		scope.DestroySurface(e.accum)
		e.accum = nil
	}
	accum, err := scope.NewSurface(pass.SurfaceDesc{
		Label:  "taa accumulation",
		Width:  src.Width(),
		Height: src.Height(),
		Format: src.Format(),
	})
	if err != nil {
		return false, err
	}
	e.accum = accum
	return true, nil
}

// resolveCoupled blends the current frame, averaged with the accumulation
// buffer unless it is fresh, and stores the result as the new history.
func (e *Engine) resolveCoupled(ctx context.Context, src, dst pass.Surface, fresh bool) error {
	p := e.params
	tmp, err := e.Acquire(src.Width(), src.Height(), src.Format())
	if err != nil {
		return err
	}
	p.SetTexture("accumTex", e.accum)
	blend := programs.TAAWeightsAndBlend2
	if fresh {
		blend = programs.TAAWeightsAndBlend1
	}
	if err := e.Execute(ctx, src, tmp, programs.TAA, blend, p); err != nil {
		return err
	}
	if err := e.Copy(ctx, tmp, e.accum); err != nil {
		return err
	}
	return e.Copy(ctx, tmp, dst)
}

// resolveStandard blends the current frame and merges it with the
// reprojected history. A fresh buffer is seeded with the blended frame and
// merged with zero weight, so the output equals the blend exactly.
func (e *Engine) resolveStandard(ctx context.Context, src, dst pass.Surface, fresh bool) error {
	p := e.params
	cur, err := e.AcquireFiltered(src.Width(), src.Height(), src.Format(), pass.FilterBilinear)
	if err != nil {
		return err
	}
	if err := e.Execute(ctx, src, cur, programs.TAA, programs.TAAWeightsAndBlend1, p); err != nil {
		return err
	}
	if fresh {
		if err := e.Copy(ctx, cur, e.accum); err != nil {
			return err
		}
		p.SetFloat("_TemporalAccum", 0)
	}
	p.SetTexture("accumTex", e.accum)
	p.SetTexture("smaaTex", cur)

	merged, err := e.Acquire(src.Width(), src.Height(), src.Format())
	if err != nil {
		return err
	}
	if err := e.Execute(ctx, cur, merged, programs.TAA, programs.TAAMergeFrames, p); err != nil {
		return err
	}
	if err := e.Copy(ctx, merged, e.accum); err != nil {
		return err
	}
	return e.Copy(ctx, merged, dst)
}

func (e *Engine) debugView(ctx context.Context, dst, edges, weights pass.Surface) error {
	switch e.settings.Debug {
	case DebugEdges:
		return e.Execute(ctx, edges, dst, programs.TAA, programs.TAACopy, e.params)
	case DebugWeights:
		return e.Execute(ctx, weights, dst, programs.TAA, programs.TAACopy, e.params)
	case DebugDepth:
		return e.Execute(ctx, nil, dst, programs.TAA, programs.TAADebugDepth, e.params)
	case DebugAccumulation:
		return e.Copy(ctx, e.accum, dst)
	}
	return nil
}
