// Package ssr implements screen-space reflections for deferred renderers.
//
// Rays are marched through the depth buffer from every pixel along its
// reflected view vector. Hits fetch scene colour into a five level blur
// chain that is resolved by roughness, faded, optionally filtered against
// the previous frame, and composited over the scene.
package ssr

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/effect"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

// Name is the engine name used in logs.
const Name = "ssr"

// MipLevels is the length of the reflection blur chain.
const MipLevels = 5

// tracePasses maps the clamped ray step size to its trace pass.
var tracePasses = [...]int{
	programs.SSRRayTraceStep1,
	programs.SSRRayTraceStep2,
	programs.SSRRayTraceStep4,
	programs.SSRRayTraceStep8,
	programs.SSRRayTraceStep16,
}

// TracePass returns the trace pass for a ray step size, clamped to 0..4.
func TracePass(rayStepSize int) int {
	return tracePasses[min(max(rayStepSize, 0), len(tracePasses)-1)]
}

// ViewConstants are the camera-derived constants of the trace and resolve
// passes.
type ViewConstants struct {
	ProjInfo                 f32.Vec4
	PixelsPerMeterAtOneMeter float32
	ProjectToPixel           f32.Mat4
	ScreenSize               f32.Vec4
	InvScreenSize            f32.Vec4
	ClipInfo                 f32.Vec4
}

// ViewConstantsFor derives the constants for cam rendering a width×height
// source.
func ViewConstantsFor(cam *camera.Camera, width, height int) ViewConstants {
	w, h := float32(width), float32(height)
	return ViewConstants{
		ProjInfo:                 camera.ProjInfo(cam.Projection, width, height),
		PixelsPerMeterAtOneMeter: camera.PixelsPerMeterAtOneMeter(cam.FieldOfView, width),
		ProjectToPixel:           camera.ProjectToPixel(cam.Projection, width, height),
		ScreenSize:               f32.Vec4{w, h, 0, 0},
		InvScreenSize:            f32.Vec4{1 / w, 1 / h, 0, 0},
		ClipInfo:                 camera.ClipInfo(cam.Near, cam.Far),
	}
}

// history is last frame's depth, hit and reflection buffers. An engine
// holds either a complete history or none.
type history struct {
	depth, hit, reflection pass.Surface
	width, height          int
}

// Engine is the screen-space reflection effect.
//
// Engine is not safe for concurrent use.
type Engine struct {
	effect.Base

	settings Settings
	params   *pass.Params

	prev           *history
	havePrev       bool
	prevWorldToCam f32.Mat4
}

// New creates an inactive engine rendering with dev.
func New(dev pass.Device, s Settings) *Engine {
	e := &Engine{settings: s, params: pass.NewParams()}
	e.Init(Name, dev, programs.SSR)
	return e
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings { return e.settings }

// SetSettings replaces the settings from the next frame on.
func (e *Engine) SetSettings(s Settings) { e.settings = s }

// Activate verifies the ssr program. An unsupported device disables the
// engine and Activate returns an error wrapping pass.ErrUnsupported.
func (e *Engine) Activate() error {
	if !e.Base.Activate() {
		return fmt.Errorf("%s: %w", Name, pass.ErrUnsupported)
	}
	return nil
}

// Deactivate destroys the history and every pooled surface.
func (e *Engine) Deactivate() {
	e.Base.Deactivate()
	e.params.Reset()
	e.prev = nil
	e.havePrev = false
}

// NeedsDepth reports whether the host must provide the depth buffer.
func (e *Engine) NeedsDepth() bool { return e.Active() }

// HasPreviousFrame reports whether the next frame may filter against the
// stored history.
func (e *Engine) HasPreviousFrame() bool { return e.havePrev }

// RenderFrame composites reflections over frame.Source into
// frame.Destination. Forward-rendered frames are copied.
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
	s := &e.settings
	p := e.params
	// Pooled surfaces bound last frame may have been evicted since.
	p.Reset()

	if e.havePrev {
		e.havePrev = e.prev != nil && e.prev.width == src.Width() && e.prev.height == src.Height()
	}
	temporal := e.havePrev && s.Advanced.TemporalFilterStrength > 0
	e.havePrev = false

	if cam.RenderPath != camera.Deferred {
		return e.Copy(ctx, src, dst)
	}

	p.SetTexture("_CameraDepthTexture", frame.GBuffer.Depth)
	p.SetTexture("_CameraGBufferTexture1", frame.GBuffer.Specular)
	p.SetTexture("_CameraGBufferTexture2", frame.GBuffer.Normals)

	packed, err := e.Acquire(src.Width(), src.Height(), pass.FormatRGBA8)
	if err != nil {
		return err
	}
	if err := e.Execute(ctx, src, packed, programs.SSR, programs.SSRBilateralKeyPack, p); err != nil {
		return err
	}
	p.SetTexture("_NormalAndRoughnessTexture", packed)

	div := s.Advanced.Resolution.divisor()
	w, h := src.Width()/div, src.Height()/div
	worldToCam := cam.WorldToCamera
	camToWorld := cam.CameraToWorld()
	e.bindConstants(cam, src, w, h, worldToCam, camToWorld)

	format := pass.FormatRGBA8
	if s.Basic.EnableHDR {
		format = pass.FormatRGBA16F
	}
	filter := pass.FilterBilinear
	if s.Advanced.BilateralUpsample {
		filter = pass.FilterPoint
	}
	fullRes := s.Debug.FullResolutionFiltering

	var mips [MipLevels]pass.Surface
	for i := range mips {
		mw, mh := w>>i, h>>i
		if fullRes {
			mw, mh = w, h
		}
		if mips[i], err = e.AcquireFiltered(mw, mh, format, filter); err != nil {
			return err
		}
	}

	hits, err := e.AcquireFiltered(w, h, pass.FormatRGBA16F, pass.FilterPoint)
	if err != nil {
		return err
	}
	if err := e.Execute(ctx, src, hits, programs.SSR, TracePass(s.Reflection.RayStepSize), p); err != nil {
		return err
	}
	p.SetTexture("_HitPointTexture", hits)
	if err := e.Execute(ctx, src, mips[0], programs.SSR, programs.SSRHitPointToReflections, p); err != nil {
		return err
	}
	p.SetTexture("_ReflectionTexture0", mips[0])
	p.SetInt("_FullResolutionFiltering", b2i(fullRes))
	p.SetFloat("_MaxRoughness", 1-s.Reflection.SmoothFallbackThreshold)
	p.SetFloat("_RoughnessFalloffRange", s.Reflection.SmoothFallbackDistance)
	p.SetFloat("_SSRMultiplier", s.Basic.ReflectionMultiplier)

	edges := s.Advanced.BilateralUpsample && s.Debug.UseEdgeDetector
	if edges {
		if err := e.edgePyramid(ctx, src, w, h); err != nil {
			return err
		}
	} else {
		for i := range MipLevels {
			p.SetTexture("_EdgeTexture"+strconv.Itoa(i), nil)
		}
	}

	if s.Advanced.HighQualitySharpReflections {
		sharp, err := e.AcquireFiltered(mips[0].Width(), mips[0].Height(), format, filter)
		if err != nil {
			return err
		}
		if err := e.Execute(ctx, mips[0], sharp, programs.SSR, programs.SSRPoissonBlur, p); err != nil {
			return err
		}
		e.Release(mips[0])
		mips[0] = sharp
		p.SetTexture("_ReflectionTexture0", sharp)
	}

	if err := e.blurChain(ctx, &mips, w, h, format, fullRes); err != nil {
		return err
	}
	p.SetInt("_UseEdgeDetector", b2i(s.Debug.UseEdgeDetector))

	p.SetInt("_UseAverageRayDistance", b2i(s.Debug.AverageRayDistance))
	p.SetTexture("_AverageRayDistanceBuffer", nil)
	if s.Debug.AverageRayDistance {
		avg, err := e.Acquire(src.Width(), src.Height(), pass.FormatR32F)
		if err != nil {
			return err
		}
		if err := e.Execute(ctx, src, avg, programs.SSR, programs.SSRAverageRayDistanceGeneration, p); err != nil {
			return err
		}
		p.SetTexture("_AverageRayDistanceBuffer", avg)
	}

	rw, rh := w, h
	if s.Advanced.Resolution == HalfTraceFullResolve {
		rw, rh = src.Width(), src.Height()
	}
	final, err := e.Acquire(rw, rh, format)
	if err != nil {
		return err
	}
	p.SetFloat("_FresnelFade", s.Reflection.FresnelFade)
	p.SetFloat("_FresnelFadePower", s.Reflection.FresnelFadePower)
	p.SetFloat("_DistanceBlur", s.Reflection.DistanceBlur)
	p.SetInt("_HalfResolution", b2i(s.Advanced.Resolution != FullResolution))
	p.SetInt("_HighlightSuppression", b2i(s.Advanced.HighlightSuppression))
	if err := e.Execute(ctx, mips[0], final, programs.SSR, programs.SSRCompositeSSR, p); err != nil {
		return err
	}
	p.SetTexture("_FinalReflectionTexture", final)

	if temporal {
		filtered, err := e.Acquire(rw, rh, format)
		if err != nil {
			return err
		}
		p.SetInt("_UseTemporalConfidence", b2i(s.Advanced.UseTemporalConfidence))
		p.SetFloat("_TemporalAlpha", s.Advanced.TemporalFilterStrength)
		p.SetMatrix("_CurrentCameraToPreviousCamera", camera.Mul(e.prevWorldToCam, camToWorld))
		p.SetTexture("_PreviousReflectionTexture", e.prev.reflection)
		p.SetTexture("_PreviousCSZBuffer", e.prev.depth)
		if err := e.Execute(ctx, src, filtered, programs.SSR, programs.SSRTemporalFilter, p); err != nil {
			return err
		}
		final = filtered
		p.SetTexture("_FinalReflectionTexture", final)
	} else {
		p.SetFloat("_TemporalAlpha", 0)
		p.SetTexture("_PreviousReflectionTexture", nil)
		p.SetTexture("_PreviousCSZBuffer", nil)
	}

	if s.Advanced.TemporalFilterStrength > 0 {
		if err := e.capture(ctx, src, hits, final, worldToCam); err != nil {
			return err
		}
	}

	return e.Execute(ctx, src, dst, programs.SSR, programs.SSRCompositeFinal, p)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// bindConstants sets the camera constants and the per-frame switches.
func (e *Engine) bindConstants(cam *camera.Camera, src pass.Surface, w, h int, worldToCam, camToWorld f32.Mat4) {
	s := &e.settings
	p := e.params
	vc := ViewConstantsFor(cam, src.Width(), src.Height())

	p.SetVector("_SourceToTempUV", f32.Vec4{1, 1, 1, 1})
	p.SetFloat("_PixelsPerMeterAtOneMeter", vc.PixelsPerMeterAtOneMeter)
	p.SetVector("_ScreenSize", vc.ScreenSize)
	p.SetVector("_ReflectionBufferSize", f32.Vec4{float32(w), float32(h), 0, 0})
	p.SetVector("_InvScreenSize", vc.InvScreenSize)
	p.SetVector("_ProjInfo", vc.ProjInfo)
	p.SetMatrix("_ProjectToPixelMatrix", vc.ProjectToPixel)
	p.SetMatrix("_WorldToCameraMatrix", worldToCam)
	p.SetMatrix("_CameraToWorldMatrix", camToWorld)
	p.SetVector("_CameraClipInfo", vc.ClipInfo)

	p.SetInt("_EnableRefine", b2i(s.Advanced.ReduceBanding))
	p.SetInt("_AdditiveReflection", b2i(s.Basic.AdditiveReflection))
	p.SetInt("_ImproveCorners", b2i(s.Advanced.ImproveCorners))
	p.SetFloat("_ScreenEdgeFading", s.Basic.ScreenEdgeFading)
	p.SetFloat("_MipBias", 0)
	p.SetInt("_UseOcclusion", 1)
	p.SetInt("_BilateralUpsampling", b2i(s.Advanced.BilateralUpsample))
	p.SetInt("_FallbackToSky", 0)
	p.SetInt("_TreatBackfaceHitAsMiss", b2i(s.Advanced.TreatBackfaceHitAsMiss))
	p.SetInt("_AllowBackwardsRays", b2i(s.Advanced.AllowBackwardsRays))
	p.SetInt("_TraceEverywhere", b2i(s.Advanced.TraceEverywhere))
	p.SetFloat("_MaxRayTraceDistance", s.Basic.MaxDistance)
	p.SetFloat("_FadeDistance", s.Basic.FadeDistance)
	p.SetFloat("_LayerThickness", s.Reflection.WidthModifier)
	p.SetInt("_EnableSSR", 1)
	p.SetInt("_DebugMode", int(s.Debug.Mode))
	p.SetInt("_TraceBehindObjects", b2i(s.Advanced.TraceBehindObjects))
	p.SetInt("_MaxSteps", s.Reflection.MaxSteps)
}

// edgePyramid builds the depth edge levels read by the bilateral upsample.
func (e *Engine) edgePyramid(ctx context.Context, src pass.Surface, w, h int) error {
	p := e.params
	var levels [MipLevels]pass.Surface
	var err error
	if levels[0], err = e.Acquire(w, h, pass.FormatRGBA8); err != nil {
		return err
	}
	if err := e.Execute(ctx, src, levels[0], programs.SSR, programs.SSREdgeGeneration, p); err != nil {
		return err
	}
	for j := 1; j < MipLevels; j++ {
		if levels[j], err = e.Acquire(w>>j, h>>j, pass.FormatRGBA8); err != nil {
			return err
		}
		p.SetInt("_LastMip", j-1)
		if err := e.Execute(ctx, levels[j-1], levels[j], programs.SSR, programs.SSRMinMipGeneration, p); err != nil {
			return err
		}
	}
	for i, l := range levels {
		p.SetTexture("_EdgeTexture"+strconv.Itoa(i), l)
	}
	return nil
}

// blurChain fills mips 1..4 from their predecessor with a separable blur.
// Full resolution filtering runs k² iterations for mip k.
func (e *Engine) blurChain(ctx context.Context, mips *[MipLevels]pass.Surface, w, h int, format pass.Format, fullRes bool) error {
	p := e.params
	for k := 1; k < MipLevels; k++ {
		tw, th := w>>k, h>>(k-1)
		iterations := 1
		if fullRes {
			tw, th = w, h
			iterations = k * k
		}
		tmp, err := e.AcquireFiltered(tw, th, format, pass.FilterBilinear)
		if err != nil {
			return err
		}
		from := mips[k-1]
		for range iterations {
			p.SetVector("_Axis", f32.Vec4{1, 0, 0, 0})
			p.SetFloat("_CurrentMipLevel", float32(k-1))
			if err := e.Execute(ctx, from, tmp, programs.SSR, programs.SSRBlur, p); err != nil {
				return err
			}
			p.SetVector("_Axis", f32.Vec4{0, 1, 0, 0})
			from = mips[k]
			if err := e.Execute(ctx, tmp, from, programs.SSR, programs.SSRBlur, p); err != nil {
				return err
			}
		}
		p.SetTexture("_ReflectionTexture"+strconv.Itoa(k), mips[k])
		e.Release(tmp)
	}
	return nil
}

// capture stores this frame's camera-space depth, hits and final
// reflection as the history of the next frame.
func (e *Engine) capture(ctx context.Context, src, hits, final pass.Surface, worldToCam f32.Mat4) error {
	e.prevWorldToCam = worldToCam
	if err := e.ensureHistory(src.Width(), src.Height()); err != nil {
		return err
	}
	if err := e.Execute(ctx, src, e.prev.depth, programs.SSR, programs.SSRBlitDepthAsCSZ, e.params); err != nil {
		return err
	}
	if err := e.Copy(ctx, hits, e.prev.hit); err != nil {
		return err
	}
	if err := e.Copy(ctx, final, e.prev.reflection); err != nil {
		return err
	}
	e.havePrev = true
	return nil
}

// ensureHistory (re)allocates the three history buffers together.
func (e *Engine) ensureHistory(w, h int) error {
	if e.prev != nil && e.prev.width == w && e.prev.height == h {
		return nil
	}
	scope := e.Scope()
	if e.prev != nil {
		e.Log().Debug("ssr: reallocating history",
			"old", fmt.Sprintf("%dx%d", e.prev.width, e.prev.height),
			"new", fmt.Sprintf("%dx%d", w, h))
		e.dropHistory()
	}

	descs := [3]pass.SurfaceDesc{
		{Label: "ssr previous depth", Width: w, Height: h, Format: pass.FormatR32F},
		{Label: "ssr previous hits", Width: w, Height: h, Format: pass.FormatRGBA16F},
		{Label: "ssr previous reflection", Width: w, Height: h, Format: pass.FormatRGBA16F, Filter: pass.FilterBilinear},
	}
	var made [3]pass.Surface
	for i, d := range descs {
		s, err := scope.NewSurface(d)
		if err != nil {
			for _, m := range made[:i] {
				scope.DestroySurface(m)
			}
			return err
		}
		made[i] = s
	}
	e.prev = &history{depth: made[0], hit: made[1], reflection: made[2], width: w, height: h}
	return nil
}

func (e *Engine) dropHistory() {
	if e.prev == nil {
		return
	}
	scope := e.Scope()
	scope.DestroySurface(e.prev.depth)
	scope.DestroySurface(e.prev.hit)
	scope.DestroySurface(e.prev.reflection)
	e.prev = nil
	e.havePrev = false
}
