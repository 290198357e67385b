// Package dof implements depth of field: a half-resolution circle of
// confusion buffer blurred through a circular or polygonal aperture, with
// optional sprite bokeh for bright out-of-focus highlights.
package dof

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/effect"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

// Name is the engine name used in logs.
const Name = "dof"

// Radii are tuned for this many lines; they scale with the source height.
const referenceHeight = 720

// Pass tables. Shape passes are indexed by [tier][dilated][merge], circle
// passes by [dilated][wide].
var (
	capturePasses   = [2]int{programs.DoFCaptureCoc, programs.DoFCaptureCocExplicit}
	visualizePasses = [2]int{programs.DoFVisualizeCoc, programs.DoFVisualizeCocExplicit}

	// mergePasses is indexed by [explicit][bicubic].
	mergePasses = [2][2]int{
		{programs.DoFMerge, programs.DoFMergeBicubic},
		{programs.DoFMergeExplicit, programs.DoFMergeExplicitBicubic},
	}

	circlePasses = [2][2]int{
		{programs.DoFCircleBlurLowQuality, programs.DoFCircleBlur},
		{programs.DoFCircleBlurLowQualityWithDilatedFg, programs.DoFCircleBlurWithDilatedFg},
	}

	shapePasses = [3][2][2]int{
		{
			{programs.DoFShapeLowQuality, programs.DoFShapeLowQualityMerge},
			{programs.DoFShapeLowQualityDilateFg, programs.DoFShapeLowQualityMergeDilateFg},
		},
		{
			{programs.DoFShapeMediumQuality, programs.DoFShapeMediumQualityMerge},
			{programs.DoFShapeMediumQualityDilateFg, programs.DoFShapeMediumQualityMergeDilateFg},
		},
		{
			{programs.DoFShapeHighQuality, programs.DoFShapeHighQualityMerge},
			{programs.DoFShapeHighQualityDilateFg, programs.DoFShapeHighQualityMergeDilateFg},
		},
	}
)

// shapeTier picks the shape quality from the largest blur radius.
func shapeTier(maxRadius float32) int {
	switch {
	case maxRadius > 10:
		return 2
	case maxRadius > 5:
		return 1
	default:
		return 0
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Engine is the depth of field effect.
//
// Engine is not safe for concurrent use.
type Engine struct {
	effect.Base

	settings Settings
	params   *pass.Params
	aperture apertureCache

	bokehSupported bool
	points         pass.Buffer
	drawArgs       pass.Buffer
}

// New creates an inactive engine rendering with dev.
func New(dev pass.Device, s Settings) *Engine {
	e := &Engine{settings: s, params: pass.NewParams()}
	e.Init(Name, dev, programs.DoF, programs.DoFMedian)
	return e
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings { return e.settings }

// SetSettings replaces the settings from the next frame on.
func (e *Engine) SetSettings(s Settings) { e.settings = s }

// Activate verifies the blur and median programs and computes the aperture
// directions. Sprite bokeh additionally needs the bokeh program; without it
// the engine runs with bokeh off.
func (e *Engine) Activate() error {
	if !e.Base.Activate() {
		return fmt.Errorf("%s: %w", Name, pass.ErrUnsupported)
	}
	if err := e.Device().Supports(programs.DoFBokeh); err != nil {
		e.bokehSupported = false
		e.Log().Info("dof: sprite bokeh unavailable", "err", err)
	} else {
		e.bokehSupported = true
	}
	e.aperture.update(e.settings.Orientation, true)
	return nil
}

// Deactivate releases the bokeh buffers and every pooled surface.
func (e *Engine) Deactivate() {
	e.Base.Deactivate()
	e.params.Reset()
	e.points = nil
	e.drawArgs = nil
}

// NeedsDepth reports whether the host must provide the depth buffer.
func (e *Engine) NeedsDepth() bool { return e.Active() }

// Directions returns the current aperture directions.
func (e *Engine) Directions() Directions {
	e.aperture.update(e.settings.Orientation, false)
	return e.aperture.dirs
}

// RenderFrame blurs frame.Source into frame.Destination by depth.
func (e *Engine) RenderFrame(ctx context.Context, frame *camera.FrameContext) error {
	ok, err := e.Begin(ctx, frame)
	if !ok {
		return err
	}
	return e.Finish(ctx, frame, e.render(ctx, frame))
}

// radii returns the near and far blur radii and the largest effective
// radius, in source pixels, for a source of the given height.
func (s *Settings) radii(height int) (nr, fr, maxR float32) {
	scale := float32(height) / referenceHeight
	nr = s.NearRadius * scale
	fr = s.FarRadius * scale
	maxR = max(nr, fr) * s.Aperture.radiusScale()
	return nr, fr, maxR
}

func (e *Engine) bokehEnabled() bool {
	return e.settings.Bokeh.Enabled && e.bokehSupported
}

func (e *Engine) render(ctx context.Context, frame *camera.FrameContext) error {
	src, dst := frame.Source, frame.Destination
	s := &e.settings
	explicit := b2i(s.Model == Explicit)
	p := e.params
	p.Reset()

	blurParams, blurCoe := CocParams(*s, frame.Camera.FieldOfView, s.focusDepth(frame.Camera))
	p.SetVector("_BlurParams", blurParams)
	p.SetVector("_BlurCoe", blurCoe)
	p.SetTexture("_CameraDepthTexture", frame.GBuffer.Depth)

	if s.Visualize {
		return e.Execute(ctx, src, dst, programs.DoF, visualizePasses[explicit], p)
	}

	nr, fr, maxR := s.radii(src.Height())
	if maxR < 0.5 {
		return e.Copy(ctx, src, dst)
	}
	scale := float32(src.Height()) / referenceHeight
	maxBokeh := max(s.NearRadius, s.FarRadius) * scale * 0.75
	hw, hh := src.Width()/2, src.Height()/2

	cur, err := e.AcquireFiltered(hw, hh, pass.FormatRGBA16F, pass.FilterBilinear)
	if err != nil {
		return err
	}
	spare, err := e.AcquireFiltered(hw, hh, pass.FormatRGBA16F, pass.FilterBilinear)
	if err != nil {
		return err
	}

	p.SetVector("_BoostParams", f32.Vec4{nr * s.NearBoost * -0.5, fr * s.FarBoost * 0.5, s.BoostPoint, 0})
	if err := e.Execute(ctx, src, cur, programs.DoF, capturePasses[explicit], p); err != nil {
		return err
	}

	bokeh := e.bokehEnabled()
	if bokeh {
		if err := e.collectBokeh(ctx, cur, spare, scale, maxBokeh); err != nil {
			return err
		}
		cur, spare = spare, cur
	}

	p.SetVector("_BlurCoe", f32.Vec4{nr * 0.5, fr * 0.5, 0, 0})

	var fg pass.Surface
	if s.DilateNearBlur {
		if fg, err = e.dilateNear(ctx, cur, nr); err != nil {
			return err
		}
	}

	if s.Prefilter {
		if err := e.Execute(ctx, cur, spare, programs.DoF, programs.DoFCocPrefilter, p); err != nil {
			return err
		}
		cur, spare = spare, cur
	}

	switch s.Aperture {
	case Hexagonal:
		if err := e.blurHexagonal(ctx, fg, cur, spare, maxR); err != nil {
			return err
		}
		cur, spare = spare, cur
	case Octagonal:
		if err := e.blurOctagonal(ctx, fg, cur, spare, maxR); err != nil {
			return err
		}
	default:
		p.SetTexture("_SecondTex", fg)
		pi := circlePasses[b2i(fg != nil)][b2i(maxR > 10)]
		if err := e.Execute(ctx, cur, spare, programs.DoF, pi, p); err != nil {
			return err
		}
		cur, spare = spare, cur
	}
	p.SetTexture("_ThirdTex", nil)

	if cur, err = e.median(ctx, cur, spare); err != nil {
		return err
	}

	w, h := float32(cur.Width()), float32(cur.Height())
	p.SetVector("_Convolved_TexelSize", f32.Vec4{w, h, 1 / w, 1 / h})
	p.SetTexture("_SecondTex", cur)
	merge := mergePasses[explicit][b2i(s.HighQualityUpsampling)]

	if !bokeh {
		return e.Execute(ctx, src, dst, programs.DoF, merge, p)
	}
	out, err := e.Acquire(src.Width(), src.Height(), src.Format())
	if err != nil {
		return err
	}
	if err := e.Execute(ctx, src, out, programs.DoF, merge, p); err != nil {
		return err
	}
	if err := e.drawBokeh(ctx, out, maxBokeh); err != nil {
		return err
	}
	return e.Copy(ctx, out, dst)
}

// collectBokeh pre-blurs cur and moves highlights that should become
// sprites from cur into out and the point buffer.
func (e *Engine) collectBokeh(ctx context.Context, cur, out pass.Surface, scale, maxBokeh float32) error {
	if err := e.ensureBokehBuffers(); err != nil {
		return err
	}
	p := e.params
	blurred, err := e.AcquireFiltered(cur.Width(), cur.Height(), cur.Format(), pass.FilterBilinear)
	if err != nil {
		return err
	}
	defer e.Release(blurred)

	if err := e.Execute(ctx, cur, blurred, programs.DoF, programs.DoFBoxBlur, p); err != nil {
		return err
	}
	p.SetVector("_Offsets", f32.Vec4{0, 1.5, 0, 1.5})
	if err := e.Execute(ctx, blurred, out, programs.DoF, programs.DoFBlurAlphaWeighted, p); err != nil {
		return err
	}
	p.SetVector("_Offsets", f32.Vec4{1.5, 0, 0, 1.5})
	if err := e.Execute(ctx, out, blurred, programs.DoF, programs.DoFBlurAlphaWeighted, p); err != nil {
		return err
	}

	b := e.settings.Bokeh
	p.SetTexture("_BlurredColor", blurred)
	p.SetFloat("_SpawnHeuristic", b.SpawnHeuristic)
	p.SetVector("_BokehParams", f32.Vec4{b.Scale * scale, b.Intensity, b.Threshold, maxBokeh})
	p.SetBuffer("pointBuffer", e.points)
	err = e.Execute(ctx, cur, out, programs.DoFBokeh, programs.BokehCollect, p)
	p.SetTexture("_BlurredColor", nil)
	return err
}

// drawBokeh splats the collected points onto out.
func (e *Engine) drawBokeh(ctx context.Context, out pass.Surface, maxBokeh float32) error {
	if err := e.Device().CopyCount(ctx, e.points, e.drawArgs); err != nil {
		return err
	}
	p := e.params
	p.SetTexture("_MainTex", e.settings.Bokeh.Sprite)
	p.SetVector("_Screen", f32.Vec4{1 / float32(out.Width()), 1 / float32(out.Height()), maxBokeh, 0})
	defer p.SetTexture("_MainTex", nil)

	draw := pass.Pass{Program: programs.DoFBokeh, Index: programs.BokehDraw}
	if err := e.Device().DrawPointsIndirect(ctx, out, draw, e.drawArgs, e.points, p); err != nil {
		return err
	}
	e.Log().Debug("dof: pass", "pass", draw.String(), "dst", out.Label())
	return nil
}

// ensureBokehBuffers creates the point and draw argument buffers on first
// use. The arguments start as one instance of zero vertices.
func (e *Engine) ensureBokehBuffers() error {
	if e.points != nil && e.drawArgs != nil {
		return nil
	}
	scope := e.Scope()
	points, err := scope.NewBuffer(pass.BufferDesc{
		Label:  "dof bokeh points",
		Kind:   pass.BufferAppend,
		Count:  programs.BokehPointCapacity,
		Stride: programs.BokehPointStride,
	})
	if err != nil {
		return err
	}
	args, err := scope.NewBuffer(pass.BufferDesc{
		Label:  "dof bokeh draw args",
		Kind:   pass.BufferIndirectArgs,
		Count:  1,
		Stride: 16,
	})
	if err != nil {
		scope.DestroyBuffer(points)
		return err
	}
	seed := make([]byte, 16)
	binary.LittleEndian.PutUint32(seed[4:], 1)
	if err := e.Device().WriteBuffer(args, 0, seed); err != nil {
		scope.DestroyBuffer(points)
		scope.DestroyBuffer(args)
		return err
	}
	e.points, e.drawArgs = points, args
	return nil
}

// dilateNear spreads the foreground CoC of cur by the near radius into a
// new RG surface.
func (e *Engine) dilateNear(ctx context.Context, cur pass.Surface, nr float32) (pass.Surface, error) {
	p := e.params
	tmp, err := e.AcquireFiltered(cur.Width(), cur.Height(), pass.FormatRG16F, pass.FilterBilinear)
	if err != nil {
		return nil, err
	}
	defer e.Release(tmp)
	fg, err := e.AcquireFiltered(cur.Width(), cur.Height(), pass.FormatRG16F, pass.FilterBilinear)
	if err != nil {
		return nil, err
	}

	p.SetVector("_Offsets", f32.Vec4{0, nr * 0.75, 0, 0})
	if err := e.Execute(ctx, cur, tmp, programs.DoF, programs.DoFDilateFgCocFromColor, p); err != nil {
		return nil, err
	}
	p.SetVector("_Offsets", f32.Vec4{nr * 0.75, 0, 0, 0})
	if err := e.Execute(ctx, tmp, fg, programs.DoF, programs.DoFDilateFgCoc, p); err != nil {
		return nil, err
	}
	return fg, nil
}

// blurHexagonal runs three directional blurs. The result is left in dst.
func (e *Engine) blurHexagonal(ctx context.Context, fg, src, dst pass.Surface, maxR float32) error {
	p := e.params
	dirs := e.Directions().Hexagonal
	passes := shapePasses[shapeTier(maxR)][b2i(fg != nil)]
	blur, merge := passes[0], passes[1]

	tmp, err := e.AcquireFiltered(src.Width(), src.Height(), src.Format(), pass.FilterBilinear)
	if err != nil {
		return err
	}
	defer e.Release(tmp)

	p.SetTexture("_SecondTex", fg)
	p.SetVector("_Offsets", dirs[0])
	if err := e.Execute(ctx, src, tmp, programs.DoF, blur, p); err != nil {
		return err
	}
	p.SetVector("_Offsets", dirs[1])
	if err := e.Execute(ctx, tmp, src, programs.DoF, blur, p); err != nil {
		return err
	}
	p.SetVector("_Offsets", dirs[2])
	p.SetTexture("_ThirdTex", src)
	return e.Execute(ctx, tmp, dst, programs.DoF, merge, p)
}

// blurOctagonal runs four directional blurs. The result is left in src.
func (e *Engine) blurOctagonal(ctx context.Context, fg, src, dst pass.Surface, maxR float32) error {
	p := e.params
	dirs := e.Directions().Octagonal
	passes := shapePasses[shapeTier(maxR)][b2i(fg != nil)]
	blur, merge := passes[0], passes[1]

	tmp, err := e.AcquireFiltered(src.Width(), src.Height(), src.Format(), pass.FilterBilinear)
	if err != nil {
		return err
	}
	defer e.Release(tmp)

	p.SetTexture("_SecondTex", fg)
	steps := []struct {
		from, to pass.Surface
		index    int
	}{
		{src, tmp, blur},
		{tmp, dst, blur},
		{src, tmp, blur},
	}
	for i, st := range steps {
		p.SetVector("_Offsets", dirs[i])
		if err := e.Execute(ctx, st.from, st.to, programs.DoF, st.index, p); err != nil {
			return err
		}
	}
	p.SetVector("_Offsets", dirs[3])
	p.SetTexture("_ThirdTex", dst)
	return e.Execute(ctx, tmp, src, programs.DoF, merge, p)
}

// median filters cur and returns the surface holding the result.
func (e *Engine) median(ctx context.Context, cur, spare pass.Surface) (pass.Surface, error) {
	p := e.params
	switch e.settings.Median {
	case MedianNormal:
		for _, off := range []f32.Vec4{{1, 0, 0, 0}, {0, 1, 0, 0}} {
			p.SetVector("_Offsets", off)
			if err := e.Execute(ctx, cur, spare, programs.DoFMedian, programs.MedianMedian3, p); err != nil {
				return nil, err
			}
			cur, spare = spare, cur
		}
	case MedianHigh:
		if err := e.Execute(ctx, cur, spare, programs.DoFMedian, programs.MedianMedian3x3, p); err != nil {
			return nil, err
		}
		cur = spare
	}
	return cur, nil
}
