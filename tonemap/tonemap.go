// Package tonemap maps HDR colour into display range through a baked
// lookup table: an optional filmic curve, a user LUT, lift/gamma/gain
// grading and saturation.
//
// The LUT is rebaked on the first frame after the settings change. Fast
// mode bakes a 128 entry curve per channel instead of the 32³ table and
// applies saturation per pixel.
package tonemap

import (
	"context"
	"fmt"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/effect"
	"github.com/gogpu/postfx/internal/kernel"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

// Name is the engine name used in logs.
const Name = "tonemap"

// PassFor returns the tonemap pass for the LUT layout and debug flag.
func PassFor(fast, debug bool) int {
	switch {
	case debug && fast:
		return programs.TonemapOneDDebug
	case debug:
		return programs.TonemapThreeDDebug
	case fast:
		return programs.TonemapOneD
	default:
		return programs.TonemapThreeD
	}
}

// Engine is the tonemapping and colour grading effect.
//
// Engine is not safe for concurrent use.
type Engine struct {
	effect.Base

	settings Settings
	params   *pass.Params

	lut3D, lut1D pass.Surface
	dirty        bool
	bakes        int
}

// New creates an inactive engine rendering with dev.
func New(dev pass.Device, s Settings) *Engine {
	e := &Engine{settings: s, params: pass.NewParams(), dirty: true}
	e.Init(Name, dev, programs.Tonemap)
	return e
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings { return e.settings }

// SetSettings replaces the settings and rebakes the LUT on the next frame.
func (e *Engine) SetSettings(s Settings) {
	e.settings = s
	e.dirty = true
}

// SetDirty makes the next frame rebake the LUT. Call it after modifying
// the UserLUT of the current settings.
func (e *Engine) SetDirty() { e.dirty = true }

// Activate verifies the tonemap program. An unsupported device disables
// the engine and Activate returns an error wrapping pass.ErrUnsupported.
func (e *Engine) Activate() error {
	if !e.Base.Activate() {
		return fmt.Errorf("%s: %w", Name, pass.ErrUnsupported)
	}
	return nil
}

// Deactivate destroys the LUT surfaces.
func (e *Engine) Deactivate() {
	e.Base.Deactivate()
	e.lut3D, e.lut1D = nil, nil
	e.dirty = true
}

// NeedsDepth reports false; tonemapping reads colour only.
func (e *Engine) NeedsDepth() bool { return false }

// RenderFrame tonemaps frame.Source into frame.Destination.
func (e *Engine) RenderFrame(ctx context.Context, frame *camera.FrameContext) error {
	ok, err := e.Begin(ctx, frame)
	if !ok {
		return err
	}
	return e.Finish(ctx, frame, e.render(ctx, frame))
}

func (e *Engine) render(ctx context.Context, frame *camera.FrameContext) error {
	s := &e.settings
	p := e.params

	if err := e.updateLUT(); err != nil {
		return err
	}
	if s.FastMode {
		p.SetTexture("_LutTex", nil)
		p.SetTexture("_LutTex1D", e.lut1D)
	} else {
		p.SetTexture("_LutTex1D", nil)
		p.SetTexture("_LutTex", e.lut3D)
	}
	p.SetFloat("_LutA", kernel.LutA)
	p.SetVector("_LutExposureMult", ExposureMult(*s))
	p.SetFloat("_Vibrance", Vibrance(*s))

	return e.Execute(ctx, frame.Source, frame.Destination, programs.Tonemap, PassFor(s.FastMode, s.DebugClamp), p)
}

// updateLUT bakes and uploads the table for the current layout when the
// settings changed or the surface does not exist yet.
func (e *Engine) updateLUT() error {
	target := &e.lut3D
	if e.settings.FastMode {
		target = &e.lut1D
	}
	if *target != nil && !e.dirty {
		return nil
	}
	if *target == nil {
		desc := pass.SurfaceDesc{
			Label:  "tonemap lut",
			Width:  programs.LUT3DSize * programs.LUT3DSize,
			Height: programs.LUT3DSize,
			Format: pass.FormatRGBA16F,
		}
		if e.settings.FastMode {
			desc = pass.SurfaceDesc{
				Label:  "tonemap curve",
				Width:  programs.LUT1DSize,
				Height: 2,
				Format: pass.FormatRGBA16F,
				Filter: pass.FilterBilinear,
			}
		}
		s, err := e.Scope().NewSurface(desc)
		if err != nil {
			return err
		}
		*target = s
	}

	var pix []float32
	if e.settings.FastMode {
		pix = Bake1D(e.settings)
	} else {
		pix = Bake3D(e.settings)
	}
	if err := e.Device().WriteSurface(*target, pix); err != nil {
		return err
	}
	e.bakes++
	e.Log().Debug("tonemap: baked lut", "fast", e.settings.FastMode, "size", fmt.Sprintf("%dx%d", (*target).Width(), (*target).Height()))
	e.dirty = false

	// The other layout is stale.
	if e.settings.FastMode {
		e.destroy(&e.lut3D)
	} else {
		e.destroy(&e.lut1D)
	}
	return nil
}

func (e *Engine) destroy(s *pass.Surface) {
	if *s == nil {
		return
	}
	e.Scope().DestroySurface(*s)
	*s = nil
}
