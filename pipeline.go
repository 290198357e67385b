package postfx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/dof"
	"github.com/gogpu/postfx/internal/effect"
	"github.com/gogpu/postfx/pass"
	"github.com/gogpu/postfx/pool"
	"github.com/gogpu/postfx/ssr"
	"github.com/gogpu/postfx/taa"
	"github.com/gogpu/postfx/tonemap"
)

// engine is the part of every effect the pipeline drives.
type engine interface {
	Name() string
	State() effect.State
	Active() bool
	Activate() error
	Deactivate()
	NeedsDepth() bool
	RenderFrame(ctx context.Context, frame *camera.FrameContext) error
	SetLogger(l *slog.Logger)
	SetPoolConfig(cfg pool.Config)
	PoolStats() pool.Stats
}

// Stats contains pipeline counters.
type Stats struct {
	// Frames counts RenderFrame calls on an active pipeline.
	Frames uint64

	// Failures counts frames in which an effect failed and copied its
	// input instead.
	Failures uint64

	// Effects lists the configured effects in render order.
	Effects []EffectStats

	// Pool is the pool of surfaces chaining one effect to the next.
	Pool pool.Stats
}

// EffectStats describes one effect.
type EffectStats struct {
	Name  string
	State string
	Pool  pool.Stats
}

// Pipeline runs the configured effects over each frame in the order SSR,
// DoF, TAA, tonemap. Each effect reads the output of the one before; the
// first reads the frame source and the last writes the frame destination.
//
// Pipeline is not safe for concurrent use; SetLogger is the exception.
type Pipeline struct {
	dev pass.Device

	ssr     *ssr.Engine
	dof     *dof.Engine
	taa     *taa.Engine
	tonemap *tonemap.Engine
	effects []engine

	poolCfg pool.Config
	chain   *pool.Pool
	active  bool

	logMu   sync.Mutex
	logger  *slog.Logger
	applied *slog.Logger

	frames   uint64
	failures uint64
}

// New creates an inactive pipeline rendering with dev.
func New(dev pass.Device, opts ...Option) *Pipeline {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	p := &Pipeline{dev: dev, poolCfg: o.pool, logger: o.logger}
	if o.ssr != nil {
		p.ssr = ssr.New(dev, *o.ssr)
		p.effects = append(p.effects, p.ssr)
	}
	if o.dof != nil {
		p.dof = dof.New(dev, *o.dof)
		p.effects = append(p.effects, p.dof)
	}
	if o.taa != nil {
		p.taa = taa.New(dev, *o.taa)
		p.effects = append(p.effects, p.taa)
	}
	if o.tonemap != nil {
		p.tonemap = tonemap.New(dev, *o.tonemap)
		p.effects = append(p.effects, p.tonemap)
	}
	for _, e := range p.effects {
		e.SetPoolConfig(o.pool)
	}
	p.syncLogger()
	return p
}

// SSR returns the reflection effect, or nil when not configured.
func (p *Pipeline) SSR() *ssr.Engine { return p.ssr }

// DoF returns the depth of field effect, or nil when not configured.
func (p *Pipeline) DoF() *dof.Engine { return p.dof }

// TAA returns the anti-aliasing effect, or nil when not configured.
func (p *Pipeline) TAA() *taa.Engine { return p.taa }

// Tonemap returns the tonemapping effect, or nil when not configured.
func (p *Pipeline) Tonemap() *tonemap.Engine { return p.tonemap }

// Device returns the device the pipeline renders with.
func (p *Pipeline) Device() pass.Device { return p.dev }

// Active reports whether Activate has been called without a matching
// Deactivate.
func (p *Pipeline) Active() bool { return p.active }

// SetLogger gives the pipeline its own logger. Nil makes it follow the
// package logger again.
func (p *Pipeline) SetLogger(l *slog.Logger) {
	p.logMu.Lock()
	p.logger = l
	p.logMu.Unlock()
	p.syncLogger()
}

// log returns the logger in effect: the pipeline's own, else the package
// logger.
func (p *Pipeline) log() *slog.Logger {
	p.logMu.Lock()
	defer p.logMu.Unlock()
	if p.logger != nil {
		return p.logger
	}
	return Logger()
}

// syncLogger hands the current logger to the effects and the device when
// it changed since the last call.
func (p *Pipeline) syncLogger() {
	l := p.log()
	p.logMu.Lock()
	defer p.logMu.Unlock()
	if l == p.applied {
		return
	}
	p.applied = l
	for _, e := range p.effects {
		e.SetLogger(l)
	}
	propagateLogger(p.dev, l)
}

// Activate activates every effect. Effects the device cannot run disable
// themselves and are skipped by RenderFrame; their errors are returned
// joined, wrapping pass.ErrUnsupported, while the pipeline itself becomes
// active.
func (p *Pipeline) Activate() error {
	if p.dev == nil {
		return ErrNoDevice
	}
	p.syncLogger()
	if p.active {
		return nil
	}
	var errs []error
	for _, e := range p.effects {
		if err := e.Activate(); err != nil {
			errs = append(errs, err)
		}
	}
	p.chain = pool.New(p.dev, p.poolCfg)
	p.active = true
	p.log().Info("postfx: pipeline activated", "device", p.dev.Name(), "effects", len(p.effects), "disabled", len(errs))
	return errors.Join(errs...)
}

// Deactivate releases every effect resource. Disabled effects stay
// disabled.
func (p *Pipeline) Deactivate() {
	for _, e := range p.effects {
		e.Deactivate()
	}
	if p.chain != nil {
		p.chain.Close()
		p.chain = nil
	}
	if p.active {
		p.active = false
		p.log().Info("postfx: pipeline deactivated")
	}
}

// NeedsDepth reports whether any active effect reads the depth buffer.
func (p *Pipeline) NeedsDepth() bool {
	for _, e := range p.effects {
		if e.NeedsDepth() {
			return true
		}
	}
	return false
}

// PreRender is called by the host before it renders the scene with cam.
// TAA jitters the projection.
func (p *Pipeline) PreRender(cam *camera.Camera) {
	if p.taa != nil {
		p.taa.PreRender(cam)
	}
}

// PostRender is called by the host after the scene render. It restores
// the projection changed by PreRender.
func (p *Pipeline) PostRender(cam *camera.Camera) {
	if p.taa != nil {
		p.taa.PostRender(cam)
	}
}

// RenderFrame runs the active effects from frame.Source into
// frame.Destination. With no active effect the source is copied.
//
// An effect that fails still writes its output, by copying its input, and
// the chain continues; the failures are returned joined. A cancelled
// context stops the chain. On a device implementing pass.Flusher the frame
// has completed when RenderFrame returns.
func (p *Pipeline) RenderFrame(ctx context.Context, frame *camera.FrameContext) error {
	if frame == nil || frame.Source == nil || frame.Destination == nil {
		return pass.ErrNilSurface
	}
	if !p.active {
		var cerr error
		if p.dev != nil {
			cerr = p.dev.Copy(ctx, frame.Source, frame.Destination)
		}
		return errors.Join(ErrNotActive, cerr)
	}
	p.syncLogger()
	p.frames++

	chain := make([]engine, 0, len(p.effects))
	for _, e := range p.effects {
		if e.Active() {
			chain = append(chain, e)
		}
	}
	err := p.run(ctx, frame, chain)
	if n := p.chain.ReleaseAll(); n > 0 {
		p.log().Debug("postfx: released chain surfaces", "count", n)
	}
	if f, ok := p.dev.(pass.Flusher); ok {
		if ferr := f.Flush(ctx); ferr != nil {
			err = errors.Join(err, fmt.Errorf("postfx: flush: %w", ferr))
		}
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, frame *camera.FrameContext, chain []engine) error {
	if len(chain) == 0 {
		return p.dev.Copy(ctx, frame.Source, frame.Destination)
	}

	src := frame.Source
	var spare [2]pass.Surface
	var errs []error
	for i, e := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := frame.Destination
		if i < len(chain)-1 {
			k := i % 2
			if spare[k] == nil {
				s, err := p.chain.Acquire(src.Width(), src.Height(), 0, frame.Source.Format())
				if err != nil {
					// The rest of the chain is skipped; the destination
					// receives the output so far.
					errs = append(errs, fmt.Errorf("postfx: %s: %w", e.Name(), err))
					if cerr := p.dev.Copy(ctx, src, frame.Destination); cerr != nil {
						errs = append(errs, fmt.Errorf("postfx: copy: %w", cerr))
					}
					break
				}
				spare[k] = s
			}
			dst = spare[k]
		}

		f := *frame
		f.Source = src
		f.Destination = dst
		if err := e.RenderFrame(ctx, &f); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return err
			}
			errs = append(errs, err)
		}
		src = dst
	}
	if len(errs) > 0 {
		p.failures++
		p.log().Warn("postfx: frame rendered with failures", "count", len(errs))
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{Frames: p.frames, Failures: p.failures}
	for _, e := range p.effects {
		s.Effects = append(s.Effects, EffectStats{
			Name:  e.Name(),
			State: e.State().String(),
			Pool:  e.PoolStats(),
		})
	}
	if p.chain != nil {
		s.Pool = p.chain.Stats()
	}
	return s
}
