// Package effect holds the lifecycle shared by the post-processing engines:
// the Inactive/Active/Disabled state machine, program checks on
// activation, the ownership scope for persistent resources, the per-frame
// surface pool and the passthrough copy used on every early exit.
package effect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/pass"
	"github.com/gogpu/postfx/pool"
)

// ErrNotActive is returned when a frame is rendered through an effect that
// was never activated.
var ErrNotActive = errors.New("postfx: effect not active")

// State is the lifecycle state of an effect.
type State uint8

const (
	// Inactive effects hold no resources.
	Inactive State = iota

	// Active effects render frames.
	Active

	// Disabled effects found a required program unsupported. They stay
	// passthroughs for the rest of the session.
	Disabled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Base is embedded by every engine.
//
// Base is not safe for concurrent use; SetLogger is the exception.
type Base struct {
	name     string
	dev      pass.Device
	programs []string
	poolCfg  pool.Config

	state  State
	scope  *pass.Scope
	temps  *pool.Pool
	logger atomic.Pointer[slog.Logger]
}

// Init prepares the base for an engine called name that runs programs on
// dev.
func (b *Base) Init(name string, dev pass.Device, programs ...string) {
	b.name = name
	b.dev = dev
	b.programs = programs
	b.logger.Store(slog.New(nopHandler{}))
}

// SetPoolConfig sets the configuration of the per-frame pool created by the
// next Activate.
func (b *Base) SetPoolConfig(cfg pool.Config) { b.poolCfg = cfg }

// Name returns the engine name.
func (b *Base) Name() string { return b.name }

// Device returns the device the engine renders with.
func (b *Base) Device() pass.Device { return b.dev }

// State returns the lifecycle state.
func (b *Base) State() State { return b.state }

// Active reports whether frames are rendered rather than copied.
func (b *Base) Active() bool { return b.state == Active }

// SetLogger sets the engine logger. Nil restores the silent default.
func (b *Base) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	b.logger.Store(l)
}

// Log returns the engine logger.
func (b *Base) Log() *slog.Logger {
	if l := b.logger.Load(); l != nil {
		return l
	}
	return slog.New(nopHandler{})
}

// Activate checks every program against the device. An unsupported
// program disables the engine for the session and logs one warning;
// Activate then reports false. Activating an active engine is a no-op.
func (b *Base) Activate() bool {
	switch b.state {
	case Active:
		return true
	case Disabled:
		return false
	}
	if b.dev == nil {
		b.disable(fmt.Errorf("%w: no device", pass.ErrUnsupported))
		return false
	}
	for _, p := range b.programs {
		if err := b.dev.Supports(p); err != nil {
			b.disable(err)
			return false
		}
	}
	b.scope = pass.NewScope(b.dev)
	b.temps = pool.New(b.dev, b.poolCfg)
	b.state = Active
	b.Log().Info(b.name+": activated", "device", b.dev.Name())
	return true
}

func (b *Base) disable(err error) {
	b.state = Disabled
	b.Log().Warn(b.name+": disabled, not supported on this device", "err", err)
}

// Deactivate releases every resource the engine allocated. A disabled
// engine stays disabled.
func (b *Base) Deactivate() {
	if b.scope != nil {
		b.scope.Close()
		b.scope = nil
	}
	if b.temps != nil {
		b.temps.Close()
		b.temps = nil
	}
	if b.state == Active {
		b.state = Inactive
		b.Log().Info(b.name + ": deactivated")
	}
}

// Scope returns the scope owning persistent resources, nil when inactive.
func (b *Base) Scope() *pass.Scope { return b.scope }

// Temps returns the per-frame pool, nil when inactive.
func (b *Base) Temps() *pool.Pool { return b.temps }

// PoolStats returns the per-frame pool counters.
func (b *Base) PoolStats() pool.Stats {
	if b.temps == nil {
		return pool.Stats{}
	}
	return b.temps.Stats()
}

// Acquire takes a point-filtered surface from the per-frame pool.
func (b *Base) Acquire(w, h int, format pass.Format) (pass.Surface, error) {
	return b.AcquireFiltered(w, h, format, pass.FilterPoint)
}

// AcquireFiltered takes a surface with the given filter from the per-frame
// pool. Sizes below one pixel are raised to one.
func (b *Base) AcquireFiltered(w, h int, format pass.Format, filter pass.Filter) (pass.Surface, error) {
	if b.temps == nil {
		return nil, ErrNotActive
	}
	return b.temps.AcquireFiltered(max(w, 1), max(h, 1), 0, format, filter)
}

// Release returns a surface to the per-frame pool early.
func (b *Base) Release(s pass.Surface) {
	if b.temps == nil || s == nil {
		return
	}
	if err := b.temps.Release(s); err != nil {
		b.Log().Warn(b.name+": release", "surface", s.Label(), "err", err)
	}
}

// EndFrame returns every surface still taken from the per-frame pool.
func (b *Base) EndFrame() {
	if b.temps == nil {
		return
	}
	if n := b.temps.ReleaseAll(); n > 0 {
		b.Log().Debug(b.name+": released temporaries", "count", n)
	}
}

// Passthrough copies the frame source into its destination.
func (b *Base) Passthrough(ctx context.Context, frame *camera.FrameContext) error {
	if b.dev == nil {
		return fmt.Errorf("%s: %w", b.name, pass.ErrUnsupported)
	}
	return b.dev.Copy(ctx, frame.Source, frame.Destination)
}

// Begin validates a frame and reports whether the engine should render it.
// When it returns false the destination has already been written.
func (b *Base) Begin(ctx context.Context, frame *camera.FrameContext) (bool, error) {
	if frame == nil || frame.Source == nil || frame.Destination == nil {
		return false, pass.ErrNilSurface
	}
	switch b.state {
	case Active:
		if err := frame.Camera.Validate(); err != nil {
			return false, errors.Join(err, b.Passthrough(ctx, frame))
		}
		return true, nil
	case Disabled:
		return false, b.Passthrough(ctx, frame)
	default:
		return false, errors.Join(ErrNotActive, b.Passthrough(ctx, frame))
	}
}

// Finish ends a rendered frame: temporaries go back to the pool and, when
// rendering failed, the source is copied so the destination still receives
// output. The render error is returned wrapped with the engine name.
func (b *Base) Finish(ctx context.Context, frame *camera.FrameContext, err error) error {
	b.EndFrame()
	if err == nil {
		return nil
	}
	b.Log().Warn(b.name+": frame failed, falling back to copy", "err", err)
	if cerr := b.Passthrough(ctx, frame); cerr != nil && ctx.Err() == nil {
		b.Log().Warn(b.name+": fallback copy failed", "err", cerr)
	}
	return fmt.Errorf("%s: %w", b.name, err)
}

// Execute runs one pass and logs it at debug level.
func (b *Base) Execute(ctx context.Context, src, dst pass.Surface, program string, index int, params *pass.Params) error {
	p := pass.Pass{Program: program, Index: index}
	if err := b.dev.Execute(ctx, src, dst, p, params); err != nil {
		return err
	}
	b.Log().Debug(b.name+": pass", "pass", p.String(), "dst", dst.Label())
	return nil
}

// Copy copies src into dst.
func (b *Base) Copy(ctx context.Context, src, dst pass.Surface) error {
	return b.dev.Copy(ctx, src, dst)
}

// nopHandler discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
