package postfx

import (
	"log/slog"

	"github.com/gogpu/postfx/dof"
	"github.com/gogpu/postfx/pool"
	"github.com/gogpu/postfx/ssr"
	"github.com/gogpu/postfx/taa"
	"github.com/gogpu/postfx/tonemap"
)

// Option configures a Pipeline during creation. Each effect option adds
// the effect; effects run in the fixed order SSR, DoF, TAA, tonemap no
// matter the order of the options.
//
// Example:
//
//	p := postfx.New(dev,
//		postfx.WithTAA(taa.DefaultSettings()),
//		postfx.WithTonemap(tonemap.DefaultSettings()),
//	)
type Option func(*options)

// options holds optional configuration for Pipeline creation.
type options struct {
	taa     *taa.Settings
	dof     *dof.Settings
	ssr     *ssr.Settings
	tonemap *tonemap.Settings
	pool    pool.Config
	logger  *slog.Logger
}

// WithTAA adds temporal anti-aliasing.
func WithTAA(s taa.Settings) Option {
	return func(o *options) {
		o.taa = &s
	}
}

// WithDoF adds depth of field.
func WithDoF(s dof.Settings) Option {
	return func(o *options) {
		o.dof = &s
	}
}

// WithSSR adds screen-space reflections.
func WithSSR(s ssr.Settings) Option {
	return func(o *options) {
		o.ssr = &s
	}
}

// WithTonemap adds tonemapping and colour grading.
func WithTonemap(s tonemap.Settings) Option {
	return func(o *options) {
		o.tonemap = &s
	}
}

// WithPoolConfig sets the temporary surface budget of the pipeline and of
// each effect.
func WithPoolConfig(cfg pool.Config) Option {
	return func(o *options) {
		o.pool = cfg
	}
}

// WithLogger gives the pipeline its own logger instead of the package
// logger set with SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConfig applies every effect and pool setting present in cfg.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.TAA != nil {
			o.taa = cfg.TAA
		}
		if cfg.DoF != nil {
			o.dof = cfg.DoF
		}
		if cfg.SSR != nil {
			o.ssr = cfg.SSR
		}
		if cfg.Tonemap != nil {
			o.tonemap = cfg.Tonemap
		}
		if cfg.Pool != (pool.Config{}) {
			o.pool = cfg.Pool
		}
	}
}
