// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/postfx/internal/parallel"
	"github.com/gogpu/postfx/pass"
)

// Name is the device name reported by [Device.Name].
const Name = "software"

// Stats contains device counters.
type Stats struct {
	Passes   uint64
	Copies   uint64
	Draws    uint64
	Points   uint64
	Surfaces int
	Buffers  int
}

// Option configures a Device.
type Option func(*Device)

// WithWorkers sets the number of worker goroutines. Zero or negative uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *Device) { d.workerCount = n }
}

// Device is the CPU reference implementation of pass.Device. Every pass runs
// to completion before Execute returns; rows are shaded in parallel.
//
// Device is safe for concurrent use, but passes writing the same surface
// must not run concurrently.
type Device struct {
	workerCount int
	workers     *parallel.WorkerPool
	logger      atomic.Pointer[slog.Logger]

	mu       sync.Mutex
	surfaces map[*surface]struct{}
	buffers  map[*buffer]struct{}
	closed   bool

	passes, copies, draws, points atomic.Uint64
}

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{
		surfaces: make(map[*surface]struct{}),
		buffers:  make(map[*buffer]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.workers = parallel.NewWorkerPool(d.workerCount)
	d.logger.Store(slog.New(nopHandler{}))
	return d
}

// Name returns "software".
func (d *Device) Name() string { return Name }

// SetLogger sets the device logger. Nil restores the silent default.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.logger.Store(l)
}

func (d *Device) log() *slog.Logger { return d.logger.Load() }

// Supports reports whether every pass of program has a kernel.
func (d *Device) Supports(program string) error {
	prog, ok := pass.Lookup(program)
	if !ok {
		return &pass.ProgramError{Program: program, Err: pass.ErrUnknownProgram}
	}
	ks, ok := kernels[program]
	if !ok || len(ks) < prog.Len() {
		return &pass.ProgramError{Program: program, Err: pass.ErrUnsupported}
	}
	for i := range prog.Len() {
		if ks[i] == nil {
			return &pass.ProgramError{
				Program: program,
				Err:     fmt.Errorf("%w: no kernel for pass %d", pass.ErrUnsupported, i),
			}
		}
	}
	return nil
}

// Execute runs one pass from src into dst.
func (d *Device) Execute(ctx context.Context, src, dst pass.Surface, p pass.Pass, params *pass.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pass.Validate(p); err != nil {
		return err
	}
	fn := kernelFor(p)
	if fn == nil {
		return &pass.ProgramError{Program: p.Program, Err: pass.ErrUnsupported}
	}
	e, err := d.newEnv(src, dst, params)
	if err != nil {
		return fmt.Errorf("software: %s: %w", p, err)
	}
	d.log().Debug("software: execute", "pass", p.String(),
		"src", labelOf(src), "dst", dst.Label(), "size", fmt.Sprintf("%dx%d", dst.Width(), dst.Height()))
	if err := fn(e); err != nil {
		return fmt.Errorf("software: %s: %w", p, err)
	}
	d.passes.Add(1)
	return nil
}

// Copy writes src into dst. Same-sized surfaces of the same format are
// copied bit for bit; otherwise src is resampled with its filter.
func (d *Device) Copy(ctx context.Context, src, dst pass.Surface) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := d.surface(src)
	if err != nil {
		return err
	}
	t, err := d.surface(dst)
	if err != nil {
		return err
	}
	d.copies.Add(1)
	if s == t {
		return nil
	}
	if s.desc.Width == t.desc.Width && s.desc.Height == t.desc.Height && s.desc.Format == t.desc.Format {
		copy(t.pix, s.pix)
		return nil
	}
	if s.desc.Width == t.desc.Width && s.desc.Height == t.desc.Height {
		d.workers.ForRows(t.desc.Height, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				for x := range t.desc.Width {
					t.store(x, y, s.at(x, y))
				}
			}
		})
		return nil
	}
	e := &env{dev: d, src: s, dst: t}
	e.shade(func(_, _ int, u, v float32) [4]float32 { return s.sample(u, v) })
	return nil
}

// CopyCount writes the append counter of counter into the vertex count of
// args.
func (d *Device) CopyCount(ctx context.Context, counter, args pass.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := d.buffer(counter)
	if err != nil {
		return err
	}
	a, err := d.buffer(args)
	if err != nil {
		return err
	}
	if a.desc.Bytes() < 4 {
		return fmt.Errorf("software: copy count: args buffer %q too small", a.desc.Label)
	}
	a.putUint32(0, c.count())
	return nil
}

// DrawPointsIndirect splats the points of an append buffer onto dst.
func (d *Device) DrawPointsIndirect(ctx context.Context, dst pass.Surface, p pass.Pass, args, points pass.Buffer, params *pass.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pass.Validate(p); err != nil {
		return err
	}
	fn := kernelFor(p)
	if fn == nil {
		return &pass.ProgramError{Program: p.Program, Err: pass.ErrUnsupported}
	}
	a, err := d.buffer(args)
	if err != nil {
		return err
	}
	pts, err := d.buffer(points)
	if err != nil {
		return err
	}
	e, err := d.newEnv(nil, dst, params)
	if err != nil {
		return fmt.Errorf("software: %s: %w", p, err)
	}
	n := int(a.uint32At(0))
	if n > pts.desc.Count {
		n = pts.desc.Count
	}
	e.points, e.args, e.drawCount = pts, a, n
	if err := fn(e); err != nil {
		return fmt.Errorf("software: %s: %w", p, err)
	}
	d.draws.Add(1)
	//nolint:gosec // G115: n is non-negative
	d.points.Add(uint64(n))
	return nil
}

// NewSurface allocates a zeroed surface.
func (d *Device) NewSurface(desc pass.SurfaceDesc) (pass.Surface, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	s := newSurface(d, desc)
	d.mu.Lock()
	d.surfaces[s] = struct{}{}
	d.mu.Unlock()
	return s, nil
}

// DestroySurface releases a surface. Unknown surfaces are ignored.
func (d *Device) DestroySurface(s pass.Surface) {
	sf, ok := s.(*surface)
	if !ok {
		return
	}
	d.mu.Lock()
	delete(d.surfaces, sf)
	d.mu.Unlock()
	sf.pix = nil
}

// WriteSurface uploads RGBA float pixels.
func (d *Device) WriteSurface(s pass.Surface, pix []float32) error {
	sf, err := d.surface(s)
	if err != nil {
		return err
	}
	if len(pix) != len(sf.pix) {
		return fmt.Errorf("%w: %d values for %dx%d surface", pass.ErrSizeMismatch, len(pix), sf.desc.Width, sf.desc.Height)
	}
	for y := range sf.desc.Height {
		for x := range sf.desc.Width {
			i := (y*sf.desc.Width + x) * 4
			sf.store(x, y, [4]float32{pix[i], pix[i+1], pix[i+2], pix[i+3]})
		}
	}
	return nil
}

// ReadSurface returns a copy of the surface pixels, four floats per pixel.
func (d *Device) ReadSurface(s pass.Surface) ([]float32, error) {
	sf, err := d.surface(s)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(sf.pix))
	copy(out, sf.pix)
	return out, nil
}

// Image converts a surface to an 8-bit image, clamping to [0, 1].
func (d *Device) Image(s pass.Surface) (*image.NRGBA, error) {
	sf, err := d.surface(s)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, sf.desc.Width, sf.desc.Height))
	for y := range sf.desc.Height {
		for x := range sf.desc.Width {
			c := sf.at(x, y)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(unorm8(c[0]) * 255),
				G: uint8(unorm8(c[1]) * 255),
				B: uint8(unorm8(c[2]) * 255),
				A: uint8(unorm8(c[3]) * 255),
			})
		}
	}
	return img, nil
}

// NewBuffer allocates a zeroed buffer.
func (d *Device) NewBuffer(desc pass.BufferDesc) (pass.Buffer, error) {
	if desc.Count <= 0 || desc.Stride <= 0 {
		return nil, fmt.Errorf("software: buffer %q: invalid size %dx%d", desc.Label, desc.Count, desc.Stride)
	}
	b := newBuffer(d, desc)
	d.mu.Lock()
	d.buffers[b] = struct{}{}
	d.mu.Unlock()
	return b, nil
}

// WriteBuffer copies data into b at offset.
func (d *Device) WriteBuffer(b pass.Buffer, offset int, data []byte) error {
	bf, err := d.buffer(b)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(bf.data) {
		return fmt.Errorf("software: write %d bytes at %d overflows buffer %q", len(data), offset, bf.desc.Label)
	}
	bf.mu.Lock()
	copy(bf.data[offset:], data)
	bf.mu.Unlock()
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(b pass.Buffer) {
	bf, ok := b.(*buffer)
	if !ok {
		return
	}
	d.mu.Lock()
	delete(d.buffers, bf)
	d.mu.Unlock()
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	ns, nb := len(d.surfaces), len(d.buffers)
	d.mu.Unlock()
	return Stats{
		Passes:   d.passes.Load(),
		Copies:   d.copies.Load(),
		Draws:    d.draws.Load(),
		Points:   d.points.Load(),
		Surfaces: ns,
		Buffers:  nb,
	}
}

// Close stops the worker pool. Resources still allocated are dropped.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	live := len(d.surfaces) + len(d.buffers)
	clear(d.surfaces)
	clear(d.buffers)
	d.mu.Unlock()

	if live > 0 {
		d.log().Debug("software: closing with live resources", "count", live)
	}
	d.workers.Close()
}

func (d *Device) surface(s pass.Surface) (*surface, error) {
	if s == nil {
		return nil, pass.ErrNilSurface
	}
	sf, ok := s.(*surface)
	if !ok || sf.dev != d {
		return nil, fmt.Errorf("%w: surface %q", pass.ErrForeignResource, s.Label())
	}
	if sf.pix == nil {
		return nil, fmt.Errorf("software: surface %q used after destroy", sf.desc.Label)
	}
	return sf, nil
}

func (d *Device) buffer(b pass.Buffer) (*buffer, error) {
	if b == nil {
		return nil, fmt.Errorf("software: nil buffer")
	}
	bf, ok := b.(*buffer)
	if !ok || bf.dev != d {
		return nil, fmt.Errorf("%w: buffer %q", pass.ErrForeignResource, b.Label())
	}
	return bf, nil
}

func labelOf(s pass.Surface) string {
	if s == nil {
		return ""
	}
	return s.Label()
}

// env is what a kernel sees: resolved surfaces and the bound parameters.
type env struct {
	dev    *Device
	src    *surface
	dst    *surface
	params *pass.Params

	// textures holds resolved bindings; a binding of dst resolves to a
	// snapshot so a pass never reads its own output.
	textures map[string]*surface

	points, args *buffer
	drawCount    int
}

func (d *Device) newEnv(src, dst pass.Surface, params *pass.Params) (*env, error) {
	t, err := d.surface(dst)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = pass.NewParams()
	}
	e := &env{dev: d, dst: t, params: params, textures: make(map[string]*surface)}

	var snapshot *surface
	resolve := func(s *surface) *surface {
		if s != t {
			return s
		}
		if snapshot == nil {
			snapshot = t.clone()
		}
		return snapshot
	}

	if src != nil {
		s, err := d.surface(src)
		if err != nil {
			return nil, err
		}
		e.src = resolve(s)
		e.textures["_MainTex"] = e.src
	}
	for _, name := range params.Textures() {
		s, err := d.surface(params.Texture(name))
		if err != nil {
			return nil, fmt.Errorf("texture %s: %w", name, err)
		}
		if name == "_MainTex" && e.src != nil {
			continue
		}
		e.textures[name] = resolve(s)
	}
	return e, nil
}

// buf returns a bound buffer owned by this device or nil.
func (e *env) buf(name string) *buffer {
	b := e.params.Buffer(name)
	if b == nil {
		return nil
	}
	bf, err := e.dev.buffer(b)
	if err != nil {
		return nil
	}
	return bf
}

// tex returns a bound texture or nil.
func (e *env) tex(name string) *surface { return e.textures[name] }

func (e *env) vec(name string) f32.Vec4 {
	v, _ := e.params.Vector(name)
	return v
}

func (e *env) float(name string, def float32) float32 { return e.params.FloatOr(name, def) }

func (e *env) flag(name string) bool { return e.params.FloatOr(name, 0) != 0 }

// mat returns a bound matrix or the identity.
func (e *env) mat(name string) f32.Mat4 {
	if m, ok := e.params.Matrix(name); ok {
		return m
	}
	return f32.Mat4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// shade evaluates fn for every destination pixel. u and v address texel
// centres.
func (e *env) shade(fn func(x, y int, u, v float32) [4]float32) {
	w, h := e.dst.desc.Width, e.dst.desc.Height
	iw, ih := 1/float32(w), 1/float32(h)
	e.dev.workers.ForRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			v := (float32(y) + 0.5) * ih
			for x := range w {
				u := (float32(x) + 0.5) * iw
				e.dst.store(x, y, fn(x, y, u, v))
			}
		}
	})
}

// nopHandler discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
