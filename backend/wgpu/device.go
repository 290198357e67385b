// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

// Name is the device name reported by [Device.Name].
const Name = "wgpu"

// ErrClosed is returned by operations on a closed device.
var ErrClosed = errors.New("wgpu: device closed")

// Stats contains device counters.
type Stats struct {
	Passes    uint64
	Copies    uint64
	Submits   uint64
	Surfaces  int
	Buffers   int
	Pipelines int
	InFlight  int
}

// transient holds the per-submission resources released once the GPU has
// finished with them.
type transient struct {
	index     uint64
	cmd       hal.CommandBuffer
	bindGroup hal.BindGroup
	uniform   hal.Buffer
	texture   *surface
}

// Device implements pass.Device on a HAL device. Each pass is encoded and
// submitted on its own; submissions run in order on the queue, so a pass
// always observes the output of every earlier one.
//
// Device is safe for concurrent use.
type Device struct {
	device  hal.Device
	queue   hal.Queue
	adapter string
	release func()

	logger atomic.Pointer[slog.Logger]

	mu        sync.Mutex
	pipelines *pipelineCache
	surfaces  map[*surface]struct{}
	buffers   map[*buffer]struct{}
	inflight  []transient
	last      uint64
	uniforms  []hal.Buffer
	black     *surface
	closed    bool

	passes, copies, submits atomic.Uint64
}

// New wraps an open HAL device and queue. The caller keeps ownership of
// both; Close releases only what the Device created.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, errors.New("wgpu: nil device or queue")
	}
	pc, err := newPipelineCache(device)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
	}
	d := &Device{
		device:    device,
		queue:     queue,
		pipelines: pc,
		surfaces:  make(map[*surface]struct{}),
		buffers:   make(map[*buffer]struct{}),
	}
	d.logger.Store(slog.New(nopHandler{}))
	return d, nil
}

// Name returns "wgpu".
func (d *Device) Name() string { return Name }

// SetLogger sets the device logger. Nil restores the silent default.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	d.logger.Store(l)
}

// Adapter returns the adapter name, or "" when the device was wrapped
// with [New].
func (d *Device) Adapter() string { return d.adapter }

func (d *Device) log() *slog.Logger { return d.logger.Load() }

// Supports reports whether every pass of program has a shader entry point
// and the program's WGSL module compiles.
func (d *Device) Supports(program string) error {
	prog, ok := pass.Lookup(program)
	if !ok {
		return &pass.ProgramError{Program: program, Err: pass.ErrUnknownProgram}
	}
	ps, ok := programShaders[program]
	if !ok || len(ps.passes) < prog.Len() {
		return &pass.ProgramError{Program: program, Err: pass.ErrUnsupported}
	}
	if err := validateShader(program); err != nil {
		return &pass.ProgramError{Program: program, Err: err}
	}
	return nil
}

// Execute encodes and submits one fullscreen pass from src into dst.
func (d *Device) Execute(ctx context.Context, src, dst pass.Surface, p pass.Pass, params *pass.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pass.Validate(p); err != nil {
		return err
	}
	entry, ok := entryFor(p)
	if !ok {
		return &pass.ProgramError{Program: p.Program, Err: pass.ErrUnsupported}
	}
	if err := d.draw(src, dst, p, entry, params); err != nil {
		return fmt.Errorf("wgpu: %s: %w", p, err)
	}
	d.passes.Add(1)
	return nil
}

// Copy writes src into dst. Same-sized surfaces of one format are copied
// texture to texture; otherwise src is resampled by the blit pass.
func (d *Device) Copy(ctx context.Context, src, dst pass.Surface) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	s, err := d.surfaceLocked(src)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	t, err := d.surfaceLocked(dst)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	direct := s.desc.Width == t.desc.Width && s.desc.Height == t.desc.Height && s.format == t.format
	if s == t || direct {
		if s != t {
			err = d.submitLocked("postfx_copy", transient{}, func(enc hal.CommandEncoder) {
				d.copyTexture(enc, s, t)
			})
		}
		d.mu.Unlock()
		if err == nil {
			d.copies.Add(1)
		}
		return err
	}
	d.mu.Unlock()

	blit := pass.Pass{Program: programs.Blit}
	entry, _ := entryFor(blit)
	if err := d.draw(src, dst, blit, entry, nil); err != nil {
		return fmt.Errorf("wgpu: copy: %w", err)
	}
	d.copies.Add(1)
	return nil
}

// CopyCount copies the counter of an append buffer into the vertex count
// of an indirect-args buffer.
func (d *Device) CopyCount(ctx context.Context, counter, args pass.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.bufferLocked(counter)
	if err != nil {
		return err
	}
	a, err := d.bufferLocked(args)
	if err != nil {
		return err
	}
	if c.desc.Kind != pass.BufferAppend {
		return fmt.Errorf("wgpu: copy count: buffer %q has no counter", c.desc.Label)
	}
	if a.size < 4 {
		return fmt.Errorf("wgpu: copy count: args buffer %q too small", a.desc.Label)
	}
	return d.submitLocked("postfx_copy_count", transient{}, func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(c.buf, a.buf, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: 4}})
	})
}

// DrawPointsIndirect is not available: no program drawn with points has a
// WGSL implementation.
func (d *Device) DrawPointsIndirect(ctx context.Context, _ pass.Surface, p pass.Pass, _, _ pass.Buffer, _ *pass.Params) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pass.Validate(p); err != nil {
		return err
	}
	return &pass.ProgramError{Program: p.Program, Err: pass.ErrUnsupported}
}

// NewSurface allocates a texture. DepthBits is ignored: passes read depth
// from the G-buffer surfaces bound as textures.
func (d *Device) NewSurface(desc pass.SurfaceDesc) (pass.Surface, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	//nolint:gosec // G115: dimensions validated positive
	tex, view, err := newTexture(d.device, desc.Label, uint32(desc.Width), uint32(desc.Height), format)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create surface %q: %w", desc.Label, err)
	}
	s := &surface{desc: desc, format: format, tex: tex, view: view, dev: d}
	d.surfaces[s] = struct{}{}
	return s, nil
}

// DestroySurface releases a surface. Unknown surfaces are ignored.
func (d *Device) DestroySurface(s pass.Surface) {
	sf, ok := s.(*surface)
	if !ok || sf.dev != d {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, live := d.surfaces[sf]; !live {
		return
	}
	delete(d.surfaces, sf)
	if len(d.inflight) > 0 {
		// Pending passes may still read it.
		d.inflight = append(d.inflight, transient{index: d.last, texture: sf})
		return
	}
	d.destroyTexture(sf)
}

func (d *Device) destroyTexture(s *surface) {
	if s.view != nil {
		d.device.DestroyTextureView(s.view)
	}
	if s.tex != nil {
		d.device.DestroyTexture(s.tex)
	}
	s.view, s.tex = nil, nil
}

// WriteSurface uploads RGBA float pixels, quantised to the surface format.
func (d *Device) WriteSurface(s pass.Surface, pix []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sf, err := d.surfaceLocked(s)
	if err != nil {
		return err
	}
	if want := sf.desc.Width * sf.desc.Height * 4; len(pix) != want {
		return fmt.Errorf("%w: %d values for %dx%d surface", pass.ErrSizeMismatch, len(pix), sf.desc.Width, sf.desc.Height)
	}
	data := encodePixels(sf.desc.Format, pix)
	base := sf.copyBase()
	size := sf.extent()
	//nolint:gosec // G115: row size of a validated surface
	layout := hal.ImageDataLayout{BytesPerRow: uint32(sf.desc.Width * sf.desc.Format.BytesPerPixel()), RowsPerImage: size.Height}
	if err := d.queue.WriteTexture(&base, data, &layout, &size); err != nil {
		return fmt.Errorf("wgpu: write surface %q: %w", sf.desc.Label, err)
	}
	return nil
}

// ReadSurface waits for outstanding work and returns the surface pixels,
// four floats per pixel.
func (d *Device) ReadSurface(s pass.Surface) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sf, err := d.surfaceLocked(s)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G115: row size of a validated surface
	pitch := alignUp(uint32(sf.desc.Width*sf.desc.Format.BytesPerPixel()), copyPitch)
	size := sf.extent()
	bytes := uint64(pitch) * uint64(size.Height)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "postfx_readback",
		Size:  bytes,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create readback buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	err = d.submitLocked("postfx_readback", transient{}, func(enc hal.CommandEncoder) {
		d.transition(enc, sf, gputypes.TextureUsageCopySrc)
		enc.CopyTextureToBuffer(sf.tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: pitch, RowsPerImage: size.Height},
			TextureBase:  sf.copyBase(),
			Size:         size,
		}})
	})
	if err != nil {
		return nil, err
	}
	if err := d.waitLocked(); err != nil {
		return nil, err
	}

	m, err := d.device.MapBuffer(staging, 0, bytes)
	if err != nil {
		return nil, fmt.Errorf("wgpu: map readback buffer: %w", err)
	}
	data := unsafe.Slice((*byte)(m.Ptr), bytes)
	pix := decodePixels(sf.desc.Format, data, sf.desc.Width, sf.desc.Height, pitch)
	if err := d.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("wgpu: unmap readback buffer: %w", err)
	}
	return pix, nil
}

// NewBuffer allocates a zeroed storage buffer.
func (d *Device) NewBuffer(desc pass.BufferDesc) (pass.Buffer, error) {
	if desc.Count <= 0 || desc.Stride <= 0 {
		return nil, fmt.Errorf("wgpu: buffer %q: invalid size %dx%d", desc.Label, desc.Count, desc.Stride)
	}
	b := &buffer{desc: desc, dev: d}
	b.size = b.payload() + desc.Bytes()
	usage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	if desc.Kind == pass.BufferIndirectArgs {
		usage |= gputypes.BufferUsageIndirect
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{Label: desc.Label, Size: b.size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}
	b.buf = buf
	d.buffers[b] = struct{}{}
	return b, nil
}

// WriteBuffer copies data into the elements of b starting at byte offset.
func (d *Device) WriteBuffer(b pass.Buffer, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	bf, err := d.bufferLocked(b)
	if err != nil {
		return err
	}
	//nolint:gosec // G115: offset checked non-negative
	if offset < 0 || uint64(offset+len(data)) > bf.desc.Bytes() {
		return fmt.Errorf("wgpu: write %d bytes at %d overflows buffer %q", len(data), offset, bf.desc.Label)
	}
	//nolint:gosec // G115: offset checked non-negative
	if err := d.queue.WriteBuffer(bf.buf, bf.payload()+uint64(offset), data); err != nil {
		return fmt.Errorf("wgpu: write buffer %q: %w", bf.desc.Label, err)
	}
	return nil
}

// DestroyBuffer releases a buffer. Unknown buffers are ignored.
func (d *Device) DestroyBuffer(b pass.Buffer) {
	bf, ok := b.(*buffer)
	if !ok || bf.dev != d {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, live := d.buffers[bf]; !live {
		return
	}
	delete(d.buffers, bf)
	d.device.DestroyBuffer(bf.buf)
	bf.buf = nil
}

// Flush blocks until every submitted pass has completed and releases the
// per-pass resources.
func (d *Device) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	return d.waitLocked()
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Passes:    d.passes.Load(),
		Copies:    d.copies.Load(),
		Submits:   d.submits.Load(),
		Surfaces:  len(d.surfaces),
		Buffers:   len(d.buffers),
		Pipelines: d.pipelines.Len(),
		InFlight:  len(d.inflight),
	}
}

// Close waits for the GPU, destroys every resource the device created and
// releases the HAL device when it was opened by [Open].
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if err := d.waitLocked(); err != nil {
		d.log().Warn("wgpu: wait on close failed", "err", err)
	}
	d.closed = true
	live := len(d.surfaces) + len(d.buffers)
	for s := range d.surfaces {
		d.destroyTexture(s)
	}
	for b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
	}
	clear(d.surfaces)
	clear(d.buffers)
	if d.black != nil {
		d.destroyTexture(d.black)
		d.black = nil
	}
	for _, u := range d.uniforms {
		d.device.DestroyBuffer(u)
	}
	d.uniforms = nil
	d.pipelines.destroy()
	release := d.release
	d.mu.Unlock()

	if live > 0 {
		d.log().Debug("wgpu: closing with live resources", "count", live)
	}
	if release != nil {
		release()
	}
}

// draw encodes a fullscreen pass of entry into dst.
func (d *Device) draw(src, dst pass.Surface, p pass.Pass, entry passEntry, params *pass.Params) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := d.surfaceLocked(dst)
	if err != nil {
		return err
	}
	main, err := d.mainLocked(src, params)
	if err != nil {
		return err
	}
	aux := main
	if entry.aux != "" {
		var bound pass.Surface
		if params != nil {
			bound = params.Texture(entry.aux)
		}
		if bound == nil {
			return fmt.Errorf("%s not bound", entry.aux)
		}
		if aux, err = d.surfaceLocked(bound); err != nil {
			return err
		}
	}
	pipeline, err := d.pipelines.get(pipelineKey{program: p.Program, index: p.Index, format: t.format}, entry.fragment)
	if err != nil {
		return err
	}

	job := transient{}
	// A pass never samples its own target; such bindings read a snapshot.
	if main == t || aux == t {
		//nolint:gosec // G115: dimensions validated positive
		tex, view, err := newTexture(d.device, "postfx_snapshot", uint32(t.desc.Width), uint32(t.desc.Height), t.format)
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		job.texture = &surface{desc: t.desc, format: t.format, tex: tex, view: view, dev: d}
		if main == t {
			main = job.texture
		}
		if aux == t {
			aux = job.texture
		}
	}

	if job.uniform, err = d.uniformLocked(); err != nil {
		d.releaseJob(job)
		return err
	}
	if err := d.queue.WriteBuffer(job.uniform, 0, encodeUniforms(params, main.desc.Filter == pass.FilterBilinear)); err != nil {
		d.releaseJob(job)
		return fmt.Errorf("write uniforms: %w", err)
	}
	job.bindGroup, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "postfx_bind_group",
		Layout: d.pipelines.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: job.uniform.NativeHandle(), Size: uniformSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: main.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: aux.view.NativeHandle()}},
		},
	})
	if err != nil {
		d.releaseJob(job)
		return fmt.Errorf("create bind group: %w", err)
	}

	return d.submitLocked("postfx_"+p.Program, job, func(enc hal.CommandEncoder) {
		if job.texture != nil {
			d.copyTexture(enc, t, job.texture)
		}
		d.transition(enc, main, gputypes.TextureUsageTextureBinding)
		d.transition(enc, aux, gputypes.TextureUsageTextureBinding)
		d.transition(enc, t, gputypes.TextureUsageRenderAttachment)

		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: p.String(),
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       t.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{},
			}},
		})
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, job.bindGroup, nil)
		rp.Draw(3, 1, 0, 0)
		rp.End()
	})
}

// mainLocked resolves the _MainTex binding: src, then the parameter, then
// a black texel.
func (d *Device) mainLocked(src pass.Surface, params *pass.Params) (*surface, error) {
	if src == nil && params != nil {
		src = params.Texture("_MainTex")
	}
	if src != nil {
		return d.surfaceLocked(src)
	}
	if d.black == nil {
		tex, view, err := newTexture(d.device, "postfx_black", 1, 1, gputypes.TextureFormatRGBA8Unorm)
		if err != nil {
			return nil, fmt.Errorf("create black texture: %w", err)
		}
		d.black = &surface{
			desc:   pass.SurfaceDesc{Label: "postfx_black", Width: 1, Height: 1, Format: pass.FormatRGBA8},
			format: gputypes.TextureFormatRGBA8Unorm,
			tex:    tex,
			view:   view,
			dev:    d,
		}
		base := d.black.copyBase()
		size := d.black.extent()
		if err := d.queue.WriteTexture(&base, make([]byte, 4), &hal.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1}, &size); err != nil {
			return nil, fmt.Errorf("clear black texture: %w", err)
		}
	}
	return d.black, nil
}

func (d *Device) copyTexture(enc hal.CommandEncoder, src, dst *surface) {
	d.transition(enc, src, gputypes.TextureUsageCopySrc)
	d.transition(enc, dst, gputypes.TextureUsageCopyDst)
	enc.CopyTextureToTexture(src.tex, dst.tex, []hal.TextureCopy{{
		SrcBase: src.copyBase(),
		DstBase: dst.copyBase(),
		Size:    src.extent(),
	}})
}

// transition records a barrier when s was last used differently.
func (d *Device) transition(enc hal.CommandEncoder, s *surface, usage gputypes.TextureUsage) {
	if s.usage == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll, MipLevelCount: 1, ArrayLayerCount: 1},
		Usage:   hal.TextureUsageTransition{OldUsage: s.usage, NewUsage: usage},
	}})
	s.usage = usage
}

// submitLocked encodes record into a command buffer and submits it. job is
// released once the submission completes.
func (d *Device) submitLocked(label string, job transient, record func(enc hal.CommandEncoder)) error {
	if d.closed {
		d.releaseJob(job)
		return ErrClosed
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		d.releaseJob(job)
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		d.releaseJob(job)
		return fmt.Errorf("begin encoding: %w", err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.DiscardEncoding()
		d.releaseJob(job)
		return fmt.Errorf("end encoding: %w", err)
	}
	job.cmd = cmd
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.releaseJob(job)
		return fmt.Errorf("submit: %w", err)
	}
	d.submits.Add(1)
	d.last = idx
	job.index = idx
	d.inflight = append(d.inflight, job)
	d.reclaimLocked(d.queue.PollCompleted())
	return nil
}

// waitLocked blocks until the queue is idle and releases every in-flight
// job.
func (d *Device) waitLocked() error {
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: wait idle: %w", err)
	}
	for _, job := range d.inflight {
		d.releaseJob(job)
	}
	d.inflight = d.inflight[:0]
	return nil
}

// reclaimLocked releases the jobs of submissions up to done.
func (d *Device) reclaimLocked(done uint64) {
	n := 0
	for _, job := range d.inflight {
		if job.index <= done {
			d.releaseJob(job)
			continue
		}
		d.inflight[n] = job
		n++
	}
	clear(d.inflight[n:])
	d.inflight = d.inflight[:n]
}

func (d *Device) releaseJob(job transient) {
	if job.bindGroup != nil {
		d.device.DestroyBindGroup(job.bindGroup)
	}
	if job.uniform != nil {
		d.uniforms = append(d.uniforms, job.uniform)
	}
	if job.texture != nil {
		d.destroyTexture(job.texture)
	}
	if job.cmd != nil {
		d.device.FreeCommandBuffer(job.cmd)
	}
}

// uniformLocked takes a uniform buffer from the free list or creates one.
func (d *Device) uniformLocked() (hal.Buffer, error) {
	if n := len(d.uniforms); n > 0 {
		u := d.uniforms[n-1]
		d.uniforms = d.uniforms[:n-1]
		return u, nil
	}
	u, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "postfx_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}
	return u, nil
}

func (d *Device) surfaceLocked(s pass.Surface) (*surface, error) {
	if s == nil {
		return nil, pass.ErrNilSurface
	}
	sf, ok := s.(*surface)
	if !ok || sf.dev != d {
		return nil, fmt.Errorf("%w: surface %q", pass.ErrForeignResource, s.Label())
	}
	if d.closed {
		return nil, ErrClosed
	}
	if _, live := d.surfaces[sf]; !live {
		return nil, fmt.Errorf("wgpu: surface %q used after destroy", sf.desc.Label)
	}
	return sf, nil
}

func (d *Device) bufferLocked(b pass.Buffer) (*buffer, error) {
	if b == nil {
		return nil, errors.New("wgpu: nil buffer")
	}
	bf, ok := b.(*buffer)
	if !ok || bf.dev != d {
		return nil, fmt.Errorf("%w: buffer %q", pass.ErrForeignResource, b.Label())
	}
	if bf.buf == nil {
		return nil, fmt.Errorf("wgpu: buffer %q used after destroy", bf.desc.Label)
	}
	return bf, nil
}

// nopHandler discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
