// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import (
	"sort"

	"golang.org/x/image/math/f32"
)

// Params is the set of named bindings a pass runs against: scalars, vectors,
// matrices, textures and buffers. Names follow the shader-side convention of
// a leading underscore ("_MainTex", "_BlurParams").
//
// An engine typically keeps one Params per program for its lifetime and
// updates entries between passes, so values set for an earlier pass stay
// bound for later ones. Executors read Params during Execute and must not
// retain them.
//
// Params is not safe for concurrent use.
type Params struct {
	floats   map[string]float32
	vectors  map[string]f32.Vec4
	matrices map[string]f32.Mat4
	textures map[string]Surface
	buffers  map[string]Buffer
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{
		floats:   make(map[string]float32),
		vectors:  make(map[string]f32.Vec4),
		matrices: make(map[string]f32.Mat4),
		textures: make(map[string]Surface),
		buffers:  make(map[string]Buffer),
	}
}

// SetFloat binds a scalar.
func (p *Params) SetFloat(name string, v float32) { p.floats[name] = v }

// SetInt binds an integer; shaders receive it as a float.
func (p *Params) SetInt(name string, v int) { p.floats[name] = float32(v) }

// SetVector binds a four-component vector.
func (p *Params) SetVector(name string, v f32.Vec4) { p.vectors[name] = v }

// SetMatrix binds a row-major 4x4 matrix.
func (p *Params) SetMatrix(name string, m f32.Mat4) { p.matrices[name] = m }

// SetTexture binds a surface for sampling. A nil surface removes the binding.
func (p *Params) SetTexture(name string, s Surface) {
	if s == nil {
		delete(p.textures, name)
		return
	}
	p.textures[name] = s
}

// SetBuffer binds a buffer. A nil buffer removes the binding.
func (p *Params) SetBuffer(name string, b Buffer) {
	if b == nil {
		delete(p.buffers, name)
		return
	}
	p.buffers[name] = b
}

// Float returns a bound scalar.
func (p *Params) Float(name string) (float32, bool) {
	v, ok := p.floats[name]
	return v, ok
}

// FloatOr returns a bound scalar or def when unbound.
func (p *Params) FloatOr(name string, def float32) float32 {
	if v, ok := p.floats[name]; ok {
		return v
	}
	return def
}

// Vector returns a bound vector.
func (p *Params) Vector(name string) (f32.Vec4, bool) {
	v, ok := p.vectors[name]
	return v, ok
}

// Matrix returns a bound matrix.
func (p *Params) Matrix(name string) (f32.Mat4, bool) {
	m, ok := p.matrices[name]
	return m, ok
}

// Texture returns a bound surface or nil.
func (p *Params) Texture(name string) Surface { return p.textures[name] }

// Buffer returns a bound buffer or nil.
func (p *Params) Buffer(name string) Buffer { return p.buffers[name] }

// Textures returns the names of all bound textures in sorted order.
func (p *Params) Textures() []string { return sortedKeys(p.textures) }

// Names returns every bound name in sorted order.
func (p *Params) Names() []string {
	names := make([]string, 0, len(p.floats)+len(p.vectors)+len(p.matrices)+len(p.textures)+len(p.buffers))
	names = append(names, sortedKeys(p.floats)...)
	names = append(names, sortedKeys(p.vectors)...)
	names = append(names, sortedKeys(p.matrices)...)
	names = append(names, sortedKeys(p.textures)...)
	names = append(names, sortedKeys(p.buffers)...)
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy. Surfaces and buffers are shared.
func (p *Params) Clone() *Params {
	c := NewParams()
	for k, v := range p.floats {
		c.floats[k] = v
	}
	for k, v := range p.vectors {
		c.vectors[k] = v
	}
	for k, v := range p.matrices {
		c.matrices[k] = v
	}
	for k, v := range p.textures {
		c.textures[k] = v
	}
	for k, v := range p.buffers {
		c.buffers[k] = v
	}
	return c
}

// Reset removes every binding.
func (p *Params) Reset() {
	clear(p.floats)
	clear(p.vectors)
	clear(p.matrices)
	clear(p.textures)
	clear(p.buffers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
