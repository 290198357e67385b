// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import "slices"

// Scope owns the persistent resources of one engine activation. Everything
// allocated through a scope is destroyed by Close in reverse allocation
// order, so every exit path of an engine, including an unsupported-program
// early return, can release cleanly with a single deferred call.
//
// Scope is not safe for concurrent use.
type Scope struct {
	alloc  Allocator
	items  []scoped
	closed bool
}

type scoped struct {
	surface Surface
	buffer  Buffer
}

// NewScope creates a scope allocating from alloc.
func NewScope(alloc Allocator) *Scope {
	return &Scope{alloc: alloc}
}

// NewSurface allocates a surface owned by the scope.
func (s *Scope) NewSurface(desc SurfaceDesc) (Surface, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	surf, err := s.alloc.NewSurface(desc)
	if err != nil {
		return nil, err
	}
	s.items = append(s.items, scoped{surface: surf})
	return surf, nil
}

// NewBuffer allocates a buffer owned by the scope.
func (s *Scope) NewBuffer(desc BufferDesc) (Buffer, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	buf, err := s.alloc.NewBuffer(desc)
	if err != nil {
		return nil, err
	}
	s.items = append(s.items, scoped{buffer: buf})
	return buf, nil
}

// DestroySurface releases one surface before the scope closes.
// Surfaces not owned by the scope are ignored.
func (s *Scope) DestroySurface(surf Surface) {
	if surf == nil {
		return
	}
	i := slices.IndexFunc(s.items, func(it scoped) bool { return it.surface == surf })
	if i < 0 {
		return
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.alloc.DestroySurface(surf)
}

// DestroyBuffer releases one buffer before the scope closes.
func (s *Scope) DestroyBuffer(buf Buffer) {
	if buf == nil {
		return
	}
	i := slices.IndexFunc(s.items, func(it scoped) bool { return it.buffer == buf })
	if i < 0 {
		return
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.alloc.DestroyBuffer(buf)
}

// Len returns the number of live resources.
func (s *Scope) Len() int { return len(s.items) }

// Close destroys all resources. Close is safe to call multiple times; a
// closed scope refuses new allocations.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for i := len(s.items) - 1; i >= 0; i-- {
		it := s.items[i]
		if it.surface != nil {
			s.alloc.DestroySurface(it.surface)
		}
		if it.buffer != nil {
			s.alloc.DestroyBuffer(it.buffer)
		}
	}
	s.items = nil
}
