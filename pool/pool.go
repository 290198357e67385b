// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pool provides the temporary surface pool used by post-processing
// engines for their per-frame intermediates.
//
// Surfaces are keyed by (width, height, depth bits, format, filter). A
// released surface goes to a free list and is handed out again by the next
// Acquire with the same key. Free surfaces are destroyed least recently used
// first when the pool grows past its eviction threshold.
package pool

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/postfx/pass"
)

// Pool errors.
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrNotPooled is returned when releasing a surface the pool did not hand out.
	ErrNotPooled = errors.New("pool: surface not acquired from this pool")

	// ErrBudgetExceeded is returned when a single surface is larger than the budget.
	ErrBudgetExceeded = errors.New("pool: memory budget exceeded")
)

// Default limits.
const (
	// DefaultBudgetMB is the default pool budget (256 MB).
	DefaultBudgetMB = 256

	// DefaultEvictionThreshold is the budget fraction above which free
	// surfaces are destroyed.
	DefaultEvictionThreshold = 0.8

	// MinBudgetMB is the smallest accepted budget (16 MB).
	MinBudgetMB = 16
)

// Key identifies interchangeable surfaces.
type Key struct {
	Width, Height int
	DepthBits     int
	Format        pass.Format
	Filter        pass.Filter
}

func (k Key) desc() pass.SurfaceDesc {
	return pass.SurfaceDesc{
		Label:     fmt.Sprintf("pool %dx%d %s", k.Width, k.Height, k.Format),
		Width:     k.Width,
		Height:    k.Height,
		DepthBits: k.DepthBits,
		Format:    k.Format,
		Filter:    k.Filter,
	}
}

// Stats contains pool usage counters.
type Stats struct {
	// Live is the number of surfaces currently acquired.
	Live int

	// Free is the number of released surfaces kept for reuse.
	Free int

	// Hits counts Acquire calls served from the free list.
	Hits uint64

	// Misses counts Acquire calls that allocated.
	Misses uint64

	// Evictions counts free surfaces destroyed to stay within budget.
	Evictions uint64

	// Reclaimed counts surfaces still live when ReleaseAll ran.
	Reclaimed uint64

	// Bytes is the storage held by live and free surfaces.
	Bytes uint64

	// BudgetBytes is the configured budget.
	BudgetBytes uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Pool[%d live, %d free, %d/%d MB, hits=%d misses=%d evictions=%d]",
		s.Live, s.Free, s.Bytes/(1024*1024), s.BudgetBytes/(1024*1024),
		s.Hits, s.Misses, s.Evictions)
}

// freeEntry is a released surface waiting for reuse.
type freeEntry struct {
	surface pass.Surface
	key     Key
	bytes   uint64
}

// Config configures a Pool.
type Config struct {
	// BudgetMB is the memory budget in megabytes.
	// Defaults to DefaultBudgetMB when below MinBudgetMB.
	BudgetMB int `json:"budgetMB"`

	// EvictionThreshold is the budget fraction at which free surfaces are
	// destroyed. Defaults to DefaultEvictionThreshold when outside (0, 1].
	EvictionThreshold float64 `json:"evictionThreshold"`
}

// Pool hands out temporary surfaces.
//
// Surfaces must be returned before the owning frame ends, either one by one
// with Release or all at once with ReleaseAll. The pool does not guard
// against a caller that keeps a surface past that point.
//
// Pool is safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	alloc pass.Allocator

	budgetBytes uint64
	threshold   float64
	usedBytes   uint64

	live map[pass.Surface]Key

	// free is ordered most recently released first.
	free    *list.List
	freeMap map[Key][]*list.Element

	hits, misses, evictions, reclaimed uint64

	closed bool
}

// New creates a pool allocating from alloc.
func New(alloc pass.Allocator, cfg Config) *Pool {
	mb := cfg.BudgetMB
	if mb < MinBudgetMB {
		mb = DefaultBudgetMB
	}
	threshold := cfg.EvictionThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultEvictionThreshold
	}

	//nolint:gosec // G115: mb is bounded below by MinBudgetMB
	return &Pool{
		alloc:       alloc,
		budgetBytes: uint64(mb) * 1024 * 1024,
		threshold:   threshold,
		live:        make(map[pass.Surface]Key),
		free:        list.New(),
		freeMap:     make(map[Key][]*list.Element),
	}
}

// Acquire returns a point-filtered surface of the given size and format.
func (p *Pool) Acquire(width, height, depthBits int, format pass.Format) (pass.Surface, error) {
	return p.AcquireFiltered(width, height, depthBits, format, pass.FilterPoint)
}

// AcquireFiltered returns a surface with an explicit sampling filter.
func (p *Pool) AcquireFiltered(width, height, depthBits int, format pass.Format, filter pass.Filter) (pass.Surface, error) {
	key := Key{Width: width, Height: height, DepthBits: depthBits, Format: format, Filter: filter}
	desc := key.desc()
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	if s := p.takeFreeLocked(key); s != nil {
		p.hits++
		p.live[s] = key
		return s, nil
	}

	size := desc.Bytes()
	if size > p.budgetBytes {
		return nil, fmt.Errorf("%w: surface %d MB exceeds budget %d MB",
			ErrBudgetExceeded, size/(1024*1024), p.budgetBytes/(1024*1024))
	}
	p.evictLocked(size)

	s, err := p.alloc.NewSurface(desc)
	if err != nil {
		return nil, fmt.Errorf("pool: allocate %dx%d %s: %w", width, height, format, err)
	}
	p.misses++
	p.usedBytes += size
	p.live[s] = key
	return s, nil
}

// Release returns a surface to the free list.
func (p *Pool) Release(s pass.Surface) error {
	if s == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	key, ok := p.live[s]
	if !ok {
		return ErrNotPooled
	}
	delete(p.live, s)
	p.pushFreeLocked(s, key)
	return nil
}

// ReleaseAll returns every live surface to the free list and reports how
// many were still live.
func (p *Pool) ReleaseAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.live)
	for s, key := range p.live {
		p.pushFreeLocked(s, key)
	}
	clear(p.live)
	//nolint:gosec // G115: n is non-negative
	p.reclaimed += uint64(n)
	return n
}

// Trim destroys every free surface.
func (p *Pool) Trim() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.free.Len() > 0 {
		p.evictOneLocked()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Live:        len(p.live),
		Free:        p.free.Len(),
		Hits:        p.hits,
		Misses:      p.misses,
		Evictions:   p.evictions,
		Reclaimed:   p.reclaimed,
		Bytes:       p.usedBytes,
		BudgetBytes: p.budgetBytes,
	}
}

// Close destroys all surfaces, live and free. Close is safe to call
// multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for p.free.Len() > 0 {
		p.evictOneLocked()
	}
	for s := range p.live {
		p.alloc.DestroySurface(s)
	}
	clear(p.live)
	p.usedBytes = 0
}

func (p *Pool) takeFreeLocked(key Key) pass.Surface {
	elems := p.freeMap[key]
	if len(elems) == 0 {
		return nil
	}
	el := elems[len(elems)-1]
	p.setFreeLocked(key, elems[:len(elems)-1])
	p.free.Remove(el)
	return el.Value.(*freeEntry).surface
}

func (p *Pool) pushFreeLocked(s pass.Surface, key Key) {
	el := p.free.PushFront(&freeEntry{surface: s, key: key, bytes: key.desc().Bytes()})
	p.freeMap[key] = append(p.freeMap[key], el)
}

// evictLocked destroys least recently released surfaces until an allocation
// of size bytes fits under the eviction threshold, or the free list is empty.
func (p *Pool) evictLocked(size uint64) {
	limit := uint64(float64(p.budgetBytes) * p.threshold)
	for p.usedBytes+size > limit && p.free.Len() > 0 {
		p.evictOneLocked()
	}
}

func (p *Pool) evictOneLocked() {
	el := p.free.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*freeEntry)
	p.free.Remove(el)

	elems := p.freeMap[entry.key]
	for i, e := range elems {
		if e == el {
			elems = append(elems[:i], elems[i+1:]...)
			break
		}
	}
	p.setFreeLocked(entry.key, elems)

	p.alloc.DestroySurface(entry.surface)
	p.usedBytes -= entry.bytes
	p.evictions++
}

func (p *Pool) setFreeLocked(key Key, elems []*list.Element) {
	if len(elems) == 0 {
		delete(p.freeMap, key)
		return
	}
	p.freeMap[key] = elems
}
