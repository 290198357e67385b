// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/gogpu/postfx/pass"
)

// buffer is a CPU structured buffer. Append buffers carry a hidden element
// counter that passes advance and CopyCount reads.
type buffer struct {
	desc pass.BufferDesc
	dev  *Device

	mu      sync.Mutex
	data    []byte
	counter uint32
}

func newBuffer(dev *Device, desc pass.BufferDesc) *buffer {
	return &buffer{desc: desc, dev: dev, data: make([]byte, desc.Bytes())}
}

func (b *buffer) Kind() pass.BufferKind { return b.desc.Kind }
func (b *buffer) Count() int            { return b.desc.Count }
func (b *buffer) Stride() int           { return b.desc.Stride }
func (b *buffer) Label() string         { return b.desc.Label }

// resetCounter sets the append counter back to zero.
func (b *buffer) resetCounter() {
	b.mu.Lock()
	b.counter = 0
	b.mu.Unlock()
}

// appendFloats appends one element. Elements past capacity are dropped,
// like a full GPU append buffer.
func (b *buffer) appendFloats(vals []float32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if int(b.counter) >= b.desc.Count {
		return false
	}
	off := int(b.counter) * b.desc.Stride
	for i, v := range vals {
		if 4*i+4 > b.desc.Stride {
			break
		}
		binary.LittleEndian.PutUint32(b.data[off+4*i:], math.Float32bits(v))
	}
	b.counter++
	return true
}

// element decodes the first n floats of element i.
func (b *buffer) element(i, n int) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	off := i * b.desc.Stride
	out := make([]float32, n)
	for k := range out {
		out[k] = math.Float32frombits(binary.LittleEndian.Uint32(b.data[off+4*k:]))
	}
	return out
}

func (b *buffer) uint32At(off int) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return binary.LittleEndian.Uint32(b.data[off:])
}

func (b *buffer) putUint32(off int, v uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	binary.LittleEndian.PutUint32(b.data[off:], v)
}

func (b *buffer) count() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counter
}
