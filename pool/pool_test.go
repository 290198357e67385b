package pool

import (
	"errors"
	"testing"

	"github.com/gogpu/postfx/pass"
)

type testSurface struct {
	desc pass.SurfaceDesc
	id   int
}

func (s *testSurface) Width() int          { return s.desc.Width }
func (s *testSurface) Height() int         { return s.desc.Height }
func (s *testSurface) Format() pass.Format { return s.desc.Format }
func (s *testSurface) Filter() pass.Filter { return s.desc.Filter }
func (s *testSurface) Label() string       { return s.desc.Label }

type countingAlloc struct {
	created   int
	destroyed int
}

func (a *countingAlloc) NewSurface(desc pass.SurfaceDesc) (pass.Surface, error) {
	a.created++
	return &testSurface{desc: desc, id: a.created}, nil
}

func (a *countingAlloc) DestroySurface(pass.Surface) { a.destroyed++ }

func (a *countingAlloc) WriteSurface(pass.Surface, []float32) error { return nil }

func (a *countingAlloc) NewBuffer(pass.BufferDesc) (pass.Buffer, error) { return nil, nil }

func (a *countingAlloc) WriteBuffer(pass.Buffer, int, []byte) error { return nil }

func (a *countingAlloc) DestroyBuffer(pass.Buffer) {}

func TestAcquireReuse(t *testing.T) {
	alloc := &countingAlloc{}
	p := New(alloc, Config{})
	defer p.Close()

	a, err := p.Acquire(64, 32, 0, pass.FormatRGBA16F)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if a.Filter() != pass.FilterPoint {
		t.Errorf("default filter = %v, want point", a.Filter())
	}
	if err := p.Release(a); err != nil {
		t.Fatalf("Release: %v", err)
	}

	b, err := p.Acquire(64, 32, 0, pass.FormatRGBA16F)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if a != b {
		t.Error("released surface was not reused")
	}
	if alloc.created != 1 {
		t.Errorf("created = %d, want 1", alloc.created)
	}

	st := p.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", st.Hits, st.Misses)
	}
}

func TestAcquireKeyedByFormatAndFilter(t *testing.T) {
	alloc := &countingAlloc{}
	p := New(alloc, Config{})
	defer p.Close()

	a, _ := p.Acquire(16, 16, 0, pass.FormatRGBA8)
	_ = p.Release(a)

	tests := []struct {
		name   string
		format pass.Format
		filter pass.Filter
		w      int
	}{
		{"other format", pass.FormatR32F, pass.FilterPoint, 16},
		{"other filter", pass.FormatRGBA8, pass.FilterBilinear, 16},
		{"other size", pass.FormatRGBA8, pass.FilterPoint, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := p.AcquireFiltered(tt.w, 16, 0, tt.format, tt.filter)
			if err != nil {
				t.Fatalf("AcquireFiltered: %v", err)
			}
			if s == a {
				t.Error("surface reused across different keys")
			}
		})
	}
}

func TestReleaseAll(t *testing.T) {
	alloc := &countingAlloc{}
	p := New(alloc, Config{})
	defer p.Close()

	for range 3 {
		if _, err := p.Acquire(8, 8, 0, pass.FormatRGBA8); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if n := p.ReleaseAll(); n != 3 {
		t.Errorf("ReleaseAll = %d, want 3", n)
	}
	st := p.Stats()
	if st.Live != 0 || st.Free != 3 {
		t.Errorf("live=%d free=%d, want 0/3", st.Live, st.Free)
	}

	// Next frame reuses all three.
	for range 3 {
		_, _ = p.Acquire(8, 8, 0, pass.FormatRGBA8)
	}
	if alloc.created != 3 {
		t.Errorf("created = %d, want 3", alloc.created)
	}
}

func TestReleaseErrors(t *testing.T) {
	p := New(&countingAlloc{}, Config{})

	foreign := &testSurface{desc: pass.SurfaceDesc{Width: 1, Height: 1}}
	if err := p.Release(foreign); !errors.Is(err, ErrNotPooled) {
		t.Errorf("Release(foreign) = %v, want ErrNotPooled", err)
	}
	if err := p.Release(nil); err != nil {
		t.Errorf("Release(nil) = %v, want nil", err)
	}

	p.Close()
	if _, err := p.Acquire(1, 1, 0, pass.FormatRGBA8); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Acquire after Close = %v, want ErrPoolClosed", err)
	}
}

func TestAcquireInvalidSize(t *testing.T) {
	p := New(&countingAlloc{}, Config{})
	defer p.Close()
	if _, err := p.Acquire(0, 4, 0, pass.FormatRGBA8); !errors.Is(err, pass.ErrInvalidSize) {
		t.Errorf("Acquire(0x4) = %v, want ErrInvalidSize", err)
	}
}

func TestBudgetExceeded(t *testing.T) {
	p := New(&countingAlloc{}, Config{BudgetMB: MinBudgetMB})
	defer p.Close()

	// 4096*4096*16 bytes = 256 MB > 16 MB.
	_, err := p.Acquire(4096, 4096, 0, pass.FormatRGBA32F)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Acquire = %v, want ErrBudgetExceeded", err)
	}
}

func TestEvictionOfFreeSurfaces(t *testing.T) {
	alloc := &countingAlloc{}
	p := New(alloc, Config{BudgetMB: MinBudgetMB, EvictionThreshold: 0.5})
	defer p.Close()

	// 1024*1024*4 = 4 MB each; threshold is 8 MB.
	a, _ := p.Acquire(1024, 1024, 0, pass.FormatRGBA8)
	b, _ := p.Acquire(1024, 1024, 0, pass.FormatR32F)
	_ = p.Release(a)
	_ = p.Release(b)

	// A third distinct key pushes past the threshold and evicts a first.
	if _, err := p.Acquire(1024, 1024, 0, pass.FormatRG16F); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	st := p.Stats()
	if st.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", st.Evictions)
	}
	if alloc.destroyed != 1 {
		t.Errorf("destroyed = %d, want 1", alloc.destroyed)
	}
	if st.Bytes != 8*1024*1024 {
		t.Errorf("bytes = %d, want 8 MB", st.Bytes)
	}
}

func TestCloseDestroysEverything(t *testing.T) {
	alloc := &countingAlloc{}
	p := New(alloc, Config{})

	a, _ := p.Acquire(4, 4, 0, pass.FormatRGBA8)
	_, _ = p.Acquire(4, 4, 0, pass.FormatRGBA8)
	_ = p.Release(a)

	p.Close()
	p.Close()
	if alloc.destroyed != 2 {
		t.Errorf("destroyed = %d, want 2", alloc.destroyed)
	}
}

func TestTrim(t *testing.T) {
	alloc := &countingAlloc{}
	p := New(alloc, Config{})
	defer p.Close()

	_, _ = p.Acquire(4, 4, 0, pass.FormatRGBA8)
	_, _ = p.Acquire(2, 2, 0, pass.FormatRGBA8)
	p.ReleaseAll()
	p.Trim()

	if st := p.Stats(); st.Free != 0 || st.Bytes != 0 {
		t.Errorf("after Trim free=%d bytes=%d", st.Free, st.Bytes)
	}
}
