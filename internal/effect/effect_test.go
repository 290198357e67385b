package effect

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/postfx/backend/software"
	"github.com/gogpu/postfx/camera"
	"github.com/gogpu/postfx/internal/programs"
	"github.com/gogpu/postfx/pass"
)

func newFrame(t *testing.T, dev *software.Device) *camera.FrameContext {
	t.Helper()
	mk := func(label string, v float32) pass.Surface {
		s, err := dev.NewSurface(pass.SurfaceDesc{Label: label, Width: 4, Height: 4, Format: pass.FormatRGBA16F})
		if err != nil {
			t.Fatalf("NewSurface: %v", err)
		}
		pix := make([]float32, 4*4*4)
		for i := range pix {
			pix[i] = v
		}
		if err := dev.WriteSurface(s, pix); err != nil {
			t.Fatalf("WriteSurface: %v", err)
		}
		return s
	}
	return &camera.FrameContext{
		Camera:      camera.New(4, 4, 60, 0.1, 100),
		Source:      mk("src", 0.5),
		Destination: mk("dst", 0),
	}
}

func newDevice(t *testing.T) *software.Device {
	t.Helper()
	d := software.New(software.WithWorkers(1))
	t.Cleanup(d.Close)
	return d
}

func dstValue(t *testing.T, dev *software.Device, f *camera.FrameContext) float32 {
	t.Helper()
	pix, err := dev.ReadSurface(f.Destination)
	if err != nil {
		t.Fatalf("ReadSurface: %v", err)
	}
	return pix[0]
}

func TestStateMachine(t *testing.T) {
	dev := newDevice(t)
	var b Base
	b.Init("test", dev, programs.TAA)

	if b.State() != Inactive {
		t.Fatalf("initial state = %v", b.State())
	}
	if !b.Activate() || b.State() != Active {
		t.Fatalf("Activate: state = %v", b.State())
	}
	if b.Scope() == nil || b.Temps() == nil {
		t.Fatal("active base has no scope or pool")
	}
	if !b.Activate() {
		t.Fatal("second Activate failed")
	}
	b.Deactivate()
	if b.State() != Inactive || b.Scope() != nil || b.Temps() != nil {
		t.Fatalf("after Deactivate: state=%v scope=%v", b.State(), b.Scope())
	}
	if !b.Activate() {
		t.Fatal("re-Activate failed")
	}
	b.Deactivate()
}

func TestUnknownProgramDisables(t *testing.T) {
	dev := newDevice(t)
	var buf bytes.Buffer
	var b Base
	b.Init("test", dev, "missing")
	b.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	for range 3 {
		if b.Activate() {
			t.Fatal("Activate succeeded for an unknown program")
		}
	}
	if b.State() != Disabled {
		t.Fatalf("state = %v, want disabled", b.State())
	}
	if n := strings.Count(buf.String(), "level=WARN"); n != 1 {
		t.Errorf("logged %d warnings, want 1:\n%s", n, buf.String())
	}
	b.Deactivate()
	if b.State() != Disabled {
		t.Errorf("Deactivate changed disabled state to %v", b.State())
	}
}

func TestBeginByState(t *testing.T) {
	dev := newDevice(t)
	ctx := context.Background()

	t.Run("inactive", func(t *testing.T) {
		var b Base
		b.Init("test", dev)
		f := newFrame(t, dev)
		ok, err := b.Begin(ctx, f)
		if ok || !errors.Is(err, ErrNotActive) {
			t.Fatalf("Begin = %v, %v; want false, ErrNotActive", ok, err)
		}
		if v := dstValue(t, dev, f); v != 0.5 {
			t.Errorf("destination = %v, want the source copied", v)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		var b Base
		b.Init("test", dev, "missing")
		b.Activate()
		f := newFrame(t, dev)
		ok, err := b.Begin(ctx, f)
		if ok || err != nil {
			t.Fatalf("Begin = %v, %v; want false, nil", ok, err)
		}
		if v := dstValue(t, dev, f); v != 0.5 {
			t.Errorf("destination = %v, want the source copied", v)
		}
	})

	t.Run("invalid camera", func(t *testing.T) {
		var b Base
		b.Init("test", dev)
		b.Activate()
		t.Cleanup(b.Deactivate)
		f := newFrame(t, dev)
		f.Camera.Near = 0
		ok, err := b.Begin(ctx, f)
		if ok || !errors.Is(err, camera.ErrInvalidCamera) {
			t.Fatalf("Begin = %v, %v; want false, ErrInvalidCamera", ok, err)
		}
	})

	t.Run("nil frame", func(t *testing.T) {
		var b Base
		b.Init("test", dev)
		if _, err := b.Begin(ctx, nil); !errors.Is(err, pass.ErrNilSurface) {
			t.Fatalf("Begin(nil) = %v, want ErrNilSurface", err)
		}
	})
}

func TestFinishFallsBackToCopy(t *testing.T) {
	dev := newDevice(t)
	var b Base
	b.Init("test", dev)
	if !b.Activate() {
		t.Fatal("Activate failed")
	}
	t.Cleanup(b.Deactivate)

	f := newFrame(t, dev)
	if _, err := b.Acquire(8, 8, pass.FormatRGBA8); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	boom := errors.New("boom")
	err := b.Finish(context.Background(), f, boom)
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "test: ") {
		t.Fatalf("Finish = %v, want wrapped boom", err)
	}
	if v := dstValue(t, dev, f); v != 0.5 {
		t.Errorf("destination = %v, want the source copied", v)
	}
	if st := b.PoolStats(); st.Live != 0 || st.Free != 1 {
		t.Errorf("pool live=%d free=%d, want 0/1", st.Live, st.Free)
	}
}

func TestAcquireInactive(t *testing.T) {
	var b Base
	b.Init("test", nil)
	if _, err := b.Acquire(4, 4, pass.FormatRGBA8); !errors.Is(err, ErrNotActive) {
		t.Errorf("Acquire = %v, want ErrNotActive", err)
	}
	if b.Activate() {
		t.Error("Activate succeeded without a device")
	}
}

func TestAcquireClampsSize(t *testing.T) {
	dev := newDevice(t)
	var b Base
	b.Init("test", dev)
	b.Activate()
	t.Cleanup(b.Deactivate)
	s, err := b.Acquire(0, -3, pass.FormatR32F)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s.Width() != 1 || s.Height() != 1 {
		t.Errorf("size = %dx%d, want 1x1", s.Width(), s.Height())
	}
}
