package backend

import (
	"errors"

	"github.com/gogpu/postfx/pass"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or cannot open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU reference backend.
	BackendSoftware = "software"
	// BackendWGPU is the name of the GPU backend (gogpu/wgpu HAL).
	BackendWGPU = "wgpu"
)

// Device is a pass.Device that owns its resources.
//
// Devices are created through Get or Default and must be closed by the
// caller. Surfaces and buffers are invalid after Close.
type Device interface {
	pass.Device

	// ReadSurface waits for outstanding work and returns the pixels of s,
	// four floats per pixel.
	ReadSurface(s pass.Surface) ([]float32, error)

	// Close releases all device resources.
	Close()
}
