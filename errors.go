package postfx

import (
	"errors"

	"github.com/gogpu/postfx/internal/effect"
)

// Pipeline errors.
var (
	// ErrNotActive is returned when a frame is rendered before Activate.
	// The source is still copied into the destination.
	ErrNotActive = effect.ErrNotActive

	// ErrNoDevice is returned by Activate on a pipeline created without a
	// device.
	ErrNoDevice = errors.New("postfx: no device")
)
