//go:build !nogpu

package backend

import "github.com/gogpu/postfx/backend/wgpu"

// init registers the GPU backend. Opening it fails without a Vulkan
// driver, and Default then falls back to software.
func init() {
	Register(BackendWGPU, func() (Device, error) {
		d, err := wgpu.Open()
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}
