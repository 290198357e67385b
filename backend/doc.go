// Package backend selects the device that runs post-processing passes.
//
// Backends are registered via init() functions and selected at runtime.
// Importing the package registers both built-in backends:
//
//	import "github.com/gogpu/postfx/backend"
//
// # Backend Selection
//
// Use Default() to open the best available device, or Get() to request a
// specific backend by name:
//
//	// Open the default (best available) device
//	dev, err := backend.Default()
//
//	// Or request a specific backend
//	dev, err := backend.Get("software")
//
// The caller owns the device:
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	p := postfx.New(dev, postfx.WithTonemap(tonemap.DefaultSettings()))
//
// # Available Backends
//
// - "wgpu": GPU device via gogpu/wgpu, tried first; not built with the
// nogpu tag
// - "software": CPU reference device (always available)
package backend
