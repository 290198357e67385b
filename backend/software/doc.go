// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software is a CPU implementation of pass.Device.
//
// Surfaces are float RGBA images quantised to their declared format on
// write. Every catalogued program has a kernel that runs a pass over row
// bands on a fixed worker pool, so results match across worker counts.
//
// The device is the reference the GPU backend is compared against, and it
// runs the post-processing engines in headless tools and tests:
//
//	dev := software.New()
//	defer dev.Close()
//
//	src, _ := dev.NewSurface(pass.SurfaceDesc{Width: 64, Height: 64, Format: pass.FormatRGBA16F})
//	dev.WriteSurface(src, pixels)
//	img, _ := dev.Image(src)
package software
