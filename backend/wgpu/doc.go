// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements pass.Device on a gogpu/wgpu HAL device.
//
// Every pass is a fullscreen triangle drawn with a WGSL fragment shader.
// Shaders are embedded, validated with naga when a program is first
// queried through Supports, and compiled into render pipelines on first
// use. Programs without a WGSL implementation report pass.ErrUnsupported,
// which makes the engines that need them disable themselves.
//
// Open creates a device of its own:
//
//	dev, err := wgpu.Open()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
// Hosts that already own a device share it through NewFromProvider.
//
// Each pass is recorded and submitted on its own. Per-pass bind groups and
// uniform buffers are recycled as the queue reports completed submissions;
// Flush and ReadSurface wait for the queue to drain.
package wgpu
