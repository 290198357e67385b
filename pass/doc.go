// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pass defines the contract between post-processing engines and the
// device that runs their passes.
//
// An engine never talks to a graphics API directly. It describes each step
// of its frame as a numbered pass of a named program, bound to a set of
// parameters, and hands it to an [Executor]:
//
//	params := pass.NewParams()
//	params.SetTexture("_BlendTex", weights)
//	params.SetVector("_PixelSize", f32.Vec4{1 / w, 1 / h, 0, 0})
//	err := dev.Execute(ctx, src, dst, pass.Pass{Program: "taa", Index: 4}, params)
//
// Surfaces and buffers come from an [Allocator]. Resources that outlive a
// frame are tracked by a [Scope], which releases them in reverse order when
// the owning engine is deactivated.
//
// # Programs
//
// Pass numbering is private to each program. The [Catalogue] records, for
// every program, the names of its passes so that devices and logs can refer
// to them and out-of-range indices are rejected before reaching a backend.
//
// # Devices
//
// Two devices ship with the module:
//   - backend/software: CPU reference implementation of every catalogued pass
//   - backend/wgpu: GPU device on gogpu/wgpu/hal running WGSL programs
package pass
