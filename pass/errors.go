// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pass

import "errors"

// Executor and allocator errors.
var (
	// ErrUnsupported is returned when a program cannot run on the device.
	ErrUnsupported = errors.New("pass: program not supported on this device")

	// ErrUnknownProgram is returned for a program missing from the catalogue.
	ErrUnknownProgram = errors.New("pass: unknown program")

	// ErrUnknownPass is returned for a pass index outside the program's table.
	ErrUnknownPass = errors.New("pass: unknown pass index")

	// ErrInvalidSize is returned when a surface has non-positive dimensions.
	ErrInvalidSize = errors.New("pass: invalid surface size")

	// ErrSizeMismatch is returned when surfaces that must match do not.
	ErrSizeMismatch = errors.New("pass: surface size mismatch")

	// ErrForeignResource is returned when a surface or buffer was created
	// by another device.
	ErrForeignResource = errors.New("pass: resource belongs to another device")

	// ErrNilSurface is returned when a required surface is nil.
	ErrNilSurface = errors.New("pass: nil surface")

	// ErrScopeClosed is returned when allocating from a closed scope.
	ErrScopeClosed = errors.New("pass: scope closed")
)

// ProgramError carries the program name alongside the underlying error.
type ProgramError struct {
	Program string
	Err     error
}

func (e *ProgramError) Error() string {
	return "pass: program " + e.Program + ": " + e.Err.Error()
}

func (e *ProgramError) Unwrap() error { return e.Err }
