// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "errors"

// Errors
var (
	ErrAddressOutOfRange   = errors.New("Memory address out of range")
	ErrUnknownInstruction  = errors.New("Unknown instruction")
	ErrInvalidRegisterName = errors.New("Invalid register name")
	ErrProgramTooLarge     = errors.New("Program exceeds memory bounds")
	ErrProgramOverlapsROM  = errors.New("Program overlaps ROM")
	ErrROMTooLarge         = errors.New("ROM image too large")
	ErrInvalidMemorySize   = errors.New("Invalid memory size")

	ErrClockRunning     = errors.New("Clock is already running")
	ErrClockBusy        = errors.New("Clock is running on another goroutine")
	ErrStopTimeout      = errors.New("Timed out waiting for the clock to stop")
	ErrInvalidClockMode = errors.New("Invalid clock mode")
)
