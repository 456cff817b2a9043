// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixture generates the image triples every candidate runs against.
//
// An Arena owns one backing buffer sized for its largest dimension. Each call
// to Create carves three co-resident dim×dim views out of it, starting at a
// cache-block aligned address:
//
//	 aligned base
//	 │
//	 ▼
//	 ┌──────────────┬──────────────┬──────────────┐
//	 │   Original   │    Result    │     Copy     │
//	 │   dim×dim    │   dim×dim    │   dim×dim    │
//	 └──────────────┴──────────────┴──────────────┘
//
// Views returned by Create are invalidated by the next Create on the same
// arena. Callers must not hold on to them.
package fixture

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"unsafe"

	"github.com/AleutianAI/perflab/services/bench/pixel"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// BlockSize is the cache block size, in bytes, the views are aligned to.
	BlockSize = 64

	// DefaultSeed seeds the arena generator when no override is given.
	DefaultSeed int64 = 1729

	// channelRange is the exclusive upper bound of a random channel value.
	channelRange = 65536
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrDimension is returned when a requested dimension is out of range.
	ErrDimension = errors.New("dimension out of range")
)

// =============================================================================
// Fixture
// =============================================================================

// Fixture is one generated image triple.
//
// Original is the candidate's input and must never be written. Result is the
// candidate's output, zeroed to fully transparent black. Copy is the pristine
// snapshot of Original used only to detect mutation.
type Fixture struct {
	Dim        int
	Original   []pixel.Pixel
	Result     []pixel.Pixel
	Copy       []pixel.Pixel
	Background pixel.Pixel
}

// OriginalImage returns Original as an Image view.
func (f *Fixture) OriginalImage() pixel.Image {
	return pixel.Image{Dim: f.Dim, Pixels: f.Original}
}

// ResultImage returns Result as an Image view.
func (f *Fixture) ResultImage() pixel.Image {
	return pixel.Image{Dim: f.Dim, Pixels: f.Result}
}

// CopyImage returns Copy as an Image view.
func (f *Fixture) CopyImage() pixel.Image {
	return pixel.Image{Dim: f.Dim, Pixels: f.Copy}
}

// =============================================================================
// Arena
// =============================================================================

// Arena is the reusable backing store for fixtures.
//
// Thread Safety:
//
//	Not safe for concurrent use. The orchestrator owns one arena per run.
type Arena struct {
	maxDim int
	seed   int64
	buf    []pixel.Pixel
	rng    *rand.Rand
}

// NewArena allocates an arena able to serve every dimension up to maxDim.
//
// Description:
//
//	The buffer holds three maxDim×maxDim images plus one cache block of
//	slack so the aligned base always fits. The generator is seeded once
//	here and advances across every Create call.
//
// Inputs:
//
//	maxDim - Largest dimension Create will accept. Must be positive.
//	seed - Generator seed; use DefaultSeed for reproducible runs.
//
// Outputs:
//
//	*Arena - The arena.
//	error - ErrDimension if maxDim is not positive.
func NewArena(maxDim int, seed int64) (*Arena, error) {
	if maxDim <= 0 {
		return nil, fmt.Errorf("%w: max dimension %d", ErrDimension, maxDim)
	}
	return &Arena{
		maxDim: maxDim,
		seed:   seed,
		buf:    make([]pixel.Pixel, 3*maxDim*maxDim+BlockSize/pixel.Size),
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}, nil
}

// MaxDim returns the largest dimension the arena accepts.
func (a *Arena) MaxDim() int {
	return a.maxDim
}

// Seed returns the seed the arena was created with.
func (a *Arena) Seed() int64 {
	return a.seed
}

// Create generates a fresh fixture of the given dimension.
//
// Description:
//
//	Recomputes the aligned base, fills Original with independent uniform
//	draws in [0, 65536) per channel, copies it into Copy, zeroes Result
//	and derives the background from Original[0][0] with alpha forced
//	opaque.
//
// Inputs:
//
//	dim - Image dimension, 1 <= dim <= MaxDim().
//
// Outputs:
//
//	*Fixture - Views into the arena, valid until the next Create.
//	error - ErrDimension if dim is out of range.
func (a *Arena) Create(dim int) (*Fixture, error) {
	if dim <= 0 || dim > a.maxDim {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrDimension, dim, a.maxDim)
	}

	n := dim * dim
	base := a.alignedOffset()
	orig := a.buf[base : base+n : base+n]
	result := a.buf[base+n : base+2*n : base+2*n]
	cp := a.buf[base+2*n : base+3*n : base+3*n]

	for k := range orig {
		orig[k] = pixel.Pixel{
			Red:   uint16(a.rng.IntN(channelRange)),
			Green: uint16(a.rng.IntN(channelRange)),
			Blue:  uint16(a.rng.IntN(channelRange)),
			Alpha: uint16(a.rng.IntN(channelRange)),
		}
	}
	copy(cp, orig)
	clear(result)

	return &Fixture{
		Dim:        dim,
		Original:   orig,
		Result:     result,
		Copy:       cp,
		Background: pixel.Background(orig),
	}, nil
}

// alignedOffset returns the index of the first pixel in buf whose address is
// a multiple of BlockSize.
func (a *Arena) alignedOffset() int {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(a.buf)))
	pad := (BlockSize - addr%BlockSize) % BlockSize
	return int(pad / pixel.Size)
}
