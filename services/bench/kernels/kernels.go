// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kernels holds the candidate implementations of every benchmarked
// operation.
//
// Each operation has one production kernel (Rotate, RotateT, Blend, BlendV,
// Smooth) that the autograder binds to, plus the alternative versions
// Register adds for comparison. All kernels share one signature:
//
//	func(dim int, src, dst []pixel.Pixel)
//
// src and dst are row-major dim×dim images. Kernels must not write to src.
package kernels

import (
	"github.com/AleutianAI/perflab/services/bench/registry"
)

// Descriptions of the production kernels. These are the selection file
// names used outside autograder mode.
const (
	RotateDescription  = "rotate: Current working version"
	RotateTDescription = "rotate_t: Current working version"
	BlendDescription   = "blend: Current working version"
	BlendVDescription  = "blend_v: Current working version"
	SmoothDescription  = "smooth: Current working version"
)

type candidate struct {
	op     registry.Operation
	kernel registry.KernelFunc
	desc   string
}

// candidates in registration order; the production kernel of each
// operation comes first.
var candidates = []candidate{
	{registry.Rotate, Rotate, RotateDescription},
	{registry.Rotate, NaiveRotate, "naive_rotate: Naive baseline implementation"},
	{registry.Rotate, RowRotate, "row_rotate: rotates as row major"},
	{registry.Rotate, InnerRotate, "inner_rotate: get computations from inner loop"},
	{registry.Rotate, UnrollRotate, "unroll_loops: unroll loops"},
	{registry.Rotate, StrideRotate, "stride_rotate: walks source columns by stride"},
	{registry.Rotate, BlockedRotate, "blocked_rotate: 32x32 tiles"},
	{registry.Rotate, ParallelRotate, "parallel_rotate: tiles across cores"},

	{registry.RotateT, RotateT, RotateTDescription},
	{registry.RotateT, BlockedRotate, "blocked_rotate_t: 32x32 tiles"},

	{registry.Blend, Blend, BlendDescription},
	{registry.Blend, NaiveBlend, "naive_blend: Naive baseline implementation"},
	{registry.Blend, HoistedBlend, "hoisted_blend: background hoisted out of the loop"},

	{registry.BlendV, BlendV, BlendVDescription},
	{registry.BlendV, ParallelBlend, "parallel_blend_v: row bands across cores"},

	{registry.Smooth, Smooth, SmoothDescription},
	{registry.Smooth, NaiveSmooth, "naive_smooth: Naive baseline implementation"},
	{registry.Smooth, ParallelSmooth, "parallel_smooth: row bands across cores"},
}

// Register adds every candidate to reg in a stable order.
func Register(reg *registry.Registry) error {
	for _, c := range candidates {
		if err := reg.Register(c.op, c.kernel, c.desc); err != nil {
			return err
		}
	}
	return nil
}

// Canonical returns the production kernel of every operation, named the
// way the autograder reports them.
func Canonical() map[registry.Operation]registry.Canonical {
	return map[registry.Operation]registry.Canonical{
		registry.Rotate:  {Kernel: registry.KernelFunc(Rotate), Description: "rotate() function"},
		registry.RotateT: {Kernel: registry.KernelFunc(RotateT), Description: "rotate_t() function"},
		registry.Blend:   {Kernel: registry.KernelFunc(Blend), Description: "blend() function"},
		registry.BlendV:  {Kernel: registry.KernelFunc(BlendV), Description: "blend_v() function"},
		registry.Smooth:  {Kernel: registry.KernelFunc(Smooth), Description: "smooth() function"},
	}
}
