// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kernels

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/perflab/services/bench/pixel"
)

// minBandRows is the smallest row band handed to a worker.
const minBandRows = 16

// bands splits [0, dim) into at most GOMAXPROCS contiguous row bands and
// runs fn on each concurrently. Small images run on the caller.
func bands(dim int, fn func(from, to int)) {
	workers := min(runtime.GOMAXPROCS(0), dim/minBandRows)
	if workers <= 1 {
		fn(0, dim)
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	step := (dim + workers - 1) / workers
	for from := 0; from < dim; from += step {
		to := min(from+step, dim)
		g.Go(func() error {
			fn(from, to)
			return nil
		})
	}
	_ = g.Wait()
}

// ParallelRotate rotates tiled row bands on separate goroutines. Bands write
// disjoint destination columns.
func ParallelRotate(dim int, src, dst []pixel.Pixel) {
	bands(dim, func(from, to int) {
		rotateRows(dim, from, to, src, dst)
	})
}

// ParallelBlend composites row bands on separate goroutines.
func ParallelBlend(dim int, src, dst []pixel.Pixel) {
	bg := pixel.Background(src)
	bands(dim, func(from, to int) {
		blendRange(src[from*dim:to*dim], dst[from*dim:to*dim], bg)
	})
}

// ParallelSmooth smooths row bands on separate goroutines.
func ParallelSmooth(dim int, src, dst []pixel.Pixel) {
	bands(dim, func(from, to int) {
		smoothRows(dim, from, to, src, dst)
	})
}
