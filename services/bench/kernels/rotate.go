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
	"github.com/AleutianAI/perflab/services/bench/pixel"
)

// tile is the block edge used by the blocked kernels.
const tile = 32

// Rotate is the production rotate kernel.
func Rotate(dim int, src, dst []pixel.Pixel) {
	BlockedRotate(dim, src, dst)
}

// RotateT is the production rotate_t kernel.
func RotateT(dim int, src, dst []pixel.Pixel) {
	NaiveRotate(dim, src, dst)
}

// NaiveRotate writes dst[dim-1-j][i] = src[i][j] in source order.
func NaiveRotate(dim int, src, dst []pixel.Pixel) {
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			dst[pixel.Index(dim-1-j, i, dim)] = src[pixel.Index(i, j, dim)]
		}
	}
}

// RowRotate iterates in destination row order so writes are sequential.
func RowRotate(dim int, src, dst []pixel.Pixel) {
	for di := 0; di < dim; di++ {
		j := dim - 1 - di
		for i := 0; i < dim; i++ {
			dst[pixel.Index(di, i, dim)] = src[pixel.Index(i, j, dim)]
		}
	}
}

// InnerRotate hoists the destination row offset out of the inner loop.
func InnerRotate(dim int, src, dst []pixel.Pixel) {
	for j := 0; j < dim; j++ {
		row := dst[(dim-1-j)*dim : (dim-j)*dim]
		for i := range row {
			row[i] = src[i*dim+j]
		}
	}
}

// UnrollRotate copies eight source rows per iteration with a scalar tail
// for dimensions that are not a multiple of eight.
func UnrollRotate(dim int, src, dst []pixel.Pixel) {
	for j := 0; j < dim; j++ {
		row := dst[(dim-1-j)*dim : (dim-j)*dim]
		i := 0
		for ; i+8 <= dim; i += 8 {
			s := i*dim + j
			row[i+0] = src[s]
			row[i+1] = src[s+dim]
			row[i+2] = src[s+2*dim]
			row[i+3] = src[s+3*dim]
			row[i+4] = src[s+4*dim]
			row[i+5] = src[s+5*dim]
			row[i+6] = src[s+6*dim]
			row[i+7] = src[s+7*dim]
		}
		for ; i < dim; i++ {
			row[i] = src[i*dim+j]
		}
	}
}

// StrideRotate walks each source column with a running offset instead of
// recomputing the index.
func StrideRotate(dim int, src, dst []pixel.Pixel) {
	for j := 0; j < dim; j++ {
		row := dst[(dim-1-j)*dim : (dim-j)*dim]
		s := j
		for i := range row {
			row[i] = src[s]
			s += dim
		}
	}
}

// BlockedRotate rotates tile×tile blocks so both images stay cache resident
// within a block.
func BlockedRotate(dim int, src, dst []pixel.Pixel) {
	rotateRows(dim, 0, dim, src, dst)
}

// rotateRows rotates source rows [from, to) tile by tile.
func rotateRows(dim, from, to int, src, dst []pixel.Pixel) {
	for ii := from; ii < to; ii += tile {
		iEnd := min(ii+tile, to)
		for jj := 0; jj < dim; jj += tile {
			jEnd := min(jj+tile, dim)
			for j := jj; j < jEnd; j++ {
				d := (dim - 1 - j) * dim
				for i := ii; i < iEnd; i++ {
					dst[d+i] = src[i*dim+j]
				}
			}
		}
	}
}
