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

// Smooth is the production smooth kernel. Interior pixels use a fixed 3×3
// window with no bounds checks; only the border takes the clamped path.
func Smooth(dim int, src, dst []pixel.Pixel) {
	smoothRows(dim, 0, dim, src, dst)
}

// NaiveSmooth averages the clamped window of every pixel.
func NaiveSmooth(dim int, src, dst []pixel.Pixel) {
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			dst[pixel.Index(i, j, dim)] = average(dim, i, j, src)
		}
	}
}

// smoothRows smooths destination rows [from, to).
func smoothRows(dim, from, to int, src, dst []pixel.Pixel) {
	for i := from; i < to; i++ {
		if i == 0 || i == dim-1 || dim < 3 {
			for j := 0; j < dim; j++ {
				dst[i*dim+j] = average(dim, i, j, src)
			}
			continue
		}
		dst[i*dim] = average(dim, i, 0, src)
		up, mid, down := src[(i-1)*dim:i*dim], src[i*dim:(i+1)*dim], src[(i+1)*dim:(i+2)*dim]
		out := dst[i*dim : (i+1)*dim]
		for j := 1; j < dim-1; j++ {
			var r, g, b, a int
			for _, row := range [3][]pixel.Pixel{up, mid, down} {
				for _, p := range row[j-1 : j+2] {
					r += int(p.Red)
					g += int(p.Green)
					b += int(p.Blue)
					a += int(p.Alpha)
				}
			}
			out[j] = pixel.Pixel{Red: uint16(r / 9), Green: uint16(g / 9), Blue: uint16(b / 9), Alpha: uint16(a / 9)}
		}
		dst[i*dim+dim-1] = average(dim, i, dim-1, src)
	}
}

// average returns the truncated mean of the in-bounds 3×3 window at (i, j).
func average(dim, i, j int, src []pixel.Pixel) pixel.Pixel {
	var r, g, b, a, n int
	for ii := max(i-1, 0); ii <= min(i+1, dim-1); ii++ {
		for jj := max(j-1, 0); jj <= min(j+1, dim-1); jj++ {
			p := src[ii*dim+jj]
			r += int(p.Red)
			g += int(p.Green)
			b += int(p.Blue)
			a += int(p.Alpha)
			n++
		}
	}
	return pixel.Pixel{Red: uint16(r / n), Green: uint16(g / n), Blue: uint16(b / n), Alpha: uint16(a / n)}
}
