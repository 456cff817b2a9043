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

// Blend is the production blend kernel.
func Blend(dim int, src, dst []pixel.Pixel) {
	HoistedBlend(dim, src, dst)
}

// BlendV is the production blend_v kernel. It composites four pixels per
// iteration from precomputed background channels.
func BlendV(dim int, src, dst []pixel.Pixel) {
	blendRange(src[:dim*dim], dst[:dim*dim], pixel.Background(src))
}

// NaiveBlend composites every pixel over the background independently.
func NaiveBlend(dim int, src, dst []pixel.Pixel) {
	bg := pixel.Background(src)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			k := pixel.Index(i, j, dim)
			dst[k] = blendPixel(src[k], bg)
		}
	}
}

// HoistedBlend converts the background to float once and walks the image
// as one flat slice.
func HoistedBlend(dim int, src, dst []pixel.Pixel) {
	bg := pixel.Background(src)
	br, bgr, bb := float32(bg.Red), float32(bg.Green), float32(bg.Blue)
	n := dim * dim
	src, dst = src[:n], dst[:n]
	for k, s := range src {
		a := float32(s.Alpha) / pixel.Max
		na := 1 - a
		dst[k] = pixel.Pixel{
			Red:   uint16(float32(a*float32(s.Red)) + float32(na*br)),
			Green: uint16(float32(a*float32(s.Green)) + float32(na*bgr)),
			Blue:  uint16(float32(a*float32(s.Blue)) + float32(na*bb)),
			Alpha: pixel.Max,
		}
	}
}

// blendRange composites src into dst four pixels at a time.
func blendRange(src, dst []pixel.Pixel, bg pixel.Pixel) {
	back := [3]float32{float32(bg.Red), float32(bg.Green), float32(bg.Blue)}
	k := 0
	for ; k+4 <= len(src); k += 4 {
		s := src[k : k+4 : k+4]
		d := dst[k : k+4 : k+4]
		for l := range 4 {
			d[l] = blendWith(s[l], &back)
		}
	}
	for ; k < len(src); k++ {
		dst[k] = blendWith(src[k], &back)
	}
}

func blendWith(s pixel.Pixel, back *[3]float32) pixel.Pixel {
	a := float32(s.Alpha) / pixel.Max
	na := 1 - a
	return pixel.Pixel{
		Red:   uint16(float32(a*float32(s.Red)) + float32(na*back[0])),
		Green: uint16(float32(a*float32(s.Green)) + float32(na*back[1])),
		Blue:  uint16(float32(a*float32(s.Blue)) + float32(na*back[2])),
		Alpha: pixel.Max,
	}
}

// blendPixel composites s over b using s's alpha as coverage.
func blendPixel(s, b pixel.Pixel) pixel.Pixel {
	a := float32(s.Alpha) / pixel.Max
	return pixel.Pixel{
		Red:   uint16(float32(a*float32(s.Red)) + float32((1-a)*float32(b.Red))),
		Green: uint16(float32(a*float32(s.Green)) + float32((1-a)*float32(b.Green))),
		Blue:  uint16(float32(a*float32(s.Blue)) + float32((1-a)*float32(b.Blue))),
		Alpha: pixel.Max,
	}
}
