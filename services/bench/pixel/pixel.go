// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pixel defines the 4-channel pixel type and the row-major square
// image view shared by the fixture generator, the oracle and the kernels.
package pixel

import "fmt"

// Max is the largest channel value; an Alpha of Max is fully opaque.
const Max = 65535

// Pixel is one RGBA sample with 16 bits per channel.
//
// The layout is four consecutive uint16 values, 8 bytes per pixel, so a
// 64-byte cache block holds exactly eight pixels.
type Pixel struct {
	Red   uint16
	Green uint16
	Blue  uint16
	Alpha uint16
}

// Size is the in-memory size of a Pixel in bytes.
const Size = 8

// String formats the pixel as "{red,green,blue,alpha}".
func (p Pixel) String() string {
	return fmt.Sprintf("{%d,%d,%d,%d}", p.Red, p.Green, p.Blue, p.Alpha)
}

// Opaque returns p with its alpha channel forced to Max.
func (p Pixel) Opaque() Pixel {
	p.Alpha = Max
	return p
}

// Index returns the row-major offset of (i, j) in a dim×dim image.
func Index(i, j, dim int) int {
	return i*dim + j
}

// Background derives the blend backdrop from an image: the (0,0) pixel with
// alpha forced fully opaque.
//
// Kernels call this on their source slice so the compositing color always
// matches the one the correctness check uses.
func Background(src []Pixel) Pixel {
	if len(src) == 0 {
		return Pixel{Alpha: Max}
	}
	return src[0].Opaque()
}

// Image is a typed dim×dim view into a pixel buffer.
//
// An Image does not own its storage; it is invalidated by the next call that
// reuses the backing arena.
type Image struct {
	Dim    int
	Pixels []Pixel
}

// At returns the pixel at row i, column j.
func (m Image) At(i, j int) Pixel {
	return m.Pixels[Index(i, j, m.Dim)]
}

// Set stores p at row i, column j.
func (m Image) Set(i, j int, p Pixel) {
	m.Pixels[Index(i, j, m.Dim)] = p
}

// Equal reports whether both images have the same dimension and contents.
func (m Image) Equal(other Image) bool {
	if m.Dim != other.Dim || len(m.Pixels) != len(other.Pixels) {
		return false
	}
	for k := range m.Pixels {
		if m.Pixels[k] != other.Pixels[k] {
			return false
		}
	}
	return true
}
