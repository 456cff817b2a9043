// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pixel

import (
	"testing"
	"unsafe"
)

func TestPixel_Size(t *testing.T) {
	if got := unsafe.Sizeof(Pixel{}); got != Size {
		t.Fatalf("sizeof(Pixel) = %d, want %d", got, Size)
	}
}

func TestPixel_String(t *testing.T) {
	p := Pixel{Red: 1, Green: 2, Blue: 3, Alpha: 65535}
	if got := p.String(); got != "{1,2,3,65535}" {
		t.Errorf("String() = %q", got)
	}
}

func TestIndex(t *testing.T) {
	tests := []struct {
		i, j, dim, want int
	}{
		{0, 0, 4, 0},
		{0, 3, 4, 3},
		{1, 0, 4, 4},
		{3, 3, 4, 15},
		{95, 95, 96, 9215},
	}
	for _, tt := range tests {
		if got := Index(tt.i, tt.j, tt.dim); got != tt.want {
			t.Errorf("Index(%d,%d,%d) = %d, want %d", tt.i, tt.j, tt.dim, got, tt.want)
		}
	}
}

func TestBackground(t *testing.T) {
	src := []Pixel{{Red: 10, Green: 20, Blue: 30, Alpha: 7}, {Red: 1}}
	bg := Background(src)
	if bg != (Pixel{Red: 10, Green: 20, Blue: 30, Alpha: Max}) {
		t.Errorf("Background() = %v", bg)
	}
	if src[0].Alpha != 7 {
		t.Error("Background() mutated its source")
	}
	if Background(nil).Alpha != Max {
		t.Error("Background(nil) should be opaque")
	}
}

func TestImage_SetAtEqual(t *testing.T) {
	a := Image{Dim: 2, Pixels: make([]Pixel, 4)}
	b := Image{Dim: 2, Pixels: make([]Pixel, 4)}
	a.Set(1, 0, Pixel{Red: 9})
	if a.At(1, 0).Red != 9 || a.Pixels[2].Red != 9 {
		t.Fatal("Set/At disagree with row-major layout")
	}
	if a.Equal(b) {
		t.Error("images should differ")
	}
	b.Set(1, 0, Pixel{Red: 9})
	if !a.Equal(b) {
		t.Error("images should be equal")
	}
	if a.Equal(Image{Dim: 3, Pixels: make([]Pixel, 9)}) {
		t.Error("different dims should not be equal")
	}
}
