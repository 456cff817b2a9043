// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle decides whether a candidate's output is correct.
//
// Every check first confirms the candidate left its input untouched by
// comparing Original against the pristine Copy. Only then is Result compared
// against an independently computed reference:
//
//	Rotate  result[dim-1-j][i] == original[i][j]          exact
//	Blend   a*src + (1-a)*background, alpha opaque        RGB within tolerance
//	Smooth  truncated mean of the in-bounds 3×3 window    exact
//
// The scan never stops early; the Verdict carries the total error count and
// the first offending pixel for diagnostics.
package oracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/perflab/services/bench/fixture"
	"github.com/AleutianAI/perflab/services/bench/pixel"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrOriginalMutated indicates the candidate wrote to its input image.
	ErrOriginalMutated = errors.New("original image has been changed")

	// ErrMismatch indicates the candidate's output differs from the reference.
	ErrMismatch = errors.New("output does not match reference")

	// ErrUnknownKind indicates an unsupported check kind.
	ErrUnknownKind = errors.New("unknown check kind")
)

// DefaultTolerance is the per-channel slack accepted by the blend check.
const DefaultTolerance = 5

// =============================================================================
// Kind
// =============================================================================

// Kind selects the reference computation used by a check.
type Kind int

const (
	// KindRotate is a 90° counter-clockwise rotation, compared exactly.
	KindRotate Kind = iota

	// KindBlend is alpha compositing over the background, compared with tolerance.
	KindBlend

	// KindSmooth is the 3×3 box average, compared exactly.
	KindSmooth
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRotate:
		return "rotate"
	case KindBlend:
		return "blend"
	case KindSmooth:
		return "smooth"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its string form.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind from its string form.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{KindRotate, KindBlend, KindSmooth} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, text)
}

// =============================================================================
// Verdict
// =============================================================================

// Mismatch describes one offending output pixel.
//
// Row and Col are the source coordinates the check iterated over; DstRow and
// DstCol locate the offending pixel in Result. They differ only for rotate.
type Mismatch struct {
	Row    int         `json:"row"`
	Col    int         `json:"col"`
	DstRow int         `json:"dst_row"`
	DstCol int         `json:"dst_col"`
	Got    pixel.Pixel `json:"got"`
	Want   pixel.Pixel `json:"want"`
}

// Verdict is the outcome of one correctness check.
type Verdict struct {
	Kind            Kind      `json:"kind"`
	Dim             int       `json:"dim"`
	Errors          int       `json:"errors"`
	First           *Mismatch `json:"first,omitempty"`
	OriginalMutated bool      `json:"original_mutated"`
}

// OK reports whether the candidate passed.
func (v Verdict) OK() bool {
	return !v.OriginalMutated && v.Errors == 0
}

// Err returns nil for a passing verdict, otherwise an error wrapping
// ErrOriginalMutated or ErrMismatch.
func (v Verdict) Err() error {
	switch {
	case v.OriginalMutated:
		return fmt.Errorf("%w: dimension %d", ErrOriginalMutated, v.Dim)
	case v.Errors > 0:
		return fmt.Errorf("%w: dimension %d, %d errors", ErrMismatch, v.Dim, v.Errors)
	default:
		return nil
	}
}

// Diagnostic renders the verdict the way the console report prints it.
//
// Returns "" for a passing verdict.
func (v Verdict) Diagnostic() string {
	if v.OriginalMutated {
		return "Error: Original image has been changed!\n"
	}
	if v.Errors == 0 || v.First == nil {
		return ""
	}

	var b strings.Builder
	m := v.First
	fmt.Fprintf(&b, "\nERROR: Dimension=%d, %d errors\n", v.Dim, v.Errors)
	if v.Kind == KindRotate {
		b.WriteString("E.g., The following two pixels should have equal value:\n")
		fmt.Fprintf(&b, "src[%d][%d].{red,green,blue,alpha} = %s\n", m.Row, m.Col, m.Want)
		fmt.Fprintf(&b, "dst[%d][%d].{red,green,blue,alpha} = %s\n", m.DstRow, m.DstCol, m.Got)
		return b.String()
	}
	b.WriteString("E.g., \n")
	fmt.Fprintf(&b, "You have dst[%d][%d].{red,green,blue,alpha} = %s\n", m.DstRow, m.DstCol, m.Got)
	fmt.Fprintf(&b, "It should be dst[%d][%d].{red,green,blue,alpha} = %s\n", m.DstRow, m.DstCol, m.Want)
	return b.String()
}

// =============================================================================
// Oracle
// =============================================================================

// Option configures an Oracle.
type Option func(*Oracle)

// WithTolerance sets the per-channel blend tolerance. Negative values are
// treated as zero.
func WithTolerance(tolerance int) Option {
	return func(o *Oracle) {
		if tolerance < 0 {
			tolerance = 0
		}
		o.tolerance = tolerance
	}
}

// Oracle runs correctness checks against fixtures.
//
// Thread Safety:
//
//	Safe for concurrent use; an Oracle holds only immutable settings.
type Oracle struct {
	tolerance int
}

// New creates an Oracle with DefaultTolerance unless overridden.
func New(opts ...Option) *Oracle {
	o := &Oracle{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Tolerance returns the blend tolerance in use.
func (o *Oracle) Tolerance() int {
	return o.tolerance
}

// Check verifies the fixture's Result for the given kind.
//
// Description:
//
//	Confirms Original still equals Copy, then scans every output pixel
//	against the reference. A mutated original short-circuits the scan and
//	is reported separately from a mismatch.
//
// Inputs:
//
//	kind - Which reference to compare against.
//	f - The fixture the candidate just ran on.
//
// Outputs:
//
//	Verdict - The outcome. Use Verdict.Err() for error-style handling.
//	error - ErrUnknownKind for an unsupported kind; nil otherwise.
func (o *Oracle) Check(kind Kind, f *fixture.Fixture) (Verdict, error) {
	v := Verdict{Kind: kind, Dim: f.Dim}
	switch kind {
	case KindRotate, KindBlend, KindSmooth:
	default:
		return v, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}

	if !f.OriginalImage().Equal(f.CopyImage()) {
		v.OriginalMutated = true
		return v, nil
	}

	switch kind {
	case KindRotate:
		o.checkRotate(f, &v)
	case KindBlend:
		o.checkBlend(f, &v)
	case KindSmooth:
		o.checkSmooth(f, &v)
	}
	return v, nil
}

func (v *Verdict) record(m Mismatch) {
	v.Errors++
	if v.First == nil {
		v.First = &m
	}
}

func (o *Oracle) checkRotate(f *fixture.Fixture, v *Verdict) {
	dim := f.Dim
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := f.Original[pixel.Index(i, j, dim)]
			got := f.Result[pixel.Index(dim-1-j, i, dim)]
			if got != want {
				v.record(Mismatch{Row: i, Col: j, DstRow: dim - 1 - j, DstCol: i, Got: got, Want: want})
			}
		}
	}
}

func (o *Oracle) checkBlend(f *fixture.Fixture, v *Verdict) {
	dim := f.Dim
	bg := pixel.Background(f.Original)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			k := pixel.Index(i, j, dim)
			want := BlendPixel(f.Original[k], bg)
			got := f.Result[k]
			if !o.withinTolerance(got, want) {
				v.record(Mismatch{Row: i, Col: j, DstRow: i, DstCol: j, Got: got, Want: want})
			}
		}
	}
}

func (o *Oracle) checkSmooth(f *fixture.Fixture, v *Verdict) {
	dim := f.Dim
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := SmoothPixel(f.Original, dim, i, j)
			got := f.Result[pixel.Index(i, j, dim)]
			if got != want {
				v.record(Mismatch{Row: i, Col: j, DstRow: i, DstCol: j, Got: got, Want: want})
			}
		}
	}
}

// withinTolerance accepts RGB channels within the tolerance and requires the
// alpha channel to be exactly opaque.
func (o *Oracle) withinTolerance(got, want pixel.Pixel) bool {
	return absDiff(got.Red, want.Red) <= o.tolerance &&
		absDiff(got.Green, want.Green) <= o.tolerance &&
		absDiff(got.Blue, want.Blue) <= o.tolerance &&
		got.Alpha == want.Alpha
}

func absDiff(a, b uint16) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

// =============================================================================
// References
// =============================================================================

// BlendPixel composites src over bg using src's alpha as coverage.
//
// Each color channel is a*src + (1-a)*bg in single precision, truncated;
// the output alpha is fully opaque.
func BlendPixel(src, bg pixel.Pixel) pixel.Pixel {
	a := float32(src.Alpha) / pixel.Max
	return pixel.Pixel{
		Red:   blendChannel(a, src.Red, bg.Red),
		Green: blendChannel(a, src.Green, bg.Green),
		Blue:  blendChannel(a, src.Blue, bg.Blue),
		Alpha: pixel.Max,
	}
}

func blendChannel(a float32, s, b uint16) uint16 {
	fg := float32(a * float32(s))
	back := float32((1 - a) * float32(b))
	return uint16(float32(fg + back))
}

// SmoothPixel returns the truncated per-channel mean of the in-bounds 3×3
// neighbourhood of (i, j) in a dim×dim image.
func SmoothPixel(src []pixel.Pixel, dim, i, j int) pixel.Pixel {
	var red, green, blue, alpha, num int
	for ii := max(i-1, 0); ii <= min(i+1, dim-1); ii++ {
		for jj := max(j-1, 0); jj <= min(j+1, dim-1); jj++ {
			p := src[pixel.Index(ii, jj, dim)]
			red += int(p.Red)
			green += int(p.Green)
			blue += int(p.Blue)
			alpha += int(p.Alpha)
			num++
		}
	}
	return pixel.Pixel{
		Red:   uint16(red / num),
		Green: uint16(green / num),
		Blue:  uint16(blue / num),
		Alpha: uint16(alpha / num),
	}
}
