// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring turns cycle counts into the numbers a run is judged by.
//
//	CPE      = cycles / dim²
//	ratio[i] = baseline[i] / CPE[i]
//	score    = (ratio[0] * ... * ratio[n-1]) ^ (1/n)
//
// A CPE that is zero or negative means the cycle counter itself is broken;
// Ratios refuses it with ErrNonPositiveCPE and callers treat that as fatal.
package scoring

import (
	"errors"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNonPositiveCPE indicates a measured CPE <= 0.
	ErrNonPositiveCPE = errors.New("non-positive CPE value")

	// ErrLengthMismatch indicates baselines and CPEs differ in length.
	ErrLengthMismatch = errors.New("baseline and CPE counts differ")

	// ErrNoDimensions indicates an empty ratio set.
	ErrNoDimensions = errors.New("no dimensions to score")
)

// -----------------------------------------------------------------------------
// Arithmetic
// -----------------------------------------------------------------------------

// CPE returns cycles per element for a dim×dim image.
func CPE(cycles float64, dim int) float64 {
	d := float64(dim)
	return cycles / (d * d)
}

// Ratios computes baseline[i]/cpes[i] for every dimension.
//
// Outputs:
//
//	[]float64 - Per-dimension speedup ratios.
//	error - ErrLengthMismatch, ErrNoDimensions, or ErrNonPositiveCPE naming
//	the first offending index.
func Ratios(baselines, cpes []float64) ([]float64, error) {
	if len(baselines) != len(cpes) {
		return nil, fmt.Errorf("%w: %d baselines, %d CPEs", ErrLengthMismatch, len(baselines), len(cpes))
	}
	if len(cpes) == 0 {
		return nil, ErrNoDimensions
	}

	ratios := make([]float64, len(cpes))
	for i, cpe := range cpes {
		if !(cpe > 0) {
			return nil, fmt.Errorf("%w: index %d, CPE %g", ErrNonPositiveCPE, i, cpe)
		}
		ratios[i] = baselines[i] / cpe
	}
	return ratios, nil
}

// GeometricMean returns the nth root of the product of ratios.
func GeometricMean(ratios []float64) (float64, error) {
	if len(ratios) == 0 {
		return 0, ErrNoDimensions
	}
	prod := 1.0
	for _, r := range ratios {
		prod *= r
	}
	return math.Pow(prod, 1.0/float64(len(ratios))), nil
}

// -----------------------------------------------------------------------------
// Score
// -----------------------------------------------------------------------------

// Score is the scored outcome of one candidate across all dimensions.
type Score struct {
	Dims      []int     `json:"dims"`
	CPEs      []float64 `json:"cpes"`
	Baselines []float64 `json:"baselines"`
	Ratios    []float64 `json:"ratios"`
	Mean      float64   `json:"mean"`
}

// Compute scores a candidate from its measured CPEs.
//
// Inputs:
//
//	dims - Configured dimensions, for reporting.
//	baselines - Baseline CPE per dimension.
//	cpes - Measured CPE per dimension.
//
// Outputs:
//
//	Score - Ratios and geometric mean.
//	error - Any error from Ratios or GeometricMean.
func Compute(dims []int, baselines, cpes []float64) (Score, error) {
	ratios, err := Ratios(baselines, cpes)
	if err != nil {
		return Score{}, err
	}
	mean, err := GeometricMean(ratios)
	if err != nil {
		return Score{}, err
	}
	return Score{
		Dims:      append([]int(nil), dims...),
		CPEs:      append([]float64(nil), cpes...),
		Baselines: append([]float64(nil), baselines...),
		Ratios:    ratios,
		Mean:      mean,
	}, nil
}

// -----------------------------------------------------------------------------
// Record
// -----------------------------------------------------------------------------

// Record is the best score seen for one operation.
//
// The zero value is an empty record with Mean 0. Mean never decreases.
type Record struct {
	Mean        float64 `json:"mean"`
	Description string  `json:"description"`
}

// Offer replaces the record if mean is strictly greater than the current
// best, and reports whether it did.
func (r *Record) Offer(mean float64, description string) bool {
	if mean > r.Mean {
		r.Mean = mean
		r.Description = description
		return true
	}
	return false
}
