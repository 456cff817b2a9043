// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package timing

import (
	"math"
	"sort"
)

// Stats summarizes the samples of one measurement, in cycles.
type Stats struct {
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	StdDev  float64 `json:"stddev"`
	P90     float64 `json:"p90"`
	P99     float64 `json:"p99"`
}

// CalculateStats computes summary statistics from cycle samples.
//
// Percentiles use linear interpolation between the closest ranks.
//
// Outputs:
//
//	Stats - Computed statistics.
//	error - ErrNoSamples if samples is empty.
func CalculateStats(samples []float64) (Stats, error) {
	if len(samples) == 0 {
		return Stats{}, ErrNoSamples
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	stats := Stats{
		Samples: len(samples),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Median:  percentile(sorted, 0.5),
		P90:     percentile(sorted, 0.9),
		P99:     percentile(sorted, 0.99),
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	stats.Mean = sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := s - stats.Mean
		sq += d * d
	}
	stats.StdDev = math.Sqrt(sq / float64(len(samples)))
	return stats, nil
}

// percentile returns the p-th percentile of sorted samples.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}
