// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package config

import (
	"github.com/AleutianAI/perflab/services/bench/export"
	"github.com/AleutianAI/perflab/services/bench/fixture"
	"github.com/AleutianAI/perflab/services/bench/history"
	"github.com/AleutianAI/perflab/services/bench/oracle"
	"github.com/AleutianAI/perflab/services/bench/telemetry"
	"github.com/AleutianAI/perflab/services/bench/timing"
)

// DefaultOptLevel is the baseline table used when none is configured.
const DefaultOptLevel = "O0"

// DefaultOddDim is the odd dimension candidates are checked at.
const DefaultOddDim = 96

var (
	smallDims = []int{64, 128, 256, 512}
	largeDims = []int{1024, 2048, 4096, 8192}
)

// DefaultBaselines returns the reference CPE tables for O0..O3.
func DefaultBaselines() map[string]BaselineTable {
	return map[string]BaselineTable{
		"O0": {
			Rotate: Baselines{
				Small: []float64{9.4, 17.5, 46.1, 51.7},
				Large: []float64{64.7, 81.2, 84.2, 241.1},
			},
			Blend: Baselines{
				Small: []float64{42.7, 42.5, 42.4, 42.6},
				Large: []float64{44.1, 43.4, 43.7, 43.6},
			},
			Smooth: Baselines{
				Small: []float64{313.2, 315.3, 318.5, 324.9},
				Large: []float64{326.1, 325.6, 325.6, 326.6},
			},
		},
		"O1": {
			Rotate: Baselines{
				Small: []float64{3.0, 8.5, 11.0, 11.6},
				Large: []float64{11.8, 17.5, 30.9, 44.5},
			},
			Blend: Baselines{
				Small: []float64{14.3, 14.0, 13.9, 13.9},
				Large: []float64{14.6, 14.7, 14.7, 14.8},
			},
			Smooth: Baselines{
				Small: []float64{128.9, 129.7, 130.0, 131.5},
				Large: []float64{132.4, 133.7, 132.7, 133.1},
			},
		},
		"O2": {
			Rotate: Baselines{
				Small: []float64{3.0, 8.4, 11.1, 11.6},
				Large: []float64{11.8, 17.7, 31.2, 44.4},
			},
			Blend: Baselines{
				Small: []float64{13.1, 12.8, 12.7, 12.7},
				Large: []float64{12.9, 13.2, 13.3, 13.3},
			},
			Smooth: Baselines{
				Small: []float64{68.2, 68.1, 68.2, 69.2},
				Large: []float64{69.8, 70.5, 70.3, 70.3},
			},
		},
		"O3": {
			Rotate: Baselines{
				Small: []float64{3.2, 8.5, 10.8, 11.4},
				Large: []float64{12.3, 17.9, 31.2, 42.9},
			},
			Blend: Baselines{
				Small: []float64{13.0, 12.8, 12.7, 12.7},
				Large: []float64{12.8, 13.4, 13.3, 13.4},
			},
			Smooth: Baselines{
				Small: []float64{86.5, 86.9, 87.6, 91.2},
				Large: []float64{91.8, 91.6, 91.5, 92.5},
			},
		},
	}
}

// DefaultConfig returns the built-in configuration.
//
// Telemetry and history paths pick up their environment overrides here, so a
// file that omits those sections still honours OTEL_* and PERFLAB_* variables.
func DefaultConfig() PerflabConfig {
	tel := telemetry.DefaultConfig()
	return PerflabConfig{
		OptLevel:  DefaultOptLevel,
		Seed:      fixture.DefaultSeed,
		OddDim:    DefaultOddDim,
		Tolerance: oracle.DefaultTolerance,
		Dims: Dimensions{
			Small: append([]int(nil), smallDims...),
			Large: append([]int(nil), largeDims...),
		},
		Baselines: DefaultBaselines(),
		Timing:    timing.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  tel.TraceExporter,
			MetricExporter: tel.MetricExporter,
			OTLPEndpoint:   tel.OTLPEndpoint,
			OTLPInsecure:   tel.OTLPInsecure,
		},
		History: HistoryConfig{
			Path:    history.DefaultConfig().Path,
		},
		Influx: export.InfluxConfigFromEnv(export.InfluxConfig{}),
	}
}
