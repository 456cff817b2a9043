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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/perflab/services/bench/registry"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "O0", cfg.OptLevel)
	assert.Equal(t, 96, cfg.OddDim)
	assert.Equal(t, int64(1729), cfg.Seed)
	assert.Equal(t, 5, cfg.Tolerance)
	assert.Len(t, cfg.Baselines, 4)
}

func TestSuites_SharedTables(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OptLevel = "O2"

	suites := cfg.Suites()
	require.Len(t, suites, len(registry.Operations))

	byOp := make(map[registry.Operation][]float64)
	for _, s := range suites {
		require.NoError(t, s.Validate())
		assert.Equal(t, []int{64, 128, 256, 512}, s.Dims)
		byOp[s.Op] = s.Baselines
	}
	assert.Equal(t, []float64{3.0, 8.4, 11.1, 11.6}, byOp[registry.Rotate])
	assert.Equal(t, byOp[registry.Rotate], byOp[registry.RotateT])
	assert.Equal(t, []float64{13.1, 12.8, 12.7, 12.7}, byOp[registry.Blend])
	assert.Equal(t, byOp[registry.Blend], byOp[registry.BlendV])
	assert.Equal(t, []float64{68.2, 68.1, 68.2, 69.2}, byOp[registry.Smooth])
}

func TestSuites_Large(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Large = true

	suites := cfg.Suites()
	assert.Equal(t, []int{1024, 2048, 4096, 8192}, suites[0].Dims)
	assert.Equal(t, []float64{64.7, 81.2, 84.2, 241.1}, suites[0].Baselines)
	assert.Equal(t, 8192, cfg.MaxDim())
}

func TestMaxDim_IncludesOddDim(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 512, cfg.MaxDim())

	cfg.OddDim = 999
	assert.Equal(t, 999, cfg.MaxDim())
}

func TestSuites_CopiesSlices(t *testing.T) {
	cfg := DefaultConfig()
	suites := cfg.Suites()
	suites[0].Baselines[0] = 1000

	assert.Equal(t, 9.4, cfg.Baselines["O0"].Rotate.Small[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PerflabConfig)
	}{
		{"unknown opt level", func(c *PerflabConfig) { c.OptLevel = "O9" }},
		{"zero odd dim", func(c *PerflabConfig) { c.OddDim = 0 }},
		{"negative tolerance", func(c *PerflabConfig) { c.Tolerance = -1 }},
		{"empty dims", func(c *PerflabConfig) { c.Dims.Small = nil }},
		{"non-positive dim", func(c *PerflabConfig) { c.Dims.Large[1] = 0 }},
		{"bad level key", func(c *PerflabConfig) {
			c.Baselines["Ofast"] = c.Baselines["O0"]
		}},
		{"missing active table", func(c *PerflabConfig) { delete(c.Baselines, "O0") }},
		{"short baseline row", func(c *PerflabConfig) {
			t := c.Baselines["O1"]
			t.Blend.Small = t.Blend.Small[:3]
			c.Baselines["O1"] = t
		}},
		{"zero baseline", func(c *PerflabConfig) {
			t := c.Baselines["O3"]
			t.Smooth.Large = []float64{1, 2, 0, 4}
			c.Baselines["O3"] = t
		}},
		{"extra dimension", func(c *PerflabConfig) { c.Dims.Small = append(c.Dims.Small, 1024) }},
		{"bad log level", func(c *PerflabConfig) { c.Logging.Level = "loud" }},
		{"bad trace exporter", func(c *PerflabConfig) { c.Telemetry.TraceExporter = "jaeger" }},
		{"bad timing", func(c *PerflabConfig) { c.Timing.K = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg := DefaultConfig()
	data := []byte(`
opt_level: O3
large: true
seed: 42
timing:
  k: 5
  epsilon: 0.02
  max_samples: 50
  cache_bytes: 1024
  clear_cache: true
  compensate: false
  clock_ghz: 2.5
  pin_cpu: 0
`)
	require.NoError(t, Parse(data, &cfg))

	assert.Equal(t, "O3", cfg.OptLevel)
	assert.True(t, cfg.Large)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 96, cfg.OddDim)
	assert.Equal(t, 5, cfg.Timing.K)
	assert.False(t, cfg.Timing.Compensate)
	assert.Equal(t, 2.5, cfg.Timing.ClockGHz)
	assert.Equal(t, []float64{12.3, 17.9, 31.2, 42.9}, cfg.Suites()[0].Baselines)
}

func TestParse_Errors(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Error(t, Parse([]byte("opt_level: [O1"), &cfg))
	})

	t.Run("custom dims without baselines", func(t *testing.T) {
		cfg := DefaultConfig()
		err := Parse([]byte("dims:\n  small: [32, 64]\n"), &cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "perflab.yaml")
	want := DefaultConfig()
	want.OptLevel = "O1"
	want.OddDim = 33
	want.Telemetry.MetricsFile = "/tmp/perflab.prom"

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, want.OptLevel, got.OptLevel)
	assert.Equal(t, want.OddDim, got.OddDim)
	assert.Equal(t, want.Baselines, got.Baselines)
	assert.Equal(t, want.Telemetry.MetricsFile, got.Telemetry.MetricsFile)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_DefaultLookup(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptLevel, cfg.OptLevel)

	require.NoError(t, os.WriteFile(DefaultFile, []byte("opt_level: O2\n"), 0644))
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "O2", cfg.OptLevel)
}

func TestTelemetryOptions(t *testing.T) {
	c := TelemetryConfig{TraceExporter: "stdout", MetricExporter: "none"}
	tel := c.TelemetryOptions()
	assert.Equal(t, "perflab", tel.ServiceName)
	assert.Equal(t, "stdout", tel.TraceExporter)
	assert.Equal(t, "none", tel.MetricExporter)
	assert.NotEmpty(t, tel.OTLPEndpoint)
}

func TestHistoryOptions(t *testing.T) {
	assert.Equal(t, "/data/h", HistoryConfig{Path: "/data/h"}.HistoryOptions().Path)
	assert.NotEmpty(t, HistoryConfig{}.HistoryOptions().Path)
}
