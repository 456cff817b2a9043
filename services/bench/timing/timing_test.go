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
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CacheBytes = 1 << 16
	cfg.ClockGHz = 2.0
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"zero k", func(c *Config) { c.K = 0 }, false},
		{"samples below k", func(c *Config) { c.MaxSamples = 2 }, false},
		{"negative epsilon", func(c *Config) { c.Epsilon = -1 }, false},
		{"no cache buffer", func(c *Config) { c.CacheBytes = 0 }, false},
		{"no cache buffer without clearing", func(c *Config) { c.CacheBytes = 0; c.ClearCache = false }, true},
		{"negative clock", func(c *Config) { c.ClockGHz = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestClockCounter_Measure(t *testing.T) {
	c, err := NewClockCounter(testConfig())
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.ClockGHz())

	calls := 0
	cycles, err := c.Measure(context.Background(), func() {
		calls++
		time.Sleep(200 * time.Microsecond)
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, calls, 3)
	assert.LessOrEqual(t, calls, 20)
	// 200µs at 2 GHz is 400k cycles; sleeps only ever overshoot.
	assert.Greater(t, cycles, 300_000.0)

	stats := c.LastStats()
	assert.Equal(t, calls, stats.Samples)
	assert.Equal(t, cycles, stats.Min)
}

func TestClockCounter_Cancelled(t *testing.T) {
	c, err := NewClockCounter(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Measure(ctx, func() {})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClockCounter_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.K = -1
	_, err := NewClockCounter(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInsertBest(t *testing.T) {
	var best []float64
	for _, v := range []float64{9, 4, 7, 1, 8, 3} {
		best = insertBest(best, v, 3)
	}
	assert.Equal(t, []float64{1, 3, 4}, best)
}

func TestConverged(t *testing.T) {
	assert.True(t, converged([]float64{100, 100.5, 101}, 0.01))
	assert.False(t, converged([]float64{100, 100.5, 102}, 0.01))
	assert.True(t, converged([]float64{-5, -1, 0}, 0.01))
}

func TestCounterFunc(t *testing.T) {
	var c CycleCounter = CounterFunc(func(ctx context.Context, fn func()) (float64, error) {
		fn()
		return 42, nil
	})
	ran := false
	got, err := c.Measure(context.Background(), func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 42.0, got)
}

func TestCalculateStats(t *testing.T) {
	stats, err := CalculateStats([]float64{4, 1, 3, 2, 5})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Samples)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 5.0, stats.Max)
	assert.Equal(t, 3.0, stats.Mean)
	assert.Equal(t, 3.0, stats.Median)
	assert.InDelta(t, 1.41421356, stats.StdDev, 1e-6)
	assert.InDelta(t, 4.6, stats.P90, 1e-9)

	_, err = CalculateStats(nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestParseCPUInfoGHz(t *testing.T) {
	info := "processor\t: 0\nmodel name\t: Test CPU\ncpu MHz\t\t: 2400.000\n"
	ghz, ok := parseCPUInfoGHz(strings.NewReader(info))
	require.True(t, ok)
	assert.InDelta(t, 2.4, ghz, 1e-9)

	_, ok = parseCPUInfoGHz(strings.NewReader("processor\t: 0\n"))
	assert.False(t, ok)

	_, ok = parseCPUInfoGHz(strings.NewReader("cpu MHz\t: n/a\n"))
	assert.False(t, ok)
}

func TestDetectHost(t *testing.T) {
	h := DetectHost()
	assert.NotEmpty(t, h.Arch)
	assert.Greater(t, h.NumCPU, 0)
	assert.Greater(t, h.ClockGHz, 0.0)
	assert.Equal(t, h, DetectHost())
}
