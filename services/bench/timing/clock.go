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
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"time"
)

// overheadProbes is how many empty calls calibrate the timer overhead.
const overheadProbes = 1000

// ClockCounter is the default CycleCounter.
//
// Thread Safety:
//
//	Not safe for concurrent use. Measurements must not overlap anyway.
type ClockCounter struct {
	cfg      Config
	ghz      float64
	overhead time.Duration
	sweep    []byte
	sink     byte
	logger   *slog.Logger
	last     Stats
}

// Option configures a ClockCounter.
type Option func(*ClockCounter)

// WithLogger sets the logger used for calibration and sampling messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClockCounter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClockCounter validates cfg, resolves the clock rate and calibrates the
// timer overhead.
//
// Outputs:
//
//	*ClockCounter - The counter.
//	error - Wraps ErrInvalidConfig if cfg fails validation.
func NewClockCounter(cfg Config, opts ...Option) (*ClockCounter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &ClockCounter{
		cfg:    cfg,
		ghz:    cfg.ClockGHz,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.ghz == 0 {
		c.ghz = DetectHost().ClockGHz
	}
	if cfg.ClearCache {
		c.sweep = make([]byte, cfg.CacheBytes)
	}
	if cfg.Compensate {
		c.overhead = calibrateOverhead()
	}

	c.logger.Debug("cycle counter ready",
		slog.Float64("clock_ghz", c.ghz),
		slog.Duration("overhead", c.overhead),
		slog.Int("k", cfg.K),
		slog.Int("max_samples", cfg.MaxSamples),
	)
	return c, nil
}

// ClockGHz returns the clock rate used to convert time to cycles.
func (c *ClockCounter) ClockGHz() float64 {
	return c.ghz
}

// Overhead returns the calibrated per-call timer overhead.
func (c *ClockCounter) Overhead() time.Duration {
	return c.overhead
}

// LastStats returns the sample distribution of the last Measure call, in
// cycles.
func (c *ClockCounter) LastStats() Stats {
	return c.last
}

// Measure returns the cycle cost of one call to fn.
//
// Description:
//
//	Samples fn until the K fastest samples lie within Epsilon of the
//	fastest, or MaxSamples is reached, and converts the fastest sample to
//	cycles. The context is checked between samples.
//
// Inputs:
//
//	ctx - Cancellation between samples.
//	fn - The call to time. Called at least K times.
//
// Outputs:
//
//	float64 - Cycles for one call. May be zero or negative if the
//	overhead compensation exceeds the call itself.
//	error - The context error if cancelled before K samples exist.
func (c *ClockCounter) Measure(ctx context.Context, fn func()) (float64, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if c.cfg.PinCPU >= 0 {
		restore, err := pinToCPU(c.cfg.PinCPU)
		if err != nil {
			c.logger.Warn("cpu pinning unavailable", slog.Int("cpu", c.cfg.PinCPU), slog.String("error", err.Error()))
		} else {
			defer restore()
		}
	}

	runtime.GC()
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	best := make([]float64, 0, c.cfg.K)
	all := make([]float64, 0, c.cfg.MaxSamples)

	for len(all) < c.cfg.MaxSamples {
		if err := ctx.Err(); err != nil {
			if len(best) < c.cfg.K {
				return 0, err
			}
			break
		}

		if c.cfg.ClearCache {
			c.clearCache()
		}
		start := time.Now()
		fn()
		elapsed := time.Since(start) - c.overhead

		cycles := float64(elapsed.Nanoseconds()) * c.ghz
		all = append(all, cycles)
		best = insertBest(best, cycles, c.cfg.K)

		if len(best) == c.cfg.K && converged(best, c.cfg.Epsilon) {
			break
		}
	}

	if len(best) == 0 {
		return 0, ErrNoSamples
	}
	if stats, err := CalculateStats(all); err == nil {
		c.last = stats
	}
	c.logger.Debug("measured",
		slog.Int("samples", len(all)),
		slog.Float64("cycles", best[0]),
	)
	return best[0], nil
}

// clearCache sweeps the eviction buffer, touching one byte per cache line.
func (c *ClockCounter) clearCache() {
	var acc byte
	for i := 0; i < len(c.sweep); i += 64 {
		c.sweep[i]++
		acc += c.sweep[i]
	}
	c.sink = acc
}

// insertBest keeps best sorted ascending and at most k long.
func insertBest(best []float64, v float64, k int) []float64 {
	i := sort.SearchFloat64s(best, v)
	if i >= k {
		return best
	}
	if len(best) < k {
		best = append(best, 0)
	}
	copy(best[i+1:], best[i:len(best)-1])
	best[i] = v
	return best
}

// converged reports whether the slowest of the kept samples is within
// epsilon of the fastest.
func converged(best []float64, epsilon float64) bool {
	lo, hi := best[0], best[len(best)-1]
	if lo <= 0 {
		return hi <= 0
	}
	return hi <= (1+epsilon)*lo
}

// calibrateOverhead returns the smallest observed cost of timing an empty
// call.
func calibrateOverhead() time.Duration {
	empty := func() {}
	lowest := time.Duration(1<<63 - 1)
	for i := 0; i < overheadProbes; i++ {
		start := time.Now()
		empty()
		if d := time.Since(start); d < lowest {
			lowest = d
		}
	}
	return lowest
}
