// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package timing measures how many cycles one invocation of a kernel costs.
//
// The orchestrator only sees the CycleCounter interface. ClockCounter is the
// default implementation, a K-best scheme:
//
//	repeat
//	    clear cache (optional)
//	    t = wall time of fn()  - call overhead (optional)
//	    keep the K smallest t
//	until the K smallest agree within Epsilon or MaxSamples is reached
//	cycles = smallest t × clock rate
//
// Sampling runs on a locked OS thread with the garbage collector paused and,
// on Linux, pinned to a single CPU when PinCPU is set.
package timing

import (
	"context"
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig indicates an invalid timing configuration.
	ErrInvalidConfig = errors.New("invalid timing configuration")

	// ErrNoSamples indicates that no samples were collected.
	ErrNoSamples = errors.New("no samples collected")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// CycleCounter returns the calibrated cycle cost of one call to fn.
//
// Implementations may call fn many times. The result is non-negative for a
// healthy counter; callers treat zero or negative values as a broken counter.
type CycleCounter interface {
	Measure(ctx context.Context, fn func()) (float64, error)
}

// StatsReporter is implemented by counters that expose the sample
// distribution behind their last Measure call.
type StatsReporter interface {
	LastStats() Stats
}

// CounterFunc adapts an ordinary function to the CycleCounter interface.
type CounterFunc func(ctx context.Context, fn func()) (float64, error)

// Measure calls f(ctx, fn).
func (f CounterFunc) Measure(ctx context.Context, fn func()) (float64, error) {
	return f(ctx, fn)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config controls ClockCounter sampling.
//
// Use DefaultConfig() and override fields as needed.
type Config struct {
	// K is how many of the fastest samples must agree. Default: 3
	K int `yaml:"k" json:"k"`

	// Epsilon is the relative spread allowed between the K fastest samples.
	// Default: 0.01
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`

	// MaxSamples caps the number of samples per measurement. Default: 20
	MaxSamples int `yaml:"max_samples" json:"max_samples"`

	// CacheBytes is the size of the buffer swept to evict caches before
	// every sample. Default: 64 MiB
	CacheBytes int `yaml:"cache_bytes" json:"cache_bytes"`

	// ClearCache enables the cache sweep. Default: true
	ClearCache bool `yaml:"clear_cache" json:"clear_cache"`

	// Compensate subtracts the measured timer overhead. Default: true
	Compensate bool `yaml:"compensate" json:"compensate"`

	// ClockGHz converts nanoseconds to cycles. Zero detects the rate from
	// the host, falling back to 1.0.
	ClockGHz float64 `yaml:"clock_ghz" json:"clock_ghz"`

	// PinCPU pins sampling to one CPU on Linux. Negative disables pinning.
	// Default: -1
	PinCPU int `yaml:"pin_cpu" json:"pin_cpu"`
}

// DefaultConfig returns the default sampling configuration.
func DefaultConfig() Config {
	return Config{
		K:          3,
		Epsilon:    0.01,
		MaxSamples: 20,
		CacheBytes: 1 << 26,
		ClearCache: true,
		Compensate: true,
		PinCPU:     -1,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.K <= 0 {
		return fmt.Errorf("%w: k must be positive", ErrInvalidConfig)
	}
	if c.MaxSamples < c.K {
		return fmt.Errorf("%w: max_samples %d is below k %d", ErrInvalidConfig, c.MaxSamples, c.K)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("%w: epsilon must be non-negative", ErrInvalidConfig)
	}
	if c.ClearCache && c.CacheBytes <= 0 {
		return fmt.Errorf("%w: cache_bytes must be positive when clear_cache is set", ErrInvalidConfig)
	}
	if c.ClockGHz < 0 {
		return fmt.Errorf("%w: clock_ghz must be non-negative", ErrInvalidConfig)
	}
	return nil
}
