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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/runner"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "perflab.yaml"

var (
	// ErrInvalidConfig is returned when a loaded configuration fails
	// validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration file at path over DefaultConfig().
//
// Description:
//
//	With an empty path, DefaultFile is used if it exists in the working
//	directory and the built-in defaults otherwise. Keys absent from the
//	file keep their default values. The merged result is validated.
//
// Inputs:
//
//	path - Configuration file, or "" for the default lookup.
//
// Outputs:
//
//	PerflabConfig - The merged configuration.
//	error - Read, parse, or ErrInvalidConfig failures.
func Load(path string) (PerflabConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return cfg, cfg.Validate()
		}
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return PerflabConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return PerflabConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over cfg and validates the result.
func Parse(data []byte, cfg *PerflabConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse the config: %w", err)
	}
	return cfg.Validate()
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg PerflabConfig) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create the config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks struct tags and the cross-field rules.
//
// Every baseline table must have one entry per dimension of the matching
// set, and OptLevel must name a table that is present.
func (c PerflabConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, ok := c.Baselines[c.OptLevel]; !ok {
		return fmt.Errorf("%w: no baselines for opt_level %s", ErrInvalidConfig, c.OptLevel)
	}
	for level, table := range c.Baselines {
		for name, b := range map[string]Baselines{"rotate": table.Rotate, "blend": table.Blend, "smooth": table.Smooth} {
			if len(b.Small) != len(c.Dims.Small) {
				return fmt.Errorf("%w: %s %s has %d small baselines for %d dimensions",
					ErrInvalidConfig, level, name, len(b.Small), len(c.Dims.Small))
			}
			if len(b.Large) != len(c.Dims.Large) {
				return fmt.Errorf("%w: %s %s has %d large baselines for %d dimensions",
					ErrInvalidConfig, level, name, len(b.Large), len(c.Dims.Large))
			}
		}
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("%w: timing: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ActiveDims returns the small or large dimension set.
func (c PerflabConfig) ActiveDims() []int {
	if c.Large {
		return c.Dims.Large
	}
	return c.Dims.Small
}

// MaxDim returns the largest dimension a run touches, the odd dimension
// included.
func (c PerflabConfig) MaxDim() int {
	m := c.OddDim
	for _, d := range c.ActiveDims() {
		m = max(m, d)
	}
	return m
}

// Suites builds one runner.Suite per operation from the active table.
func (c PerflabConfig) Suites() []runner.Suite {
	table := c.Baselines[c.OptLevel]
	pick := func(b Baselines) []float64 {
		if c.Large {
			return b.Large
		}
		return b.Small
	}
	dims := c.ActiveDims()

	suites := make([]runner.Suite, 0, len(registry.Operations))
	for _, op := range registry.Operations {
		var b Baselines
		switch op {
		case registry.Rotate, registry.RotateT:
			b = table.Rotate
		case registry.Blend, registry.BlendV:
			b = table.Blend
		default:
			b = table.Smooth
		}
		suites = append(suites, runner.Suite{
			Op:        op,
			Dims:      append([]int(nil), dims...),
			Baselines: append([]float64(nil), pick(b)...),
		})
	}
	return suites
}
