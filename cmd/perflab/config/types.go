// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package config holds the perflab configuration file.
//
// The file is YAML. Every field has a built-in default so an absent file
// behaves exactly like DefaultConfig(). Baseline tables reproduce the
// reference CPE figures for the four optimisation levels.
package config

import (
	"github.com/AleutianAI/perflab/services/bench/export"
	"github.com/AleutianAI/perflab/services/bench/history"
	"github.com/AleutianAI/perflab/services/bench/telemetry"
	"github.com/AleutianAI/perflab/services/bench/timing"
)

// PerflabConfig is the root of the configuration file.
type PerflabConfig struct {
	// OptLevel picks the baseline table: O0, O1, O2 or O3.
	OptLevel string `yaml:"opt_level" validate:"required,oneof=O0 O1 O2 O3"`

	// Large selects the large dimension set and its baselines.
	Large bool `yaml:"large"`

	// Seed seeds the fixture generator.
	Seed int64 `yaml:"seed"`

	// OddDim is the extra non-power-of-two dimension every candidate is
	// checked at before each timed dimension.
	OddDim int `yaml:"odd_dim" validate:"gt=0"`

	// Tolerance is the per-channel slack allowed for blend and smooth.
	Tolerance int `yaml:"tolerance" validate:"gte=0,lte=65535"`

	// Dims lists the timed dimensions.
	Dims Dimensions `yaml:"dims"`

	// Baselines maps an optimisation level to its reference CPE tables.
	Baselines map[string]BaselineTable `yaml:"baselines" validate:"required,dive,keys,oneof=O0 O1 O2 O3,endkeys"`

	Timing    timing.Config       `yaml:"timing"`
	Logging   LoggingConfig       `yaml:"logging"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
	History   HistoryConfig       `yaml:"history"`
	Influx    export.InfluxConfig `yaml:"influx"`
	GCS       export.GCSConfig    `yaml:"gcs"`
}

// Dimensions holds the small and large dimension sets.
type Dimensions struct {
	Small []int `yaml:"small" validate:"required,min=1,dive,gt=0"`
	Large []int `yaml:"large" validate:"required,min=1,dive,gt=0"`
}

// BaselineTable holds the reference CPEs of one optimisation level.
//
// rotate_t shares the rotate figures and blend_v shares the blend figures.
type BaselineTable struct {
	Rotate Baselines `yaml:"rotate" validate:"required"`
	Blend  Baselines `yaml:"blend" validate:"required"`
	Smooth Baselines `yaml:"smooth" validate:"required"`
}

// Baselines pairs reference CPEs with the small and large dimension sets.
type Baselines struct {
	Small []float64 `yaml:"small" validate:"required,min=1,dive,gt=0"`
	Large []float64 `yaml:"large" validate:"required,min=1,dive,gt=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`

	// MetricsFile receives the Prometheus text exposition after a run.
	MetricsFile string `yaml:"metrics_file"`
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryOptions converts the file section into telemetry.Config, keeping
// the service identity from telemetry.DefaultConfig().
func (c TelemetryConfig) TelemetryOptions() telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.TraceExporter = c.TraceExporter
	cfg.MetricExporter = c.MetricExporter
	if c.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = c.OTLPEndpoint
	}
	cfg.OTLPInsecure = c.OTLPInsecure
	return cfg
}

// HistoryOptions converts the file section into history.Config.
func (c HistoryConfig) HistoryOptions() history.Config {
	cfg := history.DefaultConfig()
	if c.Path != "" {
		cfg.Path = c.Path
	}
	return cfg
}
