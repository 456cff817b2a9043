// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// OpenTelemetry instruments
// =============================================================================

// Metrics holds the otel instruments recorded by the run orchestrator.
//
// All Record methods are safe on a nil *Metrics.
type Metrics struct {
	// CandidatesTotal counts finished candidates by op and outcome
	// (scored, check_failed, mutated).
	CandidatesTotal metric.Int64Counter

	// CPE records every measured CPE by op and dimension.
	CPE metric.Float64Histogram

	// MeasureDuration records wall time spent inside the cycle counter.
	MeasureDuration metric.Float64Histogram

	// CheckFailuresTotal counts failed correctness checks by op and dimension.
	CheckFailuresTotal metric.Int64Counter
}

// NewMetrics registers the instruments with meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CandidatesTotal, err = meter.Int64Counter(
		"perflab_candidates_total",
		metric.WithDescription("Benchmark candidates finished, by outcome"),
		metric.WithUnit("{candidate}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create candidates_total: %w", err)
	}

	m.CPE, err = meter.Float64Histogram(
		"perflab_cpe",
		metric.WithDescription("Measured cycles per element"),
		metric.WithUnit("{cycle}"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512),
	)
	if err != nil {
		return nil, fmt.Errorf("create cpe: %w", err)
	}

	m.MeasureDuration, err = meter.Float64Histogram(
		"perflab_measure_duration_seconds",
		metric.WithDescription("Wall time spent measuring one dimension"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create measure_duration_seconds: %w", err)
	}

	m.CheckFailuresTotal, err = meter.Int64Counter(
		"perflab_check_failures_total",
		metric.WithDescription("Failed correctness checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create check_failures_total: %w", err)
	}

	return m, nil
}

// RecordCandidate counts one finished candidate.
func (m *Metrics) RecordCandidate(ctx context.Context, op, outcome string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// RecordMeasurement records one CPE and the time it took to measure.
func (m *Metrics) RecordMeasurement(ctx context.Context, op string, dim int, cpe float64, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Int("dim", dim),
	)
	m.CPE.Record(ctx, cpe, attrs)
	m.MeasureDuration.Record(ctx, took.Seconds(), attrs)
}

// RecordCheckFailure counts one failed correctness check.
func (m *Metrics) RecordCheckFailure(ctx context.Context, op string, dim int, reason string) {
	if m == nil {
		return
	}
	m.CheckFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Int("dim", dim),
		attribute.String("reason", reason),
	))
}

// =============================================================================
// Prometheus collectors
// =============================================================================

var (
	// bestScore is the best geometric-mean speedup per operation.
	// Labels: op
	bestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perflab",
		Subsystem: "score",
		Name:      "best_mean",
		Help:      "Best geometric-mean speedup per operation in the last run",
	}, []string{"op"})

	// candidateMean is the score of every scored candidate.
	// Labels: op, candidate
	candidateMean = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perflab",
		Subsystem: "score",
		Name:      "candidate_mean",
		Help:      "Geometric-mean speedup per scored candidate",
	}, []string{"op", "candidate"})

	// candidateCPE is the measured CPE of every scored candidate.
	// Labels: op, candidate, dim
	candidateCPE = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "perflab",
		Subsystem: "score",
		Name:      "candidate_cpe",
		Help:      "Measured cycles per element per candidate and dimension",
	}, []string{"op", "candidate", "dim"})

	// lastRun is the completion time of the last run.
	lastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "perflab",
		Subsystem: "run",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix time the last run completed",
	})
)

// RecordScore publishes a scored candidate's mean and CPEs.
func RecordScore(op, candidate string, dims []int, cpes []float64, mean float64) {
	candidateMean.WithLabelValues(op, candidate).Set(mean)
	for i := range cpes {
		if i < len(dims) {
			candidateCPE.WithLabelValues(op, candidate, strconv.Itoa(dims[i])).Set(cpes[i])
		}
	}
}

// RecordBestScore publishes the best mean of an operation.
func RecordBestScore(op string, mean float64) {
	bestScore.WithLabelValues(op).Set(mean)
}

// RecordRunCompleted stamps the completion time of a run.
func RecordRunCompleted(at time.Time) {
	lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric in the default Prometheus registry to
// path in text exposition format, replacing the file atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
