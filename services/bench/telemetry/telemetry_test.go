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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_NilContext(t *testing.T) {
	_, err := Init(nil, DefaultConfig())
	if !errors.Is(err, ErrNilContext) {
		t.Fatalf("Init(nil) error = %v, want ErrNilContext", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "zipkin"
	cfg.MetricExporter = "none"

	_, err := Init(context.Background(), cfg)
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("Init() error = %v, want ErrUnknownExporter", err)
	}
}

func TestInit_None(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_StdoutTraces(t *testing.T) {
	var buf strings.Builder
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"
	cfg.Output = &buf

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, span := StartSpan(context.Background(), "perflab.test", "Test.Span")
	if !span.SpanContext().IsValid() {
		t.Error("expected valid span context")
	}
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Test.Span") {
		t.Errorf("stdout exporter output missing span: %q", buf.String())
	}
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordError(span, errors.New("boom"), attribute.Int("dim", 96))
	AddSpanEvent(span, "checked")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) != 2 {
		t.Errorf("events = %d, want 2 (exception + checked)", len(spans[0].Events()))
	}

	// Nil inputs are no-ops.
	RecordError(nil, errors.New("x"))
	RecordError(span, nil)
	SetSpanOK(nil)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordCandidate(context.Background(), "rotate", "scored")
	m.RecordMeasurement(context.Background(), "rotate", 64, 1.5, time.Millisecond)
	m.RecordCheckFailure(context.Background(), "rotate", 96, "mismatch")
}

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.RecordCandidate(context.Background(), "smooth", "scored")
	m.RecordMeasurement(context.Background(), "smooth", 128, 42, time.Second)
}

func TestWriteTextfile(t *testing.T) {
	RecordScore("rotate", "naive_rotate", []int{64, 128}, []float64{9.5, 17.0}, 1.02)
	RecordBestScore("rotate", 1.02)
	RecordRunCompleted(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "perflab.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`perflab_score_best_mean{op="rotate"} 1.02`,
		`perflab_score_candidate_cpe{candidate="naive_rotate",dim="128",op="rotate"} 17`,
		`perflab_run_last_completed_timestamp_seconds 1.7e+09`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
