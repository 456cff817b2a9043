// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "perflab", Output: &buf})
	defer logger.Close()

	logger.Info("benchmarking", "op", "rotate")

	out := buf.String()
	if !strings.Contains(out, "benchmarking") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "op=rotate") {
		t.Errorf("output missing attribute: %q", out)
	}
	if !strings.Contains(out, "service=perflab") {
		t.Errorf("output missing service: %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf})
	logger.Warn("skipped line", "line", 3)

	if !strings.Contains(buf.String(), `"msg":"skipped line"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below Warn were not filtered: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("Warn+ messages missing: %q", out)
	}
}

func TestLogger_QuietDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})
	logger.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})
	child := logger.With("candidate", "naive_rotate")
	child.Info("scored")

	if !strings.Contains(buf.String(), "candidate=naive_rotate") {
		t.Errorf("child attribute missing: %q", buf.String())
	}
}

func TestLogger_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "bench", Quiet: true})
	logger.Info("to file", "dim", 96)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "bench_*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"dim":96`) {
		t.Errorf("log file content = %q", data)
	}

	// Second Close is a no-op.
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMultiHandler_Handle(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h)
	logger.Info("hello")

	if !strings.Contains(a.String(), "hello") {
		t.Errorf("text handler missing record: %q", a.String())
	}
	if b.Len() != 0 {
		t.Errorf("error-level handler received info record: %q", b.String())
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("multiHandler should be enabled when any handler is")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}
