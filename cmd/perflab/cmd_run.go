// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/perflab/cmd/perflab/config"
	"github.com/AleutianAI/perflab/pkg/logging"
	"github.com/AleutianAI/perflab/pkg/ux"
	"github.com/AleutianAI/perflab/services/bench/export"
	"github.com/AleutianAI/perflab/services/bench/fixture"
	"github.com/AleutianAI/perflab/services/bench/history"
	"github.com/AleutianAI/perflab/services/bench/kernels"
	"github.com/AleutianAI/perflab/services/bench/oracle"
	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/report"
	"github.com/AleutianAI/perflab/services/bench/runner"
	"github.com/AleutianAI/perflab/services/bench/telemetry"
	"github.com/AleutianAI/perflab/services/bench/timing"
)

const largeNotice = "Large images; this will take a while (esp. if you benchmark many functions).\n\n"

// runOptions are the per-invocation choices that do not live in the
// configuration file.
type runOptions struct {
	ops        []registry.Operation
	autograder bool
	benchOnly  bool
	loadFile   string
	dumpFile   string
	quit       bool
	jsonFile   string
}

func runBenchmarks(cmd *cobra.Command, args []string) error {
	ops, err := parseOps(opNames)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Close()

	opts := runOptions{
		ops:        ops,
		autograder: autograder,
		benchOnly:  benchOnly,
		loadFile:   loadFile,
		dumpFile:   dumpFile,
		quit:       quitAfterDump,
		jsonFile:   jsonFile,
	}
	return benchmark(cmd.Context(), cmd.OutOrStdout(), cfg, opts, logger.Slog())
}

// parseOps converts -o values to operations, keeping request order and
// dropping repeats.
func parseOps(names []string) ([]registry.Operation, error) {
	seen := make(map[registry.Operation]bool, len(names))
	var ops []registry.Operation
	for _, name := range names {
		op, err := registry.ParseOperation(name)
		if err != nil {
			return nil, usageError{err}
		}
		if !seen[op] {
			seen[op] = true
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// loadConfig reads the configuration file and applies command-line
// overrides. Only flags the user actually set override the file.
func loadConfig(cmd *cobra.Command) (config.PerflabConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.PerflabConfig{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("large") {
		cfg.Large = largeInput
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("opt-level") {
		cfg.OptLevel = optLevel
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-json") {
		cfg.Logging.JSON = logJSON
	}
	if flags.Changed("trace-exporter") {
		cfg.Telemetry.TraceExporter = traceExporter
	}
	if flags.Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = metricsFile
	}
	if flags.Changed("history") {
		cfg.History.Enabled = true
		cfg.History.Path = historyDir
	}
	if flags.Changed("influx-url") {
		cfg.Influx.URL = influxURL
	}
	if flags.Changed("influx-org") {
		cfg.Influx.Org = influxOrg
	}
	if flags.Changed("influx-bucket") {
		cfg.Influx.Bucket = influxBucket
	}
	if flags.Changed("gcs-bucket") {
		cfg.GCS.Bucket = gcsBucket
	}
	if flags.Changed("gcs-prefix") {
		cfg.GCS.Prefix = gcsPrefix
	}

	if err := cfg.Validate(); err != nil {
		if flags.Changed("opt-level") || flags.Changed("log-level") || flags.Changed("trace-exporter") {
			return config.PerflabConfig{}, usageError{err}
		}
		return config.PerflabConfig{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.PerflabConfig) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.Dir,
		Service: "perflab",
	})
}

// cantOpen reports a selection file failure the way the console report
// expects and passes the error through for the exit code.
func cantOpen(out io.Writer, path string, err error) error {
	fmt.Fprintf(out, "Can't open file %s\n", path)
	return err
}

// benchmark performs one run.
//
// Description:
//
//	Registers the candidates, writes the dump file if asked, selects
//	candidates by autograder, selection file or enable-all, then runs the
//	orchestrator with the console report on out. A completed run is
//	recorded in history and pushed to the configured sinks.
//
// Inputs:
//
//	ctx - Cancels the run between measurements.
//	out - Receives the console report.
//	cfg - Validated configuration.
//	opts - Command-line choices.
//	logger - Structured logger for diagnostics on stderr.
//
// Outputs:
//
//	error - Selection file I/O, fatal measurement or setup failures.
func benchmark(ctx context.Context, out io.Writer, cfg config.PerflabConfig, opts runOptions, logger *slog.Logger) error {
	reg := registry.New()
	if err := kernels.Register(reg); err != nil {
		return err
	}

	if opts.dumpFile != "" {
		if err := reg.DumpFile(opts.dumpFile, opts.ops); err != nil {
			return cantOpen(out, opts.dumpFile, err)
		}
		logger.Info("selection dumped", slog.String("file", opts.dumpFile))
	}
	if opts.quit {
		return nil
	}

	if cfg.Large {
		fmt.Fprint(out, largeNotice)
	}

	switch {
	case opts.autograder:
		if err := reg.SelectAutograder(opts.ops, kernels.Canonical()); err != nil {
			return err
		}
	case opts.loadFile != "":
		reg.Request(opts.ops...)
		loaded, err := reg.LoadFile(opts.loadFile, logger)
		if err != nil {
			return cantOpen(out, opts.loadFile, err)
		}
		logger.Info("selection loaded",
			slog.String("file", opts.loadFile),
			slog.Int("records", loaded.Records),
			slog.Int("enabled", loaded.Enabled),
			slog.Int("skipped", len(loaded.Skipped)),
			slog.Int("unmatched", len(loaded.Unmatched)),
		)
	default:
		reg.SelectAll(opts.ops)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.TelemetryOptions())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()
	metrics, err := telemetry.NewMetrics(otel.Meter("perflab"))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	counter, err := timing.NewClockCounter(cfg.Timing, timing.WithLogger(logger))
	if err != nil {
		return err
	}
	arena, err := fixture.NewArena(cfg.MaxDim(), cfg.Seed)
	if err != nil {
		return err
	}

	console := report.NewConsole(out,
		report.WithAutograder(opts.autograder),
		report.WithStyle(!opts.autograder && ux.ShouldShowColors()),
	)
	reporters := runner.MultiReporter{console}
	var jsonRep *report.JSON
	if opts.jsonFile != "" {
		f, err := os.Create(opts.jsonFile)
		if err != nil {
			return fmt.Errorf("json report: %w", err)
		}
		defer f.Close()
		jsonRep = report.NewJSON(f)
		reporters = append(reporters, jsonRep)
	}

	r, err := runner.New(reg, arena, counter, cfg.Suites(),
		runner.WithOracle(oracle.New(oracle.WithTolerance(cfg.Tolerance))),
		runner.WithReporter(reporters),
		runner.WithLogger(logger),
		runner.WithMetrics(metrics),
		runner.WithSkipCheck(opts.benchOnly),
		runner.WithOddDim(cfg.OddDim),
	)
	if err != nil {
		return err
	}

	res, runErr := r.Run(ctx)
	if err := writeMetrics(cfg, logger); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}
	if err := console.Err(); err != nil {
		return fmt.Errorf("console report: %w", err)
	}
	if jsonRep != nil {
		if err := jsonRep.Err(); err != nil {
			return fmt.Errorf("json report: %w", err)
		}
	}

	if err := publish(ctx, cfg, res, logger); err != nil {
		return err
	}
	if cfg.History.Enabled && !opts.autograder && ux.GetPersonality().ShowHints {
		ux.Muted(fmt.Sprintf("Run %s recorded; compare with 'perflab history --path %s'",
			res.ID, cfg.History.HistoryOptions().Path))
	}
	return nil
}

func writeMetrics(cfg config.PerflabConfig, logger *slog.Logger) error {
	if cfg.Telemetry.MetricsFile == "" {
		return nil
	}
	if err := telemetry.WriteTextfile(cfg.Telemetry.MetricsFile); err != nil {
		return err
	}
	logger.Info("metrics written", slog.String("file", cfg.Telemetry.MetricsFile))
	return nil
}

// publish records a finished run in history and the export sinks. Sink
// failures are returned joined so one broken sink does not hide another.
func publish(ctx context.Context, cfg config.PerflabConfig, res *runner.Result, logger *slog.Logger) error {
	var errs []error

	if cfg.History.Enabled {
		if err := recordHistory(ctx, cfg, res, logger); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		errs = append(errs, err)
	}
	if len(sinks) > 0 {
		if err := sinks.Export(ctx, res); err != nil {
			errs = append(errs, fmt.Errorf("export: %w", err))
		}
		if err := sinks.Close(); err != nil {
			errs = append(errs, fmt.Errorf("export: %w", err))
		}
		logger.Info("run exported", slog.Int("sinks", len(sinks)), slog.String("run_id", res.ID))
	}
	return errors.Join(errs...)
}

func recordHistory(ctx context.Context, cfg config.PerflabConfig, res *runner.Result, logger *slog.Logger) error {
	hcfg := cfg.History.HistoryOptions()
	hcfg.Logger = logger
	store, err := history.Open(hcfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(ctx, res); err != nil {
		return err
	}
	logger.Info("run recorded", slog.String("run_id", res.ID), slog.String("path", store.Path()))

	prev, err := store.Previous(ctx, res.ID)
	switch {
	case errors.Is(err, history.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	for _, d := range history.Compare(prev, history.Summarize(res)) {
		logger.Info("best score change",
			slog.String("op", d.Op.Name()),
			slog.Float64("previous", d.Previous.Mean),
			slog.Float64("current", d.Current.Mean),
			slog.Float64("change", d.Change),
		)
	}
	return nil
}

// openSinks creates every export sink the configuration names.
func openSinks(ctx context.Context, cfg config.PerflabConfig) (export.Multi, error) {
	var sinks export.Multi
	var errs []error

	influx := export.InfluxConfigFromEnv(cfg.Influx)
	if influx.URL != "" {
		s, err := export.NewInfluxSink(influx)
		if err != nil {
			errs = append(errs, fmt.Errorf("influx: %w", err))
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.GCS.Bucket != "" {
		s, err := export.NewGCSSink(ctx, cfg.GCS)
		if err != nil {
			errs = append(errs, fmt.Errorf("gcs: %w", err))
		} else {
			sinks = append(sinks, s)
		}
	}
	return sinks, errors.Join(errs...)
}
