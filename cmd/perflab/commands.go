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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perflab/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath       string
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	logLevel         string
	logJSON          bool

	// run
	opNames       []string
	largeInput    bool
	benchOnly     bool
	autograder    bool
	loadFile      string
	dumpFile      string
	quitAfterDump bool
	seed          int64
	optLevel      string
	jsonFile      string
	metricsFile   string
	historyDir    string
	traceExporter string
	influxURL     string
	influxOrg     string
	influxBucket  string
	gcsBucket     string
	gcsPrefix     string

	// history
	historyLimit int

	// config
	writeConfig string

	rootCmd = &cobra.Command{
		Use:   "perflab",
		Short: "Correctness-checked micro-benchmarks for image kernels",
		Long: `perflab checks every registered rotate, rotate_t, blend, blend_v and
smooth candidate against a reference oracle, measures its cycles per
element and scores it against baseline CPEs.`,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
			// Flags parsed fine; later failures are not usage errors.
			cmd.SilenceUsage = true
		},
	}

	// --- Benchmarking ---
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Check and benchmark the selected candidates",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runBenchmarks, // Defined in cmd_run.go
	}

	// --- Selection files ---
	dumpCmd = &cobra.Command{
		Use:   "dump <file>",
		Short: "Write every registered candidate of the requested operations to a selection file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE:  runDump, // Defined in cmd_select.go
	}
	selectCmd = &cobra.Command{
		Use:   "select <file>",
		Short: "Interactively pick candidates and write a selection file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE:  runSelect, // Defined in cmd_select.go
	}

	// --- History ---
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recent runs and the change in best scores",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runHistory, // Defined in cmd_history.go
	}

	// --- Utilities ---
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runConfig, // Defined in cmd_history.go
	}
)

// usageArgs reports positional argument errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"configuration file (default: ./perflab.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"output style: full, standard, minimal, machine (default: PERFLAB_PERSONALITY or auto)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON on stderr")
	rootCmd.PersistentFlags().StringArrayVarP(&opNames, "op", "o", nil,
		"operation to benchmark: rotate, rotate_t, blend, blend_v, smooth (repeatable)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	f := runCmd.Flags()
	f.BoolVarP(&largeInput, "large", "l", false, "use the large dimension set and baselines")
	f.BoolVarP(&benchOnly, "benchmark-only", "b", false, "skip correctness checks")
	f.BoolVarP(&autograder, "autograder", "g", false, "benchmark only the canonical kernel of each operation")
	f.StringVarP(&loadFile, "load", "f", "", "enable only the candidates listed in this selection file")
	f.StringVarP(&dumpFile, "dump", "d", "", "write the requested operations' candidates to this selection file")
	f.BoolVarP(&quitAfterDump, "quit", "q", false, "exit after writing the dump file")
	f.Int64VarP(&seed, "seed", "s", 0, "fixture generator seed")
	f.StringVar(&optLevel, "opt-level", "", "baseline table: O0, O1, O2 or O3")
	f.StringVar(&jsonFile, "json", "", "also write the run as JSON to this file")
	f.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	f.StringVar(&historyDir, "history", "", "record the run in the history store at this directory")
	f.StringVar(&traceExporter, "trace-exporter", "", "trace exporter: none, stdout, otlp")
	f.StringVar(&influxURL, "influx-url", "", "InfluxDB URL (token from INFLUXDB_TOKEN)")
	f.StringVar(&influxOrg, "influx-org", "", "InfluxDB organization")
	f.StringVar(&influxBucket, "influx-bucket", "", "InfluxDB bucket")
	f.StringVar(&gcsBucket, "gcs-bucket", "", "archive the run JSON to this Cloud Storage bucket")
	f.StringVar(&gcsPrefix, "gcs-prefix", "", "object prefix inside the bucket")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historyDir, "path", "", "history store directory")

	configCmd.Flags().StringVar(&writeConfig, "write", "", "write the configuration to this file instead of stdout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}
