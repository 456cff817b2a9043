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
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/perflab/cmd/perflab/config"
	"github.com/AleutianAI/perflab/pkg/logging"
	"github.com/AleutianAI/perflab/pkg/ux"
	"github.com/AleutianAI/perflab/services/bench/history"
	"github.com/AleutianAI/perflab/services/bench/registry"
)

const timeLayout = "2006-01-02 15:04:05"

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	hcfg := cfg.History.HistoryOptions()
	if historyDir != "" {
		hcfg.Path = historyDir
	}
	hcfg.Logger = logging.Nop()

	store, err := history.Open(hcfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	renderHistory(cmd.OutOrStdout(), runs, ux.GetPersonality().Level)
	return nil
}

// historyRows formats one row per run: ID, start time and the best mean of
// every operation, "-" where the run did not cover it.
func historyRows(runs []history.Summary) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, s := range runs {
		row := []string{s.ID, s.StartedAt.Local().Format(timeLayout)}
		for _, op := range registry.Operations {
			if rec, ok := s.Best[op.Name()]; ok && rec.Description != "" {
				row = append(row, fmt.Sprintf("%.1f", rec.Mean))
			} else {
				row = append(row, "-")
			}
		}
		if s.SkipCheck {
			row[1] += " (unchecked)"
		}
		rows = append(rows, row)
	}
	return rows
}

func historyHeaders() []string {
	headers := []string{"Run", "Started"}
	for _, op := range registry.Operations {
		headers = append(headers, op.Name())
	}
	return headers
}

// renderHistory writes the run table followed by the best-score change
// between the two newest runs.
func renderHistory(w io.Writer, runs []history.Summary, level ux.PersonalityLevel) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet. Record one with 'perflab run --history <dir>'.")
		return
	}

	rows := historyRows(runs)
	if level == ux.PersonalityMachine {
		fmt.Fprintln(w, strings.Join(historyHeaders(), "\t"))
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
	} else {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(ux.Styles.Muted).
			Headers(historyHeaders()...).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return ux.Styles.Bold.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		fmt.Fprintln(w, t.Render())
	}

	if len(runs) < 2 {
		return
	}
	deltas := history.Compare(runs[1], runs[0])
	if len(deltas) == 0 {
		return
	}
	fmt.Fprintf(w, "\nChange since %s:\n", runs[1].ID)
	for _, d := range deltas {
		change := fmt.Sprintf("%+.2f", d.Change)
		if level != ux.PersonalityMachine {
			change = ux.Delta(d.Change)
		}
		fmt.Fprintf(w, "  %-10s%5.1f -> %5.1f  %s\n", d.Op.Name(), d.Previous.Mean, d.Current.Mean, change)
	}
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if writeConfig != "" {
		if err := config.Save(writeConfig, cfg); err != nil {
			return err
		}
		ux.Success("Configuration written to " + writeConfig)
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
