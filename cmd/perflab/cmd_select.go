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
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perflab/pkg/logging"
	"github.com/AleutianAI/perflab/pkg/ux"
	"github.com/AleutianAI/perflab/services/bench/kernels"
	"github.com/AleutianAI/perflab/services/bench/registry"
)

// ErrNotInteractive is returned by select when stdin is not a terminal.
var ErrNotInteractive = errors.New("select needs an interactive terminal; use 'perflab dump' and edit the file instead")

// runDump writes every registered candidate of the requested operations,
// every operation when none is requested.
func runDump(cmd *cobra.Command, args []string) error {
	ops, err := parseOps(opNames)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		ops = registry.Operations
	}

	reg := registry.New()
	if err := kernels.Register(reg); err != nil {
		return err
	}
	path := args[0]
	if err := reg.DumpFile(path, ops); err != nil {
		return cantOpen(cmd.OutOrStdout(), path, err)
	}

	n := 0
	for _, op := range ops {
		n += reg.Len(op)
	}
	ux.Success(fmt.Sprintf("Wrote %d candidates to %s", n, path))
	return nil
}

// selectionChoice is one option in the select form.
type selectionChoice struct {
	Op          registry.Operation
	Description string
}

// selectionOptions builds one form option per registered candidate of ops,
// pre-selecting the enabled ones.
func selectionOptions(reg *registry.Registry, ops []registry.Operation) []huh.Option[selectionChoice] {
	var options []huh.Option[selectionChoice]
	for _, op := range ops {
		for _, e := range reg.Entries(op) {
			label := fmt.Sprintf("%-9s %s", op.Name(), e.Description)
			options = append(options,
				huh.NewOption(label, selectionChoice{Op: op, Description: e.Description}).Selected(e.Enabled))
		}
	}
	return options
}

// applySelection enables exactly the chosen candidates in a fresh
// registry and returns how many entries were enabled.
func applySelection(reg *registry.Registry, chosen []selectionChoice) int {
	n := 0
	for _, c := range chosen {
		n += reg.Enable(c.Op, c.Description)
	}
	return n
}

// runSelect shows a multi-select of every candidate and writes the chosen
// ones as a selection file. An existing file pre-selects its entries.
func runSelect(cmd *cobra.Command, args []string) error {
	if !ux.IsTerminal(os.Stdin) {
		return ErrNotInteractive
	}
	ops, err := parseOps(opNames)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		ops = registry.Operations
	}
	path := args[0]

	current := registry.New()
	if err := kernels.Register(current); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := current.LoadFile(path, logging.Nop()); err != nil {
			return cantOpen(cmd.OutOrStdout(), path, err)
		}
	}

	var chosen []selectionChoice
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[selectionChoice]().
				Title("Candidates to benchmark").
				Description("space toggles, enter confirms").
				Options(selectionOptions(current, ops)...).
				Height(20).
				Value(&chosen),
		),
	)
	if err := form.RunWithContext(cmd.Context()); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			ux.Warning("Selection aborted; nothing written")
			return nil
		}
		return err
	}

	next := registry.New()
	if err := kernels.Register(next); err != nil {
		return err
	}
	enabled := applySelection(next, chosen)

	f, err := os.Create(path)
	if err != nil {
		return cantOpen(cmd.OutOrStdout(), path, fmt.Errorf("%w: %v", registry.ErrSelectionIO, err))
	}
	if err := next.DumpEnabled(f, ops); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", registry.ErrSelectionIO, path, err)
	}

	ux.SelectionSummary(enabled, 0, 0)
	ux.Success(fmt.Sprintf("Wrote %s; run it with 'perflab run -f %s'", path, path))
	return nil
}
