// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders benchmark progress and results.
//
// Console reproduces the classic plain-text tables, failure diagnostics and
// best-score summary line for line. JSON emits the full run as a single
// document for tooling.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/perflab/pkg/ux"
	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/runner"
	"github.com/AleutianAI/perflab/services/bench/scoring"
)

// FatalLine is printed when a candidate produced a non-positive CPE.
const FatalLine = "Fatal Error: Non-positive CPE value..."

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithAutograder replaces the summary with the single bestscores line.
func WithAutograder(on bool) ConsoleOption {
	return func(c *Console) {
		c.autograder = on
	}
}

// WithStyle enables lipgloss styling of headings and ratios.
func WithStyle(on bool) ConsoleOption {
	return func(c *Console) {
		c.styled = on
	}
}

// Console writes the human-readable report.
//
// Thread Safety:
//
//	Not safe for concurrent use; the runner calls it from one goroutine.
type Console struct {
	w          io.Writer
	autograder bool
	styled     bool
	requested  []registry.Operation
	err        error
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{w: w}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Err returns the first write error, if any.
func (c *Console) Err() error {
	return c.err
}

func (c *Console) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.w, format, args...)
}

func (c *Console) style(s string, render func(...string) string) string {
	if !c.styled {
		return s
	}
	return render(s)
}

// OperationStarted announces the operation.
func (c *Console) OperationStarted(op registry.Operation) {
	c.requested = append(c.requested, op)
	c.printf("Benchmarking %s...\n", op.Name())
}

// EntryFinished prints the candidate's diagnostic or result table.
func (c *Console) EntryFinished(suite runner.Suite, e *runner.EntryResult) {
	if e.Verdict != nil && !e.Verdict.OK() {
		c.printf("%s", e.Verdict.Diagnostic())
		c.printf("Benchmark \"%s\" failed correctness check for dimension %d.\n", e.Description, e.FailedDim)
		if e.FailedOddDim {
			c.printf("\n")
		}
		return
	}
	if e.Score == nil && (e.Err == nil || !errors.Is(e.Err, scoring.ErrNonPositiveCPE)) {
		return
	}
	c.table(suite, e)
}

// table prints the CPE table. A non-positive CPE stops the speedup row at
// the offending dimension and prints FatalLine.
func (c *Console) table(suite runner.Suite, e *runner.EntryResult) {
	c.printf("%s\n", c.style(Heading(suite.Op, e.Description), ux.Styles.Title.Render))

	c.printf("Dim\t")
	for _, d := range suite.Dims {
		c.printf("\t%d", d)
	}
	c.printf("\tMean\n")

	c.printf("Your CPEs")
	for _, cpe := range e.CPEs {
		c.printf("\t%.1f", cpe)
	}
	c.printf("\n")

	c.printf("Baseline CPEs")
	for _, b := range suite.Baselines {
		c.printf("\t%.1f", b)
	}
	c.printf("\n")

	c.printf("Speedup\t")
	for i, cpe := range e.CPEs {
		if !(cpe > 0) {
			c.printf("%s\n", c.style(FatalLine, ux.Styles.Error.Render))
			return
		}
		c.printf("\t%s", c.ratio(suite.Baselines[i]/cpe))
	}
	mean := 0.0
	if e.Score != nil {
		mean = e.Score.Mean
	}
	c.printf("\t%s", c.ratio(mean))
	c.printf("\n\n")
}

func (c *Console) ratio(r float64) string {
	if c.styled {
		return ux.Speedup(r)
	}
	return fmt.Sprintf("%.1f", r)
}

// RunFinished prints the best-score summary, or the bestscores line in
// autograder mode.
func (c *Console) RunFinished(res *runner.Result) {
	if c.autograder {
		c.printf("%s\n", BestScoresLine(res))
	} else {
		c.printf("%s\n", c.style("Summary of Your Best Scores:", ux.Styles.Bold.Render))
		for _, op := range c.requested {
			best := res.Best(op)
			c.printf("  %-10s%3.1f (%s)\n", op.Title()+":", best.Mean, best.Description)
		}
	}
	c.printf("\n")
}

// Heading returns the table heading for a candidate of op.
func Heading(op registry.Operation, description string) string {
	switch op {
	case registry.Blend, registry.BlendV:
		return fmt.Sprintf("%s,  version \"%s\":", op.Title(), description)
	case registry.Smooth:
		return fmt.Sprintf("%s: Version = %s:", op.Title(), description)
	default:
		return fmt.Sprintf("%s, version \"%s\":", op.Title(), description)
	}
}

// BestScoresLine returns the machine-readable autograder line. Operations
// that were not run score 0.0.
func BestScoresLine(res *runner.Result) string {
	var b strings.Builder
	b.WriteString("bestscores:")
	for _, op := range registry.Operations {
		fmt.Fprintf(&b, "%.1f:", res.Best(op).Mean)
	}
	return b.String()
}
