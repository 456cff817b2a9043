// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the perflab CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // headings
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconError.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func Box(title, content string) {
	p := GetPersonality()
	if p.Level == PersonalityMachine || p.Level == PersonalityMinimal {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	titleLine := Styles.Title.Render(title)
	fmt.Println(Styles.Box.Width(60).Render(titleLine + "\n" + content))
}

// WarningBox prints text in a warning-styled box
func WarningBox(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(os.Stderr, "WARN %s: %s\n", title, content)
		return
	}
	titleLine := Styles.Warning.Bold(true).Render(title)
	fmt.Println(Styles.WarningBox.Width(60).Render(titleLine + "\n" + content))
}

// CandidateStatus prints one benchmark candidate with its status.
func CandidateStatus(op, description string, status Icon, detail string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Printf("%s\t%s\t%s\t%s\n", status, op, description, detail)
	case PersonalityMinimal:
		fmt.Printf("%s %s: %s\n", status.Render(), op, description)
	default:
		if detail != "" {
			fmt.Printf("%s %s %s %s\n", status.Render(), Styles.Subtitle.Render(op), description, Styles.Muted.Render("("+detail+")"))
		} else {
			fmt.Printf("%s %s %s\n", status.Render(), Styles.Subtitle.Render(op), description)
		}
	}
}

// SelectionSummary prints the outcome of loading a selection file.
func SelectionSummary(enabled, skipped, unmatched int) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Printf("SELECTION: enabled=%d skipped=%d unmatched=%d\n", enabled, skipped, unmatched)
	default:
		fmt.Printf("%s %s  %s %s  %s %s\n",
			Styles.Success.Render(fmt.Sprintf("%d", enabled)), Styles.Muted.Render("enabled"),
			Styles.Warning.Render(fmt.Sprintf("%d", skipped)), Styles.Muted.Render("skipped"),
			Styles.Bold.Render(fmt.Sprintf("%d", unmatched)), Styles.Muted.Render("unmatched"),
		)
	}
}

// Speedup renders a speedup ratio, highlighted when it beats the baseline.
func Speedup(ratio float64) string {
	text := fmt.Sprintf("%.1f", ratio)
	if !ShouldShowColors() {
		return text
	}
	if ratio >= 1 {
		return Styles.Success.Render(text)
	}
	return Styles.Warning.Render(text)
}

// Delta renders a signed score change against a previous run.
func Delta(delta float64) string {
	text := fmt.Sprintf("%+.2f", delta)
	if !ShouldShowColors() {
		return text
	}
	switch {
	case delta > 0:
		return Styles.Success.Render(text)
	case delta < 0:
		return Styles.Error.Render(text)
	default:
		return Styles.Muted.Render(text)
	}
}
