// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel defines how rich CLI status output is.
//
// Benchmark tables are never styled beyond color; the level only governs
// the status lines around them.
type PersonalityLevel string

const (
	// PersonalityFull enables colors, icons and boxes.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and icons but no boxes.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons and plain text.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs plain text suitable for scripting and parsing.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the current UX configuration.
type Personality struct {
	// Level controls overall richness (full, standard, minimal, machine).
	Level PersonalityLevel

	// ShowHints prints follow-up suggestions after commands, such as the
	// history command after a recorded run.
	ShowHints bool
}

var (
	currentPersonality = DefaultPersonality()
	personalityMu      sync.RWMutex
)

// GetPersonality returns the current personality settings
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality updates the current personality settings
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel updates just the personality level
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// ParsePersonalityLevel converts a string to PersonalityLevel
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(s) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality initializes personality from PERFLAB_PERSONALITY, falling
// back to machine output when stdout is not a terminal.
func InitPersonality() {
	if envLevel := os.Getenv("PERFLAB_PERSONALITY"); envLevel != "" {
		SetPersonalityLevel(ParsePersonalityLevel(envLevel))
		return
	}
	if !IsTerminal(os.Stdout) {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityFull)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive returns true if interactive prompts may be shown.
func IsInteractive() bool {
	p := GetPersonality()
	return p.Level != PersonalityMachine && IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// ShouldShowColors returns true if styled output is wanted.
func ShouldShowColors() bool {
	return GetPersonality().Level != PersonalityMachine
}

// DefaultPersonality returns the default personality settings
func DefaultPersonality() Personality {
	return Personality{
		Level:     PersonalityFull,
		ShowHints: true,
	}
}
