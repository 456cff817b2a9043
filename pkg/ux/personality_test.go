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
	"testing"
)

func TestSetPersonality_AndGet(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityMinimal, ShowHints: false})

	got := GetPersonality()
	if got.Level != PersonalityMinimal {
		t.Errorf("expected level %v, got %v", PersonalityMinimal, got.Level)
	}
	if got.ShowHints {
		t.Error("expected ShowHints false")
	}
}

func TestParsePersonalityLevel(t *testing.T) {
	tests := map[string]PersonalityLevel{
		"full":     PersonalityFull,
		"F":        PersonalityFull,
		"standard": PersonalityStandard,
		"std":      PersonalityStandard,
		"min":      PersonalityMinimal,
		"machine":  PersonalityMachine,
		"quiet":    PersonalityMachine,
		"bogus":    PersonalityStandard,
		"":         PersonalityStandard,
	}
	for in, want := range tests {
		if got := ParsePersonalityLevel(in); got != want {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitPersonality_WithEnvVar(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv("PERFLAB_PERSONALITY", "minimal")
	InitPersonality()

	if GetPersonality().Level != PersonalityMinimal {
		t.Errorf("expected PersonalityMinimal, got %v", GetPersonality().Level)
	}
}

func TestInitPersonality_NoTerminal(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv("PERFLAB_PERSONALITY", "")
	InitPersonality()

	// go test runs with stdout redirected
	if !IsTerminal(os.Stdout) && GetPersonality().Level != PersonalityMachine {
		t.Errorf("expected PersonalityMachine, got %v", GetPersonality().Level)
	}
}

func TestIsTerminal_Nil(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("nil file is not a terminal")
	}
}

func TestDefaultPersonality(t *testing.T) {
	p := DefaultPersonality()
	if p.Level != PersonalityFull || !p.ShowHints {
		t.Errorf("unexpected default %+v", p)
	}
}
