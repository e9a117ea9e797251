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

// PersonalityLevel selects how much visual texture guardianctl emits.
type PersonalityLevel string

const (
	// PersonalityFull enables every visual element, including spinners.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and icons.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons and plain text only.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine emits stable prefix- and tab-delimited lines for
	// scripts.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality is the process-wide output configuration.
type Personality struct {
	// Level selects one of full, standard, minimal, or machine.
	Level PersonalityLevel
}

var (
	activeMu sync.RWMutex
	active   = Personality{Level: PersonalityStandard}
)

// GetPersonality reads the active personality.
func GetPersonality() Personality {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

// SetPersonality replaces the active personality.
func SetPersonality(p Personality) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = p
}

// SetPersonalityLevel changes only the level of the active personality.
func SetPersonalityLevel(lvl PersonalityLevel) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active.Level = lvl
}

// levelAliases maps flag and environment spellings onto levels.
var levelAliases = map[string]PersonalityLevel{
	"full": PersonalityFull, "f": PersonalityFull,
	"standard": PersonalityStandard, "std": PersonalityStandard, "s": PersonalityStandard,
	"minimal": PersonalityMinimal, "min": PersonalityMinimal, "m": PersonalityMinimal,
	"machine": PersonalityMachine, "quiet": PersonalityMachine, "q": PersonalityMachine,
}

// ParsePersonalityLevel maps a flag or environment value to a level. Each
// level accepts short aliases ("f", "std", "min", "q"); anything
// unrecognized falls back to standard.
func ParsePersonalityLevel(s string) PersonalityLevel {
	if lvl, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return PersonalityStandard
}

// InitPersonality picks the startup personality. GUARDIAN_PERSONALITY wins
// when set; otherwise a terminal gets standard, and piped or redirected
// output gets machine so downstream parsers see stable lines.
func InitPersonality() {
	if env := os.Getenv("GUARDIAN_PERSONALITY"); env != "" {
		SetPersonalityLevel(ParsePersonalityLevel(env))
		return
	}
	if !stdoutIsTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityStandard)
}

// stdoutIsTerminal reports whether stdout is attached to a TTY, including
// Cygwin and MSYS pseudo terminals.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive reports whether prompting the user makes sense: a real
// terminal and a non-machine level.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && stdoutIsTerminal()
}

// ShouldShowProgress reports whether spinners and progress lines are wanted.
func ShouldShowProgress() bool {
	return GetPersonality().Level != PersonalityMachine
}

// ShouldShowColors reports whether ANSI styling is wanted. The NO_COLOR
// convention (https://no-color.org) is honored regardless of level.
func ShouldShowColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return GetPersonality().Level != PersonalityMachine
}

// DefaultPersonality returns the settings in effect before InitPersonality
// runs.
func DefaultPersonality() Personality {
	return Personality{Level: PersonalityStandard}
}
