// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the guardianctl CLI.
// Output degrades by personality level: lipgloss styling at full and
// standard, bare icons at minimal, stable prefix- and tab-delimited lines
// at machine so piped output stays parseable.
package ux

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Gateway palette: Aleutian teal accents plus conventional verdict colors.
var (
	ColorBrand    = lipgloss.Color("#2CD7C7")
	ColorBrandDim = lipgloss.Color("#16858E")
	ColorInk      = lipgloss.Color("#2C4A54")

	ColorSafe    = lipgloss.Color("#2CD7C7")
	ColorCaution = lipgloss.Color("#F4D03F")
	ColorFlagged = lipgloss.Color("#E74C3C")
)

// styleSet groups the pre-built lipgloss styles the CLI shares.
type styleSet struct {
	Title, Bold, Muted, Accent, Success, Warning, Error, Highlight lipgloss.Style
}

// Styles maps the palette onto ready-to-use styles.
var Styles = styleSet{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorBrand),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorInk),
	Accent:    lipgloss.NewStyle().Foreground(ColorBrandDim),
	Success:   lipgloss.NewStyle().Foreground(ColorSafe),
	Warning:   lipgloss.NewStyle().Foreground(ColorCaution),
	Error:     lipgloss.NewStyle().Foreground(ColorFlagged),
	Highlight: lipgloss.NewStyle().Foreground(ColorBrand).Bold(true),
}

// Icon is a status glyph with meaning-aware rendering.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// iconStyles pairs the semantic icons with their verdict colors.
var iconStyles = map[Icon]lipgloss.Style{
	IconSuccess: Styles.Success,
	IconWarning: Styles.Warning,
	IconError:   Styles.Error,
}

// Render returns the icon styled for its meaning; icons without a semantic
// style pass through unstyled.
func (i Icon) Render() string {
	if st, ok := iconStyles[i]; ok {
		return st.Render(string(i))
	}
	return string(i)
}

// Title prints a styled heading. Suppressed in machine mode.
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// statusLine renders one leveled message. Machine mode writes the stable
// "PREFIX: text" form to w; the other levels style it for a human.
func statusLine(w *os.File, prefix string, icon Icon, style lipgloss.Style, text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(w, "%s: %s\n", prefix, text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", icon.Render(), text)
	default:
		fmt.Printf("%s %s\n", icon.Render(), style.Render(text))
	}
}

// Success prints a success message. Machine mode emits an "OK:" line on
// stdout.
func Success(text string) { statusLine(os.Stdout, "OK", IconSuccess, Styles.Success, text) }

// Warning prints a warning. Machine mode emits a "WARN:" line on stderr so
// scripted callers can separate it from result output.
func Warning(text string) { statusLine(os.Stderr, "WARN", IconWarning, Styles.Warning, text) }

// Error prints an error. Machine mode emits an "ERROR:" line on stderr.
func Error(text string) { statusLine(os.Stderr, "ERROR", IconError, Styles.Error, text) }

// Info prints an informational line. Machine mode prints it unadorned.
func Info(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Println(text)
	default:
		fmt.Printf("%s %s\n", Styles.Accent.Render("│"), text)
	}
}

// Muted prints secondary text. Suppressed in machine mode.
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Verdict prints the headline line for a content check. Machine mode emits a
// tab-separated record with a stable SAFE/UNSAFE first field.
func Verdict(safe bool, category, reason string) {
	p := GetPersonality()
	if p.Level == PersonalityMachine {
		status := "UNSAFE"
		if safe {
			status = "SAFE"
		}
		fmt.Printf("%s\t%s\t%s\n", status, category, reason)
		return
	}
	if safe {
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render("safe"))
		return
	}
	line := fmt.Sprintf("%s %s", IconError.Render(), Styles.Error.Render("unsafe"))
	if category != "" {
		line += " " + Styles.Bold.Render(category)
	}
	if reason != "" && p.Level != PersonalityMinimal {
		line += " " + Styles.Muted.Render("("+reason+")")
	}
	fmt.Println(line)
}

// DetectorStatus prints one detector's contribution to a verdict.
func DetectorStatus(name string, status Icon, detail string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Printf("%s\t%s\t%s\n", status, name, detail)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", status.Render(), name)
	default:
		if detail != "" {
			fmt.Printf("%s %s %s\n", status.Render(), name, Styles.Muted.Render("("+detail+")"))
		} else {
			fmt.Printf("%s %s\n", status.Render(), name)
		}
	}
}

// Summary prints aggregate check counts.
func Summary(safe, unsafe, total int) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("SUMMARY: safe=%d unsafe=%d total=%d\n", safe, unsafe, total)
		return
	}
	count := func(st lipgloss.Style, v int, label string) string {
		return st.Render(strconv.Itoa(v)) + " " + Styles.Muted.Render(label)
	}
	fmt.Printf("\n%s  %s  %s\n",
		count(Styles.Success, safe, "safe"),
		count(Styles.Error, unsafe, "unsafe"),
		count(Styles.Bold, total, "total"))
}
