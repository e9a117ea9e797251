// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filters runs the deterministic keyword/pattern stage of a check.
// It is CPU-bound and never suspends; the input text is treated as opaque
// bytes with no normalisation so audit records reflect exactly what was
// scanned.
package filters

import (
	"strings"

	"github.com/AleutianAI/AleutianGuard/services/guardian/blacklist"
)

// Kind tags one hit as a keyword or a pattern match.
type Kind string

const (
	KindKeyword Kind = "keyword"
	KindPattern Kind = "pattern"
)

// Reasons attached to the report. They travel into the internal verdict and
// are later normalized by the sanitizer.
const (
	ReasonUnsafe = "Content contains blacklisted terms"
	ReasonClean  = "Content passed keyword filter"
)

// Match is a single hit. Value carries the keyword literal for keyword hits
// and the pattern text for pattern hits; the raw matched excerpt never leaves
// the filter.
type Match struct {
	Kind  Kind
	Value string
}

// Report is the outcome of one filter run against one blacklist snapshot.
type Report struct {
	Clean   bool
	Reason  string
	Matches []Match
}

// Keywords returns the matched keyword literals in hit order.
func (r Report) Keywords() []string {
	var out []string
	for _, m := range r.Matches {
		if m.Kind == KindKeyword {
			out = append(out, m.Value)
		}
	}
	return out
}

// PatternCount returns the number of pattern rules that hit.
func (r Report) PatternCount() int {
	n := 0
	for _, m := range r.Matches {
		if m.Kind == KindPattern {
			n++
		}
	}
	return n
}

// Run scans text against one blacklist snapshot and returns the match report.
//
// Keywords are tested as case-insensitive substrings in insertion order.
// Patterns are evaluated in blacklist order; the first non-empty match per
// pattern records one hit. The scan always visits every rule so the report
// is complete for auditing, not just the first hit.
func Run(text string, snap *blacklist.Snapshot) Report {
	report := Report{Clean: true}

	lower := strings.ToLower(text)
	for _, kw := range snap.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			report.Matches = append(report.Matches, Match{Kind: KindKeyword, Value: kw})
		}
	}

	for _, p := range snap.Patterns {
		if _, ok := p.FindFirst(text); ok {
			report.Matches = append(report.Matches, Match{Kind: KindPattern, Value: p.Source})
		}
	}

	if len(report.Matches) > 0 {
		report.Clean = false
		report.Reason = ReasonUnsafe
	} else {
		report.Reason = ReasonClean
	}
	return report
}
