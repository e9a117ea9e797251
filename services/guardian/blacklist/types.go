// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package blacklist

import (
	"fmt"
	"regexp"
	"strings"
)

// File is the serialized blacklist shape, shared by the embedded default, the
// optional backing file, and the read/replace API.
type File struct {
	Keywords      []string `yaml:"keywords" json:"keywords"`
	RegexPatterns []string `yaml:"regex_patterns" json:"regex_patterns"`
}

// CompiledPattern pairs a pattern's original text with its compiled,
// case-insensitive form. Pattern order is preserved across compile and
// serialization because match reports reference patterns by position.
type CompiledPattern struct {
	Source string
	re     *regexp.Regexp
}

// FindFirst returns the first non-empty match of the pattern in text.
func (p CompiledPattern) FindFirst(text string) (string, bool) {
	m := p.re.FindString(text)
	return m, m != ""
}

func (p CompiledPattern) String() string {
	return p.Source
}

// Snapshot is one immutable blacklist generation. Readers hold a *Snapshot
// for the duration of a single check; the store swaps generations wholesale
// so no reader ever observes a half-applied update.
type Snapshot struct {
	Keywords []string
	Patterns []CompiledPattern
	Source   string
}

// ToFile projects the snapshot back onto the serialized shape.
func (s *Snapshot) ToFile() File {
	f := File{
		Keywords:      make([]string, len(s.Keywords)),
		RegexPatterns: make([]string, len(s.Patterns)),
	}
	copy(f.Keywords, s.Keywords)
	for i, p := range s.Patterns {
		f.RegexPatterns[i] = p.Source
	}
	return f
}

// PatternError reports the single pattern that failed to compile during a
// replace. The handler surfaces the offending pattern to the caller so the
// whole update can be fixed and retried.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// compile validates a keyword/pattern set and produces a new snapshot.
//
// Keywords are trimmed and de-duplicated case-insensitively with the first
// occurrence winning, preserving insertion order. Every pattern is compiled
// with case-insensitive semantics; the first failure aborts the whole compile
// so the caller's previous snapshot stays untouched.
func compile(keywords, patterns []string, source string) (*Snapshot, error) {
	snap := &Snapshot{Source: source}

	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		snap.Keywords = append(snap.Keywords, kw)
	}

	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		re, err := regexp.Compile(caseInsensitive(pat))
		if err != nil {
			return nil, &PatternError{Pattern: pat, Err: err}
		}
		snap.Patterns = append(snap.Patterns, CompiledPattern{Source: pat, re: re})
	}

	return snap, nil
}

// caseInsensitive prefixes the pattern with the (?i) flag unless the author
// already set flags explicitly.
func caseInsensitive(pat string) string {
	if strings.HasPrefix(pat, "(?") {
		return pat
	}
	return "(?i)" + pat
}
