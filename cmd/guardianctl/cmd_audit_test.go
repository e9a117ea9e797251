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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Sample lines in the gateway's audit stream format.
const (
	sampleSafeLine     = "SAFE | STATUS=SAFE | HASH=a1b2c3d4e5f60718 | TIME=12.50 | TS=2026-08-25T10:00:00Z | LEN=117 | UNITS=30 | TOTAL=30 | METHOD=both_safe | REQ=req-1"
	sampleUnsafeLine   = "UNSAFE | STATUS=UNSAFE | HASH=0011223344556677 | TIME=8.20 | TYPE=harmful_prompt | KEYWORDS=badword | TS=2026-08-25T10:00:01Z | LEN=178 | UNITS=45 | TOTAL=75 | REQ=req-2"
	sampleFallbackLine = "FALLBACK | STATUS=SAFE | HASH=8899aabbccddeeff | TIME=30001.00 | FALLBACK=true | TS=2026-08-25T10:00:02Z | LEN=178 | UNITS=45 | TOTAL=120 | REQ=req-3"
)

// TestMarkerRe verifies the TOKEN_COUNTER line matcher against the exact
// format the gateway writes.
func TestMarkerRe(t *testing.T) {
	tests := []struct {
		line  string
		match bool
	}{
		{"TOKEN_COUNTER=120 (+30)", true},
		{"TOKEN_COUNTER=0 (+0)", true},
		{"TOKEN_COUNTER=9223372036854775807 (+1)", true},
		{"TOKEN_COUNTER=120 (+30) trailing", false},
		{" TOKEN_COUNTER=120 (+30)", false},
		{"TOKEN_COUNTER=abc (+30)", false},
		{"TOKEN_COUNTER=120 (30)", false},
		{sampleSafeLine, false},
	}
	for _, tt := range tests {
		if got := markerRe.MatchString(tt.line); got != tt.match {
			t.Errorf("markerRe.MatchString(%q) = %v, want %v", tt.line, got, tt.match)
		}
	}
}

// TestMarkerRe_Submatches verifies the captured total and delta.
func TestMarkerRe_Submatches(t *testing.T) {
	m := markerRe.FindStringSubmatch("TOKEN_COUNTER=75 (+45)")
	if m == nil {
		t.Fatal("Expected a match")
	}
	if m[1] != "75" {
		t.Errorf("Expected total capture '75', got %q", m[1])
	}
	if m[2] != "45" {
		t.Errorf("Expected delta capture '45', got %q", m[2])
	}
}

func TestIsEventLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{sampleSafeLine, true},
		{sampleUnsafeLine, true},
		{sampleFallbackLine, true},
		{"TOKEN_COUNTER=120 (+30)", false},
		{"SAFE|STATUS=SAFE", false},
		{"garbage line", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isEventLine(tt.line); got != tt.want {
			t.Errorf("isEventLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestReadAuditLines(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "audit.log")

	content := sampleSafeLine + "\nTOKEN_COUNTER=30 (+30)\n" + sampleUnsafeLine + "\nTOKEN_COUNTER=75 (+45)\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	lines, err := readAuditLines(path)
	if err != nil {
		t.Fatalf("readAuditLines failed: %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != sampleSafeLine {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if lines[3] != "TOKEN_COUNTER=75 (+45)" {
		t.Errorf("Unexpected last line: %q", lines[3])
	}
}

func TestReadAuditLines_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	lines, err := readAuditLines(path)
	if err != nil {
		t.Fatalf("readAuditLines failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("Expected no lines from an empty file, got %d", len(lines))
	}
}

func TestReadAuditLines_MissingFile(t *testing.T) {
	if _, err := readAuditLines(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

// TestWalkChain_Intact walks a healthy stream and checks the report.
func TestWalkChain_Intact(t *testing.T) {
	lines := []string{
		sampleSafeLine,
		"TOKEN_COUNTER=30 (+30)",
		sampleUnsafeLine,
		"TOKEN_COUNTER=75 (+45)",
		sampleFallbackLine,
		"TOKEN_COUNTER=120 (+45)",
	}

	rep, err := walkChain(lines)
	if err != nil {
		t.Fatalf("walkChain failed: %v", err)
	}
	if rep.Events != 3 {
		t.Errorf("Expected 3 events, got %d", rep.Events)
	}
	if rep.Markers != 3 {
		t.Errorf("Expected 3 markers, got %d", rep.Markers)
	}
	if rep.Final != 120 {
		t.Errorf("Expected final total 120, got %d", rep.Final)
	}
}

// TestWalkChain_ResumedCounter accepts a first marker whose total carries
// over from a previous run of the gateway.
func TestWalkChain_ResumedCounter(t *testing.T) {
	lines := []string{
		sampleSafeLine,
		"TOKEN_COUNTER=500 (+12)",
		sampleSafeLine,
		"TOKEN_COUNTER=512 (+12)",
	}

	rep, err := walkChain(lines)
	if err != nil {
		t.Fatalf("walkChain rejected a resumed counter: %v", err)
	}
	if rep.Final != 512 {
		t.Errorf("Expected final total 512, got %d", rep.Final)
	}
}

// TestWalkChain_Break detects a marker whose total does not equal the
// previous total plus its delta.
func TestWalkChain_Break(t *testing.T) {
	lines := []string{
		sampleSafeLine,
		"TOKEN_COUNTER=30 (+30)",
		sampleUnsafeLine,
		"TOKEN_COUNTER=80 (+45)", // should be 75
	}

	_, err := walkChain(lines)
	if err == nil {
		t.Fatal("Expected a chain break error")
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Errorf("Expected the error to name line 4, got: %v", err)
	}
	if !strings.Contains(err.Error(), "80") || !strings.Contains(err.Error(), "30") {
		t.Errorf("Expected the error to include both totals, got: %v", err)
	}
}

func TestWalkChain_Empty(t *testing.T) {
	rep, err := walkChain(nil)
	if err != nil {
		t.Fatalf("walkChain failed on empty input: %v", err)
	}
	if rep.Events != 0 || rep.Markers != 0 || rep.Final != 0 {
		t.Errorf("Expected a zero report, got %+v", rep)
	}
}

// TestWalkChain_IgnoresUnknownLines checks that lines in neither format
// count as events and never break the chain.
func TestWalkChain_IgnoresUnknownLines(t *testing.T) {
	lines := []string{
		"some corrupted fragment",
		sampleSafeLine,
		"TOKEN_COUNTER=30 (+30)",
		"another stray line",
		"TOKEN_COUNTER=60 (+30)",
	}

	rep, err := walkChain(lines)
	if err != nil {
		t.Fatalf("walkChain failed: %v", err)
	}
	if rep.Events != 1 {
		t.Errorf("Expected 1 event, got %d", rep.Events)
	}
	if rep.Markers != 2 {
		t.Errorf("Expected 2 markers, got %d", rep.Markers)
	}
	if rep.Final != 60 {
		t.Errorf("Expected final total 60, got %d", rep.Final)
	}
}
