// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taxonomy

import (
	"testing"
)

func TestSeverities(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		severity int
		public   string
		code     string
	}{
		{name: "Safe", category: Safe, severity: 0, public: "safe", code: "SAFE"},
		{name: "UnknownUnsafe", category: UnknownUnsafe, severity: 1, public: "unsafe_content", code: "UNKNOWN_UNSAFE"},
		{name: "HarmfulPrompt", category: HarmfulPrompt, severity: 2, public: "harmful_content", code: "HARMFUL"},
		{name: "PromptInjection", category: PromptInjection, severity: 2, public: "injection_attempt", code: "PROMPT_INJECTION"},
		{name: "Jailbreak", category: Jailbreak, severity: 3, public: "policy_violation", code: "JAILBREAK"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Severity(tc.category); got != tc.severity {
				t.Errorf("Severity(%s) = %d, want %d", tc.category, got, tc.severity)
			}
			if got := PublicName(tc.category); got != tc.public {
				t.Errorf("PublicName(%s) = %q, want %q", tc.category, got, tc.public)
			}
			if got := Lookup(tc.category).Code; got != tc.code {
				t.Errorf("Lookup(%s).Code = %q, want %q", tc.category, got, tc.code)
			}
		})
	}
}

func TestOnlySafeHasSeverityZero(t *testing.T) {
	for _, c := range All() {
		if c == Safe {
			if Severity(c) != 0 {
				t.Errorf("Severity(safe) = %d, want 0", Severity(c))
			}
			continue
		}
		if Severity(c) < 1 {
			t.Errorf("Severity(%s) = %d, want >= 1", c, Severity(c))
		}
		if !IsUnsafe(c) {
			t.Errorf("IsUnsafe(%s) = false, want true", c)
		}
	}
	if IsUnsafe(Safe) {
		t.Error("IsUnsafe(safe) = true, want false")
	}
}

func TestUnknownCategoryCollapses(t *testing.T) {
	// Anything outside the closed set must behave as unknown_unsafe so a bad
	// detector mapping can never leak a new label to the public surface.
	odd := Category("totally_new_label")

	if got := Normalize(odd); got != UnknownUnsafe {
		t.Errorf("Normalize(%q) = %s, want %s", odd, got, UnknownUnsafe)
	}
	if got := PublicName(odd); got != "unsafe_content" {
		t.Errorf("PublicName(%q) = %q, want %q", odd, got, "unsafe_content")
	}
	if got := Severity(odd); got != 1 {
		t.Errorf("Severity(%q) = %d, want 1", odd, got)
	}
}

func TestCompareIsTotal(t *testing.T) {
	// The declared order is safe < unknown_unsafe < harmful_prompt <
	// prompt_injection < jailbreak, with the rank breaking the severity tie
	// between harmful_prompt and prompt_injection.
	ordered := All()
	for i := 1; i < len(ordered); i++ {
		lo, hi := ordered[i-1], ordered[i]
		if Compare(lo, hi) >= 0 {
			t.Errorf("Compare(%s, %s) = %d, want < 0", lo, hi, Compare(lo, hi))
		}
		if Compare(hi, lo) <= 0 {
			t.Errorf("Compare(%s, %s) = %d, want > 0", hi, lo, Compare(hi, lo))
		}
	}
	for _, c := range ordered {
		if Compare(c, c) != 0 {
			t.Errorf("Compare(%s, %s) = %d, want 0", c, c, Compare(c, c))
		}
	}
}
