// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taxonomy defines the closed set of unified safety categories shared
// by every detector, the resolver, and the sanitizer. Detector adapters parse
// vendor-specific raw labels and translate them into these categories; nothing
// outside this package may invent a new one.
package taxonomy

// Category is a unified safety label. The set is closed: any string that is
// not one of the declared constants is treated as UnknownUnsafe.
type Category string

const (
	Safe            Category = "safe"
	UnknownUnsafe   Category = "unknown_unsafe"
	HarmfulPrompt   Category = "harmful_prompt"
	PromptInjection Category = "prompt_injection"
	Jailbreak       Category = "jailbreak"
)

// Info carries the fixed attributes of one category: a stable uppercase code
// used in the extension event feed, a numeric severity, the rank used
// to break severity ties deterministically, a human description, and the
// public-facing name that replaces the internal category at the API boundary.
type Info struct {
	Code        string
	Severity    int
	Rank        int
	Description string
	PublicName  string
}

// catalog is the single source of truth for the taxonomy. Severities: safe=0,
// unknown_unsafe=1, harmful_prompt=2, prompt_injection=2, jailbreak=3. Rank
// orders safe < unknown_unsafe < harmful_prompt < prompt_injection < jailbreak.
var catalog = map[Category]Info{
	Safe: {
		Code:        "SAFE",
		Severity:    0,
		Rank:        0,
		Description: "Content is safe",
		PublicName:  "safe",
	},
	UnknownUnsafe: {
		Code:        "UNKNOWN_UNSAFE",
		Severity:    1,
		Rank:        1,
		Description: "Unsafe content detected",
		PublicName:  "unsafe_content",
	},
	HarmfulPrompt: {
		Code:        "HARMFUL",
		Severity:    2,
		Rank:        2,
		Description: "Harmful prompt detected",
		PublicName:  "harmful_content",
	},
	PromptInjection: {
		Code:        "PROMPT_INJECTION",
		Severity:    2,
		Rank:        3,
		Description: "Prompt injection detected",
		PublicName:  "injection_attempt",
	},
	Jailbreak: {
		Code:        "JAILBREAK",
		Severity:    3,
		Rank:        4,
		Description: "Jailbreak attempt detected",
		PublicName:  "policy_violation",
	},
}

// order lists every category from least to most severe. Kept in rank order so
// callers that iterate (stats, docs) are deterministic.
var order = []Category{Safe, UnknownUnsafe, HarmfulPrompt, PromptInjection, Jailbreak}

// Normalize collapses any unknown category onto UnknownUnsafe. Detector
// mappings already guarantee membership; the resolver and sanitizer
// normalize again so a bad mapping can never widen the public surface.
func Normalize(c Category) Category {
	if _, ok := catalog[c]; ok {
		return c
	}
	return UnknownUnsafe
}

// Lookup returns the Info for a category. Unknown categories resolve to the
// UnknownUnsafe entry.
func Lookup(c Category) Info {
	if info, ok := catalog[c]; ok {
		return info
	}
	return catalog[UnknownUnsafe]
}

// Severity returns the numeric severity of a category. Higher is worse.
func Severity(c Category) int {
	return Lookup(c).Severity
}

// PublicName returns the public-facing name used in API responses. Internal
// category names never cross the boundary directly.
func PublicName(c Category) string {
	return Lookup(c).PublicName
}

// Describe returns the human description of a category, used when composing
// verdict reasons.
func Describe(c Category) string {
	return Lookup(c).Description
}

// IsUnsafe reports whether a category represents an unsafe decision. Every
// category other than Safe has severity >= 1.
func IsUnsafe(c Category) bool {
	return Normalize(c) != Safe
}

// Compare orders two categories by severity, breaking ties by rank. It
// returns a negative value when a is below b, zero when equal, positive when
// a is above b. The ordering is total, so resolution is deterministic even
// when severities collide.
func Compare(a, b Category) int {
	ia, ib := Lookup(a), Lookup(b)
	if ia.Severity != ib.Severity {
		return ia.Severity - ib.Severity
	}
	return ia.Rank - ib.Rank
}

// All returns the categories in rank order, least severe first. The returned
// slice is a copy.
func All() []Category {
	out := make([]Category, len(order))
	copy(out, order)
	return out
}
