// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sanitize projects internal verdicts onto the public response
// shape. This is the single place where internal vocabulary is prevented
// from leaking: every vendor name, model name, raw label, and matched
// keyword literal is stripped or replaced here and nowhere else.
package sanitize

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/resolver"
	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

// FallbackWarning is attached to every verdict produced through a fail-open
// path.
const FallbackWarning = "Analysis completed with reduced confidence due to system limitations"

// phrasePair is one entry of the substitution table. Entries are applied in
// order, full internal phrases before their substring fallbacks, so compound
// rewrites stay readable.
type phrasePair struct {
	from string
	to   string
}

// phraseTable collapses known internal phrasing to short user-facing
// strings. Keep this table central and covered by tests; scattering string
// replacements elsewhere reopens the leak.
var phraseTable = []phrasePair{
	{"Prompt injection detected: content cleared by primary guard but flagged by secondary", "Potential security threat detected"},
	{"Both guards agree: content is safe", "Content analysis completed successfully"},
	{"All guards agree: Content is safe", "Content analysis completed successfully"},
	{"Multiple detections - selected highest severity:", "Content flagged by safety analysis:"},
	{"Guard pipeline error - defaulting to safe (pre-keyword)", "Analysis completed with safety fallback"},
	{"Guard pipeline error - defaulting to safe (pre-detector)", "Analysis completed with safety fallback"},
	{"Guard pipeline error - defaulting to safe (pre-resolution)", "Analysis completed with safety fallback"},
	{"Both guards agree", "Content analysis completed successfully"},
	{"All guards agree", "Content flagged by safety analysis"},
	{"Multiple detections", "Content flagged by safety analysis"},
	{"highest severity", "Unsafe content detected"},
	{"Prompt injection detected", "Potential security threat detected"},
	{"defaulting to safe", "Analysis completed with safety fallback"},
	{"LlamaGuard", "Content analyzer"},
	{"GraniteGuard", "Safety checker"},
	{"llama-guard", "analyzer"},
	{"granite", "checker"},
}

// Sanitizer renders public verdicts. vendorNames carries every configured
// detector id, registry type tag, and backend model name; any occurrence in
// an outgoing reason is replaced wholesale.
type Sanitizer struct {
	vendorNames []string
}

// New creates a sanitizer. Empty names are dropped; the rest are applied
// longest-first so "llama-guard3" is scrubbed before "llama-guard" could
// match inside it.
func New(vendorNames ...string) *Sanitizer {
	s := &Sanitizer{}
	for _, name := range vendorNames {
		if strings.TrimSpace(name) != "" {
			s.vendorNames = append(s.vendorNames, name)
		}
	}
	sort.Slice(s.vendorNames, func(i, j int) bool {
		return len(s.vendorNames[i]) > len(s.vendorNames[j])
	})
	return s
}

// Sanitize projects one internal verdict onto the public shape.
func (s *Sanitizer) Sanitize(v *datatypes.Verdict, requestID string) datatypes.PublicVerdict {
	final := taxonomy.Normalize(v.Resolution.Final)

	out := datatypes.PublicVerdict{
		RequestID:            requestID,
		IsSafe:               v.Clean,
		Category:             taxonomy.PublicName(final),
		Confidence:           datatypes.ConfidenceHigh,
		Reason:               s.NormalizeReason(v.Reason, matchedKeywords(v)),
		ProcessingTimeMs:     roundMs(v.Duration),
		TokensProcessed:      v.UnitsIn,
		TotalTokensProcessed: v.UnitsTotal,
		Timestamp:            timestamp(v),
	}

	out.Analysis.Consensus = v.Resolution.Method == resolver.MethodBothSafe ||
		v.Resolution.Method == resolver.MethodConsensus

	// Detector identities become positional guard ids in configured order.
	out.Analysis.Guards = make([]datatypes.PublicGuard, 0, len(v.DetectorResults))
	for i, res := range v.DetectorResults {
		guard := datatypes.PublicGuard{
			GuardID:    guardID(i),
			Status:     datatypes.GuardStatusSafe,
			Confidence: datatypes.ConfidenceNormal,
		}
		if taxonomy.IsUnsafe(res.Category) {
			guard.Status = datatypes.GuardStatusFlagged
			guard.DetectionType = taxonomy.PublicName(res.Category)
		}
		out.Analysis.Guards = append(out.Analysis.Guards, guard)
	}

	if v.PatternReport != nil {
		kf := &datatypes.PublicKeywordFilter{
			Enabled:      true,
			Status:       datatypes.GuardStatusSafe,
			MatchesFound: len(v.PatternReport.Matches),
		}
		if !v.PatternReport.Clean {
			kf.Status = datatypes.GuardStatusFlagged
		}
		out.Analysis.KeywordFilter = kf
	}

	if v.FallbackUsed {
		out.Confidence = datatypes.ConfidenceMedium
		out.Warning = FallbackWarning
	}
	return out
}

// NormalizeReason applies the vendor scrub, the phrase table, and the
// matched-keyword scrub to one internal reason string.
func (s *Sanitizer) NormalizeReason(reason string, keywords []string) string {
	for _, name := range s.vendorNames {
		reason = strings.ReplaceAll(reason, name, "guard")
	}
	for _, p := range phraseTable {
		reason = strings.ReplaceAll(reason, p.from, p.to)
	}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		reason = strings.ReplaceAll(reason, kw, "[filtered]")
	}
	return reason
}

func matchedKeywords(v *datatypes.Verdict) []string {
	if v.PatternReport == nil {
		return nil
	}
	return v.PatternReport.Keywords()
}

func guardID(index int) string {
	return "guard_" + strconv.Itoa(index+1)
}

func roundMs(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000.0
	return math.Round(ms*100) / 100
}

func timestamp(v *datatypes.Verdict) int64 {
	if v.Timestamp.IsZero() {
		return time.Now().Unix()
	}
	return v.Timestamp.Unix()
}
