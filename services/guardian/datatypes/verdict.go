// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/detectors"
	"github.com/AleutianAI/AleutianGuard/services/guardian/filters"
	"github.com/AleutianAI/AleutianGuard/services/guardian/resolver"
)

// Pipeline stages, recorded as labels in the internal verdict's stage times.
// FALLBACK is reachable from any stage; every entry into it produces a clean
// verdict.
const (
	StageStarted      = "STARTED"
	StageKeywordRan   = "KEYWORD_RAN"
	StageDetectorsRan = "DETECTORS_RAN"
	StageResolved     = "RESOLVED"
	StageReturned     = "RETURNED"
	StageFallback     = "FALLBACK"
)

// RequestMeta is optional caller metadata carried into the audit record.
type RequestMeta struct {
	ClientID  string
	UserAgent string
	RequestID string
}

// # Verdict
//
// Description:
//
//	The internal record of one check, assembled by the pipeline and
//	consumed by the sanitizer and the audit logger. It lives only for one
//	request; nothing beyond the audit line persists it. Raw vendor labels
//	and detector reasons are allowed here and nowhere further out.
type Verdict struct {
	Clean               bool
	PatternReport       *filters.Report
	DetectorResults     []detectors.Result
	Resolution          resolver.Resolution
	Reason              string
	StageTimes          map[string]time.Duration
	FallbackUsed        bool
	KeywordShortCircuit bool
	UnitsIn             int64
	UnitsTotal          int64

	// Derived bookkeeping for audit and sanitization.
	Hash                 string
	TextLen              int
	Duration             time.Duration
	Timestamp            time.Time
	KeywordFilterEnabled bool
	Meta                 RequestMeta
}
