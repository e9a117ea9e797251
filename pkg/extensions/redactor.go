// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import "context"

// RedactionResult contains the outcome of a redaction pass.
//
//	result := RedactionResult{
//		Original:    "key sk-abc123 leaked",
//		Redacted:    "key [MASKED] leaked",
//		WasModified: true,
//		Detections:  []Detection{{Type: "api_key", Location: "characters 4-13", Action: "masked"}},
//	}
type RedactionResult struct {
	// Original is the submission before redaction.
	Original string

	// Redacted is the submission after redaction. If WasModified is
	// false, this equals Original.
	Redacted string

	// WasModified reports whether the redactor changed anything.
	WasModified bool

	// Detections lists what the redactor found in the submission.
	// Useful for verdict sinks and debugging.
	Detections []Detection
}

// Detection describes a single item found by the redactor.
type Detection struct {
	// Type names the kind of item found, e.g. "ssn", "api_key",
	// "email".
	Type string

	// Location describes where in the submission the item was found.
	// Format is implementation-specific (e.g., "characters 10-20").
	Location string

	// Action says how the item was handled: "redacted", "masked", or
	// "replaced".
	Action string
}

// ContentRedactor transforms submissions before any filter or detector
// sees them.
//
// Implementations are shared by every request and must be safe for
// concurrent use.
//
// # Placement
//
// The redactor runs first in the check pipeline, ahead of the keyword
// filter and the detectors. Everything downstream, the audit content
// hash included, sees the redacted text. This keeps raw PII out of
// detector backends and out of anything derived from the submission.
//
// # Default Behavior
//
// The bundled NopContentRedactor passes submissions through unchanged,
// which suits local single-user deployments where PII handling isn't
// required.
//
// # Enterprise Redactors
//
// Enterprise builds plug in rule-based PII and secret scrubbing:
//
//	type SecretScrubber struct {
//		rules []ScrubRule
//	}
//
//	func (s *SecretScrubber) Redact(ctx context.Context, text string) (*RedactionResult, error) {
//		out := &RedactionResult{Original: text, Redacted: text}
//		for _, rule := range s.rules {
//			var hits int
//			out.Redacted, hits = rule.Scrub(out.Redacted)
//			if hits > 0 {
//				out.WasModified = true
//				out.Detections = append(out.Detections, Detection{Type: rule.Name, Action: "masked"})
//			}
//		}
//		return out, nil
//	}
type ContentRedactor interface {
	// Redact processes a submission before inspection.
	//
	// # Inputs
	//
	//   - ctx: carries the request deadline
	//   - text: the raw submission
	//
	// # Outputs
	//
	//   - *RedactionResult: the redacted submission and what was found
	//   - error: non-nil only for redactor failures; the pipeline then
	//     falls back to its fail-open verdict rather than inspecting
	//     the raw text
	Redact(ctx context.Context, text string) (*RedactionResult, error)
}

// NopContentRedactor is the default redactor for open source builds.
// It passes all submissions through unchanged.
//
// Stateless, so safe for concurrent use:
//
//	var r NopContentRedactor
//	res, _ := r.Redact(ctx, "My SSN is 123-45-6789")
//	// res.Redacted is unchanged and res.WasModified is false.
type NopContentRedactor struct{}

// Redact returns the submission unchanged.
func (r *NopContentRedactor) Redact(_ context.Context, text string) (*RedactionResult, error) {
	return &RedactionResult{Original: text, Redacted: text}, nil
}

var _ ContentRedactor = (*NopContentRedactor)(nil)
