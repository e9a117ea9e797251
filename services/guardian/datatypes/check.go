// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire shapes of the guardian API and the
// internal verdict record the pipeline assembles. Public shapes never carry
// raw vendor labels, detector reasons, or matched keyword text.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// use a single instance of Validate, it caches struct info
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// # CheckRequest
//
// Description:
//
//	The body of POST /v1/check. Text is the content to classify; it must be
//	present and non-empty, and is otherwise opaque to the gateway.
type CheckRequest struct {
	Text string `json:"text" validate:"required,min=1,max=1000000"`
}

// # Validate
//
// Description:
//
//	Validates the CheckRequest against its struct tags.
//
// Outputs:
//   - error: Non-nil when the request is structurally invalid.
func (r *CheckRequest) Validate() error {
	return validate.Struct(r)
}

// ErrorResponse is the uniform error body. Code is machine-readable;
// RequestID correlates the failure with server logs.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// Machine-readable error codes.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidPattern = "invalid_pattern"
	CodeUnlicensed     = "unlicensed"
	CodeInternal       = "internal_error"
)

// # HealthResponse
//
// Description:
//
//	The body of GET /health: liveness plus the number of initialised
//	guards and whether the keyword filter is on.
type HealthResponse struct {
	Status               string `json:"status"`
	Timestamp            int64  `json:"timestamp"`
	Version              string `json:"version"`
	GuardsAvailable      int    `json:"guards_available"`
	KeywordFilterEnabled bool   `json:"keyword_filter_enabled"`
}

// PublicGuard is one detector's sanitized appearance in a verdict. GuardID
// is positional ("guard_1", "guard_2", ...) in configured order; vendor
// names never appear.
type PublicGuard struct {
	GuardID       string `json:"guard_id"`
	Status        string `json:"status"`
	Confidence    string `json:"confidence"`
	DetectionType string `json:"detection_type,omitempty"`
}

// PublicKeywordFilter summarises the keyword stage without disclosing what
// matched.
type PublicKeywordFilter struct {
	Enabled      bool   `json:"enabled"`
	Status       string `json:"status"`
	MatchesFound int    `json:"matches_found"`
}

// PublicAnalysis groups the per-stage summaries of a public verdict.
type PublicAnalysis struct {
	Guards        []PublicGuard        `json:"guards"`
	KeywordFilter *PublicKeywordFilter `json:"keyword_filter"`
	Consensus     bool                 `json:"consensus"`
}

// # PublicVerdict
//
// Description:
//
//	The body of a successful POST /v1/check. Category is a public-facing
//	name; Reason has been normalized by the sanitizer's substitution table;
//	Warning is only present when the pipeline fell back.
type PublicVerdict struct {
	RequestID            string         `json:"request_id"`
	IsSafe               bool           `json:"is_safe"`
	Category             string         `json:"category"`
	Confidence           string         `json:"confidence"`
	Reason               string         `json:"reason"`
	Analysis             PublicAnalysis `json:"analysis"`
	ProcessingTimeMs     float64        `json:"processing_time_ms"`
	TokensProcessed      int64          `json:"tokens_processed"`
	TotalTokensProcessed int64          `json:"total_tokens_processed"`
	Timestamp            int64          `json:"timestamp"`
	Warning              string         `json:"warning,omitempty"`
}

// Guard status values inside PublicVerdict.
const (
	GuardStatusSafe    = "safe"
	GuardStatusFlagged = "flagged"

	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceNormal = "normal"
)
