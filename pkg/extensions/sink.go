// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// VerdictEvent represents one completed check for external export.
//
// This struct captures what compliance and SIEM systems need without
// carrying the submission itself: the content is represented only by its
// hash and length, matching what the local audit log discloses.
//
// # Reporting Fields
//
// For regulatory reporting, always populate:
//   - RequestID: correlates the event with client-side records
//   - Timestamp: orders the event in the audit trail
//   - ContentHash: gives data lineage without data retention
//
// # Example
//
//	event := VerdictEvent{
//		RequestID:   reqID,
//		ClientID:    clientID,
//		Timestamp:   time.Now().UTC(),
//		Safe:        false,
//		Category:    "PROMPT_INJECTION",
//		Method:      "primary_safe_secondary_unsafe",
//		ContentHash: hash,
//		TextLen:     412,
//		Units:       104,
//		TotalUnits:  98231,
//		Metadata:    NewMetadata().Set("user_agent", ua),
//	}
type VerdictEvent struct {
	// RequestID correlates the event with the client response.
	RequestID string

	// ClientID identifies the caller, if the edge captured one.
	// Use "anonymous" if unknown.
	ClientID string

	// Timestamp is when the verdict was produced (always use UTC).
	// A zero value means the sink should stamp time.Now().UTC() itself.
	Timestamp time.Time

	// Safe is the final verdict.
	Safe bool

	// Fallback marks verdicts produced through a fail-open path.
	Fallback bool

	// Category is the internal category code of the final verdict.
	// Examples: "SAFE", "HARMFUL", "PROMPT_INJECTION", "JAILBREAK"
	Category string

	// Method names the resolution that produced the verdict.
	// Examples: "both_safe", "keyword_filter", "highest_severity"
	Method string

	// ContentHash is the truncated SHA-256 of the inspected text.
	// The text itself is never exported.
	ContentHash string

	// TextLen is the inspected text length in bytes.
	TextLen int

	// Units is the billing units consumed by this check.
	Units int64

	// TotalUnits is the running unit total after this check.
	TotalUnits int64

	// Duration is the end-to-end check latency.
	Duration time.Duration

	// Metadata carries per-event attributes that have no dedicated
	// field. The pipeline records "keyword_short_circuit" plus one
	// "detector.<id>" entry per detector vote; enterprise sinks may
	// add their own keys before forwarding.
	Metadata Metadata
}

// VerdictSink receives completed verdicts for export to external systems.
//
// Implementations are shared by every request and must be safe for
// concurrent use.
//
// # Delivery Semantics
//
// The pipeline calls Consume after the local audit line is durable, off
// the request path. A sink error never fails the check; it is logged and
// the event is dropped. Sinks needing stronger guarantees should buffer
// internally and reconcile against the local audit log.
//
// # Community Edition Behavior
//
// The default NopVerdictSink discards all events. The local audit log is
// the only record.
//
// # Enterprise Backends
//
// Enterprise versions forward events to SIEM or warehouse backends. A
// SIEM-forwarding implementation looks like:
//
//	type SplunkSink struct {
//		hec *splunk.Client
//	}
//
//	func (s *SplunkSink) Consume(ctx context.Context, ev extensions.VerdictEvent) error {
//		return s.hec.Send(ctx, "guardian:verdict", ev)
//	}
type VerdictSink interface {
	// Consume exports one verdict event. A non-nil error is logged by
	// the caller and the event is dropped.
	Consume(ctx context.Context, event VerdictEvent) error
}

// NopVerdictSink is the default sink for the community edition.
//
// It discards all events, leaving the local audit log as the only
// record. This is appropriate for deployments without external
// compliance systems.
//
// Stateless, so safe for concurrent use.
type NopVerdictSink struct{}

// Consume discards the event.
func (s *NopVerdictSink) Consume(_ context.Context, _ VerdictEvent) error {
	return nil
}

var _ VerdictSink = (*NopVerdictSink)(nil)
