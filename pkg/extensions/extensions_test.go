// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// ============================================================================
// ServiceOptions Tests
// ============================================================================

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.License == nil {
		t.Error("DefaultOptions().License should not be nil")
	}
	if opts.Redactor == nil {
		t.Error("DefaultOptions().Redactor should not be nil")
	}
	if opts.Sink == nil {
		t.Error("DefaultOptions().Sink should not be nil")
	}

	if _, ok := opts.License.(*NopLicenseProvider); !ok {
		t.Error("DefaultOptions().License should be *NopLicenseProvider")
	}
	if _, ok := opts.Redactor.(*NopContentRedactor); !ok {
		t.Error("DefaultOptions().Redactor should be *NopContentRedactor")
	}
	if _, ok := opts.Sink.(*NopVerdictSink); !ok {
		t.Error("DefaultOptions().Sink should be *NopVerdictSink")
	}
}

func TestServiceOptions_WithLicense(t *testing.T) {
	original := DefaultOptions()
	custom := &mockLicenseProvider{plan: "enterprise"}

	newOpts := original.WithLicense(custom)

	if newOpts.License != custom {
		t.Error("WithLicense should set the custom LicenseProvider")
	}
	// Original is an immutable copy.
	if _, ok := original.License.(*NopLicenseProvider); !ok {
		t.Error("Original options should be unchanged after WithLicense")
	}
	if newOpts.Redactor == nil || newOpts.Sink == nil {
		t.Error("WithLicense should preserve the other extension points")
	}
}

func TestServiceOptions_WithRedactorAndSink(t *testing.T) {
	redactor := &mockRedactor{}
	sink := &mockSink{}

	opts := DefaultOptions().WithRedactor(redactor).WithSink(sink)

	if opts.Redactor != redactor {
		t.Error("WithRedactor should set the custom ContentRedactor")
	}
	if opts.Sink != sink {
		t.Error("WithSink should set the custom VerdictSink")
	}
	if _, ok := opts.License.(*NopLicenseProvider); !ok {
		t.Error("chained With* calls should preserve untouched fields")
	}
}

// ============================================================================
// LicenseProvider Tests
// ============================================================================

func TestNopLicenseProvider(t *testing.T) {
	provider := &NopLicenseProvider{}

	info, err := provider.Check(context.Background(), "")
	if err != nil {
		t.Fatalf("Check() = %v", err)
	}
	if info.Plan != "community" {
		t.Errorf("Plan = %q, want community", info.Plan)
	}
	for _, feature := range []string{FeatureBlacklistAPI, FeatureEventStream, FeatureVerdictExport} {
		if !info.HasFeature(feature) {
			t.Errorf("community license should unlock %q", feature)
		}
	}
	if info.HasFeature("time_travel") {
		t.Error("HasFeature should reject unknown features")
	}
}

func TestLicenseProviderDenial(t *testing.T) {
	provider := &mockLicenseProvider{deny: true}

	_, err := provider.Check(context.Background(), "bad-key")
	if err == nil {
		t.Fatal("expected denial")
	}
	if !errors.Is(err, ErrUnlicensed) {
		t.Errorf("denial should wrap ErrUnlicensed, got %v", err)
	}
}

// ============================================================================
// ContentRedactor Tests
// ============================================================================

func TestNopContentRedactor(t *testing.T) {
	redactor := &NopContentRedactor{}

	result, err := redactor.Redact(context.Background(), "My SSN is 123-45-6789")
	if err != nil {
		t.Fatalf("Redact() = %v", err)
	}
	if result.Redacted != "My SSN is 123-45-6789" {
		t.Errorf("Redacted = %q, want unchanged input", result.Redacted)
	}
	if result.WasModified {
		t.Error("nop redactor must not report modifications")
	}
	if len(result.Detections) != 0 {
		t.Errorf("nop redactor reported %d detections", len(result.Detections))
	}
}

func TestCustomRedactorThroughInterface(t *testing.T) {
	var redactor ContentRedactor = &mockRedactor{}

	result, err := redactor.Redact(context.Background(), "secret stuff")
	if err != nil {
		t.Fatalf("Redact() = %v", err)
	}
	if !result.WasModified {
		t.Error("mock redactor should modify")
	}
	if result.Redacted != "[scrubbed]" {
		t.Errorf("Redacted = %q", result.Redacted)
	}
	if len(result.Detections) != 1 || result.Detections[0].Type != "secret" {
		t.Errorf("Detections = %+v", result.Detections)
	}
}

// ============================================================================
// VerdictSink Tests
// ============================================================================

func TestNopVerdictSink(t *testing.T) {
	sink := &NopVerdictSink{}
	if err := sink.Consume(context.Background(), VerdictEvent{RequestID: "r1"}); err != nil {
		t.Errorf("nop sink returned %v", err)
	}
}

func TestSinkReceivesEventFields(t *testing.T) {
	sink := &mockSink{}
	ev := VerdictEvent{
		RequestID:   "req-9",
		ClientID:    "anonymous",
		Timestamp:   time.Unix(1754000000, 0).UTC(),
		Safe:        false,
		Category:    "JAILBREAK",
		Method:      "both_unsafe_use_primary",
		ContentHash: "a1b2c3d4e5f60718",
		TextLen:     512,
		Units:       129,
		TotalUnits:  40210,
		Duration:    900 * time.Millisecond,
		Metadata:    NewMetadata().Set("user_agent", "curl/8.0"),
	}

	if err := sink.Consume(context.Background(), ev); err != nil {
		t.Fatalf("Consume() = %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("captured %d events, want 1", len(sink.events))
	}
	got := sink.events[0]
	if got.RequestID != "req-9" || got.Category != "JAILBREAK" || got.Units != 129 {
		t.Errorf("captured event = %+v", got)
	}
	if ua, ok := got.Metadata.GetString("user_agent"); !ok || ua != "curl/8.0" {
		t.Errorf("metadata user_agent = %q, %v", ua, ok)
	}
}

// ============================================================================
// Metadata Tests
// ============================================================================

func TestMetadataFluentBuildAndTypedAccess(t *testing.T) {
	meta := NewMetadata().
		Set("request_id", "req-1").
		Set("keyword_matches", int64(2)).
		Set("fallback", true)

	if meta.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", meta.Len())
	}
	if id, ok := meta.GetString("request_id"); !ok || id != "req-1" {
		t.Errorf("GetString(request_id) = %q, %v", id, ok)
	}
	if n, ok := meta.GetInt64("keyword_matches"); !ok || n != 2 {
		t.Errorf("GetInt64(keyword_matches) = %d, %v", n, ok)
	}
	if b, ok := meta.GetBool("fallback"); !ok || !b {
		t.Errorf("GetBool(fallback) = %v, %v", b, ok)
	}

	// Typed accessors reject mismatched types.
	if _, ok := meta.GetInt64("request_id"); ok {
		t.Error("GetInt64 on a string value should report false")
	}
	if _, ok := meta.GetString("missing"); ok {
		t.Error("GetString on a missing key should report false")
	}
	if !meta.Has("fallback") || meta.Has("missing") {
		t.Error("Has() misreported key presence")
	}
	if len(meta.Keys()) != 3 {
		t.Errorf("Keys() length = %d, want 3", len(meta.Keys()))
	}
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	original := NewMetadata().Set("plan", "community")
	clone := original.Clone().Set("plan", "enterprise")

	if plan, _ := original.GetString("plan"); plan != "community" {
		t.Errorf("original mutated through clone: plan = %q", plan)
	}
	if plan, _ := clone.GetString("plan"); plan != "enterprise" {
		t.Errorf("clone plan = %q", plan)
	}
}

func TestMetadataMerge(t *testing.T) {
	base := NewMetadata().Set("org", "acme")
	base.Merge(NewMetadata().Set("seats", int64(50)).Set("org", "globex"))
	base.Merge(nil)

	if org, _ := base.GetString("org"); org != "globex" {
		t.Errorf("Merge should overwrite, org = %q", org)
	}
	if seats, _ := base.GetInt64("seats"); seats != 50 {
		t.Errorf("seats = %d", seats)
	}
}

// ============================================================================
// Mocks
// ============================================================================

type mockLicenseProvider struct {
	plan string
	deny bool
}

func (m *mockLicenseProvider) Check(_ context.Context, key string) (*LicenseInfo, error) {
	if m.deny {
		return nil, fmt.Errorf("key %q rejected: %w", key, ErrUnlicensed)
	}
	return &LicenseInfo{LicenseID: "mock", Plan: m.plan}, nil
}

type mockRedactor struct{}

func (m *mockRedactor) Redact(_ context.Context, text string) (*RedactionResult, error) {
	return &RedactionResult{
		Original:    text,
		Redacted:    "[scrubbed]",
		WasModified: true,
		Detections:  []Detection{{Type: "secret", Action: "redacted"}},
	}, nil
}

type mockSink struct {
	events []VerdictEvent
}

func (m *mockSink) Consume(_ context.Context, ev VerdictEvent) error {
	m.events = append(m.events, ev)
	return nil
}

var (
	_ LicenseProvider = (*mockLicenseProvider)(nil)
	_ ContentRedactor = (*mockRedactor)(nil)
	_ VerdictSink     = (*mockSink)(nil)
)
