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
)

// ErrUnlicensed is returned when a deployment or feature is not covered by
// a valid license. Enterprise implementations should wrap this error with
// additional context.
//
// # Example
//
//	if expired(key) {
//		return nil, fmt.Errorf("license expired %s: %w", key.Expiry, extensions.ErrUnlicensed)
//	}
var ErrUnlicensed = errors.New("unlicensed")

// Feature names gated by enterprise licenses. Core checking is never
// gated; only management and export surfaces consult these.
const (
	// FeatureBlacklistAPI covers remote blacklist replacement.
	FeatureBlacklistAPI = "blacklist_api"

	// FeatureEventStream covers the live verdict feed.
	FeatureEventStream = "event_stream"

	// FeatureVerdictExport covers verdict sinks to external systems.
	FeatureVerdictExport = "verdict_export"
)

// LicenseInfo describes a validated license. LicenseID and Plan are always
// populated; Features and Metadata may be empty.
//
// # Example
//
//	info := &LicenseInfo{
//		LicenseID: "lic-123",
//		Plan:      "enterprise",
//		Features:  []string{extensions.FeatureBlacklistAPI},
//		Metadata:  NewMetadata().Set("tier", "gold").Set("org", "acme"),
//	}
type LicenseInfo struct {
	// LicenseID is the unique identifier for the validated license.
	LicenseID string

	// Plan is the commercial plan name.
	// Common plans: "community", "team", "enterprise"
	Plan string

	// Features lists the feature names this license unlocks.
	Features []string

	// Metadata carries extra claims from the license backend, so a
	// provider can attach data without touching this struct.
	Metadata Metadata
}

// HasFeature checks if the license unlocks a specific feature.
//
// This is a convenience method for gate checks:
//
//	if !info.HasFeature(extensions.FeatureBlacklistAPI) {
//		return ErrUnlicensed
//	}
func (l *LicenseInfo) HasFeature(feature string) bool {
	for _, f := range l.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// LicenseProvider validates license keys and reports unlocked features.
//
// Implementations are shared by every request and must be safe for
// concurrent use.
//
// # Community Edition Behavior
//
// The default NopLicenseProvider always returns a valid community license
// with every feature unlocked, so the local gateway functions with no
// licensing infrastructure at all.
//
// # Enterprise Backends
//
// Enterprise versions validate keys against a license backend and cache
// the result, downgrading gracefully when the backend is unreachable.
// A backend-verifying implementation looks like:
//
//	type PortalLicenseProvider struct {
//		client *portal.Client
//	}
//
//	func (p *PortalLicenseProvider) Check(ctx context.Context, key string) (*LicenseInfo, error) {
//		lease, err := p.client.Verify(ctx, key)
//		if err != nil { return nil, fmt.Errorf("portal verification: %w", ErrUnlicensed) }
//		return &LicenseInfo{LicenseID: lease.ID, Plan: lease.Plan, Features: lease.Features}, nil
//	}
type LicenseProvider interface {
	// Check validates the key and returns the license it names. The key
	// is whatever the caller presented and may be empty. Invalid keys
	// report ErrUnlicensed, possibly wrapped; any other error means the
	// check itself failed.
	Check(ctx context.Context, key string) (*LicenseInfo, error)
}

// NopLicenseProvider is the default license provider for the community
// edition. It always returns a valid community license with every feature
// unlocked.
//
// Stateless, so safe for concurrent use:
//
//	var p NopLicenseProvider
//	info, _ := p.Check(ctx, "")
//	// info.Plan == "community" and every feature is unlocked
type NopLicenseProvider struct{}

// Check always returns a valid community license.
//
// The key parameter is ignored - any value (including empty string)
// results in a fully unlocked license. This is intentional for local
// deployments.
func (p *NopLicenseProvider) Check(_ context.Context, _ string) (*LicenseInfo, error) {
	return &LicenseInfo{
		LicenseID: "local",
		Plan:      "community",
		Features: []string{
			FeatureBlacklistAPI,
			FeatureEventStream,
			FeatureVerdictExport,
		},
	}, nil
}

// Compile-time interface compliance check.
var _ LicenseProvider = (*NopLicenseProvider)(nil)
