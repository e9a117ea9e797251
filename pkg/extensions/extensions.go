// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions holds the seams where AleutianEnterprise plugs
// into the gateway.
//
// The open source gateway is complete on its own: every seam ships with
// a no-op implementation, and a nil ServiceOptions means "run with the
// defaults". Enterprise builds construct the same guardian service but
// hand it concrete implementations instead.
//
// # Extension Seams
//
// One file per seam:
//
//   - license.go: License validation and feature gating (LicenseProvider)
//   - redactor.go: Submission redaction before inspection (ContentRedactor)
//   - sink.go: Verdict export to external systems (VerdictSink)
//
// # Usage in AleutianGuard (Open Source)
//
//	svc := guardian.New(cfg, extensions.DefaultOptions())
//
// # Usage in Enterprise Builds
//
//	ext := extensions.ServiceOptions{
//		License:  enterprise.NewLicenseClient(cfg),
//		Redactor: enterprise.NewPIIRedactor(policy),
//		Sink:     enterprise.NewSplunkSink(cfg),
//	}
//	svc := guardian.New(cfg, ext)
//
// # Thread Safety
//
// The gateway calls every seam from concurrent request handlers, so
// implementations must tolerate simultaneous calls.
package extensions

// ServiceOptions bundles the pluggable seams a guardian service runs
// with.
//
// Pass this to the guardian constructor to enable enterprise features.
// Every field is optional; the constructor swaps nil fields for this
// package's no-op defaults.
type ServiceOptions struct {
	// License validates deployments and gates enterprise features.
	// Default: NopLicenseProvider (always licensed, community plan)
	License LicenseProvider

	// Redactor transforms submissions before any filter or detector
	// sees them.
	// Default: NopContentRedactor (passes through unchanged)
	Redactor ContentRedactor

	// Sink receives completed verdicts for external export.
	// Default: NopVerdictSink (discards all events)
	Sink VerdictSink
}

// DefaultOptions returns the all-no-op configuration the community
// gateway runs with: every check is licensed, nothing is redacted,
// and no verdicts leave the process.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		License:  &NopLicenseProvider{},
		Redactor: &NopContentRedactor{},
		Sink:     &NopVerdictSink{},
	}
}

// WithLicense returns a copy of opts with the given LicenseProvider,
// for chained construction.
func (opts ServiceOptions) WithLicense(provider LicenseProvider) ServiceOptions {
	opts.License = provider
	return opts
}

// WithRedactor returns a copy of opts with the given ContentRedactor.
func (opts ServiceOptions) WithRedactor(redactor ContentRedactor) ServiceOptions {
	opts.Redactor = redactor
	return opts
}

// WithSink returns a copy of opts with the given VerdictSink.
func (opts ServiceOptions) WithSink(sink VerdictSink) ServiceOptions {
	opts.Sink = sink
	return opts
}
