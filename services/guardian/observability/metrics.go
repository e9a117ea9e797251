// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the guardian.
//
// # Description
//
// Metrics cover the full check pipeline: per-verdict counters, stage
// latencies, detector outcomes, fallbacks, and blacklist reloads. Detector
// series are labeled by role (primary/secondary), never by model or vendor
// name, so scrape output stays free of backend identities.
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// Prometheus handles locking internally; every helper here can be
// called concurrently.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Set
// =============================================================================

// Namespace shared by every Aleutian service.
const metricsNamespace = "aleutian"

// Subsystem for the gateway series.
const guardianSubsystem = "guardian"

// GuardianMetrics holds all Prometheus metrics for content checks.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring check volume,
// verdict mix, detector health, and fallback pressure. Initialize once at
// startup via InitMetrics().
type GuardianMetrics struct {
	// ChecksTotal counts completed checks.
	// Labels: status (safe, unsafe, fallback), category (public category name)
	ChecksTotal *prometheus.CounterVec

	// CheckDurationSeconds measures end-to-end check latency.
	// Labels: status (safe, unsafe, fallback)
	CheckDurationSeconds *prometheus.HistogramVec

	// DetectorLatencySeconds measures per-detector inspection latency.
	// Labels: role (primary, secondary), outcome (ok, timeout, error)
	DetectorLatencySeconds *prometheus.HistogramVec

	// KeywordBlocksTotal counts checks stopped by the keyword filter alone.
	KeywordBlocksTotal prometheus.Counter

	// FallbacksTotal counts fail-open verdicts by the stage that failed.
	// Labels: stage (pre-keyword, pre-detector, pre-resolution)
	FallbacksTotal *prometheus.CounterVec

	// ResolutionsTotal counts conflict resolutions by method.
	// Labels: method (both_safe, consensus, highest_severity, ...)
	ResolutionsTotal *prometheus.CounterVec

	// UnitsProcessedTotal counts billing units consumed by accepted checks.
	UnitsProcessedTotal prometheus.Counter

	// ActiveChecks tracks checks currently inside the pipeline.
	ActiveChecks prometheus.Gauge

	// BlacklistReloadsTotal counts blacklist swap attempts.
	// Labels: source (file, api), status (ok, error)
	BlacklistReloadsTotal *prometheus.CounterVec

	// EventSubscribers tracks attached live-feed listeners.
	EventSubscribers prometheus.Gauge
}

// DefaultMetrics is the process-wide metrics set. Set by InitMetrics().
var DefaultMetrics *GuardianMetrics

// InitMetrics builds DefaultMetrics against the default Prometheus
// registry.
//
// # Description
//
// Call once at gateway startup, before the pipeline is constructed.
//
// # Limitations
//
//   - Calling it twice panics on duplicate registration.
func InitMetrics() *GuardianMetrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates a metrics set registered against reg. Tests pass a
// private registry so parallel packages never collide.
func NewMetrics(reg prometheus.Registerer) *GuardianMetrics {
	factory := promauto.With(reg)

	return &GuardianMetrics{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "checks_total",
				Help:      "Total content checks by status and category",
			},
			[]string{"status", "category"},
		),

		CheckDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "check_duration_seconds",
				Help:      "End-to-end check latency in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"status"},
		),

		DetectorLatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "detector_latency_seconds",
				Help:      "Per-detector inspection latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 25.0},
			},
			[]string{"role", "outcome"},
		),

		KeywordBlocksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "keyword_blocks_total",
				Help:      "Checks blocked by the keyword filter before any detector ran",
			},
		),

		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "fallbacks_total",
				Help:      "Fail-open verdicts by pipeline stage",
			},
			[]string{"stage"},
		),

		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "resolutions_total",
				Help:      "Conflict resolutions by method",
			},
			[]string{"method"},
		),

		UnitsProcessedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "units_processed_total",
				Help:      "Billing units consumed by accepted checks",
			},
		),

		ActiveChecks: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "active_checks",
				Help:      "Checks currently inside the pipeline",
			},
		),

		BlacklistReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "blacklist_reloads_total",
				Help:      "Blacklist swap attempts by source and status",
			},
			[]string{"source", "status"},
		),

		EventSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "event_subscribers",
				Help:      "Attached live verdict feed listeners",
			},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// Status labels a completed check for the checks_total series.
type Status string

const (
	// StatusSafe marks a check that returned a safe verdict.
	StatusSafe Status = "safe"

	// StatusUnsafe marks a check that returned an unsafe verdict.
	StatusUnsafe Status = "unsafe"

	// StatusFallback marks a fail-open verdict.
	StatusFallback Status = "fallback"
)

// Outcome labels one detector inspection.
type Outcome string

const (
	// OutcomeOK marks a detector reply parsed into a verdict.
	OutcomeOK Outcome = "ok"

	// OutcomeTimeout marks a detector that exceeded its budget.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeError marks a detector transport or backend failure.
	OutcomeError Outcome = "error"
)

// =============================================================================
// Recording Helpers
// =============================================================================

// RecordCheck records one completed check.
//
// # Inputs
//
//   - status: The verdict status label.
//   - category: The public category name.
//   - seconds: End-to-end latency in seconds.
func (m *GuardianMetrics) RecordCheck(status Status, category string, seconds float64) {
	m.ChecksTotal.WithLabelValues(string(status), category).Inc()
	m.CheckDurationSeconds.WithLabelValues(string(status)).Observe(seconds)
}

// RecordDetector records one detector inspection.
//
// # Inputs
//
//   - role: "primary" or "secondary".
//   - outcome: How the inspection ended.
//   - seconds: Inspection latency in seconds.
func (m *GuardianMetrics) RecordDetector(role string, outcome Outcome, seconds float64) {
	m.DetectorLatencySeconds.WithLabelValues(role, string(outcome)).Observe(seconds)
}

// RecordKeywordBlock counts a check stopped by the keyword filter.
func (m *GuardianMetrics) RecordKeywordBlock() {
	m.KeywordBlocksTotal.Inc()
}

// RecordFallback counts a fail-open verdict for the given stage.
func (m *GuardianMetrics) RecordFallback(stage string) {
	m.FallbacksTotal.WithLabelValues(stage).Inc()
}

// RecordResolution counts one conflict resolution by method.
func (m *GuardianMetrics) RecordResolution(method string) {
	m.ResolutionsTotal.WithLabelValues(method).Inc()
}

// AddUnits adds consumed billing units.
func (m *GuardianMetrics) AddUnits(n int64) {
	m.UnitsProcessedTotal.Add(float64(n))
}

// CheckStarted increments the in-flight gauge.
func (m *GuardianMetrics) CheckStarted() {
	m.ActiveChecks.Inc()
}

// CheckEnded decrements the in-flight gauge.
func (m *GuardianMetrics) CheckEnded() {
	m.ActiveChecks.Dec()
}

// RecordBlacklistReload counts one blacklist swap attempt.
func (m *GuardianMetrics) RecordBlacklistReload(source string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.BlacklistReloadsTotal.WithLabelValues(source, status).Inc()
}

// SetEventSubscribers records the current live-feed listener count.
func (m *GuardianMetrics) SetEventSubscribers(n int) {
	m.EventSubscribers.Set(float64(n))
}
