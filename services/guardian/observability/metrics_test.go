// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics builds a metrics set on a private registry so tests never
// collide with the global one.
func newTestMetrics(t *testing.T) *GuardianMetrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestRecordCheck(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCheck(StatusSafe, "safe", 0.2)
	m.RecordCheck(StatusSafe, "safe", 0.4)
	m.RecordCheck(StatusUnsafe, "injection_attempt", 1.8)
	m.RecordCheck(StatusFallback, "safe", 30.0)

	if val := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("safe", "safe")); val != 2 {
		t.Errorf("ChecksTotal[safe,safe] = %f, want 2", val)
	}
	if val := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("unsafe", "injection_attempt")); val != 1 {
		t.Errorf("ChecksTotal[unsafe,injection_attempt] = %f, want 1", val)
	}
	if val := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("fallback", "safe")); val != 1 {
		t.Errorf("ChecksTotal[fallback,safe] = %f, want 1", val)
	}
	if count := testutil.CollectAndCount(m.CheckDurationSeconds); count == 0 {
		t.Error("CheckDurationSeconds recorded nothing")
	}
}

func TestRecordDetectorOutcomes(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDetector("primary", OutcomeOK, 0.8)
	m.RecordDetector("primary", OutcomeTimeout, 25.0)
	m.RecordDetector("secondary", OutcomeError, 0.1)

	if count := testutil.CollectAndCount(m.DetectorLatencySeconds); count != 3 {
		t.Errorf("DetectorLatencySeconds series = %d, want 3", count)
	}
}

func TestCheckLifecycleGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.CheckStarted()
	m.CheckStarted()
	if val := testutil.ToFloat64(m.ActiveChecks); val != 2 {
		t.Errorf("ActiveChecks = %f, want 2", val)
	}

	m.CheckEnded()
	m.CheckEnded()
	if val := testutil.ToFloat64(m.ActiveChecks); val != 0 {
		t.Errorf("ActiveChecks = %f after all ends, want 0", val)
	}
}

func TestKeywordBlocksAndUnits(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordKeywordBlock()
	m.RecordKeywordBlock()
	m.AddUnits(11)
	m.AddUnits(4)

	if val := testutil.ToFloat64(m.KeywordBlocksTotal); val != 2 {
		t.Errorf("KeywordBlocksTotal = %f, want 2", val)
	}
	if val := testutil.ToFloat64(m.UnitsProcessedTotal); val != 15 {
		t.Errorf("UnitsProcessedTotal = %f, want 15", val)
	}
}

func TestRecordFallbackAndResolution(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFallback("pre-detector")
	m.RecordFallback("pre-detector")
	m.RecordResolution("both_safe")
	m.RecordResolution("highest_severity")

	if val := testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("pre-detector")); val != 2 {
		t.Errorf("FallbacksTotal[pre-detector] = %f, want 2", val)
	}
	if val := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("both_safe")); val != 1 {
		t.Errorf("ResolutionsTotal[both_safe] = %f, want 1", val)
	}
}

func TestRecordBlacklistReload(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBlacklistReload("file", true)
	m.RecordBlacklistReload("file", false)
	m.RecordBlacklistReload("api", true)

	if val := testutil.ToFloat64(m.BlacklistReloadsTotal.WithLabelValues("file", "ok")); val != 1 {
		t.Errorf("BlacklistReloadsTotal[file,ok] = %f, want 1", val)
	}
	if val := testutil.ToFloat64(m.BlacklistReloadsTotal.WithLabelValues("file", "error")); val != 1 {
		t.Errorf("BlacklistReloadsTotal[file,error] = %f, want 1", val)
	}
}

func TestEventSubscribersGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.SetEventSubscribers(3)
	if val := testutil.ToFloat64(m.EventSubscribers); val != 3 {
		t.Errorf("EventSubscribers = %f, want 3", val)
	}
	m.SetEventSubscribers(0)
	if val := testutil.ToFloat64(m.EventSubscribers); val != 0 {
		t.Errorf("EventSubscribers = %f, want 0", val)
	}
}

func TestConcurrentRecording(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 60)
	for i := 0; i < 20; i++ {
		go func() {
			m.RecordCheck(StatusSafe, "safe", 0.1)
			done <- true
		}()
		go func() {
			m.RecordDetector("primary", OutcomeOK, 0.5)
			done <- true
		}()
		go func() {
			m.CheckStarted()
			m.CheckEnded()
			done <- true
		}()
	}
	for i := 0; i < 60; i++ {
		<-done
	}

	if val := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("safe", "safe")); val != 20 {
		t.Errorf("ChecksTotal[safe,safe] = %f, want 20", val)
	}
	if val := testutil.ToFloat64(m.ActiveChecks); val != 0 {
		t.Errorf("ActiveChecks = %f, want 0", val)
	}
}
