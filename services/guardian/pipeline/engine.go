// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates one content check end to end: counter
// commit, optional redaction, keyword stage, detector fan-out, resolution,
// and the combination rules that produce the internal verdict. All failure
// is trapped at this boundary; anything that goes wrong inside a check
// degrades to a safe fallback verdict, never to an error response.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/pkg/telemetry"
	"github.com/AleutianAI/AleutianGuard/services/guardian/audit"
	"github.com/AleutianAI/AleutianGuard/services/guardian/blacklist"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/detectors"
	"github.com/AleutianAI/AleutianGuard/services/guardian/events"
	"github.com/AleutianAI/AleutianGuard/services/guardian/filters"
	"github.com/AleutianAI/AleutianGuard/services/guardian/observability"
	"github.com/AleutianAI/AleutianGuard/services/guardian/resolver"
	"github.com/AleutianAI/AleutianGuard/services/guardian/stats"
	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

const tracerName = "guardian.pipeline"

// DefaultDeadline bounds one whole check when the configuration does not
// set its own.
const DefaultDeadline = 30 * time.Second

// sinkTimeout bounds one verdict-sink delivery. Sinks run off the request
// path, so this only caps how long a dead sink can hold a goroutine.
const sinkTimeout = 5 * time.Second

// Reasons composed by the pipeline itself. Everything else comes from the
// keyword report or the resolver.
const (
	// ReasonNoFilters is returned when neither the keyword filter nor any
	// detector is configured.
	ReasonNoFilters = "No filters enabled - content passed by default"

	// ReasonJointDetection is returned when the keyword filter and the
	// resolved detector outcome both flag the content.
	ReasonJointDetection = "Both keyword filter and AI guards detected unsafe content"

	keywordReasonPrefix = "Keyword filter: "
)

// Fallback points named in fallback reasons and recorded as metric labels.
const (
	pointPreKeyword    = "pre-keyword"
	pointPreDetector   = "pre-detector"
	pointPreResolution = "pre-resolution"
)

// Options wires one Engine. Resolver, Counter, and AuditLog are required;
// Blacklist is required when KeywordEnabled is set. Stats, Events, and
// Metrics are optional. Nil Redactor and Sink default to the no-op
// extensions.
type Options struct {
	Deadline       time.Duration
	ShortCircuit   bool
	KeywordEnabled bool

	Blacklist *blacklist.Store
	Detectors []detectors.Detector
	Resolver  *resolver.Resolver
	Counter   *audit.Counter
	AuditLog  *audit.Logger

	Stats   *stats.Store
	Events  *events.Hub
	Metrics *observability.GuardianMetrics

	Redactor extensions.ContentRedactor
	Sink     extensions.VerdictSink
}

// Engine runs checks. One engine is built at startup and shared by every
// request; all of its dependencies are individually safe for concurrent use.
type Engine struct {
	deadline     time.Duration
	shortCircuit bool
	keywordOn    bool

	blacklist *blacklist.Store
	detectors []detectors.Detector
	resolver  *resolver.Resolver
	counter   *audit.Counter
	auditLog  *audit.Logger

	stats   *stats.Store
	hub     *events.Hub
	metrics *observability.GuardianMetrics

	redactor extensions.ContentRedactor
	sink     extensions.VerdictSink
}

// New validates the wiring and returns a ready engine.
func New(opts Options) (*Engine, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("pipeline requires a resolver")
	}
	if opts.Counter == nil {
		return nil, fmt.Errorf("pipeline requires a units counter")
	}
	if opts.AuditLog == nil {
		return nil, fmt.Errorf("pipeline requires an audit logger")
	}
	if opts.KeywordEnabled && opts.Blacklist == nil {
		return nil, fmt.Errorf("keyword filter is enabled but no blacklist store was provided")
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	redactor := opts.Redactor
	if redactor == nil {
		redactor = &extensions.NopContentRedactor{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = &extensions.NopVerdictSink{}
	}

	return &Engine{
		deadline:     deadline,
		shortCircuit: opts.ShortCircuit,
		keywordOn:    opts.KeywordEnabled,
		blacklist:    opts.Blacklist,
		detectors:    opts.Detectors,
		resolver:     opts.Resolver,
		counter:      opts.Counter,
		auditLog:     opts.AuditLog,
		stats:        opts.Stats,
		hub:          opts.Events,
		metrics:      opts.Metrics,
		redactor:     redactor,
		sink:         sink,
	}, nil
}

// DetectorCount returns the number of configured detectors. Served by the
// health endpoint.
func (e *Engine) DetectorCount() int {
	return len(e.detectors)
}

// KeywordFilterEnabled reports whether the keyword stage runs.
func (e *Engine) KeywordFilterEnabled() bool {
	return e.keywordOn
}

// TotalUnits returns the running units total without committing anything.
func (e *Engine) TotalUnits() int64 {
	return e.counter.Total()
}

// Check runs the full pipeline over one text and returns the internal
// verdict.
//
// The verdict is always usable, fallback included. The error reports only an
// audit append failure: the decision stands, but it could not be recorded,
// and callers decide whether that degrades their response. The audit line
// and its counter marker are flushed before Check returns.
func (e *Engine) Check(ctx context.Context, text string, meta datatypes.RequestMeta) (*datatypes.Verdict, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.CheckStarted()
		defer e.metrics.CheckEnded()
	}

	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Engine.Check")
	defer span.End()

	v := &datatypes.Verdict{
		StageTimes:           make(map[string]time.Duration),
		Timestamp:            start.UTC(),
		Meta:                 meta,
		KeywordFilterEnabled: e.keywordOn,
	}

	// The counter commits before any inspection so a fallback verdict still
	// carries its units and the response total always includes this check.
	v.UnitsIn = audit.Units(text)
	v.UnitsTotal = e.counter.Add(v.UnitsIn)
	if e.metrics != nil {
		e.metrics.AddUnits(v.UnitsIn)
	}

	// Redaction replaces the text for every downstream stage, the audit hash
	// included. A redactor failure fails open: raw text is never inspected.
	inspectText := text
	red, rerr := e.redactor.Redact(ctx, text)
	if rerr != nil {
		telemetry.RecordError(span, rerr)
		slog.Error("Content redactor failed, failing open", "error", rerr)
		e.fallback(v, datatypes.StageStarted)
	} else if red != nil {
		inspectText = red.Redacted
		if red.WasModified {
			slog.Info("Content redacted before inspection", "detections", len(red.Detections))
		}
	}

	v.Hash = audit.ContentHash(inspectText)
	v.TextLen = len(inspectText)

	if !v.FallbackUsed {
		e.run(ctx, inspectText, v)
	}

	v.Duration = time.Since(start)
	if v.FallbackUsed {
		v.StageTimes[datatypes.StageFallback] = v.Duration
	} else {
		v.StageTimes[datatypes.StageReturned] = v.Duration
	}

	final := taxonomy.Normalize(v.Resolution.Final)
	span.SetAttributes(
		attribute.Bool("guardian.clean", v.Clean),
		attribute.String("guardian.category", string(final)),
		attribute.Bool("guardian.fallback", v.FallbackUsed),
	)

	err := e.auditLog.Log(e.record(v))
	if err != nil {
		telemetry.RecordError(span, err)
		slog.Error("Failed to record audit line for verdict", "error", err, "hash", v.Hash)
	}

	e.emit(ctx, v, final)

	if e.metrics != nil {
		e.metrics.RecordCheck(checkStatus(v), string(final), v.Duration.Seconds())
		if v.Resolution.Method != "" {
			e.metrics.RecordResolution(v.Resolution.Method)
		}
	}

	return v, err
}

// run executes the inspection stages and fills the decision fields of v.
// Panics and between-stage deadline expiry exit through the fallback path.
func (e *Engine) run(ctx context.Context, text string, v *datatypes.Verdict) {
	stage := datatypes.StageStarted

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Guard pipeline panic, failing open", "panic", r, "stage", stage)
			e.fallback(v, stage)
		}
	}()

	if ctx.Err() != nil {
		e.fallback(v, stage)
		return
	}

	var report *filters.Report
	if e.keywordOn {
		kwStart := time.Now()
		rep := filters.Run(text, e.blacklist.Snapshot())
		report = &rep
		v.PatternReport = report
		v.StageTimes[datatypes.StageKeywordRan] = time.Since(kwStart)
		stage = datatypes.StageKeywordRan

		if !rep.Clean && e.shortCircuit {
			reason := keywordReasonPrefix + rep.Reason
			v.Clean = false
			v.KeywordShortCircuit = true
			v.Reason = reason
			v.Resolution = resolver.Resolution{
				Final:  taxonomy.UnknownUnsafe,
				Method: resolver.MethodKeywordFilter,
				Reason: reason,
			}
			if e.metrics != nil {
				e.metrics.RecordKeywordBlock()
			}
			return
		}
	}

	if len(e.detectors) == 0 {
		e.concludeWithoutDetectors(v, report)
		return
	}

	if ctx.Err() != nil {
		e.fallback(v, stage)
		return
	}

	detStart := time.Now()
	results := make([]detectors.Result, len(e.detectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range e.detectors {
		g.Go(func() error {
			// A panicking adapter is a per-detector failure: it fails open
			// like any other backend error and the check continues.
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Detector panicked, failing open", "detector", d.ID(), "panic", r)
					results[i] = detectors.ErrorResult(d.ID())
				}
			}()
			one := time.Now()
			res := d.Inspect(gctx, text)
			if e.metrics != nil {
				e.metrics.RecordDetector(roleLabel(d.Role()), outcomeOf(res), time.Since(one).Seconds())
			}
			results[i] = res
			return nil
		})
	}
	// Inspections fail open by contract, so the group never reports an error.
	_ = g.Wait()
	v.DetectorResults = results
	v.StageTimes[datatypes.StageDetectorsRan] = time.Since(detStart)
	stage = datatypes.StageDetectorsRan

	// Deadline expiry mid-detector is not a pipeline failure: the affected
	// detectors already failed open and resolution is CPU-bound, so the
	// check proceeds to a real verdict.
	resStart := time.Now()
	res := e.resolver.Resolve(results)
	v.StageTimes[datatypes.StageResolved] = time.Since(resStart)
	stage = datatypes.StageResolved

	e.combine(v, report, res)
}

// combine merges the keyword outcome with the detector resolution. A keyword
// hit only reaches this point when short-circuiting is disabled; it still
// caps the verdict at unsafe.
func (e *Engine) combine(v *datatypes.Verdict, report *filters.Report, res resolver.Resolution) {
	if report != nil && !report.Clean {
		v.Clean = false
		if !res.IsSafe() {
			v.Reason = ReasonJointDetection
			v.Resolution = res
			return
		}
		// Only the keyword filter flagged: its category and method replace
		// the safe resolution so the verdict stays coherent.
		reason := keywordReasonPrefix + report.Reason
		res.Final = taxonomy.UnknownUnsafe
		res.Method = resolver.MethodKeywordFilter
		res.Reason = reason
		v.Reason = reason
		v.Resolution = res
		return
	}

	v.Clean = res.IsSafe()
	v.Reason = res.Reason
	v.Resolution = res
}

// concludeWithoutDetectors settles a check in which no detector ran: the
// keyword report decides alone, or nothing was configured at all.
func (e *Engine) concludeWithoutDetectors(v *datatypes.Verdict, report *filters.Report) {
	if report != nil {
		final := taxonomy.Safe
		if !report.Clean {
			final = taxonomy.UnknownUnsafe
		}
		v.Clean = report.Clean
		v.Reason = report.Reason
		v.Resolution = resolver.Resolution{
			Final:  final,
			Method: resolver.MethodKeywordFilter,
			Reason: report.Reason,
		}
		return
	}

	v.Clean = true
	v.Reason = ReasonNoFilters
	v.Resolution = resolver.Resolution{
		Final:  taxonomy.Safe,
		Reason: ReasonNoFilters,
	}
}

// fallback rewrites v into the safe fail-open verdict for a failure at the
// given stage. Every fallback is clean.
func (e *Engine) fallback(v *datatypes.Verdict, stage string) {
	point := pointPreKeyword
	switch stage {
	case datatypes.StageKeywordRan:
		point = pointPreDetector
	case datatypes.StageDetectorsRan, datatypes.StageResolved:
		point = pointPreResolution
	}

	reason := fmt.Sprintf("Guard pipeline error - defaulting to safe (%s)", point)
	v.Clean = true
	v.FallbackUsed = true
	v.Reason = reason
	v.Resolution = resolver.Resolution{
		Final:  taxonomy.Safe,
		Method: resolver.MethodFallback,
		Reason: reason,
	}

	if e.metrics != nil {
		e.metrics.RecordFallback(point)
	}
}

// record projects the verdict onto the audit schema.
func (e *Engine) record(v *datatypes.Verdict) audit.Record {
	rec := audit.Record{
		Safe:       v.Clean,
		Fallback:   v.FallbackUsed,
		Category:   taxonomy.Normalize(v.Resolution.Final),
		Hash:       v.Hash,
		TextLen:    v.TextLen,
		UnitsIn:    v.UnitsIn,
		UnitsTotal: v.UnitsTotal,
		Duration:   v.Duration,
		Method:     v.Resolution.Method,
		Reason:     v.Reason,
		ClientID:   v.Meta.ClientID,
		UserAgent:  v.Meta.UserAgent,
		RequestID:  v.Meta.RequestID,
	}
	if v.PatternReport != nil {
		rec.Keywords = v.PatternReport.Keywords()
		rec.RuleHits = v.PatternReport.PatternCount()
	}
	for _, res := range v.DetectorResults {
		rec.Detectors = append(rec.Detectors, audit.DetectorOutcome{ID: res.DetectorID, Raw: res.Raw})
	}
	return rec
}

// emit feeds the post-verdict consumers: the stats store, the live event
// hub, and the verdict sink. All of them are best-effort; the check already
// succeeded and its audit line is durable. Bookkeeping runs on an
// uncancelable context because a check that ended via deadline expiry still
// counts.
func (e *Engine) emit(ctx context.Context, v *datatypes.Verdict, final taxonomy.Category) {
	bgCtx := context.WithoutCancel(ctx)

	if e.stats != nil {
		out := stats.Outcome{
			Safe:                v.Clean,
			Category:            final,
			Fallback:            v.FallbackUsed,
			KeywordShortCircuit: v.KeywordShortCircuit,
		}
		if err := e.stats.Record(bgCtx, out); err != nil {
			slog.Warn("Failed to record check statistics", "error", err)
		}
	}

	if e.hub != nil {
		confidence := datatypes.ConfidenceHigh
		if v.FallbackUsed {
			confidence = datatypes.ConfidenceMedium
		}
		e.hub.Publish(events.Event{
			RequestID:        v.Meta.RequestID,
			IsSafe:           v.Clean,
			Category:         taxonomy.PublicName(final),
			Confidence:       confidence,
			Fallback:         v.FallbackUsed,
			ProcessingTimeMs: math.Round(float64(v.Duration.Microseconds())/1000.0*100.0) / 100.0,
			Timestamp:        v.Timestamp.Unix(),
		})
	}

	ev := extensions.VerdictEvent{
		RequestID:   v.Meta.RequestID,
		ClientID:    v.Meta.ClientID,
		Timestamp:   time.Now().UTC(),
		Safe:        v.Clean,
		Fallback:    v.FallbackUsed,
		Category:    taxonomy.Lookup(final).Code,
		Method:      v.Resolution.Method,
		ContentHash: v.Hash,
		TextLen:     v.TextLen,
		Units:       v.UnitsIn,
		TotalUnits:  v.UnitsTotal,
		Duration:    v.Duration,
	}
	if ev.ClientID == "" {
		ev.ClientID = "anonymous"
	}
	// Per-detector provenance rides in the metadata map; sinks that
	// archive events can reconstruct who voted what.
	if v.KeywordShortCircuit || len(v.DetectorResults) > 0 {
		meta := extensions.NewMetadata().
			Set("keyword_short_circuit", v.KeywordShortCircuit)
		for _, r := range v.DetectorResults {
			meta.Set("detector."+r.DetectorID, string(r.Category))
		}
		ev.Metadata = meta
	}
	go func() {
		sctx, cancel := context.WithTimeout(bgCtx, sinkTimeout)
		defer cancel()
		if err := e.sink.Consume(sctx, ev); err != nil {
			slog.Warn("Verdict sink rejected event, dropping", "error", err, "request_id", ev.RequestID)
		}
	}()
}

// checkStatus maps a verdict onto the check metric's status label.
func checkStatus(v *datatypes.Verdict) observability.Status {
	switch {
	case v.FallbackUsed:
		return observability.StatusFallback
	case v.Clean:
		return observability.StatusSafe
	default:
		return observability.StatusUnsafe
	}
}

// outcomeOf maps a detector result onto the detector metric's outcome label.
func outcomeOf(res detectors.Result) observability.Outcome {
	switch res.Raw {
	case detectors.RawTimeout:
		return observability.OutcomeTimeout
	case detectors.RawError:
		return observability.OutcomeError
	default:
		return observability.OutcomeOK
	}
}

// roleLabel keeps the metric label space closed: detectors without a
// resolver role share one label.
func roleLabel(role detectors.Role) string {
	if role == detectors.RoleNone {
		return "none"
	}
	return string(role)
}
