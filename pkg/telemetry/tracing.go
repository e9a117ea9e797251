// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan opens a span on the named global tracer. Tracer names
// follow the package ("guardian.pipeline", "guardian.detectors"), span
// names the operation ("Engine.Check", "LlamaGuard.Probe"). The caller
// must end the span.
//
//	func (e *Engine) Check(ctx context.Context, text string) (*datatypes.Verdict, error) {
//		ctx, span := telemetry.StartSpan(ctx, "guardian.pipeline", "Engine.Check")
//		defer span.End()
//		// ... run the guard pipeline
//	}
func StartSpan(ctx context.Context, tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracer).Start(ctx, name, opts...)
}

// SpanFromContext returns the span stored on ctx.
//
// Returns a no-op span if no span is present, so callers can add events
// unconditionally.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// RecordError marks the span failed: the error becomes a span event and
// the span status goes to Error. Nil span or nil error is a no-op.
// Detector adapters call this on guard failures so a timeout is visible
// on the check span even though the pipeline fails open.
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	if len(attrs) > 0 {
		span.RecordError(err, trace.WithAttributes(attrs...))
	} else {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, err.Error())
}
