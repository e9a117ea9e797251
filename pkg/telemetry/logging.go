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
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace stamps trace_id and span_id from ctx onto the logger
// so log lines can be joined to their trace. A nil logger falls back to
// slog.Default(); without a valid span context the logger is returned
// unchanged.
func LoggerWithTrace(ctx context.Context, lg *slog.Logger) *slog.Logger {
	if lg == nil {
		lg = slog.Default()
	}
	if ctx == nil {
		return lg
	}

	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return lg
	}

	return lg.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}

// LoggerWithRequest adds the gateway request ID on top of
// LoggerWithTrace. A verdict in the audit log can then be tied back to
// its trace and to the client-visible response through either field.
func LoggerWithRequest(ctx context.Context, lg *slog.Logger, requestID string) *slog.Logger {
	return LoggerWithTrace(ctx, lg).With(slog.String("request_id", requestID))
}
