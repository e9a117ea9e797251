// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics into the
// AleutianGuard gateway.
//
// The package owns SDK setup only. Instrumented code talks to the OTel
// API directly: there is no wrapper interface between the gateway and
// otel.Tracer()/otel.Meter(), and an operator changes where the data
// goes by changing exporter configuration, never code.
//
// # Traces
//
// The default exporter is OTLP over gRPC, pointed at a local collector
// or any backend that speaks the protocol (Jaeger accepts OTLP natively
// since 1.35). A check produces one root span from the HTTP middleware,
// a pipeline span beneath it, and one child span per outgoing guard
// model call, so a slow detector is visible as a span rather than an
// unexplained gap. StartSpan and RecordError are thin helpers over the
// global tracer.
//
// # Metrics
//
// The default exporter is Prometheus pull. Init registers the OTel
// exporter with the default prometheus registry and MetricsHandler()
// hands the scrape handler to the router, which mounts it at /metrics
// next to the counters from services/guardian/observability.
//
// # Log Correlation
//
// LoggerWithTrace stamps trace_id and span_id onto a slog.Logger, and
// LoggerWithRequest adds the gateway request ID on top. A verdict in
// the audit log can then be joined to its trace and to the
// client-visible response through either identifier.
//
// # Usage
//
//	stop, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer stop(context.Background())
//
//	ctx, span := telemetry.StartSpan(ctx, "guardian.pipeline", "Engine.Check")
//	defer span.End()
//
// # Environment Variables
//
// Standard OTel environment variables are honored by DefaultConfig:
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: collector address (default localhost:4317)
//   - OTEL_TRACES_EXPORTER: one of otlp, stdout, none (default otlp)
//   - OTEL_METRICS_EXPORTER: one of prometheus, stdout, none (default prometheus)
//   - GUARDIAN_ENV: deployment environment (default development)
//
// # Thread Safety
//
// Every exported function is safe for concurrent use once Init has returned.
package telemetry
