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
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config selects the exporters and the identity stamped on everything the
// gateway emits. Zero values are not usable; start from DefaultConfig().
type Config struct {
	// ServiceName appears as service.name on every span and metric.
	ServiceName string

	// ServiceVersion appears as service.version. The gateway binary
	// stamps its build version here at startup.
	ServiceVersion string

	// Environment separates deployments (development, staging, production).
	Environment string

	// TraceExporter picks where spans go: "otlp", "stdout", or "none".
	TraceExporter string

	// MetricExporter picks where measurements go: "prometheus", "stdout",
	// or "none".
	MetricExporter string

	// OTLPEndpoint is the gRPC collector address spans are shipped to.
	OTLPEndpoint string

	// OTLPInsecure dials the collector without TLS, the usual arrangement
	// for a sidecar or in-cluster collector.
	OTLPInsecure bool
}

// Exporter selector values recognized by Init.
const (
	exporterOTLP       = "otlp"
	exporterStdout     = "stdout"
	exporterPrometheus = "prometheus"
	exporterNone       = "none"
)

// DefaultConfig returns development defaults. Deployments tune them through
// the environment rather than code: GUARDIAN_ENV sets Environment, and the
// standard OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER, and
// OTEL_EXPORTER_OTLP_ENDPOINT variables set their matching fields.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "aleutian-guardian",
		ServiceVersion: "dev",
		Environment:    envOr("GUARDIAN_ENV", "development"),

		TraceExporter:  envOr("OTEL_TRACES_EXPORTER", exporterOTLP),
		MetricExporter: envOr("OTEL_METRICS_EXPORTER", exporterPrometheus),

		OTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure: true,
	}
}

// Init stands up the OpenTelemetry stack for the gateway.
//
// # Description
//
//	Installs the global TracerProvider, MeterProvider, and W3C propagator
//	according to cfg. Once Init returns, otel.Tracer() and otel.Meter()
//	work anywhere in the gateway, and PropagateToRequest carries trace
//	context across to detector backends.
//
// # Inputs
//
//	ctx - Bounds exporter dialing during setup.
//	cfg - Exporter selection and service identity; DefaultConfig() covers
//	      development.
//
// # Outputs
//
//	stop - Flushes and stops every provider that was started. Callers
//	       must invoke it on exit or buffered spans are lost.
//	error - Non-nil when an exporter cannot be built.
//
// # Example
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = guardian.Version
//	stop, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer stop(context.Background())
//
// Thread Safety: Call once from main before serving traffic.
func Init(ctx context.Context, cfg Config) (stop func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	// Service identity under the standard service.* attribute keys.
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	var cleanups []func(context.Context) error

	if cfg.TraceExporter != exporterNone {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("configure tracing: %w", err)
		}
		otel.SetTracerProvider(tp)
		cleanups = append(cleanups, tp.Shutdown)
	}

	if cfg.MetricExporter != exporterNone {
		mp, err := newMeterProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("configure metrics: %w", err)
		}
		otel.SetMeterProvider(mp)
		cleanups = append(cleanups, mp.Shutdown)
	}

	// Detector backends sit behind plain HTTP, so outgoing requests need the
	// W3C propagator installed for trace context to survive the hop.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	stop = func(ctx context.Context) error {
		var failures []error
		for _, fn := range cleanups {
			failures = append(failures, fn(ctx))
		}
		return errors.Join(failures...)
	}
	return stop, nil
}

// newTracerProvider wraps the configured span exporter in a batching
// provider. Every check is sampled; verdict traffic is low enough that
// head sampling would only hide the interesting requests.
func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp := trace.NewTracerProvider(trace.WithBatcher(exp),
		trace.WithResource(res), trace.WithSampler(trace.AlwaysSample()))
	return tp, nil
}

// newSpanExporter dials the configured span destination.
func newSpanExporter(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	switch kind := cfg.TraceExporter; kind {
	case exporterOTLP:
		dialOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			dialOpts = append(dialOpts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, dialOpts...)
	case exporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, kind)
	}
}

// newMeterProvider wraps the configured metric reader in a provider.
func newMeterProvider(cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	reader, err := newMetricReader(cfg)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(res)), nil
}

// newMetricReader builds the reader for the configured metric exporter.
func newMetricReader(cfg Config) (metric.Reader, error) {
	switch kind := cfg.MetricExporter; kind {
	case exporterPrometheus:
		exp, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}

		// The OTel prometheus exporter registers with the default
		// prometheus registry, so promhttp.Handler() serves these
		// metrics alongside the guardian counters registered via
		// promauto. Stash the handler for MetricsHandler().
		promMu.Lock()
		promHandler = promhttp.Handler()
		promMu.Unlock()

		return exp, nil
	case exporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		return metric.NewPeriodicReader(exp), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, kind)
	}
}

// promHandler holds the scrape handler built during Init; the gateway router
// mounts it through MetricsHandler.
var (
	promHandler http.Handler
	promMu      sync.RWMutex
)

// MetricsHandler returns the handler for the /metrics endpoint.
//
// # Description
//
//	Hands back the Prometheus scrape handler built during Init. Nil when
//	metrics are disabled or a non-prometheus exporter is configured, in
//	which case the router skips the route.
//
// # Outputs
//
//	http.Handler - Serves the default Prometheus registry, or nil.
//
// Thread Safety: Safe to call from any goroutine.
func MetricsHandler() http.Handler {
	promMu.RLock()
	defer promMu.RUnlock()
	return promHandler
}

// envOr returns the environment variable value, or def when the variable is
// unset or empty.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
