// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guardian provides the content safety gateway service.
//
// This package contains the main service type that assembles every
// component of the gateway: the keyword blacklist, the model-backed
// detector adapters, the conflict resolver, the check pipeline, the audit
// stream, statistics, the live event hub, and the HTTP edge.
//
// # Enterprise Extensions
//
// The guardian takes dependency injection via extensions.ServiceOptions,
// so enterprise builds can swap in their own implementations of:
//   - LicenseProvider: gate management surfaces on commercial plans
//   - ContentRedactor: PII masking before any filter or detector runs
//   - VerdictSink: verdict export to SIEM or data warehouses
//
// # Usage
//
// Open source builds pass nil options and run with the no-op defaults:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc, err := guardian.New(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := svc.Run(); err != nil {
//		log.Fatal(err)
//	}
//
// Enterprise builds inject their own implementations:
//
//	opts := extensions.DefaultOptions().
//		WithLicense(portalProvider).
//		WithSink(siemSink)
//	svc, err := guardian.New(cfg, &opts)
package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/pkg/telemetry"
	"github.com/AleutianAI/AleutianGuard/services/guardian/audit"
	"github.com/AleutianAI/AleutianGuard/services/guardian/blacklist"
	"github.com/AleutianAI/AleutianGuard/services/guardian/config"
	"github.com/AleutianAI/AleutianGuard/services/guardian/detectors"
	"github.com/AleutianAI/AleutianGuard/services/guardian/events"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/AleutianAI/AleutianGuard/services/guardian/observability"
	"github.com/AleutianAI/AleutianGuard/services/guardian/pipeline"
	"github.com/AleutianAI/AleutianGuard/services/guardian/resolver"
	"github.com/AleutianAI/AleutianGuard/services/guardian/routes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/sanitize"
	"github.com/AleutianAI/AleutianGuard/services/guardian/stats"
)

// Version is reported by GET /health and stamped on telemetry resources.
const Version = "1.0.0"

// serviceName labels spans and the otelgin middleware.
const serviceName = "guardian-service"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the guardian service.
//
// # Description
//
// Service abstracts the running gateway so main, tests, and enterprise
// wrappers all see the same lifecycle. The surface is small: serve,
// drain, rotate the audit stream, and reach the router.
//
// # Thread Safety
//
// Implementations are safe for concurrent use. Run blocks the calling
// goroutine and must not be invoked twice on one instance.
type Service interface {
	// Run starts the HTTP server and blocks until Stop is called or the
	// listener fails. Resources are released before Run returns.
	Run() error

	// Stop gracefully drains the HTTP server. In-flight checks finish
	// (bounded by ctx); new connections are refused.
	Stop(ctx context.Context) error

	// Router exposes the Gin engine so tests can drive requests
	// through it.
	//
	// # Limitations
	//
	//   - Route mutation after construction is not supported
	Router() *gin.Engine

	// ReopenAuditLog closes and reopens the audit stream. Wire it to
	// SIGHUP so logrotate can move the file without losing events.
	ReopenAuditLog() error
}

// =============================================================================
// Implementation
// =============================================================================

// service is the production Service.
//
// # Description
//
// service owns every long-lived component of the gateway:
//   - the Gin router and the HTTP server
//   - the keyword blacklist store and its file watcher
//   - model-backed detector adapters behind Ollama or OpenAI transports
//   - the check pipeline with its fail-safe boundary
//   - the append-only audit stream and durable token counter
//   - durable statistics, the live event hub, and OpenTelemetry
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config config.Config
	opts   extensions.ServiceOptions

	router     *gin.Engine
	httpServer *http.Server

	blacklist     *blacklist.Store
	watcher       *blacklist.Watcher
	watcherCancel context.CancelFunc

	detectors []detectors.Detector
	engine    *pipeline.Engine
	sanitizer *sanitize.Sanitizer

	auditLog *audit.Logger
	counter  *audit.Counter
	stats    *stats.Store
	hub      *events.Hub
	metrics  *observability.GuardianMetrics

	telemetryShutdown func(context.Context) error
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a guardian Service from a validated configuration.
//
// # Description
//
// New initializes all gateway components in dependency order:
//  1. OpenTelemetry tracing and metrics
//  2. Blacklist store (embedded, file, or seeded file) and watcher
//  3. Detector adapters, probed in the background for availability
//  4. Conflict resolver with the configured roles and strategy
//  5. Audit stream and token counter (recovering the persisted total)
//  6. Statistics store and event hub
//  7. The check pipeline and response sanitizer
//  8. HTTP routes with the extension options applied
//
// If opts is nil, extensions.DefaultOptions() is used (no-op
// implementations: always licensed, nothing redacted, no export).
//
// # Inputs
//
//   - cfg: Configuration from config.Load. Assumed validated.
//   - opts: Enterprise extension points. nil selects DefaultOptions.
//
// # Outputs
//
//   - Service: Ready-to-run gateway
//   - error: Non-nil if any required component fails to initialize
//
// # Limitations
//
//   - Detector backends are probed but never required: an unreachable
//     backend degrades to fail-open results at check time.
func New(cfg config.Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{config: cfg}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}
	if s.opts.License == nil {
		s.opts.License = &extensions.NopLicenseProvider{}
	}

	if err := s.initTelemetry(); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.Observability.MetricsEnabled {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the guard pipeline")
	}

	if err := s.initBlacklist(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize blacklist: %w", err)
	}

	s.initDetectors()

	if err := s.initPipeline(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until Stop is called or the
// listener fails.
//
// # Description
//
// Serves the configured address with the configured read/write timeouts.
// A graceful Stop returns nil; any other listener failure is returned.
// All resources are released before Run returns, so the audit stream and
// the statistics store are flushed by the time the process can exit.
func (s *service) Run() error {
	defer s.cleanup()

	s.httpServer = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout),
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout),
	}

	slog.Info("Starting guardian server",
		"addr", s.config.Addr(),
		"detectors", len(s.detectors),
		"keyword_filter", s.config.Keyword.Enabled,
		"short_circuit", s.config.Pipeline.ShortCircuit,
		"total_units", s.counter.Total(),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully drains the HTTP server.
func (s *service) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("Draining guardian server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the Gin engine to tests.
func (s *service) Router() *gin.Engine {
	return s.router
}

// ReopenAuditLog closes and reopens the audit stream after rotation.
func (s *service) ReopenAuditLog() error {
	if err := s.auditLog.Reopen(); err != nil {
		return err
	}
	s.auditLog.CheckLogSize()
	return nil
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTelemetry maps the observability configuration onto the telemetry
// package and installs the global providers. Disabled tracing or metrics
// become the "none" exporter rather than a missing provider, so
// instrumented code never branches.
func (s *service) initTelemetry() error {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = Version
	if s.config.Observability.ServiceName != "" {
		tcfg.ServiceName = s.config.Observability.ServiceName
	}
	if s.config.Observability.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = s.config.Observability.OTLPEndpoint
	}
	if !s.config.Observability.TracingEnabled {
		tcfg.TraceExporter = "none"
	}
	if !s.config.Observability.MetricsEnabled {
		tcfg.MetricExporter = "none"
	}

	shutdown, err := telemetry.Init(context.Background(), tcfg)
	if err != nil {
		return err
	}
	s.telemetryShutdown = shutdown
	return nil
}

// initBlacklist loads the keyword blacklist and, when configured, starts
// the file watcher for hot reload.
func (s *service) initBlacklist() error {
	if dir := filepath.Dir(s.config.Keyword.Path); s.config.Keyword.Path != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create blacklist directory: %w", err)
		}
	}

	store, err := blacklist.NewStore(s.config.Keyword.Path)
	if err != nil {
		return err
	}
	s.blacklist = store

	if s.config.Keyword.Watch && s.config.Keyword.Path != "" {
		watcher, err := blacklist.NewWatcher(store)
		if err != nil {
			slog.Warn("Blacklist watcher unavailable, hot reload disabled", "error", err)
			return nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		if err := watcher.Start(ctx); err != nil {
			cancel()
			slog.Warn("Failed to start blacklist watcher, hot reload disabled", "error", err)
			return nil
		}
		s.watcher = watcher
		s.watcherCancel = cancel
	}
	return nil
}

// initDetectors builds the configured detector adapters. A detector with an
// unknown type or backend is logged and skipped: the gateway runs with
// whatever guards it can build, and the pipeline fails open per detector.
func (s *service) initDetectors() {
	for _, dc := range s.config.Detectors {
		var backend detectors.Backend
		switch dc.Backend {
		case "ollama":
			backend = detectors.NewOllamaBackend(dc.BaseURL, dc.Model)
		case "openai":
			backend = detectors.NewOpenAIBackend(dc.BaseURL, dc.Model, dc.APIKey)
		default:
			slog.Warn("Unknown detector backend, skipping detector",
				"detector", dc.Name, "backend", dc.Backend)
			continue
		}

		det, err := detectors.New(detectors.Config{
			Name:    dc.Name,
			Type:    dc.Type,
			Role:    roleFromString(dc.Role),
			Timeout: time.Duration(dc.Timeout),
			Backend: backend,
		})
		if err != nil {
			slog.Warn("Skipping detector", "detector", dc.Name, "error", err)
			continue
		}

		s.detectors = append(s.detectors, det)
		slog.Info("Detector configured",
			"detector", det.ID(), "type", det.Type(), "role", string(det.Role()),
			"backend", dc.Backend, "model", dc.Model)

		// Probe in the background; availability is informational only.
		go func(d detectors.Detector) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := d.Probe(ctx); err != nil {
				slog.Warn("Detector backend not reachable at startup, will fail open",
					"detector", d.ID(), "error", err)
				return
			}
			slog.Info("Detector backend reachable", "detector", d.ID())
		}(det)
	}
}

// initPipeline wires the resolver, audit stream, counter, statistics,
// event hub, sanitizer, and the engine itself.
func (s *service) initPipeline() error {
	roles := make(map[string]detectors.Role, len(s.detectors))
	for _, d := range s.detectors {
		roles[d.ID()] = d.Role()
	}
	res, err := resolver.New(s.config.Pipeline.Strategy, roles)
	if err != nil {
		return err
	}

	s.auditLog, err = audit.NewLogger(s.config.Audit.LogPath)
	if err != nil {
		return err
	}
	s.auditLog.CheckLogSize()

	s.counter, err = audit.NewCounter(s.config.CounterStatePath(), s.config.Audit.LogPath)
	if err != nil {
		return err
	}

	scfg := stats.DefaultConfig(s.config.Stats.Path)
	if s.config.Stats.InMemory {
		scfg = stats.InMemoryConfig()
	}
	s.stats, err = stats.Open(scfg)
	if err != nil {
		return err
	}

	s.hub = events.NewHub()

	// Every configured vendor identity gets scrubbed from outgoing text.
	var vendorNames []string
	for _, dc := range s.config.Detectors {
		vendorNames = append(vendorNames, dc.Name, dc.Type, dc.Model)
	}
	s.sanitizer = sanitize.New(vendorNames...)

	s.engine, err = pipeline.New(pipeline.Options{
		Deadline:       time.Duration(s.config.Pipeline.Deadline),
		ShortCircuit:   s.config.Pipeline.ShortCircuit,
		KeywordEnabled: s.config.Keyword.Enabled,
		Blacklist:      s.blacklist,
		Detectors:      s.detectors,
		Resolver:       res,
		Counter:        s.counter,
		AuditLog:       s.auditLog,
		Stats:          s.stats,
		Events:         s.hub,
		Metrics:        s.metrics,
		Redactor:       s.opts.Redactor,
		Sink:           s.opts.Sink,
	})
	return err
}

// initRouter assembles the Gin engine and mounts the route table.
func (s *service) initRouter() {
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(serviceName))
	s.router.Use(middleware.RequestID())

	routes.SetupRoutes(s.router, routes.Deps{
		Engine:    s.engine,
		Sanitizer: s.sanitizer,
		Blacklist: s.blacklist,
		Stats:     s.stats,
		Events:    s.hub,
		License:   s.opts.License,
		Version:   Version,
	})
}

// cleanup stops the background pieces and flushes the durable ones.
//
// # Description
//
// Called when Run() exits or on initialization failure. Stops the
// blacklist watcher, detaches event subscribers, flushes and closes the
// statistics store and the audit stream, then shuts the telemetry
// providers down.
func (s *service) cleanup() {
	if s.watcherCancel != nil {
		s.watcherCancel()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}

	if s.hub != nil {
		s.hub.Close()
	}

	if s.stats != nil {
		if err := s.stats.Sync(); err != nil {
			slog.Warn("Statistics store sync error", "error", err)
		}
		if err := s.stats.Close(); err != nil {
			slog.Warn("Statistics store close error", "error", err)
		}
	}

	if s.auditLog != nil {
		if err := s.auditLog.Close(); err != nil {
			slog.Warn("Audit stream close error", "error", err)
		}
	}

	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}
}

// roleFromString maps the configured role label onto the detector role.
func roleFromString(role string) detectors.Role {
	switch role {
	case "primary":
		return detectors.RolePrimary
	case "secondary":
		return detectors.RoleSecondary
	default:
		return detectors.RoleNone
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
