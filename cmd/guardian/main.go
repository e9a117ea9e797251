// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command guardian starts the AleutianGuard content safety gateway.
//
// The gateway sits between clients and LLMs: it accepts text over HTTP,
// runs the keyword blacklist and the configured AI guard detectors, and
// returns a sanitized safe/unsafe verdict. Every check is audited to an
// append-only log with a durable token counter.
//
// # Configuration
//
// Configuration priority is environment > config file > defaults.
// Pass a YAML or JSON file with -config, or rely on environment
// variables:
//
//   - GUARDIAN_HOST / GUARDIAN_PORT: listen address (default 0.0.0.0:8086)
//   - GUARDIAN_OLLAMA_URL: Ollama endpoint for the stock detectors
//   - GUARDIAN_PRIMARY_MODEL / GUARDIAN_SECONDARY_MODEL: guard models
//   - GUARDIAN_BLACKLIST_PATH: keyword blacklist file (seeded if missing)
//   - GUARDIAN_AUDIT_LOG: audit log path
//   - GUARDIAN_STRATEGY: conflict strategy (highest_severity, majority, first_unsafe)
//   - GUARDIAN_LOG_LEVEL: debug, info, warn, error
//
// # Usage
//
//	# Build
//	go build -o guardian ./cmd/guardian
//
//	# Run with defaults (expects Ollama on localhost:11434)
//	./guardian
//
//	# Run with a config file
//	./guardian -config guardian.yaml
//
//	# Check some text
//	curl -X POST http://localhost:8086/v1/check \
//	  -H 'Content-Type: application/json' \
//	  -d '{"text": "Hello, how are you?"}'
//
// # Signals
//
//   - SIGINT, SIGTERM: graceful shutdown (drains in-flight checks)
//   - SIGHUP: reopen the audit log after rotation
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/pkg/logging"
	"github.com/AleutianAI/AleutianGuard/services/guardian"
	"github.com/AleutianAI/AleutianGuard/services/guardian/config"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or JSON config file")
	debug := flag.Bool("debug", false, "Enable debug mode (verbose Gin output, text logs)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging. The gateway logs JSON; -debug switches
	// to human-readable text for local runs.
	lg := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Observability.LogLevel),
		Service: "guardian",
		JSON:    !*debug,
	})
	defer lg.Close()
	slog.SetDefault(lg.Slog())

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create the gateway with default (no-op) extension options.
	// Enterprise builds pass custom ServiceOptions here.
	svc, err := guardian.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create guardian: %v", err)
	}

	// SIGHUP reopens the audit log so logrotate can move the file.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := svc.ReopenAuditLog(); err != nil {
				slog.Error("Failed to reopen audit log", "error", err)
				continue
			}
			slog.Info("Audit log reopened")
		}
	}()

	// SIGINT/SIGTERM drain the server within the configured timeout.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		slog.Info("Shutting down guardian", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
		defer cancel()
		if err := svc.Stop(ctx); err != nil {
			slog.Error("Forced shutdown", "error", err)
		}
	}()

	// Run blocks until the server stops; resources are released by the
	// time it returns.
	if err := svc.Run(); err != nil {
		log.Fatalf("Guardian error: %v", err)
	}
}
