// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detectors

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

// graniteGuard is the secondary adapter. The model answers yes/no: "yes"
// means risk detected. Its raw label space is only safe/unsafe/unknown, so
// every unsafe signal maps to unknown_unsafe; the resolver gives the richer
// primary taxonomy precedence.
type graniteGuard struct {
	id      string
	role    Role
	timeout time.Duration
	backend Backend
}

func newGraniteGuard(cfg Config) Detector {
	return &graniteGuard{
		id:      cfg.Name,
		role:    cfg.Role,
		timeout: cfg.Timeout,
		backend: cfg.Backend,
	}
}

func (g *graniteGuard) ID() string   { return g.id }
func (g *graniteGuard) Type() string { return TypeGraniteGuard }
func (g *graniteGuard) Role() Role   { return g.role }

func (g *graniteGuard) Probe(ctx context.Context) error {
	return g.backend.Probe(ctx)
}

func (g *graniteGuard) Inspect(ctx context.Context, text string) Result {
	ctx, span := tracer.Start(ctx, "GraniteGuard.Inspect")
	defer span.End()
	span.SetAttributes(attribute.String("guard.id", g.id))

	ctx, cancel := inspectCtx(ctx, g.timeout)
	defer cancel()

	reply, err := g.backend.Chat(ctx, []Message{{Role: "user", Content: text}})
	if err != nil {
		res := failOpen(g.id, err)
		span.SetAttributes(attribute.String("guard.raw", res.Raw))
		slog.Warn("Guard inspection failed open", "guard", g.id, "raw", res.Raw, "error", err)
		return res
	}

	raw := parseGraniteGuardReply(reply)
	cat := mapGraniteGuardLabel(raw)
	span.SetAttributes(attribute.String("guard.raw", raw))

	return Result{
		Clean:      cat == taxonomy.Safe,
		Category:   cat,
		Raw:        raw,
		Reason:     graniteGuardReason(cat),
		DetectorID: g.id,
	}
}

// parseGraniteGuardReply reduces the yes/no reply to safe/unsafe/unknown.
// Exact match on the first token is tried first; a contains check catches
// wrapped replies like "Answer: Yes".
func parseGraniteGuardReply(reply string) string {
	lower := strings.ToLower(strings.TrimSpace(reply))
	if lower == "" {
		return "unknown"
	}
	token := strings.Trim(strings.Fields(lower)[0], ".,:;!\"'")
	switch token {
	case "no":
		return "safe"
	case "yes":
		return "unsafe"
	}
	if strings.Contains(lower, "yes") {
		return "unsafe"
	}
	if strings.Contains(lower, "no") {
		return "safe"
	}
	return "unknown"
}

// mapGraniteGuardLabel translates a raw label to the unified taxonomy:
// safe->safe, unsafe/unknown->unknown_unsafe.
func mapGraniteGuardLabel(raw string) taxonomy.Category {
	if raw == "safe" {
		return taxonomy.Safe
	}
	return taxonomy.UnknownUnsafe
}

func graniteGuardReason(cat taxonomy.Category) string {
	if cat == taxonomy.Safe {
		return "Content is safe"
	}
	return "Content is unsafe (generic detection)"
}
