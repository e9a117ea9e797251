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
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

// sCodeRe extracts the first subcategory code from an unsafe reply, e.g.
// "unsafe\nS2,S9" yields S2.
var sCodeRe = regexp.MustCompile(`(?i)\bS(\d{1,2})\b`)

// llamaGuard is the primary adapter. The model answers "safe" or "unsafe"
// followed by one or more subcategory codes S1..S14; codes S1..S12 are
// harm categories and S13/S14 are jailbreak-style categories.
type llamaGuard struct {
	id      string
	role    Role
	timeout time.Duration
	backend Backend
}

func newLlamaGuard(cfg Config) Detector {
	return &llamaGuard{
		id:      cfg.Name,
		role:    cfg.Role,
		timeout: cfg.Timeout,
		backend: cfg.Backend,
	}
}

func (g *llamaGuard) ID() string   { return g.id }
func (g *llamaGuard) Type() string { return TypeLlamaGuard }
func (g *llamaGuard) Role() Role   { return g.role }

func (g *llamaGuard) Probe(ctx context.Context) error {
	return g.backend.Probe(ctx)
}

// Inspect classifies text. Transport failures and timeouts are converted to
// fail-open safe results, never errors.
func (g *llamaGuard) Inspect(ctx context.Context, text string) Result {
	ctx, span := tracer.Start(ctx, "LlamaGuard.Inspect")
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

	raw := parseLlamaGuardReply(reply)
	cat := mapLlamaGuardLabel(raw)
	span.SetAttributes(attribute.String("guard.raw", raw))

	return Result{
		Clean:      cat == taxonomy.Safe,
		Category:   cat,
		Raw:        raw,
		Reason:     llamaGuardReason(raw, cat),
		DetectorID: g.id,
	}
}

// parseLlamaGuardReply reduces the model reply to the adapter's raw label
// space: "safe", "S<n>", "unsafe", or "unknown".
func parseLlamaGuardReply(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return "unknown"
	}
	firstLine := strings.ToLower(strings.TrimSpace(strings.SplitN(trimmed, "\n", 2)[0]))
	switch {
	case firstLine == "safe":
		return "safe"
	case strings.HasPrefix(firstLine, "unsafe"):
		if m := sCodeRe.FindStringSubmatch(trimmed); m != nil {
			return "S" + m[1]
		}
		return "unsafe"
	default:
		return "unknown"
	}
}

// mapLlamaGuardLabel translates a raw label to the unified taxonomy:
// safe->safe, S1..S12->harmful_prompt, S13/S14->jailbreak, anything
// else->unknown_unsafe.
func mapLlamaGuardLabel(raw string) taxonomy.Category {
	switch raw {
	case "safe":
		return taxonomy.Safe
	case "S13", "S14":
		return taxonomy.Jailbreak
	case "unsafe", "unknown":
		return taxonomy.UnknownUnsafe
	}
	if strings.HasPrefix(raw, "S") {
		if n, err := strconv.Atoi(raw[1:]); err == nil && n >= 1 && n <= 12 {
			return taxonomy.HarmfulPrompt
		}
	}
	return taxonomy.UnknownUnsafe
}

func llamaGuardReason(raw string, cat taxonomy.Category) string {
	switch cat {
	case taxonomy.Safe:
		return "Content is safe"
	case taxonomy.Jailbreak:
		return fmt.Sprintf("Jailbreak attempt detected (category: %s)", raw)
	case taxonomy.HarmfulPrompt:
		return fmt.Sprintf("Harmful prompt detected (category: %s)", raw)
	default:
		return "Content is unsafe"
	}
}
