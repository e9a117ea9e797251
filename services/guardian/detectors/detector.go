// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detectors wraps external safety classifiers behind one uniform
// adapter contract. Every adapter parses its vendor's raw reply into the
// adapter's own raw label space and maps that onto the unified taxonomy;
// transport failures and timeouts never surface as errors, they become
// fail-open safe results carrying a dedicated raw label.
package detectors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

// Role places a detector in the resolver's two-detector specialisation
// table. The resolver identifies the pair by these configured roles, not by
// inspecting detector identifiers.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
	RoleNone      Role = ""
)

// Raw labels recorded when the backend never produced a usable reply.
const (
	RawTimeout = "timeout"
	RawError   = "error"
)

// Result is the uniform outcome of one inspection. Raw carries the adapter's
// raw label for auditing; it never reaches the public response.
type Result struct {
	Clean      bool
	Category   taxonomy.Category
	Raw        string
	Reason     string
	DetectorID string
}

// Detector is the adapter contract. Implementations are created once at
// startup, probed, and then shared by all requests; they must be safe for
// concurrent use.
type Detector interface {
	// ID returns the stable configured identifier, e.g. "llama_guard".
	ID() string

	// Type returns the registry tag this detector was built from.
	Type() string

	// Role returns the configured resolver role.
	Role() Role

	// Probe issues a trivial request to verify the backend is reachable.
	Probe(ctx context.Context) error

	// Inspect classifies text under the caller's deadline. It never returns
	// an error: failures become fail-open safe results.
	Inspect(ctx context.Context, text string) Result
}

// Config describes one detector instance. Backend is the transport the
// adapter speaks through; Timeout bounds a single inspection on top of the
// caller's deadline.
type Config struct {
	Name    string
	Type    string
	Role    Role
	Timeout time.Duration
	Backend Backend
}

// Message is one turn of the single-exchange classification conversation
// sent to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend is the wire transport an adapter classifies through. Separate from
// Detector so the same parser works against Ollama and OpenAI-compatible
// deployments.
type Backend interface {
	Name() string
	Chat(ctx context.Context, messages []Message) (string, error)
	Probe(ctx context.Context) error
}

// TimeoutResult is the fail-open outcome for a backend that did not answer
// within the deadline.
func TimeoutResult(id string) Result {
	return Result{
		Clean:      true,
		Category:   taxonomy.Safe,
		Raw:        RawTimeout,
		Reason:     fmt.Sprintf("%s timed out - defaulting to safe", id),
		DetectorID: id,
	}
}

// ErrorResult is the fail-open outcome for a transport or backend failure.
func ErrorResult(id string) Result {
	return Result{
		Clean:      true,
		Category:   taxonomy.Safe,
		Raw:        RawError,
		Reason:     fmt.Sprintf("%s unavailable - defaulting to safe", id),
		DetectorID: id,
	}
}

// failOpen classifies a backend error into the timeout or error result.
func failOpen(id string, err error) Result {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return TimeoutResult(id)
	}
	return ErrorResult(id)
}

// inspectCtx applies the adapter's own timeout on top of the caller's
// deadline. The tighter bound wins.
func inspectCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
