// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit owns the append-only audit stream and the durable token
// counter. Every check emits exactly one event line followed by one counter
// marker, flushed before the public response is returned; the stream is the
// system of record for what the gateway decided and why.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

// Event kinds leading each audit line.
const (
	kindSafe     = "SAFE"
	kindUnsafe   = "UNSAFE"
	kindFallback = "FALLBACK"
)

// maxLogSizeWarn is the size at which CheckLogSize starts complaining, so
// operators rotate before the startup scan fallback gets expensive.
const maxLogSizeWarn = 512 * 1024 * 1024

// DetectorOutcome is the audited summary of one detector: its stable id and
// the raw label it produced (including "timeout"/"error" for fail-open).
type DetectorOutcome struct {
	ID  string
	Raw string
}

// Record is everything one check contributes to the audit stream. Vendor
// names and raw labels are allowed here; this stream is internal and never
// crosses the public boundary.
type Record struct {
	Safe       bool
	Fallback   bool
	Category   taxonomy.Category
	Hash       string
	TextLen    int
	UnitsIn    int64
	UnitsTotal int64
	Duration   time.Duration
	Keywords   []string
	RuleHits   int
	Method     string
	Reason     string
	Detectors  []DetectorOutcome
	ClientID   string
	UserAgent  string
	RequestID  string
}

// ContentHash returns the short content hash recorded in audit lines: the
// first 16 hex characters of the SHA-256 of the text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Logger appends audit lines to a single file.
//
// Writes are serialized by a mutex and synced before Log returns, so the
// event line and its counter marker always land adjacently and a returned
// verdict is always preceded by its flushed audit record. Every event is
// mirrored to slog for operators tailing structured logs instead of the
// stream file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger opens (or creates) the audit stream append-only with 0600
// permissions.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	slog.Info("Audit log opened", "path", path)
	return &Logger{file: f, path: path}, nil
}

// Path returns the audit stream location.
func (l *Logger) Path() string {
	return l.path
}

// Log appends the event line and its counter marker for one check, then
// syncs. The two lines are written under one lock acquisition so concurrent
// checks never interleave between an event and its marker.
func (l *Logger) Log(rec Record) error {
	line := formatLine(rec)
	marker := fmt.Sprintf("TOKEN_COUNTER=%d (+%d)", rec.UnitsTotal, rec.UnitsIn)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log is closed")
	}
	if _, err := l.file.WriteString(line + "\n" + marker + "\n"); err != nil {
		return fmt.Errorf("failed to append audit line: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}

	slog.Info("Audit event recorded",
		"kind", lineKind(rec),
		"hash", rec.Hash,
		"category", string(rec.Category),
		"method", rec.Method,
		"fallback", rec.Fallback,
		"total_units", rec.UnitsTotal,
	)
	return nil
}

// Reopen closes and reopens the backing file. Called on SIGHUP after log
// rotation.
func (l *Logger) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			slog.Warn("Failed to close audit log during reopen", "error", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		l.file = nil
		return fmt.Errorf("failed to reopen audit log %s: %w", l.path, err)
	}
	l.file = f
	slog.Info("Audit log reopened", "path", l.path)
	return nil
}

// CheckLogSize warns when the stream has grown past the rotation threshold.
func (l *Logger) CheckLogSize() {
	info, err := os.Stat(l.path)
	if err != nil {
		return
	}
	if info.Size() > maxLogSizeWarn {
		slog.Warn("Audit log is large, consider rotating",
			"path", l.path, "size_bytes", info.Size())
	}
}

// Close syncs and closes the stream.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		slog.Warn("Failed to sync audit log on close", "error", err)
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func lineKind(rec Record) string {
	switch {
	case rec.Fallback:
		return kindFallback
	case rec.Safe:
		return kindSafe
	default:
		return kindUnsafe
	}
}

// formatLine renders one event. The leading fields follow the fixed schema:
//
//	SAFE | STATUS=SAFE | HASH=<hex16> | TIME=<ms>
//	UNSAFE | STATUS=UNSAFE | HASH=<hex16> | TIME=<ms> | TYPE=<cat> | KEYWORDS=<csv>? | RULES=<n>?
//	FALLBACK | <same keys> | FALLBACK=true
//
// Structured extras (length, units, method, reason, detector summary,
// request metadata) follow in fixed order so the line stays grep-friendly.
func formatLine(rec Record) string {
	var b strings.Builder

	status := "UNSAFE"
	if rec.Safe {
		status = "SAFE"
	}
	fmt.Fprintf(&b, "%s | STATUS=%s | HASH=%s | TIME=%.2f", lineKind(rec), status, rec.Hash,
		float64(rec.Duration.Microseconds())/1000.0)

	if !rec.Safe {
		fmt.Fprintf(&b, " | TYPE=%s", string(rec.Category))
	}
	if len(rec.Keywords) > 0 {
		fmt.Fprintf(&b, " | KEYWORDS=%s", strings.Join(rec.Keywords, ","))
	}
	if rec.RuleHits > 0 {
		fmt.Fprintf(&b, " | RULES=%d", rec.RuleHits)
	}
	if rec.Fallback {
		b.WriteString(" | FALLBACK=true")
	}

	fmt.Fprintf(&b, " | TS=%s", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, " | LEN=%d", rec.TextLen)
	fmt.Fprintf(&b, " | UNITS=%d", rec.UnitsIn)
	fmt.Fprintf(&b, " | TOTAL=%d", rec.UnitsTotal)
	if rec.Method != "" {
		fmt.Fprintf(&b, " | METHOD=%s", rec.Method)
	}
	if rec.Reason != "" {
		fmt.Fprintf(&b, " | REASON=%q", rec.Reason)
	}
	if len(rec.Detectors) > 0 {
		parts := make([]string, len(rec.Detectors))
		for i, d := range rec.Detectors {
			parts[i] = d.ID + ":" + d.Raw
		}
		fmt.Fprintf(&b, " | GUARDS=%s", strings.Join(parts, ","))
	}
	if rec.ClientID != "" {
		fmt.Fprintf(&b, " | CLIENT=%s", rec.ClientID)
	}
	if rec.UserAgent != "" {
		fmt.Fprintf(&b, " | UA=%q", rec.UserAgent)
	}
	if rec.RequestID != "" {
		fmt.Fprintf(&b, " | REQ=%s", rec.RequestID)
	}
	return b.String()
}
