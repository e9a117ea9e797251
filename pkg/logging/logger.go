// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for AleutianGuard binaries.
//
// The gateway and the guardianctl CLI share one setup built on the
// standard library slog package: stderr by default (Unix CLI
// convention), an optional dated JSON file per service under
// Config.LogDir, and a LogExporter seam for enterprise log shipping
// that mirrors the verdict sink in pkg/extensions.
//
// # Usage
//
// guardianctl wants human-readable text on stderr:
//
//	lg := logging.Default()
//	lg.Info("check submitted", "request_id", reqID)
//
// The gateway logs JSON and installs itself as the slog default:
//
//	lg := logging.New(logging.Config{Service: "guardian", JSON: true})
//	defer lg.Close()
//	slog.SetDefault(lg.Slog())
//
// # Redaction
//
// Nothing here redacts submitted content. Keep raw submission text out
// of log attributes; record the hash and length instead:
//
//	// BAD: leaks the submission
//	lg.Info("check", "text", req.Text)
//
//	// GOOD: metadata only
//	lg.Info("check", "hash", verdict.Hash, "len", verdict.TextLen)
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Severity Levels
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
// Setting a minimum level discards everything below it.
type Level int

const (
	// LevelDebug traces individual pipeline steps during development.
	LevelDebug Level = iota

	// LevelInfo records normal gateway operation.
	LevelInfo

	// LevelWarn is for recoverable issues (degraded detectors, retries).
	LevelWarn

	// LevelError is for operation failures the process survives.
	LevelError
)

// levelNames and slogLevels are indexed by Level.
var (
	levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}
	slogLevels = [...]slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a configuration string onto a Level. Matching is
// case-insensitive; anything unrecognized (including "") is LevelInfo,
// so a typo in the config yields a chatty gateway rather than a silent
// one.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// toSlogLevel bridges Level to the standard library. Out-of-range
// levels map to Info, same as ParseLevel.
func (l Level) toSlogLevel() slog.Level {
	if l < LevelDebug || l > LevelError {
		return slog.LevelInfo
	}
	return slogLevels[l]
}

// =============================================================================
// Logger Configuration
// =============================================================================

// Config configures Logger behavior. The zero value writes Info and
// above to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// LogDir enables file logging to the given directory alongside
	// stderr. Files are named "{Service}_{YYYY-MM-DD}.log" and always
	// JSON. Supports ~ expansion. Default: "" (disabled).
	LogDir string

	// Service is stamped on every entry as the "service" attribute.
	// Recommended values: "guardian", "guardianctl".
	Service string

	// JSON switches stderr output from human-readable text to JSON.
	// File logs are always JSON regardless.
	JSON bool

	// Quiet disables stderr output. Logs then go only to the file (if
	// LogDir is set) and the Exporter (if configured).
	Quiet bool

	// Exporter is an optional enterprise extension. Entries are sent
	// to it asynchronously; export failures never disrupt logging.
	// Default: nil (no export).
	Exporter LogExporter
}

// =============================================================================
// Exporter Seam
// =============================================================================

// LogExporter is the enterprise seam for shipping gateway logs to an
// external system (object storage, Loki, Datadog). It is the logging
// counterpart of the VerdictSink in pkg/extensions: the open source
// build runs with nil.
//
// Implementations must buffer internally and stay non-blocking; Export
// runs with a one second deadline per entry. Flush is called during
// graceful shutdown and should drain the buffer before returning,
// then Close releases resources.
type LogExporter interface {
	// Export sends one entry. Errors are logged locally, never
	// propagated to the code that emitted the log line.
	Export(ctx context.Context, entry LogEntry) error

	// Flush drains buffered entries. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases connections and files. Called after Flush.
	Close() error
}

// LogEntry is the structured form handed to LogExporter
// implementations.
type LogEntry struct {
	// Timestamp is when the entry was emitted (local time).
	Timestamp time.Time

	// Level is the severity the entry was logged at.
	Level Level

	// Message is the human-readable event description.
	Message string

	// Service is the emitting binary, copied from Config.Service.
	Service string

	// Attrs holds the key-value pairs attached to the entry.
	Attrs map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog.Logger with multi-destination output (stderr, file,
// exporter) and cleanup via Close. Safe for concurrent use.
type Logger struct {
	slog     *slog.Logger
	cfg      Config
	file     *os.File
	exporter LogExporter
	mu       sync.Mutex
}

// Exporter deadlines: a per-entry budget for Export and a longer one
// for the shutdown Flush.
const (
	exportTimeout = time.Second
	flushTimeout  = 5 * time.Second
)

// New creates a Logger from the given configuration. The returned
// Logger must be closed with Close() when file logging or an exporter
// is configured.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}
	lg := &Logger{cfg: cfg, exporter: cfg.Exporter}

	var dests []slog.Handler
	if !cfg.Quiet {
		dests = append(dests, stderrHandler(cfg.JSON, opts))
	}
	if cfg.LogDir != "" {
		if fh, f := fileHandler(cfg.Service, cfg.LogDir, opts); fh != nil {
			lg.file = f
			dests = append(dests, fh)
		}
	}

	var h slog.Handler
	switch len(dests) {
	case 0:
		// Quiet with no file: records are discarded, only the
		// Exporter (if any) sees them.
		h = slog.NewTextHandler(io.Discard, opts)
	case 1:
		h = dests[0]
	default:
		h = &teeHandler{handlers: dests}
	}

	if cfg.Service != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	lg.slog = slog.New(h)
	return lg
}

// stderrHandler builds the terminal-facing handler in the configured
// format.
func stderrHandler(json bool, opts *slog.HandlerOptions) slog.Handler {
	if json {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

// fileHandler opens the dated log file under dir and returns a JSON
// handler writing to it, plus the file for Close. Open failures
// disable file logging; the Logger keeps writing to its other
// destinations.
func fileHandler(service, dir string, opts *slog.HandlerOptions) (slog.Handler, *os.File) {
	if service == "" {
		service = "guardian"
	}
	logDir := expandPath(dir)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, nil
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil
	}
	// File logs are always JSON for machine processing.
	return slog.NewJSONHandler(file, opts), file
}

// Default returns a text logger at Info level writing to stderr with
// service "guardian". Suitable for the CLI and for tests.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "guardian"})
}

// Debug emits a debug-level record.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info emits an info-level record.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn emits a warn-level record.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error emits an error-level record.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

// With returns a child Logger carrying additional attributes. The
// parent is not modified; file handle and exporter are shared.
//
//	reqLogger := lg.With("request_id", reqID)
//	reqLogger.Info("check started")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), cfg: l.cfg, file: l.file, exporter: l.exporter}
}

// Slog returns the underlying slog.Logger, usually to install it as the
// process default with slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter, syncs the log file, and releases both.
// All cleanup steps run; their errors are joined.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error

	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("shut down exporter: %w", err))
		}
	}

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("fsync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dated log file: %w", err))
		}
	}

	return errors.Join(errs...)
}

// log writes the record to slog and mirrors it to the exporter.
func (l *Logger) log(level Level, msg string, args ...any) {
	l.slog.Log(context.Background(), level.toSlogLevel(), msg, args...)

	if l.exporter == nil || level < l.cfg.Level {
		return
	}
	e := LogEntry{
		Timestamp: time.Now(), Level: level, Service: l.cfg.Service,
		Message: msg, Attrs: argsToMap(args),
	}
	// Async so a slow exporter never blocks the log call.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		_ = l.exporter.Export(ctx, e)
	}()
}

// =============================================================================
// Tee Handler (Internal)
// =============================================================================

// teeHandler duplicates records across several slog handlers so text
// on stderr and JSON in a file can coexist.
type teeHandler struct {
	handlers []slog.Handler
}

// Enabled reports whether any underlying handler accepts the level.
func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to every handler that accepts its level.
func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// WithAttrs applies the attributes to every underlying handler.
func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		wrapped[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: wrapped}
}

// WithGroup applies the group name to every underlying handler.
func (t *teeHandler) WithGroup(name string) slog.Handler {
	wrapped := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		wrapped[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: wrapped}
}

// =============================================================================
// Helpers
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(p string) string {
	rest, ok := strings.CutPrefix(p, "~")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// argsToMap converts slog-style key-value args to a map for export.
// Pairs with a non-string key and a trailing odd value are dropped.
func argsToMap(kvs []any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if k, ok := kvs[i].(string); ok {
			m[k] = kvs[i+1]
		}
	}
	return m
}

// =============================================================================
// Bundled Exporters
// =============================================================================

// NopExporter discards all entries. Useful when export is disabled.
type NopExporter struct{}

// Export drops the entry.
func (NopExporter) Export(context.Context, LogEntry) error { return nil }

// Flush has nothing to drain.
func (NopExporter) Flush(context.Context) error { return nil }

// Close has nothing to release.
func (NopExporter) Close() error { return nil }

var _ LogExporter = NopExporter{}

// BufferedExporter collects entries in memory. Tests hand one to
// Config.Exporter and assert on what reached it:
//
//	sink := logging.NewBufferedExporter()
//	lg := logging.New(logging.Config{Exporter: sink, Quiet: true})
//	lg.Warn("detector timeout", "detector", "granite_guard")
//	got := sink.Entries()
type BufferedExporter struct {
	mu  sync.Mutex
	buf []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{buf: make([]LogEntry, 0, 64)}
}

// Export appends the entry under the lock.
func (b *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, entry)
	return nil
}

// Flush is a no-op; entries are already in memory.
func (b *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op; the buffer stays readable.
func (b *BufferedExporter) Close() error { return nil }

// Entries returns a snapshot of everything exported so far.
func (b *BufferedExporter) Entries() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.buf)
}

var _ LogExporter = (*BufferedExporter)(nil)
