// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Severity Levels
// =============================================================================

func TestLevel_Mappings(t *testing.T) {
	tests := []struct {
		level    Level
		str      string
		slogWant slog.Level
	}{
		{LevelDebug, "DEBUG", slog.LevelDebug},
		{LevelInfo, "INFO", slog.LevelInfo},
		{LevelWarn, "WARN", slog.LevelWarn},
		{LevelError, "ERROR", slog.LevelError},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.str {
			t.Errorf("String() for level %d = %q, want %q", tt.level, got, tt.str)
		}
		if got := tt.level.toSlogLevel(); got != tt.slogWant {
			t.Errorf("toSlogLevel() for %s = %v, want %v", tt.str, got, tt.slogWant)
		}
	}

	// Out-of-range values print as UNKNOWN but log at info rather than
	// vanishing.
	for _, bad := range []Level{Level(-1), Level(99)} {
		if got := bad.String(); got != "UNKNOWN" {
			t.Errorf("String() for level %d = %q, want UNKNOWN", bad, got)
		}
		if got := bad.toSlogLevel(); got != slog.LevelInfo {
			t.Errorf("toSlogLevel() for level %d = %v, want info", bad, got)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"  error  ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevel_Ordering(t *testing.T) {
	// Filtering compares levels numerically, so severity must increase
	// monotonically.
	if !(LevelDebug < LevelInfo && LevelInfo < LevelWarn && LevelWarn < LevelError) {
		t.Error("level constants are not ordered debug < info < warn < error")
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_ZeroConfig(t *testing.T) {
	lg := New(Config{})
	if lg == nil {
		t.Fatal("New returned nil")
	}
	defer lg.Close()

	if lg.slog == nil {
		t.Error("zero config produced a logger without a slog backend")
	}
}

func TestNew_KeepsServiceName(t *testing.T) {
	lg := New(Config{Service: "guardianctl", Quiet: true})
	defer lg.Close()

	if got := lg.cfg.Service; got != "guardianctl" {
		t.Errorf("Service = %q, want guardianctl", got)
	}
}

func TestNew_LogDir_CreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	lg := New(Config{LogDir: tmpDir, Service: "guardian", Quiet: true})
	defer lg.Close()

	if lg.file == nil {
		t.Fatal("no file handle despite LogDir being set")
	}
	names := dirEntries(t, tmpDir)
	if len(names) != 1 {
		t.Fatalf("LogDir holds %v, want exactly one log file", names)
	}
	if !strings.HasPrefix(names[0], "guardian_") || !strings.HasSuffix(names[0], ".log") {
		t.Errorf("log file %q does not follow the <service>_<date>.log pattern", names[0])
	}
}

func TestNew_LogDir_DefaultServiceName(t *testing.T) {
	tmpDir := t.TempDir()
	lg := New(Config{LogDir: tmpDir, Quiet: true})
	defer lg.Close()

	// An empty Service falls back to "guardian" for the file name.
	names := dirEntries(t, tmpDir)
	if len(names) == 0 || !strings.HasPrefix(names[0], "guardian_") {
		t.Errorf("LogDir holds %v, want a guardian_ prefixed file", names)
	}
}

func TestNew_LogDir_Unwritable(t *testing.T) {
	lg := New(Config{LogDir: string([]byte{0}) + "/not/creatable", Quiet: true})
	defer lg.Close()

	// File logging is best effort: a bad directory degrades to no file
	// without breaking the logger.
	if lg.file != nil {
		t.Error("got a file handle for an uncreatable directory")
	}
	lg.Info("still works")
}

func TestNew_Quiet_NoDestinations(t *testing.T) {
	lg := New(Config{Quiet: true})
	defer lg.Close()

	if lg.slog == nil {
		t.Error("quiet logger has no slog backend")
	}
	// Records are discarded but logging must not panic.
	lg.Info("goes nowhere")
}

func TestNew_Quiet_SuppressesStderr(t *testing.T) {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	lg := New(Config{Quiet: true})
	lg.Info("invisible")
	lg.Close()

	w.Close()
	os.Stderr = old

	out, _ := io.ReadAll(r)
	if len(out) != 0 {
		t.Errorf("quiet logger wrote to stderr: %q", out)
	}
}

func TestDefaultLogger(t *testing.T) {
	lg := Default()
	defer lg.Close()

	if lg.cfg.Level != LevelInfo {
		t.Errorf("default level = %v, want info", lg.cfg.Level)
	}
	if lg.cfg.Service != "guardian" {
		t.Errorf("default service = %q, want guardian", lg.cfg.Service)
	}
}

// =============================================================================
// Logging Behavior Tests
// =============================================================================

func TestLogger_AllLevelsReachExporter(t *testing.T) {
	sink := NewBufferedExporter()
	lg := New(Config{Level: LevelDebug, Exporter: sink, Quiet: true})
	defer lg.Close()

	lg.Debug("debug message", "detector", "llama_guard")
	lg.Info("info message", "units", 42)
	lg.Warn("warn message", "attempt", 2)
	lg.Error("error message", "error", "probe failed")

	time.Sleep(150 * time.Millisecond)

	got := sink.Entries()
	if len(got) != 4 {
		t.Fatalf("exporter saw %d entries, want 4", len(got))
	}
	if got[0].Level != LevelDebug {
		t.Errorf("first entry level = %v, want debug", got[0].Level)
	}
	if got[1].Attrs["units"] != 42 {
		t.Errorf("Attrs[units] = %v, want 42", got[1].Attrs["units"])
	}
	if got[3].Message != "error message" {
		t.Errorf("last entry message = %q", got[3].Message)
	}
}

func TestLogger_FiltersBelowThreshold(t *testing.T) {
	sink := NewBufferedExporter()
	lg := New(Config{Level: LevelWarn, Exporter: sink, Quiet: true})
	defer lg.Close()

	lg.Debug("debug")
	lg.Info("info")
	lg.Warn("warn")
	lg.Error("error")
	time.Sleep(75 * time.Millisecond)

	// Only warn and error clear the threshold.
	if got := len(sink.Entries()); got != 2 {
		t.Errorf("exporter saw %d entries, want 2", got)
	}
}

func TestLogger_With(t *testing.T) {
	sink := NewBufferedExporter()
	lg := New(Config{Level: LevelInfo, Exporter: sink, Quiet: true})
	defer lg.Close()

	child := lg.With("request_id", "abc123")
	if child == nil {
		t.Fatal("With returned nil")
	}

	child.Info("check started")
	time.Sleep(75 * time.Millisecond)

	if got := len(sink.Entries()); got != 1 {
		t.Fatalf("exporter saw %d entries, want 1", got)
	}
}

func TestLogger_With_SharesFileHandle(t *testing.T) {
	tmpDir := t.TempDir()
	lg := New(Config{LogDir: tmpDir, Service: "guardian", Quiet: true})
	defer lg.Close()

	child := lg.With("child", true)
	if child.file != lg.file {
		t.Error("derived logger opened its own file instead of sharing")
	}
}

func TestLogger_Slog(t *testing.T) {
	lg := New(Config{Quiet: true})
	defer lg.Close()

	if lg.Slog() == nil {
		t.Error("Slog returned nil")
	}
}

func TestLogger_Close_WithoutFile(t *testing.T) {
	lg := New(Config{Quiet: true})
	if err := lg.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLogger_Close_ReleasesFile(t *testing.T) {
	tmpDir := t.TempDir()
	lg := New(Config{LogDir: tmpDir, Service: "guardian", Quiet: true})

	lg.Info("before close")

	if err := lg.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if lg.file != nil {
		if _, err := lg.file.WriteString("late"); err == nil {
			t.Error("file handle still writable after Close")
		}
	}
}

func TestLogger_Close_ReportsFlushError(t *testing.T) {
	bad := &failingExporter{onFlush: errors.New("flush failed")}
	lg := New(Config{Exporter: bad, Quiet: true})

	err := lg.Close()
	if err == nil {
		t.Fatal("Close swallowed the exporter flush failure")
	}
	if !strings.Contains(err.Error(), "flush exporter") {
		t.Errorf("Close error %v does not name the flush step", err)
	}
}

func TestLogger_ExportErrorDoesNotSurface(t *testing.T) {
	bad := &failingExporter{onExport: errors.New("export failed")}
	lg := New(Config{Level: LevelInfo, Exporter: bad, Quiet: true})
	defer lg.Close()

	// A broken exporter must never take down request handling.
	lg.Info("dropped on the floor")
	time.Sleep(75 * time.Millisecond)
}

func TestLogger_ParallelWriters(t *testing.T) {
	sink := NewBufferedExporter()
	lg := New(Config{Level: LevelInfo, Exporter: sink, Quiet: true})
	defer lg.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lg.Info("parallel write", "goroutine", i)
		}()
	}
	wg.Wait()
	time.Sleep(150 * time.Millisecond)

	if got := len(sink.Entries()); got != 50 {
		t.Errorf("exporter saw %d entries, want 50", got)
	}
}

// =============================================================================
// teeHandler Tests
// =============================================================================

func TestTeeHandler_Enabled(t *testing.T) {
	var out bytes.Buffer
	tee := &teeHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}

	// One willing handler is enough.
	if !tee.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug disabled even though one handler accepts it")
	}
	if !tee.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn disabled even though both handlers accept it")
	}
}

func TestTeeHandler_Enabled_NoTakers(t *testing.T) {
	var out bytes.Buffer
	tee := &teeHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	if tee.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled with an error-only handler")
	}
}

func TestTeeHandler_Handle_FansOut(t *testing.T) {
	var left, right bytes.Buffer
	infoOnly := &slog.HandlerOptions{Level: slog.LevelInfo}
	tee := &teeHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&left, infoOnly),
		slog.NewTextHandler(&right, infoOnly),
	}}

	rec := slog.Record{}
	rec.Level = slog.LevelInfo
	rec.Message = "fan out"

	if err := tee.Handle(context.Background(), rec); err != nil {
		t.Errorf("Handle: %v", err)
	}
	if left.Len() == 0 || right.Len() == 0 {
		t.Errorf("record did not reach both handlers (%d, %d bytes)", left.Len(), right.Len())
	}
}

func TestTeeHandler_Handle_RespectsPerHandlerLevel(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	tee := &teeHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	rec := slog.Record{}
	rec.Level = slog.LevelInfo
	_ = tee.Handle(context.Background(), rec)

	if debugBuf.Len() == 0 {
		t.Error("debug handler skipped an info record")
	}
	if errorBuf.Len() != 0 {
		t.Error("error-only handler received an info record")
	}
}

func TestTeeHandler_Handle_PropagatesFailure(t *testing.T) {
	tee := &teeHandler{handlers: []slog.Handler{
		&failingHandler{err: errors.New("handler error")},
	}}

	rec := slog.Record{}
	rec.Level = slog.LevelInfo

	if err := tee.Handle(context.Background(), rec); err == nil {
		t.Error("Handle hid the inner handler failure")
	}
}

func TestTeeHandler_WithAttrsAndGroup(t *testing.T) {
	var out bytes.Buffer
	tee := &teeHandler{handlers: []slog.Handler{slog.NewTextHandler(&out, nil)}}

	if _, ok := tee.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*teeHandler); !ok {
		t.Error("WithAttrs changed the handler type")
	}
	if _, ok := tee.WithGroup("group").(*teeHandler); !ok {
		t.Error("WithGroup changed the handler type")
	}
}

func TestTeeHandler_NoHandlers(t *testing.T) {
	tee := &teeHandler{}

	if tee.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("empty tee claims to be enabled")
	}
	if err := tee.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle on empty tee: %v", err)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"~/guardian-logs", filepath.Join(home, "guardian-logs")},
		{"~/.aleutianguard/logs", filepath.Join(home, ".aleutianguard/logs")},
		{"~", home},
		{"/var/log/guardian", "/var/log/guardian"},
		{"logs/audit", "logs/audit"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArgsToMap(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want map[string]any
	}{
		{"empty", []any{}, map[string]any{}},
		{"one pair", []any{"key", "value"}, map[string]any{"key": "value"}},
		{
			"mixed value types",
			[]any{"k1", "v1", "k2", 42, "k3", true},
			map[string]any{"k1": "v1", "k2": 42, "k3": true},
		},
		{
			"trailing key without value dropped",
			[]any{"k1", "v1", "orphan"},
			map[string]any{"k1": "v1"},
		},
		{
			"non-string key dropped with its value",
			[]any{123, "value", "validkey", "validvalue"},
			map[string]any{"validkey": "validvalue"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := argsToMap(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("argsToMap(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestNopExporter(t *testing.T) {
	var e NopExporter
	if err := e.Export(context.Background(), LogEntry{Message: "discarded"}); err != nil {
		t.Errorf("Export: %v", err)
	}
	if err := e.Flush(context.Background()); err != nil {
		t.Errorf("Flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBufferedExporter_Export(t *testing.T) {
	sink := NewBufferedExporter()
	err := sink.Export(context.Background(), LogEntry{
		Timestamp: time.Now(), Level: LevelInfo, Service: "guardian",
		Message: "verdict stored", Attrs: map[string]any{"hash": "a3f2"},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	got := sink.Entries()
	if len(got) != 1 {
		t.Fatalf("buffer holds %d entries, want 1", len(got))
	}
	if got[0].Message != "verdict stored" || got[0].Attrs["hash"] != "a3f2" {
		t.Errorf("stored entry %+v lost fields", got[0])
	}
}

func TestBufferedExporter_EntriesIsolation(t *testing.T) {
	sink := NewBufferedExporter()
	_ = sink.Export(context.Background(), LogEntry{Message: "pristine"})

	first := sink.Entries()
	first[0].Message = "clobbered"

	if got := sink.Entries()[0].Message; got != "pristine" {
		t.Errorf("buffer message = %q after caller mutation, want pristine", got)
	}
}

func TestBufferedExporter_Parallel(t *testing.T) {
	sink := NewBufferedExporter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Export(context.Background(), LogEntry{Message: "ping"})
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Entries()
		}()
	}
	wg.Wait()

	if got := len(sink.Entries()); got != 50 {
		t.Errorf("buffer holds %d entries, want 50", got)
	}
}

// =============================================================================
// End-to-End Tests
// =============================================================================

func TestLogger_EndToEnd(t *testing.T) {
	tmpDir := t.TempDir()
	sink := NewBufferedExporter()

	lg := New(Config{
		Level: LevelDebug, LogDir: tmpDir, Service: "guardian",
		Exporter: sink, Quiet: true,
	})

	lg.Debug("blacklist reloaded", "keywords", 12)
	lg.Info("check complete", "hash", "deadbeef")
	lg.Warn("detector timeout", "detector", "granite_guard")
	lg.Error("audit append failed", "error", "disk full")
	lg.With("request_id", "req-9").Info("child message")

	time.Sleep(150 * time.Millisecond)

	if err := lg.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if got := len(sink.Entries()); got != 5 {
		t.Errorf("exporter saw %d entries, want 5", got)
	}
	if names := dirEntries(t, tmpDir); len(names) == 0 {
		t.Error("no log file written")
	}
}

func TestLogger_FileContentIsJSON(t *testing.T) {
	tmpDir := t.TempDir()
	lg := New(Config{Level: LevelInfo, LogDir: tmpDir, Service: "guardian", Quiet: true})

	lg.Info("check complete", "hash", "deadbeef")
	lg.Close()

	names := dirEntries(t, tmpDir)
	if len(names) == 0 {
		t.Fatal("no log file written")
	}
	content, err := os.ReadFile(filepath.Join(tmpDir, names[0]))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	if !strings.Contains(string(content), "check complete") {
		t.Error("log file lost the message")
	}
	// File logs are JSON regardless of the console format.
	if !strings.Contains(string(content), "\"hash\":\"deadbeef\"") {
		t.Error("log file attrs are not JSON encoded")
	}
}

// =============================================================================
// Test Doubles
// =============================================================================

// dirEntries lists file names in dir, failing the test on read errors.
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(files))
	for _, ent := range files {
		names = append(names, ent.Name())
	}
	return names
}

// failingExporter returns a fixed error from each configured method.
type failingExporter struct {
	onExport error
	onFlush  error
	onClose  error
}

func (e *failingExporter) Export(ctx context.Context, entry LogEntry) error { return e.onExport }
func (e *failingExporter) Flush(ctx context.Context) error                  { return e.onFlush }
func (e *failingExporter) Close() error                                     { return e.onClose }

// failingHandler is a slog.Handler whose Handle always fails.
type failingHandler struct {
	err error
}

func (h *failingHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }
func (h *failingHandler) Handle(ctx context.Context, r slog.Record) error    { return h.err }
func (h *failingHandler) WithAttrs(attrs []slog.Attr) slog.Handler           { return h }
func (h *failingHandler) WithGroup(name string) slog.Handler                 { return h }
