// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// markerRe matches the counter marker lines appended after every check,
// e.g. "TOKEN_COUNTER=1042 (+12)".
var markerRe = regexp.MustCompile(`^TOKEN_COUNTER=(\d+) \(\+(\d+)\)$`)

// Units is the deterministic unit approximation for a piece of text:
// floor(len/4)+1. Both the per-check delta and the running total are
// computed from this.
func Units(text string) int64 {
	return int64(len(text)/4) + 1
}

// Counter is the durable monotonic units counter.
//
// The authoritative copy lives in a small dedicated state file rewritten via
// temp-and-rename on every increment. On start the state file is read first;
// when it is missing the audit stream is scanned for the last TOKEN_COUNTER
// marker, so totals survive even when only the audit log made it through a
// crash. A flush failure is logged and swallowed: the in-memory total still
// advances and the next successful flush restores durability.
type Counter struct {
	mu    sync.Mutex
	total int64
	path  string
}

// NewCounter recovers the running total and returns a ready counter.
// statePath is the dedicated state file; auditPath is the audit stream used
// as the recovery fallback. Either may be empty.
func NewCounter(statePath, auditPath string) (*Counter, error) {
	c := &Counter{path: statePath}

	if statePath != "" {
		data, err := os.ReadFile(statePath)
		switch {
		case err == nil:
			total, perr := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
			if perr != nil {
				return nil, fmt.Errorf("counter state file %s is corrupt: %w", statePath, perr)
			}
			c.total = total
			slog.Info("Recovered token counter from state file", "path", statePath, "total", total)
			return c, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read counter state file %s: %w", statePath, err)
		}
	}

	if auditPath != "" {
		total, found, err := ScanLastTotal(auditPath)
		if err != nil {
			return nil, err
		}
		if found {
			c.total = total
			slog.Info("Recovered token counter from audit stream", "path", auditPath, "total", total)
			return c, nil
		}
	}

	slog.Info("Token counter starting at zero")
	return c, nil
}

// Add commits units to the running total and returns the new total. The
// increment and the state-file flush happen under one lock so concurrent
// checks each observe a consistent, monotonic value.
func (c *Counter) Add(units int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total += units
	if err := c.flushLocked(); err != nil {
		slog.Error("Failed to persist token counter, total kept in memory", "error", err)
	}
	return c.total
}

// Total returns the current running total.
func (c *Counter) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// flushLocked rewrites the state file atomically. Callers hold c.mu.
func (c *Counter) flushLocked() error {
	if c.path == "" {
		return nil
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create counter directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".counter-*")
	if err != nil {
		return fmt.Errorf("failed to create temp counter file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := fmt.Fprintf(tmp, "%d\n", c.total); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp counter file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp counter file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp counter file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to install counter file: %w", err)
	}
	return nil
}

// ScanLastTotal reads an audit stream from the beginning and returns the
// total from the last TOKEN_COUNTER marker. A missing file is not an error;
// found reports whether any marker was seen.
func ScanLastTotal(path string) (total int64, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to open audit stream %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := markerRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		v, perr := strconv.ParseInt(m[1], 10, 64)
		if perr != nil {
			continue
		}
		total = v
		found = true
	}
	if serr := scanner.Err(); serr != nil {
		return 0, false, fmt.Errorf("failed to scan audit stream %s: %w", path, serr)
	}
	return total, found, nil
}
