// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package blacklist owns the keyword/pattern deny list consulted before any
// model-backed detector runs. The live set is an immutable snapshot behind an
// atomic pointer: readers grab the pointer once per check, writers validate,
// persist, and then swap the whole generation.
package blacklist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Sources recorded on a snapshot, reported verbatim by GET /v1/blacklist.
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceAPI      = "api"
)

// Store holds the live blacklist for the process lifetime.
//
// Concurrency: Snapshot is lock-free and safe from any goroutine. Replace and
// the file-watcher reload serialize on a mutex; the publish itself is a single
// pointer swap, so readers are never blocked for longer than that.
type Store struct {
	path    string
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewStore loads the initial blacklist and returns a ready store.
//
// Load order:
//  1. No path configured: compile the embedded default.
//  2. Path configured and the file exists: compile the file. A corrupt file
//     is a startup error, not a silent fallback.
//  3. Path configured but missing: compile the embedded default and seed the
//     file with it so operators have something to edit.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	if path == "" {
		snap, err := loadBytes(DefaultBlacklist, SourceEmbedded)
		if err != nil {
			return nil, fmt.Errorf("failed to load the embedded blacklist: %w", err)
		}
		s.current.Store(snap)
		return s, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		snap, lerr := loadBytes(data, SourceFile)
		if lerr != nil {
			return nil, fmt.Errorf("failed to load blacklist file %s: %w", path, lerr)
		}
		s.current.Store(snap)
		slog.Info("Loaded blacklist from file", "path", path,
			"keywords", len(snap.Keywords), "patterns", len(snap.Patterns))
		return s, nil

	case errors.Is(err, fs.ErrNotExist):
		snap, lerr := loadBytes(DefaultBlacklist, SourceEmbedded)
		if lerr != nil {
			return nil, fmt.Errorf("failed to load the embedded blacklist: %w", lerr)
		}
		if perr := s.persist(snap); perr != nil {
			return nil, fmt.Errorf("failed to seed blacklist file %s: %w", path, perr)
		}
		s.current.Store(snap)
		slog.Info("Seeded blacklist file from embedded default", "path", path)
		return s, nil

	default:
		return nil, fmt.Errorf("failed to read blacklist file %s: %w", path, err)
	}
}

// Snapshot returns the current blacklist generation. The returned value is
// immutable; callers keep it for the duration of one check.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Replace validates and installs a whole new blacklist.
//
// The update is transactional: every pattern must compile or the previous
// snapshot is retained and the caller gets a *PatternError naming the bad
// pattern. When a backing file is configured the new set is persisted before
// it is published, so an acked replace survives an immediate restart.
func (s *Store) Replace(keywords, patterns []string, source string) error {
	snap, err := compile(keywords, patterns, source)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(snap); err != nil {
		return fmt.Errorf("failed to persist blacklist: %w", err)
	}
	s.current.Store(snap)
	slog.Info("Blacklist replaced", "source", source,
		"keywords", len(snap.Keywords), "patterns", len(snap.Patterns))
	return nil
}

// reloadFromFile re-reads the backing file after an external edit. Invalid
// content is logged and ignored so a fat-fingered edit cannot take down the
// running filter.
func (s *Store) reloadFromFile() {
	if s.path == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Error("Failed to re-read blacklist file, keeping current set",
			"path", s.path, "error", err)
		return
	}
	snap, err := loadBytes(data, SourceFile)
	if err != nil {
		slog.Error("Edited blacklist file is invalid, keeping current set",
			"path", s.path, "error", err)
		return
	}
	s.current.Store(snap)
	slog.Info("Blacklist reloaded from file", "path", s.path,
		"keywords", len(snap.Keywords), "patterns", len(snap.Patterns))
}

// persist writes the snapshot to the backing file via a temp file and rename,
// so the watcher and any concurrent reader of the file never see a torn
// write. A store without a backing file persists nothing.
func (s *Store) persist(snap *Snapshot) error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(snap.ToFile())
	if err != nil {
		return fmt.Errorf("failed to marshal blacklist: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create blacklist directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".blacklist-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp blacklist file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp blacklist file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp blacklist file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp blacklist file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to install blacklist file: %w", err)
	}
	return nil
}

// loadBytes parses a serialized blacklist and compiles it into a snapshot.
func loadBytes(data []byte, source string) (*Snapshot, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the blacklist: %w", err)
	}
	return compile(f.Keywords, f.RegexPatterns, source)
}
