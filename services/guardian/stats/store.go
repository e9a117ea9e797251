// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats keeps durable detection statistics in an embedded BadgerDB.
// Counts survive restarts and back the GET /v1/stats read model; losing them
// is not fatal to a check, so recording failures are logged and swallowed by
// the caller.
//
// BadgerDB itself is Apache 2.0 licensed (github.com/dgraph-io/badger).
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

// Keys under which the counters live. Category counts append the public
// category name.
const (
	keyTotal         = "stats:total"
	keySafe          = "stats:safe"
	keyUnsafe        = "stats:unsafe"
	keyFallback      = "stats:fallback"
	keyKeywordBlocks = "stats:keyword_blocks"
	keyCategoryBase  = "stats:category:"
)

// Config holds configuration for the statistics store.
type Config struct {
	// Dir is where the BadgerDB files live. Required unless InMemory is set.
	Dir string

	// InMemory enables in-memory mode. Used by tests; counts do not survive
	// Close.
	InMemory bool

	// SyncWrites fsyncs every commit so counts survive a crash.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter satisfies badger.Logger by forwarding to slog.
type slogAdapter struct {
	log *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.log.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.log.Warn(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.log.Info(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.log.Debug(fmt.Sprintf(format, args...))
}

// Outcome is what one finished check contributes to the statistics.
type Outcome struct {
	Safe                bool
	Category            taxonomy.Category
	Fallback            bool
	KeywordShortCircuit bool
}

// Summary is the read model served by GET /v1/stats. ByCategory is keyed by
// public category names so the endpoint never exposes internal labels.
type Summary struct {
	TotalChecks   int64            `json:"total_checks"`
	SafeCount     int64            `json:"safe_count"`
	UnsafeCount   int64            `json:"unsafe_count"`
	Fallbacks     int64            `json:"fallbacks"`
	KeywordBlocks int64            `json:"keyword_blocks"`
	ByCategory    map[string]int64 `json:"by_category"`
}

// Store wraps the database. Increments serialize on a mutex: the write rate
// is one batch per check, so single-writer is simpler than optimistic
// transaction retries and keeps counts exact.
type Store struct {
	mu sync.Mutex
	db *badger.DB
}

// Open creates and opens the statistics store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("a directory is required for a persistent statistics store")
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create statistics directory %s: %w", cfg.Dir, err)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&slogAdapter{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open statistics store: %w", err)
	}
	return &Store{db: db}, nil
}

// Record adds one check outcome to the counters.
func (s *Store) Record(ctx context.Context, out Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := []string{keyTotal}
	if out.Safe {
		keys = append(keys, keySafe)
	} else {
		keys = append(keys, keyUnsafe)
		keys = append(keys, keyCategoryBase+taxonomy.PublicName(out.Category))
	}
	if out.Fallback {
		keys = append(keys, keyFallback)
	}
	if out.KeywordShortCircuit {
		keys = append(keys, keyKeywordBlocks)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := incrementKey(txn, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot reads the full summary.
func (s *Store) Snapshot(ctx context.Context) (Summary, error) {
	sum := Summary{ByCategory: make(map[string]int64)}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if sum.TotalChecks, err = readKey(txn, keyTotal); err != nil {
			return err
		}
		if sum.SafeCount, err = readKey(txn, keySafe); err != nil {
			return err
		}
		if sum.UnsafeCount, err = readKey(txn, keyUnsafe); err != nil {
			return err
		}
		if sum.Fallbacks, err = readKey(txn, keyFallback); err != nil {
			return err
		}
		if sum.KeywordBlocks, err = readKey(txn, keyKeywordBlocks); err != nil {
			return err
		}
		for _, cat := range taxonomy.All() {
			if cat == taxonomy.Safe {
				continue
			}
			public := taxonomy.PublicName(cat)
			n, err := readKey(txn, keyCategoryBase+public)
			if err != nil {
				return err
			}
			if n > 0 {
				sum.ByCategory[public] = n
			}
		}
		return nil
	})
	return sum, err
}

// Sync flushes pending writes to disk. No-op for in-memory stores.
func (s *Store) Sync() error {
	if s.db.Opts().InMemory {
		return nil
	}
	return s.db.Sync()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// incrementKey bumps one decimal counter inside a transaction. Counts are
// stored as decimal strings so they stay inspectable with badger tooling.
func incrementKey(txn *badger.Txn, key string) error {
	current, err := txnRead(txn, key)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), []byte(strconv.FormatInt(current+1, 10)))
}

func readKey(txn *badger.Txn, key string) (int64, error) {
	return txnRead(txn, key)
}

func txnRead(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	var value int64
	err = item.Value(func(val []byte) error {
		v, perr := strconv.ParseInt(string(val), 10, 64)
		if perr != nil {
			return fmt.Errorf("counter %s is corrupt: %w", key, perr)
		}
		value = v
		return nil
	})
	return value, err
}
