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
	"fmt"
	"sort"
)

// Registry tags. The set of adapter implementations is closed at compile
// time; configuration selects from these tags, it cannot load new code.
const (
	TypeLlamaGuard   = "llama_guard"
	TypeGraniteGuard = "granite_guard"
)

// Constructor builds a detector from its configuration.
type Constructor func(cfg Config) Detector

var registry = map[string]Constructor{
	TypeLlamaGuard:   newLlamaGuard,
	TypeGraniteGuard: newGraniteGuard,
}

// New builds the detector registered for cfg.Type. An unknown tag is an
// error the caller is expected to log and skip, leaving the rest of the
// configured detectors running.
func New(cfg Config) (Detector, error) {
	ctor, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown detector type %q (known types: %v)", cfg.Type, Types())
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("detector %q has no backend configured", cfg.Name)
	}
	return ctor(cfg), nil
}

// Types returns the registered type tags, sorted for stable log output.
func Types() []string {
	out := make([]string, 0, len(registry))
	for tag := range registry {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
