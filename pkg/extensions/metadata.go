// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"maps"
	"slices"
)

// =============================================================================
// Metadata
// =============================================================================

// Metadata carries the free-form attributes of a license claim or a
// verdict event: the fields that vary by deployment and therefore have
// no place in the typed structs.
//
// Keys the gateway itself writes on verdict events:
//   - "keyword_short_circuit": whether the keyword stage decided alone
//   - "detector.<id>": the category each guard model voted
//
// Enterprise license backends conventionally supply "tier" and "org"
// claims, which the management handlers read back.
//
// A Metadata value is a plain map. It is not safe for concurrent
// mutation; finish building it before handing it to a sink.
//
//	md := extensions.NewMetadata().
//		Set("keyword_short_circuit", false).
//		Set("detector.llama_guard", "violence")
//
//	if cat, ok := md.GetString("detector.llama_guard"); ok {
//		slog.Info("vote", "category", cat)
//	}
type Metadata map[string]any

// NewMetadata returns an empty, ready-to-use map.
func NewMetadata() Metadata {
	return make(Metadata)
}

// Set adds or updates a key-value pair and returns the Metadata for
// chaining.
func (m Metadata) Set(key string, value any) Metadata {
	m[key] = value
	return m
}

// Get retrieves a value by key with an existence flag.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// GetString retrieves a string value by key. Reports false if the key
// is absent or holds a different type.
func (m Metadata) GetString(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// GetInt64 retrieves an int64 value by key. Reports false if the key
// is absent or holds a different type.
func (m Metadata) GetInt64(key string) (int64, bool) {
	i, ok := m[key].(int64)
	return i, ok
}

// GetBool retrieves a bool value by key. Reports false if the key is
// absent or holds a different type.
func (m Metadata) GetBool(key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

// Has checks if a key exists, regardless of its value.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Clone creates a shallow copy of the Metadata. Values themselves are
// not deep-copied.
func (m Metadata) Clone() Metadata {
	return maps.Clone(m)
}

// Merge copies every attribute from other into m, overwriting on
// collision. A nil other is a no-op.
func (m Metadata) Merge(other Metadata) Metadata {
	maps.Copy(m, other)
	return m
}

// Keys returns all keys. Order is not guaranteed.
func (m Metadata) Keys() []string {
	return slices.Collect(maps.Keys(m))
}

// Len reports how many attributes are set.
func (m Metadata) Len() int {
	return len(m)
}
