// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events fans sanitized verdict summaries out to live subscribers.
// The hub never carries submitted text, matched keywords, or vendor names;
// only fields already cleared for the public response shape go through it.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events rather than stalling checks.
const DefaultBuffer = 64

// Event is one sanitized verdict summary.
type Event struct {
	RequestID        string  `json:"request_id"`
	IsSafe           bool    `json:"is_safe"`
	Category         string  `json:"category"`
	Confidence       string  `json:"confidence"`
	Fallback         bool    `json:"fallback,omitempty"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Timestamp        int64   `json:"timestamp"`
}

// Subscriber is one attached listener. Read from C until it closes.
type Subscriber struct {
	C chan Event

	hub     *Hub
	dropped atomic.Int64
	once    sync.Once
}

// Dropped reports how many events this subscriber has missed.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Close detaches the subscriber and closes C. Safe to call twice.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.C)
	})
}

// Hub broadcasts events to all current subscribers. Publish never blocks:
// a full subscriber channel drops the event for that subscriber only.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

// Subscribe attaches a listener with the given channel depth. A depth of
// zero or less uses DefaultBuffer. Returns nil after Close.
func (h *Hub) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	sub := &Subscriber{C: make(chan Event, buffer), hub: h}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers the event to every subscriber that has room.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.C <- ev:
		default:
			if n := sub.dropped.Add(1); n%100 == 1 {
				slog.Warn("Event subscriber falling behind, dropping events",
					"dropped", n)
			}
		}
	}
}

// SubscriberCount reports how many listeners are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close detaches and closes every subscriber. Later Publish calls are
// no-ops and later Subscribe calls return nil.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.C) })
	}
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
}
