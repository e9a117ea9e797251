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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/taxonomy"
)

func TestParseLlamaGuardReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "safe", reply: "safe", want: "safe"},
		{name: "safe with whitespace", reply: "  safe \n", want: "safe"},
		{name: "safe uppercase", reply: "Safe", want: "safe"},
		{name: "unsafe with code", reply: "unsafe\nS2", want: "S2"},
		{name: "unsafe with code list", reply: "unsafe\nS1,S14", want: "S1"},
		{name: "unsafe inline code", reply: "unsafe S13", want: "S13"},
		{name: "unsafe lowercase code", reply: "unsafe\ns9", want: "S9"},
		{name: "unsafe without code", reply: "unsafe", want: "unsafe"},
		{name: "empty", reply: "", want: "unknown"},
		{name: "chatter", reply: "I think this content is fine", want: "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseLlamaGuardReply(tc.reply); got != tc.want {
				t.Errorf("parseLlamaGuardReply(%q) = %q, want %q", tc.reply, got, tc.want)
			}
		})
	}
}

func TestMapLlamaGuardLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want taxonomy.Category
	}{
		{raw: "safe", want: taxonomy.Safe},
		{raw: "S1", want: taxonomy.HarmfulPrompt},
		{raw: "S2", want: taxonomy.HarmfulPrompt},
		{raw: "S12", want: taxonomy.HarmfulPrompt},
		{raw: "S13", want: taxonomy.Jailbreak},
		{raw: "S14", want: taxonomy.Jailbreak},
		{raw: "S15", want: taxonomy.UnknownUnsafe},
		{raw: "unsafe", want: taxonomy.UnknownUnsafe},
		{raw: "unknown", want: taxonomy.UnknownUnsafe},
		{raw: "gibberish", want: taxonomy.UnknownUnsafe},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			if got := mapLlamaGuardLabel(tc.raw); got != tc.want {
				t.Errorf("mapLlamaGuardLabel(%q) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

// ollamaStub returns an httptest server that answers /api/chat with the
// given reply content.
func ollamaStub(t *testing.T, reply string, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		resp := ollamaChatResponse{
			Message: Message{Role: "assistant", Content: reply},
			Done:    true,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestLlamaGuard(backend Backend, timeout time.Duration) Detector {
	det, _ := New(Config{
		Name:    "llama_guard",
		Type:    TypeLlamaGuard,
		Role:    RolePrimary,
		Timeout: timeout,
		Backend: backend,
	})
	return det
}

func TestLlamaGuardInspect(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		clean    bool
		category taxonomy.Category
		raw      string
	}{
		{name: "safe reply", reply: "safe", clean: true, category: taxonomy.Safe, raw: "safe"},
		{name: "harm code", reply: "unsafe\nS2", clean: false, category: taxonomy.HarmfulPrompt, raw: "S2"},
		{name: "jailbreak code", reply: "unsafe\nS14", clean: false, category: taxonomy.Jailbreak, raw: "S14"},
		{name: "bare unsafe", reply: "unsafe", clean: false, category: taxonomy.UnknownUnsafe, raw: "unsafe"},
		{name: "chatter", reply: "cannot classify this", clean: false, category: taxonomy.UnknownUnsafe, raw: "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := ollamaStub(t, tc.reply, 0)
			defer srv.Close()

			det := newTestLlamaGuard(NewOllamaBackend(srv.URL, "llama-guard3"), time.Second)
			res := det.Inspect(context.Background(), "some text")

			if res.Clean != tc.clean {
				t.Errorf("Clean = %v, want %v", res.Clean, tc.clean)
			}
			if res.Category != tc.category {
				t.Errorf("Category = %s, want %s", res.Category, tc.category)
			}
			if res.Raw != tc.raw {
				t.Errorf("Raw = %q, want %q", res.Raw, tc.raw)
			}
			if res.DetectorID != "llama_guard" {
				t.Errorf("DetectorID = %q, want %q", res.DetectorID, "llama_guard")
			}
		})
	}
}

func TestLlamaGuardFailsOpenOnBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	det := newTestLlamaGuard(NewOllamaBackend(srv.URL, "llama-guard3"), time.Second)
	res := det.Inspect(context.Background(), "some text")

	if !res.Clean {
		t.Error("Clean = false, want true (fail-open)")
	}
	if res.Category != taxonomy.Safe {
		t.Errorf("Category = %s, want %s", res.Category, taxonomy.Safe)
	}
	if res.Raw != RawError {
		t.Errorf("Raw = %q, want %q", res.Raw, RawError)
	}
}

func TestLlamaGuardFailsOpenOnTimeout(t *testing.T) {
	srv := ollamaStub(t, "safe", 300*time.Millisecond)
	defer srv.Close()

	det := newTestLlamaGuard(NewOllamaBackend(srv.URL, "llama-guard3"), 20*time.Millisecond)
	res := det.Inspect(context.Background(), "some text")

	if !res.Clean {
		t.Error("Clean = false, want true (fail-open)")
	}
	if res.Raw != RawTimeout {
		t.Errorf("Raw = %q, want %q", res.Raw, RawTimeout)
	}
}

func TestLlamaGuardHonoursCallerDeadline(t *testing.T) {
	srv := ollamaStub(t, "safe", 300*time.Millisecond)
	defer srv.Close()

	// No adapter timeout; the caller's deadline is the only bound.
	det := newTestLlamaGuard(NewOllamaBackend(srv.URL, "llama-guard3"), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := det.Inspect(ctx, "some text")
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Inspect took %v, deadline was not propagated", elapsed)
	}
	if res.Raw != RawTimeout {
		t.Errorf("Raw = %q, want %q", res.Raw, RawTimeout)
	}
}
