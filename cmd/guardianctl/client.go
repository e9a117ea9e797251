// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

// blacklistPayload mirrors the /v1/blacklist wire format. The same shape is
// accepted as YAML on disk so a file managed with `blacklist replace` can be
// dropped straight into the gateway's data directory.
type blacklistPayload struct {
	Keywords      []string `json:"keywords" yaml:"keywords"`
	RegexPatterns []string `json:"regex_patterns" yaml:"regex_patterns"`
	Source        string   `json:"source,omitempty" yaml:"-"`
}

// statsSummary mirrors the /v1/stats wire format.
type statsSummary struct {
	TotalChecks   int64            `json:"total_checks"`
	SafeCount     int64            `json:"safe_count"`
	UnsafeCount   int64            `json:"unsafe_count"`
	Fallbacks     int64            `json:"fallbacks"`
	KeywordBlocks int64            `json:"keyword_blocks"`
	ByCategory    map[string]int64 `json:"by_category"`
}

// guardianClient talks to a running guardian gateway over HTTP.
type guardianClient struct {
	baseURL    string
	licenseKey string
	http       *http.Client
}

func newGuardianClient(baseURL, licenseKey string) *guardianClient {
	return &guardianClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		licenseKey: licenseKey,
		// Checks block on detector backends, so leave generous headroom
		// over the gateway's own 30s pipeline deadline.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// do sends one request and decodes the JSON response into out (when non-nil).
// Non-200 responses are turned into errors carrying the gateway's message.
func (g *guardianClient) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequest(method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.licenseKey != "" {
		req.Header.Set("X-License-Key", g.licenseKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach guardian at %s: %w", g.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr datatypes.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("guardian returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("guardian returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse guardian response: %w", err)
		}
	}
	return nil
}

// CheckText submits text to POST /v1/check and returns the verdict.
func (g *guardianClient) CheckText(text string) (*datatypes.PublicVerdict, error) {
	var out datatypes.PublicVerdict
	if err := g.do(http.MethodPost, "/v1/check", datatypes.CheckRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health fetches GET /health.
func (g *guardianClient) Health() (*datatypes.HealthResponse, error) {
	var out datatypes.HealthResponse
	if err := g.do(http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches GET /v1/stats.
func (g *guardianClient) Stats() (*statsSummary, error) {
	var out statsSummary
	if err := g.do(http.MethodGet, "/v1/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BlacklistShow fetches the active keyword set from GET /v1/blacklist.
func (g *guardianClient) BlacklistShow() (*blacklistPayload, error) {
	var out blacklistPayload
	if err := g.do(http.MethodGet, "/v1/blacklist", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BlacklistReplace installs a new keyword set via PUT /v1/blacklist and
// returns the set the gateway actually installed.
func (g *guardianClient) BlacklistReplace(keywords, patterns []string) (*blacklistPayload, error) {
	req := blacklistPayload{Keywords: keywords, RegexPatterns: patterns}
	var out blacklistPayload
	if err := g.do(http.MethodPut, "/v1/blacklist", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// eventsURL converts the HTTP base URL into the websocket endpoint for
// GET /v1/events.
func (g *guardianClient) eventsURL() string {
	u := g.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/v1/events"
}
