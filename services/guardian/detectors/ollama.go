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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianGuard/pkg/telemetry"
)

var tracer = otel.Tracer("aleutian.guardian.detectors")

// OllamaBackend speaks the Ollama chat API. Guard models run with
// temperature zero so repeated inspections of the same text classify the
// same way.
type OllamaBackend struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message   Message `json:"message"`
	CreatedAt string  `json:"created_at"`
	Done      bool    `json:"done"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaBackend creates a backend for one guard model. The HTTP client
// timeout is a generous outer bound; per-inspection deadlines come from the
// request context.
func NewOllamaBackend(base, model string) *OllamaBackend {
	base = strings.TrimSuffix(base, "/")
	slog.Info("Initializing Ollama guard backend", "base_url", base, "model", model)
	c := &http.Client{Timeout: 2 * time.Minute}
	return &OllamaBackend{httpClient: c, baseURL: base, model: model}
}

func (o *OllamaBackend) Name() string {
	return o.model
}

// Chat sends one classification exchange and returns the raw reply text.
func (o *OllamaBackend) Chat(ctx context.Context, msgs []Message) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaBackend.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("guard.model", o.model),
		attribute.Int("guard.message_count", len(msgs)),
	)

	chatReq := ollamaChatRequest{
		Model: o.model, Messages: msgs, Stream: false,
		Options: map[string]any{"temperature": 0.0},
	}
	reqBody, err := json.Marshal(chatReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	telemetry.InjectContext(ctx, req.Header)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("ollama chat call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("read ollama response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			var apiErr struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(respBody, &apiErr); err == nil && strings.Contains(apiErr.Error, "model") && strings.Contains(apiErr.Error, "not found") {
				slog.Warn("Ollama guard model not found", "model", o.model)
				return "", fmt.Errorf("guard model %q is not pulled; run: ollama pull %s", o.model, o.model)
			}
		}
		slog.Error("Ollama returned an error", "status_code", resp.StatusCode, "response", string(respBody))
		return "", fmt.Errorf("ollama chat returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse JSON response from Ollama", "error", err, "response", string(respBody))
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return chatResp.Message.Content, nil
}

// Probe verifies the Ollama server is reachable and the guard model is
// pulled. Listing tags is cheap and does not load the model into memory.
func (o *OllamaBackend) Probe(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "OllamaBackend.Probe")
	defer span.End()
	span.SetAttributes(attribute.String("guard.model", o.model))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ollama unreachable at %s: %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read ollama tags: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags returned status %d: %s", resp.StatusCode, string(body))
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return fmt.Errorf("decode ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == o.model || strings.TrimSuffix(m.Name, ":latest") == o.model {
			return nil
		}
	}
	return fmt.Errorf("guard model %q is not pulled; run: ollama pull %s", o.model, o.model)
}
