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
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OpenAIBackend speaks any OpenAI-compatible chat completion API. Used for
// guard models served by vLLM or hosted deployments instead of Ollama.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a backend for one guard model. baseURL may be
// empty for the hosted OpenAI API; apiKey may be empty for local vLLM
// deployments that do not check it.
func NewOpenAIBackend(baseURL, model, apiKey string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	slog.Info("Initializing OpenAI-compatible guard backend", "model", model)
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIBackend) Name() string {
	return o.model
}

// Chat sends one classification exchange and returns the raw reply text.
func (o *OpenAIBackend) Chat(ctx context.Context, messages []Message) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIBackend.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("guard.model", o.model))

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI-compatible API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI-compatible backend returned no choices")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Probe lists models on the backend. Cheap, and confirms both reachability
// and credentials.
func (o *OpenAIBackend) Probe(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "OpenAIBackend.Probe")
	defer span.End()

	if _, err := o.client.ListModels(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("OpenAI-compatible backend is unreachable: %w", err)
	}
	return nil
}
