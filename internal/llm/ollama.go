// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var ollamaTracer = otel.Tracer("stratum.llm.ollama")

// OllamaClient talks to a local Ollama daemon's chat endpoint.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: CallTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (o *OllamaClient) Chat(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	ctx, span := ollamaTracer.Start(ctx, "OllamaClient.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	result, err := withRetry(func() (ChatResult, error) {
		return o.chatOnce(ctx, system, messages, params)
	})
	if err != nil {
		span.RecordError(err)
	}
	return result, err
}

func (o *OllamaClient) chatOnce(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	msgs := make([]ollamaMessage, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	options := map[string]interface{}{}
	if params.Temperature != 0 {
		options["temperature"] = params.Temperature
	}
	if params.MaxTokens != 0 {
		options["num_predict"] = params.MaxTokens
	}

	payload := ollamaChatRequest{Model: o.model, Messages: msgs, Stream: false, Options: options}
	body, err := json.Marshal(payload)
	if err != nil {
		return ChatResult{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("ollama: call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("ollama: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(respBody))
		return ChatResult{}, &StatusError{Status: resp.StatusCode, Err: err}
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return ChatResult{}, fmt.Errorf("ollama: parse response: %w", err)
	}
	return ChatResult{Text: out.Message.Content}, nil
}

var _ Client = (*OllamaClient)(nil)
