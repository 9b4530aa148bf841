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
)

const anthropicVersion = "2023-06-01"

// AnthropicClient is a hand-rolled client for Anthropic's Messages API; the
// SDK ecosystem for it isn't as settled as OpenAI's, so a small direct HTTP
// client (in the same shape as the other providers here) is simplest.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: CallTimeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.anthropic.com/v1/messages",
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicClient) Chat(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	return withRetry(func() (ChatResult, error) {
		return a.chatOnce(ctx, system, messages, params)
	})
}

func (a *AnthropicClient) chatOnce(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	msgs := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "system" {
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: role, Content: m.Content})
	}

	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = 800
	}
	payload := anthropicRequest{
		Model: a.model, Messages: msgs, System: system,
		MaxTokens: maxTokens, Temperature: params.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ChatResult{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("anthropic: call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(respBody))
		return ChatResult{}, &StatusError{Status: resp.StatusCode, Err: err}
	}

	var out anthropicResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return ChatResult{}, fmt.Errorf("anthropic: parse response: %w", err)
	}
	if out.Error != nil {
		return ChatResult{}, fmt.Errorf("anthropic: %s", out.Error.Message)
	}
	var text string
	for _, block := range out.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return ChatResult{Text: text, InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens}, nil
}

var _ Client = (*AnthropicClient)(nil)
