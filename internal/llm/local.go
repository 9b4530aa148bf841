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
)

// LocalClient talks to a llama.cpp server's /v1/chat/completions endpoint
// (the OpenAI-compatible surface llama.cpp exposes), used when
// LLM_PROVIDER=local.
type LocalClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewLocalClient(baseURL string) *LocalClient {
	return &LocalClient{
		httpClient: &http.Client{Timeout: CallTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type localChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localChatRequest struct {
	Messages    []localChatMessage `json:"messages"`
	Temperature float32            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
}

type localChatResponse struct {
	Choices []struct {
		Message localChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (l *LocalClient) Chat(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	return withRetry(func() (ChatResult, error) {
		return l.chatOnce(ctx, system, messages, params)
	})
}

func (l *LocalClient) chatOnce(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	msgs := make([]localChatMessage, 0, len(messages)+1)
	if system != "" {
		msgs = append(msgs, localChatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, localChatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(localChatRequest{Messages: msgs, Temperature: params.Temperature, MaxTokens: params.MaxTokens})
	if err != nil {
		return ChatResult{}, fmt.Errorf("local llm: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("local llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("local llm: call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("local llm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("local llm: status %d: %s", resp.StatusCode, string(respBody))
		return ChatResult{}, &StatusError{Status: resp.StatusCode, Err: err}
	}

	var out localChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return ChatResult{}, fmt.Errorf("local llm: parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return ChatResult{}, fmt.Errorf("local llm: no choices returned")
	}
	return ChatResult{
		Text:         out.Choices[0].Message.Content,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}, nil
}

var _ Client = (*LocalClient)(nil)
