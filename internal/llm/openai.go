// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient wraps the hosted OpenAI chat-completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}
}

func (o *OpenAIClient) Chat(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	return withRetry(func() (ChatResult, error) {
		return o.chatOnce(ctx, system, messages, params)
	})
}

func (o *OpenAIClient) chatOnce(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	req := openai.ChatCompletionRequest{Model: o.model}
	if system != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: system,
		})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if params.Temperature != 0 {
		req.Temperature = params.Temperature
	}
	if params.MaxTokens != 0 {
		req.MaxCompletionTokens = params.MaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
			return ChatResult{}, &StatusError{Status: apiErr.HTTPStatusCode, Err: err}
		}
		return ChatResult{}, &StatusError{Status: http.StatusBadGateway, Err: fmt.Errorf("openai: call failed: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return ChatResult{}, fmt.Errorf("openai: no choices returned")
	}
	return ChatResult{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

var _ Client = (*OpenAIClient)(nil)
