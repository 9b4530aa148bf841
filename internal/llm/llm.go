// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm defines the chat-completion adapter contract used by the RAG
// engine (C6) and its Local/Ollama/OpenAI/Anthropic implementations.
package llm

import (
	"context"
	"time"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Params controls generation. Zero values mean "use the provider default".
type Params struct {
	Temperature float32
	MaxTokens   int
}

// ChatResult is the outcome of a single chat call.
type ChatResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client is the small adapter contract every provider satisfies: one method,
// per the "≤4-method adapter" design note.
type Client interface {
	Chat(ctx context.Context, system string, messages []Message, params Params) (ChatResult, error)
}

// CallTimeout is the per-call budget from §5; callers should derive a
// context with this deadline before invoking Chat.
const CallTimeout = 30 * time.Second
