// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/embedding"
	"github.com/stratum-io/stratum/internal/llm"
	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

func seedEngine(t *testing.T) (*Engine, *columnar.FakeStore, *vectorstore.FakeStore) {
	t.Helper()
	store := columnar.NewFakeStore()
	vs := vectorstore.NewFakeStore()
	embedder := embedding.NewFakeEmbedder()
	client := llm.NewFakeClient(llm.ChatResult{Text: "The checkout-api failed due to a timeout."})

	ctx := context.Background()
	now := time.Now()
	entry := logtypes.LogEntry{ID: "log-1", Service: "checkout-api", Level: logtypes.LevelError, Message: "timeout calling billing", Timestamp: now}
	require.NoError(t, store.Insert(ctx, []logtypes.LogEntry{entry}))
	require.NoError(t, vs.Upsert(ctx, []vectorstore.Point{{
		ID: "log-1", LogID: "log-1", Service: "checkout-api", Level: "error", Message: entry.Message,
		Timestamp: now, Vector: make([]float32, embedding.Dim),
	}}))

	engine := New(store, vs, embedder, client, "fake", nil)
	return engine, store, vs
}

func TestEngine_AnswerReturnsHydratedResult(t *testing.T) {
	engine, _, _ := seedEngine(t)

	result, err := engine.Answer(context.Background(), "session-1", "why did checkout-api fail?")
	require.NoError(t, err)
	assert.Equal(t, "The checkout-api failed due to a timeout.", result.Answer)
	assert.Equal(t, "fake", result.Provider)
	assert.Equal(t, 1, result.ConversationTurn)
}

func TestEngine_Answer_SecondTurnUsesSessionHistory(t *testing.T) {
	engine, _, _ := seedEngine(t)
	ctx := context.Background()

	_, err := engine.Answer(ctx, "session-2", "why did checkout-api fail?")
	require.NoError(t, err)

	result, err := engine.Answer(ctx, "session-2", "and what about billing?")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ConversationTurn)
}

func TestEngine_Answer_ZeroHitsSkipsLLMCall(t *testing.T) {
	store := columnar.NewFakeStore()
	vs := vectorstore.NewFakeStore()
	embedder := embedding.NewFakeEmbedder()
	client := llm.NewFakeClient(llm.ChatResult{Text: "should never be returned"})
	engine := New(store, vs, embedder, client, "fake", nil)

	result, err := engine.Answer(context.Background(), "session-3", "what happened?")
	require.NoError(t, err)
	assert.Equal(t, "I could not find relevant logs for this question.", result.Answer)
	assert.Equal(t, 0, result.SourcesCount)
	assert.Equal(t, 0, result.ContextLogs)
	assert.Empty(t, client.Calls, "LLM must not be called when retrieval finds zero hits")
}

func TestEngine_Answer_LLMFailureFallsBackToDeterministicSummary(t *testing.T) {
	store := columnar.NewFakeStore()
	vs := vectorstore.NewFakeStore()
	embedder := embedding.NewFakeEmbedder()
	client := llm.NewFakeClient(llm.ChatResult{})
	client.Err = assert.AnError
	engine := New(store, vs, embedder, client, "fake", nil)

	ctx := context.Background()
	now := time.Now()
	entry := logtypes.LogEntry{ID: "log-9", Service: "checkout-api", Level: logtypes.LevelError, Message: "timeout calling billing", Timestamp: now}
	require.NoError(t, store.Insert(ctx, []logtypes.LogEntry{entry}))
	require.NoError(t, vs.Upsert(ctx, []vectorstore.Point{{
		ID: "log-9", LogID: "log-9", Service: "checkout-api", Level: "error", Message: entry.Message,
		Timestamp: now, Vector: make([]float32, embedding.Dim),
	}}))

	result, err := engine.Answer(ctx, "session-4", "why did checkout-api fail?")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "timeout calling billing")
	assert.Greater(t, result.ContextLogs, 0)
}
