// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/embedding"
	"github.com/stratum-io/stratum/internal/llm"
	"github.com/stratum-io/stratum/internal/metrics"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

var ragTracer = otel.Tracer("stratum.rag.engine")

// LLMConcurrency bounds concurrent LLM calls a single causal-chain
// explanation fans out (§5's LLM concurrent-calls semaphore).
const LLMConcurrency = 8

// Engine is the C7 RAG engine: Interface implemented by *Engine, asserted
// below.
type Interface interface {
	Answer(ctx context.Context, sessionID, message string) (*ChatResult, error)
}

// Engine implements the 7-step pipeline of §4.7.
type Engine struct {
	columnar    columnar.Store
	vectorstore vectorstore.Store
	embedder    embedding.Embedder
	llmClient   llm.Client
	provider    string
	metrics     *metrics.Metrics
	sessions    *sessionMemory
	llmPool     *ants.Pool
}

func New(columnarStore columnar.Store, vs vectorstore.Store, embedder embedding.Embedder, llmClient llm.Client, provider string, m *metrics.Metrics) *Engine {
	pool, _ := ants.NewPool(LLMConcurrency, ants.WithNonblocking(false))
	return &Engine{
		columnar:    columnarStore,
		vectorstore: vs,
		embedder:    embedder,
		llmClient:   llmClient,
		provider:    provider,
		metrics:     m,
		sessions:    newSessionMemory(),
		llmPool:     pool,
	}
}

// Answer runs the full 7-step pipeline for one chat turn.
func (e *Engine) Answer(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	start := time.Now()
	ctx, span := ragTracer.Start(ctx, "Engine.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	services, err := e.columnar.Services(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rag: list services: %w", err)
	}

	analysis := AnalyzeQuery(message, services, time.Now())
	span.SetAttributes(attribute.String("query.intent", string(analysis.Intent)))

	vectors, err := e.embedder.Embed(ctx, []string{analysis.CleanedQuery})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	results, entries, err := retrieve(ctx, e.vectorstore, e.columnar, vectors[0], analysis)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(results) == 0 {
		if e.metrics != nil {
			e.metrics.RAGZeroHits.Inc()
			e.metrics.RAGQueryDuration.Observe(time.Since(start).Seconds())
		}
		return &ChatResult{
			Answer:         noHitsAnswer,
			SourcesCount:   0,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Provider:       e.provider,
		}, nil
	}

	ranked := rerank(results, entries, time.Now())

	var chain *CausalChain
	if shouldBuildCausalChain(analysis.Intent, ranked) {
		chain = buildCausalChain(ranked)
		if chain != nil {
			e.explainCausalChain(ctx, chain)
		}
	}

	var history []Message
	if sessionID != "" {
		history = e.sessions.Get(sessionID)
	}
	messages := buildMessages(message, ranked, history)

	answerText := ""
	chatResult, err := e.llmClient.Chat(ctx, systemPrompt, messages, llm.Params{
		Temperature: ChatTemperature,
		MaxTokens:   ChatMaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed, falling back to deterministic summary")
		answerText = summarizeTopLogs(ranked)
	} else {
		answerText = chatResult.Text
	}

	sourceLogs := extractSourceLogs(answerText, ranked)
	turnCount := 2
	if sessionID != "" {
		turnCount = e.sessions.Append(sessionID,
			Message{Role: "user", Content: message},
			Message{Role: "assistant", Content: answerText},
		)
	}

	if e.metrics != nil {
		e.metrics.RAGQueryDuration.Observe(time.Since(start).Seconds())
	}

	return &ChatResult{
		Answer:           answerText,
		SourcesCount:     len(sourceLogs),
		ResponseTimeMs:   time.Since(start).Milliseconds(),
		Provider:         e.provider,
		ContextLogs:      len(ranked),
		ConversationTurn: turnCount / 2,
		SourceLogs:       sourceLogs,
		CausalChain:      chain,
	}, nil
}

// explainCausalChain implements §4.7 step 5's LLM-authored per-link
// explanations. Each link's explanation call is dispatched across a bounded
// pool so a chain with several links doesn't serialize CausalMaxLinks LLM
// round trips. Failure is non-fatal: the chain is still returned without
// explanations.
func (e *Engine) explainCausalChain(ctx context.Context, chain *CausalChain) {
	var wg sync.WaitGroup
	for i := range chain.Chain {
		link := &chain.Chain[i]
		wg.Add(1)
		err := e.llmPool.Submit(func() {
			defer wg.Done()
			prompt := fmt.Sprintf(
				"In one sentence, explain how this log may have contributed to the effect log.\nEffect: [%s] %s\nCause: [%s] %s",
				chain.Effect.Level, chain.Effect.Message, link.Cause.Level, link.Cause.Message,
			)
			result, err := e.llmClient.Chat(ctx, "You are a log analyst explaining a causal chain in one sentence.",
				[]llm.Message{{Role: "user", Content: prompt}}, llm.Params{Temperature: ChatTemperature, MaxTokens: 100})
			if err != nil {
				return
			}
			link.Explanation = result.Text
		})
		if err != nil {
			wg.Done()
		}
	}
	wg.Wait()

	if len(chain.Chain) > 0 {
		result, err := e.llmClient.Chat(ctx, "You are a log analyst.",
			[]llm.Message{{Role: "user", Content: "In one sentence, recommend a fix given this causal chain of log events."}},
			llm.Params{Temperature: ChatTemperature, MaxTokens: 100})
		if err == nil {
			chain.Recommendation = result.Text
		}
	}
}

// Close releases the engine's LLM concurrency pool.
func (e *Engine) Close() {
	if e.llmPool != nil {
		e.llmPool.Release()
	}
}

var _ Interface = (*Engine)(nil)
