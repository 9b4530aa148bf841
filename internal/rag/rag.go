// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rag is the C7 retrieval-augmented chat engine: query analysis,
// vector retrieval with progressive filter loosening, columnar hydration,
// reranking, causal-chain construction, prompt assembly and LLM call.
package rag

import (
	"time"

	"github.com/stratum-io/stratum/internal/logtypes"
)

// Intent classifies a user message per §4.7 step 1.
type Intent string

const (
	IntentSummarize      Intent = "summarize"
	IntentExplainRootCause Intent = "explain_root_cause"
	IntentFilterList     Intent = "filter_list"
	IntentCount          Intent = "count"
	IntentFollowUp       Intent = "follow_up"
	IntentOther          Intent = "other"
)

// K_ctx is the number of hydrated logs carried into the prompt (§4.7 step 4).
const KCtx = 20

// RetrievalK is the initial vector-search fan-out before reranking.
const RetrievalK = 50

// MinHits is the floor below which retrieval progressively loosens filters.
const MinHits = 10

// SessionTurns is the number of prior turns folded into the prompt (§4.7 step 6).
const SessionTurns = 6

// MaxSessions and MaxTurnsPerSession bound in-process session memory (§4.7).
const (
	MaxSessions        = 1_000
	MaxTurnsPerSession = 10
)

// ChatTimeout bounds the end-to-end chat request (§5).
const ChatTimeout = 45 * time.Second

// RecencyTau is the exponential decay constant for the recency score.
const RecencyTau = 6 * time.Hour

// Reranking weights (§4.7 step 4).
const (
	WeightSemantic = 0.6
	WeightRecency  = 0.25
	WeightSeverity = 0.15
)

// Causal-chain constants (§4.7 step 5).
const (
	CausalWindow            = 10 * time.Minute
	CausalMaxLinks          = 4
	CausalMinConfidence     = 0.35
	CausalSemanticThreshold = 0.5
	WeightCausalSemantic    = 0.5
	WeightCausalSameTrace   = 0.3
	WeightCausalSameService = 0.2
)

// QueryAnalysis is the output of §4.7 step 1.
type QueryAnalysis struct {
	Intent       Intent
	ServiceHint  string
	LevelHint    string
	Since        time.Time
	Until        time.Time
	CleanedQuery string
}

// RankedLog pairs a hydrated LogEntry with its retrieval/rerank scores.
type RankedLog struct {
	Entry      logtypes.LogEntry
	Semantic   float64
	Recency    float64
	Severity   float64
	Rank       float64
}

// CausalLink is one step of a causal chain (§6.3's causal_chain.chain).
type CausalLink struct {
	Cause       logtypes.LogEntry
	Confidence  float64
	Explanation string
}

// CausalChain is the optional root-cause narrative attached to a ChatResult.
type CausalChain struct {
	Effect         logtypes.LogEntry
	Chain          []CausalLink
	RootCause      *logtypes.LogEntry
	Recommendation string
}

// Message is one turn of session memory.
type Message struct {
	Role    string
	Content string
}

// ChatResult mirrors §6.3's ChatResponse.
type ChatResult struct {
	Answer           string
	SourcesCount     int
	ResponseTimeMs   int64
	Provider         string
	ContextLogs      int
	ConversationTurn int
	SourceLogs       []string
	CausalChain      *CausalChain
}
