// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

func TestRerank_HigherSemanticAndSeverityRanksFirst(t *testing.T) {
	now := time.Now()
	entries := []logtypes.LogEntry{
		{ID: "low", Level: logtypes.LevelInfo, Timestamp: now},
		{ID: "high", Level: logtypes.LevelFatal, Timestamp: now},
	}
	results := []vectorstore.SearchResult{
		{Point: vectorstore.Point{LogID: "low"}, Similarity: 0.5},
		{Point: vectorstore.Point{LogID: "high"}, Similarity: 0.9},
	}

	ranked := rerank(results, entries, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].Entry.ID)
}

func TestRerank_TiesBreakByTimestampThenID(t *testing.T) {
	now := time.Now()
	entries := []logtypes.LogEntry{
		{ID: "b", Level: logtypes.LevelInfo, Timestamp: now},
		{ID: "a", Level: logtypes.LevelInfo, Timestamp: now},
	}
	results := []vectorstore.SearchResult{
		{Point: vectorstore.Point{LogID: "b"}, Similarity: 0.5},
		{Point: vectorstore.Point{LogID: "a"}, Similarity: 0.5},
	}

	ranked := rerank(results, entries, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].Entry.ID)
}

func TestRerank_TruncatesToKCtx(t *testing.T) {
	now := time.Now()
	var entries []logtypes.LogEntry
	var results []vectorstore.SearchResult
	for i := 0; i < KCtx+10; i++ {
		id := string(rune('a' + i%26))
		entries = append(entries, logtypes.LogEntry{ID: id, Level: logtypes.LevelInfo, Timestamp: now})
		results = append(results, vectorstore.SearchResult{Point: vectorstore.Point{LogID: id}, Similarity: 0.5})
	}

	ranked := rerank(results, entries, now)
	assert.LessOrEqual(t, len(ranked), KCtx)
}
