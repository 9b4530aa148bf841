// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"math"
	"sort"
	"time"

	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

// rerank implements §4.7 step 4: combine semantic/recency/severity into a
// single score, stable-sort descending, tie-break by timestamp desc then id,
// and take the top K_ctx.
func rerank(results []vectorstore.SearchResult, entries []logtypes.LogEntry, now time.Time) []RankedLog {
	entriesByID := make(map[string]logtypes.LogEntry, len(entries))
	for _, e := range entries {
		entriesByID[e.ID] = e
	}

	ranked := make([]RankedLog, 0, len(results))
	for _, r := range results {
		entry, ok := entriesByID[r.Point.LogID]
		if !ok {
			continue
		}
		recency := math.Exp(-float64(now.Sub(entry.Timestamp)) / float64(RecencyTau))
		severity := entry.Level.SeverityScore()
		semantic := float64(r.Similarity)
		rank := WeightSemantic*semantic + WeightRecency*recency + WeightSeverity*severity
		ranked = append(ranked, RankedLog{Entry: entry, Semantic: semantic, Recency: recency, Severity: severity, Rank: rank})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rank != ranked[j].Rank {
			return ranked[i].Rank > ranked[j].Rank
		}
		if !ranked[i].Entry.Timestamp.Equal(ranked[j].Entry.Timestamp) {
			return ranked[i].Entry.Timestamp.After(ranked[j].Entry.Timestamp)
		}
		return ranked[i].Entry.ID < ranked[j].Entry.ID
	})

	if len(ranked) > KCtx {
		ranked = ranked[:KCtx]
	}
	return ranked
}
