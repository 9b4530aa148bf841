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
	"time"

	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

// retrieve implements §4.7 steps 2-3: vector search with progressive filter
// loosening (drop level, then service, then time), followed by columnar
// hydration of the surviving ids.
func retrieve(ctx context.Context, store vectorstore.Store, columnarStore columnar.Store, queryVector []float32, analysis QueryAnalysis) ([]vectorstore.SearchResult, []logtypes.LogEntry, error) {
	filter := vectorstore.SearchFilter{
		Service: analysis.ServiceHint,
		Level:   analysis.LevelHint,
		Since:   analysis.Since,
		Limit:   RetrievalK,
	}

	results, err := store.Search(ctx, queryVector, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("rag: retrieval: %w", err)
	}

	if len(results) < MinHits && filter.Level != "" {
		filter.Level = ""
		results, err = store.Search(ctx, queryVector, filter)
		if err != nil {
			return nil, nil, fmt.Errorf("rag: retrieval (level loosened): %w", err)
		}
	}
	if len(results) < MinHits && filter.Service != "" {
		filter.Service = ""
		results, err = store.Search(ctx, queryVector, filter)
		if err != nil {
			return nil, nil, fmt.Errorf("rag: retrieval (service loosened): %w", err)
		}
	}
	if len(results) < MinHits && !filter.Since.IsZero() {
		filter.Since = time.Time{}
		results, err = store.Search(ctx, queryVector, filter)
		if err != nil {
			return nil, nil, fmt.Errorf("rag: retrieval (time loosened): %w", err)
		}
	}

	if len(results) == 0 {
		return results, nil, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Point.LogID
	}
	entries, err := columnarStore.ByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("rag: hydration: %w", err)
	}
	return results, entries, nil
}
