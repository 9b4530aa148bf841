// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// FakeStore is an in-process Store used by tests: brute-force cosine search
// over whatever has been upserted.
type FakeStore struct {
	mu     sync.Mutex
	points map[string]Point
}

func NewFakeStore() *FakeStore {
	return &FakeStore{points: map[string]Point{}}
}

func (s *FakeStore) EnsureCollection(ctx context.Context) error { return nil }

func (s *FakeStore) Upsert(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

func (s *FakeStore) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var results []SearchResult
	for _, p := range s.points {
		if filter.Service != "" && p.Service != filter.Service {
			continue
		}
		if filter.Level != "" && p.Level != filter.Level {
			continue
		}
		if !filter.Since.IsZero() && p.Timestamp.Before(filter.Since) {
			continue
		}
		results = append(results, SearchResult{Point: p, Similarity: cosineSimilarity(vector, p.Vector)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ Store = (*FakeStore)(nil)
