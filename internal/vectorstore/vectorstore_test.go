// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeStore_UpsertThenSearchRanksBySimilarity(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Service: "api", Message: "exact match"},
		{ID: "b", Vector: []float32{0, 1, 0}, Service: "api", Message: "orthogonal"},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Service: "api", Message: "close match"},
	}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, SearchFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Point.ID)
	assert.Equal(t, "c", results[1].Point.ID)
	assert.Equal(t, "b", results[2].Point.ID)
	assert.InDelta(t, float32(1.0), results[0].Similarity, 0.0001)
}

func TestFakeStore_SearchFiltersByServiceAndSince(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Upsert(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0}, Service: "api", Timestamp: now.Add(-time.Hour)},
		{ID: "b", Vector: []float32{1, 0}, Service: "worker", Timestamp: now},
		{ID: "c", Vector: []float32{1, 0}, Service: "api", Timestamp: now},
	}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchFilter{Service: "api", Since: now.Add(-time.Minute)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].Point.ID)
}

func TestFakeStore_SearchRespectsLimit(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "c", Vector: []float32{1, 0}},
	}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFakeStore_UpsertIsIdempotentByID(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []Point{{ID: "a", Message: "first"}}))
	require.NoError(t, s.Upsert(ctx, []Point{{ID: "a", Message: "second"}}))

	results, err := s.Search(ctx, []float32{}, SearchFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results[0].Point.Message)
}

func TestCosineSimilarity_MismatchedOrEmptyVectorsReturnZero(t *testing.T) {
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Equal(t, float32(0), cosineSimilarity(nil, nil))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
