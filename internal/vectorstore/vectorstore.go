// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vectorstore is the C5 adapter over the vector database: a single
// collection (CollectionName) holding one point per embedded log entry.
package vectorstore

import (
	"context"
	"time"
)

// CollectionName is the Weaviate class §6.5 fixes for log points.
const CollectionName = "LogPoint"

// Point mirrors §3.1's VectorPoint entity.
type Point struct {
	ID        string
	Vector    []float32
	Service   string
	Level     string
	Message   string
	Timestamp time.Time
	TraceID   string
	LogID     string
}

// SearchResult pairs a point with its similarity score.
type SearchResult struct {
	Point      Point
	Similarity float32 // 1 - cosine distance
}

// SearchFilter narrows a nearest-neighbor search, per §4.7's progressive
// filter-loosening retrieval step.
type SearchFilter struct {
	Service string
	Level   string
	Since   time.Time
	Limit   int
}

// Store is the C5 adapter contract (§4.6): bootstrap, upsert, search.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error)
}

// UpsertTimeout and SearchTimeout bound single calls; WeaviateStore derives
// a context with these inside Upsert and Search.
const (
	UpsertTimeout = 10 * time.Second
	SearchTimeout = 10 * time.Second
)
