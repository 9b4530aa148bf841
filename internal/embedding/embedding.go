// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package embedding defines the text-embedding adapter contract (C6) and
// its Ollama/OpenAI implementations. Both produce Dim-dimensional vectors
// so the vector store's schema stays provider-agnostic.
package embedding

import (
	"context"
	"time"
)

// Dim is the fixed embedding dimensionality the vector store's "logs"
// collection is bootstrapped with (§6.5).
const Dim = 384

// BatchTimeout bounds a single mini-batch embed call (§5).
const BatchTimeout = 15 * time.Second

// MaxBatch is the largest mini-batch the worker will dispatch at once (§5).
const MaxBatch = 64

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
