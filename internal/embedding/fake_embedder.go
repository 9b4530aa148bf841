// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embedding

import (
	"context"
	"errors"
)

// FakeEmbedder is a deterministic Embedder used by tests: each text maps to
// a vector derived from its byte length, or an injected error.
type FakeEmbedder struct {
	Err error
}

func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{}
}

func (f *FakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, Dim)
		vec[0] = float32(len(text))
		out[i] = vec
	}
	return out, nil
}

var ErrFakeEmbedderFailure = errors.New("fake embedder: induced failure")

var _ Embedder = (*FakeEmbedder)(nil)
