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
)

func TestShouldBuildCausalChain_TriggersOnIntentOrTopSeverity(t *testing.T) {
	ranked := []RankedLog{{Entry: logtypes.LogEntry{Level: logtypes.LevelError}}}
	assert.True(t, shouldBuildCausalChain(IntentOther, ranked))
	assert.True(t, shouldBuildCausalChain(IntentExplainRootCause, nil))

	infoRanked := []RankedLog{{Entry: logtypes.LogEntry{Level: logtypes.LevelInfo}}}
	assert.False(t, shouldBuildCausalChain(IntentOther, infoRanked))
}

func TestBuildCausalChain_LinksWithinWindowAndSameTrace(t *testing.T) {
	now := time.Now()
	effect := logtypes.LogEntry{ID: "effect", Level: logtypes.LevelFatal, Timestamp: now, TraceID: "t1", Service: "api"}
	cause := logtypes.LogEntry{ID: "cause", Level: logtypes.LevelWarn, Timestamp: now.Add(-2 * time.Minute), TraceID: "t1", Service: "api"}
	tooOld := logtypes.LogEntry{ID: "too-old", Level: logtypes.LevelWarn, Timestamp: now.Add(-20 * time.Minute), TraceID: "t1", Service: "api"}

	ranked := []RankedLog{
		{Entry: effect, Semantic: 0.9},
		{Entry: cause, Semantic: 0.6},
		{Entry: tooOld, Semantic: 0.6},
	}

	chain := buildCausalChain(ranked)
	require.NotNil(t, chain)
	assert.Equal(t, "effect", chain.Effect.ID)
	require.Len(t, chain.Chain, 1)
	assert.Equal(t, "cause", chain.Chain[0].Cause.ID)
	require.NotNil(t, chain.RootCause)
	assert.Equal(t, "cause", chain.RootCause.ID)
}

func TestBuildCausalChain_ReturnsNilWithoutErrorOrFatal(t *testing.T) {
	ranked := []RankedLog{{Entry: logtypes.LogEntry{ID: "a", Level: logtypes.LevelInfo}}}
	assert.Nil(t, buildCausalChain(ranked))
}
