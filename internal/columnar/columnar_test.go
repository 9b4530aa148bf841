// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package columnar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratum-io/stratum/internal/logtypes"
)

func TestFakeStore_RecentOrdersDescendingAndRespectsLimit(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, []logtypes.LogEntry{
		{ID: "a", Service: "api", Level: logtypes.LevelInfo, Timestamp: now.Add(-2 * time.Minute)},
		{ID: "b", Service: "api", Level: logtypes.LevelInfo, Timestamp: now},
		{ID: "c", Service: "api", Level: logtypes.LevelInfo, Timestamp: now.Add(-1 * time.Minute)},
	}))

	entries, err := s.Recent(ctx, RecentFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "c", entries[1].ID)
}

func TestFakeStore_RecentFiltersByServiceAndLevel(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, []logtypes.LogEntry{
		{ID: "a", Service: "api", Level: logtypes.LevelError, Timestamp: now},
		{ID: "b", Service: "worker", Level: logtypes.LevelError, Timestamp: now},
		{ID: "c", Service: "api", Level: logtypes.LevelInfo, Timestamp: now},
	}))

	entries, err := s.Recent(ctx, RecentFilter{Service: "api", Level: "error"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}

func TestFakeStore_ByIDsReturnsOnlyRequested(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []logtypes.LogEntry{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}))

	entries, err := s.ByIDs(ctx, []string{"a", "c", "missing"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.ID] = true
	}
	assert.True(t, ids["a"])
	assert.True(t, ids["c"])
}

func TestFakeStore_StatsCountsErrorsAndServices(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, []logtypes.LogEntry{
		{ID: "a", Service: "api", Level: logtypes.LevelError, Timestamp: now, Embedded: true},
		{ID: "b", Service: "worker", Level: logtypes.LevelInfo, Timestamp: now.Add(-48 * time.Hour)},
		{ID: "c", Service: "api", Level: logtypes.LevelFatal, Timestamp: now},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(2), stats.Last24hCount)
	assert.Equal(t, int64(2), stats.ErrorCount)
	assert.Equal(t, int64(2), stats.DistinctServices)
	assert.Equal(t, int64(1), stats.EmbeddedCount)
}

func TestFakeStore_ServicesExcludesStaleAndEmpty(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, []logtypes.LogEntry{
		{ID: "a", Service: "api", Timestamp: now},
		{ID: "b", Service: "", Timestamp: now},
		{ID: "c", Service: "stale", Timestamp: now.Add(-8 * 24 * time.Hour)},
	}))

	services, err := s.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, services)
}
