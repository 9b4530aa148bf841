// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package anomaly

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratum-io/stratum/internal/columnar"
)

func TestScheduler_RunNowCachesSnapshot(t *testing.T) {
	store := columnar.NewFakeStore()
	s := NewScheduler(store, nil, nil)

	snapshot, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.CheckedAt.IsZero())
	assert.Equal(t, snapshot, s.Latest())
}

func TestScheduler_StartThenStopIsIdempotent(t *testing.T) {
	store := columnar.NewFakeStore()
	s := NewScheduler(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	require.Error(t, s.Start(ctx))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
