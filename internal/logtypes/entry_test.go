// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logtypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategorize_FixedPrecedence(t *testing.T) {
	cases := []struct {
		message string
		level   Level
		want    ErrorCategory
	}{
		{"request timed out after 30s", LevelError, CategoryTimeout},
		{"connection refused to 10.0.0.1:5432", LevelError, CategoryNetwork},
		{"postgres deadlock detected", LevelError, CategoryDatabase},
		{"unauthorized access attempt", LevelError, CategoryAuth},
		{"out of memory killing process", LevelError, CategoryResource},
		{"upstream service unavailable", LevelError, CategoryExternal},
		{"unexpected nil pointer", LevelError, CategoryLogic},
		{"user logged in", LevelInfo, CategoryNone},
	}
	for _, c := range cases {
		got := Categorize(c.message, c.level)
		assert.Equal(t, c.want, got, c.message)
	}
}

func TestEnsureDefaults_AssignsIDAndTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &LogEntry{Message: "hi"}
	clamped := e.EnsureDefaults(now)

	assert.False(t, clamped)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "unknown", e.Service)
	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, now, e.IngestedAt)
}

func TestEnsureDefaults_ClampsFarFutureTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &LogEntry{Message: "hi", Timestamp: now.AddDate(10, 0, 0)}
	clamped := e.EnsureDefaults(now)

	assert.True(t, clamped)
	assert.Equal(t, now, e.Timestamp)
}

func TestEnsureDefaults_WithinSkewToleranceNotClamped(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(2 * time.Minute)
	e := &LogEntry{Message: "hi", Timestamp: future}
	clamped := e.EnsureDefaults(now)

	assert.False(t, clamped)
	assert.Equal(t, future, e.Timestamp)
}
