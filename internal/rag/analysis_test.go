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
)

func TestAnalyzeQuery_ClassifiesIntent(t *testing.T) {
	now := time.Now()
	cases := []struct {
		message string
		want    Intent
	}{
		{"why did the payment service fail?", IntentExplainRootCause},
		{"summarize errors from today", IntentSummarize},
		{"how many errors happened", IntentCount},
		{"and what about warnings", IntentFollowUp},
		{"show me the recent logs", IntentFilterList},
		{"hello there", IntentOther},
	}
	for _, tc := range cases {
		got := AnalyzeQuery(tc.message, nil, now)
		assert.Equal(t, tc.want, got.Intent, tc.message)
	}
}

func TestAnalyzeQuery_ExtractsServiceAndLevelHints(t *testing.T) {
	analysis := AnalyzeQuery("show error logs from checkout-api", []string{"checkout-api", "billing"}, time.Now())
	assert.Equal(t, "checkout-api", analysis.ServiceHint)
	assert.Equal(t, "error", analysis.LevelHint)
}

func TestAnalyzeQuery_ExtractsRelativeTimeWindow(t *testing.T) {
	now := time.Now()
	analysis := AnalyzeQuery("what happened in the last 2 hours", nil, now)
	assert.WithinDuration(t, now.Add(-2*time.Hour), analysis.Since, time.Second)
	assert.WithinDuration(t, now, analysis.Until, time.Second)
}

func TestAnalyzeQuery_ExtractsAtClockTimeWindow(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	analysis := AnalyzeQuery("what errors happened at 3am", nil, now)
	want := time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)
	assert.True(t, analysis.Since.Equal(want), "since=%s want=%s", analysis.Since, want)
	assert.True(t, analysis.Until.Equal(want.Add(time.Hour)))
}

func TestAnalyzeQuery_ExtractsBetweenClockTimeWindow(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	analysis := AnalyzeQuery("show logs between 2am and 4:30am", nil, now)
	wantSince := time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC)
	wantUntil := time.Date(2026, 3, 5, 4, 30, 0, 0, time.UTC)
	assert.True(t, analysis.Since.Equal(wantSince))
	assert.True(t, analysis.Until.Equal(wantUntil))
}

func TestAnalyzeQuery_StripsFillerWords(t *testing.T) {
	analysis := AnalyzeQuery("please show me the errors", nil, time.Now())
	assert.NotContains(t, analysis.CleanedQuery, "please")
	assert.Contains(t, analysis.CleanedQuery, "errors")
}
