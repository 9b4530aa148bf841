// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	rootCausePattern = regexp.MustCompile(`(?i)\b(why|root cause|caused|cause of|explain)\b`)
	summarizePattern = regexp.MustCompile(`(?i)\b(summar|overview|recap)\w*\b`)
	countPattern     = regexp.MustCompile(`(?i)\b(how many|count of|number of)\b`)
	filterPattern    = regexp.MustCompile(`(?i)\b(show|list|find|filter)\b`)
	followUpPattern  = regexp.MustCompile(`(?i)^(and|also|what about|then)\b`)

	levelWords = map[string]string{
		"error":   "error",
		"errors":  "error",
		"warn":    "warn",
		"warning": "warn",
		"warns":   "warn",
		"info":    "info",
		"debug":   "debug",
		"fatal":   "fatal",
	}

	fillerWords = map[string]bool{
		"the": true, "a": true, "an": true, "please": true, "can": true, "you": true,
		"me": true, "show": true, "list": true, "find": true, "what": true, "is": true,
		"are": true, "of": true, "for": true, "to": true,
	}

	relativeTimePattern = regexp.MustCompile(`(?i)last\s+(\d+)?\s*(minute|hour|day)s?`)
	betweenTimePattern  = regexp.MustCompile(`(?i)\bbetween\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s+and\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	atTimePattern       = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// AnalyzeQuery implements §4.7 step 1: intent/service/level/time-window
// extraction and filler-word stripping, purely by regex and keyword rules.
func AnalyzeQuery(message string, knownServices []string, now time.Time) QueryAnalysis {
	analysis := QueryAnalysis{Intent: classifyIntent(message)}

	lower := strings.ToLower(message)
	for _, service := range knownServices {
		if service != "" && strings.Contains(lower, strings.ToLower(service)) {
			analysis.ServiceHint = service
			break
		}
	}

	for word, level := range levelWords {
		if strings.Contains(lower, word) {
			analysis.LevelHint = level
			break
		}
	}

	analysis.Since, analysis.Until = extractTimeWindow(lower, now)
	analysis.CleanedQuery = stripFillerWords(message)
	return analysis
}

func classifyIntent(message string) Intent {
	switch {
	case rootCausePattern.MatchString(message):
		return IntentExplainRootCause
	case summarizePattern.MatchString(message):
		return IntentSummarize
	case countPattern.MatchString(message):
		return IntentCount
	case followUpPattern.MatchString(strings.TrimSpace(message)):
		return IntentFollowUp
	case filterPattern.MatchString(message):
		return IntentFilterList
	default:
		return IntentOther
	}
}

func extractTimeWindow(lower string, now time.Time) (since, until time.Time) {
	switch {
	case strings.Contains(lower, "today"):
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), now
	case strings.Contains(lower, "yesterday"):
		yesterday := now.AddDate(0, 0, -1)
		start := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, now.Location())
		return start, start.Add(24 * time.Hour)
	}

	if m := betweenTimePattern.FindStringSubmatch(lower); m != nil {
		start := clockTimeOn(now, m[1], m[2], m[3])
		end := clockTimeOn(now, m[4], m[5], m[6])
		if end.Before(start) {
			end = end.Add(24 * time.Hour)
		}
		return start, end
	}

	if m := atTimePattern.FindStringSubmatch(lower); m != nil {
		at := clockTimeOn(now, m[1], m[2], m[3])
		if m[2] == "" {
			return at, at.Add(time.Hour)
		}
		return at.Add(-15 * time.Minute), at.Add(15 * time.Minute)
	}

	if m := relativeTimePattern.FindStringSubmatch(lower); m != nil {
		n := 1
		if m[1] != "" {
			if parsed, err := strconv.Atoi(m[1]); err == nil {
				n = parsed
			}
		}
		var unit time.Duration
		switch m[2] {
		case "minute":
			unit = time.Minute
		case "hour":
			unit = time.Hour
		case "day":
			unit = 24 * time.Hour
		}
		return now.Add(-time.Duration(n) * unit), now
	}

	return time.Time{}, time.Time{}
}

// clockTimeOn resolves an "hh[:mm][am|pm]" clock reference to a timestamp on
// base's calendar day, in base's location. A bare hour with no am/pm marker
// is read as-is (24h), matching what strconv.Atoi hands back for "15" in "at
// 15:00".
func clockTimeOn(base time.Time, hourStr, minStr, meridiem string) time.Time {
	hour, _ := strconv.Atoi(hourStr)
	minute := 0
	if minStr != "" {
		minute, _ = strconv.Atoi(minStr)
	}
	switch strings.ToLower(meridiem) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
}

func stripFillerWords(message string) string {
	fields := strings.Fields(message)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if !fillerWords[strings.ToLower(strings.Trim(f, "?.,!"))] {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return message
	}
	return strings.Join(kept, " ")
}
