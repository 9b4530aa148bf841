// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logtypes defines the canonical LogEntry model and the format parsers
// (JSON, Apache, Nginx, Syslog) that turn raw log lines into LogEntry values.
package logtypes

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level is the log severity enum.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "info"
	}
}

// ParseLevel parses a level string case-insensitively, defaulting to LevelInfo
// for anything unrecognized.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info", "information", "notice":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error", "err":
		return LevelError
	case "fatal", "critical", "crit", "emergency", "alert", "panic":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// SeverityScore maps a level to the [0,1] weight used by the RAG reranker (§4.7).
func (l Level) SeverityScore() float64 {
	switch l {
	case LevelFatal:
		return 1.0
	case LevelError:
		return 0.8
	case LevelWarn:
		return 0.5
	case LevelInfo:
		return 0.2
	case LevelDebug:
		return 0.1
	case LevelTrace:
		return 0.05
	default:
		return 0.2
	}
}

// ErrorCategory classifies an error-bearing log message by keyword heuristics.
type ErrorCategory string

const (
	CategoryNone     ErrorCategory = "none"
	CategoryNetwork  ErrorCategory = "network"
	CategoryDatabase ErrorCategory = "database"
	CategoryAuth     ErrorCategory = "auth"
	CategoryTimeout  ErrorCategory = "timeout"
	CategoryResource ErrorCategory = "resource"
	CategoryLogic    ErrorCategory = "logic"
	CategoryExternal ErrorCategory = "external"
)

// categoryRules is applied in fixed precedence order: the first rule whose keywords
// match wins. Order matters — e.g. "connection refused" (Network) is checked before
// the catch-all Logic fallback.
var categoryRules = []struct {
	category ErrorCategory
	keywords []string
}{
	{CategoryTimeout, []string{"timeout", "timed out"}},
	{CategoryNetwork, []string{"connection refused", "unreachable", "reset"}},
	{CategoryDatabase, []string{"sql", "postgres", "mysql", "deadlock"}},
	{CategoryAuth, []string{"unauthorized", "forbidden", "invalid token"}},
	{CategoryResource, []string{"out of memory", "disk full"}},
	{CategoryExternal, []string{"upstream", "third-party"}},
}

// Categorize applies the fixed-precedence keyword rules from §4.1 to a parsed
// message and level.
func Categorize(message string, level Level) ErrorCategory {
	lower := strings.ToLower(message)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	if level >= LevelError {
		return CategoryLogic
	}
	return CategoryNone
}

// LogEntry is the canonical record after enrichment (§3.1).
type LogEntry struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Level         Level          `json:"level"`
	Service       string         `json:"service"`
	Message       string         `json:"message"`
	TraceID       string         `json:"trace_id,omitempty"`
	SourceFile    string         `json:"source_file,omitempty"`
	SourceLine    int            `json:"source_line,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	ErrorCategory ErrorCategory  `json:"error_category"`
	IngestedAt    time.Time      `json:"ingested_at"`
	Embedded      bool           `json:"embedded"`
}

// ClockSkewTolerance bounds how far a client-supplied timestamp may run ahead
// of ingestion before it is clamped; past timestamps are kept as given (§3.2).
const ClockSkewTolerance = 5 * time.Minute

// ClampedTimestampField is the Fields key the ingestion handler sets to true
// when EnsureDefaults clamps a future-skewed timestamp to ingested_at, so the
// clamp is observable on the persisted entry (§3.2).
const ClampedTimestampField = "_clamped_timestamp"

// EnsureDefaults fills in id, ingested_at, service, timestamp clamping, and
// error categorization for a LogEntry built from partial client or parser input;
// Level is left as given.
// now is injected so ingestion is deterministic and testable.
func (e *LogEntry) EnsureDefaults(now time.Time) (clamped bool) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Service == "" {
		e.Service = "unknown"
	}
	e.IngestedAt = now
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	} else if e.Timestamp.After(now.Add(ClockSkewTolerance)) {
		e.Timestamp = now
		clamped = true
	}
	e.ErrorCategory = Categorize(e.Message, e.Level)
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	return clamped
}
