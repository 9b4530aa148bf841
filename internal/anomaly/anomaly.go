// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package anomaly is the C8 periodic anomaly scan: per (service, level) pair,
// compares a current 5-minute window against a trailing baseline and applies
// the ErrorSpike/VolumeDrop rules.
package anomaly

import (
	"time"

	"github.com/stratum-io/stratum/internal/logtypes"
)

// ScanInterval is how often the scheduler fires (§4.8).
const ScanInterval = 60 * time.Second

// WindowSize is the width of the current and each baseline bucket.
const WindowSize = 5 * time.Minute

// BaselineWindows is the number of preceding non-overlapping windows
// averaged into the baseline.
const BaselineWindows = 12

// LookbackWindow bounds which (service, level) pairs are scanned: those
// seen in the last 24h.
const LookbackWindow = 24 * time.Hour

// OutlierSigma excludes baseline windows more than this many standard
// deviations from the mean before averaging.
const OutlierSigma = 3.0

// Rule identifies which anomaly rule fired.
type Rule string

const (
	RuleErrorSpike Rule = "error_spike"
	RuleVolumeDrop Rule = "volume_drop"
	RuleNewPattern Rule = "new_pattern" // reserved; not implemented in v1
)

// Severity classifies how far an anomaly deviates from baseline.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly is one detected (service, level, rule) finding.
type Anomaly struct {
	Service  string
	Level    logtypes.Level
	Rule     Rule
	Severity Severity
	Current  float64
	Baseline float64
}

// Snapshot is the cached result of the most recent scan, exposed by C9.
type Snapshot struct {
	CheckedAt time.Time
	Anomalies []Anomaly
}
