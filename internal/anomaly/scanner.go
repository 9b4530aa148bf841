// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package anomaly

import (
	"context"
	"fmt"
	"math"

	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/logtypes"
)

// Scan implements §4.8's per-(service, level) scan: fetch the current window
// plus BaselineWindows preceding windows from the columnar store, then apply
// the ErrorSpike/VolumeDrop rules.
func Scan(ctx context.Context, store columnar.Store) (Snapshot, error) {
	total := WindowSize * (BaselineWindows + 1)
	buckets, err := store.VolumeByServiceLevel(ctx, total, WindowSize)
	if err != nil {
		return Snapshot{}, fmt.Errorf("anomaly: volume query: %w", err)
	}

	grouped := groupByServiceLevel(buckets)

	var anomalies []Anomaly
	for key, series := range grouped {
		if len(series) == 0 {
			continue
		}
		current, baselineSeries := splitCurrentAndBaseline(series)
		baseline := robustMean(baselineSeries)

		if a, ok := errorSpike(key.service, key.level, current, baseline); ok {
			anomalies = append(anomalies, a)
		}
		if a, ok := volumeDrop(key.service, key.level, current, baseline); ok {
			anomalies = append(anomalies, a)
		}
	}

	return Snapshot{Anomalies: anomalies}, nil
}

type seriesKey struct {
	service string
	level   logtypes.Level
}

// groupByServiceLevel buckets VolumeBucket rows by (service, level), each
// series sorted most-recent-first by bucket time.
func groupByServiceLevel(buckets []columnar.VolumeBucket) map[seriesKey][]int64 {
	grouped := make(map[seriesKey][]int64)
	byKeyByTime := make(map[seriesKey]map[int64]int64)

	for _, b := range buckets {
		key := seriesKey{service: b.Service, level: b.Level}
		if byKeyByTime[key] == nil {
			byKeyByTime[key] = make(map[int64]int64)
		}
		byKeyByTime[key][b.BucketAt.Unix()] = b.Count
	}

	for key, byTime := range byKeyByTime {
		times := make([]int64, 0, len(byTime))
		for t := range byTime {
			times = append(times, t)
		}
		// descending: most recent first
		for i := 0; i < len(times); i++ {
			for j := i + 1; j < len(times); j++ {
				if times[j] > times[i] {
					times[i], times[j] = times[j], times[i]
				}
			}
		}
		series := make([]int64, len(times))
		for i, t := range times {
			series[i] = byTime[t]
		}
		grouped[key] = series
	}
	return grouped
}

// splitCurrentAndBaseline treats the most recent window as current and the
// remainder (up to BaselineWindows) as the baseline series.
func splitCurrentAndBaseline(series []int64) (current float64, baseline []float64) {
	current = float64(series[0])
	rest := series[1:]
	if len(rest) > BaselineWindows {
		rest = rest[:BaselineWindows]
	}
	baseline = make([]float64, len(rest))
	for i, v := range rest {
		baseline[i] = float64(v)
	}
	return current, baseline
}

// robustMean excludes values more than OutlierSigma standard deviations from
// the mean before averaging, per §4.8.
func robustMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, stddev := meanAndStddev(values)
	if stddev == 0 {
		return mean
	}

	var kept []float64
	for _, v := range values {
		if math.Abs(v-mean) <= OutlierSigma*stddev {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return mean
	}
	m, _ := meanAndStddev(kept)
	return m
}

func meanAndStddev(values []float64) (mean, stddev float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// errorSpike implements the ErrorSpike rule (§4.8).
func errorSpike(service string, level logtypes.Level, current, baseline float64) (Anomaly, bool) {
	if level != logtypes.LevelError {
		return Anomaly{}, false
	}
	threshold := math.Max(5, 5*baseline)
	if current < threshold {
		return Anomaly{}, false
	}

	severity := SeverityMedium
	switch {
	case current >= 20*math.Max(baseline, 1):
		severity = SeverityCritical
	case current >= 10*math.Max(baseline, 1):
		severity = SeverityHigh
	}

	return Anomaly{Service: service, Level: level, Rule: RuleErrorSpike, Severity: severity, Current: current, Baseline: baseline}, true
}

// volumeDrop implements the VolumeDrop rule (§4.8).
func volumeDrop(service string, level logtypes.Level, current, baseline float64) (Anomaly, bool) {
	if baseline < 100 {
		return Anomaly{}, false
	}
	if current > 0.1*baseline {
		return Anomaly{}, false
	}
	return Anomaly{Service: service, Level: level, Rule: RuleVolumeDrop, Severity: SeverityMedium, Current: current, Baseline: baseline}, true
}
