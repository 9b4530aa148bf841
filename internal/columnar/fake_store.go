// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package columnar

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/stratum-io/stratum/internal/logtypes"
)

// FakeStore is an in-process Store used by tests: holds entries in a slice
// and answers queries by linear scan.
type FakeStore struct {
	mu      sync.Mutex
	entries []logtypes.LogEntry
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Insert upserts by id, mirroring the real InfluxDB adapter: a redelivered
// entry writes the same measurement/tag/timestamp point and overwrites the
// prior write rather than appending a duplicate.
func (s *FakeStore) Insert(ctx context.Context, entries []logtypes.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		replaced := false
		for i, existing := range s.entries {
			if existing.ID == e.ID {
				s.entries[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			s.entries = append(s.entries, e)
		}
	}
	return nil
}

func (s *FakeStore) Recent(ctx context.Context, filter RecentFilter) ([]logtypes.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	matched := make([]logtypes.LogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.Service != "" && e.Service != filter.Service {
			continue
		}
		if filter.Level != "" && e.Level.String() != filter.Level {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *FakeStore) ByIDs(ctx context.Context, ids []string) ([]logtypes.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []logtypes.LogEntry
	for _, e := range s.entries {
		if want[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *FakeStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	services := map[string]bool{}
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, e := range s.entries {
		stats.TotalCount++
		if e.Timestamp.After(cutoff) {
			stats.Last24hCount++
		}
		if e.Level == logtypes.LevelError || e.Level == logtypes.LevelFatal {
			stats.ErrorCount++
		}
		if e.Embedded {
			stats.EmbeddedCount++
		}
		fieldsJSON, _ := json.Marshal(e.Fields)
		stats.StorageBytes += int64(len(e.ID) + len(e.Message) + len(e.SourceFile) + len(e.TraceID) + len(fieldsJSON))
		services[e.Service] = true
	}
	stats.DistinctServices = int64(len(services))
	return stats, nil
}

func (s *FakeStore) Services(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	seen := map[string]bool{}
	var out []string
	for _, e := range s.entries {
		if e.Service == "" || e.Timestamp.Before(cutoff) {
			continue
		}
		if !seen[e.Service] {
			seen[e.Service] = true
			out = append(out, e.Service)
		}
	}
	sort.Strings(out)
	return out, nil
}

// VolumeByServiceLevel mirrors the real store's aggregateWindow(createEmpty:
// true) behavior: every (service, level) pair active in the lookback window
// gets one entry per bucket, including zero-count buckets, so a caller
// diffing a "current" bucket against a "baseline" series never mistakes a
// missing bucket for a nonexistent one.
func (s *FakeStore) VolumeByServiceLevel(ctx context.Context, window, bucket time.Duration) ([]VolumeBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	type pairKey struct {
		service string
		level   logtypes.Level
	}
	pairs := map[pairKey]bool{}
	counts := map[pairKey]map[int64]int64{}
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		key := pairKey{service: e.Service, level: e.Level}
		pairs[key] = true
		if counts[key] == nil {
			counts[key] = map[int64]int64{}
		}
		bucketStart := e.Timestamp.Truncate(bucket).Unix()
		counts[key][bucketStart]++
	}

	numBuckets := int(window / bucket)
	nowBucket := now.Truncate(bucket)

	var out []VolumeBucket
	for key := range pairs {
		for i := 0; i < numBuckets; i++ {
			bucketStart := nowBucket.Add(-bucket * time.Duration(i))
			count := counts[key][bucketStart.Unix()]
			out = append(out, VolumeBucket{Service: key.service, Level: key.level, BucketAt: bucketStart, Count: count})
		}
	}
	return out, nil
}

var _ Store = (*FakeStore)(nil)
