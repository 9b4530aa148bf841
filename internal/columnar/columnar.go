// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package columnar is the C4 adapter over the columnar analytic store: bulk
// insert plus the fixed set of parametric queries the RAG and anomaly
// engines need (recent, by-ids, stats, services, volume histograms).
package columnar

import (
	"context"
	"time"

	"github.com/stratum-io/stratum/internal/logtypes"
)

// Measurement is the single InfluxDB measurement all LogEntry points live
// under (§6.4).
const Measurement = "logs"

// QueryTimeout bounds every Store call per the five named boundaries.
const QueryTimeout = 10 * time.Second

// Stats is the aggregate snapshot backing GET /api/stats.
type Stats struct {
	TotalCount      int64
	Last24hCount    int64
	ErrorCount      int64
	DistinctServices int64
	EmbeddedCount   int64
	StorageBytes    int64
}

// VolumeBucket is one point of a volume-over-time histogram.
type VolumeBucket struct {
	Service   string
	Level     logtypes.Level
	BucketAt  time.Time
	Count     int64
}

// RecentFilter narrows a reverse-chronological scan.
type RecentFilter struct {
	Limit   int
	Service string
	Level   string
}

// Store is the C4 adapter contract.
type Store interface {
	Insert(ctx context.Context, entries []logtypes.LogEntry) error
	Recent(ctx context.Context, filter RecentFilter) ([]logtypes.LogEntry, error)
	ByIDs(ctx context.Context, ids []string) ([]logtypes.LogEntry, error)
	Stats(ctx context.Context) (Stats, error)
	Services(ctx context.Context) ([]string, error)
	VolumeByServiceLevel(ctx context.Context, window time.Duration, bucket time.Duration) ([]VolumeBucket, error)
}
