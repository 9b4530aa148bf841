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
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/pkg/validation"
)

// InfluxStore is the Store backed by InfluxDB v2. InfluxDB has no CREATE
// TABLE step; bootstrap only confirms the target bucket is reachable.
type InfluxStore struct {
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

func NewInfluxStore(client influxdb2.Client, org, bucket string) *InfluxStore {
	return &InfluxStore{
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
		bucket:   bucket,
	}
}

// WaitReady polls the InfluxDB health endpoint until it reports "pass" or
// attempts are exhausted, mirroring the source project's retry-loop
// bootstrap for a dependency that starts asynchronously in compose/k8s.
func WaitReady(ctx context.Context, client influxdb2.Client, attempts int, delay time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		health, err := client.Health(ctx)
		if err == nil && health != nil && health.Status == "pass" {
			return nil
		}
		if err != nil {
			lastErr = err
		} else if health != nil && health.Message != nil {
			lastErr = fmt.Errorf("influxdb health: %s", *health.Message)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("columnar: influxdb not ready after %d attempts: %w", attempts, lastErr)
}

func (s *InfluxStore) Insert(ctx context.Context, entries []logtypes.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	points := make([]*write.Point, len(entries))
	for i, e := range entries {
		fieldsJSON, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("columnar: marshal fields for %s: %w", e.ID, err)
		}
		byteSize := int64(len(e.ID) + len(e.Message) + len(e.SourceFile) + len(e.TraceID) + len(fieldsJSON))
		points[i] = influxdb2.NewPoint(
			Measurement,
			map[string]string{
				"service":        e.Service,
				"level":          e.Level.String(),
				"error_category": string(e.ErrorCategory),
				"trace_id":       e.TraceID,
			},
			map[string]interface{}{
				"id":             e.ID,
				"message":        e.Message,
				"source_file":    e.SourceFile,
				"source_line":    e.SourceLine,
				"fields":         string(fieldsJSON),
				"ingested_at_ns": e.IngestedAt.UnixNano(),
				"embedded":       e.Embedded,
				"byte_size":      byteSize,
			},
			e.Timestamp,
		)
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("columnar: write batch: %w", err)
	}
	return nil
}

func (s *InfluxStore) Recent(ctx context.Context, filter RecentFilter) ([]logtypes.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, `from(bucket: "%s") |> range(start: -30d) |> filter(fn: (r) => r._measurement == "%s")`,
		s.bucket, Measurement)

	if filter.Service != "" {
		service, err := validation.SanitizeService(filter.Service)
		if err != nil {
			return nil, fmt.Errorf("columnar: recent: %w", err)
		}
		fmt.Fprintf(&b, ` |> filter(fn: (r) => r.service == "%s")`, service)
	}
	if filter.Level != "" {
		level, err := validation.SanitizeLevel(filter.Level)
		if err != nil {
			return nil, fmt.Errorf("columnar: recent: %w", err)
		}
		fmt.Fprintf(&b, ` |> filter(fn: (r) => r.level == "%s")`, level)
	}
	b.WriteString(` |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`)
	fmt.Fprintf(&b, ` |> sort(columns: ["_time"], desc: true) |> limit(n: %d)`, limit)

	result, err := s.queryAPI.Query(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("columnar: recent query: %w", err)
	}
	return collectEntries(result)
}

func (s *InfluxStore) ByIDs(ctx context.Context, ids []string) ([]logtypes.LogEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	quoted := make([]string, len(ids))
	for i, id := range ids {
		if err := validation.ValidateLogID(id); err != nil {
			return nil, fmt.Errorf("columnar: by_ids: %w", err)
		}
		quoted[i] = fmt.Sprintf(`r.id == "%s"`, id)
	}

	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -365d)
		|> filter(fn: (r) => r._measurement == "%s")
		|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
		|> filter(fn: (r) => %s)
	`, s.bucket, Measurement, strings.Join(quoted, " or "))

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("columnar: by_ids query: %w", err)
	}
	return collectEntries(result)
}

func (s *InfluxStore) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	var stats Stats
	totalQuery := fmt.Sprintf(`
		from(bucket: "%s") |> range(start: -365d)
		|> filter(fn: (r) => r._measurement == "%s" and r._field == "id")
		|> count()
	`, s.bucket, Measurement)
	total, err := s.queryScalar(ctx, totalQuery)
	if err != nil {
		return Stats{}, fmt.Errorf("columnar: stats total: %w", err)
	}
	stats.TotalCount = total

	last24h := fmt.Sprintf(`
		from(bucket: "%s") |> range(start: -24h)
		|> filter(fn: (r) => r._measurement == "%s" and r._field == "id")
		|> count()
	`, s.bucket, Measurement)
	count24h, err := s.queryScalar(ctx, last24h)
	if err != nil {
		return Stats{}, fmt.Errorf("columnar: stats 24h: %w", err)
	}
	stats.Last24hCount = count24h

	errCount := fmt.Sprintf(`
		from(bucket: "%s") |> range(start: -365d)
		|> filter(fn: (r) => r._measurement == "%s" and r._field == "id" and (r.level == "error" or r.level == "fatal"))
		|> count()
	`, s.bucket, Measurement)
	errs, err := s.queryScalar(ctx, errCount)
	if err != nil {
		return Stats{}, fmt.Errorf("columnar: stats errors: %w", err)
	}
	stats.ErrorCount = errs

	embeddedCount := fmt.Sprintf(`
		from(bucket: "%s") |> range(start: -365d)
		|> filter(fn: (r) => r._measurement == "%s" and r._field == "embedded" and r._value == true)
		|> count()
	`, s.bucket, Measurement)
	embedded, err := s.queryScalar(ctx, embeddedCount)
	if err != nil {
		return Stats{}, fmt.Errorf("columnar: stats embedded: %w", err)
	}
	stats.EmbeddedCount = embedded

	storageBytes := fmt.Sprintf(`
		from(bucket: "%s") |> range(start: -365d)
		|> filter(fn: (r) => r._measurement == "%s" and r._field == "byte_size")
		|> sum()
	`, s.bucket, Measurement)
	bytes, err := s.queryScalar(ctx, storageBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("columnar: stats storage bytes: %w", err)
	}
	stats.StorageBytes = bytes

	services, err := s.Services(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("columnar: stats services: %w", err)
	}
	stats.DistinctServices = int64(len(services))

	return stats, nil
}

func (s *InfluxStore) Services(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		from(bucket: "%s") |> range(start: -7d)
		|> filter(fn: (r) => r._measurement == "%s")
		|> keep(columns: ["service"])
		|> group()
		|> distinct(column: "service")
	`, s.bucket, Measurement)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("columnar: services query: %w", err)
	}

	var services []string
	for result.Next() {
		if v, ok := result.Record().Value().(string); ok && v != "" {
			services = append(services, v)
		}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("columnar: services result: %w", result.Err())
	}
	return services, nil
}

func (s *InfluxStore) VolumeByServiceLevel(ctx context.Context, window, bucket time.Duration) ([]VolumeBucket, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%ds)
		|> filter(fn: (r) => r._measurement == "%s" and r._field == "id")
		|> group(columns: ["service", "level"])
		|> aggregateWindow(every: %ds, fn: count, createEmpty: true)
	`, s.bucket, int64(window.Seconds()), Measurement, int64(bucket.Seconds()))

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("columnar: volume query: %w", err)
	}

	var out []VolumeBucket
	for result.Next() {
		r := result.Record()
		count, _ := r.Value().(int64)
		service, _ := r.ValueByKey("service").(string)
		levelStr, _ := r.ValueByKey("level").(string)
		out = append(out, VolumeBucket{
			Service:  service,
			Level:    logtypes.ParseLevel(levelStr),
			BucketAt: r.Time(),
			Count:    count,
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("columnar: volume result: %w", result.Err())
	}
	return out, nil
}

func (s *InfluxStore) queryScalar(ctx context.Context, query string) (int64, error) {
	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	if result.Next() {
		switch v := result.Record().Value().(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		}
	}
	return 0, result.Err()
}

func collectEntries(result *api.QueryTableResult) ([]logtypes.LogEntry, error) {
	var entries []logtypes.LogEntry
	for result.Next() {
		r := result.Record()
		entry := logtypes.LogEntry{
			Timestamp:     r.Time(),
			Service:       asString(r.ValueByKey("service")),
			Level:         logtypes.ParseLevel(asString(r.ValueByKey("level"))),
			ErrorCategory: logtypes.ErrorCategory(asString(r.ValueByKey("error_category"))),
			TraceID:       asString(r.ValueByKey("trace_id")),
			ID:            asString(r.ValueByKey("id")),
			Message:       asString(r.ValueByKey("message")),
			SourceFile:    asString(r.ValueByKey("source_file")),
		}
		if line, ok := r.ValueByKey("source_line").(int64); ok {
			entry.SourceLine = int(line)
		}
		if fieldsJSON := asString(r.ValueByKey("fields")); fieldsJSON != "" {
			_ = json.Unmarshal([]byte(fieldsJSON), &entry.Fields)
		}
		if ns, ok := r.ValueByKey("ingested_at_ns").(int64); ok {
			entry.IngestedAt = time.Unix(0, ns)
		}
		if embedded, ok := r.ValueByKey("embedded").(bool); ok {
			entry.Embedded = embedded
		}
		entries = append(entries, entry)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("columnar: scan rows: %w", result.Err())
	}
	return entries, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

var _ Store = (*InfluxStore)(nil)
