// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateStore is the C5 Store backed by a single-class Weaviate collection.
type WeaviateStore struct {
	client *weaviate.Client
}

func NewWeaviateStore(client *weaviate.Client) *WeaviateStore {
	return &WeaviateStore{client: client}
}

// EnsureCollection bootstraps the CollectionName schema (§6.5) idempotently: a
// ClassGetter failure is treated as "doesn't exist yet" and triggers
// creation, mirroring the teacher's schema-bootstrap pattern.
func (s *WeaviateStore) EnsureCollection(ctx context.Context) error {
	_, err := s.client.Schema().ClassGetter().WithClassName(CollectionName).Do(ctx)
	if err == nil {
		return nil
	}

	indexFilterable := true
	class := &models.Class{
		Class:       CollectionName,
		Description: "One point per embedded log entry.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "log_id", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &indexFilterable},
			{Name: "service", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &indexFilterable},
			{Name: "level", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &indexFilterable},
			{Name: "message", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "timestamp", DataType: []string{"number"}, IndexFilterable: &indexFilterable},
			{Name: "trace_id", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &indexFilterable},
		},
	}
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("vectorstore: create collection: %w", err)
	}
	return nil
}

// Upsert writes points in a single batch call, idempotent by using the
// LogPoint's own LogID (a deterministic UUID) as the Weaviate object ID so
// re-ingesting the same log entry overwrites rather than duplicates.
func (s *WeaviateStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, UpsertTimeout)
	defer cancel()

	objects := make([]*models.Object, len(points))
	for i, p := range points {
		objects[i] = &models.Object{
			Class:  CollectionName,
			ID:     strfmt.UUID(p.ID),
			Vector: p.Vector,
			Properties: map[string]interface{}{
				"log_id":    p.LogID,
				"service":   p.Service,
				"level":     p.Level,
				"message":   p.Message,
				"timestamp": float64(p.Timestamp.UnixMilli()),
				"trace_id":  p.TraceID,
			},
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: batch upsert: %w", err)
	}
	for _, item := range resp {
		if item.Result == nil || item.Result.Status == nil || *item.Result.Status != "SUCCESS" {
			return fmt.Errorf("vectorstore: batch item failed for object %s", item.ID)
		}
	}
	return nil
}

type logPointResponse struct {
	Get struct {
		LogPoint []struct {
			LogID     string  `json:"log_id"`
			Service   string  `json:"service"`
			Level     string  `json:"level"`
			Message   string  `json:"message"`
			Timestamp float64 `json:"timestamp"`
			TraceID   string  `json:"trace_id"`

			Additional struct {
				ID        string   `json:"id"`
				Certainty *float32 `json:"certainty"`
			} `json:"_additional"`
		} `json:"LogPoint"`
	} `json:"Get"`
}

// Search runs nearest-neighbor search over the embedded vector, optionally
// narrowed by service and a minimum timestamp (§4.7's retrieval step).
func (s *WeaviateStore) Search(ctx context.Context, vector []float32, filter SearchFilter) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var operands []*filters.WhereBuilder
	if filter.Service != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"service"}).WithOperator(filters.Equal).WithValueString(filter.Service))
	}
	if filter.Level != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"level"}).WithOperator(filters.Equal).WithValueString(filter.Level))
	}
	if !filter.Since.IsZero() {
		operands = append(operands, filters.Where().
			WithPath([]string{"timestamp"}).WithOperator(filters.GreaterThanEqual).
			WithValueNumber(float64(filter.Since.UnixMilli())))
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "log_id"}, {Name: "service"}, {Name: "level"}, {Name: "message"},
		{Name: "timestamp"}, {Name: "trace_id"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(CollectionName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit)
	if len(operands) > 0 {
		where := filters.Where()
		if len(operands) == 1 {
			where = operands[0]
		} else {
			where = where.WithOperator(filters.And).WithOperands(operands)
		}
		query = query.WithWhere(where)
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	parsed, err := parseLogPointResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse search response: %w", err)
	}

	out := make([]SearchResult, 0, len(parsed.Get.LogPoint))
	for _, r := range parsed.Get.LogPoint {
		var similarity float32
		if r.Additional.Certainty != nil {
			// Weaviate's certainty is (1 + cosine similarity) / 2.
			similarity = 2*(*r.Additional.Certainty) - 1
		}
		out = append(out, SearchResult{
			Point: Point{
				ID:        r.Additional.ID,
				Service:   r.Service,
				Level:     r.Level,
				Message:   r.Message,
				Timestamp: time.UnixMilli(int64(r.Timestamp)),
				TraceID:   r.TraceID,
				LogID:     r.LogID,
			},
			Similarity: similarity,
		})
	}
	return out, nil
}

func parseLogPointResponse(resp *models.GraphQLResponse) (*logPointResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal response data: %w", err)
	}
	var out logPointResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return nil, fmt.Errorf("unmarshal into target type: %w", err)
	}
	return &out, nil
}

var _ Store = (*WeaviateStore)(nil)
