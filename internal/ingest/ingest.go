// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest implements the HTTP ingestion API (§4.2): accepting single,
// array, and raw-batch log submissions, defaulting and categorizing each
// entry, and publishing it to the bus for the worker to persist.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/stratum-io/stratum/internal/bus"
	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/metrics"
)

// PublishTimeout bounds how long a single publish call may block the request
// goroutine, per §5's 2s publish timeout.
const PublishTimeout = 2 * time.Second

// structuredLog is the wire shape accepted by POST /api/logs, either singly
// or as an array.
type structuredLog struct {
	Service   string         `json:"service"`
	Message   string         `json:"message" binding:"required"`
	Level     string         `json:"level"`
	Timestamp *time.Time     `json:"timestamp"`
	TraceID   string         `json:"trace_id"`
	Fields    map[string]any `json:"fields"`
}

// rawBatchRequest is the wire shape accepted by POST /api/logs/raw.
type rawBatchRequest struct {
	Format  string   `json:"format" binding:"required"`
	Service string   `json:"service"`
	Lines   []string `json:"lines" binding:"required"`
}

// rejection describes one entry that failed to parse or validate, returned
// inline alongside any accepted entries rather than failing the whole batch.
type rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type batchResponse struct {
	Accepted []string    `json:"accepted"`
	Rejected []rejection `json:"rejected"`
}

// Handler wires the ingestion endpoints to a bus publisher and a parser
// registry. Holding only these two collaborators keeps it testable with a
// FakeBus and no network dependency.
type Handler struct {
	bus      bus.Bus
	registry *logtypes.Registry
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New builds a Handler. m may be nil in tests that don't assert on metrics.
func New(b bus.Bus, registry *logtypes.Registry, m *metrics.Metrics) *Handler {
	return &Handler{bus: b, registry: registry, metrics: m, now: time.Now}
}

// Register attaches the ingestion routes to router.
func (h *Handler) Register(router gin.IRouter) {
	router.POST("/api/logs", h.handleLogs)
	router.POST("/api/logs/raw", h.handleRawBatch)
}

// handleLogs accepts either a single structured log object or a JSON array
// of them.
func (h *Handler) handleLogs(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	var logs []structuredLog
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &logs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log array", "detail": err.Error()})
			return
		}
	} else {
		var single structuredLog
		if err := json.Unmarshal(body, &single); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log object", "detail": err.Error()})
			return
		}
		logs = []structuredLog{single}
	}

	entries := make([]*logtypes.LogEntry, 0, len(logs))
	var rejected []rejection
	for i, l := range logs {
		if l.Message == "" {
			rejected = append(rejected, rejection{Index: i, Reason: "message is required"})
			continue
		}
		entry := &logtypes.LogEntry{
			Service: l.Service,
			Message: l.Message,
			Level:   logtypes.ParseLevel(l.Level),
			TraceID: l.TraceID,
			Fields:  l.Fields,
		}
		if l.Timestamp != nil {
			entry.Timestamp = *l.Timestamp
		}
		entries = append(entries, entry)
	}

	h.ingest(c, entries, rejected)
}

// handleRawBatch accepts a batch of raw lines, parses each with the named
// format, and falls back per-line to auto-detection when the format is
// "auto".
func (h *Handler) handleRawBatch(c *gin.Context) {
	var req rawBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid raw batch request", "detail": err.Error()})
		return
	}

	entries := make([]*logtypes.LogEntry, 0, len(req.Lines))
	var rejected []rejection
	for i, line := range req.Lines {
		if !utf8.ValidString(line) {
			rejected = append(rejected, rejection{Index: i, Reason: "validation: line is not valid UTF-8"})
			continue
		}

		var entry *logtypes.LogEntry
		var ok bool
		if req.Format == "auto" || req.Format == "" {
			entry, _, ok = h.registry.DetectAndParse(line)
		} else {
			entry, ok = h.registry.ParseWith(req.Format, line)
		}
		if !ok {
			rejected = append(rejected, rejection{Index: i, Reason: "could not parse line with format " + req.Format})
			continue
		}
		if entry.Service == "" {
			entry.Service = req.Service
		}
		entries = append(entries, entry)
	}

	h.ingest(c, entries, rejected)
}

// ingest applies defaults, categorizes, and publishes each entry, then
// responds 202 with the accepted ids and any rejections collected so far.
// A single bad entry never fails the whole batch (§7).
func (h *Handler) ingest(c *gin.Context, entries []*logtypes.LogEntry, rejected []rejection) {
	now := h.now()
	accepted := make([]string, 0, len(entries))

	ctx, cancel := context.WithTimeout(c.Request.Context(), PublishTimeout)
	defer cancel()

	for _, entry := range entries {
		if entry.EnsureDefaults(now) {
			entry.Fields[logtypes.ClampedTimestampField] = true
		}
		if _, naive := entry.Fields[logtypes.NaiveTimestampField]; naive {
			if h.metrics != nil {
				h.metrics.IngestNaiveTimestamps.Inc()
			}
			delete(entry.Fields, logtypes.NaiveTimestampField)
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			rejected = append(rejected, rejection{Reason: "could not serialize entry: " + err.Error()})
			continue
		}

		if err := h.bus.Publish(ctx, bus.IngestSubject, payload); err != nil {
			if errors.Is(err, bus.ErrBufferFull) {
				c.Header("Retry-After", "1")
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion buffer full, retry shortly"})
				return
			}
			rejected = append(rejected, rejection{Reason: "publish failed: " + err.Error()})
			continue
		}
		accepted = append(accepted, entry.ID)
	}

	if h.metrics != nil {
		h.metrics.IngestTotal.WithLabelValues("accepted").Add(float64(len(accepted)))
		h.metrics.IngestTotal.WithLabelValues("rejected").Add(float64(len(rejected)))
	}

	c.JSON(http.StatusAccepted, batchResponse{Accepted: accepted, Rejected: rejected})
}
