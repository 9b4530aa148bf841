// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratum-io/stratum/internal/anomaly"
	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/embedding"
	"github.com/stratum-io/stratum/internal/llm"
	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/rag"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

func newTestServer(t *testing.T) (*gin.Engine, columnar.Store, vectorstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := columnar.NewFakeStore()
	vs := vectorstore.NewFakeStore()
	embedder := embedding.NewFakeEmbedder()
	client := llm.NewFakeClient(llm.ChatResult{Text: "The checkout-api failed due to a timeout."})
	ragEngine := rag.New(store, vs, embedder, client, "fake", nil)
	scheduler := anomaly.NewScheduler(store, nil, nil)

	h := New(store, vs, embedder, ragEngine, scheduler)
	router := gin.New()
	h.RegisterHealth(router)
	h.Register(router)
	return router, store, vs
}

func seedLog(t *testing.T, store columnar.Store, vs vectorstore.Store, id, service, message string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	entry := logtypes.LogEntry{ID: id, Service: service, Level: logtypes.LevelError, Message: message, Timestamp: now}
	require.NoError(t, store.Insert(ctx, []logtypes.LogEntry{entry}))
	require.NoError(t, vs.Upsert(ctx, []vectorstore.Point{{
		ID: id, LogID: id, Service: service, Level: "error", Message: message,
		Timestamp: now, Vector: make([]float32, embedding.Dim),
	}}))
}

func TestHandleHealth(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleRecent_ReturnsInsertedEntries(t *testing.T) {
	router, store, vs := newTestServer(t)
	seedLog(t, store, vs, "log-1", "checkout-api", "timeout calling billing")

	req := httptest.NewRequest(http.MethodGet, "/api/logs/recent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []recentLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "checkout-api", out[0].Service)
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearch_ReturnsHits(t *testing.T) {
	router, store, vs := newTestServer(t)
	seedLog(t, store, vs, "log-1", "checkout-api", "timeout calling billing")

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=timeout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var hits []searchHit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "log-1", hits[0].LogID)
}

func TestHandleChat_ReturnsAnswer(t *testing.T) {
	router, store, vs := newTestServer(t)
	seedLog(t, store, vs, "log-1", "checkout-api", "timeout calling billing")

	body := `{"session_id":"s1","message":"why did checkout-api fail?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The checkout-api failed due to a timeout.", resp.Answer)
}

func TestHandleChat_MissingMessageIsRejected(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"session_id":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAsk_RequiresQuery(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ask", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStats_ReflectsInsertedLogs(t *testing.T) {
	router, store, vs := newTestServer(t)
	seedLog(t, store, vs, "log-1", "checkout-api", "timeout calling billing")

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalLogs)
}

func TestHandleServices_ListsDistinctServices(t *testing.T) {
	router, store, vs := newTestServer(t)
	seedLog(t, store, vs, "log-1", "checkout-api", "timeout calling billing")

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var services []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &services))
	assert.Contains(t, services, "checkout-api")
}

func TestHandleAnomalies_ReturnsCachedSnapshot(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/anomalies", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "anomalies")
	assert.Contains(t, body, "checked_at")
}
