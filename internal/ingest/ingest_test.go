// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratum-io/stratum/internal/bus"
	"github.com/stratum-io/stratum/internal/logtypes"
)

func newTestRouter(b bus.Bus) (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := New(b, logtypes.NewRegistry(), nil)
	h.Register(router)
	return router, h
}

func TestHandleLogs_SingleEntryIsAcceptedAndPublished(t *testing.T) {
	b := bus.NewFakeBus()
	router, _ := newTestRouter(b)

	body := `{"service":"api","message":"request failed","level":"error"}`
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Accepted, 1)
	assert.Empty(t, resp.Rejected)
}

func TestHandleLogs_ArrayPartiallyRejectsBadEntries(t *testing.T) {
	b := bus.NewFakeBus()
	router, _ := newTestRouter(b)

	body := `[{"service":"api","message":"ok"},{"service":"api","message":""}]`
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Accepted, 1)
	assert.Len(t, resp.Rejected, 1)
	assert.Equal(t, 1, resp.Rejected[0].Index)
}

func TestHandleRawBatch_ParsesJSONLinesWithAutoFormat(t *testing.T) {
	b := bus.NewFakeBus()
	router, _ := newTestRouter(b)

	body := `{"format":"auto","service":"worker","lines":["{\"message\":\"hello\",\"level\":\"info\"}"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/logs/raw", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Accepted, 1)
}

func TestHandleRawBatch_UnparsableLineIsRejectedNotFatal(t *testing.T) {
	b := bus.NewFakeBus()
	router, _ := newTestRouter(b)

	body := `{"format":"syslog","service":"worker","lines":["not a syslog line at all"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/logs/raw", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Accepted)
	assert.Len(t, resp.Rejected, 1)
}

func TestHandleLogs_PublishBufferFullReturns503WithRetryAfter(t *testing.T) {
	b := bus.NewFakeBus()
	router, _ := newTestRouter(b)

	// Exhaust the publish buffer by publishing directly, bypassing any
	// subscriber that would drain it.
	for i := 0; i < bus.PublishBufferCap; i++ {
		require.NoError(t, b.Publish(context.Background(), bus.IngestSubject, []byte("{}")))
	}

	body := `{"service":"api","message":"one more"}`
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
