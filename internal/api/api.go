// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api is the C9 query surface: a thin Gin layer over the columnar
// store, vector store, RAG engine, and anomaly scheduler.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/stratum-io/stratum/internal/anomaly"
	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/embedding"
	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/rag"
	"github.com/stratum-io/stratum/internal/stratumerr"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

// SearchTimeout bounds the search read path this package adds beyond what C7
// already times out internally; /api/stats relies on the columnar store's own
// QueryTimeout.
const SearchTimeout = 10 * time.Second

// DefaultLimit and MaxLimit bound the recent/search list endpoints.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Handler wires the query endpoints to C4/C5/C7/C8. All fields are
// interfaces or already-safe-for-concurrent-use types, so a *Handler has no
// mutable state of its own beyond what its collaborators own.
type Handler struct {
	columnar    columnar.Store
	vectorstore vectorstore.Store
	embedder    embedding.Embedder
	rag         rag.Interface
	anomalies   *anomaly.Scheduler

	// statsGroup collapses concurrent /api/stats and /api/services requests
	// that land in the same instant (dashboards polling on a fixed interval)
	// into a single underlying store call.
	statsGroup singleflight.Group
}

func New(columnarStore columnar.Store, vs vectorstore.Store, embedder embedding.Embedder, ragEngine rag.Interface, anomalies *anomaly.Scheduler) *Handler {
	return &Handler{columnar: columnarStore, vectorstore: vs, embedder: embedder, rag: ragEngine, anomalies: anomalies}
}

// RegisterHealth attaches the liveness probe outside of auth: orchestrators
// polling /health don't carry an API key.
func (h *Handler) RegisterHealth(router gin.IRouter) {
	router.GET("/health", h.handleHealth)
}

// Register attaches the authenticated C9 routes to router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/api/logs/recent", h.handleRecent)
	router.GET("/api/search", h.handleSearch)
	router.POST("/api/chat", h.handleChat)
	router.GET("/api/ask", h.handleAsk)
	router.GET("/api/stats", h.handleStats)
	router.GET("/api/services", h.handleServices)
	router.GET("/api/anomalies", h.handleAnomalies)
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type recentLog struct {
	LogID     string    `json:"log_id"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

func (h *Handler) handleRecent(c *gin.Context) {
	filter := columnar.RecentFilter{
		Limit:   parseLimit(c.Query("limit")),
		Service: c.Query("service"),
		Level:   c.Query("level"),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), columnar.QueryTimeout)
	defer cancel()

	entries, err := h.columnar.Recent(ctx, filter)
	if err != nil {
		writeError(c, stratumerr.Wrap(stratumerr.KindStoreUnavailable, "recent query failed", err))
		return
	}

	out := make([]recentLog, len(entries))
	for i, e := range entries {
		out[i] = recentLog{LogID: e.ID, Timestamp: e.Timestamp, Service: e.Service, Level: e.Level.String(), Message: e.Message}
	}
	c.JSON(http.StatusOK, out)
}

type searchHit struct {
	LogID     string    `json:"log_id"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Score     float32   `json:"score"`
}

// handleSearch implements GET /api/search: embed the query, run a direct
// kNN search (no reranking or LLM call — that's the chat pipeline's job),
// and hydrate hits from the columnar store.
func (h *Handler) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		writeError(c, stratumerr.New(stratumerr.KindValidation, "q is required"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), SearchTimeout)
	defer cancel()

	vectors, err := h.embedder.Embed(ctx, []string{query})
	if err != nil {
		writeError(c, stratumerr.Wrap(stratumerr.KindEmbeddingFailed, "query embedding failed", err))
		return
	}

	results, err := h.vectorstore.Search(ctx, vectors[0], vectorstore.SearchFilter{
		Service: c.Query("service"),
		Level:   c.Query("level"),
		Limit:   parseLimit(c.Query("limit")),
	})
	if err != nil {
		writeError(c, stratumerr.Wrap(stratumerr.KindStoreUnavailable, "vector search failed", err))
		return
	}

	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{
			LogID: r.Point.LogID, Timestamp: r.Point.Timestamp, Service: r.Point.Service,
			Level: r.Point.Level, Message: r.Point.Message, Score: r.Similarity,
		}
	}
	c.JSON(http.StatusOK, hits)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

type causalLogView struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type causalLinkView struct {
	Cause       causalLogView `json:"cause"`
	Confidence  float64       `json:"confidence"`
	Explanation string        `json:"explanation"`
}

type causalChainView struct {
	Effect         causalLogView   `json:"effect"`
	Chain          []causalLinkView `json:"chain"`
	RootCause      *causalLogView  `json:"root_cause,omitempty"`
	Recommendation string          `json:"recommendation,omitempty"`
}

type chatResponse struct {
	Answer           string           `json:"answer"`
	SourcesCount     int              `json:"sources_count"`
	ResponseTimeMs   int64            `json:"response_time_ms"`
	Provider         string           `json:"provider"`
	ContextLogs      int              `json:"context_logs"`
	ConversationTurn int              `json:"conversation_turn"`
	SourceLogs       []string         `json:"source_logs"`
	CausalChain      *causalChainView `json:"causal_chain,omitempty"`
}

func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, stratumerr.Wrap(stratumerr.KindValidation, "invalid chat request", err))
		return
	}
	if req.SessionID == "" {
		req.SessionID = "anonymous"
	}
	h.answer(c, req.SessionID, req.Message)
}

// handleAsk implements GET /api/ask: same pipeline as chat, without a
// session (each call is a fresh conversation).
func (h *Handler) handleAsk(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		writeError(c, stratumerr.New(stratumerr.KindValidation, "q is required"))
		return
	}
	h.answer(c, "", q)
}

func (h *Handler) answer(c *gin.Context, sessionID, message string) {
	result, err := h.rag.Answer(c.Request.Context(), sessionID, message)
	if err != nil {
		writeError(c, stratumerr.Wrap(stratumerr.KindLLMFailed, "chat pipeline failed", err))
		return
	}

	resp := chatResponse{
		Answer: result.Answer, SourcesCount: result.SourcesCount, ResponseTimeMs: result.ResponseTimeMs,
		Provider: result.Provider, ContextLogs: result.ContextLogs, ConversationTurn: result.ConversationTurn,
		SourceLogs: result.SourceLogs,
	}
	if result.CausalChain != nil {
		resp.CausalChain = toCausalChainView(result.CausalChain)
	}
	c.JSON(http.StatusOK, resp)
}

func toCausalChainView(chain *rag.CausalChain) *causalChainView {
	view := &causalChainView{Effect: toCausalLogView(chain.Effect), Recommendation: chain.Recommendation}
	for _, link := range chain.Chain {
		view.Chain = append(view.Chain, causalLinkView{
			Cause: toCausalLogView(link.Cause), Confidence: link.Confidence, Explanation: link.Explanation,
		})
	}
	if chain.RootCause != nil {
		root := toCausalLogView(*chain.RootCause)
		view.RootCause = &root
	}
	return view
}

func toCausalLogView(e logtypes.LogEntry) causalLogView {
	return causalLogView{ID: e.ID, Service: e.Service, Level: e.Level.String(), Message: e.Message, Timestamp: e.Timestamp}
}

type statsResponse struct {
	TotalLogs       int64 `json:"total_logs"`
	Logs24h         int64 `json:"logs_24h"`
	ErrorCount      int64 `json:"error_count"`
	ServicesCount   int64 `json:"services_count"`
	EmbeddingsCount int64 `json:"embeddings_count"`
	StorageMB       int64 `json:"storage_mb"`
}

func (h *Handler) handleStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), columnar.QueryTimeout)
	defer cancel()

	v, err, _ := h.statsGroup.Do("stats", func() (interface{}, error) {
		return h.columnar.Stats(ctx)
	})
	if err != nil {
		writeError(c, stratumerr.Wrap(stratumerr.KindStoreUnavailable, "stats query failed", err))
		return
	}

	stats := v.(columnar.Stats)
	c.JSON(http.StatusOK, statsResponse{
		TotalLogs: stats.TotalCount, Logs24h: stats.Last24hCount, ErrorCount: stats.ErrorCount,
		ServicesCount: stats.DistinctServices, EmbeddingsCount: stats.EmbeddedCount, StorageMB: stats.StorageBytes / (1 << 20),
	})
}

func (h *Handler) handleServices(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), columnar.QueryTimeout)
	defer cancel()

	v, err, _ := h.statsGroup.Do("services", func() (interface{}, error) {
		return h.columnar.Services(ctx)
	})
	if err != nil {
		writeError(c, stratumerr.Wrap(stratumerr.KindStoreUnavailable, "services query failed", err))
		return
	}
	c.JSON(http.StatusOK, v.([]string))
}

type anomalyView struct {
	Service  string  `json:"service"`
	Level    string  `json:"level"`
	Rule     string  `json:"rule"`
	Severity string  `json:"severity"`
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
}

func (h *Handler) handleAnomalies(c *gin.Context) {
	snapshot := h.anomalies.Latest()
	views := make([]anomalyView, len(snapshot.Anomalies))
	for i, a := range snapshot.Anomalies {
		views[i] = anomalyView{Service: a.Service, Level: a.Level.String(), Rule: string(a.Rule), Severity: string(a.Severity), Current: a.Current, Baseline: a.Baseline}
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": views, "checked_at": snapshot.CheckedAt})
}

func parseLimit(raw string) int {
	if raw == "" {
		return DefaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// writeError serializes an error per §7: {error, detail?} with the status
// mapped from its Kind.
func writeError(c *gin.Context, err error) {
	var stratErr *stratumerr.Error
	if errors.As(err, &stratErr) {
		status := stratumerr.ToHTTPStatus(stratErr.Kind)
		body := gin.H{"error": stratErr.Message}
		if stratErr.Cause != nil {
			body["detail"] = stratErr.Cause.Error()
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
