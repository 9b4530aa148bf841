// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics defines the Prometheus instrumentation shared across
// Stratum's services. Metrics are exposed via /metrics for Prometheus
// scraping; there is no push path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stratum"

// Metrics holds every counter/histogram/gauge Stratum's components publish.
// Constructed once at startup via New() and threaded through by reference.
type Metrics struct {
	IngestTotal           *prometheus.CounterVec
	IngestNaiveTimestamps  prometheus.Counter
	BusPublishFailures     *prometheus.CounterVec
	WorkerBatchSize        prometheus.Histogram
	WorkerBatchLatency     *prometheus.HistogramVec
	WorkerDeadLettered     prometheus.Counter
	ColumnarQueryDuration  *prometheus.HistogramVec
	VectorUpsertDuration   prometheus.Histogram
	VectorSearchDuration   prometheus.Histogram
	EmbeddingBatchDuration prometheus.Histogram
	LLMCallsTotal          *prometheus.CounterVec
	LLMCallDuration        *prometheus.HistogramVec
	RAGQueryDuration       prometheus.Histogram
	RAGZeroHits            prometheus.Counter
	AnomalyScansTotal      *prometheus.CounterVec
	AnomaliesDetected      *prometheus.CounterVec
}

// New registers and returns a Metrics instance. Call once per process;
// promauto panics on duplicate registration.
func New() *Metrics {
	return &Metrics{
		IngestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "entries_total",
			Help: "Log entries accepted or rejected by the ingestion API.",
		}, []string{"status"}),
		IngestNaiveTimestamps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "naive_timestamps_total",
			Help: "Entries whose timestamp lacked a zone offset and was treated as UTC.",
		}),
		BusPublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bus", Name: "publish_failures_total",
			Help: "Bus publish calls that failed, by reason.",
		}, []string{"reason"}),
		WorkerBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "batch_size",
			Help:    "Number of entries persisted per worker batch.",
			Buckets: []float64{1, 10, 50, 100, 250, 500},
		}),
		WorkerBatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "batch_latency_seconds",
			Help: "Time to persist one worker batch, by stage.",
		}, []string{"stage"}),
		WorkerDeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "dead_lettered_total",
			Help: "Entries that exhausted redelivery attempts.",
		}),
		ColumnarQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "columnar", Name: "query_duration_seconds",
			Help: "Columnar store query latency, by query name.",
		}, []string{"query"}),
		VectorUpsertDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "vectorstore", Name: "upsert_duration_seconds",
			Help: "Vector store upsert latency.",
		}),
		VectorSearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "vectorstore", Name: "search_duration_seconds",
			Help: "Vector store search latency.",
		}),
		EmbeddingBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "embedding", Name: "batch_duration_seconds",
			Help: "Embedding request latency per mini-batch.",
		}),
		LLMCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "calls_total",
			Help: "LLM chat calls, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		LLMCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "llm", Name: "call_duration_seconds",
			Help: "LLM chat call latency, by provider.",
		}, []string{"provider"}),
		RAGQueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "rag", Name: "query_duration_seconds",
			Help: "End-to-end RAG query latency.",
		}),
		RAGZeroHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rag", Name: "zero_hits_total",
			Help: "RAG queries whose retrieval stage returned no candidates.",
		}),
		AnomalyScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "anomaly", Name: "scans_total",
			Help: "Anomaly scan cycles, by outcome.",
		}, []string{"outcome"}),
		AnomaliesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "anomaly", Name: "detected_total",
			Help: "Anomalies detected, by rule and severity.",
		}, []string{"rule", "severity"}),
	}
}
