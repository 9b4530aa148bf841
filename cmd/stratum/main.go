// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command stratum starts the Stratum log-intelligence server: ingestion API,
// worker pipeline, RAG chat engine, anomaly scheduler, and query API behind
// one Gin router.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/stratum-io/stratum/internal/anomaly"
	"github.com/stratum-io/stratum/internal/api"
	"github.com/stratum-io/stratum/internal/api/routes"
	"github.com/stratum-io/stratum/internal/bus"
	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/embedding"
	"github.com/stratum-io/stratum/internal/ingest"
	"github.com/stratum-io/stratum/internal/llm"
	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/metrics"
	"github.com/stratum-io/stratum/internal/rag"
	"github.com/stratum-io/stratum/internal/tracing"
	"github.com/stratum-io/stratum/internal/vectorstore"
	"github.com/stratum-io/stratum/internal/worker"
	"github.com/stratum-io/stratum/pkg/extensions"
	"github.com/stratum-io/stratum/pkg/logging"
)

func main() {
	logLevel := parseLogLevel(getEnvString("LOG_LEVEL", "info"))
	logger := logging.New(logging.Config{
		Level:   logLevel,
		JSON:    true,
		Service: "stratum",
	})
	defer logger.Close()

	cfg := loadConfig()
	logger.Info("starting stratum", "port", cfg.Port, "llm_provider", cfg.LLMProvider, "embedding_provider", cfg.EmbeddingProvider)

	tracerShutdown, err := tracing.Init(context.Background(), "stratum", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("stratum: tracer init failed: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("stratum: tracer shutdown: %v", err)
		}
	}()

	m := metrics.New()

	redisBus, err := bus.NewRedisBus(cfg.BusURL, logger)
	if err != nil {
		log.Fatalf("stratum: bus init failed: %v", err)
	}

	columnarStore, err := newColumnarStore(cfg)
	if err != nil {
		log.Fatalf("stratum: columnar store init failed: %v", err)
	}

	vectorStore, err := newVectorStore(cfg)
	if err != nil {
		log.Fatalf("stratum: vector store init failed: %v", err)
	}
	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := vectorStore.EnsureCollection(bootstrapCtx); err != nil {
		logger.Warn("vector store schema bootstrap failed, continuing", "error", err)
	}
	bootstrapCancel()

	embedder := newEmbedder(cfg)
	llmClient := newLLMClient(cfg)

	pipeline, err := worker.New(redisBus, columnarStore, vectorStore, embedder, m, logger.Slog(), worker.WithConsumerGroup(cfg.BusConsumerGroup))
	if err != nil {
		log.Fatalf("stratum: worker pipeline init failed: %v", err)
	}

	ragEngine := rag.New(columnarStore, vectorStore, embedder, llmClient, cfg.LLMProvider, m)
	defer ragEngine.Close()

	anomalyScheduler := anomaly.NewScheduler(columnarStore, logger.Slog(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pipeline.Start(ctx); err != nil {
		log.Fatalf("stratum: worker pipeline start failed: %v", err)
	}
	defer pipeline.Stop()

	if err := anomalyScheduler.Start(ctx); err != nil {
		log.Fatalf("stratum: anomaly scheduler start failed: %v", err)
	}
	defer anomalyScheduler.Stop()

	authProvider := newAuthProvider(cfg)

	router := gin.New()
	router.Use(otelgin.Middleware("stratum"))

	ingestHandler := ingest.New(redisBus, logtypes.NewRegistry(), m)
	apiHandler := api.New(columnarStore, vectorStore, embedder, ragEngine, anomalyScheduler)
	routes.Setup(router, ingestHandler, apiHandler, authProvider, logger.Slog())

	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("stratum: http server error: %v", err)
		}
	}()

	waitForShutdown(logger)
}

func waitForShutdown(logger *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("stratum: shutdown signal received")
}

// config collects the environment-variable-driven wiring of §6.6.
type config struct {
	Port              int
	APIKey            string
	LLMProvider       string
	LLMAPIKey         string
	LLMURL            string
	EmbeddingProvider string
	BusURL            string
	ColumnarURL       string
	VectorURL         string
	OTelEndpoint      string
	BusConsumerGroup  string
	InfluxOrg         string
	InfluxBucket      string
	InfluxToken       string
}

func loadConfig() config {
	return config{
		Port:              getEnvInt("PORT", 3000),
		APIKey:            os.Getenv("API_KEY"),
		LLMProvider:       getEnvString("LLM_PROVIDER", "local"),
		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMURL:            os.Getenv("LLM_URL"),
		EmbeddingProvider: getEnvString("EMBEDDING_PROVIDER", "ollama"),
		BusURL:            getEnvString("BUS_URL", "redis://localhost:6379/0"),
		ColumnarURL:       getEnvString("COLUMNAR_URL", "http://localhost:8086"),
		VectorURL:         getEnvString("VECTOR_URL", "http://localhost:8080"),
		OTelEndpoint:      getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "stratum-otel-collector:4317"),
		BusConsumerGroup:  getEnvString("BUS_CONSUMER_GROUP", "stratum-workers"),
		InfluxOrg:         getEnvString("INFLUX_ORG", "stratum"),
		InfluxBucket:      getEnvString("INFLUX_BUCKET", "logs"),
		InfluxToken:       os.Getenv("INFLUX_TOKEN"),
	}
}

func newAuthProvider(cfg config) extensions.AuthProvider {
	if cfg.APIKey == "" {
		return &extensions.NopAuthProvider{}
	}
	return extensions.NewAPIKeyProvider(cfg.APIKey)
}

func newColumnarStore(cfg config) (columnar.Store, error) {
	client := influxdb2.NewClient(cfg.ColumnarURL, cfg.InfluxToken)
	return columnar.NewInfluxStore(client, cfg.InfluxOrg, cfg.InfluxBucket), nil
}

func newVectorStore(cfg config) (vectorstore.Store, error) {
	scheme, host, err := splitURL(cfg.VectorURL)
	if err != nil {
		return nil, err
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, err
	}
	return vectorstore.NewWeaviateStore(client), nil
}

func newEmbedder(cfg config) embedding.Embedder {
	switch cfg.EmbeddingProvider {
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.LLMAPIKey)
	default:
		return embedding.NewOllamaEmbedder(cfg.LLMURL, "")
	}
}

func newLLMClient(cfg config) llm.Client {
	switch cfg.LLMProvider {
	case "openai", "hosted":
		return llm.NewOpenAIClient(cfg.LLMAPIKey, "")
	case "anthropic", "claude":
		return llm.NewAnthropicClient(cfg.LLMAPIKey, "")
	case "ollama":
		return llm.NewOllamaClient(cfg.LLMURL, "")
	default:
		return llm.NewLocalClient(cfg.LLMURL)
	}
}

func splitURL(raw string) (scheme, host string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("stratum: invalid URL %q", raw)
	}
	return u.Scheme, u.Host, nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseLogLevel(raw string) logging.Level {
	switch raw {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
