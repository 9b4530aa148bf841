// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package worker is the C3 two-stage pipeline: a consume goroutine bridging
// bus deliveries to decoded LogEntry values, and a persist goroutine
// batching them into the columnar and vector stores.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/stratum-io/stratum/internal/bus"
	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/embedding"
	"github.com/stratum-io/stratum/internal/logtypes"
	"github.com/stratum-io/stratum/internal/metrics"
	"github.com/stratum-io/stratum/internal/vectorstore"
)

// DecodedChanCap bounds the channel bridging consume and persist (§4.4/§5).
const DecodedChanCap = 1_000

// BatchSize and BatchAge are the persist stage's flush triggers: whichever
// comes first.
const (
	BatchSize = 500
	BatchAge  = 250 * time.Millisecond
)

// EmbeddingPoolSize bounds concurrent embedding calls dispatched for a batch
// (mirrors the embedding mini-batch cap from §5).
const EmbeddingPoolSize = 64

// decoded pairs a delivery with its parsed LogEntry so the persist stage can
// still ack/nack the original delivery after the batch resolves.
type decoded struct {
	delivery bus.Delivery
	entry    logtypes.LogEntry
}

// DefaultConsumerGroup names the bus durable consumer group when the caller
// doesn't set one via WithConsumerGroup.
const DefaultConsumerGroup = "stratum-workers"

// Pipeline is the C3 worker: consume from the bus, embed, and persist to C4/C5.
type Pipeline struct {
	bus           bus.Bus
	columnar      columnar.Store
	vectorstore   vectorstore.Store
	embedder      embedding.Embedder
	metrics       *metrics.Metrics
	logger        *slog.Logger
	consumerGroup string

	pool *ants.Pool

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithConsumerGroup overrides the bus durable consumer group (BUS_CONSUMER_GROUP).
func WithConsumerGroup(group string) Option {
	return func(p *Pipeline) {
		if group != "" {
			p.consumerGroup = group
		}
	}
}

func New(b bus.Bus, store columnar.Store, vs vectorstore.Store, embedder embedding.Embedder, m *metrics.Metrics, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	pool, err := ants.NewPool(EmbeddingPoolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		bus:           b,
		columnar:      store,
		vectorstore:   vs,
		embedder:      embedder,
		metrics:       m,
		logger:        logger,
		consumerGroup: DefaultConsumerGroup,
		pool:          pool,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start subscribes to the ingest subject and runs the two bridged stages
// until ctx is cancelled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.done = make(chan struct{})
	p.mu.Unlock()

	deliveries, err := p.bus.Subscribe(ctx, bus.IngestSubject, p.consumerGroup)
	if err != nil {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		return err
	}

	decodedCh := make(chan decoded, DecodedChanCap)
	go p.consume(ctx, deliveries, decodedCh)
	go p.persist(ctx, decodedCh)
	return nil
}

// Stop releases the embedding pool. The consume/persist goroutines exit on
// their own once ctx is cancelled by the caller.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.done != nil {
		close(p.done)
	}
	p.pool.Release()
}

func (p *Pipeline) consume(ctx context.Context, deliveries <-chan bus.Delivery, out chan<- decoded) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			var entry logtypes.LogEntry
			if err := json.Unmarshal(d.Payload, &entry); err != nil {
				p.logger.Error("worker: decode failed, nacking", "error", err, "delivery_id", d.ID)
				_ = d.Nack(ctx)
				continue
			}
			select {
			case out <- decoded{delivery: d, entry: entry}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Pipeline) persist(ctx context.Context, in <-chan decoded) {
	ticker := time.NewTicker(BatchAge)
	defer ticker.Stop()

	batch := make([]decoded, 0, BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flushBatch(ctx, batch)
		batch = make([]decoded, 0, BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case d, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, d)
			if len(batch) >= BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// flushBatch embeds and persists one batch, acking deliveries that made it
// into both stores and nacking the rest.
func (p *Pipeline) flushBatch(ctx context.Context, batch []decoded) {
	start := time.Now()
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.entry.Message
	}

	vectors, embedErr := p.embedBatch(ctx, texts)

	entries := make([]logtypes.LogEntry, len(batch))
	for i, d := range batch {
		entries[i] = d.entry
		entries[i].Embedded = embedErr == nil
	}

	if err := p.columnar.Insert(ctx, entries); err != nil {
		p.logger.Error("worker: columnar insert failed, nacking batch", "error", err, "batch_size", len(batch))
		p.nackAll(ctx, batch)
		return
	}

	if embedErr != nil {
		p.logger.Warn("worker: embedding failed, nacking batch for redelivery", "error", embedErr, "batch_size", len(batch))
		p.nackAll(ctx, batch)
		return
	}

	points := make([]vectorstore.Point, len(batch))
	for i, d := range batch {
		points[i] = vectorstore.Point{
			ID:        d.entry.ID,
			Vector:    vectors[i],
			Service:   d.entry.Service,
			Level:     d.entry.Level.String(),
			Message:   d.entry.Message,
			Timestamp: d.entry.Timestamp,
			TraceID:   d.entry.TraceID,
			LogID:     d.entry.ID,
		}
	}
	if err := p.vectorstore.Upsert(ctx, points); err != nil {
		p.logger.Error("worker: vector upsert failed, nacking batch", "error", err, "batch_size", len(batch))
		p.nackAll(ctx, batch)
		return
	}

	p.ackAll(ctx, batch)
	if p.metrics != nil {
		p.metrics.WorkerBatchSize.Observe(float64(len(batch)))
		p.metrics.WorkerBatchLatency.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	}
}

// embedBatch dispatches embedding calls for the batch across the bounded
// pool, one call for the whole text slice since the embedder already
// batches internally; the pool exists to bound concurrent batches across
// multiple in-flight flushes.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	type result struct {
		vectors [][]float32
		err     error
	}
	resultCh := make(chan result, 1)
	submitErr := p.pool.Submit(func() {
		vectors, err := p.embedder.Embed(ctx, texts)
		resultCh <- result{vectors: vectors, err: err}
	})
	if submitErr != nil {
		return nil, submitErr
	}
	r := <-resultCh
	return r.vectors, r.err
}

func (p *Pipeline) ackAll(ctx context.Context, batch []decoded) {
	for _, d := range batch {
		if err := d.delivery.Ack(ctx); err != nil {
			p.logger.Warn("worker: ack failed", "error", err, "delivery_id", d.delivery.ID)
		}
	}
}

func (p *Pipeline) nackAll(ctx context.Context, batch []decoded) {
	for _, d := range batch {
		if err := d.delivery.Nack(ctx); err != nil {
			p.logger.Warn("worker: nack failed", "error", err, "delivery_id", d.delivery.ID)
		}
		if p.metrics != nil && d.delivery.Attempt >= bus.MaxDeliveryAttempts {
			p.metrics.WorkerDeadLettered.Inc()
		}
	}
}
