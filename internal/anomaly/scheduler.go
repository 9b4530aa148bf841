// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stratum-io/stratum/internal/columnar"
	"github.com/stratum-io/stratum/internal/metrics"
)

// Scheduler runs the anomaly scan every ScanInterval and caches the most
// recent Snapshot for C9 to serve. Ticker + done-channel + mutex shape.
type Scheduler struct {
	store   columnar.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	snapshot Snapshot
}

func NewScheduler(store columnar.Store, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, logger: logger, metrics: m}
}

// Start begins the background scan loop. Safe to call once; a second call
// while already running is a no-op error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("anomaly: scheduler already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)
	return nil
}

// Stop signals the scan loop to exit. Safe to call multiple times.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	close(s.done)
	s.running = false
	return nil
}

// RunNow triggers an immediate scan outside the ticker cadence, e.g. for
// manual invocation or a warm first snapshot at startup.
func (s *Scheduler) RunNow(ctx context.Context) (Snapshot, error) {
	snapshot, err := Scan(ctx, s.store)
	if err != nil {
		if s.metrics != nil {
			s.metrics.AnomalyScansTotal.WithLabelValues("error").Inc()
		}
		return Snapshot{}, err
	}
	snapshot.CheckedAt = time.Now()

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.AnomalyScansTotal.WithLabelValues("ok").Inc()
		for _, a := range snapshot.Anomalies {
			s.metrics.AnomaliesDetected.WithLabelValues(string(a.Rule), string(a.Severity)).Inc()
		}
	}
	return snapshot, nil
}

// Latest returns the most recently cached snapshot without triggering a scan.
func (s *Scheduler) Latest() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(ScanInterval)
	defer ticker.Stop()

	s.executeScan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.executeScan(ctx)
		}
	}
}

// executeScan runs one cycle, logging and retaining the prior snapshot on
// failure per §7's error-handling policy.
func (s *Scheduler) executeScan(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil {
		s.logger.Error("anomaly: scan failed, retaining prior snapshot", "error", err)
	}
}
