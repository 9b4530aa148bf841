// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stratum-io/stratum/pkg/logging"
)

const payloadField = "payload"

// RedisBus implements Bus on top of Redis Streams: XADD for publish, consumer
// groups (XREADGROUP/XACK/XCLAIM/XPENDING) for durable, at-least-once delivery.
// Redis Streams' consumer-group semantics map directly onto the bus contract's
// ack/nack/redeliver/dead-letter requirements.
type RedisBus struct {
	client *redis.Client
	logger *logging.Logger

	mu       sync.Mutex
	attempts map[string]int // message id -> delivery attempt count
}

// NewRedisBus connects to the given Redis URL (e.g. "redis://host:6379/0").
func NewRedisBus(url string, logger *logging.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBus{
		client:   redis.NewClient(opts),
		logger:   logger,
		attempts: map[string]int{},
	}, nil
}

// Publish appends to the stream, failing synchronously once the stream already
// holds PublishBufferCap undelivered entries (the in-memory-buffer bound of §4.3
// realized as a length check against the stream, since Streams persist rather
// than buffer purely in memory).
func (b *RedisBus) Publish(ctx context.Context, subject string, payload []byte) error {
	length, err := b.client.XLen(ctx, subject).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if length >= PublishBufferCap {
		return ErrBufferFull
	}
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: subject,
		MaxLen: PublishBufferCap,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Err()
}

// Subscribe starts a consumer-group reader for subject under the given durable
// consumer-group name and streams deliveries on the returned channel until ctx
// is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, subject, durable string) (<-chan Delivery, error) {
	if err := b.client.XGroupCreateMkStream(ctx, subject, durable, "$").Err(); err != nil {
		if !isBusyGroupErr(err) {
			return nil, err
		}
	}

	out := make(chan Delivery, 64)
	consumerName := durable + "-consumer"
	go b.readLoop(ctx, subject, durable, consumerName, out)
	go b.claimStaleLoop(ctx, subject, durable, consumerName, out)
	return out, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 4 && err.Error()[:4] == "BUSY"
}

func (b *RedisBus) readLoop(ctx context.Context, subject, group, consumer string, out chan<- Delivery) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{subject, ">"},
			Count:    64,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			if b.logger != nil {
				b.logger.Warn("bus: read group error", "subject", subject, "error", err.Error())
			}
			time.Sleep(time.Second)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.dispatch(ctx, subject, group, msg, out)
			}
		}
	}
}

func (b *RedisBus) dispatch(ctx context.Context, subject, group string, msg redis.XMessage, out chan<- Delivery) {
	payload, _ := msg.Values[payloadField].(string)

	b.mu.Lock()
	b.attempts[msg.ID]++
	attempt := b.attempts[msg.ID]
	b.mu.Unlock()

	d := Delivery{
		ID:      msg.ID,
		Payload: []byte(payload),
		Attempt: attempt,
		ack: func(ctx context.Context) error {
			b.forget(msg.ID)
			return b.client.XAck(ctx, subject, group, msg.ID).Err()
		},
		nack: func(ctx context.Context) error {
			return b.handleNack(ctx, subject, group, msg.ID, attempt, payload)
		},
	}
	select {
	case out <- d:
	case <-ctx.Done():
	}
}

func (b *RedisBus) handleNack(ctx context.Context, subject, group, id string, attempt int, payload string) error {
	if attempt >= MaxDeliveryAttempts {
		if err := b.client.XAdd(ctx, &redis.XAddArgs{
			Stream: DeadLetterSubject,
			Values: map[string]any{payloadField: payload, "original_subject": subject, "attempts": attempt},
		}).Err(); err != nil {
			return err
		}
		b.forget(id)
		return b.client.XAck(ctx, subject, group, id).Err()
	}
	// Leave the message unacked; claimStaleLoop redelivers it after the
	// backoff for this attempt has elapsed.
	return nil
}

func (b *RedisBus) forget(id string) {
	b.mu.Lock()
	delete(b.attempts, id)
	b.mu.Unlock()
}

// claimStaleLoop periodically claims pending entries idle longer than the
// current attempt's backoff, making them available for redelivery.
func (b *RedisBus) claimStaleLoop(ctx context.Context, subject, group, consumer string, out chan<- Delivery) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: subject,
			Group:  group,
			Start:  "-",
			End:    "+",
			Count:  64,
		}).Result()
		if err != nil {
			continue
		}
		for _, p := range pending {
			b.mu.Lock()
			attempt := b.attempts[p.ID]
			b.mu.Unlock()
			if attempt == 0 {
				attempt = int(p.RetryCount) + 1
			}
			minIdle := NackBackoff(attempt)
			if p.Idle < minIdle {
				continue
			}
			claimed, err := b.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   subject,
				Group:    group,
				Consumer: consumer,
				MinIdle:  minIdle,
				Messages: []string{p.ID},
			}).Result()
			if err != nil || len(claimed) == 0 {
				continue
			}
			b.dispatch(ctx, subject, group, claimed[0], out)
		}
	}
}
