// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bus wraps a durable publish/subscribe primitive behind the small
// interface described in §4.3: fire-and-forget publish bounded to a fixed
// buffer, and at-least-once subscription with ack/nack and dead-lettering.
package bus

import (
	"context"
	"time"
)

// IngestSubject is the durable subject logs are published to by C1.
const IngestSubject = "logs.ingest"

// DeadLetterSubject receives messages that exhausted their redelivery attempts.
const DeadLetterSubject = "logs.deadletter"

// PublishBufferCap is the bound B from §4.3/§5: publish fails synchronously once
// a subject holds this many undelivered messages.
const PublishBufferCap = 10_000

// MaxDeliveryAttempts is the redelivery ceiling before a message is dead-lettered.
const MaxDeliveryAttempts = 5

// MaxBackoff caps the exponential nack backoff.
const MaxBackoff = 30 * time.Second

// ErrBufferFull is returned by Publish when the subject's buffer is at capacity.
var ErrBufferFull = &bufferFullError{}

type bufferFullError struct{}

func (e *bufferFullError) Error() string { return "bus: publish buffer full" }

// Delivery is one at-least-once message handed to a subscriber.
type Delivery struct {
	ID      string
	Payload []byte
	Attempt int

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// Ack acknowledges successful processing.
func (d *Delivery) Ack(ctx context.Context) error { return d.ack(ctx) }

// Nack signals failed processing; the bus redelivers with exponential backoff,
// dead-lettering after MaxDeliveryAttempts.
func (d *Delivery) Nack(ctx context.Context) error { return d.nack(ctx) }

// Bus is the message-bus adapter contract (§4.3). Two methods, per the "small
// adapter interface" design note.
type Bus interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Subscribe(ctx context.Context, subject, durable string) (<-chan Delivery, error)
}

// NackBackoff returns the exponential backoff delay for the given (1-based)
// delivery attempt, capped at MaxBackoff. Pure function so reranking-style
// determinism tests can exercise it without a live bus.
func NackBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Second << (attempt - 1)
	if d > MaxBackoff || d <= 0 {
		return MaxBackoff
	}
	return d
}
