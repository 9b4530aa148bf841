// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bus

import (
	"context"
	"sync"
)

// FakeBus is an in-process Bus used by tests. It honors PublishBufferCap and
// dead-letters after MaxDeliveryAttempts nacks, without needing a live Redis.
type FakeBus struct {
	mu          sync.Mutex
	queues      map[string][][]byte
	subscribers map[string][]chan Delivery
	deadLetters [][]byte
	attempts    map[string]int
	nextID      int
}

// NewFakeBus creates an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		queues:      map[string][][]byte{},
		subscribers: map[string][]chan Delivery{},
		attempts:    map[string]int{},
	}
}

func (b *FakeBus) Publish(ctx context.Context, subject string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queues[subject]) >= PublishBufferCap {
		return ErrBufferFull
	}
	b.queues[subject] = append(b.queues[subject], payload)
	b.deliverLocked(subject)
	return nil
}

func (b *FakeBus) Subscribe(ctx context.Context, subject, durable string) (<-chan Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Delivery, 64)
	b.subscribers[subject] = append(b.subscribers[subject], ch)
	b.deliverLocked(subject)
	return ch, nil
}

// deliverLocked must be called with b.mu held.
func (b *FakeBus) deliverLocked(subject string) {
	subs := b.subscribers[subject]
	if len(subs) == 0 {
		return
	}
	queue := b.queues[subject]
	for len(queue) > 0 {
		payload := queue[0]
		queue = queue[1:]
		b.nextID++
		id := itoa(b.nextID)
		b.attempts[id]++
		attempt := b.attempts[id]
		var d Delivery
		d = Delivery{
			ID:      id,
			Payload: payload,
			Attempt: attempt,
			ack: func(ctx context.Context) error {
				b.mu.Lock()
				delete(b.attempts, id)
				b.mu.Unlock()
				return nil
			},
			nack: func(ctx context.Context) error {
				b.mu.Lock()
				defer b.mu.Unlock()
				if b.attempts[id] >= MaxDeliveryAttempts {
					b.deadLetters = append(b.deadLetters, payload)
					delete(b.attempts, id)
					return nil
				}
				b.attempts[id]++
				d.Attempt = b.attempts[id]
				subs[0] <- d
				return nil
			},
		}
		subs[0] <- d
	}
	b.queues[subject] = queue
}

// DeadLetters returns the payloads routed to the dead-letter subject so far.
func (b *FakeBus) DeadLetters() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.deadLetters))
	copy(out, b.deadLetters)
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
