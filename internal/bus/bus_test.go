// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNackBackoff_ExponentialCapped(t *testing.T) {
	assert.Equal(t, time.Second, NackBackoff(1))
	assert.Equal(t, 2*time.Second, NackBackoff(2))
	assert.Equal(t, 4*time.Second, NackBackoff(3))
	assert.Equal(t, MaxBackoff, NackBackoff(10))
}

func TestFakeBus_PublishSubscribeAckRoundTrip(t *testing.T) {
	b := NewFakeBus()
	ctx := context.Background()

	ch, err := b.Subscribe(ctx, "logs.ingest", "workers")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "logs.ingest", []byte("hello")))

	select {
	case d := <-ch:
		assert.Equal(t, []byte("hello"), d.Payload)
		require.NoError(t, d.Ack(ctx))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestFakeBus_NackRedeliversThenDeadLetters(t *testing.T) {
	b := NewFakeBus()
	ctx := context.Background()

	ch, err := b.Subscribe(ctx, "logs.ingest", "workers")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "logs.ingest", []byte("poison")))

	for i := 0; i < MaxDeliveryAttempts; i++ {
		select {
		case d := <-ch:
			require.NoError(t, d.Nack(ctx))
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery attempt %d", i+1)
		}
	}

	assert.Len(t, b.DeadLetters(), 1)
}

func TestFakeBus_PublishFailsWhenBufferFull(t *testing.T) {
	b := NewFakeBus()
	ctx := context.Background()
	for i := 0; i < PublishBufferCap; i++ {
		b.queues["subj"] = append(b.queues["subj"], []byte("x"))
	}
	err := b.Publish(ctx, "subj", []byte("overflow"))
	assert.ErrorIs(t, err, ErrBufferFull)
}
