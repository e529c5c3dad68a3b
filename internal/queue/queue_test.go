package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	jobs, err := q.Consume(ctx)
	require.NoError(t, err)

	want := Job{Timestamp: "2026-08-28T10:00:00Z", Latitude: 1.5, Longitude: -2.5}
	require.NoError(t, q.Publish(ctx, want))

	select {
	case got := <-jobs:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("job never delivered")
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	jobs, err := q.Consume(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-jobs:
		assert.False(t, open, "channel closes on cancellation")
	case <-time.After(time.Second):
		t.Fatal("consume did not stop")
	}
}

func TestInMemoryPublishHonorsContextWhenFull(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Job{Timestamp: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Job{Timestamp: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
