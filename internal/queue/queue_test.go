package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	StudentID int64  `json:"student_id"`
	Date      string `json:"date"`
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage("attendance.recorded", payload{StudentID: 7, Date: "2026-10-19"})
	require.NoError(t, err)
	assert.Equal(t, "attendance.recorded", msg.Type)

	var got payload
	require.NoError(t, msg.Decode(&got))
	assert.Equal(t, payload{StudentID: 7, Date: "2026-10-19"}, got)
}

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msg, _ := NewMessage("n", i)
		require.NoError(t, q.Publish(ctx, msg))
	}
	for i := 0; i < 3; i++ {
		select {
		case msg := <-msgs:
			var n int
			require.NoError(t, msg.Decode(&n))
			assert.Equal(t, i, n)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishDoesNotBlockWhenFull(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "a"}))

	start := time.Now()
	assert.ErrorIs(t, q.Publish(context.Background(), Message{Type: "b"}), ErrFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "c"}), context.Canceled)
}
