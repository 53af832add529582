package pubsub

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueSubscribe(t *testing.T) {
	ps, err := NewInMemoryNats(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(ps.Close)

	ctx := context.Background()

	received := make(chan []byte, 1)
	sub, err := ps.QueueSubscribe(ctx, TasksQueue+".fetch-item", TasksQueue, func(payload []byte) error {
		received <- payload
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	require.NoError(t, ps.Publish(ctx, TasksQueue+".fetch-item", []byte(`{"item_id":"item_1"}`)))

	select {
	case payload := <-received:
		require.Equal(t, `{"item_id":"item_1"}`, string(payload))
	case <-time.After(5 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestQueueSubscribe_RedeliversOnError(t *testing.T) {
	ps, err := NewInMemoryNats(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(ps.Close)

	ctx := context.Background()

	var calls atomic.Int32
	done := make(chan struct{})
	sub, err := ps.QueueSubscribe(ctx, TasksQueue+".fetch-item", TasksQueue, func(payload []byte) error {
		if calls.Add(1) == 1 {
			return fmt.Errorf("transient failure")
		}
		close(done)
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	require.NoError(t, ps.Publish(ctx, TasksQueue+".fetch-item", []byte(`{}`)))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not redelivered after a handler error")
	}
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}
