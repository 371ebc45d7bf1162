package queue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxtDesign/MaxtPM/internal/ids"
)

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	handled  []string
	done     chan struct{}
}

func (h *flakyHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures > 0 {
		h.failures--
		return errors.New("transient")
	}
	h.handled = append(h.handled, msg.ID)
	close(h.done)
	return nil
}

func TestConsumerRetriesFailedEntries(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping stream consumer test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	stream := "test:" + ids.New()
	t.Cleanup(func() { client.Del(context.Background(), stream) })

	handler := &flakyHandler{failures: 1, done: make(chan struct{})}
	consumer := NewConsumer(client, Options{
		Stream:        stream,
		Group:         "testers",
		Consumer:      "c1",
		ClaimInterval: 200 * time.Millisecond,
		Block:         100 * time.Millisecond,
	}, handler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, consumer.EnsureGroup(ctx))

	id, err := client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: map[string]any{"k": "v"}}).Result()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run(ctx) }()

	select {
	case <-handler.done:
	case <-time.After(5 * time.Second):
		t.Fatal("entry was not retried")
	}
	cancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{id}, handler.handled)
	pending, err := client.XPending(context.Background(), stream, "testers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}
