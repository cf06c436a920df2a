//go:build integration

package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestChatBroadcaster_RoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("failed to terminate container: %s", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(connStr)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	b := NewChatBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := b.Subscribe(subCtx)
	require.NoError(t, err)

	sent := testMessage()
	require.NoError(t, b.Publish(ctx, sent))

	select {
	case got := <-stream:
		require.NotNil(t, got)
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.Text, got.Text)
		assert.True(t, sent.CreatedAt.Equal(got.CreatedAt))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for chat message")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-stream
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}
