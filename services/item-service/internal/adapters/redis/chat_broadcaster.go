package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/accio/services/item-service/internal/domain/chat"
)

// ChatChannel is the Pub/Sub channel carrying public chat messages
const ChatChannel = "accio:chat:public"

// ChatBroadcaster implements chat.Broadcaster with Redis Pub/Sub so every API
// replica sees every message
type ChatBroadcaster struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewChatBroadcaster creates a broadcaster publishing on ChatChannel
func NewChatBroadcaster(client *redis.Client, logger *slog.Logger) *ChatBroadcaster {
	return &ChatBroadcaster{
		client:  client,
		channel: ChatChannel,
		logger:  logger,
	}
}

// Publish sends msg to every subscriber
func (b *ChatBroadcaster) Publish(ctx context.Context, msg *chat.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe listens until ctx is done. The subscription is confirmed before
// returning, so no message published afterwards is missed.
func (b *ChatBroadcaster) Subscribe(ctx context.Context) (<-chan *chat.Message, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan *chat.Message, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg chat.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.logger.Warn("Dropping malformed chat message", "error", err)
					continue
				}
				select {
				case out <- &msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
