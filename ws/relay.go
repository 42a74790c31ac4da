package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"creatorhub/internal/logger"

	"github.com/redis/go-redis/v9"
)

// Relay carries frames between instances sharing one store.
type Relay interface {
	Publish(ctx context.Context, msg RelayMessage) error
	// Subscribe blocks, calling handle for each frame, until ctx is done.
	Subscribe(ctx context.Context, handle func(RelayMessage)) error
}

// RedisRelay is a Relay over one redis pub/sub channel.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisRelay(client redis.UniversalClient, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel}
}

func (r *RedisRelay) Publish(ctx context.Context, msg RelayMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, handle func(RelayMessage)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg RelayMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logger.Warn("dropping malformed relay message", "error", err)
				continue
			}
			handle(msg)
		}
	}
}
