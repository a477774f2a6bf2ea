package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PubSub publishes and subscribes raw payloads over Redis channels.
type PubSub struct {
	client *redis.Client
}

const subscriberBuffer = 64

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, subscriberBuffer)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// ClientEventsChannel returns the Redis channel carrying client change
// events for a deployment namespace.
func ClientEventsChannel(namespace string) string {
	if namespace == "" {
		namespace = "default"
	}
	return "careline:" + namespace + ":client-events"
}

// Ping checks the connection.
func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}
